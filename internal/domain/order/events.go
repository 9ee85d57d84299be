package order

import "time"

// OrderCreatedEvent is emitted once an order has been persisted and its
// payment intent created.
type OrderCreatedEvent struct {
	OrderID        string
	GatewayOrderID string
	TotalAmount    int64
	Currency       string
	OccurredAt     time.Time
}

func (OrderCreatedEvent) EventName() string { return "order.created" }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:        o.ID,
		GatewayOrderID: o.GatewayOrderID,
		TotalAmount:    o.TotalAmount,
		Currency:       o.Currency,
		OccurredAt:     time.Now().UTC(),
	}
}

// OrderConfirmedEvent is emitted on the first successful pending->paid transition.
type OrderConfirmedEvent struct {
	OrderID          string
	GatewayPaymentID string
	Source           string
	OccurredAt       time.Time
}

func (OrderConfirmedEvent) EventName() string { return "order.confirmed" }

// OrderCancelledEvent is emitted on the first pending->failed transition,
// after stock has been restored.
type OrderCancelledEvent struct {
	OrderID    string
	Reason     string
	Source     string
	OccurredAt time.Time
}

func (OrderCancelledEvent) EventName() string { return "order.cancelled" }
