package audit

import (
	"context"

	domorder "github.com/aranya-atelier/checkout-core/internal/domain/order"
	domoutbox "github.com/aranya-atelier/checkout-core/internal/domain/outbox"
	dompayment "github.com/aranya-atelier/checkout-core/internal/domain/payment"
	"github.com/aranya-atelier/checkout-core/internal/observability"
)

// Worker writes an audit line for every order lifecycle event and for every
// rejected webhook, giving operators visibility into outcomes the HTTP layer
// deliberately hides (the webhook endpoint answers 200 either way).
type Worker struct {
	subscriber domoutbox.Subscriber
	log        observability.Logger
	events     observability.Counter
}

func New(subscriber domoutbox.Subscriber, tel observability.Observability) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Worker{
		subscriber: subscriber,
		log:        tel.Logger().With(observability.F("component", "audit_worker")),
		events:     tel.Metrics().Counter(observability.MWebhookEvents),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil {
		return
	}
	w.subscriber.Subscribe(domorder.OrderCreatedEvent{}.EventName(), w.handleOrderCreated)
	w.subscriber.Subscribe(domorder.OrderConfirmedEvent{}.EventName(), w.handleOrderConfirmed)
	w.subscriber.Subscribe(domorder.OrderCancelledEvent{}.EventName(), w.handleOrderCancelled)
	w.subscriber.Subscribe(dompayment.WebhookRejectedEvent{}.EventName(), w.handleWebhookRejected)
}

func (w *Worker) handleOrderCreated(ctx context.Context, e domoutbox.Event) error {
	_ = ctx
	evt, ok := e.(domorder.OrderCreatedEvent)
	if !ok {
		return nil
	}
	w.log.Info("order_created",
		observability.F("order_id", evt.OrderID),
		observability.F("gateway_order_id", evt.GatewayOrderID),
		observability.F("amount", evt.TotalAmount),
		observability.F("currency", evt.Currency),
	)
	return nil
}

func (w *Worker) handleOrderConfirmed(ctx context.Context, e domoutbox.Event) error {
	_ = ctx
	evt, ok := e.(domorder.OrderConfirmedEvent)
	if !ok {
		return nil
	}
	w.log.Info("order_confirmed",
		observability.F("order_id", evt.OrderID),
		observability.F("gateway_payment_id", evt.GatewayPaymentID),
		observability.F("source", evt.Source),
	)
	return nil
}

func (w *Worker) handleOrderCancelled(ctx context.Context, e domoutbox.Event) error {
	_ = ctx
	evt, ok := e.(domorder.OrderCancelledEvent)
	if !ok {
		return nil
	}
	w.log.Warn("order_cancelled",
		observability.F("order_id", evt.OrderID),
		observability.F("reason", evt.Reason),
		observability.F("source", evt.Source),
	)
	return nil
}

func (w *Worker) handleWebhookRejected(ctx context.Context, e domoutbox.Event) error {
	_ = ctx
	evt, ok := e.(dompayment.WebhookRejectedEvent)
	if !ok {
		return nil
	}
	w.events.Add(1, observability.L("outcome", "rejected"))
	w.log.Warn("webhook_rejected", observability.F("reason", evt.Reason))
	return nil
}
