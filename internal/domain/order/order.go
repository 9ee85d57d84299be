package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrConflict        = errors.New("order: conflict")
	ErrEmptyCart       = errors.New("order: cart must contain at least one line")
	ErrInvalidQuantity = errors.New("order: quantity must be greater than zero")
	ErrInvalidPrice    = errors.New("order: unit price must be zero or greater")
)

// PaymentStatus tracks the money side of an order. It transitions from
// pending to exactly one of paid or failed; both are sink states.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentPaid || s == PaymentFailed
}

// Status tracks the fulfilment side. Confirmed implies the payment is paid.
type Status string

const (
	StatusCreated   Status = "created"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Line is an immutable snapshot of a cart line at submission time.
// UnitPrice is in minor currency units (paise).
type Line struct {
	VariantID string
	ProductID string
	Quantity  int
	UnitPrice int64
}

func (l Line) Subtotal() int64 {
	return int64(l.Quantity) * l.UnitPrice
}

type Customer struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

type Order struct {
	ID             string
	Lines          []Line
	Customer       Customer
	TotalAmount    int64
	Currency       string
	PaymentMethod  string
	PaymentStatus  PaymentStatus
	Status         Status
	GatewayOrderID string
	// GatewayPaymentID is set once a confirmation names the provider payment.
	GatewayPaymentID string
	IdempotencyKey   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// New builds an order in created/pending. The total is derived from the line
// snapshots so that TotalAmount always equals the sum of the subtotals.
func New(id string, customer Customer, lines []Line, currency, paymentMethod, idempotencyKey string) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	var total int64
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if l.UnitPrice < 0 {
			return nil, ErrInvalidPrice
		}
		total += l.Subtotal()
	}

	now := time.Now().UTC()
	return &Order{
		ID:             id,
		Lines:          append([]Line(nil), lines...),
		Customer:       customer,
		TotalAmount:    total,
		Currency:       currency,
		PaymentMethod:  paymentMethod,
		PaymentStatus:  PaymentPending,
		Status:         StatusCreated,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Lines = append([]Line(nil), o.Lines...)
	return &clone
}
