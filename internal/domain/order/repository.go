package order

import "context"

// Repository persists orders under a flat id keyspace. Status changes go
// through TransitionStatus only; its compare-and-set on payment status is what
// makes confirmation idempotent under duplicate delivery.
type Repository interface {
	// Insert stores a new order. It returns ErrConflict when the order id or a
	// non-empty idempotency key is already taken.
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	FindByIdempotency(ctx context.Context, key string) (*Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Order, error)

	// SetGatewayOrder records the provider-side intent id. Set once, after
	// intent creation.
	SetGatewayOrder(ctx context.Context, orderID, gatewayOrderID string) error

	// TransitionStatus updates both statuses only if the stored payment status
	// equals expected; otherwise it returns ErrConflict and changes nothing.
	// A non-empty gatewayPaymentID is recorded with the transition.
	TransitionStatus(ctx context.Context, orderID string, expected, next PaymentStatus, nextStatus Status, gatewayPaymentID string) error

	// List returns all orders newest first. Subscribe delivers every inserted
	// or updated order until ctx is done; it serves observing UIs and is not
	// authoritative for business logic.
	List(ctx context.Context) ([]*Order, error)
	ListByPhone(ctx context.Context, phone string) ([]*Order, error)
	Subscribe(ctx context.Context) <-chan *Order

	// Delete removes an order. Administrative use only; the normal flow never
	// deletes.
	Delete(ctx context.Context, id string) error
}
