package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/aranya-atelier/checkout-core/internal/domain/order"
)

// OrderRepository stores orders in process memory. Conditional updates run
// under the repository mutex, which gives TransitionStatus its compare-and-set
// semantics.
type OrderRepository struct {
	mu             sync.RWMutex
	orders         map[string]*domain.Order
	idempotency    map[string]string // idempotency key -> order id
	byGatewayOrder map[string]string // gateway order id -> order id

	subMu   sync.Mutex
	subs    map[int]chan *domain.Order
	nextSub int
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:         make(map[string]*domain.Order),
		idempotency:    make(map[string]string),
		byGatewayOrder: make(map[string]string),
		subs:           make(map[int]chan *domain.Order),
	}
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	_ = ctx
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	if _, exists := r.orders[o.ID]; exists {
		r.mu.Unlock()
		return domain.ErrConflict
	}
	if key := o.IdempotencyKey; key != "" {
		if existingID, exists := r.idempotency[key]; exists {
			if _, ok := r.orders[existingID]; ok {
				r.mu.Unlock()
				return domain.ErrConflict
			}
		}
	}

	stored := o.Clone()
	r.orders[o.ID] = stored
	if key := o.IdempotencyKey; key != "" {
		r.idempotency[key] = o.ID
	}
	if o.GatewayOrderID != "" {
		r.byGatewayOrder[o.GatewayOrderID] = o.ID
	}
	snapshot := stored.Clone()
	r.mu.Unlock()

	r.notify(snapshot)
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *OrderRepository) FindByIdempotency(ctx context.Context, key string) (*domain.Order, error) {
	_ = ctx
	if key == "" {
		return nil, domain.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.idempotency[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *OrderRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error) {
	_ = ctx
	if gatewayOrderID == "" {
		return nil, domain.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byGatewayOrder[gatewayOrderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *OrderRepository) SetGatewayOrder(ctx context.Context, orderID, gatewayOrderID string) error {
	_ = ctx
	if gatewayOrderID == "" {
		return fmt.Errorf("order repository: gateway order id is required")
	}

	r.mu.Lock()
	o, ok := r.orders[orderID]
	if !ok {
		r.mu.Unlock()
		return domain.ErrNotFound
	}
	o.GatewayOrderID = gatewayOrderID
	o.UpdatedAt = time.Now().UTC()
	r.byGatewayOrder[gatewayOrderID] = orderID
	snapshot := o.Clone()
	r.mu.Unlock()

	r.notify(snapshot)
	return nil
}

// TransitionStatus is the single write path for status changes. The expected
// payment status gate makes a second delivery of the same outcome, or the
// losing side of the client-verify/webhook race, observe ErrConflict instead
// of re-applying side effects.
func (r *OrderRepository) TransitionStatus(ctx context.Context, orderID string, expected, next domain.PaymentStatus, nextStatus domain.Status, gatewayPaymentID string) error {
	_ = ctx

	r.mu.Lock()
	o, ok := r.orders[orderID]
	if !ok {
		r.mu.Unlock()
		return domain.ErrNotFound
	}
	if o.PaymentStatus != expected {
		r.mu.Unlock()
		return domain.ErrConflict
	}
	o.PaymentStatus = next
	o.Status = nextStatus
	if gatewayPaymentID != "" {
		o.GatewayPaymentID = gatewayPaymentID
	}
	o.UpdatedAt = time.Now().UTC()
	snapshot := o.Clone()
	r.mu.Unlock()

	r.notify(snapshot)
	return nil
}

func (r *OrderRepository) List(ctx context.Context) ([]*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	out := make([]*domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *OrderRepository) ListByPhone(ctx context.Context, phone string) ([]*domain.Order, error) {
	_ = ctx
	if phone == "" {
		return nil, nil
	}

	r.mu.RLock()
	var out []*domain.Order
	for _, o := range r.orders {
		if o.Customer.Phone == phone {
			out = append(out, o.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Subscribe returns a feed of inserted and updated orders. The channel is
// buffered; a subscriber that stops draining loses updates rather than
// blocking writers, which is acceptable for an observing UI.
func (r *OrderRepository) Subscribe(ctx context.Context) <-chan *domain.Order {
	ch := make(chan *domain.Order, 64)

	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.subMu.Unlock()

	go func() {
		<-ctx.Done()
		// Delete and close under the same lock notify sends under, so a
		// concurrent notify can never hit a closed channel.
		r.subMu.Lock()
		delete(r.subs, id)
		close(ch)
		r.subMu.Unlock()
	}()

	return ch
}

func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(r.orders, id)
	if o.IdempotencyKey != "" {
		delete(r.idempotency, o.IdempotencyKey)
	}
	if o.GatewayOrderID != "" {
		delete(r.byGatewayOrder, o.GatewayOrderID)
	}
	return nil
}

func (r *OrderRepository) notify(o *domain.Order) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- o:
		default:
		}
	}
}
