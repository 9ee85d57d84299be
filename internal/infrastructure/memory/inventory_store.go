package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/aranya-atelier/checkout-core/internal/domain/inventory"
)

// InventoryStore keeps the authoritative stock counters in process memory.
// A single mutex covers all variants, so DecrementMany validates and applies
// under one critical section and no intermediate state is ever observable.
type InventoryStore struct {
	mu       sync.RWMutex
	variants map[string]*domain.Variant
}

func NewInventoryStore() *InventoryStore {
	return &InventoryStore{
		variants: make(map[string]*domain.Variant),
	}
}

func (s *InventoryStore) GetVariant(ctx context.Context, variantID string) (*domain.Variant, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.variants[variantID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneVariant(v), nil
}

func (s *InventoryStore) DecrementIfAvailable(ctx context.Context, variantID string, quantity int) error {
	_ = ctx
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.variants[variantID]
	if !ok {
		return domain.ErrNotFound
	}
	if v.Stock < quantity {
		return domain.ErrInsufficientStock
	}
	v.Stock -= quantity
	v.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InventoryStore) DecrementMany(ctx context.Context, lines []domain.Line) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: collect every shortfall so the caller sees the full set.
	var shortfalls []domain.Shortfall
	for _, l := range lines {
		if l.Quantity <= 0 {
			return domain.ErrInvalidQuantity
		}
		v, ok := s.variants[l.VariantID]
		if !ok {
			return domain.ErrNotFound
		}
		if v.Stock < l.Quantity {
			shortfalls = append(shortfalls, domain.Shortfall{
				VariantID: l.VariantID,
				Requested: l.Quantity,
				Available: v.Stock,
			})
		}
	}
	if len(shortfalls) > 0 {
		return &domain.ShortfallError{Items: shortfalls}
	}

	now := time.Now().UTC()
	for _, l := range lines {
		v := s.variants[l.VariantID]
		v.Stock -= l.Quantity
		v.UpdatedAt = now
	}
	return nil
}

func (s *InventoryStore) Increment(ctx context.Context, variantID string, quantity int) error {
	_ = ctx
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.variants[variantID]
	if !ok {
		return domain.ErrNotFound
	}
	v.Stock += quantity
	v.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InventoryStore) Seed(ctx context.Context, variants []domain.Variant) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for i := range variants {
		v := variants[i]
		if v.Stock < 0 {
			return domain.ErrInvalidQuantity
		}
		v.UpdatedAt = now
		s.variants[v.ID] = &v
	}
	return nil
}

func cloneVariant(v *domain.Variant) *domain.Variant {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}
