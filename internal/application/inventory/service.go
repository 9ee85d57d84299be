package inventory

import (
	"context"
	"errors"

	domain "github.com/aranya-atelier/checkout-core/internal/domain/inventory"
	"github.com/aranya-atelier/checkout-core/internal/observability"
)

var ErrValidation = errors.New("inventory: validation failed")

// Service wraps the stock store for reads and administrative reseeding.
// Order placement talks to the store directly through its conditional
// primitives; this service never exposes a blind write to stock.
type Service struct {
	store domain.Store
	log   observability.Logger
}

func NewService(store domain.Store, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		store: store,
		log:   tel.Logger().With(observability.F("component", "inventory_service")),
	}
}

func (s *Service) GetVariant(ctx context.Context, variantID string) (*domain.Variant, error) {
	if variantID == "" {
		return nil, ErrValidation
	}
	return s.store.GetVariant(ctx, variantID)
}

// Seed overwrites stock counters wholesale. This is the supported repair for
// stock drift; it is deliberate that nothing reconciles drift automatically.
func (s *Service) Seed(ctx context.Context, variants []domain.Variant) error {
	if len(variants) == 0 {
		return ErrValidation
	}
	if err := s.store.Seed(ctx, variants); err != nil {
		return err
	}
	s.log.Info("inventory_seeded", observability.F("variants", len(variants)))
	return nil
}
