package order

import (
	"context"

	domain "github.com/aranya-atelier/checkout-core/internal/domain/order"
)

// Service exposes the read and administrative operations around orders. The
// UI consumes orders through List/Subscribe only; it never mutates directly.
type Service struct {
	repo domain.Repository
}

func NewService(repo domain.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	if id == "" {
		return nil, newValidation("order id is required")
	}
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return o, nil
}

func (s *Service) List(ctx context.Context) ([]*domain.Order, error) {
	return s.repo.List(ctx)
}

func (s *Service) ListByPhone(ctx context.Context, phone string) ([]*domain.Order, error) {
	if phone == "" {
		return nil, newValidation("phone is required")
	}
	return s.repo.ListByPhone(ctx, phone)
}

// Subscribe returns a live feed of order changes, newest events as they
// happen. The feed closes when ctx is done.
func (s *Service) Subscribe(ctx context.Context) <-chan *domain.Order {
	return s.repo.Subscribe(ctx)
}

// Delete removes an order outright. Administrative action only; the normal
// flow cancels orders, it never deletes them.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return newValidation("order id is required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return wrapRepositoryError(err)
	}
	return nil
}
