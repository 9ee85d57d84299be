package order

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/aranya-atelier/checkout-core/internal/domain/order"
)

var (
	ErrConflict = domain.ErrConflict
	ErrNotFound = domain.ErrNotFound

	// ErrValidation marks bad input shape; the HTTP layer maps it to 400.
	ErrValidation = errors.New("order: validation failed")

	// ErrPriceMismatch rejects carts whose price snapshots no longer match the
	// catalog, which catches stale client state before any money moves.
	ErrPriceMismatch = errors.New("order: price snapshot does not match catalog")

	// ErrSignatureInvalid marks a confirmation that failed authentication.
	// Terminal; never retried.
	ErrSignatureInvalid = errors.New("order: payment signature invalid")

	ErrRepository = errors.New("order: repository failure")
)

func newValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

type IDGenerator interface {
	NewID() string
}

// ProcessedEvents is the webhook dedup marker: one entry per gateway payment
// id, first delivery wins.
type ProcessedEvents interface {
	MarkProcessed(ctx context.Context, gatewayPaymentID string) (bool, error)
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, domain.ErrConflict):
		return ErrConflict
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}
