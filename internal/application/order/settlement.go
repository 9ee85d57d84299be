package order

import (
	"context"
	"errors"
	"time"

	dominv "github.com/aranya-atelier/checkout-core/internal/domain/inventory"
	domain "github.com/aranya-atelier/checkout-core/internal/domain/order"
	domoutbox "github.com/aranya-atelier/checkout-core/internal/domain/outbox"
	"github.com/aranya-atelier/checkout-core/internal/observability"
)

// settlement is the shared tail of both confirmation paths. Whichever of the
// client-verify call and the webhook arrives first wins the compare-and-set;
// the loser observes Conflict and becomes a no-op, so the compensating stock
// restore runs at most once per order.
type settlement struct {
	orders    domain.Repository
	stock     dominv.Store
	publisher domoutbox.Publisher
}

// settle advances the order to its terminal state and returns the stored
// order afterwards. paid=false restores the eagerly decremented stock on the
// first transition only.
func (s settlement) settle(ctx context.Context, ord *domain.Order, gatewayPaymentID, source, reason string, paid bool, logger observability.Logger) (*domain.Order, error) {
	var (
		next       domain.PaymentStatus
		nextStatus domain.Status
	)
	if paid {
		next, nextStatus = domain.PaymentPaid, domain.StatusConfirmed
	} else {
		next, nextStatus = domain.PaymentFailed, domain.StatusCancelled
	}

	err := s.orders.TransitionStatus(ctx, ord.ID, domain.PaymentPending, next, nextStatus, gatewayPaymentID)
	switch {
	case err == nil:
		if paid {
			s.publish(ctx, domain.OrderConfirmedEvent{
				OrderID:          ord.ID,
				GatewayPaymentID: gatewayPaymentID,
				Source:           source,
				OccurredAt:       time.Now().UTC(),
			}, logger)
		} else {
			s.restoreStock(ctx, ord, logger)
			s.publish(ctx, domain.OrderCancelledEvent{
				OrderID:    ord.ID,
				Reason:     reason,
				Source:     source,
				OccurredAt: time.Now().UTC(),
			}, logger)
		}
	case errors.Is(err, domain.ErrConflict):
		// Already transitioned by the other path. Idempotent no-op.
		logger.Info("order_already_settled", observability.F("order_id", ord.ID))
	default:
		return nil, wrapRepositoryError(err)
	}

	return s.orders.Get(ctx, ord.ID)
}

// restoreStock compensates the eager decrement from placement. Inventory
// increments are saturating and per-variant, so a partial failure here leaves
// at worst a shortfall an operator repairs by reseeding.
func (s settlement) restoreStock(ctx context.Context, ord *domain.Order, logger observability.Logger) {
	for _, line := range ord.Lines {
		if err := s.stock.Increment(ctx, line.VariantID, line.Quantity); err != nil {
			logger.Error("stock_restore_failed",
				observability.F("order_id", ord.ID),
				observability.F("variant_id", line.VariantID),
				observability.F("quantity", line.Quantity),
				observability.F("error", err.Error()),
			)
		}
	}
}

func (s settlement) publish(ctx context.Context, e domoutbox.Event, logger observability.Logger) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		logger.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}
