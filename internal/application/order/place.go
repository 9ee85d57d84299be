package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	dominv "github.com/aranya-atelier/checkout-core/internal/domain/inventory"
	domain "github.com/aranya-atelier/checkout-core/internal/domain/order"
	domoutbox "github.com/aranya-atelier/checkout-core/internal/domain/outbox"
	dompayment "github.com/aranya-atelier/checkout-core/internal/domain/payment"
	"github.com/aranya-atelier/checkout-core/internal/observability"
	"github.com/aranya-atelier/checkout-core/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	useCasePlaceOrder = "order.place"
	spanPrefix        = "UC."
	gatewayPeer       = "razorpay"
	gatewayEndpoint   = "orders.create"
)

// PlaceOrderUseCase validates a submitted cart, decrements stock eagerly,
// persists the order, and opens a payment intent with the gateway. Stock is
// compensated back whenever a later step fails.
type PlaceOrderUseCase struct {
	orders      domain.Repository
	stock       dominv.Store
	gateway     dompayment.Gateway
	idGenerator IDGenerator
	publisher   domoutbox.Publisher
	currency    string
	tel         observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

func NewPlaceOrderUseCase(
	orders domain.Repository,
	stock dominv.Store,
	gateway dompayment.Gateway,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	currency string,
	tel observability.Observability,
) *PlaceOrderUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	return &PlaceOrderUseCase{
		orders:       orders,
		stock:        stock,
		gateway:      gateway,
		idGenerator:  idGen,
		publisher:    publisher,
		currency:     currency,
		tel:          tel,
		log:          tel.Logger().With(observability.F("use_case", useCasePlaceOrder)),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
		extCounter:   tel.Metrics().Counter(observability.MExternalRequests),
		extHistogram: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

// LineInput is one cart line as submitted by the client. UnitPrice is the
// minor-unit snapshot taken when the item entered the cart; it must still
// match the catalog at placement time.
type LineInput struct {
	VariantID string
	Quantity  int
	UnitPrice int64
}

type PlaceOrderInput struct {
	IdempotencyKey string
	Customer       domain.Customer
	Lines          []LineInput
	PaymentMethod  string
}

type PlaceOrderResult struct {
	OrderID        string
	GatewayOrderID string
	Amount         int64
	Currency       string
	Status         domain.Status
	PaymentStatus  domain.PaymentStatus
}

func (uc *PlaceOrderUseCase) Execute(ctx context.Context, cmd PlaceOrderInput) (_ *PlaceOrderResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("use_case", useCasePlaceOrder))

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+"PlaceOrder",
		attribute.String("use_case", useCasePlaceOrder),
		attribute.Int("order.lines", len(cmd.Lines)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var orderID string

	defer func() {
		lat := time.Since(start).Seconds()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		uc.reqCounter.Add(1,
			observability.L("use_case", useCasePlaceOrder),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat, observability.L("use_case", useCasePlaceOrder))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if orderID != "" {
			fields = append(fields, observability.F("order_id", orderID))
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	invLines, verr := uc.validateCart(ctx, cmd)
	if verr != nil {
		outcome, statusText = "error", validationStatus(verr)
		return nil, verr
	}

	// Replay before any stock movement so a duplicate submit cannot decrement
	// twice.
	if cmd.IdempotencyKey != "" {
		existing, repoErr := uc.orders.FindByIdempotency(ctx, cmd.IdempotencyKey)
		switch {
		case repoErr == nil:
			orderID = existing.ID
			statusText = "IDEMPOTENT_REPLAY"
			span.AddEvent("order.idempotent_replay",
				trace.WithAttributes(attribute.String("order.id", orderID)),
			)
			return replayResult(existing), nil
		case errors.Is(repoErr, domain.ErrNotFound):
			// continue
		default:
			outcome, statusText = "error", "IDEMPOTENCY_LOOKUP_FAILED"
			return nil, wrapRepositoryError(repoErr)
		}
	}

	if err := uc.stock.DecrementMany(ctx, invLines); err != nil {
		var shortfall *dominv.ShortfallError
		if errors.As(err, &shortfall) {
			outcome, statusText = "error", "OUT_OF_STOCK"
			return nil, shortfall
		}
		outcome, statusText = "error", "STOCK_DECREMENT_FAILED"
		return nil, err
	}

	orderID = uc.idGenerator.NewID()
	lines := make([]domain.Line, 0, len(cmd.Lines))
	for _, l := range cmd.Lines {
		lines = append(lines, domain.Line{
			VariantID: l.VariantID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	entity, derr := domain.New(orderID, cmd.Customer, lines, uc.currency, cmd.PaymentMethod, cmd.IdempotencyKey)
	if derr != nil {
		uc.compensate(ctx, invLines, logger)
		outcome, statusText = "error", "DOMAIN_CONSTRUCTION_FAILED"
		return nil, fmt.Errorf("order: construct: %w", derr)
	}

	if err := uc.orders.Insert(ctx, entity); err != nil {
		uc.compensate(ctx, invLines, logger)
		if errors.Is(err, domain.ErrConflict) && cmd.IdempotencyKey != "" {
			if existing, lookupErr := uc.orders.FindByIdempotency(ctx, cmd.IdempotencyKey); lookupErr == nil {
				orderID = existing.ID
				statusText = "IDEMPOTENT_REPLAY"
				return replayResult(existing), nil
			}
		}
		outcome, statusText = "error", "REPO_INSERT_FAILED"
		return nil, wrapRepositoryError(err)
	}

	intent, gerr := uc.createIntent(ctx, entity)
	if gerr != nil {
		// The reservation was provisional: put the stock back and park the
		// order in its terminal failed state before surfacing the error.
		uc.compensate(ctx, invLines, logger)
		if terr := uc.orders.TransitionStatus(ctx, entity.ID, domain.PaymentPending, domain.PaymentFailed, domain.StatusCancelled, ""); terr != nil {
			logger.Error("order_cancel_failed",
				observability.F("order_id", entity.ID),
				observability.F("error", terr.Error()),
			)
		}
		outcome, statusText = "error", "GATEWAY_INTENT_FAILED"
		return nil, gerr
	}

	if err := uc.orders.SetGatewayOrder(ctx, entity.ID, intent.GatewayOrderID); err != nil {
		outcome, statusText = "error", "REPO_UPDATE_FAILED"
		return nil, wrapRepositoryError(err)
	}
	entity.GatewayOrderID = intent.GatewayOrderID

	if uc.publisher != nil {
		if perr := uc.publisher.Publish(ctx, domain.NewOrderCreatedEvent(entity)); perr != nil {
			logger.Warn("event_publish_failed",
				observability.F("event", "order.created"),
				observability.F("error", perr.Error()),
			)
		}
	}

	span.SetAttributes(
		attribute.String("order.id", entity.ID),
		attribute.String("order.gateway_order_id", intent.GatewayOrderID),
	)
	span.AddEvent("order.created")

	return &PlaceOrderResult{
		OrderID:        entity.ID,
		GatewayOrderID: intent.GatewayOrderID,
		Amount:         entity.TotalAmount,
		Currency:       entity.Currency,
		Status:         entity.Status,
		PaymentStatus:  entity.PaymentStatus,
	}, nil
}

// validateCart checks shape and verifies every price snapshot against the
// catalog before any stock is touched.
func (uc *PlaceOrderUseCase) validateCart(ctx context.Context, cmd PlaceOrderInput) ([]dominv.Line, error) {
	if len(cmd.Lines) == 0 {
		return nil, newValidation("cart must contain at least one line")
	}
	if cmd.Customer.Phone == "" {
		return nil, newValidation("customer phone is required")
	}

	invLines := make([]dominv.Line, 0, len(cmd.Lines))
	for _, l := range cmd.Lines {
		if l.Quantity <= 0 {
			return nil, newValidation("quantity must be greater than zero")
		}
		variant, err := uc.stock.GetVariant(ctx, l.VariantID)
		if err != nil {
			if errors.Is(err, dominv.ErrNotFound) {
				return nil, newValidation("unknown variant " + l.VariantID)
			}
			return nil, err
		}
		if variant.UnitPrice != l.UnitPrice {
			return nil, fmt.Errorf("%w: variant %s", ErrPriceMismatch, l.VariantID)
		}
		invLines = append(invLines, dominv.Line{VariantID: l.VariantID, Quantity: l.Quantity})
	}
	return invLines, nil
}

func (uc *PlaceOrderUseCase) createIntent(ctx context.Context, entity *domain.Order) (*dompayment.Intent, error) {
	extStart := time.Now()
	extOutcome := "success"

	intent, err := uc.gateway.CreateIntent(ctx, entity.TotalAmount, entity.Currency, entity.ID)
	if err != nil {
		extOutcome = "error"
	}

	uc.extCounter.Add(1,
		observability.L("peer", gatewayPeer),
		observability.L("endpoint", gatewayEndpoint),
		observability.L("outcome", extOutcome),
	)
	uc.extHistogram.Observe(time.Since(extStart).Seconds(),
		observability.L("peer", gatewayPeer),
		observability.L("endpoint", gatewayEndpoint),
	)
	return intent, err
}

func (uc *PlaceOrderUseCase) compensate(ctx context.Context, lines []dominv.Line, logger observability.Logger) {
	for _, l := range lines {
		if err := uc.stock.Increment(ctx, l.VariantID, l.Quantity); err != nil {
			logger.Error("stock_restore_failed",
				observability.F("variant_id", l.VariantID),
				observability.F("quantity", l.Quantity),
				observability.F("error", err.Error()),
			)
		}
	}
}

func replayResult(o *domain.Order) *PlaceOrderResult {
	return &PlaceOrderResult{
		OrderID:        o.ID,
		GatewayOrderID: o.GatewayOrderID,
		Amount:         o.TotalAmount,
		Currency:       o.Currency,
		Status:         o.Status,
		PaymentStatus:  o.PaymentStatus,
	}
}

func validationStatus(err error) string {
	switch {
	case errors.Is(err, ErrPriceMismatch):
		return "PRICE_MISMATCH"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_FAILED"
	default:
		return "INVALID_CART"
	}
}
