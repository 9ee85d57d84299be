package order

import (
	"context"
	"errors"
	"time"

	dominv "github.com/aranya-atelier/checkout-core/internal/domain/inventory"
	domain "github.com/aranya-atelier/checkout-core/internal/domain/order"
	domoutbox "github.com/aranya-atelier/checkout-core/internal/domain/outbox"
	dompayment "github.com/aranya-atelier/checkout-core/internal/domain/payment"
	"github.com/aranya-atelier/checkout-core/internal/observability"
	"github.com/aranya-atelier/checkout-core/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	useCaseProcessWebhook = "order.webhook"
	sourceWebhook         = "webhook"
)

// ProcessWebhookUseCase reconciles asynchronous provider notifications. It is
// a backstop behind the synchronous client verify: duplicates, replays, and
// already-settled orders all end as no-ops.
type ProcessWebhookUseCase struct {
	settlement
	codec     dompayment.WebhookCodec
	processed ProcessedEvents
	tel       observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	eventCounter observability.Counter
}

func NewProcessWebhookUseCase(
	orders domain.Repository,
	stock dominv.Store,
	codec dompayment.WebhookCodec,
	processed ProcessedEvents,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *ProcessWebhookUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	return &ProcessWebhookUseCase{
		settlement:   settlement{orders: orders, stock: stock, publisher: publisher},
		codec:        codec,
		processed:    processed,
		tel:          tel,
		log:          tel.Logger().With(observability.F("use_case", useCaseProcessWebhook)),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
		eventCounter: tel.Metrics().Counter(observability.MWebhookEvents),
	}
}

type ProcessWebhookInput struct {
	// Body is the exact raw bytes received on the wire. The HMAC is computed
	// over these bytes; any re-serialized form breaks verification.
	Body      []byte
	Signature string
}

func (uc *ProcessWebhookUseCase) Execute(ctx context.Context, cmd ProcessWebhookInput) (err error) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("use_case", useCaseProcessWebhook))

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+"ProcessWebhook",
		attribute.String("use_case", useCaseProcessWebhook),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var eventType string

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
			observability.L("use_case", useCaseProcessWebhook),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat, observability.L("use_case", useCaseProcessWebhook))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if eventType != "" {
			fields = append(fields, observability.F("event_type", eventType))
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if !uc.codec.Verify(cmd.Body, cmd.Signature) {
		uc.eventCounter.Add(1, observability.L("outcome", "rejected"))
		uc.publish(ctx, dompayment.WebhookRejectedEvent{
			Reason:     "signature_mismatch",
			OccurredAt: time.Now().UTC(),
		}, logger)
		outcome, statusText = "error", "SIGNATURE_INVALID"
		return ErrSignatureInvalid
	}

	event, derr := uc.codec.Decode(cmd.Body)
	if derr != nil {
		outcome, statusText = "error", "DECODE_FAILED"
		return derr
	}
	eventType = event.Event
	span.SetAttributes(attribute.String("webhook.event", event.Event))

	var paid bool
	switch event.Event {
	case dompayment.EventPaymentCaptured:
		paid = true
	case dompayment.EventPaymentFailed:
		paid = false
	default:
		// Acknowledged but not acted on.
		uc.eventCounter.Add(1, observability.L("outcome", "ignored"))
		statusText = "IGNORED_EVENT"
		return nil
	}

	first, merr := uc.processed.MarkProcessed(ctx, event.GatewayPaymentID)
	if merr != nil {
		outcome, statusText = "error", "DEDUP_FAILED"
		return merr
	}
	if !first {
		uc.eventCounter.Add(1, observability.L("outcome", "duplicate"))
		statusText = "DUPLICATE_EVENT"
		return nil
	}

	ord, ferr := uc.orders.FindByGatewayOrderID(ctx, event.GatewayOrderID)
	if ferr != nil {
		if errors.Is(ferr, domain.ErrNotFound) {
			// A webhook for an order we never created. Record and move on.
			logger.Warn("webhook_unknown_order",
				observability.F("gateway_order_id", event.GatewayOrderID),
			)
			outcome, statusText = "error", "ORDER_NOT_FOUND"
			return ErrNotFound
		}
		outcome, statusText = "error", "ORDER_LOOKUP_FAILED"
		return wrapRepositoryError(ferr)
	}

	if _, serr := uc.settle(ctx, ord, event.GatewayPaymentID, sourceWebhook, event.Event, paid, logger); serr != nil {
		outcome, statusText = "error", "SETTLE_FAILED"
		return serr
	}

	uc.eventCounter.Add(1, observability.L("outcome", "processed"))
	return nil
}
