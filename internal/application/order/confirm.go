package order

import (
	"context"
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
	useCaseConfirmPayment = "order.confirm"
	sourceClient          = "client"
)

// ConfirmPaymentUseCase handles the synchronous verify call the client makes
// after completing checkout with the provider.
type ConfirmPaymentUseCase struct {
	settlement
	gateway dompayment.Gateway
	tel     observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewConfirmPaymentUseCase(
	orders domain.Repository,
	stock dominv.Store,
	gateway dompayment.Gateway,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *ConfirmPaymentUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	return &ConfirmPaymentUseCase{
		settlement:   settlement{orders: orders, stock: stock, publisher: publisher},
		gateway:      gateway,
		tel:          tel,
		log:          tel.Logger().With(observability.F("use_case", useCaseConfirmPayment)),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

type ConfirmPaymentInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

type ConfirmPaymentResult struct {
	OrderID       string
	Status        domain.Status
	PaymentStatus domain.PaymentStatus
}

func (uc *ConfirmPaymentUseCase) Execute(ctx context.Context, cmd ConfirmPaymentInput) (_ *ConfirmPaymentResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseConfirmPayment),
		observability.F("gateway_order_id", cmd.GatewayOrderID),
	)

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+"ConfirmPayment",
		attribute.String("use_case", useCaseConfirmPayment),
		attribute.String("order.gateway_order_id", cmd.GatewayOrderID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

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
			observability.L("use_case", useCaseConfirmPayment),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat, observability.L("use_case", useCaseConfirmPayment))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if cmd.GatewayOrderID == "" || cmd.GatewayPaymentID == "" {
		outcome, statusText = "error", "IDENTIFIERS_REQUIRED"
		return nil, newValidation("gateway order id and payment id are required")
	}

	ord, err := uc.orders.FindByGatewayOrderID(ctx, cmd.GatewayOrderID)
	if err != nil {
		outcome, statusText = "error", "ORDER_NOT_FOUND"
		return nil, wrapRepositoryError(err)
	}

	if !uc.gateway.VerifyPaymentSignature(cmd.GatewayOrderID, cmd.GatewayPaymentID, cmd.Signature) {
		// Authenticity failure is terminal: fail the order if it is still
		// pending and put the stock back. Inventory was decremented eagerly
		// at placement, so the invalid path must compensate, not re-check.
		if _, serr := uc.settle(ctx, ord, cmd.GatewayPaymentID, sourceClient, "signature_invalid", false, logger); serr != nil {
			logger.Error("settle_failed", observability.F("error", serr.Error()))
		}
		outcome, statusText = "error", "SIGNATURE_INVALID"
		return nil, ErrSignatureInvalid
	}

	settled, err := uc.settle(ctx, ord, cmd.GatewayPaymentID, sourceClient, "", true, logger)
	if err != nil {
		outcome, statusText = "error", "SETTLE_FAILED"
		return nil, err
	}

	span.SetAttributes(attribute.String("order.status", string(settled.Status)))
	return &ConfirmPaymentResult{
		OrderID:       settled.ID,
		Status:        settled.Status,
		PaymentStatus: settled.PaymentStatus,
	}, nil
}
