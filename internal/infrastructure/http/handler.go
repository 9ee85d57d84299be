package httptransport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	appInventory "github.com/aranya-atelier/checkout-core/internal/application/inventory"
	appOrder "github.com/aranya-atelier/checkout-core/internal/application/order"
	domainInventory "github.com/aranya-atelier/checkout-core/internal/domain/inventory"
	domainOrder "github.com/aranya-atelier/checkout-core/internal/domain/order"
	domainPayment "github.com/aranya-atelier/checkout-core/internal/domain/payment"
	"github.com/aranya-atelier/checkout-core/internal/observability"
	"github.com/go-chi/chi/v5"
)

const maxWebhookBody = 1 << 20 // 1MB

type Handler struct {
	place     *appOrder.PlaceOrderUseCase
	confirm   *appOrder.ConfirmPaymentUseCase
	webhook   *appOrder.ProcessWebhookUseCase
	orders    *appOrder.Service
	inventory *appInventory.Service
	log       observability.Logger
}

func NewHandler(
	place *appOrder.PlaceOrderUseCase,
	confirm *appOrder.ConfirmPaymentUseCase,
	webhook *appOrder.ProcessWebhookUseCase,
	orders *appOrder.Service,
	inventory *appInventory.Service,
	logger observability.Logger,
) *Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Handler{
		place:     place,
		confirm:   confirm,
		webhook:   webhook,
		orders:    orders,
		inventory: inventory,
		log:       logger.With(observability.F("component", "http_handler")),
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/checkout", h.handleCheckout)
		r.Post("/payment/verify", h.handleVerifyPayment)
		r.Post("/payment/webhook", h.handleWebhook)

		r.Get("/orders", h.handleListOrders)
		r.Get("/orders/stream", h.handleOrderStream)
		r.Get("/orders/{orderID}", h.handleGetOrder)
		r.Delete("/orders/{orderID}", h.handleDeleteOrder)
		r.Get("/customers/{phone}/orders", h.handleOrdersByPhone)

		r.Get("/inventory/{variantID}", h.handleGetVariant)
		r.Post("/inventory/seed", h.handleSeedInventory)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

type checkoutLine struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
	// UnitPrice is in whole currency units as the storefront displays them;
	// the handler converts to minor units before anything else sees it.
	UnitPrice int64 `json:"unit_price"`
}

type checkoutCustomer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

type checkoutRequest struct {
	IdempotencyKey string           `json:"idempotency_key"`
	PaymentMethod  string           `json:"payment_method"`
	Customer       checkoutCustomer `json:"customer"`
	Items          []checkoutLine   `json:"items"`
}

type checkoutResponse struct {
	OrderID        string `json:"order_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	PaymentStatus  string `json:"payment_status"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	lines := make([]appOrder.LineInput, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, appOrder.LineInput{
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice * 100, // whole units -> minor units
		})
	}

	result, err := h.place.Execute(r.Context(), appOrder.PlaceOrderInput{
		IdempotencyKey: req.IdempotencyKey,
		PaymentMethod:  req.PaymentMethod,
		Customer: domainOrder.Customer{
			Name:    req.Customer.Name,
			Phone:   req.Customer.Phone,
			Email:   req.Customer.Email,
			Address: req.Customer.Address,
		},
		Lines: lines,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{
		OrderID:        result.OrderID,
		GatewayOrderID: result.GatewayOrderID,
		Amount:         result.Amount,
		Currency:       result.Currency,
		Status:         string(result.Status),
		PaymentStatus:  string(result.PaymentStatus),
	})
}

type verifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

func (h *Handler) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "failed"})
		return
	}

	_, err := h.confirm.Execute(r.Context(), appOrder.ConfirmPaymentInput{
		GatewayOrderID:   req.RazorpayOrderID,
		GatewayPaymentID: req.RazorpayPaymentID,
		Signature:        req.RazorpaySignature,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	case errors.Is(err, appOrder.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "failed"})
	case errors.Is(err, appOrder.ErrSignatureInvalid), errors.Is(err, appOrder.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "failed"})
	default:
		// Never leak internals on the payment path.
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "failed"})
	}
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	// The signature covers the exact bytes on the wire, so the body is kept
	// raw; decoding happens inside the use case after verification.
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.log.Warn("webhook_body_read_failed", observability.F("error", err.Error()))
		acknowledge(w)
		return
	}

	if err := h.webhook.Execute(r.Context(), appOrder.ProcessWebhookInput{
		Body:      body,
		Signature: r.Header.Get("X-Razorpay-Signature"),
	}); err != nil {
		// Deliberate trade-off: the provider always gets a 200 so it does not
		// retry-storm us; the rejection is on record for operators.
		h.log.Warn("webhook_not_processed", observability.F("error", err.Error()))
	}
	acknowledge(w)
}

func acknowledge(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.List(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(list))
}

func (h *Handler) handleOrdersByPhone(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.ListByPhone(r.Context(), chi.URLParam(r, "phone"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(list))
}

func (h *Handler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), chi.URLParam(r, "orderID")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleOrderStream serves the live order feed over server-sent events.
func (h *Handler) handleOrderStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	feed := h.orders.Subscribe(r.Context())
	for {
		select {
		case <-r.Context().Done():
			return
		case o, open := <-feed:
			if !open {
				return
			}
			payload, err := json.Marshal(toOrderResponse(o))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

type seedVariant struct {
	VariantID string `json:"variant_id"`
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	UnitPrice int64  `json:"unit_price"`
	Stock     int    `json:"stock"`
}

type seedRequest struct {
	Variants []seedVariant `json:"variants"`
}

func (h *Handler) handleSeedInventory(w http.ResponseWriter, r *http.Request) {
	var req seedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	variants := make([]domainInventory.Variant, 0, len(req.Variants))
	for _, v := range req.Variants {
		variants = append(variants, domainInventory.Variant{
			ID:        v.VariantID,
			ProductID: v.ProductID,
			Size:      v.Size,
			UnitPrice: v.UnitPrice,
			Stock:     v.Stock,
		})
	}
	if err := h.inventory.Seed(r.Context(), variants); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"seeded": len(variants)})
}

type variantResponse struct {
	VariantID string `json:"variant_id"`
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	UnitPrice int64  `json:"unit_price"`
	Stock     int    `json:"stock"`
}

func (h *Handler) handleGetVariant(w http.ResponseWriter, r *http.Request) {
	v, err := h.inventory.GetVariant(r.Context(), chi.URLParam(r, "variantID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, variantResponse{
		VariantID: v.ID,
		ProductID: v.ProductID,
		Size:      v.Size,
		UnitPrice: v.UnitPrice,
		Stock:     v.Stock,
	})
}

type orderLineResponse struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type orderResponse struct {
	ID               string              `json:"id"`
	Lines            []orderLineResponse `json:"lines"`
	CustomerName     string              `json:"customer_name"`
	CustomerPhone    string              `json:"customer_phone"`
	TotalAmount      int64               `json:"total_amount"`
	Currency         string              `json:"currency"`
	PaymentMethod    string              `json:"payment_method"`
	PaymentStatus    string              `json:"payment_status"`
	Status           string              `json:"status"`
	GatewayOrderID   string              `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string              `json:"gateway_payment_id,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func toOrderResponse(o *domainOrder.Order) orderResponse {
	lines := make([]orderLineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, orderLineResponse{
			VariantID: l.VariantID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	return orderResponse{
		ID:               o.ID,
		Lines:            lines,
		CustomerName:     o.Customer.Name,
		CustomerPhone:    o.Customer.Phone,
		TotalAmount:      o.TotalAmount,
		Currency:         o.Currency,
		PaymentMethod:    o.PaymentMethod,
		PaymentStatus:    string(o.PaymentStatus),
		Status:           string(o.Status),
		GatewayOrderID:   o.GatewayOrderID,
		GatewayPaymentID: o.GatewayPaymentID,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

func toOrderResponses(list []*domainOrder.Order) []orderResponse {
	out := make([]orderResponse, 0, len(list))
	for _, o := range list {
		out = append(out, toOrderResponse(o))
	}
	return out
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type shortfallItem struct {
	VariantID string `json:"variant_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var shortfall *domainInventory.ShortfallError
	switch {
	case errors.As(err, &shortfall):
		items := make([]shortfallItem, 0, len(shortfall.Items))
		for _, s := range shortfall.Items {
			items = append(items, shortfallItem{
				VariantID: s.VariantID,
				Requested: s.Requested,
				Available: s.Available,
			})
		}
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "insufficient stock",
			"items": items,
		})
	case errors.Is(err, appOrder.ErrPriceMismatch):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, appOrder.ErrNotFound),
		errors.Is(err, domainOrder.ErrNotFound),
		errors.Is(err, domainInventory.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, appOrder.ErrValidation),
		errors.Is(err, appInventory.ErrValidation),
		errors.Is(err, domainOrder.ErrInvalidQuantity),
		errors.Is(err, domainInventory.ErrInvalidQuantity),
		errors.Is(err, domainPayment.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, appOrder.ErrConflict):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domainPayment.ErrGatewayUnavailable):
		writeError(w, http.StatusServiceUnavailable, errors.New("payment gateway unavailable, retry later"))
	default:
		h.log.Error("internal_error", observability.F("error", err.Error()))
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}
