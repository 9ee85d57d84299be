package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aranya-atelier/checkout-core/internal/domain/payment"
	"github.com/aranya-atelier/checkout-core/internal/observability"
	"github.com/sony/gobreaker/v2"
)

const defaultBaseURL = "https://api.razorpay.com"

// Config carries the gateway credentials. The key secret signs payment
// confirmations and must never appear in logs or responses.
type Config struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Timeout   time.Duration
}

// Client talks to the Razorpay orders API. Calls run behind a circuit breaker;
// an open breaker surfaces as payment.ErrGatewayUnavailable, which callers
// treat as retryable.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*payment.Intent]
	baseURL    string
	keyID      string
	keySecret  string
	log        observability.Logger
}

func NewClient(cfg Config, logger observability.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	logger = logger.With(observability.F("component", "razorpay_client"))

	breaker := gobreaker.NewCircuitBreaker[*payment.Intent](gobreaker.Settings{
		Name:        "razorpay",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Provider-side rejections are not availability failures; only
		// transport errors and 5xx responses should trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, payment.ErrGatewayUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit_breaker_state_change",
				observability.F("breaker", name),
				observability.F("from", from.String()),
				observability.F("to", to.String()),
			)
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		baseURL:    cfg.BaseURL,
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		log:        logger,
	}
}

type createOrderRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	PaymentCapture int    `json:"payment_capture"`
}

type createOrderResponse struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Receipt   string `json:"receipt"`
	CreatedAt int64  `json:"created_at"`
}

// CreateIntent registers a gateway order for amount minor units, tagged with
// the local order id as receipt reference.
func (c *Client) CreateIntent(ctx context.Context, amount int64, currency, receipt string) (*payment.Intent, error) {
	if amount <= 0 {
		return nil, payment.ErrInvalidAmount
	}

	intent, err := c.breaker.Execute(func() (*payment.Intent, error) {
		return c.createOrder(ctx, amount, currency, receipt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", payment.ErrGatewayUnavailable)
		}
		return nil, err
	}
	return intent, nil
}

func (c *Client) createOrder(ctx context.Context, amount int64, currency, receipt string) (*payment.Intent, error) {
	body, err := json.Marshal(createOrderRequest{
		Amount:         amount,
		Currency:       currency,
		Receipt:        receipt,
		PaymentCapture: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("razorpay: encode order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("razorpay: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", payment.ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		// Rejection detail stays server-side; callers only see the status.
		c.log.Warn("gateway_order_rejected", observability.F("status", resp.StatusCode))
		return nil, fmt.Errorf("razorpay: create order rejected with status %d", resp.StatusCode)
	}

	var out createOrderResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", payment.ErrGatewayUnavailable, err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: response missing order id", payment.ErrGatewayUnavailable)
	}

	return &payment.Intent{
		GatewayOrderID: out.ID,
		Amount:         out.Amount,
		Currency:       out.Currency,
		Receipt:        out.Receipt,
		CreatedAt:      time.Unix(out.CreatedAt, 0).UTC(),
	}, nil
}

// VerifyPaymentSignature checks the signature a client echoes back after
// completing checkout: HMAC-SHA256(keySecret, orderID + "|" + paymentID).
func (c *Client) VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	if gatewayOrderID == "" || gatewayPaymentID == "" || signature == "" {
		return false
	}
	expected := signHex([]byte(c.keySecret), []byte(gatewayOrderID+"|"+gatewayPaymentID))
	return constantTimeEqual(expected, signature)
}
