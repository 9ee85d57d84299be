package razorpay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aranya-atelier/checkout-core/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateIntent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "key_id", user)
		assert.Equal(t, "key_secret", pass)

		var req createOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(99800), req.Amount)
		assert.Equal(t, "INR", req.Currency)
		assert.Equal(t, "order-1", req.Receipt)
		assert.Equal(t, 1, req.PaymentCapture)

		_ = json.NewEncoder(w).Encode(createOrderResponse{
			ID: "rzp_order_1", Amount: req.Amount, Currency: req.Currency,
			Receipt: req.Receipt, CreatedAt: 1700000000,
		})
	}))
	t.Cleanup(server.Close)

	c := NewClient(Config{KeyID: "key_id", KeySecret: "key_secret", BaseURL: server.URL}, nil)

	intent, err := c.CreateIntent(context.Background(), 99800, "INR", "order-1")
	require.NoError(t, err)
	assert.Equal(t, "rzp_order_1", intent.GatewayOrderID)
	assert.Equal(t, int64(99800), intent.Amount)
	assert.Equal(t, "INR", intent.Currency)
	assert.Equal(t, "order-1", intent.Receipt)
}

func TestClient_CreateIntentRejectsNonPositiveAmount(t *testing.T) {
	c := NewClient(Config{}, nil)

	_, err := c.CreateIntent(context.Background(), 0, "INR", "order-1")
	assert.ErrorIs(t, err, payment.ErrInvalidAmount)

	_, err = c.CreateIntent(context.Background(), -100, "INR", "order-1")
	assert.ErrorIs(t, err, payment.ErrInvalidAmount)
}

func TestClient_CreateIntentServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	c := NewClient(Config{BaseURL: server.URL}, nil)

	_, err := c.CreateIntent(context.Background(), 100, "INR", "order-1")
	assert.ErrorIs(t, err, payment.ErrGatewayUnavailable)
}

func TestClient_CreateIntentRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)

	c := NewClient(Config{BaseURL: server.URL}, nil)

	_, err := c.CreateIntent(context.Background(), 100, "INR", "order-1")
	require.Error(t, err)
	// Provider rejections are not availability failures.
	assert.NotErrorIs(t, err, payment.ErrGatewayUnavailable)
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	c := NewClient(Config{BaseURL: server.URL}, nil)

	for i := 0; i < 5; i++ {
		_, err := c.CreateIntent(context.Background(), 100, "INR", "order-1")
		assert.ErrorIs(t, err, payment.ErrGatewayUnavailable)
	}

	// The breaker is now open; the request short-circuits without a call.
	server.Close()
	_, err := c.CreateIntent(context.Background(), 100, "INR", "order-1")
	assert.ErrorIs(t, err, payment.ErrGatewayUnavailable)
}
