package payment

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidAmount = errors.New("payment: amount must be a positive integer in minor units")
	// ErrGatewayUnavailable marks transport-level provider failures; callers
	// may retry after compensating any provisional effects.
	ErrGatewayUnavailable = errors.New("payment: gateway unavailable")
)

// Intent is the provider-side record of an expected payment, created before
// the customer pays. Immutable once created.
type Intent struct {
	GatewayOrderID string
	Amount         int64
	Currency       string
	Receipt        string
	CreatedAt      time.Time
}

// Gateway creates payment intents and authenticates client-supplied
// confirmations against the shared key secret.
type Gateway interface {
	// CreateIntent registers an expected payment of amount minor units with
	// the provider, tagged with the order id as receipt reference.
	CreateIntent(ctx context.Context, amount int64, currency, receipt string) (*Intent, error)

	// VerifyPaymentSignature reports whether signature matches
	// HMAC-SHA256(secret, gatewayOrderID + "|" + gatewayPaymentID). The
	// comparison is constant-time and the expected value is never exposed.
	VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool
}

// Webhook event types the orchestrator acts on. Anything else is acknowledged
// and ignored.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

// WebhookEvent is the decoded form of a provider notification. The raw body
// is transient; only the payment id survives, as a dedup marker.
type WebhookEvent struct {
	Event            string
	GatewayPaymentID string
	GatewayOrderID   string
}

// WebhookCodec authenticates and decodes provider webhooks. Verify operates
// on the exact raw bytes of the request body; re-serialized JSON must never be
// signed or checked.
type WebhookCodec interface {
	Verify(rawBody []byte, signature string) bool
	Decode(rawBody []byte) (*WebhookEvent, error)
}
