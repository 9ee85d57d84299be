package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/aranya-atelier/checkout-core/internal/domain/payment"
)

// WebhookVerifier authenticates provider webhooks with the webhook-specific
// secret. Verification runs over the exact raw request bytes: re-serializing
// the parsed body can change the byte layout and silently invalidate every
// check, so decoding happens only after the signature passes.
type WebhookVerifier struct {
	secret []byte
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: []byte(secret)}
}

func (v *WebhookVerifier) Verify(rawBody []byte, signature string) bool {
	if len(rawBody) == 0 || signature == "" {
		return false
	}
	expected := signHex(v.secret, rawBody)
	return constantTimeEqual(expected, signature)
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func (v *WebhookVerifier) Decode(rawBody []byte) (*payment.WebhookEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		return nil, fmt.Errorf("razorpay: decode webhook: %w", err)
	}
	return &payment.WebhookEvent{
		Event:            env.Event,
		GatewayPaymentID: env.Payload.Payment.Entity.ID,
		GatewayOrderID:   env.Payload.Payment.Entity.OrderID,
	}, nil
}

func signHex(secret, message []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// constantTimeEqual compares hex signatures without leaking where they
// diverge. The expected value is never returned to callers.
func constantTimeEqual(expected, supplied string) bool {
	if len(expected) != len(supplied) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) == 1
}
