package payment

import "time"

// WebhookRejectedEvent records a webhook whose signature did not verify. The
// endpoint still acknowledges the provider; this event is the audit trail.
type WebhookRejectedEvent struct {
	Reason     string
	OccurredAt time.Time
}

func (WebhookRejectedEvent) EventName() string { return "webhook.rejected" }
