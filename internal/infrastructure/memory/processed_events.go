package memory

import (
	"context"
	"sync"
	"time"
)

// ProcessedEventStore is the dedup marker for webhook deliveries: one entry
// per gateway payment id, kept in memory. Markers older than the retention
// window are dropped lazily on write.
type ProcessedEventStore struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	retention time.Duration
}

func NewProcessedEventStore() *ProcessedEventStore {
	return &ProcessedEventStore{
		seen:      make(map[string]time.Time),
		retention: 24 * time.Hour,
	}
}

// MarkProcessed records the payment id and reports whether this is its first
// delivery.
func (s *ProcessedEventStore) MarkProcessed(ctx context.Context, gatewayPaymentID string) (bool, error) {
	_ = ctx
	if gatewayPaymentID == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for id, at := range s.seen {
		if now.Sub(at) > s.retention {
			delete(s.seen, id)
		}
	}

	if _, dup := s.seen[gatewayPaymentID]; dup {
		return false, nil
	}
	s.seen[gatewayPaymentID] = now
	return true, nil
}
