// Package pubsub delivers newly stored captures to live subscribers. Topics
// are keyed by endpoint id; delivery is ordered per endpoint and best-effort.
package pubsub

import (
	"context"
	"sync"

	"github.com/whookdev/inspector/internal/models"
)

// subscriberBuffer bounds how far a slow viewer may lag before newer
// notifications are dropped, matching the retention horizon.
const subscriberBuffer = 100

// Broker publishes stored captures and hands out per-endpoint subscriptions.
type Broker interface {
	Publish(ctx context.Context, endpointID string, capture *models.CapturedRequest) error
	Subscribe(ctx context.Context, endpointID string) (*Subscription, error)
}

// Subscription is one subscriber's feed for a single endpoint. C is closed
// after Close returns; no delivery is attempted after release.
type Subscription struct {
	C <-chan *models.CapturedRequest

	cancel func()
	once   sync.Once
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}
