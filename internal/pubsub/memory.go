package pubsub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/whookdev/inspector/internal/models"
)

// MemoryBroker is an in-process Broker for single-node deployments and
// tests. Channel sends happen under the per-broker lock, so subscribers see
// notifications in publish order.
type MemoryBroker struct {
	mu          sync.Mutex
	subscribers map[string]map[string]chan *models.CapturedRequest
	logger      *slog.Logger
}

// NewMemoryBroker creates an in-process broker.
func NewMemoryBroker(logger *slog.Logger) *MemoryBroker {
	return &MemoryBroker{
		subscribers: make(map[string]map[string]chan *models.CapturedRequest),
		logger:      logger.With("component", "memory_broker"),
	}
}

// Publish fans the capture out to every subscriber of the endpoint. A
// subscriber whose buffer is full misses the notification rather than
// blocking ingestion.
func (b *MemoryBroker) Publish(_ context.Context, endpointID string, capture *models.CapturedRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers[endpointID] {
		select {
		case ch <- capture:
		default:
			b.logger.Warn("subscriber buffer full, dropping notification",
				"endpoint_id", endpointID,
				"subscriber_id", id,
			)
		}
	}
	return nil
}

// Subscribe registers a new subscriber for the endpoint.
func (b *MemoryBroker) Subscribe(_ context.Context, endpointID string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan *models.CapturedRequest, subscriberBuffer)
	if b.subscribers[endpointID] == nil {
		b.subscribers[endpointID] = make(map[string]chan *models.CapturedRequest)
	}
	b.subscribers[endpointID][id] = ch

	return &Subscription{
		C: ch,
		cancel: func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers[endpointID], id)
			if len(b.subscribers[endpointID]) == 0 {
				delete(b.subscribers, endpointID)
			}
			close(ch)
		},
	}, nil
}
