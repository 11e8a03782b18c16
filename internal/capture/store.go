// Package capture normalizes inbound requests and persists them with
// bounded retention.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/whookdev/inspector/internal/metrics"
	"github.com/whookdev/inspector/internal/models"
	"github.com/whookdev/inspector/internal/pubsub"
	"github.com/whookdev/inspector/internal/storage"
)

// DefaultRetentionLimit is the number of captures retained per endpoint.
const DefaultRetentionLimit = 100

// Store persists normalized captures, enforces the per-endpoint retention
// cap, and publishes a notification for each stored record.
//
// Insert, recount, trim, and publish run under a per-endpoint mutex: the cap
// holds under concurrent bursts to the same endpoint, and notifications
// reach the broker in the order records were stored. Distinct endpoints
// proceed fully in parallel.
type Store struct {
	store  storage.Storer
	broker pubsub.Broker
	limit  int
	logger *slog.Logger

	locks sync.Map // endpoint id -> *sync.Mutex
}

// NewStore creates a capture store.
func NewStore(store storage.Storer, broker pubsub.Broker, limit int, logger *slog.Logger) (*Store, error) {
	if store == nil {
		return nil, fmt.Errorf("storer cannot be nil")
	}
	if broker == nil {
		return nil, fmt.Errorf("broker cannot be nil")
	}
	if limit <= 0 {
		limit = DefaultRetentionLimit
	}
	return &Store{
		store:  store,
		broker: broker,
		limit:  limit,
		logger: logger.With("component", "capture_store"),
	}, nil
}

func (s *Store) endpointLock(endpointID string) *sync.Mutex {
	lock, _ := s.locks.LoadOrStore(endpointID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// Store persists the capture for the endpoint, trims overflow past the
// retention limit, and publishes the stored record. Storage failures are
// returned to the caller and not retried here.
func (s *Store) Store(ctx context.Context, endpointID string, capture *models.CapturedRequest) (*models.CapturedRequest, error) {
	capture.ID = uuid.NewString()
	capture.EndpointID = endpointID
	if capture.CreatedAt.IsZero() {
		capture.CreatedAt = time.Now().UTC()
	}

	lock := s.endpointLock(endpointID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.InsertCapturedRequest(ctx, capture); err != nil {
		return nil, fmt.Errorf("inserting captured request: %w", err)
	}

	count, err := s.store.CountCapturedRequests(ctx, endpointID)
	if err != nil {
		return nil, fmt.Errorf("counting captured requests: %w", err)
	}
	for count > s.limit {
		if err := s.store.DeleteOldestCapturedRequest(ctx, endpointID); err != nil {
			return nil, fmt.Errorf("trimming captured requests: %w", err)
		}
		metrics.EvictionsTotal.Inc()
		count--
	}

	// The record is durable at this point; notification delivery is
	// best-effort and must not fail the ingestion.
	if err := s.broker.Publish(ctx, endpointID, capture); err != nil {
		s.logger.Error("failed to publish capture notification",
			"endpoint_id", endpointID,
			"capture_id", capture.ID,
			"error", err,
		)
	}

	return capture, nil
}
