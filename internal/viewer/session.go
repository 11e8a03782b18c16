// Package viewer maintains a live, bounded window onto one endpoint's
// captures for a connected client.
package viewer

import (
	"context"
	"fmt"
	"sync"

	"github.com/whookdev/inspector/internal/models"
	"github.com/whookdev/inspector/internal/pubsub"
)

// Session is one viewer's subscription to an endpoint. It mirrors the
// store's retention cap: new captures are prepended and the window is
// truncated, so the viewer's list and the stored set never diverge for
// longer than one notification delivery.
//
// The stream does not replay history; callers Seed the window with a
// snapshot fetched from storage after the subscription is open, so a
// capture stored while the viewer attaches is never lost (it may be
// delivered twice, which the prepend keeps harmless).
type Session struct {
	endpointID string
	limit      int
	sub        *pubsub.Subscription

	mu       sync.Mutex
	captures []models.CapturedRequest
}

// NewSession subscribes to the endpoint with an empty window.
func NewSession(ctx context.Context, broker pubsub.Broker, endpointID string, limit int) (*Session, error) {
	sub, err := broker.Subscribe(ctx, endpointID)
	if err != nil {
		return nil, fmt.Errorf("subscribing to endpoint: %w", err)
	}

	return &Session{
		endpointID: endpointID,
		limit:      limit,
		sub:        sub,
	}, nil
}

// Seed replaces the window with a history snapshot (newest first, truncated
// to the window limit). Call once, before consuming Notifications.
func (s *Session) Seed(history []models.CapturedRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(history) > s.limit {
		history = history[:s.limit]
	}
	s.captures = make([]models.CapturedRequest, len(history))
	copy(s.captures, history)
}

// Notifications is the stream of newly stored captures, in storage order.
// The channel is closed after Release.
func (s *Session) Notifications() <-chan *models.CapturedRequest {
	return s.sub.C
}

// Apply prepends a newly delivered capture and truncates the window.
func (s *Session) Apply(capture *models.CapturedRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.captures = append([]models.CapturedRequest{*capture}, s.captures...)
	if len(s.captures) > s.limit {
		s.captures = s.captures[:s.limit]
	}
}

// Snapshot returns a copy of the current window, newest first.
func (s *Session) Snapshot() []models.CapturedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.CapturedRequest, len(s.captures))
	copy(out, s.captures)
	return out
}

// Release ends the subscription. No notification is delivered afterwards;
// safe to call more than once.
func (s *Session) Release() {
	s.sub.Close()
}
