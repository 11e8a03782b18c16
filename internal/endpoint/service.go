// Package endpoint manages capture endpoints and resolves routing keys.
package endpoint

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/whookdev/inspector/internal/keygen"
	"github.com/whookdev/inspector/internal/models"
	"github.com/whookdev/inspector/internal/storage"
)

// DefaultName is used when an endpoint is created with a blank name.
const DefaultName = "Untitled Endpoint"

// Service owns endpoint lifecycle and lookups.
type Service struct {
	store        storage.Storer
	historyLimit int
	logger       *slog.Logger
}

// NewService creates an endpoint service. historyLimit caps History reads
// and should match the capture store's retention limit.
func NewService(store storage.Storer, historyLimit int, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("storer cannot be nil")
	}
	return &Service{
		store:        store,
		historyLimit: historyLimit,
		logger:       logger.With("component", "endpoint_service"),
	}, nil
}

// Create generates a routing key and inserts the endpoint. A key collision
// is a hard failure; a weaker key is never substituted and the insert is not
// retried.
func (s *Service) Create(ctx context.Context, ownerID, name string) (*models.Endpoint, error) {
	key, err := keygen.NewKey()
	if err != nil {
		return nil, fmt.Errorf("generating routing key: %w", err)
	}

	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}

	endpoint := &models.Endpoint{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Key:       key,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateEndpoint(ctx, endpoint); err != nil {
		return nil, fmt.Errorf("creating endpoint: %w", err)
	}

	s.logger.Info("endpoint created",
		"endpoint_id", endpoint.ID,
		"name", endpoint.Name,
	)
	return endpoint, nil
}

// Resolve maps a routing key to its endpoint. Exact, case-sensitive match;
// possession of the key is the only authorization on the ingestion path.
func (s *Service) Resolve(ctx context.Context, key string) (*models.Endpoint, error) {
	return s.store.FindEndpointByKey(ctx, key)
}

// Get retrieves an endpoint by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Endpoint, error) {
	return s.store.GetEndpointByID(ctx, id)
}

// List returns the owner's endpoints, newest first.
func (s *Service) List(ctx context.Context, ownerID string) ([]models.Endpoint, error) {
	return s.store.ListEndpoints(ctx, ownerID)
}

// Delete removes an endpoint owned by ownerID together with all of its
// captured requests.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.store.DeleteEndpoint(ctx, ownerID, id); err != nil {
		return err
	}
	s.logger.Info("endpoint deleted", "endpoint_id", id)
	return nil
}

// History returns the endpoint's most recent captures, newest first, capped
// to the retention horizon.
func (s *Service) History(ctx context.Context, id string) ([]models.CapturedRequest, error) {
	return s.store.ListCapturedRequests(ctx, id, s.historyLimit)
}
