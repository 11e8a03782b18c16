// Package storage defines the durable-store collaborator consumed by the
// capture pipeline and the dashboard API.
package storage

import (
	"context"
	"errors"

	"github.com/whookdev/inspector/internal/models"
)

var (
	// ErrNotFound is returned when a requested endpoint does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateKey is returned when an insert violates a uniqueness
	// constraint, e.g. a routing key collision. Callers treat it as a hard
	// failure; keys are never silently regenerated.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Storer is the storage interface for endpoints and their captured requests.
//
// FindEndpointByKey is an exact, case-sensitive match and is the only
// authorization gate on the ingestion path. DeleteEndpoint cascades to the
// endpoint's captured requests. The captured-request primitives (insert,
// count, delete-oldest) are individually simple; the capture store serializes
// them per endpoint to enforce the retention cap.
type Storer interface {
	CreateEndpoint(ctx context.Context, endpoint *models.Endpoint) error
	FindEndpointByKey(ctx context.Context, key string) (*models.Endpoint, error)
	GetEndpointByID(ctx context.Context, id string) (*models.Endpoint, error)
	ListEndpoints(ctx context.Context, ownerID string) ([]models.Endpoint, error)
	DeleteEndpoint(ctx context.Context, ownerID, id string) error

	InsertCapturedRequest(ctx context.Context, capture *models.CapturedRequest) error
	CountCapturedRequests(ctx context.Context, endpointID string) (int, error)
	DeleteOldestCapturedRequest(ctx context.Context, endpointID string) error
	ListCapturedRequests(ctx context.Context, endpointID string, limit int) ([]models.CapturedRequest, error)

	Close() error
}
