// Package sqlite implements the storage.Storer interface on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/whookdev/inspector/internal/models"
	"github.com/whookdev/inspector/internal/storage"
)

// Store implements storage.Storer for SQLite.
type Store struct {
	db *sql.DB
}

// New opens the database file, enables foreign keys and WAL, and runs
// migrations so the schema is up to date.
func New(ctx context.Context, dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS endpoints (
	id           TEXT PRIMARY KEY,
	owner_id     TEXT NOT NULL,
	endpoint_key TEXT NOT NULL UNIQUE,
	name         TEXT NOT NULL,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_endpoints_owner_id ON endpoints (owner_id);

CREATE TABLE IF NOT EXISTS captured_requests (
	id           TEXT PRIMARY KEY,
	endpoint_id  TEXT NOT NULL,
	method       TEXT NOT NULL,
	headers      TEXT NOT NULL,
	query_params TEXT NOT NULL,
	body         TEXT,
	ip_address   TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	FOREIGN KEY(endpoint_id) REFERENCES endpoints(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_captured_requests_endpoint_created ON captured_requests (endpoint_id, created_at DESC);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// CreateEndpoint inserts a new endpoint. A routing-key collision surfaces as
// storage.ErrDuplicateKey; the caller treats it as a hard create failure.
func (s *Store) CreateEndpoint(ctx context.Context, endpoint *models.Endpoint) error {
	query := `INSERT INTO endpoints (id, owner_id, endpoint_key, name, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		endpoint.ID, endpoint.OwnerID, endpoint.Key, endpoint.Name,
		endpoint.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert endpoint: %w", err)
	}
	return nil
}

// FindEndpointByKey resolves a routing key to its endpoint. SQLite TEXT
// comparison is case-sensitive by default, which is the required lookup rule.
func (s *Store) FindEndpointByKey(ctx context.Context, key string) (*models.Endpoint, error) {
	query := `SELECT id, owner_id, endpoint_key, name, created_at FROM endpoints WHERE endpoint_key = ?`
	return s.scanEndpoint(s.db.QueryRowContext(ctx, query, key))
}

// GetEndpointByID retrieves a single endpoint by its unique ID.
func (s *Store) GetEndpointByID(ctx context.Context, id string) (*models.Endpoint, error) {
	query := `SELECT id, owner_id, endpoint_key, name, created_at FROM endpoints WHERE id = ?`
	return s.scanEndpoint(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) scanEndpoint(row *sql.Row) (*models.Endpoint, error) {
	var e models.Endpoint
	var createdAtStr string
	err := row.Scan(&e.ID, &e.OwnerID, &e.Key, &e.Name, &createdAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan endpoint: %w", err)
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	return &e, nil
}

// ListEndpoints returns the owner's endpoints, newest first.
func (s *Store) ListEndpoints(ctx context.Context, ownerID string) ([]models.Endpoint, error) {
	query := `SELECT id, owner_id, endpoint_key, name, created_at FROM endpoints WHERE owner_id = ? ORDER BY created_at DESC, id`
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []models.Endpoint
	for rows.Next() {
		var e models.Endpoint
		var createdAtStr string
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Key, &e.Name, &createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan endpoint: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
		endpoints = append(endpoints, e)
	}
	return endpoints, rows.Err()
}

// DeleteEndpoint removes an endpoint owned by ownerID; its captured requests
// go with it via the ON DELETE CASCADE constraint.
func (s *Store) DeleteEndpoint(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM endpoints WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete endpoint: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// InsertCapturedRequest persists a single normalized capture. Timestamps are
// stored as integer unix nanoseconds so that the retention trim's ordering is
// exact; RFC3339 strings truncate trailing zeros and do not sort reliably.
func (s *Store) InsertCapturedRequest(ctx context.Context, capture *models.CapturedRequest) error {
	headers, err := json.Marshal(capture.Headers)
	if err != nil {
		return fmt.Errorf("failed to encode headers: %w", err)
	}
	queryParams, err := json.Marshal(capture.QueryParams)
	if err != nil {
		return fmt.Errorf("failed to encode query params: %w", err)
	}
	var body any
	if capture.Body != nil {
		body = string(capture.Body)
	}

	query := `
INSERT INTO captured_requests (id, endpoint_id, method, headers, query_params, body, ip_address, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		capture.ID, capture.EndpointID, capture.Method, string(headers), string(queryParams),
		body, capture.IPAddress, capture.CreatedAt.UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert captured request: %w", err)
	}
	return nil
}

// CountCapturedRequests returns the number of captures currently stored for
// the endpoint.
func (s *Store) CountCapturedRequests(ctx context.Context, endpointID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM captured_requests WHERE endpoint_id = ?`, endpointID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count captured requests: %w", err)
	}
	return count, nil
}

// DeleteOldestCapturedRequest removes the single oldest capture for the
// endpoint, with the row id as tiebreak for identical timestamps.
func (s *Store) DeleteOldestCapturedRequest(ctx context.Context, endpointID string) error {
	query := `
DELETE FROM captured_requests WHERE id = (
	SELECT id FROM captured_requests WHERE endpoint_id = ? ORDER BY created_at ASC, id ASC LIMIT 1
)`
	if _, err := s.db.ExecContext(ctx, query, endpointID); err != nil {
		return fmt.Errorf("failed to delete oldest captured request: %w", err)
	}
	return nil
}

// ListCapturedRequests returns up to limit captures for the endpoint, newest
// first.
func (s *Store) ListCapturedRequests(ctx context.Context, endpointID string, limit int) ([]models.CapturedRequest, error) {
	query := `
SELECT id, endpoint_id, method, headers, query_params, body, ip_address, created_at
FROM captured_requests WHERE endpoint_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, endpointID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list captured requests: %w", err)
	}
	defer rows.Close()

	var captures []models.CapturedRequest
	for rows.Next() {
		var c models.CapturedRequest
		var headers, queryParams string
		var body sql.NullString
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.EndpointID, &c.Method, &headers, &queryParams, &body, &c.IPAddress, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan captured request: %w", err)
		}
		if err := json.Unmarshal([]byte(headers), &c.Headers); err != nil {
			return nil, fmt.Errorf("failed to decode headers: %w", err)
		}
		if err := json.Unmarshal([]byte(queryParams), &c.QueryParams); err != nil {
			return nil, fmt.Errorf("failed to decode query params: %w", err)
		}
		if body.Valid {
			c.Body = json.RawMessage(body.String)
		}
		c.CreatedAt = time.Unix(0, createdAt).UTC()
		captures = append(captures, c)
	}
	return captures, rows.Err()
}
