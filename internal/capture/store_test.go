package capture

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whookdev/inspector/internal/models"
	"github.com/whookdev/inspector/internal/pubsub"
	"github.com/whookdev/inspector/internal/storage/sqlite"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStack(t *testing.T, limit int) (*Store, *sqlite.Store, *pubsub.MemoryBroker, string) {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	broker := pubsub.NewMemoryBroker(discardLogger())

	s, err := NewStore(db, broker, limit, discardLogger())
	require.NoError(t, err)

	ep := &models.Endpoint{
		ID:        uuid.NewString(),
		OwnerID:   "owner-1",
		Key:       "testkey",
		Name:      "Untitled Endpoint",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.CreateEndpoint(ctx, ep))

	return s, db, broker, ep.ID
}

func testCapture(createdAt time.Time) *models.CapturedRequest {
	return &models.CapturedRequest{
		Method:      "POST",
		Headers:     map[string]string{},
		QueryParams: map[string]string{},
		Body:        json.RawMessage(`{"n":1}`),
		IPAddress:   "203.0.113.7",
		CreatedAt:   createdAt,
	}
}

func TestStoreAssignsIdentity(t *testing.T) {
	s, db, _, endpointID := newTestStack(t, 100)
	ctx := context.Background()

	stored, err := s.Store(ctx, endpointID, testCapture(time.Time{}))
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, endpointID, stored.EndpointID)
	assert.False(t, stored.CreatedAt.IsZero())

	count, err := db.CountCapturedRequests(ctx, endpointID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRetentionTrimsOldest(t *testing.T) {
	s, db, _, endpointID := newTestStack(t, 100)
	ctx := context.Background()

	// 105 sequential stores with strictly increasing timestamps.
	base := time.Now().UTC()
	var ids []string
	for i := 0; i < 105; i++ {
		stored, err := s.Store(ctx, endpointID, testCapture(base.Add(time.Duration(i)*time.Millisecond)))
		require.NoError(t, err)
		ids = append(ids, stored.ID)
	}

	count, err := db.CountCapturedRequests(ctx, endpointID)
	require.NoError(t, err)
	assert.Equal(t, 100, count)

	captures, err := db.ListCapturedRequests(ctx, endpointID, 200)
	require.NoError(t, err)
	require.Len(t, captures, 100)

	surviving := make(map[string]bool, len(captures))
	for _, c := range captures {
		surviving[c.ID] = true
	}
	// The oldest 5 are gone; the newest 100 all survive.
	for _, id := range ids[:5] {
		assert.Falsef(t, surviving[id], "oldest capture %s should have been evicted", id)
	}
	for _, id := range ids[5:] {
		assert.Truef(t, surviving[id], "recent capture %s should have survived", id)
	}
}

func TestRetentionCapUnderConcurrency(t *testing.T) {
	s, db, _, endpointID := newTestStack(t, 100)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 150)
	for i := 0; i < 150; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Store(ctx, endpointID, testCapture(time.Now().UTC())); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent store failed: %v", err)
	}

	count, err := db.CountCapturedRequests(ctx, endpointID)
	require.NoError(t, err)
	assert.Equal(t, 100, count)
}

func TestDistinctEndpointsDoNotShareCap(t *testing.T) {
	s, db, _, endpointID := newTestStack(t, 100)
	ctx := context.Background()

	other := &models.Endpoint{
		ID:        uuid.NewString(),
		OwnerID:   "owner-1",
		Key:       "otherkey",
		Name:      "Untitled Endpoint",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.CreateEndpoint(ctx, other))

	for i := 0; i < 60; i++ {
		_, err := s.Store(ctx, endpointID, testCapture(time.Now().UTC()))
		require.NoError(t, err)
		_, err = s.Store(ctx, other.ID, testCapture(time.Now().UTC()))
		require.NoError(t, err)
	}

	for _, id := range []string{endpointID, other.ID} {
		count, err := db.CountCapturedRequests(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 60, count)
	}
}

func TestStorePublishesInStorageOrder(t *testing.T) {
	s, _, broker, endpointID := newTestStack(t, 100)
	ctx := context.Background()

	sub, err := broker.Subscribe(ctx, endpointID)
	require.NoError(t, err)
	defer sub.Close()

	var stored []string
	for i := 0; i < 5; i++ {
		rec, err := s.Store(ctx, endpointID, testCapture(time.Now().UTC()))
		require.NoError(t, err)
		stored = append(stored, rec.ID)
	}

	// Exactly one notification per stored record, in storage order.
	for i := 0; i < 5; i++ {
		select {
		case got := <-sub.C:
			assert.Equal(t, stored[i], got.ID, "notification %d out of order", i)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for notification %d", i)
		}
	}
	select {
	case extra := <-sub.C:
		t.Fatalf("unexpected extra notification %s", extra.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStoreUnknownEndpointFails(t *testing.T) {
	s, db, _, _ := newTestStack(t, 100)
	ctx := context.Background()

	// Foreign key constraint rejects captures for endpoints that don't exist.
	_, err := s.Store(ctx, uuid.NewString(), testCapture(time.Now().UTC()))
	require.Error(t, err)

	count, err := db.CountCapturedRequests(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, count)
}
