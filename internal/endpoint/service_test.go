package endpoint

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whookdev/inspector/internal/keygen"
	"github.com/whookdev/inspector/internal/storage"
	"github.com/whookdev/inspector/internal/storage/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := NewService(db, 100, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func TestCreateGeneratesKey(t *testing.T) {
	s := newTestService(t)

	ep, err := s.Create(context.Background(), "owner-1", "My Hook")
	require.NoError(t, err)
	assert.NotEmpty(t, ep.ID)
	assert.Len(t, ep.Key, keygen.KeyLength)
	assert.Equal(t, "My Hook", ep.Name)
	assert.Equal(t, "owner-1", ep.OwnerID)
}

func TestCreateDefaultsBlankName(t *testing.T) {
	s := newTestService(t)

	for _, name := range []string{"", "   "} {
		ep, err := s.Create(context.Background(), "owner-1", name)
		require.NoError(t, err)
		assert.Equal(t, DefaultName, ep.Name)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	ep, err := s.Create(ctx, "owner-1", "hook")
	require.NoError(t, err)

	first, err := s.Resolve(ctx, ep.Key)
	require.NoError(t, err)
	second, err := s.Resolve(ctx, ep.Key)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.OwnerID, second.OwnerID)
}

func TestResolveUnknownKey(t *testing.T) {
	s := newTestService(t)

	_, err := s.Resolve(context.Background(), "no-such-key")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteRemovesEndpoint(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	ep, err := s.Create(ctx, "owner-1", "hook")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "owner-1", ep.ID))

	_, err = s.Resolve(ctx, ep.Key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListScopedToOwner(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "owner-1", "mine")
	require.NoError(t, err)
	_, err = s.Create(ctx, "owner-2", "theirs")
	require.NoError(t, err)

	endpoints, err := s.List(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, endpoints, 1)
	assert.Equal(t, "mine", endpoints[0].Name)
}
