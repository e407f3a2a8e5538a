package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/flexprice/dunning/internal/config"
	"github.com/flexprice/dunning/internal/domain/snapshot"
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (snapshot.Repository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewStore(NewClient(config.RedisConfig{Address: mr.Addr()}), "dunning", logger.NewNoopLogger())
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	_, err := store.Get(ctx, "Tenant-1", snapshot.DocSentKeys)
	assert.True(t, ierr.IsNotFound(err))

	require.NoError(t, store.Put(ctx, "Tenant-1", snapshot.DocSentKeys, []byte(`{"keys":{}}`)))
	assert.True(t, mr.Exists("dunning:tenant-1:sent_keys"))

	data, err := store.Get(ctx, "tenant-1", snapshot.DocSentKeys)
	require.NoError(t, err)
	assert.Equal(t, `{"keys":{}}`, string(data))

	require.NoError(t, store.Delete(ctx, "tenant-1", snapshot.DocSentKeys))
	assert.False(t, mr.Exists("dunning:tenant-1:sent_keys"))
}

func TestStoreSurfacesBackendFailure(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	mr.Close()

	err := store.Put(ctx, "tenant-1", snapshot.DocSentKeys, []byte("x"))
	assert.True(t, ierr.IsPersistence(err))
}
