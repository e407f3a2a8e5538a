package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/flexprice/dunning/internal/domain/snapshot"
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewStore(dir, logger.NewNoopLogger())
	require.NoError(t, err)

	_, err = store.Get(ctx, "tenant-1", snapshot.DocApprovals)
	assert.True(t, ierr.IsNotFound(err))

	require.NoError(t, store.Put(ctx, "tenant-1", snapshot.DocApprovals, []byte(`{"records":{}}`)))
	require.NoError(t, store.Put(ctx, "tenant-1", snapshot.DocApprovals, []byte(`{"records":{"a":{}}}`)))

	data, err := store.Get(ctx, "tenant-1", snapshot.DocApprovals)
	require.NoError(t, err)
	assert.Equal(t, `{"records":{"a":{}}}`, string(data))

	_, err = os.Stat(filepath.Join(dir, "tenant-1", "approvals.json"))
	assert.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "tenant-1", snapshot.DocApprovals))
	require.NoError(t, store.Delete(ctx, "tenant-1", snapshot.DocApprovals))
	_, err = store.Get(ctx, "tenant-1", snapshot.DocApprovals)
	assert.True(t, ierr.IsNotFound(err))
}

func TestStoreIsolatesTenants(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(t.TempDir(), logger.NewNoopLogger())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "tenant-a", snapshot.DocSentKeys, []byte("a")))
	_, err = store.Get(ctx, "tenant-b", snapshot.DocSentKeys)
	assert.True(t, ierr.IsNotFound(err))
}

func TestStoreRejectsTraversal(t *testing.T) {
	store, err := NewStore(t.TempDir(), logger.NewNoopLogger())
	require.NoError(t, err)

	err = store.Put(context.Background(), "../escape", snapshot.DocSentKeys, []byte("x"))
	assert.True(t, ierr.IsValidation(err))
}
