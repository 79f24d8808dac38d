package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revahq/reva-widget/store"
)

func openTestDB(t *testing.T) store.Driver {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewDB_RequiresDSN(t *testing.T) {
	_, err := NewDB("")
	require.Error(t, err)
}

func TestGetSetDelete(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, db.Set(ctx, "k", "v1"))
	v, err := db.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	// Upsert overwrites.
	require.NoError(t, db.Set(ctx, "k", "v2"))
	v, err = db.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)

	require.NoError(t, db.Delete(ctx, "k"))
	_, err = db.Get(ctx, "k")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Deleting an absent key is not an error.
	require.NoError(t, db.Delete(ctx, "k"))
}

func TestValuesSurviveReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "kv.db")

	db, err := NewDB(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Set(ctx, "reva_session_id", "sess_abc"))
	require.NoError(t, db.Close())

	db, err = NewDB(dsn)
	require.NoError(t, err)
	defer db.Close()

	v, err := db.Get(ctx, "reva_session_id")
	require.NoError(t, err)
	assert.Equal(t, "sess_abc", v)
}
