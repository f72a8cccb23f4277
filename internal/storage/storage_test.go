package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/nostrvault/nostrvault/internal/common"
)

// partitionContract runs the behavior every Partition must satisfy.
func partitionContract(t *testing.T, p Partition) {
	t.Helper()
	ctx := context.Background()

	_, err := p.Get(ctx, "missing")
	require.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, p.Set(ctx, "a", []byte("1")))
	require.NoError(t, p.Set(ctx, "b", []byte("2")))
	require.NoError(t, p.Set(ctx, "a", []byte("3"))) // overwrite

	v, err := p.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, []byte("3"), v)

	keys, err := p.Keys(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, keys)

	require.NoError(t, p.Delete(ctx, "a"))
	require.NoError(t, p.Delete(ctx, "a")) // idempotent
	_, err = p.Get(ctx, "a")
	require.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, p.Clear(ctx))
	keys, err = p.Keys(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestMemoryPartition(t *testing.T) {
	partitionContract(t, NewMemoryPartition())
}

func TestSQLitePartition(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, "file:storagetest?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	partitionContract(t, NewSQLitePartition(db, "sync"))
}

func TestSQLitePartition_Isolation(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, "file:storageisol?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	a := NewSQLitePartition(db, "sync")
	b := NewSQLitePartition(db, "settings")

	require.NoError(t, a.Set(ctx, "k", []byte("sync-value")))
	require.NoError(t, b.Set(ctx, "k", []byte("settings-value")))

	v, err := a.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("sync-value"), v)

	require.NoError(t, a.Clear(ctx))
	_, err = a.Get(ctx, "k")
	require.ErrorIs(t, err, common.ErrNotFound)

	v, err = b.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("settings-value"), v)
}
