package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, dir
}

func TestNewStore(t *testing.T) {
	_, dir := newTestStore(t)
	_, err := os.Stat(filepath.Join(dir, dbName))
	assert.NoError(t, err)
}

func TestStore_RecordUse(t *testing.T) {
	store, _ := newTestStore(t)
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	require.NoError(t, store.RecordUse("cookie_aaaaaaaaaaaa", t1))
	require.NoError(t, store.RecordUse("cookie_aaaaaaaaaaaa", t2))

	stats, err := store.All()
	require.NoError(t, err)
	stat := stats["cookie_aaaaaaaaaaaa"]
	assert.Equal(t, 2, stat.UseCount)
	assert.Equal(t, t2, stat.LastUsedAt)
	assert.Nil(t, stat.Valid, "never checked")
	assert.True(t, stat.LastValidatedAt.IsZero())
}

func TestStore_RecordCheck(t *testing.T) {
	store, _ := newTestStore(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordCheck("cookie_bbbbbbbbbbbb", false, at))
	require.NoError(t, store.RecordUse("cookie_bbbbbbbbbbbb", at))

	stats, err := store.All()
	require.NoError(t, err)
	stat := stats["cookie_bbbbbbbbbbbb"]
	require.NotNil(t, stat.Valid)
	assert.False(t, *stat.Valid)
	assert.Equal(t, at, stat.LastValidatedAt)
	assert.Equal(t, 1, stat.UseCount)

	require.NoError(t, store.RecordCheck("cookie_bbbbbbbbbbbb", true, at.Add(time.Hour)))
	stats, _ = store.All()
	assert.True(t, *stats["cookie_bbbbbbbbbbbb"].Valid)
}

func TestStore_Delete(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.RecordUse("cookie_cccccccccccc", time.Now()))
	require.NoError(t, store.Delete("cookie_cccccccccccc"))
	require.NoError(t, store.Delete("cookie_cccccccccccc"))

	stats, err := store.All()
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.RecordUse("cookie_dddddddddddd", time.Now()))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	stats, err := reopened.All()
	require.NoError(t, err)
	assert.Equal(t, 1, stats["cookie_dddddddddddd"].UseCount)
}
