package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	e "filmcode-tg-bot/pkg/entities"
)

func newTestSQLite(t *testing.T, mode e.StorageMode, path string) *SQLite {
	t.Helper()

	store, err := NewSQLite(context.Background(), path, mode)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestSQLiteAddMapsUniqueViolation(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t, e.ModeDurable, filepath.Join(t.TempDir(), "movies.sqlite"))

	require.NoError(t, store.Add(ctx, e.MovieEntry{Code: "001", MessageID: 5, ChatID: -100500}))

	err := store.Add(ctx, e.MovieEntry{Code: "001", MessageID: 6, ChatID: -100501, Link: link("https://example.com")})
	assert.ErrorIs(t, err, e.ErrDuplicateCode)

	found, err := store.Find(ctx, "001")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 5, found.MessageID)
	assert.Nil(t, found.Link)
}

func TestSQLiteFindMissReturnsNil(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t, e.ModeDurable, filepath.Join(t.TempDir(), "movies.sqlite"))

	found, err := store.Find(ctx, "999")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestSQLiteDeleteReportsRemoval(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t, e.ModeDurable, filepath.Join(t.TempDir(), "movies.sqlite"))

	require.NoError(t, store.Add(ctx, e.MovieEntry{Code: "F10", MessageID: 1, ChatID: 1}))

	deleted, err := store.Delete(ctx, "F10")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(ctx, "F10")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSQLiteStorageModes(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "movies.sqlite")

	store := newTestSQLite(t, e.ModeDurable, path)
	require.NoError(t, store.Add(ctx, e.MovieEntry{Code: "A1", MessageID: 1, ChatID: 1}))
	require.NoError(t, store.Close())

	// durable reopen keeps entries
	store = newTestSQLite(t, e.ModeDurable, path)
	found, err := store.Find(ctx, "A1")
	require.NoError(t, err)
	assert.NotNil(t, found)
	require.NoError(t, store.Close())

	// ephemeral reopen starts from an empty table
	store = newTestSQLite(t, e.ModeEphemeral, path)
	found, err = store.Find(ctx, "A1")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestSQLiteListAllOrderedByInsertion(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t, e.ModeDurable, filepath.Join(t.TempDir(), "movies.sqlite"))

	for i, code := range []string{"B2", "A1", "C3"} {
		require.NoError(t, store.Add(ctx, e.MovieEntry{Code: code, MessageID: i + 1, ChatID: 7}))
	}

	entries, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{entries[0].Code, entries[1].Code, entries[2].Code}, []string{"B2", "A1", "C3"})
}
