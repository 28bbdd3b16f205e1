// ABOUTME: Tests for the SQLite CredentialStore
// ABOUTME: Covers lookup, idempotent upsert, status persistence, listing and migrations

package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/printauth/internal/authkey"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func countRows(t *testing.T, s *SQLiteStore) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM auth`).Scan(&n))
	return n
}

func TestStore_LookupNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Lookup(context.Background(), "app", "10.0.0.1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpsertAndLookup(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.Upsert(ctx, &Record{
		Application: "app",
		User:        "ops",
		Host:        "10.0.0.1",
		ID:          "A1",
		Key:         "K1",
	})
	require.NoError(t, err)

	rec, err := store.Lookup(ctx, "app", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "ops", rec.User)
	assert.Equal(t, "A1", rec.ID)
	assert.Equal(t, "K1", rec.Key)
	assert.Equal(t, authkey.StatusPending, rec.Status)
	assert.False(t, rec.UpdatedAt.IsZero())
}

func TestStore_UpsertIsIdempotentOverwrite(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &Record{Application: "app", User: "u1", Host: "h", ID: "A1", Key: "K1"}))
	require.NoError(t, store.Upsert(ctx, &Record{Application: "app", User: "u2", Host: "h", ID: "A2", Key: "K2"}))

	assert.Equal(t, 1, countRows(t, store))

	rec, err := store.Lookup(ctx, "app", "h")
	require.NoError(t, err)
	assert.Equal(t, "u2", rec.User)
	assert.Equal(t, "A2", rec.ID)
	assert.Equal(t, "K2", rec.Key)
}

func TestStore_UpsertResetsStatus(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &Record{Application: "app", User: "u", Host: "h", ID: "A1", Key: "K1"}))
	require.NoError(t, store.UpdateStatus(ctx, "app", "h", authkey.StatusUnauthorized))
	require.NoError(t, store.Upsert(ctx, &Record{Application: "app", User: "u", Host: "h", ID: "A2", Key: "K2"}))

	rec, err := store.Lookup(ctx, "app", "h")
	require.NoError(t, err)
	assert.Equal(t, authkey.StatusPending, rec.Status)
}

func TestStore_SameHostDifferentApplications(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &Record{Application: "app1", User: "u", Host: "h", ID: "A1", Key: "K1"}))
	require.NoError(t, store.Upsert(ctx, &Record{Application: "app2", User: "u", Host: "h", ID: "B1", Key: "K2"}))

	assert.Equal(t, 2, countRows(t, store))

	rec, err := store.Lookup(ctx, "app2", "h")
	require.NoError(t, err)
	assert.Equal(t, "B1", rec.ID)
}

func TestStore_UpdateStatus(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &Record{Application: "app", User: "u", Host: "h", ID: "A1", Key: "K1"}))
	require.NoError(t, store.UpdateStatus(ctx, "app", "h", authkey.StatusAuthorized))

	rec, err := store.Lookup(ctx, "app", "h")
	require.NoError(t, err)
	assert.Equal(t, authkey.StatusAuthorized, rec.Status)
	assert.Equal(t, authkey.StatusAuthorized, rec.AuthKey().Status)
}

func TestStore_UpdateStatusNotFound(t *testing.T) {
	store := setupTestStore(t)

	err := store.UpdateStatus(context.Background(), "app", "missing", authkey.StatusAuthorized)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_List(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, host := range []string{"c", "a", "b"} {
		require.NoError(t, store.Upsert(ctx, &Record{Application: "app", User: "u", Host: host, ID: "id-" + host, Key: "k"}))
	}
	require.NoError(t, store.Upsert(ctx, &Record{Application: "other", User: "u", Host: "z", ID: "x", Key: "k"}))

	recs, err := store.List(ctx, "app")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "a", recs[0].Host)
	assert.Equal(t, "b", recs[1].Host)
	assert.Equal(t, "c", recs[2].Host)
}

func TestStore_ConcurrentUpserts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Go(func() {
			err := store.Upsert(ctx, &Record{
				Application: "app",
				User:        "u",
				Host:        fmt.Sprintf("h%d", i%5),
				ID:          fmt.Sprintf("id-%d", i),
				Key:         "k",
			})
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	assert.Equal(t, 5, countRows(t, store))
}

func TestStore_InMemory(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Upsert(ctx, &Record{Application: "app", User: "u", Host: "h", ID: "A1", Key: "K1"}))

	_, err = store.Lookup(ctx, "app", "h")
	assert.NoError(t, err)
}

func TestStore_MigratesLegacyTable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	legacy, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = legacy.Exec(`
		CREATE TABLE auth (
			appuser     TEXT NOT NULL,
			application TEXT NOT NULL,
			host        TEXT NOT NULL,
			appid       TEXT NOT NULL,
			appkey      TEXT NOT NULL,
			updated_at  TEXT NOT NULL,
			UNIQUE(application, host)
		);
		INSERT INTO auth VALUES ('u', 'app', 'h', 'A1', 'K1', '2024-01-01T00:00:00Z');
	`)
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	rec, err := store.Lookup(context.Background(), "app", "h")
	require.NoError(t, err)
	assert.Equal(t, authkey.StatusPending, rec.Status)
	assert.Equal(t, "A1", rec.ID)
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "", filepath.Join(t.TempDir(), "a.db"))
	require.NoError(t, err)
	_, ok := s.(*SQLiteStore)
	assert.True(t, ok)
	require.NoError(t, s.Close())

	_, err = Open(ctx, "mysql", "whatever")
	assert.Error(t, err)
}
