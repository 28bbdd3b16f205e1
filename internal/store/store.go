// ABOUTME: CredentialStore interface and the persisted credential record
// ABOUTME: One row per (application, host); writes are upserts

package store

import (
	"context"
	"errors"
	"time"

	"github.com/2389/printauth/internal/authkey"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Record is one row of the auth table.
type Record struct {
	Application string
	User        string
	Host        string
	ID          string
	Key         string
	Status      authkey.Status
	UpdatedAt   time.Time
}

// AuthKey converts the record into a registry entry.
func (r *Record) AuthKey() authkey.Key {
	return authkey.Key{
		Host:      r.Host,
		ID:        r.ID,
		Secret:    r.Key,
		Status:    authkey.ParseStoredStatus(string(r.Status)),
		UpdatedAt: r.UpdatedAt,
	}
}

// CredentialStore persists pairing credentials keyed by (application, host).
type CredentialStore interface {
	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error

	// Lookup returns the credential for (application, host), or ErrNotFound.
	Lookup(ctx context.Context, application, host string) (*Record, error)

	// Upsert writes rec. A second call for the same (application, host)
	// overwrites user, id, key and status instead of adding a row.
	Upsert(ctx context.Context, rec *Record) error

	// UpdateStatus records the last observed status, or returns ErrNotFound.
	UpdateStatus(ctx context.Context, application, host string, status authkey.Status) error

	// List returns every credential stored for application, ordered by host.
	List(ctx context.Context, application string) ([]*Record, error)

	// Close releases any resources held by the store
	Close() error
}

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open creates a store for driver. For sqlite, dsn is a file path or
// ":memory:"; for postgres it is a lib/pq connection string.
func Open(ctx context.Context, driver, dsn string) (CredentialStore, error) {
	switch driver {
	case "", DriverSQLite:
		return NewSQLiteStore(dsn)
	case DriverPostgres:
		return NewPostgresStore(ctx, dsn)
	default:
		return nil, errors.New("unsupported database driver: " + driver)
	}
}
