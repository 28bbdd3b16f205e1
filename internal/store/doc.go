// Package store persists printer pairing credentials.
//
// # Schema
//
// One table, shared by every backend:
//
//	auth(appuser, application, host, appid, appkey, status, updated_at)
//	UNIQUE(application, host)
//
// Upsert is INSERT ... ON CONFLICT (application, host) DO UPDATE, so pairing
// the same host twice overwrites the row instead of duplicating it. Status
// holds the last value observed from the device's check endpoint and is
// written back on every change.
//
// # Backends
//
//   - SQLiteStore: modernc.org/sqlite, schema created and migrated on open.
//     The default; ":memory:" works for tests.
//   - PostgresStore: lib/pq. Selected with database.driver: postgres.
//   - MockStore: in-memory, with injectable errors, for unit tests.
//
// Open picks a backend by driver name.
//
// # Errors
//
// Lookup and UpdateStatus return ErrNotFound when no row matches. Other
// failures are returned wrapped; callers classify them as authkey.ErrStore.
//
// # Testing
//
// PostgresStore tests run only when PRINTAUTH_TEST_POSTGRES_DSN is set.
package store
