// ABOUTME: SQLite implementation of CredentialStore using modernc.org/sqlite
// ABOUTME: Creates the auth table on open and upserts on (application, host)

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/2389/printauth/internal/authkey"
)

// SQLiteStore implements CredentialStore using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: concurrent pairing workers serialize here instead of
	// failing with SQLITE_BUSY, and ":memory:" stays a single database.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS auth (
			appuser     TEXT NOT NULL,
			application TEXT NOT NULL,
			host        TEXT NOT NULL,
			appid       TEXT NOT NULL,
			appkey      TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'pending',
			updated_at  TEXT NOT NULL,

			UNIQUE(application, host)
		);

		CREATE INDEX IF NOT EXISTS idx_auth_application ON auth(application);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// Databases created before status was persisted lack the column.
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM pragma_table_info('auth') WHERE name = 'status'`).Scan(&exists)
	if err != nil {
		if _, err := s.db.Exec(`ALTER TABLE auth ADD COLUMN status TEXT NOT NULL DEFAULT 'pending'`); err != nil {
			return fmt.Errorf("adding status column to auth: %w", err)
		}
		s.logger.Info("applied migration", "column", "status", "table", "auth")
	}
	return nil
}

// Ping verifies the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Lookup retrieves the credential for (application, host).
// Returns ErrNotFound if there is none.
func (s *SQLiteStore) Lookup(ctx context.Context, application, host string) (*Record, error) {
	query := `
		SELECT appuser, application, host, appid, appkey, status, updated_at
		FROM auth
		WHERE application = ? AND host = ?
	`

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, application, host))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying credential: %w", err)
	}
	return rec, nil
}

// Upsert inserts the credential or overwrites the existing row for
// (application, host).
func (s *SQLiteStore) Upsert(ctx context.Context, rec *Record) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = authkey.StatusPending
	}

	query := `
		INSERT INTO auth (appuser, application, host, appid, appkey, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (application, host)
		DO UPDATE SET appuser = excluded.appuser,
		              appid = excluded.appid,
		              appkey = excluded.appkey,
		              status = excluded.status,
		              updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.User,
		rec.Application,
		rec.Host,
		rec.ID,
		rec.Key,
		string(rec.Status),
		rec.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting credential: %w", err)
	}

	s.logger.Debug("upserted credential", "application", rec.Application, "host", rec.Host, "id", rec.ID)
	return nil
}

// UpdateStatus records the last observed status for (application, host).
func (s *SQLiteStore) UpdateStatus(ctx context.Context, application, host string, status authkey.Status) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE auth SET status = ?, updated_at = ? WHERE application = ? AND host = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339), application, host,
	)
	if err != nil {
		return fmt.Errorf("updating credential status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all credentials for application ordered by host.
func (s *SQLiteStore) List(ctx context.Context, application string) ([]*Record, error) {
	query := `
		SELECT appuser, application, host, appid, appkey, status, updated_at
		FROM auth
		WHERE application = ?
		ORDER BY host
	`

	rows, err := s.db.QueryContext(ctx, query, application)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var status, updatedAt string

	if err := row.Scan(
		&rec.User,
		&rec.Application,
		&rec.Host,
		&rec.ID,
		&rec.Key,
		&status,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	rec.Status = authkey.ParseStoredStatus(status)
	if parsed, err := time.Parse(time.RFC3339, updatedAt); err != nil {
		slog.Warn("failed to parse credential updated_at", "host", rec.Host, "error", err)
	} else {
		rec.UpdatedAt = parsed
	}
	return &rec, nil
}
