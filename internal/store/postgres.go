// ABOUTME: PostgreSQL implementation of CredentialStore using lib/pq
// ABOUTME: Same auth table and upsert-on-conflict semantics as the SQLite store

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/2389/printauth/internal/authkey"
)

// PostgresStore implements CredentialStore using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore connects to dsn, verifies the connection and creates the
// schema if needed.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	logger := slog.Default().With("component", "store")

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &PostgresStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("PostgreSQL store initialized")
	return s, nil
}

func (s *PostgresStore) createSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS auth (
			appuser     TEXT NOT NULL,
			application TEXT NOT NULL,
			host        TEXT NOT NULL,
			appid       TEXT NOT NULL,
			appkey      TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'pending',
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),

			UNIQUE(application, host)
		);

		ALTER TABLE auth ADD COLUMN IF NOT EXISTS status TEXT NOT NULL DEFAULT 'pending';
		ALTER TABLE auth ADD COLUMN IF NOT EXISTS updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW();
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Ping verifies the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	s.logger.Info("closing PostgreSQL store")
	return s.db.Close()
}

// Lookup retrieves the credential for (application, host).
// Returns ErrNotFound if there is none.
func (s *PostgresStore) Lookup(ctx context.Context, application, host string) (*Record, error) {
	query := `
		SELECT appuser, application, host, appid, appkey, status, updated_at
		FROM auth
		WHERE application = $1 AND host = $2
	`

	rec, err := scanPostgresRecord(s.db.QueryRowContext(ctx, query, application, host))
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
func (s *PostgresStore) Upsert(ctx context.Context, rec *Record) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = authkey.StatusPending
	}

	query := `
		INSERT INTO auth (appuser, application, host, appid, appkey, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (application, host)
		DO UPDATE SET appuser = EXCLUDED.appuser,
		              appid = EXCLUDED.appid,
		              appkey = EXCLUDED.appkey,
		              status = EXCLUDED.status,
		              updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.User,
		rec.Application,
		rec.Host,
		rec.ID,
		rec.Key,
		string(rec.Status),
		rec.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting credential: %w", err)
	}

	s.logger.Debug("upserted credential", "application", rec.Application, "host", rec.Host, "id", rec.ID)
	return nil
}

// UpdateStatus records the last observed status for (application, host).
func (s *PostgresStore) UpdateStatus(ctx context.Context, application, host string, status authkey.Status) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE auth SET status = $1, updated_at = NOW() WHERE application = $2 AND host = $3`,
		string(status), application, host,
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
func (s *PostgresStore) List(ctx context.Context, application string) ([]*Record, error) {
	query := `
		SELECT appuser, application, host, appid, appkey, status, updated_at
		FROM auth
		WHERE application = $1
		ORDER BY host
	`

	rows, err := s.db.QueryContext(ctx, query, application)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanPostgresRecord(row rowScanner) (*Record, error) {
	var rec Record
	var status string

	if err := row.Scan(
		&rec.User,
		&rec.Application,
		&rec.Host,
		&rec.ID,
		&rec.Key,
		&status,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.Status = authkey.ParseStoredStatus(status)
	return &rec, nil
}
