// ABOUTME: Mock CredentialStore implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject store failures

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/2389/printauth/internal/authkey"
)

// MockStore is an in-memory CredentialStore for testing.
// Setting one of the Err fields makes the matching method fail.
type MockStore struct {
	mu      sync.RWMutex
	records map[string]*Record // keyed by "application\x00host"

	PingErr         error
	LookupErr       error
	UpsertErr       error
	UpdateStatusErr error

	upserts int
	lookups int
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		records: make(map[string]*Record),
	}
}

func mockKey(application, host string) string {
	return application + "\x00" + host
}

// Ping returns PingErr.
func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PingErr
}

// Lookup retrieves a credential by (application, host).
func (m *MockStore) Lookup(ctx context.Context, application, host string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lookups++
	if m.LookupErr != nil {
		return nil, m.LookupErr
	}
	rec, ok := m.records[mockKey(application, host)]
	if !ok {
		return nil, ErrNotFound
	}

	// Return a copy
	result := *rec
	return &result, nil
}

// Upsert stores a copy of rec, replacing any row for (application, host).
func (m *MockStore) Upsert(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.upserts++
	if m.UpsertErr != nil {
		return m.UpsertErr
	}

	r := *rec
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}
	if r.Status == "" {
		r.Status = authkey.StatusPending
	}
	m.records[mockKey(r.Application, r.Host)] = &r
	return nil
}

// UpdateStatus sets the status on an existing row.
func (m *MockStore) UpdateStatus(ctx context.Context, application, host string, status authkey.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateStatusErr != nil {
		return m.UpdateStatusErr
	}
	rec, ok := m.records[mockKey(application, host)]
	if !ok {
		return ErrNotFound
	}
	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// List returns copies of all rows for application ordered by host.
func (m *MockStore) List(ctx context.Context, application string) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Record
	for _, rec := range m.records {
		if rec.Application != application {
			continue
		}
		r := *rec
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Host < out[j].Host })
	return out, nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// UpsertCalls returns how many times Upsert was called.
func (m *MockStore) UpsertCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.upserts
}

// LookupCalls returns how many times Lookup was called.
func (m *MockStore) LookupCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lookups
}

// SetLookupErr changes LookupErr while other goroutines may be using the store.
func (m *MockStore) SetLookupErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LookupErr = err
}
