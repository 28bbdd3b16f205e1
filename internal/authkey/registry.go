// ABOUTME: In-memory registry of credentials, one per host, in insertion order
// ABOUTME: All mutation happens under a mutex and is refused once the registry is closed

package authkey

import (
	"fmt"
	"sync"
	"time"
)

// Registry is the authoritative in-memory view of known credentials.
// It is safe for concurrent use. Entries are never evicted.
type Registry struct {
	mu     sync.RWMutex
	keys   []Key
	index  map[string]int // host -> position in keys
	closed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// All returns a snapshot of every key in insertion order.
func (r *Registry) All() []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Key, len(r.keys))
	copy(out, r.keys)
	return out
}

// Get returns the key registered for host.
func (r *Registry) Get(host string) (Key, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[host]
	if !ok {
		return Key{}, false
	}
	return r.keys[i], true
}

// Len returns the number of registered hosts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}

// Upsert inserts k, or replaces the key already registered for k.Host while
// keeping its position.
func (r *Registry) Upsert(k Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}
	if k.UpdatedAt.IsZero() {
		k.UpdatedAt = time.Now().UTC()
	}
	if i, ok := r.index[k.Host]; ok {
		r.keys[i] = k
		return nil
	}
	r.index[k.Host] = len(r.keys)
	r.keys = append(r.keys, k)
	return nil
}

// SetStatus records a check result for the credential id registered on host.
// It returns the previous status and whether the status actually changed.
// If the host's credential has been replaced since id was checked, nothing is
// written and ErrStaleCredential is returned.
func (r *Registry) SetStatus(host, id string, status Status) (prev Status, changed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", false, ErrRegistryClosed
	}
	i, ok := r.index[host]
	if !ok {
		return "", false, fmt.Errorf("%w: %s", ErrNotRegistered, host)
	}
	k := &r.keys[i]
	if k.ID != id {
		return k.Status, false, fmt.Errorf("%w: host %s now holds %s", ErrStaleCredential, host, k.ID)
	}

	prev = k.Status
	k.UpdatedAt = time.Now().UTC()
	if prev == status {
		return prev, false, nil
	}
	k.Status = status
	return prev, true, nil
}

// CountByStatus returns how many keys are in each status.
func (r *Registry) CountByStatus() map[Status]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[Status]int, 4)
	for _, s := range AllStatuses() {
		counts[s] = 0
	}
	for _, k := range r.keys {
		counts[k.Status]++
	}
	return counts
}

// Close seals the registry. Reads keep working; mutations fail with
// ErrRegistryClosed. It is safe to call multiple times.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}
