// ABOUTME: Key is the pairing material and last observed status for one printer
// ABOUTME: The secret is redacted from logs and string formatting

package authkey

import (
	"fmt"
	"log/slog"
	"time"
)

// Key holds one device's pairing credential.
type Key struct {
	Host      string
	ID        string
	Secret    string
	Status    Status
	UpdatedAt time.Time
}

// New creates a freshly paired key in the Pending state.
func New(host, id, secret string) Key {
	return Key{
		Host:      host,
		ID:        id,
		Secret:    secret,
		Status:    StatusPending,
		UpdatedAt: time.Now().UTC(),
	}
}

// LogValue implements slog.LogValuer so the secret never reaches a log line.
func (k Key) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("host", k.Host),
		slog.String("id", k.ID),
		slog.String("status", string(k.Status)),
	)
}

func (k Key) String() string {
	return fmt.Sprintf("Key{host=%s id=%s status=%s}", k.Host, k.ID, k.Status)
}
