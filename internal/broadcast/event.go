// ABOUTME: Credential lifecycle events delivered to subscribers
// ABOUTME: JSON shape is shared by the in-process channel, SSE, WebSocket and NATS

package broadcast

import (
	"time"

	"github.com/google/uuid"

	"github.com/2389/printauth/internal/authkey"
)

// EventType identifies what happened to a credential.
type EventType string

const (
	EventStatusChanged         EventType = "status_changed"
	EventSetupComplete         EventType = "setup_complete"
	EventCredentialRegenerated EventType = "credential_regenerated"
)

// SetupCompleteMessage is the text carried by setup_complete events.
const SetupCompleteMessage = "Auth Setup completed"

// Event is one change notification. Secrets are never part of an event.
type Event struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	Host         string         `json:"host,omitempty"`
	CredentialID string         `json:"credential_id,omitempty"`
	Status       authkey.Status `json:"status,omitempty"`
	Previous     authkey.Status `json:"previous,omitempty"`
	Message      string         `json:"message,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

func newEvent(t EventType) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: time.Now().UTC(),
	}
}

// NewStatusChanged builds the event for a check that moved key from prev.
func NewStatusChanged(key authkey.Key, prev authkey.Status) *Event {
	e := newEvent(EventStatusChanged)
	e.Host = key.Host
	e.CredentialID = key.ID
	e.Status = key.Status
	e.Previous = prev
	return e
}

// NewSetupComplete builds the event emitted once initial reconciliation ends.
func NewSetupComplete() *Event {
	e := newEvent(EventSetupComplete)
	e.Message = SetupCompleteMessage
	return e
}

// NewCredentialRegenerated builds the event for a replaced credential.
// Previous carries the status of the credential that was replaced.
func NewCredentialRegenerated(key authkey.Key, prev authkey.Status) *Event {
	e := newEvent(EventCredentialRegenerated)
	e.Host = key.Host
	e.CredentialID = key.ID
	e.Status = key.Status
	e.Previous = prev
	return e
}
