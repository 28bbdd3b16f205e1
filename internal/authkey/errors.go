// ABOUTME: Error taxonomy shared by the prober, pairing client, store and registry
// ABOUTME: Concrete error types match these sentinels via errors.Is

package authkey

import (
	"errors"
	"fmt"
)

// Error categories. Callers classify failures with errors.Is.
var (
	// ErrTransport covers network failures and timeouts talking to a device.
	ErrTransport = errors.New("transport error")
	// ErrProtocol covers device responses that do not have the expected shape.
	ErrProtocol = errors.New("protocol error")
	// ErrStore covers persistence failures.
	ErrStore = errors.New("store error")
	// ErrConcurrency covers registry mutations that could not be applied.
	ErrConcurrency = errors.New("concurrency error")
)

// Registry errors
var (
	ErrNotRegistered   = errors.New("host has no registered credential")
	ErrStaleCredential = errors.New("credential was replaced")
	ErrRegistryClosed  = fmt.Errorf("%w: registry closed", ErrConcurrency)
)
