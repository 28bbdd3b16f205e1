// Package authkey defines printer pairing credentials and the registry that
// holds them while the service runs.
//
// # Status
//
// A credential is created Pending and afterwards carries whatever the device
// last reported from its check endpoint:
//
//	pending -> authorized | unauthorized | unknown -> (overwritten every cycle)
//
// ParseStatus is the single place device messages are interpreted. Messages
// other than "authorized", "unauthorized" and "unknown" map to
// FallbackStatus (Unknown).
//
// # Registry
//
// Registry keeps at most one Key per host, in the order hosts were first
// registered. Workers call SetStatus concurrently; the lock is only held for
// the in-memory update. SetStatus takes the credential ID that was checked,
// so a result for a credential that has since been regenerated is rejected
// with ErrStaleCredential instead of overwriting the new credential.
//
// # Errors
//
// ErrTransport, ErrProtocol, ErrStore and ErrConcurrency classify failures
// across the service. ErrRegistryClosed is the concurrency failure: the
// registry was sealed during shutdown and the mutation was not applied.
package authkey
