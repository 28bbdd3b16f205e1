// ABOUTME: Error types returned by the printer client
// ABOUTME: TransportError and ProtocolError match the authkey taxonomy sentinels

package printer

import (
	"errors"
	"fmt"

	"github.com/2389/printauth/internal/authkey"
)

// TransportError reports a failed network exchange with a device.
// Timeout distinguishes a deadline expiry from other I/O errors.
type TransportError struct {
	Host    string
	Op      string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s %s: timed out: %v", e.Op, e.Host, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Host, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is matches authkey.ErrTransport.
func (e *TransportError) Is(target error) bool { return target == authkey.ErrTransport }

// ProtocolError reports a device response that could not be interpreted.
type ProtocolError struct {
	Host       string
	Op         string
	StatusCode int
	Err        error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s %s: unexpected response (status %d): %v", e.Op, e.Host, e.StatusCode, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Is matches authkey.ErrProtocol.
func (e *ProtocolError) Is(target error) bool { return target == authkey.ErrProtocol }

// IsTimeout reports whether err is a TransportError caused by a deadline.
func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Timeout
}
