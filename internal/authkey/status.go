// ABOUTME: Credential status enumeration and the total device-message mapping
// ABOUTME: Unrecognized check messages map to Unknown by explicit policy

package authkey

// Status is the pairing state of a credential as last observed on the device.
type Status string

const (
	// StatusPending is assigned at creation, before any check has completed.
	StatusPending Status = "pending"
	// StatusAuthorized means the user accepted the pairing on the device.
	StatusAuthorized Status = "authorized"
	// StatusUnauthorized means the user rejected it, or the device forgot it.
	StatusUnauthorized Status = "unauthorized"
	// StatusUnknown means the accept/reject dialog is still open on the device.
	StatusUnknown Status = "unknown"
)

// FallbackStatus is what ParseStatus returns for messages it does not
// recognize. A device answering with something unexpected has not told us
// the credential is usable, so it is treated like an unresolved dialog.
const FallbackStatus = StatusUnknown

// ParseStatus maps the message field of a check response to a Status.
// The mapping is total and case-sensitive: "authorized", "unauthorized" and
// "unknown" map to their statuses, everything else maps to FallbackStatus.
// A device can never report Pending.
func ParseStatus(message string) Status {
	switch message {
	case "authorized":
		return StatusAuthorized
	case "unauthorized":
		return StatusUnauthorized
	case "unknown":
		return StatusUnknown
	default:
		return FallbackStatus
	}
}

// ParseStoredStatus maps a persisted status column back to a Status.
// Empty or unrecognized values load as Pending, since nothing trustworthy
// was observed for them.
func ParseStoredStatus(s string) Status {
	switch Status(s) {
	case StatusAuthorized, StatusUnauthorized, StatusUnknown:
		return Status(s)
	default:
		return StatusPending
	}
}

// Valid reports whether s is one of the four defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAuthorized, StatusUnauthorized, StatusUnknown:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// AllStatuses lists every status, in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusAuthorized, StatusUnauthorized, StatusUnknown}
}
