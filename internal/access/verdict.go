package access

import "github.com/wardenlabs/warden-core/internal/credential"

// Method names how an authentication outcome was reached.
type Method string

// Authentication methods.
const (
	MethodPassword    Method = "password"
	MethodFingerprint Method = "fingerprint"
	MethodTwoFactor   Method = "two_factor"
)

// VerdictKind discriminates engine outcomes.
type VerdictKind int

// Engine verdicts. Granted is the only kind the door controller acts
// on; the rest inform the display, audit trail and API.
const (
	// VerdictNoOp means the event changed internal state (or nothing)
	// without a user-facing outcome.
	VerdictNoOp VerdictKind = iota

	// VerdictGranted authorises one unlock episode.
	VerdictGranted

	// VerdictDenied rejects a credential or biometric attempt.
	VerdictDenied

	// VerdictLockedOut reports that an attempt tripped a lock
	// (keypad lockout or fingerprint lock).
	VerdictLockedOut

	// VerdictAwaitingSecondFactor acknowledges the first factor in
	// high-security mode.
	VerdictAwaitingSecondFactor

	// VerdictChangeStarted acknowledges entry into the password-change flow.
	VerdictChangeStarted

	// VerdictPasswordChanged confirms a completed password change.
	VerdictPasswordChanged

	// VerdictEnrollStarted confirms an enrolment command was sent to
	// the fingerprint bridge.
	VerdictEnrollStarted

	// VerdictFingerprintDeleted confirms a template slot removal.
	VerdictFingerprintDeleted
)

// Verdict is the engine's response to one event.
type Verdict struct {
	Kind VerdictKind

	// Method is set on Granted, Denied and LockedOut.
	Method Method

	// Role is the credential role behind a grant or password change.
	Role credential.Role

	// FingerprintID is the template slot behind fingerprint outcomes.
	FingerprintID int

	// Remaining is the attempts left before lockout, set on Denied.
	Remaining int
}

// Granted reports whether this verdict authorises an unlock.
func (v Verdict) Granted() bool {
	return v.Kind == VerdictGranted
}

func (k VerdictKind) String() string {
	switch k {
	case VerdictGranted:
		return "granted"
	case VerdictDenied:
		return "denied"
	case VerdictLockedOut:
		return "locked_out"
	case VerdictAwaitingSecondFactor:
		return "awaiting_second_factor"
	case VerdictChangeStarted:
		return "change_started"
	case VerdictPasswordChanged:
		return "password_changed"
	case VerdictEnrollStarted:
		return "enroll_started"
	case VerdictFingerprintDeleted:
		return "fingerprint_deleted"
	default:
		return "noop"
	}
}
