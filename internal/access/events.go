package access

// EventKind discriminates the input events the engine consumes.
type EventKind int

// Engine input events. Keypad events arrive from the keypad bridge,
// fingerprint events from the fingerprint bridge, and the management
// events from either the keypad admin flow or the HTTP API.
const (
	EventNone EventKind = iota

	// EventDigit appends a digit to the input buffer.
	EventDigit

	// EventSubmit confirms the buffered input (the '#' key).
	EventSubmit

	// EventCancel abandons the current entry and any pending flow.
	EventCancel

	// EventToggleMode flips between Normal and HighSecurity mode.
	EventToggleMode

	// EventClearInput empties the buffer without abandoning the session.
	EventClearInput

	// EventChangePassword starts the admin password-change flow.
	// The buffer must hold the admin password at the time of the request.
	EventChangePassword

	// EventFingerprintMatched reports a successful biometric match.
	EventFingerprintMatched

	// EventFingerprintRejected reports a biometric mismatch.
	EventFingerprintRejected

	// EventEnrollFingerprint asks the engine to start an enrolment on
	// the next free slot. Admin-gated like EventChangePassword.
	EventEnrollFingerprint

	// EventFingerprintEnrolled is the bridge's confirmation that an
	// enrolment completed and the template is stored in the slot.
	EventFingerprintEnrolled

	// EventDeleteFingerprint removes a template slot. Admin-gated.
	EventDeleteFingerprint

	// EventDeleteAllFingerprints wipes every template slot. Admin-gated.
	EventDeleteAllFingerprints

	// EventSensorView asks for the sensor detail screen. A display
	// concern only; the engine ignores it.
	EventSensorView
)

// Event is a single discrete input to the engine.
type Event struct {
	Kind EventKind

	// Digit is the pressed key for EventDigit ('0' through '9').
	Digit byte

	// FingerprintID is the template slot for fingerprint events.
	FingerprintID int

	// Confidence is the match score reported by the sensor.
	Confidence int

	// Label optionally names the person for enrolment events.
	Label string

	// Authorized marks management events injected by an already
	// authenticated admin (the HTTP API after JWT verification).
	// Keypad-originated management events leave this false and are
	// gated on the buffered admin password instead.
	Authorized bool
}

func (k EventKind) String() string {
	switch k {
	case EventDigit:
		return "digit"
	case EventSubmit:
		return "submit"
	case EventCancel:
		return "cancel"
	case EventToggleMode:
		return "toggle_mode"
	case EventClearInput:
		return "clear"
	case EventChangePassword:
		return "change_password"
	case EventFingerprintMatched:
		return "fingerprint_matched"
	case EventFingerprintRejected:
		return "fingerprint_rejected"
	case EventEnrollFingerprint:
		return "enroll_fingerprint"
	case EventFingerprintEnrolled:
		return "fingerprint_enrolled"
	case EventDeleteFingerprint:
		return "delete_fingerprint"
	case EventDeleteAllFingerprints:
		return "delete_all_fingerprints"
	case EventSensorView:
		return "sensor_view"
	default:
		return "none"
	}
}
