package access

import (
	"time"

	"github.com/wardenlabs/warden-core/internal/credential"
)

// Mode selects the authentication policy.
type Mode string

// Authentication modes. The mode persists across sessions until
// explicitly toggled.
const (
	// ModeNormal grants on a single factor (password or fingerprint).
	ModeNormal Mode = "normal"

	// ModeHighSecurity grants only when both factors succeed within
	// one two-factor window.
	ModeHighSecurity Mode = "high_security"
)

// maxBufferLen caps the input buffer; an eleventh digit is dropped.
const maxBufferLen = 10

// ChangeStep tracks progress through the admin password-change flow.
type ChangeStep int

// Password-change flow steps. Each step carries its own entry deadline
// so an abandoned flow cannot hold the engine.
const (
	// StepSelectTarget waits for a digit choosing which role to change
	// ('1' admin, '2' user).
	StepSelectTarget ChangeStep = iota

	// StepEnterNewValue waits for the new password followed by Submit.
	StepEnterNewValue
)

// changeFlow is the transient state of an in-progress password change.
type changeFlow struct {
	step     ChangeStep
	target   credential.Role
	deadline time.Time
}

// Session holds the transient authentication state between terminal
// verdicts. Everything here resets on cancel, grant, mode toggle and
// two-factor timeout; only Mode survives.
type Session struct {
	// Buffer is the digit entry so far, at most maxBufferLen digits.
	Buffer []byte

	// Mode is the active authentication policy.
	Mode Mode

	// PasswordVerified and FingerprintVerified record the factors
	// presented inside the current two-factor window. Only meaningful
	// in high-security mode; always reset together.
	PasswordVerified    bool
	FingerprintVerified bool

	// Role is the credential role behind the verified password factor.
	Role credential.Role

	// FingerprintID is the slot behind the verified fingerprint factor.
	FingerprintID int

	// TwoFactorDeadline bounds the gap between the two factors.
	// Zero when no window is open.
	TwoFactorDeadline time.Time

	// change is non-nil while the password-change flow is active.
	change *changeFlow
}

// newSession returns a session in Normal mode with no pending state.
func newSession() Session {
	return Session{Mode: ModeNormal}
}

// appendDigit adds a digit to the buffer, dropping input past the cap.
func (s *Session) appendDigit(d byte) {
	if len(s.Buffer) < maxBufferLen {
		s.Buffer = append(s.Buffer, d)
	}
}

// takeBuffer returns the buffered entry and clears it.
func (s *Session) takeBuffer() string {
	value := string(s.Buffer)
	s.Buffer = nil
	return value
}

// clearBuffer empties the entry buffer only.
func (s *Session) clearBuffer() {
	s.Buffer = nil
}

// resetAuth clears everything except the mode: buffer, both verified
// flags, the two-factor window and any change flow.
func (s *Session) resetAuth() {
	s.Buffer = nil
	s.PasswordVerified = false
	s.FingerprintVerified = false
	s.Role = ""
	s.FingerprintID = 0
	s.TwoFactorDeadline = time.Time{}
	s.change = nil
}

// twoFactorActive reports whether a factor window is open.
func (s *Session) twoFactorActive() bool {
	return s.PasswordVerified || s.FingerprintVerified
}
