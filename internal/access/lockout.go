package access

import "time"

// Lockout owns both failure counters and both lock flags.
//
// The two locks are independent: a locked keypad does not stop
// fingerprint scanning and vice versa. The keypad lockout expires by
// time; the fingerprint lock clears only through a valid password,
// which releases both flags and both counters atomically.
type Lockout struct {
	maxAttempts     int
	lockoutDuration time.Duration

	passwordFails    int
	fingerprintFails int

	// lockedUntil is the keypad lockout expiry. Zero when unlocked.
	lockedUntil time.Time

	fingerprintLocked bool
}

// newLockout creates lockout state from policy.
func newLockout(maxAttempts int, lockoutDuration time.Duration) *Lockout {
	return &Lockout{
		maxAttempts:     maxAttempts,
		lockoutDuration: lockoutDuration,
	}
}

// expire releases the keypad lockout once its window has elapsed.
// Timers are sampled, not event-driven, so this runs at the top of
// every event and tick.
func (l *Lockout) expire(now time.Time) {
	if !l.lockedUntil.IsZero() && !now.Before(l.lockedUntil) {
		l.lockedUntil = time.Time{}
		l.passwordFails = 0
	}
}

// SystemLocked reports whether keypad authentication is suspended.
func (l *Lockout) SystemLocked(now time.Time) bool {
	l.expire(now)
	return !l.lockedUntil.IsZero()
}

// Remaining returns how long the keypad lockout has left.
func (l *Lockout) Remaining(now time.Time) time.Duration {
	if l.lockedUntil.IsZero() {
		return 0
	}
	if remaining := l.lockedUntil.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

// FingerprintLocked reports whether biometric authentication is suspended.
func (l *Lockout) FingerprintLocked() bool {
	return l.fingerprintLocked
}

// RecordPasswordFailure counts a wrong submission.
//
// Returns:
//   - bool: True if this failure engaged the keypad lockout
func (l *Lockout) RecordPasswordFailure(now time.Time) bool {
	l.passwordFails++
	if l.passwordFails >= l.maxAttempts {
		l.lockedUntil = now.Add(l.lockoutDuration)
		return true
	}
	return false
}

// RecordFingerprintFailure counts a biometric mismatch.
//
// Returns:
//   - bool: True if this failure engaged the fingerprint lock
func (l *Lockout) RecordFingerprintFailure() bool {
	l.fingerprintFails++
	if l.fingerprintFails >= l.maxAttempts {
		l.fingerprintLocked = true
		return true
	}
	return false
}

// PasswordAttemptsLeft returns how many wrong submissions remain
// before lockout.
func (l *Lockout) PasswordAttemptsLeft() int {
	return l.maxAttempts - l.passwordFails
}

// FingerprintAttemptsLeft returns how many mismatches remain before
// the fingerprint lock.
func (l *Lockout) FingerprintAttemptsLeft() int {
	return l.maxAttempts - l.fingerprintFails
}

// ClearPasswordFailures resets the keypad counter after a grant.
func (l *Lockout) ClearPasswordFailures() {
	l.passwordFails = 0
}

// ClearFingerprintFailures resets the biometric counter after a match.
func (l *Lockout) ClearFingerprintFailures() {
	l.fingerprintFails = 0
}

// ClearAll releases both locks and both counters. Invoked only by a
// valid password submission.
func (l *Lockout) ClearAll() {
	l.passwordFails = 0
	l.fingerprintFails = 0
	l.lockedUntil = time.Time{}
	l.fingerprintLocked = false
}
