package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wardenlabs/warden-core/internal/audit"
	"github.com/wardenlabs/warden-core/internal/credential"
	"github.com/wardenlabs/warden-core/internal/infrastructure/config"
)

// CredentialChecker verifies and updates role passwords.
// Implemented by credential.Store.
type CredentialChecker interface {
	CheckPassword(ctx context.Context, candidate string) (credential.Role, bool, error)
	SetPassword(ctx context.Context, role credential.Role, password string) error
}

// SlotDirectory mirrors the fingerprint sensor's template slots.
// Implemented by credential.Store.
type SlotDirectory interface {
	NextFreeSlot(ctx context.Context) (int, error)
	AddSlot(ctx context.Context, slot int, label string) error
	DeleteSlot(ctx context.Context, slot int) error
	DeleteAllSlots(ctx context.Context) (int, error)
}

// FingerprintCommander sends enrol/delete instructions to the
// fingerprint bridge.
type FingerprintCommander interface {
	Enroll(slot int) error
	Delete(slot int) error
	DeleteAll() error
}

// Auditor receives fire-and-forget audit records.
type Auditor interface {
	Record(kind, method, actor, status string)
}

// Engine is the authentication and mode state machine.
//
// It consumes discrete events (keypad digits, submissions, fingerprint
// results, management requests) and produces verdicts. Every event has
// a defined effect in every state; unhandled combinations are no-ops.
//
// The engine is not safe for concurrent use. The controller is its
// single caller, one event at a time, per the one-mutator-per-tick
// rule.
type Engine struct {
	maxAttempts     int
	minPasswordLen  int
	twoFactorWindow time.Duration
	changeWindow    time.Duration

	creds     CredentialChecker
	slots     SlotDirectory
	commander FingerprintCommander
	auditor   Auditor
	logger    *slog.Logger

	session Session
	lockout *Lockout
}

// New creates an engine with the given policy and collaborators.
func New(
	cfg config.AuthPolicyConfig,
	creds CredentialChecker,
	slots SlotDirectory,
	commander FingerprintCommander,
	auditor Auditor,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		maxAttempts:     cfg.MaxAttempts,
		minPasswordLen:  cfg.MinPasswordLength,
		twoFactorWindow: time.Duration(cfg.TwoFactorWindowSeconds) * time.Second,
		changeWindow:    time.Duration(cfg.ChangeWindowSeconds) * time.Second,
		creds:           creds,
		slots:           slots,
		commander:       commander,
		auditor:         auditor,
		logger:          logger,
		session:         newSession(),
		lockout:         newLockout(cfg.MaxAttempts, time.Duration(cfg.LockoutSeconds)*time.Second),
	}
}

// HandleEvent advances the state machine by one event.
//
// Parameters:
//   - ctx: Context for credential store calls
//   - ev: The input event
//   - now: Current time, used for every deadline decision
//   - overheated: Safety gate; suppresses fingerprint matches
//
// Returns:
//   - Verdict: The outcome; VerdictGranted authorises one unlock
func (e *Engine) HandleEvent(ctx context.Context, ev Event, now time.Time, overheated bool) Verdict {
	e.expireTimers(now)

	switch ev.Kind {
	case EventDigit:
		return e.handleDigit(ev.Digit, now)
	case EventSubmit:
		return e.handleSubmit(ctx, now)
	case EventCancel:
		return e.handleCancel()
	case EventToggleMode:
		return e.handleToggleMode()
	case EventClearInput:
		return e.handleClearInput()
	case EventChangePassword:
		return e.handleChangeRequest(ctx, now)
	case EventFingerprintMatched:
		return e.handleFingerprintMatched(ev, now, overheated)
	case EventFingerprintRejected:
		return e.handleFingerprintRejected()
	case EventEnrollFingerprint:
		return e.handleEnroll(ctx, ev, now)
	case EventFingerprintEnrolled:
		return e.handleEnrolled(ctx, ev)
	case EventDeleteFingerprint:
		return e.handleDelete(ctx, ev, now)
	case EventDeleteAllFingerprints:
		return e.handleDeleteAll(ctx, ev, now)
	default:
		// EventSensorView and anything unrecognised: no auth effect.
		return Verdict{Kind: VerdictNoOp}
	}
}

// Tick advances time-driven behaviour: lockout expiry, two-factor
// timeout and change-flow timeout. Call once per scheduling tick.
func (e *Engine) Tick(now time.Time) {
	e.expireTimers(now)
}

// expireTimers samples every stored deadline against now. Timers are
// polled rather than scheduled, so cancellation is just clearing the
// stored deadline.
func (e *Engine) expireTimers(now time.Time) {
	e.lockout.expire(now)

	if e.session.twoFactorActive() && !e.session.TwoFactorDeadline.IsZero() &&
		now.After(e.session.TwoFactorDeadline) {
		e.logger.Info("two-factor window expired, session reset")
		e.session.resetAuth()
	}

	if e.session.change != nil && now.After(e.session.change.deadline) {
		e.logger.Info("password change flow timed out")
		e.session.change = nil
		e.session.clearBuffer()
	}
}

// ─── Keypad events ───────────────────────────────────────────────────

func (e *Engine) handleDigit(d byte, now time.Time) Verdict {
	if e.lockout.SystemLocked(now) {
		return Verdict{Kind: VerdictNoOp}
	}

	if flow := e.session.change; flow != nil && flow.step == StepSelectTarget {
		switch d {
		case '1':
			flow.target = credential.RoleAdmin
		case '2':
			flow.target = credential.RoleUser
		default:
			return Verdict{Kind: VerdictNoOp}
		}
		flow.step = StepEnterNewValue
		flow.deadline = now.Add(e.changeWindow)
		e.session.clearBuffer()
		return Verdict{Kind: VerdictNoOp}
	}

	e.session.appendDigit(d)
	return Verdict{Kind: VerdictNoOp}
}

func (e *Engine) handleSubmit(ctx context.Context, now time.Time) Verdict {
	if e.lockout.SystemLocked(now) {
		// Display shows the countdown; the submission itself is ignored.
		return Verdict{Kind: VerdictNoOp}
	}

	if flow := e.session.change; flow != nil {
		return e.submitChangeFlow(ctx, flow)
	}

	value := e.session.takeBuffer()
	if value == "" {
		return Verdict{Kind: VerdictNoOp}
	}

	role, ok, err := e.creds.CheckPassword(ctx, value)
	if err != nil {
		// Store failure degrades to "no event", never counts against the user.
		e.logger.Error("password check failed", "error", err)
		return Verdict{Kind: VerdictNoOp}
	}

	if !ok {
		return e.passwordRejected(now)
	}
	return e.passwordAccepted(role, now)
}

// passwordRejected applies the failure policy to a wrong submission.
func (e *Engine) passwordRejected(now time.Time) Verdict {
	if e.lockout.RecordPasswordFailure(now) {
		e.auditor.Record(audit.KindSystemLocked, audit.MethodPassword, "keypad", audit.StatusFailed)
		return Verdict{Kind: VerdictLockedOut, Method: MethodPassword}
	}
	e.auditor.Record(audit.KindDoorOpen, audit.MethodPassword, "keypad", audit.StatusFailed)
	return Verdict{
		Kind:      VerdictDenied,
		Method:    MethodPassword,
		Remaining: e.lockout.PasswordAttemptsLeft(),
	}
}

// passwordAccepted resolves a correct submission against the lock and
// mode state.
func (e *Engine) passwordAccepted(role credential.Role, now time.Time) Verdict {
	// A valid password is the only key that releases the fingerprint
	// lock; it releases both locks and both counters together, and
	// opens the door directly even in high-security mode.
	if e.lockout.FingerprintLocked() {
		e.lockout.ClearAll()
		e.session.resetAuth()
		e.auditor.Record(audit.KindDoorOpen, audit.MethodPassword, string(role), audit.StatusAfterFingerLock)
		return Verdict{Kind: VerdictGranted, Method: MethodPassword, Role: role}
	}

	if e.session.Mode == ModeHighSecurity {
		if e.session.FingerprintVerified {
			// Fingerprint came first; the password completes the pair.
			slot := e.session.FingerprintID
			e.session.resetAuth()
			e.lockout.ClearPasswordFailures()
			e.auditor.Record(audit.KindDoorOpen, audit.MethodTwoFactor, string(role), audit.StatusSuccess)
			return Verdict{Kind: VerdictGranted, Method: MethodTwoFactor, Role: role, FingerprintID: slot}
		}
		e.session.PasswordVerified = true
		e.session.Role = role
		e.session.TwoFactorDeadline = now.Add(e.twoFactorWindow)
		return Verdict{Kind: VerdictAwaitingSecondFactor, Method: MethodPassword, Role: role}
	}

	e.lockout.ClearPasswordFailures()
	e.auditor.Record(audit.KindDoorOpen, audit.MethodPassword, string(role), audit.StatusSuccess)
	return Verdict{Kind: VerdictGranted, Method: MethodPassword, Role: role}
}

func (e *Engine) handleCancel() Verdict {
	e.session.resetAuth()
	return Verdict{Kind: VerdictNoOp}
}

func (e *Engine) handleToggleMode() Verdict {
	if e.session.Mode == ModeNormal {
		e.session.Mode = ModeHighSecurity
	} else {
		e.session.Mode = ModeNormal
	}
	mode := e.session.Mode
	e.session.resetAuth()
	e.auditor.Record(audit.KindModeChanged, audit.MethodSystem, string(mode), audit.StatusSuccess)
	e.logger.Info("authentication mode changed", "mode", string(mode))
	return Verdict{Kind: VerdictNoOp}
}

func (e *Engine) handleClearInput() Verdict {
	e.session.clearBuffer()
	return Verdict{Kind: VerdictNoOp}
}

// ─── Password change flow ────────────────────────────────────────────

func (e *Engine) handleChangeRequest(ctx context.Context, now time.Time) Verdict {
	if e.lockout.SystemLocked(now) {
		return Verdict{Kind: VerdictNoOp}
	}

	value := e.session.takeBuffer()
	role, ok, err := e.creds.CheckPassword(ctx, value)
	if err != nil {
		e.logger.Error("password check failed", "error", err)
		return Verdict{Kind: VerdictNoOp}
	}

	// Only the admin credential opens the flow; the user credential is
	// explicitly denied rather than silently ignored.
	if !ok || role != credential.RoleAdmin {
		e.auditor.Record(audit.KindPasswordChanged, audit.MethodPassword, "keypad", audit.StatusDenied)
		return Verdict{Kind: VerdictDenied, Method: MethodPassword}
	}

	e.session.change = &changeFlow{
		step:     StepSelectTarget,
		deadline: now.Add(e.changeWindow),
	}
	return Verdict{Kind: VerdictChangeStarted}
}

// submitChangeFlow completes the flow when the new value is confirmed.
func (e *Engine) submitChangeFlow(ctx context.Context, flow *changeFlow) Verdict {
	if flow.step != StepEnterNewValue {
		// Submit while still choosing a target is a no-op.
		return Verdict{Kind: VerdictNoOp}
	}

	value := e.session.takeBuffer()
	target := flow.target
	e.session.change = nil

	if len(value) < e.minPasswordLen {
		e.auditor.Record(audit.KindPasswordChanged, audit.MethodPassword, string(target), audit.StatusDenied)
		return Verdict{Kind: VerdictDenied, Method: MethodPassword, Role: target}
	}

	if err := e.creds.SetPassword(ctx, target, value); err != nil {
		e.logger.Error("password change failed", "role", string(target), "error", err)
		return Verdict{Kind: VerdictDenied, Method: MethodPassword, Role: target}
	}

	e.auditor.Record(audit.KindPasswordChanged, audit.MethodPassword, string(target), audit.StatusSuccess)
	e.logger.Info("password changed", "role", string(target))
	return Verdict{Kind: VerdictPasswordChanged, Role: target}
}

// ─── Fingerprint events ──────────────────────────────────────────────

func (e *Engine) handleFingerprintMatched(ev Event, now time.Time, overheated bool) Verdict {
	if e.lockout.SystemLocked(now) || overheated || e.lockout.FingerprintLocked() {
		return Verdict{Kind: VerdictNoOp}
	}

	e.lockout.ClearFingerprintFailures()

	if e.session.Mode == ModeHighSecurity {
		if e.session.PasswordVerified {
			role := e.session.Role
			e.session.resetAuth()
			e.lockout.ClearPasswordFailures()
			e.auditor.Record(audit.KindDoorOpen, audit.MethodTwoFactor, string(role), audit.StatusSuccess)
			return Verdict{Kind: VerdictGranted, Method: MethodTwoFactor, Role: role, FingerprintID: ev.FingerprintID}
		}
		e.session.FingerprintVerified = true
		e.session.FingerprintID = ev.FingerprintID
		e.session.TwoFactorDeadline = now.Add(e.twoFactorWindow)
		return Verdict{Kind: VerdictAwaitingSecondFactor, Method: MethodFingerprint, FingerprintID: ev.FingerprintID}
	}

	e.lockout.ClearPasswordFailures()
	e.auditor.Record(audit.KindDoorOpen, audit.MethodFingerprint, slotActor(ev.FingerprintID), audit.StatusSuccess)
	return Verdict{Kind: VerdictGranted, Method: MethodFingerprint, FingerprintID: ev.FingerprintID}
}

func (e *Engine) handleFingerprintRejected() Verdict {
	e.auditor.Record(audit.KindDoorOpen, audit.MethodFingerprint, "sensor", audit.StatusFailed)

	if e.lockout.FingerprintLocked() {
		return Verdict{Kind: VerdictNoOp}
	}

	if e.lockout.RecordFingerprintFailure() {
		e.auditor.Record(audit.KindFingerprintLocked, audit.MethodFingerprint, "sensor", audit.StatusFailed)
		// The display routes to password entry; only a valid password
		// releases this lock.
		return Verdict{Kind: VerdictLockedOut, Method: MethodFingerprint}
	}

	return Verdict{
		Kind:      VerdictDenied,
		Method:    MethodFingerprint,
		Remaining: e.lockout.FingerprintAttemptsLeft(),
	}
}

// ─── Fingerprint management ──────────────────────────────────────────

// adminAuthorized gates management events: either pre-authorised by
// the API layer, or the buffer holds the admin password.
func (e *Engine) adminAuthorized(ctx context.Context, ev Event) bool {
	if ev.Authorized {
		return true
	}
	value := e.session.takeBuffer()
	role, ok, err := e.creds.CheckPassword(ctx, value)
	if err != nil {
		e.logger.Error("password check failed", "error", err)
		return false
	}
	return ok && role == credential.RoleAdmin
}

func (e *Engine) handleEnroll(ctx context.Context, ev Event, now time.Time) Verdict {
	if e.lockout.SystemLocked(now) {
		return Verdict{Kind: VerdictNoOp}
	}
	if !e.adminAuthorized(ctx, ev) {
		e.auditor.Record(audit.KindFingerprintEnrolled, audit.MethodFingerprint, "keypad", audit.StatusDenied)
		return Verdict{Kind: VerdictDenied, Method: MethodFingerprint}
	}

	slot, err := e.slots.NextFreeSlot(ctx)
	if err != nil {
		if errors.Is(err, credential.ErrSlotsFull) {
			e.logger.Warn("enrolment refused, no free slots")
		} else {
			e.logger.Error("slot lookup failed", "error", err)
		}
		return Verdict{Kind: VerdictDenied, Method: MethodFingerprint}
	}

	if err := e.commander.Enroll(slot); err != nil {
		e.logger.Error("enroll command failed", "slot", slot, "error", err)
		return Verdict{Kind: VerdictDenied, Method: MethodFingerprint, FingerprintID: slot}
	}

	e.logger.Info("enrolment started", "slot", slot)
	return Verdict{Kind: VerdictEnrollStarted, FingerprintID: slot}
}

func (e *Engine) handleEnrolled(ctx context.Context, ev Event) Verdict {
	if err := e.slots.AddSlot(ctx, ev.FingerprintID, ev.Label); err != nil {
		e.logger.Error("recording enrolled slot failed", "slot", ev.FingerprintID, "error", err)
		return Verdict{Kind: VerdictNoOp}
	}
	e.auditor.Record(audit.KindFingerprintEnrolled, audit.MethodFingerprint, slotActor(ev.FingerprintID), audit.StatusSuccess)
	e.logger.Info("fingerprint enrolled", "slot", ev.FingerprintID)
	return Verdict{Kind: VerdictNoOp}
}

func (e *Engine) handleDelete(ctx context.Context, ev Event, now time.Time) Verdict {
	if e.lockout.SystemLocked(now) {
		return Verdict{Kind: VerdictNoOp}
	}
	if !e.adminAuthorized(ctx, ev) {
		e.auditor.Record(audit.KindFingerprintDeleted, audit.MethodFingerprint, "keypad", audit.StatusDenied)
		return Verdict{Kind: VerdictDenied, Method: MethodFingerprint}
	}

	if err := e.commander.Delete(ev.FingerprintID); err != nil {
		e.logger.Error("delete command failed", "slot", ev.FingerprintID, "error", err)
		return Verdict{Kind: VerdictDenied, Method: MethodFingerprint, FingerprintID: ev.FingerprintID}
	}

	if err := e.slots.DeleteSlot(ctx, ev.FingerprintID); err != nil {
		if errors.Is(err, credential.ErrSlotNotFound) {
			return Verdict{Kind: VerdictDenied, Method: MethodFingerprint, FingerprintID: ev.FingerprintID}
		}
		e.logger.Error("removing slot record failed", "slot", ev.FingerprintID, "error", err)
		return Verdict{Kind: VerdictDenied, Method: MethodFingerprint, FingerprintID: ev.FingerprintID}
	}

	e.auditor.Record(audit.KindFingerprintDeleted, audit.MethodFingerprint, slotActor(ev.FingerprintID), audit.StatusSuccess)
	e.logger.Info("fingerprint deleted", "slot", ev.FingerprintID)
	return Verdict{Kind: VerdictFingerprintDeleted, FingerprintID: ev.FingerprintID}
}

func (e *Engine) handleDeleteAll(ctx context.Context, ev Event, now time.Time) Verdict {
	if e.lockout.SystemLocked(now) {
		return Verdict{Kind: VerdictNoOp}
	}
	if !e.adminAuthorized(ctx, ev) {
		e.auditor.Record(audit.KindFingerprintDeleted, audit.MethodFingerprint, "keypad", audit.StatusDenied)
		return Verdict{Kind: VerdictDenied, Method: MethodFingerprint}
	}

	if err := e.commander.DeleteAll(); err != nil {
		e.logger.Error("delete-all command failed", "error", err)
		return Verdict{Kind: VerdictDenied, Method: MethodFingerprint}
	}

	count, err := e.slots.DeleteAllSlots(ctx)
	if err != nil {
		e.logger.Error("wiping slot records failed", "error", err)
		return Verdict{Kind: VerdictDenied, Method: MethodFingerprint}
	}

	e.auditor.Record(audit.KindFingerprintDeleted, audit.MethodFingerprint, "all", audit.StatusSuccess)
	e.logger.Info("all fingerprints deleted", "count", count)
	return Verdict{Kind: VerdictFingerprintDeleted}
}

// slotActor formats a fingerprint slot as an audit actor.
func slotActor(slot int) string {
	return fmt.Sprintf("slot-%d", slot)
}

// ─── Introspection ───────────────────────────────────────────────────

// State summarises where the machine currently sits, for the display
// projection and the status API.
type State string

// Machine states.
const (
	StateIdle              State = "idle"
	StateEnteringPassword  State = "entering_password"
	StateAwaitingFactor2   State = "awaiting_second_factor"
	StateChangingPassword  State = "changing_password"
	StateLockedOut         State = "locked_out"
	StateFingerprintLocked State = "fingerprint_locked"
)

// Snapshot is a read-only view of the engine for display and API use.
type Snapshot struct {
	State               State         `json:"state"`
	Mode                Mode          `json:"mode"`
	BufferLen           int           `json:"buffer_len"`
	SystemLocked        bool          `json:"system_locked"`
	LockoutRemaining    time.Duration `json:"-"`
	FingerprintLocked   bool          `json:"fingerprint_locked"`
	PasswordVerified    bool          `json:"password_verified"`
	FingerprintVerified bool          `json:"fingerprint_verified"`
	ChangeStep          ChangeStep    `json:"-"`
}

// Snapshot captures the current machine state.
func (e *Engine) Snapshot(now time.Time) Snapshot {
	e.expireTimers(now)

	snap := Snapshot{
		Mode:                e.session.Mode,
		BufferLen:           len(e.session.Buffer),
		SystemLocked:        e.lockout.SystemLocked(now),
		LockoutRemaining:    e.lockout.Remaining(now),
		FingerprintLocked:   e.lockout.FingerprintLocked(),
		PasswordVerified:    e.session.PasswordVerified,
		FingerprintVerified: e.session.FingerprintVerified,
	}

	switch {
	case snap.SystemLocked:
		snap.State = StateLockedOut
	case e.session.change != nil:
		snap.State = StateChangingPassword
		snap.ChangeStep = e.session.change.step
	case e.session.twoFactorActive():
		snap.State = StateAwaitingFactor2
	case snap.FingerprintLocked:
		snap.State = StateFingerprintLocked
	case snap.BufferLen > 0:
		snap.State = StateEnteringPassword
	default:
		snap.State = StateIdle
	}

	return snap
}

// ResetSession clears the transient session without touching the mode
// or the lockout record. Invoked by the door controller's auto-relock.
func (e *Engine) ResetSession() {
	e.session.resetAuth()
}

// Mode returns the active authentication mode.
func (e *Engine) Mode() Mode {
	return e.session.Mode
}

// SetMode sets the mode directly (the API's mode endpoint). Resets the
// session exactly like a keypad toggle.
func (e *Engine) SetMode(mode Mode) {
	if mode != ModeNormal && mode != ModeHighSecurity {
		return
	}
	if e.session.Mode == mode {
		return
	}
	e.session.Mode = mode
	e.session.resetAuth()
	e.auditor.Record(audit.KindModeChanged, audit.MethodSystem, string(mode), audit.StatusSuccess)
}
