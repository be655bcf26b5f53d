package access

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/wardenlabs/warden-core/internal/credential"
	"github.com/wardenlabs/warden-core/internal/infrastructure/config"
)

// ─── Test doubles ────────────────────────────────────────────────────

// mockCreds verifies against a plain map; the real Argon2id path is
// covered in the credential package.
type mockCreds struct {
	passwords map[string]credential.Role
	setCalls  []struct {
		role  credential.Role
		value string
	}
}

func (m *mockCreds) CheckPassword(_ context.Context, candidate string) (credential.Role, bool, error) {
	role, ok := m.passwords[candidate]
	return role, ok, nil
}

func (m *mockCreds) SetPassword(_ context.Context, role credential.Role, password string) error {
	m.setCalls = append(m.setCalls, struct {
		role  credential.Role
		value string
	}{role, password})
	m.passwords[password] = role
	return nil
}

type mockSlots struct {
	occupied map[int]bool
}

func (m *mockSlots) NextFreeSlot(_ context.Context) (int, error) {
	for slot := credential.MinSlot; slot <= credential.MaxSlot; slot++ {
		if !m.occupied[slot] {
			return slot, nil
		}
	}
	return 0, credential.ErrSlotsFull
}

func (m *mockSlots) AddSlot(_ context.Context, slot int, _ string) error {
	if m.occupied[slot] {
		return credential.ErrSlotOccupied
	}
	m.occupied[slot] = true
	return nil
}

func (m *mockSlots) DeleteSlot(_ context.Context, slot int) error {
	if !m.occupied[slot] {
		return credential.ErrSlotNotFound
	}
	delete(m.occupied, slot)
	return nil
}

func (m *mockSlots) DeleteAllSlots(_ context.Context) (int, error) {
	count := len(m.occupied)
	m.occupied = map[int]bool{}
	return count, nil
}

type mockCommander struct {
	enrolled   []int
	deleted    []int
	deletedAll int
}

func (m *mockCommander) Enroll(slot int) error {
	m.enrolled = append(m.enrolled, slot)
	return nil
}

func (m *mockCommander) Delete(slot int) error {
	m.deleted = append(m.deleted, slot)
	return nil
}

func (m *mockCommander) DeleteAll() error {
	m.deletedAll++
	return nil
}

type auditRecord struct {
	kind, method, actor, status string
}

type mockAuditor struct {
	mu      sync.Mutex
	records []auditRecord
}

func (m *mockAuditor) Record(kind, method, actor, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, auditRecord{kind, method, actor, status})
}

func (m *mockAuditor) has(kind, status string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.kind == kind && r.status == status {
			return true
		}
	}
	return false
}

// ─── Harness ─────────────────────────────────────────────────────────

type harness struct {
	engine    *Engine
	creds     *mockCreds
	slots     *mockSlots
	commander *mockCommander
	auditor   *mockAuditor
	now       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	creds := &mockCreds{passwords: map[string]credential.Role{
		"1234": credential.RoleAdmin,
		"0000": credential.RoleUser,
	}}
	slots := &mockSlots{occupied: map[int]bool{}}
	commander := &mockCommander{}
	auditor := &mockAuditor{}

	cfg := config.AuthPolicyConfig{
		MaxAttempts:            3,
		LockoutSeconds:         30,
		TwoFactorWindowSeconds: 30,
		ChangeWindowSeconds:    15,
		DoorOpenSeconds:        5,
		MinPasswordLength:      4,
	}

	return &harness{
		engine:    New(cfg, creds, slots, commander, auditor, slog.New(slog.NewTextHandler(io.Discard, nil))),
		creds:     creds,
		slots:     slots,
		commander: commander,
		auditor:   auditor,
		now:       time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
	}
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func (h *harness) send(t *testing.T, ev Event) Verdict {
	t.Helper()
	return h.engine.HandleEvent(context.Background(), ev, h.now, false)
}

func (h *harness) sendOverheated(t *testing.T, ev Event) Verdict {
	t.Helper()
	return h.engine.HandleEvent(context.Background(), ev, h.now, true)
}

func (h *harness) typeDigits(t *testing.T, digits string) {
	t.Helper()
	for i := 0; i < len(digits); i++ {
		h.send(t, Event{Kind: EventDigit, Digit: digits[i]})
	}
}

func (h *harness) submit(t *testing.T, digits string) Verdict {
	t.Helper()
	h.typeDigits(t, digits)
	return h.send(t, Event{Kind: EventSubmit})
}

// ─── Input buffer ────────────────────────────────────────────────────

func TestBufferHoldsDigitsVerbatim(t *testing.T) {
	h := newHarness(t)

	h.typeDigits(t, "12345")
	if got := string(h.engine.session.Buffer); got != "12345" {
		t.Errorf("buffer = %q, want %q", got, "12345")
	}
}

func TestBufferDropsEleventhDigit(t *testing.T) {
	h := newHarness(t)

	h.typeDigits(t, "01234567890") // 11 digits
	if got := string(h.engine.session.Buffer); got != "0123456789" {
		t.Errorf("buffer = %q, want first 10 digits only", got)
	}
}

func TestClearInputEmptiesBuffer(t *testing.T) {
	h := newHarness(t)

	h.typeDigits(t, "987")
	h.send(t, Event{Kind: EventClearInput})
	if len(h.engine.session.Buffer) != 0 {
		t.Error("buffer not cleared")
	}
}

// ─── Password submission ─────────────────────────────────────────────

func TestAdminPasswordGrants(t *testing.T) {
	h := newHarness(t)

	v := h.submit(t, "1234")
	if v.Kind != VerdictGranted {
		t.Fatalf("verdict = %v, want Granted", v.Kind)
	}
	if v.Method != MethodPassword || v.Role != credential.RoleAdmin {
		t.Errorf("method/role = %v/%v, want password/admin", v.Method, v.Role)
	}
	if len(h.engine.session.Buffer) != 0 {
		t.Error("buffer not cleared after submit")
	}
}

func TestUserPasswordGrants(t *testing.T) {
	h := newHarness(t)

	v := h.submit(t, "0000")
	if v.Kind != VerdictGranted || v.Role != credential.RoleUser {
		t.Errorf("verdict = %v role %v, want Granted/user", v.Kind, v.Role)
	}
}

func TestWrongPasswordDeniedWithRemaining(t *testing.T) {
	h := newHarness(t)

	v := h.submit(t, "5555")
	if v.Kind != VerdictDenied {
		t.Fatalf("verdict = %v, want Denied", v.Kind)
	}
	if v.Remaining != 2 {
		t.Errorf("remaining = %d, want 2", v.Remaining)
	}
}

func TestEmptySubmitIsNoOp(t *testing.T) {
	h := newHarness(t)

	v := h.send(t, Event{Kind: EventSubmit})
	if v.Kind != VerdictNoOp {
		t.Errorf("verdict = %v, want NoOp", v.Kind)
	}
}

// ─── Keypad lockout ──────────────────────────────────────────────────

func TestThreeWrongPasswordsLockTheSystem(t *testing.T) {
	h := newHarness(t)

	h.submit(t, "1111")
	h.submit(t, "2222")
	v := h.submit(t, "3333")

	if v.Kind != VerdictLockedOut {
		t.Fatalf("third wrong submit = %v, want LockedOut", v.Kind)
	}
	snap := h.engine.Snapshot(h.now)
	if !snap.SystemLocked {
		t.Error("system not locked")
	}
	if !h.auditor.has("SYSTEM_LOCKED", "FAILED") {
		t.Error("SYSTEM_LOCKED audit event missing")
	}
}

func TestLockoutIgnoresKeypadInput(t *testing.T) {
	h := newHarness(t)

	for _, p := range []string{"1111", "2222", "3333"} {
		h.submit(t, p)
	}

	// Digits and even the correct password are ignored while locked.
	v := h.submit(t, "1234")
	if v.Kind != VerdictNoOp {
		t.Errorf("submit while locked = %v, want NoOp", v.Kind)
	}
	if h.engine.Snapshot(h.now).BufferLen != 0 {
		t.Error("digits buffered while locked")
	}
}

func TestLockoutExpiresByTime(t *testing.T) {
	h := newHarness(t)

	for _, p := range []string{"1111", "2222", "3333"} {
		h.submit(t, p)
	}

	h.advance(29 * time.Second)
	if !h.engine.Snapshot(h.now).SystemLocked {
		t.Fatal("lockout expired early")
	}

	h.advance(time.Second)
	snap := h.engine.Snapshot(h.now)
	if snap.SystemLocked {
		t.Fatal("lockout did not expire")
	}

	// Counter reset with the expiry: a fresh wrong attempt reports two left.
	v := h.submit(t, "7777")
	if v.Kind != VerdictDenied || v.Remaining != 2 {
		t.Errorf("post-expiry attempt = %v remaining %d, want Denied/2", v.Kind, v.Remaining)
	}
}

// ─── Fingerprint lock ────────────────────────────────────────────────

func TestThreeMismatchesLockFingerprint(t *testing.T) {
	h := newHarness(t)

	h.send(t, Event{Kind: EventFingerprintRejected})
	h.send(t, Event{Kind: EventFingerprintRejected})
	v := h.send(t, Event{Kind: EventFingerprintRejected})

	if v.Kind != VerdictLockedOut || v.Method != MethodFingerprint {
		t.Fatalf("third mismatch = %v/%v, want LockedOut/fingerprint", v.Kind, v.Method)
	}
	if !h.engine.Snapshot(h.now).FingerprintLocked {
		t.Error("fingerprint not locked")
	}

	// Matches are ignored while locked.
	v = h.send(t, Event{Kind: EventFingerprintMatched, FingerprintID: 3})
	if v.Kind != VerdictNoOp {
		t.Errorf("match while locked = %v, want NoOp", v.Kind)
	}
}

func TestFingerprintLockNeverExpiresByTime(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 3; i++ {
		h.send(t, Event{Kind: EventFingerprintRejected})
	}

	h.advance(24 * time.Hour)
	h.engine.Tick(h.now)
	if !h.engine.Snapshot(h.now).FingerprintLocked {
		t.Error("fingerprint lock cleared by elapsed time")
	}
}

func TestValidPasswordClearsFingerprintLockAtomically(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 3; i++ {
		h.send(t, Event{Kind: EventFingerprintRejected})
	}

	v := h.submit(t, "0000")
	if v.Kind != VerdictGranted {
		t.Fatalf("password after finger lock = %v, want Granted", v.Kind)
	}
	if !h.auditor.has("DOOR_OPEN", "SUCCESS_AFTER_FINGER_LOCK") {
		t.Error("SUCCESS_AFTER_FINGER_LOCK audit event missing")
	}

	snap := h.engine.Snapshot(h.now)
	if snap.FingerprintLocked {
		t.Error("fingerprint lock not cleared")
	}

	// Counter cleared too: two fresh mismatches must not re-lock.
	h.send(t, Event{Kind: EventFingerprintRejected})
	v = h.send(t, Event{Kind: EventFingerprintRejected})
	if v.Kind != VerdictDenied {
		t.Errorf("second fresh mismatch = %v, want Denied (counter was reset)", v.Kind)
	}
}

func TestPasswordClearsFingerprintLockEvenInHighSecurity(t *testing.T) {
	h := newHarness(t)
	h.send(t, Event{Kind: EventToggleMode})

	for i := 0; i < 3; i++ {
		h.send(t, Event{Kind: EventFingerprintRejected})
	}

	// Policy choice: the password opens the door directly here, it does
	// not start a two-factor window against a locked sensor.
	v := h.submit(t, "1234")
	if v.Kind != VerdictGranted || v.Method != MethodPassword {
		t.Errorf("verdict = %v/%v, want Granted/password", v.Kind, v.Method)
	}
}

// ─── High-security mode ──────────────────────────────────────────────

func TestTwoFactorPasswordThenFingerprint(t *testing.T) {
	h := newHarness(t)
	h.send(t, Event{Kind: EventToggleMode})

	v := h.submit(t, "1234")
	if v.Kind != VerdictAwaitingSecondFactor {
		t.Fatalf("first factor = %v, want AwaitingSecondFactor", v.Kind)
	}

	h.advance(10 * time.Second)
	v = h.send(t, Event{Kind: EventFingerprintMatched, FingerprintID: 5})
	if v.Kind != VerdictGranted || v.Method != MethodTwoFactor {
		t.Fatalf("second factor = %v/%v, want Granted/two_factor", v.Kind, v.Method)
	}
	if v.Role != credential.RoleAdmin || v.FingerprintID != 5 {
		t.Errorf("role/slot = %v/%d, want admin/5", v.Role, v.FingerprintID)
	}
}

func TestTwoFactorFingerprintThenPassword(t *testing.T) {
	h := newHarness(t)
	h.send(t, Event{Kind: EventToggleMode})

	v := h.send(t, Event{Kind: EventFingerprintMatched, FingerprintID: 7})
	if v.Kind != VerdictAwaitingSecondFactor {
		t.Fatalf("first factor = %v, want AwaitingSecondFactor", v.Kind)
	}

	v = h.submit(t, "0000")
	if v.Kind != VerdictGranted || v.Method != MethodTwoFactor || v.Role != credential.RoleUser {
		t.Errorf("second factor = %v/%v/%v, want Granted/two_factor/user", v.Kind, v.Method, v.Role)
	}
}

func TestTwoFactorWrongPasswordKeepsFingerprintFactor(t *testing.T) {
	h := newHarness(t)
	h.send(t, Event{Kind: EventToggleMode})

	h.send(t, Event{Kind: EventFingerprintMatched, FingerprintID: 5})
	v := h.submit(t, "9999")

	if v.Kind != VerdictDenied {
		t.Fatalf("wrong password = %v, want Denied", v.Kind)
	}
	snap := h.engine.Snapshot(h.now)
	if !snap.FingerprintVerified {
		t.Error("fingerprint factor lost on wrong password")
	}

	// The right password still completes the pair.
	v = h.submit(t, "1234")
	if v.Kind != VerdictGranted || v.Method != MethodTwoFactor {
		t.Errorf("retry = %v/%v, want Granted/two_factor", v.Kind, v.Method)
	}
}

func TestTwoFactorWindowExpiryResetsBothFactors(t *testing.T) {
	h := newHarness(t)
	h.send(t, Event{Kind: EventToggleMode})

	h.submit(t, "1234")
	h.advance(31 * time.Second)
	h.engine.Tick(h.now)

	snap := h.engine.Snapshot(h.now)
	if snap.PasswordVerified || snap.FingerprintVerified {
		t.Fatal("factors survived window expiry")
	}

	// A fingerprint now starts a fresh window instead of completing.
	v := h.send(t, Event{Kind: EventFingerprintMatched, FingerprintID: 2})
	if v.Kind != VerdictAwaitingSecondFactor {
		t.Errorf("post-expiry match = %v, want AwaitingSecondFactor", v.Kind)
	}
}

func TestSingleFactorNeverGrantsInHighSecurity(t *testing.T) {
	h := newHarness(t)
	h.send(t, Event{Kind: EventToggleMode})

	if v := h.submit(t, "1234"); v.Kind == VerdictGranted {
		t.Error("password alone granted in high-security mode")
	}
	h.send(t, Event{Kind: EventCancel})
	if v := h.send(t, Event{Kind: EventFingerprintMatched, FingerprintID: 1}); v.Kind == VerdictGranted {
		t.Error("fingerprint alone granted in high-security mode")
	}
}

func TestToggleModeResetsSession(t *testing.T) {
	h := newHarness(t)
	h.send(t, Event{Kind: EventToggleMode})
	h.submit(t, "1234") // password factor pending

	h.send(t, Event{Kind: EventToggleMode}) // back to normal
	snap := h.engine.Snapshot(h.now)
	if snap.PasswordVerified {
		t.Error("verified flag survived mode toggle")
	}
	if snap.Mode != ModeNormal {
		t.Errorf("mode = %v, want normal", snap.Mode)
	}
}

// ─── Overheat gating ─────────────────────────────────────────────────

func TestFingerprintMatchIgnoredWhileOverheated(t *testing.T) {
	h := newHarness(t)

	v := h.sendOverheated(t, Event{Kind: EventFingerprintMatched, FingerprintID: 1})
	if v.Kind != VerdictNoOp {
		t.Errorf("match while overheated = %v, want NoOp", v.Kind)
	}
}

// ─── Password change flow ────────────────────────────────────────────

func TestPasswordChangeHappyPath(t *testing.T) {
	h := newHarness(t)

	h.typeDigits(t, "1234")
	v := h.send(t, Event{Kind: EventChangePassword})
	if v.Kind != VerdictChangeStarted {
		t.Fatalf("change request = %v, want ChangeStarted", v.Kind)
	}

	h.send(t, Event{Kind: EventDigit, Digit: '2'}) // target: user
	h.typeDigits(t, "8765")
	v = h.send(t, Event{Kind: EventSubmit})

	if v.Kind != VerdictPasswordChanged || v.Role != credential.RoleUser {
		t.Fatalf("change submit = %v/%v, want PasswordChanged/user", v.Kind, v.Role)
	}
	if len(h.creds.setCalls) != 1 || h.creds.setCalls[0].value != "8765" {
		t.Errorf("SetPassword calls = %+v, want one call with 8765", h.creds.setCalls)
	}
}

func TestPasswordChangeDeniedForUserCredential(t *testing.T) {
	h := newHarness(t)

	h.typeDigits(t, "0000")
	v := h.send(t, Event{Kind: EventChangePassword})
	if v.Kind != VerdictDenied {
		t.Errorf("user credential change request = %v, want Denied", v.Kind)
	}
	if !h.auditor.has("PASSWORD_CHANGED", "DENIED") {
		t.Error("denial not audited")
	}
}

func TestPasswordChangeRejectsShortValue(t *testing.T) {
	h := newHarness(t)

	h.typeDigits(t, "1234")
	h.send(t, Event{Kind: EventChangePassword})
	h.send(t, Event{Kind: EventDigit, Digit: '1'})
	h.typeDigits(t, "99") // below minimum length 4
	v := h.send(t, Event{Kind: EventSubmit})

	if v.Kind != VerdictDenied {
		t.Errorf("short value = %v, want Denied", v.Kind)
	}
	if len(h.creds.setCalls) != 0 {
		t.Error("SetPassword called with a short value")
	}
}

func TestPasswordChangeFlowTimesOut(t *testing.T) {
	h := newHarness(t)

	h.typeDigits(t, "1234")
	h.send(t, Event{Kind: EventChangePassword})

	h.advance(16 * time.Second)
	h.engine.Tick(h.now)

	if h.engine.Snapshot(h.now).State == StateChangingPassword {
		t.Fatal("change flow survived its entry window")
	}

	// Digits now land in the ordinary entry buffer.
	h.typeDigits(t, "1")
	if h.engine.Snapshot(h.now).State != StateEnteringPassword {
		t.Error("digit after timeout did not buffer normally")
	}
}

// ─── Fingerprint management ──────────────────────────────────────────

func TestEnrollRequiresAdmin(t *testing.T) {
	h := newHarness(t)

	// No buffered admin password, not pre-authorised.
	v := h.send(t, Event{Kind: EventEnrollFingerprint})
	if v.Kind != VerdictDenied {
		t.Fatalf("unauthorised enroll = %v, want Denied", v.Kind)
	}
	if len(h.commander.enrolled) != 0 {
		t.Error("enroll command sent without authorisation")
	}
}

func TestEnrollPicksNextFreeSlot(t *testing.T) {
	h := newHarness(t)
	h.slots.occupied[1] = true
	h.slots.occupied[2] = true

	v := h.send(t, Event{Kind: EventEnrollFingerprint, Authorized: true})
	if v.Kind != VerdictEnrollStarted || v.FingerprintID != 3 {
		t.Fatalf("enroll = %v slot %d, want EnrollStarted/3", v.Kind, v.FingerprintID)
	}
	if len(h.commander.enrolled) != 1 || h.commander.enrolled[0] != 3 {
		t.Errorf("commander.enrolled = %v, want [3]", h.commander.enrolled)
	}

	// Bridge confirmation records the slot and audits it.
	h.send(t, Event{Kind: EventFingerprintEnrolled, FingerprintID: 3})
	if !h.slots.occupied[3] {
		t.Error("confirmed slot not recorded")
	}
	if !h.auditor.has("FINGERPRINT_ENROLLED", "SUCCESS") {
		t.Error("enrolment not audited")
	}
}

func TestEnrollViaKeypadAdminPassword(t *testing.T) {
	h := newHarness(t)

	h.typeDigits(t, "1234")
	v := h.send(t, Event{Kind: EventEnrollFingerprint})
	if v.Kind != VerdictEnrollStarted {
		t.Errorf("keypad-authorised enroll = %v, want EnrollStarted", v.Kind)
	}
}

func TestDeleteFingerprint(t *testing.T) {
	h := newHarness(t)
	h.slots.occupied[4] = true

	v := h.send(t, Event{Kind: EventDeleteFingerprint, FingerprintID: 4, Authorized: true})
	if v.Kind != VerdictFingerprintDeleted {
		t.Fatalf("delete = %v, want FingerprintDeleted", v.Kind)
	}
	if h.slots.occupied[4] {
		t.Error("slot record not removed")
	}
	if len(h.commander.deleted) != 1 || h.commander.deleted[0] != 4 {
		t.Errorf("commander.deleted = %v, want [4]", h.commander.deleted)
	}
}

func TestDeleteEmptySlotDenied(t *testing.T) {
	h := newHarness(t)

	v := h.send(t, Event{Kind: EventDeleteFingerprint, FingerprintID: 9, Authorized: true})
	if v.Kind != VerdictDenied {
		t.Errorf("delete of empty slot = %v, want Denied", v.Kind)
	}
}

func TestDeleteAllFingerprints(t *testing.T) {
	h := newHarness(t)
	h.slots.occupied[2] = true
	h.slots.occupied[5] = true

	v := h.send(t, Event{Kind: EventDeleteAllFingerprints, Authorized: true})
	if v.Kind != VerdictFingerprintDeleted {
		t.Fatalf("delete all = %v, want FingerprintDeleted", v.Kind)
	}
	if len(h.slots.occupied) != 0 {
		t.Error("slot records not wiped")
	}
	if h.commander.deletedAll != 1 {
		t.Errorf("commander.deletedAll = %d, want 1", h.commander.deletedAll)
	}
	if !h.auditor.has("FINGERPRINT_DELETED", "SUCCESS") {
		t.Error("wipe not audited")
	}
}

func TestDeleteAllRequiresAdmin(t *testing.T) {
	h := newHarness(t)
	h.slots.occupied[2] = true

	v := h.send(t, Event{Kind: EventDeleteAllFingerprints})
	if v.Kind != VerdictDenied {
		t.Fatalf("unauthorised delete all = %v, want Denied", v.Kind)
	}
	if h.commander.deletedAll != 0 {
		t.Error("delete-all command sent without authorisation")
	}
}

// ─── Snapshot ────────────────────────────────────────────────────────

func TestSnapshotStatePriority(t *testing.T) {
	h := newHarness(t)

	if s := h.engine.Snapshot(h.now).State; s != StateIdle {
		t.Errorf("initial state = %v, want idle", s)
	}

	h.typeDigits(t, "12")
	if s := h.engine.Snapshot(h.now).State; s != StateEnteringPassword {
		t.Errorf("state = %v, want entering_password", s)
	}

	for _, p := range []string{"1111", "2222", "3333"} {
		h.submit(t, p)
	}
	if s := h.engine.Snapshot(h.now).State; s != StateLockedOut {
		t.Errorf("state = %v, want locked_out", s)
	}

	snap := h.engine.Snapshot(h.now)
	if snap.LockoutRemaining <= 0 || snap.LockoutRemaining > 30*time.Second {
		t.Errorf("LockoutRemaining = %v, want within (0, 30s]", snap.LockoutRemaining)
	}
}
