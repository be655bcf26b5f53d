package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wardenlabs/warden-core/internal/access"
	"github.com/wardenlabs/warden-core/internal/audit"
	"github.com/wardenlabs/warden-core/internal/controller"
	"github.com/wardenlabs/warden-core/internal/credential"
	"github.com/wardenlabs/warden-core/internal/infrastructure/config"
	"github.com/wardenlabs/warden-core/internal/infrastructure/logging"
)

// ─── Test doubles ────────────────────────────────────────────────────

type mockControl struct {
	status   controller.Status
	mode     access.Mode
	injected []access.Event
	full     bool
}

func (m *mockControl) Status(_ time.Time) controller.Status { return m.status }
func (m *mockControl) SetMode(mode access.Mode)             { m.mode = mode }

func (m *mockControl) Inject(ev access.Event) bool {
	if m.full {
		return false
	}
	m.injected = append(m.injected, ev)
	return true
}

type mockCredentials struct {
	passwords map[string]credential.Role
	set       map[credential.Role]string
	slots     []credential.FingerprintSlot
}

func (m *mockCredentials) CheckPassword(_ context.Context, candidate string) (credential.Role, bool, error) {
	role, ok := m.passwords[candidate]
	return role, ok, nil
}

func (m *mockCredentials) SetPassword(_ context.Context, role credential.Role, password string) error {
	if m.set == nil {
		m.set = map[credential.Role]string{}
	}
	m.set[role] = password
	return nil
}

func (m *mockCredentials) ListSlots(_ context.Context) ([]credential.FingerprintSlot, error) {
	return m.slots, nil
}

func (m *mockCredentials) HasSlot(_ context.Context, slot int) (bool, error) {
	for _, s := range m.slots {
		if s.Slot == slot {
			return true, nil
		}
	}
	return false, nil
}

type mockAuditRepo struct {
	lastFilter audit.Filter
}

func (m *mockAuditRepo) Create(_ context.Context, _ *audit.Event) error { return nil }

func (m *mockAuditRepo) List(_ context.Context, filter audit.Filter) (*audit.ListResult, error) {
	m.lastFilter = filter
	return &audit.ListResult{Events: []audit.Event{}, Limit: 50}, nil
}

type mockRecorder struct {
	events []audit.Event
}

func (m *mockRecorder) Record(event audit.Event) { m.events = append(m.events, event) }

// ─── Harness ─────────────────────────────────────────────────────────

type harness struct {
	srv      *Server
	handler  http.Handler
	ctrl     *mockControl
	creds    *mockCredentials
	repo     *mockAuditRepo
	recorder *mockRecorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	ctrl := &mockControl{status: controller.Status{Site: "entry-001", Mode: access.ModeNormal, State: access.StateIdle}}
	creds := &mockCredentials{
		passwords: map[string]credential.Role{
			"1234": credential.RoleAdmin,
			"0000": credential.RoleUser,
		},
		slots: []credential.FingerprintSlot{{Slot: 3, Label: "resident"}},
	}
	repo := &mockAuditRepo{}
	recorder := &mockRecorder{}

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{
				Secret:         "test-secret-key-at-least-32-characters-long",
				AccessTokenTTL: 15,
			},
		},
		AuthPolicy:  config.AuthPolicyConfig{MinPasswordLength: 4},
		Logger:      log,
		Controller:  ctrl,
		Credentials: creds,
		AuditRepo:   repo,
		Recorder:    recorder,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return &harness{
		srv:      srv,
		handler:  srv.buildRouter(),
		ctrl:     ctrl,
		creds:    creds,
		repo:     repo,
		recorder: recorder,
	}
}

// request performs one request against the router.
func (h *harness) request(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

// login returns a valid token for the given password.
func (h *harness) login(t *testing.T, password string) string {
	t.Helper()

	rec := h.request(t, http.MethodPost, "/api/v1/auth/login", "", `{"password":"`+password+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding login response: %v", err)
	}
	return resp.AccessToken
}

// ─── Auth ────────────────────────────────────────────────────────────

func TestHealthRequiresNoAuth(t *testing.T) {
	h := newHarness(t)

	rec := h.request(t, http.MethodGet, "/api/v1/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health returned %d", rec.Code)
	}
}

func TestLoginResolvesRole(t *testing.T) {
	h := newHarness(t)

	rec := h.request(t, http.MethodPost, "/api/v1/auth/login", "", `{"password":"0000"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login returned %d", rec.Code)
	}

	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Role != "user" {
		t.Errorf("role = %q, want user", resp.Role)
	}
	if resp.AccessToken == "" {
		t.Error("empty access token")
	}
}

func TestLoginRejectsUnknownCredential(t *testing.T) {
	h := newHarness(t)

	rec := h.request(t, http.MethodPost, "/api/v1/auth/login", "", `{"password":"9999"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("login returned %d, want 401", rec.Code)
	}
}

func TestStatusRequiresToken(t *testing.T) {
	h := newHarness(t)

	if rec := h.request(t, http.MethodGet, "/api/v1/status", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status returned %d, want 401", rec.Code)
	}
	if rec := h.request(t, http.MethodGet, "/api/v1/status", "not-a-token", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token returned %d, want 401", rec.Code)
	}

	token := h.login(t, "0000")
	rec := h.request(t, http.MethodGet, "/api/v1/status", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status returned %d", rec.Code)
	}

	var status controller.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if status.Site != "entry-001" {
		t.Errorf("site = %q", status.Site)
	}
}

func TestAdminEndpointsRejectUserRole(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, "0000")

	cases := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPut, "/api/v1/mode", `{"mode":"normal"}`},
		{http.MethodPut, "/api/v1/credentials/user", `{"password":"5678"}`},
		{http.MethodGet, "/api/v1/fingerprints/", ""},
		{http.MethodPost, "/api/v1/fingerprints/", ""},
		{http.MethodDelete, "/api/v1/fingerprints/3", ""},
	}
	for _, tc := range cases {
		if rec := h.request(t, tc.method, tc.path, token, tc.body); rec.Code != http.StatusForbidden {
			t.Errorf("%s %s returned %d, want 403", tc.method, tc.path, rec.Code)
		}
	}
}

// ─── Mode ────────────────────────────────────────────────────────────

func TestSetMode(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, "1234")

	rec := h.request(t, http.MethodPut, "/api/v1/mode", token, `{"mode":"high_security"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("set mode returned %d: %s", rec.Code, rec.Body.String())
	}
	if h.ctrl.mode != access.ModeHighSecurity {
		t.Errorf("controller mode = %q", h.ctrl.mode)
	}
}

func TestSetModeRejectsUnknownMode(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, "1234")

	rec := h.request(t, http.MethodPut, "/api/v1/mode", token, `{"mode":"paranoid"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("set mode returned %d, want 400", rec.Code)
	}
}

// ─── Credentials ─────────────────────────────────────────────────────

func TestSetCredential(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, "1234")

	rec := h.request(t, http.MethodPut, "/api/v1/credentials/user", token, `{"password":"8642"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("set credential returned %d: %s", rec.Code, rec.Body.String())
	}
	if h.creds.set[credential.RoleUser] != "8642" {
		t.Errorf("stored password = %q", h.creds.set[credential.RoleUser])
	}
	if len(h.recorder.events) != 1 || h.recorder.events[0].Kind != audit.KindPasswordChanged {
		t.Error("credential change not audited")
	}
}

func TestSetCredentialValidation(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, "1234")

	if rec := h.request(t, http.MethodPut, "/api/v1/credentials/root", token, `{"password":"8642"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown role returned %d, want 400", rec.Code)
	}
	if rec := h.request(t, http.MethodPut, "/api/v1/credentials/user", token, `{"password":"123"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("short password returned %d, want 400", rec.Code)
	}
}

// ─── Fingerprints ────────────────────────────────────────────────────

func TestEnrollFingerprintInjectsEvent(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, "1234")

	rec := h.request(t, http.MethodPost, "/api/v1/fingerprints/", token, `{"label":"courier"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("enroll returned %d: %s", rec.Code, rec.Body.String())
	}

	if len(h.ctrl.injected) != 1 {
		t.Fatalf("injected %d events, want 1", len(h.ctrl.injected))
	}
	ev := h.ctrl.injected[0]
	if ev.Kind != access.EventEnrollFingerprint || !ev.Authorized || ev.Label != "courier" {
		t.Errorf("injected event = %+v", ev)
	}
}

func TestEnrollFingerprintWhenControllerBusy(t *testing.T) {
	h := newHarness(t)
	h.ctrl.full = true
	token := h.login(t, "1234")

	rec := h.request(t, http.MethodPost, "/api/v1/fingerprints/", token, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("enroll returned %d, want 503", rec.Code)
	}
}

func TestDeleteFingerprint(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, "1234")

	rec := h.request(t, http.MethodDelete, "/api/v1/fingerprints/3", token, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("delete returned %d: %s", rec.Code, rec.Body.String())
	}
	ev := h.ctrl.injected[0]
	if ev.Kind != access.EventDeleteFingerprint || ev.FingerprintID != 3 || !ev.Authorized {
		t.Errorf("injected event = %+v", ev)
	}
}

func TestDeleteFingerprintValidation(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, "1234")

	if rec := h.request(t, http.MethodDelete, "/api/v1/fingerprints/0", token, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("slot 0 returned %d, want 400", rec.Code)
	}
	if rec := h.request(t, http.MethodDelete, "/api/v1/fingerprints/200", token, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("slot 200 returned %d, want 400", rec.Code)
	}
	if rec := h.request(t, http.MethodDelete, "/api/v1/fingerprints/9", token, ""); rec.Code != http.StatusNotFound {
		t.Errorf("unenrolled slot returned %d, want 404", rec.Code)
	}
}

func TestDeleteAllFingerprints(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, "1234")

	rec := h.request(t, http.MethodDelete, "/api/v1/fingerprints/", token, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("wipe returned %d: %s", rec.Code, rec.Body.String())
	}
	ev := h.ctrl.injected[0]
	if ev.Kind != access.EventDeleteAllFingerprints || !ev.Authorized {
		t.Errorf("injected event = %+v", ev)
	}
}

// ─── Audit ───────────────────────────────────────────────────────────

func TestListAuditPassesFilters(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, "0000")

	rec := h.request(t, http.MethodGet, "/api/v1/audit?kind=DOOR_OPEN&status=FAILED&limit=10&offset=5", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("audit list returned %d", rec.Code)
	}

	f := h.repo.lastFilter
	if f.Kind != "DOOR_OPEN" || f.Status != "FAILED" || f.Limit != 10 || f.Offset != 5 {
		t.Errorf("filter = %+v", f)
	}
}
