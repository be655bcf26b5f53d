package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// validYAML is a minimal config that passes validation.
const validYAML = `
site:
  id: entry-test

database:
  path: ./test.db

security:
  jwt:
    secret: "test-secret-key-at-least-32-characters-long"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.AuthPolicy.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.AuthPolicy.MaxAttempts)
	}
	if cfg.AuthPolicy.DoorOpenSeconds != 5 {
		t.Errorf("DoorOpenSeconds = %d, want 5", cfg.AuthPolicy.DoorOpenSeconds)
	}
	if cfg.Safety.WarnThreshold != 40.0 {
		t.Errorf("WarnThreshold = %v, want 40", cfg.Safety.WarnThreshold)
	}
	if cfg.Ambient.DarkThreshold != 2500 {
		t.Errorf("DarkThreshold = %d, want 2500", cfg.Ambient.DarkThreshold)
	}
	if cfg.MQTT.Broker.ClientID != "warden-core" {
		t.Errorf("ClientID = %q", cfg.MQTT.Broker.ClientID)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML+`
auth_policy:
  max_attempts: 5
  lockout_seconds: 60
  door_open_seconds: 10
`))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.AuthPolicy.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.AuthPolicy.MaxAttempts)
	}
	if cfg.AuthPolicy.LockoutSeconds != 60 {
		t.Errorf("LockoutSeconds = %d, want 60", cfg.AuthPolicy.LockoutSeconds)
	}
	// Untouched keys keep their defaults.
	if cfg.AuthPolicy.TwoFactorWindowSeconds != 30 {
		t.Errorf("TwoFactorWindowSeconds = %d, want 30", cfg.AuthPolicy.TwoFactorWindowSeconds)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("WARDEN_MQTT_HOST", "broker.example")
	t.Setenv("WARDEN_DATABASE_PATH", "/var/lib/warden/warden.db")

	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.MQTT.Broker.Host != "broker.example" {
		t.Errorf("MQTT host = %q", cfg.MQTT.Broker.Host)
	}
	if cfg.Database.Path != "/var/lib/warden/warden.db" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("Load() should fail for missing file")
	}
}

func TestValidateRejectsMissingJWTSecret(t *testing.T) {
	_, err := Load(writeConfig(t, `
site:
  id: entry-test
database:
  path: ./test.db
`))
	if err == nil || !strings.Contains(err.Error(), "jwt.secret") {
		t.Fatalf("Load() error = %v, want jwt.secret validation failure", err)
	}
}

func TestValidateRejectsShortJWTSecret(t *testing.T) {
	_, err := Load(writeConfig(t, `
site:
  id: entry-test
database:
  path: ./test.db
security:
  jwt:
    secret: "too-short"
`))
	if err == nil || !strings.Contains(err.Error(), "32 characters") {
		t.Fatalf("Load() error = %v, want secret length failure", err)
	}
}

func TestValidateRejectsFanThresholdAboveCutoff(t *testing.T) {
	_, err := Load(writeConfig(t, validYAML+`
ambient:
  fan_on_threshold: 45.0
`))
	if err == nil || !strings.Contains(err.Error(), "fan_on_threshold") {
		t.Fatalf("Load() error = %v, want fan threshold failure", err)
	}
}

func TestDurationGetters(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if got := cfg.AuthPolicy.LockoutDuration().Seconds(); got != 30 {
		t.Errorf("LockoutDuration = %vs, want 30s", got)
	}
	if got := cfg.AuthPolicy.DoorOpenTime().Seconds(); got != 5 {
		t.Errorf("DoorOpenTime = %vs, want 5s", got)
	}
	if got := cfg.Ambient.GuestLightDuration().Seconds(); got != 10 {
		t.Errorf("GuestLightDuration = %vs, want 10s", got)
	}
}
