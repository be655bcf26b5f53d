package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Warden Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	AuthPolicy AuthPolicyConfig `yaml:"auth_policy"`
	Safety     SafetyConfig     `yaml:"safety"`
	Ambient    AmbientConfig    `yaml:"ambient"`
	Sensors    SensorConfig     `yaml:"sensors"`
	Security   SecurityConfig   `yaml:"security"`
}

// SiteConfig identifies the entry point this instance guards.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings for telemetry history.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// AuthPolicyConfig contains the authentication and lockout policy.
//
// Durations are expressed in seconds to keep the YAML readable on site;
// use the typed getters when wiring into the engine.
type AuthPolicyConfig struct {
	// MaxAttempts is the number of consecutive wrong passwords (or
	// fingerprint mismatches) before the corresponding lock engages.
	MaxAttempts int `yaml:"max_attempts"`

	// LockoutSeconds is how long keypad authentication stays locked
	// after MaxAttempts wrong passwords.
	LockoutSeconds int `yaml:"lockout_seconds"`

	// TwoFactorWindowSeconds is how long the second factor may lag the
	// first in high-security mode.
	TwoFactorWindowSeconds int `yaml:"two_factor_window_seconds"`

	// ChangeWindowSeconds bounds each step of the admin password-change
	// and fingerprint-management flows.
	ChangeWindowSeconds int `yaml:"change_window_seconds"`

	// DoorOpenSeconds is how long the door stays unlocked after a grant.
	DoorOpenSeconds int `yaml:"door_open_seconds"`

	// MinPasswordLength is the minimum accepted length for new passwords.
	MinPasswordLength int `yaml:"min_password_length"`
}

// SafetyConfig contains the thermal cutoff policy.
type SafetyConfig struct {
	// WarnThreshold is the temperature (°C) at which overheat preemption trips.
	WarnThreshold float64 `yaml:"warn_threshold"`

	// Hysteresis is how far below WarnThreshold the temperature must fall
	// before the overheat condition clears.
	Hysteresis float64 `yaml:"hysteresis"`
}

// AmbientConfig contains the automation engine settings.
type AmbientConfig struct {
	// FanOnThreshold is the temperature (°C) at which the cooling fan starts.
	FanOnThreshold float64 `yaml:"fan_on_threshold"`

	// FanHysteresis is how far below FanOnThreshold the temperature must
	// fall before the fan stops.
	FanHysteresis float64 `yaml:"fan_hysteresis"`

	// DarkThreshold is the light-sensor reading above which it is
	// considered dark (the LDR reads higher in darkness).
	DarkThreshold int `yaml:"dark_threshold"`

	// GuestLightSeconds is how long lighting is forced on after a sound trigger.
	GuestLightSeconds int `yaml:"guest_light_seconds"`
}

// SensorConfig contains sensor adapter settings.
type SensorConfig struct {
	// SampleIntervalSeconds rate-limits environment sample intake.
	SampleIntervalSeconds int `yaml:"sample_interval_seconds"`
}

// SecurityConfig contains API security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings for the HTTP API.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: WARDEN_SECTION_KEY
// For example: WARDEN_DATABASE_PATH, WARDEN_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
//
// The policy defaults match the reference entry-point deployment:
// 3 attempts, 30 s lockout, 30 s two-factor window, 5 s door-open time,
// 40 °C thermal cutoff with a 5° recovery band, 30 °C fan threshold with
// a 2° band, 10 s guest illumination.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "entry-001",
			Name: "Warden",
		},
		Database: DatabaseConfig{
			Path:        "./data/warden.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "warden-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		AuthPolicy: AuthPolicyConfig{
			MaxAttempts:            3,
			LockoutSeconds:         30,
			TwoFactorWindowSeconds: 30,
			ChangeWindowSeconds:    15,
			DoorOpenSeconds:        5,
			MinPasswordLength:      4,
		},
		Safety: SafetyConfig{
			WarnThreshold: 40.0,
			Hysteresis:    5.0,
		},
		Ambient: AmbientConfig{
			FanOnThreshold:    30.0,
			FanHysteresis:     2.0,
			DarkThreshold:     2500,
			GuestLightSeconds: 10,
		},
		Sensors: SensorConfig{
			SampleIntervalSeconds: 2,
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: WARDEN_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("WARDEN_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("WARDEN_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("WARDEN_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("WARDEN_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("WARDEN_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("WARDEN_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("WARDEN_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("WARDEN_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.AuthPolicy.MaxAttempts < 1 {
		errs = append(errs, "auth_policy.max_attempts must be at least 1")
	}
	if c.AuthPolicy.DoorOpenSeconds < 1 {
		errs = append(errs, "auth_policy.door_open_seconds must be at least 1")
	}
	if c.AuthPolicy.MinPasswordLength < 4 {
		errs = append(errs, "auth_policy.min_password_length must be at least 4")
	}

	// The overheat band must clear below the trip point, otherwise the
	// cutoff would chatter or never release.
	if c.Safety.Hysteresis <= 0 {
		errs = append(errs, "safety.hysteresis must be positive")
	}
	if c.Ambient.FanOnThreshold >= c.Safety.WarnThreshold {
		errs = append(errs, "ambient.fan_on_threshold must be below safety.warn_threshold")
	}

	// JWT secret is REQUIRED. Warden controls a physical lock: a forged
	// token is a forged key.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set WARDEN_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// LockoutDuration returns the keypad lockout duration.
func (c *AuthPolicyConfig) LockoutDuration() time.Duration {
	return time.Duration(c.LockoutSeconds) * time.Second
}

// TwoFactorWindow returns the two-factor completion window.
func (c *AuthPolicyConfig) TwoFactorWindow() time.Duration {
	return time.Duration(c.TwoFactorWindowSeconds) * time.Second
}

// ChangeWindow returns the admin-flow entry window.
func (c *AuthPolicyConfig) ChangeWindow() time.Duration {
	return time.Duration(c.ChangeWindowSeconds) * time.Second
}

// DoorOpenTime returns how long the door stays unlocked.
func (c *AuthPolicyConfig) DoorOpenTime() time.Duration {
	return time.Duration(c.DoorOpenSeconds) * time.Second
}

// GuestLightDuration returns the sound-triggered illumination window.
func (c *AmbientConfig) GuestLightDuration() time.Duration {
	return time.Duration(c.GuestLightSeconds) * time.Second
}

// SampleInterval returns the minimum spacing between environment samples.
func (c *SensorConfig) SampleInterval() time.Duration {
	return time.Duration(c.SampleIntervalSeconds) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
