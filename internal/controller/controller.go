package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wardenlabs/warden-core/internal/access"
	"github.com/wardenlabs/warden-core/internal/actuator"
	"github.com/wardenlabs/warden-core/internal/ambient"
	"github.com/wardenlabs/warden-core/internal/audit"
	"github.com/wardenlabs/warden-core/internal/display"
	"github.com/wardenlabs/warden-core/internal/door"
	"github.com/wardenlabs/warden-core/internal/infrastructure/config"
	"github.com/wardenlabs/warden-core/internal/infrastructure/mqtt"
	"github.com/wardenlabs/warden-core/internal/safety"
	"github.com/wardenlabs/warden-core/internal/sensors"
)

// tickInterval drives the arbitration loop. Everything time-bounded in
// the engines samples against this cadence.
const tickInterval = 100 * time.Millisecond

// eventsPerTick caps how many queued input events one tick consumes.
const eventsPerTick = 16

// injectQueueSize bounds externally injected events (API requests).
const injectQueueSize = 8

// Publisher is the MQTT surface the controller writes to.
// Implemented by mqtt.Client.
type Publisher interface {
	Publish(topic string, payload any) error
	PublishRetained(topic string, payload any) error
}

// Recorder receives audit events. Implemented by audit.Recorder.
type Recorder interface {
	Record(event audit.Event)
}

// Telemetry receives history writes. Implemented by influxdb.Client;
// nil disables telemetry.
type Telemetry interface {
	WriteEnvironment(siteID string, temperature, humidity float64, light int, ts time.Time)
	WriteAccessEvent(siteID, method, status string, ts time.Time)
	WriteSafetyTransition(siteID, state string, temperature float64, ts time.Time)
}

// CredentialStore is the persistence surface the engine needs.
// Implemented by credential.Store.
type CredentialStore interface {
	access.CredentialChecker
	access.SlotDirectory
}

// Controller runs the arbitration pipeline.
//
// One goroutine advances everything: sensor refresh, safety
// arbitration, ambient automation, authentication events, the door
// timer, output composition, the display projection and telemetry.
// The mutex exists only for the API's read/control calls; inside the
// loop there is exactly one mutator per tick.
type Controller struct {
	cfg    *config.Config
	logger *slog.Logger

	sensors   *sensors.Adapter
	engine    *access.Engine
	arbiter   *safety.Arbiter
	ambient   *ambient.Engine
	door      *door.Controller
	port      *actuator.Port
	publisher Publisher
	recorder  Recorder
	telemetry Telemetry

	inject chan access.Event

	mu               sync.Mutex
	lastDisplay      display.Intent
	haveDisplay      bool
	sensorView       bool
	lastEnvTelemetry time.Time
}

// New wires the pipeline together.
//
// Parameters:
//   - cfg: Full configuration
//   - store: Credential and fingerprint slot persistence
//   - sensorAdapter: Started sensor adapter
//   - publisher: MQTT client for actuator, display and command topics
//   - recorder: Audit sink front
//   - telemetry: History writer, nil to disable
//   - logger: Structured logger
func New(
	cfg *config.Config,
	store CredentialStore,
	sensorAdapter *sensors.Adapter,
	publisher Publisher,
	recorder Recorder,
	telemetry Telemetry,
	logger *slog.Logger,
) *Controller {
	c := &Controller{
		cfg:       cfg,
		logger:    logger,
		sensors:   sensorAdapter,
		arbiter:   safety.New(cfg.Safety),
		ambient:   ambient.New(cfg.Ambient),
		door:      door.New(cfg.AuthPolicy),
		port:      actuator.NewPort(publisher, logger),
		publisher: publisher,
		recorder:  recorder,
		telemetry: telemetry,
		inject:    make(chan access.Event, injectQueueSize),
	}

	c.engine = access.New(
		cfg.AuthPolicy,
		store,
		store,
		&fingerprintCommands{pub: publisher},
		&auditAdapter{c: c},
		logger,
	)

	return c
}

// Run drives the tick loop until the context is cancelled.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	c.logger.Info("arbitration loop started", "tick", tickInterval.String())

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("arbitration loop stopped")
			return
		case now := <-ticker.C:
			c.Tick(ctx, now)
		}
	}
}

// Tick runs one pass of the pipeline. Exported for tests, which drive
// it with a synthetic clock instead of the ticker.
func (c *Controller) Tick(ctx context.Context, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 1. Sensor refresh and safety arbitration.
	env, haveEnv := c.sensors.Environment()
	if haveEnv {
		c.observeEnvironment(env, now)
	}
	if c.sensors.TakeSound() {
		// The engine keeps buffering while overheated; only outputs are masked.
		c.ambient.ObserveSound(now)
	}
	c.ambient.Tick(now)

	overheated := c.arbiter.Overheated()

	// 2. Authentication events, external injections first.
	for _, ev := range c.drainInjected() {
		c.observeEventForDisplay(ev)
		c.applyVerdict(c.engine.HandleEvent(ctx, ev, now, overheated), now, overheated)
	}
	for _, ev := range c.sensors.DrainEvents(eventsPerTick) {
		c.observeEventForDisplay(ev)
		c.applyVerdict(c.engine.HandleEvent(ctx, ev, now, overheated), now, overheated)
	}
	c.engine.Tick(now)

	// 3. Door timer. An auto-relock ends the authentication episode.
	if c.door.Tick(now) {
		c.engine.ResetSession()
	}
	if overheated && c.door.Unlocked() {
		c.door.ForceLock()
	}

	// 4. Output composition. Safety masks everything except the fan.
	desired := actuator.State{
		Door:           c.door.Unlocked() && !overheated,
		Fan:            c.ambient.FanOn() || c.arbiter.FanForced(),
		Light:          c.ambient.LightOn() && !overheated,
		DoorIndicator:  c.door.Unlocked() && !overheated,
		SoundIndicator: c.ambient.GuestActive() && !overheated,
	}
	source := "access"
	if overheated {
		source = "safety"
	}
	c.port.Apply(desired, source, now)

	// 5. Display projection.
	c.publishDisplay(display.Project(display.Input{
		Overheated:      overheated,
		Temperature:     env.Temperature,
		Humidity:        env.Humidity,
		LightLevel:      env.LightLevel,
		HaveEnvironment: haveEnv,
		DoorUnlocked:    c.door.Unlocked(),
		GuestActive:     c.ambient.GuestActive(),
		SensorView:      c.sensorView,
		Access:          c.engine.Snapshot(now),
	}))
}

// observeEventForDisplay maintains the sensor detail screen toggle.
// The toggle is purely presentational; any keypad interaction that
// starts or clears an entry leaves the detail screen.
func (c *Controller) observeEventForDisplay(ev access.Event) {
	switch ev.Kind {
	case access.EventSensorView:
		c.sensorView = !c.sensorView
	case access.EventDigit, access.EventSubmit, access.EventCancel, access.EventClearInput:
		c.sensorView = false
	}
}

// observeEnvironment feeds one sample to the safety arbiter, the
// ambient engine and telemetry.
func (c *Controller) observeEnvironment(env sensors.Environment, now time.Time) {
	switch c.arbiter.Observe(env.Temperature) {
	case safety.TransitionTripped:
		c.logger.Warn("overheat tripped", "temperature", env.Temperature)
		c.recorder.Record(c.enrich(audit.Event{
			Kind: audit.KindOverheat, Method: audit.MethodSystem,
			Actor: "safety", Status: audit.StatusTripped,
		}))
		if c.telemetry != nil {
			c.telemetry.WriteSafetyTransition(c.cfg.Site.ID, "tripped", env.Temperature, now)
		}
	case safety.TransitionCleared:
		c.logger.Info("overheat cleared", "temperature", env.Temperature)
		c.recorder.Record(c.enrich(audit.Event{
			Kind: audit.KindOverheat, Method: audit.MethodSystem,
			Actor: "safety", Status: audit.StatusCleared,
		}))
		if c.telemetry != nil {
			c.telemetry.WriteSafetyTransition(c.cfg.Site.ID, "cleared", env.Temperature, now)
		}
	}

	c.ambient.ObserveTemperature(env.Temperature)
	c.ambient.ObserveLight(env.LightLevel)

	// Write each accepted sample to history exactly once.
	if c.telemetry != nil {
		if sampledAt := c.sensors.SampledAt(); sampledAt.After(c.lastEnvTelemetry) {
			c.telemetry.WriteEnvironment(c.cfg.Site.ID, env.Temperature, env.Humidity, env.LightLevel, sampledAt)
			c.lastEnvTelemetry = sampledAt
		}
	}
}

// applyVerdict routes an engine verdict to the door and telemetry.
func (c *Controller) applyVerdict(v access.Verdict, now time.Time, overheated bool) {
	switch v.Kind {
	case access.VerdictGranted:
		if c.door.Unlock(now, overheated) {
			c.logger.Info("door unlocked",
				"method", string(v.Method),
				"role", string(v.Role),
				"slot", v.FingerprintID,
			)
		}
		if c.telemetry != nil {
			c.telemetry.WriteAccessEvent(c.cfg.Site.ID, string(v.Method), "granted", now)
		}
	case access.VerdictDenied, access.VerdictLockedOut:
		if c.telemetry != nil {
			c.telemetry.WriteAccessEvent(c.cfg.Site.ID, string(v.Method), "denied", now)
		}
	}
}

// drainInjected pops externally injected events without blocking.
func (c *Controller) drainInjected() []access.Event {
	var events []access.Event
	for {
		select {
		case ev := <-c.inject:
			events = append(events, ev)
		default:
			return events
		}
	}
}

// publishDisplay pushes the intent when it changed.
func (c *Controller) publishDisplay(intent display.Intent) {
	if c.haveDisplay && intent == c.lastDisplay {
		return
	}
	if err := c.publisher.PublishRetained(mqtt.Topics{}.Display(), intent); err != nil {
		c.logger.Warn("display publish failed", "error", err)
		return
	}
	c.lastDisplay = intent
	c.haveDisplay = true
}

// enrich stamps the current environment reading onto an audit event.
func (c *Controller) enrich(event audit.Event) audit.Event {
	if env, ok := c.sensors.Environment(); ok {
		t, h := env.Temperature, env.Humidity
		event.Temperature = &t
		event.Humidity = &h
	}
	return event
}

// ─── External surface (HTTP API) ─────────────────────────────────────

// Inject queues an event for the next tick. Non-blocking; returns
// false when the queue is full.
func (c *Controller) Inject(ev access.Event) bool {
	select {
	case c.inject <- ev:
		return true
	default:
		return false
	}
}

// Status is the read model served by the HTTP API.
type Status struct {
	Site              string             `json:"site"`
	Mode              access.Mode        `json:"mode"`
	State             access.State       `json:"state"`
	DoorUnlocked      bool               `json:"door_unlocked"`
	Overheated        bool               `json:"overheated"`
	SystemLocked      bool               `json:"system_locked"`
	FingerprintLocked bool               `json:"fingerprint_locked"`
	GuestActive       bool               `json:"guest_active"`
	Environment       *EnvironmentStatus `json:"environment,omitempty"`
}

// EnvironmentStatus is the latest sensor sample in the status model.
type EnvironmentStatus struct {
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	LightLevel  int       `json:"light_level"`
	SampledAt   time.Time `json:"sampled_at"`
}

// Status captures the current arbitration state for the API.
func (c *Controller) Status(now time.Time) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.engine.Snapshot(now)
	status := Status{
		Site:              c.cfg.Site.ID,
		Mode:              snap.Mode,
		State:             snap.State,
		DoorUnlocked:      c.door.Unlocked(),
		Overheated:        c.arbiter.Overheated(),
		SystemLocked:      snap.SystemLocked,
		FingerprintLocked: snap.FingerprintLocked,
		GuestActive:       c.ambient.GuestActive(),
	}
	if env, ok := c.sensors.Environment(); ok {
		status.Environment = &EnvironmentStatus{
			Temperature: env.Temperature,
			Humidity:    env.Humidity,
			LightLevel:  env.LightLevel,
			SampledAt:   c.sensors.SampledAt(),
		}
	}
	return status
}

// SetMode switches the authentication mode on behalf of the API.
func (c *Controller) SetMode(mode access.Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine.SetMode(mode)
}

// ─── Collaborator adapters ───────────────────────────────────────────

// fingerprintCommands publishes enrol/delete instructions to the
// fingerprint bridge. Each command carries an ID so bridge logs can be
// correlated with the audit trail.
type fingerprintCommands struct {
	pub Publisher
}

type fingerprintCommand struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Slot   int    `json:"slot,omitempty"`
}

func (f *fingerprintCommands) Enroll(slot int) error {
	return f.pub.Publish(mqtt.Topics{}.CommandFingerprint(),
		fingerprintCommand{ID: commandID(), Action: "enroll", Slot: slot})
}

func (f *fingerprintCommands) Delete(slot int) error {
	return f.pub.Publish(mqtt.Topics{}.CommandFingerprint(),
		fingerprintCommand{ID: commandID(), Action: "delete", Slot: slot})
}

func (f *fingerprintCommands) DeleteAll() error {
	return f.pub.Publish(mqtt.Topics{}.CommandFingerprint(),
		fingerprintCommand{ID: commandID(), Action: "delete_all"})
}

// commandID generates a short correlation ID, matching the audit ID shape.
func commandID() string {
	const idLength = 8
	return "cmd-" + uuid.NewString()[:idLength]
}

// auditAdapter enriches engine audit records with the current
// environment reading before handing them to the recorder.
type auditAdapter struct {
	c *Controller
}

func (a *auditAdapter) Record(kind, method, actor, status string) {
	a.c.recorder.Record(a.c.enrich(audit.Event{
		Kind:   kind,
		Method: method,
		Actor:  actor,
		Status: status,
	}))
}
