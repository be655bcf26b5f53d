package sensors

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wardenlabs/warden-core/internal/access"
	"github.com/wardenlabs/warden-core/internal/infrastructure/config"
	"github.com/wardenlabs/warden-core/internal/infrastructure/mqtt"
)

// eventQueueSize bounds the buffered keypad/fingerprint events between
// ticks. A stuck controller drops input rather than growing without
// bound.
const eventQueueSize = 32

// Environment is one sample from the environment bridge.
type Environment struct {
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	LightLevel    int     `json:"light_level"`
	SoundDetected bool    `json:"sound_detected"`
}

// keypadPayload is the wire format on the keypad event topic.
type keypadPayload struct {
	Event string `json:"event"`
	Digit string `json:"digit,omitempty"`
}

// fingerprintPayload is the wire format on the fingerprint event topic.
type fingerprintPayload struct {
	Result     string `json:"result"`
	ID         int    `json:"id,omitempty"`
	Confidence int    `json:"confidence,omitempty"`
	Label      string `json:"label,omitempty"`
}

// Subscriber is the MQTT surface the adapter needs.
// Implemented by mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, handler mqtt.MessageHandler) error
}

// Adapter turns bridge MQTT payloads into engine events and
// environment samples.
//
// MQTT handlers run on paho goroutines; the controller drains on its
// own tick. All shared state is guarded by one mutex, and the event
// queue is bounded so a slow tick loop sheds input instead of
// blocking the broker connection.
type Adapter struct {
	logger         *slog.Logger
	sampleInterval time.Duration
	nowFn          func() time.Time

	mu           sync.Mutex
	env          Environment
	envAt        time.Time
	haveEnv      bool
	soundPending bool
	dropped      uint64

	events chan access.Event
}

// New creates an adapter. The sample interval rate-limits environment
// intake; samples arriving faster are dropped (sound triggers still
// latch).
func New(cfg config.SensorConfig, logger *slog.Logger) *Adapter {
	return &Adapter{
		logger:         logger,
		sampleInterval: time.Duration(cfg.SampleIntervalSeconds) * time.Second,
		nowFn:          time.Now,
		events:         make(chan access.Event, eventQueueSize),
	}
}

// Start subscribes to the three sensor topics.
func (a *Adapter) Start(sub Subscriber) error {
	topics := mqtt.Topics{}

	if err := sub.Subscribe(topics.SensorEnvironment(), a.handleEnvironment); err != nil {
		return fmt.Errorf("subscribing to environment: %w", err)
	}
	if err := sub.Subscribe(topics.EventKeypad(), a.handleKeypad); err != nil {
		return fmt.Errorf("subscribing to keypad: %w", err)
	}
	if err := sub.Subscribe(topics.EventFingerprint(), a.handleFingerprint); err != nil {
		return fmt.Errorf("subscribing to fingerprint: %w", err)
	}
	return nil
}

// handleEnvironment ingests an environment sample, rate-limited.
func (a *Adapter) handleEnvironment(_ string, payload []byte) error {
	var sample Environment
	if err := json.Unmarshal(payload, &sample); err != nil {
		// Malformed payload degrades to "no sample this tick".
		a.logger.Warn("malformed environment payload dropped", "error", err)
		return nil
	}

	now := a.nowFn()

	a.mu.Lock()
	defer a.mu.Unlock()

	// Sound triggers latch even when the sample itself is shed.
	if sample.SoundDetected {
		a.soundPending = true
	}

	if a.haveEnv && now.Sub(a.envAt) < a.sampleInterval {
		return nil
	}

	a.env = sample
	a.envAt = now
	a.haveEnv = true
	return nil
}

// handleKeypad translates a keypad bridge payload into an engine event.
func (a *Adapter) handleKeypad(_ string, payload []byte) error {
	var kp keypadPayload
	if err := json.Unmarshal(payload, &kp); err != nil {
		a.logger.Warn("malformed keypad payload dropped", "error", err)
		return nil
	}

	var event access.Event
	switch kp.Event {
	case "digit":
		if len(kp.Digit) != 1 || kp.Digit[0] < '0' || kp.Digit[0] > '9' {
			a.logger.Warn("keypad digit out of range dropped", "digit", kp.Digit)
			return nil
		}
		event = access.Event{Kind: access.EventDigit, Digit: kp.Digit[0]}
	case "submit":
		event = access.Event{Kind: access.EventSubmit}
	case "cancel":
		event = access.Event{Kind: access.EventCancel}
	case "toggle_mode":
		event = access.Event{Kind: access.EventToggleMode}
	case "clear":
		event = access.Event{Kind: access.EventClearInput}
	case "change_password":
		event = access.Event{Kind: access.EventChangePassword}
	case "sensor_view":
		event = access.Event{Kind: access.EventSensorView}
	default:
		a.logger.Warn("unknown keypad event dropped", "event", kp.Event)
		return nil
	}

	a.enqueue(event)
	return nil
}

// handleFingerprint translates a fingerprint bridge payload.
func (a *Adapter) handleFingerprint(_ string, payload []byte) error {
	var fp fingerprintPayload
	if err := json.Unmarshal(payload, &fp); err != nil {
		a.logger.Warn("malformed fingerprint payload dropped", "error", err)
		return nil
	}

	var event access.Event
	switch fp.Result {
	case "matched":
		event = access.Event{Kind: access.EventFingerprintMatched, FingerprintID: fp.ID, Confidence: fp.Confidence}
	case "rejected":
		event = access.Event{Kind: access.EventFingerprintRejected}
	case "enrolled":
		event = access.Event{Kind: access.EventFingerprintEnrolled, FingerprintID: fp.ID, Label: fp.Label}
	case "no_finger", "error":
		// Sensor trouble is "no event this tick", never an engine input.
		return nil
	default:
		a.logger.Warn("unknown fingerprint result dropped", "result", fp.Result)
		return nil
	}

	a.enqueue(event)
	return nil
}

// enqueue adds an event, shedding on overflow.
func (a *Adapter) enqueue(event access.Event) {
	select {
	case a.events <- event:
	default:
		a.mu.Lock()
		a.dropped++
		dropped := a.dropped
		a.mu.Unlock()
		a.logger.Warn("sensor event queue full, event dropped",
			"kind", event.Kind.String(),
			"dropped_total", dropped,
		)
	}
}

// DrainEvents pops up to max queued events without blocking.
func (a *Adapter) DrainEvents(max int) []access.Event {
	var events []access.Event
	for len(events) < max {
		select {
		case event := <-a.events:
			events = append(events, event)
		default:
			return events
		}
	}
	return events
}

// Environment returns the latest accepted sample.
// The second return is false until the first sample arrives.
func (a *Adapter) Environment() (Environment, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.env, a.haveEnv
}

// SampledAt returns when the latest accepted sample arrived.
// Zero until the first sample. Lets the controller write each sample
// to telemetry exactly once.
func (a *Adapter) SampledAt() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.envAt
}

// TakeSound returns and clears the latched sound trigger.
func (a *Adapter) TakeSound() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	sound := a.soundPending
	a.soundPending = false
	return sound
}

// Dropped returns how many events were shed due to a full queue.
func (a *Adapter) Dropped() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}
