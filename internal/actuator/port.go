package actuator

import (
	"log/slog"
	"time"

	"github.com/wardenlabs/warden-core/internal/infrastructure/mqtt"
)

// Output names, matching the actuator topic segments.
const (
	OutputDoor           = "door"
	OutputFan            = "fan"
	OutputLight          = "light"
	OutputDoorIndicator  = "door_indicator"
	OutputSoundIndicator = "sound_indicator"
)

// State is the desired position of every output after a tick.
type State struct {
	Door           bool
	Fan            bool
	Light          bool
	DoorIndicator  bool
	SoundIndicator bool
}

// commandPayload is the wire format on the actuator topics.
type commandPayload struct {
	On        bool   `json:"on"`
	Source    string `json:"source"`
	ChangedAt string `json:"changed_at"`
}

// Publisher is the MQTT surface the port needs.
// Implemented by mqtt.Client.
type Publisher interface {
	PublishRetained(topic string, payload any) error
}

// Port is the single writer of the five actuator outputs.
//
// Commands are edge-triggered: a topic is published only when that
// output's desired state differs from the last published state, plus
// one full sync on the first Apply so bridges converge after restart.
// Publishes are retained so a reconnecting bridge picks up the current
// position immediately.
type Port struct {
	pub    Publisher
	topics mqtt.Topics
	logger *slog.Logger

	last        State
	initialized bool
}

// NewPort creates the actuator port.
func NewPort(pub Publisher, logger *slog.Logger) *Port {
	return &Port{pub: pub, logger: logger}
}

// Apply publishes whichever outputs changed since the last call.
//
// Parameters:
//   - desired: Composed output state for this tick
//   - source: What drove the change ("access", "safety", "ambient", ...)
//   - now: Timestamp stamped into the payloads
func (p *Port) Apply(desired State, source string, now time.Time) {
	changes := []struct {
		name string
		prev bool
		next bool
	}{
		{OutputDoor, p.last.Door, desired.Door},
		{OutputFan, p.last.Fan, desired.Fan},
		{OutputLight, p.last.Light, desired.Light},
		{OutputDoorIndicator, p.last.DoorIndicator, desired.DoorIndicator},
		{OutputSoundIndicator, p.last.SoundIndicator, desired.SoundIndicator},
	}

	for _, c := range changes {
		if p.initialized && c.prev == c.next {
			continue
		}
		p.publish(c.name, c.next, source, now)
	}

	p.last = desired
	p.initialized = true
}

// Last returns the most recently applied state.
func (p *Port) Last() State {
	return p.last
}

// publish sends one output command; failures are logged, never
// propagated, since the broker reconnect will be followed by a full
// retained re-sync anyway.
func (p *Port) publish(output string, on bool, source string, now time.Time) {
	payload := commandPayload{
		On:        on,
		Source:    source,
		ChangedAt: now.UTC().Format(time.RFC3339),
	}
	if err := p.pub.PublishRetained(p.topics.Actuator(output), payload); err != nil {
		p.logger.Warn("actuator publish failed", "output", output, "error", err)
	}
}
