package safety

import (
	"github.com/wardenlabs/warden-core/internal/infrastructure/config"
)

// Transition describes what an observation changed.
type Transition int

// Observation outcomes.
const (
	// TransitionNone means the overheat state did not change.
	TransitionNone Transition = iota

	// TransitionTripped means the overheat condition just engaged.
	TransitionTripped

	// TransitionCleared means the overheat condition just released.
	TransitionCleared
)

// Arbiter owns the overheat state and the priority it imposes on the
// rest of the pipeline.
//
// The condition trips at WarnThreshold and clears only once the
// temperature falls below WarnThreshold minus the hysteresis band, so
// a reading oscillating around the threshold cannot chatter the
// outputs. While overheated, the controller forces the door, lighting
// and indicator outputs off and the fan on; the arbiter itself is a
// gate and never mutes the engines upstream of it.
type Arbiter struct {
	warnThreshold  float64
	clearThreshold float64

	overheated bool
	lastTemp   float64
	sampled    bool
}

// New creates an arbiter from the thermal cutoff policy.
func New(cfg config.SafetyConfig) *Arbiter {
	return &Arbiter{
		warnThreshold:  cfg.WarnThreshold,
		clearThreshold: cfg.WarnThreshold - cfg.Hysteresis,
	}
}

// Observe feeds a temperature sample through the hysteresis rules.
//
// Parameters:
//   - temperature: Degrees Celsius from the environment sensor
//
// Returns:
//   - Transition: Tripped, Cleared, or None
func (a *Arbiter) Observe(temperature float64) Transition {
	a.lastTemp = temperature
	a.sampled = true

	switch {
	case !a.overheated && temperature >= a.warnThreshold:
		a.overheated = true
		return TransitionTripped
	case a.overheated && temperature < a.clearThreshold:
		a.overheated = false
		return TransitionCleared
	default:
		return TransitionNone
	}
}

// Overheated reports whether the thermal cutoff is currently engaged.
func (a *Arbiter) Overheated() bool {
	return a.overheated
}

// FanForced reports whether the fan must run regardless of the
// ambient thermostat. True exactly while overheated.
func (a *Arbiter) FanForced() bool {
	return a.overheated
}

// LastTemperature returns the most recent observed sample.
// The second return is false until the first observation.
func (a *Arbiter) LastTemperature() (float64, bool) {
	return a.lastTemp, a.sampled
}
