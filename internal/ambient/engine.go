package ambient

import (
	"time"

	"github.com/wardenlabs/warden-core/internal/infrastructure/config"
)

// Engine drives the ambient automation: darkness-driven lighting, the
// sound-triggered guest illumination window, and the fan thermostat.
//
// The engine is independent of authentication. It is subordinate to
// the safety arbiter only at output composition time; its own state
// keeps advancing while overheated so that, once the condition clears,
// the outputs resume from current reality rather than a stale snapshot.
type Engine struct {
	darkThreshold  int
	guestWindow    time.Duration
	fanOnThreshold float64
	fanOffBelow    float64

	dark       bool
	fanRunning bool

	// guestUntil is the end of the active guest illumination window.
	// Zero when no window is active.
	guestUntil time.Time
}

// New creates an engine from the automation policy.
func New(cfg config.AmbientConfig) *Engine {
	return &Engine{
		darkThreshold:  cfg.DarkThreshold,
		guestWindow:    time.Duration(cfg.GuestLightSeconds) * time.Second,
		fanOnThreshold: cfg.FanOnThreshold,
		fanOffBelow:    cfg.FanOnThreshold - cfg.FanHysteresis,
	}
}

// ObserveLight feeds a light sample. The sensor reads higher in
// darkness, so a reading above the threshold means dark.
func (e *Engine) ObserveLight(lightLevel int) {
	e.dark = lightLevel > e.darkThreshold
}

// ObserveSound starts (or restarts) the guest illumination window.
func (e *Engine) ObserveSound(now time.Time) {
	e.guestUntil = now.Add(e.guestWindow)
}

// ObserveTemperature feeds a temperature sample to the fan thermostat.
// This band is independent of the safety arbiter's overheat band; the
// controller ORs the two when composing the fan output.
func (e *Engine) ObserveTemperature(temperature float64) {
	switch {
	case !e.fanRunning && temperature >= e.fanOnThreshold:
		e.fanRunning = true
	case e.fanRunning && temperature < e.fanOffBelow:
		e.fanRunning = false
	}
}

// Tick expires the guest window.
func (e *Engine) Tick(now time.Time) {
	if !e.guestUntil.IsZero() && !now.Before(e.guestUntil) {
		e.guestUntil = time.Time{}
	}
}

// LightOn reports whether ambient lighting should be on: forced during
// an active guest window, otherwise darkness-driven.
func (e *Engine) LightOn() bool {
	return e.GuestActive() || e.dark
}

// GuestActive reports whether the sound-triggered illumination window
// is running. Surfaced to the display layer as guest detection.
func (e *Engine) GuestActive() bool {
	return !e.guestUntil.IsZero()
}

// FanOn reports the thermostat's own fan demand, before safety forcing.
func (e *Engine) FanOn() bool {
	return e.fanRunning
}

// Dark reports the darkness state from the last light sample.
func (e *Engine) Dark() bool {
	return e.dark
}
