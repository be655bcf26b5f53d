// Package ambient implements the automation engine: lighting that
// follows darkness, a sound-triggered guest illumination window, and a
// fan thermostat with its own hysteresis band below the safety cutoff.
package ambient
