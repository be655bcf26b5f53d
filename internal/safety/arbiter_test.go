package safety

import (
	"testing"

	"github.com/wardenlabs/warden-core/internal/infrastructure/config"
)

func testArbiter() *Arbiter {
	return New(config.SafetyConfig{WarnThreshold: 40, Hysteresis: 5})
}

func TestTripsAtThreshold(t *testing.T) {
	a := testArbiter()

	if tr := a.Observe(39.9); tr != TransitionNone {
		t.Errorf("Observe(39.9) = %v, want None", tr)
	}
	if a.Overheated() {
		t.Fatal("overheated below threshold")
	}

	if tr := a.Observe(40.0); tr != TransitionTripped {
		t.Errorf("Observe(40.0) = %v, want Tripped", tr)
	}
	if !a.Overheated() {
		t.Fatal("not overheated at threshold")
	}
}

func TestHysteresisHoldsBelowThreshold(t *testing.T) {
	a := testArbiter()
	a.Observe(41)

	// One degree below the trip point must not clear.
	if tr := a.Observe(39); tr != TransitionNone {
		t.Errorf("Observe(39) = %v, want None", tr)
	}
	if !a.Overheated() {
		t.Error("cleared inside hysteresis band")
	}

	// Exactly at the clear boundary still holds (clear requires strictly below).
	if tr := a.Observe(35); tr != TransitionNone {
		t.Errorf("Observe(35) = %v, want None", tr)
	}
	if !a.Overheated() {
		t.Error("cleared at boundary")
	}
}

func TestClearsBelowBand(t *testing.T) {
	a := testArbiter()
	a.Observe(42)

	if tr := a.Observe(34); tr != TransitionCleared {
		t.Errorf("Observe(34) = %v, want Cleared", tr)
	}
	if a.Overheated() {
		t.Error("still overheated below band")
	}
	if a.FanForced() {
		t.Error("fan still forced after clear")
	}
}

func TestNoRepeatTransitions(t *testing.T) {
	a := testArbiter()

	a.Observe(45)
	if tr := a.Observe(46); tr != TransitionNone {
		t.Errorf("second hot sample = %v, want None", tr)
	}

	a.Observe(30)
	if tr := a.Observe(29); tr != TransitionNone {
		t.Errorf("second cool sample = %v, want None", tr)
	}
}

func TestLastTemperature(t *testing.T) {
	a := testArbiter()

	if _, ok := a.LastTemperature(); ok {
		t.Error("LastTemperature reported a sample before any observation")
	}

	a.Observe(23.5)
	temp, ok := a.LastTemperature()
	if !ok || temp != 23.5 {
		t.Errorf("LastTemperature = %v, %v; want 23.5, true", temp, ok)
	}
}
