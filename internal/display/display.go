package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/wardenlabs/warden-core/internal/access"
)

// lineWidth matches the 16-column character display on site.
const lineWidth = 16

// Intent is the screen the presentation bridge should render.
// Published retained on the display topic; purely a projection,
// never authoritative state.
type Intent struct {
	State string `json:"state"`
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

// Input is the state snapshot the projection reads. The controller
// assembles it once per tick.
type Input struct {
	Overheated      bool
	Temperature     float64
	Humidity        float64
	LightLevel      int
	HaveEnvironment bool
	DoorUnlocked    bool
	GuestActive     bool
	SensorView      bool
	Access          access.Snapshot
}

// Project computes the display intent for a state snapshot.
//
// Priority, highest first: overheat, lockout countdown, open door,
// fingerprint lock, password-change prompts, sensor detail, guest
// detection, two-factor prompts, password entry, idle welcome.
func Project(in Input) Intent {
	switch {
	case in.Overheated:
		return intent("overheat", "!! OVERHEATED !!",
			fmt.Sprintf("Temp: %.1fC", in.Temperature))

	case in.Access.SystemLocked:
		seconds := int(in.Access.LockoutRemaining.Seconds())
		if in.Access.LockoutRemaining > time.Duration(seconds)*time.Second {
			seconds++ // ceiling, so the countdown never reads 0 while locked
		}
		return intent("locked_out", "SYSTEM LOCKED", fmt.Sprintf("Wait %ds", seconds))

	case in.DoorUnlocked:
		return intent("door_open", "Access granted", "Door open")

	case in.Access.FingerprintLocked:
		return intent("finger_locked", "FINGER LOCKED", "Enter password")

	case in.Access.State == access.StateChangingPassword:
		if in.Access.ChangeStep == access.StepSelectTarget {
			return intent("change_target", "Change which?", "1=Admin 2=User")
		}
		return intent("change_value", "New password:", stars(in.Access.BufferLen))

	case in.SensorView:
		if !in.HaveEnvironment {
			return intent("sensor_view", "Sensors", "No data yet")
		}
		return intent("sensor_view",
			fmt.Sprintf("T:%.1fC H:%.0f%%", in.Temperature, in.Humidity),
			fmt.Sprintf("Light: %d", in.LightLevel))

	case in.GuestActive:
		return intent("guest", "Guest detected", "Welcome!")

	case in.Access.State == access.StateAwaitingFactor2:
		if in.Access.PasswordVerified {
			return intent("awaiting_factor", "2FA: scan finger", stars(in.Access.BufferLen))
		}
		return intent("awaiting_factor", "2FA: password", stars(in.Access.BufferLen))

	case in.Access.BufferLen > 0:
		return intent("entry", "Enter password:", stars(in.Access.BufferLen))

	default:
		line2 := ""
		if in.HaveEnvironment {
			line2 = fmt.Sprintf("T:%.1fC H:%.0f%%", in.Temperature, in.Humidity)
		}
		return intent("welcome", "Welcome", line2)
	}
}

// intent builds an Intent with both lines clipped to the display width.
func intent(state, line1, line2 string) Intent {
	return Intent{State: state, Line1: clip(line1), Line2: clip(line2)}
}

// stars masks the entry buffer.
func stars(n int) string {
	return strings.Repeat("*", n)
}

// clip truncates a line to the display width.
func clip(s string) string {
	if len(s) > lineWidth {
		return s[:lineWidth]
	}
	return s
}
