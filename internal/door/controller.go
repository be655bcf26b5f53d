package door

import (
	"time"

	"github.com/wardenlabs/warden-core/internal/infrastructure/config"
)

// Controller is the single authority over the unlock output.
//
// Only Granted verdicts reach Unlock, and only the controller decides
// when the output deasserts. The unlock is idempotent: a second grant
// while already unlocked neither extends nor restarts the open window.
type Controller struct {
	openDuration time.Duration

	unlocked bool
	openedAt time.Time
}

// New creates a controller with the configured open duration.
func New(cfg config.AuthPolicyConfig) *Controller {
	return &Controller{
		openDuration: time.Duration(cfg.DoorOpenSeconds) * time.Second,
	}
}

// Unlock asserts the door output unless the thermal cutoff is engaged
// or the door is already open.
//
// Parameters:
//   - now: Current time, recorded as the open timestamp
//   - overheated: Safety gate; unlocking is refused while set
//
// Returns:
//   - bool: True if the door transitioned from locked to unlocked
func (c *Controller) Unlock(now time.Time, overheated bool) bool {
	if overheated || c.unlocked {
		return false
	}
	c.unlocked = true
	c.openedAt = now
	return true
}

// ForceLock deasserts the output immediately, regardless of the open
// timer. Used by the overheat preemption.
//
// Returns:
//   - bool: True if the door transitioned from unlocked to locked
func (c *Controller) ForceLock() bool {
	if !c.unlocked {
		return false
	}
	c.unlocked = false
	c.openedAt = time.Time{}
	return true
}

// Tick relocks the door once the open window has elapsed.
//
// Returns:
//   - bool: True if the door auto-relocked this tick; the caller
//     resets the authentication session in response
func (c *Controller) Tick(now time.Time) bool {
	if !c.unlocked {
		return false
	}
	if now.Sub(c.openedAt) >= c.openDuration {
		c.unlocked = false
		c.openedAt = time.Time{}
		return true
	}
	return false
}

// Unlocked reports whether the door output is currently asserted.
func (c *Controller) Unlocked() bool {
	return c.unlocked
}

// OpenedAt returns when the current unlock episode started.
// Zero when locked.
func (c *Controller) OpenedAt() time.Time {
	return c.openedAt
}
