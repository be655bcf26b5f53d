package audit

import "time"

// Event kinds. These match the records the original deployment shipped
// to its remote log, so downstream dashboards keep working.
const (
	KindDoorOpen            = "DOOR_OPEN"
	KindSystemLocked        = "SYSTEM_LOCKED"
	KindFingerprintLocked   = "FINGER_LOCKED"
	KindPasswordChanged     = "PASSWORD_CHANGED"
	KindModeChanged         = "MODE_CHANGED"
	KindFingerprintEnrolled = "FINGERPRINT_ENROLLED"
	KindFingerprintDeleted  = "FINGERPRINT_DELETED"
	KindOverheat            = "OVERHEAT"
)

// Authentication methods.
const (
	MethodPassword    = "PASSWORD"
	MethodFingerprint = "FINGERPRINT"
	MethodTwoFactor   = "2FA"
	MethodSystem      = "SYSTEM"
)

// Event statuses.
const (
	StatusSuccess         = "SUCCESS"
	StatusFailed          = "FAILED"
	StatusDenied          = "DENIED"
	StatusAfterFingerLock = "SUCCESS_AFTER_FINGER_LOCK"
	StatusTripped         = "TRIPPED"
	StatusCleared         = "CLEARED"
)

// Event is a single audit trail entry.
//
// Temperature and Humidity carry the environment reading at the moment
// the event fired; nil when no fresh sample was available.
type Event struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Method      string    `json:"method"`
	Actor       string    `json:"actor"`
	Status      string    `json:"status"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
