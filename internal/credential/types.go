package credential

import "time"

// Role identifies which password matched during verification.
type Role string

// Valid roles. Admin unlocks the door and the admin menu; user only
// unlocks the door.
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Fingerprint sensor slot bounds. The sensor stores templates in
// numbered slots; slot 0 is reserved by the hardware.
const (
	MinSlot = 1
	MaxSlot = 127
)

// FingerprintSlot records an occupied template slot on the sensor.
type FingerprintSlot struct {
	Slot       int       `json:"slot"`
	Label      string    `json:"label,omitempty"`
	EnrolledAt time.Time `json:"enrolled_at"`
}
