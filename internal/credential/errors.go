package credential

import "errors"

// Sentinel errors for credential operations.
var (
	// ErrRoleNotFound indicates no credential row exists for the role.
	ErrRoleNotFound = errors.New("credential: role not found")

	// ErrInvalidRole indicates a role outside admin/user.
	ErrInvalidRole = errors.New("credential: invalid role")

	// ErrPasswordTooShort indicates a new password below the minimum length.
	ErrPasswordTooShort = errors.New("credential: password too short")

	// ErrInvalidSlot indicates a fingerprint slot outside 1-127.
	ErrInvalidSlot = errors.New("credential: invalid fingerprint slot")

	// ErrSlotOccupied indicates an enrolment into an already-used slot.
	ErrSlotOccupied = errors.New("credential: fingerprint slot occupied")

	// ErrSlotNotFound indicates a deletion of an empty slot.
	ErrSlotNotFound = errors.New("credential: fingerprint slot not found")

	// ErrSlotsFull indicates the sensor has no free template slots.
	ErrSlotsFull = errors.New("credential: all fingerprint slots occupied")
)
