// Package credential manages the secrets that open the door: role
// passwords and fingerprint template slots.
//
// Two roles exist, admin and user. Each has exactly one password,
// stored as an Argon2id PHC hash in SQLite. Password verification
// checks a candidate against both roles and reports which one matched,
// since the keypad has no concept of "logging in as" a role.
//
// Fingerprint templates live in the sensor hardware; this package
// keeps a mirror of which slots are occupied so the core can pick free
// slots for enrolment and report the enrolled count without querying
// the sensor.
package credential
