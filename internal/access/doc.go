// Package access implements the authentication and mode state machine
// at the heart of the arbitration pipeline.
//
// The engine consumes discrete events (digits, submissions, biometric
// results, admin management requests) and emits verdicts; only a
// Granted verdict reaches the door controller. It owns three blocks of
// state: the transient Session (input buffer, two-factor flags and
// deadline, password-change flow), the Lockout record (both failure
// counters and both lock flags), and the persistent authentication
// mode.
//
// All timers are sampled against stored deadlines at the top of every
// event and tick, never scheduled, so the engine stays single-threaded
// and every transition is total: each event has a defined effect in
// every state.
package access
