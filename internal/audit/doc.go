// Package audit records every grant, denial and lock transition.
//
// The write path is deliberately two-staged: a non-blocking Recorder
// that the arbitration loop talks to, and a SQLite repository plus
// MQTT mirror behind it. The loop must never wait on storage, so the
// recorder buffers into a bounded channel and drops on overflow.
package audit
