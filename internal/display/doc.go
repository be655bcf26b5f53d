// Package display projects the arbitration state onto the two-line
// character display. Recomputed every tick from a snapshot; the
// projection holds no state of its own.
package display
