// Package controller runs the arbitration pipeline: one tick at a
// time, in priority order, with the safety arbiter gating what the
// access and ambient engines may do to the outputs.
//
// The tick order follows the system's control flow: sensor refresh,
// safety arbitration, ambient automation, authentication events, the
// door timer, output composition, display projection, telemetry.
// External callers (the HTTP API) reach the pipeline either through
// the injected event queue or through mutex-guarded read/control
// methods; the loop itself is the only mutator of engine state.
package controller
