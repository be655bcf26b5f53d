// Package safety implements the thermal cutoff that outranks every
// other decision in the arbitration pipeline.
//
// A single hysteresis band governs the overheat flag: trip at the warn
// threshold, clear a configurable margin below it. The controller
// consults the flag after sensor refresh and before the access and
// ambient engines write outputs; while set, the door cannot unlock,
// lighting and indicators are forced off, and the fan is forced on.
package safety
