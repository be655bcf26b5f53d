// Package door owns the unlock output and its auto-relock timer.
//
// Every unlock comes from a grant verdict, every relock from either
// the elapsed open window or the overheat preemption. No other package
// writes the door output.
package door
