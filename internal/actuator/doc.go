// Package actuator publishes the composed output state to the
// hardware bridges, one retained topic per output, edge-triggered.
package actuator
