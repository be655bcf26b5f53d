// Package sensors adapts bridge MQTT payloads into the engine's event
// stream and environment samples. Queues are bounded, environment
// intake is rate-limited per source, and malformed payloads are logged
// and dropped so a broken bridge degrades to silence rather than
// stalling arbitration.
package sensors
