package mqtt

import "fmt"

// Topic prefix for all Warden MQTT communication.
const topicPrefix = "warden"

// Topics provides type-safe topic construction for the Warden MQTT contract.
//
// Topic structure:
//
//	warden/sensor/environment          - bridge publishes temperature/humidity/light
//	warden/event/keypad                - bridge publishes key presses
//	warden/event/fingerprint           - bridge publishes scan results
//	warden/actuator/{output}           - core publishes desired output state
//	warden/display                     - core publishes the current screen (retained)
//	warden/audit                       - core publishes audit events
//	warden/command/fingerprint         - core publishes enrol/delete commands
//	warden/system/status               - core online/offline status (retained, LWT)
//
// Usage:
//
//	topics := mqtt.Topics{}
//	client.Subscribe(topics.EventKeypad(), handler)
//	client.Publish(topics.Actuator("door"), payload)
type Topics struct{}

// SensorEnvironment returns the topic the sensor bridge publishes
// environment samples on.
//
// Payload: {"temperature": 23.5, "humidity": 41.2, "light": 2912}
func (Topics) SensorEnvironment() string {
	return fmt.Sprintf("%s/sensor/environment", topicPrefix)
}

// EventKeypad returns the topic the keypad bridge publishes key presses on.
//
// Payload: {"key": "5"} where key is one of 0-9, *, #, A-D.
func (Topics) EventKeypad() string {
	return fmt.Sprintf("%s/event/keypad", topicPrefix)
}

// EventFingerprint returns the topic the fingerprint bridge publishes
// scan results on.
//
// Payload: {"result": "match", "slot": 3} or {"result": "mismatch"}.
func (Topics) EventFingerprint() string {
	return fmt.Sprintf("%s/event/fingerprint", topicPrefix)
}

// Actuator returns the topic for commanding a named output.
//
// Known outputs: door, fan, light, door_indicator, sound_indicator.
//
// Payload: {"state": "on"} or {"state": "off"}.
func (Topics) Actuator(output string) string {
	return fmt.Sprintf("%s/actuator/%s", topicPrefix, output)
}

// Display returns the topic the core publishes the current screen on.
// Published retained so a reconnecting display bridge shows the
// correct screen immediately.
//
// Payload: {"line1": "Enter Password:", "line2": "****"}
func (Topics) Display() string {
	return fmt.Sprintf("%s/display", topicPrefix)
}

// Audit returns the topic audit events are mirrored to for external
// collectors.
func (Topics) Audit() string {
	return fmt.Sprintf("%s/audit", topicPrefix)
}

// CommandFingerprint returns the topic the core publishes fingerprint
// sensor commands on (enrol, delete).
//
// Payload: {"action": "enroll", "slot": 5} or {"action": "delete", "slot": 5}.
func (Topics) CommandFingerprint() string {
	return fmt.Sprintf("%s/command/fingerprint", topicPrefix)
}

// SystemStatus returns the topic for core online/offline status.
// Used for the Last Will and Testament; bridges fail safe when the
// core goes offline.
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", topicPrefix)
}
