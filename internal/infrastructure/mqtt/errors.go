package mqtt

import "errors"

// Sentinel errors for MQTT operations.
var (
	// ErrConnectionFailed indicates the initial broker connection failed.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected indicates an operation was attempted while disconnected.
	ErrNotConnected = errors.New("mqtt: not connected to broker")

	// ErrPublishFailed indicates a publish operation failed or timed out.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed indicates a subscribe operation failed or timed out.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidTopic indicates a malformed or empty topic string.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrInvalidQoS indicates a QoS level outside 0-2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level")

	// ErrPayloadTooLarge indicates a payload exceeding the size limit.
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")
)
