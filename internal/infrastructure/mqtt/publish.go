package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
)

// maxPayloadSize limits published payloads to 1 MiB.
// Warden payloads are small JSON documents; anything larger is a bug.
const maxPayloadSize = 1 << 20

// Publish sends a message to the specified topic.
//
// The payload is marshaled to JSON if it isn't already a []byte or string.
// Publishing uses the QoS level from config and waits for broker
// acknowledgment up to the publish timeout.
//
// Parameters:
//   - topic: Destination topic (must be non-empty, no wildcards)
//   - payload: Message content ([]byte, string, or JSON-marshalable value)
//
// Returns:
//   - error: ErrNotConnected, ErrInvalidTopic, ErrPayloadTooLarge,
//     or ErrPublishFailed (wrapped with detail)
func (c *Client) Publish(topic string, payload any) error {
	return c.publish(topic, payload, false)
}

// PublishRetained sends a retained message to the specified topic.
//
// Retained messages are stored by the broker and delivered to new
// subscribers immediately. Used for state topics (display, system status)
// so reconnecting bridges see current state without waiting for the
// next change.
func (c *Client) PublishRetained(topic string, payload any) error {
	return c.publish(topic, payload, true)
}

func (c *Client) publish(topic string, payload any, retained bool) error {
	if err := validateTopic(topic); err != nil {
		return err
	}

	if !c.IsConnected() {
		return fmt.Errorf("%w: cannot publish to %s", ErrNotConnected, topic)
	}

	data, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	if len(data) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(data), maxPayloadSize)
	}

	token := c.client.Publish(topic, byte(c.cfg.QoS), retained, data)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout publishing to %s", ErrPublishFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// encodePayload converts a payload to bytes for transmission.
// []byte and string pass through unchanged; everything else is
// marshaled to JSON.
func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case string:
		return []byte(p), nil
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		return data, nil
	}
}

// validateTopic checks that a publish topic is well-formed.
// Wildcards are only valid in subscriptions.
func validateTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty topic", ErrInvalidTopic)
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcards not allowed in publish topic %q", ErrInvalidTopic, topic)
	}
	return nil
}
