// Package mqtt provides the broker connection shared by every Warden
// hardware bridge.
//
// All sensor input (environment samples, keypad presses, fingerprint
// scans) arrives over MQTT, and all actuation (door strike, fan,
// lighting, indicators, display) leaves over MQTT. The package wraps
// paho.mqtt.golang with automatic reconnection, tracked subscriptions
// that survive reconnects, panic-recovering message handlers, and a
// Last Will and Testament on warden/system/status so bridges can fail
// safe when the core goes offline.
//
// Topic construction lives in topics.go; no other package builds
// topic strings by hand.
package mqtt
