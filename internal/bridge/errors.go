package bridge

import "errors"

// Errors returned while translating MQTT messages.
var (
	// ErrUnknownMessage is returned for a message type the bridge does not handle.
	ErrUnknownMessage = errors.New("bridge: unknown message type")

	// ErrInvalidMessage is returned when a payload cannot be decoded.
	ErrInvalidMessage = errors.New("bridge: invalid message")

	// ErrPublishFailed wraps a failure to publish an outbound command.
	ErrPublishFailed = errors.New("bridge: publish failed")
)
