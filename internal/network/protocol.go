package network

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message is the envelope for every frame exchanged with a client.
// Type routes the message; Payload stays raw until the handler for that type decodes it.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DefaultMaxMessageSize bounds an inbound frame. Pong clients only send tiny JSON objects.
const DefaultMaxMessageSize = 4096

// ErrMissingType is returned by Decode for an envelope without a type.
var ErrMissingType = errors.New("message has no type")

// NewMessage marshals payload into an envelope of the given type. A nil payload
// produces a message without a payload field.
func NewMessage(msgType string, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: msgType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	return Message{Type: msgType, Payload: raw}, nil
}

// Decode parses one inbound frame.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if msg.Type == "" {
		return Message{}, ErrMissingType
	}
	return msg, nil
}
