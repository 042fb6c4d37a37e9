package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownKind      = errors.New("unknown message kind")
	ErrMalformedPayload = errors.New("malformed payload")
)

// wireMessage is the JSON frame sent over a data channel. Timestamps travel
// as RFC 3339 strings so web peers can parse them natively.
type wireMessage struct {
	Type      string         `json:"type"`
	SenderID  string         `json:"senderId"`
	Timestamp string         `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Encode serializes a message to its wire form.
func Encode(m Message) ([]byte, error) {
	if !knownKinds[m.Kind] {
		return nil, fmt.Errorf("encode %q: %w", m.Kind, ErrUnknownKind)
	}
	return json.Marshal(wireMessage{
		Type:      string(m.Kind),
		SenderID:  m.SenderID,
		Timestamp: m.Timestamp.Format(time.RFC3339Nano),
		Payload:   m.Payload,
	})
}

// Decode parses and validates a wire frame. It fails closed: frames with an
// unrecognized type are rejected with ErrUnknownKind rather than coerced to
// a default, and frames missing required payload fields are rejected with
// ErrMalformedPayload. A message returned by Decode is safe to hand to the
// coordinator as-is.
func Decode(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	kind := Kind(w.Type)
	if !knownKinds[kind] {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownKind, w.Type)
	}
	if w.SenderID == "" {
		return Message{}, fmt.Errorf("%w: missing senderId", ErrMalformedPayload)
	}

	ts, err := time.Parse(time.RFC3339Nano, w.Timestamp)
	if err != nil {
		return Message{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformedPayload, w.Timestamp)
	}

	if w.Payload == nil {
		w.Payload = map[string]any{}
	}

	m := Message{
		Kind:      kind,
		SenderID:  w.SenderID,
		Timestamp: ts,
		Payload:   w.Payload,
	}
	if err := validatePayload(m); err != nil {
		return Message{}, err
	}
	return m, nil
}

func validatePayload(m Message) error {
	for _, key := range requiredKeys[m.Kind] {
		if m.String(key) == "" {
			return fmt.Errorf("%w: %s requires %q", ErrMalformedPayload, m.Kind, key)
		}
	}
	if m.Kind == KindRoomState {
		if m.String("roomName") == "" {
			return fmt.Errorf("%w: roomState requires %q", ErrMalformedPayload, "roomName")
		}
		if _, ok := m.Payload["approvalMode"].(bool); !ok {
			return fmt.Errorf("%w: roomState requires boolean %q", ErrMalformedPayload, "approvalMode")
		}
		if _, ok := m.Payload["participants"].([]any); !ok {
			return fmt.Errorf("%w: roomState requires list %q", ErrMalformedPayload, "participants")
		}
	}
	return nil
}
