package protocol

import (
	"time"
)

// Kind identifies a data channel message type. The set is closed: decoding
// a frame whose type is not listed here fails with ErrUnknownKind.
type Kind string

const (
	// Connection management
	KindHello     Kind = "hello"
	KindGoodbye   Kind = "goodbye"
	KindHeartbeat Kind = "heartbeat"

	// Room state
	KindRoomState        Kind = "roomState"
	KindParticipantJoin  Kind = "participantJoin"
	KindParticipantLeave Kind = "participantLeave"
	KindParticipantKick  Kind = "participantKick"

	// Chat
	KindChatMessage     Kind = "chatMessage"
	KindTypingStart     Kind = "typingStart"
	KindTypingStop      Kind = "typingStop"
	KindMessageReaction Kind = "messageReaction"
	KindMessageSeen     Kind = "messageSeen"

	// Approval
	KindJoinRequest Kind = "joinRequest"
	KindJoinApprove Kind = "joinApprove"
	KindJoinReject  Kind = "joinReject"
)

// requiredKeys lists the payload keys every kind must carry as non-empty
// strings. Kinds absent from the map require no payload. roomState is
// validated separately because its values are not all strings.
var requiredKeys = map[Kind][]string{
	KindHello:            {"displayName"},
	KindParticipantJoin:  {"participantId", "displayName"},
	KindParticipantLeave: {"participantId"},
	KindParticipantKick:  {"participantId"},
	KindChatMessage:      {"messageId", "content", "displayName"},
	KindMessageReaction:  {"messageId", "reaction"},
	KindMessageSeen:      {"messageId"},
	KindJoinRequest:      {"displayName"},
	KindJoinApprove:      {"participantId"},
	KindJoinReject:       {"participantId"},
}

var knownKinds = map[Kind]bool{
	KindHello:            true,
	KindGoodbye:          true,
	KindHeartbeat:        true,
	KindRoomState:        true,
	KindParticipantJoin:  true,
	KindParticipantLeave: true,
	KindParticipantKick:  true,
	KindChatMessage:      true,
	KindTypingStart:      true,
	KindTypingStop:       true,
	KindMessageReaction:  true,
	KindMessageSeen:      true,
	KindJoinRequest:      true,
	KindJoinApprove:      true,
	KindJoinReject:       true,
}

// Message is a single frame exchanged between peers. Immutable once
// constructed; the coordinator never mutates a decoded message.
type Message struct {
	Kind      Kind
	SenderID  string
	Timestamp time.Time
	Payload   map[string]any
}

// New builds a message stamped with the current time.
func New(kind Kind, senderID string, payload map[string]any) Message {
	if payload == nil {
		payload = map[string]any{}
	}
	return Message{
		Kind:      kind,
		SenderID:  senderID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// String returns the payload value for key if it is a non-empty string.
func (m Message) String(key string) string {
	if v, ok := m.Payload[key].(string); ok {
		return v
	}
	return ""
}

// Bool returns the payload value for key if it is a bool.
func (m Message) Bool(key string) bool {
	if v, ok := m.Payload[key].(bool); ok {
		return v
	}
	return false
}
