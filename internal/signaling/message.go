// Package signaling implements the rendezvous relay: a websocket hub that
// groups participants by room code and routes their session descriptions and
// ICE candidates to each other. The relay never carries chat traffic; once a
// mesh link is up the relay is out of the path.
package signaling

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
)

// Message types exchanged between the CLI and the relay.
const (
	// MessageTypeJoin announces a participant under a room code (C2S).
	MessageTypeJoin = "join"

	// MessageTypeJoined acknowledges a join and lists the participants
	// already present (S2C).
	MessageTypeJoined = "joined"

	// MessageTypePeerJoined tells existing participants about a newcomer.
	MessageTypePeerJoined = "peer_joined"

	// MessageTypePeerLeft tells remaining participants about a departure.
	MessageTypePeerLeft = "peer_left"

	// MessageTypeSignal carries an opaque SDP or candidate blob between
	// two participants, both directions.
	MessageTypeSignal = "signal"

	// MessageTypeLeave withdraws a participant without closing the socket.
	MessageTypeLeave = "leave"

	// MessageTypeError reports a relay-side failure.
	MessageTypeError = "error"
)

// Message defines the structure for all C2S and S2C relay messages.
type Message struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"room_id,omitempty"`
	Sender  string          `json:"sender,omitempty"`
	Target  string          `json:"target,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// client is the connection the message arrived on. Used internally by
	// the hub and never sent over JSON.
	client *HubClient
}

// JoinedPayload lists the participant ids already in the room.
type JoinedPayload struct {
	Peers []string `json:"peers"`
}

// SignalPayload is the relayed WebRTC negotiation blob.
type SignalPayload struct {
	Kind      string                     `json:"kind"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// ErrorPayload carries a human-readable relay error.
type ErrorPayload struct {
	Error string `json:"error"`
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}
