package signaling

import (
	"log/slog"
)

// maxRoomSize caps how many participants may share a room code. Every member
// holds a link to every other, so rooms are deliberately small.
const maxRoomSize = 16

// Hub is the central brain of the relay. It manages all active rooms and
// clients from a single goroutine, so room membership needs no locking.
type Hub struct {
	// rooms maps room codes to the participants present under them.
	rooms map[string]map[string]*HubClient

	// Register is the channel new connections announce themselves on.
	Register chan *HubClient

	// Unregister is the channel dropped connections are reported on.
	Unregister chan *HubClient

	// Inbound carries every parsed client message into the hub loop.
	Inbound chan *Message

	log *slog.Logger
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[string]*HubClient),
		Register:   make(chan *HubClient),
		Unregister: make(chan *HubClient),
		Inbound:    make(chan *Message),
		log:        slog.Default().With("component", "relay"),
	}
}

// Run starts the hub's main processing loop. This is the single goroutine
// that safely manages all state.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			// The client is not in a room yet; it must send a join first.
			h.log.Info("client registered", "addr", client.Conn.RemoteAddr())

		case client := <-h.Unregister:
			h.log.Info("client unregistered", "addr", client.Conn.RemoteAddr())
			h.removeFromRoom(client)
			close(client.Send)

		case msg := <-h.Inbound:
			h.dispatch(msg)
		}
	}
}

func (h *Hub) dispatch(msg *Message) {
	switch msg.Type {
	case MessageTypeJoin:
		h.handleJoin(msg)
	case MessageTypeSignal:
		h.handleSignal(msg)
	case MessageTypeLeave:
		h.removeFromRoom(msg.client)
	default:
		h.log.Warn("unknown message type", "type", msg.Type)
	}
}

func (h *Hub) handleJoin(msg *Message) {
	client := msg.client
	if msg.RoomID == "" || msg.Sender == "" {
		client.Send <- &Message{
			Type:    MessageTypeError,
			Payload: mustMarshal(ErrorPayload{Error: "join requires room_id and sender"}),
		}
		return
	}
	if client.RoomID != "" {
		client.Send <- &Message{
			Type:    MessageTypeError,
			Payload: mustMarshal(ErrorPayload{Error: "already in a room"}),
		}
		return
	}

	members := h.rooms[msg.RoomID]
	if members == nil {
		members = make(map[string]*HubClient)
		h.rooms[msg.RoomID] = members
	}
	if len(members) >= maxRoomSize {
		client.Send <- &Message{
			Type:    MessageTypeError,
			Payload: mustMarshal(ErrorPayload{Error: "room is full"}),
		}
		return
	}
	if _, taken := members[msg.Sender]; taken {
		client.Send <- &Message{
			Type:    MessageTypeError,
			Payload: mustMarshal(ErrorPayload{Error: "participant id already in use"}),
		}
		return
	}

	peers := make([]string, 0, len(members))
	for id := range members {
		peers = append(peers, id)
	}

	members[msg.Sender] = client
	client.RoomID = msg.RoomID
	client.ParticipantID = msg.Sender
	h.log.Info("participant joined room", "room", msg.RoomID, "participant", msg.Sender, "size", len(members))

	client.Send <- &Message{
		Type:    MessageTypeJoined,
		RoomID:  msg.RoomID,
		Payload: mustMarshal(JoinedPayload{Peers: peers}),
	}
	for id, other := range members {
		if id == msg.Sender {
			continue
		}
		other.Send <- &Message{Type: MessageTypePeerJoined, Sender: msg.Sender}
	}
}

func (h *Hub) handleSignal(msg *Message) {
	client := msg.client
	if client.RoomID == "" {
		client.Send <- &Message{
			Type:    MessageTypeError,
			Payload: mustMarshal(ErrorPayload{Error: "you must join a room first"}),
		}
		return
	}
	target := h.rooms[client.RoomID][msg.Target]
	if target == nil {
		h.log.Debug("signal target gone", "room", client.RoomID, "target", msg.Target)
		return
	}
	// Forward the original envelope; the relay never inspects the blob.
	target.Send <- &Message{
		Type:    MessageTypeSignal,
		Sender:  client.ParticipantID,
		Payload: msg.Payload,
	}
}

// removeFromRoom drops a client from its room and notifies the remaining
// members. Safe to call for clients that never joined.
func (h *Hub) removeFromRoom(client *HubClient) {
	if client.RoomID == "" {
		return
	}
	members := h.rooms[client.RoomID]
	delete(members, client.ParticipantID)
	if len(members) == 0 {
		delete(h.rooms, client.RoomID)
		h.log.Info("room deleted", "room", client.RoomID)
	} else {
		for _, other := range members {
			other.Send <- &Message{Type: MessageTypePeerLeft, Sender: client.ParticipantID}
		}
	}
	client.RoomID = ""
	client.ParticipantID = ""
}
