package mesh

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
)

// SignalKind tags a rendezvous signal envelope.
type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "candidate"
)

// Signal is an opaque signaling blob routed between two peers sharing a
// room code. The coordinator never inspects SDP contents, it only routes
// them to the right link.
type Signal struct {
	Kind      SignalKind
	SDP       *webrtc.SessionDescription
	Candidate *webrtc.ICECandidateInit
}

// RendezvousEventType enumerates what a rendezvous can report.
type RendezvousEventType int

const (
	RendezvousPeerJoined RendezvousEventType = iota
	RendezvousPeerLeft
	RendezvousSignal
)

// RendezvousEvent is one discovery or signaling fact. PeerID identifies the
// remote participant the event concerns (for signals, the sender).
type RendezvousEvent struct {
	Type   RendezvousEventType
	PeerID string
	Signal Signal
}

// Rendezvous is the external discovery collaborator: participants sharing a
// room code learn about each other and exchange signaling blobs through it.
// The websocket relay client implements it for production; MemoryRendezvous
// implements it in-process.
type Rendezvous interface {
	// Join announces selfID under the room code and returns the ids of
	// participants already present.
	Join(code, selfID string) ([]string, error)

	// Send routes a signal to one peer in the joined room.
	Send(toPeerID string, sig Signal) error

	// Events delivers discovery and signaling events until Leave.
	Events() <-chan RendezvousEvent

	// Leave withdraws from the room and stops the event stream.
	Leave() error
}

// MemoryRendezvous is an in-process rendezvous hub. Each participant takes
// a Client handle; handles sharing the hub discover each other by room code.
type MemoryRendezvous struct {
	mu    sync.Mutex
	rooms map[string]map[string]*memoryMember
}

func NewMemoryRendezvous() *MemoryRendezvous {
	return &MemoryRendezvous{rooms: make(map[string]map[string]*memoryMember)}
}

// Client returns an unjoined rendezvous handle backed by this hub.
func (r *MemoryRendezvous) Client() Rendezvous {
	return &memoryMember{hub: r, events: make(chan RendezvousEvent, 64)}
}

type memoryMember struct {
	hub    *MemoryRendezvous
	events chan RendezvousEvent

	mu     sync.Mutex
	code   string
	selfID string
	left   bool
}

func (m *memoryMember) Join(code, selfID string) ([]string, error) {
	m.mu.Lock()
	if m.code != "" {
		m.mu.Unlock()
		return nil, errors.New("already joined")
	}
	m.code = code
	m.selfID = selfID
	m.mu.Unlock()

	m.hub.mu.Lock()
	members := m.hub.rooms[code]
	if members == nil {
		members = make(map[string]*memoryMember)
		m.hub.rooms[code] = members
	}
	existing := make([]string, 0, len(members))
	notify := make([]*memoryMember, 0, len(members))
	for id, other := range members {
		existing = append(existing, id)
		notify = append(notify, other)
	}
	members[selfID] = m
	m.hub.mu.Unlock()

	for _, other := range notify {
		other.deliver(RendezvousEvent{Type: RendezvousPeerJoined, PeerID: selfID})
	}
	return existing, nil
}

func (m *memoryMember) Send(toPeerID string, sig Signal) error {
	m.mu.Lock()
	code, selfID := m.code, m.selfID
	m.mu.Unlock()
	if code == "" {
		return errors.New("not joined")
	}

	m.hub.mu.Lock()
	target := m.hub.rooms[code][toPeerID]
	m.hub.mu.Unlock()
	if target == nil {
		return errors.New("no such peer: " + toPeerID)
	}
	target.deliver(RendezvousEvent{Type: RendezvousSignal, PeerID: selfID, Signal: sig})
	return nil
}

func (m *memoryMember) Events() <-chan RendezvousEvent {
	return m.events
}

func (m *memoryMember) Leave() error {
	m.mu.Lock()
	if m.left {
		m.mu.Unlock()
		return nil
	}
	m.left = true
	code, selfID := m.code, m.selfID
	m.mu.Unlock()

	if code == "" {
		close(m.events)
		return nil
	}

	m.hub.mu.Lock()
	members := m.hub.rooms[code]
	delete(members, selfID)
	if len(members) == 0 {
		delete(m.hub.rooms, code)
	}
	notify := make([]*memoryMember, 0, len(members))
	for _, other := range members {
		notify = append(notify, other)
	}
	m.hub.mu.Unlock()

	for _, other := range notify {
		other.deliver(RendezvousEvent{Type: RendezvousPeerLeft, PeerID: selfID})
	}
	close(m.events)
	return nil
}

// deliver drops events for members that stopped draining; rendezvous
// traffic is advisory and the mesh recovers via liveness timeouts.
func (m *memoryMember) deliver(ev RendezvousEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.left {
		return
	}
	select {
	case m.events <- ev:
	default:
	}
}
