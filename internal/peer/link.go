package peer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/imcmurray/ShadowWhisper-sub001/internal/protocol"
)

var (
	ErrLinkInit     = errors.New("link transport allocation failed")
	ErrLinkNotReady = errors.New("link not connected")
	ErrLinkClosed   = errors.New("link closed")
	ErrBadPhase     = errors.New("operation invalid in current phase")
)

// Phase is the lifecycle state of a link.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseOffering
	PhaseAnswering
	PhaseConnected
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseOffering:
		return "offering"
	case PhaseAnswering:
		return "answering"
	case PhaseConnected:
		return "connected"
	case PhaseClosed:
		return "closed"
	}
	return "unknown"
}

// channelLabel is the single chat channel negotiated per link.
const channelLabel = "whisper"

// Observers receive link events. All callbacks fire from transport callback
// goroutines; the coordinator funnels them into its mailbox rather than
// acting on them in place.
type Observers struct {
	OnMessage     func(peerID string, msg protocol.Message)
	OnDecodeError func(peerID string, err error)
	OnPhase       func(peerID string, phase Phase)
	OnCandidate   func(peerID string, c webrtc.ICECandidateInit)
}

// Link manages exactly one pairwise connection. The underlying transport is
// owned by the link and never shared; the coordinator holds links behind
// peer ids in its peer table.
type Link struct {
	peerID    string
	initiator bool
	transport Transport
	obs       Observers

	mu        sync.Mutex
	phase     Phase
	channel   DataChannel
	remoteSet bool
	pending   []webrtc.ICECandidateInit
}

// NewLink wires a link around an allocated transport. Transport allocation
// happens at the caller (it knows the config); a nil transport is the
// allocation-failure case and is rejected here so it never fails silently.
func NewLink(peerID string, initiator bool, t Transport, obs Observers) (*Link, error) {
	if t == nil {
		return nil, fmt.Errorf("link to %s: %w", peerID, ErrLinkInit)
	}
	l := &Link{
		peerID:    peerID,
		initiator: initiator,
		transport: t,
		obs:       obs,
		phase:     PhaseIdle,
	}

	t.OnICECandidate(func(c webrtc.ICECandidateInit) {
		if l.obs.OnCandidate != nil {
			l.obs.OnCandidate(l.peerID, c)
		}
	})
	t.OnConnectionStateChange(l.handleConnState)
	t.OnDataChannel(func(dc DataChannel) {
		// Answerer side: the offerer pre-created the channel, it arrives
		// here once negotiated.
		l.mu.Lock()
		if l.channel == nil && l.phase != PhaseClosed {
			l.channel = dc
			l.mu.Unlock()
			l.bindChannel(dc)
			return
		}
		l.mu.Unlock()
	})
	return l, nil
}

// PeerID returns the remote participant id this link is bound to.
func (l *Link) PeerID() string { return l.peerID }

// Initiator reports whether the local side is the offerer for this link.
func (l *Link) Initiator() bool { return l.initiator }

// Phase returns the current lifecycle state.
func (l *Link) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

// CreateOffer pre-creates the data channel and produces the local offer.
// Valid only from Idle. The channel must exist before the offer so it is
// negotiated in the same signaling round-trip.
func (l *Link) CreateOffer() (webrtc.SessionDescription, error) {
	l.mu.Lock()
	if l.phase != PhaseIdle {
		phase := l.phase
		l.mu.Unlock()
		return webrtc.SessionDescription{}, fmt.Errorf("create offer in %s: %w", phase, ErrBadPhase)
	}
	l.mu.Unlock()

	dc, err := l.transport.CreateDataChannel(channelLabel)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create channel to %s: %w", l.peerID, err)
	}
	l.mu.Lock()
	l.channel = dc
	l.mu.Unlock()
	l.bindChannel(dc)

	offer, err := l.transport.CreateOffer()
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create offer to %s: %w", l.peerID, err)
	}
	l.setPhase(PhaseOffering)
	return offer, nil
}

// AcceptOffer applies a remote offer and produces the local answer. Valid
// only from Idle.
func (l *Link) AcceptOffer(remote webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	l.mu.Lock()
	if l.phase != PhaseIdle {
		phase := l.phase
		l.mu.Unlock()
		return webrtc.SessionDescription{}, fmt.Errorf("accept offer in %s: %w", phase, ErrBadPhase)
	}
	l.mu.Unlock()

	if err := l.applyRemote(remote); err != nil {
		return webrtc.SessionDescription{}, err
	}
	answer, err := l.transport.CreateAnswer()
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create answer to %s: %w", l.peerID, err)
	}
	l.setPhase(PhaseAnswering)
	return answer, nil
}

// AcceptAnswer applies the remote answer to a previously sent offer. Valid
// only from Offering.
func (l *Link) AcceptAnswer(remote webrtc.SessionDescription) error {
	l.mu.Lock()
	if l.phase != PhaseOffering {
		phase := l.phase
		l.mu.Unlock()
		return fmt.Errorf("accept answer in %s: %w", phase, ErrBadPhase)
	}
	l.mu.Unlock()
	return l.applyRemote(remote)
}

// AddRemoteCandidate routes an ICE candidate to the transport. Candidates
// arriving before the remote description are queued and flushed once it is
// applied.
func (l *Link) AddRemoteCandidate(c webrtc.ICECandidateInit) error {
	l.mu.Lock()
	if l.phase == PhaseClosed {
		l.mu.Unlock()
		return fmt.Errorf("candidate for %s: %w", l.peerID, ErrLinkClosed)
	}
	if !l.remoteSet {
		l.pending = append(l.pending, c)
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()
	return l.transport.AddICECandidate(c)
}

// Send encodes and transmits one message. Fire-and-forget: success means
// the frame was handed to the transport's outbound buffer.
func (l *Link) Send(msg protocol.Message) error {
	l.mu.Lock()
	if l.phase != PhaseConnected || l.channel == nil {
		phase := l.phase
		l.mu.Unlock()
		return fmt.Errorf("send to %s in %s: %w", l.peerID, phase, ErrLinkNotReady)
	}
	ch := l.channel
	l.mu.Unlock()

	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return ch.Send(data)
}

// Close is idempotent and valid from any phase. It releases the transport;
// the resulting state change does not re-enter the phase observer.
func (l *Link) Close() {
	l.mu.Lock()
	if l.phase == PhaseClosed {
		l.mu.Unlock()
		return
	}
	l.phase = PhaseClosed
	ch := l.channel
	l.channel = nil
	l.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
	l.transport.Close()
}

func (l *Link) applyRemote(remote webrtc.SessionDescription) error {
	if err := l.transport.SetRemoteDescription(remote); err != nil {
		return fmt.Errorf("remote description from %s: %w", l.peerID, err)
	}
	l.mu.Lock()
	l.remoteSet = true
	queued := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, c := range queued {
		if err := l.transport.AddICECandidate(c); err != nil {
			return fmt.Errorf("queued candidate for %s: %w", l.peerID, err)
		}
	}
	return nil
}

func (l *Link) bindChannel(dc DataChannel) {
	dc.OnOpen(func() {
		l.setPhase(PhaseConnected)
	})
	dc.OnMessage(func(data []byte) {
		msg, err := protocol.Decode(data)
		if err != nil {
			// A bad frame is dropped; the link stays open.
			if l.obs.OnDecodeError != nil {
				l.obs.OnDecodeError(l.peerID, err)
			}
			return
		}
		if l.obs.OnMessage != nil {
			l.obs.OnMessage(l.peerID, msg)
		}
	})
	dc.OnClose(func() {
		l.setPhase(PhaseClosed)
	})
}

// handleConnState folds transport states into link phases. Disconnection is
// a state transition, never an error: the coordinator decides whether it
// means a participant departed.
func (l *Link) handleConnState(s ConnState) {
	switch s {
	case ConnStateFailed, ConnStateClosed, ConnStateDisconnected:
		l.setPhase(PhaseClosed)
	}
}

func (l *Link) setPhase(p Phase) {
	l.mu.Lock()
	if l.phase == p || l.phase == PhaseClosed {
		l.mu.Unlock()
		return
	}
	l.phase = p
	l.mu.Unlock()

	if l.obs.OnPhase != nil {
		l.obs.OnPhase(l.peerID, p)
	}
}
