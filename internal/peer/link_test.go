package peer

import (
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imcmurray/ShadowWhisper-sub001/internal/protocol"
)

// recorder collects link observer callbacks for assertions.
type recorder struct {
	mu       sync.Mutex
	phases   []Phase
	messages []protocol.Message
	decodeErrs []error
}

func (r *recorder) observers() Observers {
	return Observers{
		OnMessage: func(_ string, msg protocol.Message) {
			r.mu.Lock()
			r.messages = append(r.messages, msg)
			r.mu.Unlock()
		},
		OnDecodeError: func(_ string, err error) {
			r.mu.Lock()
			r.decodeErrs = append(r.decodeErrs, err)
			r.mu.Unlock()
		},
		OnPhase: func(_ string, phase Phase) {
			r.mu.Lock()
			r.phases = append(r.phases, phase)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) lastPhase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.phases) == 0 {
		return PhaseIdle
	}
	return r.phases[len(r.phases)-1]
}

// connectedPair negotiates two links over a memory transport pair.
func connectedPair(t *testing.T) (*Link, *Link, *recorder, *recorder) {
	t.Helper()
	ta, tb := NewMemoryPair()
	ra, rb := &recorder{}, &recorder{}

	la, err := NewLink("peer-b", true, ta, ra.observers())
	require.NoError(t, err)
	lb, err := NewLink("peer-a", false, tb, rb.observers())
	require.NoError(t, err)

	offer, err := la.CreateOffer()
	require.NoError(t, err)
	assert.Equal(t, PhaseOffering, la.Phase())

	answer, err := lb.AcceptOffer(offer)
	require.NoError(t, err)

	require.NoError(t, la.AcceptAnswer(answer))

	require.Equal(t, PhaseConnected, la.Phase())
	require.Equal(t, PhaseConnected, lb.Phase())
	return la, lb, ra, rb
}

func TestNilTransportRejected(t *testing.T) {
	_, err := NewLink("peer", true, nil, Observers{})
	assert.ErrorIs(t, err, ErrLinkInit)
}

func TestHandshakeReachesConnected(t *testing.T) {
	_, _, ra, rb := connectedPair(t)
	assert.Equal(t, PhaseConnected, ra.lastPhase())
	assert.Equal(t, PhaseConnected, rb.lastPhase())
}

func TestSendDeliversMessage(t *testing.T) {
	la, _, _, rb := connectedPair(t)

	msg := protocol.New(protocol.KindChatMessage, "peer-a-self", map[string]any{
		"messageId":   "m1",
		"content":     "ping",
		"displayName": "alice",
	})
	require.NoError(t, la.Send(msg))

	rb.mu.Lock()
	defer rb.mu.Unlock()
	require.Len(t, rb.messages, 1)
	assert.Equal(t, protocol.KindChatMessage, rb.messages[0].Kind)
	assert.Equal(t, "ping", rb.messages[0].String("content"))
}

func TestSendBeforeConnected(t *testing.T) {
	ta, _ := NewMemoryPair()
	la, err := NewLink("peer", true, ta, Observers{})
	require.NoError(t, err)

	err = la.Send(protocol.New(protocol.KindHeartbeat, "self", nil))
	assert.ErrorIs(t, err, ErrLinkNotReady)
}

func TestOfferOnlyFromIdle(t *testing.T) {
	ta, _ := NewMemoryPair()
	la, err := NewLink("peer", true, ta, Observers{})
	require.NoError(t, err)

	_, err = la.CreateOffer()
	require.NoError(t, err)

	_, err = la.CreateOffer()
	assert.ErrorIs(t, err, ErrBadPhase)
	_, err = la.AcceptOffer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "x"})
	assert.ErrorIs(t, err, ErrBadPhase)
}

func TestAnswerOnlyFromOffering(t *testing.T) {
	ta, _ := NewMemoryPair()
	la, err := NewLink("peer", true, ta, Observers{})
	require.NoError(t, err)

	err = la.AcceptAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "x"})
	assert.ErrorIs(t, err, ErrBadPhase)
}

func TestCandidatesQueuedUntilRemoteSet(t *testing.T) {
	ta, _ := NewMemoryPair()
	la, err := NewLink("peer", true, ta, Observers{})
	require.NoError(t, err)

	// No remote description yet: the candidate is queued, not an error.
	require.NoError(t, la.AddRemoteCandidate(webrtc.ICECandidateInit{Candidate: "cand-1"}))

	la.Close()
	err = la.AddRemoteCandidate(webrtc.ICECandidateInit{Candidate: "cand-2"})
	assert.ErrorIs(t, err, ErrLinkClosed)
}

func TestBadFrameDroppedLinkStaysOpen(t *testing.T) {
	ta, tb := NewMemoryPair()
	ra := &recorder{}
	la, err := NewLink("peer-b", true, ta, ra.observers())
	require.NoError(t, err)

	var remote DataChannel
	tb.OnDataChannel(func(dc DataChannel) { remote = dc })

	offer, err := la.CreateOffer()
	require.NoError(t, err)
	require.NoError(t, tb.SetRemoteDescription(offer))
	answer, err := tb.CreateAnswer()
	require.NoError(t, err)
	require.NoError(t, la.AcceptAnswer(answer))
	require.Equal(t, PhaseConnected, la.Phase())
	require.NotNil(t, remote)

	require.NoError(t, remote.Send([]byte("not a frame")))

	ra.mu.Lock()
	decodeErrs, messages := len(ra.decodeErrs), len(ra.messages)
	ra.mu.Unlock()
	assert.Equal(t, 1, decodeErrs)
	assert.Equal(t, 0, messages)
	assert.Equal(t, PhaseConnected, la.Phase())
}

func TestRemoteCloseReportsClosed(t *testing.T) {
	la, lb, ra, _ := connectedPair(t)

	lb.Close()

	assert.Equal(t, PhaseClosed, la.Phase())
	assert.Equal(t, PhaseClosed, ra.lastPhase())

	// Close is idempotent.
	la.Close()
	la.Close()
	assert.Equal(t, PhaseClosed, la.Phase())
}
