package mesh

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imcmurray/ShadowWhisper-sub001/internal/config"
	"github.com/imcmurray/ShadowWhisper-sub001/internal/peer"
	"github.com/imcmurray/ShadowWhisper-sub001/internal/room"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

func testConfig() *config.Config {
	return &config.Config{
		HeartbeatInterval: 20 * time.Millisecond,
		LivenessWindow:    150 * time.Millisecond,
		RejoinLockout:     30 * time.Second,
		StateSyncInterval: 50 * time.Millisecond,
		DedupWindow:       config.DefaultDedupWindow,
	}
}

// quietConfig keeps a coordinator silent long enough for its peers to time
// it out.
func quietConfig() *config.Config {
	cfg := testConfig()
	cfg.HeartbeatInterval = time.Hour
	cfg.LivenessWindow = 2 * time.Hour
	return cfg
}

// harness bundles the in-process rendezvous and transport fabric.
type harness struct {
	hub     *MemoryRendezvous
	network *peer.MemoryNetwork
}

func newHarness() *harness {
	return &harness{
		hub:     NewMemoryRendezvous(),
		network: peer.NewMemoryNetwork(),
	}
}

func (h *harness) coordinator(t *testing.T, cfg *config.Config, name string) (*Coordinator, *sink) {
	t.Helper()
	c := New(cfg, name, h.hub.Client(), func() (peer.Transport, error) {
		return h.network.NewTransport(), nil
	})
	t.Cleanup(c.Close)
	return c, drain(c)
}

// sink collects a coordinator's notifications for assertions.
type sink struct {
	mu    sync.Mutex
	notes []room.Notification
}

func drain(c *Coordinator) *sink {
	s := &sink{}
	go func() {
		for n := range c.Notifications() {
			s.mu.Lock()
			s.notes = append(s.notes, n)
			s.mu.Unlock()
		}
	}()
	return s
}

func (s *sink) count(match func(room.Notification) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, note := range s.notes {
		if match(note) {
			n++
		}
	}
	return n
}

func isMessage(content string) func(room.Notification) bool {
	return func(n room.Notification) bool {
		msg, ok := n.(room.MessageReceived)
		return ok && msg.Content == content
	}
}

func rosterSize(t *testing.T, c *Coordinator) int {
	t.Helper()
	snap, err := c.Snapshot()
	require.NoError(t, err)
	return snap.RosterSize()
}

func waitForRoster(t *testing.T, c *Coordinator, size int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return rosterSize(t, c) == size
	}, waitFor, tick, "roster never reached %d", size)
}

func TestTwoPeersConverge(t *testing.T) {
	h := newHarness()
	a, _ := h.coordinator(t, testConfig(), "alice")
	b, _ := h.coordinator(t, testConfig(), "bob")

	require.NoError(t, a.CreateRoom("den", "amber-falcon-cove", false))
	require.NoError(t, b.JoinRoom("amber-falcon-cove", "bob"))

	waitForRoster(t, a, 2)
	waitForRoster(t, b, 2)

	snapA, err := a.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "bob", snapA.Participants[b.SelfID()].DisplayName)

	// The creator's room state sync teaches the joiner name and creator.
	require.Eventually(t, func() bool {
		snapB, err := b.Snapshot()
		return err == nil && snapB.RoomName == "den" && snapB.CreatorID == a.SelfID()
	}, waitFor, tick)
}

func TestChatDeliveredExactlyOnce(t *testing.T) {
	h := newHarness()
	a, _ := h.coordinator(t, testConfig(), "alice")
	b, sinkB := h.coordinator(t, testConfig(), "bob")

	require.NoError(t, a.CreateRoom("den", "room-chat", false))
	require.NoError(t, b.JoinRoom("room-chat", "bob"))
	waitForRoster(t, a, 2)
	waitForRoster(t, b, 2)

	_, err := a.SendChat("hello mesh")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return sinkB.count(isMessage("hello mesh")) == 1
	}, waitFor, tick)

	// No duplicate shows up later.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, sinkB.count(isMessage("hello mesh")))
}

func TestThreePeerMesh(t *testing.T) {
	h := newHarness()
	a, sinkA := h.coordinator(t, testConfig(), "alice")
	b, sinkB := h.coordinator(t, testConfig(), "bob")
	c, sinkC := h.coordinator(t, testConfig(), "carol")

	require.NoError(t, a.CreateRoom("den", "room-three", false))
	require.NoError(t, b.JoinRoom("room-three", "bob"))
	waitForRoster(t, a, 2)
	require.NoError(t, c.JoinRoom("room-three", "carol"))

	waitForRoster(t, a, 3)
	waitForRoster(t, b, 3)
	waitForRoster(t, c, 3)

	_, err := b.SendChat("hi all")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return sinkA.count(isMessage("hi all")) == 1 && sinkC.count(isMessage("hi all")) == 1
	}, waitFor, tick)
	assert.Equal(t, 0, sinkB.count(isMessage("hi all")))
}

func TestApprovalFlow(t *testing.T) {
	h := newHarness()
	a, sinkA := h.coordinator(t, testConfig(), "alice")
	b, sinkB := h.coordinator(t, testConfig(), "bob")

	require.NoError(t, a.CreateRoom("den", "room-gated", true))
	require.NoError(t, b.JoinRoom("room-gated", "bob"))

	// The request lands at the creator; neither roster grows yet.
	require.Eventually(t, func() bool {
		return sinkA.count(func(n room.Notification) bool {
			req, ok := n.(room.JoinRequestReceived)
			return ok && req.Request.RequesterID == b.SelfID()
		}) == 1
	}, waitFor, tick)
	assert.Equal(t, 1, rosterSize(t, a))
	assert.Equal(t, 1, rosterSize(t, b))

	require.NoError(t, a.Approve(b.SelfID()))

	waitForRoster(t, a, 2)
	waitForRoster(t, b, 2)
	require.Eventually(t, func() bool {
		return sinkB.count(func(n room.Notification) bool {
			res, ok := n.(room.JoinResolved)
			return ok && res.Approved && res.RequesterID == b.SelfID()
		}) == 1
	}, waitFor, tick)
}

func TestRejectKeepsRequesterOut(t *testing.T) {
	h := newHarness()
	a, sinkA := h.coordinator(t, testConfig(), "alice")
	b, sinkB := h.coordinator(t, testConfig(), "bob")

	require.NoError(t, a.CreateRoom("den", "room-reject", true))
	require.NoError(t, b.JoinRoom("room-reject", "bob"))

	require.Eventually(t, func() bool {
		return sinkA.count(func(n room.Notification) bool {
			_, ok := n.(room.JoinRequestReceived)
			return ok
		}) == 1
	}, waitFor, tick)

	require.NoError(t, a.Reject(b.SelfID()))

	require.Eventually(t, func() bool {
		return sinkB.count(func(n room.Notification) bool {
			res, ok := n.(room.JoinResolved)
			return ok && !res.Approved
		}) == 1
	}, waitFor, tick)
	assert.Equal(t, 1, rosterSize(t, a))

	// Rejecting twice fails: the request is resolved and gone.
	err := a.Reject(b.SelfID())
	assert.ErrorIs(t, err, ErrUnknownPeer)
}

func TestKickPropagatesAndLocksOut(t *testing.T) {
	h := newHarness()
	a, _ := h.coordinator(t, testConfig(), "alice")
	b, sinkB := h.coordinator(t, testConfig(), "bob")

	require.NoError(t, a.CreateRoom("den", "room-kick", false))
	require.NoError(t, b.JoinRoom("room-kick", "bob"))
	waitForRoster(t, a, 2)
	waitForRoster(t, b, 2)

	require.NoError(t, a.Kick(b.SelfID()))

	require.Eventually(t, func() bool {
		return sinkB.count(func(n room.Notification) bool {
			_, ok := n.(room.SelfKicked)
			return ok
		}) == 1
	}, waitFor, tick)
	waitForRoster(t, a, 1)
	assert.Equal(t, 1, rosterSize(t, b))

	// Rejoining the same code during the lockout fails fast.
	err := b.JoinRoom("room-kick", "bob")
	assert.ErrorIs(t, err, ErrRejoinLocked)
}

func TestSilentPeerTimesOut(t *testing.T) {
	h := newHarness()
	a, sinkA := h.coordinator(t, testConfig(), "alice")
	b, _ := h.coordinator(t, quietConfig(), "bob")

	require.NoError(t, a.CreateRoom("den", "room-quiet", false))
	require.NoError(t, b.JoinRoom("room-quiet", "bob"))
	waitForRoster(t, a, 2)

	// Bob never heartbeats; Alice's liveness window expires.
	isTimeout := func(n room.Notification) bool {
		left, ok := n.(room.ParticipantLeft)
		return ok && left.Reason == room.LeaveReasonTimeout && left.ID == b.SelfID()
	}
	require.Eventually(t, func() bool {
		return sinkA.count(isTimeout) == 1
	}, waitFor, tick)
	waitForRoster(t, a, 1)

	// Exactly one departure, even after more liveness ticks.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, sinkA.count(isTimeout))
}

func TestGoodbyeOnLeave(t *testing.T) {
	h := newHarness()
	a, sinkA := h.coordinator(t, testConfig(), "alice")
	b, _ := h.coordinator(t, testConfig(), "bob")

	require.NoError(t, a.CreateRoom("den", "room-bye", false))
	require.NoError(t, b.JoinRoom("room-bye", "bob"))
	waitForRoster(t, a, 2)
	waitForRoster(t, b, 2)

	require.NoError(t, b.LeaveRoom())

	require.Eventually(t, func() bool {
		return sinkA.count(func(n room.Notification) bool {
			left, ok := n.(room.ParticipantLeft)
			return ok && left.Reason == room.LeaveReasonGoodbye
		}) == 1
	}, waitFor, tick)
	waitForRoster(t, a, 1)
}

func TestOperationGuards(t *testing.T) {
	h := newHarness()
	a, _ := h.coordinator(t, testConfig(), "alice")
	b, _ := h.coordinator(t, testConfig(), "bob")

	_, err := a.SendChat("into the void")
	assert.ErrorIs(t, err, ErrNoRoom)
	assert.ErrorIs(t, a.LeaveRoom(), ErrNoRoom)

	require.NoError(t, a.CreateRoom("den", "room-guard", false))
	assert.ErrorIs(t, a.CreateRoom("den", "other", false), ErrInRoom)

	require.NoError(t, b.JoinRoom("room-guard", "bob"))
	waitForRoster(t, b, 2)

	// Only the creator may kick or decide.
	assert.ErrorIs(t, b.Kick(a.SelfID()), ErrNotCreator)
	assert.ErrorIs(t, b.Approve(a.SelfID()), ErrNotCreator)
}

func TestReactionsAndReceipts(t *testing.T) {
	h := newHarness()
	a, sinkA := h.coordinator(t, testConfig(), "alice")
	b, sinkB := h.coordinator(t, testConfig(), "bob")

	require.NoError(t, a.CreateRoom("den", "room-react", false))
	require.NoError(t, b.JoinRoom("room-react", "bob"))
	waitForRoster(t, a, 2)
	waitForRoster(t, b, 2)

	messageID, err := a.SendChat("react to me")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return sinkB.count(isMessage("react to me")) == 1
	}, waitFor, tick)

	require.NoError(t, b.React(messageID, "👍"))
	require.NoError(t, b.MarkSeen(messageID))

	require.Eventually(t, func() bool {
		reacted := sinkA.count(func(n room.Notification) bool {
			r, ok := n.(room.ReactionAdded)
			return ok && r.MessageID == messageID && r.Reaction == "👍"
		})
		seen := sinkA.count(func(n room.Notification) bool {
			s, ok := n.(room.MessageSeen)
			return ok && s.MessageID == messageID
		})
		return reacted == 1 && seen == 1
	}, waitFor, tick)
}

func TestTypingIndicator(t *testing.T) {
	h := newHarness()
	a, sinkA := h.coordinator(t, testConfig(), "alice")
	b, _ := h.coordinator(t, testConfig(), "bob")

	require.NoError(t, a.CreateRoom("den", "room-typing", false))
	require.NoError(t, b.JoinRoom("room-typing", "bob"))
	waitForRoster(t, a, 2)
	waitForRoster(t, b, 2)

	require.NoError(t, b.SetTyping(true))
	require.Eventually(t, func() bool {
		return sinkA.count(func(n room.Notification) bool {
			ty, ok := n.(room.TypingChanged)
			return ok && ty.Active && ty.ID == b.SelfID()
		}) == 1
	}, waitFor, tick)

	require.NoError(t, b.SetTyping(false))
	require.Eventually(t, func() bool {
		return sinkA.count(func(n room.Notification) bool {
			ty, ok := n.(room.TypingChanged)
			return ok && !ty.Active
		}) == 1
	}, waitFor, tick)
}
