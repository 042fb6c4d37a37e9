package signaling

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imcmurray/ShadowWhisper-sub001/internal/mesh"
)

func startRelay(t *testing.T) string {
	t.Helper()
	hub := NewHub()
	go hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ServeWs(hub))
	mux.HandleFunc("/health", ServeHealth())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func nextEvent(t *testing.T, c *Client) mesh.RendezvousEvent {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		require.True(t, ok, "event stream closed")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for rendezvous event")
		return mesh.RendezvousEvent{}
	}
}

func TestJoinAndDiscovery(t *testing.T) {
	url := startRelay(t)

	c1 := NewClient(url)
	t.Cleanup(func() { c1.Leave() })
	peers, err := c1.Join("test-room", "p1")
	require.NoError(t, err)
	assert.Empty(t, peers)

	c2 := NewClient(url)
	t.Cleanup(func() { c2.Leave() })
	peers, err = c2.Join("test-room", "p2")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, peers)

	ev := nextEvent(t, c1)
	assert.Equal(t, mesh.RendezvousPeerJoined, ev.Type)
	assert.Equal(t, "p2", ev.PeerID)
}

func TestSignalRouting(t *testing.T) {
	url := startRelay(t)

	c1 := NewClient(url)
	t.Cleanup(func() { c1.Leave() })
	_, err := c1.Join("sig-room", "p1")
	require.NoError(t, err)

	c2 := NewClient(url)
	t.Cleanup(func() { c2.Leave() })
	_, err = c2.Join("sig-room", "p2")
	require.NoError(t, err)

	// Drain the discovery event before the signal.
	ev := nextEvent(t, c1)
	require.Equal(t, mesh.RendezvousPeerJoined, ev.Type)

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 fake"}
	require.NoError(t, c2.Send("p1", mesh.Signal{Kind: mesh.SignalOffer, SDP: &offer}))

	ev = nextEvent(t, c1)
	assert.Equal(t, mesh.RendezvousSignal, ev.Type)
	assert.Equal(t, "p2", ev.PeerID)
	assert.Equal(t, mesh.SignalOffer, ev.Signal.Kind)
	require.NotNil(t, ev.Signal.SDP)
	assert.Equal(t, "v=0 fake", ev.Signal.SDP.SDP)
}

func TestLeaveNotifiesRoom(t *testing.T) {
	url := startRelay(t)

	c1 := NewClient(url)
	t.Cleanup(func() { c1.Leave() })
	_, err := c1.Join("bye-room", "p1")
	require.NoError(t, err)

	c2 := NewClient(url)
	_, err = c2.Join("bye-room", "p2")
	require.NoError(t, err)

	ev := nextEvent(t, c1)
	require.Equal(t, mesh.RendezvousPeerJoined, ev.Type)

	require.NoError(t, c2.Leave())

	ev = nextEvent(t, c1)
	assert.Equal(t, mesh.RendezvousPeerLeft, ev.Type)
	assert.Equal(t, "p2", ev.PeerID)
}

func TestDuplicateParticipantIDRefused(t *testing.T) {
	url := startRelay(t)

	c1 := NewClient(url)
	t.Cleanup(func() { c1.Leave() })
	_, err := c1.Join("dup-room", "p1")
	require.NoError(t, err)

	c2 := NewClient(url)
	t.Cleanup(func() { c2.Leave() })
	_, err = c2.Join("dup-room", "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in use")
}

func TestGenerateCodeFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code := GenerateCode()
		parts := strings.Split(code, "-")
		require.Len(t, parts, 3, "code %q", code)
		for _, p := range parts {
			assert.NotEmpty(t, p)
		}
		seen[code] = true
	}
	// Drawn from 20*20*20 combinations; 50 draws colliding every time
	// would mean the generator is broken.
	assert.Greater(t, len(seen), 1)
}
