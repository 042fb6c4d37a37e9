package peer

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"
)

// MemoryTransport is an in-process Transport. Two instances form a pair:
// once each side has produced its description and applied the remote one,
// both report Connected and data channels pipe frames directly between the
// paired instances. It exists so the coordinator and link logic can be
// exercised without ICE, and doubles as a same-process transport.
type MemoryTransport struct {
	mu        sync.Mutex
	peer      *MemoryTransport
	network   *MemoryNetwork
	name      string
	localSet  bool
	remoteSet bool
	connected bool
	closed    bool

	onState   func(ConnState)
	onChannel func(DataChannel)

	channels map[string]*memoryChannel
}

// NewMemoryPair returns two connected-to-be transports.
func NewMemoryPair() (*MemoryTransport, *MemoryTransport) {
	a := &MemoryTransport{name: "a", channels: make(map[string]*memoryChannel)}
	b := &MemoryTransport{name: "b", channels: make(map[string]*memoryChannel)}
	a.peer = b
	b.peer = a
	return a, b
}

// MemoryNetwork hands out unpaired memory transports that find their peer
// through the descriptions they exchange: each transport stamps its name
// into its offer or answer, and applying a remote description pairs the two
// instances. This lets independently created transports negotiate through a
// real rendezvous flow.
type MemoryNetwork struct {
	mu         sync.Mutex
	nextID     int
	transports map[string]*MemoryTransport
}

func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{transports: make(map[string]*MemoryTransport)}
}

// NewTransport allocates one unpaired transport on this network.
func (n *MemoryNetwork) NewTransport() *MemoryTransport {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	t := &MemoryTransport{
		network:  n,
		name:     fmt.Sprintf("mem-%d", n.nextID),
		channels: make(map[string]*memoryChannel),
	}
	n.transports[t.name] = t
	return t
}

// pair binds two transports once either side applies the other's
// description. Idempotent; both sides may race here.
func (n *MemoryNetwork) pair(t *MemoryTransport, sdp string) {
	fields := strings.Fields(sdp)
	if len(fields) == 0 {
		return
	}
	n.mu.Lock()
	remote := n.transports[fields[len(fields)-1]]
	n.mu.Unlock()
	if remote == nil || remote == t {
		return
	}

	first, second := t, remote
	if second.name < first.name {
		first, second = second, first
	}
	first.mu.Lock()
	second.mu.Lock()
	if t.peer == nil && remote.peer == nil {
		t.peer, remote.peer = remote, t
	}
	second.mu.Unlock()
	first.mu.Unlock()
}

func (t *MemoryTransport) CreateDataChannel(label string) (DataChannel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, errors.New("memory transport closed")
	}
	if _, ok := t.channels[label]; ok {
		return nil, fmt.Errorf("duplicate channel label %q", label)
	}
	ch := &memoryChannel{label: label, transport: t}
	t.channels[label] = ch
	return ch, nil
}

func (t *MemoryTransport) CreateOffer() (webrtc.SessionDescription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.localSet = true
	return webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  "memory-offer " + t.name,
	}, nil
}

func (t *MemoryTransport) CreateAnswer() (webrtc.SessionDescription, error) {
	t.mu.Lock()
	if !t.remoteSet {
		t.mu.Unlock()
		return webrtc.SessionDescription{}, errors.New("answer before remote offer")
	}
	t.localSet = true
	t.mu.Unlock()

	t.maybeConnect()
	return webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  "memory-answer " + t.name,
	}, nil
}

func (t *MemoryTransport) SetRemoteDescription(desc webrtc.SessionDescription) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.New("memory transport closed")
	}
	network, paired := t.network, t.peer != nil
	t.mu.Unlock()

	if network != nil && !paired {
		network.pair(t, desc.SDP)
	}

	t.mu.Lock()
	t.remoteSet = true
	t.mu.Unlock()

	t.maybeConnect()
	return nil
}

// AddICECandidate accepts and discards candidates: the memory pair has no
// connectivity to negotiate.
func (t *MemoryTransport) AddICECandidate(webrtc.ICECandidateInit) error { return nil }

func (t *MemoryTransport) OnICECandidate(func(webrtc.ICECandidateInit)) {}

func (t *MemoryTransport) OnConnectionStateChange(fn func(ConnState)) {
	t.mu.Lock()
	t.onState = fn
	t.mu.Unlock()
}

func (t *MemoryTransport) OnDataChannel(fn func(DataChannel)) {
	t.mu.Lock()
	t.onChannel = fn
	t.mu.Unlock()
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	chans := make([]*memoryChannel, 0, len(t.channels))
	for _, ch := range t.channels {
		chans = append(chans, ch)
	}
	onState := t.onState
	peer := t.peer
	t.mu.Unlock()

	for _, ch := range chans {
		ch.Close()
	}
	if onState != nil {
		onState(ConnStateClosed)
	}
	if peer != nil {
		peer.peerClosed()
	}
	return nil
}

// peerClosed mirrors a remote Close as a Disconnected state report.
func (t *MemoryTransport) peerClosed() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	onState := t.onState
	t.mu.Unlock()
	if onState != nil {
		onState(ConnStateDisconnected)
	}
}

// maybeConnect fires Connected on both sides once each has a local and a
// remote description, and mirrors every pre-created channel to the peer.
func (t *MemoryTransport) maybeConnect() {
	t.mu.Lock()
	p := t.peer
	t.mu.Unlock()
	if p == nil {
		return
	}

	// Both sides may race here; lock in a fixed order.
	first, second := t, p
	if second.name < first.name {
		first, second = second, first
	}
	first.mu.Lock()
	second.mu.Lock()
	ready := t.localSet && t.remoteSet && p.localSet && p.remoteSet &&
		!t.connected && !t.closed && !p.closed
	if !ready {
		second.mu.Unlock()
		first.mu.Unlock()
		return
	}
	t.connected = true
	p.connected = true

	type mirror struct{ local, remote *memoryChannel }
	var mirrors []mirror
	link := func(owner, other *MemoryTransport) {
		for label, ch := range owner.channels {
			if ch.remote != nil {
				continue
			}
			far := &memoryChannel{label: label, transport: other}
			ch.remote, far.remote = far, ch
			other.channels[label] = far
			mirrors = append(mirrors, mirror{local: ch, remote: far})
		}
	}
	link(t, p)
	link(p, t)

	tState, pState := t.onState, p.onState
	tChan, pChan := t.onChannel, p.onChannel
	second.mu.Unlock()
	first.mu.Unlock()

	if tState != nil {
		tState(ConnStateConnected)
	}
	if pState != nil {
		pState(ConnStateConnected)
	}

	for _, m := range mirrors {
		// The side that did not create the channel learns about it the
		// way pion delivers it: via OnDataChannel, before OnOpen.
		var announce func(DataChannel)
		if m.remote.transport == t {
			announce = tChan
		} else {
			announce = pChan
		}
		if announce != nil {
			announce(m.remote)
		}
		m.local.open()
		m.remote.open()
	}
}

type memoryChannel struct {
	label     string
	transport *MemoryTransport
	remote    *memoryChannel

	mu        sync.Mutex
	opened    bool
	closed    bool
	onOpen    func()
	onMessage func([]byte)
	onClose   func()
}

func (c *memoryChannel) Label() string { return c.label }

func (c *memoryChannel) Send(data []byte) error {
	c.mu.Lock()
	if c.closed || !c.opened {
		c.mu.Unlock()
		return errors.New("memory channel not open")
	}
	remote := c.remote
	c.mu.Unlock()

	remote.mu.Lock()
	fn := remote.onMessage
	closed := remote.closed
	remote.mu.Unlock()
	if closed {
		return errors.New("remote channel closed")
	}
	if fn != nil {
		buf := make([]byte, len(data))
		copy(buf, data)
		fn(buf)
	}
	return nil
}

func (c *memoryChannel) OnOpen(fn func()) {
	c.mu.Lock()
	opened := c.opened
	c.onOpen = fn
	c.mu.Unlock()
	if opened && fn != nil {
		fn()
	}
}

func (c *memoryChannel) OnMessage(fn func(data []byte)) {
	c.mu.Lock()
	c.onMessage = fn
	c.mu.Unlock()
}

func (c *memoryChannel) OnClose(fn func()) {
	c.mu.Lock()
	c.onClose = fn
	c.mu.Unlock()
}

func (c *memoryChannel) open() {
	c.mu.Lock()
	if c.opened || c.closed {
		c.mu.Unlock()
		return
	}
	c.opened = true
	fn := c.onOpen
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *memoryChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	fn := c.onClose
	remote := c.remote
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
	if remote != nil {
		remote.closeFromRemote()
	}
	return nil
}

func (c *memoryChannel) closeFromRemote() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	fn := c.onClose
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
