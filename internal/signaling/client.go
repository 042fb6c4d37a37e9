package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/imcmurray/ShadowWhisper-sub001/internal/dns"
	"github.com/imcmurray/ShadowWhisper-sub001/internal/mesh"
)

// joinTimeout bounds how long Join waits for the relay's acknowledgement.
const joinTimeout = 10 * time.Second

// Client manages the websocket connection to the relay and adapts it to the
// rendezvous contract the mesh coordinator consumes.
type Client struct {
	serverURL string
	conn      *websocket.Conn
	outgoing  chan *Message
	events    chan mesh.RendezvousEvent
	joined    chan *Message
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	selfID string
	inRoom bool
}

// NewClient creates a relay client for the given websocket URL. The
// connection is established lazily on Join.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		outgoing:  make(chan *Message, 32),
		events:    make(chan mesh.RendezvousEvent, 64),
		joined:    make(chan *Message, 1),
		done:      make(chan struct{}),
	}
}

// Connect establishes the websocket connection and starts the pumps.
func (c *Client) Connect() error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	// Custom dialer so hostname resolution survives broken local DNS.
	dialer := *websocket.DefaultDialer
	dialer.NetDial = func(network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		resolvedIP, err := dns.Lookup(host)
		if err != nil {
			return nil, fmt.Errorf("dns lookup failed: %w", err)
		}
		return net.Dial(network, net.JoinHostPort(resolvedIP, port))
	}

	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()
	return nil
}

// Join announces selfID under the room code and returns the participants
// already present.
func (c *Client) Join(code, selfID string) ([]string, error) {
	c.mu.Lock()
	if c.inRoom {
		c.mu.Unlock()
		return nil, errors.New("already joined")
	}
	c.selfID = selfID
	c.mu.Unlock()

	if c.conn == nil {
		if err := c.Connect(); err != nil {
			return nil, err
		}
	}

	if err := c.send(&Message{Type: MessageTypeJoin, RoomID: code, Sender: selfID}); err != nil {
		return nil, err
	}

	select {
	case reply := <-c.joined:
		if reply.Type == MessageTypeError {
			var ep ErrorPayload
			json.Unmarshal(reply.Payload, &ep)
			return nil, fmt.Errorf("relay refused join: %s", ep.Error)
		}
		var jp JoinedPayload
		if err := json.Unmarshal(reply.Payload, &jp); err != nil {
			return nil, fmt.Errorf("malformed join ack: %w", err)
		}
		c.mu.Lock()
		c.inRoom = true
		c.mu.Unlock()
		return jp.Peers, nil
	case <-time.After(joinTimeout):
		return nil, errors.New("relay join timed out")
	case <-c.done:
		return nil, errors.New("client closed")
	}
}

// Send routes a signal to one peer in the joined room.
func (c *Client) Send(toPeerID string, sig mesh.Signal) error {
	c.mu.Lock()
	selfID, inRoom := c.selfID, c.inRoom
	c.mu.Unlock()
	if !inRoom {
		return errors.New("not joined")
	}

	payload := SignalPayload{
		Kind:      string(sig.Kind),
		SDP:       sig.SDP,
		Candidate: sig.Candidate,
	}
	return c.send(&Message{
		Type:    MessageTypeSignal,
		Sender:  selfID,
		Target:  toPeerID,
		Payload: mustMarshal(payload),
	})
}

// Events delivers discovery and signaling events until Leave.
func (c *Client) Events() <-chan mesh.RendezvousEvent {
	return c.events
}

// Leave withdraws from the room and shuts the connection down. Idempotent.
func (c *Client) Leave() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		inRoom := c.inRoom
		c.inRoom = false
		c.mu.Unlock()
		if inRoom {
			// Best effort; the relay also notices the socket closing.
			select {
			case c.outgoing <- &Message{Type: MessageTypeLeave}:
			default:
			}
		}
		close(c.done)
	})
	return nil
}

func (c *Client) send(msg *Message) error {
	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return errors.New("client closed")
	}
}

func (c *Client) emit(ev mesh.RendezvousEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// readPump reads relay messages and translates them into rendezvous events.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.events)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case MessageTypeJoined, MessageTypeError:
			select {
			case c.joined <- &msg:
			default:
				// No join in flight; a late relay error is only loggable.
			}
		case MessageTypePeerJoined:
			c.emit(mesh.RendezvousEvent{Type: mesh.RendezvousPeerJoined, PeerID: msg.Sender})
		case MessageTypePeerLeft:
			c.emit(mesh.RendezvousEvent{Type: mesh.RendezvousPeerLeft, PeerID: msg.Sender})
		case MessageTypeSignal:
			var payload SignalPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				continue
			}
			c.emit(mesh.RendezvousEvent{
				Type:   mesh.RendezvousSignal,
				PeerID: msg.Sender,
				Signal: mesh.Signal{
					Kind:      mesh.SignalKind(payload.Kind),
					SDP:       payload.SDP,
					Candidate: payload.Candidate,
				},
			})
		}
	}
}

// writePump writes outbound messages and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
