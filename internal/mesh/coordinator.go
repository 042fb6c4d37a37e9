// Package mesh owns the full set of peer links for the local participant's
// room. It translates local intents into protocol broadcasts and inbound
// frames into room state transitions. All state is owned by a single event
// loop: transport callbacks, rendezvous events, timer ticks, and local
// intents funnel into one mailbox, so the roster and pending-request set
// are only ever mutated from one goroutine.
package mesh

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/imcmurray/ShadowWhisper-sub001/internal/config"
	"github.com/imcmurray/ShadowWhisper-sub001/internal/peer"
	"github.com/imcmurray/ShadowWhisper-sub001/internal/protocol"
	"github.com/imcmurray/ShadowWhisper-sub001/internal/room"
)

// TransportFactory allocates the transport for one new link. Allocation
// failure is fatal to that link only, never to the coordinator.
type TransportFactory func() (peer.Transport, error)

type event interface{ isCoordEvent() }

type evLinkMessage struct {
	peerID string
	msg    protocol.Message
}

type evLinkPhase struct {
	peerID string
	phase  peer.Phase
}

type evLocalCandidate struct {
	peerID string
	cand   webrtc.ICECandidateInit
}

type evDecodeError struct {
	peerID string
	err    error
}

type evIntent struct {
	run func()
}

func (evLinkMessage) isCoordEvent()    {}
func (evLinkPhase) isCoordEvent()      {}
func (evLocalCandidate) isCoordEvent() {}
func (evDecodeError) isCoordEvent()    {}
func (evIntent) isCoordEvent()         {}

type peerEntry struct {
	link        *peer.Link
	displayName string
	lastSeen    time.Time
	helloed     bool
	admitted    bool
	helloSent   bool
}

// Coordinator drives one participant's side of the mesh.
type Coordinator struct {
	cfg          *config.Config
	log          *slog.Logger
	selfID       string
	displayName  string
	rdv          Rendezvous
	newTransport TransportFactory

	mailbox   chan event
	notes     chan room.Notification
	done      chan struct{}
	closedAck chan struct{}
	closeOnce sync.Once

	// Everything below is owned by the run loop.
	state        room.Snapshot
	peers        map[string]*peerEntry
	dedup        *dedupWindow
	lockouts     map[string]time.Time
	inRoom       bool
	isCreator    bool
	selfAdmitted bool

	hbTicker   *time.Ticker
	liveTicker *time.Ticker
	syncTicker *time.Ticker
}

// New builds a coordinator and starts its event loop. The participant id is
// assigned here and is stable for the coordinator's lifetime.
func New(cfg *config.Config, displayName string, rdv Rendezvous, factory TransportFactory) *Coordinator {
	c := &Coordinator{
		cfg:          cfg,
		log:          slog.Default().With("component", "mesh"),
		selfID:       uuid.NewString(),
		displayName:  displayName,
		rdv:          rdv,
		newTransport: factory,
		mailbox:      make(chan event, 256),
		notes:        make(chan room.Notification, 256),
		done:         make(chan struct{}),
		closedAck:    make(chan struct{}),
		peers:        make(map[string]*peerEntry),
		dedup:        newDedupWindow(cfg.DedupWindow),
		lockouts:     make(map[string]time.Time),
	}
	go c.run()
	return c
}

// SelfID returns the local participant id.
func (c *Coordinator) SelfID() string { return c.selfID }

// Notifications is the stream the presentation layer consumes. It is closed
// when the coordinator shuts down; consumers must drain it.
func (c *Coordinator) Notifications() <-chan room.Notification { return c.notes }

// CreateRoom registers the local participant as creator of a fresh room.
func (c *Coordinator) CreateRoom(name, code string, approvalMode bool) error {
	return c.do(func() error {
		if c.inRoom {
			return newError("create room", ErrInRoom)
		}
		existing, err := c.rdv.Join(code, c.selfID)
		if err != nil {
			return newError("create room", err)
		}
		if len(existing) > 0 {
			return newError("create room", ErrInRoom)
		}
		c.enterRoom(code, name, approvalMode, true)
		return nil
	})
}

// JoinRoom discovers peers sharing the room code and begins linking to each
// of them. Joining a code the local participant was recently kicked from
// fails with ErrRejoinLocked.
func (c *Coordinator) JoinRoom(code, displayName string) error {
	return c.do(func() error {
		if c.inRoom {
			return newError("join room", ErrInRoom)
		}
		if until, ok := c.lockouts[code]; ok && time.Now().Before(until) {
			return newError("join room", ErrRejoinLocked)
		}
		if displayName != "" {
			c.displayName = displayName
		}
		existing, err := c.rdv.Join(code, c.selfID)
		if err != nil {
			return newError("join room", err)
		}
		c.enterRoom(code, "", false, false)
		for _, id := range existing {
			c.connectPeer(id)
		}
		return nil
	})
}

// SendChat broadcasts a chat message and returns its message id.
func (c *Coordinator) SendChat(content string) (string, error) {
	messageID := uuid.NewString()
	err := c.do(func() error {
		if !c.inRoom {
			return newError("send chat", ErrNoRoom)
		}
		c.broadcast(protocol.New(protocol.KindChatMessage, c.selfID, map[string]any{
			"messageId":   messageID,
			"content":     content,
			"displayName": c.displayName,
		}))
		return nil
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// SetTyping broadcasts a typing indicator change.
func (c *Coordinator) SetTyping(active bool) error {
	return c.do(func() error {
		if !c.inRoom {
			return newError("typing", ErrNoRoom)
		}
		kind := protocol.KindTypingStop
		if active {
			kind = protocol.KindTypingStart
		}
		c.broadcast(protocol.New(kind, c.selfID, nil))
		return nil
	})
}

// React broadcasts a reaction to a previously delivered message.
func (c *Coordinator) React(messageID, reaction string) error {
	return c.do(func() error {
		if !c.inRoom {
			return newError("react", ErrNoRoom)
		}
		c.broadcast(protocol.New(protocol.KindMessageReaction, c.selfID, map[string]any{
			"messageId": messageID,
			"reaction":  reaction,
		}))
		return nil
	})
}

// MarkSeen broadcasts a read receipt.
func (c *Coordinator) MarkSeen(messageID string) error {
	return c.do(func() error {
		if !c.inRoom {
			return newError("mark seen", ErrNoRoom)
		}
		c.broadcast(protocol.New(protocol.KindMessageSeen, c.selfID, map[string]any{
			"messageId": messageID,
		}))
		return nil
	})
}

// Approve admits a pending join request. Creator only; the decision is
// broadcast so every roster reconciles.
func (c *Coordinator) Approve(requesterID string) error {
	return c.decide(requesterID, true)
}

// Reject refuses a pending join request and closes the requester's link.
func (c *Coordinator) Reject(requesterID string) error {
	return c.decide(requesterID, false)
}

func (c *Coordinator) decide(requesterID string, approved bool) error {
	op := "reject join"
	kind := protocol.KindJoinReject
	if approved {
		op = "approve join"
		kind = protocol.KindJoinApprove
	}
	return c.do(func() error {
		if !c.inRoom {
			return newError(op, ErrNoRoom)
		}
		if !c.isCreator {
			return newError(op, ErrNotCreator)
		}
		if _, ok := c.state.Pending[requesterID]; !ok {
			return newPeerError(op, requesterID, ErrUnknownPeer)
		}
		msg := protocol.New(kind, c.selfID, map[string]any{
			"participantId": requesterID,
		})
		// The requester is not admitted yet, so the broadcast misses it;
		// the decision goes to its link directly.
		if entry, ok := c.peers[requesterID]; ok && entry.link.Phase() == peer.PhaseConnected {
			if err := entry.link.Send(msg); err != nil {
				c.log.Debug("decision send failed", "peer", requesterID, "error", err)
			}
		}
		c.broadcast(msg)
		c.handleDecision(requesterID, approved, time.Now())
		return nil
	})
}

// Kick removes a participant everywhere. Creator only.
func (c *Coordinator) Kick(targetID string) error {
	return c.do(func() error {
		if !c.inRoom {
			return newError("kick", ErrNoRoom)
		}
		if !c.isCreator {
			return newError("kick", ErrNotCreator)
		}
		if _, ok := c.state.Participants[targetID]; !ok {
			return newPeerError("kick", targetID, ErrUnknownPeer)
		}
		c.broadcast(protocol.New(protocol.KindParticipantKick, c.selfID, map[string]any{
			"participantId": targetID,
		}))
		c.handleKick(targetID)
		return nil
	})
}

// LeaveRoom says goodbye, tears down all links, and withdraws from the
// rendezvous.
func (c *Coordinator) LeaveRoom() error {
	return c.do(func() error {
		if !c.inRoom {
			return newError("leave room", ErrNoRoom)
		}
		c.broadcast(protocol.New(protocol.KindGoodbye, c.selfID, nil))
		c.exitRoom()
		return nil
	})
}

// Snapshot returns the current room state. Safe to read: the reducer is
// copy-on-write, so a returned snapshot is never mutated afterwards.
func (c *Coordinator) Snapshot() (room.Snapshot, error) {
	var snap room.Snapshot
	err := c.do(func() error {
		snap = c.state
		return nil
	})
	return snap, err
}

// Close shuts the coordinator down and blocks until the event loop has torn
// everything down. Heartbeats stop and links are marked for teardown before
// Close returns.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() { close(c.done) })
	<-c.closedAck
}

// do runs fn on the event loop and waits for its result.
func (c *Coordinator) do(fn func() error) error {
	errCh := make(chan error, 1)
	select {
	case c.mailbox <- evIntent{run: func() { errCh <- fn() }}:
	case <-c.done:
		return ErrClosed
	}
	select {
	case err := <-errCh:
		return err
	case <-c.closedAck:
		return ErrClosed
	}
}

// post enqueues an event from a transport or rendezvous goroutine.
func (c *Coordinator) post(ev event) {
	select {
	case c.mailbox <- ev:
	case <-c.done:
	}
}

func (c *Coordinator) run() {
	rdvEvents := c.rdv.Events()
	for {
		var hb, live, sync <-chan time.Time
		if c.hbTicker != nil {
			hb = c.hbTicker.C
		}
		if c.liveTicker != nil {
			live = c.liveTicker.C
		}
		if c.syncTicker != nil {
			sync = c.syncTicker.C
		}

		select {
		case <-c.done:
			c.teardown()
			return
		case ev := <-c.mailbox:
			c.handle(ev)
		case rev, ok := <-rdvEvents:
			if !ok {
				rdvEvents = nil
				continue
			}
			c.handleRendezvous(rev)
		case <-hb:
			c.sendHeartbeats()
		case <-live:
			c.checkLiveness()
		case <-sync:
			c.broadcastRoomState("")
		}
	}
}

func (c *Coordinator) teardown() {
	if c.inRoom {
		c.broadcast(protocol.New(protocol.KindGoodbye, c.selfID, nil))
		c.exitRoom()
	}
	c.rdv.Leave()
	close(c.notes)
	close(c.closedAck)
}

func (c *Coordinator) handle(ev event) {
	switch e := ev.(type) {
	case evIntent:
		e.run()
	case evLinkMessage:
		c.handleMessage(e.peerID, e.msg)
	case evLinkPhase:
		c.handlePhase(e.peerID, e.phase)
	case evLocalCandidate:
		cand := e.cand
		if err := c.rdv.Send(e.peerID, Signal{Kind: SignalCandidate, Candidate: &cand}); err != nil {
			c.log.Warn("candidate relay failed", "peer", e.peerID, "error", err)
		}
	case evDecodeError:
		// The offending frame is dropped; the link stays open.
		c.log.Warn("undecodable frame", "peer", e.peerID, "error", e.err)
	}
}

// --- room lifecycle ---

func (c *Coordinator) enterRoom(code, name string, approvalMode, creator bool) {
	c.state = room.NewSnapshot(code, name, approvalMode, c.selfID, creator)
	c.inRoom = true
	c.isCreator = creator
	c.selfAdmitted = creator
	c.hbTicker = time.NewTicker(c.cfg.HeartbeatInterval)
	c.liveTicker = time.NewTicker(c.cfg.HeartbeatInterval)
	if creator {
		c.syncTicker = time.NewTicker(c.cfg.StateSyncInterval)
	}
	c.log.Info("entered room", "code", code, "creator", creator, "approval", approvalMode)
}

func (c *Coordinator) exitRoom() {
	for _, t := range []*time.Ticker{c.hbTicker, c.liveTicker, c.syncTicker} {
		if t != nil {
			t.Stop()
		}
	}
	c.hbTicker, c.liveTicker, c.syncTicker = nil, nil, nil

	for id, entry := range c.peers {
		entry.link.Close()
		delete(c.peers, id)
	}
	c.inRoom = false
	c.isCreator = false
	c.selfAdmitted = false
	c.rdv.Leave()
	c.log.Info("left room", "code", c.state.RoomCode)
}

// --- link management ---

// connectPeer ensures a peer table entry and link exist for id. When the
// local id is lexicographically lower, the local side is the offerer; the
// fixed role assignment avoids signaling glare.
func (c *Coordinator) connectPeer(id string) *peerEntry {
	if entry, ok := c.peers[id]; ok {
		return entry
	}
	transport, err := c.newTransport()
	if err != nil {
		c.log.Error("link transport allocation failed", "peer", id, "error", err)
		return nil
	}
	link, err := peer.NewLink(id, c.selfID < id, transport, peer.Observers{
		OnMessage: func(peerID string, msg protocol.Message) {
			c.post(evLinkMessage{peerID: peerID, msg: msg})
		},
		OnDecodeError: func(peerID string, err error) {
			c.post(evDecodeError{peerID: peerID, err: err})
		},
		OnPhase: func(peerID string, phase peer.Phase) {
			c.post(evLinkPhase{peerID: peerID, phase: phase})
		},
		OnCandidate: func(peerID string, cand webrtc.ICECandidateInit) {
			c.post(evLocalCandidate{peerID: peerID, cand: cand})
		},
	})
	if err != nil {
		c.log.Error("link setup failed", "peer", id, "error", err)
		return nil
	}
	entry := &peerEntry{link: link, lastSeen: time.Now()}
	c.peers[id] = entry

	if link.Initiator() {
		offer, err := link.CreateOffer()
		if err != nil {
			c.log.Error("offer failed", "peer", id, "error", err)
			c.dropPeer(id)
			return nil
		}
		if err := c.rdv.Send(id, Signal{Kind: SignalOffer, SDP: &offer}); err != nil {
			c.log.Warn("offer relay failed", "peer", id, "error", err)
		}
	}
	return entry
}

func (c *Coordinator) dropPeer(id string) {
	if entry, ok := c.peers[id]; ok {
		entry.link.Close()
		delete(c.peers, id)
	}
}

func (c *Coordinator) handleRendezvous(rev RendezvousEvent) {
	if !c.inRoom {
		return
	}
	switch rev.Type {
	case RendezvousPeerJoined:
		c.connectPeer(rev.PeerID)
	case RendezvousPeerLeft:
		// Only meaningful while the link is still negotiating; an
		// established mesh link outlives the rendezvous connection.
		if entry, ok := c.peers[rev.PeerID]; ok && entry.link.Phase() != peer.PhaseConnected {
			c.peerDeparted(rev.PeerID, room.LeaveReasonDisconnected)
		}
	case RendezvousSignal:
		c.handleSignal(rev.PeerID, rev.Signal)
	}
}

func (c *Coordinator) handleSignal(peerID string, sig Signal) {
	entry := c.peers[peerID]
	if entry == nil {
		// An offer can arrive before the peer-joined event.
		entry = c.connectPeer(peerID)
		if entry == nil {
			return
		}
	}

	switch sig.Kind {
	case SignalOffer:
		if sig.SDP == nil {
			return
		}
		if entry.link.Phase() != peer.PhaseIdle {
			// Glare: both sides produced an offer. The lexicographically
			// lower id is the canonical offerer; ignore the other offer.
			if c.selfID < peerID {
				return
			}
			c.dropPeer(peerID)
			entry = c.connectPeer(peerID)
			if entry == nil {
				return
			}
		}
		answer, err := entry.link.AcceptOffer(*sig.SDP)
		if err != nil {
			c.log.Warn("offer rejected", "peer", peerID, "error", err)
			return
		}
		if err := c.rdv.Send(peerID, Signal{Kind: SignalAnswer, SDP: &answer}); err != nil {
			c.log.Warn("answer relay failed", "peer", peerID, "error", err)
		}
	case SignalAnswer:
		if sig.SDP == nil {
			return
		}
		if err := entry.link.AcceptAnswer(*sig.SDP); err != nil {
			c.log.Warn("answer rejected", "peer", peerID, "error", err)
		}
	case SignalCandidate:
		if sig.Candidate == nil {
			return
		}
		if err := entry.link.AddRemoteCandidate(*sig.Candidate); err != nil {
			c.log.Warn("candidate rejected", "peer", peerID, "error", err)
		}
	}
}

func (c *Coordinator) handlePhase(peerID string, phase peer.Phase) {
	entry, ok := c.peers[peerID]
	if !ok {
		return
	}
	switch phase {
	case peer.PhaseConnected:
		entry.lastSeen = time.Now()
		c.maybeSendHello(peerID, entry)
	case peer.PhaseClosed:
		c.peerDeparted(peerID, room.LeaveReasonDisconnected)
	}
}

// maybeSendHello introduces the local participant over a fresh link. In an
// approval-gated room, admitted members (including the creator) withhold
// their hello until the remote peer has been admitted, so an unapproved
// requester learns nothing about the roster.
func (c *Coordinator) maybeSendHello(peerID string, entry *peerEntry) {
	if entry.helloSent {
		return
	}
	if c.state.ApprovalMode && c.selfAdmitted && !entry.admitted {
		return
	}
	entry.helloSent = true
	if err := entry.link.Send(protocol.New(protocol.KindHello, c.selfID, map[string]any{
		"displayName": c.displayName,
	})); err != nil {
		c.log.Warn("hello failed", "peer", peerID, "error", err)
	}
}

// peerDeparted translates a dead link into a roster departure. The entry is
// removed first so repeated phase reports or liveness checks cannot emit a
// second departure for the same peer.
func (c *Coordinator) peerDeparted(peerID string, reason room.LeaveReason) {
	entry, ok := c.peers[peerID]
	if !ok {
		return
	}
	delete(c.peers, peerID)
	entry.link.Close()
	c.applyEvent(room.Leave{ID: peerID, Reason: reason})
}

func (c *Coordinator) checkLiveness() {
	now := time.Now()
	for id, entry := range c.peers {
		if now.Sub(entry.lastSeen) > c.cfg.LivenessWindow {
			c.log.Info("peer timed out", "peer", id, "lastSeen", entry.lastSeen)
			c.peerDeparted(id, room.LeaveReasonTimeout)
		}
	}
}

// --- inbound protocol messages ---

func (c *Coordinator) handleMessage(peerID string, msg protocol.Message) {
	entry, ok := c.peers[peerID]
	if !ok {
		return
	}
	entry.lastSeen = time.Now()

	// Full mesh: every frame arrives directly from its author.
	if msg.SenderID != peerID {
		c.log.Warn("sender mismatch", "peer", peerID, "claimed", msg.SenderID)
		return
	}
	if msg.Kind == protocol.KindHeartbeat {
		return
	}
	if !c.dedup.observe(msg) {
		return
	}

	switch msg.Kind {
	case protocol.KindHello, protocol.KindJoinRequest:
		c.handleHello(peerID, entry, msg)
	case protocol.KindGoodbye:
		c.peerDeparted(peerID, room.LeaveReasonGoodbye)
	case protocol.KindRoomState:
		c.handleRoomState(peerID, msg)
	case protocol.KindParticipantJoin:
		if id := msg.String("participantId"); id != c.selfID {
			c.applyEvent(room.Join{Participant: room.Participant{
				ID:          id,
				DisplayName: msg.String("displayName"),
				JoinedAt:    msg.Timestamp,
			}})
		}
	case protocol.KindParticipantLeave:
		c.applyEvent(room.Leave{ID: msg.String("participantId"), Reason: room.LeaveReasonGoodbye})
	case protocol.KindParticipantKick:
		c.handleKick(msg.String("participantId"))
	case protocol.KindChatMessage:
		c.applyEvent(room.Chat{
			SenderID:    msg.SenderID,
			DisplayName: msg.String("displayName"),
			MessageID:   msg.String("messageId"),
			Content:     msg.String("content"),
			At:          msg.Timestamp,
		})
	case protocol.KindTypingStart, protocol.KindTypingStop:
		c.applyEvent(room.Typing{
			SenderID: msg.SenderID,
			Active:   msg.Kind == protocol.KindTypingStart,
		})
	case protocol.KindMessageReaction:
		c.applyEvent(room.Reaction{
			SenderID:  msg.SenderID,
			MessageID: msg.String("messageId"),
			Reaction:  msg.String("reaction"),
		})
	case protocol.KindMessageSeen:
		c.applyEvent(room.Seen{SenderID: msg.SenderID, MessageID: msg.String("messageId")})
	case protocol.KindJoinApprove:
		c.handleDecision(msg.String("participantId"), true, msg.Timestamp)
	case protocol.KindJoinReject:
		c.handleDecision(msg.String("participantId"), false, msg.Timestamp)
	}
}

func (c *Coordinator) handleHello(peerID string, entry *peerEntry, msg protocol.Message) {
	entry.displayName = msg.String("displayName")
	entry.helloed = true
	if entry.admitted {
		return
	}
	if c.state.ApprovalMode && c.selfAdmitted {
		if c.isCreator {
			// Hold the requester pending instead of admitting it.
			c.applyEvent(room.JoinRequested{
				RequesterID: peerID,
				DisplayName: entry.displayName,
				At:          msg.Timestamp,
			})
		}
		// Non-creator members hold silently until the creator's
		// decision broadcast arrives.
		return
	}
	c.admitPeer(peerID, entry)
}

func (c *Coordinator) admitPeer(peerID string, entry *peerEntry) {
	entry.admitted = true
	c.applyEvent(room.Join{Participant: room.Participant{
		ID:          peerID,
		DisplayName: entry.displayName,
		JoinedAt:    time.Now(),
		IsCreator:   peerID == c.state.CreatorID,
	}})
	c.maybeSendHello(peerID, entry)
	if c.isCreator {
		c.broadcastRoomState(peerID)
		c.broadcastExcept(peerID, protocol.New(protocol.KindParticipantJoin, c.selfID, map[string]any{
			"participantId": peerID,
			"displayName":   entry.displayName,
		}))
	}
}

func (c *Coordinator) handleDecision(requesterID string, approved bool, at time.Time) {
	c.applyEvent(room.JoinDecision{RequesterID: requesterID, Approved: approved, At: at})

	if requesterID == c.selfID {
		if approved {
			c.selfAdmitted = true
		} else {
			// Rejected: the creator closes our links; drop the room.
			c.exitRoom()
		}
		return
	}

	entry, ok := c.peers[requesterID]
	if !ok {
		return
	}
	if approved {
		if entry.helloed && !entry.admitted {
			c.admitPeer(requesterID, entry)
		}
	} else {
		c.dropPeer(requesterID)
	}
}

func (c *Coordinator) handleKick(targetID string) {
	if targetID == c.selfID {
		c.applyEvent(room.Kick{TargetID: c.selfID})
		c.lockouts[c.state.RoomCode] = time.Now().Add(c.cfg.RejoinLockout)
		c.exitRoom()
		return
	}
	c.applyEvent(room.Kick{TargetID: targetID})
	c.dropPeer(targetID)
}

func (c *Coordinator) handleRoomState(peerID string, msg protocol.Message) {
	// Only the creator's view is authoritative.
	if c.state.CreatorID != "" && c.state.CreatorID != peerID {
		return
	}
	raw, _ := msg.Payload["participants"].([]any)
	participants := make([]room.Participant, 0, len(raw))
	for _, item := range raw {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		p := room.Participant{}
		p.ID, _ = fields["id"].(string)
		p.DisplayName, _ = fields["displayName"].(string)
		p.IsCreator, _ = fields["isCreator"].(bool)
		if ts, ok := fields["joinedAt"].(string); ok {
			p.JoinedAt, _ = time.Parse(time.RFC3339Nano, ts)
		}
		if p.ID == "" {
			continue
		}
		participants = append(participants, p)
	}
	c.selfAdmitted = true
	c.applyEvent(room.Sync{
		RoomName:     msg.String("roomName"),
		ApprovalMode: msg.Bool("approvalMode"),
		Participants: participants,
	})
	// Roster entries synced from the creator correspond to links we may
	// not have marked admitted yet.
	for id, entry := range c.peers {
		if _, ok := c.state.Participants[id]; ok {
			entry.admitted = true
		}
	}
}

// --- outbound ---

// broadcast sends to every admitted, connected peer, best-effort: links
// still negotiating or already closed are skipped, not failed. Peers held
// for approval are excluded so a pending requester sees no room traffic.
func (c *Coordinator) broadcast(msg protocol.Message) {
	c.broadcastExcept("", msg)
}

func (c *Coordinator) broadcastExcept(skipID string, msg protocol.Message) {
	for id, entry := range c.peers {
		if id == skipID || !entry.admitted || entry.link.Phase() != peer.PhaseConnected {
			continue
		}
		if err := entry.link.Send(msg); err != nil {
			c.log.Debug("broadcast skipped peer", "peer", id, "kind", msg.Kind, "error", err)
		}
	}
}

// sendHeartbeats pings every connected link, admitted or not, so a pending
// requester's link does not rot while the creator decides.
func (c *Coordinator) sendHeartbeats() {
	msg := protocol.New(protocol.KindHeartbeat, c.selfID, nil)
	for id, entry := range c.peers {
		if entry.link.Phase() != peer.PhaseConnected {
			continue
		}
		if err := entry.link.Send(msg); err != nil {
			c.log.Debug("heartbeat skipped peer", "peer", id, "error", err)
		}
	}
}

// broadcastRoomState publishes the creator's roster. With a target it is
// sent to that single peer, otherwise to everyone connected.
func (c *Coordinator) broadcastRoomState(targetID string) {
	if !c.inRoom || !c.isCreator {
		return
	}
	participants := []any{
		map[string]any{
			"id":          c.selfID,
			"displayName": c.displayName,
			"joinedAt":    time.Now().Format(time.RFC3339Nano),
			"isCreator":   true,
		},
	}
	for id, p := range c.state.Participants {
		participants = append(participants, map[string]any{
			"id":          id,
			"displayName": p.DisplayName,
			"joinedAt":    p.JoinedAt.Format(time.RFC3339Nano),
			"isCreator":   p.IsCreator,
		})
	}
	msg := protocol.New(protocol.KindRoomState, c.selfID, map[string]any{
		"roomName":     c.state.RoomName,
		"approvalMode": c.state.ApprovalMode,
		"participants": participants,
	})
	if targetID != "" {
		if entry, ok := c.peers[targetID]; ok && entry.link.Phase() == peer.PhaseConnected {
			if err := entry.link.Send(msg); err != nil {
				c.log.Debug("room state send failed", "peer", targetID, "error", err)
			}
		}
		return
	}
	c.broadcast(msg)
}

// applyEvent folds an event through the reducer and forwards notifications.
func (c *Coordinator) applyEvent(ev room.Event) {
	next, notes := room.Apply(c.state, ev)
	c.state = next
	for _, n := range notes {
		select {
		case c.notes <- n:
		case <-c.done:
			return
		}
	}
}
