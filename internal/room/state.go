// Package room holds the local belief about room state. It is a pure
// reducer: Apply never performs I/O and never mutates its input, so every
// state transition is replayable and testable in isolation. The mesh
// coordinator is the only writer; the presentation layer sees only the
// emitted notifications.
package room

import (
	"time"
)

// Participant is one roster entry. The local participant never appears in
// its own roster.
type Participant struct {
	ID          string
	DisplayName string
	JoinedAt    time.Time
	IsCreator   bool
}

// PendingJoinRequest exists only while approval mode is active and a
// requester awaits the creator's decision.
type PendingJoinRequest struct {
	RequesterID string
	DisplayName string
	RequestedAt time.Time
}

type decision struct {
	approved bool
	at       time.Time
}

// Snapshot is the locally-held belief about the room. It is never globally
// authoritative; creators rebroadcast roomState so replicas converge.
type Snapshot struct {
	RoomCode     string
	RoomName     string
	ApprovalMode bool
	SelfID       string
	CreatorID    string
	Participants map[string]Participant
	Pending      map[string]PendingJoinRequest
	resolved     map[string]decision
}

// NewSnapshot returns the initial state for a participant entering a room.
func NewSnapshot(code, name string, approvalMode bool, selfID string, selfIsCreator bool) Snapshot {
	s := Snapshot{
		RoomCode:     code,
		RoomName:     name,
		ApprovalMode: approvalMode,
		SelfID:       selfID,
		Participants: map[string]Participant{},
		Pending:      map[string]PendingJoinRequest{},
		resolved:     map[string]decision{},
	}
	if selfIsCreator {
		s.CreatorID = selfID
	}
	return s
}

// RosterSize returns the number of participants including self.
func (s Snapshot) RosterSize() int {
	return len(s.Participants) + 1
}

// Roster returns the remote participants in insertion-independent map order.
func (s Snapshot) Roster() []Participant {
	out := make([]Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		out = append(out, p)
	}
	return out
}

func (s Snapshot) clone() Snapshot {
	next := s
	next.Participants = make(map[string]Participant, len(s.Participants))
	for k, v := range s.Participants {
		next.Participants[k] = v
	}
	next.Pending = make(map[string]PendingJoinRequest, len(s.Pending))
	for k, v := range s.Pending {
		next.Pending[k] = v
	}
	next.resolved = make(map[string]decision, len(s.resolved))
	for k, v := range s.resolved {
		next.resolved[k] = v
	}
	return next
}

// Apply folds one event into the snapshot. Transitions are total: every
// event has a defined effect, and events that carry no new information
// (duplicate joins, leaves for unknown ids, decisions for already-resolved
// requests) return the snapshot unchanged with no notifications.
func Apply(s Snapshot, ev Event) (Snapshot, []Notification) {
	switch e := ev.(type) {
	case Join:
		return applyJoin(s, e)
	case Leave:
		return applyLeave(s, e)
	case Kick:
		return applyKick(s, e)
	case Chat:
		if _, ok := s.Participants[e.SenderID]; !ok {
			return s, nil
		}
		return s, []Notification{MessageReceived{
			SenderID:    e.SenderID,
			DisplayName: e.DisplayName,
			MessageID:   e.MessageID,
			Content:     e.Content,
			At:          e.At,
		}}
	case Typing:
		if _, ok := s.Participants[e.SenderID]; !ok {
			return s, nil
		}
		return s, []Notification{TypingChanged{ID: e.SenderID, Active: e.Active}}
	case Reaction:
		if _, ok := s.Participants[e.SenderID]; !ok {
			return s, nil
		}
		return s, []Notification{ReactionAdded{
			SenderID:  e.SenderID,
			MessageID: e.MessageID,
			Reaction:  e.Reaction,
		}}
	case Seen:
		if _, ok := s.Participants[e.SenderID]; !ok {
			return s, nil
		}
		return s, []Notification{MessageSeen{SenderID: e.SenderID, MessageID: e.MessageID}}
	case Sync:
		return applySync(s, e)
	case JoinRequested:
		return applyJoinRequested(s, e)
	case JoinDecision:
		return applyJoinDecision(s, e)
	}
	return s, nil
}

func applyJoin(s Snapshot, e Join) (Snapshot, []Notification) {
	if e.Participant.ID == s.SelfID {
		return s, nil
	}
	if _, ok := s.Participants[e.Participant.ID]; ok {
		return s, nil
	}
	next := s.clone()
	next.Participants[e.Participant.ID] = e.Participant
	delete(next.Pending, e.Participant.ID)
	if e.Participant.IsCreator && next.CreatorID == "" {
		next.CreatorID = e.Participant.ID
	}
	return next, []Notification{ParticipantJoined{Participant: e.Participant}}
}

func applyLeave(s Snapshot, e Leave) (Snapshot, []Notification) {
	if p, ok := s.Participants[e.ID]; ok {
		next := s.clone()
		delete(next.Participants, e.ID)
		return next, []Notification{ParticipantLeft{
			ID:          e.ID,
			DisplayName: p.DisplayName,
			Reason:      e.Reason,
		}}
	}
	// A pending requester that disconnects withdraws its request.
	if _, ok := s.Pending[e.ID]; ok {
		next := s.clone()
		delete(next.Pending, e.ID)
		next.resolved[e.ID] = decision{approved: false, at: time.Now()}
		return next, []Notification{JoinResolved{RequesterID: e.ID, Approved: false}}
	}
	return s, nil
}

func applyKick(s Snapshot, e Kick) (Snapshot, []Notification) {
	if e.TargetID == s.SelfID {
		next := s.clone()
		next.Participants = map[string]Participant{}
		next.Pending = map[string]PendingJoinRequest{}
		return next, []Notification{SelfKicked{}}
	}
	p, ok := s.Participants[e.TargetID]
	if !ok {
		return s, nil
	}
	next := s.clone()
	delete(next.Participants, e.TargetID)
	return next, []Notification{ParticipantKicked{ID: e.TargetID, DisplayName: p.DisplayName}}
}

func applySync(s Snapshot, e Sync) (Snapshot, []Notification) {
	next := s.clone()
	next.RoomName = e.RoomName
	next.ApprovalMode = e.ApprovalMode

	var notes []Notification
	if s.RoomName != e.RoomName || s.ApprovalMode != e.ApprovalMode {
		notes = append(notes, RoomSynced{RoomName: e.RoomName, ApprovalMode: e.ApprovalMode})
	}
	incoming := make(map[string]Participant, len(e.Participants))
	for _, p := range e.Participants {
		if p.ID == s.SelfID {
			continue
		}
		incoming[p.ID] = p
		if p.IsCreator {
			next.CreatorID = p.ID
		}
		if _, known := s.Participants[p.ID]; !known {
			notes = append(notes, ParticipantJoined{Participant: p})
		}
	}
	for id, p := range s.Participants {
		if _, still := incoming[id]; !still {
			notes = append(notes, ParticipantLeft{
				ID:          id,
				DisplayName: p.DisplayName,
				Reason:      LeaveReasonSync,
			})
		}
	}
	next.Participants = incoming
	return next, notes
}

func applyJoinRequested(s Snapshot, e JoinRequested) (Snapshot, []Notification) {
	if !s.ApprovalMode {
		return s, nil
	}
	if _, ok := s.Participants[e.RequesterID]; ok {
		return s, nil
	}
	if _, ok := s.Pending[e.RequesterID]; ok {
		return s, nil
	}
	if _, ok := s.resolved[e.RequesterID]; ok {
		return s, nil
	}
	next := s.clone()
	req := PendingJoinRequest{
		RequesterID: e.RequesterID,
		DisplayName: e.DisplayName,
		RequestedAt: e.At,
	}
	next.Pending[e.RequesterID] = req
	return next, []Notification{JoinRequestReceived{Request: req}}
}

func applyJoinDecision(s Snapshot, e JoinDecision) (Snapshot, []Notification) {
	// The earliest applied decision wins; later decisions for the same
	// requester are no-ops regardless of their verdict.
	if _, done := s.resolved[e.RequesterID]; done {
		return s, nil
	}
	next := s.clone()
	delete(next.Pending, e.RequesterID)
	next.resolved[e.RequesterID] = decision{approved: e.Approved, at: e.At}
	return next, []Notification{JoinResolved{RequesterID: e.RequesterID, Approved: e.Approved}}
}
