package room

import "time"

// Notification is a typed fact emitted by the reducer for the presentation
// layer. Notifications carry no imperative side effects.
type Notification interface{ isNotification() }

type ParticipantJoined struct {
	Participant Participant
}

type ParticipantLeft struct {
	ID          string
	DisplayName string
	Reason      LeaveReason
}

type ParticipantKicked struct {
	ID          string
	DisplayName string
}

// SelfKicked means the local participant was removed by the creator. The
// coordinator reacts by tearing down all links and starting the rejoin
// lockout.
type SelfKicked struct{}

type MessageReceived struct {
	SenderID    string
	DisplayName string
	MessageID   string
	Content     string
	At          time.Time
}

type TypingChanged struct {
	ID     string
	Active bool
}

type ReactionAdded struct {
	SenderID  string
	MessageID string
	Reaction  string
}

type MessageSeen struct {
	SenderID  string
	MessageID string
}

type JoinRequestReceived struct {
	Request PendingJoinRequest
}

type JoinResolved struct {
	RequesterID string
	Approved    bool
}

// RoomSynced reports room metadata learned or changed via a creator
// roomState broadcast.
type RoomSynced struct {
	RoomName     string
	ApprovalMode bool
}

func (ParticipantJoined) isNotification()   {}
func (ParticipantLeft) isNotification()     {}
func (ParticipantKicked) isNotification()   {}
func (SelfKicked) isNotification()          {}
func (MessageReceived) isNotification()     {}
func (TypingChanged) isNotification()       {}
func (ReactionAdded) isNotification()       {}
func (MessageSeen) isNotification()         {}
func (JoinRequestReceived) isNotification() {}
func (JoinResolved) isNotification()        {}
func (RoomSynced) isNotification()          {}
