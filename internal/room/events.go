package room

import "time"

// Event is a fact the coordinator feeds into the reducer: a de-duplicated
// protocol message translated to its domain meaning, or a local intent.
type Event interface{ isEvent() }

// LeaveReason distinguishes why a participant left the roster.
type LeaveReason string

const (
	LeaveReasonGoodbye      LeaveReason = "goodbye"
	LeaveReasonDisconnected LeaveReason = "disconnected"
	LeaveReasonTimeout      LeaveReason = "timeout"
	LeaveReasonSync         LeaveReason = "sync"
)

// Join admits a participant to the roster.
type Join struct {
	Participant Participant
}

// Leave removes a participant, or withdraws their pending join request.
type Leave struct {
	ID     string
	Reason LeaveReason
}

// Kick removes the named target everywhere, including on the target itself.
type Kick struct {
	TargetID string
}

// Chat is an inbound chat message.
type Chat struct {
	SenderID    string
	DisplayName string
	MessageID   string
	Content     string
	At          time.Time
}

// Typing reports a typing indicator change.
type Typing struct {
	SenderID string
	Active   bool
}

// Reaction attaches a reaction to a previously delivered message.
type Reaction struct {
	SenderID  string
	MessageID string
	Reaction  string
}

// Seen is a read receipt.
type Seen struct {
	SenderID  string
	MessageID string
}

// Sync replaces room metadata and roster from a creator roomState broadcast.
type Sync struct {
	RoomName     string
	ApprovalMode bool
	Participants []Participant
}

// JoinRequested queues an approval-mode join request.
type JoinRequested struct {
	RequesterID string
	DisplayName string
	At          time.Time
}

// JoinDecision resolves a pending join request.
type JoinDecision struct {
	RequesterID string
	Approved    bool
	At          time.Time
}

func (Join) isEvent()          {}
func (Leave) isEvent()         {}
func (Kick) isEvent()          {}
func (Chat) isEvent()          {}
func (Typing) isEvent()        {}
func (Reaction) isEvent()      {}
func (Seen) isEvent()          {}
func (Sync) isEvent()          {}
func (JoinRequested) isEvent() {}
func (JoinDecision) isEvent()  {}
