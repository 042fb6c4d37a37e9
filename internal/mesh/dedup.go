package mesh

import (
	"fmt"
	"time"

	"github.com/imcmurray/ShadowWhisper-sub001/internal/protocol"
)

// dedupWindow remembers the identities of recently applied messages so a
// frame arriving twice (redundant mesh paths, retransmits) is applied once.
// The window is bounded FIFO: once full, the oldest identity is forgotten.
type dedupWindow struct {
	capacity int
	seen     map[string]struct{}
	order    []string
	head     int
}

func newDedupWindow(capacity int) *dedupWindow {
	return &dedupWindow{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
		order:    make([]string, 0, capacity),
	}
}

// observe records a message identity. It returns false if the identity was
// already inside the window.
func (d *dedupWindow) observe(msg protocol.Message) bool {
	key := dedupKey(msg)
	if _, dup := d.seen[key]; dup {
		return false
	}
	if len(d.order) < d.capacity {
		d.order = append(d.order, key)
	} else {
		delete(d.seen, d.order[d.head])
		d.order[d.head] = key
		d.head = (d.head + 1) % d.capacity
	}
	d.seen[key] = struct{}{}
	return true
}

// dedupKey builds the (senderId, kind, identifying field) tuple. Kinds with
// no natural identity fall back to their timestamp.
func dedupKey(msg protocol.Message) string {
	var id string
	switch msg.Kind {
	case protocol.KindChatMessage, protocol.KindMessageReaction, protocol.KindMessageSeen:
		id = msg.String("messageId")
	case protocol.KindParticipantJoin, protocol.KindParticipantLeave,
		protocol.KindParticipantKick, protocol.KindJoinApprove, protocol.KindJoinReject:
		id = msg.String("participantId")
	default:
		id = msg.Timestamp.Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%s/%s/%s", msg.SenderID, msg.Kind, id)
}
