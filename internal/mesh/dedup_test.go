package mesh

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/imcmurray/ShadowWhisper-sub001/internal/protocol"
)

func chatMsg(sender, messageID string) protocol.Message {
	return protocol.New(protocol.KindChatMessage, sender, map[string]any{
		"messageId":   messageID,
		"content":     "hi",
		"displayName": "alice",
	})
}

func TestDedupSuppressesRepeats(t *testing.T) {
	d := newDedupWindow(8)

	msg := chatMsg("s1", "m1")
	assert.True(t, d.observe(msg))
	assert.False(t, d.observe(msg))

	// Same message id from a different sender is a different identity.
	assert.True(t, d.observe(chatMsg("s2", "m1")))
}

func TestDedupDistinguishesKinds(t *testing.T) {
	d := newDedupWindow(8)

	chat := chatMsg("s1", "m1")
	react := protocol.New(protocol.KindMessageReaction, "s1", map[string]any{
		"messageId": "m1",
		"reaction":  "👍",
	})

	assert.True(t, d.observe(chat))
	assert.True(t, d.observe(react))
	assert.False(t, d.observe(react))
}

func TestDedupEvictsOldestWhenFull(t *testing.T) {
	d := newDedupWindow(3)

	first := chatMsg("s1", "m0")
	assert.True(t, d.observe(first))
	for i := 1; i <= 3; i++ {
		assert.True(t, d.observe(chatMsg("s1", fmt.Sprintf("m%d", i))))
	}

	// m0 was evicted by m3 and counts as new again.
	assert.True(t, d.observe(first))
	// m3 is still inside the window.
	assert.False(t, d.observe(chatMsg("s1", "m3")))
}

func TestDedupKeyFields(t *testing.T) {
	kick := protocol.New(protocol.KindParticipantKick, "creator", map[string]any{
		"participantId": "p1",
	})
	assert.Contains(t, dedupKey(kick), "p1")

	chat := chatMsg("s1", "m1")
	assert.Contains(t, dedupKey(chat), "m1")
}
