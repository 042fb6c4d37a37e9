package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := New(KindChatMessage, "sender-1", map[string]any{
		"messageId":   "msg-1",
		"content":     "hello there",
		"displayName": "alice",
	})

	data, err := Encode(msg)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, KindChatMessage, decoded.Kind)
	assert.Equal(t, "sender-1", decoded.SenderID)
	assert.Equal(t, "msg-1", decoded.String("messageId"))
	assert.Equal(t, "hello there", decoded.String("content"))
	assert.True(t, msg.Timestamp.Equal(decoded.Timestamp))
}

func TestDecodeUnknownKindFailsClosed(t *testing.T) {
	frame := []byte(`{"type":"selfDestruct","senderId":"s1","timestamp":"2026-08-23T10:00:00Z"}`)

	_, err := Decode(frame)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecodeMissingSender(t *testing.T) {
	frame := []byte(`{"type":"heartbeat","timestamp":"2026-08-23T10:00:00Z"}`)

	_, err := Decode(frame)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeBadTimestamp(t *testing.T) {
	frame := []byte(`{"type":"heartbeat","senderId":"s1","timestamp":"yesterday"}`)

	_, err := Decode(frame)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeMissingRequiredPayloadKey(t *testing.T) {
	// chatMessage without content.
	frame := []byte(`{"type":"chatMessage","senderId":"s1","timestamp":"2026-08-23T10:00:00Z","payload":{"messageId":"m1","displayName":"alice"}}`)

	_, err := Decode(frame)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeNotJSON(t *testing.T) {
	_, err := Decode([]byte("not json at all"))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeKindsWithoutPayload(t *testing.T) {
	for _, kind := range []Kind{KindGoodbye, KindHeartbeat, KindTypingStart, KindTypingStop} {
		data, err := Encode(New(kind, "s1", nil))
		require.NoError(t, err)

		decoded, err := Decode(data)
		require.NoError(t, err, "kind %s", kind)
		assert.Equal(t, kind, decoded.Kind)
	}
}

func TestEncodeUnknownKindRejected(t *testing.T) {
	_, err := Encode(Message{Kind: "bogus", SenderID: "s1", Timestamp: time.Now()})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecodeRoomStateValidation(t *testing.T) {
	valid := []byte(`{"type":"roomState","senderId":"s1","timestamp":"2026-08-23T10:00:00Z","payload":{"roomName":"den","approvalMode":true,"participants":[]}}`)
	msg, err := Decode(valid)
	require.NoError(t, err)
	assert.True(t, msg.Bool("approvalMode"))

	missingList := []byte(`{"type":"roomState","senderId":"s1","timestamp":"2026-08-23T10:00:00Z","payload":{"roomName":"den","approvalMode":false}}`)
	_, err = Decode(missingList)
	assert.ErrorIs(t, err, ErrMalformedPayload)

	stringMode := []byte(`{"type":"roomState","senderId":"s1","timestamp":"2026-08-23T10:00:00Z","payload":{"roomName":"den","approvalMode":"yes","participants":[]}}`)
	_, err = Decode(stringMode)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
