package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_ValidJoinChat(t *testing.T) {
	raw := []byte(`{"event":"join_chat","data":{"user_id":"u1","username":"Ann","preference":"group","room_type":"group","group_join_method":"create"}}`)

	env, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, EventJoinChat, env.Event)

	payload, ok := DecodePayload[JoinChatPayload](env.Data)
	require.True(t, ok)
	assert.Equal(t, "Ann", payload.Username)
	assert.Equal(t, "create", payload.GroupJoinMethod)
}

func TestDecode_RejectsUnknownEvent(t *testing.T) {
	raw := []byte(`{"event":"some_made_up_event","data":{}}`)
	_, err := Decode(raw)
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestDecode_RejectsMalformedJSON(t *testing.T) {
	raw := []byte(`{"event":"join_chat","data":`)
	_, err := Decode(raw)
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestDecode_RejectsMissingFields(t *testing.T) {
	_, err := Decode([]byte(`{"event":"join_chat"}`))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)

	_, err = Decode([]byte(`{"data":{}}`))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestDecode_RejectsInvalidUTF8(t *testing.T) {
	raw := append([]byte(`{"event":"join_chat","data":"`), 0xff, 0xfe)
	raw = append(raw, []byte(`"}`)...)
	_, err := Decode(raw)
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestDecode_RejectsOversizedFrame(t *testing.T) {
	huge := strings.Repeat("a", MaxFrameBytes+1)
	raw := []byte(`{"event":"send_message","data":"` + huge + `"}`)
	_, err := Decode(raw)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestEncode_OutboundFrameRejectedByInboundDecode(t *testing.T) {
	frame, err := Encode(EventChatStarted, ChatStartedPayload{GroupCode: "Ab12Cd"})
	require.NoError(t, err)

	_, err = Decode(frame)
	// chat_started is an outbound-only event, so the inbound-set check correctly rejects it here.
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestDeleteMessagePayload_ResolvedMessageID(t *testing.T) {
	camel := DeleteMessagePayload{MessageID: "m1"}
	assert.Equal(t, "m1", camel.ResolvedMessageID())

	snake := DeleteMessagePayload{MessageIDSnake: "m2"}
	assert.Equal(t, "m2", snake.ResolvedMessageID())
}

func TestEvent_IsSignaling(t *testing.T) {
	assert.True(t, EventWebrtcOffer.IsSignaling())
	assert.True(t, EventWebrtcEndCall.IsSignaling())
	assert.False(t, EventSendMessage.IsSignaling())
}
