// Package protocol implements the wire envelope and event vocabulary for the
// chat relay's WebSocket channel: a text frame carrying {"event", "data"}.
package protocol

// Event names the kind of frame being carried in an envelope. Event is a
// plain string so it round-trips through JSON without custom marshaling.
type Event string

// Client -> server events.
const (
	EventJoinChat         Event = "join_chat"
	EventSendMessage      Event = "send_message"
	EventTypingStart      Event = "typing_start"
	EventTypingStop       Event = "typing_stop"
	EventDeleteMessage    Event = "delete_message"
	EventFileSendingStart Event = "file_sending_start"
	EventFileSendingEnd   Event = "file_sending_end"
	EventWebrtcOffer      Event = "webrtc_offer"
	EventWebrtcAnswer     Event = "webrtc_answer"
	EventWebrtcCandidate  Event = "webrtc_ice_candidate"
	EventWebrtcEndCall    Event = "webrtc_end_call"
	EventDisconnectChat   Event = "disconnect_chat"
)

// Server -> client events.
const (
	EventChatStarted         Event = "chat_started"
	EventReceiveMessage      Event = "receive_message"
	EventGroupMembersUpdate  Event = "group_members_update"
	EventUserJoinedGroup     Event = "user_joined_group"
	EventUserLeftGroup       Event = "user_left_group"
	EventTypingStarted       Event = "typing_started"
	EventTypingStopped       Event = "typing_stopped"
	EventMessageDeleted      Event = "message_deleted"
	EventFileSendingStarted  Event = "file_sending_started"
	EventFileSendingEnded    Event = "file_sending_ended"
	EventPartnerDisconnected Event = "partner_disconnected"
	EventWaitingForMatch     Event = "waiting_for_match"
	EventNoMatchFound        Event = "no_match_found"
	EventGroupNotFound       Event = "group_not_found"
)

// inboundEvents enumerates every event name the codec accepts on a frame
// read from a client. Anything else is a ProtocolError.
var inboundEvents = map[Event]bool{
	EventJoinChat:         true,
	EventSendMessage:      true,
	EventTypingStart:      true,
	EventTypingStop:       true,
	EventDeleteMessage:    true,
	EventFileSendingStart: true,
	EventFileSendingEnd:   true,
	EventWebrtcOffer:      true,
	EventWebrtcAnswer:     true,
	EventWebrtcCandidate:  true,
	EventWebrtcEndCall:    true,
	EventDisconnectChat:   true,
}

// IsInbound reports whether e is a recognized client-to-server event.
func (e Event) IsInbound() bool {
	return inboundEvents[e]
}

// IsSignaling reports whether e is one of the four WebRTC passthrough events.
func (e Event) IsSignaling() bool {
	switch e {
	case EventWebrtcOffer, EventWebrtcAnswer, EventWebrtcCandidate, EventWebrtcEndCall:
		return true
	default:
		return false
	}
}
