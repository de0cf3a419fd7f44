package protocol

// Payload shapes for client -> server events (spec section 6 of the wire
// protocol). Fields the server does not trust (sender identity on
// signaling frames, message_id ownership) are stamped or ignored by the
// room store rather than relied upon here.

// JoinChatPayload is the payload of join_chat.
type JoinChatPayload struct {
	UserID          string `json:"user_id"`
	Username        string `json:"username"`
	Preference      string `json:"preference"`
	Gender          string `json:"gender,omitempty"`
	RoomType        string `json:"room_type"`
	GroupJoinMethod string `json:"group_join_method,omitempty"` // "create" | "join"
	GroupCode       string `json:"group_code,omitempty"`
}

// EncryptedEnvelope is the opaque ciphertext blob the server forwards
// byte-identical; it never inspects encrypted or nonce.
type EncryptedEnvelope struct {
	Encrypted string `json:"encrypted"`
	Nonce     string `json:"nonce"`
}

// SendMessagePayload is the payload of send_message.
type SendMessagePayload struct {
	Message     EncryptedEnvelope `json:"message"`
	IsGroupChat bool              `json:"is_group_chat"`
	GroupCode   string            `json:"group_code,omitempty"`
	ReplyToID   *int64            `json:"reply_to_id,omitempty"`
}

// TypingPayload is the payload of typing_start and typing_stop.
type TypingPayload struct {
	IsGroupChat bool   `json:"is_group_chat"`
	GroupCode   string `json:"group_code,omitempty"`
}

// DeleteMessagePayload is the payload of delete_message. The client may send
// either casing on the wire; ResolvedMessageID accepts both and the server
// always emits messageId outbound (spec's chosen canonical casing).
type DeleteMessagePayload struct {
	MessageID      string `json:"messageId"`
	MessageIDSnake string `json:"message_id,omitempty"`
	ChatID         string `json:"chatId,omitempty"`
	IsGroupChat    bool   `json:"isGroupChat"`
}

// ResolvedMessageID returns whichever casing the client populated.
func (p DeleteMessagePayload) ResolvedMessageID() string {
	if p.MessageID != "" {
		return p.MessageID
	}
	return p.MessageIDSnake
}

// FileSendingPayload is the payload of file_sending_start and file_sending_end.
type FileSendingPayload struct {
	FileID      string `json:"file_id"`
	IsGroupChat bool   `json:"is_group_chat"`
	GroupCode   string `json:"group_code,omitempty"`
}

// SDP carries the session description for offer/answer signaling frames.
type SDP struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// SignalPayload is the shared shape of the four WebRTC signaling events.
// Only the field relevant to the event's kind is populated by the client;
// SenderID is always re-stamped by the room store, never trusted as-sent.
type SignalPayload struct {
	SenderID    string `json:"sender_id"`
	TargetID    string `json:"target_id,omitempty"`
	Offer       *SDP   `json:"offer,omitempty"`
	Answer      *SDP   `json:"answer,omitempty"`
	Candidate   any    `json:"candidate,omitempty"`
	IsGroupChat bool   `json:"is_group_chat"`
	GroupCode   string `json:"group_code,omitempty"`
}

// Server -> client payloads.

// ChatStartedPayload is sent on successful JOIN.
type ChatStartedPayload struct {
	GroupCode string `json:"groupCode,omitempty"`
}

// ReceiveMessagePayload is broadcast for send_message.
type ReceiveMessagePayload struct {
	Sender  string            `json:"sender"`
	Message EncryptedEnvelope `json:"message"`
	ReplyTo *int64            `json:"reply_to,omitempty"`
}

// GroupMembersUpdatePayload carries the current ordered membership as
// display names.
type GroupMembersUpdatePayload []string

// UsernameEventPayload is the shape of user_joined_group and user_left_group.
type UsernameEventPayload struct {
	Username string `json:"username"`
}

// TypingStartedPayload is sent for typing_started.
type TypingStartedPayload struct {
	Sender string `json:"sender"`
}

// MessageDeletedPayload echoes the deleted message's canonical id.
type MessageDeletedPayload struct {
	MessageID string `json:"messageId"`
}

// FileEventPayload is the shape of file_sending_started/file_sending_ended.
type FileEventPayload struct {
	FileID   string `json:"fileId"`
	Username string `json:"username"`
}
