package roomstore

import "github.com/abdibrokhim/yaps-relay/internal/v1/protocol"

// Send applies the SEND command. The client-supplied group_code/is_group_chat
// are never consulted for routing - the session's own room membership is
// authoritative - and the encrypted envelope is forwarded byte-identical.
func (s *Store) Send(sess *Session, p protocol.SendMessagePayload) {
	entry := s.entryForSession(sess)
	if entry == nil {
		// Accepted by the actor but dropped at the store: no room, no
		// recipients. The sender will have already observed (or will
		// shortly observe) partner_disconnected / LEAVE.
		return
	}

	entry.mu.Lock()
	members := entry.memberList()
	entry.mu.Unlock()

	failed := s.broadcast(entry.id(), members, sess.ID, TierMessage, protocol.EventReceiveMessage, protocol.ReceiveMessagePayload{
		Sender:  sess.UserID,
		Message: p.Message,
		ReplyTo: p.ReplyToID,
	})
	s.scheduleLeave(failed)
}

// DeleteMessage applies the DELETE_MESSAGE command. The server does not
// persist messages and so cannot verify ownership of message_id; it simply
// forwards the deletion signal.
func (s *Store) DeleteMessage(sess *Session, p protocol.DeleteMessagePayload) {
	entry := s.entryForSession(sess)
	if entry == nil {
		return
	}

	entry.mu.Lock()
	members := entry.memberList()
	entry.mu.Unlock()

	failed := s.broadcast(entry.id(), members, sess.ID, TierMessage, protocol.EventMessageDeleted, protocol.MessageDeletedPayload{
		MessageID: p.ResolvedMessageID(),
	})
	s.scheduleLeave(failed)
}

// FileSendingStart applies the FILE_SENDING_START command.
func (s *Store) FileSendingStart(sess *Session, p protocol.FileSendingPayload) {
	s.fileSendingEvent(sess, p, protocol.EventFileSendingStarted, TierEphemeral)
}

// FileSendingEnd applies the FILE_SENDING_END command.
func (s *Store) FileSendingEnd(sess *Session, p protocol.FileSendingPayload) {
	s.fileSendingEvent(sess, p, protocol.EventFileSendingEnded, TierEphemeral)
}

func (s *Store) fileSendingEvent(sess *Session, p protocol.FileSendingPayload, event protocol.Event, tier Tier) {
	entry := s.entryForSession(sess)
	if entry == nil {
		return
	}

	entry.mu.Lock()
	members := entry.memberList()
	entry.mu.Unlock()

	failed := s.broadcast(entry.id(), members, sess.ID, tier, event, protocol.FileEventPayload{
		FileID:   p.FileID,
		Username: sess.Username,
	})
	s.scheduleLeave(failed)
}
