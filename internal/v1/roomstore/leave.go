package roomstore

import (
	"github.com/abdibrokhim/yaps-relay/internal/v1/protocol"
)

// Leave applies the LEAVE command: explicit disconnect, a read/write
// failure, or an overflowed outbound queue all converge here. The leaving
// session always ends in CLOSED; a couple room's surviving member goes back
// to UNJOINED so it can re-enter the waiting pool.
func (s *Store) Leave(sess *Session) {
	switch sess.State() {
	case StateWaiting:
		s.waiting.cancel(sess.ID)
		sess.setState(StateClosed)
		s.removeSession(sess.ID)
		return
	case StateJoined:
		// handled below
	default:
		sess.setState(StateClosed)
		s.removeSession(sess.ID)
		return
	}

	entry := s.entryForSession(sess)
	if entry == nil {
		sess.setState(StateClosed)
		s.removeSession(sess.ID)
		return
	}

	if entry.kind == RoomKindCouple {
		s.leaveCouple(sess, entry)
	} else {
		s.leaveGroup(sess, entry)
	}

	sess.setState(StateClosed)
	s.removeSession(sess.ID)
}

func (s *Store) leaveCouple(sess *Session, entry *roomEntry) {
	entry.mu.Lock()
	partner := entry.couple.partnerOf(sess)
	roomID := entry.couple.id
	entry.mu.Unlock()

	if partner != nil {
		partner.setRoom("", StateUnjoined)
		sendDirect(partner, TierMessage, protocol.EventPartnerDisconnected, struct{}{})
	}
	s.destroyCoupleRoom(roomID)
}

func (s *Store) leaveGroup(sess *Session, entry *roomEntry) {
	entry.mu.Lock()
	entry.group.remove(sess.ID)
	empty := entry.group.isEmpty()
	roomID := entry.group.id
	code := entry.group.code

	var failed []*Session
	if !empty {
		failed = s.broadcast(roomID, entry.group.memberList(), "", TierPresence, protocol.EventUserLeftGroup, protocol.UsernameEventPayload{Username: sess.Username})
		failed = append(failed, s.broadcastGroupMembersLocked(entry)...)
	}
	entry.mu.Unlock()

	if empty {
		s.destroyGroupRoom(roomID, code)
	} else {
		s.scheduleLeave(failed)
	}
}
