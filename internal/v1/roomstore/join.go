package roomstore

import (
	"log/slog"

	"github.com/abdibrokhim/yaps-relay/internal/v1/metrics"
	"github.com/abdibrokhim/yaps-relay/internal/v1/protocol"
)

// Join applies the JOIN command: it allocates or attaches to a group room,
// or (legacy) pairs the session through the couple waiting pool.
func (s *Store) Join(sess *Session, p protocol.JoinChatPayload) {
	sess.Username = p.Username
	if p.UserID != "" {
		sess.UserID = p.UserID
	}

	if p.RoomType == "couple" && s.cfg.CoupleEnabled {
		s.joinCouple(sess)
		return
	}
	s.joinGroup(sess, p)
}

func (s *Store) joinGroup(sess *Session, p protocol.JoinChatPayload) {
	switch p.GroupJoinMethod {
	case "join":
		s.joinExistingGroup(sess, p.GroupCode)
	default:
		s.createGroup(sess)
	}
}

func (s *Store) createGroup(sess *Session) {
	roomID := newRoomID()
	var code string
	var room *GroupRoom
	for {
		c, err := generateCode(s.cfg.CodeAlphabet, s.cfg.CodeLength, s.codeTaken)
		if err != nil {
			slog.Error("roomstore: failed to allocate group code", "error", err)
			return
		}
		// Re-check under the store lock: another create may have indexed the
		// same code between the draw and this insert.
		s.mu.Lock()
		if _, dup := s.codeIndex[c]; dup {
			s.mu.Unlock()
			continue
		}
		code = c
		room = newGroupRoom(roomID, code)
		room.add(sess)
		s.rooms[roomID] = &roomEntry{kind: RoomKindGroup, group: room, typing: newTypingState()}
		s.codeIndex[code] = roomID
		s.mu.Unlock()
		break
	}

	s.reserveDistributedCode(code, roomID)
	s.subscribeRoom(roomID)

	sess.setRoom(roomID, StateJoined)

	metrics.ActiveRooms.Inc()
	metrics.RoomMembers.WithLabelValues(string(roomID), string(RoomKindGroup)).Set(1)

	sendDirect(sess, TierPresence, protocol.EventChatStarted, protocol.ChatStartedPayload{GroupCode: code})
	sendDirect(sess, TierPresence, protocol.EventGroupMembersUpdate, protocol.GroupMembersUpdatePayload(room.usernames()))
}

func (s *Store) joinExistingGroup(sess *Session, rawCode string) {
	// Keep up to the widened length generateCode falls back to, so widened
	// codes stay joinable and over-long input is not cut down to a live code.
	maxLen := s.cfg.CodeLength
	if maxLen < 8 {
		maxLen = 8
	}
	code := normalizeCode(rawCode, maxLen)

	entry, roomID := s.entryForCode(code)
	if entry == nil {
		sendDirect(sess, TierMessage, protocol.EventGroupNotFound, struct{}{})
		return
	}

	entry.mu.Lock()
	entry.group.add(sess)
	priorMembers := entry.group.memberList() // includes sess at the back
	usernames := entry.group.usernames()
	failed := s.broadcast(roomID, priorMembers, sess.ID, TierPresence, protocol.EventUserJoinedGroup, protocol.UsernameEventPayload{Username: sess.Username})
	entry.mu.Unlock()

	sess.setRoom(roomID, StateJoined)
	metrics.RoomMembers.WithLabelValues(string(roomID), string(RoomKindGroup)).Set(float64(len(usernames)))

	sendDirect(sess, TierPresence, protocol.EventChatStarted, protocol.ChatStartedPayload{GroupCode: code})

	entry.mu.Lock()
	members := entry.group.memberList()
	entry.mu.Unlock()
	moreFailed := s.broadcast(roomID, members, "", TierPresence, protocol.EventGroupMembersUpdate, protocol.GroupMembersUpdatePayload(usernames))

	s.scheduleLeave(failed)
	s.scheduleLeave(moreFailed)
}

func (s *Store) joinCouple(sess *Session) {
	for {
		entry := s.waiting.popPeer()
		if entry == nil {
			break
		}
		s.waiting.markMatched(entry)
		peer := entry.sess
		if peer.State() != StateWaiting {
			// Lost a race with a disconnect or timeout; try the next waiter.
			continue
		}

		roomID := newRoomID()
		room := newCoupleRoom(roomID, peer, sess)
		roomEntry := &roomEntry{kind: RoomKindCouple, couple: room}

		s.mu.Lock()
		s.rooms[roomID] = roomEntry
		s.mu.Unlock()

		peer.setRoom(roomID, StateJoined)
		sess.setRoom(roomID, StateJoined)

		metrics.ActiveRooms.Inc()
		metrics.RoomMembers.WithLabelValues(string(roomID), string(RoomKindCouple)).Set(2)

		sendDirect(peer, TierPresence, protocol.EventChatStarted, protocol.ChatStartedPayload{})
		sendDirect(sess, TierPresence, protocol.EventChatStarted, protocol.ChatStartedPayload{})
		return
	}

	sess.setState(StateWaiting)
	s.waiting.enqueue(sess, func(waiter *Session) {
		waiter.setState(StateUnjoined)
		sendDirect(waiter, TierMessage, protocol.EventNoMatchFound, struct{}{})
	})
	sendDirect(sess, TierMessage, protocol.EventWaitingForMatch, struct{}{})
}
