package roomstore

import (
	"time"

	"github.com/abdibrokhim/yaps-relay/internal/v1/protocol"
	"k8s.io/utils/set"
)

// typingState tracks which session ids are currently "typing" in a room,
// along with the per-sender inactivity timer that synthesizes a
// typing_stop when the sender goes quiet without an explicit stop.
type typingState struct {
	active set.Set[SessionID]
	timers map[SessionID]*time.Timer
}

func newTypingState() *typingState {
	return &typingState{
		active: set.New[SessionID](),
		timers: make(map[SessionID]*time.Timer),
	}
}

// TypingStart applies the TYPING_START command: idempotent for a sender
// already marked typing (no duplicate broadcast), but always resets that
// sender's inactivity timer.
func (s *Store) TypingStart(sess *Session, expiry time.Duration) {
	entry := s.entryForSession(sess)
	if entry == nil {
		return
	}

	entry.mu.Lock()
	alreadyTyping := entry.typing.active.Has(sess.ID)
	entry.typing.active.Insert(sess.ID)
	if t, ok := entry.typing.timers[sess.ID]; ok {
		t.Stop()
	}
	entry.typing.timers[sess.ID] = time.AfterFunc(expiry, func() {
		s.typingExpire(sess, entry)
	})
	members := entry.memberList()
	entry.mu.Unlock()

	if !alreadyTyping {
		failed := s.broadcast(entry.id(), members, sess.ID, TierEphemeral, protocol.EventTypingStarted, protocol.TypingStartedPayload{Sender: sess.UserID})
		s.scheduleLeave(failed)
	}
}

// TypingStop applies the TYPING_STOP command.
func (s *Store) TypingStop(sess *Session) {
	entry := s.entryForSession(sess)
	if entry == nil {
		return
	}
	s.stopTyping(sess, entry)
}

func (s *Store) stopTyping(sess *Session, entry *roomEntry) {
	entry.mu.Lock()
	wasTyping := entry.typing.active.Has(sess.ID)
	entry.typing.active.Delete(sess.ID)
	if t, ok := entry.typing.timers[sess.ID]; ok {
		t.Stop()
		delete(entry.typing.timers, sess.ID)
	}
	members := entry.memberList()
	entry.mu.Unlock()

	if wasTyping {
		failed := s.broadcast(entry.id(), members, sess.ID, TierEphemeral, protocol.EventTypingStopped, struct{}{})
		s.scheduleLeave(failed)
	}
}

// typingExpire fires 5 seconds (by default) after the most recent
// typing_start with no follow-up, emitting a synthetic typing_stop.
func (s *Store) typingExpire(sess *Session, entry *roomEntry) {
	entry.mu.Lock()
	stillTyping := entry.typing.active.Has(sess.ID)
	entry.typing.active.Delete(sess.ID)
	delete(entry.typing.timers, sess.ID)
	members := entry.memberList()
	entry.mu.Unlock()

	if stillTyping {
		failed := s.broadcast(entry.id(), members, sess.ID, TierEphemeral, protocol.EventTypingStopped, struct{}{})
		s.scheduleLeave(failed)
	}
}

// broadcastGroupMembersLocked refreshes group_members_update for every
// current member of a group room. Caller must hold entry.mu.
func (s *Store) broadcastGroupMembersLocked(entry *roomEntry) []*Session {
	usernames := entry.group.usernames()
	members := entry.group.memberList()
	return s.broadcast(entry.id(), members, "", TierPresence, protocol.EventGroupMembersUpdate, protocol.GroupMembersUpdatePayload(usernames))
}
