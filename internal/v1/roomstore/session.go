// Package roomstore is the process-wide owner of room state: couple rooms,
// group rooms, the waiting pool, the group-code index, and the session
// table. Every mutation funnels through Store so the invariants (a session
// belongs to at most one room, a code maps to at most one live room) hold
// under concurrent access from many connection actors.
package roomstore

import (
	"sync"
	"time"
)

// SessionID is the server-assigned, opaque identifier for a connected client.
type SessionID string

// RoomID is the server-assigned identifier for a live room.
type RoomID string

// SessionState is a session's position in its open -> UNJOINED -> (WAITING |
// JOINED) -> CLOSED lifecycle.
type SessionState int

const (
	StateUnjoined SessionState = iota
	StateWaiting
	StateJoined
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateWaiting:
		return "waiting"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Tier is the backpressure priority class used when posting a frame to a
// session's outbound queue. Higher-valued (lower-priority) tiers are dropped
// first under pressure.
type Tier int

const (
	// TierMessage covers message delivery, signaling, and state errors -
	// never dropped; a full queue here means the session is unhealthy.
	TierMessage Tier = iota
	// TierPresence covers room-state and membership updates.
	TierPresence
	// TierEphemeral covers typing indicators and file-progress markers -
	// the first things dropped when a connection actor is backed up.
	TierEphemeral
)

// Outbound is the write handle a connection actor exposes to the store.
// Post returns false if the frame could not be queued (buffer full); the
// store treats that as grounds to schedule the session for LEAVE.
type Outbound interface {
	Post(tier Tier, frame []byte) bool
}

// Session is the server-side representation of one connected client channel.
type Session struct {
	ID       SessionID
	UserID   string // client-supplied, not trusted for authorization
	Username string
	Outbound Outbound

	mu       sync.Mutex
	state    SessionState
	roomID   RoomID
	joinedAt time.Time
}

// NewSession constructs a session in state UNJOINED. The store assigns IDs
// and registers sessions; this constructor is kept small so roomstore tests
// can build sessions directly.
func NewSession(id SessionID, userID, username string, outbound Outbound) *Session {
	return &Session{
		ID:       id,
		UserID:   userID,
		Username: username,
		Outbound: outbound,
		state:    StateUnjoined,
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// RoomID returns the room this session currently belongs to, or "" if none.
func (s *Session) RoomID() RoomID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

func (s *Session) setRoom(id RoomID, state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomID = id
	s.state = state
	if id != "" {
		s.joinedAt = time.Now()
	}
}

// post writes a frame to the session's outbound handle, returning false if
// the handle refused the frame. A nil handle is a no-op that reports
// success (used in tests).
func (s *Session) post(tier Tier, frame []byte) bool {
	if s.Outbound == nil {
		return true
	}
	return s.Outbound.Post(tier, frame)
}
