package roomstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/abdibrokhim/yaps-relay/internal/v1/bus"
	"github.com/abdibrokhim/yaps-relay/internal/v1/metrics"
	"github.com/abdibrokhim/yaps-relay/internal/v1/protocol"
	"github.com/google/uuid"
)

// Bus is the optional cross-instance fan-out hook. When set, room events are
// published so peers connected to a different process instance of this relay
// observe them, the bus's distributed sets coordinate group code uniqueness
// across instances, and Subscribe feeds remote events back into local rooms.
// A nil Bus means single-instance mode. *bus.Service satisfies this directly.
type Bus interface {
	Publish(ctx context.Context, roomID, event string, payload any, senderID string) error
	Subscribe(ctx context.Context, roomID string, wg *sync.WaitGroup, handler func(bus.PubSubPayload))
	SetAdd(ctx context.Context, key, member string) error
	SetRem(ctx context.Context, key, member string) error
	SetMembers(ctx context.Context, key string) ([]string, error)
}

// codeKey is the distributed-set key a group join code is reserved under,
// so every instance agrees on which codes are taken.
func codeKey(code string) string {
	return "chat:code:" + code
}

// Config configures the store's behavior; all fields have sane defaults via
// DefaultConfig so tests can construct a Store with zero ceremony.
type Config struct {
	CodeLength         int
	CodeAlphabet       string
	WaitingPoolTimeout time.Duration
	TypingExpiry       time.Duration
	CoupleEnabled      bool
}

// DefaultConfig matches the defaults documented for the relay's environment
// configuration.
func DefaultConfig() Config {
	return Config{
		CodeLength:         6,
		CodeAlphabet:       "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789",
		WaitingPoolTimeout: 60 * time.Second,
		TypingExpiry:       5 * time.Second,
		CoupleEnabled:      true,
	}
}

// roomEntry wraps one room's mutable state with the mutex that serializes
// every command applied to it. Sharding by room id (rather than a single
// global lock) is what lets unrelated rooms process commands concurrently.
type roomEntry struct {
	mu     sync.Mutex
	kind   RoomKind
	couple *CoupleRoom
	group  *GroupRoom
	typing *typingState
}

func (e *roomEntry) memberList() []*Session {
	if e.kind == RoomKindCouple {
		return e.couple.memberList()
	}
	return e.group.memberList()
}

func (e *roomEntry) id() RoomID {
	if e.kind == RoomKindCouple {
		return e.couple.id
	}
	return e.group.id
}

// Store is the single source of truth for rooms, the waiting pool, the
// code index, and the session table. All mutation funnels through it.
type Store struct {
	cfg Config
	bus Bus

	mu        sync.Mutex // guards sessions, rooms, codeIndex - NOT per-room command processing
	sessions  map[SessionID]*Session
	rooms     map[RoomID]*roomEntry
	codeIndex map[string]RoomID
	waiting   *waitingPool
}

// NewStore constructs an empty Store. bus may be nil.
func NewStore(cfg Config, bus Bus) *Store {
	return &Store{
		cfg:       cfg,
		bus:       bus,
		sessions:  make(map[SessionID]*Session),
		rooms:     make(map[RoomID]*roomEntry),
		codeIndex: make(map[string]RoomID),
		waiting:   newWaitingPool(cfg.WaitingPoolTimeout),
	}
}

// NewSession assigns a session id, registers the session in state UNJOINED,
// and returns it.
func (s *Store) NewSession(userID, username string, outbound Outbound) *Session {
	sess := NewSession(SessionID(uuid.NewString()), userID, username, outbound)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess
}

func (s *Store) entryForRoom(id RoomID) *roomEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[id]
}

func (s *Store) entryForSession(sess *Session) *roomEntry {
	roomID := sess.RoomID()
	if roomID == "" {
		return nil
	}
	return s.entryForRoom(roomID)
}

func (s *Store) publish(event protocol.Event, roomID RoomID, payload any, senderID string) {
	if s.bus == nil {
		return
	}
	go func() {
		if err := s.bus.Publish(context.Background(), string(roomID), string(event), payload, senderID); err != nil {
			slog.Warn("roomstore: bus publish failed", "event", event, "room", roomID, "error", err)
		}
	}()
}

// removeSession deregisters a closed session from the session table.
func (s *Store) removeSession(id SessionID) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// destroyGroupRoom removes a group room and its code index entry atomically,
// releasing the distributed code reservation so another instance may reuse
// the code once every local mirror of this room has torn down.
func (s *Store) destroyGroupRoom(id RoomID, code string) {
	s.mu.Lock()
	delete(s.rooms, id)
	delete(s.codeIndex, code)
	s.mu.Unlock()
	metrics.ActiveRooms.Dec()
	metrics.RoomMembers.DeleteLabelValues(string(id), string(RoomKindGroup))

	if s.bus != nil {
		if err := s.bus.SetRem(context.Background(), codeKey(code), string(id)); err != nil {
			slog.Warn("roomstore: failed to release distributed code", "code", code, "room", id, "error", err)
		}
	}
}

// reserveDistributedCode records this instance's ownership of code in the
// distributed set backing codeTaken, so a peer instance allocating a new
// room sees the code as taken even though it has no local codeIndex entry
// for it. A no-op in single-instance mode.
func (s *Store) reserveDistributedCode(code string, roomID RoomID) {
	if s.bus == nil {
		return
	}
	if err := s.bus.SetAdd(context.Background(), codeKey(code), string(roomID)); err != nil {
		slog.Warn("roomstore: failed to reserve distributed code", "code", code, "room", roomID, "error", err)
	}
}

// entryForCode resolves a group join code to its local room entry, first
// checking this instance's own rooms and falling back to the distributed
// code index when not found locally - the room may be hosted by a peer
// instance, in which case a local mirror entry is adopted and subscribed to
// that room's bus channel.
func (s *Store) entryForCode(code string) (*roomEntry, RoomID) {
	s.mu.Lock()
	roomID, ok := s.codeIndex[code]
	if ok {
		entry := s.rooms[roomID]
		s.mu.Unlock()
		return entry, roomID
	}
	s.mu.Unlock()

	if s.bus == nil {
		return nil, ""
	}
	owners, err := s.bus.SetMembers(context.Background(), codeKey(code))
	if err != nil || len(owners) == 0 {
		return nil, ""
	}
	remoteRoomID := RoomID(owners[0])
	return s.adoptRemoteGroup(remoteRoomID, code), remoteRoomID
}

// adoptRemoteGroup creates (or returns the existing) local mirror room entry
// for a group room that a peer instance originally allocated. The mirror
// starts with no local members - they join as local sessions attach - and
// the bus subscription is what keeps it synchronized with the room's other
// instances.
func (s *Store) adoptRemoteGroup(roomID RoomID, code string) *roomEntry {
	s.mu.Lock()
	if entry, ok := s.rooms[roomID]; ok {
		s.mu.Unlock()
		return entry
	}
	entry := &roomEntry{kind: RoomKindGroup, group: newGroupRoom(roomID, code), typing: newTypingState()}
	s.rooms[roomID] = entry
	s.codeIndex[code] = roomID
	s.mu.Unlock()

	metrics.ActiveRooms.Inc()
	s.subscribeRoom(roomID)
	return entry
}

// subscribeRoom starts (or is a no-op without a configured bus) the
// background listener that injects events published by peer instances into
// this room's local membership.
func (s *Store) subscribeRoom(roomID RoomID) {
	if s.bus == nil {
		return
	}
	s.bus.Subscribe(context.Background(), string(roomID), nil, func(p bus.PubSubPayload) {
		s.handleRemoteEvent(roomID, p)
	})
}

// handleRemoteEvent re-broadcasts an event published by a peer instance to
// this instance's locally-connected members of the room. It never calls
// publish itself - doing so would echo the event straight back onto the
// bus and loop forever between instances.
func (s *Store) handleRemoteEvent(roomID RoomID, p bus.PubSubPayload) {
	entry := s.entryForRoom(roomID)
	if entry == nil {
		return
	}

	entry.mu.Lock()
	members := entry.memberList()
	entry.mu.Unlock()

	frame, err := protocol.Encode(protocol.Event(p.Event), p.Payload)
	if err != nil {
		slog.Error("roomstore: failed to encode remote event frame", "event", p.Event, "room", roomID, "error", err)
		return
	}

	var failed []*Session
	for _, m := range members {
		if m.UserID != "" && m.UserID == p.SenderID {
			continue
		}
		if !m.post(TierMessage, frame) {
			failed = append(failed, m)
		}
	}
	s.scheduleLeave(failed)
}

// destroyCoupleRoom removes a couple room; couple rooms never touch the
// code index.
func (s *Store) destroyCoupleRoom(id RoomID) {
	s.mu.Lock()
	delete(s.rooms, id)
	s.mu.Unlock()
	metrics.ActiveRooms.Dec()
	metrics.RoomMembers.DeleteLabelValues(string(id), string(RoomKindCouple))
}

// Shutdown applies LEAVE to every still-connected session, so every room is
// torn down (and any cross-instance departure notifications published)
// before the process exits rather than left dangling for peers to time out
// against.
func (s *Store) Shutdown() {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, sess := range sessions {
		wg.Add(1)
		go func(sess *Session) {
			defer wg.Done()
			s.Leave(sess)
		}(sess)
	}
	wg.Wait()
}

func newRoomID() RoomID {
	return RoomID(uuid.NewString())
}

// codeTaken checks this instance's local code index first, then - when a
// bus is configured - the distributed index, so two instances allocating a
// room at the same moment don't hand out the same code.
func (s *Store) codeTaken(code string) bool {
	s.mu.Lock()
	_, ok := s.codeIndex[code]
	s.mu.Unlock()
	if ok {
		return true
	}

	if s.bus == nil {
		return false
	}
	owners, err := s.bus.SetMembers(context.Background(), codeKey(code))
	if err != nil {
		return false
	}
	return len(owners) > 0
}

// sendDirect marshals event/payload and posts it straight to one session's
// outbound handle at the given tier, ignoring queue-full failures: unlike
// broadcast, a refused direct reply does not schedule a LEAVE.
func sendDirect(sess *Session, tier Tier, event protocol.Event, payload any) {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		slog.Error("roomstore: failed to encode frame", "event", event, "error", err)
		return
	}
	sess.post(tier, frame)
}
