package roomstore

import (
	"container/list"
	"time"
)

// RoomKind distinguishes the two room variants.
type RoomKind string

const (
	RoomKindCouple RoomKind = "couple"
	RoomKindGroup  RoomKind = "group"
)

// CoupleRoom holds exactly two members for the legacy couple-matching path.
// Any departure is terminal: the room does not survive a single member
// leaving.
type CoupleRoom struct {
	id        RoomID
	members   [2]*Session
	createdAt time.Time
}

func newCoupleRoom(id RoomID, a, b *Session) *CoupleRoom {
	return &CoupleRoom{id: id, members: [2]*Session{a, b}, createdAt: time.Now()}
}

func (r *CoupleRoom) partnerOf(sess *Session) *Session {
	for _, m := range r.members {
		if m != nil && m.ID != sess.ID {
			return m
		}
	}
	return nil
}

func (r *CoupleRoom) memberList() []*Session {
	out := make([]*Session, 0, 2)
	for _, m := range r.members {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// GroupRoom holds a code-identified, insertion-ordered set of members. The
// code maps to at most one live GroupRoom while the room is alive.
type GroupRoom struct {
	id        RoomID
	code      string
	members   *list.List // *Session, insertion order preserved for display
	index     map[SessionID]*list.Element
	createdAt time.Time
}

func newGroupRoom(id RoomID, code string) *GroupRoom {
	return &GroupRoom{
		id:        id,
		code:      code,
		members:   list.New(),
		index:     make(map[SessionID]*list.Element),
		createdAt: time.Now(),
	}
}

func (g *GroupRoom) add(sess *Session) {
	if _, exists := g.index[sess.ID]; exists {
		return
	}
	el := g.members.PushBack(sess)
	g.index[sess.ID] = el
}

func (g *GroupRoom) remove(id SessionID) {
	if el, ok := g.index[id]; ok {
		g.members.Remove(el)
		delete(g.index, id)
	}
}

func (g *GroupRoom) isEmpty() bool {
	return g.members.Len() == 0
}

func (g *GroupRoom) memberList() []*Session {
	out := make([]*Session, 0, g.members.Len())
	for el := g.members.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*Session))
	}
	return out
}

func (g *GroupRoom) usernames() []string {
	members := g.memberList()
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.Username)
	}
	return out
}

func (g *GroupRoom) findByUserID(userID string) *Session {
	for el := g.members.Front(); el != nil; el = el.Next() {
		sess := el.Value.(*Session)
		if sess.UserID == userID {
			return sess
		}
	}
	return nil
}
