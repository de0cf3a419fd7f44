package roomstore

import (
	"log/slog"

	"github.com/abdibrokhim/yaps-relay/internal/v1/metrics"
	"github.com/abdibrokhim/yaps-relay/internal/v1/protocol"
)

// broadcast resolves the recipient set from members, filters out exclude
// (the originator, when the event semantics don't call for echo), and posts
// the envelope to each recipient's outbound handle at the given tier. A
// write failure to one recipient is isolated: it's collected and returned
// so the caller can schedule that session for LEAVE once the room lock is
// released, while delivery to the rest proceeds uninterrupted.
//
// After the local send completes, the same event is published on the bus
// (if configured) under the excluded member's user id, so a peer connected
// to a different instance observes it too, and a later echo back from the
// bus can be dropped by matching that sender id rather than redelivered.
func (s *Store) broadcast(roomID RoomID, members []*Session, exclude SessionID, tier Tier, event protocol.Event, payload any) []*Session {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		slog.Error("roomstore: failed to encode broadcast frame", "event", event, "error", err)
		return nil
	}

	var failed []*Session
	var senderUserID string
	for _, m := range members {
		if m.ID == exclude {
			senderUserID = m.UserID
			continue
		}
		if !m.post(tier, frame) {
			metrics.DroppedFrames.WithLabelValues(tierName(tier)).Inc()
			failed = append(failed, m)
		}
	}
	s.publish(event, roomID, payload, senderUserID)
	return failed
}

func tierName(t Tier) string {
	switch t {
	case TierMessage:
		return "message"
	case TierPresence:
		return "presence"
	case TierEphemeral:
		return "ephemeral"
	default:
		return "unknown"
	}
}

// scheduleLeave asynchronously runs Leave for every session a broadcast
// failed to reach, so a full outbound queue turns into a proper departure
// without blocking the command that discovered it.
func (s *Store) scheduleLeave(sessions []*Session) {
	for _, sess := range sessions {
		go s.Leave(sess)
	}
}
