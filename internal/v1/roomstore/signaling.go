package roomstore

import (
	"github.com/abdibrokhim/yaps-relay/internal/v1/metrics"
	"github.com/abdibrokhim/yaps-relay/internal/v1/protocol"
)

// Signal applies the SIGNAL command for the four WebRTC passthrough events.
// Sender identity is always stamped by the store, never trusted from the
// client. If target_id is present and resolves to a member of the sender's
// room, the frame is unicast; with no target_id it's broadcast to all other
// members. A target_id that doesn't resolve to a room member is silently
// dropped.
func (s *Store) Signal(sess *Session, event protocol.Event, p protocol.SignalPayload) {
	entry := s.entryForSession(sess)
	if entry == nil {
		return
	}
	p.SenderID = sess.UserID

	entry.mu.Lock()
	members := entry.memberList()
	entry.mu.Unlock()

	if p.TargetID != "" {
		target := findByUserID(members, p.TargetID)
		if target == nil {
			metrics.SignalingForwarded.WithLabelValues("dropped_unknown_target").Inc()
			return
		}
		frame, err := protocol.Encode(event, p)
		if err != nil {
			return
		}
		if !target.post(TierMessage, frame) {
			metrics.DroppedFrames.WithLabelValues("message").Inc()
			go s.Leave(target)
			metrics.SignalingForwarded.WithLabelValues("dropped_queue_full").Inc()
			return
		}
		metrics.SignalingForwarded.WithLabelValues("ok").Inc()
		return
	}

	failed := s.broadcast(entry.id(), members, sess.ID, TierMessage, event, p)
	metrics.SignalingForwarded.WithLabelValues("ok").Inc()
	s.scheduleLeave(failed)
}

func findByUserID(members []*Session, userID string) *Session {
	for _, m := range members {
		if m.UserID == userID {
			return m
		}
	}
	return nil
}
