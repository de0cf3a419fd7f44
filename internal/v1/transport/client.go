// Package transport owns the WebSocket connection actor: the read/write
// pumps, per-connection backpressure, and the translation between wire
// frames and room store commands. Room state itself lives in roomstore;
// this package never touches it directly except through Store's exported
// methods.
package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/abdibrokhim/yaps-relay/internal/v1/metrics"
	"github.com/abdibrokhim/yaps-relay/internal/v1/protocol"
	"github.com/abdibrokhim/yaps-relay/internal/v1/roomstore"
	"github.com/gorilla/websocket"
)

// wsConnection is the subset of *websocket.Conn the client actor needs,
// kept narrow so tests can swap in a fake.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = protocol.MaxFrameBytes
)

// outboundFrame pairs a frame with the tier it was posted at. Drops under
// backpressure are counted by tier in Post; writePump writes queued frames
// in order regardless of tier.
type outboundFrame struct {
	tier  roomstore.Tier
	frame []byte
}

// Client is one connected session's WebSocket actor. It implements
// roomstore.Outbound so the store can post frames to it without knowing
// anything about websockets.
type Client struct {
	conn   wsConnection
	store  *roomstore.Store
	sess   *roomstore.Session
	send   chan outboundFrame
	closed chan struct{}
	once   sync.Once

	keepalive    time.Duration
	typingExpiry time.Duration
	userLimiter  UserRateLimiter
}

// UserRateLimiter enforces the per-user WebSocket connection rate limit
// once a connection's claimed user_id is known (i.e. after JOIN).
type UserRateLimiter interface {
	CheckWebSocketUser(ctx context.Context, userID string) error
}

// NewClient wraps conn and registers a new session with store. The caller
// is responsible for starting readPump/writePump via Serve. limiter may be
// nil to skip the per-user check (e.g. in tests).
func NewClient(conn wsConnection, store *roomstore.Store, queueSize int, keepalive, typingExpiry time.Duration, limiter UserRateLimiter) *Client {
	c := &Client{
		conn:         conn,
		store:        store,
		send:         make(chan outboundFrame, queueSize),
		closed:       make(chan struct{}),
		keepalive:    keepalive,
		typingExpiry: typingExpiry,
		userLimiter:  limiter,
	}
	c.sess = store.NewSession("", "", c)
	return c
}

// Session returns the room-store session backing this connection.
func (c *Client) Session() *roomstore.Session { return c.sess }

// Post implements roomstore.Outbound. It never blocks: a full queue at
// TierEphemeral or TierPresence silently drops the new frame, while
// TierMessage reports failure so the store schedules a LEAVE.
func (c *Client) Post(tier roomstore.Tier, frame []byte) bool {
	select {
	case c.send <- outboundFrame{tier: tier, frame: frame}:
		return true
	default:
		if tier == roomstore.TierMessage {
			return false
		}
		metrics.DroppedFrames.WithLabelValues(tierName(tier)).Inc()
		return true
	}
}

func tierName(t roomstore.Tier) string {
	switch t {
	case roomstore.TierMessage:
		return "message"
	case roomstore.TierPresence:
		return "presence"
	default:
		return "ephemeral"
	}
}

// Serve runs the client's read and write pumps, blocking until both have
// exited. Call it from its own goroutine.
func (c *Client) Serve() {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump()
	}()
	c.readPump()
	wg.Wait()
}

func (c *Client) readPump() {
	defer c.teardown()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if len(data) > maxMessageSize {
			metrics.ProtocolErrors.WithLabelValues("frame_too_large").Inc()
			continue
		}

		env, err := protocol.Decode(data)
		if err != nil {
			slog.Debug("transport: rejected frame", "session", c.sess.ID, "error", err)
			continue
		}

		metrics.WebsocketEvents.WithLabelValues(string(env.Event)).Inc()
		c.dispatch(context.Background(), env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.keepalive)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case out, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, out.frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

// teardown runs once per client regardless of which pump noticed the
// connection died, so LEAVE is applied exactly once.
func (c *Client) teardown() {
	c.once.Do(func() {
		close(c.closed)
		c.store.Leave(c.sess)
		c.conn.Close()
		metrics.ActiveWebSocketConnections.Dec()
	})
}

// dispatch translates one decoded envelope into the matching room store
// call, mirroring the client/server event pairing in the wire protocol.
func (c *Client) dispatch(ctx context.Context, env protocol.Envelope) {
	switch env.Event {
	case protocol.EventJoinChat:
		if p, ok := protocol.DecodePayload[protocol.JoinChatPayload](env.Data); ok {
			if c.userLimiter != nil && p.UserID != "" {
				if err := c.userLimiter.CheckWebSocketUser(ctx, p.UserID); err != nil {
					metrics.ProtocolErrors.WithLabelValues("rate_limited").Inc()
					return
				}
			}
			c.store.Join(c.sess, p)
		}
	case protocol.EventSendMessage:
		if p, ok := protocol.DecodePayload[protocol.SendMessagePayload](env.Data); ok {
			c.store.Send(c.sess, p)
		}
	case protocol.EventTypingStart:
		c.store.TypingStart(c.sess, c.typingExpiry)
	case protocol.EventTypingStop:
		c.store.TypingStop(c.sess)
	case protocol.EventDeleteMessage:
		if p, ok := protocol.DecodePayload[protocol.DeleteMessagePayload](env.Data); ok {
			c.store.DeleteMessage(c.sess, p)
		}
	case protocol.EventFileSendingStart:
		if p, ok := protocol.DecodePayload[protocol.FileSendingPayload](env.Data); ok {
			c.store.FileSendingStart(c.sess, p)
		}
	case protocol.EventFileSendingEnd:
		if p, ok := protocol.DecodePayload[protocol.FileSendingPayload](env.Data); ok {
			c.store.FileSendingEnd(c.sess, p)
		}
	case protocol.EventWebrtcOffer, protocol.EventWebrtcAnswer, protocol.EventWebrtcCandidate, protocol.EventWebrtcEndCall:
		if p, ok := protocol.DecodePayload[protocol.SignalPayload](env.Data); ok {
			c.store.Signal(c.sess, env.Event, p)
		}
	case protocol.EventDisconnectChat:
		c.store.Leave(c.sess)
	default:
		metrics.ProtocolErrors.WithLabelValues("unhandled_event").Inc()
	}
}
