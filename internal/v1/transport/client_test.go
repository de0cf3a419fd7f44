package transport

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/abdibrokhim/yaps-relay/internal/v1/protocol"
	"github.com/abdibrokhim/yaps-relay/internal/v1/roomstore"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is a minimal wsConnection that replays a scripted sequence of
// inbound frames, then reports a close, while recording every outbound
// write so tests can assert on what the client sent back.
type fakeConn struct {
	mu      sync.Mutex
	inbound [][]byte
	idx     int
	written [][]byte
	closed  bool
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.inbound) {
		return 0, nil, errors.New("connection closed")
	}
	msg := f.inbound[f.idx]
	f.idx++
	return websocket.TextMessage, msg, nil
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if messageType == websocket.TextMessage {
		cp := make([]byte, len(data))
		copy(cp, data)
		f.written = append(f.written, cp)
	}
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) writtenEvents() []protocol.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Event, 0, len(f.written))
	for _, raw := range f.written {
		var env protocol.Envelope
		if err := json.Unmarshal(raw, &env); err == nil {
			out = append(out, env.Event)
		}
	}
	return out
}

func frame(t *testing.T, event protocol.Event, payload any) []byte {
	t.Helper()
	b, err := protocol.Encode(event, payload)
	require.NoError(t, err)
	return b
}

func TestClient_JoinGroupRoundTrip(t *testing.T) {
	conn := &fakeConn{inbound: [][]byte{
		frame(t, protocol.EventJoinChat, protocol.JoinChatPayload{
			Username: "Ann", RoomType: "group", GroupJoinMethod: "create",
		}),
	}}
	store := roomstore.NewStore(roomstore.DefaultConfig(), nil)
	client := NewClient(conn, store, 16, time.Hour, 5*time.Second, nil)

	done := make(chan struct{})
	go func() { client.Serve(); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("client.Serve did not return after connection closed")
	}

	events := conn.writtenEvents()
	require.Len(t, events, 2)
	assert.Equal(t, protocol.EventChatStarted, events[0])
	assert.Equal(t, protocol.EventGroupMembersUpdate, events[1])
	assert.True(t, conn.closed)
}

func TestClient_PostDropsEphemeralUnderBackpressure(t *testing.T) {
	conn := &fakeConn{}
	store := roomstore.NewStore(roomstore.DefaultConfig(), nil)
	client := NewClient(conn, store, 1, time.Hour, 5*time.Second, nil)

	ok := client.Post(roomstore.TierEphemeral, []byte(`{}`))
	assert.True(t, ok, "first post should fit in the queue")

	ok = client.Post(roomstore.TierEphemeral, []byte(`{}`))
	assert.True(t, ok, "a dropped ephemeral frame still reports success to the caller")

	ok = client.Post(roomstore.TierMessage, []byte(`{}`))
	assert.False(t, ok, "a dropped message-tier frame must report failure so LEAVE is scheduled")
}

func TestClient_RejectsOversizedFrame(t *testing.T) {
	oversized := make([]byte, protocol.MaxFrameBytes+1)
	conn := &fakeConn{inbound: [][]byte{oversized}}
	store := roomstore.NewStore(roomstore.DefaultConfig(), nil)
	client := NewClient(conn, store, 16, time.Hour, 5*time.Second, nil)

	done := make(chan struct{})
	go func() { client.Serve(); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("client.Serve did not return")
	}
	assert.Empty(t, conn.writtenEvents())
}
