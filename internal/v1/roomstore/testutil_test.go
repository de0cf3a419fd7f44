package roomstore

import (
	"encoding/json"
	"sync"

	"github.com/abdibrokhim/yaps-relay/internal/v1/protocol"
)

// fakeOutbound records every frame posted to it; refuse, when true, makes
// Post report an overflowed queue without recording the frame, so tests can
// exercise the isolated-failure path.
type fakeOutbound struct {
	mu     sync.Mutex
	frames []protocol.Envelope
	refuse bool
}

func (f *fakeOutbound) Post(tier Tier, frame []byte) bool {
	if f.refuse {
		return false
	}
	var env protocol.Envelope
	_ = json.Unmarshal(frame, &env)
	f.mu.Lock()
	f.frames = append(f.frames, env)
	f.mu.Unlock()
	return true
}

func (f *fakeOutbound) events() []protocol.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Event, len(f.frames))
	for i, env := range f.frames {
		out[i] = env.Event
	}
	return out
}

func (f *fakeOutbound) last() protocol.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames[len(f.frames)-1]
}

func newTestStore() *Store {
	cfg := DefaultConfig()
	return NewStore(cfg, nil)
}
