package websocket

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSub records payloads handed to it and can be told to report a
// saturated queue.
type stubSub struct {
	id      string
	channel string

	mu       sync.Mutex
	payloads [][]byte
	slow     bool
	closed   bool
}

func newStubSub(id, channel string) *stubSub {
	return &stubSub{id: id, channel: channel}
}

func (s *stubSub) ID() string      { return s.id }
func (s *stubSub) Channel() string { return s.channel }

func (s *stubSub) Deliver(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slow {
		return ErrSlowConsumer
	}
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *stubSub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSub) delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

func (s *stubSub) wasClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func TestHub_AttachDetach(t *testing.T) {
	hub := NewHub()

	a1 := newStubSub("a1", "applicant-a")
	a2 := newStubSub("a2", "applicant-a")
	ops := newStubSub("ops1", OpsChannel)

	hub.Attach(a1)
	hub.Attach(a2)
	hub.Attach(ops)

	assert.Equal(t, 2, hub.Subscribers("applicant-a"))
	assert.Equal(t, 1, hub.Subscribers(OpsChannel))
	assert.Equal(t, 0, hub.Subscribers("nobody"))
	assert.Equal(t, 3, hub.Connections())

	hub.Detach(a1)
	assert.Equal(t, 1, hub.Subscribers("applicant-a"))

	hub.Detach(a2)
	hub.Detach(ops)
	assert.Equal(t, 0, hub.Connections())
}

func TestHub_DetachUnknownIsNoOp(t *testing.T) {
	hub := NewHub()
	require.NotPanics(t, func() {
		hub.Detach(newStubSub("ghost", "applicant-a"))
	})
}

func TestHub_BroadcastStaysOnChannel(t *testing.T) {
	hub := NewHub()

	a1 := newStubSub("a1", "applicant-a")
	a2 := newStubSub("a2", "applicant-a")
	b1 := newStubSub("b1", "applicant-b")
	hub.Attach(a1)
	hub.Attach(a2)
	hub.Attach(b1)

	hub.Broadcast("applicant-a", ScoreCreated(map[string]any{"score": 720}))

	assert.Equal(t, 1, a1.delivered())
	assert.Equal(t, 1, a2.delivered())
	assert.Equal(t, 0, b1.delivered(), "other applicant channels must not see the event")
}

func TestHub_BroadcastEvictsSlowConsumers(t *testing.T) {
	hub := NewHub()

	healthy := newStubSub("healthy", OpsChannel)
	stalled := newStubSub("stalled", OpsChannel)
	stalled.slow = true
	hub.Attach(healthy)
	hub.Attach(stalled)

	hub.Broadcast(OpsChannel, ApplicationUpdated(map[string]any{"status": "approved"}))

	assert.Equal(t, 1, healthy.delivered())
	assert.True(t, stalled.wasClosed(), "saturated subscriber must be closed")
	assert.Equal(t, 1, hub.Subscribers(OpsChannel), "saturated subscriber must be detached")

	// Subsequent broadcasts only reach the survivor.
	hub.Broadcast(OpsChannel, ScoreCreated(map[string]any{"score": 650}))
	assert.Equal(t, 2, healthy.delivered())
}

func TestHub_BroadcastEmptyChannel(t *testing.T) {
	hub := NewHub()
	require.NotPanics(t, func() {
		hub.Broadcast("nobody", ScoreCreated(map[string]any{"id": 1}))
	})
}

func TestHub_ConcurrentAttachBroadcastDetach(t *testing.T) {
	hub := NewHub()
	channels := []string{"a", "b", "c", "d", "e"}

	const n = 50
	subs := make([]*stubSub, n)
	for i := range subs {
		subs[i] = newStubSub(fmt.Sprintf("sub-%d", i), channels[i%len(channels)])
	}

	var wg sync.WaitGroup
	for i := range subs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hub.Attach(subs[i])
		}(i)
	}
	wg.Wait()
	assert.Equal(t, n, hub.Connections())

	for i := range subs {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			hub.Broadcast(channels[i%len(channels)], ScoreCreated(map[string]any{"id": i}))
		}(i)
		go func(i int) {
			defer wg.Done()
			hub.Detach(subs[i])
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, hub.Connections())
}
