package websocket

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrConnClosed is returned when delivering to a connection that has
// already shut down.
var ErrConnClosed = errors.New("connection closed")

// ErrSlowConsumer is returned when a subscriber's outbound queue is
// saturated. The hub drops such subscribers rather than letting one
// stalled dashboard back-pressure the decision pipeline.
var ErrSlowConsumer = errors.New("subscriber queue full")

// Subscriber is the hub-facing surface of one live connection.
type Subscriber interface {
	ID() string
	Channel() string
	Deliver(payload []byte) error
	Close() error
}

// Hub fans decision, EWS and model events out to subscribed
// connections, grouped by channel: one channel per applicant plus the
// shared ops channel. Safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[string]Subscriber
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[string]Subscriber)}
}

// Attach subscribes a connection to its channel.
func (h *Hub) Attach(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.topics[sub.Channel()]
	if !ok {
		members = make(map[string]Subscriber)
		h.topics[sub.Channel()] = members
	}
	members[sub.ID()] = sub

	log.Debug().Str("channel", sub.Channel()).Str("subscriber_id", sub.ID()).Msg("Subscriber attached")
}

// Detach removes a connection. Detaching an unknown subscriber is a
// no-op, so the read loop and a broadcast eviction can race safely.
func (h *Hub) Detach(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(sub)
}

func (h *Hub) remove(sub Subscriber) {
	members, ok := h.topics[sub.Channel()]
	if !ok {
		return
	}
	if _, ok := members[sub.ID()]; !ok {
		return
	}
	delete(members, sub.ID())
	if len(members) == 0 {
		delete(h.topics, sub.Channel())
	}
	log.Debug().Str("channel", sub.Channel()).Str("subscriber_id", sub.ID()).Msg("Subscriber detached")
}

// Broadcast serializes the event once and delivers it to every
// subscriber of the channel. Subscribers that cannot keep up are
// evicted and closed.
func (h *Hub) Broadcast(channel string, event Event) {
	payload, err := event.ToJSON()
	if err != nil {
		log.Error().Err(err).Str("channel", channel).Str("event_type", event.Type).Msg("Failed to serialize event")
		return
	}

	h.mu.RLock()
	members := h.topics[channel]
	snapshot := make([]Subscriber, 0, len(members))
	for _, sub := range members {
		snapshot = append(snapshot, sub)
	}
	h.mu.RUnlock()

	var evicted []Subscriber
	for _, sub := range snapshot {
		if err := sub.Deliver(payload); err != nil {
			log.Warn().Err(err).Str("channel", channel).Str("subscriber_id", sub.ID()).Msg("Dropping subscriber")
			evicted = append(evicted, sub)
		}
	}

	if len(evicted) > 0 {
		h.mu.Lock()
		for _, sub := range evicted {
			h.remove(sub)
		}
		h.mu.Unlock()
		for _, sub := range evicted {
			_ = sub.Close()
		}
	}
}

// Subscribers reports how many connections follow a channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[channel])
}

// Connections reports the total number of attached connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, members := range h.topics {
		n += len(members)
	}
	return n
}
