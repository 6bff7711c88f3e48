package websocket

// EventPublisher is what services see of the hub: fire-and-forget
// event emission onto a channel.
type EventPublisher interface {
	Publish(channel string, event Event)
}

var _ EventPublisher = (*Hub)(nil)

// Publish implements EventPublisher on the hub.
func (h *Hub) Publish(channel string, event Event) {
	h.Broadcast(channel, event)
}

// DiscardPublisher swallows every event. Used where real-time updates
// are switched off, such as the seed binary and unit tests.
type DiscardPublisher struct{}

func (DiscardPublisher) Publish(string, Event) {}
