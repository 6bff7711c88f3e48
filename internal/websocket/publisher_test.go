package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishReachesSubscribers(t *testing.T) {
	hub := NewHub()
	sub := newStubSub("s1", "applicant-a")
	hub.Attach(sub)

	var publisher EventPublisher = hub
	publisher.Publish("applicant-a", ScoreCreated(map[string]any{"score": 720}))

	require.Equal(t, 1, sub.delivered())

	var decoded Event
	require.NoError(t, json.Unmarshal(sub.payloads[0], &decoded))
	assert.Equal(t, "score.created", decoded.Type)
	assert.Equal(t, EntityTypeScore, decoded.Entity)
	assert.False(t, decoded.Timestamp.IsZero())
}

func TestDiscardPublisher(t *testing.T) {
	var publisher EventPublisher = DiscardPublisher{}
	assert.NotPanics(t, func() {
		publisher.Publish(OpsChannel, EWSAlertRaised(map[string]any{"severity": "RED"}))
	})
}
