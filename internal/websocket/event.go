package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of event (created, updated, decided)
type EventType string

const (
	EventTypeCreated EventType = "created"
	EventTypeUpdated EventType = "updated"
	EventTypeDecided EventType = "decided"
	EventTypeRaised  EventType = "raised"
)

// EntityType represents the type of entity the event is about
type EntityType string

const (
	EntityTypeApplication EntityType = "application"
	EntityTypeScore       EntityType = "score"
	EntityTypeEWSAlert    EntityType = "ews_alert"
	EntityTypeModel       EntityType = "model_version"
)

// Additional event types for specific events
const (
	EventTypePromoted  EventType = "promoted"
	EventTypeSuspended EventType = "suspended"
)

// OpsChannel is the broadcast channel the operations dashboard
// subscribes to. Applicant channels are applicant UUID strings.
const OpsChannel = "ops"

// Event represents a WebSocket event message sent to clients
// Format: { type, entity, payload, timestamp }
type Event struct {
	Type      string      `json:"type"`      // Combined type e.g. "score.created"
	Entity    EntityType  `json:"entity"`    // Entity type e.g. "score"
	Payload   interface{} `json:"payload"`   // Full entity data
	Timestamp time.Time   `json:"timestamp"` // Event timestamp
}

// NewEvent creates a new event with the given type, entity, and payload
func NewEvent(eventType EventType, entityType EntityType, payload interface{}) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ScoreCreated creates a score.created event
func ScoreCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeScore, payload)
}

// ApplicationUpdated creates an application.updated event
func ApplicationUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeApplication, payload)
}

// ApplicationDecided creates an application.decided event
func ApplicationDecided(payload interface{}) Event {
	return NewEvent(EventTypeDecided, EntityTypeApplication, payload)
}

// ApplicationSuspended creates an application.suspended event
func ApplicationSuspended(payload interface{}) Event {
	return NewEvent(EventTypeSuspended, EntityTypeApplication, payload)
}

// EWSAlertRaised creates an ews_alert.raised event
func EWSAlertRaised(payload interface{}) Event {
	return NewEvent(EventTypeRaised, EntityTypeEWSAlert, payload)
}

// ModelPromoted creates a model_version.promoted event
func ModelPromoted(payload interface{}) Event {
	return NewEvent(EventTypePromoted, EntityTypeModel, payload)
}
