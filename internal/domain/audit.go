package domain

import (
	"context"
	"time"
)

// ActorType classifies who performed an audited action.
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorAPI    ActorType = "api"
	ActorSystem ActorType = "system"
	ActorBatch  ActorType = "batch"
)

// AuditLog is an append-only record of a regulated action. Entries are
// never updated or deleted.
type AuditLog struct {
	ID            int64          `json:"id"`
	EntityType    string         `json:"entityType"`
	EntityID      string         `json:"entityId"`
	Action        string         `json:"action"`
	ActorID       string         `json:"actorId"`
	ActorType     ActorType      `json:"actorType"`
	Changes       map[string]any `json:"changes,omitempty"`
	IPAddress     *string        `json:"ipAddress,omitempty"`
	UserAgent     *string        `json:"userAgent,omitempty"`
	RegulationRef *string        `json:"regulationRef,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

func (a *AuditLog) Validate() error {
	if a.EntityType == "" {
		return NewValidationError("entityType", "entity type is required")
	}
	if a.Action == "" {
		return NewValidationError("action", "action is required")
	}
	if a.ActorID == "" {
		return NewValidationError("actorId", "actor is required")
	}
	return nil
}

type AuditLogRepository interface {
	Create(ctx context.Context, entry *AuditLog) (*AuditLog, error)
	ListByEntity(ctx context.Context, entityType, entityID string, limit int32) ([]*AuditLog, error)
	ListByActor(ctx context.Context, actorID string, limit int32) ([]*AuditLog, error)
}
