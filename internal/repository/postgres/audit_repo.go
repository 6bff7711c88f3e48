package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
)

// AuditLogRepository implements domain.AuditLogRepository using
// PostgreSQL. The audit_logs table is append-only and retained for
// five years.
type AuditLogRepository struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepository creates a new AuditLogRepository
func NewAuditLogRepository(pool *pgxpool.Pool) *AuditLogRepository {
	return &AuditLogRepository{pool: pool}
}

const auditColumns = `
	id, entity_type, entity_id, action, actor_id, actor_type, changes,
	ip_address, user_agent, regulation_ref, created_at`

// Create appends one audit entry.
func (r *AuditLogRepository) Create(ctx context.Context, entry *domain.AuditLog) (*domain.AuditLog, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	entry.CreatedAt = time.Now().UTC()

	changes, err := marshalNullable(len(entry.Changes) > 0, entry.Changes)
	if err != nil {
		return nil, fmt.Errorf("encode audit changes: %w", err)
	}

	query := `
		INSERT INTO audit_logs (
			entity_type, entity_id, action, actor_id, actor_type, changes,
			ip_address, user_agent, regulation_ref, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id
	`
	err = r.pool.QueryRow(ctx, query,
		entry.EntityType, entry.EntityID, entry.Action, entry.ActorID,
		string(entry.ActorType), changes, entry.IPAddress, entry.UserAgent,
		entry.RegulationRef, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return nil, fmt.Errorf("insert audit log: %w", err)
	}
	return entry, nil
}

// ListByEntity returns the newest entries for one entity.
func (r *AuditLogRepository) ListByEntity(ctx context.Context, entityType, entityID string, limit int32) ([]*domain.AuditLog, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	return r.scanMany(ctx, query, entityType, entityID, limit)
}

// ListByActor returns the newest entries recorded for one actor.
func (r *AuditLogRepository) ListByActor(ctx context.Context, actorID string, limit int32) ([]*domain.AuditLog, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE actor_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.scanMany(ctx, query, actorID, limit)
}

func (r *AuditLogRepository) scanMany(ctx context.Context, query string, args ...any) ([]*domain.AuditLog, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var result []*domain.AuditLog
	for rows.Next() {
		var (
			entry       domain.AuditLog
			actorType   string
			changesJSON []byte
		)
		err := rows.Scan(
			&entry.ID, &entry.EntityType, &entry.EntityID, &entry.Action,
			&entry.ActorID, &actorType, &changesJSON, &entry.IPAddress,
			&entry.UserAgent, &entry.RegulationRef, &entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entry.ActorType = domain.ActorType(actorType)
		if len(changesJSON) > 0 {
			if err := json.Unmarshal(changesJSON, &entry.Changes); err != nil {
				return nil, fmt.Errorf("decode audit changes: %w", err)
			}
		}
		result = append(result, &entry)
	}
	return result, rows.Err()
}
