package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
)

// EWSEventRepository implements domain.EWSEventRepository using PostgreSQL
type EWSEventRepository struct {
	pool *pgxpool.Pool
}

// NewEWSEventRepository creates a new EWSEventRepository
func NewEWSEventRepository(pool *pgxpool.Pool) *EWSEventRepository {
	return &EWSEventRepository{pool: pool}
}

const ewsEventColumns = `
	id, event_id, applicant_id, application_id, severity, signals,
	actions_taken, processed_at, created_at`

// Create persists one processed alert. The source event_id is unique
// so redelivered messages surface as ErrAlreadyExists.
func (r *EWSEventRepository) Create(ctx context.Context, event *domain.EWSEvent) (*domain.EWSEvent, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now().UTC()

	signals, err := json.Marshal(event.Signals)
	if err != nil {
		return nil, fmt.Errorf("encode signals: %w", err)
	}
	actions := make([]string, len(event.ActionsTaken))
	for i, a := range event.ActionsTaken {
		actions[i] = string(a)
	}

	query := `
		INSERT INTO ews_events (` + ewsEventColumns + `
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`
	_, err = r.pool.Exec(ctx, query,
		event.ID, event.EventID, event.ApplicantID, event.ApplicationID,
		string(event.Severity), signals, actions, event.ProcessedAt,
		event.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert ews event: %w", err)
	}
	return event, nil
}

// GetByEventID returns the processed record for a source event id.
// Backs the dedupe check for at-least-once delivery.
func (r *EWSEventRepository) GetByEventID(ctx context.Context, eventID string) (*domain.EWSEvent, error) {
	query := `SELECT ` + ewsEventColumns + ` FROM ews_events WHERE event_id = $1`
	row := r.pool.QueryRow(ctx, query, eventID)
	event, err := scanEWSEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return event, nil
}

// ListByApplicant returns the newest events for one applicant.
func (r *EWSEventRepository) ListByApplicant(ctx context.Context, applicantID uuid.UUID, limit int32) ([]*domain.EWSEvent, error) {
	query := `
		SELECT ` + ewsEventColumns + `
		FROM ews_events
		WHERE applicant_id = $1
		ORDER BY processed_at DESC
		LIMIT $2
	`
	return r.scanMany(ctx, query, applicantID, limit)
}

// ListRecent returns events processed since the given instant, newest
// first.
func (r *EWSEventRepository) ListRecent(ctx context.Context, since time.Time, limit int32) ([]*domain.EWSEvent, error) {
	query := `
		SELECT ` + ewsEventColumns + `
		FROM ews_events
		WHERE processed_at >= $1
		ORDER BY processed_at DESC
		LIMIT $2
	`
	return r.scanMany(ctx, query, since, limit)
}

func (r *EWSEventRepository) scanMany(ctx context.Context, query string, args ...any) ([]*domain.EWSEvent, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ews events: %w", err)
	}
	defer rows.Close()

	var result []*domain.EWSEvent
	for rows.Next() {
		event, err := scanEWSEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	return result, rows.Err()
}

func scanEWSEvent(s scannable) (*domain.EWSEvent, error) {
	var (
		e           domain.EWSEvent
		severity    string
		signalsJSON []byte
		actions     []string
	)
	err := s.Scan(
		&e.ID, &e.EventID, &e.ApplicantID, &e.ApplicationID, &severity,
		&signalsJSON, &actions, &e.ProcessedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Severity = domain.EWSSeverity(severity)
	if len(signalsJSON) > 0 {
		if err := json.Unmarshal(signalsJSON, &e.Signals); err != nil {
			return nil, fmt.Errorf("decode signals: %w", err)
		}
	}
	e.ActionsTaken = make([]domain.EWSAction, len(actions))
	for i, a := range actions {
		e.ActionsTaken[i] = domain.EWSAction(a)
	}
	return &e, nil
}
