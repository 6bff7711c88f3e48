package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
)

// OutcomeRepository implements domain.OutcomeRepository using
// PostgreSQL. It covers the booked-loan outcomes used for calibration
// back-testing and the monthly performance snapshots behind the
// vintage and roll-rate views.
type OutcomeRepository struct {
	pool *pgxpool.Pool
}

// NewOutcomeRepository creates a new OutcomeRepository
func NewOutcomeRepository(pool *pgxpool.Pool) *OutcomeRepository {
	return &OutcomeRepository{pool: pool}
}

const outcomeColumns = `
	id, application_id, score_id, disbursed_at, predicted_pd, defaulted,
	defaulted_at, created_at, updated_at`

// Record upserts the outcome row for an application. Default flags
// only ever move from false to true.
func (r *OutcomeRepository) Record(ctx context.Context, outcome *domain.LoanOutcome) (*domain.LoanOutcome, error) {
	if outcome.ID == uuid.Nil {
		outcome.ID = uuid.New()
	}
	now := time.Now().UTC()
	if outcome.CreatedAt.IsZero() {
		outcome.CreatedAt = now
	}
	outcome.UpdatedAt = now

	query := `
		INSERT INTO loan_outcomes (` + outcomeColumns + `
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (application_id) DO UPDATE SET
			defaulted    = loan_outcomes.defaulted OR EXCLUDED.defaulted,
			defaulted_at = COALESCE(loan_outcomes.defaulted_at, EXCLUDED.defaulted_at),
			updated_at   = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query,
		outcome.ID, outcome.ApplicationID, outcome.ScoreID,
		outcome.DisbursedAt, outcome.PredictedPD, outcome.Defaulted,
		outcome.DefaultedAt, outcome.CreatedAt, outcome.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("record loan outcome: %w", err)
	}
	return outcome, nil
}

// Count returns the number of tracked outcomes.
func (r *OutcomeRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM loan_outcomes`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count loan outcomes: %w", err)
	}
	return count, nil
}

// ListBetween returns outcomes disbursed in [from, to), capped at limit.
func (r *OutcomeRepository) ListBetween(ctx context.Context, from, to time.Time, limit int32) ([]*domain.LoanOutcome, error) {
	query := `
		SELECT ` + outcomeColumns + `
		FROM loan_outcomes
		WHERE disbursed_at >= $1 AND disbursed_at < $2
		ORDER BY disbursed_at ASC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query loan outcomes: %w", err)
	}
	defer rows.Close()

	var result []*domain.LoanOutcome
	for rows.Next() {
		var o domain.LoanOutcome
		err := rows.Scan(
			&o.ID, &o.ApplicationID, &o.ScoreID, &o.DisbursedAt,
			&o.PredictedPD, &o.Defaulted, &o.DefaultedAt, &o.CreatedAt,
			&o.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, &o)
	}
	return result, rows.Err()
}

// AddSnapshot appends one month-on-book observation. Re-reporting the
// same month for a loan maps to ErrAlreadyExists.
func (r *OutcomeRepository) AddSnapshot(ctx context.Context, snap *domain.PerformanceSnapshot) (*domain.PerformanceSnapshot, error) {
	if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}
	snap.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO performance_snapshots (
			id, application_id, month_on_book, bucket, dpd_days, as_of, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`
	_, err := r.pool.Exec(ctx, query,
		snap.ID, snap.ApplicationID, snap.MonthOnBook, string(snap.Bucket),
		snap.DPDDays, snap.AsOf, snap.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert performance snapshot: %w", err)
	}
	return snap, nil
}

// ListSnapshotsForApplications returns every snapshot of the given
// loans ordered by month on book, for roll-rate chaining.
func (r *OutcomeRepository) ListSnapshotsForApplications(ctx context.Context, applicationIDs []uuid.UUID) ([]*domain.PerformanceSnapshot, error) {
	if len(applicationIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, application_id, month_on_book, bucket, dpd_days, as_of, created_at
		FROM performance_snapshots
		WHERE application_id = ANY($1)
		ORDER BY application_id, month_on_book ASC
	`
	rows, err := r.pool.Query(ctx, query, applicationIDs)
	if err != nil {
		return nil, fmt.Errorf("query performance snapshots: %w", err)
	}
	defer rows.Close()

	var result []*domain.PerformanceSnapshot
	for rows.Next() {
		var (
			s      domain.PerformanceSnapshot
			bucket string
		)
		err := rows.Scan(&s.ID, &s.ApplicationID, &s.MonthOnBook, &bucket, &s.DPDDays, &s.AsOf, &s.CreatedAt)
		if err != nil {
			return nil, err
		}
		s.Bucket = domain.DelinquencyBucket(bucket)
		result = append(result, &s)
	}
	return result, rows.Err()
}
