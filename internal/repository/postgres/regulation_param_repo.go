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

// RegulationParamRepository implements domain.RegulationParamRepository using PostgreSQL
type RegulationParamRepository struct {
	pool *pgxpool.Pool
}

// NewRegulationParamRepository creates a new RegulationParamRepository
func NewRegulationParamRepository(pool *pgxpool.Pool) *RegulationParamRepository {
	return &RegulationParamRepository{pool: pool}
}

const paramColumns = `
	id, param_key, category, phase_label, value, condition,
	effective_from, effective_to, is_active, legal_basis, description,
	change_reason, created_by, approved_by, created_at, updated_at`

// Create appends a parameter row. The (param_key, effective_from)
// pair is unique; violations map to ErrDuplicateParam so seeding can
// skip rows that already exist.
func (r *RegulationParamRepository) Create(ctx context.Context, param *domain.RegulationParam) (*domain.RegulationParam, error) {
	if param.ID == uuid.Nil {
		param.ID = uuid.New()
	}
	now := time.Now().UTC()
	param.CreatedAt = now
	param.UpdatedAt = now

	value, err := json.Marshal(param.Value)
	if err != nil {
		return nil, fmt.Errorf("encode param value: %w", err)
	}
	condition, err := marshalNullable(len(param.Condition) > 0, param.Condition)
	if err != nil {
		return nil, fmt.Errorf("encode param condition: %w", err)
	}

	query := `
		INSERT INTO regulation_params (` + paramColumns + `
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`
	_, err = r.pool.Exec(ctx, query,
		param.ID, param.ParamKey, param.Category, param.PhaseLabel, value,
		condition, param.EffectiveFrom, param.EffectiveTo, param.IsActive,
		param.LegalBasis, param.Description, param.ChangeReason,
		param.CreatedBy, param.ApprovedBy, param.CreatedAt, param.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicateParam
		}
		return nil, fmt.Errorf("insert regulation param: %w", err)
	}
	return param, nil
}

// GetByID retrieves one parameter row.
func (r *RegulationParamRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.RegulationParam, error) {
	query := `SELECT ` + paramColumns + ` FROM regulation_params WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	param, err := scanParam(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrParamNotFound
		}
		return nil, err
	}
	return param, nil
}

// ListByKey returns every version of a key, newest window first.
func (r *RegulationParamRepository) ListByKey(ctx context.Context, paramKey string) ([]*domain.RegulationParam, error) {
	query := `
		SELECT ` + paramColumns + `
		FROM regulation_params
		WHERE param_key = $1
		ORDER BY effective_from DESC
	`
	return r.scanMany(ctx, query, paramKey)
}

// ListActiveAt returns the active rows of a key whose effective window
// covers the given instant, newest window first. Window bounds are
// inclusive on both ends.
func (r *RegulationParamRepository) ListActiveAt(ctx context.Context, paramKey string, at time.Time) ([]*domain.RegulationParam, error) {
	query := `
		SELECT ` + paramColumns + `
		FROM regulation_params
		WHERE param_key = $1
		  AND is_active = TRUE
		  AND effective_from <= $2
		  AND (effective_to IS NULL OR effective_to >= $2)
		ORDER BY effective_from DESC
	`
	return r.scanMany(ctx, query, paramKey, at)
}

// List returns rows filtered by category and active flag. An empty
// category matches everything.
func (r *RegulationParamRepository) List(ctx context.Context, category string, activeOnly bool) ([]*domain.RegulationParam, error) {
	query := `
		SELECT ` + paramColumns + `
		FROM regulation_params
		WHERE ($1 = '' OR category = $1)
		  AND (NOT $2 OR is_active)
		ORDER BY param_key, effective_from DESC
	`
	return r.scanMany(ctx, query, category, activeOnly)
}

// ListKeys returns every distinct parameter key.
func (r *RegulationParamRepository) ListKeys(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT param_key FROM regulation_params ORDER BY param_key`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query param keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Deactivate retires a row: drops the active flag, closes the
// effective window at the given instant and notes who did it in the
// change reason. Rows are never deleted.
func (r *RegulationParamRepository) Deactivate(ctx context.Context, id uuid.UUID, at time.Time, actor string) (*domain.RegulationParam, error) {
	query := `
		UPDATE regulation_params SET
			is_active     = FALSE,
			effective_to  = $2,
			change_reason = $3,
			updated_at    = $4
		WHERE id = $1
		RETURNING ` + paramColumns
	row := r.pool.QueryRow(ctx, query, id, at, "[비활성화] 요청자: "+actor, time.Now().UTC())
	param, err := scanParam(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrParamNotFound
		}
		return nil, fmt.Errorf("deactivate regulation param: %w", err)
	}
	return param, nil
}

func (r *RegulationParamRepository) scanMany(ctx context.Context, query string, args ...any) ([]*domain.RegulationParam, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query regulation params: %w", err)
	}
	defer rows.Close()

	var result []*domain.RegulationParam
	for rows.Next() {
		param, err := scanParam(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, param)
	}
	return result, rows.Err()
}

func scanParam(s scannable) (*domain.RegulationParam, error) {
	var (
		p             domain.RegulationParam
		valueJSON     []byte
		conditionJSON []byte
	)
	err := s.Scan(
		&p.ID, &p.ParamKey, &p.Category, &p.PhaseLabel, &valueJSON,
		&conditionJSON, &p.EffectiveFrom, &p.EffectiveTo, &p.IsActive,
		&p.LegalBasis, &p.Description, &p.ChangeReason, &p.CreatedBy,
		&p.ApprovedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(valueJSON) > 0 {
		if err := json.Unmarshal(valueJSON, &p.Value); err != nil {
			return nil, fmt.Errorf("decode param value: %w", err)
		}
	}
	if len(conditionJSON) > 0 {
		if err := json.Unmarshal(conditionJSON, &p.Condition); err != nil {
			return nil, fmt.Errorf("decode param condition: %w", err)
		}
	}
	return &p, nil
}
