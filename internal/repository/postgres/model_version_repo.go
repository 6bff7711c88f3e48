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

// ModelVersionRepository implements domain.ModelVersionRepository using PostgreSQL
type ModelVersionRepository struct {
	pool *pgxpool.Pool
}

// NewModelVersionRepository creates a new ModelVersionRepository
func NewModelVersionRepository(pool *pgxpool.Pool) *ModelVersionRepository {
	return &ModelVersionRepository{pool: pool}
}

const modelVersionColumns = `
	id, name, scorecard_type, version, artifact_path, gini_train,
	gini_test, gini_oot, ks_statistic, auc_roc, fairness_metrics, status,
	is_champion, approved_by, approved_at, training_data_period,
	feature_count, notes, created_at, updated_at`

// Create registers one model version.
func (r *ModelVersionRepository) Create(ctx context.Context, version *domain.ModelVersion) (*domain.ModelVersion, error) {
	if version.ID == uuid.Nil {
		version.ID = uuid.New()
	}
	now := time.Now().UTC()
	version.CreatedAt = now
	version.UpdatedAt = now

	fairness, err := marshalNullable(len(version.FairnessMetrics) > 0, version.FairnessMetrics)
	if err != nil {
		return nil, fmt.Errorf("encode fairness metrics: %w", err)
	}

	query := `
		INSERT INTO model_versions (` + modelVersionColumns + `
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`
	_, err = r.pool.Exec(ctx, query,
		version.ID, version.Name, version.ScorecardType, version.Version,
		version.ArtifactPath, version.GiniTrain, version.GiniTest,
		version.GiniOOT, version.KSStatistic, version.AUCROC, fairness,
		string(version.Status), version.IsChampion, version.ApprovedBy,
		version.ApprovedAt, version.TrainingDataPeriod, version.FeatureCount,
		version.Notes, version.CreatedAt, version.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert model version: %w", err)
	}
	return version, nil
}

// GetByID retrieves one model version.
func (r *ModelVersionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ModelVersion, error) {
	query := `SELECT ` + modelVersionColumns + ` FROM model_versions WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	version, err := scanModelVersion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return version, nil
}

// GetChampion returns the current champion for a scorecard type.
func (r *ModelVersionRepository) GetChampion(ctx context.Context, scorecardType string) (*domain.ModelVersion, error) {
	query := `
		SELECT ` + modelVersionColumns + `
		FROM model_versions
		WHERE scorecard_type = $1 AND is_champion = TRUE
		LIMIT 1
	`
	row := r.pool.QueryRow(ctx, query, scorecardType)
	version, err := scanModelVersion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return version, nil
}

// List returns model versions, newest first, optionally filtered by
// scorecard type.
func (r *ModelVersionRepository) List(ctx context.Context, scorecardType string) ([]*domain.ModelVersion, error) {
	query := `
		SELECT ` + modelVersionColumns + `
		FROM model_versions
		WHERE ($1 = '' OR scorecard_type = $1)
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, scorecardType)
	if err != nil {
		return nil, fmt.Errorf("query model versions: %w", err)
	}
	defer rows.Close()

	var result []*domain.ModelVersion
	for rows.Next() {
		version, err := scanModelVersion(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, version)
	}
	return result, rows.Err()
}

// Promote makes the version champion. The previous champion of the
// same scorecard type retires in the same transaction, so there is
// never a moment with two champions.
func (r *ModelVersionRepository) Promote(ctx context.Context, id uuid.UUID, approvedBy string) (*domain.ModelVersion, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin promote: %w", err)
	}
	defer tx.Rollback(ctx)

	var scorecardType string
	err = tx.QueryRow(ctx,
		`SELECT scorecard_type FROM model_versions WHERE id = $1 FOR UPDATE`, id,
	).Scan(&scorecardType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("lock model version: %w", err)
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		UPDATE model_versions SET
			status      = $1,
			is_champion = FALSE,
			updated_at  = $2
		WHERE scorecard_type = $3 AND is_champion = TRUE AND id <> $4
	`, string(domain.ModelRetired), now, scorecardType, id)
	if err != nil {
		return nil, fmt.Errorf("retire previous champion: %w", err)
	}

	row := tx.QueryRow(ctx, `
		UPDATE model_versions SET
			status      = $1,
			is_champion = TRUE,
			approved_by = $2,
			approved_at = $3,
			updated_at  = $3
		WHERE id = $4
		RETURNING `+modelVersionColumns,
		string(domain.ModelChampion), approvedBy, now, id)
	version, err := scanModelVersion(row)
	if err != nil {
		return nil, fmt.Errorf("promote model version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit promote: %w", err)
	}
	return version, nil
}

// SetStatus updates the governance status of one version.
func (r *ModelVersionRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.ModelStatus) (*domain.ModelVersion, error) {
	query := `
		UPDATE model_versions SET
			status      = $2,
			is_champion = CASE WHEN $2 = 'champion' THEN is_champion ELSE FALSE END,
			updated_at  = $3
		WHERE id = $1
		RETURNING ` + modelVersionColumns
	row := r.pool.QueryRow(ctx, query, id, string(status), time.Now().UTC())
	version, err := scanModelVersion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("set model status: %w", err)
	}
	return version, nil
}

func scanModelVersion(s scannable) (*domain.ModelVersion, error) {
	var (
		v            domain.ModelVersion
		fairnessJSON []byte
		status       string
	)
	err := s.Scan(
		&v.ID, &v.Name, &v.ScorecardType, &v.Version, &v.ArtifactPath,
		&v.GiniTrain, &v.GiniTest, &v.GiniOOT, &v.KSStatistic, &v.AUCROC,
		&fairnessJSON, &status, &v.IsChampion, &v.ApprovedBy, &v.ApprovedAt,
		&v.TrainingDataPeriod, &v.FeatureCount, &v.Notes, &v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Status = domain.ModelStatus(status)
	if len(fairnessJSON) > 0 {
		if err := json.Unmarshal(fairnessJSON, &v.FairnessMetrics); err != nil {
			return nil, fmt.Errorf("decode fairness metrics: %w", err)
		}
	}
	return &v, nil
}
