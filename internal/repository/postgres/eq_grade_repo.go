package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
)

// EQGradeMasterRepository implements domain.EQGradeMasterRepository using PostgreSQL
type EQGradeMasterRepository struct {
	pool *pgxpool.Pool
}

// NewEQGradeMasterRepository creates a new EQGradeMasterRepository
func NewEQGradeMasterRepository(pool *pgxpool.Pool) *EQGradeMasterRepository {
	return &EQGradeMasterRepository{pool: pool}
}

const eqMasterColumns = `
	id, employer_name, employer_registration_hash, grade,
	limit_multiplier, rate_adjustment, mou_code, mou_start_date,
	mou_end_date, mou_special_rate, grade_source, grade_date, is_active,
	created_at, updated_at`

// Create inserts one employer grade row. Employer names are unique;
// duplicates map to ErrAlreadyExists so seeding can skip them.
func (r *EQGradeMasterRepository) Create(ctx context.Context, master *domain.EQGradeMaster) (*domain.EQGradeMaster, error) {
	if master.ID == uuid.Nil {
		master.ID = uuid.New()
	}
	now := time.Now().UTC()
	master.CreatedAt = now
	master.UpdatedAt = now

	query := `
		INSERT INTO eq_grade_masters (` + eqMasterColumns + `
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`
	_, err := r.pool.Exec(ctx, query,
		master.ID, master.EmployerName, master.EmployerRegistrationHash,
		string(master.Grade), master.LimitMultiplier, master.RateAdjustment,
		master.MOUCode, master.MOUStartDate, master.MOUEndDate,
		master.MOUSpecialRate, master.GradeSource, master.GradeDate,
		master.IsActive, master.CreatedAt, master.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert eq grade master: %w", err)
	}
	return master, nil
}

// List returns employer grades, optionally active rows only.
func (r *EQGradeMasterRepository) List(ctx context.Context, activeOnly bool) ([]*domain.EQGradeMaster, error) {
	query := `
		SELECT ` + eqMasterColumns + `
		FROM eq_grade_masters
		WHERE (NOT $1 OR is_active)
		ORDER BY employer_name
	`
	rows, err := r.pool.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("query eq grade masters: %w", err)
	}
	defer rows.Close()

	var result []*domain.EQGradeMaster
	for rows.Next() {
		master, err := scanEQMaster(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, master)
	}
	return result, rows.Err()
}

// GetByMOUCode returns the active employer row carrying the MOU code.
func (r *EQGradeMasterRepository) GetByMOUCode(ctx context.Context, mouCode string) (*domain.EQGradeMaster, error) {
	query := `
		SELECT ` + eqMasterColumns + `
		FROM eq_grade_masters
		WHERE mou_code = $1 AND is_active = TRUE
		LIMIT 1
	`
	return r.scanOne(ctx, query, mouCode)
}

// GetByEmployerHash returns the active row for a hashed employer
// registration number.
func (r *EQGradeMasterRepository) GetByEmployerHash(ctx context.Context, hash string) (*domain.EQGradeMaster, error) {
	query := `
		SELECT ` + eqMasterColumns + `
		FROM eq_grade_masters
		WHERE employer_registration_hash = $1 AND is_active = TRUE
		LIMIT 1
	`
	return r.scanOne(ctx, query, hash)
}

func (r *EQGradeMasterRepository) scanOne(ctx context.Context, query string, args ...any) (*domain.EQGradeMaster, error) {
	row := r.pool.QueryRow(ctx, query, args...)
	master, err := scanEQMaster(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return master, nil
}

func scanEQMaster(s scannable) (*domain.EQGradeMaster, error) {
	var (
		m     domain.EQGradeMaster
		grade string
	)
	err := s.Scan(
		&m.ID, &m.EmployerName, &m.EmployerRegistrationHash, &grade,
		&m.LimitMultiplier, &m.RateAdjustment, &m.MOUCode, &m.MOUStartDate,
		&m.MOUEndDate, &m.MOUSpecialRate, &m.GradeSource, &m.GradeDate,
		&m.IsActive, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Grade = domain.EQGrade(grade)
	return &m, nil
}
