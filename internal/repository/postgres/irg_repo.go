package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
)

// IRGMasterRepository implements domain.IRGMasterRepository using PostgreSQL
type IRGMasterRepository struct {
	pool *pgxpool.Pool
}

// NewIRGMasterRepository creates a new IRGMasterRepository
func NewIRGMasterRepository(pool *pgxpool.Pool) *IRGMasterRepository {
	return &IRGMasterRepository{pool: pool}
}

const irgMasterColumns = `
	id, ksic_code, industry_name, grade, pd_adjustment, limit_cap,
	is_active, created_at, updated_at`

// Create inserts one industry risk row. KSIC codes are unique;
// duplicates map to ErrAlreadyExists so seeding can skip them.
func (r *IRGMasterRepository) Create(ctx context.Context, master *domain.IRGMaster) (*domain.IRGMaster, error) {
	if master.ID == uuid.Nil {
		master.ID = uuid.New()
	}
	now := time.Now().UTC()
	master.CreatedAt = now
	master.UpdatedAt = now

	limitCap, err := decimalPtrToPgNumeric(master.LimitCap)
	if err != nil {
		return nil, fmt.Errorf("encode limit cap: %w", err)
	}

	query := `
		INSERT INTO irg_masters (` + irgMasterColumns + `
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`
	_, err = r.pool.Exec(ctx, query,
		master.ID, master.KSICCode, master.IndustryName,
		string(master.Grade), master.PDAdjustment, limitCap,
		master.IsActive, master.CreatedAt, master.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert irg master: %w", err)
	}
	return master, nil
}

// GetByKSIC returns the active row for a KSIC industry code.
func (r *IRGMasterRepository) GetByKSIC(ctx context.Context, ksicCode string) (*domain.IRGMaster, error) {
	query := `
		SELECT ` + irgMasterColumns + `
		FROM irg_masters
		WHERE ksic_code = $1 AND is_active = TRUE
		LIMIT 1
	`
	row := r.pool.QueryRow(ctx, query, ksicCode)
	master, err := scanIRGMaster(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return master, nil
}

// List returns industry risk rows, optionally active rows only.
func (r *IRGMasterRepository) List(ctx context.Context, activeOnly bool) ([]*domain.IRGMaster, error) {
	query := `
		SELECT ` + irgMasterColumns + `
		FROM irg_masters
		WHERE (NOT $1 OR is_active)
		ORDER BY ksic_code
	`
	rows, err := r.pool.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("query irg masters: %w", err)
	}
	defer rows.Close()

	var result []*domain.IRGMaster
	for rows.Next() {
		master, err := scanIRGMaster(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, master)
	}
	return result, rows.Err()
}

func scanIRGMaster(s scannable) (*domain.IRGMaster, error) {
	var (
		m        domain.IRGMaster
		grade    string
		limitCap pgtype.Numeric
	)
	err := s.Scan(
		&m.ID, &m.KSICCode, &m.IndustryName, &grade, &m.PDAdjustment,
		&limitCap, &m.IsActive, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Grade = domain.IRGGrade(grade)
	m.LimitCap = pgNumericToDecimalPtr(limitCap)
	return &m, nil
}
