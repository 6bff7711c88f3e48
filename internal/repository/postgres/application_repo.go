package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
)

// ApplicationRepository implements domain.ApplicationRepository using PostgreSQL
type ApplicationRepository struct {
	pool *pgxpool.Pool
}

// NewApplicationRepository creates a new ApplicationRepository
func NewApplicationRepository(pool *pgxpool.Pool) *ApplicationRepository {
	return &ApplicationRepository{pool: pool}
}

const applicationColumns = `
	id, application_no, applicant_id, product_type, status, current_step,
	digital_channel, consent, purpose, requested_amount,
	requested_term_months, rate_type, stress_region,
	existing_monthly_debt_payment, existing_loans_count, collateral,
	revolving_line, revolving_balance, esign_token, final_confirmed_at,
	submitted_at, scored_at, regulation_snapshot, created_at, updated_at`

// Create inserts a new application row.
func (r *ApplicationRepository) Create(ctx context.Context, app *domain.LoanApplication) (*domain.LoanApplication, error) {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	now := time.Now().UTC()
	app.CreatedAt = now
	app.UpdatedAt = now

	enc, err := encodeApplication(app)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO loan_applications (` + applicationColumns + `
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
	`
	_, err = r.pool.Exec(ctx, query,
		app.ID, app.ApplicationNo, uuidOrNull(app.ApplicantID),
		string(app.ProductType), string(app.Status), string(app.CurrentStep),
		app.DigitalChannel, enc.consent, app.Purpose, enc.requestedAmount,
		app.RequestedTermMonths, string(app.RateType), string(app.StressRegion),
		enc.existingDebt, app.ExistingLoansCount, enc.collateral,
		enc.revolvingLine, enc.revolvingBalance, app.ESignToken,
		app.FinalConfirmedAt, app.SubmittedAt, app.ScoredAt, enc.snapshot,
		app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert application: %w", err)
	}
	return app, nil
}

// GetByID retrieves an application by id.
func (r *ApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM loan_applications WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

// GetByApplicationNo retrieves an application by its public number.
func (r *ApplicationRepository) GetByApplicationNo(ctx context.Context, applicationNo string) (*domain.LoanApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM loan_applications WHERE application_no = $1`
	return r.scanOne(ctx, query, applicationNo)
}

// Update rewrites the mutable application fields.
func (r *ApplicationRepository) Update(ctx context.Context, app *domain.LoanApplication) (*domain.LoanApplication, error) {
	app.UpdatedAt = time.Now().UTC()

	enc, err := encodeApplication(app)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE loan_applications SET
			applicant_id                  = $2,
			product_type                  = $3,
			status                        = $4,
			current_step                  = $5,
			consent                       = $6,
			purpose                       = $7,
			requested_amount              = $8,
			requested_term_months         = $9,
			rate_type                     = $10,
			stress_region                 = $11,
			existing_monthly_debt_payment = $12,
			existing_loans_count          = $13,
			collateral                    = $14,
			revolving_line                = $15,
			revolving_balance             = $16,
			esign_token                   = $17,
			final_confirmed_at            = $18,
			submitted_at                  = $19,
			scored_at                     = $20,
			regulation_snapshot           = $21,
			updated_at                    = $22
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		app.ID, uuidOrNull(app.ApplicantID), string(app.ProductType),
		string(app.Status), string(app.CurrentStep), enc.consent, app.Purpose,
		enc.requestedAmount, app.RequestedTermMonths, string(app.RateType),
		string(app.StressRegion), enc.existingDebt, app.ExistingLoansCount,
		enc.collateral, enc.revolvingLine, enc.revolvingBalance,
		app.ESignToken, app.FinalConfirmedAt, app.SubmittedAt, app.ScoredAt,
		enc.snapshot, app.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrApplicationNotFound
	}
	return app, nil
}

// ListByApplicantID returns the applicant's applications, newest first.
func (r *ApplicationRepository) ListByApplicantID(ctx context.Context, applicantID uuid.UUID) ([]*domain.LoanApplication, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM loan_applications
		WHERE applicant_id = $1
		ORDER BY created_at DESC
	`
	return r.scanMany(ctx, query, applicantID)
}

// ListByStatus returns up to limit applications in the given status,
// oldest first so workers drain queues in arrival order.
func (r *ApplicationRepository) ListByStatus(ctx context.Context, status domain.ApplicationStatus, limit int32) ([]*domain.LoanApplication, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM loan_applications
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	return r.scanMany(ctx, query, string(status), limit)
}

func (r *ApplicationRepository) scanOne(ctx context.Context, query string, args ...any) (*domain.LoanApplication, error) {
	row := r.pool.QueryRow(ctx, query, args...)
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrApplicationNotFound
		}
		return nil, err
	}
	return app, nil
}

func (r *ApplicationRepository) scanMany(ctx context.Context, query string, args ...any) ([]*domain.LoanApplication, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	var result []*domain.LoanApplication
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, app)
	}
	return result, rows.Err()
}

type encodedApplication struct {
	consent          []byte
	requestedAmount  pgtype.Numeric
	existingDebt     pgtype.Numeric
	collateral       []byte
	revolvingLine    pgtype.Numeric
	revolvingBalance pgtype.Numeric
	snapshot         []byte
}

func encodeApplication(app *domain.LoanApplication) (*encodedApplication, error) {
	var enc encodedApplication
	var err error

	if enc.consent, err = marshalNullable(app.Consent != nil, app.Consent); err != nil {
		return nil, fmt.Errorf("encode consent: %w", err)
	}
	if enc.requestedAmount, err = decimalToPgNumeric(app.RequestedAmount); err != nil {
		return nil, fmt.Errorf("encode requested amount: %w", err)
	}
	if enc.existingDebt, err = decimalToPgNumeric(app.ExistingMonthlyDebtPayment); err != nil {
		return nil, fmt.Errorf("encode existing debt payment: %w", err)
	}
	if enc.collateral, err = marshalNullable(app.Collateral != nil, app.Collateral); err != nil {
		return nil, fmt.Errorf("encode collateral: %w", err)
	}
	if enc.revolvingLine, err = decimalPtrToPgNumeric(app.RevolvingLine); err != nil {
		return nil, fmt.Errorf("encode revolving line: %w", err)
	}
	if enc.revolvingBalance, err = decimalPtrToPgNumeric(app.RevolvingBalance); err != nil {
		return nil, fmt.Errorf("encode revolving balance: %w", err)
	}
	if enc.snapshot, err = marshalNullable(app.Snapshot != nil, app.Snapshot); err != nil {
		return nil, fmt.Errorf("encode regulation snapshot: %w", err)
	}
	return &enc, nil
}

func scanApplication(s scannable) (*domain.LoanApplication, error) {
	var (
		a                domain.LoanApplication
		applicantID      *uuid.UUID
		productType      string
		status           string
		currentStep      string
		consentJSON      []byte
		requestedAmount  pgtype.Numeric
		rateType         string
		stressRegion     string
		existingDebt     pgtype.Numeric
		collateralJSON   []byte
		revolvingLine    pgtype.Numeric
		revolvingBalance pgtype.Numeric
		snapshotJSON     []byte
	)
	err := s.Scan(
		&a.ID, &a.ApplicationNo, &applicantID, &productType, &status,
		&currentStep, &a.DigitalChannel, &consentJSON, &a.Purpose,
		&requestedAmount, &a.RequestedTermMonths, &rateType, &stressRegion,
		&existingDebt, &a.ExistingLoansCount, &collateralJSON,
		&revolvingLine, &revolvingBalance, &a.ESignToken,
		&a.FinalConfirmedAt, &a.SubmittedAt, &a.ScoredAt, &snapshotJSON,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if applicantID != nil {
		a.ApplicantID = *applicantID
	}
	a.ProductType = domain.ProductType(productType)
	a.Status = domain.ApplicationStatus(status)
	a.CurrentStep = domain.ApplicationStep(currentStep)
	a.RateType = domain.RateType(rateType)
	a.StressRegion = domain.StressDSRRegion(stressRegion)
	a.RequestedAmount = pgNumericToDecimal(requestedAmount)
	a.ExistingMonthlyDebtPayment = pgNumericToDecimal(existingDebt)
	a.RevolvingLine = pgNumericToDecimalPtr(revolvingLine)
	a.RevolvingBalance = pgNumericToDecimalPtr(revolvingBalance)

	if len(consentJSON) > 0 {
		var consent domain.Consent
		if err := json.Unmarshal(consentJSON, &consent); err != nil {
			return nil, fmt.Errorf("decode consent: %w", err)
		}
		a.Consent = &consent
	}
	if len(collateralJSON) > 0 {
		var collateral domain.CollateralInfo
		if err := json.Unmarshal(collateralJSON, &collateral); err != nil {
			return nil, fmt.Errorf("decode collateral: %w", err)
		}
		a.Collateral = &collateral
	}
	if len(snapshotJSON) > 0 {
		var snapshot domain.RegulationSnapshot
		if err := json.Unmarshal(snapshotJSON, &snapshot); err != nil {
			return nil, fmt.Errorf("decode regulation snapshot: %w", err)
		}
		a.Snapshot = &snapshot
	}
	return &a, nil
}
