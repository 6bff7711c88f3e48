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

// ApplicantRepository implements domain.ApplicantRepository using PostgreSQL
type ApplicantRepository struct {
	pool *pgxpool.Pool
}

// NewApplicantRepository creates a new ApplicantRepository
func NewApplicantRepository(pool *pgxpool.Pool) *ApplicantRepository {
	return &ApplicantRepository{pool: pool}
}

const applicantColumns = `
	id, identity_token, name_masked, kind, age, employment_kind,
	occupation_code, annual_income, income_verified, employer_name,
	employer_eq_grade, ksic_code, industry_risk_grade, segment_code,
	segment_verified, arts_fund_registered, digital_channel, consent,
	sole_proprietor, created_at, updated_at`

// Create inserts a new applicant row.
func (r *ApplicantRepository) Create(ctx context.Context, applicant *domain.Applicant) (*domain.Applicant, error) {
	if applicant.ID == uuid.Nil {
		applicant.ID = uuid.New()
	}
	now := time.Now().UTC()
	applicant.CreatedAt = now
	applicant.UpdatedAt = now

	income, err := decimalToPgNumeric(applicant.AnnualIncome)
	if err != nil {
		return nil, fmt.Errorf("encode annual income: %w", err)
	}
	consent, err := json.Marshal(applicant.Consent)
	if err != nil {
		return nil, fmt.Errorf("encode consent: %w", err)
	}
	soleProp, err := marshalNullable(applicant.SoleProprietor != nil, applicant.SoleProprietor)
	if err != nil {
		return nil, fmt.Errorf("encode sole proprietor profile: %w", err)
	}

	query := `
		INSERT INTO applicants (` + applicantColumns + `
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`
	_, err = r.pool.Exec(ctx, query,
		applicant.ID, applicant.IdentityToken, applicant.NameMasked,
		string(applicant.Kind), applicant.Age, string(applicant.EmploymentKind),
		applicant.OccupationCode, income, applicant.IncomeVerified,
		applicant.EmployerName, eqGradePtrToText(applicant.EmployerEQGrade),
		applicant.KSICCode, irgPtrToText(applicant.IndustryRiskGrade),
		applicant.SegmentCode, applicant.SegmentVerified, applicant.ArtsFundRegistered,
		applicant.DigitalChannel, consent, soleProp,
		applicant.CreatedAt, applicant.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert applicant: %w", err)
	}
	return applicant, nil
}

// GetByID retrieves an applicant by id.
func (r *ApplicantRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Applicant, error) {
	query := `SELECT ` + applicantColumns + ` FROM applicants WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

// GetByIdentityToken retrieves an applicant by the hashed registration number.
func (r *ApplicantRepository) GetByIdentityToken(ctx context.Context, token string) (*domain.Applicant, error) {
	query := `SELECT ` + applicantColumns + ` FROM applicants WHERE identity_token = $1`
	return r.scanOne(ctx, query, token)
}

// Update rewrites the mutable applicant fields.
func (r *ApplicantRepository) Update(ctx context.Context, applicant *domain.Applicant) (*domain.Applicant, error) {
	applicant.UpdatedAt = time.Now().UTC()

	income, err := decimalToPgNumeric(applicant.AnnualIncome)
	if err != nil {
		return nil, fmt.Errorf("encode annual income: %w", err)
	}
	consent, err := json.Marshal(applicant.Consent)
	if err != nil {
		return nil, fmt.Errorf("encode consent: %w", err)
	}
	soleProp, err := marshalNullable(applicant.SoleProprietor != nil, applicant.SoleProprietor)
	if err != nil {
		return nil, fmt.Errorf("encode sole proprietor profile: %w", err)
	}

	query := `
		UPDATE applicants SET
			name_masked          = $2,
			kind                 = $3,
			age                  = $4,
			employment_kind      = $5,
			occupation_code      = $6,
			annual_income        = $7,
			income_verified      = $8,
			employer_name        = $9,
			employer_eq_grade    = $10,
			ksic_code            = $11,
			industry_risk_grade  = $12,
			segment_code         = $13,
			segment_verified     = $14,
			arts_fund_registered = $15,
			digital_channel      = $16,
			consent              = $17,
			sole_proprietor      = $18,
			updated_at           = $19
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		applicant.ID, applicant.NameMasked, string(applicant.Kind), applicant.Age,
		string(applicant.EmploymentKind), applicant.OccupationCode, income,
		applicant.IncomeVerified, applicant.EmployerName,
		eqGradePtrToText(applicant.EmployerEQGrade), applicant.KSICCode,
		irgPtrToText(applicant.IndustryRiskGrade), applicant.SegmentCode,
		applicant.SegmentVerified, applicant.ArtsFundRegistered,
		applicant.DigitalChannel, consent, soleProp, applicant.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update applicant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrApplicantNotFound
	}
	return applicant, nil
}

func (r *ApplicantRepository) scanOne(ctx context.Context, query string, args ...any) (*domain.Applicant, error) {
	row := r.pool.QueryRow(ctx, query, args...)
	applicant, err := scanApplicant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrApplicantNotFound
		}
		return nil, err
	}
	return applicant, nil
}

func scanApplicant(s scannable) (*domain.Applicant, error) {
	var (
		a            domain.Applicant
		kind         string
		employment   string
		income       pgtype.Numeric
		eqGrade      *string
		irgGrade     *string
		consentJSON  []byte
		solePropJSON []byte
	)
	err := s.Scan(
		&a.ID, &a.IdentityToken, &a.NameMasked, &kind, &a.Age, &employment,
		&a.OccupationCode, &income, &a.IncomeVerified, &a.EmployerName,
		&eqGrade, &a.KSICCode, &irgGrade, &a.SegmentCode,
		&a.SegmentVerified, &a.ArtsFundRegistered, &a.DigitalChannel,
		&consentJSON, &solePropJSON, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Kind = domain.ApplicantKind(kind)
	a.EmploymentKind = domain.EmploymentKind(employment)
	a.AnnualIncome = pgNumericToDecimal(income)
	if eqGrade != nil {
		g := domain.EQGrade(*eqGrade)
		a.EmployerEQGrade = &g
	}
	if irgGrade != nil {
		g := domain.IRGGrade(*irgGrade)
		a.IndustryRiskGrade = &g
	}
	if len(consentJSON) > 0 {
		if err := json.Unmarshal(consentJSON, &a.Consent); err != nil {
			return nil, fmt.Errorf("decode consent: %w", err)
		}
	}
	if len(solePropJSON) > 0 {
		var profile domain.SoleProprietorProfile
		if err := json.Unmarshal(solePropJSON, &profile); err != nil {
			return nil, fmt.Errorf("decode sole proprietor profile: %w", err)
		}
		a.SoleProprietor = &profile
	}
	return &a, nil
}

func eqGradePtrToText(g *domain.EQGrade) *string {
	if g == nil {
		return nil
	}
	s := string(*g)
	return &s
}

func irgPtrToText(g *domain.IRGGrade) *string {
	if g == nil {
		return nil
	}
	s := string(*g)
	return &s
}

// marshalNullable marshals v when present, returning nil (SQL NULL)
// otherwise.
func marshalNullable(present bool, v any) ([]byte, error) {
	if !present {
		return nil, nil
	}
	return json.Marshal(v)
}
