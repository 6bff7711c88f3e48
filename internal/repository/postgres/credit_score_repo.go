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

// CreditScoreRepository implements domain.CreditScoreRepository using PostgreSQL
type CreditScoreRepository struct {
	pool *pgxpool.Pool
}

// NewCreditScoreRepository creates a new CreditScoreRepository
func NewCreditScoreRepository(pool *pgxpool.Pool) *CreditScoreRepository {
	return &CreditScoreRepository{pool: pool}
}

const creditScoreColumns = `
	id, application_id, applicant_id, score, grade, raw_probability, pd,
	calibration_bin, model_version, pd_source, dsr, stress_dsr, ltv, ead,
	lgd, risk_weight, economic_capital, raroc, decision, approved_amount,
	final_rate, rate_breakdown, rejection_reasons, positive_factors,
	negative_factors, appeal_deadline, scored_at, created_at`

// Create inserts a scoring result. Results are append-only.
func (r *CreditScoreRepository) Create(ctx context.Context, score *domain.CreditScore) (*domain.CreditScore, error) {
	if score.ID == uuid.Nil {
		score.ID = uuid.New()
	}
	if score.CreatedAt.IsZero() {
		score.CreatedAt = time.Now().UTC()
	}

	ead, err := decimalToPgNumeric(score.EAD)
	if err != nil {
		return nil, fmt.Errorf("encode ead: %w", err)
	}
	econCapital, err := decimalToPgNumeric(score.EconomicCapital)
	if err != nil {
		return nil, fmt.Errorf("encode economic capital: %w", err)
	}
	approvedAmount, err := decimalPtrToPgNumeric(score.ApprovedAmount)
	if err != nil {
		return nil, fmt.Errorf("encode approved amount: %w", err)
	}
	finalRate, err := decimalToPgNumeric(score.FinalRate)
	if err != nil {
		return nil, fmt.Errorf("encode final rate: %w", err)
	}
	breakdown, err := json.Marshal(score.RateBreakdown)
	if err != nil {
		return nil, fmt.Errorf("encode rate breakdown: %w", err)
	}
	positive, err := marshalNullable(len(score.PositiveFactors) > 0, score.PositiveFactors)
	if err != nil {
		return nil, fmt.Errorf("encode positive factors: %w", err)
	}
	negative, err := marshalNullable(len(score.NegativeFactors) > 0, score.NegativeFactors)
	if err != nil {
		return nil, fmt.Errorf("encode negative factors: %w", err)
	}

	query := `
		INSERT INTO credit_scores (` + creditScoreColumns + `
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)
	`
	_, err = r.pool.Exec(ctx, query,
		score.ID, score.ApplicationID, score.ApplicantID, score.Score,
		string(score.Grade), score.RawProbability, score.PD,
		score.CalibrationBin, score.ModelVersion, score.PDSource,
		score.DSR, score.StressDSR, score.LTV, ead, score.LGD,
		score.RiskWeight, econCapital, score.RAROC, string(score.Decision),
		approvedAmount, finalRate, breakdown, score.RejectionReasons,
		positive, negative, score.AppealDeadline, score.ScoredAt,
		score.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert credit score: %w", err)
	}
	return score, nil
}

// GetByID retrieves one scoring result.
func (r *CreditScoreRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CreditScore, error) {
	query := `SELECT ` + creditScoreColumns + ` FROM credit_scores WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

// GetLatestByApplicationID returns the most recent result for an
// application.
func (r *CreditScoreRepository) GetLatestByApplicationID(ctx context.Context, applicationID uuid.UUID) (*domain.CreditScore, error) {
	query := `
		SELECT ` + creditScoreColumns + `
		FROM credit_scores
		WHERE application_id = $1
		ORDER BY scored_at DESC
		LIMIT 1
	`
	return r.scanOne(ctx, query, applicationID)
}

// ListByApplicationID returns every result for an application, newest first.
func (r *CreditScoreRepository) ListByApplicationID(ctx context.Context, applicationID uuid.UUID) ([]*domain.CreditScore, error) {
	query := `
		SELECT ` + creditScoreColumns + `
		FROM credit_scores
		WHERE application_id = $1
		ORDER BY scored_at DESC
	`
	return r.scanMany(ctx, query, applicationID)
}

// ListByApplicantID returns every result for an applicant, newest first.
func (r *CreditScoreRepository) ListByApplicantID(ctx context.Context, applicantID uuid.UUID) ([]*domain.CreditScore, error) {
	query := `
		SELECT ` + creditScoreColumns + `
		FROM credit_scores
		WHERE applicant_id = $1
		ORDER BY scored_at DESC
	`
	return r.scanMany(ctx, query, applicantID)
}

// ListScoredBetween returns results scored in [from, to), capped at
// limit, for the monitoring windows.
func (r *CreditScoreRepository) ListScoredBetween(ctx context.Context, from, to time.Time, limit int32) ([]*domain.CreditScore, error) {
	query := `
		SELECT ` + creditScoreColumns + `
		FROM credit_scores
		WHERE scored_at >= $1 AND scored_at < $2
		ORDER BY scored_at ASC
		LIMIT $3
	`
	return r.scanMany(ctx, query, from, to, limit)
}

func (r *CreditScoreRepository) scanOne(ctx context.Context, query string, args ...any) (*domain.CreditScore, error) {
	row := r.pool.QueryRow(ctx, query, args...)
	score, err := scanCreditScore(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScoreNotFound
		}
		return nil, err
	}
	return score, nil
}

func (r *CreditScoreRepository) scanMany(ctx context.Context, query string, args ...any) ([]*domain.CreditScore, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query credit scores: %w", err)
	}
	defer rows.Close()

	var result []*domain.CreditScore
	for rows.Next() {
		score, err := scanCreditScore(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, score)
	}
	return result, rows.Err()
}

func scanCreditScore(s scannable) (*domain.CreditScore, error) {
	var (
		sc             domain.CreditScore
		grade          string
		decision       string
		ead            pgtype.Numeric
		econCapital    pgtype.Numeric
		approvedAmount pgtype.Numeric
		finalRate      pgtype.Numeric
		breakdownJSON  []byte
		positiveJSON   []byte
		negativeJSON   []byte
	)
	err := s.Scan(
		&sc.ID, &sc.ApplicationID, &sc.ApplicantID, &sc.Score, &grade,
		&sc.RawProbability, &sc.PD, &sc.CalibrationBin, &sc.ModelVersion,
		&sc.PDSource, &sc.DSR, &sc.StressDSR, &sc.LTV, &ead, &sc.LGD,
		&sc.RiskWeight, &econCapital, &sc.RAROC, &decision,
		&approvedAmount, &finalRate, &breakdownJSON, &sc.RejectionReasons,
		&positiveJSON, &negativeJSON, &sc.AppealDeadline, &sc.ScoredAt,
		&sc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	sc.Grade = domain.Grade(grade)
	sc.Decision = domain.Decision(decision)
	sc.EAD = pgNumericToDecimal(ead)
	sc.EconomicCapital = pgNumericToDecimal(econCapital)
	sc.ApprovedAmount = pgNumericToDecimalPtr(approvedAmount)
	sc.FinalRate = pgNumericToDecimal(finalRate)

	if len(breakdownJSON) > 0 {
		if err := json.Unmarshal(breakdownJSON, &sc.RateBreakdown); err != nil {
			return nil, fmt.Errorf("decode rate breakdown: %w", err)
		}
	}
	if len(positiveJSON) > 0 {
		if err := json.Unmarshal(positiveJSON, &sc.PositiveFactors); err != nil {
			return nil, fmt.Errorf("decode positive factors: %w", err)
		}
	}
	if len(negativeJSON) > 0 {
		if err := json.Unmarshal(negativeJSON, &sc.NegativeFactors); err != nil {
			return nil, fmt.Errorf("decode negative factors: %w", err)
		}
	}
	return &sc, nil
}
