package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Decision is the automated underwriting outcome.
type Decision string

const (
	DecisionApproved     Decision = "approved"
	DecisionRejected     Decision = "rejected"
	DecisionManualReview Decision = "manual_review"
)

func (d Decision) Valid() bool {
	switch d {
	case DecisionApproved, DecisionRejected, DecisionManualReview:
		return true
	}
	return false
}

// Grade is the ten-band letter grade derived from the master score.
type Grade string

const (
	GradeAAA Grade = "AAA"
	GradeAA  Grade = "AA"
	GradeA   Grade = "A"
	GradeBBB Grade = "BBB"
	GradeBB  Grade = "BB"
	GradeB   Grade = "B"
	GradeCCC Grade = "CCC"
	GradeCC  Grade = "CC"
	GradeC   Grade = "C"
	GradeD   Grade = "D"
)

// Score scale bounds.
const (
	MinScore = 300
	MaxScore = 900
)

// AppealWindowDays is how long rejected and manual-review applicants
// may contest the outcome.
const AppealWindowDays = 30

// GradeForScore maps a clamped master score onto the grade bands.
func GradeForScore(score int) Grade {
	switch {
	case score >= 870:
		return GradeAAA
	case score >= 840:
		return GradeAA
	case score >= 805:
		return GradeA
	case score >= 750:
		return GradeBBB
	case score >= 665:
		return GradeBB
	case score >= 600:
		return GradeB
	case score >= 515:
		return GradeCCC
	case score >= 445:
		return GradeCC
	case score >= 351:
		return GradeC
	default:
		return GradeD
	}
}

// FactorImpact weights an explanation factor.
type FactorImpact string

const (
	ImpactHigh   FactorImpact = "high"
	ImpactMedium FactorImpact = "medium"
	ImpactLow    FactorImpact = "low"
)

// ExplanationFactor is one adverse-action or strength item shown to the
// applicant, phrased in Korean.
type ExplanationFactor struct {
	Factor string       `json:"factor"`
	Detail string       `json:"detail"`
	Impact FactorImpact `json:"impact"`
}

// RateBreakdown itemizes the composed interest rate in percent. Stored
// components round to four decimals; user-facing rates round to two.
type RateBreakdown struct {
	BaseRate               decimal.Decimal `json:"baseRate"`
	CreditSpread           decimal.Decimal `json:"creditSpread"`
	FundingCost            decimal.Decimal `json:"fundingCost"`
	OperatingCost          decimal.Decimal `json:"operatingCost"`
	EQAdjustment           decimal.Decimal `json:"eqAdjustment"`
	SegmentDiscount        decimal.Decimal `json:"segmentDiscount"`
	RelationshipAdjustment decimal.Decimal `json:"relationshipAdjustment"`
	FinalRate              decimal.Decimal `json:"finalRate"`
	RateCapped             bool            `json:"rateCapped"`
}

// CreditScore is the persisted scoring outcome for one application.
type CreditScore struct {
	ID              uuid.UUID `json:"id"`
	ApplicationID   uuid.UUID `json:"applicationId"`
	ApplicantID     uuid.UUID `json:"applicantId"`
	Score           int32     `json:"score"`
	Grade           Grade     `json:"grade"`
	RawProbability  float64   `json:"rawProbability"`
	PD              float64   `json:"pd"`
	CalibrationBin  int32     `json:"calibrationBin"`
	ModelVersion    string    `json:"modelVersion"`
	PDSource        string    `json:"pdSource"`
	DSR             float64   `json:"dsr"`
	StressDSR       float64   `json:"stressDsr"`
	LTV             *float64  `json:"ltv,omitempty"`

	EAD             decimal.Decimal `json:"ead"`
	LGD             float64         `json:"lgd"`
	RiskWeight      float64         `json:"riskWeight"`
	EconomicCapital decimal.Decimal `json:"economicCapital"`
	RAROC           float64         `json:"raroc"`

	Decision         Decision            `json:"decision"`
	ApprovedAmount   *decimal.Decimal    `json:"approvedAmount,omitempty"`
	FinalRate        decimal.Decimal     `json:"finalRate"`
	RateBreakdown    RateBreakdown       `json:"rateBreakdown"`
	RejectionReasons []string            `json:"rejectionReasons,omitempty"`
	PositiveFactors  []ExplanationFactor `json:"positiveFactors,omitempty"`
	NegativeFactors  []ExplanationFactor `json:"negativeFactors,omitempty"`
	AppealDeadline   *time.Time          `json:"appealDeadline,omitempty"`

	ScoredAt  time.Time `json:"scoredAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// AppealOpen reports whether the applicant may still contest the
// decision at the given time.
func (s *CreditScore) AppealOpen(now time.Time) bool {
	if s.Decision == DecisionApproved {
		return false
	}
	return s.AppealDeadline != nil && !now.After(*s.AppealDeadline)
}

// CreditScoreRepository persists scoring results. An application keeps
// every result it ever received; readers want the latest by scoredAt.
type CreditScoreRepository interface {
	Create(ctx context.Context, score *CreditScore) (*CreditScore, error)
	GetByID(ctx context.Context, id uuid.UUID) (*CreditScore, error)
	GetLatestByApplicationID(ctx context.Context, applicationID uuid.UUID) (*CreditScore, error)
	ListByApplicationID(ctx context.Context, applicationID uuid.UUID) ([]*CreditScore, error)
	ListByApplicantID(ctx context.Context, applicantID uuid.UUID) ([]*CreditScore, error)
	ListScoredBetween(ctx context.Context, from, to time.Time, limit int32) ([]*CreditScore, error)
}
