package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductType identifies the loan product being applied for.
type ProductType string

const (
	ProductCredit     ProductType = "credit"
	ProductCreditSOHO ProductType = "credit_soho"
	ProductMortgage   ProductType = "mortgage"
	ProductMicro      ProductType = "micro"
	ProductRevolving  ProductType = "revolving"
)

// MicroMaxAmount caps small-sum loans regardless of income.
var MicroMaxAmount = decimal.NewFromInt(3_000_000)

// MaxTermMonths bounds the repayment term across all term products.
const MaxTermMonths = 360

func (p ProductType) Valid() bool {
	switch p {
	case ProductCredit, ProductCreditSOHO, ProductMortgage, ProductMicro, ProductRevolving:
		return true
	}
	return false
}

// LGD returns the regulatory loss-given-default for the product.
func (p ProductType) LGD() float64 {
	switch p {
	case ProductCreditSOHO:
		return 0.50
	case ProductMortgage:
		return 0.25
	case ProductMicro:
		return 0.60
	default:
		return 0.45
	}
}

// RiskWeight returns the standardized risk weight for the product.
func (p ProductType) RiskWeight() float64 {
	switch p {
	case ProductMortgage:
		return 0.35
	case ProductMicro:
		return 1.00
	default:
		return 0.75
	}
}

func (p ProductType) IsRevolving() bool { return p == ProductRevolving }
func (p ProductType) IsMortgage() bool  { return p == ProductMortgage }

// RateType selects the pricing structure for stress-DSR lookups.
type RateType string

const (
	RateFixed      RateType = "fixed"
	RateVariable   RateType = "variable"
	RateMixedShort RateType = "mixed_short"
	RateMixedLong  RateType = "mixed_long"
)

func (r RateType) Valid() bool {
	switch r {
	case RateFixed, RateVariable, RateMixedShort, RateMixedLong:
		return true
	}
	return false
}

// StressDSRRegion keys the phased stress add-on by property region.
type StressDSRRegion string

const (
	RegionMetropolitan    StressDSRRegion = "metropolitan"
	RegionNonMetropolitan StressDSRRegion = "non_metropolitan"
)

func (r StressDSRRegion) Valid() bool {
	return r == RegionMetropolitan || r == RegionNonMetropolitan
}

// LTVRegionClass classifies collateral location for LTV ceilings.
type LTVRegionClass string

const (
	LTVRegionGeneral     LTVRegionClass = "general"
	LTVRegionRegulated   LTVRegionClass = "regulated"
	LTVRegionSpeculation LTVRegionClass = "speculation_area"
)

func (c LTVRegionClass) Valid() bool {
	switch c {
	case LTVRegionGeneral, LTVRegionRegulated, LTVRegionSpeculation:
		return true
	}
	return false
}

// CollateralInfo describes the property backing a mortgage application.
type CollateralInfo struct {
	Value           decimal.Decimal `json:"value"`
	RegionClass     LTVRegionClass  `json:"regionClass"`
	OwnedProperties int32           `json:"ownedProperties"`
}

// ValidDigitalChannel accepts the supported intake channels.
func ValidDigitalChannel(ch string) bool {
	switch ch {
	case "bank_app", "kakao", "naver", "web":
		return true
	}
	return false
}

// ApplicationStep tracks progress through the digital journey. Steps
// complete strictly in order; re-submitting a finished step is allowed.
type ApplicationStep string

const (
	StepConsent       ApplicationStep = "consent"
	StepBasicInfo     ApplicationStep = "basic_info"
	StepFinancialInfo ApplicationStep = "financial_info"
	StepProductSelect ApplicationStep = "product_select"
	StepReview        ApplicationStep = "review"
	StepSubmit        ApplicationStep = "submit"
)

var journeySteps = []ApplicationStep{
	StepConsent,
	StepBasicInfo,
	StepFinancialInfo,
	StepProductSelect,
	StepReview,
	StepSubmit,
}

// StepIndex returns the zero-based position of the step, or -1.
func StepIndex(step ApplicationStep) int {
	for i, s := range journeySteps {
		if s == step {
			return i
		}
	}
	return -1
}

// NextStep returns the step following cur, or empty once the journey ends.
func NextStep(cur ApplicationStep) ApplicationStep {
	idx := StepIndex(cur)
	if idx < 0 || idx+1 >= len(journeySteps) {
		return ""
	}
	return journeySteps[idx+1]
}

// ApplicationStatus is the lifecycle state of an application. Draft
// covers the journey before submission; pending applications move to
// under_review when evaluation starts and land on one of the three
// decision outcomes. Suspension via an early-warning event is terminal.
type ApplicationStatus string

const (
	StatusDraft        ApplicationStatus = "draft"
	StatusPending      ApplicationStatus = "pending"
	StatusUnderReview  ApplicationStatus = "under_review"
	StatusApproved     ApplicationStatus = "approved"
	StatusRejected     ApplicationStatus = "rejected"
	StatusManualReview ApplicationStatus = "manual_review"
	StatusAppealed     ApplicationStatus = "appealed"
	StatusSuspended    ApplicationStatus = "suspended"
	StatusWithdrawn    ApplicationStatus = "withdrawn"
)

var statusTransitions = map[ApplicationStatus][]ApplicationStatus{
	StatusDraft:        {StatusPending, StatusWithdrawn, StatusSuspended},
	StatusPending:      {StatusUnderReview, StatusWithdrawn, StatusSuspended},
	StatusUnderReview:  {StatusApproved, StatusRejected, StatusManualReview, StatusSuspended},
	StatusManualReview: {StatusApproved, StatusRejected, StatusAppealed, StatusSuspended},
	StatusRejected:     {StatusAppealed},
	StatusAppealed:     {StatusUnderReview, StatusSuspended},
}

// CanTransitionTo reports whether the lifecycle permits moving to next.
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s ApplicationStatus) IsTerminal() bool {
	return len(statusTransitions[s]) == 0
}

// RegulationSnapshot freezes every regulatory input used at decision
// time so the outcome stays reproducible after parameters change.
type RegulationSnapshot struct {
	EffectiveAt        time.Time       `json:"effectiveAt"`
	DSRLimit           float64         `json:"dsrLimit"`
	LTVLimit           *float64        `json:"ltvLimit,omitempty"`
	StressAdd          float64         `json:"stressAdd"`
	StressRegion       StressDSRRegion `json:"stressRegion"`
	RateType           RateType        `json:"rateType"`
	StatutoryRateCap   float64         `json:"statutoryRateCap"`
	BaseRate           float64         `json:"baseRate"`
	EQGrade            EQGrade         `json:"eqGrade"`
	IRGGrade           IRGGrade        `json:"irgGrade"`
	IRGPDAdjustment    float64         `json:"irgPdAdjustment"`
	SegmentCode        string          `json:"segmentCode,omitempty"`
	CBSource           string          `json:"cbSource"`
	CBScore            int             `json:"cbScore"`
	CBFallback         bool            `json:"cbFallback"`
	ModelVersion       string          `json:"modelVersion"`
	IncomeMultiplier   float64         `json:"incomeMultiplier"`
	CCFRatio           float64         `json:"ccfRatio"`
	Degradations       []string        `json:"degradations,omitempty"`
	ParamKeysResolved  []string        `json:"paramKeysResolved,omitempty"`
	SnapshotGeneratedAt time.Time      `json:"snapshotGeneratedAt"`
}

// LoanApplication is the journey aggregate: intake data entered step by
// step, then the frozen regulation snapshot once scored.
type LoanApplication struct {
	ID                         uuid.UUID           `json:"id"`
	ApplicationNo              string              `json:"applicationNo"`
	ApplicantID                uuid.UUID           `json:"applicantId"`
	ProductType                ProductType         `json:"productType"`
	Status                     ApplicationStatus   `json:"status"`
	CurrentStep                ApplicationStep     `json:"currentStep"`
	DigitalChannel             string              `json:"digitalChannel"`
	Consent                    *Consent            `json:"consent,omitempty"`
	Purpose                    *string             `json:"purpose,omitempty"`
	RequestedAmount            decimal.Decimal     `json:"requestedAmount"`
	RequestedTermMonths        int32               `json:"requestedTermMonths"`
	RateType                   RateType            `json:"rateType"`
	StressRegion               StressDSRRegion     `json:"stressRegion"`
	ExistingMonthlyDebtPayment decimal.Decimal     `json:"existingMonthlyDebtPayment"`
	ExistingLoansCount         int32               `json:"existingLoansCount"`
	Collateral                 *CollateralInfo     `json:"collateral,omitempty"`
	RevolvingLine              *decimal.Decimal    `json:"revolvingLine,omitempty"`
	RevolvingBalance           *decimal.Decimal    `json:"revolvingBalance,omitempty"`
	ESignToken                 *string             `json:"-"`
	FinalConfirmedAt           *time.Time          `json:"finalConfirmedAt,omitempty"`
	SubmittedAt                *time.Time          `json:"submittedAt,omitempty"`
	ScoredAt                   *time.Time          `json:"scoredAt,omitempty"`
	Snapshot                   *RegulationSnapshot `json:"regulationSnapshot,omitempty"`
	CreatedAt                  time.Time           `json:"createdAt"`
	UpdatedAt                  time.Time           `json:"updatedAt"`
}

// ValidateProductSelection checks the product step payload.
func (a *LoanApplication) ValidateProductSelection() error {
	if !a.ProductType.Valid() {
		return NewValidationError("productType", "unknown product type")
	}
	if a.RequestedAmount.LessThanOrEqual(decimal.Zero) {
		return NewValidationError("requestedAmount", "must be positive")
	}
	if !a.ProductType.IsRevolving() {
		if a.RequestedTermMonths < 1 || a.RequestedTermMonths > MaxTermMonths {
			return NewValidationError("requestedTermMonths", "must be between 1 and 360")
		}
	}
	if a.ProductType.IsMortgage() {
		if a.Collateral == nil {
			return NewValidationError("collateral", "mortgage applications require collateral details")
		}
		if !a.Collateral.RegionClass.Valid() {
			return NewValidationError("collateral.regionClass", "unknown region class")
		}
	}
	if a.ProductType.IsRevolving() {
		if a.RevolvingLine == nil || a.RevolvingLine.LessThanOrEqual(decimal.Zero) {
			return NewValidationError("revolvingLine", "revolving products require a credit line")
		}
	}
	return nil
}

// ValidateSubmit checks the final confirmation payload.
func (a *LoanApplication) ValidateSubmit() error {
	if a.ESignToken == nil || *a.ESignToken == "" {
		return NewValidationError("esignToken", "electronic signature is required")
	}
	if !a.RateType.Valid() {
		return NewValidationError("rateType", "unknown rate type")
	}
	if !a.StressRegion.Valid() {
		return NewValidationError("stressDsrRegion", "unknown stress DSR region")
	}
	return nil
}

type ApplicationRepository interface {
	Create(ctx context.Context, app *LoanApplication) (*LoanApplication, error)
	GetByID(ctx context.Context, id uuid.UUID) (*LoanApplication, error)
	GetByApplicationNo(ctx context.Context, applicationNo string) (*LoanApplication, error)
	Update(ctx context.Context, app *LoanApplication) (*LoanApplication, error)
	ListByApplicantID(ctx context.Context, applicantID uuid.UUID) ([]*LoanApplication, error)
	ListByStatus(ctx context.Context, status ApplicationStatus, limit int32) ([]*LoanApplication, error)
}
