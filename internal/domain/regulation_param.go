package domain

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ParamValueKind tags the typed payload carried by a regulation
// parameter row. Exactly one payload field is set per kind.
type ParamValueKind string

const (
	KindStressRate       ParamValueKind = "stress_rate"
	KindLimitRatio       ParamValueKind = "limit_ratio"
	KindIncomeMultiplier ParamValueKind = "income_multiplier"
	KindEQBenefit        ParamValueKind = "eq_benefit"
	KindSegmentBenefit   ParamValueKind = "segment_benefit"
	KindCreditConversion ParamValueKind = "credit_conversion"
	KindScalar           ParamValueKind = "scalar"
	KindRaw              ParamValueKind = "raw"
)

// Parameter categories group rows for the admin console.
const (
	CategoryStressDSR = "stress_dsr"
	CategoryLTV       = "ltv"
	CategoryDSR       = "dsr"
	CategoryRate      = "rate"
	CategoryIncome    = "income"
	CategoryEQGrade   = "eq_grade"
	CategorySegment   = "segment"
	CategoryCCF       = "ccf"
)

// StressRate is a stress-DSR add-on in percentage points. Mixed-rate
// products apply only a ratio of the variable add-on.
type StressRate struct {
	Rate       float64 `json:"rate"`
	ApplyRatio float64 `json:"applyRatio"`
}

// Effective returns the add-on actually applied, in percentage points.
func (s StressRate) Effective() float64 {
	return s.Rate * s.ApplyRatio
}

// LimitRatio is a percentage ceiling such as DSR or LTV, with an
// optional deduction for multi-property owners.
type LimitRatio struct {
	MaxRatio            float64 `json:"maxRatio"`
	MultiOwnerDeduction float64 `json:"multiOwnerDeduction,omitempty"`
}

// IncomeMultiplier scales verified annual income into a credit limit.
type IncomeMultiplier struct {
	Times float64 `json:"times"`
}

// EQBenefit carries the limit and pricing benefits of an employer
// quality grade, plus MOU partnership overrides when present.
type EQBenefit struct {
	LimitMultiplier float64  `json:"limitMultiplier"`
	RateAdjustment  float64  `json:"rateAdjustment"`
	MOUCode         *string  `json:"mouCode,omitempty"`
	MOUSpecialRate  *float64 `json:"mouSpecialRate,omitempty"`
}

// SegmentBenefit carries preferential terms for a customer segment.
type SegmentBenefit struct {
	GuaranteedMinEQ       *EQGrade `json:"guaranteedMinEq,omitempty"`
	LimitMultiplier       float64  `json:"limitMultiplier,omitempty"`
	RateDiscount          float64  `json:"rateDiscount,omitempty"`
	AgeMin                *int32   `json:"ageMin,omitempty"`
	AgeMax                *int32   `json:"ageMax,omitempty"`
	IncomeSmoothingMonths int32    `json:"incomeSmoothingMonths,omitempty"`
	GuaranteeLink         bool     `json:"guaranteeLink,omitempty"`
}

// CreditConversion is the CCF applied to undrawn revolving lines.
type CreditConversion struct {
	Ratio float64 `json:"ratio"`
}

// Scalar is a single numeric setting such as the statutory rate cap.
type Scalar struct {
	Value float64 `json:"value"`
}

// ParamValue is the tagged union stored in the parameter table. The
// kind determines which payload is populated; Raw preserves payloads
// this build does not recognize.
type ParamValue struct {
	Kind             ParamValueKind     `json:"kind"`
	StressRate       *StressRate        `json:"stressRate,omitempty"`
	LimitRatio       *LimitRatio        `json:"limitRatio,omitempty"`
	IncomeMultiplier *IncomeMultiplier  `json:"incomeMultiplier,omitempty"`
	EQBenefit        *EQBenefit         `json:"eqBenefit,omitempty"`
	SegmentBenefit   *SegmentBenefit    `json:"segmentBenefit,omitempty"`
	CreditConversion *CreditConversion  `json:"creditConversion,omitempty"`
	Scalar           *Scalar            `json:"scalar,omitempty"`
	Raw              map[string]float64 `json:"raw,omitempty"`
}

// Validate checks that exactly the payload named by Kind is set.
func (v ParamValue) Validate() error {
	set := 0
	if v.StressRate != nil {
		set++
	}
	if v.LimitRatio != nil {
		set++
	}
	if v.IncomeMultiplier != nil {
		set++
	}
	if v.EQBenefit != nil {
		set++
	}
	if v.SegmentBenefit != nil {
		set++
	}
	if v.CreditConversion != nil {
		set++
	}
	if v.Scalar != nil {
		set++
	}
	if v.Raw != nil {
		set++
	}
	if set != 1 {
		return NewValidationError("value", "exactly one payload must be set")
	}
	var match bool
	switch v.Kind {
	case KindStressRate:
		match = v.StressRate != nil
	case KindLimitRatio:
		match = v.LimitRatio != nil
	case KindIncomeMultiplier:
		match = v.IncomeMultiplier != nil
	case KindEQBenefit:
		match = v.EQBenefit != nil
	case KindSegmentBenefit:
		match = v.SegmentBenefit != nil
	case KindCreditConversion:
		match = v.CreditConversion != nil
	case KindScalar:
		match = v.Scalar != nil
	case KindRaw:
		match = v.Raw != nil
	default:
		return NewValidationError("value.kind", "unknown parameter value kind")
	}
	if !match {
		return NewValidationError("value", "payload does not match declared kind")
	}
	return nil
}

// ConditionMap narrows a parameter to a context, e.g. rate type or
// region. A row matches when every row condition appears in the
// caller's context with the same value.
type ConditionMap map[string]string

// SubsetOf reports whether every entry of c is present in ctx.
func (c ConditionMap) SubsetOf(ctx ConditionMap) bool {
	for k, v := range c {
		if ctx[k] != v {
			return false
		}
	}
	return true
}

// Canonical renders the map as a stable "k=v&k=v" string for cache keys.
func (c ConditionMap) Canonical() string {
	if len(c) == 0 {
		return ""
	}
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(c[k])
	}
	return b.String()
}

// RegulationParam is one versioned row of the parameter store. Rows
// are append-only; supersession happens via effective windows and
// deactivation, never in-place edits.
type RegulationParam struct {
	ID            uuid.UUID    `json:"id"`
	ParamKey      string       `json:"paramKey"`
	Category      string       `json:"category"`
	PhaseLabel    *string      `json:"phaseLabel,omitempty"`
	Value         ParamValue   `json:"value"`
	Condition     ConditionMap `json:"condition,omitempty"`
	EffectiveFrom time.Time    `json:"effectiveFrom"`
	EffectiveTo   *time.Time   `json:"effectiveTo,omitempty"`
	IsActive      bool         `json:"isActive"`
	LegalBasis    *string      `json:"legalBasis,omitempty"`
	Description   *string      `json:"description,omitempty"`
	ChangeReason  string       `json:"changeReason"`
	CreatedBy     string       `json:"createdBy"`
	ApprovedBy    string       `json:"approvedBy"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// Validate enforces structural rules and the two-person rule: the
// approver must differ from the author and a change reason is required.
func (p *RegulationParam) Validate() error {
	if p.ParamKey == "" {
		return NewValidationError("paramKey", "parameter key is required")
	}
	if p.Category == "" {
		return NewValidationError("category", "category is required")
	}
	if err := p.Value.Validate(); err != nil {
		return err
	}
	if p.EffectiveFrom.IsZero() {
		return NewValidationError("effectiveFrom", "effective date is required")
	}
	if p.EffectiveTo != nil && !p.EffectiveTo.After(p.EffectiveFrom) {
		return NewValidationError("effectiveTo", "must be after effectiveFrom")
	}
	if strings.TrimSpace(p.ChangeReason) == "" {
		return ErrChangeReasonRequired
	}
	if p.CreatedBy == "" {
		return NewValidationError("createdBy", "author is required")
	}
	if p.ApprovedBy == "" || p.ApprovedBy == p.CreatedBy {
		return ErrSelfApproval
	}
	return nil
}

// ActiveAt reports whether the row's window covers t. Bounds are
// inclusive on both ends.
func (p *RegulationParam) ActiveAt(t time.Time) bool {
	if !p.IsActive {
		return false
	}
	if t.Before(p.EffectiveFrom) {
		return false
	}
	if p.EffectiveTo != nil && t.After(*p.EffectiveTo) {
		return false
	}
	return true
}

// Matches reports whether the row's condition is satisfied by ctx.
func (p *RegulationParam) Matches(ctx ConditionMap) bool {
	return p.Condition.SubsetOf(ctx)
}

type RegulationParamRepository interface {
	Create(ctx context.Context, param *RegulationParam) (*RegulationParam, error)
	GetByID(ctx context.Context, id uuid.UUID) (*RegulationParam, error)
	ListByKey(ctx context.Context, paramKey string) ([]*RegulationParam, error)
	ListActiveAt(ctx context.Context, paramKey string, at time.Time) ([]*RegulationParam, error)
	List(ctx context.Context, category string, activeOnly bool) ([]*RegulationParam, error)
	ListKeys(ctx context.Context) ([]string, error)
	Deactivate(ctx context.Context, id uuid.UUID, at time.Time, actor string) (*RegulationParam, error)
}
