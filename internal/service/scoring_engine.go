package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
)

// Fixed pricing components in percent. Funding and operating costs are
// repriced by treasury twice a year outside this system.
const (
	fundingCostPct    = 1.2
	operatingCostPct  = 0.8
	relationshipPct   = 0.0
	spreadMultiplier  = 2.5
	rateFloorOverBase = 0.5
)

// Degradation markers recorded on the regulation snapshot.
const (
	DegradationCBFallback    = "cb_fallback"
	DegradationCBCache       = "cb_cached"
	DegradationStatisticalPD = "statistical_pd"
)

// ScoringInput bundles everything the engine needs for one evaluation.
type ScoringInput struct {
	Applicant   *domain.Applicant
	Application *domain.LoanApplication
	Report      *domain.CBReport
	Alt         *domain.AltData
	At          time.Time
}

// ScoringOutcome is the full computed result before the decision gates
// run: probabilities, score, ratios, pricing, and capital figures.
type ScoringOutcome struct {
	Features     ScoringFeatures
	RawPD        float64
	FinalPD      float64
	ModelVersion string
	PDSource     string

	Score int
	Grade domain.Grade

	DSR        float64
	DSRPercent float64
	StressDSR  float64
	StressAdd  float64
	DSRLimit   float64
	LTV        *float64
	LTVLimit   *float64

	EAD             decimal.Decimal
	LGD             float64
	RiskWeight      float64
	EconomicCapital decimal.Decimal
	RAROC           float64
	CCF             float64

	RateBreakdown domain.RateBreakdown
	BaseRate      float64
	StatutoryCap  float64

	EQGrade          domain.EQGrade
	EQBenefit        *domain.EQBenefit
	SegmentCode      string
	SegmentBenefit   *domain.SegmentBenefit
	SegmentApplied   bool
	IncomeMultiplier float64
	IRGAdjustment    float64

	PositiveFactors []domain.ExplanationFactor
	NegativeFactors []domain.ExplanationFactor

	Degradations      []string
	ParamKeysResolved []string
}

// ScoringEngine turns an application plus bureau data into a scored,
// priced outcome. It is pure computation over resolved parameters; the
// decision gates live in DecisionService.
type ScoringEngine struct {
	pd        PDProvider
	params    *ParamService
	eqMasters domain.EQGradeMasterRepository
}

func NewScoringEngine(pd PDProvider, params *ParamService, eqMasters domain.EQGradeMasterRepository) *ScoringEngine {
	return &ScoringEngine{pd: pd, params: params, eqMasters: eqMasters}
}

// Score runs the full pipeline: ratios, PD, master score, pricing, and
// capital. Regulatory parameters are resolved as of in.At.
func (e *ScoringEngine) Score(ctx context.Context, in *ScoringInput) (*ScoringOutcome, error) {
	if in.Applicant == nil || in.Application == nil || in.Report == nil {
		return nil, domain.NewValidationError("input", "applicant, application and bureau report are required")
	}
	at := in.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	out := &ScoringOutcome{}
	e.noteCBDegradation(out, in.Report)

	app := in.Application
	applicant := in.Applicant

	// Debt ratios come first: plain DSR feeds the scorecard.
	newMonthly := FlatNewMonthly(app.RequestedAmount)
	out.DSR = DSR(applicant.AnnualIncome, app.ExistingMonthlyDebtPayment, newMonthly)
	out.DSRPercent = out.DSR * 100

	dsrLimit, err := e.params.DSRLimit(ctx, at, app.ProductType)
	if err != nil {
		return nil, err
	}
	out.DSRLimit = dsrLimit
	e.trackParam(out, ParamDSRLimit)

	stressAdd, err := e.params.StressAdd(ctx, at, app.StressRegion, app.RateType)
	if err != nil {
		return nil, err
	}
	out.StressAdd = stressAdd
	out.StressDSR = StressDSR(applicant.AnnualIncome, app.ExistingMonthlyDebtPayment, app.RequestedAmount, stressAdd, app.RequestedTermMonths)
	e.trackParam(out, ParamStressPrefix+string(app.StressRegion))

	if app.ProductType.IsMortgage() && app.Collateral != nil {
		if ltv, ok := LTV(app.RequestedAmount, app.Collateral.Value); ok {
			out.LTV = &ltv
			limit, err := e.params.LTVLimit(ctx, at, app.Collateral.RegionClass, app.Collateral.OwnedProperties)
			if err != nil {
				return nil, err
			}
			out.LTVLimit = &limit
			e.trackParam(out, ParamLTVPrefix+string(app.Collateral.RegionClass))
		}
	}

	// Probability of default.
	out.Features = buildFeatures(applicant, in.Report, in.Alt, out.DSRPercent)
	pdRes, err := e.pd.RawPD(ctx, &out.Features)
	if err != nil {
		return nil, fmt.Errorf("estimate pd: %w", err)
	}
	out.RawPD = pdRes.RawPD
	out.ModelVersion = pdRes.ModelVersion
	out.PDSource = pdRes.Source
	if pdRes.Source == PDSourceStatistical {
		out.Degradations = append(out.Degradations, DegradationStatisticalPD)
	}

	irg := applicant.IRGOrDefault()
	irgAdj, err := e.params.IRGAdjustment(ctx, at, irg)
	if err != nil {
		return nil, err
	}
	out.IRGAdjustment = irgAdj
	e.trackParam(out, ParamIRGPrefix+string(irg))
	out.FinalPD = ClampPD(out.RawPD * (1 + out.IRGAdjustment))

	out.Score = ScoreFromPD(out.FinalPD)
	out.Grade = domain.GradeForScore(out.Score)

	// Employer grade and segment benefits feed pricing and limits.
	if err := e.resolveBenefits(ctx, at, applicant, out); err != nil {
		return nil, err
	}

	multiplier, err := e.params.IncomeMultiplier(ctx, at, applicant.EmploymentKind)
	if err != nil {
		return nil, err
	}
	out.IncomeMultiplier = multiplier
	e.trackParam(out, ParamIncomeMult)

	// Exposure and capital.
	ccf := 0.0
	if app.ProductType.IsRevolving() {
		ccf, err = e.params.CCF(ctx, at, app.ProductType)
		if err != nil {
			return nil, err
		}
		e.trackParam(out, ParamCCFRevolving)
	}
	out.CCF = ccf
	out.EAD = ExposureAtDefault(app.ProductType, app.RequestedAmount, app.RevolvingLine, app.RevolvingBalance, ccf)
	out.LGD = app.ProductType.LGD()
	out.RiskWeight = app.ProductType.RiskWeight()
	out.EconomicCapital = EconomicCapital(out.EAD, out.RiskWeight)

	// Pricing.
	if err := e.composeRate(ctx, at, out); err != nil {
		return nil, err
	}
	out.RAROC = RAROC(out.RateBreakdown.FinalRate.InexactFloat64(), out.FinalPD, out.LGD, out.EAD, out.EconomicCapital)

	out.PositiveFactors, out.NegativeFactors = explanationFactors(applicant, in.Report, in.Alt, out)

	return out, nil
}

func (e *ScoringEngine) noteCBDegradation(out *ScoringOutcome, report *domain.CBReport) {
	switch {
	case report.IsFallback:
		out.Degradations = append(out.Degradations, DegradationCBFallback)
	case report.Source == domain.CBSourceCache:
		out.Degradations = append(out.Degradations, DegradationCBCache)
	}
}

func (e *ScoringEngine) trackParam(out *ScoringOutcome, key string) {
	out.ParamKeysResolved = append(out.ParamKeysResolved, key)
}

// resolveBenefits applies segment terms, including the guaranteed
// minimum employer grade, then resolves the (possibly upgraded) EQ
// benefit row.
func (e *ScoringEngine) resolveBenefits(ctx context.Context, at time.Time, applicant *domain.Applicant, out *ScoringOutcome) error {
	out.EQGrade = applicant.EQGradeOrDefault()

	if applicant.SegmentCode != "" && applicant.SegmentVerified {
		benefit, err := e.params.SegmentBenefit(ctx, at, applicant.SegmentCode)
		switch {
		case err == nil:
			if segmentApplies(applicant, benefit) {
				out.SegmentCode = applicant.SegmentCode
				out.SegmentBenefit = benefit
				out.SegmentApplied = true
				if benefit.GuaranteedMinEQ != nil {
					out.EQGrade = out.EQGrade.Strongest(*benefit.GuaranteedMinEQ)
				}
				e.trackParam(out, ParamSegmentPrefix+domain.SegmentParamCode(applicant.SegmentCode))
			}
		case isNotFound(err):
			log.Warn().Str("segment", applicant.SegmentCode).Msg("No benefit parameters for segment, skipping")
		default:
			return err
		}
	}

	benefit, err := e.params.EQBenefit(ctx, at, out.EQGrade)
	if err != nil {
		return err
	}
	out.EQBenefit = benefit
	e.trackParam(out, ParamEQPrefix+string(out.EQGrade))
	return nil
}

// segmentApplies enforces per-segment eligibility beyond verification,
// currently the youth age window.
func segmentApplies(applicant *domain.Applicant, benefit *domain.SegmentBenefit) bool {
	if benefit.AgeMin != nil && applicant.Age < *benefit.AgeMin {
		return false
	}
	if benefit.AgeMax != nil && applicant.Age > *benefit.AgeMax {
		return false
	}
	return true
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrParamNotFound)
}

// composeRate builds the itemized rate in percent. Components round to
// four decimals; the final rate is floored near base and capped at the
// statutory maximum.
func (e *ScoringEngine) composeRate(ctx context.Context, at time.Time, out *ScoringOutcome) error {
	base, err := e.params.BaseRate(ctx, at)
	if err != nil {
		return err
	}
	maxRate, err := e.params.StatutoryRateCap(ctx, at)
	if err != nil {
		return err
	}
	out.BaseRate = base
	out.StatutoryCap = maxRate
	e.trackParam(out, ParamBaseRate)
	e.trackParam(out, ParamMaxInterest)

	spread := decimal.NewFromFloat(out.FinalPD * out.LGD * 100 * spreadMultiplier).Round(4)

	eqAdj := decimal.Zero
	if out.EQBenefit != nil {
		eqAdj = decimal.NewFromFloat(out.EQBenefit.RateAdjustment)
	}

	segDiscount := decimal.Zero
	if out.SegmentApplied && out.SegmentBenefit != nil {
		segDiscount = decimal.NewFromFloat(out.SegmentBenefit.RateDiscount)
		if special := e.mouSpecialRate(ctx, out); special != nil {
			segDiscount = decimal.NewFromFloat(*special)
		}
	}

	bd := domain.RateBreakdown{
		BaseRate:               decimal.NewFromFloat(base).Round(4),
		CreditSpread:           spread,
		FundingCost:            decimal.NewFromFloat(fundingCostPct),
		OperatingCost:          decimal.NewFromFloat(operatingCostPct),
		EQAdjustment:           eqAdj.Round(4),
		SegmentDiscount:        segDiscount.Round(4),
		RelationshipAdjustment: decimal.NewFromFloat(relationshipPct),
	}

	sum := bd.BaseRate.
		Add(bd.CreditSpread).
		Add(bd.FundingCost).
		Add(bd.OperatingCost).
		Add(bd.EQAdjustment).
		Add(bd.SegmentDiscount).
		Add(bd.RelationshipAdjustment)

	floor := decimal.NewFromFloat(base + rateFloorOverBase)
	capDec := decimal.NewFromFloat(maxRate)

	final := sum
	if final.LessThan(floor) {
		final = floor
	}
	if final.GreaterThan(capDec) {
		final = capDec
		bd.RateCapped = true
	}
	bd.FinalRate = final.Round(4)

	out.RateBreakdown = bd
	return nil
}

// mouSpecialRate looks up a partner-negotiated discount for MOU
// segments. Lookup failures fall back to the standard discount.
func (e *ScoringEngine) mouSpecialRate(ctx context.Context, out *ScoringOutcome) *float64 {
	if e.eqMasters == nil {
		return nil
	}
	code := domain.MOUPartnerCode(out.SegmentCode)
	if code == "" {
		return nil
	}
	master, err := e.eqMasters.GetByMOUCode(ctx, code)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Warn().Err(err).Str("mou_code", code).Msg("MOU master lookup failed, using standard discount")
		}
		return nil
	}
	return master.MOUSpecialRate
}

func buildFeatures(applicant *domain.Applicant, report *domain.CBReport, alt *domain.AltData, dsrPercent float64) ScoringFeatures {
	f := ScoringFeatures{
		CBScore:                report.Score,
		Delinquencies12M:       report.Delinquencies12M,
		WorstDelinquencyStatus: report.WorstDelinquencyStatus,
		Inquiries3M:            report.Inquiries3M,
		OpenLoans:              report.OpenLoans,
		DSRPercent:             dsrPercent,
		AnnualIncome:           applicant.AnnualIncome,
		IncomeVerified:         applicant.IncomeVerified,
	}
	if alt != nil {
		f.TelecomPaidRegularly = alt.TelecomPaidRegularly
		f.HealthInsuranceMonths = alt.HealthInsuranceMonths
	}
	if applicant.IsSoleProprietor() {
		f.IsSOHO = true
		f.BusinessDurationMonths = applicant.SoleProprietor.BusinessDurationMonths
		f.TaxFilings3Y = applicant.SoleProprietor.TaxFilings3Y
	}
	return f
}

// explanationFactors derives the applicant-facing strength and adverse
// factors, strongest first, at most three each.
func explanationFactors(applicant *domain.Applicant, report *domain.CBReport, alt *domain.AltData, out *ScoringOutcome) (pos, neg []domain.ExplanationFactor) {
	if report.Score >= 750 {
		pos = append(pos, domain.ExplanationFactor{
			Factor: "신용점수 우수",
			Detail: fmt.Sprintf("CB 점수 %d점", report.Score),
			Impact: domain.ImpactHigh,
		})
	}
	if applicant.SegmentCode == domain.SegmentDoctor || applicant.SegmentCode == domain.SegmentJudicial || applicant.SegmentCode == domain.SegmentMilitary {
		pos = append(pos, domain.ExplanationFactor{
			Factor: "전문직/안정직종",
			Detail: fmt.Sprintf("우대 고객군(%s) 적용", applicant.SegmentCode),
			Impact: domain.ImpactHigh,
		})
	}
	if report.Delinquencies12M == 0 {
		pos = append(pos, domain.ExplanationFactor{
			Factor: "최근 연체 없음",
			Detail: "최근 12개월 연체 이력이 없습니다",
			Impact: domain.ImpactMedium,
		})
	}
	if applicant.IncomeVerified {
		pos = append(pos, domain.ExplanationFactor{
			Factor: "소득 검증 완료",
			Detail: "증빙소득 기준으로 평가되었습니다",
			Impact: domain.ImpactMedium,
		})
	}
	if alt != nil && alt.TelecomPaidRegularly {
		pos = append(pos, domain.ExplanationFactor{
			Factor: "통신료 성실 납부",
			Detail: "통신요금 납부 이력이 양호합니다",
			Impact: domain.ImpactLow,
		})
	}

	if out.DSRPercent > 30 {
		neg = append(neg, domain.ExplanationFactor{
			Factor: "DSR 비율 높음",
			Detail: fmt.Sprintf("DSR %.1f%%", out.DSRPercent),
			Impact: domain.ImpactHigh,
		})
	}
	if report.Inquiries3M >= 3 {
		neg = append(neg, domain.ExplanationFactor{
			Factor: "최근 조회 많음",
			Detail: fmt.Sprintf("최근 3개월 신용조회 %d건", report.Inquiries3M),
			Impact: domain.ImpactMedium,
		})
	}
	if report.OpenLoans >= 4 {
		neg = append(neg, domain.ExplanationFactor{
			Factor: "보유 대출 많음",
			Detail: fmt.Sprintf("기존 대출 %d건 보유", report.OpenLoans),
			Impact: domain.ImpactMedium,
		})
	}
	if applicant.IsSoleProprietor() && applicant.SoleProprietor.BusinessDurationMonths < 24 {
		neg = append(neg, domain.ExplanationFactor{
			Factor: "사업기간 짧음",
			Detail: fmt.Sprintf("사업 영위 %d개월", applicant.SoleProprietor.BusinessDurationMonths),
			Impact: domain.ImpactMedium,
		})
	}

	if len(pos) > 3 {
		pos = pos[:3]
	}
	if len(neg) > 3 {
		neg = neg[:3]
	}
	return pos, neg
}

// finiteDSR caps an infinite ratio (zero income) at the 999 sentinel
// carried over from legacy reporting, keeping the value serializable.
func finiteDSR(v float64) float64 {
	if math.IsInf(v, 1) || v > 999 {
		return 999
	}
	return v
}
