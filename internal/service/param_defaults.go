package service

import (
	"strings"
	"time"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
)

// Parameter store keys.
const (
	ParamDSRLimit      = "dsr.limit"
	ParamLTVPrefix     = "ltv."
	ParamStressPrefix  = "stress_dsr."
	ParamBaseRate      = "rate.base"
	ParamMaxInterest   = "rate.max_interest"
	ParamIncomeMult    = "income.multiplier"
	ParamEQPrefix      = "eq_grade.benefit."
	ParamSegmentPrefix = "segment.benefit."
	ParamCCFRevolving  = "ccf.revolving.default"
	ParamIRGPrefix     = "irg.pd_adjustment."
)

// CondRateType is the condition key carrying the pricing structure.
const CondRateType = "rate_type"

// CondEmploymentKind selects income multipliers by employment status.
const CondEmploymentKind = "employment_kind"

// CondProductType scopes limits to a loan product.
const CondProductType = "product_type"

// ParamEpoch is the effective date for seeds that predate phased rules.
var ParamEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Stress DSR phase boundaries.
var (
	StressPhase2Start = time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC)
	StressPhase2End   = time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)
	StressPhase3Start = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
)

const (
	seedAuthor   = "system_seed"
	seedApprover = "system_ops"
)

// compiledDefault supplies the hard-coded floor used when the store has
// no matching row. Stress DSR defaults carry the phased regulatory
// values, so an outage never collapses the stressed ratio to the plain
// one. Segment benefits deliberately have no default: an unknown
// segment code simply confers nothing.
func compiledDefault(key string, at time.Time, cond domain.ConditionMap) (domain.ParamValue, bool) {
	switch {
	case key == ParamDSRLimit:
		return domain.ParamValue{Kind: domain.KindLimitRatio, LimitRatio: &domain.LimitRatio{MaxRatio: 40}}, true
	case key == ParamLTVPrefix+string(domain.LTVRegionGeneral):
		return domain.ParamValue{Kind: domain.KindLimitRatio, LimitRatio: &domain.LimitRatio{MaxRatio: 70, MultiOwnerDeduction: 10}}, true
	case key == ParamLTVPrefix+string(domain.LTVRegionRegulated):
		return domain.ParamValue{Kind: domain.KindLimitRatio, LimitRatio: &domain.LimitRatio{MaxRatio: 60, MultiOwnerDeduction: 10}}, true
	case key == ParamLTVPrefix+string(domain.LTVRegionSpeculation):
		return domain.ParamValue{Kind: domain.KindLimitRatio, LimitRatio: &domain.LimitRatio{MaxRatio: 40, MultiOwnerDeduction: 10}}, true
	case key == ParamBaseRate:
		return domain.ParamValue{Kind: domain.KindScalar, Scalar: &domain.Scalar{Value: 3.5}}, true
	case key == ParamMaxInterest:
		return domain.ParamValue{Kind: domain.KindScalar, Scalar: &domain.Scalar{Value: 20}}, true
	case key == ParamIncomeMult:
		// Conservative multiplier for employment kinds without a
		// seeded row.
		return domain.ParamValue{Kind: domain.KindIncomeMultiplier, IncomeMultiplier: &domain.IncomeMultiplier{Times: 1.0}}, true
	case key == ParamCCFRevolving:
		return domain.ParamValue{Kind: domain.KindCreditConversion, CreditConversion: &domain.CreditConversion{Ratio: 0.50}}, true
	case strings.HasPrefix(key, ParamStressPrefix):
		return stressDefault(domain.StressDSRRegion(strings.TrimPrefix(key, ParamStressPrefix)), at, domain.RateType(cond[CondRateType])), true
	case strings.HasPrefix(key, ParamIRGPrefix):
		adj := domain.IRGGrade(strings.TrimPrefix(key, ParamIRGPrefix)).PDAdjustment()
		return domain.ParamValue{Kind: domain.KindScalar, Scalar: &domain.Scalar{Value: adj}}, true
	case strings.HasPrefix(key, ParamEQPrefix):
		return domain.ParamValue{Kind: domain.KindEQBenefit, EQBenefit: &domain.EQBenefit{LimitMultiplier: 1.0, RateAdjustment: 0}}, true
	default:
		return domain.ParamValue{}, false
	}
}

// stressDefault mirrors the seeded stress DSR table for the phase
// containing `at`: fixed-rate products are exempt, mixed products scale
// the variable add-on by the statutory apply ratio, and unseeded
// regions get the stricter non-metropolitan values.
func stressDefault(region domain.StressDSRRegion, at time.Time, rateType domain.RateType) domain.ParamValue {
	phase2, phase3 := 1.50, 3.00
	if region == domain.RegionMetropolitan {
		phase2, phase3 = 0.75, 1.50
	}

	rate := 0.0
	switch {
	case at.Before(StressPhase2Start):
	case at.Before(StressPhase3Start):
		rate = phase2
	default:
		rate = phase3
	}

	apply := 1.0
	switch rateType {
	case domain.RateFixed:
		rate = 0
	case domain.RateMixedShort:
		apply = 0.6
	case domain.RateMixedLong:
		apply = 0.3
	}
	return stressValue(rate, apply)
}

// categoryForKey derives the admin-console category from the key's
// first dotted segment.
func categoryForKey(key string) string {
	if i := strings.IndexByte(key, '.'); i > 0 {
		return key[:i]
	}
	return key
}

func seedRow(key string, value domain.ParamValue, cond domain.ConditionMap, from time.Time, to *time.Time, reason string) *domain.RegulationParam {
	return &domain.RegulationParam{
		ParamKey:      key,
		Category:      categoryForKey(key),
		Value:         value,
		Condition:     cond,
		EffectiveFrom: from,
		EffectiveTo:   to,
		IsActive:      true,
		ChangeReason:  reason,
		CreatedBy:     seedAuthor,
		ApprovedBy:    seedApprover,
	}
}

func withPhase(p *domain.RegulationParam, label string) *domain.RegulationParam {
	p.PhaseLabel = &label
	return p
}

func withLegalBasis(p *domain.RegulationParam, basis string) *domain.RegulationParam {
	p.LegalBasis = &basis
	return p
}

func stressValue(ratePP, applyRatio float64) domain.ParamValue {
	return domain.ParamValue{Kind: domain.KindStressRate, StressRate: &domain.StressRate{Rate: ratePP, ApplyRatio: applyRatio}}
}

func scalarValue(v float64) domain.ParamValue {
	return domain.ParamValue{Kind: domain.KindScalar, Scalar: &domain.Scalar{Value: v}}
}

// stressSeedsFor emits the per-region stress DSR rows: a fixed-rate
// exemption from the epoch, then variable and mixed rows per phase.
// Mixed products carry the phase's variable add-on scaled by the
// statutory apply ratio.
func stressSeedsFor(region domain.StressDSRRegion, phase2Rate, phase3Rate float64) []*domain.RegulationParam {
	key := ParamStressPrefix + string(region)
	phase2End := StressPhase2End
	const (
		phase2Reason = "스트레스 DSR 2단계 시행"
		phase3Reason = "스트레스 DSR 3단계 시행"
	)
	cond := func(rt domain.RateType) domain.ConditionMap {
		return domain.ConditionMap{CondRateType: string(rt)}
	}
	return []*domain.RegulationParam{
		seedRow(key, stressValue(0, 1), cond(domain.RateFixed), ParamEpoch, nil, "고정금리 스트레스 면제"),

		withPhase(seedRow(key, stressValue(phase2Rate, 1), cond(domain.RateVariable), StressPhase2Start, &phase2End, phase2Reason), "phase2"),
		withPhase(seedRow(key, stressValue(phase2Rate, 0.6), cond(domain.RateMixedShort), StressPhase2Start, &phase2End, phase2Reason), "phase2"),
		withPhase(seedRow(key, stressValue(phase2Rate, 0.3), cond(domain.RateMixedLong), StressPhase2Start, &phase2End, phase2Reason), "phase2"),

		withPhase(seedRow(key, stressValue(phase3Rate, 1), cond(domain.RateVariable), StressPhase3Start, nil, phase3Reason), "phase3"),
		withPhase(seedRow(key, stressValue(phase3Rate, 0.6), cond(domain.RateMixedShort), StressPhase3Start, nil, phase3Reason), "phase3"),
		withPhase(seedRow(key, stressValue(phase3Rate, 0.3), cond(domain.RateMixedLong), StressPhase3Start, nil, phase3Reason), "phase3"),
	}
}

func limitRatioValue(max, deduction float64) domain.ParamValue {
	return domain.ParamValue{Kind: domain.KindLimitRatio, LimitRatio: &domain.LimitRatio{MaxRatio: max, MultiOwnerDeduction: deduction}}
}

func eqBenefitValue(limitMult, rateAdj float64) domain.ParamValue {
	return domain.ParamValue{Kind: domain.KindEQBenefit, EQBenefit: &domain.EQBenefit{LimitMultiplier: limitMult, RateAdjustment: rateAdj}}
}

// SeedParams returns the full regulatory baseline. The seed command
// inserts these, skipping rows whose (key, effectiveFrom) already exist.
func SeedParams() []*domain.RegulationParam {
	var rows []*domain.RegulationParam

	rows = append(rows, stressSeedsFor(domain.RegionMetropolitan, 0.75, 1.50)...)
	rows = append(rows, stressSeedsFor(domain.RegionNonMetropolitan, 1.50, 3.00)...)

	rows = append(rows,
		withLegalBasis(seedRow(ParamLTVPrefix+string(domain.LTVRegionGeneral), limitRatioValue(70, 10), nil, ParamEpoch, nil, "LTV 일반지역 기준"), "은행업감독규정 별표6"),
		withLegalBasis(seedRow(ParamLTVPrefix+string(domain.LTVRegionRegulated), limitRatioValue(60, 10), nil, ParamEpoch, nil, "LTV 조정대상지역 기준"), "은행업감독규정 별표6"),
		withLegalBasis(seedRow(ParamLTVPrefix+string(domain.LTVRegionSpeculation), limitRatioValue(40, 10), nil, ParamEpoch, nil, "LTV 투기과열지구 기준"), "은행업감독규정 별표6"),

		withLegalBasis(seedRow(ParamDSRLimit, limitRatioValue(40, 0), nil, ParamEpoch, nil, "차주단위 DSR 40% 기준"), "은행업감독규정 제29조의3"),

		withLegalBasis(seedRow(ParamMaxInterest, domain.ParamValue{Kind: domain.KindScalar, Scalar: &domain.Scalar{Value: 20}}, nil, ParamEpoch, nil, "법정 최고금리 20%"), "이자제한법 제2조"),
		seedRow(ParamBaseRate, domain.ParamValue{Kind: domain.KindScalar, Scalar: &domain.Scalar{Value: 3.5}}, nil, ParamEpoch, nil, "기준금리 설정"),

		seedRow(ParamIncomeMult, domain.ParamValue{Kind: domain.KindIncomeMultiplier, IncomeMultiplier: &domain.IncomeMultiplier{Times: 1.5}},
			domain.ConditionMap{CondEmploymentKind: string(domain.EmploymentEmployed)}, ParamEpoch, nil, "근로소득자 한도 배수"),
		seedRow(ParamIncomeMult, domain.ParamValue{Kind: domain.KindIncomeMultiplier, IncomeMultiplier: &domain.IncomeMultiplier{Times: 1.0}},
			domain.ConditionMap{CondEmploymentKind: string(domain.EmploymentSelfEmployed)}, ParamEpoch, nil, "자영업자 한도 배수"),

		seedRow(ParamCCFRevolving, domain.ParamValue{Kind: domain.KindCreditConversion, CreditConversion: &domain.CreditConversion{Ratio: 0.50}}, nil, ParamEpoch, nil, "리볼빙 신용환산율"),
	)

	irgReason := "산업위험등급별 PD 조정"
	rows = append(rows,
		seedRow(ParamIRGPrefix+string(domain.IRGLow), scalarValue(-0.10), nil, ParamEpoch, nil, irgReason),
		seedRow(ParamIRGPrefix+string(domain.IRGMedium), scalarValue(0), nil, ParamEpoch, nil, irgReason),
		seedRow(ParamIRGPrefix+string(domain.IRGHigh), scalarValue(0.15), nil, ParamEpoch, nil, irgReason),
		seedRow(ParamIRGPrefix+string(domain.IRGVeryHigh), scalarValue(0.30), nil, ParamEpoch, nil, irgReason),
	)

	eqReason := "기업 신용등급별 우대 기준"
	rows = append(rows,
		seedRow(ParamEQPrefix+string(domain.EQGradeS), eqBenefitValue(2.0, -0.5), nil, ParamEpoch, nil, eqReason),
		seedRow(ParamEQPrefix+string(domain.EQGradeA), eqBenefitValue(1.8, -0.3), nil, ParamEpoch, nil, eqReason),
		seedRow(ParamEQPrefix+string(domain.EQGradeB), eqBenefitValue(1.5, -0.2), nil, ParamEpoch, nil, eqReason),
		seedRow(ParamEQPrefix+string(domain.EQGradeC), eqBenefitValue(1.2, 0), nil, ParamEpoch, nil, eqReason),
		seedRow(ParamEQPrefix+string(domain.EQGradeD), eqBenefitValue(1.0, 0.2), nil, ParamEpoch, nil, eqReason),
		seedRow(ParamEQPrefix+string(domain.EQGradeE), eqBenefitValue(0.7, 0.5), nil, ParamEpoch, nil, eqReason),
	)

	segReason := "우대 고객군 혜택 기준"
	minB := domain.EQGradeB
	minS := domain.EQGradeS
	ageMin, ageMax := int32(19), int32(34)
	segValue := func(b domain.SegmentBenefit) domain.ParamValue {
		sb := b
		return domain.ParamValue{Kind: domain.KindSegmentBenefit, SegmentBenefit: &sb}
	}
	rows = append(rows,
		seedRow(ParamSegmentPrefix+domain.SegmentDoctor,
			segValue(domain.SegmentBenefit{GuaranteedMinEQ: &minB, LimitMultiplier: 3.0, RateDiscount: -0.3}), nil, ParamEpoch, nil, segReason),
		seedRow(ParamSegmentPrefix+domain.SegmentJudicial,
			segValue(domain.SegmentBenefit{GuaranteedMinEQ: &minB, LimitMultiplier: 2.5, RateDiscount: -0.2}), nil, ParamEpoch, nil, segReason),
		seedRow(ParamSegmentPrefix+domain.SegmentArtist,
			segValue(domain.SegmentBenefit{IncomeSmoothingMonths: 12, GuaranteeLink: true}), nil, ParamEpoch, nil, segReason),
		seedRow(ParamSegmentPrefix+domain.SegmentYouth,
			segValue(domain.SegmentBenefit{RateDiscount: -0.5, AgeMin: &ageMin, AgeMax: &ageMax}), nil, ParamEpoch, nil, segReason),
		seedRow(ParamSegmentPrefix+domain.SegmentMilitary,
			segValue(domain.SegmentBenefit{GuaranteedMinEQ: &minS, LimitMultiplier: 2.0, RateDiscount: -0.5}), nil, ParamEpoch, nil, segReason),
		seedRow(ParamSegmentPrefix+domain.SegmentMOUGeneric,
			segValue(domain.SegmentBenefit{LimitMultiplier: 1.5, RateDiscount: -0.3}), nil, ParamEpoch, nil, segReason),
	)

	return rows
}
