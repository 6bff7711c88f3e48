package service

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
)

// Score scaling anchors: 600 points at 7.2% PD, 40 points to double the odds.
const (
	scoreBasePoints = 600.0
	pointsToDouble  = 40.0
	anchorPD        = 0.072

	oddsClampEpsilon = 1e-6
	pdFloor          = 1e-3
	pdCeil           = 0.999

	// Flat approximation of the monthly debt service per won borrowed,
	// used for plain DSR where the repayment schedule is unknown.
	flatServiceRate = 0.005

	stressBaseAnnualRate = 0.05

	capitalRatio = 0.08
)

func odds(p float64) float64 {
	return p / (1 - p)
}

// ScoreFromPD maps a default probability onto the 300-900 master scale.
// Degenerate inputs pin to the scale ends; everything else is clamped
// away from 0 and 1 before the odds transform.
func ScoreFromPD(pd float64) int {
	if math.IsNaN(pd) {
		return domain.MinScore
	}
	if pd >= 1 {
		return domain.MinScore
	}
	if pd <= 0 {
		return domain.MaxScore
	}
	p := math.Min(math.Max(pd, oddsClampEpsilon), 1-oddsClampEpsilon)
	factor := pointsToDouble / math.Ln2
	raw := scoreBasePoints - factor*math.Log(odds(p)/odds(anchorPD))
	score := int(math.Round(raw))
	if score < domain.MinScore {
		return domain.MinScore
	}
	if score > domain.MaxScore {
		return domain.MaxScore
	}
	return score
}

// ClampPD applies the regulatory floor and ceiling to a final PD.
func ClampPD(pd float64) float64 {
	return math.Min(math.Max(pd, pdFloor), pdCeil)
}

// CalibrationBin assigns a PD to one of ten equal-width bins.
func CalibrationBin(pd float64) int32 {
	bin := int32(pd * 10)
	if bin > 9 {
		return 9
	}
	if bin < 0 {
		return 0
	}
	return bin
}

// FlatNewMonthly approximates the added monthly debt service of a new
// facility without knowing its repayment schedule.
func FlatNewMonthly(amount decimal.Decimal) float64 {
	return amount.InexactFloat64() * flatServiceRate
}

// AmortizedMonthly computes the level payment for a fully amortizing
// loan. Zero or negative terms fall back to the flat approximation.
func AmortizedMonthly(principal decimal.Decimal, annualRate float64, termMonths int32) float64 {
	if termMonths <= 0 {
		return FlatNewMonthly(principal)
	}
	p := principal.InexactFloat64()
	m := annualRate / 12
	if m == 0 {
		return p / float64(termMonths)
	}
	return p * m / (1 - math.Pow(1+m, -float64(termMonths)))
}

// DSR is total monthly debt service over monthly income, as a fraction.
// Non-positive income yields +Inf so the ratio gate always trips.
func DSR(annualIncome, existingMonthly decimal.Decimal, newMonthly float64) float64 {
	income := annualIncome.InexactFloat64()
	if income <= 0 {
		return math.Inf(1)
	}
	return (existingMonthly.InexactFloat64() + newMonthly) / (income / 12)
}

// StressDSR recomputes DSR with the new facility amortized at the
// stressed rate: 5% base plus the phased add-on in percentage points.
func StressDSR(annualIncome, existingMonthly, principal decimal.Decimal, stressAddPP float64, termMonths int32) float64 {
	rate := stressBaseAnnualRate + stressAddPP/100
	return DSR(annualIncome, existingMonthly, AmortizedMonthly(principal, rate, termMonths))
}

// LTV is the requested amount over collateral value, as a fraction.
// The second return is false when no collateral value is available.
func LTV(requested, collateralValue decimal.Decimal) (float64, bool) {
	cv := collateralValue.InexactFloat64()
	if cv <= 0 {
		return 0, false
	}
	return requested.InexactFloat64() / cv, true
}

// ExposureAtDefault returns requested amount for term lending; for
// revolving lines it is drawn balance plus CCF on the undrawn portion.
func ExposureAtDefault(product domain.ProductType, requested decimal.Decimal, line, balance *decimal.Decimal, ccf float64) decimal.Decimal {
	if !product.IsRevolving() || line == nil {
		return requested
	}
	bal := decimal.Zero
	if balance != nil {
		bal = *balance
	}
	undrawn := line.Sub(bal)
	if undrawn.IsNegative() {
		undrawn = decimal.Zero
	}
	return bal.Add(undrawn.Mul(decimal.NewFromFloat(ccf)))
}

// EconomicCapital is EAD times risk weight times the capital ratio.
func EconomicCapital(ead decimal.Decimal, riskWeight float64) decimal.Decimal {
	return ead.Mul(decimal.NewFromFloat(riskWeight)).Mul(decimal.NewFromFloat(capitalRatio)).Round(0)
}

// RAROC is risk-adjusted return (interest income net of expected loss)
// over economic capital. Zero capital yields zero rather than dividing.
func RAROC(annualRatePct, pd, lgd float64, ead, economicCapital decimal.Decimal) float64 {
	ec := economicCapital.InexactFloat64()
	if ec == 0 {
		return 0
	}
	e := ead.InexactFloat64()
	income := annualRatePct / 100 * e
	expectedLoss := pd * lgd * e
	return (income - expectedLoss) / ec
}
