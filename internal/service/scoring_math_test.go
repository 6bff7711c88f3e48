package service

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
)

func TestScoreFromPD_AnchorPoint(t *testing.T) {
	// 7.2% PD is the scale anchor: exactly 600 points.
	if got := ScoreFromPD(0.072); got != 600 {
		t.Errorf("Expected 600 at the anchor PD, got %d", got)
	}
}

func TestScoreFromPD_FortyPointsPerOddsDoubling(t *testing.T) {
	// Anchor odds are 9/116. Doubling them gives PD 9/67, halving 9/241.
	if got := ScoreFromPD(9.0 / 67.0); got != 560 {
		t.Errorf("Expected 560 when odds double, got %d", got)
	}
	if got := ScoreFromPD(9.0 / 241.0); got != 640 {
		t.Errorf("Expected 640 when odds halve, got %d", got)
	}
}

func TestScoreFromPD_DegenerateInputs(t *testing.T) {
	tests := []struct {
		name string
		pd   float64
		want int
	}{
		{"nan pins to floor", math.NaN(), domain.MinScore},
		{"certain default pins to floor", 1.0, domain.MinScore},
		{"above one pins to floor", 1.5, domain.MinScore},
		{"zero pins to ceiling", 0.0, domain.MaxScore},
		{"negative pins to ceiling", -0.2, domain.MaxScore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScoreFromPD(tt.pd); got != tt.want {
				t.Errorf("ScoreFromPD(%v) = %d, want %d", tt.pd, got, tt.want)
			}
		})
	}
}

func TestScoreFromPD_ClampsToScale(t *testing.T) {
	// Tiny but positive PDs overflow the raw scale and clamp at 900.
	if got := ScoreFromPD(1e-12); got != domain.MaxScore {
		t.Errorf("Expected ceiling clamp for tiny PD, got %d", got)
	}
	// Near-certain default clamps at 300.
	if got := ScoreFromPD(0.9999); got != domain.MinScore {
		t.Errorf("Expected floor clamp for near-one PD, got %d", got)
	}
}

func TestScoreFromPD_Monotonic(t *testing.T) {
	pds := []float64{0.005, 0.02, 0.072, 0.15, 0.30, 0.60, 0.90}
	prev := domain.MaxScore + 1
	for _, pd := range pds {
		score := ScoreFromPD(pd)
		if score >= prev {
			t.Errorf("Score must fall as PD rises: PD %v gave %d after %d", pd, score, prev)
		}
		prev = score
	}
}

func TestScoreFromPD_HighRiskValue(t *testing.T) {
	// odds(0.9)/odds(0.072) = 116 exactly, so the raw score is
	// 600 - (40/ln2)*ln(116) = 325.68.
	if got := ScoreFromPD(0.9); got != 326 {
		t.Errorf("Expected 326 for PD 0.9, got %d", got)
	}
}

func TestClampPD(t *testing.T) {
	tests := []struct {
		pd   float64
		want float64
	}{
		{0.0, 0.001},
		{0.0005, 0.001},
		{0.05, 0.05},
		{0.999, 0.999},
		{1.5, 0.999},
	}
	for _, tt := range tests {
		if got := ClampPD(tt.pd); got != tt.want {
			t.Errorf("ClampPD(%v) = %v, want %v", tt.pd, got, tt.want)
		}
	}
}

func TestCalibrationBin(t *testing.T) {
	tests := []struct {
		pd   float64
		want int32
	}{
		{0.0, 0},
		{0.05, 0},
		{0.15, 1},
		{0.55, 5},
		{0.95, 9},
		{0.999, 9},
		{1.0, 9},
		{-0.5, 0},
	}
	for _, tt := range tests {
		if got := CalibrationBin(tt.pd); got != tt.want {
			t.Errorf("CalibrationBin(%v) = %d, want %d", tt.pd, got, tt.want)
		}
	}
}

func TestFlatNewMonthly(t *testing.T) {
	got := FlatNewMonthly(decimal.NewFromInt(10_000_000))
	if got != 50_000 {
		t.Errorf("Expected 50000 monthly on a 10M facility, got %v", got)
	}
}

func TestAmortizedMonthly_ZeroRate(t *testing.T) {
	got := AmortizedMonthly(decimal.NewFromInt(12_000_000), 0, 12)
	if got != 1_000_000 {
		t.Errorf("Expected straight division at zero rate, got %v", got)
	}
}

func TestAmortizedMonthly_NonPositiveTermFallsBackToFlat(t *testing.T) {
	principal := decimal.NewFromInt(12_000_000)
	want := FlatNewMonthly(principal)
	if got := AmortizedMonthly(principal, 0.05, 0); got != want {
		t.Errorf("Expected flat approximation %v for zero term, got %v", want, got)
	}
	if got := AmortizedMonthly(principal, 0.05, -6); got != want {
		t.Errorf("Expected flat approximation %v for negative term, got %v", want, got)
	}
}

func TestAmortizedMonthly_LevelPayment(t *testing.T) {
	// 100M over 30 years at 5%: the level payment is 536,822 KRW.
	got := AmortizedMonthly(decimal.NewFromInt(100_000_000), 0.05, 360)
	if math.Abs(got-536_822) > 5 {
		t.Errorf("Expected 536822 within 5, got %v", got)
	}
}

func TestDSR(t *testing.T) {
	income := decimal.NewFromInt(60_000_000)
	existing := decimal.NewFromInt(1_000_000)

	got := DSR(income, existing, 500_000)
	if got != 0.3 {
		t.Errorf("Expected DSR 0.3, got %v", got)
	}
}

func TestDSR_NonPositiveIncomeIsInfinite(t *testing.T) {
	if got := DSR(decimal.Zero, decimal.NewFromInt(100_000), 0); !math.IsInf(got, 1) {
		t.Errorf("Expected +Inf on zero income, got %v", got)
	}
	if got := DSR(decimal.NewFromInt(-1), decimal.Zero, 0); !math.IsInf(got, 1) {
		t.Errorf("Expected +Inf on negative income, got %v", got)
	}
}

func TestStressDSR_MatchesAmortizedAtStressedRate(t *testing.T) {
	income := decimal.NewFromInt(120_000_000)
	existing := decimal.NewFromInt(500_000)
	principal := decimal.NewFromInt(300_000_000)

	// With no add-on the stressed rate is the 5% base.
	want := DSR(income, existing, AmortizedMonthly(principal, 0.05, 360))
	if got := StressDSR(income, existing, principal, 0, 360); got != want {
		t.Errorf("Expected %v with zero add-on, got %v", want, got)
	}

	// A positive add-on must raise the ratio.
	stressed := StressDSR(income, existing, principal, 3.0, 360)
	if stressed <= want {
		t.Errorf("Expected stressed DSR above %v, got %v", want, stressed)
	}
}

func TestLTV(t *testing.T) {
	ltv, ok := LTV(decimal.NewFromInt(400_000_000), decimal.NewFromInt(500_000_000))
	if !ok {
		t.Fatal("Expected LTV to be computable")
	}
	if ltv != 0.8 {
		t.Errorf("Expected LTV 0.8, got %v", ltv)
	}

	if _, ok := LTV(decimal.NewFromInt(400_000_000), decimal.Zero); ok {
		t.Error("Expected no LTV without collateral value")
	}
}

func TestExposureAtDefault_TermLending(t *testing.T) {
	requested := decimal.NewFromInt(50_000_000)
	got := ExposureAtDefault(domain.ProductCredit, requested, nil, nil, 0.5)
	if !got.Equal(requested) {
		t.Errorf("Expected requested amount for term lending, got %s", got)
	}
}

func TestExposureAtDefault_Revolving(t *testing.T) {
	line := decimal.NewFromInt(10_000_000)
	balance := decimal.NewFromInt(4_000_000)

	got := ExposureAtDefault(domain.ProductRevolving, decimal.Zero, &line, &balance, 0.5)
	if !got.Equal(decimal.NewFromInt(7_000_000)) {
		t.Errorf("Expected 7M (4M drawn + 50%% of 6M undrawn), got %s", got)
	}
}

func TestExposureAtDefault_RevolvingNilBalance(t *testing.T) {
	line := decimal.NewFromInt(10_000_000)
	got := ExposureAtDefault(domain.ProductRevolving, decimal.Zero, &line, nil, 0.5)
	if !got.Equal(decimal.NewFromInt(5_000_000)) {
		t.Errorf("Expected CCF on the full line, got %s", got)
	}
}

func TestExposureAtDefault_OverdrawnLine(t *testing.T) {
	line := decimal.NewFromInt(10_000_000)
	balance := decimal.NewFromInt(12_000_000)

	// Negative undrawn clamps to zero: EAD is the drawn balance.
	got := ExposureAtDefault(domain.ProductRevolving, decimal.Zero, &line, &balance, 0.5)
	if !got.Equal(balance) {
		t.Errorf("Expected drawn balance for overdrawn line, got %s", got)
	}
}

func TestExposureAtDefault_RevolvingWithoutLine(t *testing.T) {
	requested := decimal.NewFromInt(5_000_000)
	got := ExposureAtDefault(domain.ProductRevolving, requested, nil, nil, 0.5)
	if !got.Equal(requested) {
		t.Errorf("Expected requested amount when no line is known, got %s", got)
	}
}

func TestEconomicCapital(t *testing.T) {
	got := EconomicCapital(decimal.NewFromInt(7_000_000), 0.75)
	if !got.Equal(decimal.NewFromInt(420_000)) {
		t.Errorf("Expected 420000 (7M x 0.75 x 8%%), got %s", got)
	}
}

func TestRAROC(t *testing.T) {
	ead := decimal.NewFromInt(10_000_000)
	ec := decimal.NewFromInt(600_000)

	// (8% x 10M - 0.02 x 0.45 x 10M) / 600k = 710k / 600k
	got := RAROC(8.0, 0.02, 0.45, ead, ec)
	if math.Abs(got-1.1833333333) > 1e-9 {
		t.Errorf("Expected RAROC 1.1833, got %v", got)
	}
}

func TestRAROC_ZeroCapital(t *testing.T) {
	if got := RAROC(8.0, 0.02, 0.45, decimal.Zero, decimal.Zero); got != 0 {
		t.Errorf("Expected 0 on zero economic capital, got %v", got)
	}
}

func TestFiniteDSR(t *testing.T) {
	if got := finiteDSR(math.Inf(1)); got != 999 {
		t.Errorf("Expected 999 sentinel for infinite DSR, got %v", got)
	}
	if got := finiteDSR(1500); got != 999 {
		t.Errorf("Expected 999 sentinel above the cap, got %v", got)
	}
	if got := finiteDSR(42.5); got != 42.5 {
		t.Errorf("Expected pass-through below the cap, got %v", got)
	}
}
