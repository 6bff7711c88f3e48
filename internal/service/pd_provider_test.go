package service

import (
	"context"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func primeFeatures() *ScoringFeatures {
	return &ScoringFeatures{
		CBScore:        820,
		DSRPercent:     20,
		AnnualIncome:   decimal.NewFromInt(80_000_000),
		IncomeVerified: true,
	}
}

func TestStatisticalPD_PrimeBorrower(t *testing.T) {
	provider := NewStatisticalPDProvider()

	result, err := provider.RawPD(context.Background(), primeFeatures())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Source != PDSourceStatistical {
		t.Errorf("Expected statistical source, got %s", result.Source)
	}
	if result.ModelVersion != StatisticalModelVersion {
		t.Errorf("Expected %s, got %s", StatisticalModelVersion, result.ModelVersion)
	}
	// -3.5 - 2.16 (bureau) + 0.243 (income) = -5.42 log-odds.
	if result.RawPD > 0.01 {
		t.Errorf("Expected a prime PD below 1%%, got %v", result.RawPD)
	}
}

func TestStatisticalPD_RiskyBorrower(t *testing.T) {
	provider := NewStatisticalPDProvider()

	result, err := provider.RawPD(context.Background(), &ScoringFeatures{
		CBScore:                520,
		Delinquencies12M:       2,
		WorstDelinquencyStatus: 1,
		DSRPercent:             55,
		Inquiries3M:            4,
		AnnualIncome:           decimal.NewFromInt(20_000_000),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.RawPD < 0.9 {
		t.Errorf("Expected a near-certain PD for stacked risk factors, got %v", result.RawPD)
	}
}

func TestStatisticalPD_AltDataLowersPD(t *testing.T) {
	provider := NewStatisticalPDProvider()
	ctx := context.Background()

	base, err := provider.RawPD(ctx, primeFeatures())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	enriched := primeFeatures()
	enriched.TelecomPaidRegularly = true
	enriched.HealthInsuranceMonths = 24
	withAlt, err := provider.RawPD(ctx, enriched)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if withAlt.RawPD >= base.RawPD {
		t.Errorf("Expected alternative data to lower the PD: %v vs %v", withAlt.RawPD, base.RawPD)
	}
}

func TestStatisticalPD_SOHOPenalties(t *testing.T) {
	provider := NewStatisticalPDProvider()
	ctx := context.Background()

	plain, _ := provider.RawPD(ctx, primeFeatures())

	established := primeFeatures()
	established.IsSOHO = true
	established.BusinessDurationMonths = 36
	established.TaxFilings3Y = 3
	establishedPD, _ := provider.RawPD(ctx, established)

	young := primeFeatures()
	young.IsSOHO = true
	young.BusinessDurationMonths = 12
	young.TaxFilings3Y = 1
	youngPD, _ := provider.RawPD(ctx, young)

	if establishedPD.RawPD <= plain.RawPD {
		t.Errorf("Expected SOHO base penalty: %v vs %v", establishedPD.RawPD, plain.RawPD)
	}
	if youngPD.RawPD <= establishedPD.RawPD {
		t.Errorf("Expected short history and thin filings to add risk: %v vs %v", youngPD.RawPD, establishedPD.RawPD)
	}
}

func TestStatisticalPD_ZeroIncomeGuard(t *testing.T) {
	provider := NewStatisticalPDProvider()

	features := primeFeatures()
	features.AnnualIncome = decimal.Zero
	result, err := provider.RawPD(context.Background(), features)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if math.IsNaN(result.RawPD) || math.IsInf(result.RawPD, 0) {
		t.Fatalf("Expected a finite PD for zero income, got %v", result.RawPD)
	}
	if result.RawPD < 0.9 {
		t.Errorf("Expected zero income to dominate the score, got %v", result.RawPD)
	}
}

const stumpArtifact = `{
	"version": "gbdt-2025.1",
	"features": ["cb_score"],
	"baseLogOdds": -2.0,
	"learningRate": 0.5,
	"trees": [[
		{"feature": 0, "threshold": 700, "left": 1, "right": 2},
		{"feature": -1, "value": 1.0},
		{"feature": -1, "value": -1.0}
	]]
}`

func TestParseGBDTModel(t *testing.T) {
	model, err := ParseGBDTModel([]byte(stumpArtifact))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if model.Version != "gbdt-2025.1" {
		t.Errorf("Expected version gbdt-2025.1, got %s", model.Version)
	}
	if model.LearningRate != 0.5 {
		t.Errorf("Expected learning rate 0.5, got %v", model.LearningRate)
	}
}

func TestParseGBDTModel_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed json", `{"version": `},
		{"missing version", `{"features": ["cb_score"], "trees": [[{"feature": -1, "value": 0}]]}`},
		{"no trees", `{"version": "v1", "features": ["cb_score"], "trees": []}`},
		{"no features", `{"version": "v1", "features": [], "trees": [[{"feature": -1, "value": 0}]]}`},
		{"feature out of range", `{"version": "v1", "features": ["cb_score"], "trees": [[{"feature": 1, "threshold": 1, "left": 1, "right": 2}, {"feature": -1}, {"feature": -1}]]}`},
		{"dangling children", `{"version": "v1", "features": ["cb_score"], "trees": [[{"feature": 0, "threshold": 1, "left": 5, "right": 1}, {"feature": -1}]]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseGBDTModel([]byte(tt.data)); err == nil {
				t.Error("Expected a parse error")
			}
		})
	}
}

func TestParseGBDTModel_DefaultLearningRate(t *testing.T) {
	data := `{"version": "v1", "features": ["cb_score"], "trees": [[{"feature": -1, "value": 0.5}]]}`
	model, err := ParseGBDTModel([]byte(data))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if model.LearningRate != 1 {
		t.Errorf("Expected learning rate to default to 1, got %v", model.LearningRate)
	}
}

func TestGBDTModel_RawPD(t *testing.T) {
	model, err := ParseGBDTModel([]byte(stumpArtifact))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// cb 650 takes the left leaf: sigmoid(-2 + 0.5*1) = 0.1824.
	low := model.RawPD(&ScoringFeatures{CBScore: 650})
	if math.Abs(low-0.1824) > 0.0005 {
		t.Errorf("Expected PD 0.1824 below the split, got %v", low)
	}

	// cb 800 takes the right leaf: sigmoid(-2 - 0.5) = 0.0759.
	high := model.RawPD(&ScoringFeatures{CBScore: 800})
	if math.Abs(high-0.0759) > 0.0005 {
		t.Errorf("Expected PD 0.0759 above the split, got %v", high)
	}

	// The boundary value goes left.
	boundary := model.RawPD(&ScoringFeatures{CBScore: 700})
	if boundary != low {
		t.Errorf("Expected the boundary to take the left branch: %v vs %v", boundary, low)
	}
}

func TestFeatureValue(t *testing.T) {
	f := &ScoringFeatures{
		CBScore:               720,
		DSRPercent:            35.5,
		AnnualIncome:          decimal.NewFromInt(60_000_000),
		IncomeVerified:        true,
		TelecomPaidRegularly:  false,
		HealthInsuranceMonths: 18,
		IsSOHO:                true,
	}
	tests := []struct {
		name string
		want float64
	}{
		{"cb_score", 720},
		{"dsr_percent", 35.5},
		{"annual_income", 60_000_000},
		{"income_verified", 1},
		{"telecom_regular", 0},
		{"health_insurance_months", 18},
		{"is_soho", 1},
		{"feature_not_in_this_build", 0},
	}
	for _, tt := range tests {
		if got := featureValue(f, tt.name); got != tt.want {
			t.Errorf("featureValue(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestModelRegistry(t *testing.T) {
	registry := NewModelRegistry()
	if registry.Current() != nil {
		t.Fatal("Expected an empty registry at start")
	}

	model, err := registry.Deploy([]byte(stumpArtifact))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if current := registry.Current(); current == nil || current.Version != model.Version {
		t.Errorf("Expected the deployed model to serve, got %+v", current)
	}

	// A bad artifact must not displace the serving model.
	if _, err := registry.Deploy([]byte(`{"version":""}`)); err == nil {
		t.Error("Expected a deploy error for an invalid artifact")
	}
	if current := registry.Current(); current == nil || current.Version != "gbdt-2025.1" {
		t.Errorf("Expected the previous model to keep serving, got %+v", current)
	}

	registry.Retire()
	if registry.Current() != nil {
		t.Error("Expected nil after retirement")
	}
}

func TestCompositePDProvider_FallsBackToStatistical(t *testing.T) {
	registry := NewModelRegistry()
	provider := NewCompositePDProvider(registry)
	ctx := context.Background()

	result, err := provider.RawPD(ctx, primeFeatures())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Source != PDSourceStatistical {
		t.Errorf("Expected statistical fallback without a champion, got %s", result.Source)
	}

	if _, err := registry.Deploy([]byte(stumpArtifact)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	result, err = provider.RawPD(ctx, primeFeatures())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Source != PDSourceModel {
		t.Errorf("Expected the champion model to serve, got %s", result.Source)
	}
	if result.ModelVersion != "gbdt-2025.1" {
		t.Errorf("Expected the champion version on the result, got %s", result.ModelVersion)
	}

	registry.Retire()
	result, err = provider.RawPD(ctx, primeFeatures())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Source != PDSourceStatistical {
		t.Errorf("Expected statistical after retirement, got %s", result.Source)
	}
}
