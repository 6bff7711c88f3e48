package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// StatisticalModelVersion names the built-in fallback scorecard.
const StatisticalModelVersion = "statistical-v1"

// PD sources recorded on the score row.
const (
	PDSourceModel       = "model"
	PDSourceStatistical = "statistical"
)

// ScoringFeatures is the assembled input vector for PD estimation.
type ScoringFeatures struct {
	CBScore                int
	Delinquencies12M       int
	WorstDelinquencyStatus int
	Inquiries3M            int
	OpenLoans              int
	DSRPercent             float64
	AnnualIncome           decimal.Decimal
	IncomeVerified         bool
	TelecomPaidRegularly   bool
	HealthInsuranceMonths  int32
	IsSOHO                 bool
	BusinessDurationMonths int32
	TaxFilings3Y           int32
}

// PDResult is a raw default probability before industry adjustment.
type PDResult struct {
	RawPD        float64
	ModelVersion string
	Source       string
}

// PDProvider estimates a raw PD from the feature vector.
type PDProvider interface {
	RawPD(ctx context.Context, features *ScoringFeatures) (*PDResult, error)
}

// StatisticalPDProvider is the expert scorecard used when no trained
// champion model is deployed. Coefficients were fitted on pooled
// bureau data and reviewed by the model risk committee.
type StatisticalPDProvider struct{}

func NewStatisticalPDProvider() *StatisticalPDProvider {
	return &StatisticalPDProvider{}
}

func (p *StatisticalPDProvider) RawPD(_ context.Context, f *ScoringFeatures) (*PDResult, error) {
	logOdds := -3.5

	logOdds += float64(f.CBScore-700) / 100 * -1.8
	logOdds += 0.6 * float64(f.Delinquencies12M)
	logOdds += 0.8 * float64(f.WorstDelinquencyStatus)

	if over := f.DSRPercent - 40; over > 0 {
		logOdds += 0.03 * over
	}

	income := f.AnnualIncome.InexactFloat64()
	if income < 1 {
		income = 1
	}
	logOdds += 0.5 * math.Log(1+50_000_000/income)

	logOdds += 0.3 * float64(f.Inquiries3M)

	if f.TelecomPaidRegularly {
		logOdds -= 0.3
	}
	logOdds -= 0.4 * float64(f.HealthInsuranceMonths) / 12

	if f.IsSOHO {
		logOdds += 0.3
		if f.BusinessDurationMonths < 24 {
			logOdds += 0.4
		}
		if f.TaxFilings3Y < 2 {
			logOdds += 0.3
		}
	}

	return &PDResult{
		RawPD:        sigmoid(logOdds),
		ModelVersion: StatisticalModelVersion,
		Source:       PDSourceStatistical,
	}, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// treeNode is one node of a boosted tree. Feature -1 marks a leaf.
type treeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// GBDTModel is a gradient-boosted scorecard exported to JSON at
// training time and evaluated natively here.
type GBDTModel struct {
	Version      string       `json:"version"`
	Features     []string     `json:"features"`
	BaseLogOdds  float64      `json:"baseLogOdds"`
	LearningRate float64      `json:"learningRate"`
	Trees        [][]treeNode `json:"trees"`
}

// ParseGBDTModel decodes and validates a model artifact.
func ParseGBDTModel(data []byte) (*GBDTModel, error) {
	var m GBDTModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse model artifact: %w", err)
	}
	if m.Version == "" {
		return nil, fmt.Errorf("model artifact missing version")
	}
	if len(m.Features) == 0 || len(m.Trees) == 0 {
		return nil, fmt.Errorf("model artifact %s has no features or trees", m.Version)
	}
	if m.LearningRate == 0 {
		m.LearningRate = 1
	}
	for ti, tree := range m.Trees {
		for ni, n := range tree {
			if n.Feature >= len(m.Features) {
				return nil, fmt.Errorf("model artifact %s: tree %d node %d references feature %d", m.Version, ti, ni, n.Feature)
			}
			if n.Feature >= 0 && (n.Left < 0 || n.Left >= len(tree) || n.Right < 0 || n.Right >= len(tree)) {
				return nil, fmt.Errorf("model artifact %s: tree %d node %d has dangling children", m.Version, ti, ni)
			}
		}
	}
	return &m, nil
}

// featureValue resolves a named model feature from the vector. Unknown
// names evaluate to zero so older artifacts keep working.
func featureValue(f *ScoringFeatures, name string) float64 {
	switch name {
	case "cb_score":
		return float64(f.CBScore)
	case "delinquencies_12m":
		return float64(f.Delinquencies12M)
	case "worst_delinquency_status":
		return float64(f.WorstDelinquencyStatus)
	case "inquiries_3m":
		return float64(f.Inquiries3M)
	case "open_loans":
		return float64(f.OpenLoans)
	case "dsr_percent":
		return f.DSRPercent
	case "annual_income":
		return f.AnnualIncome.InexactFloat64()
	case "income_verified":
		return boolFeature(f.IncomeVerified)
	case "telecom_regular":
		return boolFeature(f.TelecomPaidRegularly)
	case "health_insurance_months":
		return float64(f.HealthInsuranceMonths)
	case "is_soho":
		return boolFeature(f.IsSOHO)
	case "business_duration_months":
		return float64(f.BusinessDurationMonths)
	case "tax_filings_3y":
		return float64(f.TaxFilings3Y)
	default:
		return 0
	}
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (m *GBDTModel) scoreTree(tree []treeNode, vec []float64) float64 {
	idx := 0
	for {
		n := tree[idx]
		if n.Feature < 0 {
			return n.Value
		}
		if vec[n.Feature] <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
}

// RawPD evaluates the boosted ensemble for one feature vector.
func (m *GBDTModel) RawPD(f *ScoringFeatures) float64 {
	vec := make([]float64, len(m.Features))
	for i, name := range m.Features {
		vec[i] = featureValue(f, name)
	}
	logOdds := m.BaseLogOdds
	for _, tree := range m.Trees {
		logOdds += m.LearningRate * m.scoreTree(tree, vec)
	}
	return sigmoid(logOdds)
}

// ModelRegistry holds the deployed champion model. Swaps are atomic so
// in-flight scoring always sees a complete artifact.
type ModelRegistry struct {
	current atomic.Pointer[GBDTModel]
}

func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{}
}

// Deploy parses the artifact and makes it the serving model.
func (r *ModelRegistry) Deploy(data []byte) (*GBDTModel, error) {
	m, err := ParseGBDTModel(data)
	if err != nil {
		return nil, err
	}
	r.current.Store(m)
	log.Info().Str("model_version", m.Version).Int("trees", len(m.Trees)).Msg("Champion model deployed")
	return m, nil
}

// Current returns the serving model, or nil when none is deployed.
func (r *ModelRegistry) Current() *GBDTModel {
	return r.current.Load()
}

// Retire removes the serving model, falling scoring back to the
// statistical scorecard.
func (r *ModelRegistry) Retire() {
	r.current.Store(nil)
	log.Info().Msg("Champion model retired")
}

// CompositePDProvider serves the champion model when deployed and the
// statistical scorecard otherwise.
type CompositePDProvider struct {
	registry    *ModelRegistry
	statistical *StatisticalPDProvider
}

func NewCompositePDProvider(registry *ModelRegistry) *CompositePDProvider {
	return &CompositePDProvider{
		registry:    registry,
		statistical: NewStatisticalPDProvider(),
	}
}

func (p *CompositePDProvider) RawPD(ctx context.Context, f *ScoringFeatures) (*PDResult, error) {
	if m := p.registry.Current(); m != nil {
		return &PDResult{
			RawPD:        m.RawPD(f),
			ModelVersion: m.Version,
			Source:       PDSourceModel,
		}, nil
	}
	return p.statistical.RawPD(ctx, f)
}
