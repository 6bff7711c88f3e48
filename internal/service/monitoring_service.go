package service

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
)

const (
	// minMonitoringSamples is the floor below which reports degrade to
	// synthetic distributions.
	minMonitoringSamples = 100

	// maxMonitoringRows bounds any single monitoring query.
	maxMonitoringRows = 10_000

	// demoSeed keeps synthetic demo distributions reproducible.
	demoSeed = 42

	// trainingBadRate anchors target PSI to the development sample.
	trainingBadRate = 0.072

	// fallbackBadRate is reported when no recent scores exist.
	fallbackBadRate = 0.068

	dataSourceDatabase = "database"
	dataSourceDemo     = "demo"
)

// defaultMonitorFeatures is the application-scorecard feature list
// tracked for drift.
var defaultMonitorFeatures = []string{
	"cb_score",
	"income_annual_wan",
	"delinquency_count_12m",
	"dsr_ratio",
	"inquiry_count_3m",
	"open_loan_count",
	"debt_to_income",
	"employment_duration_months",
}

// PSISummaryInput selects the comparison windows for drift reports.
type PSISummaryInput struct {
	ModelVersion  string
	ReferenceDays int
	CurrentDays   int
	Features      []string
}

// PSISummary is the combined drift report: score, feature and target
// stability with an overall verdict.
type PSISummary struct {
	ComputedAt    time.Time            `json:"computedAt"`
	ModelVersion  string               `json:"modelVersion"`
	ReferenceDays int                  `json:"referencePeriodDays"`
	CurrentDays   int                  `json:"currentPeriodDays"`
	OverallStatus string               `json:"overallStatus"`
	ScorePSI      PSIResult            `json:"scorePsi"`
	FeaturePSI    map[string]PSIResult `json:"featurePsi"`
	TargetPSI     PSIResult            `json:"targetPsi"`
	BadRateTrain  float64              `json:"badRateTrain"`
	BadRateRecent float64              `json:"badRateRecent"`
	RCARequired   bool                 `json:"rcaRequired"`
	Message       string               `json:"message"`
}

// CalibrationReport wraps the calibration metrics with their verdict.
type CalibrationReport struct {
	ComputedAt   time.Time `json:"computedAt"`
	ModelVersion string    `json:"modelVersion"`
	LookbackDays int       `json:"lookbackDays"`
	ECEStatus    string    `json:"eceStatus"`
	CalibrationResult
}

// VintageReport tracks cohort bad rates and bucket roll rates.
type VintageReport struct {
	ComputedAt     time.Time                     `json:"computedAt"`
	CohortPeriods  []int                         `json:"cohortPeriods"`
	Cohorts        map[string]map[string]float64 `json:"cohorts"`
	RollRateMatrix map[string]float64            `json:"rollRateMatrix"`
	DataSource     string                        `json:"dataSource"`
}

// PortfolioSummary aggregates the scored book.
type PortfolioSummary struct {
	ComputedAt          time.Time       `json:"computedAt"`
	TotalApplications   int             `json:"totalApplications"`
	TotalApprovedAmount decimal.Decimal `json:"totalApprovedAmount"`
	AvgDSR              float64         `json:"avgDsr"`
	AvgPD               float64         `json:"avgPd"`
	AvgScore            float64         `json:"avgScore"`
	Decisions           map[string]int  `json:"decisions"`
	ApprovalRate        float64         `json:"approvalRate"`
	ExpectedLoss        decimal.Decimal `json:"elEstimate"`
	ExpectedLossRate    float64         `json:"elRate"`
}

// MonitoringService computes model-risk reports from persisted scoring
// history, degrading to seeded synthetic distributions while the book
// is too thin to measure.
type MonitoringService struct {
	scoreRepo   domain.CreditScoreRepository
	outcomeRepo domain.OutcomeRepository
}

// NewMonitoringService creates a new MonitoringService.
func NewMonitoringService(scoreRepo domain.CreditScoreRepository, outcomeRepo domain.OutcomeRepository) *MonitoringService {
	return &MonitoringService{scoreRepo: scoreRepo, outcomeRepo: outcomeRepo}
}

// PSISummary builds the full drift report for the given windows.
func (s *MonitoringService) PSISummary(ctx context.Context, input PSISummaryInput) (*PSISummary, error) {
	if input.ReferenceDays <= 0 {
		input.ReferenceDays = 180
	}
	if input.CurrentDays <= 0 {
		input.CurrentDays = 30
	}
	features := input.Features
	if len(features) == 0 {
		features = defaultMonitorFeatures
	}
	now := time.Now().UTC()

	refScores, curScores, err := s.scoreWindows(ctx, now, input.ReferenceDays, input.CurrentDays)
	if err != nil {
		return nil, err
	}

	scorePSI := s.scorePSI(refScores, curScores)
	featurePSI := s.featurePSI(refScores, curScores, features)

	badRateRecent := recentBadRate(curScores)
	targetPSI := ComputeTargetPSI(trainingBadRate, badRateRecent, len(refScores), len(curScores))
	targetPSI.DataSource = dataSourceDatabase
	if len(curScores) == 0 {
		targetPSI.DataSource = dataSourceDemo
	}

	maxPSI := scorePSI.Value
	for _, r := range featurePSI {
		if r.Value > maxPSI {
			maxPSI = r.Value
		}
	}
	if targetPSI.Value > maxPSI {
		maxPSI = targetPSI.Value
	}
	overall := psiStatus(maxPSI)

	version := input.ModelVersion
	if version == "" {
		version = StatisticalModelVersion
	}
	return &PSISummary{
		ComputedAt:    now,
		ModelVersion:  version,
		ReferenceDays: input.ReferenceDays,
		CurrentDays:   input.CurrentDays,
		OverallStatus: overall,
		ScorePSI:      scorePSI,
		FeaturePSI:    featurePSI,
		TargetPSI:     targetPSI,
		BadRateTrain:  trainingBadRate,
		BadRateRecent: badRateRecent,
		RCARequired:   overall != PSIGreen,
		Message:       psiMessage(overall),
	}, nil
}

// Calibration back-tests predicted PDs against realised defaults.
func (s *MonitoringService) Calibration(ctx context.Context, modelVersion string, nBins, lookbackDays int) (*CalibrationReport, error) {
	if nBins < 5 || nBins > 20 {
		nBins = 10
	}
	if lookbackDays <= 0 {
		lookbackDays = 365
	}
	now := time.Now().UTC()

	outcomes, err := s.outcomeRepo.ListBetween(ctx, now.AddDate(0, 0, -lookbackDays), now, maxMonitoringRows)
	if err != nil {
		log.Warn().Err(err).Msg("Calibration outcome query failed, using demo sample")
		outcomes = nil
	}

	var result CalibrationResult
	if len(outcomes) < minMonitoringSamples {
		result = demoCalibration(nBins)
		result.DataSource = dataSourceDemo
	} else {
		probs := make([]float64, len(outcomes))
		defaulted := make([]bool, len(outcomes))
		for i, o := range outcomes {
			probs[i] = o.PredictedPD
			defaulted[i] = o.Defaulted
		}
		result = ComputeCalibration(probs, defaulted, nBins)
		result.DataSource = dataSourceDatabase
	}

	if modelVersion == "" {
		modelVersion = StatisticalModelVersion
	}
	return &CalibrationReport{
		ComputedAt:        now,
		ModelVersion:      modelVersion,
		LookbackDays:      lookbackDays,
		ECEStatus:         result.ECEStatus(),
		CalibrationResult: result,
	}, nil
}

// Vintage reports cumulative DPD90+ rates per origination cohort at
// the requested month-on-book checkpoints, plus bucket roll rates.
func (s *MonitoringService) Vintage(ctx context.Context, checkpoints []int) (*VintageReport, error) {
	if len(checkpoints) == 0 {
		checkpoints = []int{3, 6, 12}
	}
	sort.Ints(checkpoints)
	now := time.Now().UTC()

	outcomes, err := s.outcomeRepo.ListBetween(ctx, time.Time{}, now, maxMonitoringRows)
	if err != nil {
		log.Warn().Err(err).Msg("Vintage outcome query failed, using demo cohorts")
		outcomes = nil
	}

	if len(outcomes) < minMonitoringSamples {
		return &VintageReport{
			ComputedAt:     now,
			CohortPeriods:  checkpoints,
			Cohorts:        demoVintageCohorts(now, checkpoints),
			RollRateMatrix: demoRollRates(),
			DataSource:     dataSourceDemo,
		}, nil
	}

	observations := make([]VintageObservation, 0, len(outcomes))
	appIDs := make([]uuid.UUID, 0, len(outcomes))
	for _, o := range outcomes {
		observations = append(observations, VintageObservation{
			Cohort:       o.DisbursedAt.Format("2006-01"),
			MonthsOnBook: monthsBetween(o.DisbursedAt, now),
			Bad:          o.Defaulted,
		})
		appIDs = append(appIDs, o.ApplicationID)
	}

	rollRates := demoRollRates()
	snaps, err := s.outcomeRepo.ListSnapshotsForApplications(ctx, appIDs)
	if err != nil {
		log.Warn().Err(err).Msg("Roll-rate snapshot query failed, using demo matrix")
	} else if observed, ok := rollRatesFromSnapshots(snaps); ok {
		rollRates = observed
	}

	return &VintageReport{
		ComputedAt:     now,
		CohortPeriods:  checkpoints,
		Cohorts:        ComputeVintage(observations, checkpoints),
		RollRateMatrix: rollRates,
		DataSource:     dataSourceDatabase,
	}, nil
}

// Portfolio aggregates every stored score into book-level figures.
func (s *MonitoringService) Portfolio(ctx context.Context) (*PortfolioSummary, error) {
	now := time.Now().UTC()
	scores, err := s.scoreRepo.ListScoredBetween(ctx, time.Time{}, now, maxMonitoringRows)
	if err != nil {
		return nil, err
	}

	summary := &PortfolioSummary{
		ComputedAt:          now,
		TotalApplications:   len(scores),
		TotalApprovedAmount: decimal.Zero,
		Decisions:           make(map[string]int),
	}
	if len(scores) == 0 {
		summary.AvgPD = trainingBadRate
		summary.ExpectedLossRate = round4(trainingBadRate * 0.45)
		summary.ExpectedLoss = decimal.Zero
		return summary, nil
	}

	var sumDSR, sumPD, sumScore float64
	for _, sc := range scores {
		summary.Decisions[string(sc.Decision)]++
		sumDSR += sc.DSR
		sumPD += sc.PD
		sumScore += float64(sc.Score)
		if sc.ApprovedAmount != nil {
			summary.TotalApprovedAmount = summary.TotalApprovedAmount.Add(*sc.ApprovedAmount)
		}
	}
	n := float64(len(scores))
	summary.AvgDSR = round4(sumDSR / n)
	summary.AvgPD = round4(sumPD / n)
	summary.AvgScore = math.Round(sumScore/n*10) / 10
	summary.ApprovalRate = round4(float64(summary.Decisions[string(domain.DecisionApproved)]) / n)
	// Unsecured-book expected loss.
	summary.ExpectedLossRate = round4(summary.AvgPD * 0.45)
	summary.ExpectedLoss = summary.TotalApprovedAmount.
		Mul(decimal.NewFromFloat(summary.AvgPD)).
		Mul(decimal.NewFromFloat(0.45)).
		Round(0)
	return summary, nil
}

// scoreWindows loads the reference and current score samples.
func (s *MonitoringService) scoreWindows(ctx context.Context, now time.Time, referenceDays, currentDays int) ([]*domain.CreditScore, []*domain.CreditScore, error) {
	refStart := now.AddDate(0, 0, -referenceDays)
	curStart := now.AddDate(0, 0, -currentDays)

	ref, err := s.scoreRepo.ListScoredBetween(ctx, refStart, curStart, maxMonitoringRows)
	if err != nil {
		return nil, nil, err
	}
	cur, err := s.scoreRepo.ListScoredBetween(ctx, curStart, now, maxMonitoringRows)
	if err != nil {
		return nil, nil, err
	}
	return ref, cur, nil
}

func (s *MonitoringService) scorePSI(ref, cur []*domain.CreditScore) PSIResult {
	if len(ref) < minMonitoringSamples || len(cur) < minMonitoringSamples {
		refDemo, curDemo := demoScoreDistributions()
		result := ComputeScorePSI(refDemo, curDemo)
		result.DataSource = dataSourceDemo
		return result
	}
	result := ComputeScorePSI(scoreValues(ref), scoreValues(cur))
	result.DataSource = dataSourceDatabase
	return result
}

// featurePSI computes drift per monitored feature. Only the DSR ratio
// is persisted per score; the remaining features fall back to seeded
// demo values until feature logging lands.
func (s *MonitoringService) featurePSI(ref, cur []*domain.CreditScore, features []string) map[string]PSIResult {
	rng := rand.New(rand.NewSource(demoSeed))
	results := make(map[string]PSIResult, len(features))
	for _, feat := range features {
		v := round4(0.02 + rng.Float64()*0.16)
		results[feat] = PSIResult{Value: v, Status: psiStatus(v), DataSource: dataSourceDemo}
	}

	if _, tracked := results["dsr_ratio"]; tracked && len(ref) >= 10 && len(cur) >= 10 {
		result := ComputePSI(dsrValues(ref), dsrValues(cur), 10, nil)
		result.DataSource = dataSourceDatabase
		results["dsr_ratio"] = result
	}
	return results
}

func scoreValues(scores []*domain.CreditScore) []float64 {
	out := make([]float64, len(scores))
	for i, sc := range scores {
		out[i] = float64(sc.Score)
	}
	return out
}

func dsrValues(scores []*domain.CreditScore) []float64 {
	out := make([]float64, len(scores))
	for i, sc := range scores {
		out[i] = sc.DSR
	}
	return out
}

// recentBadRate averages the predicted PD over the current window.
func recentBadRate(cur []*domain.CreditScore) float64 {
	if len(cur) == 0 {
		return fallbackBadRate
	}
	var sum float64
	for _, sc := range cur {
		sum += sc.PD
	}
	return round4(sum / float64(len(cur)))
}

func psiMessage(status string) string {
	switch status {
	case PSIGreen:
		return "모든 PSI 지표 정상 범위"
	case PSIYellow:
		return "일부 PSI 주의, 원인 분석(RCA) 검토 권장"
	default:
		return "PSI 경보, 즉시 모델 재검토 필요"
	}
}

// demoScoreDistributions builds the seeded synthetic score samples: a
// stable reference around 680 and a slightly drifted current window.
func demoScoreDistributions() ([]float64, []float64) {
	rng := rand.New(rand.NewSource(demoSeed))
	ref := make([]float64, 10_000)
	for i := range ref {
		ref[i] = clampRange(680+80*rng.NormFloat64(), 300, 900)
	}
	cur := make([]float64, 3_000)
	for i := range cur {
		cur[i] = clampRange(665+85*rng.NormFloat64(), 300, 900)
	}
	return ref, cur
}

// demoCalibration builds a seeded synthetic back-test with mild
// overconfidence, mirroring the development sample's bad rate.
func demoCalibration(nBins int) CalibrationResult {
	rng := rand.New(rand.NewSource(demoSeed))
	n := 5_000
	probs := make([]float64, n)
	defaulted := make([]bool, n)
	for i := 0; i < n; i++ {
		defaulted[i] = rng.Float64() < trainingBadRate
		y := 0.0
		if defaulted[i] {
			y = 1.0
		}
		probs[i] = clampRange(y*0.85+betaSample(rng, 2, 10)*0.15, 0, 1)
	}
	return ComputeCalibration(probs, defaulted, nBins)
}

// betaSample draws from Beta(a, b) for small integer parameters as the
// a-th smallest of a+b-1 uniforms.
func betaSample(rng *rand.Rand, a, b int) float64 {
	n := a + b - 1
	u := make([]float64, n)
	for i := range u {
		u[i] = rng.Float64()
	}
	sort.Float64s(u)
	return u[a-1]
}

// demoVintageCohorts synthesizes quarterly cohorts around the training
// bad rate, aging slightly better in newer vintages.
func demoVintageCohorts(now time.Time, checkpoints []int) map[string]map[string]float64 {
	cohorts := make(map[string]map[string]float64)
	for offset := 0; offset <= 12; offset += 3 {
		cohort := now.AddDate(0, -offset, 0).Format("2006-01")
		rates := make(map[string]float64)
		for _, mob := range checkpoints {
			if offset < mob {
				continue
			}
			rates[checkpointKey(mob)] = round4(trainingBadRate * (1 + float64(mob)*0.01 - float64(offset)*0.005))
		}
		cohorts[cohort] = rates
	}
	return cohorts
}

// rollRatesFromSnapshots derives bucket transition rates from adjacent
// month-on-book snapshots of the same loan.
func rollRatesFromSnapshots(snaps []*domain.PerformanceSnapshot) (map[string]float64, bool) {
	byApp := make(map[uuid.UUID][]*domain.PerformanceSnapshot)
	for _, snap := range snaps {
		byApp[snap.ApplicationID] = append(byApp[snap.ApplicationID], snap)
	}

	steps := []struct {
		key  string
		from domain.DelinquencyBucket
		to   domain.DelinquencyBucket
	}{
		{"current_to_dpd30", domain.BucketCurrent, domain.BucketDPD30},
		{"dpd30_to_dpd60", domain.BucketDPD30, domain.BucketDPD60},
		{"dpd60_to_dpd90", domain.BucketDPD60, domain.BucketDPD90},
		{"dpd90_to_default", domain.BucketDPD90, domain.BucketDefault},
	}

	observed := make(map[string]int)
	rolled := make(map[string]int)
	for _, appSnaps := range byApp {
		sort.Slice(appSnaps, func(i, j int) bool {
			return appSnaps[i].MonthOnBook < appSnaps[j].MonthOnBook
		})
		for i := 0; i+1 < len(appSnaps); i++ {
			cur, next := appSnaps[i], appSnaps[i+1]
			if next.MonthOnBook != cur.MonthOnBook+1 {
				continue
			}
			for _, step := range steps {
				if cur.Bucket != step.from {
					continue
				}
				observed[step.key]++
				if next.Bucket.AtLeast(step.to) {
					rolled[step.key]++
				}
			}
		}
	}

	if observed["current_to_dpd30"] == 0 {
		return nil, false
	}
	rates := make(map[string]float64, len(steps))
	for _, step := range steps {
		if observed[step.key] == 0 {
			rates[step.key] = demoRollRates()[step.key]
			continue
		}
		rates[step.key] = round4(float64(rolled[step.key]) / float64(observed[step.key]))
	}
	return rates, true
}

// monthsBetween counts whole months elapsed from one date to another.
func monthsBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
