package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
	"github.com/daonbank/kcs/kcs-backend/internal/testutil"
)

func setupMonitoring() (*MonitoringService, *testutil.MockCreditScoreRepository, *testutil.MockOutcomeRepository) {
	scores := testutil.NewMockCreditScoreRepository()
	outcomes := testutil.NewMockOutcomeRepository()
	return NewMonitoringService(scores, outcomes), scores, outcomes
}

func monitorScore(score int32, pd, dsr float64, decision domain.Decision, scoredAt time.Time) *domain.CreditScore {
	return &domain.CreditScore{
		ApplicationID: uuid.New(),
		ApplicantID:   uuid.New(),
		Score:         score,
		PD:            pd,
		DSR:           dsr,
		Decision:      decision,
		ScoredAt:      scoredAt,
	}
}

func TestMonitoringService_PSISummaryDegradesToDemo(t *testing.T) {
	svc, _, _ := setupMonitoring()

	summary, err := svc.PSISummary(context.Background(), PSISummaryInput{})
	require.NoError(t, err)

	assert.Equal(t, 180, summary.ReferenceDays)
	assert.Equal(t, 30, summary.CurrentDays)
	assert.Equal(t, StatisticalModelVersion, summary.ModelVersion)
	assert.Equal(t, dataSourceDemo, summary.ScorePSI.DataSource)
	assert.Equal(t, trainingBadRate, summary.BadRateTrain)
	assert.Equal(t, fallbackBadRate, summary.BadRateRecent)

	require.Len(t, summary.FeaturePSI, len(defaultMonitorFeatures))
	for feat, result := range summary.FeaturePSI {
		assert.Equal(t, dataSourceDemo, result.DataSource, feat)
		assert.Equal(t, psiStatus(result.Value), result.Status, feat)
	}

	assert.Equal(t, dataSourceDemo, summary.TargetPSI.DataSource)
	assert.Equal(t, 0.0002, summary.TargetPSI.Value)
	assert.Equal(t, PSIGreen, summary.TargetPSI.Status)

	assert.Equal(t, summary.OverallStatus != PSIGreen, summary.RCARequired)
	assert.NotEmpty(t, summary.Message)
}

func TestMonitoringService_PSISummaryFromStoredScores(t *testing.T) {
	svc, scoreRepo, _ := setupMonitoring()
	now := time.Now().UTC()
	for i := 0; i < 120; i++ {
		scoreRepo.AddScore(monitorScore(700, 0.05, 32, domain.DecisionApproved, now.AddDate(0, 0, -100)))
		scoreRepo.AddScore(monitorScore(700, 0.05, 32, domain.DecisionApproved, now.AddDate(0, 0, -10)))
	}

	summary, err := svc.PSISummary(context.Background(), PSISummaryInput{
		ModelVersion:  "gbdt-2025.1",
		ReferenceDays: 180,
		CurrentDays:   30,
	})
	require.NoError(t, err)

	assert.Equal(t, "gbdt-2025.1", summary.ModelVersion)
	assert.Equal(t, dataSourceDatabase, summary.ScorePSI.DataSource)
	assert.Equal(t, 0.0, summary.ScorePSI.Value)
	assert.Equal(t, PSIGreen, summary.ScorePSI.Status)
	assert.Equal(t, 120, summary.ScorePSI.NReference)
	assert.Equal(t, 120, summary.ScorePSI.NCurrent)

	assert.Equal(t, dataSourceDatabase, summary.FeaturePSI["dsr_ratio"].DataSource)
	assert.Equal(t, PSIGreen, summary.FeaturePSI["dsr_ratio"].Status)

	assert.Equal(t, 0.05, summary.BadRateRecent)
	assert.Equal(t, dataSourceDatabase, summary.TargetPSI.DataSource)
	assert.Equal(t, 0.0085, summary.TargetPSI.Value)
}

func TestMonitoringService_PSISummaryFlagsScoreDrift(t *testing.T) {
	svc, scoreRepo, _ := setupMonitoring()
	now := time.Now().UTC()
	for i := 0; i < 120; i++ {
		scoreRepo.AddScore(monitorScore(700, 0.05, 32, domain.DecisionApproved, now.AddDate(0, 0, -100)))
		scoreRepo.AddScore(monitorScore(460, 0.18, 55, domain.DecisionRejected, now.AddDate(0, 0, -10)))
	}

	summary, err := svc.PSISummary(context.Background(), PSISummaryInput{})
	require.NoError(t, err)

	assert.Equal(t, PSIRed, summary.ScorePSI.Status)
	assert.Greater(t, summary.ScorePSI.Value, 1.0)
	assert.Equal(t, PSIRed, summary.OverallStatus)
	assert.True(t, summary.RCARequired)
	assert.Contains(t, summary.Message, "경보")
}

func TestMonitoringService_CalibrationDegradesToDemo(t *testing.T) {
	svc, _, _ := setupMonitoring()

	report, err := svc.Calibration(context.Background(), "", 3, 0)
	require.NoError(t, err)

	assert.Equal(t, StatisticalModelVersion, report.ModelVersion)
	assert.Equal(t, 365, report.LookbackDays)
	assert.Equal(t, 10, report.NBins)
	assert.Equal(t, dataSourceDemo, report.DataSource)
	assert.Equal(t, 5_000, report.NSamples)
	assert.Equal(t, report.CalibrationResult.ECEStatus(), report.ECEStatus)
	assert.Equal(t, targetECE, report.TargetECE)
	assert.Equal(t, targetBrier, report.TargetBrier)
}

func TestMonitoringService_CalibrationFromOutcomes(t *testing.T) {
	svc, _, outcomeRepo := setupMonitoring()
	now := time.Now().UTC()
	for i := 0; i < 200; i++ {
		outcomeRepo.Outcomes = append(outcomeRepo.Outcomes, &domain.LoanOutcome{
			ApplicationID: uuid.New(),
			DisbursedAt:   now.AddDate(0, 0, -30),
			PredictedPD:   0.1,
			Defaulted:     i < 20,
		})
	}

	report, err := svc.Calibration(context.Background(), "gbdt-2025.1", 10, 365)
	require.NoError(t, err)

	assert.Equal(t, "gbdt-2025.1", report.ModelVersion)
	assert.Equal(t, dataSourceDatabase, report.DataSource)
	assert.Equal(t, 200, report.NSamples)
	assert.Equal(t, 0.0, report.ECE)
	assert.Equal(t, 0.09, report.Brier)
	assert.Equal(t, "pass", report.ECEStatus)
}

func TestMonitoringService_VintageDegradesToDemo(t *testing.T) {
	svc, _, _ := setupMonitoring()

	report, err := svc.Vintage(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []int{3, 6, 12}, report.CohortPeriods)
	assert.Equal(t, dataSourceDemo, report.DataSource)
	assert.Len(t, report.Cohorts, 5)
	assert.Equal(t, 0.028, report.RollRateMatrix["current_to_dpd30"])
	assert.Equal(t, 0.75, report.RollRateMatrix["dpd90_to_default"])
}

func TestMonitoringService_VintageFromOutcomes(t *testing.T) {
	svc, _, outcomeRepo := setupMonitoring()
	now := time.Now().UTC()
	disbursed := now.AddDate(0, 0, -400)

	appIDs := make([]uuid.UUID, 0, 120)
	for i := 0; i < 120; i++ {
		id := uuid.New()
		appIDs = append(appIDs, id)
		outcomeRepo.Outcomes = append(outcomeRepo.Outcomes, &domain.LoanOutcome{
			ApplicationID: id,
			DisbursedAt:   disbursed,
			PredictedPD:   0.08,
			Defaulted:     i < 30,
		})
	}
	// Month-on-book snapshots for the first ten loans: one of them rolls
	// current -> dpd30, the rest stay current.
	for i := 0; i < 10; i++ {
		secondBucket := domain.BucketCurrent
		if i == 0 {
			secondBucket = domain.BucketDPD30
		}
		outcomeRepo.Snapshots = append(outcomeRepo.Snapshots,
			&domain.PerformanceSnapshot{ApplicationID: appIDs[i], MonthOnBook: 1, Bucket: domain.BucketCurrent},
			&domain.PerformanceSnapshot{ApplicationID: appIDs[i], MonthOnBook: 2, Bucket: secondBucket},
		)
	}

	report, err := svc.Vintage(context.Background(), []int{12, 3, 6})
	require.NoError(t, err)

	assert.Equal(t, []int{3, 6, 12}, report.CohortPeriods)
	assert.Equal(t, dataSourceDatabase, report.DataSource)

	cohort := report.Cohorts[disbursed.Format("2006-01")]
	require.NotNil(t, cohort)
	assert.Equal(t, 0.25, cohort["dpd_3m"])
	assert.Equal(t, 0.25, cohort["dpd_6m"])
	assert.Equal(t, 0.25, cohort["dpd_12m"])

	assert.Equal(t, 0.1, report.RollRateMatrix["current_to_dpd30"])
	assert.Equal(t, 0.45, report.RollRateMatrix["dpd30_to_dpd60"])
}

func TestMonitoringService_PortfolioEmptyBook(t *testing.T) {
	svc, _, _ := setupMonitoring()

	summary, err := svc.Portfolio(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.TotalApplications)
	assert.True(t, summary.TotalApprovedAmount.IsZero())
	assert.Equal(t, trainingBadRate, summary.AvgPD)
	assert.Equal(t, 0.0324, summary.ExpectedLossRate)
	assert.True(t, summary.ExpectedLoss.IsZero())
	assert.Empty(t, summary.Decisions)
}

func TestMonitoringService_PortfolioAggregates(t *testing.T) {
	svc, scoreRepo, _ := setupMonitoring()
	scoredAt := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 3; i++ {
		sc := monitorScore(700, 0.02, 20, domain.DecisionApproved, scoredAt)
		amt := decimal.NewFromInt(10_000_000)
		sc.ApprovedAmount = &amt
		scoreRepo.AddScore(sc)
	}
	scoreRepo.AddScore(monitorScore(400, 0.1, 80, domain.DecisionRejected, scoredAt))

	summary, err := svc.Portfolio(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.TotalApplications)
	assert.True(t, summary.TotalApprovedAmount.Equal(decimal.NewFromInt(30_000_000)),
		"approved amount %s", summary.TotalApprovedAmount)
	assert.Equal(t, 0.04, summary.AvgPD)
	assert.Equal(t, 35.0, summary.AvgDSR)
	assert.Equal(t, 625.0, summary.AvgScore)
	assert.Equal(t, 0.75, summary.ApprovalRate)
	assert.Equal(t, map[string]int{"approved": 3, "rejected": 1}, summary.Decisions)
	assert.Equal(t, 0.018, summary.ExpectedLossRate)
	assert.True(t, summary.ExpectedLoss.Equal(decimal.NewFromInt(540_000)),
		"expected loss %s", summary.ExpectedLoss)
}
