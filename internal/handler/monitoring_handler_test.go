package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
	"github.com/daonbank/kcs/kcs-backend/internal/service"
	"github.com/daonbank/kcs/kcs-backend/internal/testutil"
)

type monitoringStack struct {
	e        *echo.Echo
	h        *MonitoringHandler
	scores   *testutil.MockCreditScoreRepository
	outcomes *testutil.MockOutcomeRepository
	events   *testutil.MockEWSEventRepository
}

func newMonitoringStack() *monitoringStack {
	st := &monitoringStack{
		e:        echo.New(),
		scores:   testutil.NewMockCreditScoreRepository(),
		outcomes: testutil.NewMockOutcomeRepository(),
		events:   testutil.NewMockEWSEventRepository(),
	}
	// The feed endpoints only read the event store; alert processing is
	// covered by the service tests.
	ews := service.NewEWSService(st.events, testutil.NewMockApplicationRepository(), testutil.NewMockAuditLogRepository(), nil)
	st.h = NewMonitoringHandler(service.NewMonitoringService(st.scores, st.outcomes), ews)
	return st
}

func (st *monitoringStack) seedEvent(t *testing.T, eventID string, applicantID uuid.UUID, severity domain.EWSSeverity, processedAt time.Time) *domain.EWSEvent {
	t.Helper()
	created, err := st.events.Create(context.Background(), &domain.EWSEvent{
		EventID:     eventID,
		ApplicantID: applicantID,
		Severity:    severity,
		Signals: []domain.EWSSignal{
			{Type: domain.SignalCBScoreDrop, CBScoreDrop: 60, ObservedAt: processedAt},
		},
		ActionsTaken: domain.ActionsFor(severity),
		ProcessedAt:  processedAt,
	})
	require.NoError(t, err)
	return created
}

func TestMonitoringHandler_PSISummaryDefaults(t *testing.T) {
	st := newMonitoringStack()

	rec := serve(t, st.e, st.h.PSISummary,
		httptest.NewRequest(http.MethodGet, "/", nil),
		"/api/v1/monitoring/psi-summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary service.PSISummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 180, summary.ReferenceDays)
	assert.Equal(t, 30, summary.CurrentDays)
	assert.Equal(t, service.StatisticalModelVersion, summary.ModelVersion)

	// The empty book degrades to the seeded demo sample.
	assert.Equal(t, "demo", summary.ScorePSI.DataSource)
	assert.Equal(t, "demo", summary.TargetPSI.DataSource)
	assert.InDelta(t, 0.0002, summary.TargetPSI.Value, 1e-9)
	assert.InDelta(t, 0.072, summary.BadRateTrain, 1e-9)
	assert.InDelta(t, 0.068, summary.BadRateRecent, 1e-9)

	require.Len(t, summary.FeaturePSI, 8)
	assert.Contains(t, summary.FeaturePSI, "dsr_ratio")
	for name, result := range summary.FeaturePSI {
		assert.NotEmpty(t, result.Status, "feature %s", name)
	}

	assert.Equal(t, summary.OverallStatus != service.PSIGreen, summary.RCARequired)
	assert.NotEmpty(t, summary.Message)
}

func TestMonitoringHandler_PSISummaryWindows(t *testing.T) {
	st := newMonitoringStack()

	rec := serve(t, st.e, st.h.PSISummary,
		httptest.NewRequest(http.MethodGet, "/?modelVersion=gbdt-2025.1&referenceDays=90&currentDays=14&features=cb_score,dsr_ratio", nil),
		"/api/v1/monitoring/psi-summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary service.PSISummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "gbdt-2025.1", summary.ModelVersion)
	assert.Equal(t, 90, summary.ReferenceDays)
	assert.Equal(t, 14, summary.CurrentDays)
	require.Len(t, summary.FeaturePSI, 2)
	assert.Contains(t, summary.FeaturePSI, "cb_score")
	assert.Contains(t, summary.FeaturePSI, "dsr_ratio")
}

func TestMonitoringHandler_Calibration(t *testing.T) {
	st := newMonitoringStack()

	rec := serve(t, st.e, st.h.Calibration,
		httptest.NewRequest(http.MethodGet, "/", nil),
		"/api/v1/monitoring/calibration")
	require.Equal(t, http.StatusOK, rec.Code)

	var report service.CalibrationReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 365, report.LookbackDays)
	assert.Equal(t, 10, report.NBins)
	assert.Equal(t, 5000, report.NSamples)
	assert.Equal(t, "demo", report.DataSource)
	assert.Equal(t, service.StatisticalModelVersion, report.ModelVersion)
	assert.Contains(t, []string{"pass", "warning", "fail"}, report.ECEStatus)
	assert.Len(t, report.Reliability, 10)
	assert.InDelta(t, 0.02, report.TargetECE, 1e-9)
	assert.InDelta(t, 0.07, report.TargetBrier, 1e-9)

	// Out-of-range knobs fall back to defaults.
	rec = serve(t, st.e, st.h.Calibration,
		httptest.NewRequest(http.MethodGet, "/?bins=25&lookbackDays=0", nil),
		"/api/v1/monitoring/calibration")
	require.Equal(t, http.StatusOK, rec.Code)
	report = service.CalibrationReport{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 10, report.NBins)
	assert.Equal(t, 365, report.LookbackDays)

	rec = serve(t, st.e, st.h.Calibration,
		httptest.NewRequest(http.MethodGet, "/?bins=8&lookbackDays=90&modelVersion=gbdt-2025.1", nil),
		"/api/v1/monitoring/calibration")
	require.Equal(t, http.StatusOK, rec.Code)
	report = service.CalibrationReport{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 8, report.NBins)
	assert.Equal(t, 90, report.LookbackDays)
	assert.Equal(t, "gbdt-2025.1", report.ModelVersion)
}

func TestMonitoringHandler_Vintage(t *testing.T) {
	st := newMonitoringStack()

	rec := serve(t, st.e, st.h.Vintage,
		httptest.NewRequest(http.MethodGet, "/?checkpoints=6,3", nil),
		"/api/v1/monitoring/vintage")
	require.Equal(t, http.StatusOK, rec.Code)

	var report service.VintageReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, []int{3, 6}, report.CohortPeriods)
	assert.Equal(t, "demo", report.DataSource)
	assert.NotEmpty(t, report.Cohorts)
	assert.InDelta(t, 0.028, report.RollRateMatrix["current_to_dpd30"], 1e-9)

	rec = serve(t, st.e, st.h.Vintage,
		httptest.NewRequest(http.MethodGet, "/", nil),
		"/api/v1/monitoring/vintage")
	require.Equal(t, http.StatusOK, rec.Code)
	report = service.VintageReport{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, []int{3, 6, 12}, report.CohortPeriods)

	for _, query := range []string{"?checkpoints=abc", "?checkpoints=0", "?checkpoints=3,-6"} {
		rec = serve(t, st.e, st.h.Vintage,
			httptest.NewRequest(http.MethodGet, "/"+query, nil),
			"/api/v1/monitoring/vintage")
		require.Equal(t, http.StatusBadRequest, rec.Code, query)
		problem := decodeProblem(t, rec)
		require.Len(t, problem.Errors, 1)
		assert.Equal(t, "checkpoints", problem.Errors[0].Field)
	}
}

func TestMonitoringHandler_Portfolio(t *testing.T) {
	st := newMonitoringStack()
	scoredAt := time.Now().UTC().Add(-time.Hour)
	approvedAmount := decimal.NewFromInt(50_000_000)
	st.scores.AddScore(&domain.CreditScore{
		ApplicationID:  uuid.New(),
		Score:          800,
		PD:             0.02,
		DSR:            32.5,
		Decision:       domain.DecisionApproved,
		ApprovedAmount: &approvedAmount,
		ScoredAt:       scoredAt,
	})
	st.scores.AddScore(&domain.CreditScore{
		ApplicationID: uuid.New(),
		Score:         500,
		PD:            0.2,
		DSR:           60,
		Decision:      domain.DecisionRejected,
		ScoredAt:      scoredAt,
	})

	rec := serve(t, st.e, st.h.Portfolio,
		httptest.NewRequest(http.MethodGet, "/", nil),
		"/api/v1/monitoring/portfolio")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary service.PortfolioSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.TotalApplications)
	assert.Equal(t, map[string]int{"approved": 1, "rejected": 1}, summary.Decisions)
	assert.InDelta(t, 0.5, summary.ApprovalRate, 1e-9)
	assert.True(t, summary.TotalApprovedAmount.Equal(approvedAmount))
	assert.InDelta(t, 0.11, summary.AvgPD, 1e-9)
	assert.InDelta(t, 46.25, summary.AvgDSR, 1e-9)
	assert.InDelta(t, 650.0, summary.AvgScore, 1e-9)
	assert.InDelta(t, 0.0495, summary.ExpectedLossRate, 1e-9)
	assert.True(t, summary.ExpectedLoss.Equal(decimal.NewFromInt(2_475_000)),
		"expected loss = %s", summary.ExpectedLoss)
}

func TestMonitoringHandler_PortfolioEmptyBook(t *testing.T) {
	st := newMonitoringStack()

	rec := serve(t, st.e, st.h.Portfolio,
		httptest.NewRequest(http.MethodGet, "/", nil),
		"/api/v1/monitoring/portfolio")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary service.PortfolioSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 0, summary.TotalApplications)
	assert.InDelta(t, 0.072, summary.AvgPD, 1e-9)
	assert.True(t, summary.ExpectedLoss.IsZero())
	assert.Zero(t, summary.ApprovalRate)
}

func TestMonitoringHandler_ListEWSEvents(t *testing.T) {
	st := newMonitoringStack()
	applicant := uuid.New()
	now := time.Now().UTC()
	fresh := st.seedEvent(t, "ews-2026-0001", applicant, domain.SeverityRed, now.Add(-time.Hour))
	stale := st.seedEvent(t, "ews-2026-0002", applicant, domain.SeverityYellow, now.Add(-8*24*time.Hour))

	// The default feed covers seven days.
	rec := serve(t, st.e, st.h.ListEWSEvents,
		httptest.NewRequest(http.MethodGet, "/", nil),
		"/api/v1/monitoring/ews")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []*domain.EWSEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, fresh.EventID, events[0].EventID)

	since := now.Add(-10 * 24 * time.Hour).Format(time.RFC3339)
	rec = serve(t, st.e, st.h.ListEWSEvents,
		httptest.NewRequest(http.MethodGet, "/?since="+since, nil),
		"/api/v1/monitoring/ews")
	require.Equal(t, http.StatusOK, rec.Code)
	events = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, fresh.EventID, events[0].EventID)
	assert.Equal(t, stale.EventID, events[1].EventID)

	rec = serve(t, st.e, st.h.ListEWSEvents,
		httptest.NewRequest(http.MethodGet, "/?since="+since+"&limit=1", nil),
		"/api/v1/monitoring/ews")
	require.Equal(t, http.StatusOK, rec.Code)
	events = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Len(t, events, 1)

	rec = serve(t, st.e, st.h.ListEWSEvents,
		httptest.NewRequest(http.MethodGet, "/?since=yesterday", nil),
		"/api/v1/monitoring/ews")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	problem := decodeProblem(t, rec)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "since", problem.Errors[0].Field)
}

func TestMonitoringHandler_ListEWSEventsByApplicant(t *testing.T) {
	st := newMonitoringStack()
	watched := uuid.New()
	other := uuid.New()
	now := time.Now().UTC()
	st.seedEvent(t, "ews-2026-0010", watched, domain.SeverityAmber, now.Add(-2*time.Hour))
	latest := st.seedEvent(t, "ews-2026-0011", watched, domain.SeverityRed, now.Add(-time.Hour))
	st.seedEvent(t, "ews-2026-0012", other, domain.SeverityYellow, now.Add(-time.Hour))

	rec := serve(t, st.e, st.h.ListEWSEventsByApplicant,
		httptest.NewRequest(http.MethodGet, "/", nil),
		"/api/v1/monitoring/ews/applicants/:applicantId", "applicantId", watched.String())
	require.Equal(t, http.StatusOK, rec.Code)
	var events []*domain.EWSEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, latest.EventID, events[0].EventID)

	rec = serve(t, st.e, st.h.ListEWSEventsByApplicant,
		httptest.NewRequest(http.MethodGet, "/", nil),
		"/api/v1/monitoring/ews/applicants/:applicantId", "applicantId", "not-an-id")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	problem := decodeProblem(t, rec)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "applicantId", problem.Errors[0].Field)
}
