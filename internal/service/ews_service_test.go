package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
	"github.com/daonbank/kcs/kcs-backend/internal/testutil"
	"github.com/daonbank/kcs/kcs-backend/internal/websocket"
)

func setupEWSService(report *domain.CBReport) (*EWSService, *decisionStack, *testutil.MockEWSEventRepository) {
	st := setupDecisionService(NewStatisticalPDProvider(), report)
	eventRepo := testutil.NewMockEWSEventRepository()
	svc := NewEWSService(eventRepo, st.apps, st.audit, st.svc)
	svc.SetEventPublisher(st.events)
	return svc, st, eventRepo
}

func ewsAlert(eventID string, applicantID uuid.UUID, applicationID *uuid.UUID, signals ...domain.EWSSignal) *domain.EWSAlert {
	return &domain.EWSAlert{
		EventID:       eventID,
		ApplicantID:   applicantID,
		ApplicationID: applicationID,
		Signals:       signals,
		EmittedAt:     time.Now().UTC(),
	}
}

func TestEWSService_RedAlertSuspendsPendingApplication(t *testing.T) {
	svc, st, eventRepo := setupEWSService(&domain.CBReport{Score: 700, Grade: "BB"})
	applicant := employedApplicant("tok-ews-red", 50_000_000, 40)
	app := pendingApplication(domain.ProductCredit, 20_000_000, 24)
	seedDecisionCase(st, applicant, app)

	alert := ewsAlert("ews-evt-001", applicant.ID, &app.ID, domain.EWSSignal{
		Type:            domain.SignalMissedPayment,
		DelinquencyDays: 5,
		ObservedAt:      time.Now().UTC(),
	})

	event, err := svc.ProcessAlert(context.Background(), alert)
	require.NoError(t, err)

	assert.Equal(t, domain.SeverityRed, event.Severity)
	assert.Equal(t, domain.ActionsFor(domain.SeverityRed), event.ActionsTaken)
	assert.NotEqual(t, uuid.Nil, event.ID)
	require.NotNil(t, event.ApplicationID)
	assert.Equal(t, app.ID, *event.ApplicationID)
	assert.Len(t, eventRepo.Events, 1)

	assert.Equal(t, domain.StatusSuspended, st.apps.Applications[app.ID].Status)
	assert.Contains(t, st.audit.Actions(), "ews.alert_processed")

	applicantEvents := st.events.EventsFor(applicant.ID.String())
	require.Len(t, applicantEvents, 2)
	assert.Equal(t, "application.suspended", applicantEvents[0].Type)
	assert.Equal(t, "ews_alert.raised", applicantEvents[1].Type)

	opsEvents := st.events.EventsFor(websocket.OpsChannel)
	require.Len(t, opsEvents, 2)
	assert.Equal(t, "application.suspended", opsEvents[0].Type)
	assert.Equal(t, "ews_alert.raised", opsEvents[1].Type)
}

func TestEWSService_RedAlertLeavesDecidedApplicationsAlone(t *testing.T) {
	svc, st, eventRepo := setupEWSService(&domain.CBReport{Score: 700, Grade: "BB"})
	applicant := employedApplicant("tok-ews-decided", 50_000_000, 45)
	app := pendingApplication(domain.ProductCredit, 20_000_000, 24)
	app.Status = domain.StatusApproved
	seedDecisionCase(st, applicant, app)

	alert := ewsAlert("ews-evt-002", applicant.ID, &app.ID, domain.EWSSignal{
		Type:            domain.SignalMissedPayment,
		DelinquencyDays: 7,
		ObservedAt:      time.Now().UTC(),
	})

	event, err := svc.ProcessAlert(context.Background(), alert)
	require.NoError(t, err)

	assert.Equal(t, domain.SeverityRed, event.Severity)
	assert.Len(t, eventRepo.Events, 1)
	assert.Equal(t, domain.StatusApproved, st.apps.Applications[app.ID].Status)

	applicantEvents := st.events.EventsFor(applicant.ID.String())
	require.Len(t, applicantEvents, 1)
	assert.Equal(t, "ews_alert.raised", applicantEvents[0].Type)
}

func TestEWSService_AmberTriggersShadowRescore(t *testing.T) {
	svc, st, _ := setupEWSService(&domain.CBReport{Score: 820, Grade: "AAA"})
	applicant := employedApplicant("tok-ews-amber", 80_000_000, 40)
	app := pendingApplication(domain.ProductCredit, 50_000_000, 36)
	app.Status = domain.StatusApproved
	seedDecisionCase(st, applicant, app)

	alert := ewsAlert("ews-evt-003", applicant.ID, &app.ID, domain.EWSSignal{
		Type:        domain.SignalCBScoreDrop,
		CBScoreDrop: 60,
		ObservedAt:  time.Now().UTC(),
	})

	event, err := svc.ProcessAlert(context.Background(), alert)
	require.NoError(t, err)

	assert.Equal(t, domain.SeverityAmber, event.Severity)
	assert.Equal(t, domain.ActionsFor(domain.SeverityAmber), event.ActionsTaken)

	require.Len(t, st.scores.Scores, 1)
	shadow, err := st.scores.GetLatestByApplicationID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Nil(t, shadow.AppealDeadline)
	assert.Equal(t, domain.StatusApproved, st.apps.Applications[app.ID].Status)
	assert.Contains(t, st.audit.Actions(), "application.rescored")

	applicantEvents := st.events.EventsFor(applicant.ID.String())
	require.Len(t, applicantEvents, 1)
	assert.Equal(t, "ews_alert.raised", applicantEvents[0].Type)

	opsEvents := st.events.EventsFor(websocket.OpsChannel)
	require.Len(t, opsEvents, 2)
	assert.Equal(t, "score.created", opsEvents[0].Type)
	assert.Equal(t, "ews_alert.raised", opsEvents[1].Type)
}

func TestEWSService_AmberRescoreFailureDoesNotBlockAlert(t *testing.T) {
	svc, st, eventRepo := setupEWSService(&domain.CBReport{Score: 820, Grade: "AAA"})
	missing := uuid.New()

	alert := ewsAlert("ews-evt-004", uuid.New(), &missing, domain.EWSSignal{
		Type:        domain.SignalCBScoreDrop,
		CBScoreDrop: 75,
		ObservedAt:  time.Now().UTC(),
	})

	event, err := svc.ProcessAlert(context.Background(), alert)
	require.NoError(t, err)

	assert.Equal(t, domain.SeverityAmber, event.Severity)
	assert.Len(t, eventRepo.Events, 1)
	assert.Empty(t, st.scores.Scores)
}

func TestEWSService_YellowAlertIsLogOnly(t *testing.T) {
	svc, st, eventRepo := setupEWSService(&domain.CBReport{Score: 700, Grade: "BB"})
	applicant := employedApplicant("tok-ews-yellow", 50_000_000, 33)
	app := pendingApplication(domain.ProductCredit, 10_000_000, 12)
	seedDecisionCase(st, applicant, app)

	alert := ewsAlert("ews-evt-005", applicant.ID, &app.ID, domain.EWSSignal{
		Type:       domain.SignalInquirySpike,
		Detail:     "4 inquiries in 7 days",
		ObservedAt: time.Now().UTC(),
	})

	event, err := svc.ProcessAlert(context.Background(), alert)
	require.NoError(t, err)

	assert.Equal(t, domain.SeverityYellow, event.Severity)
	assert.Equal(t, []domain.EWSAction{domain.ActionLogOnly}, event.ActionsTaken)
	assert.Len(t, eventRepo.Events, 1)
	assert.Empty(t, st.scores.Scores)
	assert.Equal(t, domain.StatusPending, st.apps.Applications[app.ID].Status)
}

func TestEWSService_DeduplicatesByEventID(t *testing.T) {
	svc, st, eventRepo := setupEWSService(&domain.CBReport{Score: 700, Grade: "BB"})
	applicant := employedApplicant("tok-ews-dup", 50_000_000, 40)
	app := pendingApplication(domain.ProductCredit, 20_000_000, 24)
	seedDecisionCase(st, applicant, app)

	alert := ewsAlert("ews-evt-006", applicant.ID, &app.ID, domain.EWSSignal{
		Type:            domain.SignalMissedPayment,
		DelinquencyDays: 4,
		ObservedAt:      time.Now().UTC(),
	})

	first, err := svc.ProcessAlert(context.Background(), alert)
	require.NoError(t, err)

	auditBefore := len(st.audit.Actions())
	applicantBefore := len(st.events.EventsFor(applicant.ID.String()))

	second, err := svc.ProcessAlert(context.Background(), alert)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, eventRepo.Events, 1)
	assert.Len(t, st.audit.Actions(), auditBefore)
	assert.Len(t, st.events.EventsFor(applicant.ID.String()), applicantBefore)
}

func TestEWSService_Validation(t *testing.T) {
	svc, _, _ := setupEWSService(&domain.CBReport{Score: 700, Grade: "BB"})
	sig := domain.EWSSignal{Type: domain.SignalInquirySpike, ObservedAt: time.Now().UTC()}

	cases := []struct {
		name  string
		alert *domain.EWSAlert
	}{
		{"missing event id", &domain.EWSAlert{ApplicantID: uuid.New(), Signals: []domain.EWSSignal{sig}}},
		{"missing applicant id", &domain.EWSAlert{EventID: "ews-evt-007", Signals: []domain.EWSSignal{sig}}},
		{"no signals", &domain.EWSAlert{EventID: "ews-evt-008", ApplicantID: uuid.New()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ProcessAlert(context.Background(), tc.alert)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestEWSService_ListByApplicant(t *testing.T) {
	svc, _, _ := setupEWSService(&domain.CBReport{Score: 700, Grade: "BB"})
	ctx := context.Background()
	applicantID := uuid.New()
	otherID := uuid.New()
	sig := domain.EWSSignal{Type: domain.SignalInquirySpike, ObservedAt: time.Now().UTC()}

	_, err := svc.ProcessAlert(ctx, ewsAlert("ews-evt-a", applicantID, nil, sig))
	require.NoError(t, err)
	_, err = svc.ProcessAlert(ctx, ewsAlert("ews-evt-b", applicantID, nil, sig))
	require.NoError(t, err)
	_, err = svc.ProcessAlert(ctx, ewsAlert("ews-evt-c", otherID, nil, sig))
	require.NoError(t, err)

	events, err := svc.ListByApplicant(ctx, applicantID, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	ids := []string{events[0].EventID, events[1].EventID}
	assert.Contains(t, ids, "ews-evt-a")
	assert.Contains(t, ids, "ews-evt-b")

	limited, err := svc.ListByApplicant(ctx, applicantID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	recent, err := svc.ListRecent(ctx, time.Now().Add(-time.Hour), 0)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
}
