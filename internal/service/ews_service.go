package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
	"github.com/daonbank/kcs/kcs-backend/internal/websocket"
)

const ewsActor = "ews-processor"

// EWSService classifies early-warning alerts and carries out the
// mandated follow-ups: suspension for red alerts, a shadow rescore for
// amber ones. Limit freezes and collections notices are dispatched to
// downstream systems and recorded here.
type EWSService struct {
	eventRepo       domain.EWSEventRepository
	applicationRepo domain.ApplicationRepository
	auditRepo       domain.AuditLogRepository
	decisions       *DecisionService
	eventPublisher  websocket.EventPublisher
}

// NewEWSService creates a new EWSService.
func NewEWSService(
	eventRepo domain.EWSEventRepository,
	applicationRepo domain.ApplicationRepository,
	auditRepo domain.AuditLogRepository,
	decisions *DecisionService,
) *EWSService {
	return &EWSService{
		eventRepo:       eventRepo,
		applicationRepo: applicationRepo,
		auditRepo:       auditRepo,
		decisions:       decisions,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *EWSService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *EWSService) publishEvent(channel string, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(channel, event)
	}
}

// ProcessAlert classifies one alert and executes its actions. Alerts
// are deduplicated by event ID so redelivered messages are no-ops.
func (s *EWSService) ProcessAlert(ctx context.Context, alert *domain.EWSAlert) (*domain.EWSEvent, error) {
	// 1. Validate the message.
	if alert.EventID == "" {
		return nil, domain.NewValidationError("eventId", "event id is required")
	}
	if alert.ApplicantID == uuid.Nil {
		return nil, domain.NewValidationError("applicantId", "applicant id is required")
	}
	if len(alert.Signals) == 0 {
		return nil, domain.NewValidationError("signals", "at least one signal is required")
	}

	// 2. Dedupe on redelivery.
	existing, err := s.eventRepo.GetByEventID(ctx, alert.EventID)
	if err == nil {
		log.Debug().Str("event_id", alert.EventID).Msg("Alert already processed, skipping")
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	// 3. Classify and act.
	severity := alert.Classify()
	actions := domain.ActionsFor(severity)

	switch severity {
	case domain.SeverityRed:
		s.suspendApplication(ctx, alert)
	case domain.SeverityAmber:
		s.triggerRescore(ctx, alert)
	}

	// 4. Persist the processed event.
	event := &domain.EWSEvent{
		EventID:       alert.EventID,
		ApplicantID:   alert.ApplicantID,
		ApplicationID: alert.ApplicationID,
		Severity:      severity,
		Signals:       alert.Signals,
		ActionsTaken:  actions,
		ProcessedAt:   time.Now().UTC(),
	}
	created, err := s.eventRepo.Create(ctx, event)
	if err != nil {
		return nil, err
	}

	// 5. Audit and notify.
	s.recordAudit(ctx, created)
	s.publishEvent(websocket.OpsChannel, websocket.EWSAlertRaised(created))
	s.publishEvent(alert.ApplicantID.String(), websocket.EWSAlertRaised(created))

	log.Info().
		Str("event_id", created.EventID).
		Str("applicant_id", created.ApplicantID.String()).
		Str("severity", string(created.Severity)).
		Int("signals", len(created.Signals)).
		Msg("Early-warning alert processed")
	return created, nil
}

// suspendApplication halts an in-flight application on a red alert.
// Decided applications stay decided; the freeze is recorded on the
// event and handled by the limit system.
func (s *EWSService) suspendApplication(ctx context.Context, alert *domain.EWSAlert) {
	if alert.ApplicationID == nil {
		return
	}
	app, err := s.applicationRepo.GetByID(ctx, *alert.ApplicationID)
	if err != nil {
		log.Warn().Err(err).Str("application_id", alert.ApplicationID.String()).Msg("Alerted application not found")
		return
	}
	if !app.Status.CanTransitionTo(domain.StatusSuspended) {
		log.Info().
			Str("application_no", app.ApplicationNo).
			Str("status", string(app.Status)).
			Msg("Application not suspendable, recording alert only")
		return
	}
	app.Status = domain.StatusSuspended
	if _, err := s.applicationRepo.Update(ctx, app); err != nil {
		log.Error().Err(err).Str("application_no", app.ApplicationNo).Msg("Failed to suspend application")
		return
	}
	s.publishEvent(app.ApplicantID.String(), websocket.ApplicationSuspended(app))
	s.publishEvent(websocket.OpsChannel, websocket.ApplicationSuspended(app))
	log.Warn().
		Str("application_no", app.ApplicationNo).
		Msg("Application suspended on red alert")
}

// triggerRescore runs a shadow rescore so the risk team sees the
// current risk picture next to the original decision.
func (s *EWSService) triggerRescore(ctx context.Context, alert *domain.EWSAlert) {
	if alert.ApplicationID == nil {
		return
	}
	if _, err := s.decisions.Rescore(ctx, *alert.ApplicationID, ewsActor, domain.ActorSystem); err != nil {
		log.Warn().Err(err).
			Str("application_id", alert.ApplicationID.String()).
			Msg("Rescore on amber alert failed")
	}
}

// ListByApplicant returns recent processed alerts for one applicant.
func (s *EWSService) ListByApplicant(ctx context.Context, applicantID uuid.UUID, limit int32) ([]*domain.EWSEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.eventRepo.ListByApplicant(ctx, applicantID, limit)
}

// ListRecent returns processed alerts since a point in time.
func (s *EWSService) ListRecent(ctx context.Context, since time.Time, limit int32) ([]*domain.EWSEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.eventRepo.ListRecent(ctx, since, limit)
}

func (s *EWSService) recordAudit(ctx context.Context, event *domain.EWSEvent) {
	if s.auditRepo == nil {
		return
	}
	entityID := event.ApplicantID.String()
	entry := &domain.AuditLog{
		EntityType: "ews_event",
		EntityID:   entityID,
		Action:     "ews.alert_processed",
		ActorID:    ewsActor,
		ActorType:  domain.ActorSystem,
		Changes: map[string]any{
			"event_id": event.EventID,
			"severity": event.Severity,
			"actions":  event.ActionsTaken,
		},
	}
	if _, err := s.auditRepo.Create(ctx, entry); err != nil {
		log.Error().Err(err).Str("event_id", event.EventID).Msg("Failed to write audit entry")
	}
}
