package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
	"github.com/daonbank/kcs/kcs-backend/internal/websocket"
)

// ArtifactStore fetches trained model artifacts from object storage.
type ArtifactStore interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// RegisterModelInput describes a newly trained scorecard version.
type RegisterModelInput struct {
	Name               string
	ScorecardType      string
	Version            string
	ArtifactPath       string
	GiniTrain          *float64
	GiniTest           *float64
	GiniOOT            *float64
	KSStatistic        *float64
	AUCROC             *float64
	FairnessMetrics    map[string]float64
	TrainingDataPeriod *string
	FeatureCount       *int32
	Notes              *string
}

// ModelService governs the scorecard lifecycle: registration,
// validation sign-off, champion promotion with an atomic artifact
// swap, and retirement back to the statistical scorecard.
type ModelService struct {
	repo           domain.ModelVersionRepository
	artifacts      ArtifactStore
	registry       *ModelRegistry
	auditRepo      domain.AuditLogRepository
	eventPublisher websocket.EventPublisher
}

// NewModelService creates a new ModelService.
func NewModelService(
	repo domain.ModelVersionRepository,
	artifacts ArtifactStore,
	registry *ModelRegistry,
	auditRepo domain.AuditLogRepository,
) *ModelService {
	return &ModelService{
		repo:      repo,
		artifacts: artifacts,
		registry:  registry,
		auditRepo: auditRepo,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *ModelService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// Register records a trained version in draft state. The artifact is
// parsed up front so broken exports never reach the registry.
func (s *ModelService) Register(ctx context.Context, input RegisterModelInput) (*domain.ModelVersion, error) {
	version := &domain.ModelVersion{
		Name:               input.Name,
		ScorecardType:      input.ScorecardType,
		Version:            input.Version,
		ArtifactPath:       input.ArtifactPath,
		GiniTrain:          input.GiniTrain,
		GiniTest:           input.GiniTest,
		GiniOOT:            input.GiniOOT,
		KSStatistic:        input.KSStatistic,
		AUCROC:             input.AUCROC,
		FairnessMetrics:    input.FairnessMetrics,
		TrainingDataPeriod: input.TrainingDataPeriod,
		FeatureCount:       input.FeatureCount,
		Notes:              input.Notes,
		Status:             domain.ModelDraft,
	}
	if err := version.Validate(); err != nil {
		return nil, err
	}
	if input.ArtifactPath == "" {
		return nil, domain.NewValidationError("artifactPath", "artifact path is required")
	}

	data, err := s.artifacts.Fetch(ctx, input.ArtifactPath)
	if err != nil {
		return nil, fmt.Errorf("fetch artifact %s: %w", input.ArtifactPath, err)
	}
	if _, err := ParseGBDTModel(data); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, version)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, created.ID, "model.registered", "system", map[string]any{
		"name":           created.Name,
		"version":        created.Version,
		"scorecard_type": created.ScorecardType,
	})
	log.Info().
		Str("model_version", created.Version).
		Str("scorecard_type", created.ScorecardType).
		Msg("Model version registered")
	return created, nil
}

// MarkValidated records the validation sign-off, making the version
// eligible for promotion.
func (s *ModelService) MarkValidated(ctx context.Context, id uuid.UUID, actor string) (*domain.ModelVersion, error) {
	if actor == "" {
		return nil, domain.NewValidationError("actor", "validator is required")
	}
	version, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if version.Status != domain.ModelDraft {
		return nil, fmt.Errorf("status %s: %w", version.Status, domain.ErrInvalidTransition)
	}

	updated, err := s.repo.SetStatus(ctx, id, domain.ModelValidated)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, id, "model.validated", actor, map[string]any{
		"version": updated.Version,
	})
	return updated, nil
}

// Promote makes a validated version the champion: the artifact is
// fetched, parsed and swapped into the serving registry atomically.
// In-flight evaluations finish on the version they started with.
func (s *ModelService) Promote(ctx context.Context, id uuid.UUID, approvedBy string) (*domain.ModelVersion, error) {
	if approvedBy == "" {
		return nil, domain.NewValidationError("approvedBy", "approver is required")
	}
	version, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !version.CanPromote() {
		return nil, fmt.Errorf("status %s: %w", version.Status, domain.ErrInvalidTransition)
	}

	data, err := s.artifacts.Fetch(ctx, version.ArtifactPath)
	if err != nil {
		return nil, fmt.Errorf("fetch artifact %s: %w", version.ArtifactPath, err)
	}
	model, err := ParseGBDTModel(data)
	if err != nil {
		return nil, err
	}

	promoted, err := s.repo.Promote(ctx, id, approvedBy)
	if err != nil {
		return nil, err
	}
	// Swap only after the database accepted the promotion.
	if _, err := s.registry.Deploy(data); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, id, "model.promoted", approvedBy, map[string]any{
		"version":        promoted.Version,
		"scorecard_type": promoted.ScorecardType,
		"trees":          len(model.Trees),
	})
	s.publishEvent(websocket.OpsChannel, websocket.ModelPromoted(promoted))

	log.Info().
		Str("model_version", promoted.Version).
		Str("approved_by", approvedBy).
		Msg("Champion model promoted")
	return promoted, nil
}

// Retire removes the champion from serving; scoring falls back to the
// statistical scorecard until the next promotion.
func (s *ModelService) Retire(ctx context.Context, id uuid.UUID, actor string) (*domain.ModelVersion, error) {
	if actor == "" {
		return nil, domain.NewValidationError("actor", "actor is required")
	}
	version, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if version.Status != domain.ModelChampion {
		return nil, fmt.Errorf("status %s: %w", version.Status, domain.ErrInvalidTransition)
	}

	retired, err := s.repo.SetStatus(ctx, id, domain.ModelRetired)
	if err != nil {
		return nil, err
	}
	s.registry.Retire()

	s.recordAudit(ctx, id, "model.retired", actor, map[string]any{
		"version": retired.Version,
	})
	log.Info().
		Str("model_version", retired.Version).
		Msg("Champion model retired")
	return retired, nil
}

// LoadChampion restores the persisted champion into the serving
// registry, typically at process start. Missing champions are not an
// error; scoring simply uses the statistical scorecard.
func (s *ModelService) LoadChampion(ctx context.Context, scorecardType string) error {
	champion, err := s.repo.GetChampion(ctx, scorecardType)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Info().Str("scorecard_type", scorecardType).Msg("No champion model deployed")
			return nil
		}
		return err
	}
	data, err := s.artifacts.Fetch(ctx, champion.ArtifactPath)
	if err != nil {
		return fmt.Errorf("fetch artifact %s: %w", champion.ArtifactPath, err)
	}
	_, err = s.registry.Deploy(data)
	return err
}

// Get returns one version by ID.
func (s *ModelService) Get(ctx context.Context, id uuid.UUID) (*domain.ModelVersion, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns the registered versions for a scorecard type, or all
// when the type is empty.
func (s *ModelService) List(ctx context.Context, scorecardType string) ([]*domain.ModelVersion, error) {
	return s.repo.List(ctx, scorecardType)
}

// Champion returns the current champion version for a scorecard type.
func (s *ModelService) Champion(ctx context.Context, scorecardType string) (*domain.ModelVersion, error) {
	return s.repo.GetChampion(ctx, scorecardType)
}

// publishEvent publishes a WebSocket event if a publisher is configured
func (s *ModelService) publishEvent(channel string, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(channel, event)
	}
}

func (s *ModelService) recordAudit(ctx context.Context, id uuid.UUID, action, actor string, changes map[string]any) {
	if s.auditRepo == nil {
		return
	}
	entry := &domain.AuditLog{
		EntityType: "model_version",
		EntityID:   id.String(),
		Action:     action,
		ActorID:    actor,
		ActorType:  domain.ActorUser,
		Changes:    changes,
	}
	if _, err := s.auditRepo.Create(ctx, entry); err != nil {
		log.Error().Err(err).Str("action", action).Msg("Failed to write audit entry")
	}
}
