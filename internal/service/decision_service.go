package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
	"github.com/daonbank/kcs/kcs-backend/internal/websocket"
)

// Decision gate thresholds. Scores below the passing floor are declined
// outright; scores below the review line route to a human underwriter.
const (
	minPassingScore   = 450
	manualReviewScore = 530

	// Statutory minimum annual income in KRW.
	minAnnualIncomeKRW = 12_000_000

	maxBatchSize = 500
)

// EvaluateInput identifies the application to score. Alt carries fresh
// alternative-data signals; it is ignored without alt-data consent.
type EvaluateInput struct {
	ApplicationID uuid.UUID
	Alt           *domain.AltData
	Actor         string
	ActorType     domain.ActorType
	At            time.Time
}

// ReviewInput is an underwriter's verdict on a manual-review case.
type ReviewInput struct {
	ApplicationID uuid.UUID
	Approve       bool
	Note          string
	Actor         string
}

// AppealInput is an applicant's request to contest a decision.
type AppealInput struct {
	ApplicationID uuid.UUID
	Reason        string
	Actor         string
}

// BatchEvaluateInput scores many applications in one call.
type BatchEvaluateInput struct {
	ApplicationIDs []uuid.UUID
	Actor          string
	ActorType      domain.ActorType
}

// BatchEvaluateItem is the per-application outcome of a batch run.
// Failures are isolated: one bad application never aborts the rest.
type BatchEvaluateItem struct {
	ApplicationID uuid.UUID           `json:"applicationId"`
	Score         *domain.CreditScore `json:"score,omitempty"`
	Error         string              `json:"error,omitempty"`
}

// BatchEvaluateResult summarizes a batch scoring run.
type BatchEvaluateResult struct {
	Items     []BatchEvaluateItem `json:"items"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
}

// DecisionService runs the underwriting pipeline: bureau pull, scoring,
// decision gates, limits, pricing, persistence, and the status machine.
type DecisionService struct {
	applicationRepo domain.ApplicationRepository
	applicantRepo   domain.ApplicantRepository
	scoreRepo       domain.CreditScoreRepository
	auditRepo       domain.AuditLogRepository
	cb              *CBService
	engine          *ScoringEngine
	eventPublisher  websocket.EventPublisher
}

// NewDecisionService creates a new DecisionService.
func NewDecisionService(
	applicationRepo domain.ApplicationRepository,
	applicantRepo domain.ApplicantRepository,
	scoreRepo domain.CreditScoreRepository,
	auditRepo domain.AuditLogRepository,
	cb *CBService,
	engine *ScoringEngine,
) *DecisionService {
	return &DecisionService{
		applicationRepo: applicationRepo,
		applicantRepo:   applicantRepo,
		scoreRepo:       scoreRepo,
		auditRepo:       auditRepo,
		cb:              cb,
		engine:          engine,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *DecisionService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// publishEvent publishes a WebSocket event if a publisher is configured
func (s *DecisionService) publishEvent(channel string, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(channel, event)
	}
}

// Evaluate scores one submitted application and applies the decision
// gates. The application moves through under_review to its outcome in a
// single call; nothing is persisted if any stage fails.
func (s *DecisionService) Evaluate(ctx context.Context, input EvaluateInput) (*domain.CreditScore, error) {
	// 1. Load the application and check it is in a scoreable state.
	app, err := s.applicationRepo.GetByID(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	switch app.Status {
	case domain.StatusDraft:
		return nil, domain.NewValidationError("status", "application has not been submitted")
	case domain.StatusApproved, domain.StatusRejected, domain.StatusManualReview:
		return nil, domain.ErrDuplicateEvaluation
	case domain.StatusWithdrawn, domain.StatusSuspended:
		return nil, fmt.Errorf("status %s: %w", app.Status, domain.ErrInvalidTransition)
	}

	// 2. Move into under_review. Pending and appealed applications pass
	// through; a re-run of an evaluation already under review is a no-op
	// transition.
	if app.Status != domain.StatusUnderReview {
		if !app.Status.CanTransitionTo(domain.StatusUnderReview) {
			return nil, fmt.Errorf("status %s: %w", app.Status, domain.ErrInvalidTransition)
		}
		app.Status = domain.StatusUnderReview
	}

	// 3. Load the applicant and verify bureau consent.
	applicant, err := s.applicantRepo.GetByID(ctx, app.ApplicantID)
	if err != nil {
		return nil, err
	}
	if !applicant.Consent.Bureau {
		return nil, domain.ErrConsentRequired
	}
	alt := input.Alt
	if !applicant.Consent.AltData {
		alt = nil
	}

	now := time.Now().UTC()
	at := input.At
	if at.IsZero() {
		at = now
	}

	// 4. Pull the bureau report and run the scoring engine.
	report, err := s.cb.FetchReport(ctx, applicant.IdentityToken, true)
	if err != nil {
		s.recordFailure(ctx, app.ID, input.Actor, input.ActorType, err)
		return nil, err
	}
	out, err := s.engine.Score(ctx, &ScoringInput{
		Applicant:   applicant,
		Application: app,
		Report:      report,
		Alt:         alt,
		At:          at,
	})
	if err != nil {
		s.recordFailure(ctx, app.ID, input.Actor, input.ActorType, err)
		return nil, fmt.Errorf("score application %s: %w", app.ApplicationNo, err)
	}

	// 5. Apply the decision gates and compute the granted amount.
	decision, reasons, granted := s.decide(out, report, applicant, app)

	score := buildScore(app, applicant, out, decision, reasons, granted, now)
	snapshot := buildSnapshot(app, applicant, report, out, at, now)

	// 6. Persist the score, then the application with its snapshot and
	// final status.
	created, err := s.scoreRepo.Create(ctx, score)
	if err != nil {
		s.recordFailure(ctx, app.ID, input.Actor, input.ActorType, err)
		return nil, err
	}

	target := statusForDecision(decision)
	if !app.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("under_review to %s: %w", target, domain.ErrInvalidTransition)
	}
	app.Status = target
	app.Snapshot = snapshot
	app.ScoredAt = &now
	app, err = s.applicationRepo.Update(ctx, app)
	if err != nil {
		return nil, err
	}

	// 7. Audit and notify.
	s.recordAudit(ctx, "credit_score", created.ID.String(), "score.created", input.Actor, input.ActorType, map[string]any{
		"application_id": app.ID.String(),
		"score":          created.Score,
		"grade":          created.Grade,
		"decision":       created.Decision,
		"model_version":  created.ModelVersion,
	})
	s.recordAudit(ctx, "loan_application", app.ID.String(), "application."+string(decision), input.Actor, input.ActorType, map[string]any{
		"application_no": app.ApplicationNo,
		"status":         app.Status,
		"score_id":       created.ID.String(),
	})

	s.publishEvent(app.ApplicantID.String(), websocket.ScoreCreated(created))
	s.publishEvent(app.ApplicantID.String(), websocket.ApplicationDecided(app))
	s.publishEvent(websocket.OpsChannel, websocket.ScoreCreated(created))

	log.Info().
		Str("application_no", app.ApplicationNo).
		Int32("score", created.Score).
		Str("grade", string(created.Grade)).
		Str("decision", string(created.Decision)).
		Str("pd_source", created.PDSource).
		Strs("degradations", out.Degradations).
		Msg("Application evaluated")

	return created, nil
}

// BatchEvaluate scores applications sequentially, isolating failures
// per item. The batch aborts early only when the context is cancelled.
func (s *DecisionService) BatchEvaluate(ctx context.Context, input BatchEvaluateInput) (*BatchEvaluateResult, error) {
	if len(input.ApplicationIDs) == 0 {
		return nil, domain.NewValidationError("applicationIds", "at least one application is required")
	}
	if len(input.ApplicationIDs) > maxBatchSize {
		return nil, domain.NewValidationError("applicationIds", fmt.Sprintf("batch size exceeds %d", maxBatchSize))
	}

	result := &BatchEvaluateResult{Items: make([]BatchEvaluateItem, 0, len(input.ApplicationIDs))}
	for _, id := range input.ApplicationIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := BatchEvaluateItem{ApplicationID: id}
		score, err := s.Evaluate(ctx, EvaluateInput{
			ApplicationID: id,
			Actor:         input.Actor,
			ActorType:     input.ActorType,
		})
		if err != nil {
			item.Error = err.Error()
			result.Failed++
		} else {
			item.Score = score
			result.Succeeded++
		}
		result.Items = append(result.Items, item)
	}

	log.Info().
		Int("total", len(result.Items)).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("Batch evaluation finished")
	return result, nil
}

// Rescore produces a fresh shadow score for an already-decided
// application, typically on an early-warning trigger. The application
// status and snapshot of record are left untouched.
func (s *DecisionService) Rescore(ctx context.Context, applicationID uuid.UUID, actor string, actorType domain.ActorType) (*domain.CreditScore, error) {
	app, err := s.applicationRepo.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	switch app.Status {
	case domain.StatusDraft:
		return nil, domain.NewValidationError("status", "application has not been submitted")
	case domain.StatusWithdrawn:
		return nil, fmt.Errorf("status %s: %w", app.Status, domain.ErrInvalidTransition)
	}

	applicant, err := s.applicantRepo.GetByID(ctx, app.ApplicantID)
	if err != nil {
		return nil, err
	}
	if !applicant.Consent.Bureau {
		return nil, domain.ErrConsentRequired
	}

	now := time.Now().UTC()
	report, err := s.cb.FetchReport(ctx, applicant.IdentityToken, true)
	if err != nil {
		return nil, err
	}
	out, err := s.engine.Score(ctx, &ScoringInput{
		Applicant:   applicant,
		Application: app,
		Report:      report,
		At:          now,
	})
	if err != nil {
		return nil, fmt.Errorf("rescore application %s: %w", app.ApplicationNo, err)
	}

	decision, reasons, granted := s.decide(out, report, applicant, app)
	score := buildScore(app, applicant, out, decision, reasons, granted, now)
	// Shadow scores never open a fresh appeal window.
	score.AppealDeadline = nil

	created, err := s.scoreRepo.Create(ctx, score)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "loan_application", app.ID.String(), "application.rescored", actor, actorType, map[string]any{
		"application_no": app.ApplicationNo,
		"score_id":       created.ID.String(),
		"score":          created.Score,
		"decision":       created.Decision,
	})
	s.publishEvent(websocket.OpsChannel, websocket.ScoreCreated(created))

	log.Info().
		Str("application_no", app.ApplicationNo).
		Int32("score", created.Score).
		Str("decision", string(created.Decision)).
		Msg("Application rescored")
	return created, nil
}

// ReviewDecision records an underwriter's verdict on a manual-review
// application.
func (s *DecisionService) ReviewDecision(ctx context.Context, input ReviewInput) (*domain.LoanApplication, error) {
	if input.Actor == "" {
		return nil, domain.NewValidationError("actor", "reviewer is required")
	}
	if input.Note == "" {
		return nil, domain.NewValidationError("note", "review note is required")
	}

	app, err := s.applicationRepo.GetByID(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != domain.StatusManualReview {
		return nil, fmt.Errorf("status %s: %w", app.Status, domain.ErrInvalidTransition)
	}

	target := domain.StatusRejected
	if input.Approve {
		target = domain.StatusApproved
	}
	if !app.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("manual_review to %s: %w", target, domain.ErrInvalidTransition)
	}
	app.Status = target
	app, err = s.applicationRepo.Update(ctx, app)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "loan_application", app.ID.String(), "application.review_decision", input.Actor, domain.ActorUser, map[string]any{
		"application_no": app.ApplicationNo,
		"approved":       input.Approve,
		"note":           input.Note,
	})
	s.publishEvent(app.ApplicantID.String(), websocket.ApplicationDecided(app))
	s.publishEvent(websocket.OpsChannel, websocket.ApplicationDecided(app))

	log.Info().
		Str("application_no", app.ApplicationNo).
		Bool("approved", input.Approve).
		Str("reviewer", input.Actor).
		Msg("Manual review decided")
	return app, nil
}

// Appeal opens an appeal on a rejected or manual-review decision while
// the window is still open. A subsequent Evaluate re-scores the case.
func (s *DecisionService) Appeal(ctx context.Context, input AppealInput) (*domain.LoanApplication, error) {
	if input.Reason == "" {
		return nil, domain.NewValidationError("reason", "appeal reason is required")
	}

	app, err := s.applicationRepo.GetByID(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != domain.StatusRejected && app.Status != domain.StatusManualReview {
		return nil, domain.ErrAppealNotAllowed
	}

	latest, err := s.scoreRepo.GetLatestByApplicationID(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	if !latest.AppealOpen(time.Now().UTC()) {
		return nil, domain.ErrAppealWindowClosed
	}

	if !app.Status.CanTransitionTo(domain.StatusAppealed) {
		return nil, fmt.Errorf("status %s: %w", app.Status, domain.ErrInvalidTransition)
	}
	app.Status = domain.StatusAppealed
	app, err = s.applicationRepo.Update(ctx, app)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "loan_application", app.ID.String(), "application.appealed", input.Actor, domain.ActorUser, map[string]any{
		"application_no": app.ApplicationNo,
		"reason":         input.Reason,
	})
	s.publishEvent(app.ApplicantID.String(), websocket.ApplicationUpdated(app))
	s.publishEvent(websocket.OpsChannel, websocket.ApplicationUpdated(app))

	log.Info().
		Str("application_no", app.ApplicationNo).
		Msg("Appeal opened")
	return app, nil
}

// Result returns the scoring result of record: the latest by scoredAt.
func (s *DecisionService) Result(ctx context.Context, applicationID uuid.UUID) (*domain.CreditScore, error) {
	return s.scoreRepo.GetLatestByApplicationID(ctx, applicationID)
}

// History returns every scoring result the application received, newest
// first.
func (s *DecisionService) History(ctx context.Context, applicationID uuid.UUID) ([]*domain.CreditScore, error) {
	return s.scoreRepo.ListByApplicationID(ctx, applicationID)
}

// decide runs the rejection gates in regulatory order, then splits the
// survivors into auto-approval and manual review.
func (s *DecisionService) decide(out *ScoringOutcome, report *domain.CBReport, applicant *domain.Applicant, app *domain.LoanApplication) (domain.Decision, []string, decimal.Decimal) {
	if gateTripped(out, report, applicant) {
		return domain.DecisionRejected, rejectionReasons(out, report, applicant), decimal.Zero
	}
	if out.Score < manualReviewScore {
		// Marginal scores go to a human with the requested amount intact.
		return domain.DecisionManualReview, nil, app.RequestedAmount
	}
	return domain.DecisionApproved, nil, grantedAmount(out, applicant, app)
}

// gateTripped checks the hard rejection gates in order: active
// delinquency, score floor, DSR ceiling, LTV ceiling, income floor.
func gateTripped(out *ScoringOutcome, report *domain.CBReport, applicant *domain.Applicant) bool {
	switch {
	case report.WorstDelinquencyStatus >= 2:
		return true
	case out.Score < minPassingScore:
		return true
	case out.DSRPercent > out.DSRLimit:
		return true
	case ltvExceeded(out):
		return true
	case applicant.AnnualIncome.LessThan(decimal.NewFromInt(minAnnualIncomeKRW)):
		return true
	}
	return false
}

func ltvExceeded(out *ScoringOutcome) bool {
	return out.LTV != nil && out.LTVLimit != nil && *out.LTV*100 > *out.LTVLimit
}

// rejectionReasons builds the applicant-facing adverse-action notice in
// priority order, at most three items. Any delinquency record is worth
// telling the applicant even when a harder gate caused the rejection.
func rejectionReasons(out *ScoringOutcome, report *domain.CBReport, applicant *domain.Applicant) []string {
	var reasons []string
	if report.WorstDelinquencyStatus >= 1 {
		reasons = append(reasons, "현재 연체 기록이 있어 대출이 불가합니다.")
	}
	if out.Score < minPassingScore {
		reasons = append(reasons, fmt.Sprintf("신용평가 점수(%d점)가 최저 기준(%d점)에 미달합니다.", out.Score, minPassingScore))
	}
	if out.DSRPercent > out.DSRLimit {
		reasons = append(reasons, fmt.Sprintf("총부채원리금상환비율(DSR)이 %.1f%%로 한도(%.0f%%)를 초과합니다.", finiteDSR(out.DSRPercent), out.DSRLimit))
	}
	if ltvExceeded(out) {
		reasons = append(reasons, fmt.Sprintf("담보인정비율(LTV)이 %.1f%%로 한도(%.0f%%)를 초과합니다.", *out.LTV*100, *out.LTVLimit))
	}
	if applicant.AnnualIncome.LessThan(decimal.NewFromInt(minAnnualIncomeKRW)) {
		reasons = append(reasons, "연소득이 최저 기준(1,200만원)에 미달합니다.")
	}
	if len(reasons) > 3 {
		reasons = reasons[:3]
	}
	return reasons
}

// grantedAmount caps the requested amount by verified income times the
// employment, employer-grade, and segment multipliers, then by the LTV
// ceiling for mortgages and the statutory maximum for micro loans.
func grantedAmount(out *ScoringOutcome, applicant *domain.Applicant, app *domain.LoanApplication) decimal.Decimal {
	limit := applicant.AnnualIncome.Mul(decimal.NewFromFloat(out.IncomeMultiplier))
	if out.EQBenefit != nil {
		limit = limit.Mul(decimal.NewFromFloat(out.EQBenefit.LimitMultiplier))
	}
	if out.SegmentApplied && out.SegmentBenefit != nil && out.SegmentBenefit.LimitMultiplier > 0 {
		limit = limit.Mul(decimal.NewFromFloat(out.SegmentBenefit.LimitMultiplier))
	}

	granted := decimal.Min(app.RequestedAmount, limit)
	if app.ProductType.IsMortgage() && app.Collateral != nil && out.LTVLimit != nil {
		ltvCap := app.Collateral.Value.Mul(decimal.NewFromFloat(*out.LTVLimit / 100))
		granted = decimal.Min(granted, ltvCap)
	}
	if app.ProductType == domain.ProductMicro {
		granted = decimal.Min(granted, domain.MicroMaxAmount)
	}
	return granted.RoundDown(0)
}

func statusForDecision(d domain.Decision) domain.ApplicationStatus {
	switch d {
	case domain.DecisionApproved:
		return domain.StatusApproved
	case domain.DecisionRejected:
		return domain.StatusRejected
	default:
		return domain.StatusManualReview
	}
}

// buildScore assembles the persisted scoring result from the engine
// outcome and the gate decision.
func buildScore(app *domain.LoanApplication, applicant *domain.Applicant, out *ScoringOutcome, decision domain.Decision, reasons []string, granted decimal.Decimal, now time.Time) *domain.CreditScore {
	score := &domain.CreditScore{
		ApplicationID:    app.ID,
		ApplicantID:      applicant.ID,
		Score:            int32(out.Score),
		Grade:            out.Grade,
		RawProbability:   out.RawPD,
		PD:               out.FinalPD,
		CalibrationBin:   CalibrationBin(out.FinalPD),
		ModelVersion:     out.ModelVersion,
		PDSource:         out.PDSource,
		DSR:              finiteDSR(out.DSRPercent),
		StressDSR:        finiteDSR(out.StressDSR * 100),
		EAD:              out.EAD,
		LGD:              out.LGD,
		RiskWeight:       out.RiskWeight,
		EconomicCapital:  out.EconomicCapital,
		RAROC:            out.RAROC,
		Decision:         decision,
		FinalRate:        out.RateBreakdown.FinalRate,
		RateBreakdown:    out.RateBreakdown,
		RejectionReasons: reasons,
		PositiveFactors:  out.PositiveFactors,
		NegativeFactors:  out.NegativeFactors,
		ScoredAt:         now,
	}
	if out.LTV != nil {
		ltvPct := *out.LTV * 100
		score.LTV = &ltvPct
	}
	if decision != domain.DecisionRejected {
		score.ApprovedAmount = &granted
	}
	if decision == domain.DecisionRejected || decision == domain.DecisionManualReview {
		deadline := now.AddDate(0, 0, domain.AppealWindowDays)
		score.AppealDeadline = &deadline
	}
	return score
}

// buildSnapshot freezes every external input of the evaluation so the
// decision can be reproduced after the rules change.
func buildSnapshot(app *domain.LoanApplication, applicant *domain.Applicant, report *domain.CBReport, out *ScoringOutcome, at, now time.Time) *domain.RegulationSnapshot {
	return &domain.RegulationSnapshot{
		EffectiveAt:         at,
		DSRLimit:            out.DSRLimit,
		LTVLimit:            out.LTVLimit,
		StressAdd:           out.StressAdd,
		StressRegion:        app.StressRegion,
		RateType:            app.RateType,
		StatutoryRateCap:    out.StatutoryCap,
		BaseRate:            out.BaseRate,
		EQGrade:             out.EQGrade,
		IRGGrade:            applicant.IRGOrDefault(),
		IRGPDAdjustment:     out.IRGAdjustment,
		SegmentCode:         out.SegmentCode,
		CBSource:            string(report.Source),
		CBScore:             report.Score,
		CBFallback:          report.IsFallback,
		ModelVersion:        out.ModelVersion,
		IncomeMultiplier:    out.IncomeMultiplier,
		CCFRatio:            out.CCF,
		Degradations:        out.Degradations,
		ParamKeysResolved:   out.ParamKeysResolved,
		SnapshotGeneratedAt: now,
	}
}

// recordFailure leaves an audit trace when an evaluation dies mid-way.
// Nothing else is persisted on failure.
func (s *DecisionService) recordFailure(ctx context.Context, applicationID uuid.UUID, actor string, actorType domain.ActorType, cause error) {
	log.Error().Err(cause).Str("application_id", applicationID.String()).Msg("Evaluation failed")
	s.recordAudit(ctx, "loan_application", applicationID.String(), "application.evaluation_failed", actor, actorType, map[string]any{
		"error": cause.Error(),
	})
}

// recordAudit appends an audit entry without failing the caller.
func (s *DecisionService) recordAudit(ctx context.Context, entityType, entityID, action, actor string, actorType domain.ActorType, changes map[string]any) {
	if s.auditRepo == nil {
		return
	}
	if actor == "" {
		actor = "system"
	}
	if actorType == "" {
		actorType = domain.ActorSystem
	}
	entry := &domain.AuditLog{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorID:    actor,
		ActorType:  actorType,
		Changes:    changes,
	}
	if _, err := s.auditRepo.Create(ctx, entry); err != nil {
		log.Error().Err(err).Str("action", action).Str("entity_id", entityID).Msg("Failed to write audit entry")
	}
}
