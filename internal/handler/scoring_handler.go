package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
	"github.com/daonbank/kcs/kcs-backend/internal/middleware"
	"github.com/daonbank/kcs/kcs-backend/internal/service"
)

// ScoringHandler exposes the underwriting pipeline to back-office
// callers: ad-hoc evaluation, batch runs, rescoring and manual review.
type ScoringHandler struct {
	decisions *service.DecisionService
}

// NewScoringHandler creates a new ScoringHandler
func NewScoringHandler(decisions *service.DecisionService) *ScoringHandler {
	return &ScoringHandler{decisions: decisions}
}

// EvaluateRequest identifies the application to score
type EvaluateRequest struct {
	ApplicationID string          `json:"applicationId"`
	Alt           *domain.AltData `json:"altData,omitempty"`
}

// BatchEvaluateRequest scores many applications in one call
type BatchEvaluateRequest struct {
	ApplicationIDs []string `json:"applicationIds"`
}

// ReviewDecisionRequest is an underwriter's verdict on a manual-review case
type ReviewDecisionRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

// Evaluate godoc
// @Summary Evaluate an application
// @Description Runs the full scoring and decision pipeline for a pending application
// @Tags scoring
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body EvaluateRequest true "Application to evaluate"
// @Success 200 {object} domain.CreditScore
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /scoring/evaluate [post]
func (h *ScoringHandler) Evaluate(c echo.Context) error {
	var req EvaluateRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	applicationID, err := uuid.Parse(req.ApplicationID)
	if err != nil {
		return NewValidationError(c, "Invalid application ID", []ValidationError{
			{Field: "applicationId", Message: "Must be a valid UUID"},
		})
	}

	score, err := h.decisions.Evaluate(c.Request().Context(), service.EvaluateInput{
		ApplicationID: applicationID,
		Alt:           req.Alt,
		Actor:         middleware.GetSubject(c),
		ActorType:     domain.ActorUser,
		At:            time.Now().UTC(),
	})
	if err != nil {
		return FromDomainError(c, err, "Failed to evaluate application")
	}

	log.Info().
		Str("application_id", applicationID.String()).
		Int32("score", score.Score).
		Str("decision", string(score.Decision)).
		Msg("Application evaluated")

	return c.JSON(http.StatusOK, score)
}

// BatchEvaluate handles POST /api/v1/scoring/evaluate/batch. Partial
// failures are reported per item; the call itself succeeds.
func (h *ScoringHandler) BatchEvaluate(c echo.Context) error {
	var req BatchEvaluateRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	if len(req.ApplicationIDs) == 0 {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "applicationIds", Message: "At least one application ID is required"},
		})
	}

	ids := make([]uuid.UUID, len(req.ApplicationIDs))
	for i, raw := range req.ApplicationIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return NewValidationError(c, "Invalid application ID", []ValidationError{
				{Field: "applicationIds", Message: "All entries must be valid UUIDs"},
			})
		}
		ids[i] = id
	}

	result, err := h.decisions.BatchEvaluate(c.Request().Context(), service.BatchEvaluateInput{
		ApplicationIDs: ids,
		Actor:          middleware.GetSubject(c),
		ActorType:      domain.ActorBatch,
	})
	if err != nil {
		return FromDomainError(c, err, "Failed to run batch evaluation")
	}

	log.Info().
		Int("total", len(ids)).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("Batch evaluation finished")

	return c.JSON(http.StatusOK, result)
}

// Rescore handles POST /api/v1/scoring/applications/:id/rescore
func (h *ScoringHandler) Rescore(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid application ID", nil)
	}

	score, err := h.decisions.Rescore(c.Request().Context(), id, middleware.GetSubject(c), domain.ActorUser)
	if err != nil {
		return FromDomainError(c, err, "Failed to rescore application")
	}

	return c.JSON(http.StatusOK, score)
}

// ReviewDecision handles POST /api/v1/scoring/applications/:id/review
func (h *ScoringHandler) ReviewDecision(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid application ID", nil)
	}

	var req ReviewDecisionRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	app, err := h.decisions.ReviewDecision(c.Request().Context(), service.ReviewInput{
		ApplicationID: id,
		Approve:       req.Approve,
		Note:          req.Note,
		Actor:         middleware.GetSubject(c),
	})
	if err != nil {
		return FromDomainError(c, err, "Failed to record review decision")
	}

	log.Info().
		Str("application_id", id.String()).
		Bool("approved", req.Approve).
		Msg("Manual review decided")

	return c.JSON(http.StatusOK, app)
}

// GetScoreHistory handles GET /api/v1/scoring/applications/:id/history
func (h *ScoringHandler) GetScoreHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid application ID", nil)
	}

	scores, err := h.decisions.History(c.Request().Context(), id)
	if err != nil {
		return FromDomainError(c, err, "Failed to load score history")
	}

	return c.JSON(http.StatusOK, scores)
}
