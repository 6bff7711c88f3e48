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

// AdminHandler serves the operations console: regulation parameters,
// scorecard lifecycle, and the employer/industry master tables.
type AdminHandler struct {
	params    *service.ParamService
	models    *service.ModelService
	eqMasters domain.EQGradeMasterRepository
	irgs      domain.IRGMasterRepository
}

func NewAdminHandler(
	params *service.ParamService,
	models *service.ModelService,
	eqMasters domain.EQGradeMasterRepository,
	irgs domain.IRGMasterRepository,
) *AdminHandler {
	return &AdminHandler{
		params:    params,
		models:    models,
		eqMasters: eqMasters,
		irgs:      irgs,
	}
}

// CreateParamRequest is the payload for registering a new parameter
// row. The author comes from the authenticated subject; the approver
// must be a different person.
type CreateParamRequest struct {
	ParamKey      string              `json:"paramKey"`
	Category      string              `json:"category"`
	PhaseLabel    *string             `json:"phaseLabel"`
	Value         domain.ParamValue   `json:"value"`
	Condition     domain.ConditionMap `json:"condition"`
	EffectiveFrom time.Time           `json:"effectiveFrom"`
	EffectiveTo   *time.Time          `json:"effectiveTo"`
	LegalBasis    *string             `json:"legalBasis"`
	Description   *string             `json:"description"`
	ChangeReason  string              `json:"changeReason"`
	ApprovedBy    string              `json:"approvedBy"`
}

// CreateParam godoc
// @Summary Register a regulation parameter
// @Description Appends a new versioned parameter row. The caller is recorded as author; approvedBy must differ.
// @Tags admin
// @Accept json
// @Produce json
// @Param request body CreateParamRequest true "Parameter row"
// @Success 201 {object} domain.RegulationParam
// @Failure 400 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /admin/params [post]
func (h *AdminHandler) CreateParam(c echo.Context) error {
	var req CreateParamRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	param := &domain.RegulationParam{
		ParamKey:      req.ParamKey,
		Category:      req.Category,
		PhaseLabel:    req.PhaseLabel,
		Value:         req.Value,
		Condition:     req.Condition,
		EffectiveFrom: req.EffectiveFrom,
		EffectiveTo:   req.EffectiveTo,
		IsActive:      true,
		LegalBasis:    req.LegalBasis,
		Description:   req.Description,
		ChangeReason:  req.ChangeReason,
		CreatedBy:     middleware.GetSubject(c),
		ApprovedBy:    req.ApprovedBy,
	}

	created, err := h.params.Create(c.Request().Context(), param)
	if err != nil {
		return FromDomainError(c, err, "Failed to create parameter")
	}

	log.Info().
		Str("param_key", created.ParamKey).
		Str("created_by", created.CreatedBy).
		Msg("Regulation parameter created")
	return c.JSON(http.StatusCreated, created)
}

func (h *AdminHandler) DeactivateParam(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid parameter ID", []ValidationError{
			{Field: "id", Message: "must be a valid UUID"},
		})
	}

	param, err := h.params.Deactivate(c.Request().Context(), id, middleware.GetSubject(c))
	if err != nil {
		return FromDomainError(c, err, "Failed to deactivate parameter")
	}

	log.Info().
		Str("param_id", id.String()).
		Str("param_key", param.ParamKey).
		Msg("Regulation parameter deactivated")
	return c.JSON(http.StatusOK, param)
}

// ListParams godoc
// @Summary List regulation parameters
// @Tags admin
// @Produce json
// @Param category query string false "Filter by category"
// @Param activeOnly query bool false "Only rows currently flagged active"
// @Success 200 {array} domain.RegulationParam
// @Router /admin/params [get]
func (h *AdminHandler) ListParams(c echo.Context) error {
	category := c.QueryParam("category")
	activeOnly := c.QueryParam("activeOnly") == "true"

	params, err := h.params.List(c.Request().Context(), category, activeOnly)
	if err != nil {
		return FromDomainError(c, err, "Failed to list parameters")
	}
	return c.JSON(http.StatusOK, params)
}

func (h *AdminHandler) ListParamKeys(c echo.Context) error {
	keys, err := h.params.ListKeys(c.Request().Context())
	if err != nil {
		return FromDomainError(c, err, "Failed to list parameter keys")
	}
	return c.JSON(http.StatusOK, keys)
}

func (h *AdminHandler) GetParam(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid parameter ID", []ValidationError{
			{Field: "id", Message: "must be a valid UUID"},
		})
	}

	param, err := h.params.GetByID(c.Request().Context(), id)
	if err != nil {
		return FromDomainError(c, err, "Failed to get parameter")
	}
	return c.JSON(http.StatusOK, param)
}

// GetParamHistory returns every version of a key, newest first, for
// the audit view.
func (h *AdminHandler) GetParamHistory(c echo.Context) error {
	key := c.Param("key")
	if key == "" {
		return NewValidationError(c, "Parameter key is required", []ValidationError{
			{Field: "key", Message: "parameter key is required"},
		})
	}

	params, err := h.params.ListByKey(c.Request().Context(), key)
	if err != nil {
		return FromDomainError(c, err, "Failed to list parameter history")
	}
	return c.JSON(http.StatusOK, params)
}

// RegisterModelRequest describes a trained scorecard export to bring
// under lifecycle management.
type RegisterModelRequest struct {
	Name               string             `json:"name"`
	ScorecardType      string             `json:"scorecardType"`
	Version            string             `json:"version"`
	ArtifactPath       string             `json:"artifactPath"`
	GiniTrain          *float64           `json:"giniTrain"`
	GiniTest           *float64           `json:"giniTest"`
	GiniOOT            *float64           `json:"giniOot"`
	KSStatistic        *float64           `json:"ksStatistic"`
	AUCROC             *float64           `json:"aucRoc"`
	FairnessMetrics    map[string]float64 `json:"fairnessMetrics"`
	TrainingDataPeriod *string            `json:"trainingDataPeriod"`
	FeatureCount       *int32             `json:"featureCount"`
	Notes              *string            `json:"notes"`
}

// RegisterModel godoc
// @Summary Register a trained scorecard version
// @Description Records a trained version in draft state after parsing its artifact.
// @Tags admin
// @Accept json
// @Produce json
// @Param request body RegisterModelRequest true "Model version"
// @Success 201 {object} domain.ModelVersion
// @Failure 400 {object} ProblemDetails
// @Router /admin/models [post]
func (h *AdminHandler) RegisterModel(c echo.Context) error {
	var req RegisterModelRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	created, err := h.models.Register(c.Request().Context(), service.RegisterModelInput{
		Name:               req.Name,
		ScorecardType:      req.ScorecardType,
		Version:            req.Version,
		ArtifactPath:       req.ArtifactPath,
		GiniTrain:          req.GiniTrain,
		GiniTest:           req.GiniTest,
		GiniOOT:            req.GiniOOT,
		KSStatistic:        req.KSStatistic,
		AUCROC:             req.AUCROC,
		FairnessMetrics:    req.FairnessMetrics,
		TrainingDataPeriod: req.TrainingDataPeriod,
		FeatureCount:       req.FeatureCount,
		Notes:              req.Notes,
	})
	if err != nil {
		return FromDomainError(c, err, "Failed to register model version")
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *AdminHandler) ValidateModel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid model version ID", []ValidationError{
			{Field: "id", Message: "must be a valid UUID"},
		})
	}

	version, err := h.models.MarkValidated(c.Request().Context(), id, middleware.GetSubject(c))
	if err != nil {
		return FromDomainError(c, err, "Failed to mark model validated")
	}
	return c.JSON(http.StatusOK, version)
}

// PromoteModel godoc
// @Summary Promote a validated version to champion
// @Description Swaps the parsed artifact into the serving registry. In-flight evaluations finish on the prior version.
// @Tags admin
// @Produce json
// @Param id path string true "Model version ID"
// @Success 200 {object} domain.ModelVersion
// @Failure 409 {object} ProblemDetails
// @Router /admin/models/{id}/promote [post]
func (h *AdminHandler) PromoteModel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid model version ID", []ValidationError{
			{Field: "id", Message: "must be a valid UUID"},
		})
	}

	version, err := h.models.Promote(c.Request().Context(), id, middleware.GetSubject(c))
	if err != nil {
		return FromDomainError(c, err, "Failed to promote model version")
	}
	return c.JSON(http.StatusOK, version)
}

func (h *AdminHandler) RetireModel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid model version ID", []ValidationError{
			{Field: "id", Message: "must be a valid UUID"},
		})
	}

	version, err := h.models.Retire(c.Request().Context(), id, middleware.GetSubject(c))
	if err != nil {
		return FromDomainError(c, err, "Failed to retire model version")
	}
	return c.JSON(http.StatusOK, version)
}

func (h *AdminHandler) ListModels(c echo.Context) error {
	versions, err := h.models.List(c.Request().Context(), c.QueryParam("scorecardType"))
	if err != nil {
		return FromDomainError(c, err, "Failed to list model versions")
	}
	return c.JSON(http.StatusOK, versions)
}

func (h *AdminHandler) GetModel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid model version ID", []ValidationError{
			{Field: "id", Message: "must be a valid UUID"},
		})
	}

	version, err := h.models.Get(c.Request().Context(), id)
	if err != nil {
		return FromDomainError(c, err, "Failed to get model version")
	}
	return c.JSON(http.StatusOK, version)
}

func (h *AdminHandler) GetChampionModel(c echo.Context) error {
	scorecardType := c.Param("scorecardType")
	if scorecardType == "" {
		return NewValidationError(c, "Scorecard type is required", []ValidationError{
			{Field: "scorecardType", Message: "scorecard type is required"},
		})
	}

	version, err := h.models.Champion(c.Request().Context(), scorecardType)
	if err != nil {
		return FromDomainError(c, err, "No champion deployed for scorecard type")
	}
	return c.JSON(http.StatusOK, version)
}

// ListEQGrades returns the employer quality master table used for
// limit and rate benefits.
func (h *AdminHandler) ListEQGrades(c echo.Context) error {
	activeOnly := c.QueryParam("activeOnly") != "false"

	masters, err := h.eqMasters.List(c.Request().Context(), activeOnly)
	if err != nil {
		return FromDomainError(c, err, "Failed to list employer grades")
	}
	return c.JSON(http.StatusOK, masters)
}

// ListIRGs returns the industry risk grade table keyed by KSIC code.
func (h *AdminHandler) ListIRGs(c echo.Context) error {
	activeOnly := c.QueryParam("activeOnly") != "false"

	masters, err := h.irgs.List(c.Request().Context(), activeOnly)
	if err != nil {
		return FromDomainError(c, err, "Failed to list industry risk grades")
	}
	return c.JSON(http.StatusOK, masters)
}
