package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
	"github.com/daonbank/kcs/kcs-backend/internal/middleware"
	"github.com/daonbank/kcs/kcs-backend/internal/service"
	"github.com/daonbank/kcs/kcs-backend/internal/util"
)

// ApplicationHandler drives the digital application journey over HTTP.
// Raw registration numbers are hashed here at the edge; only identity
// tokens travel further in.
type ApplicationHandler struct {
	applications *service.ApplicationService
	decisions    *service.DecisionService
	hasher       *util.IdentityHasher
}

// NewApplicationHandler creates a new ApplicationHandler
func NewApplicationHandler(applications *service.ApplicationService, decisions *service.DecisionService, hasher *util.IdentityHasher) *ApplicationHandler {
	return &ApplicationHandler{
		applications: applications,
		decisions:    decisions,
		hasher:       hasher,
	}
}

// StartApplicationRequest opens a new application session
type StartApplicationRequest struct {
	DigitalChannel string `json:"digitalChannel"`
	ProductType    string `json:"productType"`
}

// ConsentRequest records the data-use agreements
type ConsentRequest struct {
	Bureau      bool `json:"bureau"`
	AltData     bool `json:"altData"`
	OpenBanking bool `json:"openBanking"`
}

// SoleProprietorRequest carries the business profile for sole proprietors.
// The business registration number is hashed before storage.
type SoleProprietorRequest struct {
	BusinessRegistrationNo string  `json:"businessRegistrationNo"`
	BusinessType           *string `json:"businessType,omitempty"`
	BusinessDurationMonths int32   `json:"businessDurationMonths"`
	AnnualRevenue          string  `json:"annualRevenue"`
	OperatingIncome        string  `json:"operatingIncome"`
	TaxFilings3Y           int32   `json:"taxFilings3y"`
	BusinessCreditScore    *int32  `json:"businessCreditScore,omitempty"`
	RevenueGrowthRate      *string `json:"revenueGrowthRate,omitempty"`
}

// BasicInfoRequest carries the applicant identity and demographics step
type BasicInfoRequest struct {
	ResidentRegistrationNo string                 `json:"residentRegistrationNo"`
	NameMasked             *string                `json:"nameMasked,omitempty"`
	Kind                   string                 `json:"kind"`
	Age                    int32                  `json:"age"`
	EmploymentKind         string                 `json:"employmentKind"`
	AnnualIncome           string                 `json:"annualIncome"`
	IncomeVerified         bool                   `json:"incomeVerified"`
	OccupationCode         *string                `json:"occupationCode,omitempty"`
	LicenseNumber          *string                `json:"licenseNumber,omitempty"`
	EmployerName           *string                `json:"employerName,omitempty"`
	ArtsFundRegistered     bool                   `json:"artsFundRegistered"`
	SoleProprietor         *SoleProprietorRequest `json:"soleProprietor,omitempty"`
}

// CollateralRequest describes the property backing a mortgage
type CollateralRequest struct {
	Value           string `json:"value"`
	RegionClass     string `json:"regionClass"`
	OwnedProperties int32  `json:"ownedProperties"`
}

// FinancialInfoRequest carries existing debt and collateral details
type FinancialInfoRequest struct {
	ExistingMonthlyDebtPayment string             `json:"existingMonthlyDebtPayment"`
	ExistingLoansCount         int32              `json:"existingLoansCount"`
	RevolvingLine              *string            `json:"revolvingLine,omitempty"`
	RevolvingBalance           *string            `json:"revolvingBalance,omitempty"`
	Collateral                 *CollateralRequest `json:"collateral,omitempty"`
}

// ProductSelectRequest carries the requested product terms
type ProductSelectRequest struct {
	RequestedAmount     string  `json:"requestedAmount"`
	RequestedTermMonths int32   `json:"requestedTermMonths"`
	Purpose             *string `json:"purpose,omitempty"`
}

// SubmitRequest is the final confirmation step
type SubmitRequest struct {
	ESignToken   string `json:"esignToken"`
	FinalConfirm bool   `json:"finalConfirm"`
	RateType     string `json:"rateType"`
	StressRegion string `json:"stressDsrRegion"`
}

// AppealRequest contests a rejected or manual-review decision
type AppealRequest struct {
	Reason string `json:"reason"`
}

// StartApplication godoc
// @Summary Start an application session
// @Description Opens a draft loan application on a digital channel
// @Tags applications
// @Accept json
// @Produce json
// @Param request body StartApplicationRequest true "Channel and product"
// @Success 201 {object} domain.LoanApplication
// @Failure 400 {object} ProblemDetails
// @Router /applications [post]
func (h *ApplicationHandler) StartApplication(c echo.Context) error {
	var req StartApplicationRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	app, err := h.applications.Start(c.Request().Context(), service.StartInput{
		DigitalChannel: req.DigitalChannel,
		ProductType:    domain.ProductType(req.ProductType),
	})
	if err != nil {
		return FromDomainError(c, err, "Failed to start application")
	}

	return c.JSON(http.StatusCreated, app)
}

// RecordConsent handles POST /api/v1/applications/:id/consent
func (h *ApplicationHandler) RecordConsent(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid application ID", nil)
	}

	var req ConsentRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	app, err := h.applications.Consent(c.Request().Context(), service.ConsentInput{
		ApplicationID: id,
		Bureau:        req.Bureau,
		AltData:       req.AltData,
		OpenBanking:   req.OpenBanking,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConsentRequired) {
			return NewValidationError(c, "Consent required", []ValidationError{
				{Field: "bureau", Message: "Credit bureau consent is mandatory"},
			})
		}
		return FromDomainError(c, err, "Failed to record consent")
	}

	return c.JSON(http.StatusOK, app)
}

// SubmitBasicInfo handles POST /api/v1/applications/:id/basic-info
func (h *ApplicationHandler) SubmitBasicInfo(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid application ID", nil)
	}

	var req BasicInfoRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	if req.ResidentRegistrationNo == "" {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "residentRegistrationNo", Message: "Registration number is required"},
		})
	}

	income, err := decimal.NewFromString(req.AnnualIncome)
	if err != nil {
		return NewValidationError(c, "Invalid annual income", []ValidationError{
			{Field: "annualIncome", Message: "Must be a valid decimal number"},
		})
	}

	soleProp, verr := toSoleProprietorProfile(req.SoleProprietor, h.hasher)
	if verr != nil {
		return NewValidationError(c, "Invalid sole proprietor profile", []ValidationError{*verr})
	}

	input := service.BasicInfoInput{
		ApplicationID:      id,
		IdentityToken:      h.hasher.HashRRN(req.ResidentRegistrationNo),
		NameMasked:         req.NameMasked,
		Kind:               domain.ApplicantKind(req.Kind),
		Age:                req.Age,
		EmploymentKind:     domain.EmploymentKind(req.EmploymentKind),
		AnnualIncome:       income,
		IncomeVerified:     req.IncomeVerified,
		OccupationCode:     req.OccupationCode,
		LicenseNumber:      req.LicenseNumber,
		EmployerName:       req.EmployerName,
		ArtsFundRegistered: req.ArtsFundRegistered,
		SoleProprietor:     soleProp,
	}

	app, err := h.applications.BasicInfo(c.Request().Context(), input)
	if err != nil {
		return FromDomainError(c, err, "Failed to record applicant details")
	}

	return c.JSON(http.StatusOK, app)
}

// SubmitFinancialInfo handles POST /api/v1/applications/:id/financial-info
func (h *ApplicationHandler) SubmitFinancialInfo(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid application ID", nil)
	}

	var req FinancialInfoRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	debtPayment, err := decimal.NewFromString(req.ExistingMonthlyDebtPayment)
	if err != nil {
		return NewValidationError(c, "Invalid debt payment", []ValidationError{
			{Field: "existingMonthlyDebtPayment", Message: "Must be a valid decimal number"},
		})
	}

	revolvingLine, verr := optionalDecimal(req.RevolvingLine, "revolvingLine")
	if verr != nil {
		return NewValidationError(c, "Validation failed", []ValidationError{*verr})
	}
	revolvingBalance, verr := optionalDecimal(req.RevolvingBalance, "revolvingBalance")
	if verr != nil {
		return NewValidationError(c, "Validation failed", []ValidationError{*verr})
	}

	var collateral *domain.CollateralInfo
	if req.Collateral != nil {
		value, err := decimal.NewFromString(req.Collateral.Value)
		if err != nil {
			return NewValidationError(c, "Invalid collateral value", []ValidationError{
				{Field: "collateral.value", Message: "Must be a valid decimal number"},
			})
		}
		collateral = &domain.CollateralInfo{
			Value:           value,
			RegionClass:     domain.LTVRegionClass(req.Collateral.RegionClass),
			OwnedProperties: req.Collateral.OwnedProperties,
		}
	}

	app, err := h.applications.FinancialInfo(c.Request().Context(), service.FinancialInfoInput{
		ApplicationID:              id,
		ExistingMonthlyDebtPayment: debtPayment,
		ExistingLoansCount:         req.ExistingLoansCount,
		RevolvingLine:              revolvingLine,
		RevolvingBalance:           revolvingBalance,
		Collateral:                 collateral,
	})
	if err != nil {
		return FromDomainError(c, err, "Failed to record financial details")
	}

	return c.JSON(http.StatusOK, app)
}

// SelectProduct handles POST /api/v1/applications/:id/product
func (h *ApplicationHandler) SelectProduct(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid application ID", nil)
	}

	var req ProductSelectRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	amount, err := decimal.NewFromString(req.RequestedAmount)
	if err != nil {
		return NewValidationError(c, "Invalid requested amount", []ValidationError{
			{Field: "requestedAmount", Message: "Must be a valid decimal number"},
		})
	}

	app, err := h.applications.ProductSelect(c.Request().Context(), service.ProductSelectInput{
		ApplicationID:       id,
		RequestedAmount:     amount,
		RequestedTermMonths: req.RequestedTermMonths,
		Purpose:             req.Purpose,
	})
	if err != nil {
		return FromDomainError(c, err, "Failed to record product selection")
	}

	return c.JSON(http.StatusOK, app)
}

// ReviewApplication handles POST /api/v1/applications/:id/review
func (h *ApplicationHandler) ReviewApplication(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid application ID", nil)
	}

	app, err := h.applications.Review(c.Request().Context(), id)
	if err != nil {
		return FromDomainError(c, err, "Failed to review application")
	}

	return c.JSON(http.StatusOK, app)
}

// SubmitApplication godoc
// @Summary Submit an application
// @Description Confirms the application with an electronic signature and runs the evaluation
// @Tags applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param request body SubmitRequest true "Final confirmation"
// @Success 200 {object} domain.CreditScore
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /applications/{id}/submit [post]
func (h *ApplicationHandler) SubmitApplication(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid application ID", nil)
	}

	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	score, err := h.applications.Submit(c.Request().Context(), service.SubmitInput{
		ApplicationID: id,
		ESignToken:    req.ESignToken,
		FinalConfirm:  req.FinalConfirm,
		RateType:      domain.RateType(req.RateType),
		StressRegion:  domain.StressDSRRegion(req.StressRegion),
	})
	if err != nil {
		return FromDomainError(c, err, "Failed to submit application")
	}

	log.Info().
		Str("application_id", id.String()).
		Str("decision", string(score.Decision)).
		Msg("Application submitted and scored")

	return c.JSON(http.StatusOK, score)
}

// WithdrawApplication handles POST /api/v1/applications/:id/withdraw
func (h *ApplicationHandler) WithdrawApplication(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid application ID", nil)
	}

	actor := middleware.GetSubject(c)
	if actor == "" {
		actor = "applicant"
	}

	app, err := h.applications.Withdraw(c.Request().Context(), id, actor)
	if err != nil {
		return FromDomainError(c, err, "Failed to withdraw application")
	}

	return c.JSON(http.StatusOK, app)
}

// AppealDecision handles POST /api/v1/applications/:id/appeal
func (h *ApplicationHandler) AppealDecision(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid application ID", nil)
	}

	var req AppealRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	if req.Reason == "" {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "reason", Message: "Appeal reason is required"},
		})
	}

	actor := middleware.GetSubject(c)
	if actor == "" {
		actor = "applicant"
	}

	app, err := h.decisions.Appeal(c.Request().Context(), service.AppealInput{
		ApplicationID: id,
		Reason:        req.Reason,
		Actor:         actor,
	})
	if err != nil {
		return FromDomainError(c, err, "Failed to file appeal")
	}

	return c.JSON(http.StatusOK, app)
}

// GetResult handles GET /api/v1/applications/:id/result
func (h *ApplicationHandler) GetResult(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid application ID", nil)
	}

	score, err := h.decisions.Result(c.Request().Context(), id)
	if err != nil {
		return FromDomainError(c, err, "Failed to load result")
	}

	return c.JSON(http.StatusOK, score)
}

// GetApplication handles GET /api/v1/applications/:id
func (h *ApplicationHandler) GetApplication(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid application ID", nil)
	}

	app, err := h.applications.Get(c.Request().Context(), id)
	if err != nil {
		return FromDomainError(c, err, "Failed to load application")
	}

	return c.JSON(http.StatusOK, app)
}

// GetApplicationByNo handles GET /api/v1/applications/no/:no
func (h *ApplicationHandler) GetApplicationByNo(c echo.Context) error {
	app, err := h.applications.GetByNo(c.Request().Context(), c.Param("no"))
	if err != nil {
		return FromDomainError(c, err, "Failed to load application")
	}

	return c.JSON(http.StatusOK, app)
}

// ListApplications handles GET /api/v1/applications. Filters by
// applicantId or by status; status listing is the review queue view.
func (h *ApplicationHandler) ListApplications(c echo.Context) error {
	ctx := c.Request().Context()

	if applicantParam := c.QueryParam("applicantId"); applicantParam != "" {
		applicantID, err := uuid.Parse(applicantParam)
		if err != nil {
			return NewValidationError(c, "Invalid applicant ID", []ValidationError{
				{Field: "applicantId", Message: "Must be a valid UUID"},
			})
		}
		apps, err := h.applications.ListByApplicant(ctx, applicantID)
		if err != nil {
			return FromDomainError(c, err, "Failed to list applications")
		}
		return c.JSON(http.StatusOK, apps)
	}

	statusParam := c.QueryParam("status")
	if statusParam == "" {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "status", Message: "Either applicantId or status is required"},
		})
	}

	limit := int32(50)
	if limitParam := c.QueryParam("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 1 || parsed > 500 {
			return NewValidationError(c, "Invalid limit", []ValidationError{
				{Field: "limit", Message: "Must be a number between 1 and 500"},
			})
		}
		limit = int32(parsed)
	}

	apps, err := h.applications.ListByStatus(ctx, domain.ApplicationStatus(statusParam), limit)
	if err != nil {
		return FromDomainError(c, err, "Failed to list applications")
	}

	return c.JSON(http.StatusOK, apps)
}

func optionalDecimal(s *string, field string) (*decimal.Decimal, *ValidationError) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, &ValidationError{Field: field, Message: "Must be a valid decimal number"}
	}
	return &d, nil
}

func toSoleProprietorProfile(req *SoleProprietorRequest, hasher *util.IdentityHasher) (*domain.SoleProprietorProfile, *ValidationError) {
	if req == nil {
		return nil, nil
	}
	if req.BusinessRegistrationNo == "" {
		return nil, &ValidationError{Field: "soleProprietor.businessRegistrationNo", Message: "Business registration number is required"}
	}
	revenue, err := decimal.NewFromString(req.AnnualRevenue)
	if err != nil {
		return nil, &ValidationError{Field: "soleProprietor.annualRevenue", Message: "Must be a valid decimal number"}
	}
	operating, err := decimal.NewFromString(req.OperatingIncome)
	if err != nil {
		return nil, &ValidationError{Field: "soleProprietor.operatingIncome", Message: "Must be a valid decimal number"}
	}
	growth, verr := optionalDecimal(req.RevenueGrowthRate, "soleProprietor.revenueGrowthRate")
	if verr != nil {
		return nil, verr
	}

	return &domain.SoleProprietorProfile{
		BusinessRegistrationHash: hasher.HashRRN(req.BusinessRegistrationNo),
		BusinessType:             req.BusinessType,
		BusinessDurationMonths:   req.BusinessDurationMonths,
		AnnualRevenue:            revenue,
		OperatingIncome:          operating,
		TaxFilings3Y:             req.TaxFilings3Y,
		BusinessCreditScore:      req.BusinessCreditScore,
		RevenueGrowthRate:        growth,
	}, nil
}
