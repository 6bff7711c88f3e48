package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
	"github.com/daonbank/kcs/kcs-backend/internal/websocket"
)

// minESignTokenLength rejects obviously truncated signature tokens
// before the signing provider is even asked.
const minESignTokenLength = 10

// youthSegmentMaxAge is the inclusive upper age bound for the
// automatic YTH segment.
const (
	youthSegmentMinAge = 19
	youthSegmentMaxAge = 34
)

// SegmentVerifier checks a professional license claim against the
// issuing registry and returns the segment code it qualifies for, or
// empty when the claim does not verify.
type SegmentVerifier interface {
	VerifyLicense(ctx context.Context, identityToken, occupationCode, licenseNumber string) (string, error)
}

// CodeTableSegmentVerifier resolves segments from the occupation code
// registry table. It stands in for the external license registry; the
// code table mirrors the registry's occupation taxonomy.
type CodeTableSegmentVerifier struct{}

var occupationSegments = map[string]string{
	"MD001":  domain.SegmentDoctor,
	"MD002":  domain.SegmentDoctor,
	"MD003":  domain.SegmentDoctor,
	"JD001":  domain.SegmentJudicial,
	"JD002":  domain.SegmentJudicial,
	"JD003":  domain.SegmentJudicial,
	"ART001": domain.SegmentArtist,
}

func (CodeTableSegmentVerifier) VerifyLicense(_ context.Context, _, occupationCode, licenseNumber string) (string, error) {
	if licenseNumber == "" {
		return "", nil
	}
	return occupationSegments[occupationCode], nil
}

// StartInput opens a new application session.
type StartInput struct {
	DigitalChannel string
	ProductType    domain.ProductType
}

// ConsentInput records the data-use agreements for an application.
type ConsentInput struct {
	ApplicationID uuid.UUID
	Bureau        bool
	AltData       bool
	OpenBanking   bool
}

// BasicInfoInput carries the applicant identity and demographics step.
// IdentityToken is the keyed hash of the registration number; the raw
// number never reaches this service.
type BasicInfoInput struct {
	ApplicationID      uuid.UUID
	IdentityToken      string
	NameMasked         *string
	Kind               domain.ApplicantKind
	Age                int32
	EmploymentKind     domain.EmploymentKind
	AnnualIncome       decimal.Decimal
	IncomeVerified     bool
	OccupationCode     *string
	LicenseNumber      *string
	EmployerName       *string
	ArtsFundRegistered bool
	SoleProprietor     *domain.SoleProprietorProfile
}

// FinancialInfoInput carries existing debt and collateral details.
type FinancialInfoInput struct {
	ApplicationID              uuid.UUID
	ExistingMonthlyDebtPayment decimal.Decimal
	ExistingLoansCount         int32
	RevolvingLine              *decimal.Decimal
	RevolvingBalance           *decimal.Decimal
	Collateral                 *domain.CollateralInfo
}

// ProductSelectInput carries the requested product terms.
type ProductSelectInput struct {
	ApplicationID       uuid.UUID
	RequestedAmount     decimal.Decimal
	RequestedTermMonths int32
	Purpose             *string
}

// SubmitInput is the final confirmation step. Submission locks the
// application and runs the evaluation synchronously.
type SubmitInput struct {
	ApplicationID uuid.UUID
	ESignToken    string
	FinalConfirm  bool
	RateType      domain.RateType
	StressRegion  domain.StressDSRRegion
}

// ApplicationService drives the digital application journey: a linear
// step machine from session start through consent, applicant intake,
// financials and product selection to final submission, which hands
// the application to the decision pipeline.
type ApplicationService struct {
	applicationRepo domain.ApplicationRepository
	applicantRepo   domain.ApplicantRepository
	auditRepo       domain.AuditLogRepository
	decisions       *DecisionService
	segments        SegmentVerifier
	eventPublisher  websocket.EventPublisher
}

// NewApplicationService creates a new ApplicationService.
func NewApplicationService(
	applicationRepo domain.ApplicationRepository,
	applicantRepo domain.ApplicantRepository,
	auditRepo domain.AuditLogRepository,
	decisions *DecisionService,
	segments SegmentVerifier,
) *ApplicationService {
	if segments == nil {
		segments = CodeTableSegmentVerifier{}
	}
	return &ApplicationService{
		applicationRepo: applicationRepo,
		applicantRepo:   applicantRepo,
		auditRepo:       auditRepo,
		decisions:       decisions,
		segments:        segments,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *ApplicationService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// publishEvent publishes a WebSocket event if a publisher is configured
func (s *ApplicationService) publishEvent(channel string, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(channel, event)
	}
}

// Start opens a draft application on the given channel. The applicant
// is attached later, at the basic-info step.
func (s *ApplicationService) Start(ctx context.Context, input StartInput) (*domain.LoanApplication, error) {
	if !domain.ValidDigitalChannel(input.DigitalChannel) {
		return nil, domain.NewValidationError("digitalChannel", "unknown digital channel")
	}
	if !input.ProductType.Valid() {
		return nil, domain.NewValidationError("productType", "unknown product type")
	}

	now := time.Now().UTC()
	no, err := generateApplicationNo(now)
	if err != nil {
		return nil, fmt.Errorf("generate application number: %w", err)
	}

	app := &domain.LoanApplication{
		ApplicationNo:  no,
		ProductType:    input.ProductType,
		Status:         domain.StatusDraft,
		CurrentStep:    domain.StepConsent,
		DigitalChannel: input.DigitalChannel,
	}
	app, err = s.applicationRepo.Create(ctx, app)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, app.ID, "application.started", map[string]any{
		"application_no": app.ApplicationNo,
		"product_type":   app.ProductType,
		"channel":        app.DigitalChannel,
	})

	log.Info().
		Str("application_no", app.ApplicationNo).
		Str("product_type", string(app.ProductType)).
		Str("channel", app.DigitalChannel).
		Msg("Application session started")
	return app, nil
}

// Consent records the data-use agreements. Bureau consent is mandatory;
// without it the journey cannot proceed past this step.
func (s *ApplicationService) Consent(ctx context.Context, input ConsentInput) (*domain.LoanApplication, error) {
	app, err := s.loadDraftAtStep(ctx, input.ApplicationID, domain.StepConsent)
	if err != nil {
		return nil, err
	}
	if !input.Bureau {
		return nil, domain.ErrConsentRequired
	}

	app.Consent = &domain.Consent{
		Bureau:      true,
		AltData:     input.AltData,
		OpenBanking: input.OpenBanking,
	}
	advanceStep(app, domain.StepConsent)
	app, err = s.applicationRepo.Update(ctx, app)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, app.ID, "application.consent_recorded", map[string]any{
		"application_no": app.ApplicationNo,
		"alt_data":       input.AltData,
		"open_banking":   input.OpenBanking,
	})
	return app, nil
}

// BasicInfo attaches the applicant to the application, creating or
// updating the applicant record keyed by identity token. Professional
// license claims are verified against the registry; applicants aged
// 19 to 34 without another segment join the youth segment.
func (s *ApplicationService) BasicInfo(ctx context.Context, input BasicInfoInput) (*domain.LoanApplication, error) {
	app, err := s.loadDraftAtStep(ctx, input.ApplicationID, domain.StepBasicInfo)
	if err != nil {
		return nil, err
	}
	if input.IdentityToken == "" {
		return nil, domain.NewValidationError("identityToken", "identity token is required")
	}

	applicant, err := s.applicantRepo.GetByIdentityToken(ctx, input.IdentityToken)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrApplicantNotFound):
		applicant = &domain.Applicant{IdentityToken: input.IdentityToken}
	default:
		return nil, err
	}

	isNew := applicant.ID == uuid.Nil
	applicant.NameMasked = input.NameMasked
	applicant.Kind = input.Kind
	applicant.Age = input.Age
	applicant.EmploymentKind = input.EmploymentKind
	applicant.AnnualIncome = input.AnnualIncome
	applicant.IncomeVerified = input.IncomeVerified
	applicant.OccupationCode = input.OccupationCode
	applicant.EmployerName = input.EmployerName
	applicant.ArtsFundRegistered = input.ArtsFundRegistered
	applicant.SoleProprietor = input.SoleProprietor
	applicant.DigitalChannel = &app.DigitalChannel
	if app.Consent != nil {
		applicant.Consent = *app.Consent
	}

	s.assignSegment(ctx, applicant, input)

	if err := applicant.Validate(); err != nil {
		return nil, err
	}

	if isNew {
		applicant, err = s.applicantRepo.Create(ctx, applicant)
	} else {
		applicant, err = s.applicantRepo.Update(ctx, applicant)
	}
	if err != nil {
		return nil, err
	}

	app.ApplicantID = applicant.ID
	advanceStep(app, domain.StepBasicInfo)
	app, err = s.applicationRepo.Update(ctx, app)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, app.ID, "application.applicant_linked", map[string]any{
		"application_no": app.ApplicationNo,
		"applicant_id":   applicant.ID.String(),
		"segment_code":   applicant.SegmentCode,
		"new_applicant":  isNew,
	})
	return app, nil
}

// FinancialInfo records existing debt and, for mortgages, collateral.
func (s *ApplicationService) FinancialInfo(ctx context.Context, input FinancialInfoInput) (*domain.LoanApplication, error) {
	app, err := s.loadDraftAtStep(ctx, input.ApplicationID, domain.StepFinancialInfo)
	if err != nil {
		return nil, err
	}
	if input.ExistingMonthlyDebtPayment.IsNegative() {
		return nil, domain.NewValidationError("existingMonthlyDebtPayment", "must not be negative")
	}
	if input.ExistingLoansCount < 0 {
		return nil, domain.NewValidationError("existingLoansCount", "must not be negative")
	}
	if input.Collateral != nil && input.Collateral.Value.LessThanOrEqual(decimal.Zero) {
		return nil, domain.NewValidationError("collateral.value", "must be positive")
	}

	app.ExistingMonthlyDebtPayment = input.ExistingMonthlyDebtPayment
	app.ExistingLoansCount = input.ExistingLoansCount
	app.RevolvingLine = input.RevolvingLine
	app.RevolvingBalance = input.RevolvingBalance
	app.Collateral = input.Collateral
	advanceStep(app, domain.StepFinancialInfo)
	return s.applicationRepo.Update(ctx, app)
}

// ProductSelect records the requested amount, term and purpose.
func (s *ApplicationService) ProductSelect(ctx context.Context, input ProductSelectInput) (*domain.LoanApplication, error) {
	app, err := s.loadDraftAtStep(ctx, input.ApplicationID, domain.StepProductSelect)
	if err != nil {
		return nil, err
	}

	app.RequestedAmount = input.RequestedAmount
	app.RequestedTermMonths = input.RequestedTermMonths
	app.Purpose = input.Purpose
	if err := app.ValidateProductSelection(); err != nil {
		return nil, err
	}
	advanceStep(app, domain.StepProductSelect)
	return s.applicationRepo.Update(ctx, app)
}

// Review confirms the assembled application and unlocks submission.
// The returned application is the summary the applicant confirmed.
func (s *ApplicationService) Review(ctx context.Context, applicationID uuid.UUID) (*domain.LoanApplication, error) {
	app, err := s.loadDraftAtStep(ctx, applicationID, domain.StepReview)
	if err != nil {
		return nil, err
	}
	if app.ApplicantID == uuid.Nil {
		return nil, domain.NewValidationError("applicantId", "applicant information is missing")
	}
	advanceStep(app, domain.StepReview)
	return s.applicationRepo.Update(ctx, app)
}

// Submit verifies the electronic signature, moves the application to
// pending and runs the evaluation synchronously. When evaluation fails
// the application stays pending and can be evaluated again later.
func (s *ApplicationService) Submit(ctx context.Context, input SubmitInput) (*domain.CreditScore, error) {
	app, err := s.loadDraftAtStep(ctx, input.ApplicationID, domain.StepSubmit)
	if err != nil {
		return nil, err
	}
	if !input.FinalConfirm {
		return nil, domain.NewValidationError("finalConfirm", "final confirmation is required")
	}
	if len(input.ESignToken) < minESignTokenLength {
		return nil, domain.NewValidationError("esignToken", "electronic signature is invalid")
	}

	now := time.Now().UTC()
	app.ESignToken = &input.ESignToken
	app.RateType = input.RateType
	app.StressRegion = input.StressRegion
	app.FinalConfirmedAt = &now
	app.SubmittedAt = &now
	if err := app.ValidateSubmit(); err != nil {
		return nil, err
	}

	if !app.Status.CanTransitionTo(domain.StatusPending) {
		return nil, fmt.Errorf("status %s: %w", app.Status, domain.ErrInvalidTransition)
	}
	app.Status = domain.StatusPending
	advanceStep(app, domain.StepSubmit)
	app, err = s.applicationRepo.Update(ctx, app)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, app.ID, "application.submitted", map[string]any{
		"application_no":   app.ApplicationNo,
		"product_type":     app.ProductType,
		"requested_amount": app.RequestedAmount.String(),
	})
	s.publishEvent(app.ApplicantID.String(), websocket.ApplicationUpdated(app))

	log.Info().
		Str("application_no", app.ApplicationNo).
		Str("product_type", string(app.ProductType)).
		Msg("Application submitted")

	return s.decisions.Evaluate(ctx, EvaluateInput{
		ApplicationID: app.ID,
		Actor:         app.ApplicationNo,
		ActorType:     domain.ActorUser,
		At:            now,
	})
}

// Withdraw cancels an application that has not been decided yet.
func (s *ApplicationService) Withdraw(ctx context.Context, applicationID uuid.UUID, actor string) (*domain.LoanApplication, error) {
	app, err := s.applicationRepo.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !app.Status.CanTransitionTo(domain.StatusWithdrawn) {
		return nil, fmt.Errorf("status %s: %w", app.Status, domain.ErrInvalidTransition)
	}
	app.Status = domain.StatusWithdrawn
	app, err = s.applicationRepo.Update(ctx, app)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, app.ID, "application.withdrawn", map[string]any{
		"application_no": app.ApplicationNo,
		"actor":          actor,
	})
	if app.ApplicantID != uuid.Nil {
		s.publishEvent(app.ApplicantID.String(), websocket.ApplicationUpdated(app))
	}

	log.Info().
		Str("application_no", app.ApplicationNo).
		Msg("Application withdrawn")
	return app, nil
}

// Get returns one application by ID.
func (s *ApplicationService) Get(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error) {
	return s.applicationRepo.GetByID(ctx, id)
}

// GetByNo returns one application by its business number.
func (s *ApplicationService) GetByNo(ctx context.Context, applicationNo string) (*domain.LoanApplication, error) {
	if applicationNo == "" {
		return nil, domain.NewValidationError("applicationNo", "application number is required")
	}
	return s.applicationRepo.GetByApplicationNo(ctx, applicationNo)
}

// ListByApplicant returns the applicant's applications.
func (s *ApplicationService) ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]*domain.LoanApplication, error) {
	return s.applicationRepo.ListByApplicantID(ctx, applicantID)
}

// ListByStatus returns applications in the given lifecycle state,
// newest first.
func (s *ApplicationService) ListByStatus(ctx context.Context, status domain.ApplicationStatus, limit int32) ([]*domain.LoanApplication, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.applicationRepo.ListByStatus(ctx, status, limit)
}

// loadDraftAtStep loads the application and checks the journey allows
// the step: drafts only, and never a step ahead of the current one.
func (s *ApplicationService) loadDraftAtStep(ctx context.Context, id uuid.UUID, step domain.ApplicationStep) (*domain.LoanApplication, error) {
	app, err := s.applicationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status != domain.StatusDraft {
		return nil, fmt.Errorf("status %s: %w", app.Status, domain.ErrInvalidTransition)
	}
	if domain.StepIndex(step) > domain.StepIndex(app.CurrentStep) {
		return nil, fmt.Errorf("step %s before %s: %w", step, app.CurrentStep, domain.ErrStepOutOfOrder)
	}
	return app, nil
}

// advanceStep moves the journey pointer forward after completing a
// step. Re-submitting an earlier step leaves the pointer in place.
func advanceStep(app *domain.LoanApplication, completed domain.ApplicationStep) {
	if completed != app.CurrentStep {
		return
	}
	if next := domain.NextStep(completed); next != "" {
		app.CurrentStep = next
	}
}

// assignSegment resolves the preferred-customer segment: verified
// professional licenses first, then the automatic youth segment. A
// registry failure degrades to no segment rather than blocking intake.
func (s *ApplicationService) assignSegment(ctx context.Context, applicant *domain.Applicant, input BasicInfoInput) {
	if input.OccupationCode != nil && input.LicenseNumber != nil {
		code, err := s.segments.VerifyLicense(ctx, applicant.IdentityToken, *input.OccupationCode, *input.LicenseNumber)
		if err != nil {
			log.Warn().Err(err).Str("occupation_code", *input.OccupationCode).Msg("License verification failed")
		} else if code != "" {
			if code == domain.SegmentArtist && !applicant.ArtsFundRegistered {
				log.Info().Msg("Artist segment skipped without arts fund registration")
			} else {
				applicant.SegmentCode = code
				applicant.SegmentVerified = true
				return
			}
		}
	}
	// Age is established during identity verification, so the youth
	// segment needs no registry check.
	if applicant.SegmentCode == "" &&
		applicant.Age >= youthSegmentMinAge && applicant.Age <= youthSegmentMaxAge {
		applicant.SegmentCode = domain.SegmentYouth
		applicant.SegmentVerified = true
	}
}

// generateApplicationNo builds the customer-facing receipt number:
// KCS-{yyyymmdd}-{8 hex digits}.
func generateApplicationNo(now time.Time) (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("KCS-%s-%08X", now.Format("20060102"), binary.BigEndian.Uint32(b[:])), nil
}

func (s *ApplicationService) recordAudit(ctx context.Context, applicationID uuid.UUID, action string, changes map[string]any) {
	if s.auditRepo == nil {
		return
	}
	entry := &domain.AuditLog{
		EntityType: "loan_application",
		EntityID:   applicationID.String(),
		Action:     action,
		ActorID:    "applicant",
		ActorType:  domain.ActorUser,
		Changes:    changes,
	}
	if _, err := s.auditRepo.Create(ctx, entry); err != nil {
		log.Error().Err(err).Str("action", action).Msg("Failed to write audit entry")
	}
}
