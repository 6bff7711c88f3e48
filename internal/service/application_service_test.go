package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
)

func setupApplicationService(report *domain.CBReport) (*ApplicationService, *decisionStack) {
	st := setupDecisionService(NewStatisticalPDProvider(), report)
	svc := NewApplicationService(st.apps, st.applicants, st.audit, st.svc, nil)
	svc.SetEventPublisher(st.events)
	return svc, st
}

func strPtr(s string) *string { return &s }

func startConsented(t *testing.T, svc *ApplicationService, product domain.ProductType) *domain.LoanApplication {
	t.Helper()
	ctx := context.Background()
	app, err := svc.Start(ctx, StartInput{DigitalChannel: "bank_app", ProductType: product})
	require.NoError(t, err)
	_, err = svc.Consent(ctx, ConsentInput{ApplicationID: app.ID, Bureau: true, AltData: true})
	require.NoError(t, err)
	return app
}

func basicInput(appID uuid.UUID, token string, age int32, annualIncome int64) BasicInfoInput {
	return BasicInfoInput{
		ApplicationID:  appID,
		IdentityToken:  token,
		Kind:           domain.ApplicantIndividual,
		Age:            age,
		EmploymentKind: domain.EmploymentEmployed,
		AnnualIncome:   decimal.NewFromInt(annualIncome),
		IncomeVerified: true,
	}
}

// driveToSubmit completes every step before final confirmation.
func driveToSubmit(t *testing.T, svc *ApplicationService, app *domain.LoanApplication, basic BasicInfoInput, amount int64, term int32) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.BasicInfo(ctx, basic)
	require.NoError(t, err)
	_, err = svc.FinancialInfo(ctx, FinancialInfoInput{ApplicationID: app.ID})
	require.NoError(t, err)
	_, err = svc.ProductSelect(ctx, ProductSelectInput{
		ApplicationID:       app.ID,
		RequestedAmount:     decimal.NewFromInt(amount),
		RequestedTermMonths: term,
	})
	require.NoError(t, err)
	_, err = svc.Review(ctx, app.ID)
	require.NoError(t, err)
}

func TestApplicationService_FullJourneyToApproval(t *testing.T) {
	svc, st := setupApplicationService(&domain.CBReport{Score: 820, Grade: "AAA"})
	ctx := context.Background()

	app, err := svc.Start(ctx, StartInput{DigitalChannel: "bank_app", ProductType: domain.ProductCredit})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(app.ApplicationNo, "KCS-"), "application no = %s", app.ApplicationNo)
	assert.Len(t, app.ApplicationNo, 21)
	assert.Equal(t, domain.StatusDraft, app.Status)
	assert.Equal(t, domain.StepConsent, app.CurrentStep)

	app, err = svc.Consent(ctx, ConsentInput{ApplicationID: app.ID, Bureau: true, AltData: true})
	require.NoError(t, err)
	assert.Equal(t, domain.StepBasicInfo, app.CurrentStep)
	require.NotNil(t, app.Consent)
	assert.True(t, app.Consent.Bureau)

	app, err = svc.BasicInfo(ctx, basicInput(app.ID, "tok-journey", 40, 80_000_000))
	require.NoError(t, err)
	assert.Equal(t, domain.StepFinancialInfo, app.CurrentStep)
	assert.NotEqual(t, uuid.Nil, app.ApplicantID)

	app, err = svc.FinancialInfo(ctx, FinancialInfoInput{
		ApplicationID:              app.ID,
		ExistingMonthlyDebtPayment: decimal.NewFromInt(200_000),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StepProductSelect, app.CurrentStep)

	app, err = svc.ProductSelect(ctx, ProductSelectInput{
		ApplicationID:       app.ID,
		RequestedAmount:     decimal.NewFromInt(50_000_000),
		RequestedTermMonths: 36,
		Purpose:             strPtr("전세자금"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StepReview, app.CurrentStep)

	app, err = svc.Review(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StepSubmit, app.CurrentStep)

	score, err := svc.Submit(ctx, SubmitInput{
		ApplicationID: app.ID,
		ESignToken:    "esign-9f3a1c77d2",
		FinalConfirm:  true,
		RateType:      domain.RateFixed,
		StressRegion:  domain.RegionMetropolitan,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionApproved, score.Decision)

	stored := st.apps.Applications[app.ID]
	assert.Equal(t, domain.StatusApproved, stored.Status)
	require.NotNil(t, stored.SubmittedAt)
	require.NotNil(t, stored.Snapshot)

	actions := st.audit.Actions()
	for _, want := range []string{
		"application.started",
		"application.consent_recorded",
		"application.applicant_linked",
		"application.submitted",
		"score.created",
		"application.approved",
	} {
		assert.Contains(t, actions, want)
	}
}

func TestApplicationService_StartValidation(t *testing.T) {
	svc, _ := setupApplicationService(&domain.CBReport{Score: 700})
	ctx := context.Background()

	_, err := svc.Start(ctx, StartInput{DigitalChannel: "fax", ProductType: domain.ProductCredit})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Start(ctx, StartInput{DigitalChannel: "bank_app", ProductType: "payday"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestApplicationService_StepOrderEnforced(t *testing.T) {
	svc, _ := setupApplicationService(&domain.CBReport{Score: 700})
	ctx := context.Background()

	app, err := svc.Start(ctx, StartInput{DigitalChannel: "kakao", ProductType: domain.ProductCredit})
	require.NoError(t, err)

	_, err = svc.BasicInfo(ctx, basicInput(app.ID, "tok-early", 30, 40_000_000))
	assert.ErrorIs(t, err, domain.ErrStepOutOfOrder)

	_, err = svc.ProductSelect(ctx, ProductSelectInput{
		ApplicationID:       app.ID,
		RequestedAmount:     decimal.NewFromInt(10_000_000),
		RequestedTermMonths: 12,
	})
	assert.ErrorIs(t, err, domain.ErrStepOutOfOrder)

	_, err = svc.Submit(ctx, SubmitInput{ApplicationID: app.ID, ESignToken: "esign-9f3a1c77d2", FinalConfirm: true})
	assert.ErrorIs(t, err, domain.ErrStepOutOfOrder)
}

func TestApplicationService_BureauConsentMandatory(t *testing.T) {
	svc, _ := setupApplicationService(&domain.CBReport{Score: 700})
	ctx := context.Background()

	app, err := svc.Start(ctx, StartInput{DigitalChannel: "web", ProductType: domain.ProductCredit})
	require.NoError(t, err)

	_, err = svc.Consent(ctx, ConsentInput{ApplicationID: app.ID, Bureau: false, AltData: true})
	assert.ErrorIs(t, err, domain.ErrConsentRequired)
	assert.Equal(t, domain.StepConsent, app.CurrentStep)
}

func TestApplicationService_EarlierStepMayBeRedone(t *testing.T) {
	svc, _ := setupApplicationService(&domain.CBReport{Score: 700})
	ctx := context.Background()

	app := startConsented(t, svc, domain.ProductCredit)
	_, err := svc.BasicInfo(ctx, basicInput(app.ID, "tok-redo", 40, 40_000_000))
	require.NoError(t, err)

	// Revisiting consent rewrites the agreement without moving the pointer.
	updated, err := svc.Consent(ctx, ConsentInput{ApplicationID: app.ID, Bureau: true, AltData: false})
	require.NoError(t, err)
	assert.Equal(t, domain.StepFinancialInfo, updated.CurrentStep)
	assert.False(t, updated.Consent.AltData)
}

func TestApplicationService_SegmentAssignment(t *testing.T) {
	tests := []struct {
		name         string
		age          int32
		occupation   *string
		license      *string
		artsFund     bool
		wantSegment  string
		wantVerified bool
	}{
		{"verified doctor license", 45, strPtr("MD001"), strPtr("LIC-2201"), false, domain.SegmentDoctor, true},
		{"verified judicial license", 50, strPtr("JD002"), strPtr("LIC-8811"), false, domain.SegmentJudicial, true},
		{"youth by age alone", 28, nil, nil, false, domain.SegmentYouth, true},
		{"doctor wins over youth", 30, strPtr("MD002"), strPtr("LIC-3302"), false, domain.SegmentDoctor, true},
		{"artist without fund registration", 40, strPtr("ART001"), strPtr("LIC-7701"), false, "", false},
		{"artist with fund registration", 40, strPtr("ART001"), strPtr("LIC-7701"), true, domain.SegmentArtist, true},
		{"unknown occupation code", 40, strPtr("ZZ999"), strPtr("LIC-0001"), false, "", false},
		{"no claims past youth age", 35, nil, nil, false, "", false},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st := setupApplicationService(&domain.CBReport{Score: 700})
			app := startConsented(t, svc, domain.ProductCredit)

			token := "tok-seg-" + string(rune('a'+i))
			input := basicInput(app.ID, token, tt.age, 60_000_000)
			input.OccupationCode = tt.occupation
			input.LicenseNumber = tt.license
			input.ArtsFundRegistered = tt.artsFund

			_, err := svc.BasicInfo(context.Background(), input)
			require.NoError(t, err)

			applicant, err := st.applicants.GetByIdentityToken(context.Background(), token)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSegment, applicant.SegmentCode)
			assert.Equal(t, tt.wantVerified, applicant.SegmentVerified)
		})
	}
}

func TestApplicationService_BasicInfoReusesExistingApplicant(t *testing.T) {
	svc, st := setupApplicationService(&domain.CBReport{Score: 700})
	ctx := context.Background()

	first := startConsented(t, svc, domain.ProductCredit)
	_, err := svc.BasicInfo(ctx, basicInput(first.ID, "tok-returning", 40, 40_000_000))
	require.NoError(t, err)

	second := startConsented(t, svc, domain.ProductMicro)
	updated := basicInput(second.ID, "tok-returning", 41, 45_000_000)
	_, err = svc.BasicInfo(ctx, updated)
	require.NoError(t, err)

	assert.Len(t, st.applicants.Applicants, 1)
	applicant, err := st.applicants.GetByIdentityToken(ctx, "tok-returning")
	require.NoError(t, err)
	assert.Equal(t, int32(41), applicant.Age)
	assert.True(t, applicant.AnnualIncome.Equal(decimal.NewFromInt(45_000_000)))

	assert.Equal(t, st.apps.Applications[first.ID].ApplicantID, st.apps.Applications[second.ID].ApplicantID)
}

func TestApplicationService_MortgageRequiresCollateral(t *testing.T) {
	svc, _ := setupApplicationService(&domain.CBReport{Score: 780})
	ctx := context.Background()

	app := startConsented(t, svc, domain.ProductMortgage)
	_, err := svc.BasicInfo(ctx, basicInput(app.ID, "tok-mortgage", 42, 90_000_000))
	require.NoError(t, err)
	_, err = svc.FinancialInfo(ctx, FinancialInfoInput{ApplicationID: app.ID})
	require.NoError(t, err)

	_, err = svc.ProductSelect(ctx, ProductSelectInput{
		ApplicationID:       app.ID,
		RequestedAmount:     decimal.NewFromInt(300_000_000),
		RequestedTermMonths: 360,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// Revisit financials with the property details, then select again.
	_, err = svc.FinancialInfo(ctx, FinancialInfoInput{
		ApplicationID: app.ID,
		Collateral: &domain.CollateralInfo{
			Value:       decimal.NewFromInt(600_000_000),
			RegionClass: domain.LTVRegionGeneral,
		},
	})
	require.NoError(t, err)

	updated, err := svc.ProductSelect(ctx, ProductSelectInput{
		ApplicationID:       app.ID,
		RequestedAmount:     decimal.NewFromInt(300_000_000),
		RequestedTermMonths: 360,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StepReview, updated.CurrentStep)
}

func TestApplicationService_SubmitValidation(t *testing.T) {
	svc, _ := setupApplicationService(&domain.CBReport{Score: 820})
	ctx := context.Background()

	app := startConsented(t, svc, domain.ProductCredit)
	driveToSubmit(t, svc, app, basicInput(app.ID, "tok-submit-val", 40, 80_000_000), 50_000_000, 36)

	_, err := svc.Submit(ctx, SubmitInput{
		ApplicationID: app.ID,
		ESignToken:    "esign-9f3a1c77d2",
		FinalConfirm:  false,
		RateType:      domain.RateFixed,
		StressRegion:  domain.RegionMetropolitan,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "final confirmation is required")

	_, err = svc.Submit(ctx, SubmitInput{
		ApplicationID: app.ID,
		ESignToken:    "short",
		FinalConfirm:  true,
		RateType:      domain.RateFixed,
		StressRegion:  domain.RegionMetropolitan,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "signature token too short")

	_, err = svc.Submit(ctx, SubmitInput{
		ApplicationID: app.ID,
		ESignToken:    "esign-9f3a1c77d2",
		FinalConfirm:  true,
		RateType:      "weekly",
		StressRegion:  domain.RegionMetropolitan,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "unknown rate type")

	score, err := svc.Submit(ctx, SubmitInput{
		ApplicationID: app.ID,
		ESignToken:    "esign-9f3a1c77d2",
		FinalConfirm:  true,
		RateType:      domain.RateFixed,
		StressRegion:  domain.RegionMetropolitan,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionApproved, score.Decision)
}

func TestApplicationService_SubmitSurvivesEvaluationFailure(t *testing.T) {
	svc, st := setupApplicationService(&domain.CBReport{Score: 820})
	ctx := context.Background()

	app := startConsented(t, svc, domain.ProductCredit)
	driveToSubmit(t, svc, app, basicInput(app.ID, "tok-submit-retry", 40, 80_000_000), 50_000_000, 36)

	st.scores.CreateFn = func(ctx context.Context, score *domain.CreditScore) (*domain.CreditScore, error) {
		return nil, errors.New("score store unavailable")
	}
	_, err := svc.Submit(ctx, SubmitInput{
		ApplicationID: app.ID,
		ESignToken:    "esign-9f3a1c77d2",
		FinalConfirm:  true,
		RateType:      domain.RateFixed,
		StressRegion:  domain.RegionMetropolitan,
	})
	require.Error(t, err)
	assert.Contains(t, st.audit.Actions(), "application.evaluation_failed")

	// The submission stuck; a later evaluation pass decides the case.
	st.scores.CreateFn = nil
	score, err := st.svc.Evaluate(ctx, EvaluateInput{ApplicationID: app.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionApproved, score.Decision)
	assert.Equal(t, domain.StatusApproved, st.apps.Applications[app.ID].Status)
}

func TestApplicationService_Withdraw(t *testing.T) {
	svc, st := setupApplicationService(&domain.CBReport{Score: 700})
	ctx := context.Background()

	app := startConsented(t, svc, domain.ProductCredit)
	withdrawn, err := svc.Withdraw(ctx, app.ID, "applicant")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWithdrawn, withdrawn.Status)
	assert.Contains(t, st.audit.Actions(), "application.withdrawn")

	decided := pendingApplication(domain.ProductCredit, 10_000_000, 12)
	decided.Status = domain.StatusApproved
	st.apps.AddApplication(decided)
	_, err = svc.Withdraw(ctx, decided.ID, "applicant")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestApplicationService_GetByNo(t *testing.T) {
	svc, _ := setupApplicationService(&domain.CBReport{Score: 700})
	ctx := context.Background()

	app, err := svc.Start(ctx, StartInput{DigitalChannel: "naver", ProductType: domain.ProductCredit})
	require.NoError(t, err)

	found, err := svc.GetByNo(ctx, app.ApplicationNo)
	require.NoError(t, err)
	assert.Equal(t, app.ID, found.ID)

	_, err = svc.GetByNo(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.GetByNo(ctx, "KCS-20250101-DEADBEEF")
	assert.ErrorIs(t, err, domain.ErrApplicationNotFound)
}
