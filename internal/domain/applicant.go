package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ApplicantKind distinguishes natural persons from sole proprietors.
type ApplicantKind string

const (
	ApplicantIndividual     ApplicantKind = "individual"
	ApplicantSoleProprietor ApplicantKind = "sole_proprietor"
)

// EmploymentKind is the declared employment status of an applicant.
type EmploymentKind string

const (
	EmploymentEmployed     EmploymentKind = "employed"
	EmploymentSelfEmployed EmploymentKind = "self_employed"
	EmploymentUnemployed   EmploymentKind = "unemployed"
	EmploymentRetired      EmploymentKind = "retired"
	EmploymentStudent      EmploymentKind = "student"
)

// Consent records the data-use agreements collected at application start.
type Consent struct {
	Bureau      bool `json:"bureau"`
	AltData     bool `json:"altData"`
	OpenBanking bool `json:"openBanking"`
}

// SoleProprietorProfile holds the business fields required when the
// applicant kind is sole_proprietor.
type SoleProprietorProfile struct {
	BusinessRegistrationHash string           `json:"businessRegistrationHash"`
	BusinessType             *string          `json:"businessType,omitempty"`
	BusinessDurationMonths   int32            `json:"businessDurationMonths"`
	AnnualRevenue            decimal.Decimal  `json:"annualRevenue"`
	OperatingIncome          decimal.Decimal  `json:"operatingIncome"`
	TaxFilings3Y             int32            `json:"taxFilings3y"`
	BusinessCreditScore      *int32           `json:"businessCreditScore,omitempty"`
	RevenueGrowthRate        *decimal.Decimal `json:"revenueGrowthRate,omitempty"`
}

// Applicant is the person or sole proprietor seeking credit. The national
// registration number is never stored; IdentityToken is its keyed hash.
type Applicant struct {
	ID                 uuid.UUID              `json:"id"`
	IdentityToken      string                 `json:"identityToken"`
	NameMasked         *string                `json:"nameMasked,omitempty"`
	Kind               ApplicantKind          `json:"kind"`
	Age                int32                  `json:"age"`
	EmploymentKind     EmploymentKind         `json:"employmentKind"`
	OccupationCode     *string                `json:"occupationCode,omitempty"`
	AnnualIncome       decimal.Decimal        `json:"annualIncome"`
	IncomeVerified     bool                   `json:"incomeVerified"`
	EmployerName       *string                `json:"employerName,omitempty"`
	EmployerEQGrade    *EQGrade               `json:"employerEqGrade,omitempty"`
	KSICCode           *string                `json:"ksicCode,omitempty"`
	IndustryRiskGrade  *IRGGrade              `json:"industryRiskGrade,omitempty"`
	SegmentCode        string                 `json:"segmentCode"`
	SegmentVerified    bool                   `json:"segmentVerified"`
	ArtsFundRegistered bool                   `json:"artsFundRegistered"`
	DigitalChannel     *string                `json:"digitalChannel,omitempty"`
	Consent            Consent                `json:"consent"`
	SoleProprietor     *SoleProprietorProfile `json:"soleProprietor,omitempty"`
	CreatedAt          time.Time              `json:"createdAt"`
	UpdatedAt          time.Time              `json:"updatedAt"`
}

const (
	MinApplicantAge = 19
	MaxApplicantAge = 80
)

func (a *Applicant) Validate() error {
	if a.IdentityToken == "" {
		return NewValidationError("identityToken", "identity token is required")
	}
	if a.Kind != ApplicantIndividual && a.Kind != ApplicantSoleProprietor {
		return NewValidationError("kind", "must be individual or sole_proprietor")
	}
	if a.Age < MinApplicantAge || a.Age > MaxApplicantAge {
		return NewValidationError("age", "must be between 19 and 80")
	}
	switch a.EmploymentKind {
	case EmploymentEmployed, EmploymentSelfEmployed, EmploymentUnemployed, EmploymentRetired, EmploymentStudent:
	default:
		return NewValidationError("employmentKind", "unknown employment kind")
	}
	if a.AnnualIncome.IsNegative() {
		return NewValidationError("annualIncome", "must not be negative")
	}
	if a.EmployerEQGrade != nil && !a.EmployerEQGrade.Valid() {
		return NewValidationError("employerEqGrade", "unknown EQ grade")
	}
	if a.IndustryRiskGrade != nil && !a.IndustryRiskGrade.Valid() {
		return NewValidationError("industryRiskGrade", "unknown industry risk grade")
	}
	if a.SegmentCode != "" && !ValidSegmentCode(a.SegmentCode) {
		return NewValidationError("segmentCode", "unknown segment code")
	}
	if a.SegmentCode == SegmentArtist && !a.ArtsFundRegistered {
		return NewValidationError("segmentCode", "ART segment requires arts fund registration")
	}
	if a.Kind == ApplicantSoleProprietor {
		if a.SoleProprietor == nil {
			return NewValidationError("soleProprietor", "sole proprietor profile is required")
		}
		if a.SoleProprietor.BusinessRegistrationHash == "" {
			return NewValidationError("soleProprietor.businessRegistrationHash", "business registration hash is required")
		}
	}
	return nil
}

// EQGradeOrDefault returns the employer EQ grade, defaulting to C.
func (a *Applicant) EQGradeOrDefault() EQGrade {
	if a.EmployerEQGrade == nil {
		return EQGradeC
	}
	return *a.EmployerEQGrade
}

// IRGOrDefault returns the industry risk grade, defaulting to M.
func (a *Applicant) IRGOrDefault() IRGGrade {
	if a.IndustryRiskGrade == nil {
		return IRGMedium
	}
	return *a.IndustryRiskGrade
}

// IsSoleProprietor reports whether the applicant is a sole proprietor with
// a complete business profile.
func (a *Applicant) IsSoleProprietor() bool {
	return a.Kind == ApplicantSoleProprietor && a.SoleProprietor != nil
}

type ApplicantRepository interface {
	Create(ctx context.Context, applicant *Applicant) (*Applicant, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Applicant, error)
	GetByIdentityToken(ctx context.Context, token string) (*Applicant, error)
	Update(ctx context.Context, applicant *Applicant) (*Applicant, error)
}
