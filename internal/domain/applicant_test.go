package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func strPtr(s string) *string { return &s }

func validApplicant() *Applicant {
	return &Applicant{
		IdentityToken:  "a3f8c2d4e5b6978012345678901234567890abcdef0123456789abcdef012345",
		NameMasked:     strPtr("김*수"),
		Kind:           ApplicantIndividual,
		Age:            35,
		EmploymentKind: EmploymentEmployed,
		AnnualIncome:   decimal.NewFromInt(60_000_000),
	}
}

func TestApplicant_Validate(t *testing.T) {
	t.Run("valid applicant passes", func(t *testing.T) {
		if err := validApplicant().Validate(); err != nil {
			t.Errorf("expected valid, got %v", err)
		}
	})

	t.Run("underage rejected", func(t *testing.T) {
		a := validApplicant()
		a.Age = 18
		if err := a.Validate(); err == nil {
			t.Error("expected validation error for age under 19")
		}
	})

	t.Run("missing identity token rejected", func(t *testing.T) {
		a := validApplicant()
		a.IdentityToken = ""
		if err := a.Validate(); err == nil {
			t.Error("expected validation error for missing identity token")
		}
	})

	t.Run("artist segment requires fund registration", func(t *testing.T) {
		a := validApplicant()
		a.SegmentCode = SegmentArtist
		if err := a.Validate(); err == nil {
			t.Error("expected validation error for unregistered artist")
		}
		a.ArtsFundRegistered = true
		if err := a.Validate(); err != nil {
			t.Errorf("expected valid registered artist, got %v", err)
		}
	})

	t.Run("sole proprietor requires business profile", func(t *testing.T) {
		a := validApplicant()
		a.Kind = ApplicantSoleProprietor
		if err := a.Validate(); err == nil {
			t.Error("expected validation error for missing business profile")
		}
		a.SoleProprietor = &SoleProprietorProfile{
			BusinessRegistrationHash: "9f8e7d6c5b4a39281706f5e4d3c2b1a09f8e7d6c5b4a39281706f5e4d3c2b1a0",
			BusinessType:             strPtr("restaurant"),
			BusinessDurationMonths:   30,
			AnnualRevenue:            decimal.NewFromInt(120_000_000),
			TaxFilings3Y:             3,
		}
		if err := a.Validate(); err != nil {
			t.Errorf("expected valid sole proprietor, got %v", err)
		}
	})
}

func TestApplicant_Defaults(t *testing.T) {
	a := validApplicant()
	if got := a.EQGradeOrDefault(); got != EQGradeC {
		t.Errorf("EQGradeOrDefault() = %s, want C", got)
	}
	if got := a.IRGOrDefault(); got != IRGMedium {
		t.Errorf("IRGOrDefault() = %s, want M", got)
	}
	g := EQGradeA
	a.EmployerEQGrade = &g
	if got := a.EQGradeOrDefault(); got != EQGradeA {
		t.Errorf("EQGradeOrDefault() = %s, want A", got)
	}
}

func TestValidSegmentCode(t *testing.T) {
	valid := []string{SegmentDoctor, SegmentJudicial, SegmentArtist, SegmentYouth, SegmentMilitary, "MOU", "MOU-SAMSUNG"}
	for _, code := range valid {
		if !ValidSegmentCode(code) {
			t.Errorf("ValidSegmentCode(%q) = false, want true", code)
		}
	}
	invalid := []string{"VIP", "MOU-", "dr", ""}
	for _, code := range invalid {
		if ValidSegmentCode(code) {
			t.Errorf("ValidSegmentCode(%q) = true, want false", code)
		}
	}
}

func TestMOUPartnerCode(t *testing.T) {
	if got := MOUPartnerCode("MOU-HYUNDAI"); got != "HYUNDAI" {
		t.Errorf("MOUPartnerCode() = %q, want HYUNDAI", got)
	}
	if got := MOUPartnerCode("MOU"); got != "" {
		t.Errorf("MOUPartnerCode(MOU) = %q, want empty", got)
	}
	if SegmentParamCode("MOU-HYUNDAI") != SegmentMOUGeneric {
		t.Error("MOU-prefixed segments should resolve MOU benefit parameters")
	}
}

func TestEQGradeOrdering(t *testing.T) {
	if !EQGradeS.StrongerThan(EQGradeA) {
		t.Error("S should outrank A")
	}
	if EQGradeD.StrongerThan(EQGradeC) {
		t.Error("D should not outrank C")
	}
	if got := EQGradeC.Strongest(EQGradeB); got != EQGradeB {
		t.Errorf("Strongest(C, B) = %s, want B", got)
	}
	if got := EQGradeA.Strongest(EQGradeE); got != EQGradeA {
		t.Errorf("Strongest(A, E) = %s, want A", got)
	}
}
