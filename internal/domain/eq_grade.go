package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EQGrade ranks employer credit quality from S (strongest) to E.
type EQGrade string

const (
	EQGradeS EQGrade = "S"
	EQGradeA EQGrade = "A"
	EQGradeB EQGrade = "B"
	EQGradeC EQGrade = "C"
	EQGradeD EQGrade = "D"
	EQGradeE EQGrade = "E"
)

// eqGradeRank orders grades strongest-first for min-grade guarantees.
var eqGradeRank = map[EQGrade]int{
	EQGradeS: 0,
	EQGradeA: 1,
	EQGradeB: 2,
	EQGradeC: 3,
	EQGradeD: 4,
	EQGradeE: 5,
}

func (g EQGrade) Valid() bool {
	_, ok := eqGradeRank[g]
	return ok
}

// StrongerThan reports whether g outranks other (S strongest).
func (g EQGrade) StrongerThan(other EQGrade) bool {
	gr, ok := eqGradeRank[g]
	or, ok2 := eqGradeRank[other]
	return ok && ok2 && gr < or
}

// Strongest returns the stronger of the two grades.
func (g EQGrade) Strongest(other EQGrade) EQGrade {
	if other.StrongerThan(g) {
		return other
	}
	return g
}

// EQGradeMaster maps an employer to its EQ grade and the benefits it
// confers, including MOU partnership terms when present.
type EQGradeMaster struct {
	ID                       uuid.UUID  `json:"id"`
	EmployerName             string     `json:"employerName"`
	EmployerRegistrationHash *string    `json:"employerRegistrationHash,omitempty"`
	Grade                    EQGrade    `json:"grade"`
	LimitMultiplier          float64    `json:"limitMultiplier"`
	RateAdjustment           float64    `json:"rateAdjustment"`
	MOUCode                  *string    `json:"mouCode,omitempty"`
	MOUStartDate             *time.Time `json:"mouStartDate,omitempty"`
	MOUEndDate               *time.Time `json:"mouEndDate,omitempty"`
	MOUSpecialRate           *float64   `json:"mouSpecialRate,omitempty"`
	GradeSource              *string    `json:"gradeSource,omitempty"`
	GradeDate                *time.Time `json:"gradeDate,omitempty"`
	IsActive                 bool       `json:"isActive"`
	CreatedAt                time.Time  `json:"createdAt"`
	UpdatedAt                time.Time  `json:"updatedAt"`
}

func (m *EQGradeMaster) Validate() error {
	if m.EmployerName == "" {
		return NewValidationError("employerName", "employer name is required")
	}
	if !m.Grade.Valid() {
		return NewValidationError("grade", "unknown EQ grade")
	}
	if m.LimitMultiplier <= 0 {
		return NewValidationError("limitMultiplier", "must be positive")
	}
	return nil
}

type EQGradeMasterRepository interface {
	Create(ctx context.Context, master *EQGradeMaster) (*EQGradeMaster, error)
	List(ctx context.Context, activeOnly bool) ([]*EQGradeMaster, error)
	GetByMOUCode(ctx context.Context, mouCode string) (*EQGradeMaster, error)
	GetByEmployerHash(ctx context.Context, hash string) (*EQGradeMaster, error)
}
