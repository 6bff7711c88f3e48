package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IRGGrade classifies industry risk for KSIC-coded sectors.
type IRGGrade string

const (
	IRGLow      IRGGrade = "L"
	IRGMedium   IRGGrade = "M"
	IRGHigh     IRGGrade = "H"
	IRGVeryHigh IRGGrade = "VH"
)

func (g IRGGrade) Valid() bool {
	switch g {
	case IRGLow, IRGMedium, IRGHigh, IRGVeryHigh:
		return true
	}
	return false
}

// PDAdjustment returns the multiplicative PD bump applied per grade.
// The adjusted PD is raw * (1 + adjustment).
func (g IRGGrade) PDAdjustment() float64 {
	switch g {
	case IRGLow:
		return -0.10
	case IRGHigh:
		return 0.15
	case IRGVeryHigh:
		return 0.30
	default:
		return 0
	}
}

// IRGMaster carries per-industry risk settings keyed by KSIC code.
type IRGMaster struct {
	ID           uuid.UUID        `json:"id"`
	KSICCode     string           `json:"ksicCode"`
	IndustryName string           `json:"industryName"`
	Grade        IRGGrade         `json:"grade"`
	PDAdjustment float64          `json:"pdAdjustment"`
	LimitCap     *decimal.Decimal `json:"limitCap,omitempty"`
	IsActive     bool             `json:"isActive"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

func (m *IRGMaster) Validate() error {
	if m.KSICCode == "" {
		return NewValidationError("ksicCode", "KSIC code is required")
	}
	if !m.Grade.Valid() {
		return NewValidationError("grade", "unknown IRG grade")
	}
	return nil
}

type IRGMasterRepository interface {
	Create(ctx context.Context, master *IRGMaster) (*IRGMaster, error)
	GetByKSIC(ctx context.Context, ksicCode string) (*IRGMaster, error)
	List(ctx context.Context, activeOnly bool) ([]*IRGMaster, error)
}
