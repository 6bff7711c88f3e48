package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ModelStatus is the governance state of a scorecard version.
type ModelStatus string

const (
	ModelDraft     ModelStatus = "draft"
	ModelValidated ModelStatus = "validated"
	ModelChampion  ModelStatus = "champion"
	ModelRetired   ModelStatus = "retired"
)

func (s ModelStatus) Valid() bool {
	switch s {
	case ModelDraft, ModelValidated, ModelChampion, ModelRetired:
		return true
	}
	return false
}

// ModelVersion registers one trained scorecard artifact with its
// validation metrics. Only one version per scorecard type is champion
// at a time; promotion retires the previous champion.
type ModelVersion struct {
	ID                 uuid.UUID          `json:"id"`
	Name               string             `json:"name"`
	ScorecardType      string             `json:"scorecardType"`
	Version            string             `json:"version"`
	ArtifactPath       string             `json:"artifactPath"`
	GiniTrain          *float64           `json:"giniTrain,omitempty"`
	GiniTest           *float64           `json:"giniTest,omitempty"`
	GiniOOT            *float64           `json:"giniOot,omitempty"`
	KSStatistic        *float64           `json:"ksStatistic,omitempty"`
	AUCROC             *float64           `json:"aucRoc,omitempty"`
	FairnessMetrics    map[string]float64 `json:"fairnessMetrics,omitempty"`
	Status             ModelStatus        `json:"status"`
	IsChampion         bool               `json:"isChampion"`
	ApprovedBy         *string            `json:"approvedBy,omitempty"`
	ApprovedAt         *time.Time         `json:"approvedAt,omitempty"`
	TrainingDataPeriod *string            `json:"trainingDataPeriod,omitempty"`
	FeatureCount       *int32             `json:"featureCount,omitempty"`
	Notes              *string            `json:"notes,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

func (m *ModelVersion) Validate() error {
	if m.Name == "" {
		return NewValidationError("name", "model name is required")
	}
	if m.ScorecardType == "" {
		return NewValidationError("scorecardType", "scorecard type is required")
	}
	if m.Version == "" {
		return NewValidationError("version", "version is required")
	}
	if !m.Status.Valid() {
		return NewValidationError("status", "unknown model status")
	}
	return nil
}

// CanPromote reports whether the version is eligible to become
// champion. Drafts must pass validation first.
func (m *ModelVersion) CanPromote() bool {
	return m.Status == ModelValidated
}

type ModelVersionRepository interface {
	Create(ctx context.Context, version *ModelVersion) (*ModelVersion, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ModelVersion, error)
	GetChampion(ctx context.Context, scorecardType string) (*ModelVersion, error)
	List(ctx context.Context, scorecardType string) ([]*ModelVersion, error)
	// Promote flips the champion flag atomically: the previous champion
	// of the same scorecard type is retired in the same transaction.
	Promote(ctx context.Context, id uuid.UUID, approvedBy string) (*ModelVersion, error)
	SetStatus(ctx context.Context, id uuid.UUID, status ModelStatus) (*ModelVersion, error)
}
