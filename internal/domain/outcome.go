package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DelinquencyBucket is the payment state of a booked loan, ordered from
// current through charged-off default.
type DelinquencyBucket string

const (
	BucketCurrent DelinquencyBucket = "current"
	BucketDPD30   DelinquencyBucket = "dpd30"
	BucketDPD60   DelinquencyBucket = "dpd60"
	BucketDPD90   DelinquencyBucket = "dpd90"
	BucketDefault DelinquencyBucket = "default"
)

var bucketRank = map[DelinquencyBucket]int{
	BucketCurrent: 0,
	BucketDPD30:   1,
	BucketDPD60:   2,
	BucketDPD90:   3,
	BucketDefault: 4,
}

func (b DelinquencyBucket) Valid() bool {
	_, ok := bucketRank[b]
	return ok
}

// AtLeast reports whether b is as delinquent as other or worse.
func (b DelinquencyBucket) AtLeast(other DelinquencyBucket) bool {
	br, ok := bucketRank[b]
	or, ok2 := bucketRank[other]
	return ok && ok2 && br >= or
}

// LoanOutcome tracks a disbursed loan for model back-testing. The
// predicted PD is denormalized here so calibration queries avoid a join.
type LoanOutcome struct {
	ID            uuid.UUID  `json:"id"`
	ApplicationID uuid.UUID  `json:"applicationId"`
	ScoreID       uuid.UUID  `json:"scoreId"`
	DisbursedAt   time.Time  `json:"disbursedAt"`
	PredictedPD   float64    `json:"predictedPd"`
	Defaulted     bool       `json:"defaulted"`
	DefaultedAt   *time.Time `json:"defaultedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// PerformanceSnapshot is the observed delinquency bucket of one loan at
// a given month on book.
type PerformanceSnapshot struct {
	ID            uuid.UUID         `json:"id"`
	ApplicationID uuid.UUID         `json:"applicationId"`
	MonthOnBook   int32             `json:"monthOnBook"`
	Bucket        DelinquencyBucket `json:"bucket"`
	DPDDays       int32             `json:"dpdDays"`
	AsOf          time.Time         `json:"asOf"`
	CreatedAt     time.Time         `json:"createdAt"`
}

type OutcomeRepository interface {
	Record(ctx context.Context, outcome *LoanOutcome) (*LoanOutcome, error)
	Count(ctx context.Context) (int64, error)
	ListBetween(ctx context.Context, from, to time.Time, limit int32) ([]*LoanOutcome, error)
	AddSnapshot(ctx context.Context, snap *PerformanceSnapshot) (*PerformanceSnapshot, error)
	ListSnapshotsForApplications(ctx context.Context, applicationIDs []uuid.UUID) ([]*PerformanceSnapshot, error)
}
