package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EWSSignalType names an early-warning signal observed on an account.
type EWSSignalType string

const (
	SignalMissedPayment        EWSSignalType = "missed_payment"
	SignalCBScoreDrop          EWSSignalType = "cb_score_drop"
	SignalCrossBankDelinquency EWSSignalType = "cross_bank_delinquency"
	SignalCardDelinquency      EWSSignalType = "card_delinquency"
	SignalOverdraftExceeded    EWSSignalType = "overdraft_exceeded"
	SignalInquirySpike         EWSSignalType = "inquiry_spike"
	SignalLargeWithdrawal      EWSSignalType = "large_withdrawal"
	SignalCollateralValueDrop  EWSSignalType = "collateral_value_drop"
)

// EWSSeverity ranks an alert: red demands immediate action, amber a
// limit cut and rescore, yellow is logged only.
type EWSSeverity string

const (
	SeverityRed    EWSSeverity = "red"
	SeverityAmber  EWSSeverity = "amber"
	SeverityYellow EWSSeverity = "yellow"
)

// EWSAction is a follow-up taken in response to a classified alert.
type EWSAction string

const (
	ActionFreezeLimit         EWSAction = "freeze_limit"
	ActionSuspendDisbursement EWSAction = "suspend_disbursement"
	ActionNotifyCollections   EWSAction = "notify_collections"
	ActionFlagManualReview    EWSAction = "flag_manual_review"
	ActionCutLimitHalf        EWSAction = "cut_limit_half"
	ActionTriggerRescore      EWSAction = "trigger_rescore"
	ActionNotifyRiskTeam      EWSAction = "notify_risk_team"
	ActionLogOnly             EWSAction = "log_only"
)

// EWSSignal is one observation inside an alert message.
type EWSSignal struct {
	Type            EWSSignalType `json:"type"`
	DelinquencyDays int           `json:"delinquencyDays,omitempty"`
	CBScoreDrop     int           `json:"cbScoreDrop,omitempty"`
	Detail          string        `json:"detail,omitempty"`
	ObservedAt      time.Time     `json:"observedAt"`
}

// EWSAlert is the consumed alert message for one applicant.
type EWSAlert struct {
	EventID       string      `json:"eventId"`
	ApplicantID   uuid.UUID   `json:"applicantId"`
	ApplicationID *uuid.UUID  `json:"applicationId,omitempty"`
	Signals       []EWSSignal `json:"signals"`
	EmittedAt     time.Time   `json:"emittedAt"`
}

func (a *EWSAlert) hasSignal(t EWSSignalType) bool {
	for _, s := range a.Signals {
		if s.Type == t {
			return true
		}
	}
	return false
}

func (a *EWSAlert) maxDelinquencyDays() int {
	max := 0
	for _, s := range a.Signals {
		if s.DelinquencyDays > max {
			max = s.DelinquencyDays
		}
	}
	return max
}

func (a *EWSAlert) maxCBScoreDrop() int {
	max := 0
	for _, s := range a.Signals {
		if s.CBScoreDrop > max {
			max = s.CBScoreDrop
		}
	}
	return max
}

// Classify grades the alert. Red means hard delinquency evidence: three
// or more days past due, or a missed-payment or cross-bank signal
// arriving with at least one other signal. Amber covers material bureau
// deterioration. Everything else is yellow.
func (a *EWSAlert) Classify() EWSSeverity {
	if a.maxDelinquencyDays() >= 3 {
		return SeverityRed
	}
	if (a.hasSignal(SignalMissedPayment) || a.hasSignal(SignalCrossBankDelinquency)) && len(a.Signals) >= 2 {
		return SeverityRed
	}
	drop := a.maxCBScoreDrop()
	switch {
	case drop >= 50:
		return SeverityAmber
	case a.hasSignal(SignalCrossBankDelinquency):
		return SeverityAmber
	case a.hasSignal(SignalCardDelinquency):
		return SeverityAmber
	case a.hasSignal(SignalMissedPayment) && drop >= 20:
		return SeverityAmber
	}
	return SeverityYellow
}

// ActionsFor lists the follow-ups mandated per severity.
func ActionsFor(severity EWSSeverity) []EWSAction {
	switch severity {
	case SeverityRed:
		return []EWSAction{ActionFreezeLimit, ActionSuspendDisbursement, ActionNotifyCollections, ActionFlagManualReview}
	case SeverityAmber:
		return []EWSAction{ActionCutLimitHalf, ActionTriggerRescore, ActionNotifyRiskTeam}
	default:
		return []EWSAction{ActionLogOnly}
	}
}

// EWSEvent is the persisted record of a processed alert.
type EWSEvent struct {
	ID            uuid.UUID   `json:"id"`
	EventID       string      `json:"eventId"`
	ApplicantID   uuid.UUID   `json:"applicantId"`
	ApplicationID *uuid.UUID  `json:"applicationId,omitempty"`
	Severity      EWSSeverity `json:"severity"`
	Signals       []EWSSignal `json:"signals"`
	ActionsTaken  []EWSAction `json:"actionsTaken"`
	ProcessedAt   time.Time   `json:"processedAt"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// EWSEventRepository persists processed alerts. GetByEventID backs the
// dedupe check for at-least-once message delivery.
type EWSEventRepository interface {
	Create(ctx context.Context, event *EWSEvent) (*EWSEvent, error)
	GetByEventID(ctx context.Context, eventID string) (*EWSEvent, error)
	ListByApplicant(ctx context.Context, applicantID uuid.UUID, limit int32) ([]*EWSEvent, error)
	ListRecent(ctx context.Context, since time.Time, limit int32) ([]*EWSEvent, error)
}
