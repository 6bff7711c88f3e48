package domain

import (
	"testing"
	"time"
)

func TestGradeForScore_Bands(t *testing.T) {
	tests := []struct {
		name     string
		score    int
		expected Grade
	}{
		{"top of scale", 900, GradeAAA},
		{"AAA lower bound", 870, GradeAAA},
		{"AA upper bound", 869, GradeAA},
		{"AA lower bound", 840, GradeAA},
		{"A lower bound", 805, GradeA},
		{"BBB lower bound", 750, GradeBBB},
		{"BB lower bound", 665, GradeBB},
		{"B lower bound", 600, GradeB},
		{"CCC lower bound", 515, GradeCCC},
		{"CC lower bound", 445, GradeCC},
		{"C lower bound", 351, GradeC},
		{"D upper bound", 350, GradeD},
		{"bottom of scale", 300, GradeD},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GradeForScore(tt.score); got != tt.expected {
				t.Errorf("GradeForScore(%d) = %s, want %s", tt.score, got, tt.expected)
			}
		})
	}
}

func TestCreditScore_AppealOpen(t *testing.T) {
	scoredAt := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	deadline := scoredAt.AddDate(0, 0, AppealWindowDays)

	tests := []struct {
		name     string
		decision Decision
		deadline *time.Time
		now      time.Time
		expected bool
	}{
		{"rejected within window", DecisionRejected, &deadline, scoredAt.AddDate(0, 0, 10), true},
		{"rejected on deadline day", DecisionRejected, &deadline, deadline, true},
		{"rejected after deadline", DecisionRejected, &deadline, deadline.Add(time.Hour), false},
		{"manual review within window", DecisionManualReview, &deadline, scoredAt.AddDate(0, 0, 29), true},
		{"approved never appeals", DecisionApproved, &deadline, scoredAt, false},
		{"no deadline set", DecisionRejected, nil, scoredAt, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &CreditScore{Decision: tt.decision, AppealDeadline: tt.deadline}
			if got := s.AppealOpen(tt.now); got != tt.expected {
				t.Errorf("AppealOpen() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDecisionValid(t *testing.T) {
	for _, d := range []Decision{DecisionApproved, DecisionRejected, DecisionManualReview} {
		if !d.Valid() {
			t.Errorf("Decision %q should be valid", d)
		}
	}
	if Decision("deferred").Valid() {
		t.Error("unknown decision should be invalid")
	}
}
