package core

import (
	"errors"
	"testing"
)

func TestValidate_Bounds(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		wantErr bool
	}{
		{"zero", 0, false},
		{"mid", 500, false},
		{"max-1", MaxTurnCount - 1, false},
		{"negative", -1, true},
		{"at max", MaxTurnCount, true},
		{"beyond max", MaxTurnCount + 42, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewTurnState("sess-1")
			s.TurnCount = tt.count
			err := Validate(s, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%d) error = %v, wantErr %v", tt.count, err, tt.wantErr)
			}
			if err != nil && !IsCategory(err, ErrCatValidation) {
				t.Errorf("expected validation category, got %v", GetCategory(err))
			}
		})
	}
}

func TestValidate_Monotonicity(t *testing.T) {
	prev := NewTurnState("sess-1")
	prev.TurnCount = 5

	tests := []struct {
		name    string
		count   int
		wantErr bool
	}{
		{"increment", 6, false},
		{"hold", 5, false},
		{"jump", 50, false},
		{"regress by one", 4, true},
		{"regress to zero", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand := NewTurnState("sess-1")
			cand.TurnCount = tt.count
			err := Validate(cand, prev)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%d vs prev %d) error = %v, wantErr %v",
					tt.count, prev.TurnCount, err, tt.wantErr)
			}
		})
	}
}

func TestValidate_RejectionCarriesOffendingValue(t *testing.T) {
	prev := NewTurnState("sess-1")
	prev.TurnCount = 9

	cand := NewTurnState("sess-1")
	cand.TurnCount = 3

	err := Validate(cand, prev)
	if err == nil {
		t.Fatal("expected rejection")
	}

	var domErr *DomainError
	if !errors.As(err, &domErr) {
		t.Fatalf("expected DomainError, got %T", err)
	}
	if domErr.Code != CodeMonotonicityViolation {
		t.Errorf("code = %s, want %s", domErr.Code, CodeMonotonicityViolation)
	}
	if got := domErr.Details["turn_count"]; got != 3 {
		t.Errorf("details turn_count = %v, want 3", got)
	}
	if got := domErr.Details["previous_turn_count"]; got != 9 {
		t.Errorf("details previous_turn_count = %v, want 9", got)
	}
	if IsRetryable(err) {
		t.Error("validation rejects must not be retryable")
	}
}

func TestValidate_SessionMismatch(t *testing.T) {
	prev := NewTurnState("sess-a")
	cand := NewTurnState("sess-b")

	err := Validate(cand, prev)
	if err == nil {
		t.Fatal("expected session mismatch rejection")
	}
	var domErr *DomainError
	if !errors.As(err, &domErr) || domErr.Code != CodeSessionMismatch {
		t.Fatalf("expected %s, got %v", CodeSessionMismatch, err)
	}
}

func TestValidate_NilPrevious(t *testing.T) {
	cand := NewTurnState("sess-1")
	cand.TurnCount = 7
	if err := Validate(cand, nil); err != nil {
		t.Fatalf("first state with no previous should pass: %v", err)
	}
}
