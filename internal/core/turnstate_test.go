package core

import (
	"testing"
)

func TestTurnState_RecordBlock(t *testing.T) {
	s := NewTurnState("sess-1")

	s.RecordBlock([]string{"todos_complete", "local_testing"})
	if s.ConsecutiveBlocks != 1 {
		t.Fatalf("ConsecutiveBlocks = %d, want 1", s.ConsecutiveBlocks)
	}
	if s.FirstBlockAt == nil || s.LastBlockAt == nil {
		t.Fatal("block timestamps not set")
	}
	first := *s.FirstBlockAt

	s.RecordBlock([]string{"ci_status"})
	if s.ConsecutiveBlocks != 2 {
		t.Fatalf("ConsecutiveBlocks = %d, want 2", s.ConsecutiveBlocks)
	}
	if !s.FirstBlockAt.Equal(first) {
		t.Error("first block timestamp must not move on subsequent blocks")
	}
	if len(s.FailedConsiderations) != 2 {
		t.Fatalf("FailedConsiderations entries = %d, want 2", len(s.FailedConsiderations))
	}
}

func TestTurnState_RecordApprovalResets(t *testing.T) {
	s := NewTurnState("sess-1")
	s.RecordBlock([]string{"next_steps"})
	s.RecordBlock([]string{"next_steps"})
	s.MarkConcernAddressed("next_steps", "plan documented")

	s.RecordApproval()

	if s.ConsecutiveBlocks != 0 {
		t.Errorf("ConsecutiveBlocks = %d, want 0", s.ConsecutiveBlocks)
	}
	if s.FirstBlockAt != nil || s.LastBlockAt != nil {
		t.Error("block timestamps not cleared")
	}
	if s.FailedConsiderations != nil {
		t.Error("failed considerations not cleared")
	}
	if s.AddressedConcerns != nil {
		t.Error("addressed concerns not cleared")
	}
}

func TestTurnState_MarkConcernAddressed(t *testing.T) {
	s := NewTurnState("sess-1")
	s.RecordBlock([]string{"investigation_docs", "next_steps"})

	s.MarkConcernAddressed("investigation_docs", "session summary written")
	s.MarkConcernAddressed("next_steps", "decision record added")
	s.MarkConcernAddressed("next_steps", "decision record updated")

	if len(s.AddressedConcerns) != 2 {
		t.Fatalf("AddressedConcerns = %d entries, want 2", len(s.AddressedConcerns))
	}
	if s.AddressedConcerns["next_steps"] != "decision record updated" {
		t.Error("re-marking a concern must overwrite its note")
	}

	c := s.Clone()
	c.AddressedConcerns["investigation_docs"] = "mutated"
	if s.AddressedConcerns["investigation_docs"] != "session summary written" {
		t.Error("clone shares AddressedConcerns map")
	}

	s.RecordApproval()
	if s.AddressedConcerns != nil {
		t.Error("approval must clear addressed concerns")
	}
}

func TestTurnState_ShouldAutoApprove(t *testing.T) {
	s := NewTurnState("sess-1")

	for i := 0; i < MaxConsecutiveBlocks-1; i++ {
		if ok, _ := s.ShouldAutoApprove(); ok {
			t.Fatalf("auto-approve at %d blocks, before threshold", s.ConsecutiveBlocks)
		}
		s.RecordBlock(nil)
	}
	s.RecordBlock(nil)

	ok, reason := s.ShouldAutoApprove()
	if !ok {
		t.Fatalf("expected auto-approve at %d blocks: %s", s.ConsecutiveBlocks, reason)
	}
}

func TestTurnState_CloneIsDeep(t *testing.T) {
	s := NewTurnState("sess-1")
	s.TurnCount = 4
	s.RecordBlock([]string{"investigation_docs"})

	c := s.Clone()
	c.TurnCount = 99
	c.FailedConsiderations[0][0] = "mutated"

	if s.TurnCount != 4 {
		t.Error("clone shares TurnCount")
	}
	if s.FailedConsiderations[0][0] != "investigation_docs" {
		t.Error("clone shares FailedConsiderations backing array")
	}
}

func TestDiagnosticEvent_TurnCount(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  int
		ok    bool
	}{
		{"int", 7, 7, true},
		{"float64 from json", float64(7), 7, true},
		{"int64", int64(12), 12, true},
		{"string", "7", 0, false},
		{"missing", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := map[string]interface{}{}
			if tt.value != nil {
				payload["turn_count"] = tt.value
			}
			e := NewDiagnosticEvent(EventWriteAttempt, "sess-1", payload)
			got, ok := e.TurnCount()
			if got != tt.want || ok != tt.ok {
				t.Errorf("TurnCount() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}
