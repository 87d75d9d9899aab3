package core

import (
	"fmt"
	"time"
)

// SessionID identifies one logical run of the steering loop.
type SessionID string

const (
	// MaxTurnCount is the exclusive upper bound for turn counters. A stored
	// value at or above this bound indicates corruption, not progress.
	MaxTurnCount = 1000

	// MaxConsecutiveBlocks is the number of consecutive steering blocks
	// after which auto-approval triggers unconditionally.
	MaxConsecutiveBlocks = 3
)

// TurnState is the persisted per-session record tracked across invocations
// of the steering loop. TurnCount is monotonically non-decreasing for the
// lifetime of a session.
type TurnState struct {
	SessionID            SessionID  `json:"session_id"`
	TurnCount            int        `json:"turn_count"`
	ConsecutiveBlocks    int        `json:"consecutive_blocks"`
	FirstBlockAt         *time.Time `json:"first_block_at,omitempty"`
	LastBlockAt          *time.Time `json:"last_block_at,omitempty"`
	FailedConsiderations [][]string `json:"failed_considerations,omitempty"`

	// AddressedConcerns maps a consideration ID to a short note on how it
	// was resolved since the block that recorded it.
	AddressedConcerns map[string]string `json:"addressed_concerns,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewTurnState returns a fresh zero state for a session.
func NewTurnState(id SessionID) *TurnState {
	return &TurnState{
		SessionID: id,
		UpdatedAt: time.Now(),
	}
}

// Clone returns a deep copy of the state.
func (s *TurnState) Clone() *TurnState {
	if s == nil {
		return nil
	}
	c := *s
	if s.FirstBlockAt != nil {
		t := *s.FirstBlockAt
		c.FirstBlockAt = &t
	}
	if s.LastBlockAt != nil {
		t := *s.LastBlockAt
		c.LastBlockAt = &t
	}
	if s.FailedConsiderations != nil {
		c.FailedConsiderations = make([][]string, len(s.FailedConsiderations))
		for i, ids := range s.FailedConsiderations {
			c.FailedConsiderations[i] = append([]string(nil), ids...)
		}
	}
	if s.AddressedConcerns != nil {
		c.AddressedConcerns = make(map[string]string, len(s.AddressedConcerns))
		for id, how := range s.AddressedConcerns {
			c.AddressedConcerns[id] = how
		}
	}
	return &c
}

// IncrementTurn advances the turn counter by one.
func (s *TurnState) IncrementTurn() {
	s.TurnCount++
}

// RecordBlock records a steering block and the consideration IDs that
// failed, advancing the consecutive-block counter.
func (s *TurnState) RecordBlock(failedIDs []string) {
	now := time.Now()
	s.ConsecutiveBlocks++
	if s.FirstBlockAt == nil {
		s.FirstBlockAt = &now
	}
	s.LastBlockAt = &now
	s.FailedConsiderations = append(s.FailedConsiderations, append([]string(nil), failedIDs...))
}

// MarkConcernAddressed records how a previously failed consideration was
// resolved. The note survives until the next approval resets block tracking.
func (s *TurnState) MarkConcernAddressed(id, how string) {
	if s.AddressedConcerns == nil {
		s.AddressedConcerns = make(map[string]string)
	}
	s.AddressedConcerns[id] = how
}

// RecordApproval resets all block tracking after a successful stop.
func (s *TurnState) RecordApproval() {
	s.ConsecutiveBlocks = 0
	s.FirstBlockAt = nil
	s.LastBlockAt = nil
	s.FailedConsiderations = nil
	s.AddressedConcerns = nil
}

// ShouldAutoApprove reports whether the consecutive-block threshold has been
// reached. After the threshold, approval is unconditional: the design fails
// open rather than trapping the loop behind repeated blocks.
func (s *TurnState) ShouldAutoApprove() (bool, string) {
	if s.ConsecutiveBlocks < MaxConsecutiveBlocks {
		return false, fmt.Sprintf("only %d consecutive blocks (threshold: %d)",
			s.ConsecutiveBlocks, MaxConsecutiveBlocks)
	}
	return true, fmt.Sprintf("auto-approve: %d consecutive blocks reached threshold",
		s.ConsecutiveBlocks)
}
