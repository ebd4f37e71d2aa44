package engine

import (
	"strings"
	"time"

	"holefill/types"
)

// SessionState is the per-session memory of the last request and its result.
// It is never persisted. All access goes through Session.mu.
type SessionState struct {
	LastTrigger     time.Time
	LastFingerprint *types.InputFingerprint
	LastText        *string
	LastBatch       []*types.CompletionResult
}

// isDuplicateInput reports whether fp is exactly the last fingerprint
func (s *SessionState) isDuplicateInput(fp types.InputFingerprint) bool {
	return s.LastFingerprint != nil && *s.LastFingerprint == fp
}

// isDuplicateLine reports whether the line is the last completion text, ignoring surrounding whitespace
func (s *SessionState) isDuplicateLine(line string) bool {
	return s.LastText != nil && strings.TrimSpace(line) == strings.TrimSpace(*s.LastText)
}

func (s *SessionState) setFingerprint(fp types.InputFingerprint) {
	s.LastFingerprint = &fp
}

// record stores a non-empty batch; the last result's text wins
func (s *SessionState) record(batch []*types.CompletionResult) {
	if len(batch) == 0 {
		return
	}
	for _, r := range batch {
		text := r.Text
		s.LastText = &text
	}
	s.LastBatch = batch
}

// snapshot returns a copy safe to hand out
func (s *SessionState) snapshot() SessionState {
	cp := *s
	if s.LastBatch != nil {
		cp.LastBatch = append([]*types.CompletionResult(nil), s.LastBatch...)
	}
	return cp
}
