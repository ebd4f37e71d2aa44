package engine

import (
	"context"
	"strings"
	"time"

	"holefill/text"
	"holefill/types"
)

// Gate decides whether a cursor event warrants a new backend round trip.
// Checks run cheapest first and each one short-circuits:
//
//	1. cancelled / multiple selections / suggestion list mismatch -> deny
//	2. same fingerprint as last time                              -> deny, replay cached batch
//	3. line equals last completion text                           -> deny, replay cached batch
//	4. remember fingerprint
//	5. less than TriggerDelay since last round trip               -> deny
//	6. typed prefix, or context above                             -> allow
//	   otherwise (comment, string or nothing)                     -> deny
type Gate struct {
	ContextLines int
	TriggerDelay time.Duration
}

// NewGate creates a gate from engine config
func NewGate(config EngineConfig) *Gate {
	return &Gate{
		ContextLines: config.ContextLines,
		TriggerDelay: config.TriggerDelay,
	}
}

// Fingerprint captures the cursor state of src
func Fingerprint(src Source) types.InputFingerprint {
	pos := src.Cursor()
	line := src.LineAt(pos.Line)
	col := min(max(pos.Character, 0), len(line))
	return types.InputFingerprint{
		Line:       pos.Line,
		Character:  pos.Character,
		LinePrefix: line[:col],
	}
}

// Decide evaluates the gate. It mutates state only in step 4; the trigger
// timestamp is left to the caller once a response arrives.
func (g *Gate) Decide(ctx context.Context, src Source, tc TriggerContext, state *SessionState, now time.Time) Decision {
	if reason := g.checkEditor(ctx, src, tc); reason != ReasonNone {
		return Decision{Reason: reason}
	}

	fp := Fingerprint(src)
	if state.isDuplicateInput(fp) {
		return Decision{Reason: ReasonDuplicateInput, Cached: state.LastBatch}
	}
	if state.isDuplicateLine(src.LineAt(fp.Line)) {
		return Decision{Reason: ReasonDuplicateLine, Cached: state.LastBatch}
	}

	state.setFingerprint(fp)

	if !state.LastTrigger.IsZero() && now.Sub(state.LastTrigger) < g.TriggerDelay {
		return Decision{Reason: ReasonRateLimited}
	}

	window := text.ExtractWindow(src, src.Cursor(), g.ContextLines)
	if strings.TrimSpace(fp.LinePrefix) != "" || window.HasContext() {
		return Decision{Allow: true, Window: window}
	}

	return Decision{Reason: g.lexicalReason(src, fp)}
}

func (g *Gate) checkEditor(ctx context.Context, src Source, tc TriggerContext) DenyReason {
	if ctx.Err() != nil {
		return ReasonCancelled
	}
	if tc.SelectionCount > 1 {
		return ReasonMultipleSelections
	}
	if sel := tc.SelectedSuggestion; sel != nil {
		typed := src.TextRange(sel.Range)
		if !strings.HasPrefix(sel.Text, typed) {
			return ReasonSuggestionMismatch
		}
	}
	return ReasonNone
}

// lexicalReason names why an empty line with no context is denied. Every
// path denies; the distinction only shows up in logs.
func (g *Gate) lexicalReason(src Source, fp types.InputFingerprint) DenyReason {
	switch {
	case text.InLineComment(fp.LinePrefix):
		return ReasonLineComment
	case text.InBlockComment(src.TextRange(types.Range{End: types.CursorLocation{Line: fp.Line, Character: len(fp.LinePrefix)}})):
		return ReasonBlockComment
	case text.InString(fp.LinePrefix):
		return ReasonString
	default:
		return ReasonNoContext
	}
}
