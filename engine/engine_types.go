package engine

import (
	"context"
	"time"

	"holefill/text"
	"holefill/types"
)

// Completer performs one backend round trip.
// Implemented by completion.Client.
type Completer interface {
	Complete(ctx context.Context, req *types.CompletionRequest) []*types.CompletionResult
}

// Source is the document view the engine reads from
type Source = text.Source

// DefaultTriggerDelay is the minimum time between completed round trips
const DefaultTriggerDelay = 1000 * time.Millisecond

type EngineConfig struct {
	ContextLines int           // Lines above the cursor in the window (K)
	TriggerDelay time.Duration // Rate limit between round trips
	SuffixLines  int           // Lines after the cursor sent behind the hole (0 = none)
	MaxTokens    int
	Temperature  float64
	Backend      types.BackendConfig
	SessionTTL   time.Duration // Idle time before a buffer's session is dropped
}

// DefaultConfig returns the reference behaviour: 3 context lines, 1s delay, prefix only
func DefaultConfig() EngineConfig {
	return EngineConfig{
		ContextLines: text.DefaultContextLines,
		TriggerDelay: DefaultTriggerDelay,
		MaxTokens:    256,
		Temperature:  0.2,
		SessionTTL:   30 * time.Minute,
	}
}

// TriggerContext carries editor facts about the event that are not part of the document
type TriggerContext struct {
	SelectionCount     int                 // Number of active selections/cursors
	SelectedSuggestion *SelectedSuggestion // Highlighted item of an open suggestion list, if any
}

// SelectedSuggestion is the item currently highlighted in the editor's suggestion list
type SelectedSuggestion struct {
	Text  string
	Range types.Range // Already typed text the item would replace
}

// DenyReason explains a negative gate decision
type DenyReason int

const (
	ReasonNone DenyReason = iota
	ReasonCancelled
	ReasonMultipleSelections
	ReasonSuggestionMismatch
	ReasonDuplicateInput
	ReasonDuplicateLine
	ReasonRateLimited
	ReasonLineComment
	ReasonBlockComment
	ReasonString
	ReasonNoContext
)

// String returns a human-readable name for the reason
func (r DenyReason) String() string {
	switch r {
	case ReasonNone:
		return "None"
	case ReasonCancelled:
		return "Cancelled"
	case ReasonMultipleSelections:
		return "MultipleSelections"
	case ReasonSuggestionMismatch:
		return "SuggestionMismatch"
	case ReasonDuplicateInput:
		return "DuplicateInput"
	case ReasonDuplicateLine:
		return "DuplicateLine"
	case ReasonRateLimited:
		return "RateLimited"
	case ReasonLineComment:
		return "LineComment"
	case ReasonBlockComment:
		return "BlockComment"
	case ReasonString:
		return "String"
	case ReasonNoContext:
		return "NoContext"
	default:
		return "Unknown"
	}
}

// Decision is the outcome of the trigger gate
type Decision struct {
	Allow  bool
	Reason DenyReason
	// Cached is the batch to replay on a duplicate deny (may be nil)
	Cached []*types.CompletionResult
	// Window is the context window computed while deciding (set on allow)
	Window *text.Window
}
