package engine

import (
	"context"
	"sync"
	"time"

	"holefill/logger"
	"holefill/prompt"
	"holefill/text"
	"holefill/types"

	"github.com/google/uuid"
)

// Session orchestrates completions for one editor buffer. Provide may be
// called re-entrantly; SessionState is only touched under mu, and a newer
// allowed request cancels the one in flight.
type Session struct {
	gate   *Gate
	client Completer
	config EngineConfig
	now    func() time.Time

	mu       sync.Mutex
	state    SessionState
	inflight *inflight
}

type inflight struct {
	id     string
	cancel context.CancelFunc
}

// NewSession creates a session with empty state
func NewSession(client Completer, config EngineConfig) *Session {
	return &Session{
		gate:   NewGate(config),
		client: client,
		config: config,
		now:    time.Now,
	}
}

// Provide runs the gate and, when it allows, one round trip. It returns the
// suggestions to show and false for "no suggestion".
func (s *Session) Provide(ctx context.Context, src Source, tc TriggerContext) ([]*types.Suggestion, bool) {
	s.mu.Lock()
	decision := s.gate.Decide(ctx, src, tc, &s.state, s.now())
	if !decision.Allow {
		s.mu.Unlock()
		logger.Debug("gate: deny reason=%s cached=%d", decision.Reason, len(decision.Cached))
		if len(decision.Cached) == 0 {
			return nil, false
		}
		return s.suggestions(decision.Cached, src)
	}

	req := &inflight{id: uuid.NewString()}
	if s.inflight != nil {
		logger.Debug("engine: request %s superseded by %s", s.inflight.id, req.id)
		s.inflight.cancel()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	req.cancel = cancel
	s.inflight = req
	s.mu.Unlock()

	defer s.finish(req)

	window := decision.Window
	pos := src.Cursor()
	window.Suffix = text.ExtractSuffix(src, pos, s.config.SuffixLines)
	cursorOffset := len(window.CursorPrefix())

	completionReq := &types.CompletionRequest{
		Prompt:       prompt.Build(window, cursorOffset),
		MaxTokens:    s.config.MaxTokens,
		Temperature:  s.config.Temperature,
		CursorOffset: cursorOffset,
		Backend:      s.config.Backend,
	}
	logger.Debug("engine: request %s at %d:%d (prompt %d chars)", req.id, pos.Line, pos.Character, len(completionReq.Prompt))

	results := s.client.Complete(reqCtx, completionReq)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Cancelled or superseded requests leave state untouched
	if reqCtx.Err() != nil {
		logger.Debug("engine: request %s dropped: %v", req.id, reqCtx.Err())
		return nil, false
	}

	s.state.LastTrigger = s.now()

	batch := nonEmpty(results)
	if len(batch) == 0 {
		logger.Debug("engine: request %s returned no completion", req.id)
		return nil, false
	}
	s.state.record(batch)

	return s.suggestions(batch, src)
}

// Accept records text the user accepted so the duplicate-line check sees it
func (s *Session) Accept(accepted string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastText = &accepted
}

// Cancel abandons the in-flight request, if any
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight != nil {
		s.inflight.cancel()
	}
}

// State returns a copy of the session state
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.snapshot()
}

func (s *Session) finish(req *inflight) {
	req.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight == req {
		s.inflight = nil
	}
}

// suggestions turns results into zero-width inserts at the cursor
func (s *Session) suggestions(batch []*types.CompletionResult, src Source) ([]*types.Suggestion, bool) {
	pos := src.Cursor()
	line := src.LineAt(pos.Line)
	col := min(max(pos.Character, 0), len(line))
	at := types.CursorLocation{Line: pos.Line, Character: col}

	out := make([]*types.Suggestion, 0, len(batch))
	for _, r := range batch {
		insert := text.TrimOverlap(r.Text, line[:col], line[col:])
		if insert == "" {
			continue
		}
		out = append(out, &types.Suggestion{
			InsertText: insert,
			Range:      types.Range{Start: at, End: at},
		})
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func nonEmpty(results []*types.CompletionResult) []*types.CompletionResult {
	var out []*types.CompletionResult
	for _, r := range results {
		if r != nil && r.Text != "" {
			out = append(out, r)
		}
	}
	return out
}
