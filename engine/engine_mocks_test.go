package engine

import (
	"context"
	"sync"
	"time"

	"holefill/text"
	"holefill/types"
)

// --- Mock implementations ---

// mockCompleter implements Completer for testing
type mockCompleter struct {
	mu      sync.Mutex
	calls   int
	results []*types.CompletionResult
	lastReq *types.CompletionRequest

	// blockOn makes the n-th call (1-based) wait until release is closed or
	// its context ends; started receives the call number when it begins
	blockOn int
	release chan struct{}
	started chan int
}

func newMockCompleter(texts ...string) *mockCompleter {
	m := &mockCompleter{release: make(chan struct{})}
	m.setTexts(texts...)
	return m
}

func (m *mockCompleter) setTexts(texts ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = nil
	for _, t := range texts {
		m.results = append(m.results, &types.CompletionResult{Text: t, Detail: "mock"})
	}
}

func (m *mockCompleter) Complete(ctx context.Context, req *types.CompletionRequest) []*types.CompletionResult {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.lastReq = req
	results := m.results
	blocks := m.blockOn == call
	started := m.started
	m.mu.Unlock()

	if started != nil {
		started <- call
	}
	if blocks {
		select {
		case <-m.release:
		case <-ctx.Done():
			return nil
		}
	}
	return results
}

func (m *mockCompleter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// fakeClock is a manually advanced time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestSession(completer Completer, clock *fakeClock) *Session {
	s := NewSession(completer, DefaultConfig())
	s.now = clock.Now
	return s
}

func source(content string, line, char int) *text.LinesSource {
	return text.NewLinesSource(content, types.CursorLocation{Line: line, Character: char})
}
