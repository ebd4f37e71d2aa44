package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"holefill/completion"
	"holefill/prompt"
	"holefill/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestProvide_ReturnsSuggestionAtCursor(t *testing.T) {
	completer := newMockCompleter("a + b")
	s := newTestSession(completer, newFakeClock())
	src := source("func add(a, b int) int {\n\treturn ", 1, 8)

	suggestions, ok := s.Provide(context.Background(), src, TriggerContext{})

	require.True(t, ok, "suggestion expected")
	require.Len(t, suggestions, 1)
	assert.Equal(t, "a + b", suggestions[0].InsertText)
	at := types.CursorLocation{Line: 1, Character: 8}
	assert.Equal(t, types.Range{Start: at, End: at}, suggestions[0].Range, "zero-width range at cursor")
	assert.True(t, suggestions[0].Range.IsEmpty())

	state := s.State()
	require.NotNil(t, state.LastText)
	assert.Equal(t, "a + b", *state.LastText)
	assert.Len(t, state.LastBatch, 1)
	assert.False(t, state.LastTrigger.IsZero(), "trigger time recorded after response")
}

func TestProvide_BuildsRequestFromWindow(t *testing.T) {
	completer := newMockCompleter("x")
	s := NewSession(completer, EngineConfig{
		ContextLines: 1,
		TriggerDelay: time.Second,
		MaxTokens:    42,
		Temperature:  0.7,
		Backend:      types.BackendConfig{Provider: types.ProviderTypeCompat, Model: "m"},
	})
	src := source("first\nsecond\nthird(", 2, 6)

	s.Provide(context.Background(), src, TriggerContext{})

	req := completer.lastReq
	require.NotNil(t, req)
	assert.Contains(t, req.Prompt, "<QUERY>\nsecond\nthird("+prompt.HoleSentinel+"\n</QUERY>", "K=1 window in query")
	assert.NotContains(t, req.Prompt, "first\n", "lines above the window are not sent")
	assert.Equal(t, 6, req.CursorOffset)
	assert.Equal(t, 42, req.MaxTokens)
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, "m", req.Backend.Model)
}

func TestProvide_SuffixLines(t *testing.T) {
	completer := newMockCompleter("x")
	config := DefaultConfig()
	config.SuffixLines = 1
	s := NewSession(completer, config)

	s.Provide(context.Background(), source("foo(bar)\nnext\nlast", 0, 4), TriggerContext{})

	require.NotNil(t, completer.lastReq)
	assert.Contains(t, completer.lastReq.Prompt, "foo("+prompt.HoleSentinel+"bar)\nnext\n</QUERY>")
}

func TestProvide_IdenticalFingerprintReplays(t *testing.T) {
	completer := newMockCompleter("value")
	clock := newFakeClock()
	s := newTestSession(completer, clock)
	src := source("x := ", 0, 5)

	first, ok := s.Provide(context.Background(), src, TriggerContext{})
	require.True(t, ok)

	clock.Advance(5 * time.Second)
	completer.setTexts("something else")
	second, ok := s.Provide(context.Background(), src, TriggerContext{})

	require.True(t, ok, "cached batch replayed")
	assert.Equal(t, 1, completer.callCount(), "no second backend call")
	assert.Equal(t, first, second, "same batch as the first call")
}

func TestProvide_DuplicateLineSuppressed(t *testing.T) {
	completer := newMockCompleter("return nil")
	clock := newFakeClock()
	s := newTestSession(completer, clock)

	_, ok := s.Provide(context.Background(), source("\tret", 0, 4), TriggerContext{})
	require.True(t, ok)

	// The user accepted the suggestion: the line now equals the completion text
	clock.Advance(5 * time.Second)
	_, ok = s.Provide(context.Background(), source("\treturn nil", 0, 11), TriggerContext{})

	assert.Equal(t, 1, completer.callCount(), "no new round trip after accept")
	assert.False(t, ok, "replayed batch is already typed out")
	assert.Equal(t, "return nil", *s.State().LastText)
}

func TestProvide_RateLimit(t *testing.T) {
	completer := newMockCompleter("1")
	clock := newFakeClock()
	s := newTestSession(completer, clock)

	_, ok := s.Provide(context.Background(), source("a = ", 0, 4), TriggerContext{})
	require.True(t, ok)

	clock.Advance(400 * time.Millisecond)
	_, ok = s.Provide(context.Background(), source("ab = ", 0, 5), TriggerContext{})
	assert.False(t, ok, "second trigger inside delay denied")
	assert.Equal(t, 1, completer.callCount(), "no backend call while rate limited")

	clock.Advance(1100 * time.Millisecond)
	_, ok = s.Provide(context.Background(), source("abc = ", 0, 6), TriggerContext{})
	assert.True(t, ok, "trigger after delay proceeds")
	assert.Equal(t, 2, completer.callCount())
}

func TestProvide_EmptyResultsKeepPreviousBatch(t *testing.T) {
	completer := newMockCompleter("first")
	clock := newFakeClock()
	s := newTestSession(completer, clock)

	_, ok := s.Provide(context.Background(), source("x", 0, 1), TriggerContext{})
	require.True(t, ok)
	before := s.State()

	clock.Advance(2 * time.Second)
	completer.setTexts()
	_, ok = s.Provide(context.Background(), source("xy", 0, 2), TriggerContext{})
	assert.False(t, ok, "no suggestion for empty sequence")

	clock.Advance(2 * time.Second)
	completer.setTexts("")
	_, ok = s.Provide(context.Background(), source("xyz", 0, 3), TriggerContext{})
	assert.False(t, ok, "no suggestion for empty text")

	after := s.State()
	assert.Equal(t, before.LastBatch, after.LastBatch, "previous batch kept as fallback")
	assert.Equal(t, *before.LastText, *after.LastText, "previous text kept")
	assert.Equal(t, "xyz", after.LastFingerprint.LinePrefix)
}

func TestProvide_EmptyFirstLineNoBackendCall(t *testing.T) {
	completer := newMockCompleter("x")
	s := newTestSession(completer, newFakeClock())

	_, ok := s.Provide(context.Background(), source("", 0, 0), TriggerContext{})

	assert.False(t, ok)
	assert.Equal(t, 0, completer.callCount())
}

func TestProvide_CancelledBeforeStart(t *testing.T) {
	completer := newMockCompleter("x")
	s := newTestSession(completer, newFakeClock())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := s.Provide(ctx, source("abc", 0, 3), TriggerContext{})

	assert.False(t, ok)
	assert.Equal(t, 0, completer.callCount())
	assert.Nil(t, s.State().LastFingerprint, "state untouched")
}

func TestProvide_CancelledDuringRoundTrip(t *testing.T) {
	completer := newMockCompleter("x")
	completer.blockOn = 1
	completer.started = make(chan int, 1)
	s := newTestSession(completer, newFakeClock())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool)
	go func() {
		_, ok := s.Provide(ctx, source("abc", 0, 3), TriggerContext{})
		done <- ok
	}()
	<-completer.started
	cancel()

	assert.False(t, <-done, "cancelled request yields no suggestion")
	state := s.State()
	assert.True(t, state.LastTrigger.IsZero(), "trigger time not updated")
	assert.Nil(t, state.LastBatch, "batch not updated")
}

func TestProvide_SupersededRequestDropped(t *testing.T) {
	completer := newMockCompleter("new")
	completer.blockOn = 1
	completer.started = make(chan int, 2)
	s := newTestSession(completer, newFakeClock())

	done := make(chan bool)
	go func() {
		_, ok := s.Provide(context.Background(), source("old", 0, 3), TriggerContext{})
		done <- ok
	}()
	require.Equal(t, 1, <-completer.started)

	suggestions, ok := s.Provide(context.Background(), source("olde", 0, 4), TriggerContext{})
	require.Equal(t, 2, <-completer.started)

	assert.False(t, <-done, "superseded request returns no suggestion")
	require.True(t, ok, "newer request completes")
	assert.Equal(t, "new", suggestions[0].InsertText)
	assert.Equal(t, "olde", s.State().LastFingerprint.LinePrefix)
}

func TestProvide_TrimsEchoedPrefix(t *testing.T) {
	completer := newMockCompleter("fmt.Println(x)")
	s := newTestSession(completer, newFakeClock())

	suggestions, ok := s.Provide(context.Background(), source("\tfmt.Pri", 0, 8), TriggerContext{})

	require.True(t, ok)
	assert.Equal(t, "ntln(x)", suggestions[0].InsertText, "insert text excludes what is already typed")
	assert.Equal(t, "fmt.Println(x)", *s.State().LastText, "cache keeps the raw completion")
}

func TestAccept_SuppressesRetrigger(t *testing.T) {
	completer := newMockCompleter("x")
	s := newTestSession(completer, newFakeClock())

	s.Accept("done()")
	_, ok := s.Provide(context.Background(), source("  done()", 0, 8), TriggerContext{})

	assert.False(t, ok, "nothing cached to replay")
	assert.Equal(t, 0, completer.callCount(), "accepted line does not retrigger")
}

// failingBackend fails after delivering part of a response
type failingBackend struct{}

func (failingBackend) Stream(ctx context.Context, req *types.BackendRequest) (completion.Stream, error) {
	return &failingStream{}, nil
}

type failingStream struct{ n int }

func (s *failingStream) Recv() (types.Chunk, error) {
	s.n++
	if s.n == 1 {
		return types.Chunk{Text: "<COMPLETION>half"}, nil
	}
	return types.Chunk{}, errors.New("connection reset by peer")
}

func (s *failingStream) Close() error { return nil }

func TestProvide_BackendFailureIsolated(t *testing.T) {
	s := newTestSession(completion.NewClient(failingBackend{}), newFakeClock())

	var ok bool
	assert.NotPanics(t, func() {
		_, ok = s.Provide(context.Background(), source("x := ", 0, 5), TriggerContext{})
	})

	assert.False(t, ok, "failure degrades to no suggestion")
	state := s.State()
	assert.Nil(t, state.LastBatch, "error result is not cached")
	assert.False(t, state.LastTrigger.IsZero(), "completed round trip counts for rate limiting")
}

// scriptedBackend streams a fixed response
type scriptedBackend struct{ response string }

func (b scriptedBackend) Stream(ctx context.Context, req *types.BackendRequest) (completion.Stream, error) {
	return &scriptedStream{parts: strings.SplitAfter(b.response, ">")}, nil
}

type scriptedStream struct{ parts []string }

func (s *scriptedStream) Recv() (types.Chunk, error) {
	if len(s.parts) == 0 {
		return types.Chunk{}, io.EOF
	}
	p := s.parts[0]
	s.parts = s.parts[1:]
	return types.Chunk{Text: p}, nil
}

func (s *scriptedStream) Close() error { return nil }

func TestProvide_EndToEndExtraction(t *testing.T) {
	backend := scriptedBackend{response: "Sure! <COMPLETION>len(items)</COMPLETION> hope that helps"}
	s := newTestSession(completion.NewClient(backend), newFakeClock())

	suggestions, ok := s.Provide(context.Background(), source("for i := 0; i < ", 0, 16), TriggerContext{})

	require.True(t, ok)
	assert.Equal(t, "len(items)", suggestions[0].InsertText)
	assert.Equal(t, completion.DetailCompletion, s.State().LastBatch[0].Detail)
}

func TestProvide_KeepsBalancedCloserInsideAutoPair(t *testing.T) {
	completer := newMockCompleter("bar()")
	s := newTestSession(completer, newFakeClock())

	// Cursor between an auto-inserted pair: foo(|)
	suggestions, ok := s.Provide(context.Background(), source("foo()", 0, 4), TriggerContext{})

	require.True(t, ok)
	assert.Equal(t, "foo(bar())", "foo("+suggestions[0].InsertText+")", "line stays balanced")
}
