package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimOverlap(t *testing.T) {
	tests := []struct {
		name       string
		completion string
		prefix     string
		suffix     string
		want       string
	}{
		{"no overlap", "bar, baz", "foo(", ")", "bar, baz"},
		{"echoed line", "return foo(bar)", "  return fo", "", "o(bar)"},
		{"partial echo kept", "turn x", "  return", "", "turn x"},
		{"duplicated closer", "bar)", "foo(", ")", "bar"},
		{"balanced closer kept", "bar()", "foo(", ")", "bar()"},
		{"unmatched closer after balanced call", "bar())", "foo(", ")", "bar()"},
		{"balanced block kept", "{ x }", "if ok ", "}", "{ x }"},
		{"duplicated suffix", "a + b; }", "x := ", "; }", "a + b"},
		{"word overlap kept", "value", "x := ", "ue + 1", "value"},
		{"empty completion", "", "foo", "bar", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrimOverlap(tt.completion, tt.prefix, tt.suffix))
		})
	}
}

func TestClosesBefore(t *testing.T) {
	assert.True(t, closesBefore("bar()", 4), "closer of an opener before the cut")
	assert.False(t, closesBefore("bar)", 3), "unmatched closer")
	assert.False(t, closesBefore("a(b)c)", 5), "only the unmatched closer is in the tail")
	assert.False(t, closesBefore("x", 1), "empty tail")
	assert.False(t, closesBefore("(]", 1), "mismatched kinds do not pair")
}
