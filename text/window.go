package text

import (
	"strings"

	"holefill/types"
)

// DefaultContextLines is the number of lines above the cursor included in a window
const DefaultContextLines = 3

// Window is the bounded slice of text preceding the cursor sent as generation context
type Window struct {
	StartLine int      // 0-indexed line of Lines[0]
	Lines     []string // last element is the cursor line cut at the cursor
	Suffix    string   // text after the cursor; empty unless requested
}

// ExtractWindow returns lines [max(0, line-contextLines), line] with the final
// line truncated at the cursor character. Positions past the end of the
// document or line are clamped.
func ExtractWindow(src Source, pos types.CursorLocation, contextLines int) *Window {
	if contextLines < 0 {
		contextLines = 0
	}
	if src.LineCount() == 0 {
		return &Window{Lines: []string{""}}
	}

	line := min(max(pos.Line, 0), src.LineCount()-1)
	start := max(0, line-contextLines)

	lines := make([]string, 0, line-start+1)
	for i := start; i < line; i++ {
		lines = append(lines, src.LineAt(i))
	}
	current := src.LineAt(line)
	col := min(max(pos.Character, 0), len(current))
	lines = append(lines, current[:col])

	return &Window{StartLine: start, Lines: lines}
}

// ExtractSuffix returns the rest of the cursor line followed by up to n
// following lines. n <= 0 returns the empty string.
func ExtractSuffix(src Source, pos types.CursorLocation, n int) string {
	if n <= 0 || src.LineCount() == 0 {
		return ""
	}
	line := min(max(pos.Line, 0), src.LineCount()-1)
	end := min(line+n, src.LineCount()-1)
	return RangeText(src, types.Range{
		Start: types.CursorLocation{Line: line, Character: pos.Character},
		End:   types.CursorLocation{Line: end, Character: len(src.LineAt(end))},
	})
}

// CursorPrefix is the cursor line up to the cursor
func (w *Window) CursorPrefix() string {
	return w.Lines[len(w.Lines)-1]
}

// Preceding returns the full lines above the cursor line
func (w *Window) Preceding() []string {
	return w.Lines[:len(w.Lines)-1]
}

// HasContext reports whether any preceding line has non-whitespace content
func (w *Window) HasContext() bool {
	for _, l := range w.Preceding() {
		if strings.TrimSpace(l) != "" {
			return true
		}
	}
	return false
}
