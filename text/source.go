package text

import (
	"strings"

	"holefill/types"
)

// Source is read-only access to the document the cursor lives in.
// Implemented by buffer.NvimSource for Neovim and LinesSource for tests.
type Source interface {
	LineCount() int
	LineAt(line int) string // 0-indexed; out of range returns ""
	TextRange(r types.Range) string
	Cursor() types.CursorLocation
}

type lineReader interface {
	LineCount() int
	LineAt(line int) string
}

// LinesSource is an in-memory Source over a snapshot of lines
type LinesSource struct {
	Lines []string
	Pos   types.CursorLocation
}

// NewLinesSource creates a source from document text, splitting on newlines
func NewLinesSource(content string, cursor types.CursorLocation) *LinesSource {
	return &LinesSource{
		Lines: strings.Split(content, "\n"),
		Pos:   cursor,
	}
}

func (s *LinesSource) LineCount() int { return len(s.Lines) }

func (s *LinesSource) LineAt(line int) string {
	if line < 0 || line >= len(s.Lines) {
		return ""
	}
	return s.Lines[line]
}

func (s *LinesSource) Cursor() types.CursorLocation { return s.Pos }

// TextRange returns the text between two locations joined with newlines.
// Locations are clamped to the document.
func (s *LinesSource) TextRange(r types.Range) string {
	return RangeText(s, r)
}

// RangeText extracts a range from any line-addressable source
func RangeText(src lineReader, r types.Range) string {
	if src.LineCount() == 0 {
		return ""
	}
	start := clampLocation(src, r.Start)
	end := clampLocation(src, r.End)
	if end.Line < start.Line || (end.Line == start.Line && end.Character <= start.Character) {
		return ""
	}

	if start.Line == end.Line {
		return src.LineAt(start.Line)[start.Character:end.Character]
	}

	var b strings.Builder
	b.WriteString(src.LineAt(start.Line)[start.Character:])
	for i := start.Line + 1; i < end.Line; i++ {
		b.WriteString("\n")
		b.WriteString(src.LineAt(i))
	}
	b.WriteString("\n")
	b.WriteString(src.LineAt(end.Line)[:end.Character])
	return b.String()
}

func clampLocation(src lineReader, loc types.CursorLocation) types.CursorLocation {
	line := min(max(loc.Line, 0), src.LineCount()-1)
	char := min(max(loc.Character, 0), len(src.LineAt(line)))
	return types.CursorLocation{Line: line, Character: char}
}
