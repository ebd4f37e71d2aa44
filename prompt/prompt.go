package prompt

import (
	"strings"

	"holefill/text"
)

// Build renders the hole-filler prompt for a context window. cursorOffset is
// the byte offset of the cursor within the window's final line; everything
// before it is prefix, everything after it (plus the window's optional
// suffix) is placed behind the sentinel.
func Build(w *text.Window, cursorOffset int) string {
	prefix, suffix := Split(w, cursorOffset)

	var b strings.Builder
	b.Grow(len(holeFillerTemplate) + len(prefix) + len(suffix) + 256)
	b.WriteString(holeFillerTemplate)
	b.WriteString("<QUERY>\n")
	b.WriteString(prefix)
	b.WriteString(HoleSentinel)
	b.WriteString(suffix)
	b.WriteString("\n</QUERY>\n")
	b.WriteString("TASK: Fill the ")
	b.WriteString(HoleSentinel)
	b.WriteString(" hole. Answer only with the CORRECT completion, and NOTHING ELSE, inside ")
	b.WriteString(CompletionOpenTag)
	b.WriteString(CompletionCloseTag)
	b.WriteString(" tags. Do it now.\n")
	return b.String()
}

// Split divides a window into the text before and after the hole
func Split(w *text.Window, cursorOffset int) (prefix, suffix string) {
	if w == nil || len(w.Lines) == 0 {
		return "", ""
	}

	var prefixBuilder strings.Builder
	for _, line := range w.Preceding() {
		prefixBuilder.WriteString(line)
		prefixBuilder.WriteString("\n")
	}

	last := w.CursorPrefix()
	col := min(max(cursorOffset, 0), len(last))
	prefixBuilder.WriteString(last[:col])

	return prefixBuilder.String(), last[col:] + w.Suffix
}
