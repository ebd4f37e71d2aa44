package text

import "strings"

// Comment and string detection used by the trigger gate. Lexical only, no
// language grammar; C-family tokens.

const (
	lineCommentToken  = "//"
	blockCommentOpen  = "/*"
	blockCommentClose = "*/"
)

// InLineComment reports whether a line comment starts before the cursor
func InLineComment(linePrefix string) bool {
	return strings.Contains(linePrefix, lineCommentToken)
}

// InBlockComment reports whether the nearest block comment opened before the
// cursor is still open, given all document text up to the cursor
func InBlockComment(textBefore string) bool {
	open := strings.LastIndex(textBefore, blockCommentOpen)
	if open < 0 {
		return false
	}
	return !strings.Contains(textBefore[open+len(blockCommentOpen):], blockCommentClose)
}

// InString reports whether the cursor sits inside an unterminated string
// literal on the current line. A quote opens a string when none is open; only
// the same quote character closes it, unless the preceding byte is a backslash.
// Unlike a plain toggle on every quote, the other quote kind inside a string
// is text: "it's" is a closed string here.
func InString(linePrefix string) bool {
	var quote byte
	for i := 0; i < len(linePrefix); i++ {
		c := linePrefix[i]
		if c != '"' && c != '\'' {
			continue
		}
		switch {
		case quote == 0:
			quote = c
		case c == quote && linePrefix[i-1] != '\\':
			quote = 0
		}
	}
	return quote != 0
}
