package text

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// closers may be dropped from the end of a completion when the same run
// already follows the cursor
const closers = ")]}>'\";, "

// TrimOverlap removes text the model repeated from around the hole: a
// leading echo of the whole typed line, and a tail that duplicates what
// already follows the cursor.
func TrimOverlap(completion, linePrefix, lineSuffix string) string {
	if completion == "" {
		return completion
	}
	dmp := diffmatchpatch.New()

	typed := strings.TrimLeft(linePrefix, " \t")
	if typed != "" && strings.Contains(completion, typed) {
		if n := dmp.DiffCommonOverlap(linePrefix, completion); n >= len(typed) {
			completion = completion[n:]
		}
	}

	following := strings.TrimRight(lineSuffix, " \t")
	if following != "" {
		n := dmp.DiffCommonOverlap(completion, lineSuffix)
		cut := len(completion) - n
		if n > 0 && !closesBefore(completion, cut) {
			tail := completion[cut:]
			if n >= len(following) || strings.Trim(tail, closers) == "" {
				completion = completion[:cut]
			}
		}
	}

	return completion
}

var openers = map[byte]byte{')': '(', ']': '[', '}': '{'}

// closesBefore reports whether a bracket in s[cut:] closes one opened in
// s[:cut]. Such a tail belongs to the completion, not to the line after it.
func closesBefore(s string, cut int) bool {
	var stack []int
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '(', '[', '{':
			stack = append(stack, i)
		case ')', ']', '}':
			top := len(stack) - 1
			if top < 0 || s[stack[top]] != openers[c] {
				continue
			}
			if i >= cut && stack[top] < cut {
				return true
			}
			stack = stack[:top]
		}
	}
	return false
}
