package dafny

// stale.go - lines touched by an edit.

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

func splitLines(content string) []string {
	return strings.Split(content, "\n")
}

// ChangedLines returns the 0-based lines of newText that were replaced or
// inserted relative to oldText, in ascending order. A pure deletion marks the
// line that now sits where the deleted lines were.
func ChangedLines(oldText, newText string) []int {
	a, b := splitLines(oldText), splitLines(newText)
	m := difflib.NewMatcher(a, b)

	var out []int
	add := func(line int) {
		if line >= len(b) {
			line = len(b) - 1
		}
		if n := len(out); n > 0 && out[n-1] >= line {
			return
		}
		out = append(out, line)
	}
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'r', 'i':
			for j := op.J1; j < op.J2; j++ {
				add(j)
			}
		case 'd':
			add(op.J1)
		}
	}
	return out
}
