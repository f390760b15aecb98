package indexer

import (
	"strings"
)

// Preprocess normalizes extracted text before chunking: CRLF to LF, trailing
// spaces trimmed per line, runs of three or more newlines collapsed to one
// paragraph break, and the whole text trimmed. Whitespace-only text becomes "".
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	var b strings.Builder
	newlines := 0
	for i, l := range lines {
		if i > 0 {
			newlines++
		}
		if l == "" && i < len(lines)-1 {
			continue
		}
		if newlines > 0 {
			b.WriteString(strings.Repeat("\n", min(newlines, 2)))
			newlines = 0
		}
		b.WriteString(l)
	}
	return strings.TrimSpace(b.String())
}
