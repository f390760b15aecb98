package extract

import (
	"strings"
	"unicode/utf8"
)

// sanitizeUTF8 returns content as a string with invalid UTF-8 sequences
// replaced by the replacement character.
func sanitizeUTF8(content []byte) string {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "\ufffd")
	}
	return string(content)
}
