package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractMarkup parses content as HTML and keeps only its text nodes.
// Markdown syntax is not interpreted; characters like '#' and '*' stay literal.
func extractMarkup(content []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sanitizeUTF8(content)))
	if err != nil {
		return "", fmt.Errorf("parse markup: %w", err)
	}
	return doc.Text(), nil
}
