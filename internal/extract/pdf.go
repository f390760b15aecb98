package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PageSource is a paged document that yields ordered text runs per page.
// Pages are numbered from 1.
type PageSource interface {
	NumPage() int
	PageRuns(page int) ([]string, error)
}

// JoinPages concatenates the text runs of every page in page order.
// Runs are joined with single spaces; no separator other than that space is
// placed between the last run of one page and the first run of the next.
func JoinPages(src PageSource) (string, error) {
	var runs []string
	for i := 1; i <= src.NumPage(); i++ {
		pageRuns, err := src.PageRuns(i)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		runs = append(runs, pageRuns...)
	}
	return strings.Join(runs, " "), nil
}

type pdfPages struct {
	r *pdf.Reader
}

func openPDF(content []byte) (PageSource, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	return &pdfPages{r: r}, nil
}

func (p *pdfPages) NumPage() int {
	return p.r.NumPage()
}

// PageRuns returns the page's text runs in reading order: rows top to bottom,
// and each text-show operation within a row left to right as its own run.
func (p *pdfPages) PageRuns(i int) ([]string, error) {
	page := p.r.Page(i)
	if page.V.IsNull() {
		return nil, nil
	}
	rows, err := page.GetTextByRow()
	if err != nil {
		return nil, err
	}
	var runs []string
	for _, row := range rows {
		for _, t := range row.Content {
			if s := strings.TrimSpace(t.S); s != "" {
				runs = append(runs, s)
			}
		}
	}
	return runs, nil
}
