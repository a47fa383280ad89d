// backend/scraper/table_extractor.go
package scraper

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoTable is returned when a document contains no table at all.
var ErrNoTable = errors.New("no table found in document")

// TableExtractor turns an HTML document into rows of cleaned cell text.
type TableExtractor interface {
	ExtractRows(doc []byte, selector string) ([][]string, error)
}

// GoqueryTableExtractor finds the table with a CSS selector. An empty or unmatched selector falls
// back to the first table in the document.
type GoqueryTableExtractor struct{}

// ExtractRows returns one slice per <tr>, header row included.
func (GoqueryTableExtractor) ExtractRows(doc []byte, selector string) ([][]string, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	table := findTable(page, selector)
	if table == nil {
		return nil, ErrNoTable
	}

	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		// Rows of nested tables belong to the inner table.
		if !tr.ParentsFiltered("table").First().IsSelection(table) {
			return
		}
		var cells []string
		tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
			cell.Find("br").ReplaceWithHtml(" ")
			cells = append(cells, cleanCell(cell.Text()))
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})
	return rows, nil
}

func findTable(page *goquery.Document, selector string) *goquery.Selection {
	if selector != "" {
		sel := page.Find(selector).First()
		if sel.Length() > 0 {
			if goquery.NodeName(sel) == "table" {
				return sel
			}
			if inner := sel.Find("table").First(); inner.Length() > 0 {
				return inner
			}
		}
	}
	if first := page.Find("table").First(); first.Length() > 0 {
		return first
	}
	return nil
}
