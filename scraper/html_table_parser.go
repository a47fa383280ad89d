// backend/scraper/html_table_parser.go
package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tajaa/matcha-recruit-sub002/models"
)

// FallbackWageIndex is read when no wage column is configured.
const FallbackWageIndex = 1

// RateTypeTipped enables the cash-wage column.
const RateTypeTipped = "tipped"

// DocumentFetcher is the retrying GET used by the HTML-table parser. *Fetcher implements it.
type DocumentFetcher interface {
	Fetch(ctx context.Context, rawURL string, timeout time.Duration, headers map[string]string, maxRetries int) (*Response, error)
}

// HTMLTableParser scrapes a wage table from an HTML page.
type HTMLTableParser struct {
	parserBase
	fetcher    DocumentFetcher
	extractor  TableExtractor
	userAgent  string
	maxRetries int
}

// NewHTMLTableParser creates an HTMLTableParser. A nil extractor means GoqueryTableExtractor.
func NewHTMLTableParser(fetcher DocumentFetcher, extractor TableExtractor, opts ...ParserOption) *HTMLTableParser {
	if extractor == nil {
		extractor = GoqueryTableExtractor{}
	}
	return &HTMLTableParser{
		parserBase: newParserBase(opts),
		fetcher:    fetcher,
		extractor:  extractor,
		userAgent:  DefaultUserAgent,
		maxRetries: DefaultMaxRetries,
	}
}

// SetUserAgent overrides DefaultUserAgent.
func (p *HTMLTableParser) SetUserAgent(ua string) {
	if ua != "" {
		p.userAgent = ua
	}
}

// SetMaxRetries overrides DefaultMaxRetries.
func (p *HTMLTableParser) SetMaxRetries(n int) {
	if n > 0 {
		p.maxRetries = n
	}
}

// FetchAndParse fetches the page and parses the configured table.
func (p *HTMLTableParser) FetchAndParse(ctx context.Context, feed Feed) []models.ParsedRequirement {
	cfg, ok := feed.Config.(*models.HTMLTableConfig)
	if !ok {
		p.logger.Error("HTML table parser called with wrong config type", "source", feed.SourceKey, "config", fmt.Sprintf("%T", feed.Config))
		return nil
	}

	p.logger.Info("Fetching HTML table", "source", feed.SourceKey, "url", feed.URL)
	headers := map[string]string{
		"User-Agent": p.userAgent,
		"Accept":     "text/html,application/xhtml+xml",
	}
	resp, err := p.fetcher.Fetch(ctx, feed.URL, p.timeout, headers, p.maxRetries)
	if err != nil {
		p.logger.Error("Failed to fetch HTML table", "source", feed.SourceKey, "error", err)
		return nil
	}

	if ct := resp.ContentType(); !isHTMLContentType(ct) && !hasHTMLExtension(feed.URL) {
		p.logger.Warn("Unexpected content type, skipping", "source", feed.SourceKey, "content_type", ct)
		return nil
	}

	rows, err := p.extractor.ExtractRows(resp.Body, cfg.Selector)
	if err != nil {
		p.logger.Error("Failed to extract table", "source", feed.SourceKey, "selector", cfg.Selector, "error", err)
		return nil
	}

	reqs := p.ParseRows(rows, feed, cfg)
	p.logger.Info("Parsed HTML table", "source", feed.SourceKey, "rows", len(rows), "records", len(reqs))
	return reqs
}

// ParseRows normalizes extracted table rows. The first row is the header.
func (p *HTMLTableParser) ParseRows(rows [][]string, feed Feed, cfg *models.HTMLTableConfig) []models.ParsedRequirement {
	if len(rows) < 2 {
		return nil
	}
	header := rows[0]
	cols := cfg.Columns
	rateType := cfg.EffectiveRateType()

	var reqs []models.ParsedRequirement
	for i, row := range rows[1:] {
		name := cellAt(row, cols.Jurisdiction)
		if name == "" {
			continue
		}
		stateText := name
		if cols.State != nil {
			stateText = cellAt(row, *cols.State)
		}
		state, ok := NormalizeState(stateText)
		if !ok {
			p.logger.Debug("Skipping non-data row", "source", feed.SourceKey, "row", i+1, "state", stateText)
			continue
		}

		current := resolveWage(row, cols, rateType)
		var effective *time.Time
		if cols.EffectiveDate != nil {
			effective = ParseDate(cellAt(row, *cols.EffectiveDate))
		}

		var nextValue string
		var nextDate *time.Time
		switch {
		case cols.NextWage != nil:
			nextValue = cellAt(row, *cols.NextWage)
		case cols.FutureChanges != nil:
			nextValue, nextDate = SplitFutureChanges(cellAt(row, *cols.FutureChanges))
		}
		if cols.NextDate != nil {
			nextDate = ParseDate(cellAt(row, *cols.NextDate))
		}

		var notes string
		if cols.Notes != nil {
			notes = cellAt(row, *cols.Notes)
		}

		level := JurisdictionLevel(name, feed.CoverageScope)
		req := models.ParsedRequirement{
			JurisdictionKey:    JurisdictionKey(name, state, level),
			JurisdictionName:   name,
			JurisdictionLevel:  level,
			State:              state,
			Category:           feed.Category,
			RateType:           rateType,
			CurrentValue:       current,
			NumericValue:       NumericValue(current),
			EffectiveDate:      effective,
			NextScheduledDate:  nextDate,
			NextScheduledValue: nextValue,
			SourceURL:          feed.URL,
			Notes:              notes,
			RawData:            rawRecord(header, row),
		}
		if !p.accept(feed, &req) {
			continue
		}
		reqs = append(reqs, req)
	}
	return reqs
}

// resolveWage picks the wage cell: current wage, then cash wage for tipped tables, then total,
// then FallbackWageIndex. The first configured column wins even if its cell is empty.
func resolveWage(row []string, cols models.HTMLColumns, rateType string) string {
	switch {
	case cols.CurrentWage != nil:
		return cellAt(row, *cols.CurrentWage)
	case rateType == RateTypeTipped && cols.CashWage != nil:
		return cellAt(row, *cols.CashWage)
	case cols.Total != nil:
		return cellAt(row, *cols.Total)
	default:
		return cellAt(row, FallbackWageIndex)
	}
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func isHTMLContentType(ct string) bool {
	return ct == "" || strings.Contains(ct, "html")
}

func hasHTMLExtension(rawURL string) bool {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	path = strings.ToLower(path)
	return strings.HasSuffix(path, ".html") || strings.HasSuffix(path, ".htm")
}
