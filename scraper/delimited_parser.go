// backend/scraper/delimited_parser.go
package scraper

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"golang.org/x/net/html/charset"

	"github.com/tajaa/matcha-recruit-sub002/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// maxRowErrors stops a pathological file from logging forever.
const maxRowErrors = 1000

// delimitedRow is the csvutil target. Tags are semantic field names; the decoder is handed a
// header rewritten through the source's column map.
type delimitedRow struct {
	Jurisdiction       string `csv:"jurisdiction"`
	State              string `csv:"state"`
	CurrentValue       string `csv:"current_value"`
	EffectiveDate      string `csv:"effective_date"`
	NextScheduledValue string `csv:"next_scheduled_value"`
	NextScheduledDate  string `csv:"next_scheduled_date"`
	Notes              string `csv:"notes"`
}

// DelimitedParser handles CSV exports. It downloads with a single plain GET; failures are logged
// and produce no records.
type DelimitedParser struct {
	parserBase
}

// NewDelimitedParser creates a DelimitedParser.
func NewDelimitedParser(opts ...ParserOption) *DelimitedParser {
	return &DelimitedParser{parserBase: newParserBase(opts)}
}

// FetchAndParse downloads and parses the feed.
func (p *DelimitedParser) FetchAndParse(ctx context.Context, feed Feed) []models.ParsedRequirement {
	cfg, ok := feed.Config.(*models.DelimitedConfig)
	if !ok {
		p.logger.Error("Delimited parser called with wrong config type", "source", feed.SourceKey, "config", fmt.Sprintf("%T", feed.Config))
		return nil
	}

	p.logger.Info("Downloading delimited feed", "source", feed.SourceKey, "url", feed.URL)
	data, err := DownloadDocument(ctx, p.client, feed.URL, p.timeout)
	if err != nil {
		p.logger.Error("Failed to download delimited feed", "source", feed.SourceKey, "error", err)
		return nil
	}

	reqs, err := p.Parse(data, feed, cfg)
	if err != nil {
		p.logger.Error("Failed to parse delimited feed", "source", feed.SourceKey, "error", err)
		return nil
	}
	p.logger.Info("Parsed delimited feed", "source", feed.SourceKey, "records", len(reqs))
	return reqs
}

// Parse normalizes a raw delimited document. An error is returned only when the document has no
// usable header; bad rows are skipped.
func (p *DelimitedParser) Parse(data []byte, feed Feed, cfg *models.DelimitedConfig) ([]models.ParsedRequirement, error) {
	data, err := decodeText(data, cfg.Encoding)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	for i := 0; i < cfg.SkipRows; i++ {
		if _, err := reader.Read(); err != nil {
			return nil, fmt.Errorf("failed to skip row %d: %w", i+1, err)
		}
	}

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	mapped, err := p.mapHeader(header, cfg.Columns, feed)
	if err != nil {
		return nil, err
	}

	decoder, err := csvutil.NewDecoder(reader, mapped...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV decoder: %w", err)
	}

	category := feed.Category
	rateType := cfg.EffectiveRateType()

	var reqs []models.ParsedRequirement
	rowErrors := 0
	for line := 1; ; line++ {
		var row delimitedRow
		if err := decoder.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			rowErrors++
			p.logger.Warn("Skipping malformed row", "source", feed.SourceKey, "row", line, "error", err)
			if rowErrors >= maxRowErrors {
				p.logger.Error("Too many malformed rows, stopping", "source", feed.SourceKey, "errors", rowErrors)
				break
			}
			continue
		}

		name := cleanCell(row.Jurisdiction)
		stateRaw := cleanCell(row.State)
		if name == "" || stateRaw == "" {
			continue
		}
		state, ok := NormalizeState(stateRaw)
		if !ok {
			p.logger.Info("Dropping row with unrecognized state", "source", feed.SourceKey, "row", line, "state", stateRaw)
			continue
		}

		level := JurisdictionLevel(name, feed.CoverageScope)
		current := cleanCell(row.CurrentValue)
		req := models.ParsedRequirement{
			JurisdictionKey:    JurisdictionKey(name, state, level),
			JurisdictionName:   name,
			JurisdictionLevel:  level,
			State:              state,
			Category:           category,
			RateType:           rateType,
			CurrentValue:       current,
			NumericValue:       NumericValue(current),
			EffectiveDate:      ParseDate(row.EffectiveDate),
			NextScheduledDate:  ParseDate(row.NextScheduledDate),
			NextScheduledValue: cleanCell(row.NextScheduledValue),
			SourceURL:          feed.URL,
			Notes:              cleanCell(row.Notes),
			RawData:            rawRecord(header, decoder.Record()),
		}
		if !p.accept(feed, &req) {
			continue
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// mapHeader rewrites the source header into semantic field names. Configured headers are matched
// exactly first, then case-insensitively. Unmapped columns get unique placeholder names.
func (p *DelimitedParser) mapHeader(header []string, columns map[string]string, feed Feed) ([]string, error) {
	mapped := make([]string, len(header))
	for i := range header {
		mapped[i] = "_col_" + strconv.Itoa(i)
	}

	found := make(map[string]bool, len(columns))
	for configured, field := range columns {
		idx := indexOfHeader(header, configured)
		if idx < 0 {
			p.logger.Warn("Configured column not found in header", "source", feed.SourceKey, "column", configured)
			continue
		}
		mapped[idx] = field
		found[field] = true
	}

	for _, required := range []string{models.FieldJurisdiction, models.FieldState} {
		if !found[required] {
			return nil, fmt.Errorf("header %v has no column for required field %q", header, required)
		}
	}
	return mapped, nil
}

func indexOfHeader(header []string, name string) int {
	name = strings.TrimSpace(name)
	for i, h := range header {
		if h == name {
			return i
		}
	}
	for i, h := range header {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}

func rawRecord(header, record []string) map[string]string {
	raw := make(map[string]string, len(record))
	for i, v := range record {
		key := "_col_" + strconv.Itoa(i)
		if i < len(header) && header[i] != "" {
			key = header[i]
		}
		raw[key] = v
	}
	return raw
}

// decodeText converts a document in a named encoding to UTF-8.
func decodeText(data []byte, encoding string) ([]byte, error) {
	label := strings.ToLower(strings.TrimSpace(encoding))
	switch label {
	case "", "utf-8", "utf8", "utf-8-sig":
		return data, nil
	}
	r, err := charset.NewReaderLabel(label, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", encoding, err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s text: %w", encoding, err)
	}
	return out, nil
}
