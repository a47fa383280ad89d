// backend/models/parser_config.go
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Semantic fields a delimited feed's columns can be mapped to.
const (
	FieldJurisdiction       = "jurisdiction"
	FieldState              = "state"
	FieldCurrentValue       = "current_value"
	FieldEffectiveDate      = "effective_date"
	FieldNextScheduledValue = "next_scheduled_value"
	FieldNextScheduledDate  = "next_scheduled_date"
	FieldNotes              = "notes"
)

var delimitedFields = map[string]bool{
	FieldJurisdiction:       true,
	FieldState:              true,
	FieldCurrentValue:       true,
	FieldEffectiveDate:      true,
	FieldNextScheduledValue: true,
	FieldNextScheduledDate:  true,
	FieldNotes:              true,
}

// ParserConfig is the format-specific part of a source definition. The concrete types are
// DelimitedConfig and HTMLTableConfig.
type ParserConfig interface {
	Format() Format
	Validate() error
}

// DelimitedConfig configures the delimited-text parser.
type DelimitedConfig struct {
	Encoding string `yaml:"encoding" json:"encoding,omitempty"`
	SkipRows int    `yaml:"skip_rows" json:"skip_rows,omitempty"`
	// Columns maps a source header to a semantic field name.
	Columns  map[string]string `yaml:"columns" json:"columns"`
	RateType string            `yaml:"rate_type" json:"rate_type,omitempty"`
}

func (c *DelimitedConfig) Format() Format { return FormatDelimited }

func (c *DelimitedConfig) Validate() error {
	if c.SkipRows < 0 {
		return fmt.Errorf("skip_rows must not be negative, got %d", c.SkipRows)
	}
	if len(c.Columns) == 0 {
		return fmt.Errorf("columns mapping is required")
	}
	seen := make(map[string]string, len(c.Columns))
	for header, field := range c.Columns {
		if !delimitedFields[field] {
			return fmt.Errorf("column %q maps to unknown field %q", header, field)
		}
		if prev, ok := seen[field]; ok {
			return fmt.Errorf("columns %q and %q both map to %q", prev, header, field)
		}
		seen[field] = header
	}
	for _, required := range []string{FieldJurisdiction, FieldState, FieldCurrentValue} {
		if _, ok := seen[required]; !ok {
			return fmt.Errorf("no column mapped to required field %q", required)
		}
	}
	return nil
}

// EffectiveRateType returns the configured rate type or DefaultRateType.
func (c *DelimitedConfig) EffectiveRateType() string {
	if strings.TrimSpace(c.RateType) == "" {
		return DefaultRateType
	}
	return c.RateType
}

// HTMLColumns holds zero-based cell indices. A nil index means the column is absent.
type HTMLColumns struct {
	Jurisdiction  int  `yaml:"jurisdiction" json:"jurisdiction"`
	State         *int `yaml:"state" json:"state,omitempty"`
	CurrentWage   *int `yaml:"current_wage" json:"current_wage,omitempty"`
	CashWage      *int `yaml:"cash_wage" json:"cash_wage,omitempty"`
	Total         *int `yaml:"total" json:"total,omitempty"`
	EffectiveDate *int `yaml:"effective_date" json:"effective_date,omitempty"`
	NextWage      *int `yaml:"next_wage" json:"next_wage,omitempty"`
	NextDate      *int `yaml:"next_date" json:"next_date,omitempty"`
	FutureChanges *int `yaml:"future_changes" json:"future_changes,omitempty"`
	Notes         *int `yaml:"notes" json:"notes,omitempty"`
}

// HTMLTableConfig configures the HTML-table parser.
type HTMLTableConfig struct {
	Selector string      `yaml:"selector" json:"selector,omitempty"`
	RateType string      `yaml:"rate_type" json:"rate_type,omitempty"`
	Columns  HTMLColumns `yaml:"columns" json:"columns"`
}

func (c *HTMLTableConfig) Format() Format { return FormatHTMLTable }

func (c *HTMLTableConfig) Validate() error {
	if c.Columns.Jurisdiction < 0 {
		return fmt.Errorf("jurisdiction column index must not be negative")
	}
	indices := map[string]*int{
		"state":          c.Columns.State,
		"current_wage":   c.Columns.CurrentWage,
		"cash_wage":      c.Columns.CashWage,
		"total":          c.Columns.Total,
		"effective_date": c.Columns.EffectiveDate,
		"next_wage":      c.Columns.NextWage,
		"next_date":      c.Columns.NextDate,
		"future_changes": c.Columns.FutureChanges,
		"notes":          c.Columns.Notes,
	}
	for name, idx := range indices {
		if idx != nil && *idx < 0 {
			return fmt.Errorf("%s column index must not be negative, got %d", name, *idx)
		}
	}
	return nil
}

// EffectiveRateType returns the configured rate type or DefaultRateType.
func (c *HTMLTableConfig) EffectiveRateType() string {
	if strings.TrimSpace(c.RateType) == "" {
		return DefaultRateType
	}
	return c.RateType
}

// DecodeParserConfig turns the persisted JSON parser_config into the concrete config for format
// and validates it.
func DecodeParserConfig(format Format, raw json.RawMessage) (ParserConfig, error) {
	var cfg ParserConfig
	switch format {
	case FormatDelimited:
		cfg = &DelimitedConfig{}
	case FormatHTMLTable:
		cfg = &HTMLTableConfig{}
	default:
		return nil, fmt.Errorf("unsupported source format %q", format)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s parser config: %w", format, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s parser config: %w", format, err)
	}
	return cfg, nil
}
