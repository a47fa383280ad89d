// backend/registry/registry.go
package registry

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/tajaa/matcha-recruit-sub002/models"
)

//go:embed sources.yaml
var embeddedSources []byte

// sourceNamespace derives stable source IDs from source keys.
var sourceNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("structured-data-sources"))

// Entry is one registry definition. Exactly one of Delimited or HTMLTable is set, matching Format.
type Entry struct {
	Key                string                  `yaml:"key"`
	Name               string                  `yaml:"name"`
	URL                string                  `yaml:"url"`
	Format             models.Format           `yaml:"format"`
	Domain             string                  `yaml:"domain"`
	Categories         []string                `yaml:"categories"`
	CoverageScope      models.CoverageScope    `yaml:"coverage_scope"`
	CoverageStates     []string                `yaml:"coverage_states"`
	FetchIntervalHours int                     `yaml:"fetch_interval_hours"`
	Delimited          *models.DelimitedConfig `yaml:"delimited"`
	HTMLTable          *models.HTMLTableConfig `yaml:"html_table"`
}

// ParserConfig returns the entry's format-specific config.
func (e Entry) ParserConfig() models.ParserConfig {
	switch e.Format {
	case models.FormatDelimited:
		if e.Delimited != nil {
			return e.Delimited
		}
	case models.FormatHTMLTable:
		if e.HTMLTable != nil {
			return e.HTMLTable
		}
	}
	return nil
}

func (e Entry) hasCategory(category string) bool {
	return category == "" || slices.Contains(e.Categories, category)
}

func (e Entry) coversState(state string) bool {
	if len(e.CoverageStates) == 0 {
		return true
	}
	return slices.Contains(e.CoverageStates, state)
}

// Registry is the immutable table of known sources, in declaration order.
type Registry struct {
	entries []Entry
	byKey   map[string]int
}

type document struct {
	Sources []Entry `yaml:"sources"`
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Default returns the registry compiled into the binary. It is parsed once.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultRegistry, defaultErr = Parse(embeddedSources)
	})
	return defaultRegistry, defaultErr
}

// Parse decodes and validates a registry document. Unknown YAML fields are rejected.
func Parse(data []byte) (*Registry, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse source registry: %w", err)
	}
	if len(doc.Sources) == 0 {
		return nil, fmt.Errorf("source registry defines no sources")
	}

	reg := &Registry{byKey: make(map[string]int, len(doc.Sources))}
	for i, entry := range doc.Sources {
		entry.Key = strings.TrimSpace(entry.Key)
		for j, st := range entry.CoverageStates {
			entry.CoverageStates[j] = strings.ToUpper(strings.TrimSpace(st))
		}
		if err := validateEntry(entry); err != nil {
			return nil, fmt.Errorf("source %d (%q): %w", i, entry.Key, err)
		}
		if _, dup := reg.byKey[entry.Key]; dup {
			return nil, fmt.Errorf("duplicate source key %q", entry.Key)
		}
		reg.byKey[entry.Key] = len(reg.entries)
		reg.entries = append(reg.entries, entry)
	}
	return reg, nil
}

func validateEntry(e Entry) error {
	if e.Key == "" {
		return fmt.Errorf("key is required")
	}
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("name is required")
	}
	u, err := url.Parse(e.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url %q must be an absolute http(s) URL", e.URL)
	}
	if e.Domain == "" {
		return fmt.Errorf("domain is required")
	}
	switch e.CoverageScope {
	case models.CoverageState, models.CoverageCityCounty:
	default:
		return fmt.Errorf("unknown coverage_scope %q", e.CoverageScope)
	}
	if e.FetchIntervalHours <= 0 {
		return fmt.Errorf("fetch_interval_hours must be positive, got %d", e.FetchIntervalHours)
	}

	switch e.Format {
	case models.FormatDelimited:
		if e.Delimited == nil || e.HTMLTable != nil {
			return fmt.Errorf("delimited source needs exactly one delimited block")
		}
	case models.FormatHTMLTable:
		if e.HTMLTable == nil || e.Delimited != nil {
			return fmt.Errorf("html_table source needs exactly one html_table block")
		}
	default:
		return fmt.Errorf("unknown format %q", e.Format)
	}
	if err := e.ParserConfig().Validate(); err != nil {
		return fmt.Errorf("invalid %s config: %w", e.Format, err)
	}
	return nil
}

// Entries returns a copy of all entries in declaration order.
func (r *Registry) Entries() []Entry {
	return slices.Clone(r.entries)
}

// Get looks up an entry by key.
func (r *Registry) Get(key string) (Entry, bool) {
	i, ok := r.byKey[key]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// CandidateSources lists the keys of sources that could answer a lookup. Local (city/county)
// sources come first, and only when a city or county is given; state sources follow. Within a
// tier the declaration order is kept.
func (r *Registry) CandidateSources(state, city, county, category string) []string {
	state = strings.ToUpper(strings.TrimSpace(state))
	local := strings.TrimSpace(city) != "" || strings.TrimSpace(county) != ""

	var keys []string
	collect := func(scope models.CoverageScope) {
		for _, e := range r.entries {
			if e.CoverageScope == scope && e.hasCategory(category) && e.coversState(state) {
				keys = append(keys, e.Key)
			}
		}
	}
	if local {
		collect(models.CoverageCityCounty)
	}
	collect(models.CoverageState)
	return keys
}

// SeedSources converts the registry into Source rows ready to be upserted. Status fields are left
// at their never-fetched values.
func (r *Registry) SeedSources() ([]models.Source, error) {
	sources := make([]models.Source, 0, len(r.entries))
	for _, e := range r.entries {
		raw, err := json.Marshal(e.ParserConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to encode parser config for %s: %w", e.Key, err)
		}
		categories := e.Categories
		if len(categories) == 0 {
			categories = []string{e.Domain}
		}
		sources = append(sources, models.Source{
			ID:                 uuid.NewSHA1(sourceNamespace, []byte(e.Key)),
			SourceKey:          e.Key,
			SourceName:         e.Name,
			SourceURL:          e.URL,
			Format:             e.Format,
			Domain:             e.Domain,
			Categories:         slices.Clone(categories),
			CoverageScope:      e.CoverageScope,
			CoverageStates:     slices.Clone(e.CoverageStates),
			FetchIntervalHours: e.FetchIntervalHours,
			ParserConfig:       raw,
			IsActive:           true,
		})
	}
	return sources, nil
}
