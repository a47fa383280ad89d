// backend/services/structured_source_service.go
package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/tajaa/matcha-recruit-sub002/models"
	"github.com/tajaa/matcha-recruit-sub002/registry"
	"github.com/tajaa/matcha-recruit-sub002/scraper"
)

// maxErrorLength bounds last_fetch_error.
const maxErrorLength = 500

// DefaultFreshnessHours applies when a lookup does not specify one.
const DefaultFreshnessHours = 168

// DefaultCategory is looked up when a query names no categories.
const DefaultCategory = "minimum_wage"

// Store is the persistence the service needs. *database.Store implements it.
type Store interface {
	GetSource(ctx context.Context, id uuid.UUID) (*models.Source, error)
	GetSourceByKey(ctx context.Context, key string) (*models.Source, error)
	ListSources(ctx context.Context) ([]models.Source, error)
	ListActiveSources(ctx context.Context) ([]models.Source, error)
	SeedSources(ctx context.Context, sources []models.Source) (int, error)
	UpdateSourceStatus(ctx context.Context, id uuid.UUID, update models.SourceStatusUpdate) error
	SetSourceActive(ctx context.Context, key string, active bool) error
	UpsertCacheEntry(ctx context.Context, sourceID uuid.UUID, req models.ParsedRequirement, fetchedAt time.Time) error
	QueryTier1(ctx context.Context, lookup models.CacheLookup) ([]models.Tier1Row, error)
}

// StructuredSourceService refreshes structured sources into the cache and answers Tier 1 lookups.
type StructuredSourceService struct {
	store            Store
	parsers          map[models.Format]scraper.Parser
	registry         *registry.Registry
	logger           *log.Logger
	metrics          *Metrics
	now              func() time.Time
	defaultFreshness int
}

// Option configures the service.
type Option func(*StructuredSourceService)

// WithLogger sets the service logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *StructuredSourceService) { s.logger = logger }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(s *StructuredSourceService) { s.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *StructuredSourceService) { s.now = now }
}

// WithRegistry replaces the embedded registry used by SeedRegistry.
func WithRegistry(reg *registry.Registry) Option {
	return func(s *StructuredSourceService) { s.registry = reg }
}

// WithDefaultFreshnessHours sets the freshness window for lookups that do not pass one.
func WithDefaultFreshnessHours(hours int) Option {
	return func(s *StructuredSourceService) {
		if hours > 0 {
			s.defaultFreshness = hours
		}
	}
}

// NewStructuredSourceService creates the service. parsers is keyed by source format.
func NewStructuredSourceService(store Store, parsers map[models.Format]scraper.Parser, opts ...Option) *StructuredSourceService {
	s := &StructuredSourceService{
		store:            store,
		parsers:          parsers,
		logger:           log.Default(),
		now:              time.Now,
		defaultFreshness: DefaultFreshnessHours,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchSource refreshes one source: fetch, parse, upsert. The outcome is always written back to
// the source row, including when the parser panics. Nothing is returned as an error; failures are
// reported in the result.
func (s *StructuredSourceService) FetchSource(ctx context.Context, sourceID uuid.UUID) (result models.FetchResult) {
	result = models.FetchResult{SourceID: sourceID, Status: models.FetchStatusError}

	src, err := s.store.GetSource(ctx, sourceID)
	if err != nil {
		s.logger.Error("Failed to load source", "source_id", sourceID, "error", err)
		result.Error = truncateError(err.Error())
		return result
	}
	result.SourceKey = src.SourceKey
	if !src.IsActive {
		s.logger.Warn("Refusing to fetch inactive source", "source", src.SourceKey)
		result.Error = "source is not active"
		return result
	}

	start := s.now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Source fetch panicked", "source", src.SourceKey, "panic", r)
			result.Status = models.FetchStatusError
			result.RecordCount = 0
			result.Error = truncateError(fmt.Sprintf("panic: %v", r))
		}
		// The status write must survive a cancelled refresh.
		statusCtx := context.WithoutCancel(ctx)
		if err := s.UpdateSourceStatus(statusCtx, src.ID, result.Status, result.Error, result.RecordCount); err != nil {
			s.logger.Error("Failed to record fetch status", "source", src.SourceKey, "error", err)
		}
		s.metrics.observeFetch(src.SourceKey, result.Status, s.now().Sub(start))
	}()

	cfg, err := models.DecodeParserConfig(src.Format, src.ParserConfig)
	if err != nil {
		result.Error = truncateError(err.Error())
		s.logger.Error("Invalid parser config", "source", src.SourceKey, "error", err)
		return result
	}
	parser, ok := s.parsers[src.Format]
	if !ok {
		result.Error = fmt.Sprintf("no parser registered for format %q", src.Format)
		s.logger.Error("No parser for source format", "source", src.SourceKey, "format", src.Format)
		return result
	}

	s.logger.Info("Fetching structured source", "source", src.SourceKey, "format", src.Format, "url", src.SourceURL)
	reqs := parser.FetchAndParse(ctx, scraper.FeedFromSource(src, cfg))
	if len(reqs) == 0 {
		s.logger.Warn("Source produced no records", "source", src.SourceKey)
		result.Status = models.FetchStatusEmpty
		result.RecordCount = 0
		return result
	}

	written := s.upsertRecords(ctx, src.ID, src.SourceKey, reqs)
	if written == 0 {
		result.Error = fmt.Sprintf("all %d cache upserts failed", len(reqs))
		s.logger.Error("No records could be cached", "source", src.SourceKey, "parsed", len(reqs))
		return result
	}

	result.Status = models.FetchStatusSuccess
	result.RecordCount = written
	s.logger.Info("Refreshed structured source", "source", src.SourceKey, "parsed", len(reqs), "cached", written)
	return result
}

// FetchSourceByKey resolves a registry key and refreshes that source.
func (s *StructuredSourceService) FetchSourceByKey(ctx context.Context, key string) (models.FetchResult, error) {
	src, err := s.store.GetSourceByKey(ctx, key)
	if err != nil {
		return models.FetchResult{}, err
	}
	return s.FetchSource(ctx, src.ID), nil
}

// FetchAllDueSources refreshes, one at a time, every active source that has never been fetched or
// whose interval has elapsed. Never-fetched sources go first, then the longest-waiting.
func (s *StructuredSourceService) FetchAllDueSources(ctx context.Context) models.RunSummary {
	summary := models.RunSummary{Results: []models.FetchResult{}}

	sources, err := s.store.ListActiveSources(ctx)
	if err != nil {
		s.logger.Error("Failed to list active sources", "error", err)
		return summary
	}

	now := s.now()
	due := slices.DeleteFunc(sources, func(src models.Source) bool { return !src.IsDue(now) })
	slices.SortStableFunc(due, func(a, b models.Source) int {
		switch {
		case a.LastFetchedAt == nil && b.LastFetchedAt == nil:
			return 0
		case a.LastFetchedAt == nil:
			return -1
		case b.LastFetchedAt == nil:
			return 1
		default:
			return cmp.Compare(a.LastFetchedAt.UnixNano(), b.LastFetchedAt.UnixNano())
		}
	})

	s.logger.Info("Starting refresh cycle", "active", len(sources), "due", len(due))
	for _, src := range due {
		if ctx.Err() != nil {
			s.logger.Warn("Refresh cycle cancelled", "remaining", len(due)-summary.SourcesProcessed)
			break
		}
		res := s.FetchSource(ctx, src.ID)
		summary.SourcesProcessed++
		summary.TotalRecords += res.RecordCount
		if res.Status == models.FetchStatusError {
			summary.Errors++
		}
		summary.Results = append(summary.Results, res)
	}
	s.logger.Info("Refresh cycle finished", "processed", summary.SourcesProcessed,
		"records", summary.TotalRecords, "errors", summary.Errors)
	return summary
}

// UpsertToCache writes each requirement under sourceID and returns how many succeeded. A failed
// row is logged and the rest of the batch continues.
func (s *StructuredSourceService) UpsertToCache(ctx context.Context, sourceID uuid.UUID, reqs []models.ParsedRequirement) int {
	return s.upsertRecords(ctx, sourceID, sourceID.String(), reqs)
}

func (s *StructuredSourceService) upsertRecords(ctx context.Context, sourceID uuid.UUID, label string, reqs []models.ParsedRequirement) int {
	fetchedAt := s.now()
	written := 0
	for _, req := range reqs {
		if err := s.store.UpsertCacheEntry(ctx, sourceID, req, fetchedAt); err != nil {
			s.logger.Error("Failed to cache record", "source", label, "jurisdiction", req.JurisdictionKey,
				"category", req.Category, "rate_type", req.RateType, "error", err)
			continue
		}
		written++
	}
	s.metrics.observeUpserts(label, written, len(reqs)-written)
	return written
}

// UpdateSourceStatus records the outcome of a fetch attempt on the source row.
func (s *StructuredSourceService) UpdateSourceStatus(ctx context.Context, sourceID uuid.UUID, status models.FetchStatus, errText string, recordCount int) error {
	return s.store.UpdateSourceStatus(ctx, sourceID, models.SourceStatusUpdate{
		FetchedAt:   s.now(),
		Status:      status,
		Error:       truncateError(errText),
		RecordCount: recordCount,
	})
}

// SeedRegistry upserts every registry entry into the sources table.
func (s *StructuredSourceService) SeedRegistry(ctx context.Context) (int, error) {
	reg := s.registry
	if reg == nil {
		var err error
		if reg, err = registry.Default(); err != nil {
			return 0, fmt.Errorf("failed to load source registry: %w", err)
		}
	}
	sources, err := reg.SeedSources()
	if err != nil {
		return 0, err
	}
	return s.store.SeedSources(ctx, sources)
}

// SetSourceActive enables or disables a source. Disabled sources are skipped by refresh cycles
// and their cache rows stop appearing in lookups.
func (s *StructuredSourceService) SetSourceActive(ctx context.Context, key string, active bool) error {
	if err := s.store.SetSourceActive(ctx, key, active); err != nil {
		return err
	}
	s.logger.Info("Updated source activation", "source", key, "active", active)
	return nil
}

// ListSources returns every known source with its refresh status.
func (s *StructuredSourceService) ListSources(ctx context.Context) ([]models.Source, error) {
	return s.store.ListSources(ctx)
}

func truncateError(msg string) string {
	if len(msg) <= maxErrorLength {
		return msg
	}
	cut := maxErrorLength
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
