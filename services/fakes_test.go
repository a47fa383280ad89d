package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tajaa/matcha-recruit-sub002/database"
	"github.com/tajaa/matcha-recruit-sub002/models"
	"github.com/tajaa/matcha-recruit-sub002/scraper"
)

type statusCall struct {
	ID     uuid.UUID
	Update models.SourceStatusUpdate
}

type upsertCall struct {
	SourceID  uuid.UUID
	Req       models.ParsedRequirement
	FetchedAt time.Time
}

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu         sync.Mutex
	sources    map[uuid.UUID]*models.Source
	statuses   []statusCall
	upserts    []upsertCall
	upsertErr  func(req models.ParsedRequirement) error
	tier1      map[string][]models.Tier1Row
	tier1Err   map[string]error
	lookups    []models.CacheLookup
	listErr    error
	statusCtxs []context.Context
}

func newFakeStore(sources ...models.Source) *fakeStore {
	fs := &fakeStore{
		sources:  make(map[uuid.UUID]*models.Source),
		tier1:    make(map[string][]models.Tier1Row),
		tier1Err: make(map[string]error),
	}
	for i := range sources {
		src := sources[i]
		fs.sources[src.ID] = &src
	}
	return fs
}

func (f *fakeStore) GetSource(_ context.Context, id uuid.UUID) (*models.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.sources[id]
	if !ok {
		return nil, database.ErrSourceNotFound
	}
	cp := *src
	return &cp, nil
}

func (f *fakeStore) GetSourceByKey(_ context.Context, key string) (*models.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, src := range f.sources {
		if src.SourceKey == key {
			cp := *src
			return &cp, nil
		}
	}
	return nil, database.ErrSourceNotFound
}

func (f *fakeStore) ListSources(_ context.Context) ([]models.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Source
	for _, src := range f.sources {
		out = append(out, *src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceKey < out[j].SourceKey })
	return out, nil
}

func (f *fakeStore) ListActiveSources(ctx context.Context) ([]models.Source, error) {
	all, err := f.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Source
	for _, src := range all {
		if src.IsActive {
			out = append(out, src)
		}
	}
	return out, nil
}

func (f *fakeStore) SeedSources(_ context.Context, sources []models.Source) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range sources {
		src := sources[i]
		f.sources[src.ID] = &src
	}
	return len(sources), nil
}

func (f *fakeStore) UpdateSourceStatus(ctx context.Context, id uuid.UUID, update models.SourceStatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.sources[id]
	if !ok {
		return database.ErrSourceNotFound
	}
	f.statuses = append(f.statuses, statusCall{ID: id, Update: update})
	f.statusCtxs = append(f.statusCtxs, ctx)
	at := update.FetchedAt
	src.LastFetchedAt = &at
	src.LastFetchStatus = update.Status
	src.LastFetchError = update.Error
	src.RecordCount = update.RecordCount
	return nil
}

func (f *fakeStore) SetSourceActive(_ context.Context, key string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, src := range f.sources {
		if src.SourceKey == key {
			src.IsActive = active
			return nil
		}
	}
	return database.ErrSourceNotFound
}

func (f *fakeStore) UpsertCacheEntry(_ context.Context, sourceID uuid.UUID, req models.ParsedRequirement, fetchedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		if err := f.upsertErr(req); err != nil {
			return err
		}
	}
	f.upserts = append(f.upserts, upsertCall{SourceID: sourceID, Req: req, FetchedAt: fetchedAt})
	return nil
}

func (f *fakeStore) QueryTier1(_ context.Context, lookup models.CacheLookup) ([]models.Tier1Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, lookup)
	if err := f.tier1Err[lookup.Category]; err != nil {
		return nil, err
	}
	var rows []models.Tier1Row
	for _, row := range f.tier1[lookup.Category] {
		if row.State != lookup.State {
			continue
		}
		if row.JurisdictionKey != lookup.JurisdictionKey && row.JurisdictionLevel != models.LevelState {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

var errUpsert = errors.New("duplicate entry")

// parserFunc adapts a function to scraper.Parser.
type parserFunc func(ctx context.Context, feed scraper.Feed) []models.ParsedRequirement

func (p parserFunc) FetchAndParse(ctx context.Context, feed scraper.Feed) []models.ParsedRequirement {
	return p(ctx, feed)
}

var _ Store = (*database.Store)(nil)
