// backend/database/cache_store.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tajaa/matcha-recruit-sub002/models"
)

var cacheUpdateColumns = []string{
	"jurisdiction_name", "jurisdiction_level", "state", "current_value", "numeric_value",
	"effective_date", "next_scheduled_date", "next_scheduled_value", "source_url", "notes",
	"raw_data", "fetched_at",
}

// UpsertCacheEntry writes one parsed requirement, replacing the row with the same
// (source_id, jurisdiction_key, category, rate_type).
func (s *Store) UpsertCacheEntry(ctx context.Context, sourceID uuid.UUID, req models.ParsedRequirement, fetchedAt time.Time) error {
	var rawData sql.NullString
	if len(req.RawData) > 0 {
		b, err := json.Marshal(req.RawData)
		if err != nil {
			return fmt.Errorf("failed to encode raw data for %s: %w", req.JurisdictionKey, err)
		}
		rawData = sql.NullString{String: string(b), Valid: true}
	}
	var numeric sql.NullFloat64
	if req.NumericValue != nil {
		numeric = sql.NullFloat64{Float64: *req.NumericValue, Valid: true}
	}
	rateType := req.RateType
	if rateType == "" {
		rateType = models.DefaultRateType
	}

	query := `
		INSERT INTO structured_data_cache (
			source_id, jurisdiction_key, category, rate_type,
			jurisdiction_name, jurisdiction_level, state, current_value, numeric_value,
			effective_date, next_scheduled_date, next_scheduled_value, source_url, notes,
			raw_data, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		` + s.upsertClause([]string{"source_id", "jurisdiction_key", "category", "rate_type"}, cacheUpdateColumns)

	_, err := s.db.ExecContext(ctx, query,
		sourceID, req.JurisdictionKey, req.Category, rateType,
		req.JurisdictionName, req.JurisdictionLevel, req.State, nullString(req.CurrentValue), numeric,
		nullTime(req.EffectiveDate), nullTime(req.NextScheduledDate), nullString(req.NextScheduledValue),
		nullString(req.SourceURL), nullString(req.Notes),
		rawData, timestamp(fetchedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry %s/%s/%s: %w", req.JurisdictionKey, req.Category, rateType, err)
	}
	return nil
}

// QueryTier1 returns fresh cache rows from active sources for one state and category that match
// the lookup key or are state-level. Rows come back city, county, state; newest first within a level.
func (s *Store) QueryTier1(ctx context.Context, lookup models.CacheLookup) ([]models.Tier1Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.source_id, c.jurisdiction_key, c.jurisdiction_name, c.jurisdiction_level,
		       c.state, c.category, c.rate_type, c.current_value, c.numeric_value,
		       c.effective_date, c.next_scheduled_date, c.next_scheduled_value,
		       c.source_url, c.notes, c.raw_data, c.fetched_at,
		       s.source_name, s.source_key
		FROM structured_data_cache c
		JOIN structured_data_sources s ON s.id = c.source_id
		WHERE c.state = ?
		  AND c.category = ?
		  AND c.fetched_at >= ?
		  AND s.is_active = ?
		  AND (c.jurisdiction_key = ? OR c.jurisdiction_level = 'state')
		ORDER BY CASE c.jurisdiction_level WHEN 'city' THEN 1 WHEN 'county' THEN 2 ELSE 3 END,
		         c.fetched_at DESC, c.id`,
		lookup.State, lookup.Category, timestamp(lookup.FetchedSince), true, lookup.JurisdictionKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query structured_data_cache: %w", err)
	}
	defer rows.Close()

	var results []models.Tier1Row
	for rows.Next() {
		var (
			r                                   models.Tier1Row
			currentValue, nextValue, url, notes sql.NullString
			rawData                             sql.NullString
			numeric                             sql.NullFloat64
			effective, nextDate                 sql.NullTime
		)
		err := rows.Scan(
			&r.ID, &r.SourceID, &r.JurisdictionKey, &r.JurisdictionName, &r.JurisdictionLevel,
			&r.State, &r.Category, &r.RateType, &currentValue, &numeric,
			&effective, &nextDate, &nextValue,
			&url, &notes, &rawData, &r.FetchedAt,
			&r.SourceName, &r.SourceKey,
		)
		if err != nil {
			s.logger.Error("Failed to scan structured_data_cache row", "error", err)
			continue
		}
		r.CurrentValue = currentValue.String
		if numeric.Valid {
			v := numeric.Float64
			r.NumericValue = &v
		}
		r.EffectiveDate = timePtr(effective)
		r.NextScheduledDate = timePtr(nextDate)
		r.NextScheduledValue = nextValue.String
		r.SourceURL = url.String
		r.Notes = notes.String
		if rawData.Valid && rawData.String != "" {
			if err := json.Unmarshal([]byte(rawData.String), &r.RawData); err != nil {
				s.logger.Warn("Ignoring undecodable raw_data", "id", r.ID, "error", err)
			}
		}
		r.FetchedAt = r.FetchedAt.UTC()
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating structured_data_cache rows: %w", err)
	}
	return results, nil
}

// CountCacheEntries returns how many cache rows a source owns.
func (s *Store) CountCacheEntries(ctx context.Context, sourceID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM structured_data_cache WHERE source_id = ?`, sourceID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count cache entries for source %s: %w", sourceID, err)
	}
	return n, nil
}
