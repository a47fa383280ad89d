// backend/database/source_store.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tajaa/matcha-recruit-sub002/models"
)

// ErrSourceNotFound is returned when no source matches an ID or key.
var ErrSourceNotFound = errors.New("structured data source not found")

const sourceColumns = `id, source_key, source_name, source_url, format, domain, categories,
	coverage_scope, coverage_states, fetch_interval_hours, parser_config,
	last_fetched_at, last_fetch_status, last_fetch_error, record_count, is_active,
	created_at, updated_at`

// upsertClause renders the dialect's "insert or update" suffix.
func (s *Store) upsertClause(conflict []string, update []string) string {
	sets := make([]string, len(update))
	if s.dialect == DialectMySQL {
		for i, col := range update {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", col, col)
		}
		return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	for i, col := range update {
		sets[i] = fmt.Sprintf("%s = excluded.%s", col, col)
	}
	return "ON CONFLICT(" + strings.Join(conflict, ", ") + ") DO UPDATE SET " + strings.Join(sets, ", ")
}

// SeedSources inserts registry sources, refreshing the descriptive columns of sources that already
// exist. IDs, status bookkeeping and is_active of existing rows are left alone.
func (s *Store) SeedSources(ctx context.Context, sources []models.Source) (int, error) {
	if len(sources) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction for source seed: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO structured_data_sources (
			id, source_key, source_name, source_url, format, domain, categories,
			coverage_scope, coverage_states, fetch_interval_hours, parser_config,
			record_count, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
		` + s.upsertClause([]string{"source_key"}, []string{
		"source_name", "source_url", "format", "domain", "categories", "coverage_scope",
		"coverage_states", "fetch_interval_hours", "parser_config", "updated_at",
	})

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare source seed statement: %w", err)
	}
	defer stmt.Close()

	now := timestamp(s.now())
	for _, src := range sources {
		categories, err := json.Marshal(src.Categories)
		if err != nil {
			return 0, fmt.Errorf("failed to encode categories for %s: %w", src.SourceKey, err)
		}
		var coverageStates sql.NullString
		if len(src.CoverageStates) > 0 {
			b, err := json.Marshal(src.CoverageStates)
			if err != nil {
				return 0, fmt.Errorf("failed to encode coverage states for %s: %w", src.SourceKey, err)
			}
			coverageStates = sql.NullString{String: string(b), Valid: true}
		}
		parserConfig := string(src.ParserConfig)
		if parserConfig == "" {
			parserConfig = "{}"
		}
		id := src.ID
		if id == uuid.Nil {
			id = uuid.New()
		}

		if _, err := stmt.ExecContext(ctx,
			id, src.SourceKey, src.SourceName, src.SourceURL, string(src.Format), src.Domain, string(categories),
			string(src.CoverageScope), coverageStates, src.FetchIntervalHours, parserConfig,
			src.IsActive, now, now,
		); err != nil {
			return 0, fmt.Errorf("failed to seed source %s: %w", src.SourceKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit source seed: %w", err)
	}
	s.logger.Info("Seeded structured data sources", "count", len(sources))
	return len(sources), nil
}

// GetSource loads a source by ID.
func (s *Store) GetSource(ctx context.Context, id uuid.UUID) (*models.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM structured_data_sources WHERE id = ?`, id)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source %s: %w", id, ErrSourceNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load source %s: %w", id, err)
	}
	return src, nil
}

// GetSourceByKey loads a source by its registry key.
func (s *Store) GetSourceByKey(ctx context.Context, key string) (*models.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM structured_data_sources WHERE source_key = ?`, key)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source %q: %w", key, ErrSourceNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load source %q: %w", key, err)
	}
	return src, nil
}

// ListSources returns every source ordered by key.
func (s *Store) ListSources(ctx context.Context) ([]models.Source, error) {
	return s.querySources(ctx, `SELECT `+sourceColumns+` FROM structured_data_sources ORDER BY source_key`)
}

// ListActiveSources returns sources with is_active set, ordered by key.
func (s *Store) ListActiveSources(ctx context.Context) ([]models.Source, error) {
	return s.querySources(ctx, `SELECT `+sourceColumns+` FROM structured_data_sources WHERE is_active = ? ORDER BY source_key`, true)
}

func (s *Store) querySources(ctx context.Context, query string, args ...any) ([]models.Source, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query structured_data_sources: %w", err)
	}
	defer rows.Close()

	var sources []models.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			s.logger.Error("Failed to scan structured_data_sources row", "error", err)
			continue
		}
		sources = append(sources, *src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating structured_data_sources rows: %w", err)
	}
	return sources, nil
}

// UpdateSourceStatus records the outcome of a fetch attempt.
func (s *Store) UpdateSourceStatus(ctx context.Context, id uuid.UUID, update models.SourceStatusUpdate) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE structured_data_sources
		SET last_fetched_at = ?, last_fetch_status = ?, last_fetch_error = ?, record_count = ?, updated_at = ?
		WHERE id = ?`,
		timestamp(update.FetchedAt), string(update.Status), nullString(update.Error), update.RecordCount,
		timestamp(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update status for source %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("source %s: %w", id, ErrSourceNotFound)
	}
	return nil
}

// SetSourceActive enables or disables a source by key.
func (s *Store) SetSourceActive(ctx context.Context, key string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE structured_data_sources SET is_active = ?, updated_at = ? WHERE source_key = ?`,
		active, timestamp(s.now()), key,
	)
	if err != nil {
		return fmt.Errorf("failed to update is_active for source %q: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("source %q: %w", key, ErrSourceNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*models.Source, error) {
	var (
		src                   models.Source
		format, scope         string
		categories, config    []byte
		coverageStates        sql.NullString
		lastFetched           sql.NullTime
		lastStatus, lastError sql.NullString
	)
	err := row.Scan(
		&src.ID, &src.SourceKey, &src.SourceName, &src.SourceURL, &format, &src.Domain, &categories,
		&scope, &coverageStates, &src.FetchIntervalHours, &config,
		&lastFetched, &lastStatus, &lastError, &src.RecordCount, &src.IsActive,
		&src.CreatedAt, &src.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	src.Format = models.Format(format)
	src.CoverageScope = models.CoverageScope(scope)
	if err := json.Unmarshal(categories, &src.Categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories for %s: %w", src.SourceKey, err)
	}
	if coverageStates.Valid && coverageStates.String != "" {
		if err := json.Unmarshal([]byte(coverageStates.String), &src.CoverageStates); err != nil {
			return nil, fmt.Errorf("failed to decode coverage states for %s: %w", src.SourceKey, err)
		}
	}
	src.ParserConfig = json.RawMessage(config)
	src.LastFetchedAt = timePtr(lastFetched)
	src.LastFetchStatus = models.FetchStatus(lastStatus.String)
	src.LastFetchError = lastError.String
	src.CreatedAt = src.CreatedAt.UTC()
	src.UpdatedAt = src.UpdatedAt.UTC()
	return &src, nil
}
