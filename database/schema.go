// backend/database/schema.go
package database

import (
	"context"
	"fmt"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS structured_data_sources (
		id CHAR(36) NOT NULL PRIMARY KEY,
		source_key VARCHAR(100) NOT NULL,
		source_name VARCHAR(255) NOT NULL,
		source_url TEXT NOT NULL,
		format VARCHAR(20) NOT NULL,
		domain VARCHAR(50) NOT NULL,
		categories JSON NOT NULL,
		coverage_scope VARCHAR(20) NOT NULL,
		coverage_states JSON NULL,
		fetch_interval_hours INT NOT NULL DEFAULT 168,
		parser_config JSON NOT NULL,
		last_fetched_at DATETIME NULL,
		last_fetch_status VARCHAR(20) NULL,
		last_fetch_error TEXT NULL,
		record_count INT NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uq_structured_source_key (source_key)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS structured_data_cache (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		source_id CHAR(36) NOT NULL,
		jurisdiction_key VARCHAR(255) NOT NULL,
		jurisdiction_name VARCHAR(255) NOT NULL,
		jurisdiction_level VARCHAR(20) NOT NULL,
		state CHAR(2) NOT NULL,
		category VARCHAR(50) NOT NULL,
		rate_type VARCHAR(50) NOT NULL DEFAULT 'general',
		current_value VARCHAR(255) NULL,
		numeric_value DECIMAL(10,4) NULL,
		effective_date DATE NULL,
		next_scheduled_date DATE NULL,
		next_scheduled_value VARCHAR(255) NULL,
		source_url TEXT NULL,
		notes TEXT NULL,
		raw_data JSON NULL,
		fetched_at DATETIME NOT NULL,
		UNIQUE KEY uq_structured_cache_entry (source_id, jurisdiction_key, category, rate_type),
		KEY idx_structured_cache_lookup (state, category, fetched_at),
		CONSTRAINT fk_structured_cache_source FOREIGN KEY (source_id) REFERENCES structured_data_sources (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS structured_data_sources (
		id TEXT NOT NULL PRIMARY KEY,
		source_key TEXT NOT NULL UNIQUE,
		source_name TEXT NOT NULL,
		source_url TEXT NOT NULL,
		format TEXT NOT NULL,
		domain TEXT NOT NULL,
		categories TEXT NOT NULL,
		coverage_scope TEXT NOT NULL,
		coverage_states TEXT,
		fetch_interval_hours INTEGER NOT NULL DEFAULT 168,
		parser_config TEXT NOT NULL,
		last_fetched_at DATETIME,
		last_fetch_status TEXT,
		last_fetch_error TEXT,
		record_count INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS structured_data_cache (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id TEXT NOT NULL REFERENCES structured_data_sources (id),
		jurisdiction_key TEXT NOT NULL,
		jurisdiction_name TEXT NOT NULL,
		jurisdiction_level TEXT NOT NULL,
		state TEXT NOT NULL,
		category TEXT NOT NULL,
		rate_type TEXT NOT NULL DEFAULT 'general',
		current_value TEXT,
		numeric_value REAL,
		effective_date DATE,
		next_scheduled_date DATE,
		next_scheduled_value TEXT,
		source_url TEXT,
		notes TEXT,
		raw_data TEXT,
		fetched_at DATETIME NOT NULL,
		UNIQUE (source_id, jurisdiction_key, category, rate_type)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_structured_cache_lookup ON structured_data_cache (state, category, fetched_at)`,
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if s.dialect == DialectMySQL {
		stmts = mysqlSchema
	}
	for i, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}
	s.logger.Info("Schema is up to date", "dialect", s.dialect, "statements", len(stmts))
	return nil
}
