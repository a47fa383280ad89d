// backend/database/connection.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/tajaa/matcha-recruit-sub002/config"
)

// Dialect selects the SQL variant used for upserts and DDL.
type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

// Store is the persistence layer for sources and the structured data cache.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *log.Logger
	now     func() time.Time
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB, dialect Dialect, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{db: db, dialect: dialect, logger: logger, now: time.Now}
}

// Open connects using cfg and verifies the connection.
func Open(cfg config.DatabaseConfig, logger *log.Logger) (*Store, error) {
	var (
		db      *sql.DB
		dialect Dialect
		err     error
	)

	switch cfg.Driver {
	case config.DriverMySQL:
		dialect = DialectMySQL
		db, err = sql.Open("mysql", MySQLDSN(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to open database connection: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	case config.DriverSQLite:
		dialect = DialectSQLite
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		db, err = sql.Open("sqlite", SQLiteDSN(cfg.SQLitePath))
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// SQLite serializes writers; one connection avoids SQLITE_BUSY and keeps :memory: coherent.
		db.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := NewStore(db, dialect, logger)
	store.logger.Info("Connected to database", "driver", cfg.Driver)
	return store, nil
}

// MySQLDSN builds a DSN that returns DATETIME columns as UTC time.Time values.
func MySQLDSN(cfg config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.UTC
	// Report matched rather than changed rows so "not found" checks work for no-op updates.
	mc.ClientFoundRows = true
	return mc.FormatDSN()
}

// SQLiteDSN stores times in a sortable text format and waits on locks instead of failing.
func SQLiteDSN(path string) string {
	return path + "?_time_format=sqlite&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect reports the SQL variant in use.
func (s *Store) Dialect() Dialect { return s.dialect }

// SetClock overrides the time source used for created_at/updated_at.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.logger.Info("Database connection closed")
	return err
}

// timestamp normalizes times before they are written. Everything is stored in UTC at second
// precision so text comparisons in SQLite order correctly.
func timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: timestamp(*t), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
