// backend/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported database drivers.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type ServerConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	Driver     string `yaml:"driver"`
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	DBName     string `yaml:"dbname"`
	SQLitePath string `yaml:"sqlite_path"`
}

type FetcherConfig struct {
	TimeoutStr string        `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	UserAgent  string        `yaml:"user_agent"`
	Timeout    time.Duration `yaml:"-"` // Parsed from TimeoutStr
}

type SchedulerConfig struct {
	PollIntervalStr string        `yaml:"poll_interval"`
	FreshnessHours  int           `yaml:"freshness_hours"`
	PollInterval    time.Duration `yaml:"-"` // Parsed from PollIntervalStr
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Fetcher   FetcherConfig   `yaml:"fetcher"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       LogConfig       `yaml:"log"`
}

var AppConfig Config

// Locations searched when no config path is given.
var defaultPaths = []string{
	"config.yaml",
	"config/config.yaml",
	"backend/config/config.yaml",
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server:    ServerConfig{Port: "8080"},
		Database:  DatabaseConfig{Driver: DriverSQLite, Port: "3306", SQLitePath: "tier1.db"},
		Fetcher:   FetcherConfig{TimeoutStr: "30s", MaxRetries: 3},
		Scheduler: SchedulerConfig{PollIntervalStr: "15m", FreshnessHours: 168},
		Log:       LogConfig{Level: "info"},
	}
}

// LoadConfig loads configuration into AppConfig.
func LoadConfig(configPath string) error {
	cfg, err := Load(configPath)
	if err != nil {
		return err
	}
	AppConfig = *cfg
	return nil
}

// Load reads configuration from configPath (or the first default location that exists), then
// applies TIER1_* environment overrides. A missing file is only an error when configPath is given.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		for _, p := range defaultPaths {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	if configPath != "" {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	var err error
	if cfg.Fetcher.Timeout, err = time.ParseDuration(cfg.Fetcher.TimeoutStr); err != nil {
		return nil, fmt.Errorf("failed to parse fetcher timeout: %w", err)
	}
	if cfg.Scheduler.PollInterval, err = time.ParseDuration(cfg.Scheduler.PollIntervalStr); err != nil {
		return nil, fmt.Errorf("failed to parse scheduler poll interval: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverMySQL:
		if c.Database.Host == "" || c.Database.DBName == "" {
			errs = append(errs, fmt.Errorf("mysql driver needs database.host and database.dbname"))
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			errs = append(errs, fmt.Errorf("sqlite driver needs database.sqlite_path"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if c.Fetcher.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("fetcher.timeout must be positive"))
	}
	if c.Fetcher.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("fetcher.max_retries must be at least 1"))
	}
	if c.Scheduler.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.poll_interval must be positive"))
	}
	if c.Scheduler.FreshnessHours <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.freshness_hours must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"TIER1_SERVER_PORT":   &cfg.Server.Port,
		"TIER1_DB_DRIVER":     &cfg.Database.Driver,
		"TIER1_DB_HOST":       &cfg.Database.Host,
		"TIER1_DB_PORT":       &cfg.Database.Port,
		"TIER1_DB_USER":       &cfg.Database.User,
		"TIER1_DB_PASSWORD":   &cfg.Database.Password,
		"TIER1_DB_NAME":       &cfg.Database.DBName,
		"TIER1_SQLITE_PATH":   &cfg.Database.SQLitePath,
		"TIER1_FETCH_TIMEOUT": &cfg.Fetcher.TimeoutStr,
		"TIER1_USER_AGENT":    &cfg.Fetcher.UserAgent,
		"TIER1_POLL_INTERVAL": &cfg.Scheduler.PollIntervalStr,
		"TIER1_LOG_LEVEL":     &cfg.Log.Level,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"TIER1_FETCH_MAX_RETRIES": &cfg.Fetcher.MaxRetries,
		"TIER1_FRESHNESS_HOURS":   &cfg.Scheduler.FreshnessHours,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", key, err)
		}
		*dst = n
	}
	return nil
}
