// backend/app.go
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tajaa/matcha-recruit-sub002/config"
	"github.com/tajaa/matcha-recruit-sub002/database"
	"github.com/tajaa/matcha-recruit-sub002/models"
	"github.com/tajaa/matcha-recruit-sub002/registry"
	"github.com/tajaa/matcha-recruit-sub002/scraper"
	"github.com/tajaa/matcha-recruit-sub002/services"
)

// app is the assembled process: store, parsers and service sharing one logger and registry.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	store    *database.Store
	registry *registry.Registry
	metrics  *prometheus.Registry
	svc      *services.StructuredSourceService
}

func newLogger(level string) (*log.Logger, error) {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "tier1",
	})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(lvl)
	return logger, nil
}

func newApp(cfg *config.Config, logger *log.Logger) (*app, error) {
	reg, err := registry.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load source registry: %w", err)
	}

	store, err := database.Open(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(promReg)

	fetcher := scraper.NewFetcher(
		scraper.WithFetcherLogger(logger),
		scraper.WithRetryObserver(metrics.RetryObserver()),
	)
	parserOpts := []scraper.ParserOption{
		scraper.WithParserLogger(logger),
		scraper.WithParserTimeout(cfg.Fetcher.Timeout),
	}
	htmlParser := scraper.NewHTMLTableParser(fetcher, scraper.GoqueryTableExtractor{}, parserOpts...)
	htmlParser.SetUserAgent(cfg.Fetcher.UserAgent)
	htmlParser.SetMaxRetries(cfg.Fetcher.MaxRetries)
	parsers := map[models.Format]scraper.Parser{
		models.FormatDelimited: scraper.NewDelimitedParser(parserOpts...),
		models.FormatHTMLTable: htmlParser,
	}

	svc := services.NewStructuredSourceService(store, parsers,
		services.WithLogger(logger),
		services.WithMetrics(metrics),
		services.WithRegistry(reg),
		services.WithDefaultFreshnessHours(cfg.Scheduler.FreshnessHours),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		registry: reg,
		metrics:  promReg,
		svc:      svc,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("Failed to close database", "error", err)
	}
}
