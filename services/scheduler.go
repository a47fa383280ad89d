// backend/services/scheduler.go
package services

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tajaa/matcha-recruit-sub002/models"
)

// DueSourceRefresher runs one refresh cycle. *StructuredSourceService implements it.
type DueSourceRefresher interface {
	FetchAllDueSources(ctx context.Context) models.RunSummary
}

// RunScheduler runs a refresh cycle immediately and then once per interval until ctx is
// cancelled. Cycles run on the calling goroutine, so they never overlap.
func RunScheduler(ctx context.Context, svc DueSourceRefresher, interval time.Duration, logger *log.Logger) {
	if logger == nil {
		logger = log.Default()
	}
	logger.Info("Starting structured source scheduler", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runCycle(ctx, svc, logger)
	for {
		select {
		case <-ticker.C:
			runCycle(ctx, svc, logger)
		case <-ctx.Done():
			logger.Info("Structured source scheduler stopping")
			return
		}
	}
}

func runCycle(ctx context.Context, svc DueSourceRefresher, logger *log.Logger) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	summary := svc.FetchAllDueSources(ctx)
	logger.Info("Scheduled refresh complete",
		"processed", summary.SourcesProcessed,
		"records", summary.TotalRecords,
		"errors", summary.Errors,
		"elapsed", time.Since(start).Round(time.Millisecond))
}
