// backend/commands.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/tajaa/matcha-recruit-sub002/config"
	"github.com/tajaa/matcha-recruit-sub002/handlers"
	"github.com/tajaa/matcha-recruit-sub002/models"
	"github.com/tajaa/matcha-recruit-sub002/services"
	"github.com/tajaa/matcha-recruit-sub002/utils"
)

const (
	shutdownTimeout    = 30 * time.Second
	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 5 * time.Minute // fetch-due runs synchronously
	serverIdleTimeout  = 60 * time.Second
)

var (
	configPath string
	cfg        *config.Config
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "tier1",
		Short:        "Structured compliance source refresher and Tier 1 lookup API",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			// A missing .env is normal outside local development.
			_ = godotenv.Load()

			if err := config.LoadConfig(configPath); err != nil {
				return err
			}
			cfg = &config.AppConfig
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default: search standard locations)")

	root.AddCommand(
		serveCmd(),
		migrateCmd(),
		sourcesCmd(),
		fetchCmd(),
		fetchDueCmd(),
		lookupCmd(),
		candidatesCmd(),
	)
	return root
}

// withApp builds the app for one command and tears it down afterwards.
func withApp(run func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cfg.Log.Level)
		if err != nil {
			return err
		}
		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, a, args)
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func serveCmd() *cobra.Command {
	var noScheduler bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the lookup and admin API and refresh due sources in the background",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			if err := a.store.Migrate(ctx); err != nil {
				return err
			}
			if _, err := a.svc.SeedRegistry(ctx); err != nil {
				return err
			}

			h := handlers.NewHandler(a.svc, a.store, a.registry, a.logger)
			metrics := promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{})
			server := &http.Server{
				Addr:         ":" + a.cfg.Server.Port,
				Handler:      handlers.NewRouter(h, metrics),
				ReadTimeout:  serverReadTimeout,
				WriteTimeout: serverWriteTimeout,
				IdleTimeout:  serverIdleTimeout,
			}

			if !noScheduler {
				go services.RunScheduler(ctx, a.svc, a.cfg.Scheduler.PollInterval, a.logger)
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("Server starting", "addr", server.Addr, "db_driver", a.cfg.Database.Driver)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		}),
	}
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "Serve the API without the background refresh loop")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema and seed the source registry",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			if err := a.store.Migrate(ctx); err != nil {
				return err
			}
			n, err := a.svc.SeedRegistry(ctx)
			if err != nil {
				return err
			}
			a.logger.Info("Seeded source registry", "sources", n)
			return nil
		}),
	}
}

func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List sources and their refresh status",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			sources, err := a.svc.ListSources(ctx)
			if err != nil {
				return err
			}
			return printJSON(models.SourcesResponse{Sources: sources})
		}),
	}
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <source-key>",
		Short: "Refresh one source now",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			result, err := a.svc.FetchSourceByKey(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", args[0], err)
			}
			return printJSON(result)
		}),
	}
}

func fetchDueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch-due",
		Short: "Run one refresh cycle over every due source",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			return printJSON(a.svc.FetchAllDueSources(ctx))
		}),
	}
}

func lookupCmd() *cobra.Command {
	var q models.Tier1Query
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Answer a Tier 1 lookup from the cache",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			if q.State == "" {
				return errors.New("--state is required")
			}
			records, found := a.svc.GetTier1Data(ctx, q)
			if records == nil {
				records = []models.Tier1Record{}
			}
			return printJSON(models.Tier1Response{Found: found, Records: records})
		}),
	}
	cmd.Flags().StringVar(&q.State, "state", "", "State code or name (required)")
	cmd.Flags().StringVar(&q.City, "city", "", "City name")
	cmd.Flags().StringVar(&q.County, "county", "", "County name")
	cmd.Flags().StringSliceVar(&q.Categories, "category", nil, "Categories to look up (repeatable)")
	cmd.Flags().IntVar(&q.FreshnessHours, "freshness-hours", 0, "Maximum cache age in hours")
	return cmd
}

func candidatesCmd() *cobra.Command {
	var state, city, county, category string
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "List registry sources that could answer a lookup",
		RunE: withApp(func(_ context.Context, a *app, _ []string) error {
			code, ok := utils.NormalizeState(state)
			if !ok {
				return fmt.Errorf("unrecognized state %q", state)
			}
			keys := a.registry.CandidateSources(code, city, county, category)
			if keys == nil {
				keys = []string{}
			}
			return printJSON(models.CandidatesResponse{Sources: keys})
		}),
	}
	cmd.Flags().StringVar(&state, "state", "", "State code or name (required)")
	cmd.Flags().StringVar(&city, "city", "", "City name")
	cmd.Flags().StringVar(&county, "county", "", "County name")
	cmd.Flags().StringVar(&category, "category", "", "Category filter")
	return cmd
}
