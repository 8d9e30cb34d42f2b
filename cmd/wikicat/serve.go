package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/wikicat/internal/api"
	"github.com/IshaanNene/wikicat/internal/config"
	"github.com/IshaanNene/wikicat/internal/observability"
	"github.com/IshaanNene/wikicat/pkg/wikicat"
)

var servePort int

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run crawl jobs submitted over HTTP",
		Long: `Serve starts a small REST API. POST /api/jobs with a JSON body such as
{"category": "Planets", "wanted_templates": ["infobox planet"]} starts a
crawl in the background; GET /api/jobs/{id}, /records and /categories
report on it and DELETE /api/jobs/{id} cancels it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyCLIOverrides(cmd, cfg)

			logger, closeLog := setupLogger(&cfg.Logging)
			defer closeLog()

			var metrics *observability.Metrics
			if cfg.Metrics.Enabled {
				metrics = observability.NewMetrics(nil, logger)
				srv := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
				defer metrics.Shutdown(context.Background(), srv)
			}

			factory := func(req api.JobRequest) (api.Session, error) {
				jobCfg := *cfg
				opts := []wikicat.Option{wikicat.WithConfig(&jobCfg), wikicat.WithLogger(logger)}
				if metrics != nil {
					opts = append(opts, wikicat.WithMetrics(metrics))
				}
				return wikicat.NewSession(append(opts, jobOptions(req)...)...)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return api.NewServer(servePort, factory, logger).ListenAndServe(ctx)
		},
	}

	addSessionFlags(cmd)
	cmd.Flags().IntVarP(&servePort, "port", "p", 8080, "API listen port")
	return cmd
}

// jobOptions maps a job request onto session options. Checkpointing is a
// per-process concern and stays off for jobs.
func jobOptions(req api.JobRequest) []wikicat.Option {
	opts := []wikicat.Option{wikicat.WithoutCheckpoint()}
	if len(req.WantedTemplates) > 0 {
		opts = append(opts, wikicat.WithWantedTemplates(req.WantedTemplates...))
	}
	if len(req.ExtraFields) > 0 {
		opts = append(opts, wikicat.WithExtraFields(req.ExtraFields...))
	}
	if len(req.ForbiddenKeywords) > 0 {
		opts = append(opts, wikicat.WithForbiddenKeywords(req.ForbiddenKeywords...))
	}
	if req.MaxDepth > 0 {
		opts = append(opts, wikicat.WithMaxDepth(req.MaxDepth))
	}
	if req.NoViews {
		opts = append(opts, wikicat.WithoutViews())
	}
	return opts
}
