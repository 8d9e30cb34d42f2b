package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/wikicat/internal/config"
	"github.com/IshaanNene/wikicat/internal/observability"
	"github.com/IshaanNene/wikicat/pkg/wikicat"
)

// crawlCmd creates the "crawl" subcommand.
func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [category]",
		Short: "Crawl a category and its subcategories",
		Long: `Crawl lists every page below the given category, depth first, fetches
mean monthly views and mines wanted templates, then exports the result.
The category may be given with or without the "Category:" prefix; when
omitted, crawl.category from the config is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, func(ctx context.Context, s *wikicat.Session) error {
				category := s.Config().Crawl.Category
				if len(args) > 0 {
					category = args[0]
				}
				pages, err := s.CrawlCategory(ctx, category)
				if err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "found %d page descriptors\n", len(pages))
				return err
			})
		},
	}

	addSessionFlags(cmd)
	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "maximum subcategory depth (0 = unlimited)")
	cmd.Flags().StringSliceVar(&forbidden, "forbid", nil, "forbidden subcategory keyword (repeatable)")
	cmd.Flags().StringVar(&revisit, "revisit", "", "revisit policy: path (default) or skip")
	return cmd
}

// pageCmd creates the "page" subcommand.
func pageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "page <title>...",
		Short: "Add pages by title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, func(ctx context.Context, s *wikicat.Session) error {
				for _, title := range args {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					if _, err := s.AddPage(ctx, title, ""); err != nil {
						return fmt.Errorf("add page %q: %w", title, err)
					}
				}
				return nil
			})
		},
	}

	addSessionFlags(cmd)
	cmd.Flags().StringVar(&manualCat, "category", "", "category recorded for the pages (default Manual)")
	return cmd
}

// dumpCmd creates the "dump" subcommand.
func dumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump [path]",
		Short: "Find pages using wanted templates in an XML dump",
		Long: `Dump streams a MediaWiki XML export (plain, .gz or .bz2) and registers
every page whose latest revision mentions a wanted template. At least one
template must be configured.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, func(ctx context.Context, s *wikicat.Session) error {
				path := s.Config().Dump.Path
				if len(args) > 0 {
					path = args[0]
				}
				if path == "" {
					return fmt.Errorf("no dump path given")
				}
				matched, err := s.ScanDump(ctx, path)
				fmt.Fprintf(cmd.OutOrStdout(), "matched %d pages\n", matched)
				return err
			})
		},
	}

	addSessionFlags(cmd)
	cmd.Flags().BoolVar(&useDumpText, "use-dump-text", false, "mine the dump text instead of fetching markup")
	return cmd
}

// runSession loads the config, builds a session, runs fn with a context
// cancelled on SIGINT/SIGTERM, exports whatever was collected and prints a
// summary.
func runSession(cmd *cobra.Command, fn func(ctx context.Context, s *wikicat.Session) error) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cmd, cfg)

	logger, closeLog := setupLogger(&cfg.Logging)
	defer closeLog()

	opts := []wikicat.Option{wikicat.WithConfig(cfg), wikicat.WithLogger(logger)}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(nil, logger)
		srv := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metrics.Shutdown(ctx, srv)
		}()
		opts = append(opts, wikicat.WithMetrics(metrics))
	}

	session, err := wikicat.NewSession(opts...)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	runErr := fn(ctx, session)
	if errors.Is(runErr, context.Canceled) {
		logger.Info("interrupted, exporting partial results")
	}

	closeErr := session.Close()

	runID, exportErr := session.Export()
	if exportErr != nil {
		logger.Error("export failed", "error", exportErr)
	}

	renderSummary(cmd.OutOrStdout(), session, runID, time.Since(start))
	return errors.Join(ignoreCanceled(runErr), closeErr, exportErr)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
