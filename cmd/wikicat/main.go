package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/IshaanNene/wikicat/internal/config"
)

var (
	cfgFile       string
	verbose       bool
	outputPath    string
	outputTypes   []string
	depth         int
	concurrent    int
	templates     []string
	extraFields   []string
	forbidden     []string
	noViews       bool
	noContent     bool
	revisit       string
	checkpoint    string
	endpoint      string
	rateLimit     float64
	maxRetries    int
	useCache      bool
	manualCat     string
	useDumpText   bool
	metricsEnable bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wikicat",
		Short: "wikicat: MediaWiki category crawler and infobox extractor",
		Long: `wikicat walks a MediaWiki category tree, collects every page below it,
looks up mean monthly page views and mines the fields of wanted templates
(typically infoboxes) into a flat table.

Pages can also be added by title or discovered in an XML dump.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(pageCmd())
	rootCmd.AddCommand(dumpCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())
	return rootCmd
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wikicat %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			applyCLIOverrides(cmd, cfg)

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
}

// addSessionFlags registers the flags shared by every command that builds a
// session.
func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output directory")
	cmd.Flags().StringSliceVarP(&outputTypes, "format", "f", nil, "output formats: csv, json, jsonl, xlsx, mongo, postgres")
	cmd.Flags().IntVarP(&concurrent, "concurrency", "n", 0, "number of enrichment workers")
	cmd.Flags().StringSliceVarP(&templates, "template", "t", nil, "wanted template name (repeatable)")
	cmd.Flags().StringSliceVar(&extraFields, "extra", nil, "extra export columns (repeatable)")
	cmd.Flags().BoolVar(&noViews, "no-views", false, "skip pageview lookups")
	cmd.Flags().BoolVar(&noContent, "no-content", false, "skip content mining")
	cmd.Flags().StringVar(&checkpoint, "checkpoint", "", "checkpoint file for resume")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "MediaWiki api.php URL")
	cmd.Flags().Float64Var(&rateLimit, "rate-limit", -1, "requests per second (0 = unlimited, -1 = use config)")
	cmd.Flags().IntVar(&maxRetries, "max-retries", -1, "max retries per failed request (-1 = use config)")
	cmd.Flags().BoolVar(&useCache, "cache", false, "enable the Redis markup cache")
	cmd.Flags().BoolVar(&metricsEnable, "metrics", false, "serve Prometheus metrics while running")
}

// setupLogger creates a structured logger from the logging config.
func setupLogger(cfg *config.LoggingConfig) (*slog.Logger, func()) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	closeFn := func() {}
	switch cfg.Output {
	case "", "stderr":
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			out = f
			closeFn = func() { f.Close() }
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closeFn
}

// applyCLIOverrides applies command-line flag values to the config. Only
// flags the user actually set override the loaded configuration.
func applyCLIOverrides(cmd *cobra.Command, cfg *config.Config) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if changed("output") {
		cfg.Storage.OutputPath = outputPath
	}
	if changed("format") {
		formats := make([]string, 0, len(outputTypes))
		for _, t := range outputTypes {
			formats = append(formats, strings.ToLower(strings.TrimSpace(t)))
		}
		cfg.Storage.Types = formats
	}
	if changed("depth") {
		cfg.Crawl.MaxDepth = depth
	}
	if changed("concurrency") {
		cfg.Crawl.Concurrency = concurrent
	}
	if changed("template") {
		cfg.Extract.WantedTemplates = templates
	}
	if changed("extra") {
		cfg.Extract.ExtraFields = extraFields
	}
	if changed("forbid") {
		cfg.Crawl.ForbiddenKeywords = forbidden
	}
	if changed("no-views") {
		cfg.Crawl.NoViews = noViews
	}
	if changed("no-content") {
		cfg.Crawl.NoContent = noContent
	}
	if changed("revisit") {
		cfg.Crawl.RevisitPolicy = revisit
	}
	if changed("checkpoint") {
		cfg.Crawl.CheckpointPath = checkpoint
	}
	if changed("endpoint") {
		cfg.API.Endpoint = endpoint
	}
	if rateLimit >= 0 && changed("rate-limit") {
		cfg.Fetcher.RateLimit = rateLimit
	}
	if maxRetries >= 0 && changed("max-retries") {
		cfg.Fetcher.MaxRetries = maxRetries
	}
	if changed("cache") {
		cfg.Cache.Enabled = useCache
	}
	if changed("metrics") {
		cfg.Metrics.Enabled = metricsEnable
	}
	if changed("category") {
		cfg.Crawl.ManualCategory = manualCat
	}
	if changed("use-dump-text") {
		cfg.Dump.UseDumpText = useDumpText
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
}
