// Package wikicat provides a public SDK for embedding wikicat as a library.
//
// Example usage:
//
//	s, err := wikicat.NewSession(
//	    wikicat.WithWantedTemplates("infobox planet"),
//	    wikicat.WithExtraFields("mass", "mean_radius"),
//	    wikicat.WithForbiddenKeywords("stubs"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	pages, err := s.CrawlCategory(ctx, "Category:Planets")
//	...
//	runID, err := s.Export()
package wikicat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/IshaanNene/wikicat/internal/cache"
	"github.com/IshaanNene/wikicat/internal/config"
	"github.com/IshaanNene/wikicat/internal/engine"
	"github.com/IshaanNene/wikicat/internal/fetcher"
	"github.com/IshaanNene/wikicat/internal/mediawiki"
	"github.com/IshaanNene/wikicat/internal/observability"
	"github.com/IshaanNene/wikicat/internal/pageviews"
	"github.com/IshaanNene/wikicat/internal/parser"
	"github.com/IshaanNene/wikicat/internal/pipeline"
	"github.com/IshaanNene/wikicat/internal/storage"
	"github.com/IshaanNene/wikicat/internal/types"
)

// Re-exported types so callers do not import internal packages.
type (
	// PageRecord is the per-title result of a session.
	PageRecord = types.PageRecord
	// Member is a page descriptor returned by a category listing.
	Member = types.Member
	// PageParser mines fields out of page markup.
	PageParser = parser.PageParser
	// ParserFunc adapts a function to PageParser.
	ParserFunc = parser.Func
	// Config is the full session configuration.
	Config = config.Config
)

// Session is the high-level API for crawling categories and mining pages.
type Session struct {
	cfg     *config.Config
	logger  *slog.Logger
	parser  parser.PageParser
	metrics *observability.Metrics

	fetcher fetcher.Fetcher
	cache   cache.Cache
	engine  *engine.Engine

	root string
}

// Option configures a Session.
type Option func(*Session)

// WithConfig replaces the whole configuration. Options applied after it
// still take effect.
func WithConfig(cfg *config.Config) Option {
	return func(s *Session) { s.cfg = cfg }
}

// WithWantedTemplates sets the template names mined from each page.
func WithWantedTemplates(names ...string) Option {
	return func(s *Session) { s.cfg.Extract.WantedTemplates = names }
}

// WithExtraFields sets the export columns that follow the fixed ones.
func WithExtraFields(fields ...string) Option {
	return func(s *Session) { s.cfg.Extract.ExtraFields = fields }
}

// WithForbiddenKeywords drops subcategories whose title contains any keyword.
func WithForbiddenKeywords(keywords ...string) Option {
	return func(s *Session) { s.cfg.Crawl.ForbiddenKeywords = keywords }
}

// WithoutViews disables pageview lookups.
func WithoutViews() Option {
	return func(s *Session) { s.cfg.Crawl.NoViews = true }
}

// WithoutContent disables content mining.
func WithoutContent() Option {
	return func(s *Session) { s.cfg.Crawl.NoContent = true }
}

// WithoutCheckpoint disables checkpoint loading and saving.
func WithoutCheckpoint() Option {
	return func(s *Session) { s.cfg.Crawl.CheckpointPath = "" }
}

// WithParser installs a custom page parser in place of the configured one.
func WithParser(p PageParser) Option {
	return func(s *Session) { s.parser = p }
}

// WithConcurrency sets the number of enrichment workers.
func WithConcurrency(n int) Option {
	return func(s *Session) { s.cfg.Crawl.Concurrency = n }
}

// WithMaxDepth limits how deep subcategories are followed. Zero is unlimited.
func WithMaxDepth(depth int) Option {
	return func(s *Session) { s.cfg.Crawl.MaxDepth = depth }
}

// WithEndpoint sets the MediaWiki api.php URL.
func WithEndpoint(url string) Option {
	return func(s *Session) { s.cfg.API.Endpoint = url }
}

// WithPageviewsEndpoint sets the pageviews REST base URL.
func WithPageviewsEndpoint(url string) Option {
	return func(s *Session) { s.cfg.API.PageviewsEndpoint = url }
}

// WithOutput sets the export formats and directory.
func WithOutput(dir string, formats ...string) Option {
	return func(s *Session) {
		s.cfg.Storage.OutputPath = dir
		if len(formats) > 0 {
			s.cfg.Storage.Types = formats
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithMetrics records Prometheus metrics into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithVerbose enables debug-level logging.
func WithVerbose() Option {
	return func(s *Session) { s.cfg.Logging.Level = "debug" }
}

// NewSession builds a session from defaults and opts.
func NewSession(opts ...Option) (*Session, error) {
	s := &Session{cfg: config.DefaultConfig()}
	for _, opt := range opts {
		opt(s)
	}
	if err := config.Validate(s.cfg); err != nil {
		return nil, err
	}

	if s.logger == nil {
		level := slog.LevelInfo
		if s.cfg.Logging.Level == "debug" {
			level = slog.LevelDebug
		}
		s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	httpFetcher := fetcher.NewHTTPFetcher(&s.cfg.Fetcher, s.metrics, s.logger)
	s.fetcher = httpFetcher

	if s.cfg.Cache.Enabled {
		rc, err := cache.NewRedisCache(&s.cfg.Cache, s.logger)
		if err != nil {
			httpFetcher.Close()
			return nil, fmt.Errorf("create cache: %w", err)
		}
		s.cache = rc
	}

	mw := mediawiki.NewClient(httpFetcher, &s.cfg.API, s.logger)
	deps := engine.Deps{
		Members:  mw,
		Content:  mw,
		Views:    pageviews.NewClient(httpFetcher, &s.cfg.API, s.logger),
		Parser:   s.parser,
		Pipeline: pipeline.NewFromConfig(&s.cfg.Extract, s.logger),
		Metrics:  s.metrics,
	}
	if s.cache != nil {
		deps.Cache = s.cache
	}

	eng, err := engine.New(s.cfg, deps, s.logger)
	if err != nil {
		s.closeClients()
		return nil, fmt.Errorf("create engine: %w", err)
	}
	s.engine = eng

	if _, err := eng.LoadCheckpoint(); err != nil {
		s.logger.Warn("checkpoint not restored", "error", err)
	}
	return s, nil
}

// Config returns the effective configuration.
func (s *Session) Config() *config.Config {
	return s.cfg
}

// Engine returns the underlying engine.
func (s *Session) Engine() *engine.Engine {
	return s.engine
}

// CrawlCategory walks category and its subcategories and returns every page
// found, in preorder. The partial result is returned on cancellation.
func (s *Session) CrawlCategory(ctx context.Context, category string) ([]Member, error) {
	if category == "" {
		category = s.cfg.Crawl.Category
	}
	s.root = engine.NormalizeCategory(category)
	pages, err := s.engine.CrawlRecursive(ctx, category)
	if err == nil {
		if n := s.engine.EnrichPending(ctx); n > 0 {
			s.logger.Info("enriched pages left over from checkpoint", "count", n)
		}
	}
	return pages, err
}

// AddPage registers and enriches a single page. An empty category falls back
// to the configured manual category.
func (s *Session) AddPage(ctx context.Context, title, category string) (*PageRecord, error) {
	return s.engine.AddManualPage(ctx, title, category)
}

// ScanDump registers the pages of a dump that use a wanted template.
func (s *Session) ScanDump(ctx context.Context, path string) (int, error) {
	if s.root == "" {
		s.root = engine.DumpCategory
	}
	return s.engine.ScanDump(ctx, path)
}

// Records returns copies of all records in discovery order.
func (s *Session) Records() []*PageRecord {
	return s.engine.Records()
}

// CategoryMap returns category -> filtered subcategories.
func (s *Session) CategoryMap() map[string][]string {
	return s.engine.CategoryMap()
}

// Stats returns session statistics.
func (s *Session) Stats() map[string]any {
	return s.engine.Stats().Snapshot()
}

// Export writes all records to the configured backends and returns the run
// id stamped on database rows.
func (s *Session) Export() (string, error) {
	runID := uuid.NewString()
	records := s.engine.Records()

	store, err := storage.NewFromConfig(&s.cfg.Storage, storage.BaseName(s.root), s.cfg.Extract.ExtraFields, runID, s.logger)
	if err != nil {
		return "", err
	}

	storeErr := store.Store(records)
	closeErr := store.Close()
	if err := errors.Join(storeErr, closeErr); err != nil {
		return runID, fmt.Errorf("export: %w", err)
	}

	backends := []storage.Storage{store}
	if multi, ok := store.(*storage.MultiStorage); ok {
		backends = multi.Backends()
	}
	for _, b := range backends {
		s.metrics.AddStored(b.Name(), len(records))
	}

	s.logger.Info("export complete", "run_id", runID, "records", len(records), "backend", store.Name())
	return runID, nil
}

// Close waits for pending enrichment and releases all resources.
func (s *Session) Close() error {
	err := s.engine.Close()
	return errors.Join(err, s.closeClients())
}

func (s *Session) closeClients() error {
	var errs []error
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	if s.fetcher != nil {
		errs = append(errs, s.fetcher.Close())
	}
	return errors.Join(errs...)
}
