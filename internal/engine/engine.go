// Package engine walks a MediaWiki category tree, registers every page it
// finds and enriches each new page exactly once with view statistics and
// mined template fields.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/wikicat/internal/cache"
	"github.com/IshaanNene/wikicat/internal/config"
	"github.com/IshaanNene/wikicat/internal/mediawiki"
	"github.com/IshaanNene/wikicat/internal/observability"
	"github.com/IshaanNene/wikicat/internal/pageviews"
	"github.com/IshaanNene/wikicat/internal/parser"
	"github.com/IshaanNene/wikicat/internal/pipeline"
	"github.com/IshaanNene/wikicat/internal/types"
)

// ErrNoMemberLister is returned by New when Deps.Members is nil.
var ErrNoMemberLister = errors.New("engine: a member lister is required")

// Stats tracks session statistics.
type Stats struct {
	CategoriesCrawled atomic.Int64
	CategoriesSkipped atomic.Int64
	CategoriesBanned  atomic.Int64
	PagesCreated      atomic.Int64
	PagesAppended     atomic.Int64
	Duplicates        atomic.Int64
	PagesEnriched     atomic.Int64
	EnrichFailures    atomic.Int64
	DumpScanned       atomic.Int64
	DumpMatched       atomic.Int64
	ActiveWorkers     atomic.Int32
	StartTime         time.Time
}

// Snapshot returns a copy of stats safe for reading.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"categories_crawled": s.CategoriesCrawled.Load(),
		"categories_skipped": s.CategoriesSkipped.Load(),
		"categories_banned":  s.CategoriesBanned.Load(),
		"pages_created":      s.PagesCreated.Load(),
		"pages_appended":     s.PagesAppended.Load(),
		"duplicates":         s.Duplicates.Load(),
		"pages_enriched":     s.PagesEnriched.Load(),
		"enrich_failures":    s.EnrichFailures.Load(),
		"dump_scanned":       s.DumpScanned.Load(),
		"dump_matched":       s.DumpMatched.Load(),
		"active_workers":     s.ActiveWorkers.Load(),
		"elapsed":            time.Since(s.StartTime).String(),
	}
}

// MemberLister lists every member of a category, following continuation.
type MemberLister interface {
	AllCategoryMembers(ctx context.Context, title string, kind mediawiki.MemberKind) ([]types.Member, error)
}

// ContentSource returns the raw markup of a page section.
type ContentSource interface {
	PageContent(ctx context.Context, title string, section int) (string, error)
}

// ViewSource returns the monthly view series of a page.
type ViewSource interface {
	MonthlyViews(ctx context.Context, title string, start, end time.Time) ([]pageviews.Item, error)
}

// FieldPipeline post-processes mined fields.
type FieldPipeline interface {
	Process(title string, fields map[string]string) (map[string]string, error)
}

// Deps are the collaborators of an Engine. Only Members is required; a nil
// Parser or Pipeline is built from the extract configuration.
type Deps struct {
	Members  MemberLister
	Content  ContentSource
	Views    ViewSource
	Parser   parser.PageParser
	Pipeline FieldPipeline
	Cache    cache.Cache
	Metrics  *observability.Metrics

	// Clock overrides time.Now for the views window.
	Clock func() time.Time
}

// Engine is the crawl session. Crawl, page and dump operations must be called
// from one goroutine; enrichment may fan out to the worker pool.
type Engine struct {
	cfg     *config.Config
	logger  *slog.Logger
	deps    Deps
	metrics *observability.Metrics

	store      *Store
	visited    *Visited
	banned     *KeywordFilter
	scheduler  *Scheduler
	checkpoint *CheckpointManager
	stats      *Stats

	mining bool
	views  bool

	// resume holds the worklist restored from a checkpoint.
	resume *resumeState
}

// New creates an Engine. A configured parser that fails to build is the only
// error besides a missing member lister.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Engine, error) {
	if deps.Members == nil {
		return nil, ErrNoMemberLister
	}
	if deps.Parser == nil {
		p, err := parser.New(&cfg.Extract, logger)
		if err != nil {
			return nil, err
		}
		deps.Parser = p
	}
	if deps.Pipeline == nil {
		deps.Pipeline = pipeline.NewFromConfig(&cfg.Extract, logger)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	e := &Engine{
		cfg:     cfg,
		logger:  logger.With("component", "engine"),
		deps:    deps,
		metrics: deps.Metrics,
		store:   NewStore(),
		visited: NewVisited(),
		banned:  NewKeywordFilter(cfg.Crawl.ForbiddenKeywords),
		stats:   &Stats{StartTime: time.Now()},
	}

	e.mining = !parser.IsNop(deps.Parser) && !cfg.Crawl.NoContent
	if e.mining && deps.Content == nil && !cfg.Dump.UseDumpText {
		e.logger.Warn("no content source, content mining disabled")
		e.mining = false
	}
	e.views = !cfg.Crawl.NoViews && deps.Views != nil

	if cfg.Crawl.Concurrency > 1 {
		e.scheduler = NewScheduler(e, cfg.Crawl.Concurrency)
	}
	if cfg.Crawl.CheckpointPath != "" {
		e.checkpoint = NewCheckpointManager(cfg.Crawl.CheckpointPath, cfg.Crawl.CheckpointInterval, logger)
	}

	e.logger.Debug("engine ready",
		"mining", e.mining,
		"views", e.views,
		"concurrency", cfg.Crawl.Concurrency,
		"revisit_policy", cfg.Crawl.RevisitPolicy,
		"max_depth", cfg.Crawl.MaxDepth,
		"forbidden_keywords", e.banned.Len(),
	)
	return e, nil
}

// Stats returns the session statistics.
func (e *Engine) Stats() *Stats {
	return e.stats
}

// Store returns the record store.
func (e *Engine) Store() *Store {
	return e.store
}

// Records returns copies of all records in discovery order.
func (e *Engine) Records() []*types.PageRecord {
	return e.store.Records()
}

// CategoryMap returns category -> filtered subcategories.
func (e *Engine) CategoryMap() map[string][]string {
	return e.store.CategoryMap()
}

// MiningEnabled reports whether pages are mined for fields.
func (e *Engine) MiningEnabled() bool {
	return e.mining
}

// Wait blocks until all submitted enrichment has finished.
func (e *Engine) Wait() {
	if e.scheduler != nil {
		e.scheduler.Drain()
	}
}

// Close waits for enrichment, stops the worker pool and writes a final
// checkpoint when one is configured.
func (e *Engine) Close() error {
	if e.scheduler != nil {
		e.scheduler.Stop()
	}
	var err error
	if e.checkpoint != nil {
		err = e.SaveCheckpoint()
	}
	e.logger.Info("engine stopped", "stats", e.stats.Snapshot())
	return err
}
