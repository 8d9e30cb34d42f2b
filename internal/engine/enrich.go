package engine

import (
	"context"
	"errors"
	"math"

	"github.com/IshaanNene/wikicat/internal/pageviews"
	"github.com/IshaanNene/wikicat/internal/types"
	"github.com/IshaanNene/wikicat/internal/wikitext"
)

// ErrNoContentSource is returned by FetchContent when the engine has no
// content source.
var ErrNoContentSource = errors.New("engine: no content source")

// enrichTask is one page waiting for enrichment. When hasMarkup is set the
// markup is used as is instead of being fetched.
type enrichTask struct {
	title     string
	markup    string
	hasMarkup bool
}

// dispatch enriches task at most once per title, inline or on the pool.
func (e *Engine) dispatch(ctx context.Context, task enrichTask) {
	if !e.store.MarkEnriched(task.title) {
		return
	}
	if e.scheduler != nil {
		e.scheduler.Submit(ctx, task)
		return
	}
	e.enrich(ctx, task)
}

// EnrichPending enriches records that were registered but never enriched,
// for example after restoring a checkpoint written mid-enrichment.
func (e *Engine) EnrichPending(ctx context.Context) int {
	pending := e.store.Pending()
	for _, title := range pending {
		if ctx.Err() != nil {
			break
		}
		e.dispatch(ctx, enrichTask{title: title})
	}
	e.Wait()
	return len(pending)
}

func (e *Engine) enrich(ctx context.Context, task enrichTask) {
	logger := e.logger.With("title", task.title)

	if ctx.Err() != nil {
		e.interrupted(task.title, ctx.Err())
		return
	}

	if e.views {
		views := e.FetchPageviews(ctx, task.title)
		if ctx.Err() != nil {
			e.interrupted(task.title, ctx.Err())
			return
		}
		e.store.Update(task.title, func(r *types.PageRecord) { r.SetViews(views) })
	}

	if e.mining {
		markup := task.markup
		if !task.hasMarkup {
			var err error
			markup, err = e.FetchContent(ctx, task.title)
			if err != nil && ctx.Err() != nil {
				e.interrupted(task.title, err)
				return
			}
			if err != nil {
				logger.Warn("content fetch failed", "error", err)
				e.failed("content")
				return
			}
		}

		fields, err := e.deps.Parser.Parse(markup)
		if err != nil {
			logger.Warn("page parser failed", "error", err)
			e.failed("parse")
			if len(fields) == 0 {
				return
			}
		}

		fields, err = e.deps.Pipeline.Process(task.title, fields)
		if err != nil {
			logger.Warn("field pipeline failed", "error", err)
			e.failed("pipeline")
			return
		}
		e.store.Update(task.title, func(r *types.PageRecord) { r.MergeFields(fields) })
		logger.Debug("page mined", "fields", len(fields))
	}

	e.stats.PagesEnriched.Add(1)
}

// interrupted leaves title for EnrichPending.
func (e *Engine) interrupted(title string, err error) {
	e.store.ClearEnriched(title)
	e.logger.Debug("enrichment interrupted", "title", title, "error", err)
}

func (e *Engine) failed(stage string) {
	e.stats.EnrichFailures.Add(1)
	e.metrics.IncEnrichFailure(stage)
}

// FetchPageviews returns the mean monthly views of title over the configured
// trailing window. It returns NaN when no data is available or the lookup
// fails.
func (e *Engine) FetchPageviews(ctx context.Context, title string) float64 {
	if e.deps.Cache != nil {
		v, ok, err := e.deps.Cache.GetViews(ctx, title)
		switch {
		case err != nil:
			e.logger.Debug("views cache lookup failed", "title", title, "error", err)
			e.metrics.IncCacheLookup("error")
		case ok:
			e.metrics.IncCacheLookup("hit")
			return v
		default:
			e.metrics.IncCacheLookup("miss")
		}
	}

	start, end := pageviews.Window(e.deps.Clock(), e.cfg.API.ViewsDays)
	items, err := e.deps.Views.MonthlyViews(ctx, title, start, end)
	if err != nil {
		if !errors.Is(err, types.ErrNoViewData) {
			e.logger.Warn("pageviews lookup failed", "title", title, "error", err)
			e.failed("views")
			return math.NaN()
		}
		e.logger.Debug("no pageview data", "title", title)
	}

	mean, ok := pageviews.Mean(items)
	if !ok {
		mean = math.NaN()
	}
	e.cacheViews(ctx, title, mean)
	return mean
}

// FetchContent returns the unescaped lead section markup of title.
func (e *Engine) FetchContent(ctx context.Context, title string) (string, error) {
	if e.deps.Cache != nil {
		markup, ok, err := e.deps.Cache.GetMarkup(ctx, title)
		switch {
		case err != nil:
			e.logger.Debug("markup cache lookup failed", "title", title, "error", err)
			e.metrics.IncCacheLookup("error")
		case ok:
			e.metrics.IncCacheLookup("hit")
			return markup, nil
		default:
			e.metrics.IncCacheLookup("miss")
		}
	}

	if e.deps.Content == nil {
		return "", ErrNoContentSource
	}
	raw, err := e.deps.Content.PageContent(ctx, title, 0)
	if err != nil {
		return "", err
	}
	markup := wikitext.Unescape(raw)

	if e.deps.Cache != nil {
		if err := e.deps.Cache.SetMarkup(ctx, title, markup); err != nil {
			e.logger.Debug("markup cache store failed", "title", title, "error", err)
		}
	}
	return markup, nil
}

func (e *Engine) cacheViews(ctx context.Context, title string, views float64) {
	if e.deps.Cache == nil {
		return
	}
	if err := e.deps.Cache.SetViews(ctx, title, views); err != nil {
		e.logger.Debug("views cache store failed", "title", title, "error", err)
	}
}
