package engine

import (
	"context"
	"strings"

	"github.com/IshaanNene/wikicat/internal/config"
	"github.com/IshaanNene/wikicat/internal/mediawiki"
	"github.com/IshaanNene/wikicat/internal/types"
)

const categoryPrefix = "Category:"

// NormalizeCategory trims name and adds the Category: prefix when missing.
func NormalizeCategory(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if len(name) >= len(categoryPrefix) && strings.EqualFold(name[:len(categoryPrefix)], categoryPrefix) {
		return name
	}
	return categoryPrefix + name
}

// ListMembers returns every member of category of the given kind. Failures
// are logged and yield an empty list.
func (e *Engine) ListMembers(ctx context.Context, category string, kind mediawiki.MemberKind) []types.Member {
	members, err := e.deps.Members.AllCategoryMembers(ctx, category, kind)
	if err != nil {
		e.logger.Error("category listing failed",
			"category", category,
			"kind", kind,
			"partial", len(members),
			"error", err,
		)
		return []types.Member{}
	}
	return members
}

// ListSubcategories lists the subcategories of category, drops the ones whose
// title contains a forbidden keyword and records the survivors in the
// category map.
func (e *Engine) ListSubcategories(ctx context.Context, category string) []string {
	members := e.ListMembers(ctx, category, mediawiki.KindSubcategory)

	kept := make([]string, 0, len(members))
	for _, m := range members {
		if kw, banned := e.banned.Match(m.Title); banned {
			e.logger.Info("BAN: subcategory removed", "category", m.Title, "keyword", kw)
			e.stats.CategoriesBanned.Add(1)
			e.metrics.IncCategoryBanned()
			continue
		}
		kept = append(kept, m.Title)
	}

	e.store.SetSubcategories(category, kept)
	return kept
}

// ListPages lists the pages of category and registers them.
func (e *Engine) ListPages(ctx context.Context, category string) []types.Member {
	members := e.ListMembers(ctx, category, mediawiki.KindPage)
	e.Register(ctx, members, category)
	return members
}

// Register records members as found in category. New titles are enriched,
// known titles only gain the category.
func (e *Engine) Register(ctx context.Context, members []types.Member, category string) {
	for _, m := range members {
		e.register(ctx, m, category, enrichTask{title: m.Title})
	}
}

func (e *Engine) register(ctx context.Context, m types.Member, category string, task enrichTask) Outcome {
	outcome := e.store.Register(m, category)
	e.metrics.IncRegistered(outcome.String())

	switch outcome {
	case OutcomeCreated:
		e.stats.PagesCreated.Add(1)
		e.dispatch(ctx, task)
	case OutcomeAppended:
		e.stats.PagesAppended.Add(1)
		e.logger.Debug("page gained category", "title", m.Title, "category", category)
	case OutcomeDuplicate:
		e.stats.Duplicates.Add(1)
		e.logger.Warn("page already registered under category", "title", m.Title, "category", category)
	}
	return outcome
}

// AddManualPage registers a single page by title. An empty category falls
// back to the configured manual category.
func (e *Engine) AddManualPage(ctx context.Context, title, category string) (*types.PageRecord, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, types.ErrPageMissing
	}
	if category == "" {
		category = e.cfg.Crawl.ManualCategory
	}

	e.register(ctx, types.Member{Title: title}, category, enrichTask{title: title})
	e.Wait()

	r, _ := e.store.Get(title)
	return r, nil
}

// CrawlRecursive walks category and its subcategories depth first, in
// listing order, and returns every page descriptor found, in preorder.
// Cancelling ctx stops the walk between categories; the partial result is
// returned with the context error.
func (e *Engine) CrawlRecursive(ctx context.Context, category string) ([]types.Member, error) {
	root := NormalizeCategory(category)
	if root == "" {
		return nil, types.ErrCategoryRequired
	}

	frontier := NewFrontier()
	if tasks, ok := e.takeResume(root); ok {
		e.logger.Info("resuming crawl from checkpoint", "category", root, "pending", len(tasks))
		for _, t := range tasks {
			frontier.Push(t)
		}
	} else {
		frontier.Push(crawlTask{category: root})
	}

	trackPath := e.cfg.Crawl.RevisitPolicy == config.RevisitPath
	var found []types.Member

	for {
		if err := ctx.Err(); err != nil {
			e.Wait()
			e.resume = &resumeState{root: root, tasks: frontier.Snapshot()}
			e.autoCheckpoint(root, frontier, true)
			return found, err
		}
		e.autoCheckpoint(root, frontier, false)

		task, ok := frontier.Pop()
		if !ok {
			break
		}
		if reason, skip := e.skipReason(task, trackPath); skip {
			e.logger.Info("skipping category", "category", task.category, "reason", reason, "depth", task.depth)
			e.stats.CategoriesSkipped.Add(1)
			e.metrics.IncCategorySkipped(reason)
			continue
		}

		e.visited.MarkSeen(task.category)
		e.stats.CategoriesCrawled.Add(1)
		e.metrics.IncCategoryCrawled()

		subcats := e.ListSubcategories(ctx, task.category)
		pages := e.ListPages(ctx, task.category)
		found = append(found, pages...)
		e.logger.Info("category crawled",
			"category", task.category,
			"depth", task.depth,
			"pages", len(pages),
			"subcategories", len(subcats),
		)

		if limit := e.cfg.Crawl.MaxDepth; limit > 0 && task.depth >= limit {
			if len(subcats) > 0 {
				e.logger.Debug("max depth reached", "category", task.category, "depth", task.depth)
			}
			continue
		}

		children := make([]crawlTask, 0, len(subcats))
		for _, sub := range subcats {
			children = append(children, task.child(sub, trackPath))
		}
		frontier.PushChildren(children)
	}

	e.Wait()
	e.autoCheckpoint(root, frontier, true)
	return found, nil
}

func (e *Engine) skipReason(task crawlTask, trackPath bool) (string, bool) {
	if trackPath {
		if task.onPath(task.category) {
			return "cycle", true
		}
		return "", false
	}
	if e.visited.IsSeen(task.category) {
		return "visited", true
	}
	return "", false
}
