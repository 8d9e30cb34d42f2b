package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/IshaanNene/wikicat/internal/dump"
	"github.com/IshaanNene/wikicat/internal/types"
)

// DumpCategory is the category assigned to pages found in a dump.
const DumpCategory = "dump"

// ScanDump streams the dump at path and registers every page whose latest
// revision mentions a wanted template. It returns the number of matched
// pages. With dump.use_dump_text the revision text is mined directly.
func (e *Engine) ScanDump(ctx context.Context, path string) (int, error) {
	wanted := make([]string, 0, len(e.cfg.Extract.WantedTemplates))
	for _, w := range e.cfg.Extract.WantedTemplates {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			wanted = append(wanted, w)
		}
	}
	if len(wanted) == 0 {
		return 0, types.ErrNoWantedTemplates
	}

	r, err := dump.Open(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	logger := e.logger.With("dump", path)
	logger.Info("scanning dump", "wanted", wanted, "use_dump_text", e.cfg.Dump.UseDumpText)

	matched := 0
	for {
		if err := ctx.Err(); err != nil {
			e.Wait()
			return matched, err
		}

		entry, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			e.Wait()
			return matched, fmt.Errorf("scan dump: %w", err)
		}

		e.stats.DumpScanned.Add(1)
		e.metrics.IncDumpScanned()
		if entry.Text == "" || !containsAny(strings.ToLower(entry.Text), wanted) {
			continue
		}

		matched++
		e.stats.DumpMatched.Add(1)
		e.metrics.IncDumpMatched()

		task := enrichTask{title: entry.Title}
		if e.cfg.Dump.UseDumpText {
			task.markup = entry.Text
			task.hasMarkup = true
		}
		m := types.Member{Title: entry.Title, PageID: entry.ID, Namespace: entry.Namespace}
		e.register(ctx, m, DumpCategory, task)
	}

	e.Wait()
	logger.Info("dump scanned", "scanned", e.stats.DumpScanned.Load(), "matched", matched)
	return matched, nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
