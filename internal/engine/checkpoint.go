package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// CheckpointManager saves and loads session state for resume.
type CheckpointManager struct {
	path     string
	interval time.Duration
	logger   *slog.Logger
	lastSave time.Time
}

// checkpointData is the serializable session state.
type checkpointData struct {
	Timestamp time.Time        `json:"timestamp"`
	Root      string           `json:"root,omitempty"`
	Frontier  []checkpointTask `json:"frontier,omitempty"`
	Visited   []string         `json:"visited"`
	Store     storeSnapshot    `json:"store"`
	Stats     checkpointStats  `json:"stats"`
}

type checkpointTask struct {
	Category string   `json:"category"`
	Depth    int      `json:"depth"`
	Path     []string `json:"path,omitempty"`
}

type checkpointStats struct {
	CategoriesCrawled int64 `json:"categories_crawled"`
	CategoriesSkipped int64 `json:"categories_skipped"`
	CategoriesBanned  int64 `json:"categories_banned"`
	PagesCreated      int64 `json:"pages_created"`
	PagesAppended     int64 `json:"pages_appended"`
	Duplicates        int64 `json:"duplicates"`
	PagesEnriched     int64 `json:"pages_enriched"`
	EnrichFailures    int64 `json:"enrich_failures"`
}

// resumeState is the worklist of an interrupted or restored crawl.
type resumeState struct {
	root  string
	tasks []crawlTask
}

// NewCheckpointManager creates a manager writing to path. A zero interval
// disables periodic saves.
func NewCheckpointManager(path string, interval time.Duration, logger *slog.Logger) *CheckpointManager {
	return &CheckpointManager{
		path:     path,
		interval: interval,
		logger:   logger.With("component", "checkpoint"),
		lastSave: time.Now(),
	}
}

// Path returns the checkpoint file path.
func (cm *CheckpointManager) Path() string {
	return cm.path
}

// Due reports whether the save interval has elapsed.
func (cm *CheckpointManager) Due() bool {
	return cm.interval > 0 && time.Since(cm.lastSave) >= cm.interval
}

// Save writes data to a temporary file and renames it into place.
func (cm *CheckpointManager) Save(data *checkpointData) error {
	if dir := filepath.Dir(cm.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	tmpPath := cm.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create checkpoint file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close checkpoint file: %w", err)
	}

	if err := os.Rename(tmpPath, cm.path); err != nil {
		return fmt.Errorf("rename checkpoint file: %w", err)
	}

	cm.lastSave = time.Now()
	cm.logger.Debug("checkpoint saved", "path", cm.path, "records", len(data.Store.Records))
	return nil
}

// Load reads the checkpoint. It returns nil data and no error when none
// exists.
func (cm *CheckpointManager) Load() (*checkpointData, error) {
	f, err := os.Open(cm.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	var data checkpointData
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &data, nil
}

// HasCheckpoint returns true if a checkpoint file exists.
func (cm *CheckpointManager) HasCheckpoint() bool {
	_, err := os.Stat(cm.path)
	return err == nil
}

// Clean removes the checkpoint file.
func (cm *CheckpointManager) Clean() error {
	if err := os.Remove(cm.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// SaveCheckpoint writes the current session state, including the worklist of
// an interrupted crawl. It is a no-op without a configured checkpoint path.
func (e *Engine) SaveCheckpoint() error {
	if e.checkpoint == nil {
		return nil
	}
	return e.checkpoint.Save(e.checkpointState("", nil))
}

// LoadCheckpoint restores a saved session: records, enrichment flags,
// category map, visited categories, counters and the pending crawl
// worklist. Restored records are not enriched again. It reports whether a
// checkpoint was found.
func (e *Engine) LoadCheckpoint() (bool, error) {
	if e.checkpoint == nil {
		return false, nil
	}
	data, err := e.checkpoint.Load()
	if err != nil || data == nil {
		return false, err
	}

	e.store.restore(data.Store)
	e.visited.Import(data.Visited)

	e.stats.CategoriesCrawled.Store(data.Stats.CategoriesCrawled)
	e.stats.CategoriesSkipped.Store(data.Stats.CategoriesSkipped)
	e.stats.CategoriesBanned.Store(data.Stats.CategoriesBanned)
	e.stats.PagesCreated.Store(data.Stats.PagesCreated)
	e.stats.PagesAppended.Store(data.Stats.PagesAppended)
	e.stats.Duplicates.Store(data.Stats.Duplicates)
	e.stats.PagesEnriched.Store(data.Stats.PagesEnriched)
	e.stats.EnrichFailures.Store(data.Stats.EnrichFailures)

	if data.Root != "" && len(data.Frontier) > 0 {
		rs := &resumeState{root: data.Root}
		for _, t := range data.Frontier {
			rs.tasks = append(rs.tasks, crawlTask{category: t.Category, depth: t.Depth, path: t.Path})
		}
		e.resume = rs
	}

	e.logger.Info("checkpoint restored",
		"path", e.checkpoint.Path(),
		"saved_at", data.Timestamp,
		"records", e.store.Len(),
		"visited", e.visited.Count(),
		"pending_categories", len(data.Frontier),
	)
	return true, nil
}

// takeResume hands out the restored worklist once, if it belongs to root.
func (e *Engine) takeResume(root string) ([]crawlTask, bool) {
	rs := e.resume
	if rs == nil || CanonicalTitle(rs.root) != CanonicalTitle(root) {
		return nil, false
	}
	e.resume = nil
	return rs.tasks, true
}

// autoCheckpoint saves the crawl state when the interval has elapsed, or
// unconditionally when force is set.
func (e *Engine) autoCheckpoint(root string, frontier *Frontier, force bool) {
	if e.checkpoint == nil || (!force && !e.checkpoint.Due()) {
		return
	}
	e.Wait()
	if err := e.checkpoint.Save(e.checkpointState(root, frontier)); err != nil {
		e.logger.Error("checkpoint save failed", "error", err)
	}
}

func (e *Engine) checkpointState(root string, frontier *Frontier) *checkpointData {
	data := &checkpointData{
		Timestamp: time.Now(),
		Root:      root,
		Visited:   e.visited.Export(),
		Store:     e.store.snapshot(),
		Stats: checkpointStats{
			CategoriesCrawled: e.stats.CategoriesCrawled.Load(),
			CategoriesSkipped: e.stats.CategoriesSkipped.Load(),
			CategoriesBanned:  e.stats.CategoriesBanned.Load(),
			PagesCreated:      e.stats.PagesCreated.Load(),
			PagesAppended:     e.stats.PagesAppended.Load(),
			Duplicates:        e.stats.Duplicates.Load(),
			PagesEnriched:     e.stats.PagesEnriched.Load(),
			EnrichFailures:    e.stats.EnrichFailures.Load(),
		},
	}
	var tasks []crawlTask
	switch {
	case frontier != nil:
		tasks = frontier.Snapshot()
	case e.resume != nil:
		data.Root = e.resume.root
		tasks = e.resume.tasks
	}
	for _, t := range tasks {
		data.Frontier = append(data.Frontier, checkpointTask{Category: t.category, Depth: t.depth, Path: t.path})
	}
	return data
}
