package storage

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/IshaanNene/wikicat/internal/config"
	"github.com/IshaanNene/wikicat/internal/types"
)

// Storage is the interface for all storage backends.
type Storage interface {
	// Store persists a batch of records.
	Store(records []*types.PageRecord) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// Columns returns the tabular export header: the fixed leading columns
// followed by extra in order, without duplicates.
func Columns(extra []string) []string {
	cols := make([]string, 0, len(types.LeadingColumns)+len(extra))
	seen := make(map[string]bool, cap(cols))
	for _, c := range types.LeadingColumns {
		cols = append(cols, c)
		seen[c] = true
	}
	for _, c := range extra {
		if c = strings.TrimSpace(c); c != "" && !seen[c] {
			cols = append(cols, c)
			seen[c] = true
		}
	}
	return cols
}

// Row renders r under columns. Fields the record lacks produce empty cells.
func Row(r *types.PageRecord, columns []string) []string {
	flat := r.ToFlatMap()
	row := make([]string, len(columns))
	for i, c := range columns {
		row[i] = flat[c]
	}
	return row
}

// BaseName derives an output file stem from a category title: the namespace
// prefix is dropped and spaces become underscores.
func BaseName(category string) string {
	name := strings.TrimSpace(category)
	if i := strings.IndexByte(name, ':'); i >= 0 && strings.EqualFold(name[:i], "category") {
		name = name[i+1:]
	}
	name = strings.Join(strings.Fields(name), "_")
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	if name == "" {
		return "results"
	}
	return name
}

// NewFromConfig opens every backend listed in cfg.Types. A single backend is
// returned as is; several are wrapped in a MultiStorage.
func NewFromConfig(cfg *config.StorageConfig, baseName string, extra []string, runID string, logger *slog.Logger) (Storage, error) {
	var backends []Storage
	closeAll := func() {
		for _, b := range backends {
			b.Close()
		}
	}

	for _, typ := range cfg.Types {
		var (
			backend Storage
			err     error
		)
		switch typ {
		case "mongo":
			backend, err = NewMongoStorage(&cfg.Mongo, runID, logger)
		case "postgres":
			backend, err = NewPostgresStorage(&cfg.Postgres, runID, logger)
		default:
			backend, err = NewFileStorage(typ, cfg.OutputPath, baseName, extra, logger)
		}
		if err != nil {
			closeAll()
			return nil, &types.StorageError{Backend: typ, Err: err}
		}
		backends = append(backends, backend)
	}

	switch len(backends) {
	case 0:
		return nil, fmt.Errorf("no storage types configured")
	case 1:
		return backends[0], nil
	default:
		return NewMultiStorage(backends, logger), nil
	}
}
