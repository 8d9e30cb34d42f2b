package pipeline

import (
	"log/slog"
	"strings"

	"github.com/IshaanNene/wikicat/internal/config"
	"github.com/IshaanNene/wikicat/internal/types"
)

// Fields is the mined key/value data of one page.
type Fields = map[string]string

// Middleware transforms the mined fields of a page.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms fields. It may modify and return the same map.
	Process(fields Fields) (Fields, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// NewFromConfig builds the pipeline described by the extract configuration.
// Renames run first, so KeepFields refers to the renamed keys.
func NewFromConfig(cfg *config.ExtractConfig, logger *slog.Logger) *Pipeline {
	p := New(logger)
	if len(cfg.Rename) > 0 {
		p.Use(&FieldRenameMiddleware{Mapping: cfg.Rename})
	}
	if len(cfg.KeepFields) > 0 {
		keep := make(map[string]bool, len(cfg.KeepFields))
		for _, f := range cfg.KeepFields {
			keep[f] = true
		}
		p.Use(&FieldFilterMiddleware{Fields: keep})
	}
	if cfg.StripLinks {
		p.Use(NewLinkStripMiddleware())
	}
	if cfg.DecodeEntities {
		p.Use(NewEntityDecodeMiddleware())
	}
	p.Use(&TrimMiddleware{})
	if cfg.DropEmpty {
		p.Use(&DropEmptyMiddleware{})
	}
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the fields of the page title through all middleware in order.
func (p *Pipeline) Process(title string, fields Fields) (Fields, error) {
	current := fields
	if current == nil {
		current = make(Fields)
	}

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage: mw.Name(),
				Title: title,
				Err:   err,
			}
		}
		if result == nil {
			result = make(Fields)
		}
		current = result
	}

	return current, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// --- Built-in Middleware ---

// FieldFilterMiddleware keeps only specified fields.
type FieldFilterMiddleware struct {
	Fields map[string]bool
}

func (m *FieldFilterMiddleware) Name() string { return "field_filter" }

func (m *FieldFilterMiddleware) Process(fields Fields) (Fields, error) {
	if len(m.Fields) == 0 {
		return fields, nil
	}
	for key := range fields {
		if !m.Fields[key] {
			delete(fields, key)
		}
	}
	return fields, nil
}

// FieldRenameMiddleware renames fields.
type FieldRenameMiddleware struct {
	Mapping map[string]string // old name -> new name
}

func (m *FieldRenameMiddleware) Name() string { return "field_rename" }

func (m *FieldRenameMiddleware) Process(fields Fields) (Fields, error) {
	renamed := make(Fields, len(fields))
	for key, val := range fields {
		if newKey, ok := m.Mapping[key]; ok {
			key = newKey
		}
		renamed[key] = val
	}
	return renamed, nil
}

// DropEmptyMiddleware removes fields whose value is empty.
type DropEmptyMiddleware struct{}

func (m *DropEmptyMiddleware) Name() string { return "drop_empty" }

func (m *DropEmptyMiddleware) Process(fields Fields) (Fields, error) {
	for key, val := range fields {
		if val == "" {
			delete(fields, key)
		}
	}
	return fields, nil
}

// DefaultValueMiddleware sets default values for missing fields.
type DefaultValueMiddleware struct {
	Defaults map[string]string
}

func (m *DefaultValueMiddleware) Name() string { return "default_values" }

func (m *DefaultValueMiddleware) Process(fields Fields) (Fields, error) {
	for key, defaultVal := range m.Defaults {
		if _, ok := fields[key]; !ok {
			fields[key] = defaultVal
		}
	}
	return fields, nil
}

// TrimMiddleware trims whitespace from all fields.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(fields Fields) (Fields, error) {
	for key, val := range fields {
		fields[key] = strings.TrimSpace(val)
	}
	return fields, nil
}
