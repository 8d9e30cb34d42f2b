package parser

import (
	"errors"
	"log/slog"
)

// CompositeParser runs several parsers over the same markup and merges their
// fields in order; later parsers win on key collisions.
type CompositeParser struct {
	parsers []PageParser
	logger  *slog.Logger
}

// NewCompositeParser creates a parser that chains the given parsers.
func NewCompositeParser(logger *slog.Logger, parsers ...PageParser) *CompositeParser {
	return &CompositeParser{
		parsers: parsers,
		logger:  logger.With("component", "composite_parser"),
	}
}

// Parse implements PageParser. A failing sub-parser is logged and its error
// joined into the result; fields from the others are still returned.
func (p *CompositeParser) Parse(markup string) (map[string]string, error) {
	merged := make(map[string]string)
	var errs []error

	for _, sub := range p.parsers {
		fields, err := sub.Parse(markup)
		if err != nil {
			p.logger.Warn("sub-parser error", "error", err)
			errs = append(errs, err)
			continue
		}
		for k, v := range fields {
			merged[k] = v
		}
	}
	return merged, errors.Join(errs...)
}
