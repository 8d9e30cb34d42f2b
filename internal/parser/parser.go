package parser

import (
	"log/slog"

	"github.com/IshaanNene/wikicat/internal/config"
	"github.com/IshaanNene/wikicat/internal/wikitext"
)

// PageParser mines key/value fields out of a page's raw markup. Callers that
// need custom mining implement this interface.
type PageParser interface {
	Parse(markup string) (map[string]string, error)
}

// Func adapts an ordinary function to PageParser.
type Func func(markup string) (map[string]string, error)

// Parse calls f(markup).
func (f Func) Parse(markup string) (map[string]string, error) { return f(markup) }

// NopParser mines nothing.
type NopParser struct{}

// Parse returns an empty map.
func (NopParser) Parse(string) (map[string]string, error) {
	return map[string]string{}, nil
}

// TemplateParser extracts the arguments of wanted templates.
type TemplateParser struct {
	extractor *wikitext.Extractor
}

// NewTemplateParser creates a parser for the given wanted template names.
func NewTemplateParser(wanted []string) *TemplateParser {
	return &TemplateParser{extractor: wikitext.NewExtractor(wanted)}
}

// Parse implements PageParser.
func (p *TemplateParser) Parse(markup string) (map[string]string, error) {
	return p.extractor.Extract(markup), nil
}

// New builds the parser described by cfg: templates first, then regex rules
// layered on top. It returns NopParser when nothing is configured.
func New(cfg *config.ExtractConfig, logger *slog.Logger) (PageParser, error) {
	var parsers []PageParser
	if len(cfg.WantedTemplates) > 0 {
		parsers = append(parsers, NewTemplateParser(cfg.WantedTemplates))
	}
	if len(cfg.Rules) > 0 {
		rp, err := NewRegexParser(cfg.Rules, logger)
		if err != nil {
			return nil, err
		}
		parsers = append(parsers, rp)
	}

	switch len(parsers) {
	case 0:
		return NopParser{}, nil
	case 1:
		return parsers[0], nil
	default:
		return NewCompositeParser(logger, parsers...), nil
	}
}

// IsNop reports whether p never mines anything.
func IsNop(p PageParser) bool {
	switch p.(type) {
	case nil, NopParser, *NopParser:
		return true
	}
	return false
}
