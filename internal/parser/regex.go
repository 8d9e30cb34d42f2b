package parser

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/IshaanNene/wikicat/internal/config"
	"github.com/IshaanNene/wikicat/internal/types"
	"github.com/IshaanNene/wikicat/internal/wikitext"
)

// RegexParser mines fields with regular expressions over raw markup.
type RegexParser struct {
	rules  []compiledRule
	logger *slog.Logger
}

type compiledRule struct {
	name string
	re   *regexp.Regexp
}

// NewRegexParser compiles rules up front.
func NewRegexParser(rules []config.ParseRule, logger *slog.Logger) (*RegexParser, error) {
	p := &RegexParser{logger: logger.With("component", "regex_parser")}
	for _, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, &types.ParseError{Rule: rule.Name, Err: fmt.Errorf("invalid regex %q: %w", rule.Pattern, err)}
		}
		p.rules = append(p.rules, compiledRule{name: rule.Name, re: re})
	}
	return p, nil
}

// Parse implements PageParser. Each rule contributes its first match, cleaned
// like a template value; rules without a match are omitted.
func (p *RegexParser) Parse(markup string) (map[string]string, error) {
	fields := make(map[string]string, len(p.rules))
	for _, rule := range p.rules {
		value, ok := firstMatch(rule.re, markup)
		if !ok {
			continue
		}
		if value = wikitext.CleanValue(value); value != "" {
			fields[rule.name] = value
		}
	}
	return fields, nil
}

// firstMatch returns the first named group, else the first group, else the
// whole match.
func firstMatch(re *regexp.Regexp, body string) (string, bool) {
	match := re.FindStringSubmatch(body)
	if match == nil {
		return "", false
	}

	for i, name := range re.SubexpNames() {
		if name != "" && i < len(match) && match[i] != "" {
			return match[i], true
		}
	}
	if re.NumSubexp() > 0 {
		return strings.TrimSpace(match[1]), true
	}
	return match[0], true
}
