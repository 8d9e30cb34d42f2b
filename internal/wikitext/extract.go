package wikitext

import (
	"regexp"
	"strings"
)

// Extractor converts wanted template occurrences into flat field maps.
type Extractor struct {
	wanted []string
}

// NewExtractor creates an Extractor for the given wanted template names.
// Matching is a case-insensitive substring test against the normalized
// template name.
func NewExtractor(wanted []string) *Extractor {
	e := &Extractor{wanted: make([]string, 0, len(wanted))}
	for _, w := range wanted {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			e.wanted = append(e.wanted, w)
		}
	}
	return e
}

// Extract returns the merged fields of every wanted template in markup.
// Templates are merged in order of appearance; later keys win.
func (e *Extractor) Extract(markup string) map[string]string {
	fields := make(map[string]string)
	if len(e.wanted) == 0 {
		return fields
	}
	for _, t := range Parse(markup) {
		if !e.Wants(t) {
			continue
		}
		for k, v := range TemplateToMap(t) {
			fields[k] = v
		}
	}
	return fields
}

// Wants reports whether t matches any wanted name.
func (e *Extractor) Wants(t *Template) bool {
	name := strings.ToLower(t.NormalName())
	for _, w := range e.wanted {
		if strings.Contains(name, w) {
			return true
		}
	}
	return false
}

// TemplateToMap turns each argument of t into trimmed name → cleaned value.
func TemplateToMap(t *Template) map[string]string {
	out := make(map[string]string, len(t.Arguments))
	for _, a := range t.Arguments {
		out[strings.TrimSpace(a.Name)] = CleanValue(a.Value)
	}
	return out
}

var (
	selfClosingTagRe = regexp.MustCompile(`<.*?/>`)
	pairedTagRe      = regexp.MustCompile(`<.*?>.*?</.*?>`)
	inlineCommentRe  = regexp.MustCompile(`<!--.*?-->`)
	errorMarginRe    = regexp.MustCompile(`±\s*\d+\.?\d*`)

	dashReplacer = strings.NewReplacer("–", "-", "—", "-")
)

// CleanValue resolves nowrap/val helper templates and strips markup noise
// from a raw argument value. Steps run in a fixed order; error margins are
// dropped, not preserved.
func CleanValue(val string) string {
	val = resolveHelpers(val)
	val = selfClosingTagRe.ReplaceAllString(val, "")
	val = strings.ReplaceAll(val, "&nbsp;", " ")
	val = pairedTagRe.ReplaceAllString(val, "")
	val = inlineCommentRe.ReplaceAllString(val, "")
	val = dashReplacer.Replace(val)
	val = errorMarginRe.ReplaceAllString(val, "")
	return strings.TrimSpace(val)
}

// resolveHelpers replaces each nowrap or val template inside val with its
// first argument, suffixed with the u=/ul= unit when present.
func resolveHelpers(val string) string {
	for _, t := range Parse(val) {
		if len(t.Arguments) == 0 || !isHelper(t.NormalName()) {
			continue
		}
		replacement := strings.TrimSpace(t.Arguments[0].Value)
		if unit, ok := unitOf(t); ok {
			replacement += strings.TrimSpace(unit)
		}
		val = strings.ReplaceAll(val, t.String(), replacement)
	}
	return val
}

func isHelper(name string) bool {
	name = strings.ToLower(name)
	return name == "nowrap" || name == "val"
}

func unitOf(t *Template) (string, bool) {
	for _, a := range t.Arguments {
		switch strings.TrimSpace(a.Name) {
		case "u", "ul":
			return a.Value, true
		}
	}
	return "", false
}
