package pipeline

import (
	"html"
	"regexp"
	"strings"
)

// --- Markup cleanup middleware ---

// LinkStripMiddleware replaces wikilinks with their display text:
// [[Target|label]] becomes label, [[Target]] becomes Target. File and
// category links are removed entirely.
type LinkStripMiddleware struct {
	linkRe *regexp.Regexp
}

func NewLinkStripMiddleware() *LinkStripMiddleware {
	return &LinkStripMiddleware{
		linkRe: regexp.MustCompile(`\[\[([^\[\]|]*)(?:\|([^\[\]]*))?\]\]`),
	}
}

func (m *LinkStripMiddleware) Name() string { return "link_strip" }

func (m *LinkStripMiddleware) Process(fields Fields) (Fields, error) {
	for key, val := range fields {
		if !strings.Contains(val, "[[") {
			continue
		}
		fields[key] = m.linkRe.ReplaceAllStringFunc(val, func(link string) string {
			sub := m.linkRe.FindStringSubmatch(link)
			target := strings.TrimSpace(sub[1])
			if isMediaLink(target) {
				return ""
			}
			if sub[2] != "" {
				return sub[2]
			}
			return strings.TrimPrefix(target, ":")
		})
	}
	return fields, nil
}

func isMediaLink(target string) bool {
	i := strings.IndexByte(target, ':')
	if i <= 0 {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(target[:i])) {
	case "file", "image", "category":
		return true
	}
	return false
}

// EntityDecodeMiddleware strips leftover HTML tags and decodes HTML entities.
type EntityDecodeMiddleware struct {
	stripRe *regexp.Regexp
}

func NewEntityDecodeMiddleware() *EntityDecodeMiddleware {
	return &EntityDecodeMiddleware{
		stripRe: regexp.MustCompile(`<[^>]*>`),
	}
}

func (m *EntityDecodeMiddleware) Name() string { return "entity_decode" }

func (m *EntityDecodeMiddleware) Process(fields Fields) (Fields, error) {
	for key, val := range fields {
		cleaned := m.stripRe.ReplaceAllString(val, "")
		cleaned = html.UnescapeString(cleaned)
		fields[key] = strings.Join(strings.Fields(cleaned), " ")
	}
	return fields, nil
}

// FieldValidateMiddleware removes fields whose value does not match its pattern.
type FieldValidateMiddleware struct {
	validations map[string]*regexp.Regexp
}

func NewFieldValidateMiddleware(patterns map[string]*regexp.Regexp) *FieldValidateMiddleware {
	return &FieldValidateMiddleware{validations: patterns}
}

func (m *FieldValidateMiddleware) Name() string { return "field_validate" }

func (m *FieldValidateMiddleware) Process(fields Fields) (Fields, error) {
	for field, re := range m.validations {
		val, ok := fields[field]
		if ok && val != "" && !re.MatchString(val) {
			delete(fields, field)
		}
	}
	return fields, nil
}
