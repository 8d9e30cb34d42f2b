// Package wikitext locates templates in MediaWiki markup and turns the wanted
// ones into flat key/value records.
//
// The scanner understands just enough of the grammar to split template
// arguments correctly: nested templates, template parameters ({{{x}}}),
// wikilinks, comments and nowiki spans all shield their pipes. It does not
// expand templates or render anything.
package wikitext

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Argument is a single template argument.
type Argument struct {
	// Name is the raw argument name. Positional arguments are named by their
	// 1-based position among the positional arguments.
	Name string

	// Value is the raw argument value and may contain nested templates.
	Value string

	Positional bool
}

// Template is one {{...}} occurrence in a piece of markup.
type Template struct {
	// Name is the raw name segment, before the first pipe.
	Name string

	Arguments []Argument

	// Start and End delimit the occurrence in the parsed markup.
	Start, End int

	literal string
}

// String returns the literal source text of the occurrence.
func (t *Template) String() string { return t.literal }

var commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)

// NormalName returns the template name with comments, the Template: namespace
// prefix, anchors and redundant whitespace removed and underscores turned
// into spaces. Case is preserved.
func (t *Template) NormalName() string {
	name := commentRe.ReplaceAllString(t.Name, "")
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.Join(strings.Fields(name), " ")
	if i := strings.IndexByte(name, ':'); i >= 0 && strings.EqualFold(strings.TrimSpace(name[:i]), "template") {
		name = strings.TrimSpace(name[i+1:])
	}
	if i := strings.IndexByte(name, '#'); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	return name
}

// Argument returns the first argument whose trimmed name equals name.
func (t *Template) Argument(name string) (Argument, bool) {
	for _, a := range t.Arguments {
		if strings.TrimSpace(a.Name) == name {
			return a, true
		}
	}
	return Argument{}, false
}

type frameKind int

const (
	frameTemplate frameKind = iota
	frameParam
	frameLink
)

type frame struct {
	kind  frameKind
	start int
	pipes []int
	// eqs maps a segment index (1-based, after the name) to the offset of its
	// first top-level '='.
	eqs map[int]int
}

// Parse returns every template occurrence in markup, nested ones included,
// ordered by start offset. Unterminated templates are ignored.
func Parse(markup string) []*Template {
	var (
		stack     []*frame
		templates []*Template
	)

	top := func() *frame {
		if len(stack) == 0 {
			return nil
		}
		return stack[len(stack)-1]
	}

	n := len(markup)
	for i := 0; i < n; {
		rest := markup[i:]
		switch {
		case strings.HasPrefix(rest, "<!--"):
			end := strings.Index(rest[4:], "-->")
			if end < 0 {
				i = n
			} else {
				i += 4 + end + 3
			}
			continue

		case hasPrefixFold(rest, "<nowiki>"):
			end := indexFold(rest, "</nowiki>")
			if end < 0 {
				i = n
			} else {
				i += end + len("</nowiki>")
			}
			continue

		case strings.HasPrefix(rest, "{{{"):
			stack = append(stack, &frame{kind: frameParam, start: i})
			i += 3
			continue

		case strings.HasPrefix(rest, "{{"):
			stack = append(stack, &frame{kind: frameTemplate, start: i, eqs: make(map[int]int)})
			i += 2
			continue

		case strings.HasPrefix(rest, "[["):
			stack = append(stack, &frame{kind: frameLink, start: i})
			i += 2
			continue

		case strings.HasPrefix(rest, "}}}") && top() != nil && top().kind == frameParam:
			stack = stack[:len(stack)-1]
			i += 3
			continue

		case strings.HasPrefix(rest, "}}"):
			if idx := lastTemplate(stack); idx >= 0 {
				f := stack[idx]
				stack = stack[:idx]
				templates = append(templates, buildTemplate(markup, f, i+2))
			}
			i += 2
			continue

		case strings.HasPrefix(rest, "]]"):
			if f := top(); f != nil && f.kind == frameLink {
				stack = stack[:len(stack)-1]
			}
			i += 2
			continue
		}

		if f := top(); f != nil && f.kind == frameTemplate {
			switch markup[i] {
			case '|':
				f.pipes = append(f.pipes, i)
			case '=':
				seg := len(f.pipes)
				if _, ok := f.eqs[seg]; seg > 0 && !ok {
					f.eqs[seg] = i
				}
			}
		}
		i++
	}

	sort.SliceStable(templates, func(a, b int) bool {
		return templates[a].Start < templates[b].Start
	})
	return templates
}

func lastTemplate(stack []*frame) int {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].kind == frameTemplate {
			return i
		}
	}
	return -1
}

func buildTemplate(markup string, f *frame, end int) *Template {
	t := &Template{
		Start:   f.start,
		End:     end,
		literal: markup[f.start:end],
	}

	bodyEnd := end - 2
	nameEnd := bodyEnd
	if len(f.pipes) > 0 {
		nameEnd = f.pipes[0]
	}
	t.Name = markup[f.start+2 : nameEnd]

	position := 0
	for seg := 1; seg <= len(f.pipes); seg++ {
		segStart := f.pipes[seg-1] + 1
		segEnd := bodyEnd
		if seg < len(f.pipes) {
			segEnd = f.pipes[seg]
		}

		if eq, ok := f.eqs[seg]; ok {
			t.Arguments = append(t.Arguments, Argument{
				Name:  markup[segStart:eq],
				Value: markup[eq+1 : segEnd],
			})
			continue
		}
		position++
		t.Arguments = append(t.Arguments, Argument{
			Name:       strconv.Itoa(position),
			Value:      markup[segStart:segEnd],
			Positional: true,
		})
	}
	return t
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// indexFold is an ASCII case-insensitive strings.Index that keeps byte
// offsets aligned with s.
func indexFold(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if hasPrefixFold(s[i:], substr) {
			return i
		}
	}
	return -1
}
