package engine

import (
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// KeywordFilter reports whether a title contains any forbidden keyword,
// case-insensitively, in a single pass over the title.
type KeywordFilter struct {
	mu       sync.Mutex // Matcher keeps per-call state
	matcher  *ahocorasick.Matcher
	keywords []string
}

// NewKeywordFilter builds the automaton. Blank keywords are ignored.
func NewKeywordFilter(keywords []string) *KeywordFilter {
	f := &KeywordFilter{}
	for _, kw := range keywords {
		if kw = foldTitle(kw); kw != "" {
			f.keywords = append(f.keywords, kw)
		}
	}
	if len(f.keywords) > 0 {
		f.matcher = ahocorasick.NewStringMatcher(f.keywords)
	}
	return f
}

// Match returns the first forbidden keyword found in title.
func (f *KeywordFilter) Match(title string) (string, bool) {
	if f == nil || f.matcher == nil {
		return "", false
	}

	f.mu.Lock()
	hits := f.matcher.Match([]byte(foldTitle(title)))
	f.mu.Unlock()

	if len(hits) == 0 {
		return "", false
	}
	return f.keywords[hits[0]], true
}

// Len returns the number of active keywords.
func (f *KeywordFilter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.keywords)
}
