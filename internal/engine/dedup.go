package engine

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// foldTitle lowercases a title for keyword and template matching. A Caser is
// not safe for concurrent use, so one is created per call.
func foldTitle(s string) string {
	return cases.Lower(language.Und).String(norm.NFC.String(strings.TrimSpace(s)))
}

// CanonicalTitle normalizes a category title for identity checks: NFC,
// underscores as spaces, collapsed whitespace, case folded.
func CanonicalTitle(title string) string {
	title = strings.ReplaceAll(title, "_", " ")
	return foldTitle(strings.Join(strings.Fields(title), " "))
}

// Visited tracks categories already crawled in a session.
type Visited struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewVisited creates an empty set.
func NewVisited() *Visited {
	return &Visited{seen: make(map[string]struct{})}
}

// IsSeen reports whether the category was marked.
func (v *Visited) IsSeen(category string) bool {
	key := CanonicalTitle(category)

	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.seen[key]
	return ok
}

// MarkSeen marks a category and reports whether it was new.
func (v *Visited) MarkSeen(category string) bool {
	key := CanonicalTitle(category)

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[key]; ok {
		return false
	}
	v.seen[key] = struct{}{}
	return true
}

// Count returns the number of categories seen.
func (v *Visited) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.seen)
}

// Export returns all canonical keys, sorted (for checkpoint serialization).
func (v *Visited) Export() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	keys := make([]string, 0, len(v.seen))
	for k := range v.seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Import restores previously exported keys.
func (v *Visited) Import(keys []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, k := range keys {
		v.seen[k] = struct{}{}
	}
}
