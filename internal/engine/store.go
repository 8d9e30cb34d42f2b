package engine

import (
	"sync"

	"github.com/IshaanNene/wikicat/internal/types"
)

// Outcome is the result of registering a member under a category.
type Outcome int

const (
	// OutcomeCreated means the title was new; a record was created.
	OutcomeCreated Outcome = iota
	// OutcomeAppended means the title was known; the category was appended.
	OutcomeAppended
	// OutcomeDuplicate means the title was already associated with the category.
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeAppended:
		return "appended"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Store owns the records and the category map of one session. All methods
// are safe for concurrent use; returned records are copies.
type Store struct {
	mu       sync.RWMutex
	records  map[string]*types.PageRecord
	order    []string
	enriched map[string]bool

	subcats  map[string][]string
	catOrder []string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		records:  make(map[string]*types.PageRecord),
		enriched: make(map[string]bool),
		subcats:  make(map[string][]string),
	}
}

// Register records that m was found in category.
func (s *Store) Register(m types.Member, category string) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.records[m.Title]; ok {
		if r.AddCategory(category) {
			return OutcomeAppended
		}
		return OutcomeDuplicate
	}

	s.records[m.Title] = types.NewPageRecord(m, category)
	s.order = append(s.order, m.Title)
	return OutcomeCreated
}

// Get returns a copy of the record for title.
func (s *Store) Get(title string) (*types.PageRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[title]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Update applies fn to the record for title under the store lock. It reports
// whether the record exists.
func (s *Store) Update(title string, fn func(r *types.PageRecord)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[title]
	if !ok {
		return false
	}
	fn(r)
	return true
}

// MarkEnriched flags title as enriched. It reports false if it already was,
// which callers use to guarantee at-most-once enrichment.
func (s *Store) MarkEnriched(title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enriched[title] {
		return false
	}
	s.enriched[title] = true
	return true
}

// ClearEnriched drops the enriched flag of title so that EnrichPending picks
// it up again.
func (s *Store) ClearEnriched(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.enriched, title)
}

// IsEnriched reports whether title was enriched.
func (s *Store) IsEnriched(title string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enriched[title]
}

// Pending returns the titles not yet enriched, in insertion order.
func (s *Store) Pending() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []string
	for _, title := range s.order {
		if !s.enriched[title] {
			pending = append(pending, title)
		}
	}
	return pending
}

// Records returns copies of all records in insertion order.
func (s *Store) Records() []*types.PageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.PageRecord, 0, len(s.order))
	for _, title := range s.order {
		out = append(out, s.records[title].Clone())
	}
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// SetSubcategories records the filtered subcategories of category.
func (s *Store) SetSubcategories(category string, subs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subcats[category]; !ok {
		s.catOrder = append(s.catOrder, category)
	}
	s.subcats[category] = copyStrings(subs)
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// CategoryMap returns a copy of category -> subcategories.
func (s *Store) CategoryMap() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]string, len(s.subcats))
	for k, v := range s.subcats {
		out[k] = copyStrings(v)
	}
	return out
}

// Categories returns the visited categories in visit order.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.catOrder...)
}

// categoryEntry is one CategoryMap entry in serialized form.
type categoryEntry struct {
	Category      string   `json:"category"`
	Subcategories []string `json:"subcategories"`
}

// storeSnapshot is the serializable form of a Store.
type storeSnapshot struct {
	Records    []*types.PageRecord `json:"records"`
	Enriched   []string            `json:"enriched"`
	Categories []categoryEntry     `json:"categories"`
}

func (s *Store) snapshot() storeSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := storeSnapshot{
		Records:    make([]*types.PageRecord, 0, len(s.order)),
		Categories: make([]categoryEntry, 0, len(s.catOrder)),
	}
	for _, title := range s.order {
		snap.Records = append(snap.Records, s.records[title].Clone())
		if s.enriched[title] {
			snap.Enriched = append(snap.Enriched, title)
		}
	}
	for _, c := range s.catOrder {
		snap.Categories = append(snap.Categories, categoryEntry{Category: c, Subcategories: copyStrings(s.subcats[c])})
	}
	return snap
}

// restore merges a snapshot into the store. Records already present are kept.
func (s *Store) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range snap.Records {
		if _, ok := s.records[r.Title]; ok {
			continue
		}
		s.records[r.Title] = r.Clone()
		s.order = append(s.order, r.Title)
	}
	for _, title := range snap.Enriched {
		if _, ok := s.records[title]; ok {
			s.enriched[title] = true
		}
	}
	for _, e := range snap.Categories {
		if _, ok := s.subcats[e.Category]; !ok {
			s.catOrder = append(s.catOrder, e.Category)
		}
		s.subcats[e.Category] = copyStrings(e.Subcategories)
	}
}
