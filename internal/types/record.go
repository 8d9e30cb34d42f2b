package types

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// CategorySeparator joins category names in the flat export form.
const CategorySeparator = "|"

// LeadingColumns are the fixed export columns, in order, before any extra fields.
var LeadingColumns = []string{"title", "category", "namespace", "views", "pageid"}

// Member is a page descriptor as returned by a category listing.
type Member struct {
	Title     string `json:"title"`
	PageID    int64  `json:"pageid"`
	Namespace int    `json:"ns"`
}

// PageRecord is the per-title result of a crawl session.
type PageRecord struct {
	// Title is the unique key of the record.
	Title string

	// Categories is the ordered set of categories the page was reached through.
	Categories []string

	Namespace int
	PageID    int64

	// Views is nil when view statistics were not fetched and NaN when they
	// were requested but unavailable.
	Views *float64

	// Fields holds the mined key/value data.
	Fields map[string]string
}

// NewPageRecord creates a record for a newly discovered member.
func NewPageRecord(m Member, category string) *PageRecord {
	return &PageRecord{
		Title:      m.Title,
		Categories: []string{category},
		Namespace:  m.Namespace,
		PageID:     m.PageID,
		Fields:     make(map[string]string),
	}
}

// HasCategory reports whether the record is already associated with category.
func (r *PageRecord) HasCategory(category string) bool {
	for _, c := range r.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// AddCategory appends category if it is not yet associated. It reports whether
// the category was added.
func (r *PageRecord) AddCategory(category string) bool {
	if r.HasCategory(category) {
		return false
	}
	r.Categories = append(r.Categories, category)
	return true
}

// CategoryString returns the delimited category form used in tabular exports.
func (r *PageRecord) CategoryString() string {
	return strings.Join(r.Categories, CategorySeparator)
}

// SetViews records the mean monthly views.
func (r *PageRecord) SetViews(v float64) {
	r.Views = &v
}

// ViewsAvailable reports whether the record holds a usable view count.
func (r *PageRecord) ViewsAvailable() bool {
	return r.Views != nil && !math.IsNaN(*r.Views)
}

// MergeFields copies fields into the record, overwriting existing keys.
func (r *PageRecord) MergeFields(fields map[string]string) {
	if r.Fields == nil {
		r.Fields = make(map[string]string, len(fields))
	}
	for k, v := range fields {
		r.Fields[k] = v
	}
}

// Clone creates a deep copy of the record.
func (r *PageRecord) Clone() *PageRecord {
	clone := *r
	clone.Categories = append([]string(nil), r.Categories...)
	if r.Views != nil {
		v := *r.Views
		clone.Views = &v
	}
	clone.Fields = make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		clone.Fields[k] = v
	}
	return &clone
}

// ToFlatMap returns a flat map suitable for tabular export. Metadata columns
// take precedence over mined fields with the same name. Views is omitted when
// it was never fetched.
func (r *PageRecord) ToFlatMap() map[string]string {
	flat := make(map[string]string, len(r.Fields)+len(LeadingColumns))
	for k, v := range r.Fields {
		flat[k] = v
	}
	flat["title"] = r.Title
	flat["category"] = r.CategoryString()
	flat["namespace"] = strconv.Itoa(r.Namespace)
	flat["pageid"] = strconv.FormatInt(r.PageID, 10)
	if r.Views != nil {
		flat["views"] = FormatViews(*r.Views)
	} else {
		delete(flat, "views")
	}
	return flat
}

// FormatViews renders a view count, using "nan" for the unavailable sentinel.
func FormatViews(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type recordJSON struct {
	Title            string            `json:"title"`
	Categories       []string          `json:"categories"`
	Namespace        int               `json:"ns"`
	PageID           int64             `json:"pageid"`
	Views            *float64          `json:"views,omitempty"`
	ViewsUnavailable bool              `json:"views_unavailable,omitempty"`
	Fields           map[string]string `json:"fields,omitempty"`
}

// MarshalJSON encodes the NaN views sentinel as a flag, since JSON has no NaN.
func (r *PageRecord) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		Title:      r.Title,
		Categories: r.Categories,
		Namespace:  r.Namespace,
		PageID:     r.PageID,
		Fields:     r.Fields,
	}
	if r.Views != nil {
		if math.IsNaN(*r.Views) {
			out.ViewsUnavailable = true
		} else {
			v := *r.Views
			out.Views = &v
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *PageRecord) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = PageRecord{
		Title:      in.Title,
		Categories: in.Categories,
		Namespace:  in.Namespace,
		PageID:     in.PageID,
		Views:      in.Views,
		Fields:     in.Fields,
	}
	if in.ViewsUnavailable {
		r.SetViews(math.NaN())
	}
	if r.Fields == nil {
		r.Fields = make(map[string]string)
	}
	return nil
}
