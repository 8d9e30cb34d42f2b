// Package mwtest provides an in-memory MediaWiki and pageviews server for tests.
package mwtest

import (
	"encoding/json"
	"hash/crc32"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// Wiki describes the content served by a Server.
type Wiki struct {
	// Subcategories maps a category title to its subcategory titles.
	Subcategories map[string][]string

	// Pages maps a category title to its member page titles.
	Pages map[string][]string

	// Markup maps a page title to its lead section markup. Titles without
	// markup are reported missing.
	Markup map[string]string

	// Views maps a page title to its monthly view counts. Titles without an
	// entry answer 404 like the real REST API does for unknown articles.
	Views map[string][]int64

	// PageSize is the number of members per listing page. Zero means all.
	PageSize int
}

// Server is an httptest server speaking enough of the Action API and the
// pageviews REST API for the crawler.
type Server struct {
	*httptest.Server

	wiki *Wiki

	mu    sync.Mutex
	calls map[string]int
}

// NewServer starts a server for w. Callers must Close it.
func NewServer(w *Wiki) *Server {
	s := &Server{wiki: w, calls: make(map[string]int)}
	mux := http.NewServeMux()
	mux.HandleFunc("/w/api.php", s.handleAPI)
	mux.HandleFunc("/metrics/pageviews/", s.handleViews)
	s.Server = httptest.NewServer(mux)
	return s
}

// APIURL is the api.php endpoint.
func (s *Server) APIURL() string { return s.URL + "/w/api.php" }

// PageviewsURL is the pageviews REST base.
func (s *Server) PageviewsURL() string { return s.URL + "/metrics/pageviews" }

// Calls returns how many requests hit the named call kind: "subcat", "page",
// "content" or "pageviews".
func (s *Server) Calls(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[kind]
}

func (s *Server) count(kind string) {
	s.mu.Lock()
	s.calls[kind]++
	s.mu.Unlock()
}

// PageID returns the stable page id the server reports for title.
func PageID(title string) int64 {
	return int64(crc32.ChecksumIEEE([]byte(title)))
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("list") == "categorymembers":
		s.handleMembers(w, q)
	case q.Get("prop") == "revisions":
		s.handleContent(w, q)
	default:
		writeJSON(w, map[string]any{"error": map[string]string{"code": "badparams", "info": "unsupported request"}})
	}
}

func (s *Server) handleMembers(w http.ResponseWriter, q url.Values) {
	kind := q.Get("cmtype")
	s.count(kind)

	category := q.Get("cmtitle")
	var (
		titles []string
		ns     int
	)
	if kind == "subcat" {
		titles, ns = s.wiki.Subcategories[category], 14
	} else {
		titles = s.wiki.Pages[category]
	}

	offset, _ := strconv.Atoi(q.Get("cmcontinue"))
	end := len(titles)
	if s.wiki.PageSize > 0 && offset+s.wiki.PageSize < end {
		end = offset + s.wiki.PageSize
	}

	members := make([]map[string]any, 0, end-offset)
	for _, title := range titles[offset:end] {
		members = append(members, map[string]any{"pageid": PageID(title), "ns": ns, "title": title})
	}

	resp := map[string]any{
		"batchcomplete": "",
		"query":         map[string]any{"categorymembers": members},
	}
	if end < len(titles) {
		resp["continue"] = map[string]string{"cmcontinue": strconv.Itoa(end), "continue": "-||"}
	}
	writeJSON(w, resp)
}

func (s *Server) handleContent(w http.ResponseWriter, q url.Values) {
	s.count("content")

	title := q.Get("titles")
	markup, ok := s.wiki.Markup[title]
	if !ok {
		writeJSON(w, map[string]any{"query": map[string]any{"pages": map[string]any{
			"-1": map[string]any{"ns": 0, "title": title, "missing": ""},
		}}})
		return
	}

	id := strconv.FormatInt(PageID(title), 10)
	writeJSON(w, map[string]any{"query": map[string]any{"pages": map[string]any{
		id: map[string]any{
			"pageid":    PageID(title),
			"title":     title,
			"revisions": []map[string]string{{"contentformat": "text/x-wiki", "*": markup}},
		},
	}}})
}

// handleViews serves
// /metrics/pageviews/per-article/{project}/{access}/{agent}/{title}/monthly/{start}/{end}.
func (s *Server) handleViews(w http.ResponseWriter, r *http.Request) {
	s.count("pageviews")

	parts := strings.Split(strings.TrimPrefix(r.URL.EscapedPath(), "/metrics/pageviews/"), "/")
	if len(parts) != 8 || parts[0] != "per-article" || parts[5] != "monthly" {
		http.Error(w, "bad path", http.StatusBadRequest)
		return
	}
	title, err := url.PathUnescape(parts[4])
	if err != nil {
		http.Error(w, "bad title", http.StatusBadRequest)
		return
	}
	title = strings.ReplaceAll(title, "_", " ")

	views, ok := s.wiki.Views[title]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]string{"type": "https://mediawiki.org/wiki/HyperSwitch/errors/not_found", "title": "Not found."})
		return
	}

	items := make([]map[string]any, 0, len(views))
	for _, v := range views {
		items = append(items, map[string]any{"project": parts[1], "article": parts[4], "granularity": "monthly", "views": v})
	}
	writeJSON(w, map[string]any{"items": items})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
