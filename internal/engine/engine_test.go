package engine

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/wikicat/internal/cache"
	"github.com/IshaanNene/wikicat/internal/config"
	"github.com/IshaanNene/wikicat/internal/fetcher"
	"github.com/IshaanNene/wikicat/internal/mediawiki"
	"github.com/IshaanNene/wikicat/internal/mediawiki/mwtest"
	"github.com/IshaanNene/wikicat/internal/observability"
	"github.com/IshaanNene/wikicat/internal/pageviews"
	"github.com/IshaanNene/wikicat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var fixedClock = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }

func infobox(name string) string {
	return fmt.Sprintf("{{Short description|x}}\n{{Infobox planet\n| name = %s\n| mass = {{val|1.5|ul=kg}}\n}}", name)
}

// solarWiki is a small tree:
//
//	Category:Root -> Category:A -> Category:A1
//	              -> Category:B
func solarWiki() *mwtest.Wiki {
	return &mwtest.Wiki{
		Subcategories: map[string][]string{
			"Category:Root": {"Category:A", "Category:B"},
			"Category:A":    {"Category:A1"},
		},
		Pages: map[string][]string{
			"Category:Root": {"P1"},
			"Category:A":    {"P2"},
			"Category:A1":   {"P3"},
			"Category:B":    {"P4", "P1"},
		},
		Markup: map[string]string{
			"P1": infobox("One"),
			"P2": infobox("Two"),
			"P3": infobox("Three"),
			"P4": infobox("Four"),
		},
		Views: map[string][]int64{"P1": {10, 20}},
	}
}

func testConfig(srv *mwtest.Server) *config.Config {
	cfg := config.DefaultConfig()
	cfg.API.Endpoint = srv.APIURL()
	cfg.API.PageviewsEndpoint = srv.PageviewsURL()
	cfg.Fetcher.RateLimit = 0
	cfg.Fetcher.MaxRetries = 0
	cfg.Extract.WantedTemplates = []string{"infobox planet"}
	return cfg
}

func newTestEngine(t *testing.T, srv *mwtest.Server, cfg *config.Config, mutate func(*Deps)) *Engine {
	t.Helper()
	f := fetcher.NewHTTPFetcher(&cfg.Fetcher, nil, testLogger)
	t.Cleanup(func() { f.Close() })

	mw := mediawiki.NewClient(f, &cfg.API, testLogger)
	deps := Deps{
		Members: mw,
		Content: mw,
		Views:   pageviews.NewClient(f, &cfg.API, testLogger),
		Clock:   fixedClock,
	}
	if mutate != nil {
		mutate(&deps)
	}

	e, err := New(cfg, deps, testLogger)
	require.NoError(t, err)
	return e
}

// flatten makes records comparable; NaN views never compare equal.
func flatten(records []*types.PageRecord) []map[string]string {
	out := make([]map[string]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ToFlatMap())
	}
	return out
}

func titles(members []types.Member) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.Title)
	}
	return out
}

func TestCrawlRecursivePreorder(t *testing.T) {
	srv := mwtest.NewServer(solarWiki())
	defer srv.Close()
	e := newTestEngine(t, srv, testConfig(srv), nil)

	found, err := e.CrawlRecursive(context.Background(), "Root")
	require.NoError(t, err)

	assert.Equal(t, []string{"P1", "P2", "P3", "P4", "P1"}, titles(found))
	assert.Equal(t, map[string][]string{
		"Category:Root": {"Category:A", "Category:B"},
		"Category:A":    {"Category:A1"},
		"Category:A1":   {},
		"Category:B":    {},
	}, e.CategoryMap())
	assert.Equal(t, []string{"Category:Root", "Category:A", "Category:A1", "Category:B"}, e.Store().Categories())

	records := e.Records()
	require.Len(t, records, 4)
	assert.Equal(t, "P1", records[0].Title)
	assert.Equal(t, []string{"Category:Root", "Category:B"}, records[0].Categories)
	assert.Equal(t, 15.0, *records[0].Views)
	assert.Equal(t, "One", records[0].Fields["name"])
	assert.Equal(t, "1.5kg", records[0].Fields["mass"])
	assert.Equal(t, mwtest.PageID("P1"), records[0].PageID)

	for _, r := range records[1:] {
		require.NotNil(t, r.Views)
		assert.True(t, math.IsNaN(*r.Views), "%s has no view data", r.Title)
	}

	// Each unique title is enriched exactly once.
	assert.Equal(t, 4, srv.Calls("content"))
	assert.Equal(t, 4, srv.Calls("pageviews"))
	assert.Equal(t, int64(4), e.Stats().PagesEnriched.Load())
	assert.Equal(t, int64(1), e.Stats().PagesAppended.Load())
}

func TestListSubcategoriesBansKeywords(t *testing.T) {
	wiki := &mwtest.Wiki{
		Subcategories: map[string][]string{
			"Category:Planets": {"Category:Moons", "Category:Planet STUBS", "Category:Dwarf planets"},
		},
	}
	srv := mwtest.NewServer(wiki)
	defer srv.Close()

	cfg := testConfig(srv)
	cfg.Crawl.ForbiddenKeywords = []string{"stubs"}
	e := newTestEngine(t, srv, cfg, nil)

	subs := e.ListSubcategories(context.Background(), "Category:Planets")
	assert.Equal(t, []string{"Category:Moons", "Category:Dwarf planets"}, subs)
	assert.Equal(t, subs, e.CategoryMap()["Category:Planets"])
	assert.Equal(t, int64(1), e.Stats().CategoriesBanned.Load())
}

func TestRegisterIsIdempotent(t *testing.T) {
	srv := mwtest.NewServer(solarWiki())
	defer srv.Close()
	cfg := testConfig(srv)
	cfg.Crawl.NoViews = true
	e := newTestEngine(t, srv, cfg, nil)
	ctx := context.Background()

	members := []types.Member{{Title: "P1"}, {Title: "P2"}}
	e.Register(ctx, members, "Category:X")
	before := e.Records()

	e.Register(ctx, members, "Category:X")
	assert.Equal(t, before, e.Records())
	assert.Equal(t, int64(2), e.Stats().Duplicates.Load())
	assert.Equal(t, 2, srv.Calls("content"))

	e.Register(ctx, members[:1], "Category:Y")
	r, ok := e.Store().Get("P1")
	require.True(t, ok)
	assert.Equal(t, []string{"Category:X", "Category:Y"}, r.Categories)
	assert.Equal(t, 2, srv.Calls("content"))
}

func cyclicWiki() *mwtest.Wiki {
	return &mwtest.Wiki{
		Subcategories: map[string][]string{
			"Category:Root": {"Category:A", "Category:B"},
			"Category:A":    {"Category:Root"},
			"Category:B":    {"Category:A"},
		},
		Pages: map[string][]string{
			"Category:A": {"PA"},
			"Category:B": {"PB"},
		},
	}
}

func TestCrawlRecursiveRevisitPolicies(t *testing.T) {
	tests := []struct {
		policy  string
		crawled int64
		skipped int64
		found   []string
	}{
		{config.RevisitSkip, 3, 2, []string{"PA", "PB"}},
		{config.RevisitPath, 4, 2, []string{"PA", "PB", "PA"}},
	}

	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			srv := mwtest.NewServer(cyclicWiki())
			defer srv.Close()

			cfg := testConfig(srv)
			cfg.Crawl.RevisitPolicy = tt.policy
			cfg.Crawl.NoViews = true
			cfg.Crawl.NoContent = true
			e := newTestEngine(t, srv, cfg, nil)

			found, err := e.CrawlRecursive(context.Background(), "Category:Root")
			require.NoError(t, err)
			assert.Equal(t, tt.found, titles(found))
			assert.Equal(t, tt.crawled, e.Stats().CategoriesCrawled.Load())
			assert.Equal(t, tt.skipped, e.Stats().CategoriesSkipped.Load())
			assert.Len(t, e.Records(), 2)
		})
	}
}

func TestCrawlRecursiveDiamondDefault(t *testing.T) {
	srv := mwtest.NewServer(&mwtest.Wiki{
		Subcategories: map[string][]string{
			"Category:Root": {"Category:A", "Category:B"},
			"Category:A":    {"Category:C"},
			"Category:B":    {"Category:C"},
		},
		Pages: map[string][]string{
			"Category:C": {"PC"},
		},
	})
	defer srv.Close()

	cfg := testConfig(srv)
	cfg.Crawl.NoViews = true
	cfg.Crawl.NoContent = true
	e := newTestEngine(t, srv, cfg, nil)

	found, err := e.CrawlRecursive(context.Background(), "Category:Root")
	require.NoError(t, err)
	assert.Equal(t, []string{"PC", "PC"}, titles(found))
	assert.Equal(t, int64(1), e.Stats().Duplicates.Load())
	assert.Equal(t, int64(5), e.Stats().CategoriesCrawled.Load())
	assert.Zero(t, e.Stats().CategoriesSkipped.Load())

	records := e.Records()
	require.Len(t, records, 1)
	assert.Equal(t, []string{"Category:C"}, records[0].Categories)
}

func TestCrawlRecursiveWithoutEnrichment(t *testing.T) {
	srv := mwtest.NewServer(&mwtest.Wiki{
		Subcategories: map[string][]string{
			"Category:Root": {"Category:Sub"},
		},
		Pages: map[string][]string{
			"Category:Root": {"Direct"},
			"Category:Sub":  {"First", "Second"},
		},
	})
	defer srv.Close()

	cfg := testConfig(srv)
	cfg.Crawl.NoViews = true
	cfg.Crawl.NoContent = true
	e := newTestEngine(t, srv, cfg, nil)

	found, err := e.CrawlRecursive(context.Background(), "Root")
	require.NoError(t, err)
	assert.Equal(t, []string{"Direct", "First", "Second"}, titles(found))

	records := e.Records()
	require.Len(t, records, 3)
	want := map[string][]string{
		"Direct": {"Category:Root"},
		"First":  {"Category:Sub"},
		"Second": {"Category:Sub"},
	}
	for _, r := range records {
		assert.Equal(t, want[r.Title], r.Categories, r.Title)
		assert.NotContains(t, r.ToFlatMap(), "views")
	}
	assert.Zero(t, srv.Calls("content"))
	assert.Zero(t, srv.Calls("pageviews"))
}

func TestCrawlRecursiveMaxDepth(t *testing.T) {
	srv := mwtest.NewServer(solarWiki())
	defer srv.Close()

	cfg := testConfig(srv)
	cfg.Crawl.MaxDepth = 1
	cfg.Crawl.NoViews = true
	e := newTestEngine(t, srv, cfg, nil)

	found, err := e.CrawlRecursive(context.Background(), "Category:Root")
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2", "P4", "P1"}, titles(found))
	assert.Equal(t, []string{"Category:A1"}, e.CategoryMap()["Category:A"], "leaf subcategories are still listed")
	_, ok := e.CategoryMap()["Category:A1"]
	assert.False(t, ok)
}

func TestCrawlRecursiveRequiresCategory(t *testing.T) {
	srv := mwtest.NewServer(solarWiki())
	defer srv.Close()
	e := newTestEngine(t, srv, testConfig(srv), nil)

	_, err := e.CrawlRecursive(context.Background(), "  ")
	assert.ErrorIs(t, err, types.ErrCategoryRequired)
}

func TestMiningDisabled(t *testing.T) {
	srv := mwtest.NewServer(solarWiki())
	defer srv.Close()

	cfg := testConfig(srv)
	cfg.Extract.WantedTemplates = nil
	cfg.Crawl.NoViews = true
	e := newTestEngine(t, srv, cfg, nil)
	assert.False(t, e.MiningEnabled())

	_, err := e.CrawlRecursive(context.Background(), "Category:Root")
	require.NoError(t, err)
	assert.Zero(t, srv.Calls("content"))
	assert.Zero(t, srv.Calls("pageviews"))
	for _, r := range e.Records() {
		assert.Nil(t, r.Views)
		assert.Empty(t, r.Fields)
	}
}

func TestConcurrentEnrichment(t *testing.T) {
	wiki := &mwtest.Wiki{
		Pages:  map[string][]string{"Category:Many": nil},
		Markup: map[string]string{},
		Views:  map[string][]int64{},
	}
	for i := 0; i < 40; i++ {
		title := fmt.Sprintf("Page %02d", i)
		wiki.Pages["Category:Many"] = append(wiki.Pages["Category:Many"], title)
		wiki.Markup[title] = infobox(title)
		wiki.Views[title] = []int64{int64(i)}
	}
	srv := mwtest.NewServer(wiki)
	defer srv.Close()

	cfg := testConfig(srv)
	cfg.Crawl.Concurrency = 8
	e := newTestEngine(t, srv, cfg, nil)
	defer e.Close()

	_, err := e.CrawlRecursive(context.Background(), "Category:Many")
	require.NoError(t, err)

	records := e.Records()
	require.Len(t, records, 40)
	for i, r := range records {
		assert.Equal(t, fmt.Sprintf("Page %02d", i), r.Title, "registration order is kept")
		assert.Equal(t, r.Title, r.Fields["name"])
		assert.Equal(t, float64(i), *r.Views)
	}
	assert.Equal(t, 40, srv.Calls("content"))
	assert.Equal(t, int32(0), e.Stats().ActiveWorkers.Load())
}

func TestCancelledEnrichmentStaysPending(t *testing.T) {
	srv := mwtest.NewServer(&mwtest.Wiki{})
	defer srv.Close()

	cfg := testConfig(srv)
	cfg.Crawl.Concurrency = 2
	cfg.Crawl.NoContent = true
	e := newTestEngine(t, srv, cfg, nil)
	defer e.Close()

	members := make([]types.Member, 0, 50)
	for i := 0; i < 50; i++ {
		members = append(members, types.Member{Title: fmt.Sprintf("Page %02d", i)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.Register(ctx, members, "Category:Many")
	e.Wait()

	assert.Len(t, e.Records(), 50)
	assert.Len(t, e.Store().Pending(), 50)
	assert.Zero(t, e.Stats().PagesEnriched.Load())
	for _, r := range e.Records() {
		assert.Nil(t, r.Views, "%s must not carry views from an interrupted lookup", r.Title)
	}

	assert.Equal(t, 50, e.EnrichPending(context.Background()))
	assert.Empty(t, e.Store().Pending())
	assert.Equal(t, int64(50), e.Stats().PagesEnriched.Load())
}

type fakeLister struct {
	members []types.Member
	err     error
	onList  func(title string)
}

func (f *fakeLister) AllCategoryMembers(_ context.Context, title string, _ mediawiki.MemberKind) ([]types.Member, error) {
	if f.onList != nil {
		f.onList(title)
	}
	return f.members, f.err
}

func TestListMembersFailureYieldsEmpty(t *testing.T) {
	cfg := config.DefaultConfig()
	lister := &fakeLister{
		members: []types.Member{{Title: "partial"}},
		err:     &types.APIError{Code: "internal", Err: types.ErrMissingEnvelope},
	}
	e, err := New(cfg, Deps{Members: lister}, testLogger)
	require.NoError(t, err)

	got := e.ListMembers(context.Background(), "Category:Broken", mediawiki.KindPage)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, e.Store().Len())
}

func TestNewRequiresMemberLister(t *testing.T) {
	_, err := New(config.DefaultConfig(), Deps{}, testLogger)
	assert.ErrorIs(t, err, ErrNoMemberLister)
}

func TestAddManualPage(t *testing.T) {
	srv := mwtest.NewServer(solarWiki())
	defer srv.Close()
	e := newTestEngine(t, srv, testConfig(srv), nil)

	r, err := e.AddManualPage(context.Background(), "P3", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Manual"}, r.Categories)
	assert.Equal(t, "Three", r.Fields["name"])

	r, err = e.AddManualPage(context.Background(), "P3", "Category:Fixes")
	require.NoError(t, err)
	assert.Equal(t, []string{"Manual", "Category:Fixes"}, r.Categories)
	assert.Equal(t, 1, srv.Calls("content"))
}

func TestFetchPageviewsUsesCache(t *testing.T) {
	srv := mwtest.NewServer(solarWiki())
	defer srv.Close()

	mr := miniredis.RunT(t)
	cfg := testConfig(srv)
	cfg.Cache.Address = mr.Addr()
	rc, err := cache.NewRedisCache(&cfg.Cache, testLogger)
	require.NoError(t, err)
	defer rc.Close()

	metrics := observability.NewMetrics(nil, testLogger)
	e := newTestEngine(t, srv, cfg, func(d *Deps) {
		d.Cache = rc
		d.Metrics = metrics
	})
	ctx := context.Background()

	assert.Equal(t, 15.0, e.FetchPageviews(ctx, "P1"))
	assert.True(t, math.IsNaN(e.FetchPageviews(ctx, "Unknown")))
	assert.Equal(t, 2, srv.Calls("pageviews"))

	assert.Equal(t, 15.0, e.FetchPageviews(ctx, "P1"))
	assert.True(t, math.IsNaN(e.FetchPageviews(ctx, "Unknown")), "no-data answers are cached")
	assert.Equal(t, 2, srv.Calls("pageviews"))

	markup, err := e.FetchContent(ctx, "P2")
	require.NoError(t, err)
	assert.Equal(t, infobox("Two"), markup)
	_, err = e.FetchContent(ctx, "P2")
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Calls("content"))
}

type failingViews struct{}

func (failingViews) MonthlyViews(context.Context, string, time.Time, time.Time) ([]pageviews.Item, error) {
	return nil, errors.New("connection reset")
}

func TestFetchPageviewsFailureIsNaN(t *testing.T) {
	srv := mwtest.NewServer(solarWiki())
	defer srv.Close()
	e := newTestEngine(t, srv, testConfig(srv), func(d *Deps) { d.Views = failingViews{} })

	assert.True(t, math.IsNaN(e.FetchPageviews(context.Background(), "P1")))
	assert.Equal(t, int64(1), e.Stats().EnrichFailures.Load())
}

const testDump = `<mediawiki xmlns="http://www.mediawiki.org/xml/export-0.10/" version="0.10">
  <page>
    <title>Mars</title><ns>0</ns><id>1</id>
    <revision><text>{{Infobox Planet | name = Mars | moons = 2 }}</text></revision>
  </page>
  <page>
    <title>Paris</title><ns>0</ns><id>2</id>
    <revision><text>{{Infobox settlement | name = Paris }}</text></revision>
  </page>
  <page>
    <title>Empty</title><ns>0</ns><id>3</id>
    <revision><text /></revision>
  </page>
  <page>
    <title>Venus</title><ns>0</ns><id>4</id>
    <revision><text>{{infobox planet|name=Venus}}</text></revision>
  </page>
</mediawiki>`

func writeGzipDump(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pages.xml.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(testDump))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestScanDump(t *testing.T) {
	srv := mwtest.NewServer(&mwtest.Wiki{})
	defer srv.Close()

	cfg := testConfig(srv)
	cfg.Dump.UseDumpText = true
	cfg.Crawl.NoViews = true
	e := newTestEngine(t, srv, cfg, nil)

	matched, err := e.ScanDump(context.Background(), writeGzipDump(t))
	require.NoError(t, err)
	assert.Equal(t, 2, matched)
	assert.Equal(t, int64(4), e.Stats().DumpScanned.Load())

	records := e.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "Mars", records[0].Title)
	assert.Equal(t, []string{DumpCategory}, records[0].Categories)
	assert.Equal(t, "2", records[0].Fields["moons"])
	assert.Equal(t, int64(4), records[1].PageID)
	assert.Zero(t, srv.Calls("content"))
}

func TestScanDumpRequiresWantedTemplates(t *testing.T) {
	srv := mwtest.NewServer(&mwtest.Wiki{})
	defer srv.Close()

	cfg := testConfig(srv)
	cfg.Extract.WantedTemplates = nil
	e := newTestEngine(t, srv, cfg, nil)

	_, err := e.ScanDump(context.Background(), filepath.Join(t.TempDir(), "does-not-exist.xml"))
	assert.ErrorIs(t, err, types.ErrNoWantedTemplates)
}

func TestCheckpointRoundTrip(t *testing.T) {
	srv := mwtest.NewServer(solarWiki())
	defer srv.Close()

	cfg := testConfig(srv)
	cfg.Crawl.CheckpointPath = filepath.Join(t.TempDir(), "state", "checkpoint.json")
	first := newTestEngine(t, srv, cfg, nil)

	_, err := first.CrawlRecursive(context.Background(), "Category:Root")
	require.NoError(t, err)
	require.NoError(t, first.Close())
	contentCalls := srv.Calls("content")

	second := newTestEngine(t, srv, cfg, nil)
	ok, err := second.LoadCheckpoint()
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, flatten(first.Records()), flatten(second.Records()))
	assert.Equal(t, first.CategoryMap(), second.CategoryMap())
	assert.Empty(t, second.Store().Pending())

	second.Register(context.Background(), []types.Member{{Title: "P2"}}, "Category:Z")
	assert.Equal(t, 0, second.EnrichPending(context.Background()))
	assert.Equal(t, contentCalls, srv.Calls("content"), "restored records are not enriched again")
}

func TestCheckpointResumesInterruptedCrawl(t *testing.T) {
	srv := mwtest.NewServer(solarWiki())
	defer srv.Close()

	cfg := testConfig(srv)
	cfg.Crawl.CheckpointPath = filepath.Join(t.TempDir(), "checkpoint.json")
	cfg.Crawl.NoViews = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := newTestEngine(t, srv, cfg, func(d *Deps) {
		inner := d.Members
		d.Members = listerFunc(func(c context.Context, title string, kind mediawiki.MemberKind) ([]types.Member, error) {
			members, err := inner.AllCategoryMembers(c, title, kind)
			if title == "Category:A" && kind == mediawiki.KindPage {
				cancel()
			}
			return members, err
		})
	})

	found, err := first.CrawlRecursive(ctx, "Category:Root")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"P1", "P2"}, titles(found))
	require.NoError(t, first.Close())

	assert.Equal(t, 1, srv.Calls("content"), "P2 enrichment was interrupted")

	second := newTestEngine(t, srv, cfg, nil)
	ok, err := second.LoadCheckpoint()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"P2"}, second.Store().Pending())
	assert.Equal(t, 1, second.EnrichPending(context.Background()))

	found, err = second.CrawlRecursive(context.Background(), "Category:Root")
	require.NoError(t, err)
	assert.Equal(t, []string{"P3", "P4", "P1"}, titles(found))
	records := second.Records()
	require.Len(t, records, 4)
	assert.Equal(t, "Two", records[1].Fields["name"])
	assert.Equal(t, 4, srv.Calls("content"))
}

type listerFunc func(ctx context.Context, title string, kind mediawiki.MemberKind) ([]types.Member, error)

func (f listerFunc) AllCategoryMembers(ctx context.Context, title string, kind mediawiki.MemberKind) ([]types.Member, error) {
	return f(ctx, title, kind)
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, "Category:Planets", NormalizeCategory("Planets"))
	assert.Equal(t, "Category:Planets", NormalizeCategory(" Category:Planets "))
	assert.Equal(t, "category:planets", NormalizeCategory("category:planets"))
	assert.Empty(t, NormalizeCategory(""))
}

func TestCanonicalTitle(t *testing.T) {
	assert.Equal(t, CanonicalTitle("Category:Dwarf planets"), CanonicalTitle("category:Dwarf_planets"))
	assert.Equal(t, CanonicalTitle("Category:Dwarf planets"), CanonicalTitle("Category:Dwarf   Planets "))
	assert.NotEqual(t, CanonicalTitle("Category:A"), CanonicalTitle("Category:B"))
}

func TestVisited(t *testing.T) {
	v := NewVisited()
	assert.True(t, v.MarkSeen("Category:Moons"))
	assert.False(t, v.MarkSeen("category:moons"))
	assert.True(t, v.IsSeen("Category:MOONS"))

	restored := NewVisited()
	restored.Import(v.Export())
	assert.True(t, restored.IsSeen("Category:Moons"))
	assert.Equal(t, 1, restored.Count())
}

func TestKeywordFilter(t *testing.T) {
	f := NewKeywordFilter([]string{"Stubs", " ", "by year"})
	assert.Equal(t, 2, f.Len())

	kw, ok := f.Match("Category:Planet stubs")
	assert.True(t, ok)
	assert.Equal(t, "stubs", kw)

	_, ok = f.Match("Category:Moons")
	assert.False(t, ok)

	var empty *KeywordFilter
	_, ok = empty.Match("anything")
	assert.False(t, ok)
}

func TestFrontierPreorder(t *testing.T) {
	f := NewFrontier()
	root := crawlTask{category: "root"}
	f.PushChildren([]crawlTask{root.child("a", true), root.child("b", true)})

	first, ok := f.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", first.category)
	assert.Equal(t, 1, first.depth)
	assert.True(t, first.onPath("ROOT"))

	second, _ := f.Pop()
	assert.Equal(t, "b", second.category)
	_, ok = f.Pop()
	assert.False(t, ok)
}
