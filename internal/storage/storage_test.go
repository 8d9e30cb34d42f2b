package storage

import (
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/IshaanNene/wikicat/internal/config"
	"github.com/IshaanNene/wikicat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func testRecords() []*types.PageRecord {
	mars := types.NewPageRecord(types.Member{Title: "Mars", PageID: 14640471}, "Category:Planets")
	mars.AddCategory("Category:Terrestrial planets")
	mars.SetViews(1500.5)
	mars.MergeFields(map[string]string{"mass": "6.4171kg", "mean_radius": "3389.5km"})

	ceres := types.NewPageRecord(types.Member{Title: "Ceres", PageID: 6, Namespace: 0}, "Category:Dwarf planets")
	ceres.SetViews(math.NaN())

	vesta := types.NewPageRecord(types.Member{Title: "Vesta", PageID: 7}, "dump")

	return []*types.PageRecord{mars, ceres, vesta}
}

func TestColumns(t *testing.T) {
	assert.Equal(t,
		[]string{"title", "category", "namespace", "views", "pageid", "mass", "radius"},
		Columns([]string{"mass", "title", " ", "mass", "radius"}))
}

func TestBaseName(t *testing.T) {
	tests := map[string]string{
		"Category:Planets of the Solar System": "Planets_of_the_Solar_System",
		"Moons":                                "Moons",
		"category:AC/DC albums":                "AC_DC_albums",
		"":                                     "results",
	}
	for in, want := range tests {
		assert.Equal(t, want, BaseName(in), "input %q", in)
	}
}

func TestCSVStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage("csv", dir, "Planets", []string{"mass", "density"}, testLogger)
	require.NoError(t, err)
	require.NoError(t, s.Store(testRecords()))
	require.NoError(t, s.Close())

	f, err := os.Open(filepath.Join(dir, "Planets.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 4, "header plus 3 rows")
	assert.Equal(t, []string{"title", "category", "namespace", "views", "pageid", "mass", "density"}, rows[0])
	assert.Equal(t, []string{"Mars", "Category:Planets|Category:Terrestrial planets", "0", "1500.5", "14640471", "6.4171kg", ""}, rows[1])
	assert.Equal(t, "nan", rows[2][3])
	assert.Empty(t, rows[3][3])
}

func TestJSONStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage("json", dir, "Planets", nil, testLogger)
	require.NoError(t, err)
	require.NoError(t, s.Store(testRecords()))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(filepath.Join(dir, "Planets.json"))
	require.NoError(t, err)
	var back []*types.PageRecord
	require.NoError(t, json.Unmarshal(data, &back))

	require.Len(t, back, 3)
	assert.Equal(t, "6.4171kg", back[0].Fields["mass"])
	require.NotNil(t, back[1].Views)
	assert.True(t, math.IsNaN(*back[1].Views))
}

func TestJSONLStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage("jsonl", dir, "Planets", nil, testLogger)
	require.NoError(t, err)
	require.NoError(t, s.Store(testRecords()[:2]))
	require.NoError(t, s.Store(testRecords()[2:]))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(filepath.Join(dir, "Planets.jsonl"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 3)
}

func TestXLSXStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage("xlsx", dir, "Planets", []string{"mass"}, testLogger)
	require.NoError(t, err)
	require.NoError(t, s.Store(testRecords()))
	require.NoError(t, s.Close())

	f, err := excelize.OpenFile(filepath.Join(dir, "Planets.xlsx"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(XLSXSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"title", "category", "namespace", "views", "pageid", "mass"}, rows[0])
	assert.Equal(t, "Mars", rows[1][0])
	assert.Equal(t, "6.4171kg", rows[1][5])
	assert.Equal(t, "nan", rows[2][3])
}

func TestUnsupportedFileStorage(t *testing.T) {
	_, err := NewFileStorage("parquet", t.TempDir(), "x", nil, testLogger)
	assert.Error(t, err)
}

type recordingStorage struct {
	name   string
	stored int
	closed bool
}

func (r *recordingStorage) Name() string { return r.name }
func (r *recordingStorage) Store(records []*types.PageRecord) error {
	r.stored += len(records)
	return nil
}
func (r *recordingStorage) Close() error {
	r.closed = true
	return nil
}

func TestMultiStorage(t *testing.T) {
	a, b := &recordingStorage{name: "a"}, &recordingStorage{name: "b"}
	m := NewMultiStorage([]Storage{a, b}, testLogger)

	require.NoError(t, m.Store(testRecords()))
	require.NoError(t, m.Close())
	for _, r := range []*recordingStorage{a, b} {
		assert.Equal(t, 3, r.stored, r.name)
		assert.True(t, r.closed, r.name)
	}
}

func TestNewFromConfigMulti(t *testing.T) {
	cfg := config.DefaultConfig().Storage
	cfg.OutputPath = t.TempDir()
	cfg.Types = []string{"csv", "jsonl"}

	s, err := NewFromConfig(&cfg, "Planets", nil, "run-1", testLogger)
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &MultiStorage{}, s)
}

func TestRecordDocument(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recs := testRecords()

	doc := recordDocument(recs[0], "run-1", now)
	assert.Equal(t, 1500.5, doc["views"])
	assert.Equal(t, "run-1", doc["_run_id"])

	doc = recordDocument(recs[1], "run-1", now)
	assert.NotContains(t, doc, "views")
	assert.Equal(t, true, doc["views_unavailable"])
}
