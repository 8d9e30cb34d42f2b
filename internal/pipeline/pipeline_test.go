package pipeline

import (
	"errors"
	"log/slog"
	"os"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/wikicat/internal/config"
	"github.com/IshaanNene/wikicat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestPipelineBasic(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{})

	result, err := p.Process("Mars", Fields{"name": "  Mars  ", "extra": " spaces "})
	require.NoError(t, err)
	assert.Equal(t, "Mars", result["name"])
	assert.Equal(t, "spaces", result["extra"])
}

func TestPipelineNilFields(t *testing.T) {
	result, err := New(testLogger).Process("Mars", nil)
	require.NoError(t, err)
	assert.NotNil(t, result)
}

type failingMiddleware struct{}

func (failingMiddleware) Name() string { return "failing" }

func (failingMiddleware) Process(Fields) (Fields, error) { return nil, errors.New("boom") }

func TestPipelineError(t *testing.T) {
	p := New(testLogger)
	p.Use(failingMiddleware{})

	_, err := p.Process("Mars", Fields{})
	var pe *types.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "failing", pe.Stage)
	assert.Equal(t, "Mars", pe.Title)
}

func TestNewFromConfig(t *testing.T) {
	p := NewFromConfig(&config.ExtractConfig{
		Rename:     map[string]string{"mean_radius": "radius"},
		KeepFields: []string{"radius", "name", "empty"},
		DropEmpty:  true,
	}, testLogger)

	result, err := p.Process("Mars", Fields{
		"mean_radius": "3389.5km",
		"name":        "Mars ",
		"empty":       "",
		"symbol":      "♂",
	})
	require.NoError(t, err)
	assert.Equal(t, Fields{"radius": "3389.5km", "name": "Mars"}, result)
}

func TestLinkStripMiddleware(t *testing.T) {
	result, err := NewLinkStripMiddleware().Process(Fields{
		"moons":  "2 ([[Phobos (moon)|Phobos]] and [[Deimos (moon)|Deimos]])",
		"plain":  "[[Sun]]",
		"symbol": "[[File:Mars symbol.svg|24px|♂]]x",
		"colon":  "[[:Category:Planets]]",
	})
	require.NoError(t, err)

	assert.Equal(t, Fields{
		"moons":  "2 (Phobos and Deimos)",
		"plain":  "Sun",
		"symbol": "x",
		"colon":  "Category:Planets",
	}, result)
}

func TestEntityDecodeMiddleware(t *testing.T) {
	result, _ := NewEntityDecodeMiddleware().Process(Fields{"content": `<small>Hello</small>  &amp; <br>world`})
	assert.Equal(t, "Hello & world", result["content"])
}

func TestDefaultAndValidate(t *testing.T) {
	fields := Fields{"year": "19x0"}
	fields, _ = (&DefaultValueMiddleware{Defaults: map[string]string{"status": "unknown", "year": "0"}}).Process(fields)
	assert.Equal(t, "unknown", fields["status"])
	assert.Equal(t, "19x0", fields["year"], "defaults only fill missing fields")

	fields, _ = NewFieldValidateMiddleware(map[string]*regexp.Regexp{"year": regexp.MustCompile(`^\d{4}$`)}).Process(fields)
	assert.NotContains(t, fields, "year")
}
