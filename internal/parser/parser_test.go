package parser

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/wikicat/internal/config"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const testMarkup = `{{Infobox moon
| name = Io
| discoverer = [[Galileo Galilei]]
| mean_radius = {{val|1821.6|0.5|ul=km}}
}}
Io orbits at '''421,700 km''' from Jupiter.`

func TestNewWithoutConfigIsNop(t *testing.T) {
	p, err := New(&config.ExtractConfig{}, testLogger)
	require.NoError(t, err)
	require.True(t, IsNop(p), "got %T", p)

	fields, _ := p.Parse(testMarkup)
	assert.Empty(t, fields)
}

func TestTemplateParser(t *testing.T) {
	fields, err := NewTemplateParser([]string{"infobox moon"}).Parse(testMarkup)
	require.NoError(t, err)
	assert.Equal(t, "Io", fields["name"])
	assert.Equal(t, "1821.6km", fields["mean_radius"])
}

func TestRegexParser(t *testing.T) {
	p, err := NewRegexParser([]config.ParseRule{
		{Name: "orbit", Pattern: `'''([\d,]+ km)'''`},
		{Name: "named", Pattern: `orbits at (?P<where>\S+)`},
		{Name: "absent", Pattern: `Callisto`},
	}, testLogger)
	require.NoError(t, err)

	fields, _ := p.Parse(testMarkup)
	assert.Equal(t, "421,700 km", fields["orbit"])
	assert.Equal(t, "'''421,700", fields["named"])
	assert.NotContains(t, fields, "absent")
}

func TestRegexParserInvalidPattern(t *testing.T) {
	_, err := NewRegexParser([]config.ParseRule{{Name: "bad", Pattern: "("}}, testLogger)
	assert.Error(t, err)
}

func TestCompositeParserMergesInOrder(t *testing.T) {
	first := Func(func(string) (map[string]string, error) {
		return map[string]string{"a": "1", "shared": "first"}, nil
	})
	failing := Func(func(string) (map[string]string, error) {
		return nil, errors.New("boom")
	})
	second := Func(func(string) (map[string]string, error) {
		return map[string]string{"shared": "second"}, nil
	})

	fields, err := NewCompositeParser(testLogger, first, failing, second).Parse("")
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, map[string]string{"a": "1", "shared": "second"}, fields)
}

func TestNewBuildsComposite(t *testing.T) {
	p, err := New(&config.ExtractConfig{
		WantedTemplates: []string{"infobox"},
		Rules:           []config.ParseRule{{Name: "orbit", Pattern: `'''([\d,]+ km)'''`}},
	}, testLogger)
	require.NoError(t, err)
	require.IsType(t, &CompositeParser{}, p)

	fields, _ := p.Parse(testMarkup)
	assert.Equal(t, "Io", fields["name"])
	assert.Equal(t, "421,700 km", fields["orbit"])
}
