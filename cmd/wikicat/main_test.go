package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/IshaanNene/wikicat/internal/config"
)

func TestApplyCLIOverridesOnlyChangedFlags(t *testing.T) {
	cmd := crawlCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"-d", "2", "--forbid", "stubs,lists", "-f", "CSV,json"}))

	cfg := config.DefaultConfig()
	cfg.Crawl.Concurrency = 4
	applyCLIOverrides(cmd, cfg)

	assert.Equal(t, 2, cfg.Crawl.MaxDepth)
	assert.Equal(t, []string{"stubs", "lists"}, cfg.Crawl.ForbiddenKeywords)
	assert.Equal(t, []string{"csv", "json"}, cfg.Storage.Types)
	assert.Equal(t, 4, cfg.Crawl.Concurrency, "unset flags keep the loaded value")
	assert.Equal(t, config.RevisitPath, cfg.Crawl.RevisitPolicy)
}

func TestExtractCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader(`{{Infobox planet|name=Mars|mass={{val|6.4|ul=kg}}}}`))
	root.SetArgs([]string{"extract", "-t", "infobox planet", "--json", "-c", writeConfig(t)})

	require.NoError(t, root.Execute())
	assert.JSONEq(t, `{"name":"Mars","mass":"6.4kg"}`, out.String())
}

func TestConfigCommandPrintsYAML(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"config", "-c", writeConfig(t)})
	require.NoError(t, root.Execute())

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &cfg))
	assert.Equal(t, "Category:Planets", cfg.Crawl.Category)
	assert.Equal(t, "https://en.wikipedia.org/w/api.php", cfg.API.Endpoint)
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := t.TempDir() + "/wikicat.yaml"
	require.NoError(t, writeFile(path, "crawl:\n  category: \"Category:Planets\"\nlogging:\n  level: error\n"))
	return path
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
