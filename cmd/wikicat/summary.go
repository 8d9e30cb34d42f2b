package main

import (
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/IshaanNene/wikicat/pkg/wikicat"
)

// renderSummary prints the session statistics and export locations.
func renderSummary(w io.Writer, s *wikicat.Session, runID string, elapsed time.Duration) {
	cfg := s.Config()
	stats := s.Stats()

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("wikicat run " + runID)
	t.AppendHeader(table.Row{"Metric", "Value"})

	keys := make([]string, 0, len(stats))
	for k := range stats {
		if k != "elapsed" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		t.AppendRow(table.Row{k, stats[k]})
	}

	t.AppendSeparator()
	t.AppendRow(table.Row{"records", len(s.Records())})
	t.AppendRow(table.Row{"elapsed", elapsed.Round(time.Millisecond)})
	t.AppendRow(table.Row{"output", cfg.Storage.OutputPath})
	t.AppendRow(table.Row{"formats", cfg.Storage.Types})
	t.Render()
}
