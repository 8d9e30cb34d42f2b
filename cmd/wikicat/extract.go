package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/wikicat/internal/config"
	"github.com/IshaanNene/wikicat/internal/parser"
	"github.com/IshaanNene/wikicat/internal/pipeline"
	"github.com/IshaanNene/wikicat/internal/wikitext"
)

var extractJSON bool

// extractCmd creates the "extract" subcommand, which mines a local markup
// file without touching the network.
func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Mine wanted templates from a local markup file (or stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyCLIOverrides(cmd, cfg)
			logger, closeLog := setupLogger(&cfg.Logging)
			defer closeLog()

			var in io.Reader = cmd.InOrStdin()
			if len(args) > 0 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			raw, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("read markup: %w", err)
			}

			p, err := parser.New(&cfg.Extract, logger)
			if err != nil {
				return err
			}
			if parser.IsNop(p) {
				return fmt.Errorf("no wanted templates or rules configured")
			}

			fields, err := p.Parse(wikitext.Unescape(string(raw)))
			if err != nil {
				logger.Warn("parser reported errors", "error", err)
			}
			fields, err = pipeline.NewFromConfig(&cfg.Extract, logger).Process("-", fields)
			if err != nil {
				return err
			}

			if extractJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(fields)
			}
			renderFields(cmd.OutOrStdout(), fields)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&templates, "template", "t", nil, "wanted template name (repeatable)")
	cmd.Flags().BoolVar(&extractJSON, "json", false, "print fields as JSON")
	return cmd
}

func renderFields(w io.Writer, fields map[string]string) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Field", "Value"})
	for _, k := range keys {
		t.AppendRow(table.Row{k, fields[k]})
	}
	t.Render()
}
