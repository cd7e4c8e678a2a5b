package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sqlscout/sqlscout/internal/splitter"
)

// NewSplitCommand creates the split command.
func NewSplitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "split [file]",
		Short: "Split SQL into individual statements",
		Long: `Split a SQL script into its individual statements, respecting
strings, comments and dollar-quoted blocks. Reads from stdin when no
file is given.`,
		Example: `  sqlscout split migrations/001_init.sql
  cat script.sql | sqlscout split`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var source []byte
			var err error
			if len(args) == 1 {
				source, err = os.ReadFile(args[0])
			} else {
				source, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			stmts := splitter.Split(string(source))

			cfg := ConfigFrom(cmd.Context())
			if cfg.Output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stmts)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"#", "Start", "End", "Statement"})
			for i, stmt := range stmts {
				t.AppendRow(table.Row{i + 1, stmt.Start, stmt.End, preview(stmt.Content, 60)})
			}
			t.Render()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "(%d statements)\n", len(stmts))
			return nil
		},
	}
}
