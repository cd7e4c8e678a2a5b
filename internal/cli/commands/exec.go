package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sqlscout/sqlscout/internal/db"
	"github.com/sqlscout/sqlscout/internal/splitter"
)

// NewExecCommand creates the exec command.
func NewExecCommand() *cobra.Command {
	var fromFile string

	cmd := &cobra.Command{
		Use:   "exec [sql]",
		Short: "Execute SQL against the configured database",
		Long: `Execute one or more SQL statements and print the results. SQL comes
from the argument, from --file, or from stdin. Scripts are split into
statements and executed in order.`,
		Example: `  sqlscout exec "SELECT count(*) FROM users"
  sqlscout exec --file report.sql
  echo "SELECT 1" | sqlscout exec`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var source string
			switch {
			case len(args) == 1:
				source = args[0]
			case fromFile != "":
				b, err := os.ReadFile(fromFile)
				if err != nil {
					return fmt.Errorf("read %s: %w", fromFile, err)
				}
				source = string(b)
			default:
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				source = string(b)
			}

			stmts := splitter.Split(source)
			if len(stmts) == 0 {
				return fmt.Errorf("no statements to execute")
			}

			cfg := ConfigFrom(cmd.Context())
			adapter, err := connectAdapter(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer adapter.Close()

			for _, stmt := range stmts {
				res, err := adapter.Exec(cmd.Context(), stmt.Content)
				if err != nil {
					return fmt.Errorf("execute statement at offset %d: %w", stmt.Start, err)
				}
				if err := renderResult(cmd.OutOrStdout(), res, cfg.Output); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "read SQL from a file")
	return cmd
}

func renderResult(w io.Writer, res *db.Result, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"columns":     res.Columns,
			"rows":        res.Rows,
			"row_count":   res.RowCount,
			"command_tag": res.CommandTag,
			"duration_ms": res.Duration.Milliseconds(),
		})
	}

	if len(res.Columns) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)

		header := make(table.Row, len(res.Columns))
		for i, col := range res.Columns {
			header[i] = col
		}
		t.AppendHeader(header)

		for _, row := range res.Rows {
			out := make(table.Row, len(row))
			for i, val := range row {
				out[i] = formatValue(val)
			}
			t.AppendRow(out)
		}
		t.Render()
	}

	_, _ = fmt.Fprintf(w, "%s (%s)\n", res.CommandTag, res.Duration.Round(time.Microsecond))
	return nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case string:
		return val
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", val))
	}
}
