package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sqlscout/sqlscout/internal/schema"
	"github.com/sqlscout/sqlscout/internal/state"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand() *cobra.Command {
	var noSave bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the database schema",
		Long: `Fetch the configured database's tables and columns and print them.
The snapshot is also persisted to the state database so the language
server starts warm next session.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := ConfigFrom(cmd.Context())
			logger := LoggerFrom(cmd.Context())

			adapter, err := connectAdapter(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer adapter.Close()

			rows, err := adapter.TableColumns(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch schema: %w", err)
			}
			snap := schema.NewSnapshot(rows, time.Now())

			if !noSave && cfg.StatePath != "" {
				store := state.NewStore()
				if err := store.Open(cfg.StatePath); err != nil {
					logger.Warn("open state store", "error", err)
				} else {
					key := state.ConnKey(cfg.Database.Adapter, cfg.ConnTarget())
					if err := store.SaveSnapshot(cmd.Context(), key, snap); err != nil {
						logger.Warn("persist snapshot", "error", err)
					}
					_ = store.Close()
				}
			}

			if cfg.Output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap.Tables)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Table", "Columns"})
			for _, tbl := range snap.Tables {
				t.AppendRow(table.Row{tbl.Qualified, strings.Join(tbl.Columns, ", ")})
			}
			t.Render()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "(%d tables)\n", len(snap.Tables))
			return nil
		},
	}

	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not persist the snapshot to the state database")
	return cmd
}
