package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sqlscout/sqlscout/internal/db"
	"github.com/sqlscout/sqlscout/internal/lint"
	"github.com/sqlscout/sqlscout/internal/splitter"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <files...>",
		Short: "Validate SQL against the database without executing it",
		Long: `Validate statements by preparing them against the configured
database. SQL files are split into statements; source files are scanned
for embedded SQL first. Parameter placeholders are fine: errors caused
only by unknown parameter types are not reported.

Exits non-zero when any statement fails validation.`,
		Example: `  sqlscout validate queries/*.sql
  sqlscout validate ./api/handlers.go`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ConfigFrom(cmd.Context())

			adapter, err := connectAdapter(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer adapter.Close()

			total := 0
			failed := 0
			for _, path := range args {
				n, f, err := validateFile(cmd, adapter, path)
				if err != nil {
					return err
				}
				total += n
				failed += f
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d statements checked, %d failed\n", total, failed)
			if failed > 0 {
				return fmt.Errorf("%d statements failed validation", failed)
			}
			return nil
		},
	}
}

func validateFile(cmd *cobra.Command, adapter db.Adapter, path string) (total, failed int, err error) {
	if strings.EqualFold(filepath.Ext(path), ".sql") {
		source, err := os.ReadFile(path)
		if err != nil {
			return 0, 0, fmt.Errorf("read %s: %w", path, err)
		}
		content := string(source)
		diags := lint.Validate(cmd.Context(), adapter, content)
		for _, d := range diags {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s:%d: %s %s\n",
				path, lineAt(content, d.Start), d.Code, d.Message)
		}
		return len(splitter.Split(content)), len(diags), nil
	}

	findings, err := scanFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("scan %s: %w", path, err)
	}
	for _, f := range findings {
		if verr := adapter.Validate(cmd.Context(), f.SQL); verr != nil {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s:%d: %s\n", f.File, f.Line, verr.Error())
			failed++
		}
	}
	return len(findings), failed, nil
}
