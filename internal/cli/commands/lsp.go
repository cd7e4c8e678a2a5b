package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sqlscout/sqlscout/internal/lsp"
)

// NewLSPCommand creates the lsp command.
func NewLSPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		Long: `Start the LSP server for editor integration.

The server communicates over stdin/stdout using JSON-RPC. Database
connection settings come from sqlscout.yaml, SQLSCOUT_ environment
variables, or flags; without a database the server still provides
keyword completion.`,
		Example: `  # Start LSP server (usually launched by an editor)
  sqlscout lsp`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := ConfigFrom(cmd.Context())
			logger := LoggerFrom(cmd.Context())
			server := lsp.NewServer(cfg, os.Stdin, os.Stdout, logger)
			return server.Run()
		},
	}
}
