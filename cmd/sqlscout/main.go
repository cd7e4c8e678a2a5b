// Command sqlscout finds, validates, and serves completion for the SQL in
// a codebase.
package main

import (
	"os"

	"github.com/sqlscout/sqlscout/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
