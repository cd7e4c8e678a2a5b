package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sqlscout/sqlscout/internal/extract"
	"github.com/sqlscout/sqlscout/internal/syntax"
)

// Finding is one embedded SQL statement located in a source file.
type Finding struct {
	File string `json:"file"`
	Line int    `json:"line"`
	SQL  string `json:"sql"`
}

// skipDirs are directory names never descended into while scanning.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
}

// NewScanCommand creates the scan command.
func NewScanCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Find SQL embedded in source files",
		Long: `Scan source trees for SQL statements embedded in Go, Python,
JavaScript and TypeScript files. Each finding is reported with its file,
line, and the reassembled statement.`,
		Example: `  # Scan the current directory
  sqlscout scan

  # Scan specific trees and keep watching for changes
  sqlscout scan --watch ./api ./jobs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			roots := args
			if len(roots) == 0 {
				roots = []string{"."}
			}

			logger := LoggerFrom(cmd.Context())
			cfg := ConfigFrom(cmd.Context())

			files, err := collectSourceFiles(roots)
			if err != nil {
				return err
			}

			findings := scanFiles(files, logger)
			if err := renderFindings(cmd.OutOrStdout(), findings, cfg.Output); err != nil {
				return err
			}

			if !watch {
				return nil
			}
			return watchAndRescan(cmd, roots, logger, cfg.Output)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep watching for file changes")
	return cmd
}

// collectSourceFiles walks the roots and returns every file a parser
// exists for. A root that is itself a file is taken as-is.
func collectSourceFiles(roots []string) ([]string, error) {
	var files []string
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}
		if !info.IsDir() {
			if syntax.SupportsFile(root) {
				files = append(files, root)
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if d.IsDir() {
				if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
					return filepath.SkipDir
				}
				return nil
			}
			if syntax.SupportsFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// scanFiles extracts SQL from each file, parsing in parallel. Files that
// fail to read or parse are logged and skipped.
func scanFiles(files []string, logger *slog.Logger) []Finding {
	results := make([][]Finding, len(files))

	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for i, path := range files {
		g.Go(func() error {
			found, err := scanFile(path)
			if err != nil {
				logger.Warn("skipping file", "path", path, "error", err)
				return nil
			}
			results[i] = found
			return nil
		})
	}
	_ = g.Wait()

	var findings []Finding
	for _, r := range results {
		findings = append(findings, r...)
	}
	return findings
}

func scanFile(path string) ([]Finding, error) {
	parser, err := syntax.ParserForFile(path)
	if err != nil {
		return nil, err
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	tree, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	text := string(source)
	var findings []Finding
	for _, cand := range extract.Candidates(tree, text) {
		findings = append(findings, Finding{
			File: path,
			Line: lineAt(text, cand.Parts[0].Start),
			SQL:  cand.Content,
		})
	}
	return findings, nil
}

// lineAt returns the 1-based line number of a byte offset.
func lineAt(text string, offset int) int {
	if offset > len(text) {
		offset = len(text)
	}
	return 1 + strings.Count(text[:offset], "\n")
}

func renderFindings(w io.Writer, findings []Finding, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(findings)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"File", "Line", "SQL"})
	for _, f := range findings {
		t.AppendRow(table.Row{f.File, f.Line, preview(f.SQL, 60)})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d statements)\n", len(findings))
	return nil
}

// preview collapses a statement to one line and truncates it.
func preview(sql string, max int) string {
	s := strings.Join(strings.Fields(sql), " ")
	if len(s) > max {
		return s[:max-1] + "…"
	}
	return s
}

// watchAndRescan watches the roots and re-scans changed files after a
// quiet window. Runs until interrupted.
func watchAndRescan(cmd *cobra.Command, roots []string, logger *slog.Logger, format string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return err
			}
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		})
		if err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
	}

	logger.Info("watching for changes", "roots", roots)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var mu sync.Mutex
	pending := make(map[string]bool)
	var timer *time.Timer

	flush := func() {
		mu.Lock()
		changed := make([]string, 0, len(pending))
		for path := range pending {
			changed = append(changed, path)
		}
		pending = make(map[string]bool)
		mu.Unlock()

		sort.Strings(changed)
		findings := scanFiles(changed, logger)
		if err := renderFindings(cmd.OutOrStdout(), findings, format); err != nil {
			logger.Error("render findings", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !syntax.SupportsFile(event.Name) {
				// New directories need watching for events inside them.
				if event.Op&fsnotify.Create != 0 {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						_ = watcher.Add(event.Name)
					}
				}
				continue
			}
			mu.Lock()
			pending[event.Name] = true
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(450*time.Millisecond, flush)
			mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "error", err)
		}
	}
}
