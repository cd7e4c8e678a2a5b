package lsp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sqlscout/sqlscout/internal/complete"
	"github.com/sqlscout/sqlscout/internal/extract"
	"github.com/sqlscout/sqlscout/internal/schema"
	"github.com/sqlscout/sqlscout/internal/syntax"
)

// getCompletions routes a completion request. Pure SQL files complete
// against the whole document; host-language files first locate the SQL
// string under the cursor via the syntax tree. Either way the request
// never errors, it just returns fewer items.
func (s *Server) getCompletions(params CompletionParams) []CompletionItem {
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return nil
	}

	path := URIToPath(doc.URI)
	snap := s.currentSnapshot()

	var items []complete.Item
	if strings.EqualFold(filepath.Ext(path), ".sql") {
		items = complete.Resolve(doc.Content, doc.LinePrefix(params.Position), snap, s.cfg.Database.Schema)
	} else {
		items = s.embeddedCompletions(doc, path, params.Position, snap)
	}

	return toCompletionItems(items)
}

// embeddedCompletions resolves completion inside a SQL string embedded in
// host-language source. Unsupported file types and cursors outside SQL
// strings yield nothing.
func (s *Server) embeddedCompletions(doc *Document, path string, pos Position, snap *schema.Snapshot) []complete.Item {
	parser, err := syntax.ParserForFile(path)
	if err != nil {
		if !errors.Is(err, syntax.ErrNoParser) {
			s.logger.Warn("create parser", "path", path, "error", err)
		}
		return nil
	}

	tree, err := parser.Parse([]byte(doc.Content))
	if err != nil {
		s.logger.Warn("parse document", "path", path, "error", err)
		return nil
	}
	defer tree.Close()

	sqlCtx := extract.ContextAt(tree, doc.Content, doc.PositionToOffset(pos))
	if sqlCtx == nil {
		return nil
	}

	return complete.Resolve(sqlCtx.SQL, sqlCtx.LinePrefix, snap, s.cfg.Database.Schema)
}

// currentSnapshot returns the freshest snapshot available without making
// the user wait: a fresh cached one is used as-is, otherwise a refresh
// runs and its failure falls back to whatever the cache still holds.
// Completion is background work, so a cache miss honors the failure
// backoff instead of retrying the database on every keystroke.
func (s *Server) currentSnapshot() *schema.Snapshot {
	if s.cache == nil {
		return nil
	}
	snap, err := s.cache.Get(context.Background(), false, false)
	if err != nil {
		s.logger.Warn("schema refresh failed", "error", err)
		return s.cache.Cached()
	}
	if snap == nil {
		return s.cache.Cached()
	}
	return snap
}

func toCompletionItems(items []complete.Item) []CompletionItem {
	out := make([]CompletionItem, 0, len(items))
	for i, item := range items {
		out = append(out, CompletionItem{
			Label:  item.Label,
			Kind:   completionKind(item.Kind),
			Detail: item.Detail,
			// Preserve resolver ordering against client-side sorting.
			SortText: fmt.Sprintf("%04d", i),
		})
	}
	return out
}

func completionKind(kind complete.Kind) CompletionItemKind {
	switch kind {
	case complete.KindTable:
		return CompletionItemKindClass
	case complete.KindColumn:
		return CompletionItemKindField
	default:
		return CompletionItemKindKeyword
	}
}
