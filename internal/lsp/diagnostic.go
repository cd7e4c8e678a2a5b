package lsp

import (
	"path/filepath"
	"strings"

	"github.com/sqlscout/sqlscout/internal/lint"
)

// scheduleDiagnostics queues background validation for a SQL document.
// Host-language files are not validated; extraction only feeds completion.
func (s *Server) scheduleDiagnostics(uri string) {
	if s.linter == nil {
		return
	}
	if !strings.EqualFold(filepath.Ext(URIToPath(uri)), ".sql") {
		return
	}

	doc := s.documents.Get(uri)
	if doc == nil {
		return
	}
	s.linter.Schedule(uri, doc.Version, doc.Content)
}

// publishLintResults converts byte-offset diagnostics to LSP ranges and
// sends them. The document may have changed since validation started; the
// version check drops results that no longer apply.
func (s *Server) publishLintResults(uri string, version int, diags []lint.Diagnostic) {
	doc := s.documents.Get(uri)
	if doc == nil || doc.Version != version {
		return
	}

	out := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		out = append(out, Diagnostic{
			Range: Range{
				Start: doc.OffsetToPosition(d.Start),
				End:   doc.OffsetToPosition(d.End),
			},
			Severity: DiagnosticSeverityError,
			Code:     d.Code,
			Source:   "sqlscout",
			Message:  d.Message,
		})
	}

	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: out,
	})
}
