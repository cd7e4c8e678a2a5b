// Package lint turns database validation errors into document-level
// diagnostics. Statements are located with the splitter, validated through
// an adapter, and positions are mapped back to byte offsets in the source
// document.
package lint

import (
	"context"
	"errors"

	"github.com/sqlscout/sqlscout/internal/db"
	"github.com/sqlscout/sqlscout/internal/splitter"
)

// Diagnostic is one validation finding, addressed by byte offsets into the
// document it was produced from.
type Diagnostic struct {
	// Start and End are byte offsets into the document. End is exclusive.
	Start int
	End   int

	// Code is the SQLSTATE when the database reported one.
	Code string

	Message string
}

// Validate splits content into statements and validates each one through
// the adapter. Statements the database accepts (or rejects only with
// suppressed parameter-type codes) produce no diagnostic.
func Validate(ctx context.Context, adapter db.Adapter, content string) []Diagnostic {
	var diags []Diagnostic
	for _, stmt := range splitter.Split(content) {
		if err := ctx.Err(); err != nil {
			return diags
		}
		err := adapter.Validate(ctx, stmt.Content)
		if err == nil {
			continue
		}
		diags = append(diags, toDiagnostic(stmt, err))
	}
	return diags
}

// toDiagnostic maps a validation error onto the statement's span. When the
// database reported a 1-based character position it narrows the span to
// that point; otherwise the whole statement is flagged.
func toDiagnostic(stmt splitter.Statement, err error) Diagnostic {
	d := Diagnostic{
		Start:   stmt.Start,
		End:     stmt.End,
		Message: err.Error(),
	}

	var sqlErr *db.SQLError
	if errors.As(err, &sqlErr) {
		d.Code = sqlErr.Code
		d.Message = sqlErr.Message
		if sqlErr.Position > 0 {
			at := stmt.Start + sqlErr.Position - 1
			if at >= stmt.Start && at < stmt.End {
				d.Start = at
			}
		}
	}
	return d
}
