// Package complete ranks completion candidates for a cursor position in SQL
// text, using the current schema snapshot for table and column suggestions
// and a whole-text alias scan so "u." resolves through "FROM users u".
package complete

import (
	"regexp"
	"strings"

	"github.com/sqlscout/sqlscout/internal/schema"
)

// Kind classifies a completion item.
type Kind int

const (
	KindKeyword Kind = iota
	KindTable
	KindColumn
)

// Item is one completion candidate.
type Item struct {
	Label  string
	Kind   Kind
	Detail string
}

// Keywords is the fixed baseline completion set.
var Keywords = []string{
	"SELECT", "FROM", "WHERE", "JOIN", "LEFT JOIN", "RIGHT JOIN", "INNER JOIN",
	"GROUP BY", "ORDER BY", "HAVING", "LIMIT", "OFFSET", "AS", "ON",
	"AND", "OR", "NOT", "IN", "BETWEEN", "LIKE", "IS NULL", "IS NOT NULL",
	"DISTINCT", "CASE", "WHEN", "THEN", "ELSE", "END", "WITH",
	"INSERT INTO", "VALUES", "UPDATE", "SET", "DELETE FROM", "RETURNING",
	"UNION", "UNION ALL", "CREATE TABLE", "ALTER TABLE", "DROP TABLE",
}

// DefaultSchema is the fallback when no default schema is configured.
// Tables in the default schema are offered bare: "public.users" completes
// as just "users".
const DefaultSchema = "public"

const ident = `(?:"[^"]+"|[A-Za-z_][A-Za-z0-9_]*)`

var (
	// qualifier: identifier (optionally schema-qualified) followed by a dot
	// and a possibly empty partial identifier, at the end of the line.
	qualifierRe = regexp.MustCompile(`(` + ident + `(?:\.` + ident + `)?)\.([A-Za-z0-9_]*)$`)

	// table position: FROM/JOIN/UPDATE/INTO/TABLE then an optional partial
	// reference.
	tablePosRe = regexp.MustCompile(`(?i)\b(from|join|update|into|table)\s+(` + ident + `?(?:\.` + ident + `?)?)?$`)

	// select clause: a SELECT with no later clause keyword before the cursor.
	selectClauseRe = regexp.MustCompile(`(?i)\bselect\b(?:[^;]*?)$`)

	// alias definitions anywhere in the statement: FROM/JOIN <ref> [AS] <alias>.
	aliasRe = regexp.MustCompile(`(?i)\b(?:from|join)\s+(` + ident + `(?:\.` + ident + `)?)\s+(?:as\s+)?(` + ident + `)`)
)

// reservedAlias holds words that follow a table reference without being an
// alias. Without this, "FROM users WHERE" would bind alias "where".
var reservedAlias = map[string]bool{
	"where": true, "join": true, "left": true, "right": true, "inner": true,
	"outer": true, "cross": true, "full": true, "natural": true, "on": true,
	"using": true, "group": true, "order": true, "having": true, "limit": true,
	"offset": true, "union": true, "except": true, "intersect": true,
	"set": true, "as": true, "and": true, "or": true, "returning": true,
	"values": true, "when": true, "then": true, "window": true, "fetch": true,
}

// Resolve returns completion candidates for a cursor whose statement text is
// sqlText and whose current line up to the cursor is linePrefix. snap may be
// nil (no schema available); keyword completions still work. defaultSchema
// is the schema whose tables are suggested by bare name; empty means
// DefaultSchema.
func Resolve(sqlText, linePrefix string, snap *schema.Snapshot, defaultSchema string) []Item {
	if defaultSchema == "" {
		defaultSchema = DefaultSchema
	}

	if m := qualifierRe.FindStringSubmatch(linePrefix); m != nil {
		return qualifierItems(sqlText, m[1], snap)
	}

	if tablePosRe.MatchString(linePrefix) {
		return tableItems(snap, defaultSchema)
	}

	if selectClauseRe.MatchString(linePrefix) && !afterClauseKeyword(linePrefix) {
		// Inside a SELECT list the target tables may not be written yet, so
		// offer every known column.
		if snap != nil {
			var items []Item
			for _, col := range snap.AllColumns() {
				items = append(items, Item{Label: col, Kind: KindColumn})
			}
			if len(items) > 0 {
				return items
			}
		}
	}

	return append(keywordItems(), tableItems(snap, defaultSchema)...)
}

// qualifierItems resolves "qual." to that reference's columns, exclusively.
// The qualifier is first tried as an alias defined earlier in the statement,
// then as a literal table or schema-qualified reference.
func qualifierItems(sqlText, qualifier string, snap *schema.Snapshot) []Item {
	if snap == nil {
		return nil
	}

	ref := qualifier
	if !strings.Contains(qualifier, ".") {
		if target, ok := lookupAlias(sqlText, qualifier); ok {
			ref = target
		}
	}

	var items []Item
	for _, col := range snap.ColumnsFor(ref) {
		items = append(items, Item{Label: col, Kind: KindColumn, Detail: schema.NormalizeIdentifier(ref)})
	}
	return items
}

// lookupAlias scans the whole statement for FROM/JOIN alias bindings and
// returns the table reference the qualifier is an alias of.
func lookupAlias(sqlText, qualifier string) (string, bool) {
	want := schema.NormalizeIdentifier(qualifier)
	for _, m := range aliasRe.FindAllStringSubmatch(sqlText, -1) {
		table, alias := m[1], m[2]
		if reservedAlias[strings.ToLower(alias)] {
			continue
		}
		if schema.NormalizeIdentifier(alias) == want {
			return table, true
		}
	}
	return "", false
}

func tableItems(snap *schema.Snapshot, defaultSchema string) []Item {
	if snap == nil {
		return nil
	}
	items := make([]Item, 0, len(snap.Tables))
	for _, tbl := range snap.Tables {
		label := tbl.Qualified
		if schema.NormalizeIdentifier(tbl.Schema) == schema.NormalizeIdentifier(defaultSchema) {
			label = tbl.Name
		}
		items = append(items, Item{Label: label, Kind: KindTable, Detail: tbl.Qualified})
	}
	return items
}

func keywordItems() []Item {
	items := make([]Item, 0, len(Keywords))
	for _, kw := range Keywords {
		items = append(items, Item{Label: kw, Kind: KindKeyword})
	}
	return items
}

// afterClauseKeyword reports whether a clause keyword that ends the SELECT
// list appears after the last SELECT on the line, in which case the broad
// all-columns suggestion would be wrong.
var clauseAfterSelectRe = regexp.MustCompile(`(?i)\bselect\b(?:.*)\b(from|where|group|order|having|limit)\b[^;]*$`)

func afterClauseKeyword(linePrefix string) bool {
	return clauseAfterSelectRe.MatchString(linePrefix)
}
