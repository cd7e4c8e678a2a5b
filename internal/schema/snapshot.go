// Package schema holds a normalized, point-in-time view of a database's
// tables and columns, and the cache that keeps that view fresh.
package schema

import (
	"strings"
	"time"
)

// ColumnRow is one row of the metadata query: a single column of a single
// table. Rows are expected ordered by schema, table, ordinal position.
type ColumnRow struct {
	Schema string
	Table  string
	Column string
}

// Table is one table (or view) in a snapshot. Columns preserves the
// metadata query's ordinal order.
type Table struct {
	Schema    string
	Name      string
	Qualified string // "schema.name"
	Columns   []string
}

// Snapshot is an immutable view of the database's tables. A refresh builds
// a brand-new Snapshot and swaps it in; nothing ever mutates one in place,
// so a caller holding a reference always sees a consistent view.
type Snapshot struct {
	Tables      []*Table
	RefreshedAt time.Time

	byQualified map[string]*Table
	byName      map[string][]*Table // bare name → tables across schemas
}

// NormalizeIdentifier applies the shared identity rule for identifiers:
// trim, strip one pair of wrapping double quotes, lowercase. Quoted and
// unquoted spellings of the same name compare equal after normalization.
func NormalizeIdentifier(id string) string {
	id = strings.TrimSpace(id)
	if len(id) >= 2 && id[0] == '"' && id[len(id)-1] == '"' {
		id = id[1 : len(id)-1]
	}
	return strings.ToLower(id)
}

// NewSnapshot groups metadata rows into tables. Identifiers are normalized
// before grouping; within a table each column is kept once, first
// occurrence wins.
func NewSnapshot(rows []ColumnRow, refreshedAt time.Time) *Snapshot {
	snap := &Snapshot{
		RefreshedAt: refreshedAt,
		byQualified: make(map[string]*Table),
		byName:      make(map[string][]*Table),
	}

	for _, row := range rows {
		schemaName := NormalizeIdentifier(row.Schema)
		tableName := NormalizeIdentifier(row.Table)
		column := NormalizeIdentifier(row.Column)
		if tableName == "" {
			continue
		}

		qualified := schemaName + "." + tableName
		tbl, ok := snap.byQualified[qualified]
		if !ok {
			tbl = &Table{Schema: schemaName, Name: tableName, Qualified: qualified}
			snap.byQualified[qualified] = tbl
			snap.byName[tableName] = append(snap.byName[tableName], tbl)
			snap.Tables = append(snap.Tables, tbl)
		}

		if column != "" && !containsColumn(tbl.Columns, column) {
			tbl.Columns = append(tbl.Columns, column)
		}
	}

	return snap
}

func containsColumn(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}

// TableByQualified looks up "schema.name" after normalizing both parts.
func (s *Snapshot) TableByQualified(qualified string) *Table {
	parts := strings.SplitN(qualified, ".", 2)
	if len(parts) != 2 {
		return nil
	}
	key := NormalizeIdentifier(parts[0]) + "." + NormalizeIdentifier(parts[1])
	return s.byQualified[key]
}

// TablesByName returns every table with the given bare name, across all
// schemas, in metadata order.
func (s *Snapshot) TablesByName(name string) []*Table {
	return s.byName[NormalizeIdentifier(name)]
}

// ColumnsFor resolves the columns of a table reference. A reference with a
// dot is a qualified lookup; a bare name unions the columns of every
// same-named table, preserving per-table order and dropping duplicates.
func (s *Snapshot) ColumnsFor(ref string) []string {
	if strings.Contains(ref, ".") {
		if tbl := s.TableByQualified(ref); tbl != nil {
			return tbl.Columns
		}
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	for _, tbl := range s.TablesByName(ref) {
		for _, c := range tbl.Columns {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// AllColumns unions the columns of every table in the snapshot.
func (s *Snapshot) AllColumns() []string {
	var out []string
	seen := make(map[string]bool)
	for _, tbl := range s.Tables {
		for _, c := range tbl.Columns {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}
