package extract

import (
	"regexp"
	"strings"
)

// Classification is deliberately permissive: false positives only cost the
// user an extra candidate in a non-destructive view, while a false negative
// hides real SQL. All patterns are case-insensitive whole-word matches.
var (
	wsRun = regexp.MustCompile(`\s+`)

	// Statement-opening keywords. Text without one of these is not SQL.
	openingKeyword = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with|create|alter|drop)\b`)

	// Keywords that put an opening keyword into a SQL-shaped context.
	contextKeyword = regexp.MustCompile(`(?i)\b(from|into|values|set|where|join|table|returning)\b`)

	selectFrom = regexp.MustCompile(`(?i)\bselect\b.+\bfrom\b`)
)

// minSQLLength is measured after whitespace normalization.
const minSQLLength = 10

// LooksLikeSQL reports whether text is plausibly a SQL statement.
func LooksLikeSQL(text string) bool {
	norm := strings.TrimSpace(wsRun.ReplaceAllString(text, " "))
	if len(norm) < minSQLLength {
		return false
	}
	if !openingKeyword.MatchString(norm) {
		return false
	}
	return contextKeyword.MatchString(norm) || selectFrom.MatchString(norm)
}
