// Package splitter splits raw SQL text into individual statements.
//
// The scanner is a single-pass lexer that tracks just enough state to know
// whether a semicolon is a real statement terminator: single- and
// double-quoted strings (with doubled-quote escapes), line comments, nesting
// block comments, and dollar-quoted blocks ($tag$ ... $tag$). It never needs
// a full SQL grammar and never fails on malformed input; an unterminated
// quote or comment is implicitly closed at end of input.
package splitter

import "strings"

// Statement is one boundary-delimited slice of a SQL document.
// Start and End are byte offsets of the trimmed content within the original
// source, and Content is source[Start:End].
type Statement struct {
	Start   int
	End     int
	Content string
}

// Split scans source left to right and returns its statements in order.
// The raw (pre-trim) segments partition the source exactly: every byte
// belongs to one segment, and segment boundaries fall on top-level
// semicolons or end of input. Segments that are empty after stripping
// comments, whitespace, and terminators are discarded.
func Split(source string) []Statement {
	var stmts []Statement
	segStart := 0

	var (
		inSingle  bool
		inDouble  bool
		inLine    bool
		blockDep  int
		inDollar  bool
		dollarTag string
	)

	flush := func(end int) {
		raw := source[segStart:end]
		if stmt, ok := trimSegment(raw, segStart); ok {
			stmts = append(stmts, stmt)
		}
		segStart = end
	}

	i := 0
	for i < len(source) {
		c := source[i]

		switch {
		case inLine:
			if c == '\n' {
				inLine = false
			}
			i++

		case blockDep > 0:
			// Block comments nest.
			if c == '*' && i+1 < len(source) && source[i+1] == '/' {
				blockDep--
				i += 2
			} else if c == '/' && i+1 < len(source) && source[i+1] == '*' {
				blockDep++
				i += 2
			} else {
				i++
			}

		case inSingle:
			if c == '\'' {
				if i+1 < len(source) && source[i+1] == '\'' {
					i += 2 // escaped quote
					continue
				}
				inSingle = false
			}
			i++

		case inDouble:
			if c == '"' {
				if i+1 < len(source) && source[i+1] == '"' {
					i += 2
					continue
				}
				inDouble = false
			}
			i++

		case inDollar:
			if c == '$' && hasTagAt(source, i, dollarTag) {
				inDollar = false
				i += len(dollarTag) + 2
			} else {
				i++
			}

		default:
			switch c {
			case '-':
				if i+1 < len(source) && source[i+1] == '-' {
					inLine = true
					i += 2
				} else {
					i++
				}
			case '/':
				if i+1 < len(source) && source[i+1] == '*' {
					blockDep = 1
					i += 2
				} else {
					i++
				}
			case '\'':
				inSingle = true
				i++
			case '"':
				inDouble = true
				i++
			case '$':
				if tag, ok := scanDollarTag(source, i); ok {
					inDollar = true
					dollarTag = tag
					i += len(tag) + 2
				} else {
					// A lone $ (positional parameter, money, ...) is an
					// ordinary character.
					i++
				}
			case ';':
				i++
				flush(i)
			default:
				i++
			}
		}
	}

	if segStart < len(source) {
		flush(len(source))
	}

	return stmts
}

// scanDollarTag checks whether source[i:] opens a dollar-quote delimiter
// $tag$ where tag is a possibly empty identifier. It returns the tag without
// the surrounding dollar signs.
func scanDollarTag(source string, i int) (string, bool) {
	j := i + 1
	for j < len(source) && isTagChar(source[j]) {
		j++
	}
	if j < len(source) && source[j] == '$' {
		return source[i+1 : j], true
	}
	return "", false
}

// hasTagAt reports whether the closing delimiter $tag$ starts at offset i.
func hasTagAt(source string, i int, tag string) bool {
	end := i + len(tag) + 2
	if end > len(source) {
		return false
	}
	return source[i+1:end-1] == tag && source[end-1] == '$'
}

func isTagChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// trimSegment trims a raw segment and decides whether it holds an actual
// statement. Leading comments and whitespace are trivia and stay outside the
// statement span; segments that contain nothing but comments, whitespace, and
// terminators are dropped.
func trimSegment(raw string, rawStart int) (Statement, bool) {
	lead := leadingTrivia(raw)
	trail := len(raw)
	for trail > lead && isSpace(raw[trail-1]) {
		trail--
	}
	content := raw[lead:trail]
	if content == "" {
		return Statement{}, false
	}

	if isCommentOnly(content) {
		return Statement{}, false
	}

	return Statement{
		Start:   rawStart + lead,
		End:     rawStart + trail,
		Content: content,
	}, true
}

// leadingTrivia returns the number of bytes of whitespace, line comments,
// and block comments before the first SQL token of s.
func leadingTrivia(s string) int {
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case isSpace(c):
			i++
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			i += 2
			for i < len(s) && s[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			depth := 1
			i += 2
			for i < len(s) && depth > 0 {
				if s[i] == '*' && i+1 < len(s) && s[i+1] == '/' {
					depth--
					i += 2
				} else if s[i] == '/' && i+1 < len(s) && s[i+1] == '*' {
					depth++
					i += 2
				} else {
					i++
				}
			}
		default:
			return i
		}
	}
	return i
}

// isCommentOnly reports whether s contains only comments, whitespace, and
// semicolons once line and block comments are stripped.
func isCommentOnly(s string) bool {
	depth := 0
	inLine := false
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case inLine:
			if c == '\n' {
				inLine = false
			}
			i++
		case depth > 0:
			if c == '*' && i+1 < len(s) && s[i+1] == '/' {
				depth--
				i += 2
			} else if c == '/' && i+1 < len(s) && s[i+1] == '*' {
				depth++
				i += 2
			} else {
				i++
			}
		default:
			if c == '-' && i+1 < len(s) && s[i+1] == '-' {
				inLine = true
				i += 2
				continue
			}
			if c == '/' && i+1 < len(s) && s[i+1] == '*' {
				depth = 1
				i += 2
				continue
			}
			if c != ';' && !isSpace(c) {
				return false
			}
			i++
		}
	}
	return true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

// Reassemble joins statements back with the discarded text between them.
// It exists mostly as a sanity check for the splitter's boundary guarantees
// and for tools that want to echo the original document.
func Reassemble(source string, stmts []Statement) string {
	var b strings.Builder
	prev := 0
	for _, s := range stmts {
		b.WriteString(source[prev:s.Start])
		b.WriteString(s.Content)
		prev = s.End
	}
	b.WriteString(source[prev:])
	return b.String()
}
