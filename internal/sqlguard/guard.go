// Package sqlguard turns a raw model completion into a single read-only
// SELECT statement or rejects it.
//
// The guard is an allow-list on statement kind: the first keyword must be
// SELECT and nothing but terminators and whitespace may follow the first
// statement. It never rewrites a rejected statement into an accepted one.
package sqlguard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sqlassist/sqlassist/internal/apperr"
)

// ReadOnlyMessage is the user-facing text for every guard rejection.
const ReadOnlyMessage = "I can only answer with read-only queries"

var (
	ErrEmptyStatement   = errors.New("completion contains no SQL statement")
	ErrNotSelect        = errors.New("statement is not a SELECT")
	ErrStackedStatement = errors.New("completion contains more than one statement")
	ErrUnterminated     = errors.New("completion ends inside a quoted literal or comment")
)

// Dialect selects the quoting rules used to find statement boundaries. The
// values match the store driver names.
type Dialect string

const (
	// DialectSQLite quotes identifiers with "", `` and [].
	DialectSQLite Dialect = "sqlite3"
	// DialectDuckDB reads [ as a list literal and also has E'' and $$ strings.
	DialectDuckDB Dialect = "duckdb"
)

func (d Dialect) Valid() bool {
	return d == DialectSQLite || d == DialectDuckDB
}

var fenceLanguageTags = map[string]struct{}{
	"sql":        {},
	"sqlite":     {},
	"sqlite3":    {},
	"duckdb":     {},
	"postgres":   {},
	"postgresql": {},
	"psql":       {},
	"mysql":      {},
	"ansi":       {},
}

// Sanitize applies SanitizeDialect with the SQLite quoting rules.
func Sanitize(raw string) (string, error) {
	return SanitizeDialect(raw, DialectSQLite)
}

// SanitizeDialect applies, in order: fence stripping, reduction to the first
// statement, the SELECT allow-list and the stacking check. The accepted SQL
// has no trailing terminator. Input that ends inside a literal is rejected,
// since the store may read its quotes differently.
func SanitizeDialect(raw string, dialect Dialect) (string, error) {
	if !dialect.Valid() {
		dialect = DialectSQLite
	}
	text := skipLeadingComments(stripMarkdownFence(raw))

	end, open := firstTerminator(text, dialect)
	statement, rest := text, ""
	if end >= 0 {
		statement, rest = text[:end], text[end+1:]
	}
	statement = strings.TrimSpace(statement)
	if statement == "" {
		return "", reject(ErrEmptyStatement)
	}

	keyword := leadingKeyword(statement)
	if !strings.EqualFold(keyword, "SELECT") {
		return "", reject(fmt.Errorf("%w: leading keyword %q", ErrNotSelect, describeKeyword(keyword, statement)))
	}

	if open {
		return "", reject(ErrUnterminated)
	}
	if hasTrailingStatement(rest) {
		return "", reject(ErrStackedStatement)
	}
	return statement, nil
}

func reject(cause error) error {
	return apperr.Wrap(apperr.DisallowedOperation, ReadOnlyMessage, cause)
}

func stripMarkdownFence(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		body := strings.TrimPrefix(trimmed, "```")
		body = stripFenceLanguage(body)
		if idx := strings.Index(body, "```"); idx >= 0 {
			body = body[:idx]
		}
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
}

func stripFenceLanguage(body string) string {
	if idx := strings.IndexByte(body, '\n'); idx >= 0 {
		tag := strings.TrimSpace(body[:idx])
		if tag == "" || isFenceLanguage(tag) {
			return body[idx+1:]
		}
	}
	word := body
	if idx := strings.IndexAny(body, " \t\r\n"); idx >= 0 {
		word = body[:idx]
	}
	if isFenceLanguage(word) {
		return body[len(word):]
	}
	return body
}

func isFenceLanguage(tag string) bool {
	_, ok := fenceLanguageTags[strings.ToLower(tag)]
	return ok
}

func skipLeadingComments(text string) string {
	for {
		text = strings.TrimSpace(text)
		switch {
		case strings.HasPrefix(text, "--"):
			idx := strings.IndexByte(text, '\n')
			if idx < 0 {
				return ""
			}
			text = text[idx+1:]
		case strings.HasPrefix(text, "/*"):
			idx := strings.Index(text[2:], "*/")
			if idx < 0 {
				return ""
			}
			text = text[idx+4:]
		default:
			return text
		}
	}
}

// firstTerminator returns the byte offset of the first ';' outside string
// literals, quoted identifiers and comments, or -1. open reports that the
// text ended inside anything but a line comment.
func firstTerminator(text string, dialect Dialect) (end int, open bool) {
	duck := dialect == DialectDuckDB
	for i := 0; i < len(text); i++ {
		c := text[i]
		var closing int
		switch {
		case c == ';':
			return i, false
		case c == '\'':
			if duck && isEscapeStringPrefix(text, i) {
				closing = closeEscapeString(text, i+1)
			} else {
				closing = closeQuoted(text, i+1, '\'')
			}
		case c == '"':
			closing = closeQuoted(text, i+1, '"')
		case c == '`' && !duck:
			closing = strings.IndexByte(text[i+1:], '`') + i + 1
		case c == '[' && !duck:
			closing = strings.IndexByte(text[i+1:], ']') + i + 1
		case c == '$' && duck:
			tag, ok := dollarTag(text, i)
			if !ok {
				continue
			}
			idx := strings.Index(text[i+len(tag):], tag)
			if idx < 0 {
				return -1, true
			}
			i += len(tag) + idx + len(tag) - 1
			continue
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			idx := strings.IndexByte(text[i:], '\n')
			if idx < 0 {
				return -1, false
			}
			i += idx
			continue
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			idx := strings.Index(text[i+2:], "*/")
			if idx < 0 {
				return -1, true
			}
			i += idx + 3
			continue
		default:
			continue
		}
		if closing <= i {
			return -1, true
		}
		i = closing
	}
	return -1, false
}

// closeQuoted returns the offset of the quote ending a literal that starts at
// from, treating a doubled quote as an escape, or -1.
func closeQuoted(text string, from int, quote byte) int {
	for i := from; i < len(text); i++ {
		if text[i] != quote {
			continue
		}
		if i+1 < len(text) && text[i+1] == quote {
			i++
			continue
		}
		return i
	}
	return -1
}

// closeEscapeString is closeQuoted for E'...' where a backslash escapes the
// next byte.
func closeEscapeString(text string, from int) int {
	for i := from; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case '\'':
			if i+1 < len(text) && text[i+1] == '\'' {
				i++
				continue
			}
			return i
		}
	}
	return -1
}

func isEscapeStringPrefix(text string, quote int) bool {
	if quote == 0 || (text[quote-1] != 'E' && text[quote-1] != 'e') {
		return false
	}
	return quote == 1 || !isKeywordByte(text[quote-2])
}

// dollarTag reads $$ or $name$ at start. Positional parameters such as $1 and
// identifiers containing $ are not tags.
func dollarTag(text string, start int) (string, bool) {
	if start > 0 && isKeywordByte(text[start-1]) {
		return "", false
	}
	j := start + 1
	for j < len(text) && (text[j] == '_' || (text[j] >= 'a' && text[j] <= 'z') || (text[j] >= 'A' && text[j] <= 'Z') || (j > start+1 && text[j] >= '0' && text[j] <= '9')) {
		j++
	}
	if j >= len(text) || text[j] != '$' {
		return "", false
	}
	return text[start : j+1], true
}

func hasTrailingStatement(rest string) bool {
	for _, r := range rest {
		switch r {
		case ' ', '\t', '\r', '\n', ';':
			continue
		default:
			return true
		}
	}
	return false
}

func leadingKeyword(statement string) string {
	end := 0
	for end < len(statement) && isKeywordByte(statement[end]) {
		end++
	}
	return statement[:end]
}

func isKeywordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func describeKeyword(keyword, statement string) string {
	if keyword != "" {
		return strings.ToUpper(keyword)
	}
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return ""
	}
	first := fields[0]
	if len(first) > 16 {
		first = first[:16]
	}
	return first
}
