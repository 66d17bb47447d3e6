// Package sqlgen renders rule trees into SQL boolean expressions. The
// registry it builds plugs into the generic compiler; fragments carry
// their own bound arguments so renders stay pure and concatenation
// stays deterministic.
package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ruletree/ruletree/internal/tree"
)

// Dialect selects the placeholder style Rewrite finalizes to.
type Dialect int

const (
	// DialectPostgres numbers placeholders $1..$n.
	DialectPostgres Dialect = iota
	// DialectSQLite keeps bare ? placeholders.
	DialectSQLite
)

// dialectNames maps Dialect to configuration spellings.
var dialectNames = map[Dialect]string{
	DialectPostgres: "postgres",
	DialectSQLite:   "sqlite",
}

// String returns the string representation of the dialect.
func (d Dialect) String() string {
	if name, ok := dialectNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Dialect(%d)", d)
}

// ParseDialect resolves a configuration spelling to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	for d, name := range dialectNames {
		if name == s {
			return d, nil
		}
	}
	return DialectPostgres, fmt.Errorf("unknown sql dialect %q", s)
}

// Options controls how values reach the generated SQL.
type Options struct {
	// Parameterized emits ? placeholders and carries values in
	// Fragment.Args instead of inlining literals.
	Parameterized bool
	// Dialect selects the final placeholder style; see Rewrite.
	Dialect Dialect
}

// Fragment is a SQL expression plus the arguments bound to its
// placeholders, in order.
type Fragment struct {
	SQL  string
	Args []any
}

// Rewrite finalizes a fragment's placeholders for the dialect:
// $1..$n for Postgres, bare ? for SQLite. Question marks inside string
// literals are left alone.
func Rewrite(f Fragment, d Dialect) Fragment {
	if d != DialectPostgres || !strings.ContainsRune(f.SQL, '?') {
		return f
	}

	var b strings.Builder
	b.Grow(len(f.SQL) + len(f.Args))
	n := 0
	inString := false
	for i := 0; i < len(f.SQL); i++ {
		ch := f.SQL[i]
		switch {
		case ch == '\'':
			inString = !inString
			b.WriteByte(ch)
		case ch == '?' && !inString:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(ch)
		}
	}
	return Fragment{SQL: b.String(), Args: f.Args}
}

// mergeArgs concatenates argument lists in render order.
func mergeArgs(lists ...[]any) []any {
	var out []any
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// escapeString doubles single quotes for safe inlining.
func escapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// reservedIdents are common SQL keywords that need quoting when used
// as field names.
var reservedIdents = map[string]bool{
	"all": true, "and": true, "any": true, "as": true, "asc": true,
	"between": true, "by": true, "case": true, "check": true,
	"column": true, "default": true, "desc": true, "distinct": true,
	"else": true, "end": true, "exists": true, "from": true,
	"group": true, "having": true, "in": true, "index": true,
	"is": true, "join": true, "like": true, "limit": true, "not": true,
	"null": true, "offset": true, "on": true, "or": true,
	"order": true, "select": true, "table": true, "then": true,
	"to": true, "union": true, "unique": true, "user": true,
	"when": true, "where": true,
}

// quoteIdent quotes a field name only when it is reserved or contains
// characters outside the plain identifier set; plain names render bare.
// Dotted names are quoted per part.
func quoteIdent(name string) string {
	if strings.Contains(name, ".") {
		parts := strings.Split(name, ".")
		for i, p := range parts {
			parts[i] = quoteIdent(p)
		}
		return strings.Join(parts, ".")
	}
	if plainIdent(name) && !reservedIdents[strings.ToLower(name)] {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func plainIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// formatNumber renders a JSON number without a trailing ".0" for
// integral values.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// inlineLiteral formats a literal for direct embedding. Strings quote
// with '' doubling; date and datetime both render as DATE '...' and
// time as a bare quoted string, matching the generator this package
// descends from.
func inlineLiteral(v tree.Value) (string, error) {
	switch val := v.(type) {
	case *tree.StringValue:
		switch val.Type {
		case tree.TypeDate, tree.TypeDateTime:
			return "DATE '" + escapeString(val.Val) + "'", nil
		default:
			return "'" + escapeString(val.Val) + "'", nil
		}
	case *tree.NumberValue:
		return formatNumber(val.Val), nil
	case *tree.BoolValue:
		if val.Val {
			return "TRUE", nil
		}
		return "FALSE", nil
	default:
		return "", fmt.Errorf("cannot inline %T as a SQL literal", v)
	}
}

// boundValue extracts the Go value a parameterized literal binds.
func boundValue(v tree.Value) (any, error) {
	switch val := v.(type) {
	case *tree.StringValue:
		return val.Val, nil
	case *tree.NumberValue:
		return val.Val, nil
	case *tree.BoolValue:
		return val.Val, nil
	default:
		return nil, fmt.Errorf("cannot bind %T as a SQL argument", v)
	}
}

// isParenthesized reports whether the expression is already wrapped in
// one outer pair of parens. Parens inside string literals can defeat
// the scan; the failure mode is one redundant extra pair.
func isParenthesized(s string) bool {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return false
			}
		}
	}
	return depth == 0
}
