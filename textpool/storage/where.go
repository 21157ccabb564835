package storage

import (
	"sort"
	"strings"

	"github.com/textpool/textpool/textpool/storage/sqlbuilder"
)

// Where maps a column to the values it may take. Values containing * or ?
// are wildcard patterns; the rest match exactly.
type Where map[string][]string

// IsWildcard reports whether v contains a * or ? wildcard.
func IsWildcard(v string) bool {
	return strings.ContainsAny(v, "*?")
}

// LikePattern translates a wildcard value into a LIKE pattern using \ as the
// escape character: * matches any run, ? a single character.
func LikePattern(v string) string {
	var sb strings.Builder
	sb.Grow(len(v) + 4)
	for _, r := range v {
		switch r {
		case '\\', '%', '_':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case '*':
			sb.WriteByte('%')
		case '?':
			sb.WriteByte('_')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// EscapeLike escapes LIKE metacharacters so s matches literally.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// textExpr renders the column so LIKE works on non-text types in every dialect.
func textExpr(c Column) string {
	if c.Type == ColText {
		return sqlbuilder.Ident(c.Name)
	}
	return "CAST(" + sqlbuilder.Ident(c.Name) + " AS TEXT)"
}

// buildWhere renders the WHERE clause for t. Columns unknown to the table
// are ignored. Within a column exact values and patterns are OR-ed; columns
// are AND-ed. A column whose values all fail type conversion matches
// nothing. An empty result means no filtering.
func buildWhere(b *sqlbuilder.Builder, a Adapter, t *Table, where Where) string {
	cols := make([]string, 0, len(where))
	for name := range where {
		if _, ok := t.Column(name); ok && len(where[name]) > 0 {
			cols = append(cols, name)
		}
	}
	if len(cols) == 0 {
		return ""
	}
	sort.Strings(cols)

	clauses := make([]string, 0, len(cols))
	for _, name := range cols {
		col, _ := t.Column(name)
		var exact []any
		var likes []string
		for _, v := range where[name] {
			if IsWildcard(v) {
				likes = append(likes, textExpr(col)+" "+a.LikeOperator()+" "+b.Arg(LikePattern(v))+` ESCAPE '\'`)
				continue
			}
			cv, err := convert(col, v)
			if err != nil || cv == nil {
				continue
			}
			exact = append(exact, cv)
		}

		var parts []string
		switch len(exact) {
		case 0:
		case 1:
			parts = append(parts, sqlbuilder.Ident(name)+" = "+b.Arg(exact[0]))
		default:
			parts = append(parts, sqlbuilder.Ident(name)+" IN ("+b.List(exact)+")")
		}
		parts = append(parts, likes...)

		switch len(parts) {
		case 0:
			clauses = append(clauses, "1 = 0")
		case 1:
			clauses = append(clauses, parts[0])
		default:
			clauses = append(clauses, "("+strings.Join(parts, " OR ")+")")
		}
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}
