package db

import (
	"strconv"
	"strings"
)

// BindStyle is the placeholder syntax a driver understands.
type BindStyle int

const (
	// BindDollar is PostgreSQL numbered placeholders: $1, $2, ...
	BindDollar BindStyle = iota
	// BindQuestion is positional '?' placeholders (MySQL).
	BindQuestion
	// BindOrdinal is SQLite's ?NNN form. SQLite reads $1 as a named
	// parameter whose index depends on the order of first appearance; ?1 is
	// always argument one.
	BindOrdinal
)

// Rebind rewrites a $N query for style.
//
// For BindQuestion every $N becomes '?' and the argument list is reordered
// to match, so a placeholder that appears twice consumes its argument twice.
// For BindOrdinal $N becomes ?N and args are untouched. Placeholders inside
// single-quoted literals are left alone. BindDollar queries are returned
// unchanged.
func Rebind(style BindStyle, query string, args []any) (string, []any) {
	if style == BindDollar || !strings.Contains(query, "$") {
		return query, args
	}

	var b strings.Builder
	b.Grow(len(query))
	out := args
	if style == BindQuestion {
		out = make([]any, 0, len(args))
	}

	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '\'' {
			inQuote = !inQuote
		}
		if c != '$' || inQuote {
			b.WriteByte(c)
			continue
		}

		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+1 {
			b.WriteByte(c)
			continue
		}

		n, err := strconv.Atoi(query[i+1 : j])
		if err != nil || n < 1 || n > len(args) {
			// Leave it for the driver to reject.
			b.WriteString(query[i:j])
			i = j - 1
			continue
		}

		if style == BindOrdinal {
			b.WriteByte('?')
			b.WriteString(query[i+1 : j])
		} else {
			b.WriteByte('?')
			out = append(out, args[n-1])
		}
		i = j - 1
	}

	return b.String(), out
}
