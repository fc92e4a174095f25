// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgclient

import (
	"strings"

	"github.com/cockroachdb/pgdriver/pkg/pgwire/pgerror"
)

// validatePlaceholders scans sql for $1..$n placeholders, skipping string
// literals, quoted identifiers, comments and dollar-quoted blocks, and checks
// that the placeholders form the contiguous range 1..nargs.
func validatePlaceholders(sql string, nargs int) error {
	seen := make(map[int]bool)
	max := 0

	i := 0
	for i < len(sql) {
		switch c := sql[i]; c {
		case '\'':
			i = skipQuoted(sql, i, '\'')
		case '"':
			i = skipQuoted(sql, i, '"')
		case '-':
			if i+1 < len(sql) && sql[i+1] == '-' {
				if nl := strings.IndexByte(sql[i:], '\n'); nl >= 0 {
					i += nl + 1
				} else {
					i = len(sql)
				}
			} else {
				i++
			}
		case '/':
			if i+1 < len(sql) && sql[i+1] == '*' {
				i = skipBlockComment(sql, i)
			} else {
				i++
			}
		case '$':
			if n, next, ok := scanPlaceholder(sql, i); ok {
				if n < 1 {
					return pgerror.Newf(pgerror.ProgrammingError, "invalid placeholder $%d", n)
				}
				seen[n] = true
				if n > max {
					max = n
				}
				i = next
			} else {
				i = skipDollarQuote(sql, i)
			}
		default:
			i++
		}
	}

	if max != nargs {
		return pgerror.Newf(pgerror.ProgrammingError,
			"statement uses %d parameters but %d were supplied", max, nargs)
	}
	for n := 1; n <= max; n++ {
		if !seen[n] {
			return pgerror.Newf(pgerror.ProgrammingError,
				"placeholder $%d is missing (highest is $%d)", n, max)
		}
	}
	return nil
}

// skipQuoted advances past a quoted region opened at i, honoring doubled
// quote escapes.
func skipQuoted(sql string, i int, quote byte) int {
	i++
	for i < len(sql) {
		if sql[i] == quote {
			if i+1 < len(sql) && sql[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return i
}

// skipBlockComment advances past a block comment opened at i. Block comments
// nest.
func skipBlockComment(sql string, i int) int {
	depth := 0
	for i < len(sql) {
		if i+1 < len(sql) && sql[i] == '/' && sql[i+1] == '*' {
			depth++
			i += 2
			continue
		}
		if i+1 < len(sql) && sql[i] == '*' && sql[i+1] == '/' {
			depth--
			i += 2
			if depth == 0 {
				return i
			}
			continue
		}
		i++
	}
	return i
}

// scanPlaceholder reads a $n placeholder at i. It reports false when the
// dollar sign opens something else (a dollar quote).
func scanPlaceholder(sql string, i int) (n, next int, ok bool) {
	j := i + 1
	for j < len(sql) && sql[j] >= '0' && sql[j] <= '9' {
		n = n*10 + int(sql[j]-'0')
		j++
	}
	if j == i+1 {
		return 0, i, false
	}
	return n, j, true
}

// skipDollarQuote advances past a $tag$ ... $tag$ region opened at i. A lone
// dollar sign that opens no quote advances by one.
func skipDollarQuote(sql string, i int) int {
	j := i + 1
	for j < len(sql) && (isTagChar(sql[j])) {
		j++
	}
	if j >= len(sql) || sql[j] != '$' {
		return i + 1
	}
	tag := sql[i : j+1] // "$tag$"
	end := strings.Index(sql[j+1:], tag)
	if end < 0 {
		return len(sql)
	}
	return j + 1 + end + len(tag)
}

func isTagChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// isSavepointName reports whether name is a valid savepoint identifier:
// letters, digits and underscores, not starting with a digit.
func isSavepointName(name string) bool {
	if name == "" {
		return false
	}
	if name[0] >= '0' && name[0] <= '9' {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isTagChar(name[i]) {
			return false
		}
	}
	return true
}
