// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgclient

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidatePlaceholders(t *testing.T) {
	testCases := []struct {
		sql   string
		nargs int
		ok    bool
	}{
		{"SELECT 1", 0, true},
		{"SELECT $1", 1, true},
		{"SELECT $1, $2, $1", 2, true},
		{"SELECT $1 + $2", 1, false},
		{"SELECT $1", 2, false},
		{"SELECT $1, $3", 3, false}, // $2 missing
		{"SELECT $0", 0, false},
		// Placeholders inside literals, identifiers and comments don't count.
		{"SELECT '$1'", 0, true},
		{"SELECT 'it''s $1' || $1", 1, true},
		{`SELECT "$1" FROM t`, 0, true},
		{"SELECT 1 -- uses $1\n", 0, true},
		{"SELECT 1 -- trailing $9", 0, true},
		{"SELECT /* $1 /* nested $2 */ */ $1", 1, true},
		{"SELECT $$ not $1 $$", 0, true},
		{"SELECT $body$ not $1 $body$", 0, true},
		{"SELECT $tag$ unterminated $1", 0, true},
		{"SELECT $body$ $1 $body$, $1", 1, true},
		// A lone dollar sign is not a placeholder.
		{"SELECT amount$ FROM t", 0, true},
	}
	for _, tc := range testCases {
		err := validatePlaceholders(tc.sql, tc.nargs)
		if tc.ok {
			require.NoError(t, err, "sql %q with %d args", tc.sql, tc.nargs)
		} else {
			require.Error(t, err, "sql %q with %d args", tc.sql, tc.nargs)
		}
	}
}

func TestIsSavepointName(t *testing.T) {
	require.True(t, isSavepointName("sp1"))
	require.True(t, isSavepointName("retry_point"))
	require.True(t, isSavepointName("_x"))
	require.False(t, isSavepointName(""))
	require.False(t, isSavepointName("1sp"))
	require.False(t, isSavepointName("sp one"))
	require.False(t, isSavepointName("sp;drop"))
	require.False(t, isSavepointName(`sp"quoted`))
}
