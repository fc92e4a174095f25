// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgerror

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestClassifyCode(t *testing.T) {
	testCases := []struct {
		code string
		want Kind
	}{
		{"08006", OperationalError},
		{"0A000", NotSupportedError},
		{"22012", DataError},
		{"23505", IntegrityError},
		{"25P02", ProgrammingError},
		{"26000", ProgrammingError},
		{"28P01", OperationalError},
		{"2D000", ProgrammingError},
		{"3B001", ProgrammingError},
		{"40001", OperationalError},
		{"42601", ProgrammingError},
		{"42P01", ProgrammingError},
		{"53200", OperationalError},
		{"54001", OperationalError},
		{"57P01", OperationalError},
		{"58030", InternalError},
		{"F0000", InternalError},
		{"XX000", InternalError},
		// Anything unmapped stays a DatabaseError, never a panic.
		{"P0001", DatabaseError},
		{"", DatabaseError},
		{"9", DatabaseError},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.want, ClassifyCode(tc.code), "code %q", tc.code)
	}
}

func TestFromServer(t *testing.T) {
	e := FromServer("ERROR", "23505", `duplicate key value violates unique constraint "users_pkey"`,
		"Key (id)=(1) already exists.", "")
	require.Equal(t, IntegrityError, e.Kind)
	require.Equal(t, "23505", e.Code)
	require.Contains(t, e.Error(), "SQLSTATE 23505")
	require.Contains(t, FullError(e), "DETAIL:")
}

func TestWrappingPreservesKind(t *testing.T) {
	base := New(OperationalError, "connection reset")
	wrapped := Wrapf(base, OperationalError, "during query")
	require.Equal(t, OperationalError, GetKind(wrapped))
	require.True(t, HasKind(wrapped, OperationalError))

	// Errors that never passed through this package classify as the base kind.
	require.Equal(t, DatabaseError, GetKind(errors.New("boom")))
	require.Equal(t, "", GetSQLState(errors.New("boom")))
}

func TestWrapRetainsCause(t *testing.T) {
	cause := errors.New("broken pipe")
	err := Wrap(cause, OperationalError, "write")
	require.True(t, errors.Is(err, cause))
	require.Equal(t, OperationalError, GetKind(err))
	require.NoError(t, Wrap(nil, OperationalError, "x"))
}

func TestKindString(t *testing.T) {
	require.Equal(t, "IntegrityError", IntegrityError.String())
	require.Equal(t, "DatabaseError", DatabaseError.String())
}
