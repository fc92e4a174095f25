// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgerror

// PG error codes from:
// https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	// CodeUniqueViolationError represents violations of uniqueness
	// constraints.
	CodeUniqueViolationError = "23505"
	// CodeTransactionAbortedError signals that a statement was issued in the
	// context of a txn that's already aborted.
	CodeTransactionAbortedError = "25P02"
	// CodeFeatureNotSupportedError is also what the server reports when a
	// cached plan's result type changed under a prepared statement.
	CodeFeatureNotSupportedError = "0A000"
	// CodeInternalError is the catch-all for server internal errors.
	CodeInternalError = "XX000"
	// CodeSyntaxError represents malformed SQL.
	CodeSyntaxError = "42601"
	// CodeInvalidPasswordError is reported on authentication rejection.
	CodeInvalidPasswordError = "28P01"
	// CodeAdminShutdownError is reported when the server terminates the
	// session.
	CodeAdminShutdownError = "57P01"
)

// classMap drives SQLSTATE classification by the two-character class prefix.
// The mapping must stay total: anything absent falls back to DatabaseError in
// ClassifyCode, so no server error can escape as an unstructured failure.
var classMap = map[string]Kind{
	"08": OperationalError,  // connection exception
	"0A": NotSupportedError, // feature not supported
	"22": DataError,         // data exception
	"23": IntegrityError,    // integrity constraint violation
	"25": ProgrammingError,  // invalid transaction state
	"26": ProgrammingError,  // invalid SQL statement name
	"28": OperationalError,  // invalid authorization specification
	"2D": ProgrammingError,  // invalid transaction termination
	"34": ProgrammingError,  // invalid cursor name
	"3B": ProgrammingError,  // savepoint exception
	"3D": ProgrammingError,  // invalid catalog name
	"3F": ProgrammingError,  // invalid schema name
	"40": OperationalError,  // transaction rollback (serialization, deadlock)
	"42": ProgrammingError,  // syntax error or access rule violation
	"53": OperationalError,  // insufficient resources
	"54": OperationalError,  // program limit exceeded
	"57": OperationalError,  // operator intervention
	"58": InternalError,     // system error (external to the server proper)
	"F0": InternalError,     // configuration file error
	"XX": InternalError,     // internal error
}

// ClassifyCode maps a SQLSTATE to an error Kind by its class prefix. The
// mapping is deterministic and total: unknown classes report DatabaseError.
func ClassifyCode(code string) Kind {
	if len(code) < 2 {
		return DatabaseError
	}
	if kind, ok := classMap[code[:2]]; ok {
		return kind
	}
	return DatabaseError
}

// FromServer builds an Error out of the fields of an ErrorResponse message,
// classifying it by SQLSTATE. The server message text is preserved verbatim.
func FromServer(severity, code, message, detail, hint string) *Error {
	return &Error{
		Kind:     ClassifyCode(code),
		Code:     code,
		Severity: severity,
		Message:  message,
		Detail:   detail,
		Hint:     hint,
	}
}
