// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgerror

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind is the DB-API style classification of a driver error. Every error the
// driver surfaces carries exactly one Kind; DatabaseError is the base of the
// taxonomy and the fallback for anything unclassified.
type Kind int

// The error taxonomy, mirroring DB-API conventions.
const (
	// DatabaseError is the base kind: a server error we could not classify
	// more precisely.
	DatabaseError Kind = iota
	// InterfaceError indicates a client-side or protocol-level fault: a
	// desynchronized session, a malformed frame, or reuse of a closed
	// connection.
	InterfaceError
	// DataError indicates an encode/decode failure, overflow, or malformed
	// literal.
	DataError
	// OperationalError indicates connection loss, authentication failure, or
	// a timeout.
	OperationalError
	// IntegrityError indicates a constraint violation.
	IntegrityError
	// InternalError indicates a server-reported internal fault.
	InternalError
	// ProgrammingError indicates SQL syntax errors, wrong parameter arity,
	// cardinality violations, or invalid transaction-state operations.
	ProgrammingError
	// NotSupportedError indicates an unmapped type OID or an unsupported
	// protocol feature.
	NotSupportedError
)

var kindNames = [...]string{
	DatabaseError:     "DatabaseError",
	InterfaceError:    "InterfaceError",
	DataError:         "DataError",
	OperationalError:  "OperationalError",
	IntegrityError:    "IntegrityError",
	InternalError:     "InternalError",
	ProgrammingError:  "ProgrammingError",
	NotSupportedError: "NotSupportedError",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a driver error. For server-sourced errors it carries the SQLSTATE
// and the server message text verbatim; for client-side errors Code is empty.
type Error struct {
	Kind     Kind
	Code     string // five-character SQLSTATE, empty if client-sourced
	Severity string
	Message  string
	Detail   string
	Hint     string

	// Optional server-reported context.
	SchemaName     string
	TableName      string
	ColumnName     string
	ConstraintName string

	cause error
}

var _ error = (*Error)(nil)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (SQLSTATE %s)", e.Message, e.Code)
	}
	return e.Message
}

// Unwrap makes Error compatible with errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// FullError can be called to return the verbose error including message,
// detail and hint, the way psql renders server errors.
func FullError(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	s := e.Error()
	if e.Detail != "" {
		s += "\nDETAIL: " + e.Detail
	}
	if e.Hint != "" {
		s += "\nHINT: " + e.Hint
	}
	return s
}

// New creates a client-sourced error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates a client-sourced error of the given kind with formatting.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrapf wraps err with a kind and a message prefix. The original error
// remains reachable through errors.Is/As.
func Wrapf(err error, kind Kind, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	prefix := fmt.Sprintf(format, args...)
	return &Error{
		Kind:    kind,
		Message: prefix + ": " + err.Error(),
		cause:   errors.WithStackDepth(err, 1),
	}
}

// Wrap is like Wrapf without formatting. Only the kind is attached if the
// message is empty.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	if msg == "" {
		return &Error{Kind: kind, Message: err.Error(), cause: errors.WithStackDepth(err, 1)}
	}
	return Wrapf(err, kind, "%s", msg)
}

// GetKind extracts the Kind from an error, unwinding wrapping as needed.
// Errors that never passed through this package report DatabaseError.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return DatabaseError
}

// GetSQLState extracts the SQLSTATE from an error, or "" if the error is not
// server-sourced.
func GetSQLState(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasKind reports whether err carries the given kind.
func HasKind(err error, kind Kind) bool {
	return GetKind(err) == kind
}
