// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgclient

import (
	"context"

	"github.com/cockroachdb/pgdriver/pkg/pgwire/pgerror"
	"github.com/cockroachdb/pgdriver/pkg/util/log"
)

// IsolationLevel names a transaction isolation level.
type IsolationLevel string

// The isolation levels the server accepts.
const (
	ReadUncommitted IsolationLevel = "READ UNCOMMITTED"
	ReadCommitted   IsolationLevel = "READ COMMITTED"
	RepeatableRead  IsolationLevel = "REPEATABLE READ"
	Serializable    IsolationLevel = "SERIALIZABLE"
)

func (l IsolationLevel) valid() bool {
	switch l {
	case ReadUncommitted, ReadCommitted, RepeatableRead, Serializable:
		return true
	}
	return false
}

// Txn is an open explicit transaction. Statements run through the Txn (or
// directly through the Conn, which is equivalent while the transaction is
// open) and the transaction ends with exactly one Commit or Rollback.
// Savepoints form a stack; Commit and Rollback are rejected while savepoints
// remain unreleased.
type Txn struct {
	conn       *Conn
	savepoints []string
	done       bool
}

// Begin opens an explicit transaction. Beginning while one is already open
// is a ProgrammingError; nested scopes use savepoints instead.
func (c *Conn) Begin(ctx context.Context) (*Txn, error) {
	var t *Txn
	err := c.withConn(ctx, func(ctx context.Context) error {
		if c.txn != nil && !c.txn.done {
			return pgerror.New(pgerror.ProgrammingError, "a transaction is already in progress")
		}
		if c.wire.TxStatus() != 'I' {
			return pgerror.New(pgerror.ProgrammingError,
				"the session is already inside a transaction block")
		}
		if _, err := c.runStmt(ctx, "BEGIN", nil); err != nil {
			return err
		}
		t = &Txn{conn: c}
		c.txn = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// RunTxn executes fn inside a transaction. The transaction commits when fn
// returns nil and rolls back when fn returns an error or panics.
func (c *Conn) RunTxn(ctx context.Context, fn func(ctx context.Context, txn *Txn) error) error {
	t, err := c.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if !t.done {
			if rbErr := t.Rollback(ctx); rbErr != nil {
				log.Warningf(ctx, "rollback failed: %v", rbErr)
			}
		}
	}()
	if err := fn(ctx, t); err != nil {
		return err
	}
	return t.Commit(ctx)
}

func (t *Txn) check() error {
	if t.done {
		return pgerror.New(pgerror.ProgrammingError, "transaction has already completed")
	}
	if t.conn.txn != t {
		return pgerror.New(pgerror.ProgrammingError, "transaction is no longer current")
	}
	return nil
}

// Query runs a statement inside the transaction.
func (t *Txn) Query(ctx context.Context, sql string, args ...interface{}) (*Rows, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	return t.conn.Query(ctx, sql, args...)
}

// QueryOne runs a statement inside the transaction, requiring exactly one
// row.
func (t *Txn) QueryOne(ctx context.Context, sql string, args ...interface{}) (Row, error) {
	if err := t.check(); err != nil {
		return Row{}, err
	}
	return t.conn.QueryOne(ctx, sql, args...)
}

// Exec runs a statement inside the transaction and returns the affected row
// count.
func (t *Txn) Exec(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	return t.conn.Exec(ctx, sql, args...)
}

// SetIsolationLevel changes the transaction's isolation level. The server
// only permits this before the transaction's first query.
func (t *Txn) SetIsolationLevel(ctx context.Context, level IsolationLevel) error {
	if err := t.check(); err != nil {
		return err
	}
	if !level.valid() {
		return pgerror.Newf(pgerror.ProgrammingError, "invalid isolation level %q", string(level))
	}
	_, err := t.conn.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL "+string(level))
	return err
}

// SetReadOnly changes the transaction's access mode. The server only permits
// this before the transaction's first query.
func (t *Txn) SetReadOnly(ctx context.Context, readOnly bool) error {
	if err := t.check(); err != nil {
		return err
	}
	mode := "READ WRITE"
	if readOnly {
		mode = "READ ONLY"
	}
	_, err := t.conn.Exec(ctx, "SET TRANSACTION "+mode)
	return err
}

// Savepoint establishes a named savepoint, pushing it on the stack. Names
// are restricted to letters, digits and underscores so they can be spliced
// into the statement safely.
func (t *Txn) Savepoint(ctx context.Context, name string) error {
	if err := t.check(); err != nil {
		return err
	}
	if !isSavepointName(name) {
		return pgerror.Newf(pgerror.ProgrammingError, "invalid savepoint name %q", name)
	}
	if _, err := t.conn.Exec(ctx, "SAVEPOINT "+name); err != nil {
		return err
	}
	t.savepoints = append(t.savepoints, name)
	return nil
}

// RollbackTo rolls the transaction back to the named savepoint, discarding
// it and every savepoint established after it. It also clears the failed
// state after an error inside the transaction.
func (t *Txn) RollbackTo(ctx context.Context, name string) error {
	if err := t.check(); err != nil {
		return err
	}
	idx := t.findSavepoint(name)
	if idx < 0 {
		return pgerror.Newf(pgerror.ProgrammingError, "no savepoint named %q", name)
	}
	if _, err := t.conn.Exec(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
		return err
	}
	t.savepoints = t.savepoints[:idx]
	return nil
}

// ReleaseSavepoint releases the named savepoint, discarding it and every
// savepoint established after it while keeping their effects.
func (t *Txn) ReleaseSavepoint(ctx context.Context, name string) error {
	if err := t.check(); err != nil {
		return err
	}
	idx := t.findSavepoint(name)
	if idx < 0 {
		return pgerror.Newf(pgerror.ProgrammingError, "no savepoint named %q", name)
	}
	if _, err := t.conn.Exec(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return err
	}
	t.savepoints = t.savepoints[:idx]
	return nil
}

func (t *Txn) findSavepoint(name string) int {
	for i := len(t.savepoints) - 1; i >= 0; i-- {
		if t.savepoints[i] == name {
			return i
		}
	}
	return -1
}

// Commit commits the transaction. Unreleased savepoints and a failed
// transaction state both make Commit a ProgrammingError; resolve them with
// ReleaseSavepoint, RollbackTo or Rollback first.
func (t *Txn) Commit(ctx context.Context) error {
	if err := t.check(); err != nil {
		return err
	}
	if n := len(t.savepoints); n > 0 {
		return pgerror.Newf(pgerror.ProgrammingError,
			"cannot commit with %d unreleased savepoint(s), innermost %q",
			n, t.savepoints[n-1])
	}
	if _, err := t.conn.Exec(ctx, "COMMIT"); err != nil {
		return err
	}
	t.finish()
	return nil
}

// Rollback aborts the transaction. It is the only operation permitted after
// an error put the transaction in the failed state.
func (t *Txn) Rollback(ctx context.Context) error {
	if err := t.check(); err != nil {
		return err
	}
	if _, err := t.conn.Exec(ctx, "ROLLBACK"); err != nil {
		return err
	}
	t.finish()
	return nil
}

func (t *Txn) finish() {
	t.done = true
	t.savepoints = nil
	t.conn.txn = nil
}
