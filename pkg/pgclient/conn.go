// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package pgclient is the public driver surface: a single-connection
// PostgreSQL client with implicit statement caching, binary parameter and
// result encoding, and explicit transaction control. One Conn serializes its
// operations; use one Conn per goroutine or guard it externally.
package pgclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/pgdriver/pkg/pgtype"
	"github.com/cockroachdb/pgdriver/pkg/pgwire"
	"github.com/cockroachdb/pgdriver/pkg/pgwire/pgerror"
	"github.com/cockroachdb/pgdriver/pkg/pgwire/pgwirebase"
	"github.com/cockroachdb/pgdriver/pkg/util/log"
	"github.com/lib/pq/oid"
	"golang.org/x/sync/semaphore"
)

// Conn is a single client connection. All operations are serialized: a
// second operation started while one is in flight waits its turn (or its
// context's expiry).
type Conn struct {
	cfg  Config
	wire *pgwire.Conn
	sem  *semaphore.Weighted

	stmts       *stmtCache
	stmtCounter int

	// txn is the currently open explicit transaction, nil outside one.
	txn *Txn
}

// Statement describes an explicitly prepared statement.
type Statement struct {
	Name      string
	SQL       string
	ParamOids []oid.Oid
	Columns   []string
}

// ServerInfo is a snapshot of session metadata.
type ServerInfo struct {
	ServerVersion     string
	BackendPID        uint32
	Parameters        map[string]string
	InTransaction     bool
	TransactionFailed bool
	CachedStatements  int
	Closed            bool
}

// Connect establishes and authenticates a connection.
func Connect(ctx context.Context, cfg Config) (*Conn, error) {
	ctx = logtags.AddTag(ctx, "pg", cfg.Addr)
	wire, err := pgwire.Connect(ctx, cfg.wireConfig())
	if err != nil {
		return nil, err
	}
	return newConn(wire, cfg), nil
}

func newConn(wire *pgwire.Conn, cfg Config) *Conn {
	return &Conn{
		cfg:   cfg,
		wire:  wire,
		sem:   semaphore.NewWeighted(1),
		stmts: newStmtCache(cfg.cacheSize()),
	}
}

// withConn serializes an operation against the connection. The context
// governs both the wait for the connection and the operation itself.
func (c *Conn) withConn(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx = logtags.AddTag(ctx, "pg", c.cfg.Addr)
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return pgerror.Wrap(err, pgerror.OperationalError, "waiting for connection")
	}
	defer c.sem.Release(1)
	if c.wire.IsClosed() {
		return pgerror.New(pgerror.InterfaceError, "connection is closed")
	}
	return fn(ctx)
}

// Query runs a parameterized statement and returns all of its rows.
func (c *Conn) Query(ctx context.Context, sql string, args ...interface{}) (*Rows, error) {
	var rows *Rows
	err := c.withConn(ctx, func(ctx context.Context) error {
		res, err := c.runStmt(ctx, sql, args)
		if err != nil {
			return err
		}
		rows = newRows(res)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// QueryOne runs a parameterized statement that must return exactly one row.
// Zero rows or more than one row is a ProgrammingError.
func (c *Conn) QueryOne(ctx context.Context, sql string, args ...interface{}) (Row, error) {
	rows, err := c.Query(ctx, sql, args...)
	if err != nil {
		return Row{}, err
	}
	switch rows.Len() {
	case 1:
		return rows.Row(0), nil
	case 0:
		return Row{}, pgerror.New(pgerror.ProgrammingError, "query returned no rows, expected one")
	default:
		return Row{}, pgerror.Newf(pgerror.ProgrammingError,
			"query returned %d rows, expected one", rows.Len())
	}
}

// Exec runs a parameterized statement and returns the affected row count.
func (c *Conn) Exec(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	var affected int64
	err := c.withConn(ctx, func(ctx context.Context) error {
		res, err := c.runStmt(ctx, sql, args)
		if err != nil {
			return err
		}
		affected = res.RowsAffected
		return nil
	})
	return affected, err
}

// ExecBatch runs the statements through the simple query protocol, pipelined
// in a single write. Statements take no parameters. Every statement's
// response cycle is consumed even after a failure; the first error is
// returned along with the affected counts of the statements that ran.
func (c *Conn) ExecBatch(ctx context.Context, stmts []string) ([]int64, error) {
	if len(stmts) == 0 {
		return nil, nil
	}
	var counts []int64
	err := c.withConn(ctx, func(ctx context.Context) error {
		for _, sql := range stmts {
			if err := c.checkTxnGate(sql); err != nil {
				return err
			}
		}
		for _, sql := range stmts {
			c.wire.SendSimpleQuery(sql)
		}
		if err := c.wire.Flush(ctx); err != nil {
			return err
		}
		var firstErr error
		counts = make([]int64, 0, len(stmts))
		for range stmts {
			res, err := c.wire.ReadCycle(ctx)
			if err != nil {
				return err
			}
			counts = append(counts, res.RowsAffected)
			if res.Err != nil && firstErr == nil {
				firstErr = res.Err
			}
		}
		return firstErr
	})
	return counts, err
}

// Prepare parses a statement server-side, describing its parameter types and
// result columns, and pins it in the statement cache. Later Query and Exec
// calls with the same SQL reuse it.
func (c *Conn) Prepare(ctx context.Context, sql string) (*Statement, error) {
	var out *Statement
	err := c.withConn(ctx, func(ctx context.Context) error {
		if err := c.checkTxnGate(sql); err != nil {
			return err
		}
		name := c.nextStmtName()
		c.sendPendingCloses()
		c.wire.SendParse(name, sql, nil)
		c.wire.SendDescribe(pgwirebase.PrepareStatement, name)
		c.wire.SendSync()
		if err := c.wire.Flush(ctx); err != nil {
			return err
		}
		res, err := c.wire.ReadCycle(ctx)
		if err != nil {
			return err
		}
		if res.Err != nil {
			return res.Err
		}
		c.stmts.add(&preparedStmt{name: name, sql: sql, paramOids: res.ParamOids})
		cols := make([]string, len(res.Desc))
		for i, d := range res.Desc {
			cols[i] = d.Name
		}
		out = &Statement{Name: name, SQL: sql, ParamOids: res.ParamOids, Columns: cols}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Ping verifies the connection is alive by running an empty statement
// through a full round trip.
func (c *Conn) Ping(ctx context.Context) error {
	return c.withConn(ctx, func(ctx context.Context) error {
		c.wire.SendSimpleQuery(";")
		if err := c.wire.Flush(ctx); err != nil {
			return err
		}
		res, err := c.wire.ReadCycle(ctx)
		if err != nil {
			return err
		}
		return res.Err
	})
}

// Info returns a snapshot of session metadata. It does not touch the server.
func (c *Conn) Info() ServerInfo {
	status := c.wire.TxStatus()
	return ServerInfo{
		ServerVersion:     c.wire.ParameterStatus("server_version"),
		BackendPID:        c.wire.BackendPID(),
		Parameters:        c.wire.ParameterStatuses(),
		InTransaction:     status == 'T' || status == 'E',
		TransactionFailed: status == 'E',
		CachedStatements:  c.stmts.len(),
		Closed:            c.wire.IsClosed(),
	}
}

// ClearStatementCache closes every cached prepared statement server-side.
func (c *Conn) ClearStatementCache(ctx context.Context) error {
	return c.withConn(ctx, func(ctx context.Context) error {
		c.stmts.clear()
		names := c.stmts.takePendingClose()
		if len(names) == 0 {
			return nil
		}
		for _, name := range names {
			c.wire.SendClose(pgwirebase.PrepareStatement, name)
		}
		c.wire.SendSync()
		if err := c.wire.Flush(ctx); err != nil {
			return err
		}
		res, err := c.wire.ReadCycle(ctx)
		if err != nil {
			return err
		}
		return res.Err
	})
}

// IsClosed reports whether the connection can no longer be used.
func (c *Conn) IsClosed() bool {
	return c.wire.IsClosed()
}

// Close terminates the connection. It is idempotent.
func (c *Conn) Close(ctx context.Context) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return pgerror.Wrap(err, pgerror.OperationalError, "waiting for connection")
	}
	defer c.sem.Release(1)
	return c.wire.Close(ctx)
}

// runStmt executes one parameterized statement through the extended-query
// protocol: a single flush carrying Parse (when uncached), Bind, Describe,
// Execute and Sync, then one response cycle. The caller holds the
// connection.
func (c *Conn) runStmt(
	ctx context.Context, sql string, args []interface{},
) (*pgwire.CycleResult, error) {
	if err := c.checkTxnGate(sql); err != nil {
		return nil, err
	}
	if err := validatePlaceholders(sql, len(args)); err != nil {
		return nil, err
	}

	if stmt, ok := c.stmts.get(sql); ok {
		res, err := c.bindAndRun(ctx, stmt.name, stmt.paramOids, args)
		if err != nil {
			return nil, err
		}
		if res.Err == nil {
			return res, nil
		}
		// A schema change under a cached statement surfaces as 0A000
		// ("cached plan must not change result type"). Drop the statement
		// and reparse once. Any other server error surfaces as the
		// operation's failure, same as on the uncached path below.
		if pgerror.GetSQLState(res.Err) != pgerror.CodeFeatureNotSupportedError {
			return nil, res.Err
		}
		log.VEventf(ctx, 1, "cached statement %s invalidated (%v), reparsing", stmt.name, res.Err)
		c.stmts.evict(sql)
	}

	params, paramOids, err := encodeArgs(args, nil)
	if err != nil {
		return nil, err
	}
	name := ""
	if c.stmts.enabled() {
		name = c.nextStmtName()
	}
	c.sendPendingCloses()
	c.wire.SendParse(name, sql, paramOids)
	c.wire.SendBind("", name, params)
	c.wire.SendDescribe(pgwirebase.PreparePortal, "")
	c.wire.SendExecute("", 0)
	c.wire.SendSync()
	if err := c.wire.Flush(ctx); err != nil {
		return nil, err
	}
	res, err := c.wire.ReadCycle(ctx)
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if name != "" {
		// Later executions must encode parameters against the same types the
		// Parse declared, so the declared OIDs ride along in the cache.
		c.stmts.add(&preparedStmt{name: name, sql: sql, paramOids: paramOids})
	}
	return res, nil
}

// bindAndRun executes against an existing prepared statement.
func (c *Conn) bindAndRun(
	ctx context.Context, name string, serverOids []oid.Oid, args []interface{},
) (*pgwire.CycleResult, error) {
	params, _, err := encodeArgs(args, serverOids)
	if err != nil {
		return nil, err
	}
	c.sendPendingCloses()
	c.wire.SendBind("", name, params)
	c.wire.SendDescribe(pgwirebase.PreparePortal, "")
	c.wire.SendExecute("", 0)
	c.wire.SendSync()
	if err := c.wire.Flush(ctx); err != nil {
		return nil, err
	}
	return c.wire.ReadCycle(ctx)
}

func (c *Conn) sendPendingCloses() {
	for _, name := range c.stmts.takePendingClose() {
		c.wire.SendClose(pgwirebase.PrepareStatement, name)
	}
}

func (c *Conn) nextStmtName() string {
	c.stmtCounter++
	return fmt.Sprintf("pgdriver_%d", c.stmtCounter)
}

// checkTxnGate rejects statements other than a rollback while the session is
// in a failed transaction. The server would refuse them anyway with 25P02;
// failing client-side keeps the wire quiet and the error actionable.
func (c *Conn) checkTxnGate(sql string) error {
	if c.wire.TxStatus() != 'E' {
		return nil
	}
	if isRollbackStmt(sql) {
		return nil
	}
	return pgerror.New(pgerror.ProgrammingError,
		"current transaction is aborted, only ROLLBACK or ROLLBACK TO SAVEPOINT is allowed")
}

func isRollbackStmt(sql string) bool {
	s := strings.ToUpper(strings.TrimSpace(sql))
	return strings.HasPrefix(s, "ROLLBACK") || strings.HasPrefix(s, "ABORT")
}

// encodeArgs converts host values into Bind parameters. When the statement
// was described server-side, parameters the server typed are encoded in that
// type's binary format; a value that cannot take the server's type falls
// back to its text rendering and lets the server coerce.
func encodeArgs(args []interface{}, serverOids []oid.Oid) ([]pgwire.BindParam, []oid.Oid, error) {
	params := make([]pgwire.BindParam, len(args))
	oids := make([]oid.Oid, len(args))
	for i, a := range args {
		d, err := pgtype.NativeToDatum(a)
		if err != nil {
			return nil, nil, pgerror.Wrapf(err, pgerror.GetKind(err), "parameter $%d", i+1)
		}
		t := pgtype.ResolveOid(d)
		if i < len(serverOids) && serverOids[i] != 0 {
			t = serverOids[i]
		}
		val, format, err := pgtype.Encode(d, t)
		if err != nil && t != pgtype.ResolveOid(d) {
			val, format, err = pgtype.Encode(d, 0)
		}
		if err != nil {
			return nil, nil, pgerror.Wrapf(err, pgerror.GetKind(err), "parameter $%d", i+1)
		}
		params[i] = pgwire.BindParam{Value: val, Format: format}
		oids[i] = t
	}
	return params, oids, nil
}
