// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package pgwire implements the client side of the PostgreSQL v3 wire
// protocol: connection startup and authentication, pipelined extended-query
// message batches, and response-cycle reading. It knows nothing about
// statement caching or transactions; that logic lives in pgclient.
package pgwire

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/pgdriver/pkg/pgtype"
	"github.com/cockroachdb/pgdriver/pkg/pgwire/pgerror"
	"github.com/cockroachdb/pgdriver/pkg/pgwire/pgwirebase"
	"github.com/cockroachdb/pgdriver/pkg/util/log"
	"github.com/cockroachdb/pgdriver/pkg/util/syncutil"
	"github.com/lib/pq/oid"
)

// Config carries what is needed to establish and authenticate a session.
type Config struct {
	// Addr is the server address, host:port for TCP or an absolute path for a
	// unix socket.
	Addr     string
	User     string
	Password string
	Database string
	// Params holds extra startup parameters (application_name and friends).
	Params map[string]string
	// DialTimeout bounds the TCP dial. Zero means no timeout beyond the
	// context's.
	DialTimeout time.Duration
}

// Conn is a single protocol session. Protocol operations must be serialized
// by the caller; the metadata accessors (TxStatus, ParameterStatus,
// BackendPID, IsClosed) may be called concurrently with an in-flight
// operation.
type Conn struct {
	cfg     Config
	netConn net.Conn
	rd      *bufio.Reader

	readBuf  pgwirebase.ReadBuffer
	writeBuf pgwirebase.WriteBuffer
	// outBuf accumulates pipelined frontend messages between Flush calls so a
	// whole batch reaches the kernel in one write.
	outBuf bytes.Buffer

	// mu guards the session state that observers read while a response cycle
	// is in flight. The protocol operation is the only writer.
	mu struct {
		syncutil.RWMutex

		txStatus    byte
		paramStatus map[string]string
		backendPID  uint32
		secretKey   uint32

		// broken is set when the stream can no longer be trusted (I/O error,
		// protocol violation, context cancellation mid-read). A broken
		// session is never resynchronized, only closed.
		broken bool
		closed bool
	}
}

// ColumnDesc describes one column of a result set, from RowDescription.
type ColumnDesc struct {
	Name     string
	TableOid uint32
	Attnum   int16
	Oid      oid.Oid
	Typlen   int16
	Typmod   int32
	Format   pgwirebase.FormatCode
}

// BindParam is one encoded parameter value for a Bind message. A nil Value is
// the SQL NULL marker.
type BindParam struct {
	Value  []byte
	Format pgwirebase.FormatCode
}

// CycleResult collects everything one response cycle produced, through the
// closing ReadyForQuery. Err holds a server error reported during the cycle;
// the cycle is still fully drained so the session stays in lockstep.
type CycleResult struct {
	Desc         []ColumnDesc
	Rows         [][]pgtype.Datum
	ParamOids    []oid.Oid
	CommandTag   string
	RowsAffected int64
	EmptyQuery   bool
	TxStatus     byte
	Err          error
}

// Connect dials the server and runs the startup phase.
func Connect(ctx context.Context, cfg Config) (*Conn, error) {
	network := "tcp"
	if strings.HasPrefix(cfg.Addr, "/") {
		network = "unix"
	}
	d := net.Dialer{Timeout: cfg.DialTimeout}
	nc, err := d.DialContext(ctx, network, cfg.Addr)
	if err != nil {
		return nil, pgerror.Wrapf(err, pgerror.OperationalError, "dialing %s", cfg.Addr)
	}
	c := NewConn(nc, cfg)
	if err := c.Startup(ctx); err != nil {
		_ = nc.Close()
		return nil, err
	}
	return c, nil
}

// NewConn wraps an established transport in a Conn. The session is unusable
// until Startup succeeds.
func NewConn(netConn net.Conn, cfg Config) *Conn {
	c := &Conn{
		cfg:     cfg,
		netConn: netConn,
		rd:      bufio.NewReader(netConn),
	}
	c.mu.paramStatus = make(map[string]string)
	return c
}

// Startup sends the startup message, authenticates, and consumes server
// messages through the first ReadyForQuery.
func (c *Conn) Startup(ctx context.Context) error {
	defer c.watch(ctx)()

	c.writeBuf.InitUntypedMsg()
	c.writeBuf.PutUint32(pgwirebase.ProtocolVersionNumber)
	c.writeBuf.WriteTerminatedString("user")
	c.writeBuf.WriteTerminatedString(c.cfg.User)
	if c.cfg.Database != "" {
		c.writeBuf.WriteTerminatedString("database")
		c.writeBuf.WriteTerminatedString(c.cfg.Database)
	}
	for k, v := range c.cfg.Params {
		c.writeBuf.WriteTerminatedString(k)
		c.writeBuf.WriteTerminatedString(v)
	}
	c.writeBuf.NullTerminate()
	if err := c.writeBuf.FinishMsg(c.netConn); err != nil {
		return c.ioError(ctx, "startup write", err)
	}

	if err := c.handleAuth(ctx); err != nil {
		return err
	}

	// The server now streams ParameterStatus and BackendKeyData, then
	// ReadyForQuery.
	for {
		typ, err := c.receiveMsg(ctx)
		if err != nil {
			return err
		}
		switch typ {
		case pgwirebase.ServerMsgReady:
			status, err := c.readBuf.GetByte()
			if err != nil {
				return c.violation(err)
			}
			c.setTxStatus(status)
			log.VEventf(ctx, 1, "session established, server version %s",
				c.ParameterStatus("server_version"))
			return nil
		case pgwirebase.ServerMsgErrorResponse:
			return c.parseErrorResponse()
		default:
			return c.violation(pgwirebase.NewProtocolViolationErrorf(
				"unexpected message %q during startup", byte(typ)))
		}
	}
}

// watch arranges for pending I/O to be interrupted when ctx is canceled. The
// returned cleanup must be called before the operation's result is
// interpreted. A canceled session is broken: the stream position is unknown.
func (c *Conn) watch(ctx context.Context) func() {
	if ctx == nil || ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			// Force any blocked Read or Write to return immediately.
			_ = c.netConn.SetDeadline(time.Unix(1, 0))
		case <-done:
		}
	}()
	return func() {
		close(done)
		if !c.isBroken() {
			_ = c.netConn.SetDeadline(time.Time{})
		}
	}
}

func (c *Conn) markBroken(err error) error {
	c.mu.Lock()
	wasBroken := c.mu.broken
	c.mu.broken = true
	c.mu.Unlock()
	if !wasBroken {
		_ = c.netConn.Close()
	}
	return err
}

func (c *Conn) isBroken() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mu.broken
}

func (c *Conn) setTxStatus(status byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.txStatus = status
}

func (c *Conn) setParamStatus(key, val string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.paramStatus[key] = val
}

func (c *Conn) setKeyData(pid, key uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.backendPID, c.mu.secretKey = pid, key
}

// ioError classifies a transport failure. A failure caused by context
// cancellation reports the context's error as the cause.
func (c *Conn) ioError(ctx context.Context, op string, err error) error {
	if ctx != nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return c.markBroken(pgerror.Wrapf(err, pgerror.OperationalError, "%s", op))
}

func (c *Conn) violation(err error) error {
	return c.markBroken(pgerror.Wrap(err, pgerror.InterfaceError, ""))
}

// receiveMsg reads the next message, transparently absorbing the
// asynchronous message types the server may interleave anywhere.
func (c *Conn) receiveMsg(ctx context.Context) (pgwirebase.ServerMessageType, error) {
	for {
		typ, _, err := c.readBuf.ReadTypedMsg(c.rd)
		if err != nil {
			return 0, c.ioError(ctx, "read", err)
		}
		switch typ {
		case pgwirebase.ServerMsgParameterStatus:
			key, err := c.readBuf.GetString()
			if err != nil {
				return 0, c.violation(err)
			}
			val, err := c.readBuf.GetString()
			if err != nil {
				return 0, c.violation(err)
			}
			c.setParamStatus(key, val)
		case pgwirebase.ServerMsgNoticeResponse:
			notice := c.parseErrorFields()
			log.Infof(ctx, "server notice: %s: %s", notice.Severity, notice.Message)
		case pgwirebase.ServerMsgBackendKeyData:
			pid, err := c.readBuf.GetUint32()
			if err != nil {
				return 0, c.violation(err)
			}
			key, err := c.readBuf.GetUint32()
			if err != nil {
				return 0, c.violation(err)
			}
			c.setKeyData(pid, key)
		default:
			return typ, nil
		}
	}
}

func (c *Conn) receiveStartupMsg() (pgwirebase.ServerMessageType, error) {
	return c.receiveMsg(context.Background())
}

// parseErrorFields decodes the field list shared by ErrorResponse and
// NoticeResponse.
func (c *Conn) parseErrorFields() *pgerror.Error {
	var severity, code, message, detail, hint string
	var schema, table, column, constraint string
	for {
		fieldType, err := c.readBuf.GetByte()
		if err != nil || fieldType == 0 {
			break
		}
		value, err := c.readBuf.GetString()
		if err != nil {
			break
		}
		switch pgwirebase.ServerErrFieldType(fieldType) {
		case pgwirebase.ServerErrFieldSeverity:
			severity = value
		case pgwirebase.ServerErrFieldSQLState:
			code = value
		case pgwirebase.ServerErrFieldMsgPrimary:
			message = value
		case pgwirebase.ServerErrFieldDetail:
			detail = value
		case pgwirebase.ServerErrFieldHint:
			hint = value
		case pgwirebase.ServerErrFieldSchemaName:
			schema = value
		case pgwirebase.ServerErrFieldTableName:
			table = value
		case pgwirebase.ServerErrFieldColumnName:
			column = value
		case pgwirebase.ServerErrFieldConstraintName:
			constraint = value
		}
	}
	e := pgerror.FromServer(severity, code, message, detail, hint)
	e.SchemaName, e.TableName, e.ColumnName, e.ConstraintName = schema, table, column, constraint
	return e
}

func (c *Conn) parseErrorResponse() error {
	return c.parseErrorFields()
}

func (c *Conn) checkUsable() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.mu.closed {
		return pgerror.New(pgerror.InterfaceError, "connection is closed")
	}
	if c.mu.broken {
		return pgerror.New(pgerror.InterfaceError, "connection is broken")
	}
	return nil
}

func (c *Conn) bufferMsg() {
	if err := c.writeBuf.FinishMsg(&c.outBuf); err != nil {
		// bytes.Buffer writes cannot fail; a latched encoding error can.
		_ = c.markBroken(err)
	}
}

// SendParse buffers a Parse message creating the named prepared statement.
// Zero OIDs leave the corresponding parameter types for the server to infer.
func (c *Conn) SendParse(name, query string, paramOids []oid.Oid) {
	c.writeBuf.InitMsg(pgwirebase.ClientMsgParse)
	c.writeBuf.WriteTerminatedString(name)
	c.writeBuf.WriteTerminatedString(query)
	c.writeBuf.PutInt16(int16(len(paramOids)))
	for _, t := range paramOids {
		c.writeBuf.PutUint32(uint32(t))
	}
	c.bufferMsg()
}

// SendBind buffers a Bind message creating the unnamed portal from the named
// statement. All result columns are requested in binary format.
func (c *Conn) SendBind(portal, stmt string, params []BindParam) {
	c.writeBuf.InitMsg(pgwirebase.ClientMsgBind)
	c.writeBuf.WriteTerminatedString(portal)
	c.writeBuf.WriteTerminatedString(stmt)
	c.writeBuf.PutInt16(int16(len(params)))
	for _, p := range params {
		c.writeBuf.PutInt16(int16(p.Format))
	}
	c.writeBuf.PutInt16(int16(len(params)))
	for _, p := range params {
		if p.Value == nil {
			c.writeBuf.PutInt32(-1)
			continue
		}
		c.writeBuf.WriteLengthPrefixedBytes(p.Value)
	}
	c.writeBuf.PutInt16(1)
	c.writeBuf.PutInt16(int16(pgwirebase.FormatBinary))
	c.bufferMsg()
}

// SendDescribe buffers a Describe for a statement ('S') or portal ('P').
func (c *Conn) SendDescribe(typ pgwirebase.PrepareType, name string) {
	c.writeBuf.InitMsg(pgwirebase.ClientMsgDescribe)
	c.writeBuf.WriteByte(byte(typ))
	c.writeBuf.WriteTerminatedString(name)
	c.bufferMsg()
}

// SendExecute buffers an Execute for the named portal. maxRows of zero means
// no limit.
func (c *Conn) SendExecute(portal string, maxRows int32) {
	c.writeBuf.InitMsg(pgwirebase.ClientMsgExecute)
	c.writeBuf.WriteTerminatedString(portal)
	c.writeBuf.PutInt32(maxRows)
	c.bufferMsg()
}

// SendClose buffers a Close for a statement or portal.
func (c *Conn) SendClose(typ pgwirebase.PrepareType, name string) {
	c.writeBuf.InitMsg(pgwirebase.ClientMsgClose)
	c.writeBuf.WriteByte(byte(typ))
	c.writeBuf.WriteTerminatedString(name)
	c.bufferMsg()
}

// SendSync buffers a Sync, closing an extended-query batch.
func (c *Conn) SendSync() {
	c.writeBuf.InitMsg(pgwirebase.ClientMsgSync)
	c.bufferMsg()
}

// SendSimpleQuery buffers a simple-protocol Query message. Each one produces
// its own full response cycle.
func (c *Conn) SendSimpleQuery(sql string) {
	c.writeBuf.InitMsg(pgwirebase.ClientMsgSimpleQuery)
	c.writeBuf.WriteTerminatedString(sql)
	c.bufferMsg()
}

// Flush writes all buffered messages to the transport in a single write.
func (c *Conn) Flush(ctx context.Context) error {
	if err := c.checkUsable(); err != nil {
		return err
	}
	defer c.watch(ctx)()
	if _, err := c.netConn.Write(c.outBuf.Bytes()); err != nil {
		return c.ioError(ctx, "write", err)
	}
	c.outBuf.Reset()
	return nil
}

// ReadCycle consumes one full response cycle through ReadyForQuery. A server
// error mid-cycle is recorded in the result and the remaining messages are
// drained, so the session is always left at a cycle boundary. The returned
// error is reserved for transport and framing failures, which break the
// session.
func (c *Conn) ReadCycle(ctx context.Context) (*CycleResult, error) {
	if err := c.checkUsable(); err != nil {
		return nil, err
	}
	defer c.watch(ctx)()

	res := &CycleResult{}
	for {
		typ, err := c.receiveMsg(ctx)
		if err != nil {
			return nil, err
		}
		switch typ {
		case pgwirebase.ServerMsgParseComplete,
			pgwirebase.ServerMsgBindComplete,
			pgwirebase.ServerMsgCloseComplete,
			pgwirebase.ServerMsgPortalSuspended,
			pgwirebase.ServerMsgNoData:

		case pgwirebase.ServerMsgParameterDescription:
			n, err := c.readBuf.GetInt16()
			if err != nil {
				return nil, c.violation(err)
			}
			res.ParamOids = make([]oid.Oid, n)
			for i := range res.ParamOids {
				t, err := c.readBuf.GetUint32()
				if err != nil {
					return nil, c.violation(err)
				}
				res.ParamOids[i] = oid.Oid(t)
			}

		case pgwirebase.ServerMsgRowDescription:
			desc, err := c.parseRowDescription()
			if err != nil {
				return nil, c.violation(err)
			}
			res.Desc = desc

		case pgwirebase.ServerMsgDataRow:
			if res.Err != nil {
				continue
			}
			row, err := c.parseDataRow(res.Desc)
			if err != nil {
				if pgerror.GetKind(err) == pgerror.InterfaceError {
					return nil, c.markBroken(err)
				}
				// A decode failure poisons the result but not the session.
				res.Err = err
				continue
			}
			res.Rows = append(res.Rows, row)

		case pgwirebase.ServerMsgCommandComplete:
			tag, err := c.readBuf.GetString()
			if err != nil {
				return nil, c.violation(err)
			}
			res.CommandTag = tag
			res.RowsAffected = rowsAffectedFromTag(tag)

		case pgwirebase.ServerMsgEmptyQuery:
			res.EmptyQuery = true

		case pgwirebase.ServerMsgErrorResponse:
			if e := c.parseErrorResponse(); res.Err == nil {
				res.Err = e
			}

		case pgwirebase.ServerMsgReady:
			status, err := c.readBuf.GetByte()
			if err != nil {
				return nil, c.violation(err)
			}
			c.setTxStatus(status)
			res.TxStatus = status
			return res, nil

		default:
			return nil, c.violation(pgwirebase.NewProtocolViolationErrorf(
				"unexpected message %q mid-cycle", byte(typ)))
		}
	}
}

func (c *Conn) parseRowDescription() ([]ColumnDesc, error) {
	n, err := c.readBuf.GetInt16()
	if err != nil {
		return nil, err
	}
	desc := make([]ColumnDesc, n)
	for i := range desc {
		d := &desc[i]
		if d.Name, err = c.readBuf.GetString(); err != nil {
			return nil, err
		}
		if d.TableOid, err = c.readBuf.GetUint32(); err != nil {
			return nil, err
		}
		if d.Attnum, err = c.readBuf.GetInt16(); err != nil {
			return nil, err
		}
		t, err := c.readBuf.GetUint32()
		if err != nil {
			return nil, err
		}
		d.Oid = oid.Oid(t)
		if d.Typlen, err = c.readBuf.GetInt16(); err != nil {
			return nil, err
		}
		if d.Typmod, err = c.readBuf.GetInt32(); err != nil {
			return nil, err
		}
		f, err := c.readBuf.GetInt16()
		if err != nil {
			return nil, err
		}
		d.Format = pgwirebase.FormatCode(f)
	}
	return desc, nil
}

func (c *Conn) parseDataRow(desc []ColumnDesc) ([]pgtype.Datum, error) {
	n, err := c.readBuf.GetInt16()
	if err != nil {
		return nil, pgerror.Wrap(err, pgerror.InterfaceError, "")
	}
	if int(n) != len(desc) {
		return nil, pgerror.Newf(pgerror.InterfaceError,
			"DataRow has %d columns, descriptor has %d", n, len(desc))
	}
	row := make([]pgtype.Datum, n)
	for i := range row {
		length, err := c.readBuf.GetInt32()
		if err != nil {
			return nil, pgerror.Wrap(err, pgerror.InterfaceError, "")
		}
		var val []byte
		if length >= 0 {
			if val, err = c.readBuf.GetBytes(int(length)); err != nil {
				return nil, pgerror.Wrap(err, pgerror.InterfaceError, "")
			}
		}
		d, err := pgtype.Decode(desc[i].Oid, desc[i].Format, val)
		if err != nil {
			return nil, pgerror.Wrapf(err, pgerror.GetKind(err),
				"decoding column %q", desc[i].Name)
		}
		row[i] = d
	}
	return row, nil
}

// rowsAffectedFromTag extracts the affected-row count from a command tag like
// "UPDATE 7" or "INSERT 0 7". Tags with no trailing count report zero.
func rowsAffectedFromTag(tag string) int64 {
	idx := strings.LastIndexByte(tag, ' ')
	if idx < 0 {
		return 0
	}
	n, err := strconv.ParseInt(tag[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// TxStatus returns the transaction status byte from the most recent
// ReadyForQuery: 'I' idle, 'T' in transaction, 'E' in failed transaction.
func (c *Conn) TxStatus() byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mu.txStatus
}

// ParameterStatus returns the most recent server-reported value for a runtime
// parameter such as server_version.
func (c *Conn) ParameterStatus(name string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mu.paramStatus[name]
}

// ParameterStatuses returns a copy of all server-reported runtime parameters.
func (c *Conn) ParameterStatuses() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.mu.paramStatus))
	for k, v := range c.mu.paramStatus {
		out[k] = v
	}
	return out
}

// BackendPID returns the server backend process ID for this session.
func (c *Conn) BackendPID() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mu.backendPID
}

// IsClosed reports whether the session can no longer be used.
func (c *Conn) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mu.closed || c.mu.broken
}

// Close terminates the session, sending the Terminate message when the
// stream is still healthy.
func (c *Conn) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.mu.closed {
		c.mu.Unlock()
		return nil
	}
	c.mu.closed = true
	broken := c.mu.broken
	c.mu.Unlock()
	if broken {
		return nil
	}
	c.writeBuf.InitMsg(pgwirebase.ClientMsgTerminate)
	if err := c.writeBuf.FinishMsg(c.netConn); err != nil {
		_ = c.netConn.Close()
		return pgerror.Wrap(err, pgerror.OperationalError, "terminate")
	}
	log.VEventf(ctx, 1, "session closed")
	return c.netConn.Close()
}
