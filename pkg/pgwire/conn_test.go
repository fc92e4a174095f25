// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgwire

import (
	"bufio"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/pgdriver/pkg/pgtype"
	"github.com/cockroachdb/pgdriver/pkg/pgwire/pgerror"
	"github.com/cockroachdb/pgdriver/pkg/pgwire/pgwirebase"
	"github.com/lib/pq/oid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"
)

// testBackend scripts the server side of a session over an in-memory pipe.
type testBackend struct {
	t       *testing.T
	conn    net.Conn
	rd      *bufio.Reader
	readBuf pgwirebase.ReadBuffer
}

func newTestBackend(t *testing.T, conn net.Conn) *testBackend {
	return &testBackend{t: t, conn: conn, rd: bufio.NewReader(conn)}
}

// expectStartup consumes the startup message and returns its parameters.
func (b *testBackend) expectStartup() map[string]string {
	_, err := b.readBuf.ReadUntypedMsg(b.rd)
	require.NoError(b.t, err)
	version, err := b.readBuf.GetUint32()
	require.NoError(b.t, err)
	require.Equal(b.t, pgwirebase.ProtocolVersionNumber, version)
	params := make(map[string]string)
	for len(b.readBuf.Msg) > 1 {
		k, err := b.readBuf.GetString()
		require.NoError(b.t, err)
		v, err := b.readBuf.GetString()
		require.NoError(b.t, err)
		params[k] = v
	}
	return params
}

// expectMsg consumes one typed client message and returns its type.
func (b *testBackend) expectMsg() byte {
	typ, _, err := b.readBuf.ReadTypedMsg(b.rd)
	require.NoError(b.t, err)
	return byte(typ)
}

func (b *testBackend) send(typ byte, body []byte) {
	frame := make([]byte, 5, 5+len(body))
	frame[0] = typ
	binary.BigEndian.PutUint32(frame[1:5], uint32(len(body)+4))
	frame = append(frame, body...)
	_, err := b.conn.Write(frame)
	require.NoError(b.t, err)
}

func (b *testBackend) sendAuth(code int32, extra []byte) {
	body := binary.BigEndian.AppendUint32(nil, uint32(code))
	b.send('R', append(body, extra...))
}

func (b *testBackend) sendParamStatus(key, val string) {
	body := append([]byte(key), 0)
	body = append(body, val...)
	b.send('S', append(body, 0))
}

func (b *testBackend) sendKeyData(pid, key uint32) {
	body := binary.BigEndian.AppendUint32(nil, pid)
	b.send('K', binary.BigEndian.AppendUint32(body, key))
}

func (b *testBackend) sendReady(status byte) {
	b.send('Z', []byte{status})
}

func (b *testBackend) sendError(code, msg string) {
	body := append([]byte{'S'}, "ERROR\x00"...)
	body = append(body, 'C')
	body = append(body, code...)
	body = append(body, 0, 'M')
	body = append(body, msg...)
	b.send('E', append(body, 0, 0))
}

func (b *testBackend) sendRowDesc(cols ...ColumnDesc) {
	body := binary.BigEndian.AppendUint16(nil, uint16(len(cols)))
	for _, c := range cols {
		body = append(body, c.Name...)
		body = append(body, 0)
		body = binary.BigEndian.AppendUint32(body, c.TableOid)
		body = binary.BigEndian.AppendUint16(body, uint16(c.Attnum))
		body = binary.BigEndian.AppendUint32(body, uint32(c.Oid))
		body = binary.BigEndian.AppendUint16(body, uint16(c.Typlen))
		body = binary.BigEndian.AppendUint32(body, uint32(c.Typmod))
		body = binary.BigEndian.AppendUint16(body, uint16(c.Format))
	}
	b.send('T', body)
}

func (b *testBackend) sendDataRow(values ...[]byte) {
	body := binary.BigEndian.AppendUint16(nil, uint16(len(values)))
	for _, v := range values {
		if v == nil {
			body = binary.BigEndian.AppendUint32(body, 0xFFFFFFFF)
			continue
		}
		body = binary.BigEndian.AppendUint32(body, uint32(len(v)))
		body = append(body, v...)
	}
	b.send('D', body)
}

func (b *testBackend) sendCommandComplete(tag string) {
	b.send('C', append([]byte(tag), 0))
}

func (b *testBackend) finishStartup() {
	b.sendAuth(pgwirebase.AuthOK, nil)
	b.sendParamStatus("server_version", "16.2")
	b.sendKeyData(4242, 99)
	b.sendReady('I')
}

// startSession wires a Conn to a scripted backend and completes the startup
// handshake with the given auth script.
func startSession(
	t *testing.T, cfg Config, script func(b *testBackend),
) (*Conn, *testBackend, func()) {
	clientEnd, serverEnd := net.Pipe()
	backend := newTestBackend(t, serverEnd)
	c := NewConn(clientEnd, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Startup(context.Background())
	}()
	backend.expectStartup()
	script(backend)
	require.NoError(t, <-errCh)

	return c, backend, func() {
		_ = clientEnd.Close()
		_ = serverEnd.Close()
	}
}

func TestStartupHandshake(t *testing.T) {
	cfg := Config{User: "bob", Database: "app", Params: map[string]string{"application_name": "test"}}
	clientEnd, serverEnd := net.Pipe()
	defer clientEnd.Close()
	defer serverEnd.Close()
	backend := newTestBackend(t, serverEnd)
	c := NewConn(clientEnd, cfg)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Startup(context.Background()) }()

	params := backend.expectStartup()
	require.Equal(t, "bob", params["user"])
	require.Equal(t, "app", params["database"])
	require.Equal(t, "test", params["application_name"])
	backend.finishStartup()

	require.NoError(t, <-errCh)
	require.Equal(t, byte('I'), c.TxStatus())
	require.Equal(t, "16.2", c.ParameterStatus("server_version"))
	require.Equal(t, uint32(4242), c.BackendPID())
	require.False(t, c.IsClosed())
}

func TestCleartextAuth(t *testing.T) {
	cfg := Config{User: "bob", Password: "hunter2"}
	c, _, cleanup := startSession(t, cfg, func(b *testBackend) {
		b.sendAuth(pgwirebase.AuthCleartextPassword, nil)
		require.Equal(t, byte('p'), b.expectMsg())
		pw, err := b.readBuf.GetString()
		require.NoError(t, err)
		require.Equal(t, "hunter2", pw)
		b.finishStartup()
	})
	defer cleanup()
	require.False(t, c.IsClosed())
}

func TestMD5Auth(t *testing.T) {
	salt := []byte{1, 2, 3, 4}
	cfg := Config{User: "bob", Password: "hunter2"}
	c, _, cleanup := startSession(t, cfg, func(b *testBackend) {
		b.sendAuth(pgwirebase.AuthMD5Password, salt)
		require.Equal(t, byte('p'), b.expectMsg())
		pw, err := b.readBuf.GetString()
		require.NoError(t, err)
		require.Equal(t, md5Response("hunter2", "bob", salt), pw)
		require.True(t, strings.HasPrefix(pw, "md5"))
		b.finishStartup()
	})
	defer cleanup()
	require.False(t, c.IsClosed())
}

func TestSCRAMAuth(t *testing.T) {
	const password = "hunter2"
	salt := []byte("0123456789abcdef")
	const iters = 4096

	cfg := Config{User: "bob", Password: password}
	c, _, cleanup := startSession(t, cfg, func(b *testBackend) {
		b.sendAuth(pgwirebase.AuthSASL, []byte("SCRAM-SHA-256\x00\x00"))

		require.Equal(t, byte('p'), b.expectMsg())
		mech, err := b.readBuf.GetString()
		require.NoError(t, err)
		require.Equal(t, "SCRAM-SHA-256", mech)
		n, err := b.readBuf.GetInt32()
		require.NoError(t, err)
		clientFirst := string(b.readBuf.Msg[:n])
		require.True(t, strings.HasPrefix(clientFirst, "n,,n=,r="))
		clientNonce := strings.TrimPrefix(clientFirst, "n,,n=,r=")
		clientFirstBare := strings.TrimPrefix(clientFirst, "n,,")

		serverNonce := clientNonce + "srv"
		serverFirst := "r=" + serverNonce +
			",s=" + base64.StdEncoding.EncodeToString(salt) +
			",i=4096"
		b.sendAuth(pgwirebase.AuthSASLContinue, []byte(serverFirst))

		require.Equal(t, byte('p'), b.expectMsg())
		clientFinal := string(b.readBuf.Msg)
		withoutProof, proofPart, ok := strings.Cut(clientFinal, ",p=")
		require.True(t, ok)
		require.Equal(t, "c=biws,r="+serverNonce, withoutProof)

		saltedPassword := pbkdf2.Key([]byte(password), salt, iters, sha256.Size, sha256.New)
		mac := hmac.New(sha256.New, saltedPassword)
		mac.Write([]byte("Client Key"))
		clientKey := mac.Sum(nil)
		storedKey := sha256.Sum256(clientKey)
		authMessage := clientFirstBare + "," + serverFirst + "," + withoutProof
		mac = hmac.New(sha256.New, storedKey[:])
		mac.Write([]byte(authMessage))
		clientSig := mac.Sum(nil)
		wantProof := make([]byte, len(clientKey))
		for i := range wantProof {
			wantProof[i] = clientKey[i] ^ clientSig[i]
		}
		require.Equal(t, base64.StdEncoding.EncodeToString(wantProof), proofPart)

		mac = hmac.New(sha256.New, saltedPassword)
		mac.Write([]byte("Server Key"))
		serverKey := mac.Sum(nil)
		mac = hmac.New(sha256.New, serverKey)
		mac.Write([]byte(authMessage))
		serverSig := mac.Sum(nil)
		b.sendAuth(pgwirebase.AuthSASLFinal,
			[]byte("v="+base64.StdEncoding.EncodeToString(serverSig)))

		b.finishStartup()
	})
	defer cleanup()
	require.False(t, c.IsClosed())
}

func TestAuthRejected(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()
	defer clientEnd.Close()
	defer serverEnd.Close()
	backend := newTestBackend(t, serverEnd)
	c := NewConn(clientEnd, Config{User: "bob", Password: "wrong"})

	errCh := make(chan error, 1)
	go func() { errCh <- c.Startup(context.Background()) }()
	backend.expectStartup()
	backend.sendError(pgerror.CodeInvalidPasswordError, "password authentication failed")

	err := <-errCh
	require.True(t, pgerror.HasKind(err, pgerror.OperationalError))
	require.Equal(t, pgerror.CodeInvalidPasswordError, pgerror.GetSQLState(err))
}

func TestExtendedQueryCycle(t *testing.T) {
	c, backend, cleanup := startSession(t, Config{User: "bob"}, (*testBackend).finishStartup)
	defer cleanup()

	go func() {
		c.SendParse("s1", "SELECT n FROM t WHERE n > $1", []oid.Oid{oid.T_int8})
		val, _, err := pgtype.Encode(pgtype.DInt(0), oid.T_int8)
		require.NoError(t, err)
		c.SendBind("", "s1", []BindParam{{Value: val, Format: pgwirebase.FormatBinary}})
		c.SendDescribe(pgwirebase.PreparePortal, "")
		c.SendExecute("", 0)
		c.SendSync()
		require.NoError(t, c.Flush(context.Background()))
	}()

	require.Equal(t, byte('P'), backend.expectMsg())
	require.Equal(t, byte('B'), backend.expectMsg())
	require.Equal(t, byte('D'), backend.expectMsg())
	require.Equal(t, byte('E'), backend.expectMsg())
	require.Equal(t, byte('S'), backend.expectMsg())

	go func() {
		backend.send('1', nil) // ParseComplete
		backend.send('2', nil) // BindComplete
		backend.sendRowDesc(ColumnDesc{Name: "n", Oid: oid.T_int8, Typlen: 8, Format: pgwirebase.FormatBinary})
		backend.sendDataRow(binary.BigEndian.AppendUint64(nil, 7))
		backend.sendDataRow(nil)
		backend.sendCommandComplete("SELECT 2")
		backend.sendReady('I')
	}()

	res, err := c.ReadCycle(context.Background())
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.Len(t, res.Desc, 1)
	require.Equal(t, "n", res.Desc[0].Name)
	require.Equal(t, [][]pgtype.Datum{{pgtype.DInt(7)}, {pgtype.DNull}}, res.Rows)
	require.Equal(t, "SELECT 2", res.CommandTag)
	require.Equal(t, int64(2), res.RowsAffected)
	require.Equal(t, byte('I'), res.TxStatus)
}

func TestCycleDrainsAfterError(t *testing.T) {
	c, backend, cleanup := startSession(t, Config{User: "bob"}, (*testBackend).finishStartup)
	defer cleanup()

	go func() {
		c.SendParse("", "SELEC 1", nil)
		c.SendSync()
		require.NoError(t, c.Flush(context.Background()))
	}()
	backend.expectMsg()
	backend.expectMsg()

	go func() {
		backend.sendError(pgerror.CodeSyntaxError, `syntax error at or near "SELEC"`)
		// Stray messages after the error must be drained, not surfaced.
		backend.sendDataRow([]byte{0})
		backend.sendReady('I')
	}()

	res, err := c.ReadCycle(context.Background())
	require.NoError(t, err)
	require.True(t, pgerror.HasKind(res.Err, pgerror.ProgrammingError))
	require.Empty(t, res.Rows)
	require.Equal(t, byte('I'), res.TxStatus)
	require.False(t, c.IsClosed())
}

func TestPartialFrameReassembly(t *testing.T) {
	c, backend, cleanup := startSession(t, Config{User: "bob"}, (*testBackend).finishStartup)
	defer cleanup()

	go func() {
		c.SendSimpleQuery("SELECT 'abc'")
		require.NoError(t, c.Flush(context.Background()))
	}()
	backend.expectMsg()

	// Serialize a full cycle, then dribble it across the pipe a few bytes at
	// a time. The reader must reassemble complete frames regardless of how
	// the transport fragments them.
	var raw []byte
	{
		desc := []byte{0, 1}
		desc = append(desc, "v\x00"...)
		desc = binary.BigEndian.AppendUint32(desc, 0)
		desc = binary.BigEndian.AppendUint16(desc, 0)
		desc = binary.BigEndian.AppendUint32(desc, uint32(oid.T_text))
		desc = binary.BigEndian.AppendUint16(desc, 0xFFFF)
		desc = binary.BigEndian.AppendUint32(desc, 0)
		desc = binary.BigEndian.AppendUint16(desc, 0)
		raw = appendFrame(raw, 'T', desc)

		row := []byte{0, 1}
		row = binary.BigEndian.AppendUint32(row, 3)
		row = append(row, "abc"...)
		raw = appendFrame(raw, 'D', row)
		raw = appendFrame(raw, 'C', []byte("SELECT 1\x00"))
		raw = appendFrame(raw, 'Z', []byte{'I'})
	}
	go func() {
		for i := 0; i < len(raw); i += 3 {
			end := i + 3
			if end > len(raw) {
				end = len(raw)
			}
			if _, err := backend.conn.Write(raw[i:end]); err != nil {
				return
			}
		}
	}()

	res, err := c.ReadCycle(context.Background())
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.Equal(t, [][]pgtype.Datum{{pgtype.DString("abc")}}, res.Rows)
}

func appendFrame(dst []byte, typ byte, body []byte) []byte {
	dst = append(dst, typ)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(body)+4))
	return append(dst, body...)
}

func TestContextCancelBreaksConn(t *testing.T) {
	c, _, cleanup := startSession(t, Config{User: "bob"}, (*testBackend).finishStartup)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// The backend never responds; the deadline must unblock the read and
	// break the session.
	_, err := c.ReadCycle(ctx)
	require.True(t, pgerror.HasKind(err, pgerror.OperationalError))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, c.IsClosed())

	_, err = c.ReadCycle(context.Background())
	require.True(t, pgerror.HasKind(err, pgerror.InterfaceError))
}

func TestCloseSendsTerminate(t *testing.T) {
	c, backend, cleanup := startSession(t, Config{User: "bob"}, (*testBackend).finishStartup)
	defer cleanup()

	go func() {
		require.NoError(t, c.Close(context.Background()))
	}()
	require.Equal(t, byte('X'), backend.expectMsg())
	require.True(t, c.IsClosed())
	require.NoError(t, c.Close(context.Background()))
}

func TestRowsAffectedFromTag(t *testing.T) {
	testCases := []struct {
		tag  string
		want int64
	}{
		{"SELECT 5", 5},
		{"UPDATE 7", 7},
		{"INSERT 0 3", 3},
		{"DELETE 0", 0},
		{"BEGIN", 0},
		{"CREATE TABLE", 0},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.want, rowsAffectedFromTag(tc.tag), "tag %q", tc.tag)
	}
}
