// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgwirebase

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadTypedMsg(t *testing.T) {
	var wb WriteBuffer
	wb.InitMsg(ClientMsgParse)
	wb.WriteTerminatedString("stmt_1")
	wb.WriteTerminatedString("SELECT $1")
	wb.PutInt16(1)
	wb.PutUint32(20)

	var out bytes.Buffer
	require.NoError(t, wb.FinishMsg(&out))

	var rb ReadBuffer
	typ, _, err := rb.ReadTypedMsg(bufio.NewReader(&out))
	require.NoError(t, err)
	require.Equal(t, ServerMessageType('P'), typ)

	name, err := rb.GetString()
	require.NoError(t, err)
	require.Equal(t, "stmt_1", name)
	query, err := rb.GetString()
	require.NoError(t, err)
	require.Equal(t, "SELECT $1", query)
	n, err := rb.GetInt16()
	require.NoError(t, err)
	require.Equal(t, int16(1), n)
	typOid, err := rb.GetUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(20), typOid)
	require.Empty(t, rb.Msg)
}

func TestUntypedMsgLengthPrefix(t *testing.T) {
	var wb WriteBuffer
	wb.InitUntypedMsg()
	wb.PutUint32(ProtocolVersionNumber)
	wb.WriteTerminatedString("user")
	wb.WriteTerminatedString("alice")
	wb.NullTerminate()

	var out bytes.Buffer
	require.NoError(t, wb.FinishMsg(&out))

	raw := out.Bytes()
	require.Equal(t, uint32(len(raw)), binary.BigEndian.Uint32(raw[:4]))

	var rb ReadBuffer
	_, err := rb.ReadUntypedMsg(&out)
	require.NoError(t, err)
	version, err := rb.GetUint32()
	require.NoError(t, err)
	require.Equal(t, ProtocolVersionNumber, version)
}

// errWriter fails every write.
type errWriter struct{}

func (errWriter) Write(p []byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWriteBufferLatchesError(t *testing.T) {
	var wb WriteBuffer
	wb.InitMsg(ClientMsgSync)
	wb.SetError(io.ErrShortWrite)
	// Subsequent writes are no-ops and the error surfaces at FinishMsg.
	wb.WriteTerminatedString("ignored")
	var out bytes.Buffer
	require.ErrorIs(t, wb.FinishMsg(&out), io.ErrShortWrite)
	require.Zero(t, out.Len())

	// FinishMsg resets the latch.
	wb.InitMsg(ClientMsgSync)
	require.NoError(t, wb.FinishMsg(&out))
	require.Equal(t, 5, out.Len())
}

func TestFinishMsgWriterError(t *testing.T) {
	var wb WriteBuffer
	wb.InitMsg(ClientMsgSync)
	require.ErrorIs(t, wb.FinishMsg(errWriter{}), io.ErrClosedPipe)
}

func TestReadBufferBounds(t *testing.T) {
	var rb ReadBuffer
	rb.Msg = []byte{0, 1}
	_, err := rb.GetInt32()
	require.Error(t, err)
	_, err = rb.GetBytes(5)
	require.Error(t, err)
	rb.Msg = []byte("no terminator")
	_, err = rb.GetString()
	require.Error(t, err)
}

func TestReadUntypedMsgSizeBounds(t *testing.T) {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], MaxMessageSize+5)
	var rb ReadBuffer
	_, err := rb.ReadUntypedMsg(bytes.NewReader(hdr[:]))
	require.Error(t, err)

	binary.BigEndian.PutUint32(hdr[:], 2) // less than the prefix itself
	_, err = rb.ReadUntypedMsg(bytes.NewReader(hdr[:]))
	require.Error(t, err)
}
