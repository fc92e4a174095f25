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

	"github.com/cockroachdb/errors"
)

// MaxMessageSize bounds the size of any single wire message. Anything larger
// indicates a desynchronized or malicious peer.
const MaxMessageSize = 1 << 24

var _ BufferedReader = &bufio.Reader{}
var _ BufferedReader = &bytes.Buffer{}

// BufferedReader extended io.Reader with some convenience methods.
type BufferedReader interface {
	io.Reader
	ReadString(delim byte) (string, error)
	ReadByte() (byte, error)
}

// ReadBuffer provides a convenient way to read pgwire protocol messages.
// Messages are length-prefixed; the buffer reassembles a full message from
// the underlying reader before any field accessors run, so partial reads
// from the transport never surface as partial messages.
type ReadBuffer struct {
	Msg []byte
	tmp [4]byte
}

// reset sets b.Msg to exactly size, attempting to use spare capacity
// at the end of the existing slice when possible and allocating a new
// slice when necessary.
func (b *ReadBuffer) reset(size int) {
	if b.Msg != nil {
		b.Msg = b.Msg[len(b.Msg):]
	}

	if cap(b.Msg) >= size {
		b.Msg = b.Msg[:size]
		return
	}

	allocSize := size
	if allocSize < 4096 {
		allocSize = 4096
	}
	b.Msg = make([]byte, size, allocSize)
}

// ReadUntypedMsg reads a length-prefixed message. It is only used directly
// during the startup phase of the protocol; ReadTypedMsg is used at all
// other times. This returns the number of bytes read and an error, if there
// was one. The number of bytes returned can be non-zero even with an error
// (e.g. if data was read but didn't validate) so that we can more accurately
// measure network traffic.
func (b *ReadBuffer) ReadUntypedMsg(rd io.Reader) (int, error) {
	nread, err := io.ReadFull(rd, b.tmp[:])
	if err != nil {
		return nread, err
	}
	size := int(binary.BigEndian.Uint32(b.tmp[:]))
	// size includes itself.
	size -= 4
	if size > MaxMessageSize || size < 0 {
		return nread, NewProtocolViolationErrorf("message size %d out of bounds (0..%d)",
			size, MaxMessageSize)
	}

	b.reset(size)
	n, err := io.ReadFull(rd, b.Msg)
	return nread + n, err
}

// ReadTypedMsg reads a message from the provided reader, returning its type
// code and body. It returns the message type, number of bytes read, and an
// error if there was one.
func (b *ReadBuffer) ReadTypedMsg(rd BufferedReader) (ServerMessageType, int, error) {
	typ, err := rd.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	n, err := b.ReadUntypedMsg(rd)
	return ServerMessageType(typ), n, err
}

// GetString reads a null-terminated string.
func (b *ReadBuffer) GetString() (string, error) {
	pos := bytes.IndexByte(b.Msg, 0)
	if pos == -1 {
		return "", NewProtocolViolationErrorf("NUL terminator not found")
	}
	s := string(b.Msg[:pos])
	b.Msg = b.Msg[pos+1:]
	return s, nil
}

// GetPrepareType returns the buffer's contents as a PrepareType.
func (b *ReadBuffer) GetPrepareType() (PrepareType, error) {
	v, err := b.GetBytes(1)
	if err != nil {
		return 0, err
	}
	return PrepareType(v[0]), nil
}

// GetBytes returns the buffer's contents as a []byte.
func (b *ReadBuffer) GetBytes(n int) ([]byte, error) {
	if len(b.Msg) < n {
		return nil, NewProtocolViolationErrorf("insufficient data: %d", len(b.Msg))
	}
	v := b.Msg[:n]
	b.Msg = b.Msg[n:]
	return v, nil
}

// GetByte returns the buffer's contents as a byte.
func (b *ReadBuffer) GetByte() (byte, error) {
	v, err := b.GetBytes(1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// GetInt16 returns the buffer's contents as an int16.
func (b *ReadBuffer) GetInt16() (int16, error) {
	if len(b.Msg) < 2 {
		return 0, NewProtocolViolationErrorf("insufficient data: %d", len(b.Msg))
	}
	v := int16(binary.BigEndian.Uint16(b.Msg[:2]))
	b.Msg = b.Msg[2:]
	return v, nil
}

// GetInt32 returns the buffer's contents as an int32.
func (b *ReadBuffer) GetInt32() (int32, error) {
	if len(b.Msg) < 4 {
		return 0, NewProtocolViolationErrorf("insufficient data: %d", len(b.Msg))
	}
	v := int32(binary.BigEndian.Uint32(b.Msg[:4]))
	b.Msg = b.Msg[4:]
	return v, nil
}

// GetUint32 returns the buffer's contents as a uint32.
func (b *ReadBuffer) GetUint32() (uint32, error) {
	if len(b.Msg) < 4 {
		return 0, NewProtocolViolationErrorf("insufficient data: %d", len(b.Msg))
	}
	v := binary.BigEndian.Uint32(b.Msg[:4])
	b.Msg = b.Msg[4:]
	return v, nil
}

// NewProtocolViolationErrorf creates a protocol violation error. Callers
// treat these as fatal for the connection: once framing is suspect, the
// session cannot be resynchronized.
func NewProtocolViolationErrorf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WriteBuffer is a wrapper around bytes.Buffer that provides a convenient
// interface for writing pgwire messages. The buffer preserves any errors it
// encounters when writing, and will turn all subsequent write attempts into
// no-ops until FinishMsg is called.
type WriteBuffer struct {
	wrapped bytes.Buffer
	err     error

	// untyped is set while writing a startup-phase message, which carries a
	// length prefix but no type byte.
	untyped bool

	// Buffer used for temporary storage.
	putbuf [64]byte
}

// Write implements the io.Writer interface.
func (b *WriteBuffer) Write(p []byte) (int, error) {
	b.WriteBytes(p)
	return len(p), b.err
}

// WriteByte appends a single byte.
func (b *WriteBuffer) WriteByte(c byte) {
	if b.err == nil {
		b.err = b.wrapped.WriteByte(c)
	}
}

// WriteBytes appends p verbatim.
func (b *WriteBuffer) WriteBytes(p []byte) {
	if b.err == nil {
		_, b.err = b.wrapped.Write(p)
	}
}

// WriteString appends s without a terminator.
func (b *WriteBuffer) WriteString(s string) {
	if b.err == nil {
		_, b.err = b.wrapped.WriteString(s)
	}
}

// NullTerminate appends a NUL byte.
func (b *WriteBuffer) NullTerminate() {
	if b.err == nil {
		b.err = b.wrapped.WriteByte(0)
	}
}

// WriteTerminatedString writes a null-terminated string.
func (b *WriteBuffer) WriteTerminatedString(s string) {
	b.WriteString(s)
	b.NullTerminate()
}

// WriteLengthPrefixedBytes writes p with an int32 length prefix.
func (b *WriteBuffer) WriteLengthPrefixedBytes(p []byte) {
	b.PutInt32(int32(len(p)))
	b.WriteBytes(p)
}

// PutInt16 appends v in network byte order.
func (b *WriteBuffer) PutInt16(v int16) {
	if b.err == nil {
		binary.BigEndian.PutUint16(b.putbuf[:], uint16(v))
		_, b.err = b.wrapped.Write(b.putbuf[:2])
	}
}

// PutInt32 appends v in network byte order.
func (b *WriteBuffer) PutInt32(v int32) {
	if b.err == nil {
		binary.BigEndian.PutUint32(b.putbuf[:], uint32(v))
		_, b.err = b.wrapped.Write(b.putbuf[:4])
	}
}

// PutUint32 appends v in network byte order.
func (b *WriteBuffer) PutUint32(v uint32) {
	if b.err == nil {
		binary.BigEndian.PutUint32(b.putbuf[:], v)
		_, b.err = b.wrapped.Write(b.putbuf[:4])
	}
}

// PutInt64 appends v in network byte order.
func (b *WriteBuffer) PutInt64(v int64) {
	if b.err == nil {
		binary.BigEndian.PutUint64(b.putbuf[:], uint64(v))
		_, b.err = b.wrapped.Write(b.putbuf[:8])
	}
}

func (b *WriteBuffer) reset() {
	b.wrapped.Reset()
	b.err = nil
	b.untyped = false
}

// InitMsg begins writing a message into the WriteBuffer with the provided type.
func (b *WriteBuffer) InitMsg(typ ClientMessageType) {
	b.reset()
	b.putbuf[0] = byte(typ)
	_, b.err = b.wrapped.Write(b.putbuf[:5]) // message type + message length
}

// InitUntypedMsg begins writing a message that carries no type byte. Only the
// startup, SSL and cancel requests use this form.
func (b *WriteBuffer) InitUntypedMsg() {
	b.reset()
	b.untyped = true
	_, b.err = b.wrapped.Write(b.putbuf[:4]) // message length only
}

// FinishMsg attempts to write the data it has accumulated to the provided
// io.Writer. If the WriteBuffer previously encountered an error since the
// last call to InitMsg, or if it encounters an error while writing to w, it
// will return an error.
func (b *WriteBuffer) FinishMsg(w io.Writer) error {
	defer b.reset()
	if b.err != nil {
		return b.err
	}
	bytes := b.wrapped.Bytes()
	// The length prefix covers everything except a leading type byte, if any.
	if b.untyped {
		binary.BigEndian.PutUint32(bytes[0:4], uint32(b.wrapped.Len()))
	} else {
		binary.BigEndian.PutUint32(bytes[1:5], uint32(b.wrapped.Len()-1))
	}
	_, err := w.Write(bytes)
	return err
}

// SetError sets the WriteBuffer's error, if it does not already have one.
func (b *WriteBuffer) SetError(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Err returns the buffer's latched error, if any.
func (b *WriteBuffer) Err() error {
	return b.err
}
