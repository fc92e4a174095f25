// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgwirebase

// ClientMessageType represents a frontend pgwire message type byte.
//
// https://www.postgresql.org/docs/current/protocol-message-formats.html
type ClientMessageType byte

// ClientMessageType values.
const (
	ClientMsgBind        ClientMessageType = 'B'
	ClientMsgClose       ClientMessageType = 'C'
	ClientMsgCopyData    ClientMessageType = 'd'
	ClientMsgCopyDone    ClientMessageType = 'c'
	ClientMsgCopyFail    ClientMessageType = 'f'
	ClientMsgDescribe    ClientMessageType = 'D'
	ClientMsgExecute     ClientMessageType = 'E'
	ClientMsgFlush       ClientMessageType = 'H'
	ClientMsgParse       ClientMessageType = 'P'
	ClientMsgPassword    ClientMessageType = 'p'
	ClientMsgSimpleQuery ClientMessageType = 'Q'
	ClientMsgSync        ClientMessageType = 'S'
	ClientMsgTerminate   ClientMessageType = 'X'
)

// ServerMessageType represents a backend pgwire message type byte.
type ServerMessageType byte

// ServerMessageType values.
const (
	ServerMsgAuth                 ServerMessageType = 'R'
	ServerMsgBackendKeyData       ServerMessageType = 'K'
	ServerMsgBindComplete         ServerMessageType = '2'
	ServerMsgCloseComplete        ServerMessageType = '3'
	ServerMsgCommandComplete      ServerMessageType = 'C'
	ServerMsgDataRow              ServerMessageType = 'D'
	ServerMsgEmptyQuery           ServerMessageType = 'I'
	ServerMsgErrorResponse        ServerMessageType = 'E'
	ServerMsgNoData               ServerMessageType = 'n'
	ServerMsgNoticeResponse       ServerMessageType = 'N'
	ServerMsgParameterDescription ServerMessageType = 't'
	ServerMsgParameterStatus      ServerMessageType = 'S'
	ServerMsgParseComplete        ServerMessageType = '1'
	ServerMsgPortalSuspended      ServerMessageType = 's'
	ServerMsgReady                ServerMessageType = 'Z'
	ServerMsgRowDescription       ServerMessageType = 'T'
)

// ServerErrFieldType represents the error fields in ErrorResponse and
// NoticeResponse messages.
//
// https://www.postgresql.org/docs/current/protocol-error-fields.html
type ServerErrFieldType byte

// ServerErrFieldType values.
const (
	ServerErrFieldSeverity       ServerErrFieldType = 'S'
	ServerErrFieldSQLState       ServerErrFieldType = 'C'
	ServerErrFieldMsgPrimary     ServerErrFieldType = 'M'
	ServerErrFieldDetail         ServerErrFieldType = 'D'
	ServerErrFieldHint           ServerErrFieldType = 'H'
	ServerErrFieldPosition       ServerErrFieldType = 'P'
	ServerErrFieldSchemaName     ServerErrFieldType = 's'
	ServerErrFieldTableName      ServerErrFieldType = 't'
	ServerErrFieldColumnName     ServerErrFieldType = 'c'
	ServerErrFieldConstraintName ServerErrFieldType = 'n'
	ServerErrFieldSrcFile        ServerErrFieldType = 'F'
	ServerErrFieldSrcLine        ServerErrFieldType = 'L'
	ServerErrFieldSrcFunction    ServerErrFieldType = 'R'
)

// PrepareType represents a subject for Describe and Close messages.
type PrepareType byte

const (
	// PrepareStatement addresses a prepared statement.
	PrepareStatement PrepareType = 'S'
	// PreparePortal addresses a portal.
	PreparePortal PrepareType = 'P'
)

// FormatCode represents a pgwire data format.
type FormatCode int16

const (
	// FormatText is the default, text format.
	FormatText FormatCode = 0
	// FormatBinary is an alternative, binary, encoding.
	FormatBinary FormatCode = 1
)

// Authentication request codes carried in ServerMsgAuth messages.
const (
	AuthOK                int32 = 0
	AuthCleartextPassword int32 = 3
	AuthMD5Password       int32 = 5
	AuthSASL              int32 = 10
	AuthSASLContinue      int32 = 11
	AuthSASLFinal         int32 = 12
)

// ProtocolVersionNumber is the only protocol version supported: 3.0.
const ProtocolVersionNumber uint32 = 196608

// CancelRequestCode and SSLRequestCode are pseudo protocol versions used by
// the corresponding startup-phase requests.
const (
	CancelRequestCode uint32 = 80877102
	SSLRequestCode    uint32 = 80877103
)
