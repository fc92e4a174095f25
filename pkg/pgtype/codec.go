// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgtype

import (
	"github.com/cockroachdb/pgdriver/pkg/pgwire/pgerror"
	"github.com/cockroachdb/pgdriver/pkg/pgwire/pgwirebase"
	"github.com/lib/pq/oid"
)

// codec is one entry of the registry: the encode/decode pair for a type OID.
// decodeText may be nil for types we only ever request in binary format.
type codec struct {
	decodeBinary func(b []byte) (Datum, error)
	decodeText   func(b []byte) (Datum, error)
	encode       func(d Datum) ([]byte, error)
}

// registry maps a type OID to its codec. Array OIDs are resolved through
// arrayToElem instead of individual entries.
var registry = map[oid.Oid]codec{
	oid.T_bool:        {decodeBool, decodeBoolText, encodeBool},
	oid.T_int2:        {decodeInt2, decodeIntText, encodeInt2},
	oid.T_int4:        {decodeInt4, decodeIntText, encodeInt4},
	oid.T_int8:        {decodeInt8, decodeIntText, encodeInt8},
	oid.T_float4:      {decodeFloat4, decodeFloat4Text, encodeFloat4},
	oid.T_float8:      {decodeFloat8, decodeFloat8Text, encodeFloat8},
	oid.T_text:        {decodeString, decodeString, encodeString},
	oid.T_varchar:     {decodeString, decodeString, encodeString},
	oid.T_bpchar:      {decodeString, decodeString, encodeString},
	oid.T_name:        {decodeString, decodeString, encodeString},
	oid.T_unknown:     {decodeString, decodeString, encodeString},
	oid.T_bytea:       {decodeBytes, decodeByteaText, encodeBytes},
	oid.T_date:        {decodeDate, decodeDateText, encodeDate},
	oid.T_time:        {decodeTime, decodeTimeText, encodeTime},
	oid.T_timestamp:   {decodeTimestamp, decodeTimestampText, encodeTimestamp},
	oid.T_timestamptz: {decodeTimestampTZ, decodeTimestampTZText, encodeTimestampTZ},
	oid.T_uuid:        {decodeUUID, decodeUUIDText, encodeUUID},
	oid.T_json:        {decodeJSON, decodeJSON, encodeJSON},
	oid.T_jsonb:       {decodeJSONB, decodeJSON, encodeJSONB},
	oid.T_numeric:     {decodeNumeric, decodeNumericText, encodeNumeric},
	oid.T_inet:        {decodeIPAddr, decodeIPAddrText, encodeIPAddr},
	oid.T_cidr:        {decodeIPAddr, decodeIPAddrText, encodeCIDR},
}

// arrayToElem maps the array OIDs we support to their element OID.
var arrayToElem = map[oid.Oid]oid.Oid{
	oid.T__bool:        oid.T_bool,
	oid.T__int2:        oid.T_int2,
	oid.T__int4:        oid.T_int4,
	oid.T__int8:        oid.T_int8,
	oid.T__float4:      oid.T_float4,
	oid.T__float8:      oid.T_float8,
	oid.T__text:        oid.T_text,
	oid.T__varchar:     oid.T_varchar,
	oid.T__bpchar:      oid.T_bpchar,
	oid.T__name:        oid.T_name,
	oid.T__bytea:       oid.T_bytea,
	oid.T__date:        oid.T_date,
	oid.T__time:        oid.T_time,
	oid.T__timestamp:   oid.T_timestamp,
	oid.T__timestamptz: oid.T_timestamptz,
	oid.T__uuid:        oid.T_uuid,
	oid.T__json:        oid.T_json,
	oid.T__jsonb:       oid.T_jsonb,
	oid.T__numeric:     oid.T_numeric,
	oid.T__inet:        oid.T_inet,
	oid.T__cidr:        oid.T_cidr,
}

// elemToArray is the inverse of arrayToElem, used when encoding parameters.
var elemToArray = func() map[oid.Oid]oid.Oid {
	m := make(map[oid.Oid]oid.Oid, len(arrayToElem))
	for arr, elem := range arrayToElem {
		m[elem] = arr
	}
	return m
}()

// IsSupported reports whether the OID has a registered codec.
func IsSupported(t oid.Oid) bool {
	if _, ok := registry[t]; ok {
		return true
	}
	_, ok := arrayToElem[t]
	return ok
}

// Decode converts wire bytes into a Datum given the column's type OID and
// format. A nil b (the wire's -1 length) decodes as DNull regardless of
// type. Decoding an unrecognized OID fails with NotSupportedError rather
// than returning raw bytes.
func Decode(t oid.Oid, code pgwirebase.FormatCode, b []byte) (Datum, error) {
	if b == nil {
		return DNull, nil
	}
	if elem, ok := arrayToElem[t]; ok {
		if code != pgwirebase.FormatBinary {
			return nil, pgerror.Newf(pgerror.NotSupportedError,
				"text-format array decoding is not supported (oid %d)", t)
		}
		return decodeArray(elem, b)
	}
	c, ok := registry[t]
	if !ok {
		return nil, pgerror.Newf(pgerror.NotSupportedError, "unsupported type oid %d", t)
	}
	switch code {
	case pgwirebase.FormatBinary:
		return c.decodeBinary(b)
	case pgwirebase.FormatText:
		if c.decodeText == nil {
			return nil, pgerror.Newf(pgerror.NotSupportedError,
				"text-format decoding is not supported for oid %d", t)
		}
		return c.decodeText(b)
	default:
		return nil, pgerror.Newf(pgerror.InterfaceError, "unknown format code %d", code)
	}
}

// Encode converts a Datum into wire bytes for the target OID, choosing the
// binary format whenever the target type is known. DNull encodes as a nil
// slice, which Bind writes as the -1 length marker. A target OID of 0
// (unspecified: the server infers the type) forces the text rendering.
func Encode(d Datum, t oid.Oid) ([]byte, pgwirebase.FormatCode, error) {
	if d == DNull {
		return nil, pgwirebase.FormatBinary, nil
	}
	if t == 0 {
		s, err := encodeUnspecifiedText(d)
		return s, pgwirebase.FormatText, err
	}
	if elem, ok := arrayToElem[t]; ok {
		b, err := encodeArray(d, elem)
		return b, pgwirebase.FormatBinary, err
	}
	c, ok := registry[t]
	if !ok {
		return nil, 0, pgerror.Newf(pgerror.NotSupportedError, "unsupported type oid %d", t)
	}
	b, err := c.encode(d)
	return b, pgwirebase.FormatBinary, err
}

func typeMismatch(t string, d Datum) error {
	return pgerror.Newf(pgerror.DataError, "cannot encode %T as %s", d, t)
}
