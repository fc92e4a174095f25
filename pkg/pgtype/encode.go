// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgtype

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/pgdriver/pkg/pgwire/pgerror"
	"github.com/lib/pq/oid"
)

func encodeBool(d Datum) ([]byte, error) {
	v, ok := d.(DBool)
	if !ok {
		return nil, typeMismatch("bool", d)
	}
	if v {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

func encodeInt2(d Datum) ([]byte, error) {
	v, ok := d.(DInt)
	if !ok {
		return nil, typeMismatch("int2", d)
	}
	if v < math.MinInt16 || v > math.MaxInt16 {
		return nil, pgerror.Newf(pgerror.DataError, "value %d out of range for int2", int64(v))
	}
	return binary.BigEndian.AppendUint16(nil, uint16(int16(v))), nil
}

func encodeInt4(d Datum) ([]byte, error) {
	v, ok := d.(DInt)
	if !ok {
		return nil, typeMismatch("int4", d)
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return nil, pgerror.Newf(pgerror.DataError, "value %d out of range for int4", int64(v))
	}
	return binary.BigEndian.AppendUint32(nil, uint32(int32(v))), nil
}

func encodeInt8(d Datum) ([]byte, error) {
	v, ok := d.(DInt)
	if !ok {
		return nil, typeMismatch("int8", d)
	}
	return binary.BigEndian.AppendUint64(nil, uint64(v)), nil
}

func encodeFloat4(d Datum) ([]byte, error) {
	switch v := d.(type) {
	case DFloat4:
		return binary.BigEndian.AppendUint32(nil, math.Float32bits(float32(v))), nil
	case DFloat:
		return binary.BigEndian.AppendUint32(nil, math.Float32bits(float32(v))), nil
	}
	return nil, typeMismatch("float4", d)
}

func encodeFloat8(d Datum) ([]byte, error) {
	switch v := d.(type) {
	case DFloat:
		return binary.BigEndian.AppendUint64(nil, math.Float64bits(float64(v))), nil
	case DFloat4:
		return binary.BigEndian.AppendUint64(nil, math.Float64bits(float64(v))), nil
	}
	return nil, typeMismatch("float8", d)
}

func encodeString(d Datum) ([]byte, error) {
	v, ok := d.(DString)
	if !ok {
		return nil, typeMismatch("text", d)
	}
	return []byte(v), nil
}

func encodeBytes(d Datum) ([]byte, error) {
	v, ok := d.(DBytes)
	if !ok {
		return nil, typeMismatch("bytea", d)
	}
	return []byte(v), nil
}

func encodeDate(d Datum) ([]byte, error) {
	v, ok := d.(DDate)
	if !ok {
		return nil, typeMismatch("date", d)
	}
	t := time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
	days := int64(t.Sub(pgEpoch) / (secsPerDay * time.Second))
	if days < math.MinInt32 || days > math.MaxInt32 {
		return nil, pgerror.Newf(pgerror.DataError, "date %v out of range", v.Time)
	}
	return binary.BigEndian.AppendUint32(nil, uint32(int32(days))), nil
}

func encodeTime(d Datum) ([]byte, error) {
	v, ok := d.(DTime)
	if !ok {
		return nil, typeMismatch("time", d)
	}
	if v < 0 || int64(v) > secsPerDay*microsPerSecond {
		return nil, pgerror.Newf(pgerror.DataError, "time of day %d out of range", int64(v))
	}
	return binary.BigEndian.AppendUint64(nil, uint64(v)), nil
}

func pgMicros(t time.Time) int64 {
	return t.Unix()*microsPerSecond + int64(t.Nanosecond()/1000) - pgEpoch.Unix()*microsPerSecond
}

func encodeTimestamp(d Datum) ([]byte, error) {
	var t time.Time
	switch v := d.(type) {
	case DTimestamp:
		t = v.Time
	case DTimestampTZ:
		t = v.Time.UTC()
	default:
		return nil, typeMismatch("timestamp", d)
	}
	return binary.BigEndian.AppendUint64(nil, uint64(pgMicros(t))), nil
}

func encodeTimestampTZ(d Datum) ([]byte, error) {
	var t time.Time
	switch v := d.(type) {
	case DTimestampTZ:
		t = v.Time.UTC()
	case DTimestamp:
		t = v.Time
	default:
		return nil, typeMismatch("timestamptz", d)
	}
	return binary.BigEndian.AppendUint64(nil, uint64(pgMicros(t))), nil
}

func encodeUUID(d Datum) ([]byte, error) {
	v, ok := d.(DUuid)
	if !ok {
		return nil, typeMismatch("uuid", d)
	}
	b := v.UUID
	return b[:], nil
}

func encodeJSON(d Datum) ([]byte, error) {
	v, ok := d.(DJSON)
	if !ok {
		return nil, typeMismatch("json", d)
	}
	return json.Marshal(v.Doc)
}

func encodeJSONB(d Datum) ([]byte, error) {
	b, err := encodeJSON(d)
	if err != nil {
		return nil, err
	}
	return append([]byte{1}, b...), nil
}

func encodeNumeric(d Datum) ([]byte, error) {
	v, ok := d.(*DDecimal)
	if !ok {
		return nil, typeMismatch("numeric", d)
	}
	sign := uint16(numericPos)
	switch v.Form {
	case apd.NaN, apd.NaNSignaling:
		return binary.BigEndian.AppendUint16(
			binary.BigEndian.AppendUint16(
				binary.BigEndian.AppendUint16(
					binary.BigEndian.AppendUint16(nil, 0), 0), numericNaN), 0), nil
	case apd.Infinite:
		if v.Negative {
			sign = numericNInf
		} else {
			sign = numericPInf
		}
		return binary.BigEndian.AppendUint16(
			binary.BigEndian.AppendUint16(
				binary.BigEndian.AppendUint16(
					binary.BigEndian.AppendUint16(nil, 0), 0), sign), 0), nil
	}
	if v.Negative {
		sign = numericNeg
	}

	exp := int(v.Exponent)
	dscale := 0
	if exp < 0 {
		dscale = -exp
	}

	digits := v.Coeff.String()
	if digits == "0" {
		out := binary.BigEndian.AppendUint16(nil, 0)    // ndigits
		out = binary.BigEndian.AppendUint16(out, 0)     // weight
		out = binary.BigEndian.AppendUint16(out, sign)  // sign (zero keeps its sign bit clear)
		out = binary.BigEndian.AppendUint16(out, uint16(dscale))
		return out, nil
	}

	// Align the decimal digit string on base-10000 group boundaries. intLen
	// is the number of digits left of the decimal point (possibly negative
	// for values below 1e-1); shift pads the front so the first group starts
	// on a boundary.
	intLen := len(digits) + exp
	shift := ((-intLen)%4 + 4) % 4
	weight := (intLen+shift)/4 - 1

	var sb strings.Builder
	for i := 0; i < shift; i++ {
		sb.WriteByte('0')
	}
	sb.WriteString(digits)
	for sb.Len()%4 != 0 {
		sb.WriteByte('0')
	}
	padded := sb.String()

	groups := make([]uint16, 0, len(padded)/4)
	for i := 0; i < len(padded); i += 4 {
		g, err := strconv.Atoi(padded[i : i+4])
		if err != nil {
			return nil, pgerror.Newf(pgerror.DataError, "numeric: malformed coefficient %q", digits)
		}
		groups = append(groups, uint16(g))
	}
	// Trailing zero groups carry no information.
	for len(groups) > 0 && groups[len(groups)-1] == 0 {
		groups = groups[:len(groups)-1]
	}

	if weight > math.MaxInt16 || weight < math.MinInt16 || dscale > math.MaxUint16 {
		return nil, pgerror.Newf(pgerror.DataError, "numeric value out of wire range")
	}
	out := binary.BigEndian.AppendUint16(nil, uint16(len(groups)))
	out = binary.BigEndian.AppendUint16(out, uint16(int16(weight)))
	out = binary.BigEndian.AppendUint16(out, sign)
	out = binary.BigEndian.AppendUint16(out, uint16(dscale))
	for _, g := range groups {
		out = binary.BigEndian.AppendUint16(out, g)
	}
	return out, nil
}

func encodeIPAddrAs(d Datum, isCIDR bool) ([]byte, error) {
	v, ok := d.(DIPAddr)
	if !ok {
		return nil, typeMismatch("inet", d)
	}
	addr := v.Addr()
	family := byte(pgsqlAFInet)
	if addr.Is6() {
		family = pgsqlAFInet6
	}
	cidr := byte(0)
	if isCIDR {
		cidr = 1
	}
	raw := addr.AsSlice()
	out := make([]byte, 0, 4+len(raw))
	out = append(out, family, byte(v.Bits()), cidr, byte(len(raw)))
	return append(out, raw...), nil
}

func encodeIPAddr(d Datum) ([]byte, error) {
	return encodeIPAddrAs(d, false)
}

func encodeCIDR(d Datum) ([]byte, error) {
	return encodeIPAddrAs(d, true)
}

func encodeArray(d Datum, elem oid.Oid) ([]byte, error) {
	arr, ok := d.(*DArray)
	if !ok {
		return nil, typeMismatch("array", d)
	}
	c, ok := registry[elem]
	if !ok {
		return nil, pgerror.Newf(pgerror.NotSupportedError,
			"unsupported array element oid %d", elem)
	}

	out := make([]byte, 0, 20+16*len(arr.Elems))
	if len(arr.Elems) == 0 {
		out = binary.BigEndian.AppendUint32(out, 0) // ndims
		out = binary.BigEndian.AppendUint32(out, 0) // hasnulls
		out = binary.BigEndian.AppendUint32(out, uint32(elem))
		return out, nil
	}

	hasNulls := uint32(0)
	for _, e := range arr.Elems {
		if e == DNull {
			hasNulls = 1
			break
		}
	}
	out = binary.BigEndian.AppendUint32(out, 1) // ndims
	out = binary.BigEndian.AppendUint32(out, hasNulls)
	out = binary.BigEndian.AppendUint32(out, uint32(elem))
	out = binary.BigEndian.AppendUint32(out, uint32(len(arr.Elems)))
	out = binary.BigEndian.AppendUint32(out, 1) // lower bound

	for _, e := range arr.Elems {
		if e == DNull {
			out = binary.BigEndian.AppendUint32(out, 0xFFFFFFFF)
			continue
		}
		eb, err := c.encode(e)
		if err != nil {
			return nil, err
		}
		out = binary.BigEndian.AppendUint32(out, uint32(len(eb)))
		out = append(out, eb...)
	}
	return out, nil
}

// encodeUnspecifiedText renders a Datum as a text literal for a parameter
// whose type OID is 0, leaving type resolution to the server.
func encodeUnspecifiedText(d Datum) ([]byte, error) {
	switch v := d.(type) {
	case DBool:
		if v {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case DInt:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case DFloat:
		return strconv.AppendFloat(nil, float64(v), 'g', -1, 64), nil
	case DFloat4:
		return strconv.AppendFloat(nil, float64(v), 'g', -1, 32), nil
	case DString:
		return []byte(v), nil
	case DBytes:
		return []byte(`\x` + hex.EncodeToString(v)), nil
	case DDate:
		return []byte(v.Format("2006-01-02")), nil
	case DTime:
		micros := int64(v)
		sec := micros / microsPerSecond
		frac := micros % microsPerSecond
		t := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).
			Add(time.Duration(sec)*time.Second + time.Duration(frac)*time.Microsecond)
		return []byte(t.Format("15:04:05.999999")), nil
	case DTimestamp:
		return []byte(v.Format("2006-01-02 15:04:05.999999")), nil
	case DTimestampTZ:
		return []byte(v.UTC().Format("2006-01-02 15:04:05.999999+00")), nil
	case DUuid:
		return []byte(v.UUID.String()), nil
	case DJSON:
		return json.Marshal(v.Doc)
	case *DDecimal:
		return []byte(v.Text('f')), nil
	case DIPAddr:
		return []byte(v.Prefix.String()), nil
	}
	return nil, pgerror.Newf(pgerror.NotSupportedError,
		"cannot render %T without a resolved type", d)
}
