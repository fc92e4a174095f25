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
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/pgdriver/pkg/pgwire/pgerror"
	"github.com/google/uuid"
	"github.com/lib/pq/oid"
)

func decodeErrf(format string, args ...interface{}) error {
	return pgerror.Newf(pgerror.DataError, format, args...)
}

func wantLen(b []byte, n int, what string) error {
	if len(b) != n {
		return decodeErrf("%s: unexpected length %d, want %d", what, len(b), n)
	}
	return nil
}

func decodeBool(b []byte) (Datum, error) {
	if err := wantLen(b, 1, "bool"); err != nil {
		return nil, err
	}
	return DBool(b[0] != 0), nil
}

func decodeInt2(b []byte) (Datum, error) {
	if err := wantLen(b, 2, "int2"); err != nil {
		return nil, err
	}
	return DInt(int16(binary.BigEndian.Uint16(b))), nil
}

func decodeInt4(b []byte) (Datum, error) {
	if err := wantLen(b, 4, "int4"); err != nil {
		return nil, err
	}
	return DInt(int32(binary.BigEndian.Uint32(b))), nil
}

func decodeInt8(b []byte) (Datum, error) {
	if err := wantLen(b, 8, "int8"); err != nil {
		return nil, err
	}
	return DInt(int64(binary.BigEndian.Uint64(b))), nil
}

func decodeFloat4(b []byte) (Datum, error) {
	if err := wantLen(b, 4, "float4"); err != nil {
		return nil, err
	}
	return DFloat4(math.Float32frombits(binary.BigEndian.Uint32(b))), nil
}

func decodeFloat8(b []byte) (Datum, error) {
	if err := wantLen(b, 8, "float8"); err != nil {
		return nil, err
	}
	return DFloat(math.Float64frombits(binary.BigEndian.Uint64(b))), nil
}

func decodeString(b []byte) (Datum, error) {
	return DString(b), nil
}

func decodeBytes(b []byte) (Datum, error) {
	out := make([]byte, len(b))
	copy(out, b)
	return DBytes(out), nil
}

func decodeDate(b []byte) (Datum, error) {
	if err := wantLen(b, 4, "date"); err != nil {
		return nil, err
	}
	days := int32(binary.BigEndian.Uint32(b))
	return DDate{Time: pgEpoch.AddDate(0, 0, int(days))}, nil
}

func decodeTime(b []byte) (Datum, error) {
	if err := wantLen(b, 8, "time"); err != nil {
		return nil, err
	}
	micros := int64(binary.BigEndian.Uint64(b))
	if micros < 0 || micros > secsPerDay*microsPerSecond {
		return nil, decodeErrf("time of day out of range: %d", micros)
	}
	return DTime(micros), nil
}

func decodeTimestamp(b []byte) (Datum, error) {
	if err := wantLen(b, 8, "timestamp"); err != nil {
		return nil, err
	}
	micros := int64(binary.BigEndian.Uint64(b))
	return DTimestamp{Time: pgEpoch.Add(time.Duration(micros) * time.Microsecond)}, nil
}

func decodeTimestampTZ(b []byte) (Datum, error) {
	if err := wantLen(b, 8, "timestamptz"); err != nil {
		return nil, err
	}
	micros := int64(binary.BigEndian.Uint64(b))
	return DTimestampTZ{Time: pgEpoch.Add(time.Duration(micros) * time.Microsecond)}, nil
}

func decodeUUID(b []byte) (Datum, error) {
	if err := wantLen(b, 16, "uuid"); err != nil {
		return nil, err
	}
	u, err := uuid.FromBytes(b)
	if err != nil {
		return nil, decodeErrf("uuid: %v", err)
	}
	return DUuid{UUID: u}, nil
}

func decodeJSON(b []byte) (Datum, error) {
	var doc interface{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, decodeErrf("json: %v", err)
	}
	return DJSON{Doc: doc}, nil
}

func decodeJSONB(b []byte) (Datum, error) {
	if len(b) == 0 {
		return nil, decodeErrf("jsonb: empty payload")
	}
	if b[0] != 1 {
		return nil, decodeErrf("jsonb: unknown version %d", b[0])
	}
	return decodeJSON(b[1:])
}

// Binary numeric layout: int16 ndigits, int16 weight, uint16 sign,
// uint16 dscale, then ndigits base-10000 digit groups, most significant
// first. weight is the base-10000 exponent of the first group.
const (
	numericPos  = 0x0000
	numericNeg  = 0x4000
	numericNaN  = 0xC000
	numericPInf = 0xD000
	numericNInf = 0xF000
)

func decodeNumeric(b []byte) (Datum, error) {
	if len(b) < 8 {
		return nil, decodeErrf("numeric: truncated header (%d bytes)", len(b))
	}
	ndigits := int(int16(binary.BigEndian.Uint16(b[0:2])))
	weight := int(int16(binary.BigEndian.Uint16(b[2:4])))
	sign := binary.BigEndian.Uint16(b[4:6])
	dscale := int(binary.BigEndian.Uint16(b[6:8]))
	b = b[8:]

	d := &DDecimal{}
	switch sign {
	case numericNaN:
		d.Form = apd.NaN
		return d, nil
	case numericPInf:
		d.Form = apd.Infinite
		return d, nil
	case numericNInf:
		d.Form = apd.Infinite
		d.Negative = true
		return d, nil
	case numericPos, numericNeg:
	default:
		return nil, decodeErrf("numeric: unknown sign %04x", sign)
	}
	if len(b) < 2*ndigits {
		return nil, decodeErrf("numeric: truncated digits")
	}

	coef := new(apd.BigInt)
	tmp := new(apd.BigInt)
	tenThousand := apd.NewBigInt(10000)
	for i := 0; i < ndigits; i++ {
		dig := binary.BigEndian.Uint16(b[2*i:])
		if dig > 9999 {
			return nil, decodeErrf("numeric: invalid digit group %d", dig)
		}
		coef.Mul(coef, tenThousand)
		coef.Add(coef, tmp.SetInt64(int64(dig)))
	}

	// The accumulated coefficient has exponent 4*(weight-ndigits+1); shift it
	// so the result carries exactly dscale fractional digits.
	exp := 4 * (weight - ndigits + 1)
	target := -dscale
	if diff := exp - target; diff > 0 {
		coef.Mul(coef, tmp.Exp(apd.NewBigInt(10), apd.NewBigInt(int64(diff)), nil))
	} else if diff < 0 {
		coef.Quo(coef, tmp.Exp(apd.NewBigInt(10), apd.NewBigInt(int64(-diff)), nil))
	}
	d.Coeff.Set(coef)
	d.Exponent = int32(target)
	d.Negative = sign == numericNeg
	return d, nil
}

// Binary inet/cidr layout: family byte, prefix bits byte, is_cidr byte,
// address length byte, address bytes.
const (
	pgsqlAFInet  = 2
	pgsqlAFInet6 = 3
)

func decodeIPAddr(b []byte) (Datum, error) {
	if len(b) < 4 {
		return nil, decodeErrf("inet: truncated header (%d bytes)", len(b))
	}
	family, bits, addrLen := b[0], int(b[1]), int(b[3])
	b = b[4:]
	if len(b) != addrLen {
		return nil, decodeErrf("inet: address length %d does not match payload %d", addrLen, len(b))
	}
	var addr netip.Addr
	switch {
	case family == pgsqlAFInet && addrLen == 4:
		addr = netip.AddrFrom4([4]byte(b))
	case family == pgsqlAFInet6 && addrLen == 16:
		addr = netip.AddrFrom16([16]byte(b))
	default:
		return nil, decodeErrf("inet: unknown family %d with %d address bytes", family, addrLen)
	}
	if bits > addr.BitLen() {
		return nil, decodeErrf("inet: prefix length %d out of range", bits)
	}
	return DIPAddr{Prefix: netip.PrefixFrom(addr, bits)}, nil
}

// Binary array layout: int32 ndims, int32 hasnulls, int32 element oid, then
// per dimension {int32 length, int32 lower bound}, then per element an int32
// length (-1 for NULL) and the element payload. Only one-dimensional arrays
// are supported.
func decodeArray(elem oid.Oid, b []byte) (Datum, error) {
	if len(b) < 12 {
		return nil, decodeErrf("array: truncated header (%d bytes)", len(b))
	}
	ndims := int32(binary.BigEndian.Uint32(b[0:4]))
	hasNulls := binary.BigEndian.Uint32(b[4:8]) != 0
	wireElem := oid.Oid(binary.BigEndian.Uint32(b[8:12]))
	b = b[12:]
	if wireElem != elem {
		// Trust the wire: the server knows the element type better than the
		// column descriptor does (e.g. domains over array types).
		elem = wireElem
	}
	if ndims == 0 {
		return &DArray{ElemOid: elem}, nil
	}
	if ndims != 1 {
		return nil, pgerror.Newf(pgerror.NotSupportedError,
			"%d-dimensional arrays are not supported", ndims)
	}
	if len(b) < 8 {
		return nil, decodeErrf("array: truncated dimension header")
	}
	length := int(int32(binary.BigEndian.Uint32(b[0:4])))
	b = b[8:] // skip lower bound
	if length < 0 {
		return nil, decodeErrf("array: negative length %d", length)
	}

	arr := &DArray{ElemOid: elem, Elems: make([]Datum, 0, length), HasNulls: hasNulls}
	for i := 0; i < length; i++ {
		if len(b) < 4 {
			return nil, decodeErrf("array: truncated element %d", i)
		}
		elemLen := int32(binary.BigEndian.Uint32(b[0:4]))
		b = b[4:]
		if elemLen < 0 {
			arr.Elems = append(arr.Elems, DNull)
			continue
		}
		if len(b) < int(elemLen) {
			return nil, decodeErrf("array: truncated element %d payload", i)
		}
		d, err := Decode(elem, 1, b[:elemLen])
		if err != nil {
			return nil, err
		}
		arr.Elems = append(arr.Elems, d)
		b = b[elemLen:]
	}
	return arr, nil
}

// Text-format decoders. The driver requests binary results on the extended
// path, but text values still arrive from simple-protocol cycles and from
// parameters the server echoes back.

func decodeBoolText(b []byte) (Datum, error) {
	switch string(b) {
	case "t", "true":
		return DBool(true), nil
	case "f", "false":
		return DBool(false), nil
	}
	return nil, decodeErrf("bool: malformed literal %q", b)
}

func decodeIntText(b []byte) (Datum, error) {
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return nil, decodeErrf("int: malformed literal %q", b)
	}
	return DInt(v), nil
}

func decodeFloat4Text(b []byte) (Datum, error) {
	v, err := strconv.ParseFloat(string(b), 32)
	if err != nil {
		return nil, decodeErrf("float4: malformed literal %q", b)
	}
	return DFloat4(v), nil
}

func decodeFloat8Text(b []byte) (Datum, error) {
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return nil, decodeErrf("float8: malformed literal %q", b)
	}
	return DFloat(v), nil
}

func decodeByteaText(b []byte) (Datum, error) {
	s := string(b)
	if !strings.HasPrefix(s, `\x`) {
		return nil, decodeErrf("bytea: unsupported text encoding %q", s)
	}
	out, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, decodeErrf("bytea: %v", err)
	}
	return DBytes(out), nil
}

func decodeDateText(b []byte) (Datum, error) {
	t, err := time.ParseInLocation("2006-01-02", string(b), time.UTC)
	if err != nil {
		return nil, decodeErrf("date: malformed literal %q", b)
	}
	return DDate{Time: t}, nil
}

func decodeTimeText(b []byte) (Datum, error) {
	t, err := time.ParseInLocation("15:04:05.999999", string(b), time.UTC)
	if err != nil {
		return nil, decodeErrf("time: malformed literal %q", b)
	}
	micros := int64(t.Hour()*3600+t.Minute()*60+t.Second())*microsPerSecond +
		int64(t.Nanosecond()/1000)
	return DTime(micros), nil
}

func decodeTimestampText(b []byte) (Datum, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04:05.999999", string(b), time.UTC)
	if err != nil {
		return nil, decodeErrf("timestamp: malformed literal %q", b)
	}
	return DTimestamp{Time: t}, nil
}

func decodeTimestampTZText(b []byte) (Datum, error) {
	t, err := time.Parse("2006-01-02 15:04:05.999999Z07", string(b))
	if err != nil {
		return nil, decodeErrf("timestamptz: malformed literal %q", b)
	}
	return DTimestampTZ{Time: t.UTC()}, nil
}

func decodeUUIDText(b []byte) (Datum, error) {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return nil, decodeErrf("uuid: malformed literal %q", b)
	}
	return DUuid{UUID: u}, nil
}

func decodeNumericText(b []byte) (Datum, error) {
	d := &DDecimal{}
	if _, _, err := d.SetString(string(b)); err != nil {
		return nil, decodeErrf("numeric: malformed literal %q", b)
	}
	return d, nil
}

func decodeIPAddrText(b []byte) (Datum, error) {
	s := string(b)
	if !strings.Contains(s, "/") {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, decodeErrf("inet: malformed literal %q", s)
		}
		return DIPAddr{Prefix: netip.PrefixFrom(addr, addr.BitLen())}, nil
	}
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return nil, decodeErrf("inet: malformed literal %q", s)
	}
	return DIPAddr{Prefix: p}, nil
}
