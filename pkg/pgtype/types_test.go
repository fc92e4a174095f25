// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgtype

import (
	"net/netip"
	"testing"
	"time"

	"github.com/cockroachdb/pgdriver/pkg/pgwire/pgerror"
	"github.com/cockroachdb/pgdriver/pkg/pgwire/pgwirebase"
	"github.com/google/uuid"
	"github.com/lib/pq/oid"
	"github.com/stretchr/testify/require"
)

func mustDecimal(t *testing.T, s string) *DDecimal {
	t.Helper()
	d := &DDecimal{}
	_, _, err := d.SetString(s)
	require.NoError(t, err)
	return d
}

func TestBinaryRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 15, 10, 30, 45, 123456000, time.UTC)
	testCases := []struct {
		oid oid.Oid
		d   Datum
	}{
		{oid.T_bool, DBool(true)},
		{oid.T_bool, DBool(false)},
		{oid.T_int2, DInt(-32768)},
		{oid.T_int4, DInt(1 << 20)},
		{oid.T_int8, DInt(-1 << 60)},
		{oid.T_float4, DFloat4(1.5)},
		{oid.T_float8, DFloat(-2.25e100)},
		{oid.T_text, DString("héllo")},
		{oid.T_text, DString("")},
		{oid.T_bytea, DBytes{0x00, 0xff, 0x10}},
		{oid.T_date, DDate{Time: time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC)}},
		{oid.T_date, DDate{Time: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)}},
		{oid.T_time, DTime(12*3600*1000000 + 345)},
		{oid.T_timestamp, DTimestamp{Time: ts}},
		{oid.T_timestamptz, DTimestampTZ{Time: ts}},
		{oid.T_timestamptz, DTimestampTZ{Time: time.Date(1969, 7, 20, 20, 17, 0, 0, time.UTC)}},
		{oid.T_uuid, DUuid{UUID: uuid.MustParse("a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11")}},
		{oid.T_numeric, mustDecimal(t, "1234.5")},
		{oid.T_numeric, mustDecimal(t, "0.5")},
		{oid.T_numeric, mustDecimal(t, "0.00005")},
		{oid.T_numeric, mustDecimal(t, "0.005")},
		{oid.T_numeric, mustDecimal(t, "-98765432109876543210.123456789")},
		{oid.T_numeric, mustDecimal(t, "0")},
		{oid.T_inet, DIPAddr{Prefix: netip.MustParsePrefix("192.168.1.7/32")}},
		{oid.T_inet, DIPAddr{Prefix: netip.MustParsePrefix("2001:db8::1/64")}},
		{oid.T_cidr, DIPAddr{Prefix: netip.MustParsePrefix("10.0.0.0/8")}},
	}
	for _, tc := range testCases {
		b, code, err := Encode(tc.d, tc.oid)
		require.NoError(t, err, "encode %v as %s", tc.d, oid.TypeName[tc.oid])
		require.Equal(t, pgwirebase.FormatBinary, code)
		got, err := Decode(tc.oid, code, b)
		require.NoError(t, err, "decode %s", oid.TypeName[tc.oid])
		switch want := tc.d.(type) {
		case *DDecimal:
			gd, ok := got.(*DDecimal)
			require.True(t, ok)
			require.Zero(t, want.Cmp(&gd.Decimal), "numeric %s decoded as %s", want.String(), gd.String())
		default:
			require.Equal(t, tc.d, got, "round trip %s", oid.TypeName[tc.oid])
		}
	}
}

func TestNumericSpecialForms(t *testing.T) {
	for _, s := range []string{"NaN", "Infinity", "-Infinity"} {
		d := mustDecimal(t, s)
		b, _, err := Encode(d, oid.T_numeric)
		require.NoError(t, err)
		got, err := Decode(oid.T_numeric, pgwirebase.FormatBinary, b)
		require.NoError(t, err)
		gd := got.(*DDecimal)
		require.Equal(t, d.Form, gd.Form)
		require.Equal(t, d.Negative, gd.Negative)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	doc := map[string]interface{}{
		"a": float64(1),
		"b": []interface{}{"x", nil, true},
	}
	for _, typ := range []oid.Oid{oid.T_json, oid.T_jsonb} {
		b, _, err := Encode(DJSON{Doc: doc}, typ)
		require.NoError(t, err)
		got, err := Decode(typ, pgwirebase.FormatBinary, b)
		require.NoError(t, err)
		require.Equal(t, DJSON{Doc: doc}, got)
	}
	_, err := Decode(oid.T_jsonb, pgwirebase.FormatBinary, []byte{9, '1'})
	require.Error(t, err)
}

func TestNullHandling(t *testing.T) {
	// A nil payload is NULL for every type, and NULL encodes as a nil
	// payload for every target.
	for _, typ := range []oid.Oid{oid.T_bool, oid.T_int8, oid.T_text, oid.T__int4, oid.Oid(99999)} {
		d, err := Decode(typ, pgwirebase.FormatBinary, nil)
		require.NoError(t, err)
		require.Equal(t, DNull, d)
	}
	b, _, err := Encode(DNull, oid.T_int8)
	require.NoError(t, err)
	require.Nil(t, b)
}

func TestArrayRoundTrip(t *testing.T) {
	testCases := []*DArray{
		{ElemOid: oid.T_int8, Elems: []Datum{DInt(1), DInt(2), DInt(3)}},
		{ElemOid: oid.T_int8, Elems: []Datum{DInt(1), DNull, DInt(3)}, HasNulls: true},
		{ElemOid: oid.T_text, Elems: []Datum{DString("a"), DString("")}},
		{ElemOid: oid.T_bool, Elems: nil},
	}
	for _, arr := range testCases {
		arrOid := elemToArray[arr.ElemOid]
		b, code, err := Encode(arr, arrOid)
		require.NoError(t, err)
		require.Equal(t, pgwirebase.FormatBinary, code)
		got, err := Decode(arrOid, code, b)
		require.NoError(t, err)
		garr := got.(*DArray)
		require.Equal(t, arr.ElemOid, garr.ElemOid)
		require.Equal(t, len(arr.Elems), len(garr.Elems))
		for i := range arr.Elems {
			require.Equal(t, arr.Elems[i], garr.Elems[i])
		}
	}
}

func TestMultiDimArrayRejected(t *testing.T) {
	// 2x1 int4 array header.
	payload := []byte{
		0, 0, 0, 2, // ndims
		0, 0, 0, 0, // hasnulls
		0, 0, 0, 23, // int4
		0, 0, 0, 2, 0, 0, 0, 1,
		0, 0, 0, 1, 0, 0, 0, 1,
	}
	_, err := Decode(oid.T__int4, pgwirebase.FormatBinary, payload)
	require.True(t, pgerror.HasKind(err, pgerror.NotSupportedError))
}

func TestUnsupportedOid(t *testing.T) {
	_, err := Decode(oid.T_point, pgwirebase.FormatBinary, []byte{0})
	require.True(t, pgerror.HasKind(err, pgerror.NotSupportedError))
	_, _, err = Encode(DInt(1), oid.T_point)
	require.True(t, pgerror.HasKind(err, pgerror.NotSupportedError))
}

func TestIntOverflow(t *testing.T) {
	_, _, err := Encode(DInt(1<<20), oid.T_int2)
	require.True(t, pgerror.HasKind(err, pgerror.DataError))
	_, _, err = Encode(DInt(1<<40), oid.T_int4)
	require.True(t, pgerror.HasKind(err, pgerror.DataError))
}

func TestTextDecoders(t *testing.T) {
	testCases := []struct {
		oid  oid.Oid
		in   string
		want Datum
	}{
		{oid.T_bool, "t", DBool(true)},
		{oid.T_bool, "false", DBool(false)},
		{oid.T_int8, "-42", DInt(-42)},
		{oid.T_float8, "1.25", DFloat(1.25)},
		{oid.T_bytea, `\x00ff`, DBytes{0x00, 0xff}},
		{oid.T_date, "2024-03-15", DDate{Time: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)}},
		{oid.T_time, "10:30:45.5", DTime((10*3600+30*60+45)*1000000 + 500000)},
		{oid.T_timestamp, "2024-03-15 10:30:45",
			DTimestamp{Time: time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC)}},
		{oid.T_timestamptz, "2024-03-15 10:30:45+02",
			DTimestampTZ{Time: time.Date(2024, 3, 15, 8, 30, 45, 0, time.UTC)}},
		{oid.T_numeric, "12.50", mustDecimal(t, "12.50")},
		{oid.T_inet, "10.1.2.3", DIPAddr{Prefix: netip.MustParsePrefix("10.1.2.3/32")}},
		{oid.T_cidr, "10.0.0.0/8", DIPAddr{Prefix: netip.MustParsePrefix("10.0.0.0/8")}},
		{oid.T_uuid, "a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11",
			DUuid{UUID: uuid.MustParse("a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11")}},
	}
	for _, tc := range testCases {
		got, err := Decode(tc.oid, pgwirebase.FormatText, []byte(tc.in))
		require.NoError(t, err, "decode %q as %s", tc.in, oid.TypeName[tc.oid])
		if want, ok := tc.want.(*DDecimal); ok {
			require.Zero(t, want.Cmp(&got.(*DDecimal).Decimal))
			continue
		}
		require.Equal(t, tc.want, got, "decode %q", tc.in)
	}

	_, err := Decode(oid.T_bool, pgwirebase.FormatText, []byte("yep"))
	require.True(t, pgerror.HasKind(err, pgerror.DataError))
}

func TestNativeToDatum(t *testing.T) {
	testCases := []struct {
		in   interface{}
		want Datum
	}{
		{nil, DNull},
		{true, DBool(true)},
		{42, DInt(42)},
		{int16(7), DInt(7)},
		{3.5, DFloat(3.5)},
		{float32(1.5), DFloat4(1.5)},
		{"x", DString("x")},
		{[]byte{1}, DBytes{1}},
	}
	for _, tc := range testCases {
		got, err := NativeToDatum(tc.in)
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}

	arr, err := NativeToDatum([]int64{1, 2})
	require.NoError(t, err)
	require.Equal(t, &DArray{ElemOid: oid.T_int8, Elems: []Datum{DInt(1), DInt(2)}}, arr)

	mixed, err := NativeToDatum([]interface{}{int64(1), nil, int64(3)})
	require.NoError(t, err)
	require.True(t, mixed.(*DArray).HasNulls)

	_, err = NativeToDatum([]interface{}{int64(1), "x"})
	require.True(t, pgerror.HasKind(err, pgerror.DataError))

	_, err = NativeToDatum(struct{}{})
	require.True(t, pgerror.HasKind(err, pgerror.DataError))
}

func TestNative(t *testing.T) {
	require.Equal(t, int64(7), Native(DInt(7)))
	require.Nil(t, Native(DNull))
	require.Equal(t, 90*time.Minute, Native(DTime(90*60*1000000)))
	d := mustDecimal(t, "1.25")
	require.Equal(t, &d.Decimal, Native(d))
	require.Equal(t,
		[]interface{}{int64(1), nil},
		Native(&DArray{ElemOid: oid.T_int8, Elems: []Datum{DInt(1), DNull}, HasNulls: true}))
}

func TestResolveOid(t *testing.T) {
	require.Equal(t, oid.T_int8, ResolveOid(DInt(1)))
	require.Equal(t, oid.Oid(0), ResolveOid(DString("x")))
	require.Equal(t, oid.Oid(0), ResolveOid(DNull))
	require.Equal(t, oid.T__uuid, ResolveOid(&DArray{ElemOid: oid.T_uuid}))
}
