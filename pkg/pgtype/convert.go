// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgtype

import (
	"math"
	"net/netip"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/pgdriver/pkg/pgwire/pgerror"
	"github.com/google/uuid"
	"github.com/lib/pq/oid"
)

// NativeToDatum converts a host Go value into a Datum. The mapping is
// deterministic and total over the supported host types; anything else fails
// with DataError rather than falling back to fmt.Sprintf.
func NativeToDatum(v interface{}) (Datum, error) {
	switch x := v.(type) {
	case nil:
		return DNull, nil
	case Datum:
		return x, nil
	case bool:
		return DBool(x), nil
	case int:
		return DInt(x), nil
	case int8:
		return DInt(x), nil
	case int16:
		return DInt(x), nil
	case int32:
		return DInt(x), nil
	case int64:
		return DInt(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return nil, pgerror.Newf(pgerror.DataError, "uint value %d overflows int8", x)
		}
		return DInt(x), nil
	case uint8:
		return DInt(x), nil
	case uint16:
		return DInt(x), nil
	case uint32:
		return DInt(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, pgerror.Newf(pgerror.DataError, "uint value %d overflows int8", x)
		}
		return DInt(x), nil
	case float32:
		return DFloat4(x), nil
	case float64:
		return DFloat(x), nil
	case string:
		return DString(x), nil
	case []byte:
		return DBytes(x), nil
	case time.Time:
		return DTimestampTZ{Time: x.UTC()}, nil
	case time.Duration:
		return DTime(x / time.Microsecond), nil
	case uuid.UUID:
		return DUuid{UUID: x}, nil
	case *apd.Decimal:
		d := &DDecimal{}
		d.Set(x)
		return d, nil
	case apd.Decimal:
		d := &DDecimal{}
		d.Set(&x)
		return d, nil
	case netip.Addr:
		return DIPAddr{Prefix: netip.PrefixFrom(x, x.BitLen())}, nil
	case netip.Prefix:
		return DIPAddr{Prefix: x}, nil
	case map[string]interface{}:
		return DJSON{Doc: x}, nil
	case []interface{}:
		return sliceToArray(x)
	case []bool:
		return typedSliceToArray(oid.T_bool, len(x), func(i int) Datum { return DBool(x[i]) })
	case []int16:
		return typedSliceToArray(oid.T_int2, len(x), func(i int) Datum { return DInt(x[i]) })
	case []int32:
		return typedSliceToArray(oid.T_int4, len(x), func(i int) Datum { return DInt(x[i]) })
	case []int64:
		return typedSliceToArray(oid.T_int8, len(x), func(i int) Datum { return DInt(x[i]) })
	case []int:
		return typedSliceToArray(oid.T_int8, len(x), func(i int) Datum { return DInt(x[i]) })
	case []float32:
		return typedSliceToArray(oid.T_float4, len(x), func(i int) Datum { return DFloat4(x[i]) })
	case []float64:
		return typedSliceToArray(oid.T_float8, len(x), func(i int) Datum { return DFloat(x[i]) })
	case []string:
		return typedSliceToArray(oid.T_text, len(x), func(i int) Datum { return DString(x[i]) })
	case []uuid.UUID:
		return typedSliceToArray(oid.T_uuid, len(x), func(i int) Datum { return DUuid{UUID: x[i]} })
	case []time.Time:
		return typedSliceToArray(oid.T_timestamptz, len(x), func(i int) Datum {
			return DTimestampTZ{Time: x[i].UTC()}
		})
	}
	return nil, pgerror.Newf(pgerror.DataError, "unsupported parameter type %T", v)
}

func typedSliceToArray(elem oid.Oid, n int, at func(i int) Datum) (Datum, error) {
	arr := &DArray{ElemOid: elem, Elems: make([]Datum, n)}
	for i := 0; i < n; i++ {
		arr.Elems[i] = at(i)
	}
	return arr, nil
}

// sliceToArray builds an array Datum from a heterogeneous []interface{}. All
// non-nil elements must convert to the same element type; the element OID is
// taken from the first non-nil element.
func sliceToArray(xs []interface{}) (Datum, error) {
	arr := &DArray{Elems: make([]Datum, 0, len(xs))}
	for _, x := range xs {
		d, err := NativeToDatum(x)
		if err != nil {
			return nil, err
		}
		if d == DNull {
			arr.HasNulls = true
			arr.Elems = append(arr.Elems, DNull)
			continue
		}
		elem := ResolveOid(d)
		if _, ok := registry[elem]; !ok {
			return nil, pgerror.Newf(pgerror.DataError,
				"unsupported array element type %T", x)
		}
		if arr.ElemOid == 0 {
			arr.ElemOid = elem
		} else if arr.ElemOid != elem {
			return nil, pgerror.Newf(pgerror.DataError,
				"mixed element types in array: %s and %s",
				oid.TypeName[arr.ElemOid], oid.TypeName[elem])
		}
		arr.Elems = append(arr.Elems, d)
	}
	if arr.ElemOid == 0 {
		// Empty or all-null array with no element type to infer. Send it as
		// text[]; the server coerces as needed.
		arr.ElemOid = oid.T_text
	}
	return arr, nil
}

// ResolveOid returns the parameter type OID to declare for a Datum when the
// statement has not been described. Strings and NULL resolve to 0
// (unspecified) so the server can infer from context.
func ResolveOid(d Datum) oid.Oid {
	switch v := d.(type) {
	case DBool:
		return oid.T_bool
	case DInt:
		return oid.T_int8
	case DFloat:
		return oid.T_float8
	case DFloat4:
		return oid.T_float4
	case DString:
		return 0
	case DBytes:
		return oid.T_bytea
	case DDate:
		return oid.T_date
	case DTime:
		return oid.T_time
	case DTimestamp:
		return oid.T_timestamp
	case DTimestampTZ:
		return oid.T_timestamptz
	case DUuid:
		return oid.T_uuid
	case DJSON:
		return oid.T_jsonb
	case *DDecimal:
		return oid.T_numeric
	case DIPAddr:
		return oid.T_inet
	case *DArray:
		if arr, ok := elemToArray[v.ElemOid]; ok {
			return arr
		}
		return 0
	}
	return 0
}

// Native converts a Datum back into the host Go value handed to callers.
func Native(d Datum) interface{} {
	switch v := d.(type) {
	case dNull:
		return nil
	case DBool:
		return bool(v)
	case DInt:
		return int64(v)
	case DFloat:
		return float64(v)
	case DFloat4:
		return float32(v)
	case DString:
		return string(v)
	case DBytes:
		return []byte(v)
	case DDate:
		return v.Time
	case DTime:
		return time.Duration(v) * time.Microsecond
	case DTimestamp:
		return v.Time
	case DTimestampTZ:
		return v.Time
	case DUuid:
		return v.UUID
	case DJSON:
		return v.Doc
	case *DDecimal:
		return &v.Decimal
	case DIPAddr:
		return v.Prefix
	case *DArray:
		out := make([]interface{}, len(v.Elems))
		for i, e := range v.Elems {
			out[i] = Native(e)
		}
		return out
	}
	return d
}
