// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package pgtype implements the bidirectional binary codec between host
// values and PostgreSQL's wire encoding. Values are represented as Datums, a
// tagged union over the supported type domain; the codec registry maps type
// OIDs to encode/decode pairs.
package pgtype

import (
	"net/netip"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"
	"github.com/lib/pq/oid"
)

// Datum is a value that can cross the wire. The concrete types below form a
// closed set; a nil Datum is never valid (SQL NULL is the DNull singleton).
type Datum interface {
	datum()
}

// DBool is the boolean Datum.
type DBool bool

// DInt is the integer Datum. All of int2, int4 and int8 are carried at full
// 64-bit width; the wire width is chosen by the target OID at encode time and
// overflow is rejected rather than truncated.
type DInt int64

// DFloat is the float8 Datum.
type DFloat float64

// DFloat4 is the float4 Datum. It is kept separate from DFloat so a float4
// column round-trips at binary32 precision instead of widening silently.
type DFloat4 float32

// DString is the text Datum, shared by text, varchar, bpchar and name.
type DString string

// DBytes is the bytea Datum.
type DBytes []byte

// DDate is the date Datum: a wall-clock calendar day with no time component,
// stored at midnight UTC.
type DDate struct {
	time.Time
}

// DTime is the time-of-day Datum, in microseconds since midnight.
type DTime int64

// DTimestamp is the timestamp-without-timezone Datum: a naive wall-clock
// value. The stored time.Time uses UTC as a neutral location; no conversion
// is ever applied to it.
type DTimestamp struct {
	time.Time
}

// DTimestampTZ is the timestamp-with-timezone Datum, normalized to UTC.
// Callers render local time themselves.
type DTimestampTZ struct {
	time.Time
}

// DUuid is the uuid Datum in canonical 16-byte form.
type DUuid struct {
	uuid.UUID
}

// DJSON is the json/jsonb Datum: a parsed document tree as produced by
// encoding/json (map[string]interface{}, []interface{}, string, float64,
// bool, nil), never a raw string.
type DJSON struct {
	Doc interface{}
}

// DDecimal is the numeric Datum.
type DDecimal struct {
	apd.Decimal
}

// DIPAddr is the inet/cidr Datum: a canonical address plus an explicit
// prefix length.
type DIPAddr struct {
	netip.Prefix
}

// DArray is the one-dimensional array Datum. Elements are Datums of the
// element type; SQL NULL elements are DNull.
type DArray struct {
	ElemOid  oid.Oid
	Elems    []Datum
	HasNulls bool
}

type dNull struct{}

// DNull is the SQL NULL Datum singleton. Null is a first-class variant of
// the union, not an encoding of another type.
var DNull Datum = dNull{}

func (DBool) datum()         {}
func (DInt) datum()          {}
func (DFloat) datum()        {}
func (DFloat4) datum()       {}
func (DString) datum()       {}
func (DBytes) datum()        {}
func (DDate) datum()         {}
func (DTime) datum()         {}
func (DTimestamp) datum()    {}
func (DTimestampTZ) datum()  {}
func (DUuid) datum()         {}
func (DJSON) datum()         {}
func (*DDecimal) datum()     {}
func (DIPAddr) datum()       {}
func (*DArray) datum()       {}
func (dNull) datum()         {}

// pgEpoch is the PostgreSQL epoch: 2000-01-01 00:00:00 UTC. Binary date and
// timestamp encodings count from it.
var pgEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

const (
	secsPerDay      = 86400
	microsPerSecond = 1000000
)
