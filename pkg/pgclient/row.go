// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgclient

import (
	"github.com/cockroachdb/pgdriver/pkg/pgtype"
	"github.com/cockroachdb/pgdriver/pkg/pgwire"
	"github.com/cockroachdb/pgdriver/pkg/pgwire/pgerror"
)

// rowsMeta is the per-result-set metadata shared by all of its rows. The
// name index is built once; when two columns share a name the first one wins.
type rowsMeta struct {
	cols   []pgwire.ColumnDesc
	byName map[string]int
}

func newRowsMeta(cols []pgwire.ColumnDesc) *rowsMeta {
	m := &rowsMeta{cols: cols, byName: make(map[string]int, len(cols))}
	for i, c := range cols {
		if _, ok := m.byName[c.Name]; !ok {
			m.byName[c.Name] = i
		}
	}
	return m
}

// Rows is a fully materialized result set.
type Rows struct {
	meta *rowsMeta
	rows [][]pgtype.Datum
}

func newRows(res *pgwire.CycleResult) *Rows {
	return &Rows{meta: newRowsMeta(res.Desc), rows: res.Rows}
}

// Len returns the number of rows.
func (r *Rows) Len() int {
	return len(r.rows)
}

// Columns returns the result column names in order.
func (r *Rows) Columns() []string {
	names := make([]string, len(r.meta.cols))
	for i, c := range r.meta.cols {
		names[i] = c.Name
	}
	return names
}

// Row returns the i'th row.
func (r *Rows) Row(i int) Row {
	return Row{meta: r.meta, vals: r.rows[i]}
}

// Row is one result row. Values are host Go types; SQL NULL is nil.
type Row struct {
	meta *rowsMeta
	vals []pgtype.Datum
}

// Len returns the number of columns.
func (r Row) Len() int {
	return len(r.vals)
}

// Get returns the value of the named column. When the result carries
// duplicate column names, the leftmost match is returned.
func (r Row) Get(name string) (interface{}, error) {
	i, ok := r.meta.byName[name]
	if !ok {
		return nil, pgerror.Newf(pgerror.ProgrammingError, "no column named %q in result", name)
	}
	return pgtype.Native(r.vals[i]), nil
}

// Index returns the value of the i'th column.
func (r Row) Index(i int) (interface{}, error) {
	if i < 0 || i >= len(r.vals) {
		return nil, pgerror.Newf(pgerror.ProgrammingError,
			"column index %d out of range (%d columns)", i, len(r.vals))
	}
	return pgtype.Native(r.vals[i]), nil
}

// Values returns all column values in order.
func (r Row) Values() []interface{} {
	out := make([]interface{}, len(r.vals))
	for i, d := range r.vals {
		out[i] = pgtype.Native(d)
	}
	return out
}
