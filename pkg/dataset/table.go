// Copyright 2026 The optdriver Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dataset holds the tabular types shared by the driver, its
// generators and its evaluators.
//
// A Table is an ordered list of rows, each a Record keyed by column name,
// together with an integer index per row. Numeric cells are kept as float64
// and list cells as []interface{} so that tables survive a YAML or JSON round
// trip unchanged.
package dataset

import (
	"reflect"
	"sort"

	"optdriver.dev/optdriver/pkg/opterr"
)

// Record maps a column name to a cell value.
type Record map[string]interface{}

// Copy returns a deep copy of r with normalized cell values.
func (r Record) Copy() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = NormalizeValue(v)
	}
	return out
}

// Table is an ordered, indexed collection of records.
// The zero value is an empty table.
type Table struct {
	index []int
	rows  []Record
}

// New returns an empty table.
func New() *Table {
	return &Table{}
}

// FromRecords builds a table from copies of rows, indexed 0..n-1.
func FromRecords(rows ...Record) *Table {
	t := &Table{
		index: make([]int, len(rows)),
		rows:  make([]Record, len(rows)),
	}
	for i, r := range rows {
		t.index[i] = i
		t.rows[i] = r.Copy()
	}
	return t
}

// NewIndexed builds a table from explicit index labels. Labels must be
// unique; they need not be dense or sorted.
func NewIndexed(index []int, rows []Record) (*Table, error) {
	if len(index) != len(rows) {
		return nil, opterr.Validationf("index has %d labels for %d rows", len(index), len(rows))
	}
	seen := make(map[int]struct{}, len(index))
	t := &Table{
		index: make([]int, len(index)),
		rows:  make([]Record, len(rows)),
	}
	for i := range rows {
		if _, ok := seen[index[i]]; ok {
			return nil, opterr.Validationf("duplicate index label %d", index[i])
		}
		seen[index[i]] = struct{}{}
		t.index[i] = index[i]
		t.rows[i] = rows[i].Copy()
	}
	return t, nil
}

// Len returns the number of rows. A nil table has no rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Index returns a copy of the row labels in row order.
func (t *Table) Index() []int {
	if t == nil {
		return nil
	}
	return append([]int(nil), t.index...)
}

// Row returns a copy of the row at position pos.
func (t *Table) Row(pos int) Record {
	return t.rows[pos].Copy()
}

// Rows returns copies of every row in order.
func (t *Table) Rows() []Record {
	out := make([]Record, t.Len())
	for i := range out {
		out[i] = t.rows[i].Copy()
	}
	return out
}

// Columns returns the sorted union of the column names of all rows.
func (t *Table) Columns() []string {
	set := make(map[string]struct{})
	for i := 0; i < t.Len(); i++ {
		for k := range t.rows[i] {
			set[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Column returns the values of name in row order; rows without the column
// yield nil.
func (t *Table) Column(name string) []interface{} {
	out := make([]interface{}, t.Len())
	for i := range out {
		out[i] = NormalizeValue(t.rows[i][name])
	}
	return out
}

// Set stores value under name in every row.
func (t *Table) Set(name string, value interface{}) {
	for _, r := range t.rows {
		r[name] = NormalizeValue(value)
	}
}

// Copy returns a deep copy of t.
func (t *Table) Copy() *Table {
	if t == nil {
		return New()
	}
	out := &Table{
		index: append([]int(nil), t.index...),
		rows:  make([]Record, len(t.rows)),
	}
	for i, r := range t.rows {
		out.rows[i] = r.Copy()
	}
	return out
}

// MaxIndex returns the largest index label, and false for an empty table.
func (t *Table) MaxIndex() (int, bool) {
	if t.Len() == 0 {
		return 0, false
	}
	m := t.index[0]
	for _, i := range t.index[1:] {
		if i > m {
			m = i
		}
	}
	return m, true
}

// Reindexed returns a copy of t labelled start, start+1, ...
func (t *Table) Reindexed(start int) *Table {
	out := t.Copy()
	for i := range out.index {
		out.index[i] = start + i
	}
	return out
}

// Concat returns a new table holding the rows of t followed by the rows of
// other, keeping both sets of labels.
func (t *Table) Concat(other *Table) *Table {
	out := t.Copy()
	o := other.Copy()
	out.index = append(out.index, o.index...)
	out.rows = append(out.rows, o.rows...)
	return out
}

// SortByIndex orders rows by ascending label.
func (t *Table) SortByIndex() {
	sort.Stable(byIndex{t})
}

// CheckDense reports a validation error unless the labels are exactly
// 0..n-1 in row order.
func (t *Table) CheckDense() error {
	for i := 0; i < t.Len(); i++ {
		if t.index[i] != i {
			return opterr.Validationf("index is not dense: position %d has label %d", i, t.index[i])
		}
	}
	return nil
}

// Drop returns a copy of t without the rows labelled by labels, relabelled
// 0..m-1. Unknown labels are a validation error.
func (t *Table) Drop(labels []int) (*Table, error) {
	drop := make(map[int]struct{}, len(labels))
	for _, l := range labels {
		drop[l] = struct{}{}
	}
	for i := 0; i < t.Len(); i++ {
		delete(drop, t.index[i])
	}
	if len(drop) > 0 {
		missing := make([]int, 0, len(drop))
		for l := range drop {
			missing = append(missing, l)
		}
		sort.Ints(missing)
		return nil, opterr.Validationf("indices %v not found", missing)
	}

	for _, l := range labels {
		drop[l] = struct{}{}
	}
	out := New()
	for i := 0; i < t.Len(); i++ {
		if _, ok := drop[t.index[i]]; ok {
			continue
		}
		out.index = append(out.index, len(out.rows))
		out.rows = append(out.rows, t.rows[i].Copy())
	}
	return out, nil
}

type byIndex struct {
	t *Table
}

func (b byIndex) Len() int {
	return len(b.t.rows)
}

func (b byIndex) Swap(i, j int) {
	b.t.index[i], b.t.index[j] = b.t.index[j], b.t.index[i]
	b.t.rows[i], b.t.rows[j] = b.t.rows[j], b.t.rows[i]
}

func (b byIndex) Less(i, j int) bool {
	return b.t.index[i] < b.t.index[j]
}

// NormalizeValue converts numeric kinds to float64 and slices or arrays to
// []interface{}, recursively. Strings, bools, nil and other values are
// returned as they are; maps are copied.
func NormalizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		return x
	case string:
		return x
	case bool:
		return x
	case []byte:
		return append([]byte(nil), x...)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = NormalizeValue(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = NormalizeValue(e)
		}
		return out
	case Record:
		return x.Copy()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = NormalizeValue(rv.Index(i).Interface())
		}
		return out
	}
	return v
}

// IsList reports whether v is a list cell.
func IsList(v interface{}) bool {
	if v == nil {
		return false
	}
	switch v.(type) {
	case string, []byte:
		return false
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// IsNumeric reports whether v is a number, or a non-empty list of numbers.
func IsNumeric(v interface{}) bool {
	if IsList(v) {
		l, _ := NormalizeValue(v).([]interface{})
		if len(l) == 0 {
			return false
		}
		for _, e := range l {
			if !IsNumeric(e) {
				return false
			}
		}
		return true
	}
	_, ok := Float(v)
	return ok
}

// Float returns v as a float64 when v holds a numeric kind.
func Float(v interface{}) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
