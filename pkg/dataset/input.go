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

package dataset

import (
	"sort"
	"strconv"

	"optdriver.dev/optdriver/pkg/opterr"
)

// Input is any of the candidate shapes accepted by the driver: a single
// Record, a list of Records, a column block (Columns) or a *Table.
type Input interface {
	isInput()
}

// Records is a list of candidate records.
type Records []Record

// Columns is a column-oriented block: every column holds one value per row.
type Columns map[string][]interface{}

func (Record) isInput()  {}
func (Records) isInput() {}
func (Columns) isInput() {}
func (*Table) isInput()  {}

// Normalize converts any Input into a freshly allocated table indexed
// 0..n-1. The caller's input is never aliased.
func Normalize(in Input) (*Table, error) {
	switch x := in.(type) {
	case nil:
		return nil, opterr.Validationf("no input data")
	case Record:
		if x == nil {
			return nil, opterr.Validationf("no input data")
		}
		return FromRecords(x), nil
	case Records:
		return FromRecords(x...), nil
	case Columns:
		return fromColumnBlock(x)
	case *Table:
		if x == nil {
			return nil, opterr.Validationf("no input data")
		}
		return x.Reindexed(0), nil
	default:
		return nil, opterr.Validationf("unsupported input type %T", in)
	}
}

func fromColumnBlock(c Columns) (*Table, error) {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, k)
	}
	sort.Strings(names)

	n := -1
	for _, k := range names {
		if n == -1 {
			n = len(c[k])
			continue
		}
		if len(c[k]) != n {
			return nil, opterr.Validationf("column %q has %d values, expected %d", k, len(c[k]), n)
		}
	}
	if n < 0 {
		n = 0
	}

	rows := make([]Record, n)
	for i := range rows {
		rows[i] = make(Record, len(names))
		for _, k := range names {
			rows[i][k] = c[k][i]
		}
	}
	return FromRecords(rows...), nil
}

// ToColumnMap renders t column-oriented: column -> index label -> value.
// Cells missing from a row are omitted.
func (t *Table) ToColumnMap() map[string]map[string]interface{} {
	out := make(map[string]map[string]interface{})
	for i := 0; i < t.Len(); i++ {
		label := strconv.Itoa(t.index[i])
		for k, v := range t.rows[i] {
			col, ok := out[k]
			if !ok {
				col = make(map[string]interface{})
				out[k] = col
			}
			col[label] = NormalizeValue(v)
		}
	}
	return out
}

// FromColumnMap is the inverse of ToColumnMap. Rows are sorted by label;
// labels must be integers.
func FromColumnMap(m map[string]map[string]interface{}) (*Table, error) {
	byLabel := make(map[int]Record)
	for col, cells := range m {
		for label, v := range cells {
			i, err := strconv.Atoi(label)
			if err != nil {
				return nil, opterr.Validationf("index label %q in column %q is not an integer", label, col)
			}
			r, ok := byLabel[i]
			if !ok {
				r = make(Record)
				byLabel[i] = r
			}
			r[col] = v
		}
	}

	index := make([]int, 0, len(byLabel))
	for i := range byLabel {
		index = append(index, i)
	}
	sort.Ints(index)
	rows := make([]Record, len(index))
	for pos, i := range index {
		rows[pos] = byLabel[i]
	}
	return NewIndexed(index, rows)
}
