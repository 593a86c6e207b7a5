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
	"fmt"
	"sort"

	"optdriver.dev/optdriver/pkg/opterr"
)

// Explode expands every row holding list cells into one row per list
// element. All list cells of a row must have the same, non-zero length; the
// row's scalar cells are copied into each new row. Rows without list cells
// are kept as they are. The result is indexed 0..n-1.
func Explode(t *Table) (*Table, error) {
	out := New()
	for pos := 0; pos < t.Len(); pos++ {
		rows, err := explodeRow(t.rows[pos])
		if err != nil {
			return nil, opterr.Shapef("row %d: %v", t.index[pos], err)
		}
		for _, r := range rows {
			out.index = append(out.index, len(out.rows))
			out.rows = append(out.rows, r)
		}
	}
	return out, nil
}

func explodeRow(r Record) ([]Record, error) {
	var lists []string
	length := -1
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !IsList(r[k]) {
			continue
		}
		n := len(NormalizeValue(r[k]).([]interface{}))
		if n == 0 {
			return nil, fmt.Errorf("column %q holds an empty list", k)
		}
		if length != -1 && n != length {
			return nil, fmt.Errorf("column %q has %d values but column %q has %d", k, n, lists[0], length)
		}
		length = n
		lists = append(lists, k)
	}

	if len(lists) == 0 {
		return []Record{r.Copy()}, nil
	}

	out := make([]Record, length)
	for i := range out {
		row := make(Record, len(r))
		for k, v := range r {
			row[k] = NormalizeValue(v)
		}
		for _, k := range lists {
			row[k] = NormalizeValue(r[k]).([]interface{})[i]
		}
		out[i] = row
	}
	return out, nil
}
