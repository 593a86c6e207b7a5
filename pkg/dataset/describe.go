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
	"math"

	"github.com/montanaflynn/stats"
)

// Summary holds descriptive statistics for one numeric column.
type Summary struct {
	Column string
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Median float64
	Max    float64
}

// Describe summarizes every column of t that holds at least one finite
// number. Non-numeric and NaN cells are skipped. Columns are in sorted order.
func Describe(t *Table) ([]Summary, error) {
	var out []Summary
	for _, col := range t.Columns() {
		data := NumericColumn(t, col)
		if len(data) == 0 {
			continue
		}

		s := Summary{Column: col, Count: len(data)}
		var err error
		if s.Mean, err = stats.Mean(data); err != nil {
			return nil, err
		}
		if s.StdDev, err = stats.StandardDeviationSample(data); err != nil {
			return nil, err
		}
		if math.IsNaN(s.StdDev) {
			s.StdDev = 0
		}
		if s.Min, err = stats.Min(data); err != nil {
			return nil, err
		}
		if s.Median, err = stats.Median(data); err != nil {
			return nil, err
		}
		if s.Max, err = stats.Max(data); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// NumericColumn returns the finite numeric cells of col in row order.
func NumericColumn(t *Table, col string) stats.Float64Data {
	var data stats.Float64Data
	for _, v := range t.Column(col) {
		if f, ok := Float(v); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
			data = append(data, f)
		}
	}
	return data
}
