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

package vocs

import (
	"math/rand"
	"time"

	"gonum.org/v1/gonum/floats"

	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/opterr"
)

// GridSamples sets the number of mesh points along each variable axis.
// PerVariable overrides Default for the named variables.
type GridSamples struct {
	Default     int
	PerVariable map[string]int
}

// Bounds returns the sampling bounds of every variable, narrowed by custom.
// Custom bounds are clipped to the declared bounds; naming an unknown
// variable, or giving a lower bound above the upper one, is a validation
// error.
func (v *VOCS) Bounds(custom map[string][]float64) (map[string][]float64, error) {
	out := make(map[string][]float64, len(v.Variables))
	for name, b := range v.Variables {
		out[name] = []float64{b[0], b[1]}
	}
	for name, cb := range custom {
		b, ok := out[name]
		if !ok {
			return nil, opterr.Validationf("custom bounds given for unknown variable %q", name)
		}
		if len(cb) != 2 || cb[0] > cb[1] {
			return nil, opterr.Validationf("custom bounds for %q must be [lower, upper], got %v", name, cb)
		}
		lo, hi := cb[0], cb[1]
		if lo < b[0] {
			lo = b[0]
		}
		if hi > b[1] {
			hi = b[1]
		}
		if lo > hi {
			return nil, opterr.Validationf("custom bounds %v for %q do not overlap %v", cb, name, b)
		}
		out[name] = []float64{lo, hi}
	}
	return out, nil
}

// RandomInputs draws n points uniformly from the (custom) variable bounds.
// A nil seed uses the current time. Constants are added when
// includeConstants is set.
func (v *VOCS) RandomInputs(n int, seed *int64, custom map[string][]float64, includeConstants bool) (*dataset.Table, error) {
	if n < 1 {
		return nil, opterr.Validationf("number of random samples must be positive, got %d", n)
	}
	bounds, err := v.Bounds(custom)
	if err != nil {
		return nil, err
	}
	s := time.Now().UnixNano()
	if seed != nil {
		s = *seed
	}
	rng := rand.New(rand.NewSource(s))

	names := v.VariableNames()
	rows := make([]dataset.Record, n)
	for i := range rows {
		r := make(dataset.Record, len(names)+len(v.Constants))
		for _, name := range names {
			b := bounds[name]
			r[name] = b[0] + rng.Float64()*(b[1]-b[0])
		}
		rows[i] = r
	}
	t := dataset.FromRecords(rows...)
	if includeConstants {
		v.AddConstants(t)
	}
	return t, nil
}

// GridInputs returns the full mesh over the (custom) variable bounds, with
// the last variable in name order varying fastest. Constants are always
// included.
func (v *VOCS) GridInputs(n GridSamples, custom map[string][]float64) (*dataset.Table, error) {
	bounds, err := v.Bounds(custom)
	if err != nil {
		return nil, err
	}
	for name := range n.PerVariable {
		if _, ok := v.Variables[name]; !ok {
			return nil, opterr.Validationf("grid size given for unknown variable %q", name)
		}
	}

	names := v.VariableNames()
	axes := make([][]float64, len(names))
	for i, name := range names {
		count := n.Default
		if c, ok := n.PerVariable[name]; ok {
			count = c
		}
		if count < 1 {
			return nil, opterr.Validationf("grid size for %q must be positive, got %d", name, count)
		}
		axes[i] = linspace(bounds[name][0], bounds[name][1], count)
	}

	var rows []dataset.Record
	pos := make([]int, len(axes))
	for {
		r := make(dataset.Record, len(names))
		for i, name := range names {
			r[name] = axes[i][pos[i]]
		}
		rows = append(rows, r)

		i := len(pos) - 1
		for ; i >= 0; i-- {
			pos[i]++
			if pos[i] < len(axes[i]) {
				break
			}
			pos[i] = 0
		}
		if i < 0 {
			break
		}
	}

	t := dataset.FromRecords(rows...)
	v.AddConstants(t)
	return t, nil
}

// AddConstants sets every declared constant on every row of t.
func (v *VOCS) AddConstants(t *dataset.Table) {
	for _, name := range v.ConstantNames() {
		t.Set(name, v.Constants[name])
	}
}

// linspace returns n evenly spaced points from lo to hi, both included; a
// single point sits at lo.
func linspace(lo, hi float64, n int) []float64 {
	if n == 1 {
		return []float64{lo}
	}
	out := floats.Span(make([]float64, n), lo, hi)
	out[n-1] = hi
	return out
}
