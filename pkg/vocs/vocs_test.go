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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/opterr"
)

func newTestVOCS() *VOCS {
	return &VOCS{
		Variables: map[string][]float64{
			"x1": {0, 1},
			"x2": {-5, 5},
		},
		Objectives: map[string]string{"f": Minimize},
		Constraints: map[string]Constraint{
			"c": {Kind: LessThan, Value: 0.5},
		},
		Constants:   map[string]interface{}{"mode": "fast"},
		Observables: []string{"detail"},
	}
}

const testVOCSYAML = `
variables:
  x1: [0, 1]
  x2: [-5, 5]
objectives:
  f: minimize
constraints:
  c: [less_than, 0.5]
constants:
  mode: fast
observables: [detail]
`

func TestDecodeYAML(t *testing.T) {
	require := require.New(t)
	v := &VOCS{}
	require.NoError(yaml.Unmarshal([]byte(testVOCSYAML), v))
	v.Normalize()
	require.NoError(v.Validate())
	require.Equal(newTestVOCS(), v)
}

func TestYAMLAndJSONRoundTrip(t *testing.T) {
	require := require.New(t)
	in := newTestVOCS()

	b, err := yaml.Marshal(in)
	require.NoError(err)
	fromYAML := &VOCS{}
	require.NoError(yaml.Unmarshal(b, fromYAML))
	fromYAML.Normalize()
	require.Equal(in, fromYAML)

	b, err = json.Marshal(in)
	require.NoError(err)
	fromJSON := &VOCS{}
	require.NoError(json.Unmarshal(b, fromJSON))
	fromJSON.Normalize()
	require.Equal(in, fromJSON)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(v *VOCS)
	}{
		{"no variables", func(v *VOCS) { v.Variables = nil }},
		{"bad bounds length", func(v *VOCS) { v.Variables["x1"] = []float64{0} }},
		{"inverted bounds", func(v *VOCS) { v.Variables["x1"] = []float64{1, 0} }},
		{"bad direction", func(v *VOCS) { v.Objectives["f"] = "SIDEWAYS" }},
		{"bad constraint", func(v *VOCS) { v.Constraints["c"] = Constraint{Kind: "EQUAL", Value: 1} }},
		{"name collision", func(v *VOCS) { v.Constants["x1"] = 1.0 }},
	}
	require.NoError(t, newTestVOCS().Validate())
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			v := newTestVOCS()
			tc.mutate(v)
			require.ErrorIs(t, v.Validate(), opterr.ErrConfiguration)
		})
	}
}

func TestNames(t *testing.T) {
	v := newTestVOCS()
	assert.Equal(t, []string{"x1", "x2"}, v.VariableNames())
	assert.Equal(t, []string{"f", "c"}, v.RequiredOutputs())
	assert.Equal(t, []string{"f", "c", "detail"}, v.OutputNames())
	assert.False(t, v.Maximizes("f"))
	assert.True(t, v.Constraints["c"].Satisfied(0.1))
	assert.False(t, v.Constraints["c"].Satisfied(0.9))
}

func TestCloneDoesNotAlias(t *testing.T) {
	v := newTestVOCS()
	c := v.Clone()
	c.Variables["x1"][1] = 10
	c.Constants["mode"] = "slow"
	assert.Equal(t, 1.0, v.Variables["x1"][1])
	assert.Equal(t, "fast", v.Constants["mode"])
}

func TestValidateInputData(t *testing.T) {
	v := newTestVOCS()
	testCases := []struct {
		name string
		rows []dataset.Record
		ok   bool
	}{
		{"valid", []dataset.Record{{"x1": 0.5, "x2": 0.0}}, true},
		{"valid list cell", []dataset.Record{{"x1": []float64{0.1, 0.2}, "x2": 1.0}}, true},
		{"extra columns allowed", []dataset.Record{{"x1": 0.5, "x2": 0.0, "note": "hi"}}, true},
		{"missing variable", []dataset.Record{{"x1": 0.5}}, false},
		{"non numeric", []dataset.Record{{"x1": "a", "x2": 0.0}}, false},
		{"out of bounds", []dataset.Record{{"x1": 0.5, "x2": 0.0}, {"x1": 2.0, "x2": 0.0}}, false},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := v.ValidateInputData(dataset.FromRecords(tc.rows...))
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, opterr.ErrValidation)
			}
		})
	}
}

func TestRandomInputs(t *testing.T) {
	require := require.New(t)
	v := newTestVOCS()
	seed := int64(7)

	a, err := v.RandomInputs(20, &seed, nil, true)
	require.NoError(err)
	require.Equal(20, a.Len())
	require.NoError(v.ValidateInputData(a))
	for _, m := range a.Column("mode") {
		require.Equal("fast", m)
	}

	b, err := v.RandomInputs(20, &seed, nil, true)
	require.NoError(err)
	require.Equal(a.Rows(), b.Rows())

	narrow, err := v.RandomInputs(50, &seed, map[string][]float64{"x2": {0, 1}}, false)
	require.NoError(err)
	for _, x := range narrow.Column("x2") {
		require.GreaterOrEqual(x.(float64), 0.0)
		require.LessOrEqual(x.(float64), 1.0)
	}
	require.Nil(narrow.Column("mode")[0])

	_, err = v.RandomInputs(0, &seed, nil, true)
	require.ErrorIs(err, opterr.ErrValidation)
	_, err = v.RandomInputs(1, &seed, map[string][]float64{"nope": {0, 1}}, true)
	require.ErrorIs(err, opterr.ErrValidation)
}

func TestBoundsClipsCustomBounds(t *testing.T) {
	v := newTestVOCS()
	b, err := v.Bounds(map[string][]float64{"x1": {-1, 0.5}})
	require.NoError(t, err)
	require.Equal(t, []float64{0, 0.5}, b["x1"])
	require.Equal(t, []float64{-5, 5}, b["x2"])

	_, err = v.Bounds(map[string][]float64{"x1": {2, 3}})
	require.ErrorIs(t, err, opterr.ErrValidation)
}

func TestGridInputs(t *testing.T) {
	require := require.New(t)
	v := newTestVOCS()

	g, err := v.GridInputs(GridSamples{Default: 3}, nil)
	require.NoError(err)
	require.Equal(9, g.Len())
	require.Equal(dataset.Record{"x1": 0.0, "x2": -5.0, "mode": "fast"}, g.Row(0))
	require.Equal(dataset.Record{"x1": 0.0, "x2": 0.0, "mode": "fast"}, g.Row(1))
	require.Equal(dataset.Record{"x1": 1.0, "x2": 5.0, "mode": "fast"}, g.Row(8))

	g, err = v.GridInputs(GridSamples{Default: 2, PerVariable: map[string]int{"x2": 4}}, map[string][]float64{"x2": {0, 3}})
	require.NoError(err)
	require.Equal(8, g.Len())
	require.Equal([]interface{}{0.0, 1.0, 2.0, 3.0, 0.0, 1.0, 2.0, 3.0}, g.Column("x2"))

	_, err = v.GridInputs(GridSamples{}, nil)
	require.ErrorIs(err, opterr.ErrValidation)
	_, err = v.GridInputs(GridSamples{Default: 2, PerVariable: map[string]int{"y": 2}}, nil)
	require.ErrorIs(err, opterr.ErrValidation)
}

func TestLinspace(t *testing.T) {
	assert.Equal(t, []float64{2}, linspace(2, 7, 1))
	got := linspace(0, 0.3, 4)
	require.Len(t, got, 4)
	for i, want := range []float64{0, 0.1, 0.2, 0.3} {
		assert.InDelta(t, want, got[i], 1e-12)
	}
	assert.Equal(t, 0.3, got[3])
}
