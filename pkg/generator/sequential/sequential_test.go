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

package sequential

import (
	"testing"

	"github.com/stretchr/testify/require"

	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/generator"
	"optdriver.dev/optdriver/pkg/opterr"
	"optdriver.dev/optdriver/pkg/vocs"
)

func testVOCS() *vocs.VOCS {
	return &vocs.VOCS{
		Variables:  map[string][]float64{"x": {0, 5}},
		Objectives: map[string]string{"f": vocs.Minimize},
		Constants:  map[string]interface{}{"k": "v"},
	}
}

func newSequential(t *testing.T, params map[string]interface{}) *Generator {
	g, err := New(testVOCS(), params)
	require.NoError(t, err)
	return g.(*Generator)
}

func TestCapabilities(t *testing.T) {
	g := newSequential(t, nil)
	var gen generator.Generator = g
	_, owner := gen.(generator.StateOwner)
	_, acc := gen.(generator.Accumulator)
	_, seq := gen.(generator.Sequential)
	require.True(t, owner)
	require.False(t, acc)
	require.True(t, seq)
	require.NoError(t, generator.CheckCapabilities(g))
}

func TestOutstandingCandidate(t *testing.T) {
	require := require.New(t)
	g := newSequential(t, map[string]interface{}{"seed": 3, "initial_point": map[string]interface{}{"x": 1}})
	require.False(g.IsActive())

	first, err := g.Generate(4)
	require.NoError(err)
	require.Equal(1, first.Len())
	require.Equal(dataset.Record{"x": 1.0, "k": "v"}, first.Row(0))
	require.True(g.IsActive())

	again, err := g.Generate(1)
	require.NoError(err)
	require.Equal(first.Rows(), again.Rows())

	require.NoError(g.ValidatePoint(dataset.FromRecords(dataset.Record{"x": 1.0})))
	err = g.ValidatePoint(dataset.FromRecords(dataset.Record{"x": 2.0}))
	require.ErrorIs(err, opterr.ErrValidation)
	err = g.ValidatePoint(dataset.FromRecords(dataset.Record{"x": 1.0}, dataset.Record{"x": 1.0}))
	require.ErrorIs(err, opterr.ErrValidation)

	require.NoError(g.SetData(dataset.FromRecords(dataset.Record{"x": 3.0, "f": 1.0})))
	require.True(g.IsActive())

	require.NoError(g.SetData(dataset.FromRecords(
		dataset.Record{"x": 3.0, "f": 1.0},
		dataset.Record{"x": 1.0, "k": "v", "f": 0.5},
	)))
	require.False(g.IsActive())
	require.Equal(2, g.Data().Len())
	require.NoError(g.ValidatePoint(dataset.FromRecords(dataset.Record{"x": 4.0})))

	next, err := g.Generate(1)
	require.NoError(err)
	require.Equal(1, next.Len())
	require.NoError(testVOCS().ValidateInputData(next))
	require.NotEqual(1.0, next.Row(0)["x"])
}

func TestParams(t *testing.T) {
	require := require.New(t)
	g := newSequential(t, map[string]interface{}{"seed": 3, "initial_point": dataset.Record{"x": 2}})
	require.Equal(map[string]interface{}{
		"seed":          int64(3),
		"initial_point": map[string]interface{}{"x": 2.0},
	}, g.Params())

	bad := []map[string]interface{}{
		{"initial_point": "x=1"},
		{"initial_point": map[string]interface{}{"x": 9}},
		{"initial_point": map[string]interface{}{"x": 1, "y": 2}},
		{"seed": "abc"},
		{"step": 1},
	}
	for _, p := range bad {
		_, err := New(testVOCS(), p)
		require.ErrorIs(err, opterr.ErrConfiguration, "%v", p)
	}
}

func TestClone(t *testing.T) {
	require := require.New(t)
	g := newSequential(t, map[string]interface{}{"initial_point": map[string]interface{}{"x": 1}})
	_, err := g.Generate(1)
	require.NoError(err)

	c := g.Clone().(*Generator)
	require.True(c.IsActive())
	require.NoError(c.SetData(dataset.FromRecords(dataset.Record{"x": 1.0, "f": 0.0})))
	require.False(c.IsActive())
	require.True(g.IsActive())
	require.Equal(0, g.Data().Len())
}
