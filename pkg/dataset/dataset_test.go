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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"optdriver.dev/optdriver/pkg/opterr"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name string
		in   Input
		want []Record
	}{
		{
			"single record",
			Record{"x1": 1, "x2": float32(0.5)},
			[]Record{{"x1": 1.0, "x2": 0.5}},
		},
		{
			"list of records",
			Records{{"x1": 1.0}, {"x1": 2.0}},
			[]Record{{"x1": 1.0}, {"x1": 2.0}},
		},
		{
			"column block",
			Columns{"x1": {1.0, 2.0}, "x2": {3, 4}},
			[]Record{{"x1": 1.0, "x2": 3.0}, {"x1": 2.0, "x2": 4.0}},
		},
		{
			"table",
			FromRecords(Record{"x1": 7.0}),
			[]Record{{"x1": 7.0}},
		},
		{
			"record with list cell",
			Record{"x1": []float64{1, 2}},
			[]Record{{"x1": []interface{}{1.0, 2.0}}},
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			require := require.New(t)
			actual, err := Normalize(tc.in)
			require.NoError(err)
			require.Equal(tc.want, actual.Rows())
			require.NoError(actual.CheckDense())
		})
	}
}

func TestNormalizeDoesNotAlias(t *testing.T) {
	in := Record{"x1": []interface{}{1.0, 2.0}}
	tbl, err := Normalize(in)
	require.NoError(t, err)
	tbl.Set("x1", 5.0)
	assert.Equal(t, []interface{}{1.0, 2.0}, in["x1"])
}

func TestNormalizeErrors(t *testing.T) {
	_, err := Normalize(Columns{"x1": {1.0, 2.0}, "x2": {3.0}})
	require.ErrorIs(t, err, opterr.ErrValidation)

	_, err = Normalize(nil)
	require.ErrorIs(t, err, opterr.ErrValidation)

	var nilTable *Table
	_, err = Normalize(nilTable)
	require.ErrorIs(t, err, opterr.ErrValidation)
}

func TestExplodeEqualLengths(t *testing.T) {
	require := require.New(t)
	in := FromRecords(Record{
		"x1": 0.5,
		"f":  []interface{}{1.0, 2.0, 3.0},
		"c":  []float64{4, 5, 6},
		"id": "run-a",
	})

	out, err := Explode(in)
	require.NoError(err)
	require.Equal(3, out.Len())
	require.Equal([]int{0, 1, 2}, out.Index())
	for i, r := range out.Rows() {
		require.Equal(0.5, r["x1"])
		require.Equal("run-a", r["id"])
		require.Equal(float64(i+1), r["f"])
		require.Equal(float64(i+4), r["c"])
	}
}

func TestExplodeMixedRows(t *testing.T) {
	in := FromRecords(
		Record{"x1": 1.0, "f": 10.0},
		Record{"x1": 2.0, "f": []interface{}{20.0, 21.0}},
	)
	out, err := Explode(in)
	require.NoError(t, err)
	require.Equal(t, []Record{
		{"x1": 1.0, "f": 10.0},
		{"x1": 2.0, "f": 20.0},
		{"x1": 2.0, "f": 21.0},
	}, out.Rows())
}

func TestExplodeShapeErrors(t *testing.T) {
	testCases := []struct {
		name string
		row  Record
	}{
		{"unequal lengths", Record{"f": []interface{}{1.0, 2.0, 3.0}, "c": []interface{}{1.0, 2.0}}},
		{"empty list", Record{"f": []interface{}{}}},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := Explode(FromRecords(tc.row))
			require.ErrorIs(t, err, opterr.ErrShape)
		})
	}
}

func TestDropRedensifies(t *testing.T) {
	require := require.New(t)
	in := FromRecords(Record{"x": 0.0}, Record{"x": 1.0}, Record{"x": 2.0}, Record{"x": 3.0})

	out, err := in.Drop([]int{0, 2})
	require.NoError(err)
	require.Equal([]int{0, 1}, out.Index())
	require.Equal([]Record{{"x": 1.0}, {"x": 3.0}}, out.Rows())
	require.Equal(4, in.Len())

	_, err = in.Drop([]int{9})
	require.ErrorIs(err, opterr.ErrValidation)
}

func TestColumnMapRoundTrip(t *testing.T) {
	require := require.New(t)
	in, err := NewIndexed([]int{0, 1, 2}, []Record{
		{"x": 1.0, "label": "a"},
		{"x": 2.0, "flag": true},
		{"x": math.Inf(1)},
	})
	require.NoError(err)

	m := in.ToColumnMap()
	require.Equal(map[string]interface{}{"0": 1.0, "1": 2.0, "2": math.Inf(1)}, m["x"])
	require.Equal(map[string]interface{}{"0": "a"}, m["label"])

	back, err := FromColumnMap(m)
	require.NoError(err)
	require.Equal(in.Rows(), back.Rows())
	require.Equal(in.Index(), back.Index())
}

func TestFromColumnMapSortsAndChecksLabels(t *testing.T) {
	require := require.New(t)
	back, err := FromColumnMap(map[string]map[string]interface{}{
		"x": {"2": 3.0, "0": 1.0, "1": 2.0},
	})
	require.NoError(err)
	require.Equal([]int{0, 1, 2}, back.Index())
	require.Equal([]interface{}{1.0, 2.0, 3.0}, back.Column("x"))
	require.NoError(back.CheckDense())

	sparse, err := FromColumnMap(map[string]map[string]interface{}{"x": {"0": 1.0, "5": 2.0}})
	require.NoError(err)
	require.ErrorIs(sparse.CheckDense(), opterr.ErrValidation)

	_, err = FromColumnMap(map[string]map[string]interface{}{"x": {"a": 1.0}})
	require.ErrorIs(err, opterr.ErrValidation)
}

func TestConcatAndMaxIndex(t *testing.T) {
	require := require.New(t)
	_, ok := New().MaxIndex()
	require.False(ok)

	a := FromRecords(Record{"x": 1.0})
	b := FromRecords(Record{"x": 2.0}, Record{"x": 3.0}).Reindexed(1)
	c := a.Concat(b)
	require.Equal([]int{0, 1, 2}, c.Index())
	m, ok := c.MaxIndex()
	require.True(ok)
	require.Equal(2, m)
	require.Equal(1, a.Len())
}

func TestIsNumeric(t *testing.T) {
	testCases := []struct {
		in       interface{}
		expected bool
	}{
		{1.0, true},
		{int64(3), true},
		{math.NaN(), true},
		{[]interface{}{1.0, 2}, true},
		{[]interface{}{}, false},
		{[]interface{}{1.0, "a"}, false},
		{"1.0", false},
		{true, false},
		{nil, false},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, IsNumeric(tc.in), "%#v", tc.in)
	}
}

func TestDescribe(t *testing.T) {
	require := require.New(t)
	in := FromRecords(
		Record{"f": 1.0, "name": "a"},
		Record{"f": 2.0, "name": "b"},
		Record{"f": 3.0, "g": math.NaN()},
	)
	s, err := Describe(in)
	require.NoError(err)
	require.Len(s, 1)
	require.Equal("f", s[0].Column)
	require.Equal(3, s[0].Count)
	require.InDelta(2.0, s[0].Mean, 1e-12)
	require.InDelta(1.0, s[0].StdDev, 1e-12)
	require.Equal(1.0, s[0].Min)
	require.Equal(2.0, s[0].Median)
	require.Equal(3.0, s[0].Max)
}
