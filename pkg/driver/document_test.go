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

package driver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	snapTesting "optdriver.dev/optdriver/internal/snapshot/testing"
	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/generator"
	"optdriver.dev/optdriver/pkg/generator/builtin"
	"optdriver.dev/optdriver/pkg/generator/localsearch"
	"optdriver.dev/optdriver/pkg/opterr"
	"optdriver.dev/optdriver/pkg/vocs"
)

const baseDocument = `
vocs:
  variables:
    x: [0, 10]
  objectives:
    f: minimize
  constants:
    c: 1.0
generator:
  name: random
  seed: 3
evaluator:
  function: square
  max_workers: 2
max_evaluations: 4
data:
  x: {"0": 1.0, "1": 2.0}
  f: {"0": 1.0, "1": 4.0}
`

func testEnv() Env {
	return Env{Generators: builtin.Registry(), Functions: testFunctions()}
}

func TestParse(t *testing.T) {
	require := require.New(t)
	d, err := Parse(context.Background(), []byte(baseDocument), testEnv())
	require.NoError(err)
	defer d.Close()

	require.Equal("random", d.Generator().Name())
	require.Equal(map[string]interface{}{"seed": int64(3)}, d.Generator().Params())
	require.Equal(2, d.Evaluator().MaxWorkers())
	require.True(d.Strict())
	require.Equal(4, d.MaxEvaluations())
	require.Equal("", d.DumpFile())
	require.Equal(vocs.Minimize, d.VOCS().Objectives["f"])

	data := d.Data()
	require.Equal([]int{0, 1}, data.Index())
	require.Equal(dataset.Record{"x": 2.0, "f": 4.0}, data.Row(1))
	assertMirrored(t, d)

	require.NoError(d.Run(context.Background()))
	require.Equal(4, d.NData())
}

func TestParseBareGeneratorName(t *testing.T) {
	doc := `
vocs:
  variables: {x: [0, 1]}
  objectives: {f: minimize}
generator: random
evaluator: {function: square}
`
	d, err := Parse(context.Background(), []byte(doc), testEnv())
	require.NoError(t, err)
	assert.Equal(t, "random", d.Generator().Name())
	assert.Empty(t, d.Generator().Params())
	assert.Equal(t, 1, d.Evaluator().MaxWorkers())
}

func TestParseJSON(t *testing.T) {
	doc := `{
  "vocs": {"variables": {"x": [0, 1]}, "objectives": {"f": "MINIMIZE"}},
  "generator": {"name": "sequential_random", "seed": 1},
  "evaluator": {"function": "square"},
  "strict": false,
  "data": {"x": {"0": 0.5}}
}`
	d, err := Parse(context.Background(), []byte(doc), testEnv())
	require.NoError(t, err)
	assert.Equal(t, "sequential_random", d.Generator().Name())
	assert.False(t, d.Strict())
	assert.Equal(t, 1, d.NData())
	assertMirrored(t, d)
}

func TestParseRejectsBadDocuments(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
		kind error
	}{
		{"empty", ``, opterr.ErrConfiguration},
		{"not a mapping", `[1, 2]`, opterr.ErrConfiguration},
		{"unknown field", baseDocument + "colour: blue\n", opterr.ErrConfiguration},
		{"zero cap", `
vocs: {variables: {x: [0, 1]}}
generator: random
evaluator: {function: square}
max_evaluations: 0
`, opterr.ErrConfiguration},
		{"no vocs", `
generator: random
evaluator: {function: square}
`, opterr.ErrConfiguration},
		{"generator without name", `
vocs: {variables: {x: [0, 1]}}
generator: {seed: 1}
evaluator: {function: square}
`, opterr.ErrConfiguration},
		{"unknown generator", `
vocs: {variables: {x: [0, 1]}}
generator: annealing
evaluator: {function: square}
`, opterr.ErrConfiguration},
		{"bad generator parameter", `
vocs: {variables: {x: [0, 1]}}
generator: {name: random, temperature: 3}
evaluator: {function: square}
`, opterr.ErrConfiguration},
		{"no evaluator", `
vocs: {variables: {x: [0, 1]}}
generator: random
`, opterr.ErrConfiguration},
		{"zero workers", `
vocs: {variables: {x: [0, 1]}}
generator: random
evaluator: {function: square, max_workers: 0}
`, opterr.ErrConfiguration},
		{"unknown function", `
vocs: {variables: {x: [0, 1]}}
generator: random
evaluator: {function: cube}
`, opterr.ErrConfiguration},
		{"sparse data", `
vocs: {variables: {x: [0, 1]}}
generator: random
evaluator: {function: square}
data: {x: {"0": 0.1, "2": 0.2}}
`, opterr.ErrValidation},
		{"non integer index", `
vocs: {variables: {x: [0, 1]}}
generator: random
evaluator: {function: square}
data: {x: {"a": 0.1}}
`, opterr.ErrValidation},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(context.Background(), []byte(tc.doc), testEnv())
			require.ErrorIs(t, err, tc.kind)
		})
	}

	_, err := Parse(context.Background(), []byte(baseDocument), Env{})
	require.ErrorIs(t, err, opterr.ErrConfiguration)
}

func TestParseSortsDataByIndex(t *testing.T) {
	doc := `
vocs: {variables: {x: [0, 1]}}
generator: random
evaluator: {function: square}
data:
  x: {"1": 0.2, "0": 0.1}
`
	d, err := Parse(context.Background(), []byte(doc), testEnv())
	require.NoError(t, err)
	assert.Equal(t, []interface{}{0.1, 0.2}, d.Data().Column("x"))
}

func assertSameDriver(t *testing.T, want, got *Driver) {
	t.Helper()
	require.Equal(t, want.VOCS(), got.VOCS())
	require.Equal(t, want.Generator().Name(), got.Generator().Name())
	require.Equal(t, want.Generator().Params(), got.Generator().Params())
	require.Equal(t, want.Evaluator().Params(), got.Evaluator().Params())
	require.Equal(t, want.Strict(), got.Strict())
	require.Equal(t, want.DumpFile(), got.DumpFile())
	require.Equal(t, want.MaxEvaluations(), got.MaxEvaluations())
	require.Equal(t, want.Data().Index(), got.Data().Index())
	require.Equal(t, want.Data().Rows(), got.Data().Rows())
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	v := testVOCS()
	v.Constraints = map[string]vocs.Constraint{"g": {Kind: vocs.LessThan, Value: 50}}
	v.Observables = []string{"note"}
	g, err := localsearch.New(v, map[string]interface{}{"seed": 5, "top_k": 2})
	require.NoError(t, err)
	withG := func(_ context.Context, in dataset.Record, _ map[string]interface{}) (dataset.Record, error) {
		x, _ := dataset.Float(in["x"])
		return dataset.Record{"f": x * x, "g": x, "note": "ok", "trace": []float64{x, x}}, nil
	}
	d, err := New(
		WithVOCS(v),
		WithGenerator(g),
		WithEvaluator(newFunctionEvaluator(t, withG, 2)),
		WithStrict(false),
		WithMaxEvaluations(9),
	)
	require.NoError(t, err)
	seed := int64(1)
	_, err = d.RandomEvaluate(ctx, 3, &seed, nil)
	require.NoError(t, err)
	require.Equal(t, 6, d.NData())

	env := testEnv()
	y, err := d.YAML()
	require.NoError(t, err)
	fromYAML, err := Parse(ctx, []byte(y), env)
	require.NoError(t, err)
	assertSameDriver(t, d, fromYAML)
	assertMirrored(t, fromYAML)

	j, err := d.JSON()
	require.NoError(t, err)
	fromJSON, err := Parse(ctx, []byte(j), env)
	require.NoError(t, err)
	assertSameDriver(t, d, fromJSON)

	again, err := fromYAML.YAML()
	require.NoError(t, err)
	require.Equal(t, y, again)
}

func newLocalSearchDriver(t *testing.T, opts ...Option) *Driver {
	t.Helper()
	v := testVOCS()
	g, err := localsearch.New(v, map[string]interface{}{"seed": 2})
	require.NoError(t, err)
	base := []Option{
		WithVOCS(v),
		WithGenerator(g),
		WithEvaluator(newFunctionEvaluator(t, square, 1)),
		WithSerializeModels(true),
	}
	d, err := New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	seed := int64(4)
	_, err = d.RandomEvaluate(context.Background(), 4, &seed, nil)
	require.NoError(t, err)
	return d
}

func models(t *testing.T, d *Driver) map[string][]byte {
	t.Helper()
	holder, ok := d.Generator().(generator.ModelHolder)
	require.True(t, ok)
	m, err := holder.Models()
	require.NoError(t, err)
	return m
}

func TestInlineModels(t *testing.T) {
	d := newLocalSearchDriver(t, WithSerializeInline(true))
	want := models(t, d)
	require.Contains(t, want, localsearch.ModelKey)

	y, err := d.YAML()
	require.NoError(t, err)
	doc, err := Decode([]byte(y))
	require.NoError(t, err)
	require.Contains(t, doc.Generator.Models, localsearch.ModelKey)
	require.Empty(t, doc.Generator.ModelFiles)
	require.NotContains(t, doc.Generator.Params, "models")

	parsed, err := Parse(context.Background(), []byte(y), testEnv())
	require.NoError(t, err)
	require.Equal(t, want, models(t, parsed))
}

func TestModelsOnlyFromModelHolders(t *testing.T) {
	d := newTestDriver(t, WithSerializeModels(true), WithSerializeInline(true))
	y, err := d.YAML()
	require.NoError(t, err)
	doc, err := Decode([]byte(y))
	require.NoError(t, err)
	assert.Empty(t, doc.Generator.Models)

	bad := `
vocs: {variables: {x: [0, 1]}}
generator: {name: random, models: {incumbent: "e30="}}
evaluator: {function: square}
`
	_, err = Parse(context.Background(), []byte(bad), testEnv())
	require.ErrorIs(t, err, opterr.ErrConfiguration)

	corrupt := `
vocs: {variables: {x: [0, 1]}, objectives: {f: minimize}}
generator: {name: local_search, models: {incumbent: "not base64!"}}
evaluator: {function: square}
`
	_, err = Parse(context.Background(), []byte(corrupt), testEnv())
	require.ErrorIs(t, err, opterr.ErrSerialization)
}

func TestExternalModelFiles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "run.yaml")
	d := newLocalSearchDriver(t, WithDumpFile(path))
	want := models(t, d)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	doc, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, map[string]string{localsearch.ModelKey: path + ".incumbent.model"}, doc.Generator.ModelFiles)
	require.Empty(t, doc.Generator.Models)
	payload, err := os.ReadFile(path + ".incumbent.model")
	require.NoError(t, err)
	require.Equal(t, want[localsearch.ModelKey], payload)

	loaded, err := Load(ctx, path, testEnv())
	require.NoError(t, err)
	defer loaded.Close()
	assertSameDriver(t, d, loaded)
	require.Equal(t, want, models(t, loaded))
}

func TestRedisDumpTarget(t *testing.T) {
	ctx := context.Background()
	cfg := viper.New()
	mredis := snapTesting.New(t, cfg)

	d := newTestDriver(t, WithDumpFile("redis:///runs/square"), WithRuntimeConfig(cfg))
	_, err := d.RandomEvaluate(ctx, 3, nil, nil)
	require.NoError(t, err)
	require.True(t, mredis.Exists("runs/square"))

	env := testEnv()
	env.Runtime = cfg
	loaded, err := Load(ctx, "redis:///runs/square", env)
	require.NoError(t, err)
	defer loaded.Close()
	assertSameDriver(t, d, loaded)

	_, err = Load(ctx, "redis:///runs/missing", env)
	require.ErrorIs(t, err, opterr.ErrSerialization)
}

func TestBadgerDumpTarget(t *testing.T) {
	ctx := context.Background()
	target := "badger://" + t.TempDir() + "?key=square"

	d := newTestDriver(t, WithDumpFile(target))
	_, err := d.RandomEvaluate(ctx, 3, nil, nil)
	require.NoError(t, err)

	// The driver keeps its store open while the loaded copy opens another.
	loaded, err := Load(ctx, target, testEnv())
	require.NoError(t, err)
	defer loaded.Close()
	assertSameDriver(t, d, loaded)
	require.Equal(t, target, loaded.DumpFile())
}
