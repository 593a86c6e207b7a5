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

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/driver"
	"optdriver.dev/optdriver/pkg/evaluator"
	"optdriver.dev/optdriver/pkg/generator/builtin"
	"optdriver.dev/optdriver/pkg/opterr"
)

const document = `
vocs:
  variables:
    x: [0, 4]
  objectives:
    f: minimize
  constants:
    c: 1.0
generator:
  name: random
  seed: 11
evaluator:
  function: sphere
  max_workers: 2
  function_kwargs:
    inputs: [x]
max_evaluations: 6
dump_file: %s
`

// writeDocument writes a document dumping to out.yaml in a fresh directory
// and returns both paths.
func writeDocument(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dump := filepath.Join(dir, "out.yaml")
	path := filepath.Join(dir, "doc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(document, "%s", dump, 1)), 0o644))
	return path, dump
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root, shutdown := newRootCmd()
	defer shutdown()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func loadDump(t *testing.T, path string) *driver.Driver {
	t.Helper()
	d, err := driver.Load(context.Background(), path, driver.Env{
		Generators: builtin.Registry(),
		Functions:  evaluator.Builtin(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestRun(t *testing.T) {
	doc, dump := writeDocument(t)
	out, err := execute(t, "run", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "total")

	d := loadDump(t, dump)
	assert.GreaterOrEqual(t, d.NData(), 6)
	data := d.Data()
	for pos := 0; pos < data.Len(); pos++ {
		row := data.Row(pos)
		x := row["x"].(float64)
		assert.InDelta(t, x*x, row["f"], 1e-9)
		assert.Equal(t, 1.0, row["c"])
	}
}

func TestStepWithOutput(t *testing.T) {
	doc, dump := writeDocument(t)
	extra := filepath.Join(t.TempDir(), "copy.json")
	_, err := execute(t, "step", doc, "-n", "2", "-o", extra)
	require.NoError(t, err)

	assert.Equal(t, 4, loadDump(t, dump).NData())
	assert.Equal(t, 4, loadDump(t, extra).NData())
}

func TestStepRejectsZeroSteps(t *testing.T) {
	doc, _ := writeDocument(t)
	_, err := execute(t, "step", doc, "-n", "0")
	assert.ErrorIs(t, err, opterr.ErrValidation)
}

func TestEvaluate(t *testing.T) {
	doc, dump := writeDocument(t)
	out, err := execute(t, "evaluate", doc, "--set", "x=3")
	require.NoError(t, err)
	assert.Equal(t, "f: 9\n", out)

	_, err = os.Stat(dump)
	assert.True(t, os.IsNotExist(err), "evaluate must not store the point")
}

func TestEvaluateRejectsBadAssignment(t *testing.T) {
	doc, _ := writeDocument(t)
	_, err := execute(t, "evaluate", doc, "--set", "x")
	assert.ErrorIs(t, err, opterr.ErrValidation)
}

func TestRandomAndGrid(t *testing.T) {
	doc, dump := writeDocument(t)

	out, err := execute(t, "random", doc, "-n", "3", "--seed", "5", "--bounds", "x=1:2")
	require.NoError(t, err)
	assert.Equal(t, 4, len(strings.Split(strings.TrimSpace(out), "\n")))
	data := loadDump(t, dump).Data()
	require.Equal(t, 3, data.Len())
	for _, x := range dataset.NumericColumn(data, "x") {
		assert.True(t, x >= 1 && x <= 2, "x=%v outside custom bounds", x)
	}

	out, err = execute(t, "grid", dump, "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "index")
	assert.Equal(t, 8, loadDump(t, dump).NData())
}

func TestShowAndDescribe(t *testing.T) {
	doc, dump := writeDocument(t)
	_, err := execute(t, "grid", doc, "-n", "3")
	require.NoError(t, err)

	out, err := execute(t, "show", dump, "-f", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"generator"`)

	out, err = execute(t, "show", dump, "-f", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "Data size: 3")

	_, err = execute(t, "show", dump, "-f", "xml")
	assert.ErrorIs(t, err, opterr.ErrValidation)

	out, err = execute(t, "describe", dump)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.True(t, strings.HasPrefix(lines[0], "column"))
	var described []string
	for _, l := range lines[1:] {
		described = append(described, strings.Fields(l)[0])
	}
	assert.Subset(t, described, []string{"c", "f", "x"})
	assert.NotContains(t, described, "xopt_error")
}

func TestMissingDocument(t *testing.T) {
	_, err := execute(t, "show", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, opterr.ErrSerialization)
}

func TestParseBounds(t *testing.T) {
	b, err := parseBounds([]string{"x=0:1.5", "y=-2:2"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]float64{"x": {0, 1.5}, "y": {-2, 2}}, b)

	for _, bad := range []string{"x", "x=1", "x=a:2", "x=1:b", "=1:2"} {
		_, err := parseBounds([]string{bad})
		assert.ErrorIs(t, err, opterr.ErrValidation, bad)
	}
}

func TestParseAssignments(t *testing.T) {
	rec, err := parseAssignments([]string{"x=1.5", "mode=fast"})
	require.NoError(t, err)
	assert.Equal(t, dataset.Record{"x": 1.5, "mode": "fast"}, rec)
}

func TestReadRuntimeConfigLayers(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.yaml")
	override := filepath.Join(dir, "override.yaml")
	require.NoError(t, os.WriteFile(base, []byte("redis:\n  hostname: cache\n  port: 7000\n"), 0o644))
	require.NoError(t, os.WriteFile(override, []byte("redis:\n  port: 7001\n"), 0o644))

	cfg, err := readRuntimeConfig([]string{base})
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.GetInt("redis.port"))

	cfg, err = readRuntimeConfig([]string{base, override})
	require.NoError(t, err)
	assert.Equal(t, "cache", cfg.GetString("redis.hostname"))
	assert.Equal(t, 7001, cfg.GetInt("redis.port"))
	assert.Equal(t, "text", cfg.GetString("logging.format"))

	_, err = readRuntimeConfig([]string{filepath.Join(dir, "missing.yaml")})
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	doc, dump := writeDocument(t)
	_, err := execute(t, "grid", doc, "-n", "3")
	require.NoError(t, err)
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "data.csv")
	out, err := execute(t, "export", dump, csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "exported 3 rows")
	b, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "index,c,f,x"), lines[0])

	xlsxPath := filepath.Join(dir, "data.xlsx")
	_, err = execute(t, "export", dump, xlsxPath)
	require.NoError(t, err)
	f, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(dataset.ExportSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	_, err = execute(t, "export", dump, filepath.Join(dir, "data.parquet"))
	assert.ErrorIs(t, err, opterr.ErrValidation)
}

func TestEnvFile(t *testing.T) {
	const key = "OPTDRIVER_REDIS_SENTINELMASTER"
	t.Cleanup(func() { os.Unsetenv(key) })
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(key+"=from-env-file\n"), 0o644))

	require.NoError(t, loadEnvFile(envFile))
	cfg, err := readRuntimeConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env-file", cfg.GetString("redis.sentinelMaster"))

	require.NoError(t, loadEnvFile(""))
	assert.ErrorIs(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")), opterr.ErrConfiguration)
}
