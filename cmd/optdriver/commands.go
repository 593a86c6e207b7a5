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
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"optdriver.dev/optdriver/internal/config"
	"optdriver.dev/optdriver/internal/logging"
	"optdriver.dev/optdriver/internal/telemetry"
	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/driver"
	"optdriver.dev/optdriver/pkg/evaluator"
	"optdriver.dev/optdriver/pkg/generator/builtin"
	"optdriver.dev/optdriver/pkg/opterr"
)

var (
	logger = logrus.WithFields(logrus.Fields{
		"app":       "optdriver",
		"component": "cli",
	})
)

// cli holds state shared by every command of one invocation.
type cli struct {
	envFile       string
	runtimeConfig []string
	runtime       config.View
	functions     *evaluator.FunctionRegistry
	closers       []func()
}

// newRootCmd builds the command tree. The returned function releases the
// telemetry exporters started by the invocation.
func newRootCmd() (*cobra.Command, func()) {
	c := &cli{functions: evaluator.Builtin()}
	root := &cobra.Command{
		Use:   "optdriver",
		Short: "Drive optimization loops described by YAML or JSON documents",
		Long: `optdriver runs a generator and an evaluator in a loop over a problem
definition, keeping every evaluated point in a dataset that is written
back to the document's dump_file after each batch.

DOCUMENT is a file path, redis://[host:port]/<key> or
badger://<dir>[?key=<key>].`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(c.envFile); err != nil {
				return err
			}
			cfg, err := readRuntimeConfig(c.runtimeConfig)
			if err != nil {
				return err
			}
			logging.ConfigureLogging(cfg)
			c.runtime = cfg
			closeExporters, err := telemetry.SetupExporters(cfg)
			if err != nil {
				return err
			}
			c.closers = append(c.closers, closeExporters)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.envFile, "env-file", "", "file of KEY=value lines added to the environment before reading runtime configuration")
	root.PersistentFlags().StringSliceVar(&c.runtimeConfig, "runtime-config", nil, "runtime configuration files, later ones override earlier ones (default ./optdriver.yaml if present)")

	root.AddCommand(
		c.runCmd(),
		c.stepCmd(),
		c.evaluateCmd(),
		c.randomCmd(),
		c.gridCmd(),
		c.showCmd(),
		c.describeCmd(),
		c.exportCmd(),
		c.serveEvaluatorCmd(),
	)
	return root, c.shutdown
}

func (c *cli) shutdown() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// loadEnvFile exports the variables of path, so OPTDRIVER_* settings can
// live next to a document. Variables already set win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return opterr.Wrap(opterr.Configuration, err, "cannot read env file")
	}
	return nil
}

// readRuntimeConfig reads a single file, or the default location when
// none is given, and merges several files into layers.
func readRuntimeConfig(files []string) (config.View, error) {
	switch len(files) {
	case 0:
		return config.Read("")
	case 1:
		return config.Read(files[0])
	}
	return config.ReadAndMerge(files...)
}

func (c *cli) env() driver.Env {
	return driver.Env{
		Generators: builtin.Registry(),
		Functions:  c.functions,
		Runtime:    c.runtime,
	}
}

// withDriver loads the document at target, hands the driver to fn and
// closes it afterwards.
func (c *cli) withDriver(ctx context.Context, target string, fn func(*driver.Driver) error) error {
	d, err := driver.Load(ctx, target, c.env())
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.WithError(err).Warn("failed to close driver")
		}
	}()
	return fn(d)
}

// dumpTo writes the document to target when one was given.
func dumpTo(ctx context.Context, d *driver.Driver, target string) error {
	if target == "" {
		return nil
	}
	return d.Dump(ctx, target)
}

// parseAssignments turns name=value pairs into a record. Values that parse
// as numbers are numbers; everything else is a string.
func parseAssignments(pairs []string) (dataset.Record, error) {
	rec := dataset.Record{}
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, opterr.Validationf("expected name=value, got %q", p)
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			rec[name] = f
		} else {
			rec[name] = value
		}
	}
	return rec, nil
}

// parseBounds turns name=lo:hi pairs into custom sampling bounds.
func parseBounds(pairs []string) (map[string][]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := map[string][]float64{}
	for _, p := range pairs {
		name, rng, ok := strings.Cut(p, "=")
		lo, hi, ok2 := strings.Cut(rng, ":")
		if !ok || !ok2 || name == "" {
			return nil, opterr.Validationf("expected name=lo:hi, got %q", p)
		}
		l, err := strconv.ParseFloat(lo, 64)
		if err != nil {
			return nil, opterr.Wrap(opterr.Validation, err, fmt.Sprintf("bad lower bound in %q", p))
		}
		h, err := strconv.ParseFloat(hi, 64)
		if err != nil {
			return nil, opterr.Wrap(opterr.Validation, err, fmt.Sprintf("bad upper bound in %q", p))
		}
		out[name] = []float64{l, h}
	}
	return out, nil
}

// printTable writes t as aligned columns led by the row label.
func printTable(w io.Writer, t *dataset.Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	cols := t.Columns()
	fmt.Fprintf(tw, "index\t%s\n", strings.Join(cols, "\t"))
	index := t.Index()
	for pos := 0; pos < t.Len(); pos++ {
		row := t.Row(pos)
		cells := make([]string, len(cols))
		for i, col := range cols {
			cells[i] = formatCell(row[col])
		}
		fmt.Fprintf(tw, "%d\t%s\n", index[pos], strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// printRecord writes rec as sorted name: value lines.
func printRecord(w io.Writer, rec dataset.Record) {
	names := make([]string, 0, len(rec))
	for k := range rec {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(w, "%s: %s\n", k, formatCell(rec[k]))
	}
}

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'g', 6, 64)
	}
	return fmt.Sprint(v)
}
