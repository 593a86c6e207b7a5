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

// Package driver runs an optimization loop: a generator proposes
// candidates, an evaluator scores them, and the driver keeps the results in
// a densely indexed dataset mirrored into the generator.
//
// A Driver is built either from structured options with New, or from a
// YAML or JSON document with Parse. Every successful EvaluateData appends
// one batch atomically and, when a dump target is set, rewrites the
// document to it.
package driver

import (
	"context"
	"io"
	"sync"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/tag"

	"optdriver.dev/optdriver/internal/config"
	"optdriver.dev/optdriver/internal/snapshot"
	"optdriver.dev/optdriver/internal/telemetry"
	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/evaluator"
	"optdriver.dev/optdriver/pkg/generator"
	"optdriver.dev/optdriver/pkg/opterr"
	"optdriver.dev/optdriver/pkg/vocs"
)

var (
	logger = logrus.WithFields(logrus.Fields{
		"app":       "optdriver",
		"component": "driver",
	})
)

// Driver coordinates one generator and one evaluator over a dataset.
// It is safe for concurrent use; every operation that touches the dataset
// holds one lock covering the dataset and the generator mirror together.
type Driver struct {
	m      sync.Mutex
	runID  string
	logger *logrus.Entry

	vocs *vocs.VOCS
	gen  generator.Generator
	eval evaluator.Evaluator

	strict          bool
	dumpFile        string
	maxEvaluations  int
	serializeModels bool
	serializeInline bool

	data    *dataset.Table
	runtime config.View
	store   snapshot.Store
}

// Option configures a Driver built with New.
type Option func(*Driver) error

// WithVOCS sets the problem definition. It is copied.
func WithVOCS(v *vocs.VOCS) Option {
	return func(d *Driver) error {
		if v == nil {
			return opterr.Configurationf("vocs is required")
		}
		d.vocs = v.Clone()
		return nil
	}
}

// WithGenerator sets the generator. It is deep-copied, so the caller's
// instance never sees the driver's data.
func WithGenerator(g generator.Generator) Option {
	return func(d *Driver) error {
		if err := generator.CheckCapabilities(g); err != nil {
			return err
		}
		d.gen = g.Clone()
		return nil
	}
}

// WithEvaluator sets the evaluator.
func WithEvaluator(e evaluator.Evaluator) Option {
	return func(d *Driver) error {
		if e == nil {
			return opterr.Configurationf("evaluator is required")
		}
		d.eval = e
		return nil
	}
}

// WithStrict toggles output validation. Drivers are strict by default.
func WithStrict(strict bool) Option {
	return func(d *Driver) error {
		d.strict = strict
		return nil
	}
}

// WithDumpFile sets the target rewritten after every evaluated batch: a
// path, or redis://[host:port]/<key>.
func WithDumpFile(target string) Option {
	return func(d *Driver) error {
		d.dumpFile = target
		return nil
	}
}

// WithMaxEvaluations sets the row count at which Run stops.
func WithMaxEvaluations(n int) Option {
	return func(d *Driver) error {
		if n < 1 {
			return opterr.Configurationf("max_evaluations must be at least 1, got %d", n)
		}
		d.maxEvaluations = n
		return nil
	}
}

// WithSerializeModels writes generator model payloads into dumps.
func WithSerializeModels(on bool) Option {
	return func(d *Driver) error {
		d.serializeModels = on
		return nil
	}
}

// WithSerializeInline embeds model payloads in the document instead of
// writing them next to the dump target.
func WithSerializeInline(on bool) Option {
	return func(d *Driver) error {
		d.serializeInline = on
		return nil
	}
}

// WithData seeds the dataset. Rows are ordered by index, which must then
// be exactly 0..n-1.
func WithData(t *dataset.Table) Option {
	return func(d *Driver) error {
		data := t.Copy()
		data.SortByIndex()
		if err := data.CheckDense(); err != nil {
			return err
		}
		d.data = data
		return nil
	}
}

// WithRuntimeConfig supplies the runtime configuration used for Redis dump
// targets and telemetry.
func WithRuntimeConfig(cfg config.View) Option {
	return func(d *Driver) error {
		d.runtime = cfg
		return nil
	}
}

// New builds a driver. WithVOCS, WithGenerator and WithEvaluator are
// required.
func New(opts ...Option) (*Driver, error) {
	runID := xid.New().String()
	d := &Driver{
		runID:  runID,
		logger: logger.WithField("run", runID),
		strict: true,
		data:   dataset.New(),
	}
	for _, o := range opts {
		if err := o(d); err != nil {
			return nil, err
		}
	}

	switch {
	case d.vocs == nil:
		return nil, opterr.Configurationf("vocs is required")
	case d.gen == nil:
		return nil, opterr.Configurationf("generator is required")
	case d.eval == nil:
		return nil, opterr.Configurationf("evaluator is required")
	}
	if err := d.vocs.Validate(); err != nil {
		return nil, err
	}
	if d.eval.MaxWorkers() < 1 {
		return nil, opterr.Configurationf("evaluator max_workers must be at least 1, got %d", d.eval.MaxWorkers())
	}
	if err := generator.Mirror(d.gen, d.data); err != nil {
		return nil, err
	}
	if d.dumpFile != "" {
		s, err := snapshot.Open(d.dumpFile, d.runtime)
		if err != nil {
			return nil, err
		}
		d.store = s
	}

	d.logger = d.logger.WithField("generator", d.gen.Name())
	d.logger.WithFields(logrus.Fields{
		"rows":            d.data.Len(),
		"strict":          d.strict,
		"dump_file":       d.dumpFile,
		"max_evaluations": d.maxEvaluations,
	}).Debug("driver created")
	return d, nil
}

// NewFromArgs builds a driver from exactly one of a document or a set of
// options.
func NewFromArgs(ctx context.Context, doc []byte, env Env, opts ...Option) (*Driver, error) {
	switch {
	case len(doc) > 0 && len(opts) > 0:
		return nil, opterr.Configurationf("cannot build a driver from both a document and options")
	case len(doc) > 0:
		return Parse(ctx, doc, env)
	case len(opts) > 0:
		return New(opts...)
	default:
		return nil, opterr.Configurationf("a document or driver options are required")
	}
}

// RunID identifies the driver in logs.
func (d *Driver) RunID() string {
	return d.runID
}

// NData returns the number of rows in the dataset.
func (d *Driver) NData() int {
	d.m.Lock()
	defer d.m.Unlock()
	return d.data.Len()
}

// Data returns a copy of the dataset.
func (d *Driver) Data() *dataset.Table {
	d.m.Lock()
	defer d.m.Unlock()
	return d.data.Copy()
}

// Generator returns a copy of the generator, mirror included.
func (d *Driver) Generator() generator.Generator {
	d.m.Lock()
	defer d.m.Unlock()
	return d.gen.Clone()
}

// Evaluator returns the evaluator.
func (d *Driver) Evaluator() evaluator.Evaluator {
	return d.eval
}

// VOCS returns a copy of the problem definition.
func (d *Driver) VOCS() *vocs.VOCS {
	return d.vocs.Clone()
}

// Strict reports whether outputs are validated.
func (d *Driver) Strict() bool {
	return d.strict
}

// DumpFile returns the configured dump target.
func (d *Driver) DumpFile() string {
	return d.dumpFile
}

// MaxEvaluations returns the evaluation cap, zero when unset.
func (d *Driver) MaxEvaluations() int {
	return d.maxEvaluations
}

// Close releases the dump target and, when it holds a connection, the
// evaluator.
func (d *Driver) Close() error {
	var firstErr error
	if d.store != nil {
		firstErr = d.store.Close()
	}
	if c, ok := d.eval.(io.Closer); ok {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (d *Driver) generatorTag() tag.Mutator {
	return tag.Upsert(telemetry.KeyGenerator, d.gen.Name())
}

func (d *Driver) recordRows(ctx context.Context) {
	telemetry.SetGauge(ctx, telemetry.DriverDatasetRows, int64(d.data.Len()), d.generatorTag())
}
