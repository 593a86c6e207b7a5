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
	"time"

	"github.com/sirupsen/logrus"
	"go.opencensus.io/tag"
	"go.opencensus.io/trace"

	"optdriver.dev/optdriver/internal/telemetry"
	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/generator"
	"optdriver.dev/optdriver/pkg/opterr"
	"optdriver.dev/optdriver/pkg/vocs"
)

// Step asks the generator for as many candidates as the evaluator has
// workers and evaluates them. A generator with nothing to propose makes
// Step a no-op.
func (d *Driver) Step(ctx context.Context) error {
	d.m.Lock()
	defer d.m.Unlock()
	_, err := d.step(ctx)
	return err
}

func (d *Driver) step(ctx context.Context) (int, error) {
	n := d.eval.MaxWorkers()
	d.logger.WithField("n", n).Debug("generating candidates")
	candidates, err := d.gen.Generate(n)
	if err != nil {
		return 0, err
	}
	telemetry.Inc(ctx, telemetry.DriverSteps, d.generatorTag())
	if candidates.Len() == 0 {
		return 0, nil
	}
	out, err := d.evaluateData(ctx, candidates)
	if err != nil {
		return 0, err
	}
	return out.Len(), nil
}

// Run steps until the dataset holds at least MaxEvaluations rows. The cap
// is checked between steps only, so the last step may overshoot it by up
// to MaxWorkers-1 rows. Run also stops when the generator has nothing left
// to propose.
func (d *Driver) Run(ctx context.Context) error {
	if d.maxEvaluations == 0 {
		return opterr.Configurationf("max_evaluations must be set to run the driver")
	}
	d.logger.WithField("max_evaluations", d.maxEvaluations).Info("running")
	for {
		d.m.Lock()
		n := d.data.Len()
		if n >= d.maxEvaluations {
			d.m.Unlock()
			d.logger.WithField("rows", n).Infof("done, max evaluations %d reached", d.maxEvaluations)
			return nil
		}
		added, err := d.step(ctx)
		d.m.Unlock()
		if err != nil {
			return err
		}
		if added == 0 {
			d.logger.WithField("rows", n).Info("generator exhausted, stopping")
			return nil
		}
	}
}

// Evaluate scores a single record without storing it. Constants are added
// for validation only; the evaluator receives the record as given.
func (d *Driver) Evaluate(ctx context.Context, in dataset.Record) (dataset.Record, error) {
	withConstants := in.Copy()
	if withConstants == nil {
		withConstants = dataset.Record{}
	}
	for name, value := range d.vocs.Constants {
		withConstants[name] = dataset.NormalizeValue(value)
	}
	if err := d.vocs.ValidateInputData(dataset.FromRecords(withConstants)); err != nil {
		return nil, err
	}
	return d.eval.Evaluate(ctx, in.Copy())
}

// EvaluateData validates, evaluates and stores one batch of candidates and
// returns the stored rows, list outputs exploded. Nothing is stored unless
// every check passes. When the dump target cannot be written the batch is
// already stored; the rows are returned together with the error.
func (d *Driver) EvaluateData(ctx context.Context, in dataset.Input) (*dataset.Table, error) {
	d.m.Lock()
	defer d.m.Unlock()
	return d.evaluateData(ctx, in)
}

func (d *Driver) evaluateData(ctx context.Context, in dataset.Input) (*dataset.Table, error) {
	ctx, span := trace.StartSpan(ctx, "driver.EvaluateData")
	defer span.End()

	t, err := dataset.Normalize(in)
	if err != nil {
		return nil, d.reject(ctx, span, err)
	}
	span.AddAttributes(trace.Int64Attribute("rows", int64(t.Len())))
	d.logger.Debugf("evaluating %d inputs", t.Len())

	if err := d.vocs.ValidateInputData(t); err != nil {
		return nil, d.reject(ctx, span, err)
	}
	d.vocs.AddConstants(t)

	if s, ok := d.gen.(generator.Sequential); ok && s.IsActive() {
		if err := s.ValidatePoint(t); err != nil {
			return nil, d.reject(ctx, span, err)
		}
	}

	start := time.Now()
	out, err := d.eval.EvaluateData(ctx, t)
	telemetry.RecordSince(ctx, telemetry.DriverEvaluateMillis, start, d.generatorTag())
	if err != nil {
		return nil, d.reject(ctx, span, err)
	}
	if out == nil {
		out = dataset.New()
	}

	if d.strict {
		if err := validateOutputs(d.vocs, out); err != nil {
			return nil, d.reject(ctx, span, err)
		}
	}

	exploded, err := dataset.Explode(out)
	if err != nil {
		return nil, d.reject(ctx, span, err)
	}
	if err := d.addData(ctx, exploded); err != nil {
		return nil, d.reject(ctx, span, err)
	}
	telemetry.Add(ctx, telemetry.DriverRowsEvaluated, int64(exploded.Len()), d.generatorTag())

	if d.store != nil {
		if err := d.dump(ctx, d.store); err != nil {
			span.SetStatus(trace.Status{Code: trace.StatusCodeInternal, Message: err.Error()})
			return exploded, err
		}
	}
	return exploded, nil
}

// reject counts a batch that never reached the dataset.
func (d *Driver) reject(ctx context.Context, span *trace.Span, err error) error {
	kind := opterr.KindOf(err)
	telemetry.Inc(ctx, telemetry.DriverBatchesFailed, tag.Upsert(telemetry.KeyKind, kind.String()))
	span.SetStatus(trace.Status{Code: int32(opterr.Code(err)), Message: err.Error()})
	d.logger.WithFields(logrus.Fields{
		"kind":  kind.String(),
		"error": err.Error(),
	}).Debug("batch rejected")
	return err
}

// RandomEvaluate evaluates n uniform samples of the variable bounds,
// narrowed by custom. seed may be nil.
func (d *Driver) RandomEvaluate(ctx context.Context, n int, seed *int64, custom map[string][]float64) (*dataset.Table, error) {
	in, err := d.vocs.RandomInputs(n, seed, custom, true)
	if err != nil {
		return nil, err
	}
	return d.EvaluateData(ctx, in)
}

// GridEvaluate evaluates a mesh over the variable bounds, narrowed by
// custom.
func (d *Driver) GridEvaluate(ctx context.Context, n vocs.GridSamples, custom map[string][]float64) (*dataset.Table, error) {
	in, err := d.vocs.GridInputs(n, custom)
	if err != nil {
		return nil, err
	}
	return d.EvaluateData(ctx, in)
}
