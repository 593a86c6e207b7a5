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

package evaluator

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"optdriver.dev/optdriver/internal/expbo"
	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/opterr"
)

// FunctionEvaluator runs a Function over rows using at most MaxWorkers
// goroutines. A failing row does not fail the batch: the row is returned
// with xopt_error set and the message in xopt_error_str.
type FunctionEvaluator struct {
	cfg     Config
	fn      Function
	limiter *rate.Limiter
}

var _ Evaluator = (*FunctionEvaluator)(nil)

// NewFunctionEvaluator wraps fn. cfg.Function names fn in rendered
// parameters and cfg.Address must be empty.
func NewFunctionEvaluator(fn Function, cfg Config) (*FunctionEvaluator, error) {
	if fn == nil {
		return nil, opterr.Configurationf("function evaluator needs a function")
	}
	if cfg.Address != "" {
		return nil, opterr.Configurationf("function evaluator cannot use address %q", cfg.Address)
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = 1
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.FunctionKwargs = copyKwargs(cfg.FunctionKwargs)
	e := &FunctionEvaluator{cfg: cfg, fn: fn}
	if cfg.MaxRate > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.MaxRate), cfg.MaxWorkers)
	}
	return e, nil
}

// FromConfig resolves cfg.Function in functions and wraps it.
func FromConfig(cfg Config, functions *FunctionRegistry) (*FunctionEvaluator, error) {
	fn, err := functions.Lookup(cfg.Function)
	if err != nil {
		return nil, err
	}
	return NewFunctionEvaluator(fn, cfg)
}

// MaxWorkers implements Evaluator.
func (e *FunctionEvaluator) MaxWorkers() int {
	return e.cfg.MaxWorkers
}

// Params implements Evaluator.
func (e *FunctionEvaluator) Params() map[string]interface{} {
	return e.cfg.Params()
}

// Config returns a copy of the evaluator parameters.
func (e *FunctionEvaluator) Config() Config {
	c := e.cfg
	c.FunctionKwargs = copyKwargs(e.cfg.FunctionKwargs)
	return c
}

// Evaluate implements Evaluator. Function errors are returned as they are.
func (e *FunctionEvaluator) Evaluate(ctx context.Context, in dataset.Record) (dataset.Record, error) {
	out, err := e.call(ctx, in)
	if err != nil {
		return nil, err
	}
	return out.Copy(), nil
}

// EvaluateData implements Evaluator. Output rows carry the input columns, the
// function outputs and the runtime columns, and keep the input labels.
func (e *FunctionEvaluator) EvaluateData(ctx context.Context, in *dataset.Table) (*dataset.Table, error) {
	rows := in.Rows()
	out := make([]dataset.Record, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxWorkers)
	for i := range rows {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = e.evaluateRow(gctx, rows[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dataset.NewIndexed(in.Index(), out)
}

func (e *FunctionEvaluator) evaluateRow(ctx context.Context, in dataset.Record) dataset.Record {
	start := time.Now()
	res, err := e.call(ctx, in)

	row := in.Copy()
	for k, v := range res {
		row[k] = v
	}
	row[RuntimeColumn] = time.Since(start).Seconds()
	row[ErrorColumn] = err != nil
	if err != nil {
		row[ErrorStrColumn] = err.Error()
		logger.WithFields(logrus.Fields{
			"function": e.cfg.Function,
			"input":    in,
		}).WithError(err).Debug("function failed")
	}
	return row
}

// call runs the function once, or under the retry policy when one is set.
func (e *FunctionEvaluator) call(ctx context.Context, in dataset.Record) (dataset.Record, error) {
	if e.cfg.Retry == "" {
		return e.callOnce(ctx, in)
	}
	b, err := expbo.Parse(e.cfg.Retry)
	if err != nil {
		return nil, err
	}
	var res dataset.Record
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		var err error
		res, err = e.callOnce(ctx, in)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"function": e.cfg.Function,
				"attempt":  attempt,
			}).WithError(err).Debug("retrying function")
		}
		return err
	}, backoff.WithContext(b, ctx))
	return res, err
}

func (e *FunctionEvaluator) callOnce(ctx context.Context, in dataset.Record) (res dataset.Record, err error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("function %q panicked: %v", e.cfg.Function, r)
		}
	}()
	return e.fn(ctx, in.Copy(), copyKwargs(e.cfg.FunctionKwargs))
}

func copyKwargs(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = dataset.NormalizeValue(v)
	}
	return out
}
