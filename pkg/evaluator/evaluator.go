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

// Package evaluator defines how candidates are evaluated and provides an
// in-process evaluator that runs registered Go functions on a bounded worker
// pool.
package evaluator

import (
	"context"

	"github.com/sirupsen/logrus"

	"optdriver.dev/optdriver/pkg/dataset"
)

// Columns written by FunctionEvaluator next to the function outputs.
const (
	RuntimeColumn  = "xopt_runtime"
	ErrorColumn    = "xopt_error"
	ErrorStrColumn = "xopt_error_str"
)

var (
	logger = logrus.WithFields(logrus.Fields{
		"app":       "optdriver",
		"component": "evaluator",
	})
)

// Evaluator evaluates candidates. Every call is blocking; concurrency,
// retries and partial failures are handled inside the implementation.
type Evaluator interface {
	// MaxWorkers is the number of candidates the evaluator handles at once.
	MaxWorkers() int

	// Evaluate runs a single record and returns the raw result.
	Evaluate(ctx context.Context, in dataset.Record) (dataset.Record, error)

	// EvaluateData runs every row of in and returns one result row per
	// input row, in input order.
	EvaluateData(ctx context.Context, in *dataset.Table) (*dataset.Table, error)

	// Params returns the serializable parameters of the evaluator.
	Params() map[string]interface{}
}
