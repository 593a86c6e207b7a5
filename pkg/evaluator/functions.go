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
	"math"
	"sort"

	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/opterr"
)

// Builtin returns a registry with the bundled test functions:
//
//   - "sphere": writes the sum of squares of the numeric inputs to the
//     column named by kwargs["output"] (default "f"). kwargs["inputs"]
//     restricts the sum to the listed columns.
//   - "echo": returns kwargs as outputs.
func Builtin() *FunctionRegistry {
	return NewFunctionRegistry().
		MustRegister("sphere", Sphere).
		MustRegister("echo", Echo)
}

// Sphere is the "sphere" test function.
func Sphere(_ context.Context, in dataset.Record, kwargs map[string]interface{}) (dataset.Record, error) {
	output := "f"
	if o, ok := kwargs["output"].(string); ok && o != "" {
		output = o
	}

	var names []string
	if raw, ok := kwargs["inputs"].([]interface{}); ok {
		for _, n := range raw {
			s, ok := n.(string)
			if !ok {
				return nil, opterr.Validationf("sphere: inputs must be column names, got %v", n)
			}
			names = append(names, s)
		}
	} else {
		for k := range in {
			if _, ok := dataset.Float(in[k]); ok {
				names = append(names, k)
			}
		}
		sort.Strings(names)
	}

	sum := 0.0
	for _, n := range names {
		x, ok := dataset.Float(in[n])
		if !ok {
			return nil, opterr.Validationf("sphere: input %q is not a number: %v", n, in[n])
		}
		sum += math.Pow(x, 2)
	}
	return dataset.Record{output: sum}, nil
}

// Echo is the "echo" test function.
func Echo(_ context.Context, _ dataset.Record, kwargs map[string]interface{}) (dataset.Record, error) {
	return dataset.Record(kwargs).Copy(), nil
}
