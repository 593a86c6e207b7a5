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
	"sort"
	"sync"

	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/opterr"
)

// Function computes the outputs of one candidate. kwargs holds the
// evaluator's function_kwargs and is never nil.
type Function func(ctx context.Context, in dataset.Record, kwargs map[string]interface{}) (dataset.Record, error)

// FunctionRegistry maps function names, as written in documents, to Go
// functions. It is safe for concurrent use.
type FunctionRegistry struct {
	m   sync.RWMutex
	fns map[string]Function
}

// NewFunctionRegistry returns an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{fns: make(map[string]Function)}
}

// Register adds fn under name.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	r.m.Lock()
	defer r.m.Unlock()
	if name == "" || fn == nil {
		return opterr.Configurationf("function registration needs a name and a function")
	}
	if _, ok := r.fns[name]; ok {
		return opterr.Configurationf("function %q is already registered", name)
	}
	r.fns[name] = fn
	return nil
}

// MustRegister is Register that panics on error.
func (r *FunctionRegistry) MustRegister(name string, fn Function) *FunctionRegistry {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the function registered under name.
func (r *FunctionRegistry) Lookup(name string) (Function, error) {
	if r == nil {
		return nil, opterr.Configurationf("no function registry to resolve %q", name)
	}
	r.m.RLock()
	fn, ok := r.fns[name]
	r.m.RUnlock()
	if !ok {
		return nil, opterr.Configurationf("unknown function %q, registered: %v", name, r.Names())
	}
	return fn, nil
}

// Names returns the registered function names in sorted order.
func (r *FunctionRegistry) Names() []string {
	r.m.RLock()
	defer r.m.RUnlock()
	out := make([]string, 0, len(r.fns))
	for k := range r.fns {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
