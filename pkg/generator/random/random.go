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

// Package random provides the "random" generator: uniform samples over the
// variable bounds, independent of the data seen so far.
package random

import (
	"sync"

	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/generator"
	"optdriver.dev/optdriver/pkg/vocs"
)

// Name is the registry tag of the random generator.
const Name = "random"

// Generator samples uniformly at random. Its mirror grows incrementally.
type Generator struct {
	*generator.Base

	seed *int64

	m     sync.Mutex
	calls int64
}

var (
	_ generator.Generator   = (*Generator)(nil)
	_ generator.Accumulator = (*Generator)(nil)
)

// New builds a random generator. The optional "seed" parameter makes the
// sequence of Generate calls reproducible.
func New(v *vocs.VOCS, params map[string]interface{}) (generator.Generator, error) {
	if err := generator.CheckParams(Name, params, "seed"); err != nil {
		return nil, err
	}
	seed, err := generator.SeedParam(params, "seed")
	if err != nil {
		return nil, err
	}
	return &Generator{Base: generator.NewBase(v), seed: seed}, nil
}

// Name implements generator.Generator.
func (g *Generator) Name() string {
	return Name
}

// Params implements generator.Generator.
func (g *Generator) Params() map[string]interface{} {
	p := map[string]interface{}{}
	if g.seed != nil {
		p["seed"] = *g.seed
	}
	return p
}

// Generate implements generator.Generator.
func (g *Generator) Generate(n int) (*dataset.Table, error) {
	if n < 1 {
		return nil, nil
	}
	var seed *int64
	if g.seed != nil {
		g.m.Lock()
		s := *g.seed + g.calls
		g.calls++
		g.m.Unlock()
		seed = &s
	}
	return g.VOCS().RandomInputs(n, seed, nil, true)
}

// AddData implements generator.Accumulator.
func (g *Generator) AddData(t *dataset.Table) error {
	g.AppendData(t)
	return nil
}

// Clone implements generator.Generator.
func (g *Generator) Clone() generator.Generator {
	g.m.Lock()
	defer g.m.Unlock()
	c := &Generator{Base: g.CloneBase(), calls: g.calls}
	if g.seed != nil {
		s := *g.seed
		c.seed = &s
	}
	return c
}
