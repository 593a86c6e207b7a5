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

// Package sequential provides the "sequential_random" generator, which
// proposes one candidate at a time and refuses to move on until that
// candidate has been evaluated.
package sequential

import (
	"sync"

	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/generator"
	"optdriver.dev/optdriver/pkg/opterr"
	"optdriver.dev/optdriver/pkg/vocs"
)

// Name is the registry tag of the sequential generator.
const Name = "sequential_random"

// Generator keeps a single outstanding candidate. Its mirror is replaced
// wholesale so it can tell when the candidate has been evaluated.
type Generator struct {
	*generator.Base

	seed         *int64
	initialPoint dataset.Record

	m         sync.Mutex
	calls     int64
	candidate dataset.Record
}

var (
	_ generator.Generator  = (*Generator)(nil)
	_ generator.StateOwner = (*Generator)(nil)
	_ generator.Sequential = (*Generator)(nil)
)

// New builds a sequential generator. Parameters: "seed" for reproducible
// proposals and "initial_point", a map of variable values proposed first.
func New(v *vocs.VOCS, params map[string]interface{}) (generator.Generator, error) {
	if err := generator.CheckParams(Name, params, "seed", "initial_point"); err != nil {
		return nil, err
	}
	seed, err := generator.SeedParam(params, "seed")
	if err != nil {
		return nil, err
	}
	g := &Generator{Base: generator.NewBase(v), seed: seed}

	if raw, ok := params["initial_point"]; ok && raw != nil {
		var p dataset.Record
		switch m := raw.(type) {
		case dataset.Record:
			p = m.Copy()
		case map[string]interface{}:
			p = dataset.Record(m).Copy()
		default:
			return nil, opterr.Configurationf("initial_point must be a mapping of variable values, got %v", raw)
		}
		if len(p) != len(v.Variables) {
			return nil, opterr.Configurationf("initial_point must set exactly the variables %v", v.VariableNames())
		}
		if err := v.ValidateInputData(dataset.FromRecords(p)); err != nil {
			return nil, opterr.Configurationf("initial_point: %v", err)
		}
		g.initialPoint = p.Copy()
	}
	return g, nil
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
	if g.initialPoint != nil {
		p["initial_point"] = map[string]interface{}(g.initialPoint.Copy())
	}
	return p
}

// Generate returns the outstanding candidate, or proposes a new one. It
// never returns more than one row regardless of n.
func (g *Generator) Generate(n int) (*dataset.Table, error) {
	if n < 1 {
		return nil, nil
	}
	g.m.Lock()
	defer g.m.Unlock()

	if g.candidate == nil {
		next, err := g.propose()
		if err != nil {
			return nil, err
		}
		g.candidate = next
	}
	t := dataset.FromRecords(g.candidate)
	g.VOCS().AddConstants(t)
	return t, nil
}

func (g *Generator) propose() (dataset.Record, error) {
	if g.calls == 0 && g.initialPoint != nil {
		g.calls++
		return g.initialPoint.Copy(), nil
	}
	var seed *int64
	if g.seed != nil {
		s := *g.seed + g.calls
		seed = &s
	}
	g.calls++
	t, err := g.VOCS().RandomInputs(1, seed, nil, false)
	if err != nil {
		return nil, err
	}
	return t.Row(0), nil
}

// IsActive implements generator.Sequential.
func (g *Generator) IsActive() bool {
	g.m.Lock()
	defer g.m.Unlock()
	return g.candidate != nil
}

// ValidatePoint implements generator.Sequential.
func (g *Generator) ValidatePoint(t *dataset.Table) error {
	g.m.Lock()
	defer g.m.Unlock()
	if g.candidate == nil {
		return nil
	}
	if t.Len() != 1 {
		return opterr.Validationf("sequential generator %q expects its single outstanding candidate, got %d rows", Name, t.Len())
	}
	if !g.matches(t.Row(0)) {
		return opterr.Validationf("input %v does not match the outstanding candidate %v of sequential generator %q", variablesOf(g.VOCS(), t.Row(0)), g.candidate, Name)
	}
	return nil
}

// SetData implements generator.StateOwner. The outstanding candidate is
// retired once it appears as the last row of t.
func (g *Generator) SetData(t *dataset.Table) error {
	if err := g.ReplaceData(t); err != nil {
		return err
	}
	g.m.Lock()
	defer g.m.Unlock()
	if g.candidate != nil && t.Len() > 0 && g.matches(t.Row(t.Len()-1)) {
		g.candidate = nil
	}
	return nil
}

// Clone implements generator.Generator.
func (g *Generator) Clone() generator.Generator {
	g.m.Lock()
	defer g.m.Unlock()
	c := &Generator{
		Base:         g.CloneBase(),
		initialPoint: g.initialPoint.Copy(),
		calls:        g.calls,
		candidate:    g.candidate.Copy(),
	}
	if g.seed != nil {
		s := *g.seed
		c.seed = &s
	}
	return c
}

func (g *Generator) matches(r dataset.Record) bool {
	for _, name := range g.VOCS().VariableNames() {
		want, _ := dataset.Float(g.candidate[name])
		got, ok := dataset.Float(r[name])
		if !ok || got != want {
			return false
		}
	}
	return true
}

func variablesOf(v *vocs.VOCS, r dataset.Record) dataset.Record {
	out := make(dataset.Record, len(v.Variables))
	for _, name := range v.VariableNames() {
		out[name] = r[name]
	}
	return out
}
