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

// Package localsearch provides the "local_search" generator. It perturbs the
// best point seen so far with Gaussian noise whose per-variable scale follows
// the spread of the best rows, and keeps a summary of that incumbent as a
// serializable model.
package localsearch

import (
	"encoding/json"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/montanaflynn/stats"

	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/generator"
	"optdriver.dev/optdriver/pkg/opterr"
	"optdriver.dev/optdriver/pkg/vocs"
)

const (
	// Name is the registry tag of the local search generator.
	Name = "local_search"

	// ModelKey is the key of the incumbent payload returned by Models.
	ModelKey = "incumbent"

	defaultTopK  = 5
	defaultScale = 0.1
)

// Incumbent summarizes the best point known to the generator.
type Incumbent struct {
	Objective string             `json:"objective"`
	Value     float64            `json:"value"`
	Point     map[string]float64 `json:"point"`
	Scales    map[string]float64 `json:"scales"`
}

// Generator is an accumulative local search.
type Generator struct {
	*generator.Base

	seed  *int64
	topK  int
	scale float64

	m      sync.Mutex
	calls  int64
	loaded *Incumbent
}

var (
	_ generator.Generator   = (*Generator)(nil)
	_ generator.Accumulator = (*Generator)(nil)
	_ generator.ModelHolder = (*Generator)(nil)
)

// New builds a local search generator. Parameters: "seed", "top_k" (number of
// best rows used to size the step, default 5) and "scale" (fallback step as a
// fraction of each variable's range, default 0.1).
func New(v *vocs.VOCS, params map[string]interface{}) (generator.Generator, error) {
	if err := generator.CheckParams(Name, params, "seed", "top_k", "scale"); err != nil {
		return nil, err
	}
	if len(v.Objectives) == 0 {
		return nil, opterr.Configurationf("generator %q needs at least one objective", Name)
	}
	seed, err := generator.SeedParam(params, "seed")
	if err != nil {
		return nil, err
	}
	topK, err := generator.IntParam(params, "top_k", defaultTopK)
	if err != nil {
		return nil, err
	}
	if topK < 1 {
		return nil, opterr.Configurationf("top_k must be positive, got %d", topK)
	}
	scale, err := generator.FloatParam(params, "scale", defaultScale)
	if err != nil {
		return nil, err
	}
	if scale <= 0 || scale > 1 {
		return nil, opterr.Configurationf("scale must be in (0, 1], got %v", scale)
	}
	return &Generator{Base: generator.NewBase(v), seed: seed, topK: topK, scale: scale}, nil
}

// Name implements generator.Generator.
func (g *Generator) Name() string {
	return Name
}

// Params implements generator.Generator.
func (g *Generator) Params() map[string]interface{} {
	p := map[string]interface{}{
		"top_k": g.topK,
		"scale": g.scale,
	}
	if g.seed != nil {
		p["seed"] = *g.seed
	}
	return p
}

// Generate implements generator.Generator. Without an incumbent it falls back
// to uniform sampling.
func (g *Generator) Generate(n int) (*dataset.Table, error) {
	if n < 1 {
		return nil, nil
	}
	g.m.Lock()
	s := time.Now().UnixNano()
	if g.seed != nil {
		s = *g.seed + g.calls
	}
	g.calls++
	loaded := g.loaded
	g.m.Unlock()

	inc, err := g.incumbent()
	if err != nil {
		return nil, err
	}
	if inc == nil {
		inc = loaded
	}
	v := g.VOCS()
	if inc == nil {
		return v.RandomInputs(n, &s, nil, true)
	}

	rng := rand.New(rand.NewSource(s))
	rows := make([]dataset.Record, n)
	for i := range rows {
		r := make(dataset.Record, len(v.Variables))
		for _, name := range v.VariableNames() {
			b := v.Variables[name]
			x := inc.Point[name] + rng.NormFloat64()*inc.Scales[name]
			r[name] = math.Min(math.Max(x, b[0]), b[1])
		}
		rows[i] = r
	}
	t := dataset.FromRecords(rows...)
	v.AddConstants(t)
	return t, nil
}

// AddData implements generator.Accumulator.
func (g *Generator) AddData(t *dataset.Table) error {
	g.AppendData(t)
	return nil
}

// Models implements generator.ModelHolder.
func (g *Generator) Models() (map[string][]byte, error) {
	inc, err := g.incumbent()
	if err != nil {
		return nil, err
	}
	if inc == nil {
		g.m.Lock()
		inc = g.loaded
		g.m.Unlock()
	}
	if inc == nil {
		return map[string][]byte{}, nil
	}
	b, err := json.Marshal(inc)
	if err != nil {
		return nil, opterr.Wrap(opterr.Serialization, err, "encoding incumbent")
	}
	return map[string][]byte{ModelKey: b}, nil
}

// LoadModels implements generator.ModelHolder. A loaded incumbent is used
// until the mirror holds a usable row of its own.
func (g *Generator) LoadModels(m map[string][]byte) error {
	for k := range m {
		if k != ModelKey {
			return opterr.Serializationf("generator %q has no model %q", Name, k)
		}
	}
	b, ok := m[ModelKey]
	if !ok {
		return nil
	}
	inc := &Incumbent{}
	if err := json.Unmarshal(b, inc); err != nil {
		return opterr.Wrap(opterr.Serialization, err, "decoding incumbent")
	}
	for _, name := range g.VOCS().VariableNames() {
		if _, ok := inc.Point[name]; !ok {
			return opterr.Serializationf("incumbent has no value for variable %q", name)
		}
		if _, ok := inc.Scales[name]; !ok {
			return opterr.Serializationf("incumbent has no scale for variable %q", name)
		}
	}
	g.m.Lock()
	g.loaded = inc
	g.m.Unlock()
	return nil
}

// Clone implements generator.Generator.
func (g *Generator) Clone() generator.Generator {
	g.m.Lock()
	defer g.m.Unlock()
	c := &Generator{Base: g.CloneBase(), topK: g.topK, scale: g.scale, calls: g.calls}
	if g.seed != nil {
		s := *g.seed
		c.seed = &s
	}
	if g.loaded != nil {
		l := *g.loaded
		l.Point = copyFloats(g.loaded.Point)
		l.Scales = copyFloats(g.loaded.Scales)
		c.loaded = &l
	}
	return c
}

type scored struct {
	value float64
	row   dataset.Record
}

// incumbent ranks the mirror on the first objective. Rows whose objective or
// variables are not scalar numbers are ignored.
func (g *Generator) incumbent() (*Incumbent, error) {
	v := g.VOCS()
	obj := v.ObjectiveNames()[0]
	names := v.VariableNames()

	var ranked []scored
	for _, r := range g.Data().Rows() {
		y, ok := dataset.Float(r[obj])
		if !ok || math.IsNaN(y) || !scalarVariables(r, names) {
			continue
		}
		ranked = append(ranked, scored{value: y, row: r})
	}
	if len(ranked) == 0 {
		return nil, nil
	}
	maximize := v.Maximizes(obj)
	sort.SliceStable(ranked, func(i, j int) bool {
		if maximize {
			return ranked[i].value > ranked[j].value
		}
		return ranked[i].value < ranked[j].value
	})
	top := ranked
	if len(top) > g.topK {
		top = top[:g.topK]
	}

	inc := &Incumbent{
		Objective: obj,
		Value:     top[0].value,
		Point:     make(map[string]float64, len(names)),
		Scales:    make(map[string]float64, len(names)),
	}
	for _, name := range names {
		b := v.Variables[name]
		x, _ := dataset.Float(top[0].row[name])
		inc.Point[name] = x

		fallback := g.scale * (b[1] - b[0])
		inc.Scales[name] = fallback
		if len(top) < 2 {
			continue
		}
		col := make(stats.Float64Data, len(top))
		for i, s := range top {
			col[i], _ = dataset.Float(s.row[name])
		}
		sd, err := stats.StandardDeviationSample(col)
		if err != nil {
			return nil, opterr.Wrap(opterr.Validation, err, "computing step scale for "+name)
		}
		if sd > 0 && !math.IsNaN(sd) {
			inc.Scales[name] = math.Min(sd, fallback)
		}
	}
	return inc, nil
}

func scalarVariables(r dataset.Record, names []string) bool {
	for _, name := range names {
		if _, ok := dataset.Float(r[name]); !ok {
			return false
		}
	}
	return true
}

func copyFloats(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
