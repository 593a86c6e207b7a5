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

package generator

import (
	"sort"
	"sync"

	"optdriver.dev/optdriver/pkg/opterr"
	"optdriver.dev/optdriver/pkg/vocs"
)

// Constructor builds a generator for a problem definition from its
// serialized parameters. params never contains the "name" tag.
type Constructor func(v *vocs.VOCS, params map[string]interface{}) (Generator, error)

// Registry maps generator name tags to constructors. It is safe for
// concurrent use.
type Registry struct {
	m            sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a constructor under name. Registering a name twice is a
// configuration error.
func (r *Registry) Register(name string, c Constructor) error {
	r.m.Lock()
	defer r.m.Unlock()
	if name == "" || c == nil {
		return opterr.Configurationf("generator registration needs a name and a constructor")
	}
	if _, ok := r.constructors[name]; ok {
		return opterr.Configurationf("generator %q is already registered", name)
	}
	r.constructors[name] = c
	return nil
}

// MustRegister is Register that panics on error. It is meant for building
// registries at program start.
func (r *Registry) MustRegister(name string, c Constructor) *Registry {
	if err := r.Register(name, c); err != nil {
		panic(err)
	}
	return r
}

// New builds the generator registered under name.
func (r *Registry) New(name string, v *vocs.VOCS, params map[string]interface{}) (Generator, error) {
	r.m.RLock()
	c, ok := r.constructors[name]
	r.m.RUnlock()
	if !ok {
		return nil, opterr.Configurationf("unknown generator %q, registered: %v", name, r.Names())
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	g, err := c(v, params)
	if err != nil {
		return nil, err
	}
	if g.Name() != name {
		return nil, opterr.Configurationf("generator registered as %q reports name %q", name, g.Name())
	}
	return g, CheckCapabilities(g)
}

// Names returns the registered tags in sorted order.
func (r *Registry) Names() []string {
	r.m.RLock()
	defer r.m.RUnlock()
	out := make([]string, 0, len(r.constructors))
	for k := range r.constructors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
