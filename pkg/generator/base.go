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
	"sync"

	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/opterr"
	"optdriver.dev/optdriver/pkg/vocs"
)

// Base carries the problem definition and the dataset mirror shared by the
// bundled generators. Embed a *Base and implement Name, Params, Generate and
// Clone.
type Base struct {
	m    sync.Mutex
	vocs *vocs.VOCS
	data *dataset.Table
}

// NewBase returns a Base holding a copy of v and an empty mirror.
func NewBase(v *vocs.VOCS) *Base {
	return &Base{vocs: v.Clone(), data: dataset.New()}
}

// VOCS returns the generator's problem definition.
func (b *Base) VOCS() *vocs.VOCS {
	return b.vocs
}

// Data implements Generator.
func (b *Base) Data() *dataset.Table {
	b.m.Lock()
	defer b.m.Unlock()
	return b.data.Copy()
}

// ReplaceData implements Generator.
func (b *Base) ReplaceData(t *dataset.Table) error {
	b.m.Lock()
	defer b.m.Unlock()
	b.data = t.Copy()
	return nil
}

// AppendData adds rows to the mirror keeping their labels.
func (b *Base) AppendData(t *dataset.Table) {
	b.m.Lock()
	defer b.m.Unlock()
	b.data = b.data.Concat(t)
}

// CloneBase returns an independent copy of b.
func (b *Base) CloneBase() *Base {
	b.m.Lock()
	defer b.m.Unlock()
	return &Base{vocs: b.vocs.Clone(), data: b.data.Copy()}
}

// FloatParam reads an optional numeric parameter.
func FloatParam(params map[string]interface{}, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	f, ok := dataset.Float(v)
	if !ok {
		return 0, opterr.Configurationf("parameter %q must be a number, got %v", key, v)
	}
	return f, nil
}

// IntParam reads an optional integer parameter.
func IntParam(params map[string]interface{}, key string, def int) (int, error) {
	f, err := FloatParam(params, key, float64(def))
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, opterr.Configurationf("parameter %q must be an integer, got %v", key, f)
	}
	return int(f), nil
}

// SeedParam reads an optional integer seed; absent or null yields nil.
func SeedParam(params map[string]interface{}, key string) (*int64, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return nil, nil
	}
	i, err := IntParam(params, key, 0)
	if err != nil {
		return nil, err
	}
	s := int64(i)
	return &s, nil
}

// CheckParams rejects parameters outside allowed.
func CheckParams(name string, params map[string]interface{}, allowed ...string) error {
	ok := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		ok[a] = struct{}{}
	}
	for k := range params {
		if _, found := ok[k]; !found {
			return opterr.Configurationf("generator %q does not accept parameter %q", name, k)
		}
	}
	return nil
}
