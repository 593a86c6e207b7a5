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

// Package generator defines the contract between the driver and the
// components that propose candidates.
//
// Every generator implements Generator. Optional behavior is expressed with
// capability interfaces that the driver queries with a type assertion:
//
//   - Accumulator: the mirror of the driver's dataset is grown incrementally.
//   - StateOwner: the mirror is replaced wholesale after every change.
//   - Sequential: one candidate is outstanding at a time and must be evaluated
//     before the next one is proposed.
//   - ModelHolder: the generator carries opaque model payloads that can be
//     written into, or next to, the driver document.
//
// Accumulator and StateOwner are mutually exclusive.
package generator

import (
	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/opterr"
)

// Generator proposes candidates.
type Generator interface {
	// Name is the registry tag of the generator variant.
	Name() string

	// Params returns the serializable parameters of the generator, without
	// its name and without runtime state.
	Params() map[string]interface{}

	// Generate returns up to n candidates. A nil or empty table means the
	// generator has nothing to propose.
	Generate(n int) (*dataset.Table, error)

	// Data returns a copy of the generator's mirror of the dataset.
	Data() *dataset.Table

	// ReplaceData overwrites the mirror.
	ReplaceData(t *dataset.Table) error

	// Clone returns an independent deep copy, runtime state included.
	Clone() Generator
}

// Accumulator is a generator whose mirror is grown incrementally.
type Accumulator interface {
	AddData(t *dataset.Table) error
}

// StateOwner is a generator whose mirror is replaced wholesale, so it can
// reconcile internal state against the full dataset.
type StateOwner interface {
	SetData(t *dataset.Table) error
}

// Sequential is a generator that keeps one outstanding candidate.
type Sequential interface {
	// IsActive reports whether a proposed candidate has not been evaluated.
	IsActive() bool

	// ValidatePoint fails with a validation error unless t is exactly the
	// outstanding candidate.
	ValidatePoint(t *dataset.Table) error
}

// ModelHolder is a generator with opaque learned-model payloads.
type ModelHolder interface {
	// Models returns the current payloads keyed by model name. An empty map
	// means there is nothing to serialize.
	Models() (map[string][]byte, error)

	// LoadModels restores payloads produced by Models.
	LoadModels(m map[string][]byte) error
}

// CheckCapabilities rejects generators that claim both mirroring styles.
func CheckCapabilities(g Generator) error {
	if g == nil {
		return opterr.Configurationf("generator is required")
	}
	_, acc := g.(Accumulator)
	_, owner := g.(StateOwner)
	if acc && owner {
		return opterr.Configurationf("generator %q implements both incremental and wholesale data mirroring", g.Name())
	}
	return nil
}

// Mirror loads t into g as its initial data: wholesale for state owners,
// incrementally for accumulators, by replacement otherwise.
func Mirror(g Generator, t *dataset.Table) error {
	switch x := g.(type) {
	case StateOwner:
		return x.SetData(t.Copy())
	case Accumulator:
		if err := g.ReplaceData(dataset.New()); err != nil {
			return err
		}
		return x.AddData(t.Copy())
	default:
		return g.ReplaceData(t.Copy())
	}
}
