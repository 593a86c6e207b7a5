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

// Package vocs describes an optimization problem: its Variables, Objectives,
// Constraints, constants and observables.
//
// A VOCS validates candidate tables against variable bounds and produces
// random or grid samples of its input space. It is serialized as the "vocs"
// block of a driver document:
//
//	variables:
//	  x1: [0, 1]
//	  x2: [-5, 5]
//	objectives:
//	  f: MINIMIZE
//	constraints:
//	  c: [LESS_THAN, 0.5]
//	constants:
//	  mode: fast
//	observables: [runtime_detail]
package vocs

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/opterr"
)

// Objective directions.
const (
	Minimize = "MINIMIZE"
	Maximize = "MAXIMIZE"
)

// Constraint kinds.
const (
	LessThan    = "LESS_THAN"
	GreaterThan = "GREATER_THAN"
)

// VOCS is a problem definition.
type VOCS struct {
	Variables   map[string][]float64   `yaml:"variables" json:"variables"`
	Objectives  map[string]string      `yaml:"objectives,omitempty" json:"objectives,omitempty"`
	Constraints map[string]Constraint  `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	Constants   map[string]interface{} `yaml:"constants,omitempty" json:"constants,omitempty"`
	Observables []string               `yaml:"observables,omitempty" json:"observables,omitempty"`
}

// Constraint bounds an output from one side. It is written as a two element
// list, [LESS_THAN, 0.5].
type Constraint struct {
	Kind  string
	Value float64
}

// MarshalYAML implements yaml.Marshaler.
func (c Constraint) MarshalYAML() (interface{}, error) {
	return []interface{}{c.Kind, c.Value}, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Constraint) UnmarshalYAML(node *yaml.Node) error {
	var raw []interface{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return c.fromList(raw)
}

// MarshalJSON implements json.Marshaler.
func (c Constraint) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{c.Kind, c.Value})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Constraint) UnmarshalJSON(b []byte) error {
	var raw []interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	return c.fromList(raw)
}

func (c *Constraint) fromList(raw []interface{}) error {
	if len(raw) != 2 {
		return opterr.Configurationf("constraint must be [kind, value], got %v", raw)
	}
	kind, ok := raw[0].(string)
	if !ok {
		return opterr.Configurationf("constraint kind must be a string, got %v", raw[0])
	}
	v, ok := dataset.Float(raw[1])
	if !ok {
		return opterr.Configurationf("constraint value must be a number, got %v", raw[1])
	}
	c.Kind = strings.ToUpper(kind)
	c.Value = v
	return nil
}

// Satisfied reports whether v meets the constraint.
func (c Constraint) Satisfied(v float64) bool {
	if c.Kind == GreaterThan {
		return v > c.Value
	}
	return v < c.Value
}

// Validate checks that the definition is self-consistent.
func (v *VOCS) Validate() error {
	if v == nil {
		return opterr.Configurationf("vocs is required")
	}
	if len(v.Variables) == 0 {
		return opterr.Configurationf("vocs must declare at least one variable")
	}
	seen := make(map[string]string)
	claim := func(name, role string) error {
		if prev, ok := seen[name]; ok {
			return opterr.Configurationf("name %q is declared as both %s and %s", name, prev, role)
		}
		seen[name] = role
		return nil
	}

	for _, name := range v.VariableNames() {
		b := v.Variables[name]
		if len(b) != 2 {
			return opterr.Configurationf("variable %q must have [lower, upper] bounds, got %v", name, b)
		}
		if b[0] > b[1] {
			return opterr.Configurationf("variable %q has lower bound %v above upper bound %v", name, b[0], b[1])
		}
		if err := claim(name, "variable"); err != nil {
			return err
		}
	}
	for _, name := range v.ObjectiveNames() {
		switch strings.ToUpper(v.Objectives[name]) {
		case Minimize, Maximize:
		default:
			return opterr.Configurationf("objective %q has unknown direction %q", name, v.Objectives[name])
		}
		if err := claim(name, "objective"); err != nil {
			return err
		}
	}
	for _, name := range v.ConstraintNames() {
		switch v.Constraints[name].Kind {
		case LessThan, GreaterThan:
		default:
			return opterr.Configurationf("constraint %q has unknown kind %q", name, v.Constraints[name].Kind)
		}
		if err := claim(name, "constraint"); err != nil {
			return err
		}
	}
	for _, name := range v.ConstantNames() {
		if err := claim(name, "constant"); err != nil {
			return err
		}
	}
	for _, name := range v.Observables {
		if err := claim(name, "observable"); err != nil {
			return err
		}
	}
	return nil
}

// VariableNames returns the sorted variable names.
func (v *VOCS) VariableNames() []string {
	return sortedKeys(v.Variables)
}

// ObjectiveNames returns the sorted objective names.
func (v *VOCS) ObjectiveNames() []string {
	return sortedKeys(v.Objectives)
}

// ConstraintNames returns the sorted constraint names.
func (v *VOCS) ConstraintNames() []string {
	return sortedKeys(v.Constraints)
}

// ConstantNames returns the sorted constant names.
func (v *VOCS) ConstantNames() []string {
	return sortedKeys(v.Constants)
}

// RequiredOutputs returns the objectives followed by the constraints; these
// are the outputs strict mode requires from every evaluation.
func (v *VOCS) RequiredOutputs() []string {
	return append(v.ObjectiveNames(), v.ConstraintNames()...)
}

// OutputNames returns objectives, constraints and observables.
func (v *VOCS) OutputNames() []string {
	return append(v.RequiredOutputs(), v.Observables...)
}

// Maximizes reports whether objective name is maximized.
func (v *VOCS) Maximizes(name string) bool {
	return strings.ToUpper(v.Objectives[name]) == Maximize
}

// Clone returns a deep copy of v.
func (v *VOCS) Clone() *VOCS {
	if v == nil {
		return nil
	}
	out := &VOCS{}
	if v.Variables != nil {
		out.Variables = make(map[string][]float64, len(v.Variables))
		for k, b := range v.Variables {
			out.Variables[k] = append([]float64(nil), b...)
		}
	}
	if v.Objectives != nil {
		out.Objectives = make(map[string]string, len(v.Objectives))
		for k, o := range v.Objectives {
			out.Objectives[k] = o
		}
	}
	if v.Constraints != nil {
		out.Constraints = make(map[string]Constraint, len(v.Constraints))
		for k, c := range v.Constraints {
			out.Constraints[k] = c
		}
	}
	if v.Constants != nil {
		out.Constants = make(map[string]interface{}, len(v.Constants))
		for k, c := range v.Constants {
			out.Constants[k] = dataset.NormalizeValue(c)
		}
	}
	if v.Observables != nil {
		out.Observables = append([]string(nil), v.Observables...)
	}
	return out
}

// Normalize brings constants into the canonical dataset representation so a
// decoded definition compares equal to the one it was encoded from.
func (v *VOCS) Normalize() {
	for k, c := range v.Constants {
		v.Constants[k] = dataset.NormalizeValue(c)
	}
	for k, o := range v.Objectives {
		v.Objectives[k] = strings.ToUpper(o)
	}
}

// ValidateInputData checks that every row of t carries every variable with
// a numeric value inside its bounds. List cells are checked element-wise.
func (v *VOCS) ValidateInputData(t *dataset.Table) error {
	var bad []string
	for _, name := range v.VariableNames() {
		b := v.Variables[name]
		for i, cell := range t.Column(name) {
			switch {
			case cell == nil:
				return opterr.Validationf("input row %d is missing variable %q", i, name)
			case !dataset.IsNumeric(cell):
				return opterr.Validationf("input row %d has non-numeric value %v for variable %q", i, cell, name)
			case !withinBounds(cell, b):
				bad = append(bad, name+"@"+strconv.Itoa(i))
			}
		}
	}
	if len(bad) > 0 {
		return opterr.Validationf("input points out of variable bounds: %s", strings.Join(bad, ", "))
	}
	return nil
}

func withinBounds(cell interface{}, b []float64) bool {
	if l, ok := dataset.NormalizeValue(cell).([]interface{}); ok {
		for _, e := range l {
			if !withinBounds(e, b) {
				return false
			}
		}
		return true
	}
	f, _ := dataset.Float(cell)
	return f >= b[0] && f <= b[1]
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
