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

// Package builtin assembles a registry of the bundled generators.
package builtin

import (
	"optdriver.dev/optdriver/pkg/generator"
	"optdriver.dev/optdriver/pkg/generator/localsearch"
	"optdriver.dev/optdriver/pkg/generator/random"
	"optdriver.dev/optdriver/pkg/generator/sequential"
)

// Registry returns a new registry holding every bundled generator.
func Registry() *generator.Registry {
	return generator.NewRegistry().
		MustRegister(random.Name, random.New).
		MustRegister(sequential.Name, sequential.New).
		MustRegister(localsearch.Name, localsearch.New)
}
