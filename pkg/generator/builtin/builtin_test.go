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

package builtin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"optdriver.dev/optdriver/pkg/generator/random"
	"optdriver.dev/optdriver/pkg/opterr"
	"optdriver.dev/optdriver/pkg/vocs"
)

func TestRegistry(t *testing.T) {
	require := require.New(t)
	r := Registry()
	require.Equal([]string{"local_search", "random", "sequential_random"}, r.Names())

	v := &vocs.VOCS{
		Variables:  map[string][]float64{"x": {0, 1}},
		Objectives: map[string]string{"f": vocs.Minimize},
	}
	for _, name := range r.Names() {
		g, err := r.New(name, v, nil)
		require.NoError(err, name)
		require.Equal(name, g.Name())
	}

	_, err := r.New("bayesian", v, nil)
	require.ErrorIs(err, opterr.ErrConfiguration)

	require.NoError(r.Register("extra", random.New))
	require.NotContains(Registry().Names(), "extra")
}
