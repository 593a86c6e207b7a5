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

package expbo

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optdriver.dev/optdriver/pkg/opterr"
)

func TestParse(t *testing.T) {
	b, err := Parse("[0.25 30] *1.5 ~0.33 <300")
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, b.InitialInterval)
	assert.Equal(t, 30*time.Second, b.MaxInterval)
	assert.InDelta(t, 1.5, b.Multiplier, 1e-8)
	assert.InDelta(t, 0.33, b.RandomizationFactor, 1e-8)
	assert.Equal(t, 5*time.Minute, b.MaxElapsedTime)
}

func TestParseKeepsDefaults(t *testing.T) {
	b, err := Parse("<2")
	require.NoError(t, err)
	def := backoff.NewExponentialBackOff()
	assert.Equal(t, def.InitialInterval, b.InitialInterval)
	assert.Equal(t, def.Multiplier, b.Multiplier)
	assert.Equal(t, 2*time.Second, b.MaxElapsedTime)
}

func TestParseErrors(t *testing.T) {
	for _, s := range []string{"", "[x 1]", "*1.5 jitter", "[5 1]", "<-1"} {
		_, err := Parse(s)
		require.ErrorIs(t, err, opterr.ErrConfiguration, s)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	in := "[0.1 2] *2 ~0.5 <10"
	b, err := Parse(in)
	require.NoError(t, err)
	require.Equal(t, in, Format(b))
}
