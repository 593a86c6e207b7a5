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

package opterr

import (
	"fmt"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestIsMatchesKind(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{Configurationf("max_evaluations must be set"), ErrConfiguration},
		{Validationf("missing variable %s", "x1"), ErrValidation},
		{OutputValidationf("missing objective"), ErrOutputValidation},
		{Shapef("lengths 2 and 3"), ErrShape},
		{Serializationf("cannot write"), ErrSerialization},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.err.Error(), func(t *testing.T) {
			require := require.New(t)
			require.ErrorIs(tc.err, tc.sentinel)
			require.ErrorIs(errors.Wrap(tc.err, "outer context"), tc.sentinel)
			for _, other := range []error{ErrConfiguration, ErrValidation, ErrOutputValidation, ErrShape, ErrSerialization} {
				if other != tc.sentinel {
					require.NotErrorIs(tc.err, other)
				}
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	require := require.New(t)
	require.Equal("validation error: bad x", Validationf("bad x").Error())
	require.Equal("serialization error: dump: EOF", Wrap(Serialization, io.EOF, "dump").Error())
	require.Equal("shape error", ErrShape.Error())
	require.Nil(Wrap(Shape, nil, "nothing"))
	require.ErrorIs(Wrap(Serialization, io.EOF, "dump"), io.EOF)
}

func TestKindOf(t *testing.T) {
	require := require.New(t)
	require.Equal(Validation, KindOf(errors.Wrap(Validationf("x"), "wrapped")))
	require.Equal(Unknown, KindOf(fmt.Errorf("plain")))
	require.Equal(Unknown, KindOf(nil))
}

func TestStatusRoundTrip(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{nil, codes.OK},
		{Configurationf("c"), codes.FailedPrecondition},
		{Validationf("v"), codes.InvalidArgument},
		{OutputValidationf("o"), codes.Aborted},
		{Shapef("s"), codes.OutOfRange},
		{Serializationf("s"), codes.Internal},
		{fmt.Errorf("the fish have the hats"), codes.Unknown},
		{status.Error(codes.Unavailable, "down"), codes.Unavailable},
	}
	for _, tc := range tests {
		require.Equal(t, tc.code, Code(tc.err))
		require.Equal(t, tc.code, status.Code(ToStatus(tc.err)))
	}

	back := FromStatus(ToStatus(Validationf("x out of bounds")))
	require.ErrorIs(t, back, ErrValidation)
	require.Contains(t, back.Error(), "x out of bounds")

	unavailable := status.Error(codes.Unavailable, "down")
	require.Equal(t, unavailable, FromStatus(unavailable))
}
