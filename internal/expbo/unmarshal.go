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

// Package expbo reads and writes exponential backoff policies in the compact
// form used by runtime configuration and evaluator parameters:
//
//	"[InitInterval MaxInterval] *Multiplier ~RandomizationFactor <MaxElapsedTime"
//
// All durations are in seconds, e.g. "[0.250 30] *1.5 ~0.33 <7200".
package expbo

import (
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"

	"optdriver.dev/optdriver/pkg/opterr"
)

// Parse builds a new ExponentialBackOff from s. Omitted fields keep the
// library defaults; an empty string is a configuration error.
func Parse(s string) (*backoff.ExponentialBackOff, error) {
	b := backoff.NewExponentialBackOff()
	if strings.TrimSpace(s) == "" {
		return nil, opterr.Configurationf("empty backoff policy")
	}
	if err := UnmarshalExponentialBackOff(s, b); err != nil {
		return nil, err
	}
	if b.InitialInterval > b.MaxInterval {
		return nil, opterr.Configurationf("backoff %q: initial interval exceeds max interval", s)
	}
	return b, nil
}

// UnmarshalExponentialBackOff overwrites the fields of b named in s.
func UnmarshalExponentialBackOff(s string, b *backoff.ExponentialBackOff) error {
	for _, word := range strings.Fields(s) {
		var (
			field string
			raw   string
			dst   func(float64)
		)
		switch {
		case strings.HasPrefix(word, "["):
			field, raw = "InitInterval", strings.TrimPrefix(word, "[")
			dst = func(f float64) { b.InitialInterval = seconds(f) }
		case strings.HasSuffix(word, "]"):
			field, raw = "MaxInterval", strings.TrimSuffix(word, "]")
			dst = func(f float64) { b.MaxInterval = seconds(f) }
		case strings.HasPrefix(word, "*"):
			field, raw = "Multiplier", strings.TrimPrefix(word, "*")
			dst = func(f float64) { b.Multiplier = f }
		case strings.HasPrefix(word, "~"):
			field, raw = "RandomizationFactor", strings.TrimPrefix(word, "~")
			dst = func(f float64) { b.RandomizationFactor = f }
		case strings.HasPrefix(word, "<"):
			field, raw = "MaxElapsedTime", strings.TrimPrefix(word, "<")
			dst = func(f float64) { b.MaxElapsedTime = seconds(f) }
		default:
			return opterr.Configurationf("backoff %q: unexpected word %q", s, word)
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 {
			return opterr.Configurationf("backoff %q: cannot parse %s value %q", s, field, raw)
		}
		dst(f)
	}
	return nil
}

// Format renders b in the form read by Parse.
func Format(b *backoff.ExponentialBackOff) string {
	return "[" + secs(b.InitialInterval) + " " + secs(b.MaxInterval) + "]" +
		" *" + strconv.FormatFloat(b.Multiplier, 'g', -1, 64) +
		" ~" + strconv.FormatFloat(b.RandomizationFactor, 'g', -1, 64) +
		" <" + secs(b.MaxElapsedTime)
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

func secs(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'g', -1, 64)
}
