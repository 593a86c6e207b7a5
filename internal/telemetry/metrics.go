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

package telemetry

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

// latencyBounds are the millisecond buckets of every latency distribution.
// Evaluations of expensive functions can take minutes, hence the long tail.
var latencyBounds = []float64{0, 1, 5, 10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 300000}

// Counter creates a measure whose view counts recordings.
func Counter(name, description string, tags ...tag.Key) *stats.Int64Measure {
	s := stats.Int64(name, "Count of "+description+".", stats.UnitDimensionless)
	registerView(s, view.Count(), tags...)
	return s
}

// Sum creates a measure whose view adds up recorded values.
func Sum(name, description string, tags ...tag.Key) *stats.Int64Measure {
	s := stats.Int64(name, "Total "+description+".", stats.UnitDimensionless)
	registerView(s, view.Sum(), tags...)
	return s
}

// Gauge creates a measure whose view keeps the last recorded value.
func Gauge(name, description string, tags ...tag.Key) *stats.Int64Measure {
	s := stats.Int64(name, description, stats.UnitDimensionless)
	registerView(s, view.LastValue(), tags...)
	return s
}

// Latency creates a millisecond distribution.
func Latency(name, description string, tags ...tag.Key) *stats.Int64Measure {
	s := stats.Int64(name, description, stats.UnitMilliseconds)
	registerView(s, view.Distribution(latencyBounds...), tags...)
	return s
}

// Inc records one on s.
func Inc(ctx context.Context, s *stats.Int64Measure, tags ...tag.Mutator) {
	Add(ctx, s, 1, tags...)
}

// SetGauge records the current value of a gauge.
func SetGauge(ctx context.Context, s *stats.Int64Measure, n int64, tags ...tag.Mutator) {
	Add(ctx, s, n, tags...)
}

// RecordSince records the milliseconds elapsed since start on a latency
// measure.
func RecordSince(ctx context.Context, s *stats.Int64Measure, start time.Time, tags ...tag.Mutator) {
	Add(ctx, s, time.Since(start).Milliseconds(), tags...)
}

// Add records n on s. Tagging failures are logged and the sample dropped.
func Add(ctx context.Context, s *stats.Int64Measure, n int64, tags ...tag.Mutator) {
	if err := stats.RecordWithTags(ctx, tags, s.M(n)); err != nil {
		logger.WithError(err).WithField("measure", s.Name()).Info("cannot record measurement")
	}
}

func registerView(s *stats.Int64Measure, aggregation *view.Aggregation, tags ...tag.Key) *view.View {
	v := &view.View{
		Name:        s.Name(),
		Measure:     s,
		Description: s.Description(),
		Aggregation: aggregation,
		TagKeys:     tags,
	}
	if err := view.Register(v); err != nil {
		logger.WithError(err).WithField("measure", s.Name()).Info("cannot register view, the measure will not be reported")
	}
	return v
}
