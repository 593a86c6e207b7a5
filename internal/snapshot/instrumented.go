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

package snapshot

import (
	"context"
	"time"

	"go.opencensus.io/tag"
	"go.opencensus.io/trace"

	"optdriver.dev/optdriver/internal/telemetry"
)

// instrumentedStore wraps a Store with tracing and write metrics.
type instrumentedStore struct {
	s       Store
	backend string
}

func (is *instrumentedStore) Write(ctx context.Context, doc []byte) error {
	ctx, span := trace.StartSpan(ctx, "snapshot/instrumented.Write")
	defer span.End()
	span.AddAttributes(trace.StringAttribute("location", is.s.Location()), trace.Int64Attribute("bytes", int64(len(doc))))

	start := time.Now()
	err := is.s.Write(ctx, doc)
	backend := tag.Upsert(telemetry.KeyBackend, is.backend)
	telemetry.Inc(ctx, telemetry.SnapshotWrites, backend)
	telemetry.RecordSince(ctx, telemetry.SnapshotWriteMillis, start, backend)
	if err != nil {
		span.SetStatus(trace.Status{Code: trace.StatusCodeUnknown, Message: err.Error()})
	}
	return err
}

func (is *instrumentedStore) Read(ctx context.Context) ([]byte, error) {
	ctx, span := trace.StartSpan(ctx, "snapshot/instrumented.Read")
	defer span.End()
	return is.s.Read(ctx)
}

func (is *instrumentedStore) WriteModel(ctx context.Context, name string, payload []byte) (string, error) {
	ctx, span := trace.StartSpan(ctx, "snapshot/instrumented.WriteModel")
	defer span.End()
	span.AddAttributes(trace.StringAttribute("model", name))
	return is.s.WriteModel(ctx, name, payload)
}

func (is *instrumentedStore) ReadModel(ctx context.Context, ref string) ([]byte, error) {
	ctx, span := trace.StartSpan(ctx, "snapshot/instrumented.ReadModel")
	defer span.End()
	return is.s.ReadModel(ctx, ref)
}

func (is *instrumentedStore) HealthCheck(ctx context.Context) error {
	return is.s.HealthCheck(ctx)
}

func (is *instrumentedStore) Location() string {
	return is.s.Location()
}

func (is *instrumentedStore) Close() error {
	return is.s.Close()
}
