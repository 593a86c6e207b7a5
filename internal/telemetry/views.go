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
	"go.opencensus.io/tag"
)

// Tag keys attached to driver and snapshot metrics.
var (
	KeyGenerator = tag.MustNewKey("generator")
	KeyKind      = tag.MustNewKey("kind")
	KeyBackend   = tag.MustNewKey("backend")
)

// Driver metrics.
var (
	DriverSteps          = Counter("optdriver/steps", "driver steps", KeyGenerator)
	DriverRowsEvaluated  = Sum("optdriver/rows_evaluated", "rows added to the dataset", KeyGenerator)
	DriverBatchesFailed  = Counter("optdriver/batches_failed", "batches rejected before reaching the dataset", KeyKind)
	DriverDatasetRows    = Gauge("optdriver/dataset_rows", "Number of rows in the dataset", KeyGenerator)
	DriverEvaluateMillis = Latency("optdriver/evaluate_latency", "Time spent in the evaluator per batch", KeyGenerator)
)

// Snapshot metrics.
var (
	SnapshotWrites      = Counter("optdriver/snapshot/writes", "snapshot writes", KeyBackend)
	SnapshotWriteMillis = Latency("optdriver/snapshot/write_latency", "Time spent writing a snapshot", KeyBackend)
	RedisConnectMillis  = Latency("optdriver/redis/connect_latency", "Time spent getting a redis connection")
	RedisPoolActive     = Gauge("optdriver/redis/pool_active", "Connections in the redis pool, idle ones included")
	RedisPoolIdle       = Gauge("optdriver/redis/pool_idle", "Idle connections in the redis pool")
)
