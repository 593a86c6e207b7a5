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

// Package testing starts in-memory Redis servers for snapshot tests.
package testing

import (
	"testing"
	"time"

	"github.com/Bose/minisentinel"
	miniredis "github.com/alicebob/miniredis/v2"

	"optdriver.dev/optdriver/internal/config"
)

// Pool and retry settings small enough for a test to fail fast when the
// server goes away.
const (
	PoolMaxIdle            = 5
	PoolMaxActive          = 5
	PoolIdleTimeout        = 10 * time.Second
	PoolHealthCheckTimeout = 100 * time.Millisecond
	Retry                  = "[0.03 0.3] *1.5 ~0.5 <1"
	LockExpiry             = 2 * time.Second
)

// New starts a miniredis server and points the redis.* settings of cfg at
// it. The server is stopped when the test ends.
func New(t *testing.T, cfg config.Mutable) *miniredis.Miniredis {
	t.Helper()
	mredis, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to create miniredis, %v", err)
	}
	t.Cleanup(mredis.Close)

	cfg.Set("redis.hostname", mredis.Host())
	cfg.Set("redis.port", mredis.Port())
	setPool(cfg)
	return mredis
}

// NewSentinel starts a miniredis master behind a minisentinel and points
// the redis.sentinel* settings of cfg at the sentinel.
func NewSentinel(t *testing.T, cfg config.Mutable) *miniredis.Miniredis {
	t.Helper()
	mredis := miniredis.NewMiniRedis()
	if err := mredis.StartAddr("localhost:0"); err != nil {
		t.Fatalf("failed to start miniredis, %v", err)
	}
	t.Cleanup(mredis.Close)

	msentinel := minisentinel.NewSentinel(mredis)
	if err := msentinel.StartAddr("localhost:0"); err != nil {
		t.Fatalf("failed to start minisentinel, %v", err)
	}
	t.Cleanup(msentinel.Close)

	cfg.Set("redis.sentinelHostname", msentinel.Host())
	cfg.Set("redis.sentinelPort", msentinel.Port())
	cfg.Set("redis.sentinelMaster", msentinel.MasterInfo().Name)
	setPool(cfg)
	return mredis
}

func setPool(cfg config.Mutable) {
	cfg.Set("redis.pool.maxIdle", PoolMaxIdle)
	cfg.Set("redis.pool.maxActive", PoolMaxActive)
	cfg.Set("redis.pool.idleTimeout", PoolIdleTimeout)
	cfg.Set("redis.pool.healthCheckTimeout", PoolHealthCheckTimeout)
	cfg.Set("redis.retry", Retry)
	cfg.Set("redis.lock.expiry", LockExpiry)
}
