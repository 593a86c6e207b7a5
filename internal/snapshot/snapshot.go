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

// Package snapshot stores rendered driver documents, and any model payloads
// written next to them, in a file, in Redis or in a local badger database.
package snapshot

import (
	"context"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"optdriver.dev/optdriver/internal/config"
	"optdriver.dev/optdriver/internal/telemetry"
	"optdriver.dev/optdriver/pkg/opterr"
)

const redisScheme = "redis://"

var (
	logger = logrus.WithFields(logrus.Fields{
		"app":       "optdriver",
		"component": "snapshot",
	})
)

// Store is a dump target.
type Store interface {
	// Write replaces the stored document.
	Write(ctx context.Context, doc []byte) error

	// Read returns the stored document.
	Read(ctx context.Context) ([]byte, error)

	// WriteModel stores a model payload under name and returns the
	// reference to put in the document.
	WriteModel(ctx context.Context, name string, payload []byte) (string, error)

	// ReadModel loads a payload from a reference returned by WriteModel.
	ReadModel(ctx context.Context, ref string) ([]byte, error)

	// HealthCheck indicates if the target is reachable.
	HealthCheck(ctx context.Context) error

	// Location identifies the target in logs and documents.
	Location() string

	// Close releases connections held by the store.
	Close() error
}

// IsRedis reports whether target names a Redis key.
func IsRedis(target string) bool {
	return strings.HasPrefix(target, redisScheme)
}

// Open returns the store for target: "redis://[host:port]/<key>" for Redis,
// "badger://<dir>[?key=<key>]" for a badger database, a filesystem path
// otherwise. When the Redis host is omitted the redis.*
// settings of cfg are used, sentinel included. Stores are instrumented when
// Prometheus metrics are enabled.
func Open(target string, cfg config.View) (Store, error) {
	if target == "" {
		return nil, opterr.Serializationf("no dump target")
	}
	var (
		s   Store
		err error
	)
	switch {
	case IsRedis(target):
		s, err = openRedis(target, cfg)
	case IsBadger(target):
		s, err = openBadger(target)
	default:
		s = newFileStore(target)
	}
	if err != nil {
		return nil, err
	}
	if cfg != nil && cfg.GetBool(telemetry.ConfigNameEnableMetrics) {
		return &instrumentedStore{s: s, backend: backendName(target)}, nil
	}
	return s, nil
}

func openRedis(target string, cfg config.View) (Store, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, opterr.Wrap(opterr.Serialization, err, "invalid redis dump target")
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return nil, opterr.Serializationf("redis dump target %q has no key", target)
	}
	rs, err := newRedisStore(cfg, u.Host, key)
	if err != nil {
		return nil, err
	}
	return rs, nil
}

func backendName(target string) string {
	switch {
	case IsRedis(target):
		return "redis"
	case IsBadger(target):
		return "badger"
	}
	return "file"
}
