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
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/go-redsync/redsync/v4"
	redsyncredigo "github.com/go-redsync/redsync/v4/redis/redigo"
	"github.com/gomodule/redigo/redis"
	"github.com/sirupsen/logrus"

	"optdriver.dev/optdriver/internal/config"
	"optdriver.dev/optdriver/internal/expbo"
	"optdriver.dev/optdriver/internal/telemetry"
	"optdriver.dev/optdriver/pkg/opterr"
)

const (
	modelSuffix = ".model"
	lockTries   = 8
)

var (
	redisLogger = logrus.WithFields(logrus.Fields{
		"app":       "optdriver",
		"component": "snapshot.redis",
	})
)

type redisStore struct {
	healthCheckPool *redis.Pool
	redisPool       *redis.Pool
	mutex           *redsync.Mutex
	cfg             config.View
	key             string
	location        string
}

// newRedisStore stores the document under key. addr, when set, overrides
// the configured master address and disables sentinel lookup. Behind a
// sentinel the location names the sentinel.
func newRedisStore(cfg config.View, addr, key string) (*redisStore, error) {
	if cfg == nil {
		return nil, opterr.Serializationf("redis dump target needs runtime configuration")
	}
	if addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return nil, opterr.Wrap(opterr.Serialization, err, "invalid redis address")
		}
	}
	if r := cfg.GetString("redis.retry"); r != "" {
		if _, err := expbo.Parse(r); err != nil {
			return nil, err
		}
	}
	useSentinel := addr == "" && cfg.IsSet("redis.sentinelHostname")
	switch {
	case useSentinel:
		addr = getSentinelAddr(cfg)
	case addr == "":
		addr = getMasterAddr(cfg)
	}

	hc, err := getHealthCheckPool(cfg, addr, useSentinel)
	if err != nil {
		return nil, err
	}
	pool, err := getRedisPool(cfg, addr, useSentinel)
	if err != nil {
		return nil, err
	}
	rs := redsync.New(redsyncredigo.NewPool(pool))
	expiry := cfg.GetDuration("redis.lock.expiry")
	if expiry <= 0 {
		expiry = 30 * time.Second
	}
	return &redisStore{
		healthCheckPool: hc,
		redisPool:       pool,
		mutex:           rs.NewMutex(key+".lock", redsync.WithExpiry(expiry), redsync.WithTries(lockTries)),
		cfg:             cfg,
		key:             key,
		location:        redisScheme + addr + "/" + key,
	}, nil
}

func getHealthCheckPool(cfg config.View, addr string, useSentinel bool) (*redis.Pool, error) {
	healthCheckTimeout := cfg.GetDuration("redis.pool.healthCheckTimeout")
	var (
		healthCheckURL string
		err            error
	)
	if useSentinel {
		healthCheckURL, err = redisURLFromAddr(getSentinelAddr(cfg), cfg, cfg.GetBool("redis.sentinelUsePassword"))
	} else {
		healthCheckURL, err = redisURLFromAddr(addr, cfg, cfg.GetBool("redis.usePassword"))
	}
	if err != nil {
		return nil, err
	}

	return &redis.Pool{
		MaxIdle:      3,
		MaxActive:    0,
		IdleTimeout:  10 * healthCheckTimeout,
		Wait:         true,
		TestOnBorrow: testOnBorrow,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return redis.DialURL(healthCheckURL, redis.DialConnectTimeout(healthCheckTimeout), redis.DialReadTimeout(healthCheckTimeout))
		},
	}, nil
}

func getRedisPool(cfg config.View, addr string, useSentinel bool) (*redis.Pool, error) {
	var dialFunc func(context.Context) (redis.Conn, error)
	idleTimeout := cfg.GetDuration("redis.pool.idleTimeout")

	if useSentinel {
		sentinelPool, err := getSentinelPool(cfg)
		if err != nil {
			return nil, err
		}
		dialFunc = func(ctx context.Context) (redis.Conn, error) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			sentinelConn, err := sentinelPool.GetContext(ctx)
			if err != nil {
				redisLogger.WithError(err).Error("failed to connect to redis sentinel")
				return nil, err
			}
			defer handleConnectionClose(&sentinelConn)

			masterInfo, err := redis.Strings(sentinelConn.Do("SENTINEL", "GET-MASTER-ADDR-BY-NAME", cfg.GetString("redis.sentinelMaster")))
			if err != nil {
				redisLogger.WithError(err).Error("failed to get current master from redis sentinel")
				return nil, err
			}
			if len(masterInfo) != 2 {
				return nil, fmt.Errorf("unexpected sentinel master reply %v", masterInfo)
			}
			masterURL, err := redisURLFromAddr(net.JoinHostPort(masterInfo[0], masterInfo[1]), cfg, cfg.GetBool("redis.usePassword"))
			if err != nil {
				return nil, err
			}
			return redis.DialURL(masterURL, redis.DialConnectTimeout(idleTimeout), redis.DialReadTimeout(idleTimeout))
		}
	} else {
		masterURL, err := redisURLFromAddr(addr, cfg, cfg.GetBool("redis.usePassword"))
		if err != nil {
			return nil, err
		}
		dialFunc = func(ctx context.Context) (redis.Conn, error) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return redis.DialURL(masterURL, redis.DialConnectTimeout(idleTimeout), redis.DialReadTimeout(idleTimeout))
		}
	}

	return &redis.Pool{
		MaxIdle:      cfg.GetInt("redis.pool.maxIdle"),
		MaxActive:    cfg.GetInt("redis.pool.maxActive"),
		IdleTimeout:  idleTimeout,
		Wait:         true,
		TestOnBorrow: testOnBorrow,
		DialContext:  dialFunc,
	}, nil
}

func getSentinelPool(cfg config.View) (*redis.Pool, error) {
	idleTimeout := cfg.GetDuration("redis.pool.idleTimeout")
	sentinelAddr := getSentinelAddr(cfg)
	sentinelURL, err := redisURLFromAddr(sentinelAddr, cfg, cfg.GetBool("redis.sentinelUsePassword"))
	if err != nil {
		return nil, err
	}
	return &redis.Pool{
		MaxIdle:      cfg.GetInt("redis.pool.maxIdle"),
		MaxActive:    cfg.GetInt("redis.pool.maxActive"),
		IdleTimeout:  idleTimeout,
		Wait:         true,
		TestOnBorrow: testOnBorrow,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			redisLogger.WithField("sentinelAddr", sentinelAddr).Debug("Attempting to connect to Redis Sentinel")
			return redis.DialURL(sentinelURL, redis.DialConnectTimeout(idleTimeout), redis.DialReadTimeout(idleTimeout))
		},
	}, nil
}

func testOnBorrow(c redis.Conn, lastUsed time.Time) error {
	if time.Since(lastUsed) < 15*time.Second {
		return nil
	}
	_, err := c.Do("PING")
	return err
}

func getSentinelAddr(cfg config.View) string {
	return net.JoinHostPort(cfg.GetString("redis.sentinelHostname"), cfg.GetString("redis.sentinelPort"))
}

func getMasterAddr(cfg config.View) string {
	return net.JoinHostPort(cfg.GetString("redis.hostname"), cfg.GetString("redis.port"))
}

// redisURLFromAddr builds redis://[user:secret@]addr, reading the secret from
// redis.passwordPath.
func redisURLFromAddr(addr string, cfg config.View, usePassword bool) (string, error) {
	redisURL := redisScheme
	if usePassword {
		passwordFile := cfg.GetString("redis.passwordPath")
		redisLogger.Debugf("loading Redis password from file %s", passwordFile)
		passwordData, err := os.ReadFile(passwordFile)
		if err != nil {
			return "", opterr.Wrap(opterr.Serialization, err, "cannot read Redis password file")
		}
		redisURL += fmt.Sprintf("%s:%s@", cfg.GetString("redis.user"), strings.TrimSpace(string(passwordData)))
	}
	return redisURL + addr, nil
}

func handleConnectionClose(conn *redis.Conn) {
	if err := (*conn).Close(); err != nil {
		redisLogger.WithError(err).Debug("failed to close redis client connection.")
	}
}

func (rs *redisStore) newBackoffStrategy(ctx context.Context) backoff.BackOff {
	b, err := expbo.Parse(rs.cfg.GetString("redis.retry"))
	if err != nil {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	return backoff.WithContext(b, ctx)
}

// connect takes a pooled connection, retrying under redis.retry.
func (rs *redisStore) connect(ctx context.Context) (redis.Conn, error) {
	startTime := time.Now()
	var conn redis.Conn
	err := backoff.Retry(func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		var err error
		conn, err = rs.redisPool.GetContext(ctx)
		if err != nil {
			redisLogger.WithError(err).Warn("failed to connect to redis, retrying")
		}
		return err
	}, rs.newBackoffStrategy(ctx))
	if err != nil {
		return nil, opterr.Wrap(opterr.Serialization, err, "failed to connect to redis")
	}
	telemetry.RecordSince(ctx, telemetry.RedisConnectMillis, startTime)
	return conn, nil
}

func (rs *redisStore) set(ctx context.Context, key string, value []byte) error {
	conn, err := rs.connect(ctx)
	if err != nil {
		return err
	}
	defer handleConnectionClose(&conn)

	if _, err := conn.Do("SET", key, value); err != nil {
		redisLogger.WithFields(logrus.Fields{
			"cmd": "SET",
			"key": key,
		}).WithError(err).Error("failed to write snapshot")
		return opterr.Wrap(opterr.Serialization, err, "failed to write snapshot")
	}
	return nil
}

func (rs *redisStore) get(ctx context.Context, key string) ([]byte, error) {
	conn, err := rs.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer handleConnectionClose(&conn)

	value, err := redis.Bytes(conn.Do("GET", key))
	if err == redis.ErrNil {
		return nil, opterr.Serializationf("snapshot key %q not found", key)
	}
	if err != nil {
		return nil, opterr.Wrap(opterr.Serialization, err, "failed to read snapshot")
	}
	return value, nil
}

// Write stores doc while holding the snapshot lock, so concurrent drivers
// dumping to the same key never interleave.
func (rs *redisStore) Write(ctx context.Context, doc []byte) error {
	if err := rs.mutex.Lock(); err != nil {
		return opterr.Wrap(opterr.Serialization, err, "failed to lock snapshot key")
	}
	defer func() {
		if ok, err := rs.mutex.Unlock(); !ok || err != nil {
			redisLogger.WithError(err).WithField("key", rs.key).Warn("failed to release snapshot lock")
		}
	}()
	return rs.set(ctx, rs.key, doc)
}

func (rs *redisStore) Read(ctx context.Context) ([]byte, error) {
	return rs.get(ctx, rs.key)
}

// WriteModel stores the payload under <key>.<name>.model and returns that
// key as the reference.
func (rs *redisStore) WriteModel(ctx context.Context, name string, payload []byte) (string, error) {
	ref := rs.key + "." + name + modelSuffix
	if err := rs.set(ctx, ref, payload); err != nil {
		return "", err
	}
	return ref, nil
}

func (rs *redisStore) ReadModel(ctx context.Context, ref string) ([]byte, error) {
	return rs.get(ctx, ref)
}

// HealthCheck indicates if the database is reachable.
func (rs *redisStore) HealthCheck(ctx context.Context) error {
	conn, err := rs.healthCheckPool.GetContext(ctx)
	if err != nil {
		return opterr.Wrap(opterr.Serialization, err, "redis unavailable")
	}
	defer handleConnectionClose(&conn)

	poolStats := rs.redisPool.Stats()
	telemetry.SetGauge(ctx, telemetry.RedisPoolActive, int64(poolStats.ActiveCount))
	telemetry.SetGauge(ctx, telemetry.RedisPoolIdle, int64(poolStats.IdleCount))

	if _, err := conn.Do("PING"); err != nil {
		return opterr.Wrap(opterr.Serialization, err, "redis unavailable")
	}
	return nil
}

func (rs *redisStore) Location() string {
	return rs.location
}

func (rs *redisStore) Close() error {
	if err := rs.healthCheckPool.Close(); err != nil {
		return err
	}
	return rs.redisPool.Close()
}
