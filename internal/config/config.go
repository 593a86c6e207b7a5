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

// Package config reads the runtime configuration of optdriver: logging,
// telemetry, the Redis snapshot store and the evaluator service. It is
// distinct from driver documents, which describe an optimization problem.
package config

import (
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	configName = "optdriver"
	envPrefix  = "OPTDRIVER"
)

var (
	logger = logrus.WithFields(logrus.Fields{
		"app":       "optdriver",
		"component": "config",
	})
)

// SetDefaults installs the default value of every known setting.
func SetDefaults(cfg Mutable) {
	defaults := map[string]interface{}{
		"logging.format":                          "text",
		"logging.level":                           "info",
		"logging.source":                          false,
		"telemetry.prometheus.enable":             false,
		"telemetry.prometheus.endpoint":           "/metrics",
		"telemetry.reportingPeriod":               "1m",
		"telemetry.zpages.enable":                 false,
		"telemetry.traceSamplingFraction":         0.01,
		"telemetry.jaeger.enable":                 false,
		"telemetry.jaeger.agentEndpoint":          "",
		"telemetry.jaeger.collectorEndpoint":      "",
		"telemetry.opencensusAgent.enable":        false,
		"telemetry.opencensusAgent.agentEndpoint": "",
		"telemetry.stackdriver.enable":            false,
		"telemetry.stackdriver.gcpProjectId":      "",
		"telemetry.stackdriver.metricPrefix":      "optdriver",
		"redis.hostname":                          "localhost",
		"redis.port":                              6379,
		"redis.usePassword":                       false,
		"redis.pool.maxIdle":                      3,
		"redis.pool.maxActive":                    0,
		"redis.pool.idleTimeout":                  "60s",
		"redis.pool.healthCheckTimeout":           "1s",
		"redis.lock.expiry":                       "30s",
		"redis.retry":                             "[0.1 2] *2 ~0.2 <10",
		"evaluator.grpcport":                      50551,
		"evaluator.httpport":                      50552,
		"evaluator.httpMaxConnections":            0,
	}
	for k, v := range defaults {
		if d, ok := cfg.(interface{ SetDefault(string, interface{}) }); ok {
			d.SetDefault(k, v)
		} else if !cfg.IsSet(k) {
			cfg.Set(k, v)
		}
	}
}

// Read loads the runtime configuration. An explicit path must exist;
// otherwise optdriver.yaml is looked up in "." and "config", and a missing
// file leaves the defaults in place. Environment variables prefixed with
// OPTDRIVER_ override file values, e.g. OPTDRIVER_LOGGING_LEVEL. Changes to
// the file are picked up and logged.
func Read(path string) (View, error) {
	cfg := viper.New()
	SetDefaults(cfg)
	cfg.SetEnvPrefix(envPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()

	if path != "" {
		cfg.SetConfigFile(path)
	} else {
		cfg.SetConfigName(configName)
		cfg.SetConfigType("yaml")
		cfg.AddConfigPath(".")
		cfg.AddConfigPath("config")
	}

	if err := cfg.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			logger.Debug("no runtime configuration file found, using defaults")
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "cannot read runtime configuration %q", path)
	}

	cfg.WatchConfig()
	cfg.OnConfigChange(func(event fsnotify.Event) {
		logger.WithFields(logrus.Fields{
			"filename":  event.Name,
			"operation": event.Op,
		}).Info("runtime configuration changed")
	})
	return cfg, nil
}
