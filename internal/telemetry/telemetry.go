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

// Package telemetry records optdriver metrics with opencensus and exposes
// them, together with health and configuration pages, over HTTP.
package telemetry

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"go.opencensus.io/stats/view"

	"optdriver.dev/optdriver/internal/config"
)

var (
	logger = logrus.WithFields(logrus.Fields{
		"app":       "optdriver",
		"component": "telemetry",
	})
)

const defaultReportingPeriod = time.Minute

// Setup binds the enabled telemetry endpoints to mux and sets the opencensus
// reporting period. The returned function unbinds exporters.
func Setup(mux *http.ServeMux, cfg config.View) (func(), error) {
	closePrometheus, err := bindPrometheus(mux, cfg)
	if err != nil {
		return nil, err
	}
	bindHelp(mux, cfg)
	bindConfigz(mux, cfg)
	bindZpages(mux, cfg)

	period := reportingPeriod(cfg)
	view.SetReportingPeriod(period)
	logger.WithField("reportingPeriod", period).Info("telemetry configured")
	return closePrometheus, nil
}

// reportingPeriod reads telemetry.reportingPeriod, falling back to a minute
// when it is missing or malformed.
func reportingPeriod(cfg config.View) time.Duration {
	raw := cfg.GetString("telemetry.reportingPeriod")
	if raw == "" {
		return defaultReportingPeriod
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		logger.WithFields(logrus.Fields{
			"error":           err,
			"reportingPeriod": raw,
		}).Warn("invalid telemetry.reportingPeriod, using 1m")
		return defaultReportingPeriod
	}
	return d
}
