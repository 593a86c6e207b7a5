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
	"net/http"

	ocPrometheus "contrib.go.opencensus.io/exporter/prometheus"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/stats/view"

	"optdriver.dev/optdriver/internal/config"
)

const (
	// ConfigNameEnableMetrics turns the Prometheus endpoint and store
	// instrumentation on.
	ConfigNameEnableMetrics = "telemetry.prometheus.enable"
	configNameEndpoint      = "telemetry.prometheus.endpoint"
)

// newExporter returns an opencensus exporter backed by a private registry
// that also carries process and Go runtime collectors.
func newExporter() (*ocPrometheus.Exporter, error) {
	registry := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	} {
		if err := registry.Register(c); err != nil {
			return nil, errors.Wrap(err, "cannot register prometheus collector")
		}
	}
	exp, err := ocPrometheus.NewExporter(ocPrometheus.Options{Registry: registry})
	if err != nil {
		return nil, errors.Wrap(err, "cannot create opencensus prometheus exporter")
	}
	return exp, nil
}

// bindPrometheus serves every registered view on the configured endpoint.
func bindPrometheus(mux *http.ServeMux, cfg config.View) (func(), error) {
	if !cfg.GetBool(ConfigNameEnableMetrics) {
		logger.Info("prometheus metrics disabled")
		return func() {}, nil
	}

	exp, err := newExporter()
	if err != nil {
		return nil, err
	}
	endpoint := cfg.GetString(configNameEndpoint)
	view.RegisterExporter(exp)
	mux.Handle(endpoint, exp)
	logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
	}).Info("prometheus metrics enabled")
	return func() {
		view.UnregisterExporter(exp)
	}, nil
}
