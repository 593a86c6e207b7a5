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

	"contrib.go.opencensus.io/exporter/jaeger"
	"contrib.go.opencensus.io/exporter/ocagent"
	"contrib.go.opencensus.io/exporter/stackdriver"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/trace"
	"go.opencensus.io/zpages"

	"optdriver.dev/optdriver/internal/config"
)

const (
	serviceName    = "optdriver"
	zpagesEndpoint = "/debug"
)

// SetupExporters registers the enabled push exporters: Jaeger and the
// OpenCensus agent for traces, Stackdriver for traces and metrics. The trace
// sampler follows telemetry.traceSamplingFraction. The returned function
// flushes and unregisters every exporter and must run before exit.
func SetupExporters(cfg config.View) (func(), error) {
	trace.ApplyConfig(trace.Config{DefaultSampler: sampler(cfg.GetFloat64("telemetry.traceSamplingFraction"))})

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	for _, bind := range []func(config.View) (func(), error){bindJaeger, bindOpenCensusAgent, bindStackdriver} {
		c, err := bind(cfg)
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, c)
	}
	return closeAll, nil
}

func sampler(fraction float64) trace.Sampler {
	switch {
	case fraction <= 0:
		return trace.NeverSample()
	case fraction >= 1:
		return trace.AlwaysSample()
	}
	return trace.ProbabilitySampler(fraction)
}

func bindJaeger(cfg config.View) (func(), error) {
	if !cfg.GetBool("telemetry.jaeger.enable") {
		logger.Debug("jaeger tracing disabled")
		return func() {}, nil
	}
	agent := cfg.GetString("telemetry.jaeger.agentEndpoint")
	collector := cfg.GetString("telemetry.jaeger.collectorEndpoint")
	je, err := jaeger.NewExporter(jaeger.Options{
		AgentEndpoint:     agent,
		CollectorEndpoint: collector,
		Process:           jaeger.Process{ServiceName: serviceName},
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot create jaeger exporter")
	}
	trace.RegisterExporter(je)
	logger.WithFields(logrus.Fields{
		"agentEndpoint":     agent,
		"collectorEndpoint": collector,
	}).Info("jaeger tracing enabled")
	return func() {
		trace.UnregisterExporter(je)
		je.Flush()
	}, nil
}

func bindOpenCensusAgent(cfg config.View) (func(), error) {
	if !cfg.GetBool("telemetry.opencensusAgent.enable") {
		logger.Debug("opencensus agent disabled")
		return func() {}, nil
	}
	endpoint := cfg.GetString("telemetry.opencensusAgent.agentEndpoint")
	oce, err := ocagent.NewExporter(ocagent.WithAddress(endpoint), ocagent.WithInsecure(), ocagent.WithServiceName(serviceName))
	if err != nil {
		return nil, errors.Wrap(err, "cannot create opencensus agent exporter")
	}
	trace.RegisterExporter(oce)
	view.RegisterExporter(oce)
	logger.WithField("agentEndpoint", endpoint).Info("opencensus agent enabled")
	return func() {
		view.UnregisterExporter(oce)
		trace.UnregisterExporter(oce)
		if err := oce.Stop(); err != nil {
			logger.WithError(err).Warn("cannot stop opencensus agent exporter")
		}
	}, nil
}

func bindStackdriver(cfg config.View) (func(), error) {
	if !cfg.GetBool("telemetry.stackdriver.enable") {
		logger.Debug("stackdriver disabled")
		return func() {}, nil
	}
	project := cfg.GetString("telemetry.stackdriver.gcpProjectId")
	prefix := cfg.GetString("telemetry.stackdriver.metricPrefix")
	sd, err := stackdriver.NewExporter(stackdriver.Options{
		ProjectID:    project,
		MetricPrefix: prefix,
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot create stackdriver exporter")
	}
	view.RegisterExporter(sd)
	trace.RegisterExporter(sd)
	logger.WithFields(logrus.Fields{
		"gcpProjectID": project,
		"metricPrefix": prefix,
	}).Info("stackdriver enabled")
	return func() {
		view.UnregisterExporter(sd)
		trace.UnregisterExporter(sd)
		sd.Flush()
	}, nil
}

// bindZpages serves the opencensus trace and rpc pages under /debug.
func bindZpages(mux *http.ServeMux, cfg config.View) {
	if !cfg.GetBool(configNameTelemetryZpagesEnabled) {
		return
	}
	zpages.Handle(mux, zpagesEndpoint)
	logger.WithField("endpoint", zpagesEndpoint).Info("zpages enabled")
}
