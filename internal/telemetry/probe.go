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
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
)

const (
	// HealthCheckEndpoint is the endpoint for liveness and readiness probes.
	HealthCheckEndpoint   = "/healthz"
	healthStateFirstProbe = int32(0)
	healthStateHealthy    = int32(1)
	healthStateUnhealthy  = int32(2)
)

// Probe reports whether a dependency is usable.
type Probe func(context.Context) error

type statefulProbe struct {
	healthState *int32
	probes      map[string]Probe
}

// ServeHTTP answers liveness probes with "ok". A request with a query string
// is a readiness probe and runs every named probe.
func (sp *statefulProbe) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if len(req.URL.Query()) > 0 {
		var failed []string
		for _, name := range sp.names() {
			if err := sp.probes[name](req.Context()); err != nil {
				failed = append(failed, fmt.Sprintf("%s: %v", name, err))
			}
		}
		if len(failed) > 0 {
			msg := strings.Join(failed, "; ")
			if atomic.SwapInt32(sp.healthState, healthStateUnhealthy) == healthStateUnhealthy {
				logger.WithField("failed", msg).Warningf("%s health check continues to fail", HealthCheckEndpoint)
			} else {
				logger.WithField("failed", msg).Warningf("%s health check failed", HealthCheckEndpoint)
			}
			http.Error(w, msg, http.StatusServiceUnavailable)
			return
		}
		switch atomic.SwapInt32(sp.healthState, healthStateHealthy) {
		case healthStateUnhealthy:
			logger.Infof("%s is healthy again", HealthCheckEndpoint)
		case healthStateFirstProbe:
			logger.Infof("%s is reporting healthy", HealthCheckEndpoint)
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "ok")
}

func (sp *statefulProbe) names() []string {
	out := make([]string, 0, len(sp.probes))
	for k := range sp.probes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NewHealthCheck returns a handler for HealthCheckEndpoint running probes on
// readiness requests.
func NewHealthCheck(probes map[string]Probe) http.Handler {
	return &statefulProbe{
		healthState: new(int32),
		probes:      probes,
	}
}
