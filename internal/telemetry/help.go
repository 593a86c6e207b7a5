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
	"fmt"
	"net/http"

	"optdriver.dev/optdriver/internal/config"
)

const (
	configNameTelemetryZpagesEnabled = "telemetry.zpages.enable"

	helpEndpoint = "/help"
	helpPage     = `<!DOCTYPE html>
<head>
	<title>optdriver help</title>
</head>
<body>
<pre>
* <a href="/healthz">/healthz</a> - Liveness, add ?readiness for readiness
* <a href="/configz">/configz</a> - Runtime configuration
* <a href="/debug/tracez">/debug/tracez</a> - Sampled traces, <a href="/debug/rpcz">/debug/rpcz</a> for gRPC stats
* <a href="%s">%s</a> - Raw metrics, use prometheus or grafana instead.
</pre>
</body>
`
)

func bindHelp(mux *http.ServeMux, cfg config.View) {
	if !cfg.GetBool(configNameTelemetryZpagesEnabled) {
		return
	}
	metrics := cfg.GetString("telemetry.prometheus.endpoint")
	mux.HandleFunc(helpEndpoint, func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprintf(w, helpPage, metrics, metrics)
	})
}
