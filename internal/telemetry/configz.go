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
	"html/template"
	"net/http"
	"sort"

	"optdriver.dev/optdriver/internal/config"
)

const (
	configZTemplateName = "configz"
	configEndpoint      = "/configz"
	configPage          = `<!DOCTYPE html>
<head>
	<title>optdriver configuration</title>
</head>
<body>
<table>
<tr><th>Key</th><th>Value</th></tr>
{{ range . }}
<tr><td>{{ .Key }}</td><td>{{ .Value }}</td></tr>
{{ end }}
</table>
</body>
`
)

var (
	configPageTemplate = template.Must(template.New(configZTemplateName).Parse(configPage))
)

type settingsView interface {
	AllSettings() map[string]interface{}
}

type configz struct {
	cfg config.View
}

type configZValue struct {
	Key   string
	Value interface{}
}

// ServeHTTP renders every runtime setting, flattened to dotted keys.
func (cz *configz) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	sv, ok := cz.cfg.(settingsView)
	if !ok {
		http.Error(w, "configuration cannot list its settings", http.StatusInternalServerError)
		return
	}
	values := []configZValue{}
	flatten("", sv.AllSettings(), func(k string, v interface{}) {
		values = append(values, configZValue{Key: k, Value: v})
	})
	sort.Slice(values, func(i, j int) bool {
		return values[i].Key < values[j].Key
	})
	if err := configPageTemplate.Execute(w, values); err != nil {
		http.Error(w, fmt.Sprintf("cannot render HTML template, %s", err), http.StatusInternalServerError)
	}
}

func flatten(prefix string, m map[string]interface{}, emit func(string, interface{})) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]interface{}); ok {
			flatten(key, sub, emit)
			continue
		}
		emit(key, v)
	}
}

func bindConfigz(mux *http.ServeMux, cfg config.View) {
	if !cfg.GetBool(configNameTelemetryZpagesEnabled) {
		return
	}
	mux.Handle(configEndpoint, &configz{cfg: cfg})
}
