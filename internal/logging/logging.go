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

// Package logging configures the logrus logger from the runtime
// configuration.
package logging

import (
	"strings"

	stackdriver "github.com/TV4/logrus-stackdriver-formatter"
	"github.com/sirupsen/logrus"

	"optdriver.dev/optdriver/internal/config"
)

// ConfigureLogging sets up the standard logrus logger from the logging
// section of the runtime configuration:
//   - logging.format: text (default), json or stackdriver
//   - logging.level: trace, debug, info (default), warn, error, fatal or panic
//   - logging.source: report the calling file and line (default false)
func ConfigureLogging(cfg config.View) {
	Configure(logrus.StandardLogger(), cfg)
}

// Configure applies the logging section of cfg to l.
func Configure(l *logrus.Logger, cfg config.View) {
	l.SetFormatter(newFormatter(cfg.GetString("logging.format")))

	level := toLevel(cfg.GetString("logging.level"))
	l.SetLevel(level)
	if isDebugLevel(level) {
		l.Warnf("%s logging level configured, expect verbose output", level)
	}

	l.SetReportCaller(cfg.GetBool("logging.source"))
}

func newFormatter(formatter string) logrus.Formatter {
	switch strings.ToLower(formatter) {
	case "stackdriver":
		return stackdriver.NewFormatter()
	case "json":
		return &logrus.JSONFormatter{}
	}
	return &logrus.TextFormatter{}
}

func isDebugLevel(level logrus.Level) bool {
	switch level {
	case logrus.TraceLevel, logrus.DebugLevel:
		return true
	}
	return false
}

func toLevel(level string) logrus.Level {
	l, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return l
}
