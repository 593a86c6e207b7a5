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

package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// ReadAndMerge reads each file into its own layer and merges the layers in
// order, later files overriding earlier ones. Every layer is watched; a
// change in any file re-merges all layers.
func ReadAndMerge(files ...string) (View, error) {
	if len(files) == 0 {
		return nil, errors.New("no input files specified")
	}

	w := &mergedView{}
	layers := make([]*viper.Viper, len(files))

	queue := make(chan fsnotify.Event, 1)
	onFileChange := func(e fsnotify.Event) {
		select {
		case queue <- e:
		default:
		}
	}

	for i, f := range files {
		l, err := readLayer(f, onFileChange)
		if err != nil {
			return nil, err
		}
		layers[i] = l
	}

	w.set(merge(layers...))

	go func() {
		for e := range queue {
			logger.WithFields(logrus.Fields{
				"filename":  e.Name,
				"operation": e.Op,
			}).Info("runtime configuration layer changed")
			w.set(merge(layers...))
		}
	}()

	return w, nil
}

func readLayer(file string, onChange func(fsnotify.Event)) (*viper.Viper, error) {
	l := viper.New()
	l.SetConfigFile(file)
	if err := l.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "cannot read configuration layer %q", file)
	}
	l.WatchConfig()
	l.OnConfigChange(onChange)
	return l, nil
}

func merge(layers ...*viper.Viper) *viper.Viper {
	cfg := viper.New()
	SetDefaults(cfg)
	for _, l := range layers {
		if err := cfg.MergeConfigMap(l.AllSettings()); err != nil {
			logger.WithError(err).Warn("cannot merge configuration layer")
		}
	}
	return cfg
}

// mergedView implements View over the latest merge of all layers.
type mergedView struct {
	m   sync.RWMutex
	cfg *viper.Viper
}

func (w *mergedView) set(cfg *viper.Viper) {
	w.m.Lock()
	w.cfg = cfg
	w.m.Unlock()
}

func (w *mergedView) current() *viper.Viper {
	w.m.RLock()
	defer w.m.RUnlock()
	return w.cfg
}

func (w *mergedView) IsSet(key string) bool {
	return w.current().IsSet(key)
}

func (w *mergedView) GetString(key string) string {
	return w.current().GetString(key)
}

func (w *mergedView) GetInt(key string) int {
	return w.current().GetInt(key)
}

func (w *mergedView) GetInt64(key string) int64 {
	return w.current().GetInt64(key)
}

func (w *mergedView) GetFloat64(key string) float64 {
	return w.current().GetFloat64(key)
}

func (w *mergedView) GetStringSlice(key string) []string {
	return w.current().GetStringSlice(key)
}

func (w *mergedView) GetBool(key string) bool {
	return w.current().GetBool(key)
}

func (w *mergedView) GetDuration(key string) time.Duration {
	return w.current().GetDuration(key)
}

// AllSettings returns the merged settings as a nested map.
func (w *mergedView) AllSettings() map[string]interface{} {
	return w.current().AllSettings()
}
