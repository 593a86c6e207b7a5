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

package evaluator

import (
	"bytes"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"optdriver.dev/optdriver/internal/expbo"
	"optdriver.dev/optdriver/pkg/opterr"
)

var validate = validator.New()

// Config holds the serializable evaluator parameters of a document. Exactly
// one of Function and Address selects the evaluator: a registered Go
// function, or a remote evaluator service. MaxRate caps function calls per
// second, retries included; zero means unlimited.
type Config struct {
	Function       string                 `yaml:"function,omitempty" json:"function,omitempty" validate:"required_without=Address,excluded_with=Address"`
	Address        string                 `yaml:"address,omitempty" json:"address,omitempty" validate:"required_without=Function"`
	MaxWorkers     int                    `yaml:"max_workers" json:"max_workers" validate:"min=1"`
	FunctionKwargs map[string]interface{} `yaml:"function_kwargs,omitempty" json:"function_kwargs,omitempty"`
	Retry          string                 `yaml:"retry,omitempty" json:"retry,omitempty"`
	MaxRate        float64                `yaml:"max_rate,omitempty" json:"max_rate,omitempty" validate:"min=0"`
}

// ConfigFromParams decodes evaluator parameters. max_workers defaults to 1;
// unknown keys are a configuration error.
func ConfigFromParams(params map[string]interface{}) (Config, error) {
	cfg := Config{MaxWorkers: 1}
	if len(params) == 0 {
		return cfg, cfg.Validate()
	}
	b, err := yaml.Marshal(params)
	if err != nil {
		return cfg, opterr.Wrap(opterr.Configuration, err, "encoding evaluator parameters")
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, opterr.Wrap(opterr.Configuration, err, "decoding evaluator parameters")
	}
	return cfg, cfg.Validate()
}

// Validate checks field constraints and the retry expression.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return opterr.Wrap(opterr.Configuration, err, "invalid evaluator parameters")
	}
	if c.Retry != "" {
		if _, err := expbo.Parse(c.Retry); err != nil {
			return err
		}
	}
	return nil
}

// Params renders c as a parameter map accepted by ConfigFromParams.
func (c Config) Params() map[string]interface{} {
	p := map[string]interface{}{"max_workers": c.MaxWorkers}
	if c.Function != "" {
		p["function"] = c.Function
	}
	if c.Address != "" {
		p["address"] = c.Address
	}
	if len(c.FunctionKwargs) > 0 {
		p["function_kwargs"] = copyKwargs(c.FunctionKwargs)
	}
	if c.Retry != "" {
		p["retry"] = c.Retry
	}
	if c.MaxRate > 0 {
		p["max_rate"] = c.MaxRate
	}
	return p
}
