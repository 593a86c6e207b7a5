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

package driver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"optdriver.dev/optdriver/internal/config"
	"optdriver.dev/optdriver/internal/snapshot"
	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/evaluator"
	"optdriver.dev/optdriver/pkg/evaluator/remote"
	"optdriver.dev/optdriver/pkg/generator"
	"optdriver.dev/optdriver/pkg/opterr"
	"optdriver.dev/optdriver/pkg/vocs"
)

const (
	nameKey       = "name"
	modelsKey     = "models"
	modelFilesKey = "model_files"
)

var validate = validator.New()

// Env carries what a document cannot name by value: the generator and
// evaluator function registries, and the runtime configuration.
type Env struct {
	Generators *generator.Registry
	Functions  *evaluator.FunctionRegistry
	Runtime    config.View
}

// Document is the serialized form of a driver.
type Document struct {
	VOCS            *vocs.VOCS                        `yaml:"vocs" json:"vocs" validate:"required"`
	Generator       GeneratorBlock                    `yaml:"generator" json:"generator"`
	Evaluator       map[string]interface{}            `yaml:"evaluator,omitempty" json:"evaluator,omitempty"`
	Strict          *bool                             `yaml:"strict,omitempty" json:"strict,omitempty"`
	DumpFile        string                            `yaml:"dump_file,omitempty" json:"dump_file,omitempty"`
	MaxEvaluations  *int                              `yaml:"max_evaluations,omitempty" json:"max_evaluations,omitempty" validate:"omitempty,min=1"`
	SerializeModels bool                              `yaml:"serialize_models" json:"serialize_models"`
	SerializeInline bool                              `yaml:"serialize_inline" json:"serialize_inline"`
	Data            map[string]map[string]interface{} `yaml:"data,omitempty" json:"data,omitempty"`
}

// GeneratorBlock is the generator entry of a document: the registry name
// merged into the generator's parameters. A bare string is read as a name
// with default parameters. Model payloads are either base64 strings under
// "models" or references under "model_files".
type GeneratorBlock struct {
	Name       string `validate:"required"`
	Params     map[string]interface{}
	Models     map[string]string
	ModelFiles map[string]string
}

func (b GeneratorBlock) fields() map[string]interface{} {
	out := make(map[string]interface{}, len(b.Params)+3)
	for k, v := range b.Params {
		out[k] = v
	}
	out[nameKey] = b.Name
	if len(b.Models) > 0 {
		out[modelsKey] = b.Models
	}
	if len(b.ModelFiles) > 0 {
		out[modelFilesKey] = b.ModelFiles
	}
	return out
}

// MarshalYAML writes the name first, then the remaining fields sorted.
func (b GeneratorBlock) MarshalYAML() (interface{}, error) {
	fields := b.fields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k != nameKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	keys = append([]string{nameKey}, keys...)

	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range keys {
		value := &yaml.Node{}
		if err := value.Encode(fields[k]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: k}, value)
	}
	return node, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *GeneratorBlock) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*b = GeneratorBlock{}
		return node.Decode(&b.Name)
	}
	var m map[string]interface{}
	if err := node.Decode(&m); err != nil {
		return err
	}
	return b.fromFields(m)
}

// MarshalJSON implements json.Marshaler.
func (b GeneratorBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.fields())
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *GeneratorBlock) UnmarshalJSON(raw []byte) error {
	if t := bytes.TrimSpace(raw); len(t) > 0 && t[0] == '"' {
		*b = GeneratorBlock{}
		return json.Unmarshal(t, &b.Name)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	return b.fromFields(m)
}

func (b *GeneratorBlock) fromFields(m map[string]interface{}) error {
	*b = GeneratorBlock{Params: map[string]interface{}{}}
	for k, v := range m {
		var err error
		switch k {
		case nameKey:
			s, ok := v.(string)
			if !ok {
				return opterr.Configurationf("generator name must be a string, got %v", v)
			}
			b.Name = s
		case modelsKey:
			b.Models, err = stringMap(k, v)
		case modelFilesKey:
			b.ModelFiles, err = stringMap(k, v)
		default:
			b.Params[k] = v
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func stringMap(field string, v interface{}) (map[string]string, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, opterr.Configurationf("generator %s must be a mapping, got %v", field, v)
	}
	out := make(map[string]string, len(m))
	for k, e := range m {
		s, ok := e.(string)
		if !ok {
			return nil, opterr.Configurationf("generator %s.%s must be a string", field, k)
		}
		out[k] = s
	}
	return out, nil
}

// Decode reads a YAML or JSON document. Unknown top-level fields are
// rejected.
func Decode(b []byte) (*Document, error) {
	doc := &Document{}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(doc); err != nil {
		if opterr.KindOf(err) != opterr.Unknown {
			return nil, err
		}
		return nil, opterr.Wrap(opterr.Configuration, err, "invalid driver document")
	}
	return doc, nil
}

// Parse builds a driver from a YAML or JSON document.
func Parse(ctx context.Context, b []byte, env Env) (*Driver, error) {
	doc, err := Decode(b)
	if err != nil {
		return nil, err
	}
	return FromDocument(ctx, doc, env)
}

// Load reads the document stored at target, a path, a redis:// key or a
// badger:// key, and
// builds a driver from it.
func Load(ctx context.Context, target string, env Env) (*Driver, error) {
	s, err := snapshot.Open(target, env.Runtime)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	b, err := s.Read(ctx)
	if err != nil {
		return nil, err
	}
	return Parse(ctx, b, env)
}

// FromDocument builds a driver from a decoded document. The generator is
// looked up by name in env.Generators; the evaluator is a remote client
// when the evaluator block has an address and a registered function
// otherwise. Loaded data is mirrored into the generator.
func FromDocument(ctx context.Context, doc *Document, env Env) (*Driver, error) {
	if env.Generators == nil {
		return nil, opterr.Configurationf("a generator registry is required to read a document")
	}
	if err := validate.Struct(doc); err != nil {
		return nil, opterr.Wrap(opterr.Configuration, err, "invalid driver document")
	}
	v := doc.VOCS.Clone()
	v.Normalize()
	if err := v.Validate(); err != nil {
		return nil, err
	}

	gen, err := env.Generators.New(doc.Generator.Name, v, doc.Generator.Params)
	if err != nil {
		return nil, err
	}
	if err := loadModels(ctx, gen, doc, env.Runtime); err != nil {
		return nil, err
	}

	data := dataset.New()
	if len(doc.Data) > 0 {
		if data, err = dataset.FromColumnMap(doc.Data); err != nil {
			return nil, err
		}
	}

	eval, err := NewEvaluator(doc.Evaluator, env.Functions)
	if err != nil {
		return nil, err
	}

	strict := true
	if doc.Strict != nil {
		strict = *doc.Strict
	}
	opts := []Option{
		WithVOCS(v),
		WithGenerator(gen),
		WithEvaluator(eval),
		WithStrict(strict),
		WithData(data),
		WithSerializeModels(doc.SerializeModels),
		WithSerializeInline(doc.SerializeInline),
		WithRuntimeConfig(env.Runtime),
	}
	if doc.DumpFile != "" {
		opts = append(opts, WithDumpFile(doc.DumpFile))
	}
	if doc.MaxEvaluations != nil {
		opts = append(opts, WithMaxEvaluations(*doc.MaxEvaluations))
	}
	d, err := New(opts...)
	if err != nil {
		if c, ok := eval.(io.Closer); ok {
			c.Close()
		}
		return nil, err
	}
	return d, nil
}

// NewEvaluator builds the evaluator described by an evaluator block.
func NewEvaluator(params map[string]interface{}, functions *evaluator.FunctionRegistry) (evaluator.Evaluator, error) {
	cfg, err := evaluator.ConfigFromParams(params)
	if err != nil {
		return nil, err
	}
	if cfg.Address != "" {
		return remote.Dial(cfg)
	}
	return evaluator.FromConfig(cfg, functions)
}

func loadModels(ctx context.Context, gen generator.Generator, doc *Document, runtime config.View) error {
	block := doc.Generator
	if len(block.Models) == 0 && len(block.ModelFiles) == 0 {
		return nil
	}
	holder, ok := gen.(generator.ModelHolder)
	if !ok {
		return opterr.Configurationf("generator %q does not carry models", gen.Name())
	}

	payloads := make(map[string][]byte, len(block.Models)+len(block.ModelFiles))
	for name, enc := range block.Models {
		b, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return opterr.Wrap(opterr.Serialization, err, fmt.Sprintf("model %q is not valid base64", name))
		}
		payloads[name] = b
	}
	if len(block.ModelFiles) > 0 {
		if doc.DumpFile == "" {
			return opterr.Serializationf("model files need a dump_file to resolve against")
		}
		s, err := snapshot.Open(doc.DumpFile, runtime)
		if err != nil {
			return err
		}
		defer s.Close()
		for name, ref := range block.ModelFiles {
			b, err := s.ReadModel(ctx, ref)
			if err != nil {
				return err
			}
			payloads[name] = b
		}
	}
	return holder.LoadModels(payloads)
}

// document renders the driver. Model payloads are included when models is
// set and serialize_models is on: written through store unless inline
// serialization is requested or there is no store.
func (d *Driver) document(ctx context.Context, store snapshot.Store, models bool) (*Document, error) {
	strict := d.strict
	doc := &Document{
		VOCS: d.vocs.Clone(),
		Generator: GeneratorBlock{
			Name:   d.gen.Name(),
			Params: d.gen.Params(),
		},
		Evaluator:       d.eval.Params(),
		Strict:          &strict,
		DumpFile:        d.dumpFile,
		SerializeModels: d.serializeModels,
		SerializeInline: d.serializeInline,
	}
	if d.maxEvaluations > 0 {
		n := d.maxEvaluations
		doc.MaxEvaluations = &n
	}
	if d.data.Len() > 0 {
		doc.Data = d.data.ToColumnMap()
	}

	holder, ok := d.gen.(generator.ModelHolder)
	if !models || !d.serializeModels || !ok {
		return doc, nil
	}
	payloads, err := holder.Models()
	if err != nil {
		return nil, err
	}
	for name, payload := range payloads {
		if d.serializeInline || store == nil {
			if doc.Generator.Models == nil {
				doc.Generator.Models = map[string]string{}
			}
			doc.Generator.Models[name] = base64.StdEncoding.EncodeToString(payload)
			continue
		}
		ref, err := store.WriteModel(ctx, name, payload)
		if err != nil {
			return nil, err
		}
		if doc.Generator.ModelFiles == nil {
			doc.Generator.ModelFiles = map[string]string{}
		}
		doc.Generator.ModelFiles[name] = ref
	}
	return doc, nil
}

func encodeYAML(doc *Document) ([]byte, error) {
	b, err := yaml.Marshal(doc)
	if err != nil {
		return nil, opterr.Wrap(opterr.Serialization, err, "cannot render document as YAML")
	}
	return b, nil
}

func encodeJSON(doc *Document) ([]byte, error) {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, opterr.Wrap(opterr.Serialization, err, "cannot render document as JSON")
	}
	return b, nil
}

// YAML renders the driver document. Model payloads, when serialized, are
// embedded inline.
func (d *Driver) YAML() (string, error) {
	d.m.Lock()
	defer d.m.Unlock()
	doc, err := d.document(context.Background(), nil, true)
	if err != nil {
		return "", err
	}
	b, err := encodeYAML(doc)
	return string(b), err
}

// JSON renders the driver document. NaN cells cannot be represented and
// make it fail with a serialization error.
func (d *Driver) JSON() (string, error) {
	d.m.Lock()
	defer d.m.Unlock()
	doc, err := d.document(context.Background(), nil, true)
	if err != nil {
		return "", err
	}
	b, err := encodeJSON(doc)
	return string(b), err
}

// Dump writes the document to target, or to the configured dump target when
// target is empty. Targets ending in .json are written as JSON, everything
// else as YAML.
func (d *Driver) Dump(ctx context.Context, target string) error {
	d.m.Lock()
	defer d.m.Unlock()
	if target == "" || target == d.dumpFile {
		if d.store == nil {
			return opterr.Configurationf("no dump target given and dump_file is not set")
		}
		return d.dump(ctx, d.store)
	}
	s, err := snapshot.Open(target, d.runtime)
	if err != nil {
		return err
	}
	defer s.Close()
	return d.dump(ctx, s)
}

func (d *Driver) dump(ctx context.Context, s snapshot.Store) error {
	doc, err := d.document(ctx, s, true)
	if err != nil {
		return err
	}
	var b []byte
	if strings.HasSuffix(strings.ToLower(s.Location()), ".json") {
		b, err = encodeJSON(doc)
	} else {
		b, err = encodeYAML(doc)
	}
	if err != nil {
		return err
	}
	if err := s.Write(ctx, b); err != nil {
		return err
	}
	d.logger.WithField("target", s.Location()).Debug("dumped state")
	return nil
}

// String summarizes the driver: run id, dataset size and the document
// without data.
func (d *Driver) String() string {
	d.m.Lock()
	defer d.m.Unlock()
	doc, err := d.document(context.Background(), nil, false)
	if err != nil {
		return fmt.Sprintf("optdriver run %s: %v", d.runID, err)
	}
	doc.Data = nil
	b, err := encodeYAML(doc)
	if err != nil {
		return fmt.Sprintf("optdriver run %s: %v", d.runID, err)
	}
	return fmt.Sprintf("optdriver\n________________________________\nRun: %s\nData size: %d\nConfig as YAML:\n%s", d.runID, d.data.Len(), b)
}
