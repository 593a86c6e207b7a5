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

package snapshot

import (
	"context"
	"os"
	"path/filepath"

	"optdriver.dev/optdriver/pkg/opterr"
)

type fileStore struct {
	path string
}

func newFileStore(path string) *fileStore {
	return &fileStore{path: path}
}

// Write replaces the file through a rename so readers never see a partial
// document.
func (fs *fileStore) Write(_ context.Context, doc []byte) error {
	return writeAtomic(fs.path, doc)
}

func (fs *fileStore) Read(_ context.Context) ([]byte, error) {
	b, err := os.ReadFile(fs.path)
	if err != nil {
		return nil, opterr.Wrap(opterr.Serialization, err, "cannot read dump file")
	}
	return b, nil
}

// WriteModel writes <path>.<name>.model and returns that path.
func (fs *fileStore) WriteModel(_ context.Context, name string, payload []byte) (string, error) {
	ref := fs.path + "." + name + ".model"
	if err := writeAtomic(ref, payload); err != nil {
		return "", err
	}
	return ref, nil
}

func (fs *fileStore) ReadModel(_ context.Context, ref string) ([]byte, error) {
	b, err := os.ReadFile(ref)
	if err != nil {
		return nil, opterr.Wrap(opterr.Serialization, err, "cannot read model file")
	}
	return b, nil
}

// HealthCheck reports whether the target directory exists.
func (fs *fileStore) HealthCheck(_ context.Context) error {
	dir := filepath.Dir(fs.path)
	info, err := os.Stat(dir)
	if err != nil {
		return opterr.Wrap(opterr.Serialization, err, "dump directory unavailable")
	}
	if !info.IsDir() {
		return opterr.Serializationf("%s is not a directory", dir)
	}
	return nil
}

func (fs *fileStore) Location() string {
	return fs.path
}

func (fs *fileStore) Close() error {
	return nil
}

func writeAtomic(path string, b []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return opterr.Wrap(opterr.Serialization, err, "cannot write dump file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return opterr.Wrap(opterr.Serialization, err, "cannot write dump file")
	}
	if err := tmp.Close(); err != nil {
		return opterr.Wrap(opterr.Serialization, err, "cannot write dump file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return opterr.Wrap(opterr.Serialization, err, "cannot write dump file")
	}
	return nil
}
