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
	"net/url"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"optdriver.dev/optdriver/pkg/opterr"
)

const (
	badgerScheme     = "badger://"
	defaultBadgerKey = "optdriver"
)

var (
	badgerLogger = logrus.WithFields(logrus.Fields{
		"app":       "optdriver",
		"component": "snapshot.badger",
	})

	// A badger directory can be opened once per process; stores on the same
	// directory share the handle.
	badgerMu  sync.Mutex
	badgerDBs = map[string]*sharedDB{}
)

type sharedDB struct {
	db   *badger.DB
	refs int
}

// badgerLog routes badger's logging through logrus, one level quieter.
type badgerLog struct {
	*logrus.Entry
}

func (l badgerLog) Infof(format string, args ...interface{}) {
	l.Debugf(format, args...)
}

type badgerStore struct {
	dir  string
	key  string
	db   *badger.DB
	once sync.Once
}

// IsBadger reports whether target names a key in a local badger database.
func IsBadger(target string) bool {
	return strings.HasPrefix(target, badgerScheme)
}

// openBadger parses badger://<dir>[?key=<key>].
func openBadger(target string) (Store, error) {
	dir, rawQuery, _ := strings.Cut(strings.TrimPrefix(target, badgerScheme), "?")
	if dir == "" {
		return nil, opterr.Serializationf("badger dump target %q has no directory", target)
	}
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, opterr.Wrap(opterr.Serialization, err, "invalid badger dump target")
	}
	key := q.Get("key")
	if key == "" {
		key = defaultBadgerKey
	}
	db, err := acquireBadger(dir)
	if err != nil {
		return nil, err
	}
	return &badgerStore{dir: dir, key: key, db: db}, nil
}

func acquireBadger(dir string) (*badger.DB, error) {
	badgerMu.Lock()
	defer badgerMu.Unlock()
	if s, ok := badgerDBs[dir]; ok {
		s.refs++
		return s.db, nil
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(badgerLog{badgerLogger}))
	if err != nil {
		return nil, opterr.Wrap(opterr.Serialization, err, "cannot open badger database")
	}
	badgerDBs[dir] = &sharedDB{db: db, refs: 1}
	return db, nil
}

func releaseBadger(dir string) error {
	badgerMu.Lock()
	defer badgerMu.Unlock()
	s, ok := badgerDBs[dir]
	if !ok {
		return nil
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}
	delete(badgerDBs, dir)
	return s.db.Close()
}

func (bs *badgerStore) set(key string, value []byte) error {
	err := bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		badgerLogger.WithField("key", key).WithError(err).Error("failed to write snapshot")
		return opterr.Wrap(opterr.Serialization, err, "failed to write snapshot")
	}
	return nil
}

func (bs *badgerStore) get(key string) ([]byte, error) {
	var value []byte
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, opterr.Serializationf("snapshot key %q not found", key)
	}
	if err != nil {
		return nil, opterr.Wrap(opterr.Serialization, err, "failed to read snapshot")
	}
	return value, nil
}

// Write replaces the document in a single transaction.
func (bs *badgerStore) Write(_ context.Context, doc []byte) error {
	return bs.set(bs.key, doc)
}

func (bs *badgerStore) Read(_ context.Context) ([]byte, error) {
	return bs.get(bs.key)
}

// WriteModel stores the payload under <key>.<name>.model.
func (bs *badgerStore) WriteModel(_ context.Context, name string, payload []byte) (string, error) {
	ref := bs.key + "." + name + modelSuffix
	if err := bs.set(ref, payload); err != nil {
		return "", err
	}
	return ref, nil
}

func (bs *badgerStore) ReadModel(_ context.Context, ref string) ([]byte, error) {
	return bs.get(ref)
}

func (bs *badgerStore) HealthCheck(_ context.Context) error {
	if bs.db.IsClosed() {
		return opterr.Serializationf("badger database %s is closed", bs.dir)
	}
	return nil
}

func (bs *badgerStore) Location() string {
	return badgerScheme + bs.dir + "?key=" + url.QueryEscape(bs.key)
}

func (bs *badgerStore) Close() error {
	var err error
	bs.once.Do(func() {
		err = releaseBadger(bs.dir)
	})
	return err
}
