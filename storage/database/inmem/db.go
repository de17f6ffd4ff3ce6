// Package inmemdb implements the repositories in memory, enforcing the same unique constraints as the SQL schema.
// Used by tests and by the `memory` storage mode. OpenFile adds a bbolt write-through store: the `bolt` storage mode.
package inmemdb

import (
	"bytes"
	"context"
	"encoding/gob"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/user"
)

type (
	// DB holds every table behind a single lock, so that a write and its constraint checks are atomic.
	DB struct {
		mutex       sync.RWMutex
		store       *bbolt.DB // nil: nothing survives Close
		users       *table[user.User]
		classes     *table[classroom.Class]
		enrollments *table[classroom.Enrollment]
		assignments *table[classroom.Assignment]
		submissions *table[classroom.Submission]
	}

	table[T any] struct {
		name  []byte
		store *bbolt.DB
		rows  map[string]*row[T]
		seq   int64
	}

	// row remembers the insertion order, the tie-breaker of every ordering.
	row[T any] struct {
		val T
		seq int64
	}

	// record is the persisted form of a row.
	record[T any] struct {
		Seq int64
		Val T
	}
)

var _ core.Pinger = (*DB)(nil) // interface compliance check

func Open() *DB {
	return newDB(nil)
}

// OpenFile opens the bbolt file at path, creating it if needed, and loads its rows.
// Every write is then committed to the file before it is visible in memory.
func OpenFile(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating data directory")
	}
	store, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}

	db := newDB(store)
	err = store.Update(func(tx *bbolt.Tx) error {
		loaders := []func(*bbolt.Tx) error{
			db.users.load,
			db.classes.load,
			db.enrollments.load,
			db.assignments.load,
			db.submissions.load,
		}
		for _, load := range loaders {
			if err := load(tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = store.Close()
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return db, nil
}

func newDB(store *bbolt.DB) *DB {
	return &DB{
		store:       store,
		users:       newTable[user.User]("users", store),
		classes:     newTable[classroom.Class]("classes", store),
		enrollments: newTable[classroom.Enrollment]("enrollments", store),
		assignments: newTable[classroom.Assignment]("assignments", store),
		submissions: newTable[classroom.Submission]("submissions", store),
	}
}

func (db *DB) PingContext(ctx context.Context) error {
	return ctx.Err()
}

// Close releases the bbolt file, if any.
func (db *DB) Close() error {
	if db.store == nil {
		return nil
	}
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return db.store.Close()
}

func newTable[T any](name string, store *bbolt.DB) *table[T] {
	return &table[T]{name: []byte(name), store: store, rows: make(map[string]*row[T])}
}

// load creates the table bucket and reads its rows back.
func (t *table[T]) load(tx *bbolt.Tx) error {
	b, err := tx.CreateBucketIfNotExists(t.name)
	if err != nil {
		return err
	}
	return b.ForEach(func(k, v []byte) error {
		var rec record[T]
		if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&rec); err != nil {
			return errors.Wrapf(err, "decoding %s/%s", t.name, k)
		}
		t.rows[string(k)] = &row[T]{val: rec.Val, seq: rec.Seq}
		if rec.Seq > t.seq {
			t.seq = rec.Seq
		}
		return nil
	})
}

// persist runs fn against the table bucket, in its own bbolt transaction.
func (t *table[T]) persist(fn func(b *bbolt.Bucket) error) error {
	if t.store == nil {
		return nil
	}
	return t.store.Update(func(tx *bbolt.Tx) error {
		return fn(tx.Bucket(t.name))
	})
}

func (t *table[T]) put(id string, r *row[T]) error {
	return t.persist(func(b *bbolt.Bucket) error {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(record[T]{Seq: r.seq, Val: r.val}); err != nil {
			return errors.Wrapf(err, "encoding %s/%s", t.name, id)
		}
		return b.Put([]byte(id), buf.Bytes())
	})
}

func (t *table[T]) insert(id string, val T) error {
	r := &row[T]{val: val, seq: t.seq + 1}
	if err := t.put(id, r); err != nil {
		return err
	}
	t.seq = r.seq
	t.rows[id] = r
	return nil
}

func (t *table[T]) get(id string) (T, bool) {
	r, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, false
	}
	return r.val, true
}

func (t *table[T]) set(id string, val T) error {
	r, ok := t.rows[id]
	if !ok {
		return nil
	}
	if err := t.put(id, &row[T]{val: val, seq: r.seq}); err != nil {
		return err
	}
	r.val = val
	return nil
}

func (t *table[T]) remove(id string) error {
	err := t.persist(func(b *bbolt.Bucket) error {
		return b.Delete([]byte(id))
	})
	if err != nil {
		return err
	}
	delete(t.rows, id)
	return nil
}

// find returns the first row in insertion order matching the predicate.
func (t *table[T]) find(match func(T) bool) (T, bool) {
	for _, r := range t.sorted() {
		if match(r.val) {
			return r.val, true
		}
	}
	var zero T
	return zero, false
}

// filter returns the values matching the predicate, in insertion order.
func (t *table[T]) filter(match func(T) bool) []T {
	vals := make([]T, 0)
	for _, r := range t.sorted() {
		if match == nil || match(r.val) {
			vals = append(vals, r.val)
		}
	}
	return vals
}

func (t *table[T]) sorted() []*row[T] {
	rows := make([]*row[T], 0, len(t.rows))
	for _, r := range t.rows {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	return rows
}

// validID reports whether id could be a primary key: ids are UUIDs, like in postgres.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func newID() string {
	return uuid.New().String()
}

// reverse puts vals in reverse insertion order, for stable "newest first" sorts.
func reverse[T any](vals []T) {
	for i, j := 0, len(vals)-1; i < j; i, j = i+1, j-1 {
		vals[i], vals[j] = vals[j], vals[i]
	}
}

// paginate returns the page window of vals.
func paginate[T any](vals []T, page core.Pagination) []T {
	start, end := page.Window(len(vals))
	return vals[start:end]
}
