// Package storage is the key-spaced façade over the LSM-tree KV engine
// backing a single tenant (Pebble, Cockroach's pure-Go RocksDB-architecture
// store).
package storage

import (
	"github.com/cockroachdb/pebble"

	"github.com/nucleus/remdb/pkg/remerr"
)

// Engine wraps one Pebble instance; the database root holds one per
// tenant.
type Engine struct {
	db   *pebble.DB
	path string
}

// Open opens (creating if absent) the Pebble instance rooted at path.
func Open(path string) (*Engine, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, remerr.Wrap(remerr.CodeStorageFatal, err, "open storage engine at %s", path)
	}
	return &Engine{db: db, path: path}, nil
}

func (e *Engine) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

// Get reads a single key. Returns (nil, false, nil) when absent.
func (e *Engine) Get(key []byte) ([]byte, bool, error) {
	v, closer, err := e.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, remerr.Wrap(remerr.CodeStorageFatal, err, "get %q", key)
	}
	out := append([]byte(nil), v...)
	_ = closer.Close()
	return out, true, nil
}

// Batch groups multiple mutations for atomic commit. Higher layers use one
// Batch per logical write (entity body + index diffs + WAL entry) so that
// either everything lands or nothing does.
type Batch struct {
	b *pebble.Batch
}

func (e *Engine) NewBatch() *Batch {
	return &Batch{b: e.db.NewBatch()}
}

func (b *Batch) Put(key, value []byte) error {
	return b.b.Set(key, value, nil)
}

func (b *Batch) Delete(key []byte) error {
	return b.b.Delete(key, nil)
}

// Commit applies the batch atomically and durably (synchronous WAL fsync).
func (b *Batch) Commit() error {
	if err := b.b.Commit(pebble.Sync); err != nil {
		return remerr.Wrap(remerr.CodeStorageFatal, err, "commit batch")
	}
	return nil
}

func (b *Batch) Close() error {
	return b.b.Close()
}

// Iterator walks keys in [lower, upper) order.
type Iterator struct {
	it *pebble.Iterator
}

// NewPrefixIterator returns an Iterator over all keys sharing prefix.
func (e *Engine) NewPrefixIterator(prefix []byte) (*Iterator, error) {
	upper := prefixUpperBound(prefix)
	it, err := e.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return nil, remerr.Wrap(remerr.CodeStorageFatal, err, "iterate prefix %q", prefix)
	}
	it.First()
	return &Iterator{it: it}, nil
}

// NewRangeIterator returns an Iterator over [lower, upper).
func (e *Engine) NewRangeIterator(lower, upper []byte) (*Iterator, error) {
	it, err := e.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, remerr.Wrap(remerr.CodeStorageFatal, err, "iterate range")
	}
	it.First()
	return &Iterator{it: it}, nil
}

func (it *Iterator) Valid() bool   { return it.it.Valid() }
func (it *Iterator) Next()         { it.it.Next() }
func (it *Iterator) Key() []byte   { return it.it.Key() }
func (it *Iterator) Value() []byte { return it.it.Value() }
func (it *Iterator) Close() error  { return it.it.Close() }

// prefixUpperBound returns the smallest key that sorts after every key
// with the given prefix (standard "increment the last byte" trick; an
// all-0xff prefix has no finite upper bound and iterates open-ended).
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] != 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}

// Path reports the filesystem root this engine was opened at.
func (e *Engine) Path() string { return e.path }

// Errorf is a small helper so callers don't need to import fmt just to
// build a StorageFatal with formatting.
func Errorf(format string, args ...any) error {
	return remerr.New(remerr.CodeStorageFatal, format, args...)
}
