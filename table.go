package moodb

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/maruel/ksid"
	"github.com/tidwall/btree"
)

// Record is implemented by types stored in a [Table]. Clone must return a
// copy that shares no mutable state with the receiver; the table hands out
// and keeps only clones, so callers can never alias its internal state.
type Record[T any] interface {
	Clone() T
}

// entry is one key/value pair as framed in the table file.
type entry[T Record[T]] struct {
	Key   string `json:"key"`
	Value T      `json:"value"`
}

// Table is the in-memory authoritative copy of one table's key-to-record
// mapping, mirrored to a single backing file on every mutation.
//
// Reads take a shared lock and run concurrently; mutations take an exclusive
// lock around the whole mutate-then-flush sequence. A mutating call returns
// only after the new snapshot is durably on disk, or after the in-memory
// change has been rolled back on flush failure. Memory and disk never
// diverge after a failed call returns.
type Table[T Record[T]] struct {
	name    string
	path    string
	codec   Codec
	log     *slog.Logger
	columns []column

	mu       sync.RWMutex
	entries  []entry[T] // insertion order, mirrored to disk as-is
	byKey    map[string]int
	keys     *btree.BTreeG[string] // sorted key index
	revision ksid.ID
}

func keyLess(a, b string) bool { return a < b }

// newTable builds an unloaded table. The caller is responsible for calling
// load before handing it out.
func newTable[T Record[T]](name, path string, codec Codec, log *slog.Logger) (*Table[T], error) {
	columns, err := schemaFromType[T]()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to reflect schema for table %s: %w", ErrCodec, name, err)
	}
	t := &Table[T]{
		name:    name,
		path:    path,
		codec:   codec,
		log:     log,
		columns: columns,
	}
	t.resetStateLocked(nil)
	return t, nil
}

// Name returns the table name.
func (t *Table[T]) Name() string { return t.name }

// Path returns the backing file path.
func (t *Table[T]) Path() string { return t.path }

// Len returns the number of records.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Revision returns the revision stamp of the last loaded or flushed
// snapshot, or zero for a table that has never been flushed.
func (t *Table[T]) Revision() ksid.ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.revision
}

// resetStateLocked replaces the in-memory state with the given entries and
// rebuilds both indexes.
func (t *Table[T]) resetStateLocked(entries []entry[T]) {
	t.entries = entries
	t.byKey = make(map[string]int, len(entries))
	t.keys = btree.NewBTreeG(keyLess)
	for i := range entries {
		t.byKey[entries[i].Key] = i
		t.keys.Set(entries[i].Key)
	}
}

// load reads the backing file fully into memory. An absent file yields an
// empty table unless mustExist is set; an empty file yields an empty table;
// anything unparseable fails with [ErrCorruptTable] and leaves the previous
// in-memory state untouched.
func (t *Table[T]) load(mustExist bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			t.resetStateLocked(nil)
			return nil
		}
		return fmt.Errorf("%w: failed to open table file %s: %w", ErrIO, t.path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	dec := t.codec.NewDecoder(bufio.NewReader(f))
	var h header
	if err := dec.Decode(&h); err != nil {
		if errors.Is(err, io.EOF) {
			// Zero-length file: an empty table, not an error.
			t.resetStateLocked(nil)
			return nil
		}
		return fmt.Errorf("%w: bad header in %s: %w", ErrCorruptTable, t.path, err)
	}
	if err := h.validate(); err != nil {
		return fmt.Errorf("%w: bad header in %s: %w", ErrCorruptTable, t.path, err)
	}

	var entries []entry[T]
	seen := make(map[string]struct{})
	for {
		var e entry[T]
		if err := dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("%w: bad record in %s: %w", ErrCorruptTable, t.path, err)
		}
		if _, dup := seen[e.Key]; dup {
			return fmt.Errorf("%w: duplicate key %q in %s", ErrCorruptTable, e.Key, t.path)
		}
		seen[e.Key] = struct{}{}
		entries = append(entries, e)
	}

	t.resetStateLocked(entries)
	t.revision = h.Revision
	metricRecords.WithLabelValues(t.name).Set(float64(len(entries)))
	t.log.Debug("table loaded", "table", t.name, "records", len(entries), "revision", t.revision)
	return nil
}

// flushLocked serializes the whole table and swaps it over the backing file.
// Callers must hold the write lock. The revision advances only on success.
func (t *Table[T]) flushLocked() error {
	rev := ksid.NewID()
	h := header{Version: formatVersion, Table: t.name, Revision: rev, Columns: t.columns}
	start := time.Now()
	err := atomicWriteFile(t.path, func(w *bufio.Writer) error {
		enc := t.codec.NewEncoder(w)
		if err := enc.Encode(&h); err != nil {
			return err
		}
		for i := range t.entries {
			if err := enc.Encode(&t.entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
	metricFlushDuration.WithLabelValues(t.name).Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}
	t.revision = rev
	metricRecords.WithLabelValues(t.name).Set(float64(len(t.entries)))
	return nil
}

// Get returns a clone of the record stored under key, or false when absent.
// Absence is not an error.
func (t *Table[T]) Get(key string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.byKey[key]
	if !ok {
		var zero T
		return zero, false
	}
	return t.entries[i].Value.Clone(), true
}

// Insert adds a new record and flushes the table. It fails with
// [ErrDuplicateKey] if the key is already present; on flush failure the
// in-memory entry is removed again before the error is returned.
func (t *Table[T]) Insert(key string, value T) (err error) {
	defer func() { countOp(t.name, "insert", err) }()
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byKey[key]; ok {
		return fmt.Errorf("insert %q into %s: %w", key, t.name, ErrDuplicateKey)
	}
	t.entries = append(t.entries, entry[T]{Key: key, Value: value.Clone()})
	t.byKey[key] = len(t.entries) - 1
	t.keys.Set(key)

	if err := t.flushLocked(); err != nil {
		t.entries = t.entries[:len(t.entries)-1]
		delete(t.byKey, key)
		t.keys.Delete(key)
		return err
	}
	t.log.Debug("record inserted", "table", t.name, "key", key)
	return nil
}

// Update replaces the record stored under key and flushes the table. It
// fails with [ErrKeyNotFound] if the key is absent; on flush failure the
// previous value is restored before the error is returned.
func (t *Table[T]) Update(key string, value T) (err error) {
	defer func() { countOp(t.name, "update", err) }()
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.byKey[key]
	if !ok {
		return fmt.Errorf("update %q in %s: %w", key, t.name, ErrKeyNotFound)
	}
	prev := t.entries[i].Value
	t.entries[i].Value = value.Clone()

	if err := t.flushLocked(); err != nil {
		t.entries[i].Value = prev
		return err
	}
	t.log.Debug("record updated", "table", t.name, "key", key)
	return nil
}

// Delete removes the record stored under key and flushes the table. It
// fails with [ErrKeyNotFound] if the key is absent; on flush failure the
// entry is restored at its original position before the error is returned.
func (t *Table[T]) Delete(key string) (err error) {
	defer func() { countOp(t.name, "delete", err) }()
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.byKey[key]
	if !ok {
		return fmt.Errorf("delete %q from %s: %w", key, t.name, ErrKeyNotFound)
	}
	removed := t.entries[i]
	t.entries = slices.Delete(t.entries, i, i+1)
	t.reindexLocked(i)
	delete(t.byKey, key)
	t.keys.Delete(key)

	if err := t.flushLocked(); err != nil {
		t.entries = slices.Insert(t.entries, i, removed)
		t.reindexLocked(i)
		t.keys.Set(key)
		return err
	}
	t.log.Debug("record deleted", "table", t.name, "key", key)
	return nil
}

// Reset removes every record and flushes an empty snapshot. On flush failure
// the previous contents are restored before the error is returned.
func (t *Table[T]) Reset() (err error) {
	defer func() { countOp(t.name, "reset", err) }()
	t.mu.Lock()
	defer t.mu.Unlock()

	prevEntries, prevByKey, prevKeys := t.entries, t.byKey, t.keys
	t.resetStateLocked(nil)

	if err := t.flushLocked(); err != nil {
		t.entries, t.byKey, t.keys = prevEntries, prevByKey, prevKeys
		return err
	}
	t.log.Debug("table reset", "table", t.name, "dropped", len(prevEntries))
	return nil
}

// reindexLocked refreshes byKey positions for entries at or after from.
func (t *Table[T]) reindexLocked(from int) {
	for j := from; j < len(t.entries); j++ {
		t.byKey[t.entries[j].Key] = j
	}
}

// Keys returns an iterator over all keys in sorted order.
func (t *Table[T]) Keys() iter.Seq[string] {
	return func(yield func(string) bool) {
		t.mu.RLock()
		keys := make([]string, 0, len(t.entries))
		t.keys.Scan(func(k string) bool {
			keys = append(keys, k)
			return true
		})
		t.mu.RUnlock()
		for _, k := range keys {
			if !yield(k) {
				return
			}
		}
	}
}

// All returns an iterator over clones of all records in insertion order.
func (t *Table[T]) All() iter.Seq2[string, T] {
	return func(yield func(string, T) bool) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		for i := range t.entries {
			if !yield(t.entries[i].Key, t.entries[i].Value.Clone()) {
				return
			}
		}
	}
}
