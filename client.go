package moodb

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Client binds a table name to a storage directory and materializes the
// [Table] lazily on first use.
//
// A handle moves through three states: unloaded, ready, or failed. A load
// failure is terminal: every later [Client.Table] call returns the same
// error, because a corrupt file will not heal itself. The handle must be
// reconstructed after the file has been repaired or discarded.
//
// Each handle owns its table exclusively; two handles opened on the same
// backing file do not see each other's writes. Cross-process use of one
// backing file is undefined.
type Client[T Record[T]] struct {
	name string
	path string
	opts Options

	mu      sync.Mutex
	table   *Table[T]
	loadErr error
}

// New creates a handle for the named table under the configured storage
// root. The root directory is created if absent, unless
// [Options.CreateIfMissing] is false, in which case a missing root is an
// error. The table file itself is not touched until the first mutation.
func New[T Record[T]](name string, opts *Options) (*Client[T], error) {
	if err := validateTableName(name); err != nil {
		return nil, err
	}
	r := opts.resolved()

	if *r.CreateIfMissing {
		if err := os.MkdirAll(r.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: failed to create storage root %s: %w", ErrIO, r.Dir, err)
		}
	} else if _, err := os.Stat(r.Dir); err != nil {
		return nil, fmt.Errorf("%w: storage root %s: %w", ErrIO, r.Dir, err)
	}

	return &Client[T]{
		name: name,
		path: filepath.Join(r.Dir, name+"."+r.Codec.Extension()),
		opts: r,
	}, nil
}

// Name returns the table name.
func (c *Client[T]) Name() string { return c.name }

// Path returns the backing file path for the table.
func (c *Client[T]) Path() string { return c.path }

// Table returns the loaded table, reading the backing file on first call.
// Subsequent calls return the same instance. A failed load is terminal: the
// same error is returned until the handle is reconstructed.
func (c *Client[T]) Table() (*Table[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loadErr != nil {
		return nil, c.loadErr
	}
	if c.table != nil {
		return c.table, nil
	}

	tbl, err := newTable[T](c.name, c.path, c.opts.Codec, c.opts.Logger)
	if err != nil {
		c.loadErr = err
		return nil, err
	}
	if err := tbl.load(!*c.opts.CreateIfMissing); err != nil {
		c.loadErr = err
		return nil, err
	}
	c.table = tbl
	return tbl, nil
}

// Drop deletes the table's backing file and detaches the loaded table, if
// any. A later [Client.Table] call starts over with an empty table. Dropping
// a table that has no backing file is not an error.
func (c *Client[T]) Drop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: failed to delete table file %s: %w", ErrIO, c.path, err)
	}
	c.table = nil
	c.loadErr = nil
	c.opts.Logger.Debug("table dropped", "table", c.name, "path", c.path)
	return nil
}

// validateTableName rejects names that would escape the storage root or
// collide with filesystem specials.
func validateTableName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
