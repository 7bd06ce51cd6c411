// Atomic whole-file persistence: a snapshot is written to a temp file in the
// target's directory, synced, then renamed over the target in one step.

package moodb

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// atomicWriteFile writes a complete snapshot produced by write to path.
//
// A reader, or a crash at any point, observes either the previous complete
// file or the new one. Errors from write pass through unchanged; filesystem
// errors wrap [ErrIO], and a failed rename wraps [ErrRename]. Nothing is
// retried: retry policy belongs to the caller.
func atomicWriteFile(path string, write func(w *bufio.Writer) error) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file in %s: %w", ErrIO, dir, err)
	}
	tmpPath := f.Name()
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		cleanup()
		return err
	}
	if err := w.Flush(); err != nil {
		cleanup()
		return fmt.Errorf("%w: failed to write %s: %w", ErrIO, tmpPath, err)
	}
	// Sync before rename: the snapshot must be durable before it becomes
	// visible under the target path.
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("%w: failed to sync %s: %w", ErrIO, tmpPath, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: failed to close %s: %w", ErrIO, tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: failed to rename %s over %s: %w", ErrRename, tmpPath, path, err)
	}
	return nil
}
