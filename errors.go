package moodb

import "errors"

// Error kinds returned by this package. All errors returned from exported
// functions match exactly one of these via [errors.Is]; callers branch on the
// kind and read the wrapped detail for context.
var (
	// ErrInvalidName is returned when a table name is empty or contains
	// path-traversal characters.
	ErrInvalidName = errors.New("invalid table name")

	// ErrDuplicateKey is returned by [Table.Insert] when the key is already
	// present.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrKeyNotFound is returned by [Table.Update] and [Table.Delete] when the
	// key is absent.
	ErrKeyNotFound = errors.New("key not found")

	// ErrCorruptTable is returned when a backing file cannot be parsed. It is
	// never repaired automatically; discarding the file is an operator
	// decision.
	ErrCorruptTable = errors.New("corrupt table")

	// ErrCodec is returned when a record cannot be encoded or decoded.
	ErrCodec = errors.New("codec error")

	// ErrIO is returned when a filesystem operation other than the final
	// rename fails.
	ErrIO = errors.New("i/o error")

	// ErrRename is returned when the atomic rename of a completed snapshot
	// over the table file fails.
	ErrRename = errors.New("rename error")
)
