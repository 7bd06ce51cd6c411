// Package moodb provides a persistent, process-embedded key-value table store.
//
// # Overview
//
// The package centers around [Table], a generic container mapping string keys
// to typed records, fully cached in memory and backed by a single file per
// table. [Client] binds a table name to a storage directory and materializes
// the table lazily on first use. Tables are safe for concurrent use by
// multiple goroutines: reads proceed in parallel, mutations are serialized.
//
// # Durability
//
// Every mutation rewrites the whole table through a temp-file-then-rename
// sequence, so the backing file is always either the previous complete
// snapshot or the new one, never a partial write. A mutating call does not
// return until the data is durably on disk; if the flush fails, the
// in-memory change is rolled back before the error is returned.
//
// # File Format
//
// Line 1 (frame 1) is a schema header with format version, column metadata
// reflected from the record type, and a revision stamp updated on every
// flush. Subsequent frames are key/value records in insertion order. The
// framing is pluggable via [Codec]: newline-delimited JSON by default, or
// msgpack for a compact binary file.
package moodb
