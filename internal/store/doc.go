// Package store provides the SQLite-backed layout ledger.
//
// The ledger keeps, for each named trace, the operation tree of every root
// scope the compiler produced the last time the trace was recorded. A later
// compilation is checked against it with Verify, which reports the scopes
// whose layout drifted.
//
// # Rows
//
// One row per (trace, data stream type, event record type, root scope).
// Packet scopes use an empty event record type. Each row holds the scope
// fingerprint, the operation count, the static size when there is one, and
// the canonical JSON of the tree:
//   - compressed with zstd or lz4, the algorithm tagged on the row
//   - stored raw when compression does not shrink it
//   - guarded by a keyed BLAKE3 digest of the uncompressed bytes
//
// # Ordering
//
// Rows carry their emission position within the program. All listings
// are ORDER BY position ASC, so results never depend on insertion order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
