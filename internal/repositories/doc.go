// Package repositories implements SQLite persistence for the local playlist store, the library index, and sync history.
//
// Key Implementations:
//   - [PlaylistRepository] : The local playlist store, including the recommendation non-regression gate
//   - [TrackRepository] : The local library index searched by MBID or keywords
//   - [SyncRunRepository] : History of reconciliation passes
//
// Sequence numbers provide stable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
//
// Repositories never hold a result set open while issuing another query, so they work with a single pooled connection.
package repositories
