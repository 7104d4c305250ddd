// Package store persists sync state in SQLite: one record per remote item,
// one row per reconciliation cycle, and the identity of every mirrored
// playlist.
//
// Every status change is a single atomic write so a crash between any two
// writes leaves the database at the last committed durable state. Recover
// closes interrupted cycles as crashed and rolls processing records back to
// their prior durable status; nothing else is repaired automatically.
package store
