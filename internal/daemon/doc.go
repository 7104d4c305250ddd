// Package daemon coordinates the long-running Chorus process.
//
// It wires configuration, the state store, and the sync engine into a single
// lifecycle with flock-based locking to prevent multiple instances, and
// exposes the maintenance surface the IPC layer serves: record listing,
// retries, prune, cycle history, and health diagnostics.
//
// Keep orchestration logic here: reconciliation itself lives in the engine
// and the handler packages.
package daemon
