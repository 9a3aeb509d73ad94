// Package inmemorystore provides an ephemeral, thread-safe, in-memory
// implementation of the grid.Backend interface.
//
// # Purpose
//
// The store keeps every "file" as a schema plus a map of variable arrays, so a
// whole slice-to-series conversion can run without touching disk. Tests use it
// to build synthetic inputs, to inspect outputs, and to inject I/O faults
// (unreadable inputs, unwritable outputs, writes failing mid-append) that are
// awkward to reproduce on a real filesystem.
//
// # Concurrency Model
//
// Files live in a sync.Map keyed by path; each file carries its own mutex.
// Workers never share an output path, so contention is limited to concurrent
// readers of the same input, which only take the file lock long enough to copy
// data out.
package inmemorystore
