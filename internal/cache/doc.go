// Package cache persists server state tokens and entity records derived
// from Get and Set responses.
//
// A Store receives shape.Delta values. Upserts merge property by property
// into the stored record, so a Get that asked for a subset of properties
// does not erase the rest. Any write failure is reported as a
// *CacheWriteFailure; callers surface it and never retry it.
//
// Two stores exist:
//   - SQLite, durable, one file per client, WAL mode with a single writer
//   - Memory, for tests and for running without a cache file
package cache
