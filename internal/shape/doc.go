// Package shape provides the generic call/response pairs shared by every
// entity type: get (fetch by id), set (create/update/destroy with per-item
// outcomes), query (filtered, sorted id lists) and changes (incremental sync).
//
// Each shape is parameterized by an Entity whose TypeName prefixes the wire
// name: GetCall[tasks.Task] is "Task/get". Per-item failures in set
// responses are data (NotCreated, NotUpdated, NotDestroyed), not errors.
// Whole-call failures never reach these types; the dispatcher reports them
// as its error arm.
package shape
