// Package workflow is the orchestrator that drives work items to completion.
//
// A pool of workers claims ready items (created, unleased, every dependency
// processed or completed), resolves their dependencies in declared order,
// and dispatches them through the processor registry. Integration processors
// run inside a read transaction so network calls never hold the SQLite
// writer; their result is persisted in a short write transaction. Callback
// processors run inside the write transaction that also persists their
// result, so domain writes and the status change commit together.
//
// Persisting a processed item also creates its follow-on callback items and
// runs the completion fold: an item processed with no outstanding dependents
// becomes completed, and its own dependencies are re-checked the same way.
// Failures mark only the failing item; nothing propagates and nothing is
// compensated. An illegal status transition is a programming error: it halts
// the worker pool instead of being recorded as a failure. Heartbeats keep
// leases alive while a processor runs and stale leases are reclaimed.
package workflow
