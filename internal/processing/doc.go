// Package processing defines the contract between the workflow manager and
// the per-type work item processors.
//
// A Processor handles exactly one workitem.Type. It receives the item's
// typed metadata and its resolved dependencies in declared order, performs
// its single side effect, and returns an Outcome: Done with updated metadata
// or NotReady when the item should be retried later. Errors are classified
// with the services markers; the manager alone decides that an item failed.
//
// Registry maps types to processors and is checked for totality at startup
// so an unregistered type is a configuration error, not a runtime surprise.
package processing
