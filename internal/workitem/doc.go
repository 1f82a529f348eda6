// Package workitem persists the typed units of work ("futures") that drive
// external integrations and their internal reconciliation steps.
//
// Each item carries a closed Type, a type-indexed Metadata variant, and a
// Status that only moves forward:
//
//	created -> processed -> completed
//	created | processed -> failed
//
// An item is processed once its own processor returned metadata, and completed
// once every item that depends on it is completed too. Store owns the SQLite
// schema, dependency edges, lease bookkeeping for the orchestrator, and the
// bottom-up completion fold.
package workitem
