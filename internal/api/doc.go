// Package api defines wire-format types and converters for the daemon's HTTP
// API and the CLI's JSON output. It translates work items and workflow status
// into transport-friendly DTOs so consumers never depend on internal types.
//
// # Key Types
//
// Item: transport representation of a work item with its decoded
// sub-operation, lease state, failure classification, and raw metadata.
//
// WorkflowStatus: running state, worker count, status counts, last item, and
// processor health.
//
// DaemonStatus: aggregated runtime information for the daemon.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Statuses and types are exposed as their stored
// lowercase strings. Timestamps use RFC3339 with milliseconds. Metadata passes
// through as json.RawMessage to avoid double-encoding.
package api
