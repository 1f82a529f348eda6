// Package integration implements the processors that call one external
// provider per work item.
//
// Each processor holds a live and a test client and selects one with the
// metadata's test flag. It branches on the sub-operation code, fills payload
// fields the caller left empty from dependency outputs, makes exactly one
// provider call and returns the metadata with the provider's response.
// Unknown sub-operations fail with services.ErrNotImplemented.
package integration
