// Package callback holds the processors that reconcile an integration
// response into the internal aggregates named in their metadata.
//
// Every callback expects exactly one dependency of an accepted type and
// sub-operation. A mismatch is a contract failure and nothing is written.
// Each processor exposes the external id it wrote through its response so
// later integration items can default from it.
package callback
