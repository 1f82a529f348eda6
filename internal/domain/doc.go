// Package domain holds the internal aggregates that work items read and
// reconcile: member relationships, orders, deliverables, invoices, invoice
// payments and payment sources.
//
// Aggregates live in the same SQLite database as the work items so callback
// processors can update them in the transaction that marks the item
// processed. Tx is the repository surface processors receive; statements are
// built with squirrel.
package domain
