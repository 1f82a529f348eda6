// Package services defines shared utilities consumed by processors and the
// external integration clients.
//
// Key responsibilities:
//   - Context helpers that stamp work item IDs, item types, worker names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap and Details helpers that let the
//     orchestrator classify failures as fatal or retriable.
//   - ProviderError, the common failure shape of every integration client.
//
// Subpackages hold one client per external system (microsite, cardpay,
// gateway, accounting), the shared JSON transport they sit on, and the tenant
// resolver that supplies per-member credentials.
package services
