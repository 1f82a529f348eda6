// Package notifications sends operator alerts via ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// workflow code can call the Service unconditionally.
package notifications
