// Package config loads, normalizes, and validates futures configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and overlays provider secrets from the
// environment (optionally seeded from a .env file). The Config type centralizes
// every knob the daemon and CLI need: storage paths, worker pool sizing,
// per-call deadlines, maintenance schedules, and the live/test credentials of
// each external integration.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
