// Package daemon coordinates the long-running futures process.
//
// It wires configuration, work item storage, the workflow manager, the
// maintenance scheduler, and the HTTP status API into a single lifecycle with
// flock-based locking to prevent multiple instances. Maintenance jobs run on
// cron schedules: stale lease reclaim and retention purge of completed items.
//
// Keep orchestration logic here: processing belongs to the workflow and
// processing packages while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
