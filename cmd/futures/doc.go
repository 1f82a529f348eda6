// Command futures is the operator CLI for the integration workflow engine.
//
// Daemon control (start, stop, status, logs, maintenance) goes through the
// daemon's Unix socket. Work item inspection, retries, and chain creation open
// the SQLite store directly, so they work whether or not the daemon is up.
package main
