// Package ipc exposes daemon control over JSON-RPC on a Unix socket and ships
// the matching client used by the CLI.
//
// The server wraps a *daemon.Daemon; request and response types live in
// types.go so both ends share one wire contract. Work item reads do not go
// through this channel: the CLI opens the SQLite store directly.
package ipc
