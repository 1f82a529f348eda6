// Package logs tails the daemon log file for the CLI and the control socket.
//
// A negative offset reads the last N lines; a non-negative offset resumes
// where the previous call stopped. Follow mode polls until a line arrives, the
// wait elapses, or the context ends. Match narrows output to lines containing
// a substring, typically a work item id.
package logs
