// Package relay fans out codes from a single producer connection to every
// consumer connection.
//
// All registry state lives in one Hub goroutine fed by a command channel.
// Per-connection reader goroutines (Serve) decode frames and forward them as
// commands; per-connection writer goroutines own every write to the socket,
// so the hub never blocks on network I/O. The hub also runs the liveness
// ticker and the orderly-close timers used during shutdown.
package relay
