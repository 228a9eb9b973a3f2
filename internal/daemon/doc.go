// Package daemon coordinates the long-running cellard process: the
// single-instance lock, the HTTP API server, and the background checkpoint
// loop that keeps the store's transaction log from growing unbounded.
package daemon
