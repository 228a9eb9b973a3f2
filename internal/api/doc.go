// Package api defines the payload types exchanged over the daemon's HTTP API
// and a small client the CLI uses to talk to a running daemon.
package api
