// Command cellar is the administrative CLI for a cellard daemon: daemon and
// store status, record access over the HTTP API, offline recovery, and
// configuration management.
package main
