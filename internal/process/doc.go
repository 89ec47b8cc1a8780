// Package process holds the OS-specific pieces of engine supervision:
// tearing down a browser process tree and probing whether a PID is still alive.
package process
