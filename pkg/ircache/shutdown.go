package ircache

import "sync"

var shutdownRequested bool
var shutdownRequestedLock sync.Mutex

// RequestShutdown marks the server loop for graceful exit. Safe to call
// from a signal handler; the event loop observes it after waking on its
// next data-ready post.
func RequestShutdown() {
	shutdownRequestedLock.Lock()
	defer shutdownRequestedLock.Unlock()
	shutdownRequested = true
}

// ShutdownRequested reports whether RequestShutdown has been called.
func ShutdownRequested() bool {
	shutdownRequestedLock.Lock()
	defer shutdownRequestedLock.Unlock()
	return shutdownRequested
}
