// Package server implements the sockmux event loop: a single-threaded,
// readiness-driven TCP server multiplexing many logical client sessions
// over few connections.
//
// One accepted connection is a stream. Every message on a stream carries a
// channel id; the first message seen for a channel lazily creates a Client,
// and a disconnect message (or stream teardown) destroys it. Business logic
// is injected as a Handler and invoked strictly from the loop goroutine, so
// handlers never need locking for per-client state.
//
// The loop runs forever: wait for readiness, accept pending connections,
// read and dispatch ready streams, reap dead streams, flush outbound
// buffers. A failure on one stream marks only that stream for reaping;
// other streams and the loop itself are unaffected.
package server
