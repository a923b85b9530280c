// Package poller provides the readiness-notification abstraction behind the
// sockmux event loop. Descriptors are registered with an integer tag; Wait
// blocks until at least one descriptor is actionable and reports the tags.
//
// Two backends implement identical semantics: epoll (registration-based,
// scales with the number of ready descriptors) and select (scanning bitmap,
// bounded by FD_SETSIZE). The choice is configuration, not behavior.
package poller
