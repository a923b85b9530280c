package poller

import "errors"

// Backend selects a readiness-notification implementation.
type Backend string

const (
	// BackendEpoll uses the registration-based epoll interface.
	BackendEpoll Backend = "epoll"
	// BackendSelect uses a scanning select bitmap. Semantics are identical
	// to epoll; only scalability differs.
	BackendSelect Backend = "select"
)

var (
	ErrUnknownBackend = errors.New("poller: unknown backend")
	ErrNotRegistered  = errors.New("poller: descriptor not registered")
	ErrFdRange        = errors.New("poller: descriptor out of select range")
)

// Event is one readiness notification.
type Event struct {
	FD  int
	Tag int  // tag supplied at Register time
	Err bool // error or hangup condition on the descriptor
}

// Poller multiplexes readiness over registered descriptors.
type Poller interface {
	// Register watches fd for read readiness, associating tag with it.
	Register(fd, tag int) error

	// Unregister stops watching fd.
	Unregister(fd int) error

	// Wait blocks indefinitely until at least one descriptor is ready and
	// fills events with the ready set. It retries EINTR internally.
	Wait(events []Event) (int, error)

	// Close releases backend resources. Registered descriptors are not
	// closed.
	Close() error
}
