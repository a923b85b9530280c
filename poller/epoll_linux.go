//go:build linux

package poller

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// New creates a poller for the requested backend. An empty backend selects
// epoll.
func New(backend Backend) (Poller, error) {
	switch backend {
	case "", BackendEpoll:
		return newEpollPoller()
	case BackendSelect:
		return newSelectPoller()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// epollPoller is the registration-based backend.
type epollPoller struct {
	epfd int
	tags map[int32]int
	evs  []unix.EpollEvent
}

func newEpollPoller() (*epollPoller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &epollPoller{
		epfd: epfd,
		tags: make(map[int32]int),
	}, nil
}

func (p *epollPoller) Register(fd, tag int) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLERR | unix.EPOLLHUP,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	p.tags[int32(fd)] = tag
	return nil
}

func (p *epollPoller) Unregister(fd int) error {
	if _, ok := p.tags[int32(fd)]; !ok {
		return ErrNotRegistered
	}
	delete(p.tags, int32(fd))
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

func (p *epollPoller) Wait(events []Event) (int, error) {
	if cap(p.evs) < len(events) {
		p.evs = make([]unix.EpollEvent, len(events))
	}
	evs := p.evs[:len(events)]
	for {
		n, err := unix.EpollWait(p.epfd, evs, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("epoll wait: %w", err)
		}
		out := 0
		for i := 0; i < n; i++ {
			tag, ok := p.tags[evs[i].Fd]
			if !ok {
				// Unregistered between readiness and delivery.
				continue
			}
			events[out] = Event{
				FD:  int(evs[i].Fd),
				Tag: tag,
				Err: evs[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
			}
			out++
		}
		if out == 0 && n > 0 {
			// Every ready descriptor vanished; wait again rather than
			// return an empty batch.
			continue
		}
		return out, nil
	}
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}
