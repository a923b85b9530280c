//go:build linux

package poller

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// selectFdBits is the width of one FdSet word.
const selectFdBits = 64

// selectMaxFd is the highest descriptor representable in an FdSet bitmap.
const selectMaxFd = len(unix.FdSet{}.Bits)*selectFdBits - 1

// selectPoller is the scanning bitmap backend. Every Wait copies the
// registration bitmap and scans descriptors up to the highest registered
// one, so it degrades with descriptor count but needs no kernel state
// beyond the select call itself.
type selectPoller struct {
	all   unix.FdSet
	maxfd int
	tags  map[int]int
}

func newSelectPoller() (*selectPoller, error) {
	return &selectPoller{
		maxfd: -1,
		tags:  make(map[int]int),
	}, nil
}

func fdSetBit(s *unix.FdSet, fd int)   { s.Bits[fd/selectFdBits] |= 1 << (uint(fd) % selectFdBits) }
func fdClearBit(s *unix.FdSet, fd int) { s.Bits[fd/selectFdBits] &^= 1 << (uint(fd) % selectFdBits) }
func fdIsSet(s *unix.FdSet, fd int) bool {
	return s.Bits[fd/selectFdBits]&(1<<(uint(fd)%selectFdBits)) != 0
}

func (p *selectPoller) Register(fd, tag int) error {
	if fd < 0 || fd > selectMaxFd {
		return fmt.Errorf("%w: fd %d, limit %d", ErrFdRange, fd, selectMaxFd)
	}
	fdSetBit(&p.all, fd)
	if fd > p.maxfd {
		p.maxfd = fd
	}
	p.tags[fd] = tag
	return nil
}

func (p *selectPoller) Unregister(fd int) error {
	if _, ok := p.tags[fd]; !ok {
		return ErrNotRegistered
	}
	fdClearBit(&p.all, fd)
	delete(p.tags, fd)
	if fd == p.maxfd {
		p.maxfd = -1
		for f := range p.tags {
			if f > p.maxfd {
				p.maxfd = f
			}
		}
	}
	return nil
}

func (p *selectPoller) Wait(events []Event) (int, error) {
	for {
		ready := p.all
		_, err := unix.Select(p.maxfd+1, &ready, nil, nil, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("select: %w", err)
		}
		out := 0
		for fd := 0; fd <= p.maxfd && out < len(events); fd++ {
			if !fdIsSet(&ready, fd) {
				continue
			}
			// select folds errors and hangups into read readiness; the
			// subsequent read observes them, so Err stays false here.
			events[out] = Event{FD: fd, Tag: p.tags[fd]}
			out++
		}
		if out == 0 {
			continue
		}
		return out, nil
	}
}

func (p *selectPoller) Close() error {
	p.tags = nil
	p.maxfd = -1
	return nil
}
