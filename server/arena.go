package server

import "github.com/eapache/queue"

// arena owns every stream slot the server ever allocated. Slots are
// addressed by a stable index that doubles as the poller tag; released
// indices are queued and reused, so a slot's memory outlives many logical
// connections.
type arena[T any] struct {
	slots      []*stream[T]
	free       *queue.Queue // of int slot indices
	inUse      []int
	maxStreams int
}

func newArena[T any](maxStreams int) *arena[T] {
	return &arena[T]{
		free:       queue.New(),
		maxStreams: maxStreams,
	}
}

// acquire pops a recycled slot or grows the arena, and adds the slot to the
// in-use set. The caller resets and registers the stream.
func (a *arena[T]) acquire(srv *Server[T]) (*stream[T], error) {
	var idx int
	if a.free.Length() > 0 {
		idx = a.free.Remove().(int)
	} else {
		if a.maxStreams > 0 && len(a.slots) >= a.maxStreams {
			return nil, ErrStreamBudget
		}
		idx = len(a.slots)
		a.slots = append(a.slots, newStream(srv, idx))
	}
	a.inUse = append(a.inUse, idx)
	return a.slots[idx], nil
}

// reap removes every not-good stream from the in-use set, invoking destroy
// on each, and recycles their indices. Returns how many were reaped.
func (a *arena[T]) reap(destroy func(*stream[T])) int {
	reaped := 0
	kept := a.inUse[:0]
	for _, idx := range a.inUse {
		s := a.slots[idx]
		if s.good {
			kept = append(kept, idx)
			continue
		}
		destroy(s)
		a.free.Add(idx)
		reaped++
	}
	a.inUse = kept
	return reaped
}

// forEach visits every in-use stream in acquisition order.
func (a *arena[T]) forEach(fn func(*stream[T])) {
	for _, idx := range a.inUse {
		fn(a.slots[idx])
	}
}

// get returns the in-use stream at the given slot index, or nil if the slot
// is not currently serving a connection.
func (a *arena[T]) get(idx int) *stream[T] {
	if idx < 0 || idx >= len(a.slots) {
		return nil
	}
	s := a.slots[idx]
	if s.fd < 0 {
		return nil
	}
	return s
}
