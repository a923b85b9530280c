package protocol

// FrameBuffer is a fixed-capacity byte region with a count of committed
// ("ready") bytes and at most one open message under construction.
//
// Invariants: ready never exceeds capacity; while a message is open it sits
// at offset ready, and its bytes are not counted in ready until Finish
// commits them.
type FrameBuffer struct {
	data    []byte
	ready   int
	open    bool
	curSize int // payload bytes appended to the open message so far
}

// NewFrameBuffer allocates a buffer of the given fixed capacity.
func NewFrameBuffer(capacity int) *FrameBuffer {
	return &FrameBuffer{data: make([]byte, capacity)}
}

// Cap returns the fixed capacity.
func (b *FrameBuffer) Cap() int { return len(b.data) }

// Ready returns the number of committed bytes.
func (b *FrameBuffer) Ready() int { return b.ready }

// Open reports whether a message is currently under construction.
func (b *FrameBuffer) Open() bool { return b.open }

// ReadySlice exposes the committed region. The slice is only valid until the
// next mutation of the buffer.
func (b *FrameBuffer) ReadySlice() []byte { return b.data[:b.ready] }

// Writable exposes the unused region after the committed bytes, for the
// inbound direction where reads land directly behind the retained tail.
// It must not be used while a message is open.
func (b *FrameBuffer) Writable() []byte { return b.data[b.ready:] }

// Extend records that n bytes were appended to the committed region, e.g.
// by a socket read into Writable.
func (b *FrameBuffer) Extend(n int) {
	if b.ready+n > len(b.data) {
		panic("protocol: extend past frame buffer capacity")
	}
	b.ready += n
}

// Reset discards all committed bytes and any open message. Used when a
// stream slot is recycled for a new connection.
func (b *FrameBuffer) Reset() {
	b.ready = 0
	b.open = false
	b.curSize = 0
}

// Resize resets the buffer and reallocates storage if the configured
// capacity changed since the slot was last used.
func (b *FrameBuffer) Resize(capacity int) {
	if len(b.data) != capacity {
		b.data = make([]byte, capacity)
	}
	b.Reset()
}

// compact moves the tail starting at off to the front of the buffer and
// shrinks ready accordingly. Called after draining complete messages so the
// next read appends to the partial remainder.
func (b *FrameBuffer) compact(off int) {
	if off == 0 {
		return
	}
	tail := b.ready - off
	if tail > 0 {
		copy(b.data, b.data[off:b.ready])
	}
	b.ready = tail
}

// completeFlush accounts for all ready bytes having been written out. If a
// message is still open, its header and partial payload are relocated to the
// buffer start so construction continues without violating the open-message
// invariant.
func (b *FrameBuffer) completeFlush() {
	if b.open {
		extent := HeaderSize + b.curSize
		copy(b.data, b.data[b.ready:b.ready+extent])
	}
	b.ready = 0
}
