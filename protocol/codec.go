package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrMessageOpen     = errors.New("protocol: message already started")
	ErrNoMessage       = errors.New("protocol: no message started")
	ErrMessageTooLarge = errors.New("protocol: message exceeds frame buffer capacity")
)

// Flusher writes out the committed bytes of the writer's buffer. The
// implementation must call FlushDone on success so relocation bookkeeping
// happens exactly once per flush.
type Flusher interface {
	Flush() error
}

// FlushDone marks buf fully flushed, relocating any open message to the
// buffer start. Flusher implementations call it after the committed region
// has been written out.
func FlushDone(buf *FrameBuffer) {
	buf.completeFlush()
}

// Writer builds messages incrementally in an outbound FrameBuffer. When the
// buffer runs out of room for a header or an append, the Flusher is invoked
// to drain committed bytes first; a message whose header and payload can
// never fit the capacity fails permanently instead.
type Writer struct {
	Buf *FrameBuffer
	Fl  Flusher
}

// Begin opens a zero-payload message for the given channel. It fails if a
// message is already open on the buffer.
func (w *Writer) Begin(ch uint32) error {
	b := w.Buf
	if b.open {
		return ErrMessageOpen
	}
	if b.Cap()-b.ready < HeaderSize {
		if err := w.Fl.Flush(); err != nil {
			return fmt.Errorf("flush before message start: %w", err)
		}
	}
	putHeader(b.data[b.ready:], Header{Size: 0, Code: CodeData, Chan: ch})
	b.open = true
	b.curSize = 0
	return nil
}

// Append extends the open message with p.
func (w *Writer) Append(p []byte) error {
	b := w.Buf
	if !b.open {
		return ErrNoMessage
	}
	extent := HeaderSize + b.curSize + len(p)
	if extent > b.Cap() {
		// Flushing cannot help: the assembled message itself would
		// exceed the fixed capacity.
		return ErrMessageTooLarge
	}
	if b.ready+extent > b.Cap() {
		if err := w.Fl.Flush(); err != nil {
			return fmt.Errorf("flush before message append: %w", err)
		}
	}
	copy(b.data[b.ready+HeaderSize+b.curSize:], p)
	b.curSize += len(p)
	return nil
}

// Finish commits the open message into the buffer's ready region, making it
// visible to the next flush.
func (w *Writer) Finish() error {
	b := w.Buf
	if !b.open {
		return ErrNoMessage
	}
	binary.LittleEndian.PutUint32(b.data[b.ready:b.ready+4], uint32(b.curSize))
	b.ready += HeaderSize + b.curSize
	b.open = false
	b.curSize = 0
	if b.ready > b.Cap() {
		panic("protocol: committed bytes exceed frame buffer capacity")
	}
	return nil
}

// Drain walks the committed region of an inbound buffer, invoking emit for
// every complete message, then compacts the unconsumed tail to the buffer
// start. A header announcing a message that could never fit the capacity
// returns ErrMessageTooLarge; the stream owning the buffer must be torn
// down, no recovery is possible mid-stream.
func Drain(b *FrameBuffer, emit func(Header, []byte) error) error {
	off := 0
	for b.ready-off >= HeaderSize {
		h := ParseHeader(b.data[off:])
		total := HeaderSize + int(h.Size)
		if total > b.ready-off {
			if total > b.Cap() {
				return fmt.Errorf("%w: declared %d bytes, capacity %d",
					ErrMessageTooLarge, total, b.Cap())
			}
			break
		}
		if err := emit(h, b.data[off+HeaderSize:off+total]); err != nil {
			// Skip what was consumed so far; the caller decides the
			// stream's fate.
			b.compact(off + total)
			return err
		}
		off += total
	}
	b.compact(off)
	return nil
}
