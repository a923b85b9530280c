// Package protocol implements the sockmux wire format: a fixed 12-byte
// message header followed by a raw payload, accumulated in fixed-capacity
// framed buffers.
//
// The same FrameBuffer type serves both directions. Inbound, bytes are
// appended as they arrive from the socket and complete messages are drained
// off the front, any partial tail being retained for the next read.
// Outbound, messages are built incrementally (Begin/Append/Finish) and the
// committed region is flushed to the socket in one piece.
//
// A message header plus its payload must never exceed the buffer capacity.
// This is a hard protocol ceiling: flushing frees backlog, it cannot make a
// single oversized message representable.
package protocol
