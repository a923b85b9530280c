package server

import (
	"encoding/binary"
	"net/netip"
)

// Client is one logical session multiplexed on a channel of a stream. Its
// lifetime is bounded by the stream's: a Client is created lazily when its
// channel id is first seen and cleared on disconnect or stream teardown.
// Clients are only ever touched from the event loop.
type Client[T any] struct {
	stream *stream[T] // nil marks the slot empty
	ch     uint32
	ctx    T
	set    bool
}

// Channel returns the client's channel id.
func (c *Client[T]) Channel() uint32 { return c.ch }

// Context returns the handler-installed per-client state.
func (c *Client[T]) Context() T { return c.ctx }

// SetContext installs per-client state. The handler owns it and must clear
// it in OnDisconnect.
func (c *Client[T]) SetContext(v T) {
	c.ctx = v
	c.set = true
}

// ClearContext removes the per-client state.
func (c *Client[T]) ClearContext() {
	var zero T
	c.ctx = zero
	c.set = false
}

// RemoteAddr returns the peer address of the client's underlying stream.
func (c *Client[T]) RemoteAddr() (netip.AddrPort, error) {
	if c.stream == nil {
		return netip.AddrPort{}, ErrClientClosed
	}
	return peerAddr(c.stream.fd)
}

// Begin opens an outbound message addressed to the client's channel. An
// implicit flush happens first when the stream's outbound buffer lacks
// header room. Misuse (a message already open) kills the stream.
func (c *Client[T]) Begin() error {
	s := c.stream
	if s == nil {
		return ErrClientClosed
	}
	if err := s.w.Begin(c.ch); err != nil {
		s.good = false
		return err
	}
	return nil
}

// Append extends the open outbound message with p, flushing committed
// messages first if p does not fit the remaining room. A message that can
// never fit the buffer capacity fails permanently and kills the stream.
func (c *Client[T]) Append(p []byte) error {
	s := c.stream
	if s == nil {
		return ErrClientClosed
	}
	if err := s.w.Append(p); err != nil {
		s.good = false
		return err
	}
	return nil
}

// Finish commits the open outbound message. It becomes visible to the next
// flush, at the latest the end-of-iteration sweep.
func (c *Client[T]) Finish() error {
	s := c.stream
	if s == nil {
		return ErrClientClosed
	}
	if err := s.w.Finish(); err != nil {
		s.good = false
		return err
	}
	return nil
}

// Send is the one-shot form of Begin/Append/Finish.
func (c *Client[T]) Send(payload []byte) error {
	if err := c.Begin(); err != nil {
		return err
	}
	if err := c.Append(payload); err != nil {
		return err
	}
	return c.Finish()
}

// SendUint64 sends a single fixed-width value, the common shape of
// id and counter replies.
func (c *Client[T]) SendUint64(v uint64) error {
	var p [8]byte
	binary.LittleEndian.PutUint64(p[:], v)
	return c.Send(p[:])
}

// clear empties the slot. The zero context matters: a recycled slot must
// not leak the previous session's state.
func (c *Client[T]) clear() {
	var zero T
	c.stream = nil
	c.ctx = zero
	c.set = false
}
