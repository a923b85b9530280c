package server

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/sockmux/sockmux/protocol"
)

// stream is one accepted connection: a socket, one frame buffer per
// direction, and the channel→client table. A stream whose good flag drops
// keeps its place until the end-of-iteration reap, so callbacks never
// observe a half-destroyed stream.
type stream[T any] struct {
	srv  *Server[T]
	idx  int // arena slot index, also the poller tag
	fd   int
	good bool

	in  *protocol.FrameBuffer
	out *protocol.FrameBuffer
	w   protocol.Writer

	clients []Client[T]
}

func newStream[T any](srv *Server[T], idx int) *stream[T] {
	s := &stream[T]{
		srv: srv,
		idx: idx,
		fd:  -1,
		in:  protocol.NewFrameBuffer(0),
		out: protocol.NewFrameBuffer(0),
	}
	s.w = protocol.Writer{Buf: s.out, Fl: s}
	return s
}

// reset re-initializes the slot for a new connection. Buffer storage and
// the client table are reused when the configuration has not changed.
func (s *stream[T]) reset(fd int) {
	cfg := &s.srv.cfg
	s.fd = fd
	s.good = true
	s.in.Resize(cfg.BufferSize)
	s.out.Resize(cfg.BufferSize)
	if len(s.clients) != cfg.MaxChannels {
		s.clients = make([]Client[T], cfg.MaxChannels)
	} else {
		for i := range s.clients {
			s.clients[i].clear()
		}
	}
}

// Flush writes all committed outbound bytes, retrying short writes until a
// hard error. On success a still-open message is relocated to the buffer
// start. On failure the stream is marked for reaping and the backlog is
// abandoned. Flushing an empty buffer is a no-op.
func (s *stream[T]) Flush() error {
	total := s.out.Ready()
	if total == 0 {
		return nil
	}
	data := s.out.ReadySlice()
	for len(data) > 0 {
		n, err := unix.Write(s.fd, data)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			s.good = false
			s.srv.msink.IncrCounterWithLabels(MetricFlushErrorCount, 1.0, s.srv.mlabels)
			s.srv.logger.Warn("failed to flush stream",
				LabelStream.L(s.idx), LabelError.L(err))
			return fmt.Errorf("%w: %w", ErrFlush, err)
		}
		data = data[n:]
	}
	protocol.FlushDone(s.out)
	s.srv.msink.IncrCounterWithLabels(MetricBytesOutCount, float32(total), s.srv.mlabels)
	return nil
}

// handleReadable pulls available bytes into the inbound buffer and
// dispatches every complete message. Read errors and end-of-stream mark the
// stream for reaping.
func (s *stream[T]) handleReadable() {
	space := s.in.Writable()
	if len(space) == 0 {
		// Full buffer without a decodable message means the peer
		// declared a size that can never fit; Drain below already
		// flagged it on a previous pass.
		s.good = false
		return
	}
	var n int
	var err error
	for {
		n, err = unix.Read(s.fd, space)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		if err == unix.EAGAIN {
			return
		}
		s.srv.logger.Debug("read failed", LabelStream.L(s.idx), LabelError.L(err))
		s.good = false
		return
	}
	if n == 0 {
		s.srv.logger.Debug("end of stream", LabelStream.L(s.idx))
		s.good = false
		return
	}
	s.in.Extend(n)
	s.srv.msink.IncrCounterWithLabels(MetricBytesInCount, float32(n), s.srv.mlabels)

	if err := protocol.Drain(s.in, s.dispatch); err != nil {
		s.srv.logger.Warn("stream protocol violation",
			LabelStream.L(s.idx), LabelError.L(err))
		s.good = false
	}
}

// dispatch routes one decoded message to its channel's client, creating the
// client on first sight.
func (s *stream[T]) dispatch(h protocol.Header, payload []byte) error {
	if int(h.Chan) >= len(s.clients) {
		return fmt.Errorf("%w: channel %d, budget %d",
			ErrChannelRange, h.Chan, len(s.clients))
	}
	c := &s.clients[h.Chan]
	if c.stream == nil {
		c.stream = s
		c.ch = h.Chan
		c.ClearContext()
		s.srv.handler.OnConnect(c)
		s.srv.msink.IncrCounterWithLabels(MetricClientConnected, 1.0, s.srv.mlabels)
	}
	if h.Code == protocol.CodeDisconnect {
		s.disconnect(c)
		return nil
	}
	s.srv.handler.OnMessage(c, payload)
	s.srv.msink.IncrCounterWithLabels(MetricMessageInCount, 1.0, s.srv.mlabels)
	return nil
}

// disconnect notifies the handler and empties the slot. A later message
// with the same channel id starts a fresh session.
func (s *stream[T]) disconnect(c *Client[T]) {
	s.srv.handler.OnDisconnect(c)
	if c.set {
		s.srv.logger.Warn(
			"client still has context after OnDisconnect; clear it in the handler",
			LabelStream.L(s.idx), LabelChannel.L(c.ch))
	}
	c.clear()
	s.srv.msink.IncrCounterWithLabels(MetricClientClosed, 1.0, s.srv.mlabels)
}

// teardown notifies disconnect for every occupied channel. Called once,
// from the reap sweep, never mid-dispatch.
func (s *stream[T]) teardown() {
	for i := range s.clients {
		c := &s.clients[i]
		if c.stream == nil {
			continue
		}
		s.disconnect(c)
	}
}
