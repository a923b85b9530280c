package server

import (
	"fmt"
	"log/slog"
	"net/netip"
	"sync/atomic"

	"github.com/hashicorp/go-metrics"
	"golang.org/x/sys/unix"

	"github.com/sockmux/sockmux/poller"
	"github.com/sockmux/sockmux/protocol"
)

// Sentinel poller tags. Stream tags are arena slot indices, always >= 0.
const (
	tagAccept = -1
	tagWake   = -2
)

// Server multiplexes many logical client sessions over few TCP connections,
// dispatching them to a Handler from a single event-loop goroutine. T is
// the per-client state type carried by every Client.
type Server[T any] struct {
	cfg     Config
	logger  *slog.Logger
	msink   metrics.MetricSink
	mlabels []metrics.Label
	handler Handler[T]

	pl      poller.Poller
	lfd     int
	wakeRd  int
	wakeWr  int
	streams *arena[T]
	events  []poller.Event

	closing atomic.Bool
}

// New binds the listening socket, initializes the readiness backend and
// prepares the loop. Nothing is served until Run.
func New[T any](handler Handler[T], opts ...Option) (*Server[T], error) {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.BufferSize <= protocol.HeaderSize {
		return nil, fmt.Errorf("%w: buffer size %d cannot hold a header",
			ErrInvalidConfig, cfg.BufferSize)
	}
	if cfg.MaxChannels <= 0 || cfg.BatchSize <= 0 || cfg.Backlog <= 0 {
		return nil, fmt.Errorf("%w: channel budget, batch size and backlog must be positive",
			ErrInvalidConfig)
	}

	srv := &Server[T]{
		cfg:     cfg,
		handler: handler,
		mlabels: cfg.MetricLabels,
		lfd:     -1,
		wakeRd:  -1,
		wakeWr:  -1,
		streams: newArena[T](cfg.MaxStreams),
		events:  make([]poller.Event, cfg.BatchSize),
	}
	if cfg.LogHandler != nil {
		srv.logger = slog.New(cfg.LogHandler)
	} else {
		srv.logger = slog.Default()
	}
	if cfg.MetricSink != nil {
		srv.msink = cfg.MetricSink
	} else {
		srv.msink = metrics.Default()
	}

	lfd, err := listen(cfg.ListenAddr, cfg.Backlog, cfg.BufferSize)
	if err != nil {
		return nil, err
	}
	srv.lfd = lfd

	pl, err := poller.New(cfg.Backend)
	if err != nil {
		unix.Close(lfd)
		return nil, fmt.Errorf("init readiness backend: %w", err)
	}
	srv.pl = pl

	var pipefds [2]int
	if err := unix.Pipe2(pipefds[:], unix.O_CLOEXEC); err != nil {
		srv.releaseResources()
		return nil, fmt.Errorf("create wake pipe: %w", err)
	}
	srv.wakeRd, srv.wakeWr = pipefds[0], pipefds[1]

	if err := pl.Register(lfd, tagAccept); err != nil {
		srv.releaseResources()
		return nil, fmt.Errorf("register listener: %w", err)
	}
	if err := pl.Register(srv.wakeRd, tagWake); err != nil {
		srv.releaseResources()
		return nil, fmt.Errorf("register wake pipe: %w", err)
	}

	srv.logger.Info("listening",
		LabelPeerAddr.L(cfg.ListenAddr), LabelBackend.L(string(cfg.Backend)))
	return srv, nil
}

// Addr reports the bound listen address; with port 0 it carries the port
// the kernel picked.
func (srv *Server[T]) Addr() (netip.AddrPort, error) {
	return localAddr(srv.lfd)
}

// Run drives the event loop until Close is called or the readiness backend
// fails. Within one iteration: pending accepts are handled before existing
// stream reads, dead streams are reaped only after all dispatches, and
// every surviving stream's outbound buffer is flushed last.
func (srv *Server[T]) Run() error {
	defer srv.shutdown()
	for {
		n, err := srv.pl.Wait(srv.events)
		if err != nil {
			return fmt.Errorf("readiness wait: %w", err)
		}
		batch := srv.events[:n]

		for _, ev := range batch {
			if ev.Tag == tagWake {
				return nil
			}
		}
		for _, ev := range batch {
			if ev.Tag == tagAccept {
				srv.accept()
			}
		}
		for _, ev := range batch {
			if ev.Tag < 0 {
				continue
			}
			s := srv.streams.get(ev.Tag)
			if s == nil || !s.good {
				continue
			}
			if ev.Err {
				s.good = false
				continue
			}
			s.handleReadable()
		}

		if reaped := srv.streams.reap(srv.destroyStream); reaped > 0 {
			srv.msink.IncrCounterWithLabels(MetricStreamReapedCount,
				float32(reaped), srv.mlabels)
		}
		srv.streams.forEach(func(s *stream[T]) {
			_ = s.Flush()
		})
	}
}

// Close wakes the loop and makes Run return after tearing everything down.
// Safe to call from any goroutine, once or many times.
func (srv *Server[T]) Close() {
	if !srv.closing.CompareAndSwap(false, true) {
		return
	}
	_, _ = unix.Write(srv.wakeWr, []byte{1})
}

// accept takes one pending connection. Failures are logged and counted;
// the loop carries on either way.
func (srv *Server[T]) accept() {
	fd, _, err := unix.Accept(srv.lfd)
	if err != nil {
		if err == unix.EINTR || err == unix.EAGAIN {
			return
		}
		srv.logger.Warn("failed to accept a connection", LabelError.L(err))
		srv.msink.IncrCounterWithLabels(MetricAcceptErrorCount, 1.0, srv.mlabels)
		return
	}
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

	s, err := srv.streams.acquire(srv)
	if err != nil {
		srv.logger.Warn("rejecting connection", LabelError.L(err))
		srv.msink.IncrCounterWithLabels(MetricAcceptErrorCount, 1.0, srv.mlabels)
		unix.Close(fd)
		return
	}
	s.reset(fd)

	if err := srv.pl.Register(fd, s.idx); err != nil {
		// The stream is already in the in-use set; let the sweep at the
		// end of this iteration recycle it.
		srv.logger.Warn("failed to register stream", LabelError.L(err))
		srv.msink.IncrCounterWithLabels(MetricAcceptErrorCount, 1.0, srv.mlabels)
		s.good = false
		return
	}
	srv.msink.IncrCounterWithLabels(MetricAcceptedCount, 1.0, srv.mlabels)
	srv.logger.Debug("accepted connection", LabelStream.L(s.idx))
}

// destroyStream notifies every live client, detaches the socket from the
// poller and closes it. The slot's buffers stay allocated for reuse.
func (srv *Server[T]) destroyStream(s *stream[T]) {
	s.teardown()
	if err := srv.pl.Unregister(s.fd); err != nil {
		srv.logger.Debug("unregister stream", LabelStream.L(s.idx), LabelError.L(err))
	}
	unix.Close(s.fd)
	s.fd = -1
	s.in.Reset()
	s.out.Reset()
	srv.logger.Debug("stream reaped", LabelStream.L(s.idx))
}

// shutdown tears down every live stream with full disconnect notification,
// then releases the listener, the wake pipe and the poller.
func (srv *Server[T]) shutdown() {
	srv.streams.forEach(func(s *stream[T]) {
		_ = s.Flush()
		s.good = false
	})
	srv.streams.reap(srv.destroyStream)
	srv.releaseResources()
	srv.logger.Info("server stopped")
}

func (srv *Server[T]) releaseResources() {
	if srv.lfd >= 0 {
		unix.Close(srv.lfd)
		srv.lfd = -1
	}
	if srv.wakeRd >= 0 {
		unix.Close(srv.wakeRd)
		srv.wakeRd = -1
	}
	if srv.wakeWr >= 0 {
		unix.Close(srv.wakeWr)
		srv.wakeWr = -1
	}
	if srv.pl != nil {
		srv.pl.Close()
		srv.pl = nil
	}
}
