package server

import (
	"log/slog"

	"github.com/hashicorp/go-metrics"

	"github.com/sockmux/sockmux/poller"
)

// Config carries the tunables of a Server. Zero fields are filled from
// DefaultConfig by New.
type Config struct {
	// ListenAddr is the numeric host:port to bind, e.g. "0.0.0.0:5431".
	ListenAddr string

	// BufferSize is the fixed capacity of each per-stream frame buffer,
	// one inbound and one outbound per stream. It is also the hard ceiling
	// on header+payload of a single message.
	BufferSize int

	// MaxChannels bounds the channel id space of every stream. The
	// per-stream client table is allocated at this size.
	MaxChannels int

	// MaxStreams caps concurrently served connections. Zero means the
	// stream arena grows on demand.
	MaxStreams int

	// Backlog is the listen(2) queue length.
	Backlog int

	// BatchSize is how many readiness events one wait call may return.
	BatchSize int

	// Backend selects the readiness mechanism.
	Backend poller.Backend

	// LogHandler receives structured logs; nil uses slog.Default.
	LogHandler slog.Handler

	// MetricSink receives counters; nil uses metrics.Default.
	MetricSink metrics.MetricSink

	// MetricLabels are appended to every emitted metric.
	MetricLabels []metrics.Label
}

// DefaultConfig returns the tunables used when options leave them unset.
func DefaultConfig() Config {
	return Config{
		ListenAddr:  "0.0.0.0:5431",
		BufferSize:  64 << 10,
		MaxChannels: 1024,
		Backlog:     128,
		BatchSize:   128,
		Backend:     poller.BackendEpoll,
	}
}

// Option customizes server construction.
type Option func(*Config)

// WithListenAddr sets the numeric bind address, host:port.
func WithListenAddr(addr string) Option {
	return func(c *Config) { c.ListenAddr = addr }
}

// WithBufferSize sets the per-direction frame buffer capacity.
func WithBufferSize(n int) Option {
	return func(c *Config) { c.BufferSize = n }
}

// WithMaxChannels sets the per-stream channel budget.
func WithMaxChannels(n int) Option {
	return func(c *Config) { c.MaxChannels = n }
}

// WithMaxStreams caps concurrently served connections; 0 is unbounded.
func WithMaxStreams(n int) Option {
	return func(c *Config) { c.MaxStreams = n }
}

// WithBacklog sets the listen queue length.
func WithBacklog(n int) Option {
	return func(c *Config) { c.Backlog = n }
}

// WithBatchSize sets the readiness event batch size.
func WithBatchSize(n int) Option {
	return func(c *Config) { c.BatchSize = n }
}

// WithBackend selects the readiness backend.
func WithBackend(b poller.Backend) Option {
	return func(c *Config) { c.Backend = b }
}

// WithLogHandler injects the slog handler used for all server logging.
func WithLogHandler(h slog.Handler) Option {
	return func(c *Config) { c.LogHandler = h }
}

// WithMetricSink injects the metrics sink.
func WithMetricSink(s metrics.MetricSink) Option {
	return func(c *Config) { c.MetricSink = s }
}

// WithMetricLabels appends labels to every emitted metric.
func WithMetricLabels(labels ...metrics.Label) Option {
	return func(c *Config) { c.MetricLabels = append(c.MetricLabels, labels...) }
}
