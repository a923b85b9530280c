package server

import (
	"log/slog"

	"github.com/hashicorp/go-metrics"
)

var (
	MetricAcceptedCount     = []string{"sockmux", "accept", "count"}
	MetricAcceptErrorCount  = []string{"sockmux", "accept", "error", "count"}
	MetricMessageInCount    = []string{"sockmux", "message", "in", "count"}
	MetricBytesInCount      = []string{"sockmux", "bytes", "in", "count"}
	MetricBytesOutCount     = []string{"sockmux", "bytes", "out", "count"}
	MetricFlushErrorCount   = []string{"sockmux", "flush", "error", "count"}
	MetricStreamReapedCount = []string{"sockmux", "stream", "reaped", "count"}
	MetricClientConnected   = []string{"sockmux", "client", "connected", "count"}
	MetricClientClosed      = []string{"sockmux", "client", "closed", "count"}
)

// TelemetryLabel names a dimension used in both metrics and logs.
type TelemetryLabel string

var (
	LabelError    TelemetryLabel = "error"
	LabelPeerAddr TelemetryLabel = "peer_addr"
	LabelChannel  TelemetryLabel = "channel"
	LabelBackend  TelemetryLabel = "backend"
	LabelStream   TelemetryLabel = "stream"
)

// M builds a metrics label.
func (lab TelemetryLabel) M(val string) metrics.Label {
	return metrics.Label{Name: string(lab), Value: val}
}

// L builds a structured log attribute.
func (lab TelemetryLabel) L(val any) slog.Attr {
	return slog.Attr{
		Key:   string(lab),
		Value: slog.AnyValue(val),
	}
}
