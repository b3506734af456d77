package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricToolCallsTotal   = "blockaudit.mcp.calls.total"
	metricToolCallDuration = "blockaudit.mcp.call.duration.seconds"
	metricToolInflight     = "blockaudit.mcp.calls.inflight"

	attrTool   = "blockaudit.mcp.tool"
	attrStatus = "blockaudit.mcp.status"
)

// Tool call outcomes.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ToolMetrics holds rate, error and duration instruments for MCP tool calls.
type ToolMetrics struct {
	callsTotal   metric.Int64Counter
	callDuration metric.Float64Histogram
	inflight     metric.Int64UpDownCounter
}

// NewToolMetrics creates tool call instruments from the given meter.
func NewToolMetrics(mt metric.Meter) (*ToolMetrics, error) {
	calls, err := mt.Int64Counter(metricToolCallsTotal,
		metric.WithDescription("Total MCP tool calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricToolCallsTotal, err)
	}

	duration, err := mt.Float64Histogram(metricToolCallDuration,
		metric.WithDescription("MCP tool call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricToolCallDuration, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricToolInflight,
		metric.WithDescription("MCP tool calls in progress"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricToolInflight, err)
	}

	return &ToolMetrics{callsTotal: calls, callDuration: duration, inflight: inflight}, nil
}

// RecordCall records a finished call of tool with its status.
// Safe to call on a nil receiver (no-op).
func (tm *ToolMetrics) RecordCall(ctx context.Context, tool, status string, duration time.Duration) {
	if tm == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrTool, tool),
		attribute.String(attrStatus, status),
	)

	tm.callsTotal.Add(ctx, 1, attrs)
	tm.callDuration.Record(ctx, duration.Seconds(), attrs)
}

// TrackInflight increments the in-flight gauge for tool and returns the
// matching decrement. Safe to call on a nil receiver.
func (tm *ToolMetrics) TrackInflight(ctx context.Context, tool string) func() {
	if tm == nil {
		return func() {}
	}

	attrs := metric.WithAttributes(attribute.String(attrTool, tool))
	tm.inflight.Add(ctx, 1, attrs)

	return func() { tm.inflight.Add(ctx, -1, attrs) }
}
