// Package mcp exposes the block audit as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/blockaudit/pkg/audit"
	"github.com/Sumatoshi-tech/blockaudit/pkg/observability"
)

const (
	serverName = "blockaudit"

	toolCount = 2
)

// ServerDeps holds the dependencies of the MCP server.
// Zero-value optional fields disable the matching feature.
type ServerDeps struct {
	// Audit wires audit tool calls to a document store and cursor store.
	Audit audit.Options

	// Version is reported to clients.
	Version string

	Logger *slog.Logger

	// Metrics records per-tool calls. Nil disables it.
	Metrics *observability.ToolMetrics

	// Tracer creates a span per tool call. Nil disables it.
	Tracer trace.Tracer
}

// Server wraps the MCP SDK server with the blockaudit tools.
type Server struct {
	inner *mcpsdk.Server
	tools []string

	// auditMu serializes audits so concurrent calls never share a cursor.
	auditMu sync.Mutex
	audit   audit.Options

	metrics *observability.ToolMetrics
	tracer  trace.Tracer
}

// NewServer creates a server with every tool registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	version := deps.Version
	if version == "" {
		version = "dev"
	}

	srv := &Server{
		inner:   mcpsdk.NewServer(&mcpsdk.Implementation{Name: serverName, Version: version}, opts),
		tools:   make([]string, 0, toolCount),
		audit:   deps.Audit,
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
	}

	if srv.audit.Logger == nil {
		srv.audit.Logger = deps.Logger
	}

	addTool[AuditInput](srv, ToolNameAudit, auditToolDescription, srv.handleAudit)
	addTool[ParseInput](srv, ToolNameParse, parseToolDescription, handleParse)

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	names := slices.Clone(s.tools)
	slices.Sort(names)

	return names
}

// Run serves on stdio until ctx is canceled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport serves on transport until ctx is canceled or the
// connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

type toolHandler[In any] func(context.Context, *mcpsdk.CallToolRequest, In) (*mcpsdk.CallToolResult, ToolOutput, error)

func addTool[In any](s *Server, name, description string, handler toolHandler[In]) {
	wrapped := withMetrics(s.metrics, name, withTracing(s.tracer, name, handler))

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{Name: name, Description: description},
		mcpsdk.ToolHandlerFor[In, ToolOutput](wrapped))

	s.tools = append(s.tools, name)
}

const traceIDPrefix = "trace_id="

// withTracing opens a span per call and appends the trace id to sampled results.
func withTracing[In any](tracer trace.Tracer, tool string, handler toolHandler[In]) toolHandler[In] {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, "blockaudit.mcp."+tool,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("blockaudit.mcp.tool", tool)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		if sc := span.SpanContext(); sc.IsSampled() && result != nil {
			result.Content = append(result.Content, &mcpsdk.TextContent{Text: traceIDPrefix + sc.TraceID().String()})
		}

		return result, output, err
	}
}

func withMetrics[In any](metrics *observability.ToolMetrics, tool string, handler toolHandler[In]) toolHandler[In] {
	if metrics == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		done := metrics.TrackInflight(ctx, tool)
		defer done()

		result, output, err := handler(ctx, req, input)

		status := observability.StatusOK
		if err != nil || (result != nil && result.IsError) {
			status = observability.StatusError
		}

		metrics.RecordCall(ctx, tool, status, time.Since(start))

		return result, output, err
	}
}
