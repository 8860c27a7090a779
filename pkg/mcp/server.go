// Package mcp serves branch listing details to AI agents as a Model Context
// Protocol tool over stdio.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/branchstat/pkg/config"
	"github.com/Sumatoshi-tech/branchstat/pkg/observability"
)

const (
	serverName = "branchstat"

	mcpSpanPrefix  = "mcp."
	traceIDMetaKey = "trace_id"
)

// ServerDeps holds injectable dependencies. Zero-value fields use defaults.
type ServerDeps struct {
	// Logger is the structured logger. Nil uses slog.Default.
	Logger *slog.Logger

	// Metrics records RED metrics per tool call. Nil disables them.
	Metrics *observability.REDMetrics

	// BranchMetrics is handed to the engine for per-branch counters.
	BranchMetrics *observability.BranchMetrics

	// Tracer creates one span per tool call. Nil disables tracing.
	Tracer trace.Tracer

	// Config is the base configuration tool inputs are layered on. Nil uses
	// config.Default.
	Config *config.Config

	// Version is reported in the server implementation info.
	Version string
}

// Server wraps the MCP SDK server with the branchstat tools registered.
type Server struct {
	inner *mcpsdk.Server
	deps  ServerDeps

	mu    sync.RWMutex
	tools []string
}

// NewServer creates a server with every tool registered.
func NewServer(deps ServerDeps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	if deps.Config == nil {
		deps.Config = config.Default()
	}

	if deps.Version == "" {
		deps.Version = "dev"
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{Name: serverName, Version: deps.Version},
		&mcpsdk.ServerOptions{Logger: deps.Logger},
	)

	srv := &Server{inner: inner, deps: deps}

	srv.registerDetailsTool()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := append([]string(nil), s.tools...)
	sort.Strings(names)

	return names
}

// Run serves on stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport serves on transport until ctx is cancelled or the
// connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	if err := s.inner.Run(ctx, transport); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func (s *Server) registerDetailsTool() {
	handler := withMetrics(s.deps.Metrics, ToolNameDetails,
		withTracing(s.deps.Tracer, ToolNameDetails, s.handleDetails))

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameDetails,
		Description: detailsToolDescription,
	}, mcpsdk.ToolHandlerFor[DetailsInput, ToolOutput](handler))

	s.trackTool(ToolNameDetails)
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

type toolHandler[Input any] func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error)

// withTracing opens a span per call and appends trace_id to sampled results.
func withTracing[Input any](tracer trace.Tracer, toolName string, handler toolHandler[Input]) toolHandler[Input] {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		if err != nil || (result != nil && result.IsError) {
			span.SetStatus(codes.Error, "tool call failed")
		}

		if sc := span.SpanContext(); sc.IsSampled() && result != nil {
			result.Content = append(result.Content,
				&mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())})
		}

		return result, output, err
	}
}

// withMetrics records one RED request per call.
func withMetrics[Input any](metrics *observability.REDMetrics, toolName string, handler toolHandler[Input]) toolHandler[Input] {
	if metrics == nil {
		return handler
	}

	op := mcpSpanPrefix + toolName

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		done := metrics.TrackInflight(ctx, op)
		defer done()

		result, output, err := handler(ctx, req, input)

		status := observability.StatusOK
		if err != nil || (result != nil && result.IsError) {
			status = observability.StatusError
		}

		metrics.RecordRequest(ctx, observability.Request{
			Op:       op,
			Status:   status,
			Duration: time.Since(start),
			Reason:   callFailureReason(err, result),
		})

		return result, output, err
	}
}

// callFailureReason separates transport failures from tool-level errors.
func callFailureReason(err error, result *mcpsdk.CallToolResult) string {
	switch {
	case err != nil:
		return "handler"
	case result != nil && result.IsError:
		return "tool"
	default:
		return ""
	}
}
