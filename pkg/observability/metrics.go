package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "branchstat.requests.total"
	metricRequestDuration  = "branchstat.request.duration.seconds"
	metricErrorsTotal      = "branchstat.errors.total"
	metricInflightRequests = "branchstat.inflight.requests"

	attrOp     = "op"
	attrStatus = "status"
	attrReason = "reason"
)

// Request statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ReasonUnknown labels errors recorded without a reason.
const ReasonUnknown = "unknown"

// durationBucketBoundaries covers 1ms to 300s: a fresh virtual branch returns
// at once, a long-lived branch on a large repository walks for minutes.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300}

// REDMetrics holds the OTel instruments for Rate, Error, Duration metrics.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED metric instruments from the given meter.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	reqTotal, err := mt.Int64Counter(metricRequestsTotal,
		metric.WithDescription("Total number of requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestsTotal, err)
	}

	reqDuration, err := mt.Float64Histogram(metricRequestDuration,
		metric.WithDescription("Request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestDuration, err)
	}

	errTotal, err := mt.Int64Counter(metricErrorsTotal,
		metric.WithDescription("Total number of errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricErrorsTotal, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricInflightRequests,
		metric.WithDescription("Number of in-flight requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricInflightRequests, err)
	}

	return &REDMetrics{
		requestsTotal:    reqTotal,
		requestDuration:  reqDuration,
		errorsTotal:      errTotal,
		inflightRequests: inflight,
	}, nil
}

// Request is one finished unit of work: a branch pipeline or a tool call.
type Request struct {
	Op string

	// Kind is the branch kind ("virtual", "real"). Empty when the request
	// is not about one branch or the branch never resolved.
	Kind string

	Status   string
	Duration time.Duration

	// Reason classifies a failure, e.g. "unresolved" or "object_access".
	// Only recorded on the error counter.
	Reason string
}

// RecordRequest records a completed request.
func (rm *REDMetrics) RecordRequest(ctx context.Context, req Request) {
	base := []attribute.KeyValue{attribute.String(attrOp, req.Op)}
	if req.Kind != "" {
		base = append(base, attribute.String(attrKind, req.Kind))
	}

	attrs := metric.WithAttributes(append(base, attribute.String(attrStatus, req.Status))...)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, req.Duration.Seconds(), attrs)

	if req.Status != StatusError {
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = ReasonUnknown
	}

	rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(append(base, attribute.String(attrReason, reason))...))
}

// TrackInflight increments the in-flight gauge and returns a function to decrement it.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}
