package branches

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/branchstat/pkg/diffstat"
	"github.com/Sumatoshi-tech/branchstat/pkg/gitlib"
	"github.com/Sumatoshi-tech/branchstat/pkg/observability"
	"github.com/Sumatoshi-tech/branchstat/pkg/revgraph"
)

const (
	// tracerName is the OTel tracer name used when none is configured.
	tracerName = "branchstat"

	// opBranchDetails labels RED metrics for one branch pipeline.
	opBranchDetails = "branch.details"

	// DefaultTarget is the integration branch real branches fall back to.
	DefaultTarget = "origin/main"
)

// Config controls how branches are measured.
type Config struct {
	// Target is the integration branch, e.g. "origin/main".
	Target string
	// Strategy chooses the base of real branches.
	Strategy BaseStrategy
	// Remotes are searched for remote-tracking branches, e.g. ["origin"].
	Remotes []string
	// Workers bounds parallel branch pipelines. Zero means runtime.NumCPU().
	Workers int
}

// Range is the commit range measured for a branch: everything reachable
// from Tip and not from Base. BaseRef names what Base was computed against.
type Range struct {
	Tip     gitlib.Hash
	Base    gitlib.Hash
	BaseRef string
}

// Assembler computes listing details. It holds no mutable state and may be
// shared; each request runs its branches independently.
type Assembler struct {
	commits  revgraph.CommitSource
	diffs    diffstat.DiffSource
	refs     RefSource
	resolver *Resolver
	cfg      Config

	logger  *slog.Logger
	tracer  trace.Tracer
	red     *observability.REDMetrics
	metrics *observability.BranchMetrics
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// WithTracer sets the tracer. Defaults to the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(a *Assembler) {
		a.tracer = tracer
	}
}

// WithMetrics records each branch pipeline as a RED request.
func WithMetrics(red *observability.REDMetrics) Option {
	return func(a *Assembler) {
		a.red = red
	}
}

// WithBranchMetrics records per-branch commit and line totals.
func WithBranchMetrics(metrics *observability.BranchMetrics) Option {
	return func(a *Assembler) {
		a.metrics = metrics
	}
}

// NewAssembler wires the engine to its collaborators. virtual may be nil.
func NewAssembler(
	commits revgraph.CommitSource,
	diffs diffstat.DiffSource,
	refs RefSource,
	virtual VirtualBranches,
	cfg Config,
	opts ...Option,
) *Assembler {
	if cfg.Strategy == "" {
		cfg.Strategy = DefaultBaseStrategy
	}

	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	a := &Assembler{
		commits:  commits,
		diffs:    diffs,
		refs:     refs,
		resolver: NewResolver(refs, virtual, cfg.Remotes),
		cfg:      cfg,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Config returns the effective configuration.
func (a *Assembler) Config() Config {
	return a.cfg
}

type outcome struct {
	details Details
	err     error
}

// ListingDetails computes details for every name. Names that fail (unknown
// branch, unreadable objects, diff errors) are reported in Failures and do
// not affect the others. Duplicate names are measured once.
//
// The returned error is non-nil only when ctx is done. Output order is not
// defined; use Report.SortByName.
func (a *Assembler) ListingDetails(ctx context.Context, names []string) (*Report, error) {
	ctx, span := a.tracer.Start(ctx, "branchstat.listing_details",
		trace.WithAttributes(
			attribute.Int("branch.requested", len(names)),
			attribute.String("branch.strategy", a.cfg.Strategy.String()),
		))
	defer span.End()

	report := &Report{Details: []Details{}, Failures: []Failure{}}

	var unique []string

	seen := make(map[string]struct{}, len(names))

	for _, raw := range names {
		name, err := NormalizeName(raw)
		if err != nil {
			report.Failures = append(report.Failures, Failure{Name: raw, Err: err})

			continue
		}

		if _, dup := seen[name]; dup {
			continue
		}

		seen[name] = struct{}{}
		unique = append(unique, name)
	}

	target := sync.OnceValues(func() (gitlib.Hash, error) {
		return a.resolveTarget(ctx)
	})

	outcomes := make([]outcome, len(unique))

	var group errgroup.Group

	group.SetLimit(a.cfg.Workers)

	for i, name := range unique {
		group.Go(func() error {
			details, err := a.branchDetails(ctx, name, target)
			outcomes[i] = outcome{details: details, err: err}

			// Failures stay with their branch; siblings keep running.
			return nil
		})
	}

	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancelled")

		return nil, fmt.Errorf("listing details: %w", err)
	}

	for i, result := range outcomes {
		if result.err != nil {
			report.Failures = append(report.Failures, Failure{Name: unique[i], Err: result.err})

			continue
		}

		report.Details = append(report.Details, result.details)
	}

	span.SetAttributes(
		attribute.Int("branch.succeeded", len(report.Details)),
		attribute.Int("branch.failed", len(report.Failures)),
	)

	if len(report.Failures) > 0 {
		span.SetStatus(codes.Error, "some branches failed")
	}

	a.logger.DebugContext(ctx, "listing details complete",
		"requested", len(names), "succeeded", len(report.Details), "failed", len(report.Failures))

	return report, nil
}

// BranchDetails computes details for one branch.
func (a *Assembler) BranchDetails(ctx context.Context, name string) (Details, error) {
	report, err := a.ListingDetails(ctx, []string{name})
	if err != nil {
		return Details{}, err
	}

	if len(report.Failures) > 0 {
		return Details{}, report.Failures[0]
	}

	return report.Details[0], nil
}

// Resolve maps a name to a branch reference.
func (a *Assembler) Resolve(ctx context.Context, name string) (Ref, error) {
	return a.resolver.Resolve(ctx, name)
}

// Range returns the commit range measured for ref.
//
// Virtual branches run from their head down to their integration point.
// Real branches run from their tip down to the merge base with the tracking
// ref (StrategyPreferUpstream, when one exists) or with the target branch.
// Without a merge base the whole history of the tip is measured.
func (a *Assembler) Range(ctx context.Context, ref Ref) (Range, error) {
	return a.plan(ctx, ref, func() (gitlib.Hash, error) { return a.resolveTarget(ctx) })
}

func (a *Assembler) plan(ctx context.Context, ref Ref, target func() (gitlib.Hash, error)) (Range, error) {
	if ref.Kind == KindVirtual {
		return Range{Tip: ref.Head, Base: ref.IntegrationPoint, BaseRef: "integration point"}, nil
	}

	against, baseRef := ref.UpstreamTip, ref.Upstream

	if a.cfg.Strategy == StrategyTarget || !ref.HasUpstream() {
		tip, err := target()
		if err != nil {
			return Range{}, err
		}

		against, baseRef = tip, a.cfg.Target
	}

	base, ok, err := revgraph.MergeBase(ctx, a.commits, ref.Tip, against)
	if err != nil {
		return Range{}, fmt.Errorf("merge base with %s: %w", baseRef, err)
	}

	if !ok {
		base = gitlib.Hash{}
	}

	return Range{Tip: ref.Tip, Base: base, BaseRef: baseRef}, nil
}

func (a *Assembler) resolveTarget(ctx context.Context) (gitlib.Hash, error) {
	if a.cfg.Target == "" {
		return gitlib.Hash{}, fmt.Errorf("%w: none configured", ErrNoTarget)
	}

	tip, ok, err := a.refs.ResolveRef(ctx, a.cfg.Target)
	if err != nil {
		return gitlib.Hash{}, fmt.Errorf("%w: %s: %w", ErrNoTarget, a.cfg.Target, err)
	}

	if !ok {
		return gitlib.Hash{}, fmt.Errorf("%w: %s", ErrNoTarget, a.cfg.Target)
	}

	return tip, nil
}

func (a *Assembler) branchDetails(ctx context.Context, name string, target func() (gitlib.Hash, error)) (Details, error) {
	start := time.Now()

	ctx, span := a.tracer.Start(ctx, "branchstat.branch",
		trace.WithAttributes(attribute.String("branch.name", name)))
	defer span.End()

	if a.red != nil {
		done := a.red.TrackInflight(ctx, opBranchDetails)
		defer done()
	}

	details, ref, err := a.measure(ctx, name, target)

	status := observability.StatusOK
	if err != nil {
		status = observability.StatusError

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.logger.WarnContext(ctx, "branch details failed", "branch", name, "error", err)
	} else {
		span.SetAttributes(
			attribute.String("branch.kind", ref.Kind.String()),
			attribute.Int("branch.commits", details.NumberOfCommits),
		)
		a.logger.DebugContext(ctx, "branch details",
			"branch", name, "kind", ref.Kind.String(), "commits", details.NumberOfCommits)
		a.metrics.RecordBranch(ctx, observability.BranchStats{
			Kind:         ref.Kind.String(),
			Commits:      int64(details.NumberOfCommits),
			LinesAdded:   details.LinesAdded,
			LinesRemoved: details.LinesRemoved,
		})
	}

	if a.red != nil {
		req := observability.Request{
			Op:       opBranchDetails,
			Status:   status,
			Duration: time.Since(start),
			Reason:   failureReason(err),
		}
		if ref.Name != "" {
			req.Kind = ref.Kind.String()
		}

		a.red.RecordRequest(ctx, req)
	}

	return details, err
}

// failureReason maps a branch pipeline error onto a short metric label.
func failureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnresolvedBranch), errors.Is(err, ErrInvalidIdentity):
		return "unresolved"
	case errors.Is(err, ErrNoTarget):
		return "no_target"
	case errors.Is(err, ErrUnknownStrategy):
		return "strategy"
	case errors.Is(err, revgraph.ErrObjectAccess):
		return "object_access"
	case errors.Is(err, diffstat.ErrDiffComputation):
		return "diff"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return observability.ReasonUnknown
	}
}

func (a *Assembler) measure(ctx context.Context, name string, target func() (gitlib.Hash, error)) (Details, Ref, error) {
	ref, err := a.resolver.Resolve(ctx, name)
	if err != nil {
		return Details{}, Ref{}, err
	}

	rng, err := a.plan(ctx, ref, target)
	if err != nil {
		return Details{}, ref, err
	}

	agg := diffstat.NewAggregator(a.commits, a.diffs)

	err = revgraph.NewWalker(a.commits, rng.Tip, rng.Base).ForEach(ctx, func(commit revgraph.Commit) error {
		return agg.Add(ctx, commit)
	})
	if err != nil {
		return Details{}, ref, err
	}

	stats := agg.Stats()

	return Details{
		Name:            ref.Name,
		LinesAdded:      stats.LinesAdded,
		LinesRemoved:    stats.LinesRemoved,
		NumberOfFiles:   stats.NumberOfFiles,
		NumberOfCommits: stats.NumberOfCommits,
		Authors:         stats.Authors,
	}, ref, nil
}
