package health

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/leslieo2/go-health-probe/internal/constants"
	"github.com/leslieo2/go-health-probe/internal/observability"
	"github.com/leslieo2/go-health-probe/internal/sysmetrics"
)

// CheckObserver is notified after every dependency check
type CheckObserver func(service string, status ServiceStatus, elapsed time.Duration)

// Option configures a Reporter
type Option func(*Reporter)

// WithObserver registers a callback invoked after each check
func WithObserver(observer CheckObserver) Option {
	return func(r *Reporter) {
		r.observer = observer
	}
}

// WithTracer wraps every check in a child span
func WithTracer(tracer *observability.Tracer) Option {
	return func(r *Reporter) {
		r.tracer = tracer
	}
}

// Reporter builds health reports. It keeps no per-request state; only the
// metadata can change after construction, via SetMetadata.
type Reporter struct {
	sampler  sysmetrics.Sampler
	checkers []Checker
	timeout  time.Duration
	metadata atomic.Pointer[Metadata]
	observer CheckObserver
	tracer   *observability.Tracer
}

// NewReporter creates a Reporter that runs checkers in the given order, each
// bounded by timeout.
func NewReporter(sampler sysmetrics.Sampler, checkers []Checker, timeout time.Duration, meta Metadata, opts ...Option) *Reporter {
	r := &Reporter{
		sampler:  sampler,
		checkers: checkers,
		timeout:  timeout,
	}
	r.metadata.Store(&meta)

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// SetMetadata replaces the environment and version reported from now on
func (r *Reporter) SetMetadata(meta Metadata) {
	r.metadata.Store(&meta)
}

// Metadata returns the metadata currently reported
func (r *Reporter) Metadata() Metadata {
	return *r.metadata.Load()
}

// Report samples the host and runs every checker. It fails only when the
// system metrics cannot be sampled; dependency failures yield a degraded
// report instead.
func (r *Reporter) Report(ctx context.Context) (Report, error) {
	snapshot, err := r.sampler.Sample(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to sample system metrics: %w", err)
	}

	status := constants.StatusHealthy
	services := make(map[string]ServiceStatus, len(r.checkers))
	for _, checker := range r.checkers {
		result := r.run(ctx, checker)
		services[checker.Name()] = result
		if !result.Healthy() {
			status = constants.StatusDegraded
		}
	}

	meta := r.Metadata()
	return Report{
		Status:      status,
		Timestamp:   now(),
		Environment: meta.Environment,
		Version:     meta.Version,
		System:      sysmetrics.Format(snapshot),
		Services:    services,
	}, nil
}

func (r *Reporter) run(ctx context.Context, checker Checker) ServiceStatus {
	var span oteltrace.Span
	if r.tracer != nil {
		ctx, span = r.tracer.StartSpan(ctx, "check."+checker.Name(),
			attribute.String("service", checker.Name()))
		defer span.End()
	}

	start := time.Now()
	result := Evaluate(ctx, checker, r.timeout)
	elapsed := time.Since(start)

	if span != nil {
		span.SetAttributes(attribute.String("status", result.Status))
		if !result.Healthy() {
			span.SetStatus(codes.Error, result.Error)
		}
	}

	if r.observer != nil {
		r.observer(checker.Name(), result, elapsed)
	}

	return result
}
