// Package indexdemo measures the canonical two-predicate query
// (gender = 'Male' AND full_name LIKE 'F%') with and without the composite
// (gender, full_name) index and reports population statistics used to
// sanity-check the selectivity of the generated data.
package indexdemo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"persondir/internal/generator"
	"persondir/internal/platform/metrics"
	"persondir/pkg/domain"
)

// CompositeIndex is the name of the index the demonstrator manages.
const CompositeIndex = "idx_employees_gender_name"

// DefaultRepeats is how many timed executions each measurement takes the best of.
const DefaultRepeats = 3

// Measurement phases used for logs and metrics.
const (
	PhaseWithoutIndex = "without_index"
	PhaseWithIndex    = "with_index"
)

// ErrResultMismatch means the indexed query returned a different row set.
var ErrResultMismatch = errors.New("query results differ with and without index")

// Store is the read and administrative surface the demonstrator needs.
type Store interface {
	CountMatching(ctx context.Context, f domain.Filter) (int, error)
	FindMatching(ctx context.Context, f domain.Filter, limit int) ([]domain.Record, error)
	ExplainMatching(ctx context.Context, f domain.Filter) (domain.Plan, error)
	CreateIndex(ctx context.Context, spec domain.IndexSpec) error
	DropIndex(ctx context.Context, name string) error
	ListIndexes(ctx context.Context) ([]string, error)
	RefreshStatistics(ctx context.Context) error
	GenderCounts(ctx context.Context) ([]domain.GenderCount, error)
	LetterCounts(ctx context.Context) ([]domain.LetterCount, error)
}

// DefaultFilter is Male records whose name starts with the reserved prefix.
func DefaultFilter() domain.Filter {
	return domain.Filter{Gender: domain.GenderMale, NamePrefix: generator.DefaultReservedPrefix}
}

// CompositeSpec returns the (gender, full_name) index definition.
func CompositeSpec() domain.IndexSpec {
	return domain.IndexSpec{Name: CompositeIndex, Columns: []string{"gender", "full_name"}}
}

// Measurement is one explained and timed execution of the query.
type Measurement struct {
	Rows    int           `json:"rows"`
	Elapsed time.Duration `json:"elapsed_ns"`
	Plan    domain.Plan   `json:"plan"`
	ids     []int64
}

// Report compares the two measurements.
type Report struct {
	Filter  domain.Filter `json:"filter"`
	Before  Measurement   `json:"before"`
	After   Measurement   `json:"after"`
	Speedup float64       `json:"speedup"`
	// IndexUsed is true when the indexed plan names the composite index.
	IndexUsed bool `json:"index_used"`
}

// Demonstrator runs the before/after comparison against a Store.
type Demonstrator struct {
	store   Store
	filter  domain.Filter
	repeats int
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures a Demonstrator.
type Option func(*Demonstrator)

// WithFilter overrides DefaultFilter.
func WithFilter(f domain.Filter) Option {
	return func(d *Demonstrator) { d.filter = f }
}

// WithRepeats sets how many timed runs a measurement takes the best of.
func WithRepeats(n int) Option {
	return func(d *Demonstrator) {
		if n > 0 {
			d.repeats = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Demonstrator) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records query latency per phase.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Demonstrator) { d.metrics = m }
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(d *Demonstrator) {
		if t != nil {
			d.tracer = t
		}
	}
}

// New creates a Demonstrator.
func New(store Store, opts ...Option) (*Demonstrator, error) {
	if store == nil {
		return nil, errors.New("indexdemo: store is required")
	}
	d := &Demonstrator{
		store:   store,
		filter:  DefaultFilter(),
		repeats: DefaultRepeats,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.filter.Validate(); err != nil {
		return nil, err
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer("persondir/indexdemo")
	}
	return d, nil
}

// Run measures the query on an unindexed table, creates the composite index
// and measures again. The row sets must be identical.
func (d *Demonstrator) Run(ctx context.Context) (Report, error) {
	rep := Report{Filter: d.filter}

	if err := d.DropIndexes(ctx); err != nil {
		return rep, err
	}
	before, err := d.measure(ctx, PhaseWithoutIndex)
	if err != nil {
		return rep, err
	}
	rep.Before = before

	if err := d.EnsureIndex(ctx); err != nil {
		return rep, err
	}
	after, err := d.measure(ctx, PhaseWithIndex)
	if err != nil {
		return rep, err
	}
	rep.After = after

	if !slices.Equal(before.ids, after.ids) {
		return rep, fmt.Errorf("%w: %d rows before, %d rows after", ErrResultMismatch, before.Rows, after.Rows)
	}
	if after.Elapsed > 0 {
		rep.Speedup = float64(before.Elapsed) / float64(after.Elapsed)
	}
	rep.IndexUsed = after.Plan.UsesIndex && after.Plan.IndexName == CompositeIndex

	d.logger.Info("index demonstration complete",
		"rows", after.Rows,
		"before", before.Elapsed.String(),
		"after", after.Elapsed.String(),
		"speedup", rep.Speedup,
		"index_used", rep.IndexUsed,
	)
	return rep, nil
}

// EnsureIndex drops any prior composite index, creates it and refreshes
// planner statistics. Calling it repeatedly leaves exactly one index.
func (d *Demonstrator) EnsureIndex(ctx context.Context) error {
	spec := CompositeSpec()
	if err := d.store.DropIndex(ctx, spec.Name); err != nil {
		return fmt.Errorf("drop index %s: %w", spec.Name, err)
	}
	if err := d.store.CreateIndex(ctx, spec); err != nil {
		return fmt.Errorf("create index %s: %w", spec.Name, err)
	}
	if err := d.store.RefreshStatistics(ctx); err != nil {
		return fmt.Errorf("refresh statistics: %w", err)
	}
	d.logger.Info("composite index ready", "index", spec.Name, "columns", spec.Columns)
	return nil
}

// DropIndexes removes the composite index and refreshes statistics.
func (d *Demonstrator) DropIndexes(ctx context.Context) error {
	if err := d.store.DropIndex(ctx, CompositeIndex); err != nil {
		return fmt.Errorf("drop index %s: %w", CompositeIndex, err)
	}
	if err := d.store.RefreshStatistics(ctx); err != nil {
		return fmt.Errorf("refresh statistics: %w", err)
	}
	d.logger.Info("composite index dropped", "index", CompositeIndex)
	return nil
}

// Indexes lists the secondary indexes currently on the table.
func (d *Demonstrator) Indexes(ctx context.Context) ([]string, error) {
	return d.store.ListIndexes(ctx)
}

func (d *Demonstrator) measure(ctx context.Context, phase string) (m Measurement, err error) {
	ctx, span := d.tracer.Start(ctx, "indexdemo.measure", trace.WithAttributes(
		attribute.String("phase", phase),
		attribute.Int("repeats", d.repeats),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	plan, err := d.store.ExplainMatching(ctx, d.filter)
	if err != nil {
		return m, fmt.Errorf("explain %s: %w", phase, err)
	}
	m.Plan = plan

	var rows []domain.Record
	for i := 0; i < d.repeats; i++ {
		start := time.Now()
		rows, err = d.store.FindMatching(ctx, d.filter, 0)
		elapsed := time.Since(start)
		if err != nil {
			return m, fmt.Errorf("query %s: %w", phase, err)
		}
		d.metrics.ObserveQuery(phase, elapsed)
		if i == 0 || elapsed < m.Elapsed {
			m.Elapsed = elapsed
		}
	}
	m.Rows = len(rows)
	m.ids = make([]int64, len(rows))
	for i, r := range rows {
		m.ids[i] = r.ID
	}
	slices.Sort(m.ids)

	d.logger.Info("query measured",
		"phase", phase,
		"rows", m.Rows,
		"elapsed", m.Elapsed.String(),
		"full_scan", plan.FullScan,
		"uses_index", plan.UsesIndex,
		"index", plan.IndexName,
	)
	span.SetAttributes(attribute.Int("rows", m.Rows), attribute.Bool("uses_index", plan.UsesIndex))
	return m, nil
}
