// Package loader persists record sequences in fixed-size transactional
// batches. A batch rejected for a uniqueness violation is replayed one record
// at a time so the colliding rows are skipped and the rest are kept; any
// other store failure aborts the load.
package loader

//go:generate mockgen -source=loader.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"persondir/internal/platform/metrics"
	"persondir/pkg/domain"
)

// DefaultBatchSize is the number of records per transaction when the caller
// has no preference.
const DefaultBatchSize = 1000

// ErrInvalidBatchSize rejects non-positive batch sizes.
var ErrInvalidBatchSize = errors.New("batch size must be positive")

// Store is the write side of the employees store.
type Store interface {
	// InsertBatch writes all records in one transaction or none of them.
	InsertBatch(ctx context.Context, records []domain.Record) (int, error)
	// InsertOne writes one record in its own transaction.
	InsertOne(ctx context.Context, record domain.Record) (int64, error)
}

// Progress is emitted after every batch.
type Progress struct {
	Batch     int
	Attempted int
	Inserted  int
	Skipped   int
	Total     int
	Percent   float64
}

// Result summarises a completed load.
type Result struct {
	Attempted        int           `json:"attempted"`
	Inserted         int           `json:"inserted"`
	Skipped          int           `json:"skipped"`
	FallbackInserted int           `json:"fallback_inserted"`
	Batches          int           `json:"batches"`
	FallbackBatches  int           `json:"fallback_batches"`
	Elapsed          time.Duration `json:"elapsed_ns"`
	// Throughput is inserted records per second.
	Throughput float64 `json:"throughput"`
}

// BatchError aborts a load. Rows committed by earlier batches stay committed.
type BatchError struct {
	Batch     int
	Attempted int
	Inserted  int
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d failed after %d records inserted: %v", e.Batch, e.Inserted, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Loader writes batches to a Store.
type Loader struct {
	store    Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
	progress func(Progress)
	now      func() time.Time
	tracer   trace.Tracer
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics records batch outcomes and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loader) { l.metrics = m }
}

// WithProgress registers a callback invoked after every batch.
func WithProgress(fn func(Progress)) Option {
	return func(l *Loader) { l.progress = fn }
}

// WithClock replaces time.Now for elapsed-time accounting.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) {
		if now != nil {
			l.now = now
		}
	}
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(l *Loader) {
		if t != nil {
			l.tracer = t
		}
	}
}

// New creates a Loader writing to store.
func New(store Store, opts ...Option) (*Loader, error) {
	if store == nil {
		return nil, errors.New("loader: store is required")
	}
	l := &Loader{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.tracer == nil {
		l.tracer = otel.Tracer("persondir/loader")
	}
	return l, nil
}

// Load writes records in slices of batchSize. Empty input is a no-op.
func (l *Loader) Load(ctx context.Context, records []domain.Record, batchSize int) (Result, error) {
	if batchSize <= 0 {
		return Result{}, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, batchSize)
	}
	var res Result
	total := len(records)
	if total == 0 {
		return res, nil
	}

	started := l.now()
	l.logger.Info("loading records", "total", total, "batch_size", batchSize)

	for batch, offset := 0, 0; offset < total; batch, offset = batch+1, offset+batchSize {
		end := min(offset+batchSize, total)
		if err := ctx.Err(); err != nil {
			return l.finish(res, started), &BatchError{Batch: batch, Attempted: res.Attempted, Inserted: res.Inserted, Err: err}
		}
		if err := l.loadBatch(ctx, batch, records[offset:end], &res); err != nil {
			res = l.finish(res, started)
			l.logger.Error("load aborted",
				"batch", batch,
				"inserted", res.Inserted,
				"error", err,
			)
			return res, &BatchError{Batch: batch, Attempted: res.Attempted, Inserted: res.Inserted, Err: err}
		}
		l.report(Progress{
			Batch:     batch,
			Attempted: res.Attempted,
			Inserted:  res.Inserted,
			Skipped:   res.Skipped,
			Total:     total,
			Percent:   float64(res.Attempted) * 100 / float64(total),
		})
	}

	res = l.finish(res, started)
	l.logger.Info("load complete",
		"inserted", res.Inserted,
		"skipped", res.Skipped,
		"batches", res.Batches,
		"fallback_batches", res.FallbackBatches,
		"elapsed", res.Elapsed.String(),
		"records_per_second", res.Throughput,
	)
	return res, nil
}

func (l *Loader) finish(res Result, started time.Time) Result {
	res.Elapsed = l.now().Sub(started)
	if secs := res.Elapsed.Seconds(); secs > 0 {
		res.Throughput = float64(res.Inserted) / secs
	}
	return res
}

func (l *Loader) report(p Progress) {
	l.logger.Info("batch committed",
		"batch", p.Batch,
		"attempted", p.Attempted,
		"total", p.Total,
		"inserted", p.Inserted,
		"skipped", p.Skipped,
		"percent", fmt.Sprintf("%.1f", p.Percent),
	)
	if l.progress != nil {
		l.progress(p)
	}
}

// loadBatch commits one batch, replaying it per record on a uniqueness violation.
func (l *Loader) loadBatch(ctx context.Context, index int, batch []domain.Record, res *Result) (err error) {
	ctx, span := l.tracer.Start(ctx, "loader.batch", trace.WithAttributes(
		attribute.Int("batch.index", index),
		attribute.Int("batch.size", len(batch)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	began := l.now()
	res.Attempted += len(batch)
	res.Batches++

	n, err := l.store.InsertBatch(ctx, batch)
	if err == nil {
		res.Inserted += n
		l.metrics.ObserveBatch(metrics.OutcomeCommitted, n, 0, l.now().Sub(began))
		return nil
	}
	if !domain.IsDuplicate(err) {
		l.metrics.ObserveBatch(metrics.OutcomeFailed, 0, 0, l.now().Sub(began))
		return domain.WrapStore("insert batch", err)
	}

	l.logger.Warn("batch hit uniqueness constraint, inserting records individually",
		"batch", index,
		"size", len(batch),
	)
	span.AddEvent("fallback")
	res.FallbackBatches++
	inserted, skipped := 0, 0
	defer func() {
		res.Inserted += inserted
		res.FallbackInserted += inserted
		res.Skipped += skipped
	}()
	for _, rec := range batch {
		if _, err := l.store.InsertOne(ctx, rec); err != nil {
			if domain.IsDuplicate(err) {
				skipped++
				l.logger.Debug("skipping duplicate record",
					"full_name", rec.FullName,
					"birth_date", rec.BirthDate.Format(domain.DateLayout),
				)
				continue
			}
			l.metrics.ObserveBatch(metrics.OutcomeFailed, inserted, skipped, l.now().Sub(began))
			return domain.WrapStore("insert", err)
		}
		inserted++
	}
	l.metrics.ObserveBatch(metrics.OutcomeFallback, inserted, skipped, l.now().Sub(began))
	span.SetAttributes(attribute.Int("batch.skipped", skipped))
	return nil
}
