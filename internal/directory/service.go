// Package directory orchestrates the person directory: schema setup,
// single-record creation, listings, bulk population and the composite
// index demonstration. Reports from population and index runs are
// archived when an archive is configured.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"persondir/internal/blob"
	"persondir/internal/generator"
	"persondir/internal/indexdemo"
	"persondir/internal/loader"
	"persondir/internal/platform/metrics"
	"persondir/internal/report"
	"persondir/pkg/domain"
)

// Service exposes the directory operations over a domain.Store.
type Service struct {
	store   domain.Store
	archive *report.Archive
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics is passed through to the generator, loader and demonstrator.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithArchive enables report archiving.
func WithArchive(a *report.Archive) Option {
	return func(s *Service) { s.archive = a }
}

// WithClock sets the reference clock for validation and ages.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Service over store.
func New(store domain.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("directory: store is required")
	}
	s := &Service{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Now returns the service clock reading, used for age computation.
func (s *Service) Now() time.Time { return s.now() }

// Close releases the underlying store.
func (s *Service) Close() error { return s.store.Close() }

// CreateSchema verifies connectivity and applies the employees DDL.
// Running it against an existing schema changes nothing.
func (s *Service) CreateSchema(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return err
	}
	if err := s.store.ApplySchema(ctx); err != nil {
		return err
	}
	s.logger.Info("schema ready", "dialect", s.store.Capabilities().Dialect)
	return nil
}

// CreateRecord validates rec and inserts it. The returned record carries
// the assigned id.
func (s *Service) CreateRecord(ctx context.Context, rec domain.Record) (domain.Record, error) {
	rec = domain.NewRecord(rec.FullName, rec.BirthDate, rec.Gender)
	if err := rec.Validate(s.now()); err != nil {
		return domain.Record{}, err
	}
	id, err := s.insertChecked(ctx, rec)
	if err != nil {
		return domain.Record{}, err
	}
	rec.ID = id
	s.logger.Info("record created", "id", id, "full_name", rec.FullName)
	return rec, nil
}

// insertChecked is the one single-record write path. The existence check
// gives a clear error for the common case; the unique constraint still
// decides races.
func (s *Service) insertChecked(ctx context.Context, rec domain.Record) (int64, error) {
	exists, err := s.store.Exists(ctx, rec.FullName, rec.BirthDate)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, &domain.DuplicateError{FullName: rec.FullName, BirthDate: rec.BirthDate, Source: domain.DuplicateFromStore}
	}
	return s.store.InsertOne(ctx, rec)
}

// checkedWriter routes the loader's per-record fallback through insertChecked.
type checkedWriter struct{ s *Service }

func (w checkedWriter) InsertBatch(ctx context.Context, records []domain.Record) (int, error) {
	return w.s.store.InsertBatch(ctx, records)
}

func (w checkedWriter) InsertOne(ctx context.Context, rec domain.Record) (int64, error) {
	return w.s.insertChecked(ctx, rec)
}

// ListUnique returns one record per (full_name, birth_date) ordered by name.
func (s *Service) ListUnique(ctx context.Context) ([]domain.Record, error) {
	return s.store.ListUnique(ctx)
}

// PopulateRequest sizes a generate-and-load run. Seed 0 draws a random seed.
type PopulateRequest struct {
	generator.Request
	Seed      uint64
	BatchSize int
	Progress  func(loader.Progress)
}

// PopulateResult is the outcome of Populate and the payload of its report.
type PopulateResult struct {
	Base      int           `json:"base"`
	Target    int           `json:"target"`
	Seed      uint64        `json:"seed,omitempty"`
	BatchSize int           `json:"batch_size"`
	Generated int           `json:"generated"`
	Load      loader.Result `json:"load"`
	Error     string        `json:"error,omitempty"`
	// ReportKey is where the run was archived, empty when archiving is off.
	ReportKey string `json:"-"`
}

// Populate generates req.Base + req.Target unique records and loads them.
// Partial loads are archived along with the error that stopped them.
func (s *Service) Populate(ctx context.Context, req PopulateRequest) (PopulateResult, error) {
	res := PopulateResult{Base: req.Base, Target: req.Target, Seed: req.Seed, BatchSize: req.BatchSize}
	if req.BatchSize <= 0 {
		return res, fmt.Errorf("%w: got %d", loader.ErrInvalidBatchSize, req.BatchSize)
	}

	genOpts := []generator.Option{
		generator.WithLogger(s.logger),
		generator.WithMetrics(s.metrics),
		generator.WithClock(s.now),
	}
	var gen *generator.Generator
	if req.Seed != 0 {
		gen = generator.NewSeeded(req.Seed, genOpts...)
	} else {
		gen = generator.New(nil, genOpts...)
	}
	records, err := gen.Generate(ctx, req.Request)
	if err != nil {
		return res, fmt.Errorf("generate: %w", err)
	}
	res.Generated = len(records)

	l, err := loader.New(checkedWriter{s},
		loader.WithLogger(s.logger),
		loader.WithMetrics(s.metrics),
		loader.WithProgress(req.Progress),
	)
	if err != nil {
		return res, err
	}
	res.Load, err = l.Load(ctx, records, req.BatchSize)
	if err != nil {
		res.Error = err.Error()
	}
	res.ReportKey = s.archiveReport(ctx, report.KindLoad, res)
	if err != nil {
		return res, fmt.Errorf("load: %w", err)
	}
	return res, nil
}

// Demonstrator returns an index demonstrator bound to the store.
func (s *Service) Demonstrator(opts ...indexdemo.Option) (*indexdemo.Demonstrator, error) {
	base := []indexdemo.Option{indexdemo.WithLogger(s.logger), indexdemo.WithMetrics(s.metrics)}
	return indexdemo.New(s.store, append(base, opts...)...)
}

// IndexDemoResult pairs the demonstration report with its archive key.
type IndexDemoResult struct {
	indexdemo.Report
	ReportKey string `json:"-"`
}

// RunIndexDemo measures the canonical query without and with the composite
// index and archives the comparison.
func (s *Service) RunIndexDemo(ctx context.Context, opts ...indexdemo.Option) (IndexDemoResult, error) {
	d, err := s.Demonstrator(opts...)
	if err != nil {
		return IndexDemoResult{}, err
	}
	rep, err := d.Run(ctx)
	if err != nil {
		return IndexDemoResult{Report: rep}, err
	}
	return IndexDemoResult{Report: rep, ReportKey: s.archiveReport(ctx, report.KindIndexDemo, rep)}, nil
}

// ToggleIndexes creates (on) or drops (off) the composite index and
// returns the indexes present afterwards.
func (s *Service) ToggleIndexes(ctx context.Context, on bool) ([]string, error) {
	d, err := s.Demonstrator()
	if err != nil {
		return nil, err
	}
	if on {
		err = d.EnsureIndex(ctx)
	} else {
		err = d.DropIndexes(ctx)
	}
	if err != nil {
		return nil, err
	}
	return d.Indexes(ctx)
}

// Stats aggregates the population and archives the snapshot.
func (s *Service) Stats(ctx context.Context) (indexdemo.Stats, error) {
	d, err := s.Demonstrator()
	if err != nil {
		return indexdemo.Stats{}, err
	}
	st, err := d.Statistics(ctx)
	if err != nil {
		return st, err
	}
	s.archiveReport(ctx, report.KindStats, st)
	return st, nil
}

// Reports lists archived reports of kind, or all kinds when kind is empty.
func (s *Service) Reports(ctx context.Context, kind string) ([]blob.Info, error) {
	return s.archive.List(ctx, kind)
}

// archiveReport stores payload and returns its key. Archive failures are
// logged and do not fail the run that produced the report.
func (s *Service) archiveReport(ctx context.Context, kind string, payload any) string {
	if !s.archive.Enabled() {
		return ""
	}
	info, err := s.archive.Save(ctx, kind, payload)
	if err != nil {
		s.logger.Warn("report not archived", "kind", kind, "error", err)
		return ""
	}
	return info.Key
}
