// Package generator produces synthetic directory populations: a large base
// population plus a Male, reserved-prefix subset used to exercise the
// composite index. Every record is unique by (full_name, birth_date).
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"persondir/internal/ledger"
	"persondir/internal/platform/metrics"
	"persondir/pkg/domain"
)

const (
	// DefaultMaxAttemptFactor bounds draws per phase at factor × requested.
	DefaultMaxAttemptFactor = 3

	minAgeYears = 18
	maxAgeYears = 65

	progressEvery    = 100_000
	cancelCheckEvery = 10_000
)

// Phase names used in logs, metrics and PoolExhaustionError.
const (
	PhaseBase   = "base"
	PhaseTarget = "target"
)

// ErrInvalidRequest marks negative or otherwise unusable population counts.
var ErrInvalidRequest = errors.New("invalid generation request")

// Request sizes one generation run.
type Request struct {
	Base   int
	Target int
}

// Total is the number of records the run yields.
func (r Request) Total() int { return r.Base + r.Target }

// Generator draws records from name pools through a per-run ledger.
type Generator struct {
	rng           *rand.Rand
	pools         Pools
	prefix        string
	attemptFactor int
	now           func() time.Time
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock sets the reference "today" for the birth-date window.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithPools replaces the built-in name pools.
func WithPools(p Pools) Option {
	return func(g *Generator) { g.pools = p }
}

// WithReservedPrefix sets the surname initial of the target subset.
func WithReservedPrefix(prefix string) Option {
	return func(g *Generator) {
		if prefix != "" {
			g.prefix = prefix
		}
	}
}

// WithMaxAttemptFactor tunes the pool-exhaustion guard.
func WithMaxAttemptFactor(factor int) Option {
	return func(g *Generator) {
		if factor > 0 {
			g.attemptFactor = factor
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics records attempts and rejections.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// New creates a generator. A nil rng is replaced by a time-seeded source.
func New(rng *rand.Rand, opts ...Option) *Generator {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	g := &Generator{
		rng:           rng,
		pools:         DefaultPools(),
		prefix:        DefaultReservedPrefix,
		attemptFactor: DefaultMaxAttemptFactor,
		now:           time.Now,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewSeeded returns a generator whose output is fully determined by seed
// and the configured clock.
func NewSeeded(seed uint64, opts ...Option) *Generator {
	return New(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), opts...)
}

// Generate returns req.Base + req.Target unique records in shuffled order.
func (g *Generator) Generate(ctx context.Context, req Request) ([]domain.Record, error) {
	if req.Base < 0 || req.Target < 0 {
		return nil, fmt.Errorf("%w: base=%d target=%d", ErrInvalidRequest, req.Base, req.Target)
	}
	if err := g.checkPools(req); err != nil {
		return nil, err
	}

	today := domain.DateOf(g.now())
	seen := ledger.New(req.Total())
	out := make([]domain.Record, 0, req.Total())
	start := time.Now()

	g.logger.Info("generating population",
		"base", req.Base,
		"target", req.Target,
		"reserved_prefix", g.prefix,
	)

	out, err := g.fill(ctx, out, seen, today, PhaseBase, req.Base)
	if err != nil {
		return nil, err
	}
	out, err = g.fill(ctx, out, seen, today, PhaseTarget, req.Target)
	if err != nil {
		return nil, err
	}

	g.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })

	g.logger.Info("population generated",
		"records", len(out),
		"ledger_size", seen.Len(),
		"elapsed", time.Since(start).String(),
	)
	return out, nil
}

// fill appends count accepted records for phase, redrawing on ledger hits.
func (g *Generator) fill(ctx context.Context, out []domain.Record, seen *ledger.Ledger, today time.Time, phase string, count int) ([]domain.Record, error) {
	maxAttempts := g.attemptFactor * count
	produced, attempts := 0, 0
	for produced < count {
		if attempts >= maxAttempts {
			g.metrics.ObserveGeneration(phase, attempts, attempts-produced)
			return nil, &domain.PoolExhaustionError{Phase: phase, Requested: count, Produced: produced, Attempts: attempts}
		}
		attempts++
		if attempts%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		rec := g.draw(phase, today)
		if !seen.TryAdd(rec.FullName, rec.BirthDate) {
			continue
		}
		out = append(out, rec)
		produced++
		if produced%progressEvery == 0 {
			g.logger.Info("generation progress", "phase", phase, "produced", produced, "requested", count)
		}
	}
	g.metrics.ObserveGeneration(phase, attempts, attempts-produced)
	if rejected := attempts - produced; rejected > 0 {
		g.logger.Debug("ledger rejected duplicates", "phase", phase, "rejected", rejected)
	}
	return out, nil
}

func (g *Generator) draw(phase string, today time.Time) domain.Record {
	gender := domain.GenderMale
	surnames := g.pools.ReservedSurnames
	if phase == PhaseBase {
		surnames = g.pools.Surnames
		if g.rng.IntN(2) == 1 {
			gender = domain.GenderFemale
		}
	}
	name := pick(g.rng, surnames[gender]) + " " +
		pick(g.rng, g.pools.FirstNames[gender]) + " " +
		pick(g.rng, g.pools.MiddleNames[gender])
	return domain.NewRecord(name, randomBirthDate(g.rng, today), gender)
}

// randomBirthDate is uniform over the days between 65 and 18 years before today.
func randomBirthDate(rng *rand.Rand, today time.Time) time.Time {
	earliest := today.AddDate(-maxAgeYears, 0, 0)
	latest := today.AddDate(-minAgeYears, 0, 0)
	days := int(latest.Sub(earliest).Hours() / 24)
	return earliest.AddDate(0, 0, rng.IntN(days+1))
}

func pick(rng *rand.Rand, from []string) string {
	return from[rng.IntN(len(from))]
}

// checkPools rejects pools that cannot serve the request or that break the
// prefix partition between base and target draws.
func (g *Generator) checkPools(req Request) error {
	genders := []domain.Gender{domain.GenderMale, domain.GenderFemale}
	for _, gender := range genders {
		if req.Base > 0 {
			if len(g.pools.Surnames[gender]) == 0 || len(g.pools.FirstNames[gender]) == 0 || len(g.pools.MiddleNames[gender]) == 0 {
				return fmt.Errorf("%w: empty %s name pool", ErrInvalidRequest, gender)
			}
		}
		for _, s := range g.pools.Surnames[gender] {
			if strings.HasPrefix(s, g.prefix) {
				return fmt.Errorf("%w: base surname %q carries reserved prefix %q", ErrInvalidRequest, s, g.prefix)
			}
		}
		for _, s := range g.pools.ReservedSurnames[gender] {
			if !strings.HasPrefix(s, g.prefix) {
				return fmt.Errorf("%w: reserved surname %q lacks prefix %q", ErrInvalidRequest, s, g.prefix)
			}
		}
	}
	if req.Target > 0 {
		m := domain.GenderMale
		if len(g.pools.ReservedSurnames[m]) == 0 || len(g.pools.FirstNames[m]) == 0 || len(g.pools.MiddleNames[m]) == 0 {
			return fmt.Errorf("%w: empty reserved %s name pool", ErrInvalidRequest, m)
		}
	}
	return nil
}
