// Command persondir manages the employees directory: schema setup, single
// record creation, unique listings, synthetic population loads and the
// composite index demonstration.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"persondir/internal/blob"
	"persondir/internal/directory"
	"persondir/internal/generator"
	"persondir/internal/indexdemo"
	"persondir/internal/loader"
	"persondir/internal/persistence"
	"persondir/internal/platform/config"
	"persondir/internal/platform/logger"
	"persondir/internal/platform/metrics"
	"persondir/internal/report"
	"persondir/pkg/domain"
)

const (
	defaultBase   = 1_000_000
	defaultTarget = 100

	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var (
	exitFunc   = os.Exit
	loadConfig = config.FromEnv
	clock      = time.Now
)

// Mode names; each may also be selected by its number.
const (
	modeCreateSchema = "create-schema"
	modeCreateRecord = "create-record"
	modeListUnique   = "list-unique"
	modeGenerate     = "generate"
	modeQuery        = "query"
	modeIndexes      = "indexes"
	modeStats        = "stats"
	modeReports      = "reports"
)

var modeNumbers = map[string]string{
	"1": modeCreateSchema,
	"2": modeCreateRecord,
	"3": modeListUnique,
	"4": modeGenerate,
	"5": modeQuery,
	"6": modeIndexes,
	"7": modeStats,
	"8": modeReports,
}

const usageText = `usage: persondir [flags] <mode> [args]

modes:
  1 | create-schema                               create the employees table
  2 | create-record "Full Name" YYYY-MM-DD GENDER  insert one record (GENDER is Male or Female)
  3 | list-unique                                 list unique (full_name, birth_date) records with age
  4 | generate                                    generate and load -base + -target records
  5 | query                                       compare the Male/F-prefix query without and with the index
  6 | indexes on|off                              create or drop the composite index
  7 | stats                                       population statistics by gender and first letter
  8 | reports [kind]                              list archived reports (load, indexdemo, stats)

examples:
  persondir create-schema
  persondir 2 "Ivanov Petr Sergeevich" 2009-07-12 Male
  persondir -base 1000000 -target 100 -seed 42 generate
  persondir indexes off && persondir query

flags:
`

type options struct {
	driver     string
	sqlitePath string
	dsn        string
	reports    string
	base       int
	target     int
	batch      int
	seed       uint64
	logLevel   string
}

type command struct {
	mode   string
	record domain.Record
	on     bool
	kind   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := flag.NewFlagSet("persondir", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = io.WriteString(stderr, usageText)
		fs.PrintDefaults()
	}
	fs.StringVar(&opts.driver, "driver", "", "storage driver: sqlite|postgres|memory (env PERSONDIR_STORAGE_DRIVER)")
	fs.StringVar(&opts.sqlitePath, "db", "", "sqlite database file (env PERSONDIR_SQLITE_PATH)")
	fs.StringVar(&opts.dsn, "dsn", "", "postgres DSN (env PERSONDIR_POSTGRES_DSN)")
	fs.StringVar(&opts.reports, "reports", "", "report archive driver: none|fs|s3|memory (env PERSONDIR_REPORT_DRIVER)")
	fs.IntVar(&opts.base, "base", defaultBase, "base population size for generate")
	fs.IntVar(&opts.target, "target", defaultTarget, "Male records with the reserved name prefix (generate, stats check)")
	fs.IntVar(&opts.batch, "batch", 0, "records per load transaction (env PERSONDIR_BATCH_SIZE, default 1000)")
	fs.Uint64Var(&opts.seed, "seed", 0, "random seed for generate; 0 picks one")
	fs.StringVar(&opts.logLevel, "log-level", "", "debug|info|warn|error (env PERSONDIR_LOG_LEVEL)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cmd, err := parseCommand(fs.Args(), clock())
	if err == nil && cmd.mode == modeGenerate && (opts.base < 0 || opts.target < 0 || opts.batch < 0) {
		err = errors.New("-base, -target and -batch must not be negative")
	}
	if err != nil {
		fmt.Fprintf(stderr, "persondir: %v\n\n", err)
		fs.Usage()
		return exitUsage
	}

	cfg, err := loadConfig()
	if err == nil {
		applyFlags(&cfg, opts)
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(stderr, "persondir: %v\n", err)
		return exitUsage
	}

	log := logger.New(stderr, cfg.LogLevel, logger.Format(cfg.LogFormat))
	if err := serve(ctx, cfg, opts, cmd, log, stdout); err != nil {
		log.Error("command failed", "mode", cmd.mode, "error", err)
		fmt.Fprintf(stderr, "persondir: %v\n", err)
		return exitFailure
	}
	return exitOK
}

func applyFlags(cfg *config.Config, opts options) {
	if opts.driver != "" {
		cfg.StorageDriver = opts.driver
	}
	if opts.sqlitePath != "" {
		cfg.SQLitePath = opts.sqlitePath
	}
	if opts.dsn != "" {
		cfg.PostgresDSN = opts.dsn
	}
	if opts.reports != "" {
		cfg.Report.Driver = opts.reports
	}
	if opts.batch > 0 {
		cfg.BatchSize = opts.batch
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
}

// parseCommand resolves the mode and its arguments without touching any
// store so that bad input has no side effects.
func parseCommand(args []string, now time.Time) (command, error) {
	if len(args) == 0 {
		return command{}, errors.New("mode is required")
	}
	mode := strings.ToLower(args[0])
	if name, ok := modeNumbers[mode]; ok {
		mode = name
	}
	rest := args[1:]
	cmd := command{mode: mode}

	switch mode {
	case modeCreateSchema, modeListUnique, modeGenerate, modeQuery, modeStats:
		if len(rest) != 0 {
			return command{}, fmt.Errorf("%s takes no arguments", mode)
		}
	case modeCreateRecord:
		if len(rest) != 3 {
			return command{}, fmt.Errorf("%s needs \"Full Name\" YYYY-MM-DD Male|Female", mode)
		}
		birth, err := domain.ParseBirthDate(rest[1])
		if err != nil {
			return command{}, err
		}
		gender, err := domain.ParseGender(rest[2])
		if err != nil {
			return command{}, err
		}
		cmd.record = domain.NewRecord(rest[0], birth, gender)
		if err := cmd.record.Validate(now); err != nil {
			return command{}, err
		}
	case modeIndexes:
		if len(rest) != 1 {
			return command{}, fmt.Errorf("%s needs on or off", mode)
		}
		switch strings.ToLower(rest[0]) {
		case "on":
			cmd.on = true
		case "off":
		default:
			return command{}, fmt.Errorf("%s: %q is not on or off", mode, rest[0])
		}
	case modeReports:
		if len(rest) > 1 {
			return command{}, fmt.Errorf("%s takes at most one kind", mode)
		}
		if len(rest) == 1 {
			cmd.kind = rest[0]
		}
	default:
		return command{}, fmt.Errorf("unknown mode %q", args[0])
	}
	return cmd, nil
}

// serve runs the command, alongside the metrics endpoint when configured.
func serve(ctx context.Context, cfg config.Config, opts options, cmd command, log *slog.Logger, stdout io.Writer) error {
	m := metrics.New()
	if cfg.MetricsAddr == "" {
		return run(ctx, cfg, opts, cmd, m, log, stdout)
	}

	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	g.Go(func() error {
		log.Info("metrics listening", "addr", cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-done:
		case <-gctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		defer close(done)
		return run(gctx, cfg, opts, cmd, m, log, stdout)
	})
	return g.Wait()
}

func run(ctx context.Context, cfg config.Config, opts options, cmd command, m *metrics.Metrics, log *slog.Logger, stdout io.Writer) (err error) {
	store, err := persistence.Open(ctx, cfg)
	if err != nil {
		return err
	}
	blobStore, err := blob.Open(ctx, cfg.Report)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("open report archive: %w", err)
	}
	svc, err := directory.New(store,
		directory.WithLogger(log),
		directory.WithMetrics(m),
		directory.WithArchive(report.New(blobStore, report.WithLogger(log))),
		directory.WithClock(clock),
	)
	if err != nil {
		_ = store.Close()
		return err
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close store: %w", cerr)
		}
	}()

	switch cmd.mode {
	case modeCreateSchema:
		if err := svc.CreateSchema(ctx); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "schema ready: table employees")
	case modeCreateRecord:
		rec, err := svc.CreateRecord(ctx, cmd.record)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "created #%d %s age %d\n", rec.ID, rec, rec.AgeOn(svc.Now()))
	case modeListUnique:
		records, err := svc.ListUnique(ctx)
		if err != nil {
			return err
		}
		return printRecords(stdout, records, svc.Now())
	case modeGenerate:
		return generate(ctx, svc, cfg, opts, stdout)
	case modeQuery:
		res, err := svc.RunIndexDemo(ctx)
		if err != nil {
			return err
		}
		printDemo(stdout, res)
	case modeIndexes:
		names, err := svc.ToggleIndexes(ctx, cmd.on)
		if err != nil {
			return err
		}
		state := "dropped"
		if cmd.on {
			state = "created"
		}
		fmt.Fprintf(stdout, "composite index %s %s; indexes now: [%s]\n", indexdemo.CompositeIndex, state, strings.Join(names, ", "))
	case modeStats:
		st, err := svc.Stats(ctx)
		if err != nil {
			return err
		}
		return printStats(stdout, st, opts.target)
	case modeReports:
		if blobStore == nil {
			fmt.Fprintln(stdout, "report archive disabled (set PERSONDIR_REPORT_DRIVER)")
			return nil
		}
		infos, err := svc.Reports(ctx, cmd.kind)
		if err != nil {
			return err
		}
		for _, info := range infos {
			fmt.Fprintf(stdout, "%s\t%d bytes\n", info.Key, info.Size)
		}
	}
	return nil
}

func generate(ctx context.Context, svc *directory.Service, cfg config.Config, opts options, stdout io.Writer) error {
	if err := svc.CreateSchema(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "generating %d base + %d target records (batch %d)\n", opts.base, opts.target, cfg.BatchSize)
	res, err := svc.Populate(ctx, directory.PopulateRequest{
		Request:   generator.Request{Base: opts.base, Target: opts.target},
		Seed:      opts.seed,
		BatchSize: cfg.BatchSize,
		Progress: func(p loader.Progress) {
			fmt.Fprintf(stdout, "  batch %d: %d/%d (%.1f%%), skipped %d\n", p.Batch+1, p.Attempted, p.Total, p.Percent, p.Skipped)
		},
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "inserted %d, skipped %d duplicates in %s (%.0f records/s)\n",
		res.Load.Inserted, res.Load.Skipped, res.Load.Elapsed.Round(time.Millisecond), res.Load.Throughput)
	if res.ReportKey != "" {
		fmt.Fprintf(stdout, "report: %s\n", res.ReportKey)
	}
	return nil
}

func printRecords(w io.Writer, records []domain.Record, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFULL NAME\tBIRTH DATE\tGENDER\tAGE")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", r.ID, r.FullName, r.BirthDate.Format(domain.DateLayout), r.Gender, r.AgeOn(now))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d unique records\n", len(records))
	return err
}

func printDemo(w io.Writer, res directory.IndexDemoResult) {
	fmt.Fprintf(w, "query: gender = %q AND full_name LIKE %q\n", res.Filter.Gender, res.Filter.Pattern())
	for _, phase := range []struct {
		name string
		m    indexdemo.Measurement
	}{{"without index", res.Before}, {"with index", res.After}} {
		fmt.Fprintf(w, "\n%s: %d rows in %s\n", phase.name, phase.m.Rows, phase.m.Elapsed)
		for _, line := range phase.m.Plan.Detail {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	fmt.Fprintf(w, "\nspeedup: %.2fx, index used: %s\n", res.Speedup, strconv.FormatBool(res.IndexUsed))
	if res.ReportKey != "" {
		fmt.Fprintf(w, "report: %s\n", res.ReportKey)
	}
}

// printStats warns when the reserved bucket holds fewer than target Male rows.
func printStats(w io.Writer, st indexdemo.Stats, target int) error {
	fmt.Fprintf(w, "total: %d, male ratio: %.3f\n", st.Total, st.MaleRatio)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LETTER\tTOTAL\tMALE\tMALE RATIO")
	for _, l := range st.Letters {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.3f\n", l.Letter, l.Total, l.Male, l.MaleRatio())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "matching %s%%: %d\n", st.Filter.NamePrefix, st.Matching)
	for _, warn := range st.Check(target) {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	return nil
}
