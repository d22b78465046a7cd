package directory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persondir/internal/blob"
	"persondir/internal/generator"
	"persondir/internal/indexdemo"
	"persondir/internal/infra/persistence/memory"
	"persondir/internal/infra/persistence/sqlite"
	"persondir/internal/loader"
	"persondir/internal/report"
	"persondir/pkg/domain"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func newService(t *testing.T, store domain.Store, archive *report.Archive) *Service {
	t.Helper()
	svc, err := New(store, WithClock(clock), WithArchive(archive))
	require.NoError(t, err)
	return svc
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestCreateSchemaIsIdempotent(t *testing.T) {
	svc := newService(t, memory.NewStore(), nil)
	require.NoError(t, svc.CreateSchema(context.Background()))
	require.NoError(t, svc.CreateSchema(context.Background()))
}

func TestCreateRecord(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newService(t, store, nil)

	created, err := svc.CreateRecord(ctx, domain.Record{FullName: "  Ivanov Petr Sergeevich ", BirthDate: day(1990, 5, 15), Gender: domain.GenderMale})
	require.NoError(t, err)
	assert.True(t, created.Persisted())
	assert.Equal(t, "Ivanov Petr Sergeevich", created.FullName)
	assert.Equal(t, 34, created.AgeOn(svc.Now()))

	_, err = svc.CreateRecord(ctx, domain.Record{FullName: "Ivanov Petr Sergeevich", BirthDate: day(1990, 5, 15), Gender: domain.GenderFemale})
	require.ErrorIs(t, err, domain.ErrDuplicate)
	var dup *domain.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, domain.DuplicateFromStore, dup.Source)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCreateRecordRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newService(t, store, nil)

	_, err := svc.CreateRecord(ctx, domain.Record{FullName: "", BirthDate: day(2030, 1, 1), Gender: "male"})
	require.ErrorIs(t, err, domain.ErrValidation)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Reasons, 3)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// blindStore hides existing rows from Exists so the constraint decides.
type blindStore struct{ *memory.Store }

func (blindStore) Exists(context.Context, string, time.Time) (bool, error) { return false, nil }

func TestCreateRecordConstraintDecidesRace(t *testing.T) {
	ctx := context.Background()
	store := blindStore{memory.NewStore()}
	rec := domain.NewRecord("Petrova Anna Ivanovna", day(1985, 1, 2), domain.GenderFemale)
	_, err := store.InsertOne(ctx, rec)
	require.NoError(t, err)

	svc := newService(t, store, nil)
	_, err = svc.CreateRecord(ctx, rec)
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestListUniqueOrderedByName(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.NewStore(), nil)
	for _, r := range []domain.Record{
		{FullName: "Sokolov Denis Ilyich", BirthDate: day(2001, 9, 9), Gender: domain.GenderMale},
		{FullName: "Abramova Olga Ivanovna", BirthDate: day(1979, 1, 5), Gender: domain.GenderFemale},
		{FullName: "Fedorov Ivan Petrovich", BirthDate: day(1990, 7, 1), Gender: domain.GenderMale},
	} {
		_, err := svc.CreateRecord(ctx, r)
		require.NoError(t, err)
	}
	list, err := svc.ListUnique(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Abramova Olga Ivanovna", list[0].FullName)
	assert.Equal(t, "Fedorov Ivan Petrovich", list[1].FullName)
	assert.Equal(t, "Sokolov Denis Ilyich", list[2].FullName)
}

func TestPopulateLoadsAndArchives(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	archive := report.New(blob.NewMemory())
	svc := newService(t, store, archive)

	var progress []loader.Progress
	res, err := svc.Populate(ctx, PopulateRequest{
		Request:   generator.Request{Base: 500, Target: 50},
		Seed:      7,
		BatchSize: 100,
		Progress:  func(p loader.Progress) { progress = append(progress, p) },
	})
	require.NoError(t, err)
	assert.Equal(t, 550, res.Generated)
	assert.Equal(t, 550, res.Load.Inserted)
	assert.Zero(t, res.Load.Skipped)
	assert.Len(t, progress, 6)
	require.NotEmpty(t, res.ReportKey)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 550, n)

	env, err := archive.Load(ctx, res.ReportKey)
	require.NoError(t, err)
	assert.Equal(t, report.KindLoad, env.Kind)
	var archived PopulateResult
	require.NoError(t, json.Unmarshal(env.Payload, &archived))
	assert.Equal(t, 550, archived.Load.Inserted)
	assert.Equal(t, uint64(7), archived.Seed)
}

func TestPopulateTwiceSkipsEverything(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.NewStore(), nil)
	req := PopulateRequest{Request: generator.Request{Base: 200, Target: 20}, Seed: 11, BatchSize: 50}

	_, err := svc.Populate(ctx, req)
	require.NoError(t, err)
	again, err := svc.Populate(ctx, req)
	require.NoError(t, err)
	assert.Zero(t, again.Load.Inserted)
	assert.Equal(t, 220, again.Load.Skipped)
	assert.Equal(t, 5, again.Load.FallbackBatches)
	assert.Empty(t, again.ReportKey, "archiving disabled")
}

func TestPopulateArchivesPartialLoad(t *testing.T) {
	ctx := context.Background()
	calls := 0
	store := memory.NewStore(memory.WithFault(func(op memory.Op, _ []domain.Record) error {
		if op != memory.OpInsertBatch {
			return nil
		}
		calls++
		if calls == 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	}))
	archive := report.New(blob.NewMemory())
	svc := newService(t, store, archive)

	res, err := svc.Populate(ctx, PopulateRequest{Request: generator.Request{Base: 90, Target: 10}, Seed: 3, BatchSize: 25})
	require.Error(t, err)
	var be *loader.BatchError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 2, be.Batch)
	assert.Equal(t, 50, res.Load.Inserted)
	assert.Contains(t, res.Error, "connection reset")

	reports, err := svc.Reports(ctx, report.KindLoad)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestPopulateRejectsNegativeCounts(t *testing.T) {
	svc := newService(t, memory.NewStore(), nil)
	_, err := svc.Populate(context.Background(), PopulateRequest{Request: generator.Request{Base: -1}, BatchSize: 10})
	assert.ErrorIs(t, err, generator.ErrInvalidRequest)
}

func TestPopulateRejectsNonPositiveBatchSize(t *testing.T) {
	store := memory.NewStore()
	svc := newService(t, store, nil)
	for _, size := range []int{0, -5} {
		_, err := svc.Populate(context.Background(), PopulateRequest{
			Request:   generator.Request{Base: 10, Target: 1},
			Seed:      1,
			BatchSize: size,
		})
		assert.ErrorIs(t, err, loader.ErrInvalidBatchSize, "batch size %d", size)
	}
	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunIndexDemoArchivesReport(t *testing.T) {
	ctx := context.Background()
	archive := report.New(blob.NewMemory())
	svc := newService(t, memory.NewStore(), archive)
	_, err := svc.Populate(ctx, PopulateRequest{Request: generator.Request{Base: 300, Target: 30}, Seed: 5, BatchSize: 100})
	require.NoError(t, err)

	res, err := svc.RunIndexDemo(ctx, indexdemo.WithRepeats(1))
	require.NoError(t, err)
	assert.True(t, res.IndexUsed)
	assert.GreaterOrEqual(t, res.After.Rows, 30)
	require.NotEmpty(t, res.ReportKey)

	all, err := svc.Reports(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestToggleIndexes(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.NewStore(), nil)

	names, err := svc.ToggleIndexes(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{indexdemo.CompositeIndex}, names)

	names, err = svc.ToggleIndexes(ctx, true)
	require.NoError(t, err)
	assert.Len(t, names, 1)

	names, err = svc.ToggleIndexes(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	archive := report.New(blob.NewMemory())
	svc := newService(t, memory.NewStore(), archive)
	_, err := svc.Populate(ctx, PopulateRequest{Request: generator.Request{Base: 4000, Target: 100}, Seed: 9, BatchSize: loader.DefaultBatchSize})
	require.NoError(t, err)

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4100, st.Total)
	assert.Empty(t, st.Check(100))

	stats, err := svc.Reports(ctx, report.KindStats)
	require.NoError(t, err)
	assert.Len(t, stats, 1)
}

// brokenBlob fails every write.
type brokenBlob struct{ blob.Store }

func (brokenBlob) Put(context.Context, string, io.Reader, blob.PutOptions) (blob.Info, error) {
	return blob.Info{}, errors.New("bucket unavailable")
}

func (brokenBlob) Driver() blob.Driver { return "broken" }

func TestArchiveFailureDoesNotFailRun(t *testing.T) {
	svc := newService(t, memory.NewStore(), report.New(brokenBlob{}))
	res, err := svc.Populate(context.Background(), PopulateRequest{Request: generator.Request{Base: 10, Target: 1}, Seed: 1, BatchSize: 5})
	require.NoError(t, err)
	assert.Equal(t, 11, res.Load.Inserted)
	assert.Empty(t, res.ReportKey)
}

func TestServiceOnSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.NewStore(ctx, filepath.Join(t.TempDir(), "employees.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	svc := newService(t, store, nil)
	defer func() { _ = svc.Close() }()

	require.NoError(t, svc.CreateSchema(ctx))
	_, err = svc.CreateRecord(ctx, domain.NewRecord("Fomina Anna Olegovna", day(1992, 11, 23), domain.GenderFemale))
	require.NoError(t, err)
	_, err = svc.CreateRecord(ctx, domain.NewRecord("Fomina Anna Olegovna", day(1992, 11, 23), domain.GenderFemale))
	require.ErrorIs(t, err, domain.ErrDuplicate)

	res, err := svc.Populate(ctx, PopulateRequest{Request: generator.Request{Base: 400, Target: 40}, Seed: 21, BatchSize: 128})
	require.NoError(t, err)
	assert.Equal(t, 440, res.Load.Inserted+res.Load.Skipped)

	list, err := svc.ListUnique(ctx)
	require.NoError(t, err)
	assert.Len(t, list, res.Load.Inserted+1)
}
