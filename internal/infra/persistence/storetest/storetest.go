// Package storetest holds the behavioural checks every domain.Store backend
// must pass. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persondir/pkg/domain"
)

// Factory returns an empty store with the schema applied.
type Factory func(t *testing.T) domain.Store

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Fixture returns a small deterministic population with two "F" Male rows.
func Fixture() []domain.Record {
	return []domain.Record{
		domain.NewRecord("Ivanov Petr Sergeevich", date(1985, 3, 14), domain.GenderMale),
		domain.NewRecord("Fedorov Ivan Petrovich", date(1990, 7, 1), domain.GenderMale),
		domain.NewRecord("Fomina Anna Olegovna", date(1992, 11, 23), domain.GenderFemale),
		domain.NewRecord("Abramova Olga Ivanovna", date(1979, 1, 5), domain.GenderFemale),
		domain.NewRecord("Filippov Oleg Denisovich", date(1969, 5, 30), domain.GenderMale),
		domain.NewRecord("Sokolov Denis Ilyich", date(2001, 9, 9), domain.GenderMale),
	}
}

var target = domain.Filter{Gender: domain.GenderMale, NamePrefix: "F"}

// Run executes the conformance checks against stores produced by open.
func Run(t *testing.T, open Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("ApplySchemaIsIdempotent", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.ApplySchema(ctx))
		require.NoError(t, s.Ping(ctx))
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("InsertBatchAndExists", func(t *testing.T) {
		s := open(t)
		n, err := s.InsertBatch(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = s.InsertBatch(ctx, Fixture())
		require.NoError(t, err)
		assert.Equal(t, len(Fixture()), n)

		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, len(Fixture()), count)

		ok, err := s.Exists(ctx, "Fedorov Ivan Petrovich", date(1990, 7, 1))
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.Exists(ctx, "Fedorov Ivan Petrovich", date(1990, 7, 2))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("BatchWithDuplicateRollsBack", func(t *testing.T) {
		s := open(t)
		_, err := s.InsertBatch(ctx, Fixture()[:2])
		require.NoError(t, err)

		batch := append([]domain.Record{}, Fixture()[2:]...)
		batch = append(batch, Fixture()[0])
		_, err = s.InsertBatch(ctx, batch)
		require.Error(t, err)
		assert.True(t, domain.IsDuplicate(err), "got %v", err)
		assert.False(t, errors.Is(err, domain.ErrStore))

		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count, "failed batch must leave no rows behind")
	})

	t.Run("InsertOneReportsDuplicate", func(t *testing.T) {
		s := open(t)
		rec := Fixture()[1]
		id, err := s.InsertOne(ctx, rec)
		require.NoError(t, err)
		assert.Positive(t, id)

		_, err = s.InsertOne(ctx, rec)
		var dup *domain.DuplicateError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, domain.DuplicateFromStore, dup.Source)
		assert.Equal(t, rec.FullName, dup.FullName)

		// Same name, different date is a distinct record.
		other := domain.NewRecord(rec.FullName, date(1990, 7, 2), rec.Gender)
		id2, err := s.InsertOne(ctx, other)
		require.NoError(t, err)
		assert.NotEqual(t, id, id2)
	})

	t.Run("ListUniqueOrderedByName", func(t *testing.T) {
		s := open(t)
		_, err := s.InsertBatch(ctx, Fixture())
		require.NoError(t, err)
		got, err := s.ListUnique(ctx)
		require.NoError(t, err)
		require.Len(t, got, len(Fixture()))
		for i := 1; i < len(got); i++ {
			assert.LessOrEqual(t, got[i-1].FullName, got[i].FullName)
		}
		assert.Equal(t, "Abramova Olga Ivanovna", got[0].FullName)
		assert.Equal(t, date(1979, 1, 5), got[0].BirthDate)
		assert.Equal(t, domain.GenderFemale, got[0].Gender)
		assert.Positive(t, got[0].ID)
	})

	t.Run("MatchingQuery", func(t *testing.T) {
		s := open(t)
		_, err := s.InsertBatch(ctx, Fixture())
		require.NoError(t, err)

		n, err := s.CountMatching(ctx, target)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		rows, err := s.FindMatching(ctx, target, 0)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "Fedorov Ivan Petrovich", rows[0].FullName)
		assert.Equal(t, "Filippov Oleg Denisovich", rows[1].FullName)

		limited, err := s.FindMatching(ctx, target, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		_, err = s.CountMatching(ctx, domain.Filter{Gender: domain.GenderMale, NamePrefix: "F%"})
		assert.Error(t, err)
	})

	t.Run("MatchingQueryIsCaseSensitive", func(t *testing.T) {
		s := open(t)
		_, err := s.InsertBatch(ctx, Fixture())
		require.NoError(t, err)
		_, err = s.InsertOne(ctx, domain.NewRecord("fedorov ivan petrovich", date(1990, 7, 1), domain.GenderMale))
		require.NoError(t, err)

		n, err := s.CountMatching(ctx, target)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		rows, err := s.FindMatching(ctx, target, 0)
		require.NoError(t, err)
		for _, r := range rows {
			assert.NotEqual(t, "fedorov ivan petrovich", r.FullName)
		}

		lower, err := s.CountMatching(ctx, domain.Filter{Gender: domain.GenderMale, NamePrefix: "f"})
		require.NoError(t, err)
		assert.Equal(t, 1, lower)
	})

	t.Run("IndexLifecycle", func(t *testing.T) {
		s := open(t)
		spec := domain.IndexSpec{Name: "idx_employees_gender_name", Columns: []string{"gender", "full_name"}}
		require.NoError(t, s.DropIndex(ctx, spec.Name))
		require.NoError(t, s.CreateIndex(ctx, spec))
		names, err := s.ListIndexes(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{spec.Name}, names)

		require.NoError(t, s.RefreshStatistics(ctx))
		require.NoError(t, s.DropIndex(ctx, spec.Name))
		require.NoError(t, s.DropIndex(ctx, spec.Name))
		names, err = s.ListIndexes(ctx)
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("Aggregates", func(t *testing.T) {
		s := open(t)
		_, err := s.InsertBatch(ctx, Fixture())
		require.NoError(t, err)

		genders, err := s.GenderCounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, []domain.GenderCount{
			{Gender: domain.GenderFemale, Count: 2},
			{Gender: domain.GenderMale, Count: 4},
		}, genders)

		letters, err := s.LetterCounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, []domain.LetterCount{
			{Letter: "A", Total: 1, Male: 0},
			{Letter: "F", Total: 3, Male: 2},
			{Letter: "I", Total: 1, Male: 1},
			{Letter: "S", Total: 1, Male: 1},
		}, letters)
	})

	t.Run("Truncate", func(t *testing.T) {
		s := open(t)
		_, err := s.InsertBatch(ctx, Fixture())
		require.NoError(t, err)
		require.NoError(t, s.Truncate(ctx))
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
