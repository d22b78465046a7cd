package ledger

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainsAndAdd(t *testing.T) {
	l := New(0)
	birth := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.False(t, l.Contains("Petrov Ivan Ivanovich", birth))
	l.Add("Petrov Ivan Ivanovich", birth)
	assert.True(t, l.Contains("Petrov Ivan Ivanovich", birth))
	assert.False(t, l.Contains("Petrov Ivan Ivanovich", birth.AddDate(0, 0, 1)))
	assert.False(t, l.Contains("Petrova Anna Ivanovna", birth))

	l.Add("Petrov Ivan Ivanovich", birth)
	assert.Equal(t, 1, l.Len())
}

func TestKeyIgnoresTimeOfDay(t *testing.T) {
	l := New(1)
	l.Add("Name", time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, l.Contains("Name", time.Date(1990, 1, 1, 17, 45, 0, 0, time.UTC)))
}

func TestTryAdd(t *testing.T) {
	l := New(2)
	birth := time.Date(1985, 5, 5, 0, 0, 0, 0, time.UTC)
	assert.True(t, l.TryAdd("Sidorova Anna Petrovna", birth))
	assert.False(t, l.TryAdd("Sidorova Anna Petrovna", birth))
	assert.Equal(t, 1, l.Len())
}

func TestHoldsMillionPlusEntries(t *testing.T) {
	if testing.Short() {
		t.Skip("large ledger skipped in short mode")
	}
	const n = 1_100_000
	l := New(n)
	base := time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		l.Add("name-"+strconv.Itoa(i%1000), base.AddDate(0, 0, i/1000))
	}
	require.Equal(t, n, l.Len())
	assert.True(t, l.Contains("name-999", base.AddDate(0, 0, (n-1)/1000)))
}
