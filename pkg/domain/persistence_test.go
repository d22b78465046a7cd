package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterValidate(t *testing.T) {
	assert.NoError(t, Filter{Gender: GenderMale, NamePrefix: "F"}.Validate())
	assert.Error(t, Filter{Gender: "M", NamePrefix: "F"}.Validate())
	assert.Error(t, Filter{Gender: GenderMale}.Validate())
	assert.Error(t, Filter{Gender: GenderMale, NamePrefix: "F%"}.Validate())
	assert.Error(t, Filter{Gender: GenderMale, NamePrefix: "F_"}.Validate())
}

func TestFilterMatches(t *testing.T) {
	f := Filter{Gender: GenderMale, NamePrefix: "F"}
	assert.Equal(t, "F%", f.Pattern())
	assert.True(t, f.Matches(NewRecord("Fedorov Ivan Petrovich", date(1980, 1, 1), GenderMale)))
	assert.False(t, f.Matches(NewRecord("Fedorova Anna Petrovna", date(1980, 1, 1), GenderFemale)))
	assert.False(t, f.Matches(NewRecord("Petrov Fedor Ivanovich", date(1980, 1, 1), GenderMale)))
}

func TestLetterCountMaleRatio(t *testing.T) {
	assert.Equal(t, 0.0, LetterCount{}.MaleRatio())
	assert.InDelta(t, 0.25, LetterCount{Letter: "A", Total: 4, Male: 1}.MaleRatio(), 1e-9)
}
