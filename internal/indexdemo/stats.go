package indexdemo

import (
	"context"
	"fmt"

	"persondir/pkg/domain"
)

// Shape thresholds for Stats.Check.
const (
	MinMaleRatio       = 0.45
	MaxMaleRatio       = 0.55
	minRatioPopulation = 1000
)

// Stats aggregates the population by gender and by first letter of name.
type Stats struct {
	Total     int                  `json:"total"`
	Genders   []domain.GenderCount `json:"genders"`
	MaleRatio float64              `json:"male_ratio"`
	Letters   []domain.LetterCount `json:"letters"`
	// Matching is the row count of the demonstration query.
	Matching int           `json:"matching"`
	Filter   domain.Filter `json:"filter"`
}

// Statistics runs the aggregate pass.
func (d *Demonstrator) Statistics(ctx context.Context) (Stats, error) {
	genders, err := d.store.GenderCounts(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("gender counts: %w", err)
	}
	letters, err := d.store.LetterCounts(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("letter counts: %w", err)
	}
	matching, err := d.store.CountMatching(ctx, d.filter)
	if err != nil {
		return Stats{}, fmt.Errorf("count matching: %w", err)
	}
	s := Stats{Genders: genders, Letters: letters, Matching: matching, Filter: d.filter}
	male := 0
	for _, g := range genders {
		s.Total += g.Count
		if g.Gender == domain.GenderMale {
			male = g.Count
		}
	}
	if s.Total > 0 {
		s.MaleRatio = float64(male) / float64(s.Total)
	}
	return s, nil
}

// Letter returns the bucket for letter, zero-valued when absent.
func (s Stats) Letter(letter string) domain.LetterCount {
	for _, l := range s.Letters {
		if l.Letter == letter {
			return l
		}
	}
	return domain.LetterCount{Letter: letter}
}

// Check compares the population with the shape the generator intends and
// returns one warning per deviation. target is the number of reserved-prefix
// Male records that were requested.
func (s Stats) Check(target int) []string {
	var warnings []string
	if s.Total >= minRatioPopulation && (s.MaleRatio < MinMaleRatio || s.MaleRatio > MaxMaleRatio) {
		warnings = append(warnings, fmt.Sprintf("male ratio %.3f outside [%.2f, %.2f]", s.MaleRatio, MinMaleRatio, MaxMaleRatio))
	}
	letter := firstRune(s.Filter.NamePrefix)
	if bucket := s.Letter(letter); bucket.Male < target {
		warnings = append(warnings, fmt.Sprintf("letter %q holds %d male rows, want at least %d", letter, bucket.Male, target))
	}
	return warnings
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}
