// Package domain defines the person record persisted by the directory, its
// validation rules, and the error kinds shared by generation, loading and
// querying.
package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Gender enumerates the recognised record genders.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// Field limits mirrored by the persisted schema.
const (
	MaxFullNameLength = 200
	MaxAgeYears       = 150
	DateLayout        = "2006-01-02"
)

// Valid reports whether g is exactly one of the recognised values.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// ParseGender matches the input exactly; "male" or " Male" are rejected.
func ParseGender(s string) (Gender, error) {
	g := Gender(s)
	if !g.Valid() {
		return "", &ValidationError{Reasons: []string{fmt.Sprintf("gender: %q must be %s or %s", s, GenderMale, GenderFemale)}}
	}
	return g, nil
}

// ParseBirthDate parses a YYYY-MM-DD date into a UTC midnight time.
func ParseBirthDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, &ValidationError{Reasons: []string{fmt.Sprintf("birth_date: %q is not a YYYY-MM-DD date", s)}}
	}
	return t, nil
}

// Record is one directory entry. ID is zero until the store assigns it.
type Record struct {
	ID        int64     `json:"id,omitempty"`
	FullName  string    `json:"full_name"`
	BirthDate time.Time `json:"birth_date"`
	Gender    Gender    `json:"gender"`
}

// NewRecord trims the name and truncates the birth date to a calendar day.
func NewRecord(fullName string, birthDate time.Time, gender Gender) Record {
	return Record{
		FullName:  strings.TrimSpace(fullName),
		BirthDate: DateOf(birthDate),
		Gender:    gender,
	}
}

// DateOf returns t's calendar date as UTC midnight.
func DateOf(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Key returns the composite uniqueness key of the record.
func (r Record) Key() string {
	return r.FullName + "|" + r.BirthDate.Format(DateLayout)
}

// Persisted reports whether the store has assigned an id.
func (r Record) Persisted() bool {
	return r.ID != 0
}

// Validate checks every field against asOf and reports all failures at once.
func (r Record) Validate(asOf time.Time) error {
	var reasons []string

	name := strings.TrimSpace(r.FullName)
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		reasons = append(reasons, "full_name: must not be empty")
	case n > MaxFullNameLength:
		reasons = append(reasons, fmt.Sprintf("full_name: %d characters exceeds limit of %d", n, MaxFullNameLength))
	}

	today := DateOf(asOf)
	birth := DateOf(r.BirthDate)
	switch {
	case birth.IsZero():
		reasons = append(reasons, "birth_date: is required")
	case birth.After(today):
		reasons = append(reasons, fmt.Sprintf("birth_date: %s is in the future", birth.Format(DateLayout)))
	case birth.Before(today.AddDate(-MaxAgeYears, 0, 0)):
		reasons = append(reasons, fmt.Sprintf("birth_date: %s is more than %d years ago", birth.Format(DateLayout), MaxAgeYears))
	}

	if !r.Gender.Valid() {
		reasons = append(reasons, fmt.Sprintf("gender: %q must be %s or %s", r.Gender, GenderMale, GenderFemale))
	}

	if len(reasons) > 0 {
		return &ValidationError{Reasons: reasons}
	}
	return nil
}

// AgeOn returns the record's age in full years on asOf.
func (r Record) AgeOn(asOf time.Time) int {
	return CalculateAge(r.BirthDate, asOf)
}

// String renders the record the way listings print it.
func (r Record) String() string {
	return fmt.Sprintf("%s (%s, %s)", r.FullName, r.BirthDate.Format(DateLayout), r.Gender)
}
