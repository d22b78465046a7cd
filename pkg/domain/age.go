package domain

import "time"

// CalculateAge returns the number of full years between birthDate and asOf.
// The year count is decremented while asOf's month/day precedes the birthday,
// so a Feb 29 birthday is reached on Mar 1 in non-leap years.
//
// Example:
//
//	birth := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)
//	CalculateAge(birth, time.Date(2020, 6, 15, 0, 0, 0, 0, time.UTC)) // 30
//	CalculateAge(birth, time.Date(2020, 6, 14, 0, 0, 0, 0, time.UTC)) // 29
func CalculateAge(birthDate, asOf time.Time) int {
	by, bm, bd := birthDate.Date()
	ay, am, ad := asOf.Date()
	age := ay - by
	if am < bm || (am == bm && ad < bd) {
		age--
	}
	return age
}
