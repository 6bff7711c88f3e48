package util

import "time"

// CohortMonth truncates a timestamp to the first instant of its month
// in UTC, the grain used for vintage grouping.
func CohortMonth(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthsOnBook counts whole months elapsed from disbursal to asOf.
func MonthsOnBook(disbursedAt, asOf time.Time) int {
	if asOf.Before(disbursedAt) {
		return 0
	}
	d := disbursedAt.UTC()
	a := asOf.UTC()
	months := (a.Year()-d.Year())*12 + int(a.Month()) - int(d.Month())
	if a.Day() < d.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// MonthKey formats a cohort month as "2006-01" for report labels.
func MonthKey(t time.Time) string {
	return CohortMonth(t).Format("2006-01")
}
