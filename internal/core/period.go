package core

import "time"

// Period tokens accepted by ResolvePeriod.
const (
	PeriodMonth       = "month"
	PeriodThreeMonths = "3months"
	PeriodSixMonths   = "6months"
	PeriodYear        = "year"
	PeriodAll         = "all"
)

var periodDays = map[string]int{
	PeriodMonth:       30,
	PeriodThreeMonths: 90,
	PeriodSixMonths:   180,
	PeriodYear:        365,
}

// Clock returns the current time. Services hold one so tests can pin "now".
type Clock func() time.Time

// ResolvePeriod maps a period token to [start, now]. "all" starts at the
// zero time, which precedes every stored timestamp.
func ResolvePeriod(token string, now time.Time) (time.Time, time.Time, error) {
	if token == PeriodAll {
		return time.Time{}, now, nil
	}
	days, ok := periodDays[token]
	if !ok {
		return time.Time{}, time.Time{}, &InvalidPeriodError{Token: token}
	}
	return now.Add(-time.Duration(days) * 24 * time.Hour), now, nil
}

// PeriodTokens lists the accepted tokens, shortest span first.
func PeriodTokens() []string {
	return []string{PeriodMonth, PeriodThreeMonths, PeriodSixMonths, PeriodYear, PeriodAll}
}
