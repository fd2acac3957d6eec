package matching

import "time"

// epoch is a fixed reference date (1 January of year 0, proleptic
// Gregorian); dateToOrdinal measures whole days from it, which is all
// scoreDateDecay needs (only differences matter, so the absolute epoch
// choice is arbitrary but fixed).
var epoch = time.Date(0, time.January, 1, 0, 0, 0, 0, time.UTC)

// dateToOrdinal returns the number of days between the given Gregorian
// date and a fixed epoch, tolerating out-of-range month/day values the way
// time.Date normalizes them (e.g. day=32 rolls into the next month). The
// difference is taken in Unix seconds because time.Duration cannot span
// more than about 292 years.
func dateToOrdinal(year, month, day int) int {
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return int((d.Unix() - epoch.Unix()) / 86400)
}
