package domain

import "time"

// convectiveDayStart is the offset of the convective day boundary from
// midnight. Tornadoes between 00:00 and 06:00 belong to the previous
// calendar date's storm systems.
const convectiveDayStart = 6 * time.Hour

// ConvectiveDay returns the convective calendar day of t as midnight of that
// date, in t's own location. Callers must supply timestamps already
// normalized to a single explicit zone; this function never consults the
// system time zone.
func ConvectiveDay(t time.Time) time.Time {
	s := t.Add(-convectiveDayStart)
	return time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, s.Location())
}
