// Package astro holds the calendar arithmetic used to date FITS images.
package astro

import "time"

// MJD0 is the Julian Date of the modified Julian date epoch used here,
// 1899 December 31 12h UT
const MJD0 = 2415020.0

// CalMJD converts a calendar date to a modified Julian date.  day may be
// fractional.  Dates before 1582 October 15 are taken as Julian calendar.
// There is no year 0; year -1 is 1 BC.
func CalMJD(month int, day float64, year int) float64 {
	m := month
	y := year
	if year < 0 {
		y++
	}
	if month < 3 {
		m += 12
		y--
	}

	b := 0
	if !(year < 1582 || (year == 1582 && (month < 10 || (month == 10 && day < 15)))) {
		a := y / 100
		b = 2 - a + a/4
	}

	var c int64
	if y < 0 {
		c = int64(365.25*float64(y)-0.75) - 694025
	} else {
		c = int64(365.25*float64(y)) - 694025
	}
	d := int(30.6001 * float64(m+1))

	return float64(b) + float64(c) + float64(d) + day - 0.5
}

// JulianDate returns the Julian Date of t
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	return CalMJD(int(t.Month()), DayFraction(t), t.Year()) + MJD0
}

// DayFraction is the day of the month of t plus the elapsed fraction of that day
func DayFraction(t time.Time) float64 {
	secs := float64(t.Second()) + float64(t.Nanosecond())/1e9
	return float64(t.Day()) + (float64(t.Hour())+(float64(t.Minute())+secs/60.0)/60.0)/24.0
}
