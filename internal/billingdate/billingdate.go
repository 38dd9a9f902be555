// Package billingdate holds the calendar arithmetic of the monthly billing
// cycle: next billing dates clamped to short months and overdue day counts.
package billingdate

import "time"

// Layout is the wire and storage format for billing dates.
const Layout = "2006-01-02"

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Truncate drops the clock part of t, keeping its location.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func clampDay(year int, month time.Month, day int) int {
	if last := DaysIn(year, month); day > last {
		return last
	}
	return day
}

// Next returns the billing date of the cycle after paymentDate: the month
// following the payment, on billingDay, or on the last day of that month when
// billingDay does not exist in it. A billingDay outside 1..31 falls back to
// the payment date's own day.
func Next(paymentDate time.Time, billingDay int) time.Time {
	if billingDay < 1 || billingDay > 31 {
		billingDay = paymentDate.Day()
	}
	y, m, _ := paymentDate.Date()
	// Normalise via day 1 so that Jan 31 + 1 month stays in February.
	first := time.Date(y, m+1, 1, 0, 0, 0, 0, paymentDate.Location())
	ny, nm, _ := first.Date()
	return time.Date(ny, nm, clampDay(ny, nm, billingDay), 0, 0, 0, 0, paymentDate.Location())
}

// NextOccurrence returns the first date on or after from that falls on
// billingDay (clamped to the month length).
func NextOccurrence(from time.Time, billingDay int) time.Time {
	from = Truncate(from)
	if billingDay < 1 || billingDay > 31 {
		return from
	}
	y, m, _ := from.Date()
	candidate := time.Date(y, m, clampDay(y, m, billingDay), 0, 0, 0, 0, from.Location())
	if !candidate.Before(from) {
		return candidate
	}
	return Next(candidate, billingDay)
}

// DaysOverdue returns the whole calendar days elapsed from due to today,
// floored at zero. Both dates are compared in UTC.
func DaysOverdue(due, today time.Time) int {
	d := dayNumber(today) - dayNumber(due)
	if d < 0 {
		return 0
	}
	return d
}

func dayNumber(t time.Time) int {
	y, m, d := t.UTC().Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
