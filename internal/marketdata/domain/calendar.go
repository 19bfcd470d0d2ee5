package domain

import "time"

// MarketCalendar answers whether a calendar day is a US equity trading day.
// The tiered lookup uses it to decide when a cached range is complete: a
// weekend or holiday is "nothing expected", not a gap worth an API call.
type MarketCalendar struct{}

// NewMarketCalendar builds the calendar. Holiday rules are fixed NYSE rules;
// there is no per-exchange configuration yet.
func NewMarketCalendar() *MarketCalendar { return &MarketCalendar{} }

// IsTradingDay reports whether the given day (any time-of-day accepted) is a
// trading day: a weekday that is not an observed market holiday.
func (c *MarketCalendar) IsTradingDay(day time.Time) bool {
	day = DayOf(day)
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.isObservedHoliday(day)
}

// LastTradingDayOnOrBefore walks backwards from day to the nearest trading
// day, inclusive.
func (c *MarketCalendar) LastTradingDayOnOrBefore(day time.Time) time.Time {
	d := DayOf(day)
	for !c.IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// TradingDaysInRange returns the trading days in [start, end] in ascending
// order. An inverted range yields an empty slice.
func (c *MarketCalendar) TradingDaysInRange(start, end time.Time) []time.Time {
	first := DayOf(start)
	last := DayOf(end)
	var days []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// isObservedHoliday applies the exchange observation rule: a holiday falling
// on Saturday is observed the preceding Friday, on Sunday the following
// Monday.
func (c *MarketCalendar) isObservedHoliday(day time.Time) bool {
	year := day.Year()
	for _, h := range marketHolidays(year) {
		observed := h
		switch h.Weekday() {
		case time.Saturday:
			observed = h.AddDate(0, 0, -1)
		case time.Sunday:
			observed = h.AddDate(0, 0, 1)
		}
		if observed.Equal(day) {
			return true
		}
	}
	return false
}

// marketHolidays lists the fixed and floating NYSE holidays for a year,
// before observation shifting.
func marketHolidays(year int) []time.Time {
	return []time.Time{
		date(year, time.January, 1),                     // New Year's Day
		nthWeekday(year, time.January, time.Monday, 3),  // Martin Luther King Jr. Day
		nthWeekday(year, time.February, time.Monday, 3), // Washington's Birthday
		goodFriday(year),
		lastWeekday(year, time.May, time.Monday), // Memorial Day
		date(year, time.June, 19),                // Juneteenth
		date(year, time.July, 4),                 // Independence Day
		nthWeekday(year, time.September, time.Monday, 1),  // Labor Day
		nthWeekday(year, time.November, time.Thursday, 4), // Thanksgiving
		date(year, time.December, 25),                     // Christmas
	}
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// nthWeekday returns the n-th given weekday of a month.
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	d := date(year, month, 1)
	offset := (int(weekday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset+(n-1)*7)
}

// lastWeekday returns the last given weekday of a month.
func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	d := date(year, month+1, 1).AddDate(0, 0, -1)
	offset := (int(d.Weekday()) - int(weekday) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// goodFriday is two days before Easter Sunday, computed with the anonymous
// Gregorian algorithm.
func goodFriday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return date(year, time.Month(month), day).AddDate(0, 0, -2)
}
