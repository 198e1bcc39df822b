package features

import (
	"time"

	"demandcast/domain/core"
	domainfeatures "demandcast/domain/features"
)

// holidayCalendar answers is-holiday queries, memoizing rule expansion per year.
type holidayCalendar struct {
	rules  bool
	extra  map[time.Time]bool
	byYear map[int]map[time.Time]bool
}

func newHolidayCalendar(name string, extra []time.Time) *holidayCalendar {
	hc := &holidayCalendar{
		rules:  name == domainfeatures.HolidayCalendarUS,
		extra:  make(map[time.Time]bool, len(extra)),
		byYear: make(map[int]map[time.Time]bool),
	}
	for _, d := range extra {
		hc.extra[core.TruncateDay(d)] = true
	}
	return hc
}

func (hc *holidayCalendar) IsHoliday(d time.Time) bool {
	d = core.TruncateDay(d)
	if hc.extra[d] {
		return true
	}
	if !hc.rules {
		return false
	}
	// Observed dates can spill into the neighbouring year (Jan 1 on a Saturday).
	for _, y := range []int{d.Year(), d.Year() + 1} {
		if hc.year(y)[d] {
			return true
		}
	}
	return false
}

func (hc *holidayCalendar) year(y int) map[time.Time]bool {
	if days, ok := hc.byYear[y]; ok {
		return days
	}
	days := make(map[time.Time]bool)
	for _, d := range usFederalHolidays(y) {
		days[d] = true
	}
	hc.byYear[y] = days
	return days
}

// usFederalHolidays lists US federal holidays of year y, including weekend-observed dates.
func usFederalHolidays(y int) []time.Time {
	fixed := []time.Time{
		date(y, time.January, 1),
		date(y, time.July, 4),
		date(y, time.November, 11),
		date(y, time.December, 25),
	}
	if y >= 2021 {
		fixed = append(fixed, date(y, time.June, 19))
	}

	var out []time.Time
	for _, d := range fixed {
		out = append(out, d)
		switch d.Weekday() {
		case time.Saturday:
			out = append(out, core.AddDays(d, -1))
		case time.Sunday:
			out = append(out, core.AddDays(d, 1))
		}
	}

	return append(out,
		nthWeekday(y, time.January, time.Monday, 3),    // Martin Luther King Jr. Day
		nthWeekday(y, time.February, time.Monday, 3),   // Washington's Birthday
		lastWeekday(y, time.May, time.Monday),          // Memorial Day
		nthWeekday(y, time.September, time.Monday, 1),  // Labor Day
		nthWeekday(y, time.October, time.Monday, 2),    // Columbus Day
		nthWeekday(y, time.November, time.Thursday, 4), // Thanksgiving
	)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func nthWeekday(y int, m time.Month, wd time.Weekday, n int) time.Time {
	first := date(y, m, 1)
	offset := (int(wd) - int(first.Weekday()) + 7) % 7
	return core.AddDays(first, offset+7*(n-1))
}

func lastWeekday(y int, m time.Month, wd time.Weekday) time.Time {
	last := core.AddDays(date(y, m+1, 1), -1)
	offset := (int(last.Weekday()) - int(wd) + 7) % 7
	return core.AddDays(last, -offset)
}
