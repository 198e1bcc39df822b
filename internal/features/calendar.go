package features

import (
	"math"
	"time"

	"demandcast/domain/core"
	domainfeatures "demandcast/domain/features"
	"demandcast/domain/series"
)

// addCalendarFeatures derives columns from the date alone; no grouping is needed.
func addCalendarFeatures(f *series.Frame, cfg *domainfeatures.CalendarConfig) {
	if cfg == nil {
		disabled("calendar")
	}
	n := f.Len()
	dates := f.Dates()

	column := func(fn func(d time.Time) float64) []float64 {
		out := make([]float64, n)
		for i, d := range dates {
			out[i] = fn(d)
		}
		return out
	}

	if cfg.DayOfWeek() {
		if cfg.Cyclical() {
			f.SetColumn("dow_sin", column(func(d time.Time) float64 { return cyclicalSin(float64(dayOfWeek(d)), 7) }))
			f.SetColumn("dow_cos", column(func(d time.Time) float64 { return cyclicalCos(float64(dayOfWeek(d)), 7) }))
		} else {
			f.SetColumn("day_of_week", column(func(d time.Time) float64 { return float64(dayOfWeek(d)) }))
		}
	}
	if cfg.Month() {
		if cfg.Cyclical() {
			f.SetColumn("month_sin", column(func(d time.Time) float64 { return cyclicalSin(float64(d.Month()), 12) }))
			f.SetColumn("month_cos", column(func(d time.Time) float64 { return cyclicalCos(float64(d.Month()), 12) }))
		} else {
			f.SetColumn("month", column(func(d time.Time) float64 { return float64(d.Month()) }))
		}
	}
	if cfg.Quarter() {
		f.SetColumn("quarter", column(func(d time.Time) float64 { return float64((int(d.Month())-1)/3 + 1) }))
	}
	if cfg.Year() {
		f.SetColumn("year", column(func(d time.Time) float64 { return float64(d.Year()) }))
	}
	if cfg.IsWeekend() {
		f.SetColumn("is_weekend", column(func(d time.Time) float64 { return boolFloat(dayOfWeek(d) >= 5) }))
	}
	if cfg.IsMonthEnd() {
		f.SetColumn("is_month_end", column(func(d time.Time) float64 {
			return boolFloat(core.AddDays(d, 1).Month() != d.Month())
		}))
	}
	if cfg.IsHoliday() {
		hc := newHolidayCalendar(cfg.HolidayCalendar(), cfg.ExtraHolidays())
		f.SetColumn("is_holiday", column(func(d time.Time) float64 { return boolFloat(hc.IsHoliday(d)) }))
	}
}

// dayOfWeek numbers Monday as 0 and Sunday as 6.
func dayOfWeek(d time.Time) int {
	return (int(d.Weekday()) + 6) % 7
}

func cyclicalSin(v, period float64) float64 { return math.Sin(2 * math.Pi * v / period) }
func cyclicalCos(v, period float64) float64 { return math.Cos(2 * math.Pi * v / period) }

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
