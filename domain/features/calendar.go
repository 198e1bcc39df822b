package features

import (
	"fmt"
	"sort"
	"time"

	"demandcast/domain/core"
)

// Holiday calendars known to the engine.
const (
	HolidayCalendarUS   = "us"
	HolidayCalendarNone = "none"
)

// CalendarSpec toggles date-derived features. Calendar features are pure functions of the
// date and cannot leak.
type CalendarSpec struct {
	DayOfWeek  bool `yaml:"day_of_week" json:"day_of_week"`
	Month      bool `yaml:"month" json:"month"`
	Quarter    bool `yaml:"quarter" json:"quarter"`
	Year       bool `yaml:"year" json:"year"`
	IsWeekend  bool `yaml:"is_weekend" json:"is_weekend"`
	IsMonthEnd bool `yaml:"is_month_end" json:"is_month_end"`
	IsHoliday  bool `yaml:"is_holiday" json:"is_holiday"`
	// Cyclical replaces raw day_of_week and month with sine/cosine pairs.
	Cyclical        bool     `yaml:"cyclical" json:"cyclical"`
	HolidayCalendar string   `yaml:"holiday_calendar" json:"holiday_calendar" default:"us"`
	ExtraHolidays   []string `yaml:"extra_holidays,omitempty" json:"extra_holidays,omitempty"`
}

type CalendarConfig struct {
	spec          CalendarSpec
	extraHolidays []time.Time
}

func NewCalendarConfig(spec CalendarSpec) (*CalendarConfig, error) {
	switch spec.HolidayCalendar {
	case "":
		spec.HolidayCalendar = HolidayCalendarUS
	case HolidayCalendarUS, HolidayCalendarNone:
	default:
		return nil, fmt.Errorf("calendar config: %w: holiday calendar %q", core.ErrInvalidConfig, spec.HolidayCalendar)
	}

	cfg := &CalendarConfig{}
	seen := make(map[string]bool)
	var extras []string
	for _, s := range spec.ExtraHolidays {
		d, err := core.ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("calendar config: %w: %v", core.ErrInvalidHolidayDates, err)
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		extras = append(extras, s)
		cfg.extraHolidays = append(cfg.extraHolidays, d)
	}
	sort.Strings(extras)
	sort.Slice(cfg.extraHolidays, func(i, j int) bool { return cfg.extraHolidays[i].Before(cfg.extraHolidays[j]) })
	spec.ExtraHolidays = extras
	cfg.spec = spec
	return cfg, nil
}

func (c *CalendarConfig) DayOfWeek() bool         { return c.spec.DayOfWeek }
func (c *CalendarConfig) Month() bool             { return c.spec.Month }
func (c *CalendarConfig) Quarter() bool           { return c.spec.Quarter }
func (c *CalendarConfig) Year() bool              { return c.spec.Year }
func (c *CalendarConfig) IsWeekend() bool         { return c.spec.IsWeekend }
func (c *CalendarConfig) IsMonthEnd() bool        { return c.spec.IsMonthEnd }
func (c *CalendarConfig) IsHoliday() bool         { return c.spec.IsHoliday }
func (c *CalendarConfig) Cyclical() bool          { return c.spec.Cyclical }
func (c *CalendarConfig) HolidayCalendar() string { return c.spec.HolidayCalendar }

func (c *CalendarConfig) ExtraHolidays() []time.Time {
	return append([]time.Time(nil), c.extraHolidays...)
}

// ColumnNames lists the generated columns in a fixed order.
func (c *CalendarConfig) ColumnNames() []string {
	var names []string
	if c.spec.DayOfWeek {
		if c.spec.Cyclical {
			names = append(names, "dow_sin", "dow_cos")
		} else {
			names = append(names, "day_of_week")
		}
	}
	if c.spec.Month {
		if c.spec.Cyclical {
			names = append(names, "month_sin", "month_cos")
		} else {
			names = append(names, "month")
		}
	}
	if c.spec.Quarter {
		names = append(names, "quarter")
	}
	if c.spec.Year {
		names = append(names, "year")
	}
	if c.spec.IsWeekend {
		names = append(names, "is_weekend")
	}
	if c.spec.IsMonthEnd {
		names = append(names, "is_month_end")
	}
	if c.spec.IsHoliday {
		names = append(names, "is_holiday")
	}
	return names
}

func (c *CalendarConfig) Hash() core.Hash { return core.MustHashCanonical(c.canonical()) }

func (c *CalendarConfig) canonical() map[string]interface{} {
	return map[string]interface{}{
		"day_of_week":      c.spec.DayOfWeek,
		"month":            c.spec.Month,
		"quarter":          c.spec.Quarter,
		"year":             c.spec.Year,
		"is_weekend":       c.spec.IsWeekend,
		"is_month_end":     c.spec.IsMonthEnd,
		"is_holiday":       c.spec.IsHoliday,
		"cyclical":         c.spec.Cyclical,
		"holiday_calendar": c.spec.HolidayCalendar,
		"extra_holidays":   c.spec.ExtraHolidays,
	}
}
