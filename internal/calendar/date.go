package calendar

import (
	"encoding/json"
	"fmt"
	"time"
)

// Date is a pure calendar date, no time component and no time zone.
// The string form is ISO YYYY-MM-DD, so chronological ordering of dates
// matches lexicographic ordering of their string form.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	// normalize via time.Date, so e.g. Feb 30 becomes Mar 2
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf strips the time component of t, in t's location.
func DateOf(t time.Time) Date {
	year, month, day := t.Date()
	return Date{Year: year, Month: month, Day: day}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date [%s]: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// Time returns midnight of the date in UTC.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(days int) Date {
	return DateOf(d.Time().AddDate(0, 0, days))
}

func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

func (d Date) After(other Date) bool {
	return other.Before(d)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// StartOfWeek returns the Monday of the week containing d.
func StartOfWeek(d Date) Date {
	daysBack := WeekdayIndex(d)
	return d.AddDays(-daysBack)
}

// IsSameWeek reports whether d falls in [weekStart, weekStart+7d).
func IsSameWeek(d, weekStart Date) bool {
	if d.Before(weekStart) {
		return false
	}
	return d.Before(weekStart.AddDays(7))
}

// IsSameMonth reports whether both dates share calendar year and month.
func IsSameMonth(d, monthDate Date) bool {
	return d.Year == monthDate.Year && d.Month == monthDate.Month
}

// WeekdayIndex maps Monday to 0 ... Sunday to 6.
func WeekdayIndex(d Date) int {
	weekday := d.Time().Weekday() // Sunday 0 ... Saturday 6
	if weekday == time.Sunday {
		return 6
	}
	return int(weekday) - 1
}
