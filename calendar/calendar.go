// Package calendar maps hour-of-year indices onto months, weekdays and tariff windows.
package calendar

import (
	"time"

	"github.com/jinzhu/now"
)

// HoursPerYear is the length of the modelled (non-leap) year.
const HoursPerYear = 8760

// MonthsPerYear is the number of billing months.
const MonthsPerYear = 12

// DefaultFirstDay is the weekday of hour 0 (Monday = 0), a Friday.
const DefaultFirstDay = 4

// Day window boundaries for the day tariff, [DayStart, DayEnd).
const (
	DayStart = 6
	DayEnd   = 22
)

var daysInMonth = [MonthsPerYear]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

var monthIndex = buildMonthIndex()

func buildMonthIndex() []int {
	idx := make([]int, 0, HoursPerYear)
	for m, days := range daysInMonth {
		for h := 0; h < days*24; h++ {
			idx = append(idx, m)
		}
	}
	return idx
}

// MonthOfHour returns the 0-based month of hour t. Hours outside the year wrap around.
func MonthOfHour(t int) int {
	t %= HoursPerYear
	if t < 0 {
		t += HoursPerYear
	}
	return monthIndex[t]
}

// MonthIndex returns a fresh copy of the month of every hour of the year.
func MonthIndex() []int {
	out := make([]int, HoursPerYear)
	copy(out, monthIndex)
	return out
}

// HoursInMonth returns the number of hours in the 0-based month m.
func HoursInMonth(m int) int {
	return daysInMonth[m] * 24
}

// HourOfDay returns the clock hour of t.
func HourOfDay(t int) int {
	return t % 24
}

// DayOfWeek returns the weekday of hour t (Monday = 0) given the weekday of hour 0.
func DayOfWeek(t, firstDay int) int {
	return (t/24 + firstDay) % 7
}

// IsWeekday reports whether hour t falls on Monday to Friday.
func IsWeekday(t, firstDay int) bool {
	return DayOfWeek(t, firstDay) < 5
}

// IsDaytime reports whether hour t is inside the day tariff window.
func IsDaytime(t int) bool {
	h := HourOfDay(t)
	return h >= DayStart && h < DayEnd
}

// IsWinter reports whether the 0-based month belongs to the winter tariff season.
func IsWinter(month int) bool {
	return month <= 2
}

// InMonths reports whether month is one of months.
func InMonths(month int, months []int) bool {
	for _, m := range months {
		if m == month {
			return true
		}
	}
	return false
}

// FirstDayOfYear returns the weekday (Monday = 0) of 1 January of year.
func FirstDayOfYear(year int) int {
	start := now.With(time.Date(year, time.June, 1, 0, 0, 0, 0, time.UTC)).BeginningOfYear()
	return (int(start.Weekday()) + 6) % 7
}

// YearBounds returns the first instant of year and of the following year in loc.
func YearBounds(year int, loc *time.Location) (time.Time, time.Time) {
	mid := time.Date(year, time.June, 1, 0, 0, 0, 0, loc)
	start := now.With(mid).BeginningOfYear()
	end := now.With(mid).EndOfYear().Add(time.Nanosecond)
	return start, end
}
