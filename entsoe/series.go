package entsoe

import (
	"errors"
	"fmt"
	"time"

	"github.com/devskill-org/lec-planner/calendar"
)

// ErrMissingHour is returned when a document does not price an hour of the year.
var ErrMissingHour = errors.New("entsoe: no price for hour")

// HourlySeries returns the calendar.HoursPerYear hourly average prices of
// year in loc, in the currency unit of the document (EUR/MWh for day-ahead).
// 29 February is dropped in leap years. Clock hours repeated or skipped by a
// daylight saving shift are read in absolute time from 1 January 00:00.
func HourlySeries(doc *PublicationMarketDocument, year int, loc *time.Location) ([]float64, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", ErrMissingHour)
	}
	start, _ := calendar.YearBounds(year, loc)
	leapDay := time.Date(year, time.February, 29, 0, 0, 0, 0, loc)
	isLeap := leapDay.Month() == time.February

	out := make([]float64, calendar.HoursPerYear)
	for t := range out {
		ts := start.Add(time.Duration(t) * time.Hour)
		if isLeap && !ts.Before(leapDay) {
			ts = ts.Add(24 * time.Hour)
		}
		price, ok := doc.HourAverage(ts.UTC())
		if !ok {
			return nil, fmt.Errorf("%w: hour %d (%s)", ErrMissingHour, t, ts.Format(time.RFC3339))
		}
		out[t] = price
	}
	return out, nil
}
