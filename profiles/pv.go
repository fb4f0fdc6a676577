package profiles

import (
	"fmt"
	"math"
	"time"

	"github.com/devskill-org/lec-planner/calendar"
	"github.com/sixdouglas/suncalc"
)

// PVSite locates the community for the clear-sky PV estimate.
type PVSite struct {
	Latitude         float64 `json:"latitude" yaml:"latitude"`
	Longitude        float64 `json:"longitude" yaml:"longitude"`
	PerformanceRatio float64 `json:"performance_ratio" yaml:"performance_ratio"` // Losses and weather derating, 0-1
	Year             int     `json:"year" yaml:"year"`
}

// DefaultPVSite is Oslo with a derating that lands near 900 kWh/kWp a year.
func DefaultPVSite() PVSite {
	return PVSite{Latitude: 59.91, Longitude: 10.75, PerformanceRatio: 0.45, Year: 2021}
}

// SyntheticPV returns an hourly yield in kWh/h per kWp for a 365-day year,
// from the sine of the solar altitude at the middle of each hour. 29 February
// is skipped in leap years.
func SyntheticPV(site PVSite) ([]float64, error) {
	if site.PerformanceRatio <= 0 || site.PerformanceRatio > 1 {
		return nil, fmt.Errorf("performance_ratio must be in (0, 1], got: %f", site.PerformanceRatio)
	}
	if site.Latitude < -90 || site.Latitude > 90 {
		return nil, fmt.Errorf("latitude must be in [-90, 90], got: %f", site.Latitude)
	}

	start, _ := calendar.YearBounds(site.Year, time.UTC)
	leapDay := time.Date(site.Year, time.February, 29, 0, 0, 0, 0, time.UTC)
	isLeap := leapDay.Month() == time.February

	out := make([]float64, calendar.HoursPerYear)
	var sunrise, sunset time.Time
	for t := range out {
		ts := start.Add(time.Duration(t)*time.Hour + 30*time.Minute)
		if isLeap && !ts.Before(leapDay) {
			ts = ts.Add(24 * time.Hour)
		}
		if calendar.HourOfDay(t) == 0 {
			times := suncalc.GetTimes(ts.Add(12*time.Hour), site.Latitude, site.Longitude)
			sunrise, sunset = times["sunrise"].Value, times["sunset"].Value
		}
		// Polar day and night have no sunrise; the altitude alone decides.
		if !sunrise.IsZero() && !sunset.IsZero() && (ts.Before(sunrise) || ts.After(sunset)) {
			continue
		}
		alt := suncalc.GetPosition(ts, site.Latitude, site.Longitude).Altitude
		if f := math.Sin(alt); f > 0 {
			out[t] = f * site.PerformanceRatio
		}
	}
	return out, nil
}
