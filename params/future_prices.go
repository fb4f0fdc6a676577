package params

import (
	"fmt"

	"github.com/devskill-org/lec-planner/calendar"
	"gonum.org/v1/gonum/stat"
)

const hoursPerWeek = 7 * 24

// WeekStats is the projected mean and standard deviation of one week's prices.
type WeekStats struct {
	Mean   float64
	StdDev float64
}

// FutureProfile reshapes a historic hourly price series to projected weekly
// statistics: every week of history is standardised with its own population
// mean and deviation and rescaled to the target week, negatives are clipped to
// zero and the result is cut to one model year. The last, partial week uses
// the last target entry.
func FutureProfile(history []float64, weeks []WeekStats) ([]float64, error) {
	if len(history) < calendar.HoursPerYear {
		return nil, fmt.Errorf("%w: price history has %d hours, need %d", ErrSeriesLength, len(history), calendar.HoursPerYear)
	}
	needed := (calendar.HoursPerYear + hoursPerWeek - 1) / hoursPerWeek
	if len(weeks) < needed-1 {
		return nil, fmt.Errorf("%w: %d weekly targets, need at least %d", ErrSeriesLength, len(weeks), needed-1)
	}

	out := make([]float64, 0, calendar.HoursPerYear)
	for w := 0; w < needed; w++ {
		start := w * hoursPerWeek
		end := min(start+hoursPerWeek, calendar.HoursPerYear)
		week := history[start:end]
		target := weeks[min(w, len(weeks)-1)]

		mean, std := stat.PopMeanStdDev(week, nil)
		for _, p := range week {
			z := 0.0
			if std > 0 {
				z = (p - mean) / std
			}
			v := target.Mean + z*target.StdDev
			if v < 0 {
				v = 0
			}
			out = append(out, v)
		}
	}
	return out, nil
}
