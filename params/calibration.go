package params

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// MonthlyPeakSums returns the sum over households and months of each
// household's monthly peak, and the sum over months of the community's
// aggregated monthly peak. demand is hours x households, months maps each
// hour to its month.
func MonthlyPeakSums(demand mat.Matrix, months []int) (individual, aggregated float64, err error) {
	hours, households := demand.Dims()
	if len(months) != hours {
		return 0, 0, fmt.Errorf("%w: %d demand hours, %d month entries", ErrSeriesLength, hours, len(months))
	}

	nMonths := 0
	for _, m := range months {
		if m+1 > nMonths {
			nMonths = m + 1
		}
	}

	housePeaks := make([][]float64, households)
	for h := range housePeaks {
		housePeaks[h] = make([]float64, nMonths)
		for m := range housePeaks[h] {
			housePeaks[h][m] = math.Inf(-1)
		}
	}
	aggPeaks := make([]float64, nMonths)
	seen := make([]bool, nMonths)
	for m := range aggPeaks {
		aggPeaks[m] = math.Inf(-1)
	}

	for t := 0; t < hours; t++ {
		m := months[t]
		seen[m] = true
		total := 0.0
		for h := 0; h < households; h++ {
			d := demand.At(t, h)
			total += d
			housePeaks[h][m] = math.Max(housePeaks[h][m], d)
		}
		aggPeaks[m] = math.Max(aggPeaks[m], total)
	}

	for m := 0; m < nMonths; m++ {
		if !seen[m] {
			continue
		}
		aggregated += aggPeaks[m]
		for h := 0; h < households; h++ {
			individual += housePeaks[h][m]
		}
	}
	return individual, aggregated, nil
}

// CalibrateAggregatedTariff scales an individual peak tariff so that charging
// the community's aggregated monthly peaks yields the same DSO revenue as
// charging every household's own monthly peak.
func CalibrateAggregatedTariff(tariff float64, demand mat.Matrix, months []int) (float64, error) {
	individual, aggregated, err := MonthlyPeakSums(demand, months)
	if err != nil {
		return 0, err
	}
	if aggregated == 0 {
		return 0, ErrZeroAggregatedPeak
	}
	return tariff * individual / aggregated, nil
}
