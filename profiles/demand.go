package profiles

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/devskill-org/lec-planner/calendar"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"
)

// DemandTable maps a household ID to its hourly consumption in kWh.
type DemandTable map[string][]float64

// ReadDemand parses the long-format consumption CSV (ID, Date, Demand_kWh)
// and keeps the rows whose date falls in year, in file order.
func ReadDemand(r io.Reader, year int) (DemandTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read demand header: %w", err)
	}
	idx, err := columnIndex(header, "ID", "Date", "Demand_kWh")
	if err != nil {
		return nil, err
	}

	prefix := strconv.Itoa(year)
	table := make(DemandTable)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read demand line %d: %w", line, err)
		}
		if !strings.Contains(field(rec, idx["Date"]), prefix) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(field(rec, idx["Demand_kWh"])), 64)
		if err != nil {
			return nil, fmt.Errorf("demand line %d: %w", line, err)
		}
		id := strings.TrimSpace(field(rec, idx["ID"]))
		table[id] = append(table[id], v)
	}
	return table, nil
}

// RatioTable holds the hourly electric share of demand per building type.
type RatioTable map[BuildingType][]float64

// ReadRatios parses the ratio CSV: an index column followed by one column per
// building type.
func ReadRatios(r io.Reader) (RatioTable, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read ratio header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("%w: ratio file needs an index and at least one building type", ErrMissingColumn)
	}
	types := lo.Map(header[1:], func(h string, _ int) BuildingType {
		return BuildingType(strings.TrimSpace(h))
	})

	table := make(RatioTable, len(types))
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read ratio line %d: %w", line, err)
		}
		for i, bt := range types {
			v, err := strconv.ParseFloat(strings.TrimSpace(field(rec, i+1)), 64)
			if err != nil {
				return nil, fmt.Errorf("ratio line %d column %s: %w", line, bt, err)
			}
			if v < 0 || v > 1 {
				return nil, fmt.Errorf("ratio line %d column %s: %v outside [0, 1]", line, bt, v)
			}
			table[bt] = append(table[bt], v)
		}
	}
	return table, nil
}

// SplitDemand splits load into an electric part load*ratio and a thermal
// part load*(1-ratio).
func SplitDemand(load, ratio []float64) (el, th []float64, err error) {
	if len(load) != len(ratio) {
		return nil, nil, fmt.Errorf("%w: load has %d hours, ratio %d", ErrSeriesLength, len(load), len(ratio))
	}
	el = make([]float64, len(load))
	th = make([]float64, len(load))
	for t, l := range load {
		el[t] = l * ratio[t]
		th[t] = l * (1 - ratio[t])
	}
	return el, th, nil
}

// BuildDemand assembles the hours x households electric and thermal demand
// matrices of the sampled households. Every series must cover exactly one year.
func BuildDemand(households []Household, demand DemandTable, ratios RatioTable) (el, th *mat.Dense, err error) {
	if len(households) == 0 {
		return nil, nil, ErrNoEligibleHouseholds
	}
	el = mat.NewDense(calendar.HoursPerYear, len(households), nil)
	th = mat.NewDense(calendar.HoursPerYear, len(households), nil)
	for h, hh := range households {
		load, ok := demand[hh.ID]
		if !ok {
			return nil, nil, fmt.Errorf("no demand for household %s", hh.ID)
		}
		if len(load) != calendar.HoursPerYear {
			return nil, nil, fmt.Errorf("%w: household %s has %d demand hours, want %d", ErrSeriesLength, hh.ID, len(load), calendar.HoursPerYear)
		}
		ratio, ok := ratios[hh.Building]
		if !ok {
			return nil, nil, fmt.Errorf("no electric ratio for building type %s", hh.Building)
		}
		if len(ratio) != calendar.HoursPerYear {
			return nil, nil, fmt.Errorf("%w: %s ratio has %d hours, want %d", ErrSeriesLength, hh.Building, len(ratio), calendar.HoursPerYear)
		}
		e, t, err := SplitDemand(load, ratio)
		if err != nil {
			return nil, nil, fmt.Errorf("household %s: %w", hh.ID, err)
		}
		el.SetCol(h, e)
		th.SetCol(h, t)
	}
	return el, th, nil
}
