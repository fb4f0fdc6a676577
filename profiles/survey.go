// Package profiles loads household survey answers, consumption and PV
// profiles, samples the community and splits demand into electric and
// thermal parts.
package profiles

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultCity is the survey code of Oslo.
const DefaultCity = 4

var (
	ErrNoEligibleHouseholds = errors.New("profiles: no eligible households")
	ErrMissingColumn        = errors.New("profiles: missing column")
	ErrSeriesLength         = errors.New("profiles: series length mismatch")
)

// BuildingType selects the electric/thermal ratio series of a household.
type BuildingType string

const (
	House     BuildingType = "House"
	Apartment BuildingType = "Apartment"
)

// Answer is the part of one survey response the household filter needs.
type Answer struct {
	ID              string
	City            int // Q_City
	SavingMeasures  int // Q7, 2 or 3 means no energy saving measures taken
	Dwelling        int // Q22, 1-3 house, 4 apartment, 5 other
	WaterHeating    int // Q28, 1 or 3 means electric hot water
	HeatPump        int // Q27_3
	Fireplace       int // Q27_5
	OilBurner       int // Q27_6
	DistrictHeating int // Q27_7
}

// Eligible reports whether the household is fully electrically heated
// without a heat pump and lives in city.
func (a Answer) Eligible(city int) bool {
	return a.City == city &&
		(a.SavingMeasures == 2 || a.SavingMeasures == 3) &&
		(a.WaterHeating == 1 || a.WaterHeating == 3) &&
		a.OilBurner == 0 &&
		a.DistrictHeating == 0 &&
		a.Fireplace == 0 &&
		a.HeatPump == 0 &&
		a.Dwelling != 5
}

// BuildingType maps the dwelling answer onto a ratio series.
func (a Answer) BuildingType() (BuildingType, error) {
	switch a.Dwelling {
	case 1, 2, 3:
		return House, nil
	case 4:
		return Apartment, nil
	default:
		return "", fmt.Errorf("household %s: unknown dwelling type %d", a.ID, a.Dwelling)
	}
}

var answerColumns = []string{"ID", "Q_City", "Q7", "Q22", "Q28", "Q27_3", "Q27_5", "Q27_6", "Q27_7"}

// ReadAnswers parses the survey CSV. Columns are found by header name; blank
// answers read as 0.
func ReadAnswers(r io.Reader) ([]Answer, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read survey header: %w", err)
	}
	idx, err := columnIndex(header, answerColumns...)
	if err != nil {
		return nil, err
	}

	var answers []Answer
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read survey line %d: %w", line, err)
		}

		ints := make(map[string]int, len(answerColumns))
		for _, col := range answerColumns[1:] {
			v, err := parseCode(field(rec, idx[col]))
			if err != nil {
				return nil, fmt.Errorf("survey line %d column %s: %w", line, col, err)
			}
			ints[col] = v
		}
		answers = append(answers, Answer{
			ID:              strings.TrimSpace(field(rec, idx["ID"])),
			City:            ints["Q_City"],
			SavingMeasures:  ints["Q7"],
			Dwelling:        ints["Q22"],
			WaterHeating:    ints["Q28"],
			HeatPump:        ints["Q27_3"],
			Fireplace:       ints["Q27_5"],
			OilBurner:       ints["Q27_6"],
			DistrictHeating: ints["Q27_7"],
		})
	}
	return answers, nil
}

func columnIndex(header []string, names ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, n := range names {
		if _, ok := idx[n]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, n)
		}
	}
	return idx, nil
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

// parseCode reads a survey code, which exports may write as "3" or "3.0".
func parseCode(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
