package profiles

import (
	"bytes"
	"strings"
	"testing"

	"github.com/devskill-org/lec-planner/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const surveyCSV = `ID,Q_City,Q7,Q22,Q28,Q27_3,Q27_5,Q27_6,Q27_7
101,4,2,1,1,0,0,0,0
102,4,3,4,3,0,0,0,0
103,4,1,1,1,0,0,0,0
104,3,2,1,1,0,0,0,0
105,4,2,2,3,1,0,0,0
106,4,2,5,1,0,0,0,0
107,4,2.0,3,1,,0,0,0
`

func TestReadAnswersAndEligibility(t *testing.T) {
	answers, err := ReadAnswers(strings.NewReader(surveyCSV))
	require.NoError(t, err)
	require.Len(t, answers, 7)

	tests := []struct {
		id       string
		eligible bool
	}{
		{id: "101", eligible: true},
		{id: "102", eligible: true},
		{id: "103", eligible: false}, // took saving measures
		{id: "104", eligible: false}, // other city
		{id: "105", eligible: false}, // has a heat pump
		{id: "106", eligible: false}, // other dwelling
		{id: "107", eligible: true},  // float code and blank answer
	}
	for i, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.id, answers[i].ID)
			assert.Equal(t, tt.eligible, answers[i].Eligible(DefaultCity))
		})
	}
}

func TestBuildingType(t *testing.T) {
	tests := []struct {
		dwelling int
		want     BuildingType
		wantErr  bool
	}{
		{dwelling: 1, want: House},
		{dwelling: 3, want: House},
		{dwelling: 4, want: Apartment},
		{dwelling: 5, wantErr: true},
		{dwelling: 0, wantErr: true},
	}
	for _, tt := range tests {
		got, err := Answer{ID: "x", Dwelling: tt.dwelling}.BuildingType()
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestReadAnswersMissingColumn(t *testing.T) {
	_, err := ReadAnswers(strings.NewReader("ID,Q_City\n1,4\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestEligiblePool(t *testing.T) {
	answers, err := ReadAnswers(strings.NewReader(surveyCSV))
	require.NoError(t, err)
	demand := DemandTable{"101": {1}, "107": {1}, "103": {1}}

	pool, err := EligiblePool(answers, demand, DefaultCity)
	require.NoError(t, err)
	assert.Equal(t, []Household{{ID: "101", Building: House}, {ID: "107", Building: House}}, pool)

	_, err = EligiblePool(answers, demand, 9)
	assert.ErrorIs(t, err, ErrNoEligibleHouseholds)
}

func TestSampleHouseholdsDeterministic(t *testing.T) {
	pool := []Household{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}

	first, err := SampleHouseholds(pool, 20, DefaultSeed)
	require.NoError(t, err)
	second, err := SampleHouseholds(pool, 20, DefaultSeed)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.Len(t, first, 20)

	seen := map[string]bool{}
	for _, h := range first {
		seen[h.ID] = true
	}
	assert.Greater(t, len(seen), 1, "sampling with replacement should still spread over the pool")

	other, err := SampleHouseholds(pool, 20, DefaultSeed+1)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	_, err = SampleHouseholds(nil, 3, 1)
	assert.ErrorIs(t, err, ErrNoEligibleHouseholds)
	_, err = SampleHouseholds(pool, 0, 1)
	assert.Error(t, err)
}

func TestReadDemandFiltersYear(t *testing.T) {
	csv := "ID,Date,Demand_kWh\n" +
		"1,2020-12-31 23:00,9\n" +
		"1,2021-01-01 00:00,1.5\n" +
		"2,2021-01-01 00:00,2\n" +
		"1,2021-01-01 01:00,2.5\n"
	table, err := ReadDemand(strings.NewReader(csv), 2021)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5}, table["1"])
	assert.Equal(t, []float64{2}, table["2"])
}

func TestSplitDemand(t *testing.T) {
	el, th, err := SplitDemand([]float64{2, 4, 0}, []float64{0.25, 0.5, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 2, 0}, el)
	assert.Equal(t, []float64{1.5, 2, 0}, th)

	_, _, err = SplitDemand([]float64{1, 2}, []float64{0.5})
	assert.ErrorIs(t, err, ErrSeriesLength)
}

func TestBuildDemand(t *testing.T) {
	year := func(v float64) []float64 {
		out := make([]float64, calendar.HoursPerYear)
		for i := range out {
			out[i] = v
		}
		return out
	}
	demand := DemandTable{"a": year(2), "b": year(4), "short": {1, 2}}
	ratios := RatioTable{House: year(0.25), Apartment: year(0.5)}

	el, th, err := BuildDemand([]Household{{ID: "a", Building: House}, {ID: "b", Building: Apartment}, {ID: "a", Building: House}}, demand, ratios)
	require.NoError(t, err)
	r, c := el.Dims()
	assert.Equal(t, calendar.HoursPerYear, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 0.5, el.At(100, 0))
	assert.Equal(t, 1.5, th.At(100, 0))
	assert.Equal(t, 2.0, el.At(100, 1))
	assert.Equal(t, 2.0, th.At(100, 1))
	assert.Equal(t, 0.5, el.At(8759, 2))

	_, _, err = BuildDemand([]Household{{ID: "short", Building: House}}, demand, ratios)
	assert.ErrorIs(t, err, ErrSeriesLength)
	_, _, err = BuildDemand(nil, demand, ratios)
	assert.ErrorIs(t, err, ErrNoEligibleHouseholds)
}

func TestReadRatios(t *testing.T) {
	table, err := ReadRatios(strings.NewReader(",House,Apartment\n0,0.3,0.6\n1,0.35,0.65\n"))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.3, 0.35}, table[House])
	assert.Equal(t, []float64{0.6, 0.65}, table[Apartment])

	_, err = ReadRatios(strings.NewReader(",House\n0,1.3\n"))
	assert.Error(t, err)
}

func TestReadSeries(t *testing.T) {
	pvFile := "# meta 1\n# meta 2\ntime,local_time,electricity\n2021-01-01 00:00,x,0\n2021-01-01 01:00,x,0.125\n"
	got, err := ReadSeries(strings.NewReader(pvFile), SeriesFormat{Column: "electricity"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.125}, got)

	skipped := "units\nkW\n\nhour,price\n0,55.5\n1,60\n"
	got, err = ReadSeries(strings.NewReader(skipped), SeriesFormat{SkipRows: 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{55.5, 60}, got)

	_, err = ReadSeries(strings.NewReader("a,b\n1,2\n"), SeriesFormat{Column: "c"})
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestWriteSeries(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSeries(&buf, "spot", []float64{1.5, 2}))
	assert.Equal(t, "hour,spot\n0,1.5\n1,2\n", buf.String())
}

func TestSyntheticPV(t *testing.T) {
	pv, err := SyntheticPV(DefaultPVSite())
	require.NoError(t, err)
	require.Len(t, pv, calendar.HoursPerYear)

	midnight := 0
	summerNoon := 181*24 + 12
	winterNoon := 15*24 + 12
	assert.Zero(t, pv[midnight])
	assert.Greater(t, pv[summerNoon], pv[winterNoon])
	for _, v := range pv {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, DefaultPVSite().PerformanceRatio)
	}

	_, err = SyntheticPV(PVSite{Latitude: 59, PerformanceRatio: 0})
	assert.Error(t, err)
}
