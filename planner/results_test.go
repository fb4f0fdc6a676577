package planner

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/devskill-org/lec-planner/lec"
	"github.com/devskill-org/lec-planner/profiles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func sampleResult() *lec.Result {
	hourly := []float64{1, 2}
	zero := []float64{0, 0}
	return &lec.Result{
		Households:  2,
		Months:      []int{0, 0},
		GridImport:  hourly,
		GridExport:  zero,
		LocalImport: zero,
		LocalExport: zero,
		NetLoad:     hourly,
		ElDemand:    []float64{0.5, 1},
		ThDemand:    []float64{0.5, 1},
		TotalDemand: hourly,

		StorageSOC:         zero,
		StorageTemperature: []float64{8, 8},
		StorageCharge:      zero,
		StorageDischarge:   zero,
		StorageHPHeat:      zero,
		Heating: lec.Heating{
			Resistive:        []float64{0.5, 1},
			HouseHP:          zero,
			StorageDelivered: zero,
			StorageDischarge: zero,
			StorageHPDirect:  zero,
		},
		PeakHouse:       [][]float64{{1, 2}, {0.5, 0}},
		PeakAggImport:   []float64{2, 3},
		PeakAggExport:   []float64{0, 1},
		PVCapacity:      []float64{1.5, 0},
		HouseHPCapacity: []float64{0, 2},
		StorageVolume:   40,
		Terms: []lec.TermValue{
			{Name: lec.TermPowerMarket, Value: 3},
			{Name: lec.TermTax, Value: 1.5},
		},
		Objective: 4.5,
	}
}

func TestResultsWriter(t *testing.T) {
	w := NewResultsWriter(t.TempDir(), "base")
	require.NoError(t, w.Clear())
	require.NoError(t, w.Write(sampleResult(), []profiles.Household{{ID: "101"}, {ID: "102"}}))

	tests := []struct {
		file string
		want [][]string
	}{
		{
			file: "grid_import.csv",
			want: [][]string{{"hour", "grid_import"}, {"0", "1"}, {"1", "2"}},
		},
		{
			file: "stes_temperature.csv",
			want: [][]string{{"hour", "stes_temperature"}, {"0", "8"}, {"1", "8"}},
		},
		{
			file: "peak_monthly_house.csv",
			want: [][]string{
				{"household", "month_1", "month_2", "total"},
				{"101", "1", "2", "3"},
				{"102", "0.5", "0", "0.5"},
			},
		},
		{
			file: "peak_monthly_aggregated.csv",
			want: [][]string{
				{"month", "import_peak", "export_peak"},
				{"1", "2", "0"},
				{"2", "3", "1"},
				{"total", "5", "1"},
			},
		},
		{
			file: "capacities.csv",
			want: [][]string{
				{"household", "pv_kwp", "house_hp_kw"},
				{"101", "1.5", "0"},
				{"102", "0", "2"},
				{"total", "1.5", "2"},
			},
		},
		{
			file: "stes_volume.csv",
			want: [][]string{{"volume_m3", "hp_capacity_kw"}, {"40", "0"}},
		},
		{
			file: "objective_terms.csv",
			want: [][]string{
				{"term", "value"},
				{lec.TermPowerMarket, "3"},
				{lec.TermTax, "1.5"},
				{"total", "4.5"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			assert.Equal(t, tt.want, readCSV(t, filepath.Join(w.Dir, tt.file)))
		})
	}

	heating := readCSV(t, filepath.Join(w.Dir, "heating_sources.csv"))
	require.Len(t, heating, 3)
	assert.Equal(t, "resistive", heating[0][1])
	assert.Equal(t, "1", heating[2][1])

	entries, err := os.ReadDir(w.Dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, '.', rune(e.Name()[0]), "temporary file left behind: %s", e.Name())
	}
}

func TestResultsWriterLabelsWithoutHouseholds(t *testing.T) {
	w := NewResultsWriter(t.TempDir(), "anon")
	require.NoError(t, w.Clear())
	require.NoError(t, w.Write(sampleResult(), nil))

	rows := readCSV(t, filepath.Join(w.Dir, "capacities.csv"))
	assert.Equal(t, "0", rows[1][0])
	assert.Equal(t, "1", rows[2][0])
}

func TestResultsWriterClear(t *testing.T) {
	root := t.TempDir()
	w := NewResultsWriter(root, "base")
	assert.Equal(t, filepath.Join(root, "base"), w.Dir)

	require.NoError(t, os.MkdirAll(w.Dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(w.Dir, "old.csv"), []byte("x"), 0o644))
	require.NoError(t, w.Clear())

	entries, err := os.ReadDir(w.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
