package planner

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/devskill-org/lec-planner/lec"
	"github.com/devskill-org/lec-planner/profiles"
	"github.com/samber/lo"
)

// ResultsWriter writes the CSV outputs of one scenario into its own directory.
type ResultsWriter struct {
	Dir string
}

// NewResultsWriter returns a writer for root/scenario.
func NewResultsWriter(root, scenario string) *ResultsWriter {
	return &ResultsWriter{Dir: filepath.Join(root, scenario)}
}

// Clear removes the previous outputs of the scenario and recreates its directory.
func (w *ResultsWriter) Clear() error {
	if err := os.RemoveAll(w.Dir); err != nil {
		return fmt.Errorf("failed to clear %s: %w", w.Dir, err)
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", w.Dir, err)
	}
	return nil
}

// Write stores every output series of res. households labels the
// per-household files and may be nil.
func (w *ResultsWriter) Write(res *lec.Result, households []profiles.Household) error {
	hourly := []struct {
		name   string
		values []float64
	}{
		{"grid_import", res.GridImport},
		{"grid_export", res.GridExport},
		{"local_import", res.LocalImport},
		{"local_export", res.LocalExport},
		{"net_load", res.NetLoad},
		{"el_demand", res.ElDemand},
		{"th_demand", res.ThDemand},
		{"total_demand", res.TotalDemand},
		{"stes_soc", res.StorageSOC},
		{"stes_temperature", res.StorageTemperature},
		{"stes_charge", res.StorageCharge},
		{"stes_discharge", res.StorageDischarge},
		{"stes_hp_heat", res.StorageHPHeat},
		{"hp_direct", res.Heating.StorageHPDirect},
	}
	for _, s := range hourly {
		if err := w.writeFile(s.name+".csv", func(out io.Writer) error {
			return profiles.WriteSeries(out, s.name, s.values)
		}); err != nil {
			return err
		}
	}

	writers := []struct {
		name string
		fill func(*csv.Writer) error
	}{
		{"heating_sources.csv", func(cw *csv.Writer) error { return writeHeating(cw, res.Heating) }},
		{"peak_monthly_house.csv", func(cw *csv.Writer) error { return writeHousePeaks(cw, res, households) }},
		{"peak_monthly_aggregated.csv", func(cw *csv.Writer) error { return writeAggregatedPeaks(cw, res) }},
		{"capacities.csv", func(cw *csv.Writer) error { return writeCapacities(cw, res, households) }},
		{"stes_volume.csv", func(cw *csv.Writer) error { return writeStorageSize(cw, res) }},
		{"objective_terms.csv", func(cw *csv.Writer) error { return writeTerms(cw, res) }},
	}
	for _, f := range writers {
		if err := w.writeFile(f.name, func(out io.Writer) error {
			cw := csv.NewWriter(out)
			if err := f.fill(cw); err != nil {
				return err
			}
			cw.Flush()
			return cw.Error()
		}); err != nil {
			return err
		}
	}
	return nil
}

// writeFile writes name through a temporary file so readers never see a partial file.
func (w *ResultsWriter) writeFile(name string, fill func(io.Writer) error) error {
	tmp, err := os.CreateTemp(w.Dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(w.Dir, name)); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", name, err)
	}
	return nil
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func householdLabel(households []profiles.Household, h int) string {
	if h < len(households) {
		return households[h].ID
	}
	return strconv.Itoa(h)
}

func writeHeating(cw *csv.Writer, heat lec.Heating) error {
	if err := cw.Write([]string{"hour", "resistive", "house_hp", "stes_delivered", "stes_discharge", "stes_hp_direct"}); err != nil {
		return err
	}
	for t := range heat.Resistive {
		if err := cw.Write([]string{
			strconv.Itoa(t),
			ftoa(heat.Resistive[t]),
			ftoa(heat.HouseHP[t]),
			ftoa(heat.StorageDelivered[t]),
			ftoa(heat.StorageDischarge[t]),
			ftoa(heat.StorageHPDirect[t]),
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeHousePeaks(cw *csv.Writer, res *lec.Result, households []profiles.Household) error {
	header := []string{"household"}
	if len(res.PeakHouse) > 0 {
		for m := range res.PeakHouse[0] {
			header = append(header, "month_"+strconv.Itoa(m+1))
		}
	}
	header = append(header, "total")
	if err := cw.Write(header); err != nil {
		return err
	}
	for h, peaks := range res.PeakHouse {
		row := append([]string{householdLabel(households, h)}, lo.Map(peaks, func(v float64, _ int) string { return ftoa(v) })...)
		row = append(row, ftoa(lo.Sum(peaks)))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func writeAggregatedPeaks(cw *csv.Writer, res *lec.Result) error {
	if err := cw.Write([]string{"month", "import_peak", "export_peak"}); err != nil {
		return err
	}
	for m := range res.PeakAggImport {
		if err := cw.Write([]string{strconv.Itoa(m + 1), ftoa(res.PeakAggImport[m]), ftoa(res.PeakAggExport[m])}); err != nil {
			return err
		}
	}
	return cw.Write([]string{"total", ftoa(lo.Sum(res.PeakAggImport)), ftoa(lo.Sum(res.PeakAggExport))})
}

func writeCapacities(cw *csv.Writer, res *lec.Result, households []profiles.Household) error {
	if err := cw.Write([]string{"household", "pv_kwp", "house_hp_kw"}); err != nil {
		return err
	}
	for h := range res.PVCapacity {
		if err := cw.Write([]string{householdLabel(households, h), ftoa(res.PVCapacity[h]), ftoa(res.HouseHPCapacity[h])}); err != nil {
			return err
		}
	}
	return cw.Write([]string{"total", ftoa(lo.Sum(res.PVCapacity)), ftoa(lo.Sum(res.HouseHPCapacity))})
}

func writeStorageSize(cw *csv.Writer, res *lec.Result) error {
	if err := cw.Write([]string{"volume_m3", "hp_capacity_kw"}); err != nil {
		return err
	}
	return cw.Write([]string{ftoa(res.StorageVolume), ftoa(res.StorageHPCapacity)})
}

func writeTerms(cw *csv.Writer, res *lec.Result) error {
	if err := cw.Write([]string{"term", "value"}); err != nil {
		return err
	}
	for _, tv := range res.Terms {
		if err := cw.Write([]string{tv.Name, ftoa(tv.Value)}); err != nil {
			return err
		}
	}
	return cw.Write([]string{"total", ftoa(res.Objective)})
}
