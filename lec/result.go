package lec

import (
	"github.com/devskill-org/lec-planner/lp"
)

// Heating splits the community heat supply by source, hourly.
type Heating struct {
	Resistive        []float64
	HouseHP          []float64
	StorageDelivered []float64 // everything the storage system hands to households
	StorageDischarge []float64 // heat out of the storage incl. discharge pump electricity
	StorageHPDirect  []float64 // storage heat pump output bypassing the storage
}

// Result is the solved model read back into hourly series and summaries.
// Hourly series are community totals.
type Result struct {
	Households int
	Months     []int

	GridImport  []float64
	GridExport  []float64
	LocalImport []float64
	LocalExport []float64
	NetLoad     []float64 // grid import minus export

	ElDemand    []float64
	ThDemand    []float64
	TotalDemand []float64

	StorageSOC         []float64
	StorageTemperature []float64 // degC, ground temperature when nothing is built
	StorageCharge      []float64
	StorageDischarge   []float64
	StorageHPHeat      []float64

	Heating Heating

	PeakHouse     [][]float64 // [household][month]
	PeakAggImport []float64   // [month]
	PeakAggExport []float64

	PVCapacity        []float64 // per household
	HouseHPCapacity   []float64
	StorageVolume     float64
	StorageHPCapacity float64

	Terms     []TermValue
	Objective float64

	Solution *lp.Solution
}

func sumRow(sol *lp.Solution, vars []lp.Var) float64 {
	total := 0.0
	for _, v := range vars {
		total += sol.Value(v)
	}
	return total
}

func values(sol *lp.Solution, vars []lp.Var) []float64 {
	out := make([]float64, len(vars))
	for i, v := range vars {
		out[i] = sol.Value(v)
	}
	return out
}

func (m *Model) extract(sol *lp.Solution) *Result {
	p, v := m.Params, m.Vars
	hours := p.Hours()
	st := p.Storage

	r := &Result{
		Households:         p.Households,
		Months:             append([]int(nil), p.Months...),
		GridImport:         make([]float64, hours),
		GridExport:         make([]float64, hours),
		LocalImport:        make([]float64, hours),
		LocalExport:        make([]float64, hours),
		NetLoad:            make([]float64, hours),
		ElDemand:           make([]float64, hours),
		ThDemand:           make([]float64, hours),
		TotalDemand:        make([]float64, hours),
		StorageSOC:         values(sol, v.StorageSOC),
		StorageTemperature: make([]float64, hours),
		StorageCharge:      values(sol, v.StorageCharge),
		StorageDischarge:   values(sol, v.StorageDischarge),
		StorageHPHeat:      values(sol, v.StorageHPHeat),
		Heating: Heating{
			Resistive:        make([]float64, hours),
			HouseHP:          make([]float64, hours),
			StorageDelivered: make([]float64, hours),
			StorageDischarge: make([]float64, hours),
			StorageHPDirect:  values(sol, v.StorageHPDirect),
		},
		PeakHouse:         make([][]float64, p.Households),
		PeakAggImport:     values(sol, v.PeakAggImport),
		PeakAggExport:     values(sol, v.PeakAggExport),
		PVCapacity:        values(sol, v.PVCapacity),
		HouseHPCapacity:   values(sol, v.HouseHPCapacity),
		StorageVolume:     sol.Value(v.StorageVolume),
		StorageHPCapacity: sol.Value(v.StorageHPCapacity),
		Terms:             m.Objective.Evaluate(sol),
		Solution:          sol,
	}

	dischargeHeat := st.DischargeCOP / (st.DischargeCOP - 1)
	heatPerKelvin := r.StorageVolume * st.HeatCapacity
	for t := 0; t < hours; t++ {
		r.GridImport[t] = sumRow(sol, v.GridImport[t])
		r.GridExport[t] = sumRow(sol, v.GridExport[t])
		r.LocalImport[t] = sumRow(sol, v.LocalImport[t])
		r.LocalExport[t] = sumRow(sol, v.LocalExport[t])
		r.NetLoad[t] = r.GridImport[t] - r.GridExport[t]

		for h := 0; h < p.Households; h++ {
			r.ElDemand[t] += p.ElDemand.At(t, h)
			r.ThDemand[t] += p.ThDemand.At(t, h)
		}
		r.TotalDemand[t] = r.ElDemand[t] + r.ThDemand[t]

		r.Heating.Resistive[t] = sumRow(sol, v.ResistiveHeating[t])
		r.Heating.HouseHP[t] = sumRow(sol, v.HouseHPHeat[t])
		r.Heating.StorageDelivered[t] = sumRow(sol, v.StorageTh[t])
		r.Heating.StorageDischarge[t] = r.StorageDischarge[t] * dischargeHeat

		r.StorageTemperature[t] = st.GroundTemperature
		if heatPerKelvin > 0 {
			r.StorageTemperature[t] += r.StorageSOC[t] / heatPerKelvin
		}
	}

	for h := range r.PeakHouse {
		r.PeakHouse[h] = values(sol, v.PeakHouse[h])
	}
	for _, tv := range r.Terms {
		r.Objective += tv.Value
	}
	return r
}

// Term returns the value of the named cost term and whether it exists.
func (r *Result) Term(name string) (float64, bool) {
	for _, tv := range r.Terms {
		if tv.Name == name {
			return tv.Value, true
		}
	}
	return 0, false
}
