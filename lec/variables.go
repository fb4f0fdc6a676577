package lec

import (
	"fmt"

	"github.com/devskill-org/lec-planner/lp"
)

// Variables holds the handles of every decision variable. Hourly household
// variables are indexed [hour][household], peaks [household][month].
type Variables struct {
	PVCapacity      []lp.Var
	HouseHPCapacity []lp.Var

	GridImport       [][]lp.Var
	GridExport       [][]lp.Var
	LocalImport      [][]lp.Var
	LocalExport      [][]lp.Var
	ResistiveHeating [][]lp.Var
	HouseHPHeat      [][]lp.Var
	StorageEl        [][]lp.Var // household share of the storage heat pump draw
	StorageTh        [][]lp.Var // heat the storage system delivers to the household

	PeakHouse     [][]lp.Var
	PeakAggImport []lp.Var
	PeakAggExport []lp.Var

	StorageVolume     lp.Var
	StorageHPCapacity lp.Var
	StorageSOC        []lp.Var
	StorageHPHeat     []lp.Var
	StorageHPDirect   []lp.Var
	StorageCharge     []lp.Var
	StorageDischarge  []lp.Var
}

func hourly(m *lp.Model, name string, hours, households int, ub float64) [][]lp.Var {
	out := make([][]lp.Var, hours)
	for t := range out {
		out[t] = make([]lp.Var, households)
		for h := range out[t] {
			out[t][h] = m.AddVar(fmt.Sprintf("%s_t%d_h%d", name, t, h), 0, ub)
		}
	}
	return out
}

func series(m *lp.Model, name string, hours int, ub func(t int) float64) []lp.Var {
	out := make([]lp.Var, hours)
	for t := range out {
		out[t] = m.AddVar(fmt.Sprintf("%s_t%d", name, t), 0, ub(t))
	}
	return out
}

func constant(v float64) func(int) float64 {
	return func(int) float64 { return v }
}

// declareVariables adds every variable to m. Disabled subsystems keep their
// variables with an upper bound of zero so the constraint structure does not
// depend on the options.
func declareVariables(m *lp.Model, opts Options, p *Params) *Variables {
	hours, households := p.Hours(), p.Households
	st := p.Storage

	onOff := func(enabled bool, ub float64) float64 {
		if enabled {
			return ub
		}
		return 0
	}
	houseHP := onOff(opts.EnableHouseHP, p.HouseHP.MaxHeat)
	local := onOff(opts.EnableLocalMarket, p.MaxGridImport)
	stes := opts.EnableSTES

	v := &Variables{
		PVCapacity:      make([]lp.Var, households),
		HouseHPCapacity: make([]lp.Var, households),
	}
	for h := 0; h < households; h++ {
		v.PVCapacity[h] = m.AddVar(fmt.Sprintf("pv_capacity_h%d", h), 0, p.PV.MaxCapacity)
		v.HouseHPCapacity[h] = m.AddVar(fmt.Sprintf("house_hp_capacity_h%d", h), 0, houseHP)
	}

	v.GridImport = hourly(m, "grid_import", hours, households, p.MaxGridImport)
	v.GridExport = hourly(m, "grid_export", hours, households, p.MaxGridExport)
	v.LocalImport = hourly(m, "local_import", hours, households, local)
	v.LocalExport = hourly(m, "local_export", hours, households, local)
	v.ResistiveHeating = hourly(m, "resistive_heating", hours, households, lp.Inf)
	v.HouseHPHeat = hourly(m, "house_hp_heat", hours, households, houseHP)
	v.StorageEl = hourly(m, "storage_el", hours, households, onOff(stes, lp.Inf))
	v.StorageTh = hourly(m, "storage_th", hours, households, onOff(stes, lp.Inf))

	v.PeakHouse = make([][]lp.Var, households)
	for h := range v.PeakHouse {
		v.PeakHouse[h] = make([]lp.Var, MonthsPerYear)
		for mo := range v.PeakHouse[h] {
			v.PeakHouse[h][mo] = m.AddVar(fmt.Sprintf("peak_house_h%d_m%d", h, mo), 0, lp.Inf)
		}
	}
	v.PeakAggImport = make([]lp.Var, MonthsPerYear)
	v.PeakAggExport = make([]lp.Var, MonthsPerYear)
	for mo := 0; mo < MonthsPerYear; mo++ {
		v.PeakAggImport[mo] = m.AddVar(fmt.Sprintf("peak_agg_import_m%d", mo), 0, lp.Inf)
		v.PeakAggExport[mo] = m.AddVar(fmt.Sprintf("peak_agg_export_m%d", mo), 0, lp.Inf)
	}

	if stes {
		v.StorageVolume = m.AddVar("storage_volume", st.MinVolume, st.MaxVolume)
	} else {
		v.StorageVolume = m.AddVar("storage_volume", 0, 0)
	}
	v.StorageHPCapacity = m.AddVar("storage_hp_capacity", 0, onOff(stes, st.HPMaxHeat))

	discharging := make(map[int]bool, len(st.DischargingMonths))
	for _, mo := range st.DischargingMonths {
		discharging[mo] = true
	}
	chargeUB := func(t int) float64 {
		if !stes || (opts.SeasonalGating && discharging[p.Months[t]]) {
			return 0
		}
		return lp.Inf
	}
	dischargeUB := func(t int) float64 {
		if !stes || (opts.SeasonalGating && !discharging[p.Months[t]]) {
			return 0
		}
		return lp.Inf
	}

	v.StorageSOC = series(m, "storage_soc", hours, constant(onOff(stes, lp.Inf)))
	v.StorageHPHeat = series(m, "storage_hp_heat", hours, constant(onOff(stes, lp.Inf)))
	v.StorageHPDirect = series(m, "storage_hp_direct", hours, constant(onOff(stes, lp.Inf)))
	v.StorageCharge = series(m, "storage_charge", hours, chargeUB)
	v.StorageDischarge = series(m, "storage_discharge", hours, dischargeUB)
	return v
}
