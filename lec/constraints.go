package lec

import (
	"fmt"

	"github.com/devskill-org/lec-planner/lp"
)

func prevHour(t, hours int) int {
	if t == 0 {
		return hours - 1
	}
	return t - 1
}

// addConstraints instantiates every row of the community model.
func addConstraints(m *lp.Model, v *Variables, p *Params) {
	hours, households := p.Hours(), p.Households
	houseCOP := p.HouseHP.COP

	for t := 0; t < hours; t++ {
		month := p.Months[t]
		net := lp.NewExpr(2 * households)

		for h := 0; h < households; h++ {
			imp, exp := v.GridImport[t][h], v.GridExport[t][h]

			// grid + local + pv = el + resistive + house hp + storage share
			e := lp.NewExpr(8)
			e.Add(imp, 1).Add(exp, -1).
				Add(v.LocalImport[t][h], 1).Add(v.LocalExport[t][h], -1).
				Add(v.PVCapacity[h], p.PVYield[t]).
				Add(v.ResistiveHeating[t][h], -1).
				Add(v.HouseHPHeat[t][h], -1/houseCOP).
				Add(v.StorageEl[t][h], -1)
			m.AddConstraint(fmt.Sprintf("el_balance_t%d_h%d", t, h), e, lp.Equal, p.ElDemand.At(t, h))

			th := lp.Sum(v.ResistiveHeating[t][h], v.HouseHPHeat[t][h], v.StorageTh[t][h])
			m.AddConstraint(fmt.Sprintf("th_balance_t%d_h%d", t, h), th, lp.Equal, p.ThDemand.At(t, h))

			hp := lp.NewExpr(2)
			hp.Add(v.HouseHPHeat[t][h], 1).Add(v.HouseHPCapacity[h], -1)
			m.AddConstraint(fmt.Sprintf("house_hp_cap_t%d_h%d", t, h), hp, lp.LessEq, 0)

			peak := v.PeakHouse[h][month]
			up := lp.NewExpr(3)
			up.Add(imp, 1).Add(exp, -1).Add(peak, -1)
			m.AddConstraint(fmt.Sprintf("peak_import_t%d_h%d", t, h), up, lp.LessEq, 0)
			down := lp.NewExpr(3)
			down.Add(imp, -1).Add(exp, 1).Add(peak, -1)
			m.AddConstraint(fmt.Sprintf("peak_export_t%d_h%d", t, h), down, lp.LessEq, 0)

			net.Add(imp, 1).Add(exp, -1)
		}

		aggImp := lp.NewExpr(len(net.Terms) + 1)
		aggImp.AddExpr(net, 1).Add(v.PeakAggImport[month], -1)
		m.AddConstraint(fmt.Sprintf("peak_agg_import_t%d", t), aggImp, lp.LessEq, 0)
		aggExp := lp.NewExpr(len(net.Terms) + 1)
		aggExp.AddExpr(net, -1).Add(v.PeakAggExport[month], -1)
		m.AddConstraint(fmt.Sprintf("peak_agg_export_t%d", t), aggExp, lp.LessEq, 0)

		local := lp.NewExpr(2 * households)
		for h := 0; h < households; h++ {
			local.Add(v.LocalImport[t][h], 1).Add(v.LocalExport[t][h], -p.LocalMarketEta)
		}
		m.AddConstraint(fmt.Sprintf("local_market_t%d", t), local, lp.Equal, 0)
	}

	addStorageConstraints(m, v, p)
}

// addStorageConstraints covers the shared heat pump and the seasonal storage.
// Heat is tracked as soc above ground temperature, so a storage of volume V
// at temperature T holds V*c*(T - Tg) and every temperature bound is linear
// in V and soc.
func addStorageConstraints(m *lp.Model, v *Variables, p *Params) {
	hours, households := p.Hours(), p.Households
	st := p.Storage
	vc := st.HeatCapacity
	dischargeEl := 1 / (st.DischargeCOP - 1)
	kUp := st.MaxRise / (st.ChargeCutoff - st.MinTemperature)
	kDown := st.MaxDrop / (st.MaxTemperature - st.DischargeCutoff)

	for t := 0; t < hours; t++ {
		prev := prevHour(t, hours)
		soc, socPrev := v.StorageSOC[t], v.StorageSOC[prev]
		charge, dis := v.StorageCharge[t], v.StorageDischarge[t]
		hp, direct := v.StorageHPHeat[t], v.StorageHPDirect[t]

		draw := lp.NewExpr(households + 2)
		delivered := lp.NewExpr(households + 2)
		for h := 0; h < households; h++ {
			draw.Add(v.StorageEl[t][h], 1)
			delivered.Add(v.StorageTh[t][h], -1)
		}
		draw.Add(hp, -1/st.HPCOP).Add(dis, -dischargeEl)
		m.AddConstraint(fmt.Sprintf("storage_el_t%d", t), draw, lp.Equal, 0)

		delivered.Add(direct, 1).Add(dis, st.DischargeCOP*dischargeEl)
		m.AddConstraint(fmt.Sprintf("storage_delivery_t%d", t), delivered, lp.Equal, 0)

		hpCap := lp.NewExpr(2)
		hpCap.Add(hp, 1).Add(v.StorageHPCapacity, -1)
		m.AddConstraint(fmt.Sprintf("storage_hp_cap_t%d", t), hpCap, lp.LessEq, 0)

		split := lp.NewExpr(3)
		split.Add(hp, 1).Add(charge, -1).Add(direct, -1)
		m.AddConstraint(fmt.Sprintf("storage_hp_split_t%d", t), split, lp.Equal, 0)

		// soc[t] = soc[t-1]*retainment + charge*eta_c - discharge/eta_d, cyclic
		evo := lp.NewExpr(4)
		evo.Add(soc, 1).Add(socPrev, -st.Retainment).
			Add(charge, -st.ChargeEta).Add(dis, 1/st.DischargeEta)
		m.AddConstraint(fmt.Sprintf("storage_soc_t%d", t), evo, lp.Equal, 0)

		lower := lp.NewExpr(2)
		lower.Add(soc, 1).Add(v.StorageVolume, -vc*(st.MinTemperature-st.GroundTemperature))
		m.AddConstraint(fmt.Sprintf("storage_tmin_t%d", t), lower, lp.GreaterEq, 0)
		upper := lp.NewExpr(2)
		upper.Add(soc, 1).Add(v.StorageVolume, -vc*(st.MaxTemperature-st.GroundTemperature))
		m.AddConstraint(fmt.Sprintf("storage_tmax_t%d", t), upper, lp.LessEq, 0)

		// Rates derate linearly to zero at the cutoff temperatures.
		up := lp.NewExpr(3)
		up.Add(charge, st.ChargeEta).Add(socPrev, kUp).
			Add(v.StorageVolume, -kUp*vc*(st.ChargeCutoff-st.GroundTemperature))
		m.AddConstraint(fmt.Sprintf("storage_charge_rate_t%d", t), up, lp.LessEq, 0)
		down := lp.NewExpr(3)
		down.Add(dis, 1/st.DischargeEta).Add(socPrev, -kDown).
			Add(v.StorageVolume, kDown*vc*(st.DischargeCutoff-st.GroundTemperature))
		m.AddConstraint(fmt.Sprintf("storage_discharge_rate_t%d", t), down, lp.LessEq, 0)
	}
}
