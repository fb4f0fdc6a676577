package lec

import (
	"github.com/devskill-org/lec-planner/lp"
)

// Objective term names.
const (
	TermPVInvestment       = "pv_investment"
	TermHouseHPInvestment  = "house_hp_investment"
	TermSTESInvestment     = "stes_investment"
	TermPowerMarket        = "power_market"
	TermTax                = "tax"
	TermGridTariff         = "grid_tariff"
	TermConnectionFee      = "connection_fee"
	TermIndividualCapacity = "individual_capacity_tariff"
	TermAggregatedCapacity = "aggregated_capacity_tariff"
)

// Term is one named cost component.
type Term struct {
	Name string
	Expr lp.Expr
}

// Objective is the ordered set of cost terms whose sum is minimized.
type Objective struct {
	Terms []Term
}

// Add appends a term.
func (o *Objective) Add(name string, e lp.Expr) {
	o.Terms = append(o.Terms, Term{Name: name, Expr: e})
}

// Total returns the sum of all terms.
func (o *Objective) Total() lp.Expr {
	n := 0
	for _, t := range o.Terms {
		n += len(t.Expr.Terms)
	}
	total := lp.NewExpr(n)
	for _, t := range o.Terms {
		total.AddExpr(t.Expr, 1)
	}
	return total
}

// TermValue is an evaluated cost term.
type TermValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Evaluate returns every term's value at sol, in declaration order.
func (o *Objective) Evaluate(sol *lp.Solution) []TermValue {
	out := make([]TermValue, len(o.Terms))
	for i, t := range o.Terms {
		out[i] = TermValue{Name: t.Name, Value: sol.Eval(t.Expr)}
	}
	return out
}

func buildObjective(opts Options, v *Variables, p *Params) *Objective {
	hours, households := p.Hours(), p.Households
	o := &Objective{}

	pv := lp.NewExpr(households)
	for _, c := range v.PVCapacity {
		pv.Add(c, p.PV.UnitCost)
	}
	o.Add(TermPVInvestment, pv)

	if opts.EnableHouseHP {
		hp := lp.NewExpr(households)
		for _, c := range v.HouseHPCapacity {
			hp.Add(c, p.HouseHP.UnitCost)
		}
		o.Add(TermHouseHPInvestment, hp)
	}

	stes := lp.NewExpr(2)
	stes.Add(v.StorageVolume, p.Storage.VolumeCost).Add(v.StorageHPCapacity, p.Storage.HPCost)
	if opts.EnableSTES {
		stes.AddConstant(p.Storage.FixedCost)
	}
	o.Add(TermSTESInvestment, stes)

	cells := hours * households
	market := lp.NewExpr(2 * cells)
	tax := lp.NewExpr(2 * cells)
	tariff := lp.NewExpr(2 * cells)
	for t := 0; t < hours; t++ {
		for h := 0; h < households; h++ {
			imp, exp := v.GridImport[t][h], v.GridExport[t][h]
			market.Add(imp, p.SpotPrice[t]).Add(exp, -p.SpotPrice[t])
			tax.Add(imp, p.Tax[t]).Add(v.LocalImport[t][h], p.Tax[t])
			tariff.Add(imp, p.Tariff[t]).Add(exp, p.SellingTariff)
		}
	}
	o.Add(TermPowerMarket, market)
	o.Add(TermTax, tax)
	o.Add(TermGridTariff, tariff)

	fee := lp.NewExpr(0)
	fee.AddConstant(p.ConnectionFee * float64(households) * MonthsPerYear)
	o.Add(TermConnectionFee, fee)

	ind := lp.NewExpr(households * MonthsPerYear)
	for h := range v.PeakHouse {
		for _, peak := range v.PeakHouse[h] {
			ind.Add(peak, p.IndividualPeakTariff)
		}
	}
	o.Add(TermIndividualCapacity, ind)

	agg := lp.NewExpr(2 * MonthsPerYear)
	for mo := 0; mo < MonthsPerYear; mo++ {
		agg.Add(v.PeakAggImport[mo], p.AggregatedImportTariff).Add(v.PeakAggExport[mo], p.AggregatedExportTariff)
	}
	o.Add(TermAggregatedCapacity, agg)
	return o
}
