// Package lec builds and solves the capacity and dispatch LP of a local
// energy community: households with PV and heat pumps, an optional shared
// seasonal thermal storage and an optional internal electricity market.
package lec

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// MonthsPerYear is the number of billing months peak variables are declared for.
const MonthsPerYear = 12

var ErrInvalidParams = errors.New("lec: invalid parameters")

// Options selects the active subsystems of a scenario.
type Options struct {
	EnableHouseHP      bool `json:"enable_house_hp" yaml:"enable_house_hp"`
	EnableSTES         bool `json:"enable_stes" yaml:"enable_stes"`
	EnableLocalMarket  bool `json:"enable_local_market" yaml:"enable_local_market"`
	EnableExportTariff bool `json:"enable_export_tariff" yaml:"enable_export_tariff"`
	SeasonalGating     bool `json:"seasonal_gating" yaml:"seasonal_gating"` // Charge/discharge only in their own months
}

// PV holds the rooftop PV parameters.
type PV struct {
	UnitCost    float64 // annualized EUR per kWp
	MaxCapacity float64 // kWp per household
}

// HeatPump holds the household heat pump parameters.
type HeatPump struct {
	UnitCost float64 // annualized EUR per kW heat
	COP      float64
	MaxHeat  float64 // kWh/h, 0 disables
}

// Storage holds the seasonal thermal storage parameters. Temperatures are in
// degC, heat in kWh; soc is heat above ground temperature.
type Storage struct {
	FixedCost  float64 // annualized EUR, charged when enabled
	VolumeCost float64 // annualized EUR per m3
	HPCost     float64 // annualized EUR per kW of storage heat pump

	MinVolume, MaxVolume float64 // m3

	GroundTemperature float64
	HeatCapacity      float64 // kWh per m3 per K
	Retainment        float64 // hourly fraction of heat kept

	MinTemperature, MaxTemperature float64
	ChargeCutoff, DischargeCutoff  float64
	MaxRise, MaxDrop               float64 // K/h at the open end of each envelope

	HPCOP        float64
	HPMaxHeat    float64 // kWh/h
	ChargeEta    float64
	DischargeEta float64
	DischargeCOP float64

	DischargingMonths []int
}

// Params is every numeric input of one model build. Hour-indexed series all
// have the same length, which sets the horizon.
type Params struct {
	Households int
	Months     []int // month of each hour

	ElDemand *mat.Dense // hours x households, kWh/h
	ThDemand *mat.Dense // hours x households, kWh/h

	PVYield   []float64 // kWh/h per kWp
	SpotPrice []float64 // EUR/kWh
	Tax       []float64 // EUR/kWh
	Tariff    []float64 // EUR/kWh network tariff excl. tax

	SellingTariff          float64 // EUR/kWh exported
	ConnectionFee          float64 // EUR per household per month
	IndividualPeakTariff   float64 // EUR per kW of monthly household peak
	AggregatedImportTariff float64 // EUR per kW of monthly community import peak
	AggregatedExportTariff float64 // EUR per kW of monthly community export peak

	MaxGridImport  float64 // kWh/h per household
	MaxGridExport  float64
	LocalMarketEta float64 // share of local export that arrives

	PV      PV
	HouseHP HeatPump
	Storage Storage
}

// Hours returns the horizon length.
func (p *Params) Hours() int {
	return len(p.Months)
}

// Validate checks series lengths and the physical parameters the constraints divide by.
func (p *Params) Validate() error {
	hours := p.Hours()
	if hours == 0 {
		return fmt.Errorf("%w: empty horizon", ErrInvalidParams)
	}
	if p.Households <= 0 {
		return fmt.Errorf("%w: households must be positive, got: %d", ErrInvalidParams, p.Households)
	}
	if p.ElDemand == nil || p.ThDemand == nil {
		return fmt.Errorf("%w: missing demand", ErrInvalidParams)
	}
	for name, d := range map[string]*mat.Dense{"electric demand": p.ElDemand, "thermal demand": p.ThDemand} {
		r, c := d.Dims()
		if r != hours || c != p.Households {
			return fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrInvalidParams, name, r, c, hours, p.Households)
		}
	}
	for name, s := range map[string][]float64{"pv yield": p.PVYield, "spot price": p.SpotPrice, "tax": p.Tax, "tariff": p.Tariff} {
		if len(s) != hours {
			return fmt.Errorf("%w: %s has %d hours, want %d", ErrInvalidParams, name, len(s), hours)
		}
	}
	for t, m := range p.Months {
		if m < 0 || m >= MonthsPerYear {
			return fmt.Errorf("%w: month %d at hour %d", ErrInvalidParams, m, t)
		}
	}
	if p.HouseHP.COP <= 0 {
		return fmt.Errorf("%w: house heat pump cop must be positive, got: %f", ErrInvalidParams, p.HouseHP.COP)
	}
	if p.LocalMarketEta <= 0 || p.LocalMarketEta > 1 {
		return fmt.Errorf("%w: local market eta must be in (0, 1], got: %f", ErrInvalidParams, p.LocalMarketEta)
	}
	st := p.Storage
	if st.HPCOP <= 0 || st.DischargeCOP <= 1 || st.ChargeEta <= 0 || st.DischargeEta <= 0 || st.HeatCapacity <= 0 {
		return fmt.Errorf("%w: storage conversion factors out of range", ErrInvalidParams)
	}
	if st.ChargeCutoff <= st.MinTemperature || st.MaxTemperature <= st.DischargeCutoff {
		return fmt.Errorf("%w: storage cutoffs leave no operating band", ErrInvalidParams)
	}
	if st.MaxVolume < st.MinVolume {
		return fmt.Errorf("%w: storage volume bounds [%f, %f]", ErrInvalidParams, st.MinVolume, st.MaxVolume)
	}
	return nil
}

// Window returns a copy of p restricted to hours [from, to). The storage
// cycle closes over the window.
func (p *Params) Window(from, to int) (*Params, error) {
	if from < 0 || to > p.Hours() || from >= to {
		return nil, fmt.Errorf("%w: window [%d, %d) outside horizon of %d hours", ErrInvalidParams, from, to, p.Hours())
	}
	w := *p
	w.Months = append([]int(nil), p.Months[from:to]...)
	w.ElDemand = mat.DenseCopyOf(p.ElDemand.Slice(from, to, 0, p.Households))
	w.ThDemand = mat.DenseCopyOf(p.ThDemand.Slice(from, to, 0, p.Households))
	w.PVYield = append([]float64(nil), p.PVYield[from:to]...)
	w.SpotPrice = append([]float64(nil), p.SpotPrice[from:to]...)
	w.Tax = append([]float64(nil), p.Tax[from:to]...)
	w.Tariff = append([]float64(nil), p.Tariff[from:to]...)
	return &w, nil
}
