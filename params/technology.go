package params

import (
	"fmt"

	"github.com/devskill-org/lec-planner/lec"
)

// PVAssumptions describes rooftop PV.
type PVAssumptions struct {
	InvestmentCost float64 `json:"investment_cost" yaml:"investment_cost"` // EUR per kWp, upfront
	MaxCapacity    float64 `json:"max_capacity" yaml:"max_capacity"`       // kWp per household
}

// HeatPumpAssumptions describes the household heat pump.
type HeatPumpAssumptions struct {
	InvestmentCost float64 `json:"investment_cost" yaml:"investment_cost"` // EUR per kW heat, upfront
	COP            float64 `json:"cop" yaml:"cop"`                         // Coefficient of performance
	MaxHeat        float64 `json:"max_heat" yaml:"max_heat"`               // kWh/h heat per household
}

// STESAssumptions describes the shared seasonal thermal storage.
type STESAssumptions struct {
	FixedCost          float64 `json:"fixed_cost" yaml:"fixed_cost"`                     // EUR, upfront, incurred when built
	VolumeCost         float64 `json:"volume_cost" yaml:"volume_cost"`                   // EUR per m3, upfront
	CostFromRegression bool    `json:"cost_from_regression" yaml:"cost_from_regression"` // Replace fixed/volume cost by the reference-site fit
	HPInvestmentCost   float64 `json:"hp_investment_cost" yaml:"hp_investment_cost"`     // EUR per kW heat of the storage heat pump
	MinVolume          float64 `json:"min_volume" yaml:"min_volume"`                     // m3
	MaxVolume          float64 `json:"max_volume" yaml:"max_volume"`                     // m3

	GroundTemperature float64 `json:"ground_temperature" yaml:"ground_temperature"` // Undisturbed ground, degC
	HeatCapacity      float64 `json:"heat_capacity" yaml:"heat_capacity"`           // kWh per m3 per K
	RetainedFraction  float64 `json:"retained_fraction" yaml:"retained_fraction"`   // Heat left after RetentionHours
	RetentionHours    float64 `json:"retention_hours" yaml:"retention_hours"`       // Period the retained fraction refers to

	MinTemperature  float64 `json:"min_temperature" yaml:"min_temperature"`   // degC
	MaxTemperature  float64 `json:"max_temperature" yaml:"max_temperature"`   // degC
	ChargeCutoff    float64 `json:"charge_cutoff" yaml:"charge_cutoff"`       // Charging derates to zero here, degC
	DischargeCutoff float64 `json:"discharge_cutoff" yaml:"discharge_cutoff"` // Discharging derates to zero here, degC
	ChargeTarget    float64 `json:"charge_target" yaml:"charge_target"`       // Temperature to reach within ChargeHours
	ChargeHours     float64 `json:"charge_hours" yaml:"charge_hours"`
	DischargeTarget float64 `json:"discharge_target" yaml:"discharge_target"` // Temperature to fall to within DischargeHours
	DischargeHours  float64 `json:"discharge_hours" yaml:"discharge_hours"`

	HPCOP        float64 `json:"hp_cop" yaml:"hp_cop"`               // Charging heat pump COP
	HPMaxHeat    float64 `json:"hp_max_heat" yaml:"hp_max_heat"`     // kWh/h
	ChargeEta    float64 `json:"charge_eta" yaml:"charge_eta"`       // Charging efficiency
	DischargeEta float64 `json:"discharge_eta" yaml:"discharge_eta"` // Discharging efficiency
	DischargeCOP float64 `json:"discharge_cop" yaml:"discharge_cop"` // Near-ideal heat exchange on discharge

	DischargingMonths []int `json:"discharging_months" yaml:"discharging_months"` // 0-based months, used by seasonal gating
}

// DefaultPV returns 15 kWp at 21000 NOK/kWp.
func DefaultPV() PVAssumptions {
	return PVAssumptions{InvestmentCost: 21000 * NOKToEUR, MaxCapacity: 15}
}

// DefaultHeatPump returns an air-to-water heat pump with COP 3.
func DefaultHeatPump() HeatPumpAssumptions {
	return HeatPumpAssumptions{InvestmentCost: 12000 * NOKToEUR, COP: 3, MaxHeat: 10}
}

// DefaultSTES returns a borehole storage sized between 20000 and 65000 m3.
func DefaultSTES() STESAssumptions {
	return STESAssumptions{
		FixedCost:         195000,
		VolumeCost:        8.9,
		HPInvestmentCost:  600,
		MinVolume:         20000,
		MaxVolume:         65000,
		GroundTemperature: 6,
		HeatCapacity:      0.6,
		RetainedFraction:  0.6,
		RetentionHours:    6 * 30 * 24,
		MinTemperature:    10,
		MaxTemperature:    65,
		ChargeCutoff:      65,
		DischargeCutoff:   10,
		ChargeTarget:      60,
		ChargeHours:       6 * 30 * 24,
		DischargeTarget:   15,
		DischargeHours:    5 * 30 * 24,
		HPCOP:             3,
		HPMaxHeat:         250,
		ChargeEta:         0.99,
		DischargeEta:      0.99,
		DischargeCOP:      100,
		DischargingMonths: []int{10, 11, 0, 1, 2},
	}
}

// Validate checks the storage physics for consistency.
func (s STESAssumptions) Validate() error {
	if s.MinVolume < 0 || s.MaxVolume < s.MinVolume {
		return fmt.Errorf("stes volume bounds must satisfy 0 <= min <= max, got: [%f, %f]", s.MinVolume, s.MaxVolume)
	}
	if s.HeatCapacity <= 0 {
		return fmt.Errorf("stes heat_capacity must be positive, got: %f", s.HeatCapacity)
	}
	if s.MinTemperature < s.GroundTemperature {
		return fmt.Errorf("stes min_temperature %f is below ground_temperature %f", s.MinTemperature, s.GroundTemperature)
	}
	if s.MaxTemperature <= s.MinTemperature {
		return fmt.Errorf("stes max_temperature %f must exceed min_temperature %f", s.MaxTemperature, s.MinTemperature)
	}
	if s.ChargeCutoff <= s.MinTemperature || s.ChargeCutoff > s.MaxTemperature {
		return fmt.Errorf("stes charge_cutoff must be in (min_temperature, max_temperature], got: %f", s.ChargeCutoff)
	}
	if s.DischargeCutoff < s.MinTemperature || s.DischargeCutoff >= s.MaxTemperature {
		return fmt.Errorf("stes discharge_cutoff must be in [min_temperature, max_temperature), got: %f", s.DischargeCutoff)
	}
	if s.HPCOP <= 0 {
		return fmt.Errorf("stes hp_cop must be positive, got: %f", s.HPCOP)
	}
	if s.DischargeCOP <= 1 {
		return fmt.Errorf("stes discharge_cop must exceed 1, got: %f", s.DischargeCOP)
	}
	if s.ChargeEta <= 0 || s.ChargeEta > 1 || s.DischargeEta <= 0 || s.DischargeEta > 1 {
		return fmt.Errorf("stes efficiencies must be in (0, 1], got: charge %f, discharge %f", s.ChargeEta, s.DischargeEta)
	}
	for _, m := range s.DischargingMonths {
		if m < 0 || m > 11 {
			return fmt.Errorf("stes discharging month %d out of range", m)
		}
	}
	return nil
}

// Derive turns the assumptions into model parameters. Investment costs are
// annualized with f; the fixed cost and volume bounds are zeroed when enabled is false.
func (s STESAssumptions) Derive(f Finance, enabled bool) (lec.Storage, error) {
	if err := s.Validate(); err != nil {
		return lec.Storage{}, err
	}

	fixed, volume := s.FixedCost, s.VolumeCost
	if s.CostFromRegression {
		fit := FitSTESCost(ReferenceSTESSites())
		fixed, volume = fit.Intercept, fit.Slope
	}

	annualFixed, err := f.Annualize(fixed)
	if err != nil {
		return lec.Storage{}, fmt.Errorf("failed to annualize stes fixed cost: %w", err)
	}
	annualVolume, err := f.Annualize(volume)
	if err != nil {
		return lec.Storage{}, fmt.Errorf("failed to annualize stes volume cost: %w", err)
	}
	annualHP, err := f.Annualize(s.HPInvestmentCost)
	if err != nil {
		return lec.Storage{}, fmt.Errorf("failed to annualize stes heat pump cost: %w", err)
	}

	rise, err := ThermalRate(s.ChargeTarget-s.MinTemperature, s.ChargeCutoff-s.MinTemperature, s.ChargeHours)
	if err != nil {
		return lec.Storage{}, fmt.Errorf("invalid stes charge rate: %w", err)
	}
	drop, err := ThermalRate(s.MaxTemperature-s.DischargeTarget, s.MaxTemperature-s.DischargeCutoff, s.DischargeHours)
	if err != nil {
		return lec.Storage{}, fmt.Errorf("invalid stes discharge rate: %w", err)
	}
	retainment, err := Retainment(s.RetainedFraction, s.RetentionHours)
	if err != nil {
		return lec.Storage{}, fmt.Errorf("invalid stes retainment: %w", err)
	}

	st := lec.Storage{
		FixedCost:         annualFixed,
		VolumeCost:        annualVolume,
		HPCost:            annualHP,
		MinVolume:         s.MinVolume,
		MaxVolume:         s.MaxVolume,
		GroundTemperature: s.GroundTemperature,
		HeatCapacity:      s.HeatCapacity,
		Retainment:        retainment,
		MinTemperature:    s.MinTemperature,
		MaxTemperature:    s.MaxTemperature,
		ChargeCutoff:      s.ChargeCutoff,
		DischargeCutoff:   s.DischargeCutoff,
		MaxRise:           rise,
		MaxDrop:           drop,
		HPCOP:             s.HPCOP,
		HPMaxHeat:         s.HPMaxHeat,
		ChargeEta:         s.ChargeEta,
		DischargeEta:      s.DischargeEta,
		DischargeCOP:      s.DischargeCOP,
		DischargingMonths: append([]int(nil), s.DischargingMonths...),
	}
	if !enabled {
		st.FixedCost = 0
		st.MinVolume = 0
		st.MaxVolume = 0
		st.HPMaxHeat = 0
	}
	return st, nil
}
