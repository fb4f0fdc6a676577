package params

import (
	"fmt"

	"github.com/devskill-org/lec-planner/calendar"
)

// TariffSchedule is the DSO tariff in local currency per kWh (volumetric rates
// include tax) together with the fixed and capacity charges.
type TariffSchedule struct {
	WinterDay            float64 `json:"winter_day" yaml:"winter_day"`                         // Volumetric rate incl. tax, winter weekday daytime
	WinterNight          float64 `json:"winter_night" yaml:"winter_night"`                     // Volumetric rate incl. tax, winter night and weekend
	SummerDay            float64 `json:"summer_day" yaml:"summer_day"`                         // Volumetric rate incl. tax, summer weekday daytime
	SummerNight          float64 `json:"summer_night" yaml:"summer_night"`                     // Volumetric rate incl. tax, summer night and weekend
	WinterTax            float64 `json:"winter_tax" yaml:"winter_tax"`                         // Electricity tax, winter
	SummerTax            float64 `json:"summer_tax" yaml:"summer_tax"`                         // Electricity tax, summer
	SellingTariff        float64 `json:"selling_tariff" yaml:"selling_tariff"`                 // Per kWh exported (negative = credit)
	ConnectionFee        float64 `json:"connection_fee" yaml:"connection_fee"`                 // Per household per month
	IndividualPeakTariff float64 `json:"individual_peak_tariff" yaml:"individual_peak_tariff"` // Per kW of monthly household peak
	CurrencyRate         float64 `json:"currency_rate" yaml:"currency_rate"`                   // Multiplier into model currency (EUR)
	FirstDayOfYear       int     `json:"first_day_of_year" yaml:"first_day_of_year"`           // Weekday of hour 0, Monday = 0
}

// DefaultTariffSchedule returns the Norwegian DSO tariff in NOK.
func DefaultTariffSchedule() TariffSchedule {
	return TariffSchedule{
		WinterDay:            0.3954,
		WinterNight:          0.3209,
		SummerDay:            0.4825,
		SummerNight:          0.4075,
		WinterTax:            0.0951,
		SummerTax:            0.1644,
		SellingTariff:        -0.05,
		ConnectionFee:        24.65,
		IndividualPeakTariff: 95.39,
		CurrencyRate:         NOKToEUR,
		FirstDayOfYear:       calendar.DefaultFirstDay,
	}
}

// Validate checks the schedule.
func (s TariffSchedule) Validate() error {
	rates := map[string]float64{
		"winter_day":   s.WinterDay,
		"winter_night": s.WinterNight,
		"summer_day":   s.SummerDay,
		"summer_night": s.SummerNight,
	}
	for name, rate := range rates {
		if rate <= 0 {
			return fmt.Errorf("tariff %s must be positive, got: %f", name, rate)
		}
	}
	if s.WinterTax < 0 || s.SummerTax < 0 {
		return fmt.Errorf("taxes must be non-negative, got: winter %f, summer %f", s.WinterTax, s.SummerTax)
	}
	if s.WinterTax >= s.WinterDay || s.WinterTax >= s.WinterNight {
		return fmt.Errorf("winter tax %f leaves no network tariff", s.WinterTax)
	}
	if s.SummerTax >= s.SummerDay || s.SummerTax >= s.SummerNight {
		return fmt.Errorf("summer tax %f leaves no network tariff", s.SummerTax)
	}
	if s.CurrencyRate <= 0 {
		return fmt.Errorf("currency_rate must be positive, got: %f", s.CurrencyRate)
	}
	if s.FirstDayOfYear < 0 || s.FirstDayOfYear > 6 {
		return fmt.Errorf("first_day_of_year must be between 0 and 6, got: %d", s.FirstDayOfYear)
	}
	return nil
}

// RateAt returns the volumetric rate of hour t in local currency.
func (s TariffSchedule) RateAt(t int) float64 {
	winter := calendar.IsWinter(calendar.MonthOfHour(t))
	day := calendar.IsWeekday(t, s.FirstDayOfYear) && calendar.IsDaytime(t)
	switch {
	case winter && day:
		return s.WinterDay
	case winter:
		return s.WinterNight
	case day:
		return s.SummerDay
	default:
		return s.SummerNight
	}
}

// TaxAt returns the electricity tax of hour t in local currency.
func (s TariffSchedule) TaxAt(t int) float64 {
	if calendar.IsWinter(calendar.MonthOfHour(t)) {
		return s.WinterTax
	}
	return s.SummerTax
}

// Volumetric returns the hourly rate incl. tax for the whole year, in local currency.
func (s TariffSchedule) Volumetric() []float64 {
	out := make([]float64, calendar.HoursPerYear)
	for t := range out {
		out[t] = s.RateAt(t)
	}
	return out
}

// Tax returns the hourly tax for the whole year, in local currency.
func (s TariffSchedule) Tax() []float64 {
	out := make([]float64, calendar.HoursPerYear)
	for t := range out {
		out[t] = s.TaxAt(t)
	}
	return out
}

// HourlyTariff is the derived schedule in model currency.
type HourlyTariff struct {
	Volumetric []float64 // rate incl. tax
	Tax        []float64
	Network    []float64 // rate excl. tax
}

// Derive converts the schedule into model currency and splits off the tax.
func (s TariffSchedule) Derive() (*HourlyTariff, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	vol := s.Volumetric()
	tax := s.Tax()
	h := &HourlyTariff{
		Volumetric: make([]float64, len(vol)),
		Tax:        make([]float64, len(vol)),
		Network:    make([]float64, len(vol)),
	}
	for t := range vol {
		h.Volumetric[t] = vol[t] * s.CurrencyRate
		h.Tax[t] = tax[t] * s.CurrencyRate
		h.Network[t] = (vol[t] - tax[t]) * s.CurrencyRate
		if h.Network[t] <= 0 {
			return nil, fmt.Errorf("network tariff at hour %d is not positive: %f", t, h.Network[t])
		}
	}
	return h, nil
}
