// Package params derives the hourly and scalar inputs of the community model
// from tariff constants, technology assumptions and loaded profiles.
package params

import (
	"errors"
	"fmt"
	"math"
)

// NOKToEUR converts 2024 Norwegian kroner to euro.
const NOKToEUR = 0.087

// Default annuity assumptions.
const (
	DefaultLifetimeYears = 30
	DefaultInterestRate  = 0.05
)

var (
	ErrSeriesLength       = errors.New("params: series length mismatch")
	ErrZeroAggregatedPeak = errors.New("params: aggregated peak sum is zero")
)

// Finance holds the annuity assumptions applied to every investment.
type Finance struct {
	LifetimeYears int     `json:"lifetime_years" yaml:"lifetime_years"` // Asset lifetime in years
	InterestRate  float64 `json:"interest_rate" yaml:"interest_rate"`   // Discount rate (0.05 = 5%)
}

// DefaultFinance returns 30 years at 5 %.
func DefaultFinance() Finance {
	return Finance{LifetimeYears: DefaultLifetimeYears, InterestRate: DefaultInterestRate}
}

// Annualize converts an upfront cost into the equal yearly payment over
// lifetime years at rate r: cost / ((1 - (1+r)^-n) / r).
func Annualize(cost float64, lifetime int, rate float64) (float64, error) {
	if lifetime <= 0 {
		return 0, fmt.Errorf("lifetime must be positive, got: %d", lifetime)
	}
	if rate < 0 {
		return 0, fmt.Errorf("interest rate must be non-negative, got: %f", rate)
	}
	if rate == 0 {
		return cost / float64(lifetime), nil
	}
	return cost / AnnuityFactor(lifetime, rate), nil
}

// AnnuityFactor is the present value of one unit paid yearly for lifetime years.
func AnnuityFactor(lifetime int, rate float64) float64 {
	if rate == 0 {
		return float64(lifetime)
	}
	return (1 - math.Pow(1+rate, -float64(lifetime))) / rate
}

// Annualize applies the finance assumptions to cost.
func (f Finance) Annualize(cost float64) (float64, error) {
	return Annualize(cost, f.LifetimeYears, f.InterestRate)
}
