package params

import (
	"fmt"
	"math"
)

// ThermalRate returns the hourly temperature change (K/h) a storage must
// manage at the start of its envelope so that a swing of swing kelvin fits in
// hours, given that the rate derates linearly to zero over span kelvin:
//
//	rate = swing / hours / (1 - swing / (2*span))
func ThermalRate(swing, span, hours float64) (float64, error) {
	if hours <= 0 {
		return 0, fmt.Errorf("hours must be positive, got: %f", hours)
	}
	if span <= 0 {
		return 0, fmt.Errorf("temperature span must be positive, got: %f", span)
	}
	if swing < 0 || swing >= 2*span {
		return 0, fmt.Errorf("temperature swing %f must be within [0, %f)", swing, 2*span)
	}
	return swing / hours / (1 - swing/(2*span)), nil
}

// Retainment returns the hourly retention factor that keeps retained of the
// stored heat after hours.
func Retainment(retained, hours float64) (float64, error) {
	if retained <= 0 || retained > 1 {
		return 0, fmt.Errorf("retained fraction must be in (0, 1], got: %f", retained)
	}
	if hours <= 0 {
		return 0, fmt.Errorf("hours must be positive, got: %f", hours)
	}
	return math.Pow(retained, 1/hours), nil
}

// Grid describes the household connection fuse.
type Grid struct {
	Phases int     `json:"phases" yaml:"phases"` // Number of phases
	Amps   float64 `json:"amps" yaml:"amps"`     // Fuse rating per phase
	Volts  float64 `json:"volts" yaml:"volts"`   // Phase voltage
}

// DefaultGrid is a 3 x 63 A connection at 230 V.
func DefaultGrid() Grid {
	return Grid{Phases: 3, Amps: 63, Volts: 230}
}

// Capacity returns the connection limit in kWh/h.
func (g Grid) Capacity() float64 {
	return ConnectionCapacity(g.Phases, g.Amps, g.Volts)
}

// ConnectionCapacity returns phases*amps*volts in kW.
func ConnectionCapacity(phases int, amps, volts float64) float64 {
	return float64(phases) * amps * volts / 1000
}
