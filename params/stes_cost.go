package params

import (
	"gonum.org/v1/gonum/stat"
)

// STESSite is a built seasonal storage with its reported investment.
type STESSite struct {
	Name   string
	Cost   float64 // EUR
	Volume float64 // m3 ground or water volume
}

// ReferenceSTESSites returns the installations the cost fit is based on.
func ReferenceSTESSites() []STESSite {
	return []STESSite{
		{Name: "DLSC", Cost: 542203.9, Volume: 34000},
		{Name: "Braedstrup", Cost: 321368.21, Volume: 19000},
		{Name: "Aberdeen", Cost: 491265.93, Volume: 34000},
		{Name: "Camborne", Cost: 491265.93, Volume: 34000},
		{Name: "Ontario", Cost: 320791.05, Volume: 19500},
		{Name: "Crailsheim", Cost: 520000, Volume: 37500},
		{Name: "Neckarsulm-1", Cost: 450000, Volume: 20000},
		{Name: "Neckarsulm-2", Cost: 749000, Volume: 63000},
		{Name: "Andalucia", Cost: 154826.1, Volume: 18000},
	}
}

// CostFit is cost = Intercept + Slope*volume.
type CostFit struct {
	Intercept float64 // EUR, fixed part
	Slope     float64 // EUR per m3
	RSquared  float64
}

// Cost evaluates the fit at volume.
func (f CostFit) Cost(volume float64) float64 {
	return f.Intercept + f.Slope*volume
}

// FitSTESCost fits investment cost against volume by least squares.
func FitSTESCost(sites []STESSite) CostFit {
	x := make([]float64, len(sites))
	y := make([]float64, len(sites))
	for i, s := range sites {
		x[i] = s.Volume
		y[i] = s.Cost
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	return CostFit{
		Intercept: alpha,
		Slope:     beta,
		RSquared:  stat.RSquared(x, y, nil, alpha, beta),
	}
}
