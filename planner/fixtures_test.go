package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/devskill-org/lec-planner/calendar"
	"github.com/stretchr/testify/require"
)

const (
	fixtureSpot   = 100.0 // EUR/MWh
	fixtureDemand = 2.0   // kWh/h per household, split half electric
)

// writeFixtures creates a one-year study with three identical eligible
// households, no sun and a flat spot price, and returns a config for it.
func writeFixtures(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}
	hourly := func(header string, row func(t int) string) string {
		var b strings.Builder
		b.WriteString(header + "\n")
		for h := 0; h < calendar.HoursPerYear; h++ {
			b.WriteString(row(h) + "\n")
		}
		return b.String()
	}

	answers := write("answers.csv", "ID,Q_City,Q7,Q22,Q28,Q27_3,Q27_5,Q27_6,Q27_7\n"+
		"1,4,2,1,1,0,0,0,0\n"+
		"2,4,3,4,3,0,0,0,0\n"+
		"3,4,2,2,1,0,0,0,0\n"+
		"4,4,1,1,1,0,0,0,0\n")

	var demand strings.Builder
	demand.WriteString("ID,Date,Demand_kWh\n")
	for _, id := range []string{"1", "2", "3", "4"} {
		for h := 0; h < calendar.HoursPerYear; h++ {
			fmt.Fprintf(&demand, "%s,2021-%05d,%g\n", id, h, fixtureDemand)
		}
	}

	cfg := DefaultConfig()
	cfg.Data.Answers = answers
	cfg.Data.Demand = write("demand.csv", demand.String())
	cfg.Data.Ratios = write("ratios.csv", hourly(",House,Apartment", func(h int) string { return fmt.Sprintf("%d,0.5,0.5", h) }))
	cfg.Data.PV = write("pv.csv", hourly("hour,pv", func(h int) string { return fmt.Sprintf("%d,0", h) }))
	cfg.Data.PVFormat.SkipRows = 0
	cfg.Data.PVFormat.Column = "pv"
	cfg.Data.SpotPrice = write("spot.csv", hourly("hour,price", func(h int) string { return fmt.Sprintf("%d,%g", h, fixtureSpot) }))
	cfg.Solver.Backend = BackendSimplex
	cfg.OutputDir = filepath.Join(dir, "results")
	cfg.Scenarios = []Scenario{
		{Name: "base", NumHouses: 2, WindowHours: 24},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

// recorder collects published events.
type recorder struct {
	events []Event
}

func (r *recorder) Publish(ev Event) {
	r.events = append(r.events, ev)
}

func (r *recorder) types() []string {
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
