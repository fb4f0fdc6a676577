package planner

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonConfig = `{
	"year": 2021,
	"data": {"answers": "a.csv", "demand": "d.csv", "ratios": "r.csv", "spot_price": "s.csv"},
	"solver": {"backend": "simplex", "time_limit": "90s"},
	"entsoe": {"api_timeout": "15s"},
	"log_level": "debug",
	"scenarios": [
		{"name": "lm", "num_houses": 10, "enable_local_market": true, "enable_stes": true, "seed": 7}
	]
}`

const yamlConfig = `
year: 2021
data:
  answers: a.csv
  demand: d.csv
  ratios: r.csv
  spot_price: s.csv
solver:
  backend: highs
  time_limit: 45m
log_format: json
model:
  local_market_eta: 0.98
scenarios:
  - name: hp
    num_houses: 3
    enable_house_hp: true
    window_hours: 48
`

func TestLoadConfigJSON(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(jsonConfig), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, BackendSimplex, cfg.Solver.Backend)
	assert.Equal(t, 90*time.Second, cfg.Solver.TimeLimit)
	assert.Equal(t, 15*time.Second, cfg.ENTSOE.APITimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	require.Len(t, cfg.Scenarios, 1)
	sc := cfg.Scenarios[0]
	assert.True(t, sc.EnableLocalMarket)
	assert.True(t, sc.EnableSTES)
	assert.False(t, sc.EnableHouseHP)
	assert.Equal(t, uint64(7), sc.SamplingSeed())

	// Untouched sections keep their defaults.
	assert.Equal(t, DefaultConfig().Model.Tariffs, cfg.Model.Tariffs)
}

func TestLoadConfigYAML(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(yamlConfig), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, BackendHiGHS, cfg.Solver.Backend)
	assert.Equal(t, 45*time.Minute, cfg.Solver.TimeLimit)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 0.98, cfg.Model.LocalMarketEta)
	assert.Equal(t, DefaultConfig().Model.STES, cfg.Model.STES)
	require.Len(t, cfg.Scenarios, 1)
	assert.True(t, cfg.Scenarios[0].EnableHouseHP)
	assert.Equal(t, 48, cfg.Scenarios[0].WindowHours)
	assert.Equal(t, uint64(1234), cfg.Scenarios[0].SamplingSeed())
}

func TestLoadConfigResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "study.yml")
	require.NoError(t, os.WriteFile(path, []byte(yamlConfig), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.csv"), cfg.Data.Answers)
	assert.Equal(t, filepath.Join(dir, "s.csv"), cfg.Data.SpotPrice)
	assert.Empty(t, cfg.Data.PV)

	_, err = LoadConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestSaveConfigWritesDurations(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(jsonConfig), FormatJSON)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, cfg.SaveConfigToWriter(&buf))
	assert.Contains(t, buf.String(), `"time_limit": "1m30s"`)
	assert.Contains(t, buf.String(), `"api_timeout": "15s"`)

	again, err := LoadConfigFromReader(&buf, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, cfg.Solver, again.Solver)

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.SaveConfig(path))
	fromYAML, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Solver.TimeLimit, fromYAML.Solver.TimeLimit)
	assert.Equal(t, cfg.Scenarios[0].Options, fromYAML.Scenarios[0].Options)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Data.SpotPrice = "spot.csv"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{name: "year", modify: func(c *Config) { c.Year = 0 }, errMsg: "year"},
		{name: "no spot source", modify: func(c *Config) { c.Data.SpotPrice = "" }, errMsg: "spot_price"},
		{name: "solver", modify: func(c *Config) { c.Solver.Backend = "cplex" }, errMsg: "solver.backend"},
		{name: "port", modify: func(c *Config) { c.HTTPPort = 70000 }, errMsg: "http_port"},
		{name: "log level", modify: func(c *Config) { c.LogLevel = "trace" }, errMsg: "log_level"},
		{name: "log format", modify: func(c *Config) { c.LogFormat = "xml" }, errMsg: "log_format"},
		{name: "no scenarios", modify: func(c *Config) { c.Scenarios = nil }, errMsg: "scenario"},
		{name: "duplicate scenario", modify: func(c *Config) {
			c.Scenarios = []Scenario{{Name: "a", NumHouses: 1}, {Name: "a", NumHouses: 2}}
		}, errMsg: "duplicate"},
		{name: "no houses", modify: func(c *Config) { c.Scenarios[0].NumHouses = 0 }, errMsg: "num_houses"},
		{name: "future prices without data", modify: func(c *Config) { c.Scenarios[0].UseFuturePrices = true }, errMsg: "use_future_prices"},
		{name: "bad entsoe url", modify: func(c *Config) {
			c.ENTSOE.SecurityToken = "x"
			c.ENTSOE.BaseURL = "ftp://x"
		}, errMsg: "base_url"},
		{name: "stes", modify: func(c *Config) { c.Model.STES.HeatCapacity = 0 }, errMsg: "stes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfigStringMasksSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ENTSOE.SecurityToken = "secret-token"
	cfg.PostgresConnString = "postgres://user:pw@host/db"

	s := cfg.String()
	assert.NotContains(t, s, "secret-token")
	assert.NotContains(t, s, "pw@host")
	assert.Equal(t, "secret-token", cfg.ENTSOE.SecurityToken)
}

func TestScenarioLookup(t *testing.T) {
	cfg := DefaultConfig()
	sc, err := cfg.Scenario("base")
	require.NoError(t, err)
	assert.Equal(t, 5, sc.NumHouses)

	_, err = cfg.Scenario("nope")
	assert.Error(t, err)
}
