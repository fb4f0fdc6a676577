package planner

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devskill-org/lec-planner/entsoe"
	"github.com/devskill-org/lec-planner/lec"
	"github.com/devskill-org/lec-planner/params"
	"github.com/devskill-org/lec-planner/profiles"
	"gopkg.in/yaml.v3"
)

// Config format names accepted by LoadConfigFromReader.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Solver backends.
const (
	BackendSimplex = "simplex"
	BackendHiGHS   = "highs"
)

// Config represents the configuration of a planning study.
type Config struct {
	// Study settings
	Year int `json:"year" yaml:"year"` // Calendar year of the demand data
	City int `json:"city" yaml:"city"` // Survey city code households are drawn from

	// Inputs
	Data   DataFiles          `json:"data" yaml:"data"`
	PVSite profiles.PVSite    `json:"pv_site" yaml:"pv_site"` // Used for a clear-sky profile when data.pv is empty
	Model  params.Assumptions `json:"model" yaml:"model"`

	// Solver and outputs
	Solver    SolverConfig `json:"solver" yaml:"solver"`
	OutputDir string       `json:"output_dir" yaml:"output_dir"` // One sub-directory per scenario

	// Persistence and status server
	PostgresConnString string `json:"postgres_conn_string" yaml:"postgres_conn_string"` // PostgreSQL connection string, empty disables persistence
	HTTPPort           int    `json:"http_port" yaml:"http_port"`                       // Port of the status server (0 = disabled)

	// ENTSO-E API settings
	ENTSOE ENTSOEConfig `json:"entsoe" yaml:"entsoe"`

	// Logging settings
	LogLevel  string `json:"log_level" yaml:"log_level"`   // Log level: debug, info, warn, error
	LogFormat string `json:"log_format" yaml:"log_format"` // Log format: text, json

	Scenarios []Scenario `json:"scenarios" yaml:"scenarios"`
}

// DataFiles lists the input files of a study. Relative paths are resolved
// against the directory of the configuration file.
type DataFiles struct {
	Answers         string                `json:"answers" yaml:"answers"` // Survey answers CSV
	Demand          string                `json:"demand" yaml:"demand"`   // Long-format hourly consumption CSV
	Ratios          string                `json:"ratios" yaml:"ratios"`   // Electric share per building type CSV
	PV              string                `json:"pv" yaml:"pv"`           // Hourly PV yield per kWp, empty for a clear-sky profile
	PVFormat        profiles.SeriesFormat `json:"pv_format" yaml:"pv_format"`
	SpotPrice       string                `json:"spot_price" yaml:"spot_price"` // Hourly EUR/MWh, empty to download from ENTSO-E
	SpotFormat      profiles.SeriesFormat `json:"spot_format" yaml:"spot_format"`
	FutureSpotPrice string                `json:"future_spot_price" yaml:"future_spot_price"` // Projected hourly EUR/MWh
	FutureWeekStats string                `json:"future_week_stats" yaml:"future_week_stats"` // Weekly mean,std targets for reshaping the spot price
}

// SolverConfig selects and tunes the LP backend.
type SolverConfig struct {
	Backend     string        `json:"backend" yaml:"backend"`           // simplex or highs
	HiGHSBinary string        `json:"highs_binary" yaml:"highs_binary"` // Path of the highs executable
	TimeLimit   time.Duration `json:"time_limit" yaml:"time_limit"`     // 0 for no limit
	Threads     int           `json:"threads" yaml:"threads"`
	MaxCells    int           `json:"max_cells" yaml:"max_cells"` // Dense simplex size guard, 0 for the default
	KeepFiles   bool          `json:"keep_files" yaml:"keep_files"`
}

// ENTSOEConfig holds the transparency platform settings used to fetch spot prices.
type ENTSOEConfig struct {
	SecurityToken string        `json:"security_token" yaml:"security_token"` // ENTSO-E API token
	BaseURL       string        `json:"base_url" yaml:"base_url"`
	Domain        string        `json:"domain" yaml:"domain"`     // Bidding zone EIC code
	Location      string        `json:"location" yaml:"location"` // Time zone the price year is cut in
	APITimeout    time.Duration `json:"api_timeout" yaml:"api_timeout"`
	UserAgent     string        `json:"user_agent" yaml:"user_agent"`
}

// Scenario is one model run: a sampled community and a set of enabled subsystems.
type Scenario struct {
	Name      string `json:"name" yaml:"name"`
	NumHouses int    `json:"num_houses" yaml:"num_houses"`

	lec.Options `yaml:",inline"`

	UseFuturePrices bool   `json:"use_future_prices" yaml:"use_future_prices"`
	Seed            uint64 `json:"seed" yaml:"seed"`                 // Household sampling seed, 0 for the default
	WindowStart     int    `json:"window_start" yaml:"window_start"` // First hour of a shortened horizon
	WindowHours     int    `json:"window_hours" yaml:"window_hours"` // 0 for the full year
}

// SamplingSeed returns the scenario seed or the default one.
func (s Scenario) SamplingSeed() uint64 {
	if s.Seed == 0 {
		return profiles.DefaultSeed
	}
	return s.Seed
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Year:   2021,
		City:   profiles.DefaultCity,
		PVSite: profiles.DefaultPVSite(),
		Model:  params.DefaultAssumptions(),
		Data: DataFiles{
			Answers:    "data/answers.csv",
			Demand:     "data/demand.csv",
			Ratios:     "data/el_th_ratio.csv",
			PVFormat:   profiles.SeriesFormat{SkipRows: 3, Column: "electricity"},
			SpotFormat: profiles.SeriesFormat{},
		},
		Solver: SolverConfig{
			Backend:     BackendHiGHS,
			HiGHSBinary: "highs",
			TimeLimit:   2 * time.Hour,
		},
		OutputDir: "results",
		ENTSOE: ENTSOEConfig{
			BaseURL:    entsoe.DefaultBaseURL,
			Domain:     entsoe.DefaultDomain,
			Location:   "Europe/Oslo",
			APITimeout: 60 * time.Second,
			UserAgent:  "lec-planner/1.0",
		},
		LogLevel:  "info",
		LogFormat: "text",
		Scenarios: []Scenario{
			{Name: "base", NumHouses: 5},
		},
	}
}

// LoadConfig loads configuration from a JSON or YAML file. Relative data
// paths are resolved against the file's directory.
func LoadConfig(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	config, err := LoadConfigFromReader(file, formatOf(filename))
	if err != nil {
		return nil, err
	}
	config.resolvePaths(filepath.Dir(filename))
	return config, nil
}

func formatOf(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadConfigFromReader loads configuration from an io.Reader
func LoadConfigFromReader(reader io.Reader, format string) (*Config, error) {
	config := DefaultConfig()

	switch format {
	case FormatJSON, "":
		if err := json.NewDecoder(reader).Decode(config); err != nil {
			return nil, fmt.Errorf("failed to decode config JSON: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(reader).Decode(config); err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to decode config YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config format: %s", format)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func (c *Config) resolvePaths(dir string) {
	for _, p := range []*string{
		&c.Data.Answers, &c.Data.Demand, &c.Data.Ratios, &c.Data.PV,
		&c.Data.SpotPrice, &c.Data.FutureSpotPrice, &c.Data.FutureWeekStats,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// SaveConfig saves the configuration to a JSON or YAML file, chosen by extension.
func (c *Config) SaveConfig(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if formatOf(filename) == FormatYAML {
		enc := yaml.NewEncoder(file)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("failed to encode config YAML: %w", err)
		}
		return enc.Close()
	}
	return c.SaveConfigToWriter(file)
}

// SaveConfigToWriter saves the configuration to an io.Writer as indented JSON
func (c *Config) SaveConfigToWriter(writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config JSON: %w", err)
	}

	return nil
}

// Scenario returns the scenario called name.
func (c *Config) Scenario(name string) (Scenario, error) {
	for _, s := range c.Scenarios {
		if s.Name == name {
			return s, nil
		}
	}
	return Scenario{}, fmt.Errorf("unknown scenario: %s", name)
}

// Validate checks the settings needed to download prices.
func (e ENTSOEConfig) Validate() error {
	if e.SecurityToken == "" {
		return fmt.Errorf("entsoe.security_token cannot be empty")
	}
	if err := entsoe.ValidateAPIURL(e.BaseURL); err != nil {
		return fmt.Errorf("invalid entsoe.base_url: %w", err)
	}
	if e.APITimeout <= 0 {
		return fmt.Errorf("entsoe.api_timeout must be greater than 0, got: %s", e.APITimeout)
	}
	if _, err := time.LoadLocation(e.Location); err != nil {
		return fmt.Errorf("invalid entsoe.location: %w", err)
	}
	return nil
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if c.Year < 1900 || c.Year > 2200 {
		return fmt.Errorf("year must be between 1900 and 2200, got: %d", c.Year)
	}

	if c.Data.Answers == "" || c.Data.Demand == "" || c.Data.Ratios == "" {
		return fmt.Errorf("data.answers, data.demand and data.ratios cannot be empty")
	}

	if c.Data.SpotPrice == "" && c.ENTSOE.SecurityToken == "" {
		return fmt.Errorf("data.spot_price cannot be empty without entsoe.security_token")
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}

	switch c.Solver.Backend {
	case BackendSimplex, BackendHiGHS:
	default:
		return fmt.Errorf("invalid solver.backend: %s, must be one of: simplex, highs", c.Solver.Backend)
	}

	if c.Solver.TimeLimit < 0 {
		return fmt.Errorf("solver.time_limit must be non-negative, got: %s", c.Solver.TimeLimit)
	}

	if c.Solver.Threads < 0 || c.Solver.MaxCells < 0 {
		return fmt.Errorf("solver.threads and solver.max_cells must be non-negative, got: %d, %d", c.Solver.Threads, c.Solver.MaxCells)
	}

	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 0 and 65535, got: %d", c.HTTPPort)
	}

	if c.ENTSOE.SecurityToken != "" {
		if err := c.ENTSOE.Validate(); err != nil {
			return err
		}
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level: %s, must be one of: debug, info, warn, error", c.LogLevel)
	}

	// Validate log format
	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("invalid log_format: %s, must be one of: text, json", c.LogFormat)
	}

	if err := c.Model.Tariffs.Validate(); err != nil {
		return fmt.Errorf("invalid model.tariffs: %w", err)
	}

	if err := c.Model.STES.Validate(); err != nil {
		return fmt.Errorf("invalid model.stes: %w", err)
	}

	if c.PVSite.Latitude < -90 || c.PVSite.Latitude > 90 {
		return fmt.Errorf("pv_site.latitude must be between -90 and 90, got: %f", c.PVSite.Latitude)
	}

	if len(c.Scenarios) == 0 {
		return fmt.Errorf("at least one scenario is required")
	}

	seen := make(map[string]bool, len(c.Scenarios))
	for _, s := range c.Scenarios {
		if s.Name == "" {
			return fmt.Errorf("scenario name cannot be empty")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate scenario name: %s", s.Name)
		}
		seen[s.Name] = true
		if s.NumHouses <= 0 {
			return fmt.Errorf("scenario %s: num_houses must be greater than 0, got: %d", s.Name, s.NumHouses)
		}
		if s.WindowStart < 0 || s.WindowHours < 0 {
			return fmt.Errorf("scenario %s: window_start and window_hours must be non-negative", s.Name)
		}
		if s.UseFuturePrices && c.Data.FutureSpotPrice == "" && c.Data.FutureWeekStats == "" {
			return fmt.Errorf("scenario %s: use_future_prices needs data.future_spot_price or data.future_week_stats", s.Name)
		}
	}

	return nil
}

// MarshalJSON writes the time limit as a duration string
func (s SolverConfig) MarshalJSON() ([]byte, error) {
	type Alias SolverConfig
	return json.Marshal(&struct {
		Alias
		TimeLimit string `json:"time_limit"`
	}{
		Alias:     Alias(s),
		TimeLimit: s.TimeLimit.String(),
	})
}

// UnmarshalJSON accepts the time limit as a duration string
func (s *SolverConfig) UnmarshalJSON(data []byte) error {
	type Alias SolverConfig
	aux := &struct {
		*Alias
		TimeLimit string `json:"time_limit"`
	}{
		Alias: (*Alias)(s),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.TimeLimit != "" {
		var err error
		if s.TimeLimit, err = time.ParseDuration(aux.TimeLimit); err != nil {
			return fmt.Errorf("invalid time_limit: %w", err)
		}
	}
	return nil
}

// MarshalJSON writes the API timeout as a duration string
func (e ENTSOEConfig) MarshalJSON() ([]byte, error) {
	type Alias ENTSOEConfig
	return json.Marshal(&struct {
		Alias
		APITimeout string `json:"api_timeout"`
	}{
		Alias:      Alias(e),
		APITimeout: e.APITimeout.String(),
	})
}

// UnmarshalJSON accepts the API timeout as a duration string
func (e *ENTSOEConfig) UnmarshalJSON(data []byte) error {
	type Alias ENTSOEConfig
	aux := &struct {
		*Alias
		APITimeout string `json:"api_timeout"`
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.APITimeout != "" {
		var err error
		if e.APITimeout, err = time.ParseDuration(aux.APITimeout); err != nil {
			return fmt.Errorf("invalid api_timeout: %w", err)
		}
	}
	return nil
}

// String returns a string representation of the config with the API token masked
func (c *Config) String() string {
	masked := *c
	if masked.ENTSOE.SecurityToken != "" {
		masked.ENTSOE.SecurityToken = "***"
	}
	if masked.PostgresConnString != "" {
		masked.PostgresConnString = "***"
	}
	data, _ := json.MarshalIndent(&masked, "", "  ")
	return string(data)
}
