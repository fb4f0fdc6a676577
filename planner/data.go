package planner

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/devskill-org/lec-planner/entsoe"
	"github.com/devskill-org/lec-planner/lec"
	"github.com/devskill-org/lec-planner/params"
	"github.com/devskill-org/lec-planner/profiles"
	"go.uber.org/zap"
)

// Inputs holds every data set a study reads once and shares between scenarios.
type Inputs struct {
	Answers         []profiles.Answer
	Demand          profiles.DemandTable
	Ratios          profiles.RatioTable
	PVYield         []float64 // kWh/h per kWp
	SpotPrice       []float64 // EUR/MWh
	FutureSpotPrice []float64 // EUR/MWh, nil when no projection is configured
}

// LoadInputs reads the data files of cfg. Without a PV file a clear-sky
// profile is computed; without a spot price file the prices are downloaded.
func LoadInputs(ctx context.Context, cfg *Config, logger *zap.Logger) (*Inputs, error) {
	in := &Inputs{}
	var err error

	if in.Answers, err = readFile(cfg.Data.Answers, profiles.ReadAnswers); err != nil {
		return nil, fmt.Errorf("failed to load survey answers: %w", err)
	}
	if in.Demand, err = readFile(cfg.Data.Demand, func(r io.Reader) (profiles.DemandTable, error) {
		return profiles.ReadDemand(r, cfg.Year)
	}); err != nil {
		return nil, fmt.Errorf("failed to load demand: %w", err)
	}
	if in.Ratios, err = readFile(cfg.Data.Ratios, profiles.ReadRatios); err != nil {
		return nil, fmt.Errorf("failed to load demand ratios: %w", err)
	}
	logger.Info("loaded household data",
		zap.Int("answers", len(in.Answers)),
		zap.Int("demand_series", len(in.Demand)),
	)

	if cfg.Data.PV != "" {
		if in.PVYield, err = profiles.ReadSeriesFile(cfg.Data.PV, cfg.Data.PVFormat); err != nil {
			return nil, fmt.Errorf("failed to load pv profile: %w", err)
		}
	} else {
		site := cfg.PVSite
		if site.Year == 0 {
			site.Year = cfg.Year
		}
		if in.PVYield, err = profiles.SyntheticPV(site); err != nil {
			return nil, fmt.Errorf("failed to compute pv profile: %w", err)
		}
		logger.Info("using clear-sky pv profile",
			zap.Float64("latitude", site.Latitude),
			zap.Float64("longitude", site.Longitude),
		)
	}

	if cfg.Data.SpotPrice != "" {
		if in.SpotPrice, err = profiles.ReadSeriesFile(cfg.Data.SpotPrice, cfg.Data.SpotFormat); err != nil {
			return nil, fmt.Errorf("failed to load spot prices: %w", err)
		}
	} else {
		logger.Info("downloading spot prices", zap.Int("year", cfg.Year), zap.String("domain", cfg.ENTSOE.Domain))
		if in.SpotPrice, err = FetchSpotPrices(ctx, cfg.ENTSOE, cfg.Year, nil); err != nil {
			return nil, err
		}
	}

	switch {
	case cfg.Data.FutureSpotPrice != "":
		if in.FutureSpotPrice, err = profiles.ReadSeriesFile(cfg.Data.FutureSpotPrice, cfg.Data.SpotFormat); err != nil {
			return nil, fmt.Errorf("failed to load future spot prices: %w", err)
		}
	case cfg.Data.FutureWeekStats != "":
		weeks, err := readFile(cfg.Data.FutureWeekStats, ReadWeekStats)
		if err != nil {
			return nil, fmt.Errorf("failed to load weekly price targets: %w", err)
		}
		if in.FutureSpotPrice, err = params.FutureProfile(in.SpotPrice, weeks); err != nil {
			return nil, fmt.Errorf("failed to build future spot prices: %w", err)
		}
	}

	return in, nil
}

func readFile[T any](filename string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(filename)
	if err != nil {
		return zero, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer f.Close()
	v, err := read(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", filename, err)
	}
	return v, nil
}

// ReadWeekStats parses weekly price targets: a header line, then one
// "mean,std" row per week. Extra leading columns such as a week number are ignored.
func ReadWeekStats(r io.Reader) ([]params.WeekStats, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	if _, err := cr.Read(); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	var weeks []params.WeekStats
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("line %d: want mean and std columns, got %d fields", line, len(rec))
		}
		mean, err := strconv.ParseFloat(strings.TrimSpace(rec[len(rec)-2]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d mean: %w", line, err)
		}
		std, err := strconv.ParseFloat(strings.TrimSpace(rec[len(rec)-1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d std: %w", line, err)
		}
		if std < 0 {
			return nil, fmt.Errorf("line %d: negative std %v", line, std)
		}
		weeks = append(weeks, params.WeekStats{Mean: mean, StdDev: std})
	}
	return weeks, nil
}

// FetchSpotPrices downloads a year of day-ahead prices and returns them as an
// hour-of-year EUR/MWh series. progress receives the finished month index.
func FetchSpotPrices(ctx context.Context, cfg ENTSOEConfig, year int, progress func(month int)) ([]float64, error) {
	if cfg.SecurityToken == "" {
		return nil, fmt.Errorf("entsoe.security_token cannot be empty")
	}
	loc, err := time.LoadLocation(cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid entsoe.location: %w", err)
	}
	client := entsoe.NewClient(cfg.SecurityToken, cfg.Domain)
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}
	if cfg.UserAgent != "" {
		client.UserAgent = cfg.UserAgent
	}
	if cfg.APITimeout > 0 {
		client.HTTPClient.Timeout = cfg.APITimeout
	}

	doc, err := client.DownloadYear(ctx, year, loc, progress)
	if err != nil {
		return nil, fmt.Errorf("failed to download spot prices: %w", err)
	}
	prices, err := entsoe.HourlySeries(doc, year, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to build spot price series: %w", err)
	}
	return prices, nil
}

// Community is the sampled population of one scenario with its profiles.
type Community struct {
	Households []profiles.Household
	Profiles   params.Profiles
}

// Community samples the scenario's households and assembles its hourly profiles.
func (in *Inputs) Community(city int, sc Scenario) (*Community, error) {
	pool, err := profiles.EligiblePool(in.Answers, in.Demand, city)
	if err != nil {
		return nil, err
	}
	households, err := profiles.SampleHouseholds(pool, sc.NumHouses, sc.SamplingSeed())
	if err != nil {
		return nil, err
	}
	el, th, err := profiles.BuildDemand(households, in.Demand, in.Ratios)
	if err != nil {
		return nil, fmt.Errorf("failed to build demand: %w", err)
	}

	spot := in.SpotPrice
	if sc.UseFuturePrices {
		if in.FutureSpotPrice == nil {
			return nil, fmt.Errorf("scenario %s uses future prices but none are loaded", sc.Name)
		}
		spot = in.FutureSpotPrice
	}
	return &Community{
		Households: households,
		Profiles: params.Profiles{
			ElDemand:  el,
			ThDemand:  th,
			PVYield:   in.PVYield,
			SpotPrice: spot,
		},
	}, nil
}

// ScenarioParams derives the model parameters of sc, cut to its window.
func ScenarioParams(a params.Assumptions, sc Scenario, c *Community) (*lec.Params, error) {
	p, err := params.NewBuilder(a).Build(sc.Options, c.Profiles)
	if err != nil {
		return nil, err
	}
	if sc.WindowHours > 0 {
		if p, err = p.Window(sc.WindowStart, sc.WindowStart+sc.WindowHours); err != nil {
			return nil, fmt.Errorf("failed to cut scenario window: %w", err)
		}
	}
	return p, nil
}
