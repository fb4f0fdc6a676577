package params

import (
	"fmt"

	"github.com/devskill-org/lec-planner/calendar"
	"github.com/devskill-org/lec-planner/lec"
	"gonum.org/v1/gonum/mat"
)

// DefaultLocalMarketEta is the share of locally exported energy that arrives.
const DefaultLocalMarketEta = 0.995

// Assumptions bundles every fixed input of a scenario.
type Assumptions struct {
	Tariffs        TariffSchedule      `json:"tariffs" yaml:"tariffs"`
	Finance        Finance             `json:"finance" yaml:"finance"`
	Grid           Grid                `json:"grid" yaml:"grid"`
	LocalMarketEta float64             `json:"local_market_eta" yaml:"local_market_eta"`
	PV             PVAssumptions       `json:"pv" yaml:"pv"`
	HouseHP        HeatPumpAssumptions `json:"house_hp" yaml:"house_hp"`
	STES           STESAssumptions     `json:"stes" yaml:"stes"`
}

// DefaultAssumptions returns the reference community.
func DefaultAssumptions() Assumptions {
	return Assumptions{
		Tariffs:        DefaultTariffSchedule(),
		Finance:        DefaultFinance(),
		Grid:           DefaultGrid(),
		LocalMarketEta: DefaultLocalMarketEta,
		PV:             DefaultPV(),
		HouseHP:        DefaultHeatPump(),
		STES:           DefaultSTES(),
	}
}

// Profiles are the hour-indexed inputs of one scenario for a full year.
type Profiles struct {
	ElDemand  *mat.Dense // hours x households, kWh/h
	ThDemand  *mat.Dense // hours x households, kWh/h
	PVYield   []float64  // kWh/h per kWp
	SpotPrice []float64  // EUR/MWh
}

// Validate checks that every series covers exactly one year.
func (p Profiles) Validate() error {
	if p.ElDemand == nil || p.ThDemand == nil {
		return fmt.Errorf("%w: missing demand", ErrSeriesLength)
	}
	er, ec := p.ElDemand.Dims()
	tr, tc := p.ThDemand.Dims()
	if er != calendar.HoursPerYear || tr != calendar.HoursPerYear {
		return fmt.Errorf("%w: demand has %d/%d hours, want %d", ErrSeriesLength, er, tr, calendar.HoursPerYear)
	}
	if ec != tc || ec == 0 {
		return fmt.Errorf("%w: electric demand has %d households, thermal %d", ErrSeriesLength, ec, tc)
	}
	if len(p.PVYield) != calendar.HoursPerYear {
		return fmt.Errorf("%w: pv yield has %d hours, want %d", ErrSeriesLength, len(p.PVYield), calendar.HoursPerYear)
	}
	if len(p.SpotPrice) != calendar.HoursPerYear {
		return fmt.Errorf("%w: spot price has %d hours, want %d", ErrSeriesLength, len(p.SpotPrice), calendar.HoursPerYear)
	}
	return nil
}

// Builder derives model parameters from assumptions and profiles.
type Builder struct {
	Assumptions Assumptions
}

// NewBuilder returns a Builder for a.
func NewBuilder(a Assumptions) *Builder {
	return &Builder{Assumptions: a}
}

// Build derives the full-year parameter set and applies the scenario toggles.
func (b *Builder) Build(opts lec.Options, prof Profiles) (*lec.Params, error) {
	if err := prof.Validate(); err != nil {
		return nil, err
	}
	a := b.Assumptions
	if a.LocalMarketEta <= 0 || a.LocalMarketEta > 1 {
		return nil, fmt.Errorf("local_market_eta must be in (0, 1], got: %f", a.LocalMarketEta)
	}

	tariff, err := a.Tariffs.Derive()
	if err != nil {
		return nil, fmt.Errorf("failed to derive tariffs: %w", err)
	}
	pvCost, err := a.Finance.Annualize(a.PV.InvestmentCost)
	if err != nil {
		return nil, fmt.Errorf("failed to annualize pv cost: %w", err)
	}
	hpCost, err := a.Finance.Annualize(a.HouseHP.InvestmentCost)
	if err != nil {
		return nil, fmt.Errorf("failed to annualize heat pump cost: %w", err)
	}
	storage, err := a.STES.Derive(a.Finance, opts.EnableSTES)
	if err != nil {
		return nil, fmt.Errorf("failed to derive storage parameters: %w", err)
	}

	houseHP := lec.HeatPump{UnitCost: hpCost, COP: a.HouseHP.COP, MaxHeat: a.HouseHP.MaxHeat}
	if !opts.EnableHouseHP {
		houseHP.MaxHeat = 0
	}

	months := calendar.MonthIndex()
	rate := a.Tariffs.CurrencyRate
	individual := a.Tariffs.IndividualPeakTariff * rate
	selling := a.Tariffs.SellingTariff * rate
	var aggImport, aggExport float64

	if opts.EnableLocalMarket || opts.EnableExportTariff {
		var total mat.Dense
		total.Add(prof.ElDemand, prof.ThDemand)
		aggImport, err = CalibrateAggregatedTariff(individual, &total, months)
		if err != nil {
			return nil, fmt.Errorf("failed to calibrate aggregated tariff: %w", err)
		}
		if opts.EnableExportTariff {
			aggExport = aggImport
		}
		individual = 0
	}
	if opts.EnableLocalMarket {
		selling = 0
	}

	spot := make([]float64, len(prof.SpotPrice))
	for t, price := range prof.SpotPrice {
		spot[t] = price / 1000
	}

	_, households := prof.ElDemand.Dims()
	capacity := a.Grid.Capacity()
	p := &lec.Params{
		Households:             households,
		Months:                 months,
		ElDemand:               mat.DenseCopyOf(prof.ElDemand),
		ThDemand:               mat.DenseCopyOf(prof.ThDemand),
		PVYield:                append([]float64(nil), prof.PVYield...),
		SpotPrice:              spot,
		Tax:                    tariff.Tax,
		Tariff:                 tariff.Network,
		SellingTariff:          selling,
		ConnectionFee:          a.Tariffs.ConnectionFee * rate,
		IndividualPeakTariff:   individual,
		AggregatedImportTariff: aggImport,
		AggregatedExportTariff: aggExport,
		MaxGridImport:          capacity,
		MaxGridExport:          capacity,
		LocalMarketEta:         a.LocalMarketEta,
		PV:                     lec.PV{UnitCost: pvCost, MaxCapacity: a.PV.MaxCapacity},
		HouseHP:                houseHP,
		Storage:                storage,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
