// Package cost estimates ingredient and meal costs for a date using seasonal
// and inflation multipliers.
package cost

import (
	"math"
	"time"

	"budget-meal-planner/internal/shared"
)

// Season is the Zambian agricultural season.
type Season string

const (
	Rainy Season = "rainy"
	Dry   Season = "dry"
)

// DefaultBaseCost is used for ingredients missing from the base table.
const DefaultBaseCost = 10.0

var defaultBaseCosts = map[string]float64{
	"maize_meal":   8.5,
	"cassava":      6.0,
	"sweet_potato": 12.0,
	"beans":        18.0,
	"kapenta":      45.0,
	"chicken":      35.0,
	"rape_leaves":  10.0,
	"tomatoes":     15.0,
	"onions":       12.0,
}

var seasonalFactors = map[Season]map[string]float64{
	Rainy: {"vegetables": 0.8, "fruits": 0.9, "grains": 1.1, "protein": 1.0},
	Dry:   {"vegetables": 1.2, "fruits": 1.1, "grains": 0.9, "protein": 1.0},
}

// Config holds the market assumptions.
type Config struct {
	// InflationRate is the annual rate, compounded monthly.
	InflationRate float64 `koanf:"inflation_rate" validate:"gte=0"`
	// BaseYear and BaseMonth mark the month the base costs were observed.
	BaseYear  int `koanf:"base_year" validate:"gte=2000"`
	BaseMonth int `koanf:"base_month" validate:"gte=1,lte=12"`
	// BaseCosts overrides or extends the built-in base cost table.
	BaseCosts map[string]float64 `koanf:"base_costs"`
}

// DefaultConfig returns 10% annual inflation from January 2024.
func DefaultConfig() Config {
	return Config{InflationRate: 0.10, BaseYear: 2024, BaseMonth: 1}
}

// Predictor is a pure cost model. It is safe for concurrent use.
type Predictor struct {
	cfg       Config
	baseCosts map[string]float64
}

// NewPredictor creates a Predictor. Zero base date fields fall back to the
// defaults.
func NewPredictor(cfg Config) *Predictor {
	def := DefaultConfig()
	if cfg.BaseYear == 0 {
		cfg.BaseYear = def.BaseYear
	}
	if cfg.BaseMonth == 0 {
		cfg.BaseMonth = def.BaseMonth
	}

	costs := make(map[string]float64, len(defaultBaseCosts)+len(cfg.BaseCosts))
	for name, c := range defaultBaseCosts {
		costs[name] = c
	}
	for name, c := range cfg.BaseCosts {
		costs[name] = c
	}
	return &Predictor{cfg: cfg, baseCosts: costs}
}

// SeasonOf returns rainy for November through April and dry otherwise.
func SeasonOf(date time.Time) Season {
	switch date.Month() {
	case time.November, time.December, time.January, time.February, time.March, time.April:
		return Rainy
	default:
		return Dry
	}
}

// SeasonalFactor returns the multiplier for a category in the season of date.
// Unknown categories are unaffected.
func SeasonalFactor(category string, date time.Time) float64 {
	if f, ok := seasonalFactors[SeasonOf(date)][category]; ok {
		return f
	}
	return 1.0
}

// BaseCost returns the base cost of an ingredient, or DefaultBaseCost.
func (p *Predictor) BaseCost(name string) float64 {
	if c, ok := p.baseCosts[name]; ok {
		return c
	}
	return DefaultBaseCost
}

// InflationFactor compounds the monthly rate over the months between the base
// month and date.
func (p *Predictor) InflationFactor(date time.Time) float64 {
	months := (date.Year()-p.cfg.BaseYear)*12 + int(date.Month()) - p.cfg.BaseMonth
	return math.Pow(1+p.cfg.InflationRate/12, float64(months))
}

// Predict estimates the cost of a quantity of an ingredient on a date.
func (p *Predictor) Predict(name, category string, quantity float64, date time.Time) (float64, error) {
	if quantity < 0 || math.IsNaN(quantity) {
		return 0, &shared.ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	return p.BaseCost(name) * SeasonalFactor(category, date) * p.InflationFactor(date) * quantity, nil
}

// Adjust applies the seasonal and inflation multipliers to an amount that was
// priced at the base date.
func (p *Predictor) Adjust(amount float64, category string, date time.Time) float64 {
	return amount * SeasonalFactor(category, date) * p.InflationFactor(date)
}
