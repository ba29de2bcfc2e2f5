// Package budget reduces the cost of a meal plan towards a household's weekly
// budget using an ordered set of strategies.
package budget

import (
	"math"
	"time"

	"budget-meal-planner/internal/cost"
	"budget-meal-planner/internal/planner"
	"budget-meal-planner/internal/profile"
	"budget-meal-planner/internal/recipe"

	"github.com/rs/zerolog"
)

// Outcome is the reduction a single strategy achieved.
type Outcome struct {
	Strategy  string  `json:"strategy"`
	Reduction float64 `json:"reduction"`
}

// Result describes an optimization run. An unmet budget is reported here, not
// as an error.
type Result struct {
	InitialCost  float64   `json:"initial_cost"`
	FinalCost    float64   `json:"final_cost"`
	Budget       float64   `json:"budget"`
	Outcomes     []Outcome `json:"outcomes,omitempty"`
	WithinBudget bool      `json:"within_budget"`
	// Remaining is how far the final cost is above the budget.
	Remaining float64 `json:"remaining"`
	// ProjectedCost is the final cost adjusted for season and inflation at the
	// plan date. Zero when no predictor is configured.
	ProjectedCost float64 `json:"projected_cost"`
	DailyAverage  float64 `json:"daily_average"`
}

// Savings is the total reduction across all strategies.
func (r *Result) Savings() float64 {
	return r.InitialCost - r.FinalCost
}

// Optimizer runs the cost-reduction strategies once, in order.
type Optimizer struct {
	strategies []Strategy
	envelopes  Envelopes
	predictor  *cost.Predictor
	logger     zerolog.Logger
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithStrategies replaces the strategy sequence.
func WithStrategies(s ...Strategy) Option {
	return func(o *Optimizer) { o.strategies = s }
}

// WithEnvelopes replaces the envelope table.
func WithEnvelopes(e Envelopes) Option {
	return func(o *Optimizer) { o.envelopes = e }
}

// WithPredictor enables the seasonal projection of the final cost.
func WithPredictor(p *cost.Predictor) Option {
	return func(o *Optimizer) { o.predictor = p }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Optimizer) { o.logger = l.With().Str("component", "budget").Logger() }
}

// NewOptimizer creates an Optimizer with the default strategies and envelopes.
func NewOptimizer(opts ...Option) *Optimizer {
	o := &Optimizer{
		strategies: DefaultStrategies(),
		envelopes:  DefaultEnvelopes(),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Optimize reduces the plan's cost towards the profile's weekly budget. The
// plan is modified in place. The final cost is never above the initial cost.
func (o *Optimizer) Optimize(plan *planner.MealPlan, p profile.Profile, date time.Time) (*Result, error) {
	env, err := o.envelopes.Lookup(p.BudgetRange)
	if err != nil {
		return nil, err
	}

	budget := env.Budget(p.Household())
	initial := plan.TotalCost()
	res := &Result{InitialCost: initial, Budget: budget}

	if initial > budget {
		gap := initial - budget
		for _, s := range o.strategies {
			if gap <= 0 {
				break
			}
			var reduction float64
			plan, reduction = s.Apply(plan, gap)
			gap -= reduction
			res.Outcomes = append(res.Outcomes, Outcome{Strategy: s.Name(), Reduction: reduction})

			o.logger.Debug().
				Str("strategy", s.Name()).
				Float64("reduction", reduction).
				Float64("gap", gap).
				Msg("applied strategy")
		}
	}

	res.FinalCost = plan.TotalCost()
	res.WithinBudget = res.FinalCost <= budget
	res.Remaining = math.Max(0, res.FinalCost-budget)
	res.DailyAverage = res.FinalCost / float64(len(planner.Days))
	if o.predictor != nil {
		res.ProjectedCost = o.project(plan, date)
	}
	return res, nil
}

func (o *Optimizer) project(plan *planner.MealPlan, date time.Time) float64 {
	var total float64
	plan.Each(func(_ string, _ recipe.MealType, m *planner.Meal) {
		total += o.predictor.Adjust(m.CostPerServing, m.Category, date)
	})
	return total
}
