// Package metrics exposes Prometheus metrics for planning and optimization,
// persists LLM usage, and reports process health.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PlansGeneratedTotal counts generated plans by cultural policy.
	PlansGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meal_planner_plans_generated_total",
			Help: "Total number of weekly meal plans generated",
		},
		[]string{"policy"},
	)

	// PlansWithinBudgetTotal counts plans by whether they met the budget.
	PlansWithinBudgetTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meal_planner_plans_budget_outcome_total",
			Help: "Total number of optimized plans by budget outcome",
		},
		[]string{"budget_range", "within_budget"},
	)

	// OptimizerReductionTotal accumulates the cost removed by each strategy.
	OptimizerReductionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meal_planner_optimizer_reduction_total",
			Help: "Total cost removed by each budget strategy",
		},
		[]string{"strategy"},
	)

	// PlanGenerationDuration tracks end-to-end planning latency.
	PlanGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meal_planner_plan_duration_seconds",
			Help:    "Duration of plan generation and optimization in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// ModelFitsTotal counts collaborative model fits.
	ModelFitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meal_planner_model_fits_total",
			Help: "Total number of collaborative model fits",
		},
	)

	// ModelFitDuration tracks collaborative model fit latency.
	ModelFitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meal_planner_model_fit_duration_seconds",
			Help:    "Duration of collaborative model fits in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
	)

	// ModelVersion is the version of the model currently serving predictions.
	ModelVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meal_planner_model_version",
			Help: "Version of the collaborative model in use",
		},
	)

	// RecipesIngestedTotal counts ingested posts by outcome.
	RecipesIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meal_planner_recipes_ingested_total",
			Help: "Total number of recipe posts processed during ingestion",
		},
		[]string{"outcome"},
	)

	// LLMTokensTotal counts tokens consumed by LLM calls.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meal_planner_llm_tokens_total",
			Help: "Total number of LLM tokens consumed",
		},
		[]string{"agent", "kind"},
	)
)

// RecordPlan records a generated and optimized plan.
func RecordPlan(policy, budgetRange string, withinBudget bool, duration time.Duration) {
	PlansGeneratedTotal.WithLabelValues(policy).Inc()
	outcome := "false"
	if withinBudget {
		outcome = "true"
	}
	PlansWithinBudgetTotal.WithLabelValues(budgetRange, outcome).Inc()
	PlanGenerationDuration.Observe(duration.Seconds())
}

// RecordReduction adds the cost a strategy removed.
func RecordReduction(strategy string, amount float64) {
	if amount > 0 {
		OptimizerReductionTotal.WithLabelValues(strategy).Add(amount)
	}
}

// RecordModelFit records a finished collaborative model fit.
func RecordModelFit(version int, duration time.Duration) {
	ModelFitsTotal.Inc()
	ModelFitDuration.Observe(duration.Seconds())
	ModelVersion.Set(float64(version))
}
