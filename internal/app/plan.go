package app

import (
	"context"
	"fmt"
	"time"

	"budget-meal-planner/internal/budget"
	"budget-meal-planner/internal/ghost"
	"budget-meal-planner/internal/metrics"
	"budget-meal-planner/internal/planner"
)

// PlanResult is a persisted weekly plan with its optimization result.
type PlanResult struct {
	Plan      *planner.MealPlan `json:"plan"`
	Result    *budget.Result    `json:"optimization"`
	Published *ghost.Post       `json:"published,omitempty"`
}

// PlanWeek generates, optimizes and stores the plan of a user for the week
// starting at weekStart. A zero weekStart plans the next week.
func (a *App) PlanWeek(ctx context.Context, userID string, weekStart time.Time) (*PlanResult, error) {
	start := time.Now()
	if weekStart.IsZero() {
		weekStart = planner.NextMonday(a.now())
	}

	recipes, err := a.deps.Recipes.List(ctx)
	if err != nil {
		return nil, err
	}
	p, err := a.profileFor(ctx, userID, byID(recipes))
	if err != nil {
		return nil, err
	}

	candidates := allowed(recipes, p.DietaryRestrictions)
	plan, err := planner.NewGenerator(a.scorer(), a.policy, a.logger).Generate(p, candidates, weekStart)
	if err != nil {
		return nil, err
	}

	res, err := a.optimizer.Optimize(plan, p, weekStart)
	if err != nil {
		return nil, err
	}
	plan.Status = planner.StatusFinal

	summary := planner.Summary{
		InitialCost:  res.InitialCost,
		FinalCost:    res.FinalCost,
		Budget:       res.Budget,
		WithinBudget: res.WithinBudget,
	}
	if err := a.deps.Plans.Save(ctx, plan, summary); err != nil {
		return nil, err
	}

	for _, o := range res.Outcomes {
		metrics.RecordReduction(o.Strategy, o.Reduction)
	}
	metrics.RecordPlan(a.policy.Name(), string(p.Budget()), res.WithinBudget, time.Since(start))

	a.logger.Info().
		Str("user_id", userID).
		Str("plan_id", plan.ID).
		Int("candidates", len(candidates)).
		Float64("initial_cost", res.InitialCost).
		Float64("final_cost", res.FinalCost).
		Float64("budget", res.Budget).
		Bool("within_budget", res.WithinBudget).
		Msg("planned week")

	out := &PlanResult{Plan: plan, Result: res}
	if a.cfg.Ghost.PublishPlans && a.deps.Ghost != nil {
		post, err := a.publish(ctx, plan, res)
		if err != nil {
			// The plan is already stored; publishing is retried by planning again.
			a.logger.Warn().Err(err).Str("plan_id", plan.ID).Msg("failed to publish meal plan")
		}
		out.Published = post
	}
	return out, nil
}

func (a *App) publish(ctx context.Context, plan *planner.MealPlan, res *budget.Result) (*ghost.Post, error) {
	html, err := RenderPlanHTML(plan, res)
	if err != nil {
		return nil, err
	}
	title := fmt.Sprintf("Meal plan for the week of %s", plan.WeekStart.Format("2 January 2006"))
	return a.deps.Ghost.CreatePost(ctx, title, html, false)
}

// RecentPlans lists the latest stored plans of a user.
func (a *App) RecentPlans(ctx context.Context, userID string, limit int) ([]planner.StoredPlan, error) {
	return a.deps.Plans.ListRecentByUserID(ctx, userID, limit)
}

// HasPlanForWeek reports whether a plan is stored for the user and week.
func (a *App) HasPlanForWeek(ctx context.Context, userID string, weekStart time.Time) (bool, error) {
	return a.deps.Plans.ExistsForWeek(ctx, userID, weekStart)
}
