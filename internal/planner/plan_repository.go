package planner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"budget-meal-planner/internal/shared"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const weekLayout = "2006-01-02"

// Summary is the optimization provenance stored with a plan.
type Summary struct {
	InitialCost  float64 `json:"initial_cost"`
	FinalCost    float64 `json:"final_cost"`
	Budget       float64 `json:"budget"`
	WithinBudget bool    `json:"within_budget"`
}

// StoredPlan is a persisted plan with its provenance.
type StoredPlan struct {
	Plan      *MealPlan
	Summary   Summary
	CreatedAt time.Time
}

// PlanRepository is a database-backed repository for meal plans.
type PlanRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(d *sql.DB) *PlanRepository {
	return &PlanRepository{db: d, now: time.Now}
}

// Save stores the plan, assigning it an id when it has none. Saving a plan with
// an existing id replaces it.
func (r *PlanRepository) Save(ctx context.Context, plan *MealPlan, summary Summary) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}

	planJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal meal plan: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO meal_plans (id, user_id, week_start, status, plan_data, initial_cost, final_cost, budget, within_budget, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			plan_data = excluded.plan_data,
			initial_cost = excluded.initial_cost,
			final_cost = excluded.final_cost,
			budget = excluded.budget,
			within_budget = excluded.within_budget`,
		plan.ID, plan.UserID, plan.WeekStart.Format(weekLayout), string(plan.Status), string(planJSON),
		summary.InitialCost, summary.FinalCost, summary.Budget, summary.WithinBudget, r.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save meal plan %s: %w", plan.ID, err)
	}
	return nil
}

// Get retrieves a plan by id.
func (r *PlanRepository) Get(ctx context.Context, id string) (*StoredPlan, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT plan_data, initial_cost, final_cost, budget, within_budget, created_at
		FROM meal_plans WHERE id = ?`, id)

	sp, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &shared.NotFoundError{Kind: "meal plan", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meal plan %s: %w", id, err)
	}
	return sp, nil
}

// ListRecentByUserID retrieves the N most recent meal plans for a given user.
func (r *PlanRepository) ListRecentByUserID(ctx context.Context, userID string, limit int) ([]StoredPlan, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT plan_data, initial_cost, final_cost, budget, within_budget, created_at
		FROM meal_plans WHERE user_id = ?
		ORDER BY week_start DESC, created_at DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent meal plans for user %s: %w", userID, err)
	}
	defer rows.Close()

	var plans []StoredPlan
	for rows.Next() {
		sp, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read meal plan row: %w", err)
		}
		plans = append(plans, *sp)
	}
	return plans, rows.Err()
}

// ExistsForWeek reports whether the user already has a plan for the week.
func (r *PlanRepository) ExistsForWeek(ctx context.Context, userID string, weekStart time.Time) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM meal_plans WHERE user_id = ? AND week_start = ?`,
		userID, weekStart.Format(weekLayout),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check meal plan for week: %w", err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(s scanner) (*StoredPlan, error) {
	var (
		data      string
		summary   Summary
		createdAt int64
	)
	if err := s.Scan(&data, &summary.InitialCost, &summary.FinalCost, &summary.Budget, &summary.WithinBudget, &createdAt); err != nil {
		return nil, err
	}

	var plan MealPlan
	if err := json.Unmarshal([]byte(data), &plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal meal plan: %w", err)
	}
	return &StoredPlan{Plan: &plan, Summary: summary, CreatedAt: time.Unix(createdAt, 0)}, nil
}
