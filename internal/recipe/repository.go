package recipe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"budget-meal-planner/internal/shared"

	"github.com/goccy/go-json"
)

// Repository is a database-backed repository for recipes.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d, now: time.Now}
}

// Save inserts or updates a recipe in the database.
func (r *Repository) Save(ctx context.Context, rec Recipe) error {
	recipeJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal recipe to JSON: %w", err)
	}

	updatedAt := r.now()
	if rec.UpdatedAt != "" {
		// Source timestamps are RFC3339; anything else falls back to now.
		if parsed, err := time.Parse(time.RFC3339, rec.UpdatedAt); err == nil {
			updatedAt = parsed
		}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO recipes (id, name, meal_type, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			meal_type = excluded.meal_type,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Name, string(rec.MealType), string(recipeJSON), updatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save recipe %s: %w", rec.ID, err)
	}
	return nil
}

// Get retrieves a recipe by its ID.
func (r *Repository) Get(ctx context.Context, id string) (*Recipe, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM recipes WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &shared.NotFoundError{Kind: "recipe", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe by ID: %w", err)
	}

	var rec Recipe
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipe JSON: %w", err)
	}
	return &rec, nil
}

// List retrieves all recipes ordered by id. Rows that no longer decode are
// skipped.
func (r *Repository) List(ctx context.Context) ([]Recipe, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, data FROM recipes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	defer rows.Close()

	var recipes []Recipe
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to read recipe row: %w", err)
		}
		var rec Recipe
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			continue
		}
		recipes = append(recipes, rec)
	}
	return recipes, rows.Err()
}

// Count returns the number of recipes in the database.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count recipes: %w", err)
	}
	return n, nil
}

// UpdatedAt returns when a stored recipe was last updated, or the zero time
// when it is not stored.
func (r *Repository) UpdatedAt(ctx context.Context, id string) (time.Time, error) {
	var ts int64
	err := r.db.QueryRowContext(ctx, `SELECT updated_at FROM recipes WHERE id = ?`, id).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read recipe timestamp: %w", err)
	}
	return time.Unix(ts, 0), nil
}
