package interaction

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// timeLayout has a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Repository is an append-only, database-backed interaction log.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// Append validates and logs a record.
func (r *Repository) Append(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO interactions (user_id, recipe_id, rating, repeat_count, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.UserID, rec.RecipeID, rec.Rating, rec.RepeatCount, rec.Timestamp.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to append interaction: %w", err)
	}
	return nil
}

// ListByUser returns a user's records, most recent first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	return r.query(ctx, `
		SELECT user_id, recipe_id, rating, repeat_count, occurred_at
		FROM interactions WHERE user_id = ?
		ORDER BY occurred_at DESC, id DESC`, userID)
}

// ListAll returns every record in insertion order.
func (r *Repository) ListAll(ctx context.Context) ([]Record, error) {
	return r.query(ctx, `
		SELECT user_id, recipe_id, rating, repeat_count, occurred_at
		FROM interactions ORDER BY id`)
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec        Record
			occurredAt string
		)
		if err := rows.Scan(&rec.UserID, &rec.RecipeID, &rec.Rating, &rec.RepeatCount, &occurredAt); err != nil {
			return nil, fmt.Errorf("failed to read interaction row: %w", err)
		}
		rec.Timestamp, err = time.Parse(timeLayout, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse interaction timestamp: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
