package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"budget-meal-planner/internal/shared"

	"github.com/goccy/go-json"
)

// Repository is a database-backed repository for user profiles.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d, now: time.Now}
}

// Save validates and stores a profile, replacing any previous one.
func (r *Repository) Save(ctx context.Context, p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		p.UserID, string(data), r.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save profile %s: %w", p.UserID, err)
	}
	return nil
}

// Get retrieves a profile by user id.
func (r *Repository) Get(ctx context.Context, userID string) (*Profile, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM profiles WHERE user_id = ?`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &shared.NotFoundError{Kind: "profile", ID: userID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile %s: %w", userID, err)
	}

	var p Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return &p, nil
}

// GetOrDefault returns the stored profile, or a default medium profile for a
// user that has none.
func (r *Repository) GetOrDefault(ctx context.Context, userID string) (Profile, error) {
	p, err := r.Get(ctx, userID)
	var nf *shared.NotFoundError
	if errors.As(err, &nf) {
		return Profile{UserID: userID, BudgetRange: BudgetMedium, FamilySize: 1}, nil
	}
	if err != nil {
		return Profile{}, err
	}
	return *p, nil
}
