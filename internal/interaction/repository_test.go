package interaction

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"budget-meal-planner/internal/database"
	"budget-meal-planner/internal/shared"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "interactions.db"), zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(db.SQL)

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	records := []Record{
		{UserID: "u1", RecipeID: "a", Rating: 5, Timestamp: base},
		{UserID: "u2", RecipeID: "b", Rating: 3, Timestamp: base.Add(time.Hour)},
		{UserID: "u1", RecipeID: "c", Rating: 2, RepeatCount: 1, Timestamp: base.Add(1500 * time.Millisecond)},
	}
	for _, r := range records {
		require.NoError(t, repo.Append(ctx, r))
	}

	t.Run("ListByUserIsMostRecentFirst", func(t *testing.T) {
		got, err := repo.ListByUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "c", got[0].RecipeID)
		assert.True(t, got[0].Timestamp.Equal(records[2].Timestamp))
		assert.Equal(t, 1, got[0].RepeatCount)
		assert.Equal(t, "a", got[1].RecipeID)
	})

	t.Run("ListAllKeepsInsertionOrder", func(t *testing.T) {
		got, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].RecipeID, got[1].RecipeID, got[2].RecipeID})
	})

	t.Run("RejectsInvalidRecord", func(t *testing.T) {
		err := repo.Append(ctx, Record{UserID: "u1", RecipeID: "a", Rating: 9})
		var vErr *shared.ValidationError
		assert.True(t, errors.As(err, &vErr))
	})
}
