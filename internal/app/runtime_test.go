package app

import (
	"context"
	"path/filepath"
	"testing"

	"budget-meal-planner/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(dir, "db", "planner.db")
	cfg.Storage.ModelDir = filepath.Join(dir, "models")

	rt, err := Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)

	assert.NotNil(t, rt.App)
	assert.Nil(t, rt.App.deps.Ghost)
	assert.Len(t, rt.closers, 1)
	assert.FileExists(t, cfg.Database.Path)
	assert.DirExists(t, cfg.Storage.ModelDir)

	_, err = rt.App.Ingest(context.Background())
	assert.Error(t, err)

	assert.NoError(t, rt.Close())
}
