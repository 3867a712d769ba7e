package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/roadsigns/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunRequiresImages(t *testing.T) {
	err := run(context.Background(), "", "", 10, false, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestRunRequiresModelPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  name: yolo11n\n"), 0o600))

	err := run(context.Background(), path, dir, 10, false, zap.NewNop().Sugar())
	assert.ErrorIs(t, err, config.ErrModelPathRequired)
}
