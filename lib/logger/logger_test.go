package logger_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luckydrop/lib/logger"
)

func TestSetupLoggerLocal(t *testing.T) {
	log := logger.SetupLogger("local", "")
	require.NotNil(t, log)
	assert.True(t, log.Enabled(context.Background(), slog.LevelDebug))
}

func TestSetupLoggerProdWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "luckydrop.log")

	log := logger.SetupLogger("prod", path)
	require.NotNil(t, log)
	assert.False(t, log.Enabled(context.Background(), slog.LevelDebug))

	log.Info("service started")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "service started")
}
