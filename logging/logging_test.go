package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/htnql-engine/htnql/logging"
)

func TestNew_ZeroConfigWritesJSONToStderr(t *testing.T) {
	logger, err := logging.New(logging.Config{})
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.NoError(t, logger.Sync())
}

func TestNew_DevelopmentUsesConsoleEncoder(t *testing.T) {
	logger, err := logging.New(logging.Config{Development: true})
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestNew_FilePathRoutesThroughRotatingWriter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "htnql.log")

	logger, err := logging.New(logging.Config{
		FilePath:   path,
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
	})
	require.NoError(t, err)

	logger.Info("kernel planning step", zap.String("task", "AnswerReport"))
	require.NoError(t, logger.Sync())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestNew_DefaultsApplyWhenUnset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "defaults.log")

	logger, err := logging.New(logging.Config{FilePath: path})
	require.NoError(t, err)

	logger.Warn("using defaulted rotation settings")
	require.NoError(t, logger.Sync())

	_, err = os.Stat(path)
	require.NoError(t, err)
}
