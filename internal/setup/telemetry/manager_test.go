package telemetry_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/robalyx/starboard/internal/setup/config"
	"github.com/robalyx/starboard/internal/setup/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLoggers(t *testing.T) {
	t.Parallel()

	logDir := t.TempDir()
	manager := telemetry.NewManager(telemetry.ServiceBot, logDir, &config.Debug{
		LogLevel:      "info",
		MaxLogsToKeep: 2,
		MaxLogLines:   100,
	})

	mainLogger, dbLogger, err := manager.GetLoggers()
	require.NoError(t, err)

	mainLogger.Info("hello")
	dbLogger.Debug("hidden")
	require.NoError(t, mainLogger.Sync())
	require.NoError(t, dbLogger.Sync())

	data, err := os.ReadFile(filepath.Join(manager.SessionDir(), "main.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), manager.InstanceID())

	data, err = os.ReadFile(filepath.Join(manager.SessionDir(), "database.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
}

func TestGetLoggersRotatesSessions(t *testing.T) {
	t.Parallel()

	logDir := t.TempDir()
	for _, name := range []string{"old-1", "old-2", "old-3"} {
		require.NoError(t, os.Mkdir(filepath.Join(logDir, name), 0o755))
	}

	manager := telemetry.NewManager(telemetry.ServiceDB, logDir, &config.Debug{
		LogLevel:      "debug",
		MaxLogsToKeep: 2,
	})
	_, _, err := manager.GetLoggers()
	require.NoError(t, err)

	sessions, err := filepath.Glob(filepath.Join(logDir, "*"))
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
	assert.Contains(t, sessions, manager.SessionDir())
}

func TestGetLoggersInvalidLevel(t *testing.T) {
	t.Parallel()

	manager := telemetry.NewManager(telemetry.ServiceBot, t.TempDir(), &config.Debug{LogLevel: "loud"})
	_, _, err := manager.GetLoggers()
	require.Error(t, err)
}
