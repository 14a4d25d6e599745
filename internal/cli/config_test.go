package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/bibliothecula/internal/catalog"
	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
}

func TestLoadSettingsDefaults(t *testing.T) {
	v, err := loadSettings(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, types.BackendSQLite, v.GetString(cfgKeyBackend))
	assert.Equal(t, defaultLogLevel, v.GetString(cfgKeyLogLevel))
	assert.Equal(t, defaultWorkers, v.GetInt(cfgKeyWorkers))
	assert.Equal(t, defaultMaintenanceSchedule, v.GetString(cfgKeyMaintenanceSchedule))
}

func TestLoadSettingsFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "log_level: debug\nworkers: 7\nmax_retries: 3\ndata_dir: /srv/library\n")
	t.Setenv("BIBL_MAX_RETRIES", "9")
	t.Setenv("BIBL_DATA_DIR", "/from/env")

	v, err := loadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, "debug", v.GetString(cfgKeyLogLevel))
	assert.Equal(t, 7, v.GetInt(cfgKeyWorkers))
	assert.Equal(t, 9, v.GetInt(cfgKeyMaxRetries), "environment overrides tunables")
	assert.Equal(t, "/srv/library", v.GetString(cfgKeyDataDir), "config file wins for data_dir")
}

func TestLoadSettingsRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "workers: [unterminated\n")
	_, err := loadSettings(dir)
	require.Error(t, err)
}

func TestLibraryConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "data_dir: "+filepath.Join(dir, "from-config")+"\nscan_batch_size: 8\n")
	v, err := loadSettings(dir)
	require.NoError(t, err)

	tests := []struct {
		name string
		flag string
		want string
	}{
		{name: "config value", want: filepath.Join(dir, "from-config")},
		{name: "flag wins", flag: filepath.Join(dir, "from-flag"), want: filepath.Join(dir, "from-flag")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &app{settings: v, flags: rootFlags{dataDir: tt.flag}}
			cfg, err := a.libraryConfig()
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.DataDir)
			assert.Equal(t, 8, cfg.ScanBatchSize)
			assert.Equal(t, types.DefaultBusyTimeoutMS, cfg.BusyTimeoutMS)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestNewLogger(t *testing.T) {
	log, err := newLogger(io.Discard, "debug", "json")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	log, err = newLogger(io.Discard, "warn", "")
	require.NoError(t, err)
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)

	_, err = newLogger(io.Discard, "chatty", "text")
	assert.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = newLogger(io.Discard, "info", "xml")
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestRunRejectsInvalidLogLevel(t *testing.T) {
	h := newHarness(t)
	_, errOut, code := h.run("--log-level", "chatty", "stats")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, errOut, types.ErrInvalidConfig.Error())
}

func TestWriteConfigIfMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "config")

	written, err := writeConfigIfMissing(dir, "/data")
	require.NoError(t, err)
	assert.True(t, written)

	v, err := loadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, "/data", v.GetString(cfgKeyDataDir))
	assert.Equal(t, defaultLogFormat, v.GetString(cfgKeyLogFormat))

	written, err = writeConfigIfMissing(dir, "/elsewhere")
	require.NoError(t, err)
	assert.False(t, written)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitSuccess},
		{types.ErrNotFound, exitUserError},
		{fmt.Errorf("index: %w", types.ErrFullTextExists), exitUserError},
		{types.ErrNothingToUndo, exitUserError},
		{errors.New("unknown command"), exitUserError},
		{fmt.Errorf("write: %w", types.ErrLockContention), exitSysError},
		{&catalog.CycleError{IDs: []string{"A", "B"}}, exitSysError},
		{context.Canceled, exitSysError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), "%v", tt.err)
	}
}
