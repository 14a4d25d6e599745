package paths

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlatform swaps the platform lookups for the duration of a test.
func fakePlatform(t *testing.T, goos, home, configDir string) {
	t.Helper()
	saved := platformDir
	t.Cleanup(func() { platformDir = saved })
	platformDir.goos = goos
	platformDir.homeDir = func() (string, error) { return home, nil }
	platformDir.userConfigDir = func() (string, error) { return configDir, nil }
}

func TestDefaultDirs(t *testing.T) {
	tests := []struct {
		name       string
		goos       string
		xdgConfig  string
		xdgData    string
		wantConfig string
		wantData   string
	}{
		{
			name:       "linux with XDG",
			goos:       "linux",
			xdgConfig:  "/xdg/config",
			xdgData:    "/xdg/data",
			wantConfig: "/xdg/config/bibliothecula",
			wantData:   "/xdg/data/bibliothecula",
		},
		{
			name:       "linux fallback",
			goos:       "linux",
			wantConfig: "/home/reader/.config/bibliothecula",
			wantData:   "/home/reader/.local/share/bibliothecula",
		},
		{
			name:       "darwin",
			goos:       "darwin",
			xdgConfig:  "/ignored",
			wantConfig: "/Users/reader/Library/Application Support/bibliothecula",
			wantData:   "/Users/reader/Library/Application Support/bibliothecula/library",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := "/home/reader"
			if tt.goos == "darwin" {
				home = "/Users/reader"
			}
			fakePlatform(t, tt.goos, home, "/Users/reader/Library/Application Support")
			t.Setenv("XDG_CONFIG_HOME", tt.xdgConfig)
			t.Setenv("XDG_DATA_HOME", tt.xdgData)

			got, err := DefaultConfigDir()
			require.NoError(t, err)
			assert.Equal(t, tt.wantConfig, got)
			got, err = DefaultDataDir()
			require.NoError(t, err)
			assert.Equal(t, tt.wantData, got)
		})
	}
}

func TestDefaultDirsPropagateErrors(t *testing.T) {
	saved := platformDir
	t.Cleanup(func() { platformDir = saved })
	boom := errors.New("no home")
	platformDir.goos = "linux"
	platformDir.homeDir = func() (string, error) { return "", boom }
	t.Setenv("XDG_CONFIG_HOME", "")

	_, err := DefaultConfigDir()
	assert.ErrorIs(t, err, boom)
}

func TestResolveConfigDir(t *testing.T) {
	fakePlatform(t, "linux", "/home/reader", "")
	t.Setenv("XDG_CONFIG_HOME", "")

	t.Setenv(EnvConfigDir, "/env/config")
	got, err := ResolveConfigDir("/flag/config")
	require.NoError(t, err)
	assert.Equal(t, "/flag/config", got, "flag wins")

	got, err = ResolveConfigDir("")
	require.NoError(t, err)
	assert.Equal(t, "/env/config", got)

	t.Setenv(EnvConfigDir, "")
	got, err = ResolveConfigDir("")
	require.NoError(t, err)
	assert.Equal(t, "/home/reader/.config/bibliothecula", got)
}

func TestResolveDataDir(t *testing.T) {
	fakePlatform(t, "linux", "/home/reader", "")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv(EnvDataDir, "/env/data")

	tests := []struct {
		name   string
		flag   string
		config string
		want   string
	}{
		{"flag", "/flag/data", "/config/data", "/flag/data"},
		{"config value", "", "/config/data", "/config/data"},
		{"environment", "", "", "/env/data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveDataDir(tt.flag, tt.config)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Setenv(EnvDataDir, "")
	got, err := ResolveDataDir("", "")
	require.NoError(t, err)
	assert.Equal(t, "/home/reader/.local/share/bibliothecula", got)

	rel, err := ResolveDataDir("lib", "")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(rel))
}

func TestConfigFile(t *testing.T) {
	assert.Equal(t, filepath.Join("/etc/bibl", "config.yaml"), ConfigFile("/etc/bibl"))
}
