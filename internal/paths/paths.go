// Package paths resolves where bibl keeps its configuration and its library.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user directories.
const AppName = "bibliothecula"

// ConfigFileName is the config file looked up inside the config directory.
const ConfigFileName = "config.yaml"

// Environment variables that override the platform defaults.
const (
	EnvConfigDir = "BIBL_CONFIG_DIR"
	EnvDataDir   = "BIBL_DATA_DIR"
)

// platformDir holds platform lookups so tests can replace them.
var platformDir = struct {
	goos          string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	goos:          runtime.GOOS,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// xdg returns $env/bibliothecula, or ~/<fallback...>/bibliothecula when the
// variable is unset.
func xdg(env string, fallback ...string) (string, error) {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, AppName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append(append([]string{home}, fallback...), AppName)...), nil
}

// DefaultConfigDir returns the platform configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/bibliothecula (fallback ~/.config/bibliothecula)
// macOS:   ~/Library/Application Support/bibliothecula
// Windows: %APPDATA%/bibliothecula
func DefaultConfigDir() (string, error) {
	if platformDir.goos == "linux" {
		return xdg("XDG_CONFIG_HOME", ".config")
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// DefaultDataDir returns the platform directory that holds the library
// database.
//
// Linux:   $XDG_DATA_HOME/bibliothecula (fallback ~/.local/share/bibliothecula)
// macOS and Windows: the config directory, with a library subdirectory
func DefaultDataDir() (string, error) {
	if platformDir.goos == "linux" {
		return xdg("XDG_DATA_HOME", ".local", "share")
	}
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "library"), nil
}

// ResolveConfigDir returns the configuration directory:
// flag > BIBL_CONFIG_DIR > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	return first(DefaultConfigDir, flag, os.Getenv(EnvConfigDir))
}

// ResolveDataDir returns the library directory:
// flag > config file value > BIBL_DATA_DIR > DefaultDataDir().
func ResolveDataDir(flag, configValue string) (string, error) {
	return first(DefaultDataDir, flag, configValue, os.Getenv(EnvDataDir))
}

// ConfigFile returns the config file path inside dir.
func ConfigFile(dir string) string {
	return filepath.Join(dir, ConfigFileName)
}

// first returns the first non-empty candidate as an absolute path, or the
// default when all are empty.
func first(def func() (string, error), candidates ...string) (string, error) {
	for _, c := range candidates {
		if c != "" {
			return filepath.Abs(c)
		}
	}
	return def()
}
