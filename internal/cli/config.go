package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/bibliothecula/internal/paths"
	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "BIBL"
	envFile        = ".env"

	cfgKeyBackend             = "backend"
	cfgKeyDataDir             = "data_dir"
	cfgKeyDBName              = "db_name"
	cfgKeyLogLevel            = "log_level"
	cfgKeyLogFormat           = "log_format"
	cfgKeyBusyTimeoutMS       = "busy_timeout_ms"
	cfgKeyMaxRetries          = "max_retries"
	cfgKeyRetryBackoffMS      = "retry_backoff_ms"
	cfgKeyScanBatchSize       = "scan_batch_size"
	cfgKeyUndoPruneBytes      = "undo_prune_bytes"
	cfgKeyWorkers             = "workers"
	cfgKeyMaintenanceSchedule = "maintenance_schedule"

	defaultLogLevel            = "warn"
	defaultLogFormat           = "text"
	defaultWorkers             = 4
	defaultMaintenanceSchedule = "@daily"
)

// envKeys are the settings that may be overridden by BIBL_* variables.
// data_dir is resolved separately so that config.yaml wins over the
// environment.
var envKeys = []string{
	cfgKeyBackend,
	cfgKeyDBName,
	cfgKeyLogLevel,
	cfgKeyLogFormat,
	cfgKeyBusyTimeoutMS,
	cfgKeyMaxRetries,
	cfgKeyRetryBackoffMS,
	cfgKeyScanBatchSize,
	cfgKeyUndoPruneBytes,
	cfgKeyWorkers,
	cfgKeyMaintenanceSchedule,
}

// configFile holds the structure written to config.yaml by init.
type configFile struct {
	Backend             string `yaml:"backend"`
	DataDir             string `yaml:"data_dir,omitempty"`
	LogLevel            string `yaml:"log_level"`
	LogFormat           string `yaml:"log_format"`
	Workers             int    `yaml:"workers"`
	MaintenanceSchedule string `yaml:"maintenance_schedule"`
}

// loadSettings reads config.yaml from configDir. Variables from a .env file
// in the working directory are exported first; they never override the
// real environment. A missing config.yaml is not an error.
func loadSettings(configDir string) (*viper.Viper, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeyLogFormat, defaultLogFormat)
	v.SetDefault(cfgKeyWorkers, defaultWorkers)
	v.SetDefault(cfgKeyMaintenanceSchedule, defaultMaintenanceSchedule)

	v.SetEnvPrefix(envPrefix)
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// libraryConfig assembles the store configuration. The data directory
// follows flag, config.yaml, BIBL_DATA_DIR, then the platform default.
func (a *app) libraryConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, a.settings.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, err
	}
	cfg := types.Config{
		Backend:        a.settings.GetString(cfgKeyBackend),
		DataDir:        dataDir,
		DBName:         a.settings.GetString(cfgKeyDBName),
		BusyTimeoutMS:  a.settings.GetInt(cfgKeyBusyTimeoutMS),
		MaxRetries:     a.settings.GetInt(cfgKeyMaxRetries),
		RetryBackoffMS: a.settings.GetInt(cfgKeyRetryBackoffMS),
		ScanBatchSize:  a.settings.GetInt(cfgKeyScanBatchSize),
		UndoPruneBytes: a.settings.GetInt(cfgKeyUndoPruneBytes),
	}
	return cfg.WithDefaults(), nil
}

// newLogger builds the logger every component receives from the container.
func newLogger(w io.Writer, level, format string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(w)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: log_level %q", types.ErrInvalidConfig, level)
	}
	log.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("%w: log_format %q", types.ErrInvalidConfig, format)
	}
	return log, nil
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. It reports whether a file was written.
func writeConfigIfMissing(configDir, dataDir string) (bool, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}

	path := paths.ConfigFile(configDir)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	cfg := configFile{
		Backend:             types.BackendSQLite,
		DataDir:             dataDir,
		LogLevel:            defaultLogLevel,
		LogFormat:           defaultLogFormat,
		Workers:             defaultWorkers,
		MaintenanceSchedule: defaultMaintenanceSchedule,
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Clean(path), data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}
