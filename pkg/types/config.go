package types

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Config holds backend selection and parameters for Library.Attach.
type Config struct {
	Backend string `json:"backend" yaml:"backend" validate:"required,oneof=sqlite"`
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// DBName is the database file name inside DataDir.
	DBName string `json:"db_name,omitempty" yaml:"db_name,omitempty"`

	// BusyTimeoutMS is how long SQLite waits on a locked file before
	// returning SQLITE_BUSY.
	BusyTimeoutMS int `json:"busy_timeout_ms,omitempty" yaml:"busy_timeout_ms,omitempty" validate:"gte=0"`

	// MaxRetries bounds how often a write is retried after lock contention.
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries,omitempty" validate:"gte=0,lte=20"`

	// RetryBackoffMS is the initial backoff between retries; it doubles per attempt.
	RetryBackoffMS int `json:"retry_backoff_ms,omitempty" yaml:"retry_backoff_ms,omitempty" validate:"gte=0"`

	// ScanBatchSize is the number of blobs whose backlink edges are committed
	// per write transaction during a rescan.
	ScanBatchSize int `json:"scan_batch_size,omitempty" yaml:"scan_batch_size,omitempty" validate:"gte=0"`

	// UndoPruneBytes is the size above which undo-log entries are pruned.
	UndoPruneBytes int `json:"undo_prune_bytes,omitempty" yaml:"undo_prune_bytes,omitempty" validate:"gte=0"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Defaults applied by WithDefaults.
const (
	DefaultDBName         = "bibliothecula.db"
	DefaultBusyTimeoutMS  = 5000
	DefaultMaxRetries     = 5
	DefaultRetryBackoffMS = 50
	DefaultScanBatchSize  = 64
	DefaultUndoPruneBytes = 1000000
)

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

var validate = validator.New()

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if c.Backend != BackendSQLite {
		return ErrBackendUnknown
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// WithDefaults returns a copy of c with zero-valued tunables replaced by
// their defaults.
func (c Config) WithDefaults() Config {
	if c.DBName == "" {
		c.DBName = DefaultDBName
	}
	if c.BusyTimeoutMS == 0 {
		c.BusyTimeoutMS = DefaultBusyTimeoutMS
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBackoffMS == 0 {
		c.RetryBackoffMS = DefaultRetryBackoffMS
	}
	if c.ScanBatchSize == 0 {
		c.ScanBatchSize = DefaultScanBatchSize
	}
	if c.UndoPruneBytes == 0 {
		c.UndoPruneBytes = DefaultUndoPruneBytes
	}
	return c
}
