package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "empty backend returns ErrBackendEmpty",
			config:  Config{Backend: "", DataDir: "/tmp/data"},
			wantErr: ErrBackendEmpty,
		},
		{
			name:    "unknown backend returns ErrBackendUnknown",
			config:  Config{Backend: "postgres", DataDir: "/tmp/data"},
			wantErr: ErrBackendUnknown,
		},
		{
			name:    "valid sqlite config",
			config:  Config{Backend: "sqlite", DataDir: "/tmp/data"},
			wantErr: nil,
		},
		{
			name:    "sqlite with empty DataDir is valid at config level",
			config:  Config{Backend: "sqlite", DataDir: ""},
			wantErr: nil,
		},
		{
			name:    "negative retry budget is rejected",
			config:  Config{Backend: "sqlite", MaxRetries: -1},
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "retry budget above the cap is rejected",
			config:  Config{Backend: "sqlite", MaxRetries: 50},
			wantErr: ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{Backend: BackendSQLite, MaxRetries: 2}.WithDefaults()

	assert.Equal(t, DefaultDBName, cfg.DBName)
	assert.Equal(t, DefaultBusyTimeoutMS, cfg.BusyTimeoutMS)
	assert.Equal(t, 2, cfg.MaxRetries, "explicit values survive")
	assert.Equal(t, DefaultRetryBackoffMS, cfg.RetryBackoffMS)
	assert.Equal(t, DefaultScanBatchSize, cfg.ScanBatchSize)
	assert.Equal(t, DefaultUndoPruneBytes, cfg.UndoPruneBytes)
}
