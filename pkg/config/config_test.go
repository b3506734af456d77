package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/blockaudit/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "blockaudit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, config.DefaultStoreDSN, cfg.Store.DSN)
	assert.Equal(t, config.CursorBackendFile, cfg.Cursor.Backend)
	assert.Empty(t, cfg.Cursor.Dir)
	assert.Equal(t, config.DefaultScanBatchSize, cfg.Scan.BatchSize)
	assert.Equal(t, "publish", cfg.Scan.DefaultStatus)
	assert.Equal(t, []string{"revision"}, cfg.Scan.ExcludedCategories)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, config.LogFormatText, cfg.Logging.Format)
	assert.Empty(t, cfg.Observability.OTLPEndpoint)
	assert.Empty(t, cfg.Observability.MetricsAddr)
	assert.Zero(t, cfg.Observability.SampleRatio)
}

func TestLoadConfig_EmptyFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultScanBatchSize, cfg.Scan.BatchSize)
	assert.Equal(t, config.DefaultStoreDSN, cfg.Store.DSN)
}

func TestLoadConfig_FromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
store:
  dsn: "/var/lib/site.db"
cursor:
  backend: sqlite
  dir: "/tmp/cursors"
scan:
  batch_size: 25
  default_status: draft
  excluded_categories: [revision, nav_menu_item]
logging:
  level: debug
  format: json
observability:
  otlp_endpoint: "localhost:4317"
  otlp_insecure: true
  otlp_headers: "api-key=secret"
  metrics_addr: "127.0.0.1:9464"
  environment: staging
  sample_ratio: 0.25
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/site.db", cfg.Store.DSN)
	assert.Equal(t, config.CursorBackendSQLite, cfg.Cursor.Backend)
	assert.Equal(t, "/tmp/cursors", cfg.Cursor.Dir)
	assert.Equal(t, 25, cfg.Scan.BatchSize)
	assert.Equal(t, "draft", cfg.Scan.DefaultStatus)
	assert.Equal(t, []string{"revision", "nav_menu_item"}, cfg.Scan.ExcludedCategories)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, config.LogFormatJSON, cfg.Logging.Format)
	assert.Equal(t, "localhost:4317", cfg.Observability.OTLPEndpoint)
	assert.True(t, cfg.Observability.OTLPInsecure)
	assert.Equal(t, "api-key=secret", cfg.Observability.OTLPHeaders)
	assert.Equal(t, "127.0.0.1:9464", cfg.Observability.MetricsAddr)
	assert.Equal(t, "staging", cfg.Observability.Environment)
	assert.InDelta(t, 0.25, cfg.Observability.SampleRatio, 1e-9)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, "scan:\n  batch_size: [oops\n"))
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"empty dsn", "store:\n  dsn: \"\"\n", config.ErrEmptyDSN},
		{"cursor backend", "cursor:\n  backend: redis\n", config.ErrInvalidCursorBackend},
		{"zero batch", "scan:\n  batch_size: 0\n", config.ErrInvalidBatchSize},
		{"negative batch", "scan:\n  batch_size: -5\n", config.ErrInvalidBatchSize},
		{"log level", "logging:\n  level: loud\n", config.ErrInvalidLogLevel},
		{"log format", "logging:\n  format: xml\n", config.ErrInvalidLogFormat},
		{"ratio high", "observability:\n  sample_ratio: 1.5\n", config.ErrInvalidSampleRatio},
		{"ratio negative", "observability:\n  sample_ratio: -0.1\n", config.ErrInvalidSampleRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoadConfig_UnknownKeysIgnored(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, "unknown:\n  key: value\nscan:\n  batch_size: 7\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Scan.BatchSize)
}

// Environment overrides mutate process state, so this test is not parallel.
func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("BLOCKAUDIT_SCAN_BATCH_SIZE", "42")
	t.Setenv("BLOCKAUDIT_STORE_DSN", "env.db")
	t.Setenv("BLOCKAUDIT_OBSERVABILITY_METRICS_ADDR", ":9100")

	cfg, err := config.LoadConfig(writeConfig(t, "scan:\n  batch_size: 10\n"))
	require.NoError(t, err)

	assert.Equal(t, 42, cfg.Scan.BatchSize)
	assert.Equal(t, "env.db", cfg.Store.DSN)
	assert.Equal(t, ":9100", cfg.Observability.MetricsAddr)
}

func TestConfig_ValidateAfterOverride(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	cfg.Cursor.Backend = "etcd"

	err = cfg.Validate()
	require.ErrorIs(t, err, config.ErrInvalidCursorBackend)
	assert.Contains(t, err.Error(), "invalid configuration")
}
