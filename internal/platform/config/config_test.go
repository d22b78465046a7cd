package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.StorageDriver)
	assert.Equal(t, DefaultSQLitePath, cfg.SQLitePath)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, ReportNone, cfg.Report.Driver)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PERSONDIR_STORAGE_DRIVER", "postgres")
	t.Setenv("PERSONDIR_POSTGRES_DSN", "postgres://localhost/persondir?sslmode=disable")
	t.Setenv("PERSONDIR_BATCH_SIZE", "250")
	t.Setenv("PERSONDIR_LOG_FORMAT", "text")
	t.Setenv("PERSONDIR_REPORT_DRIVER", "s3")
	t.Setenv("PERSONDIR_REPORT_S3_BUCKET", "reports")
	t.Setenv("PERSONDIR_REPORT_S3_PATH_STYLE", "TRUE")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.StorageDriver)
	assert.Equal(t, 250, cfg.BatchSize)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.True(t, cfg.Report.S3PathStyle)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvBadBatchSize(t *testing.T) {
	t.Setenv("PERSONDIR_BATCH_SIZE", "many")
	_, err := FromEnv()
	assert.ErrorContains(t, err, "PERSONDIR_BATCH_SIZE")
}

func TestValidate(t *testing.T) {
	base, err := FromEnv()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, "BatchSize"},
		{"negative batch size", func(c *Config) { c.BatchSize = -5 }, "BatchSize"},
		{"unknown driver", func(c *Config) { c.StorageDriver = "mysql" }, "StorageDriver"},
		{"postgres without dsn", func(c *Config) { c.StorageDriver = DriverPostgres }, "PostgresDSN"},
		{"s3 without bucket", func(c *Config) { c.Report.Driver = ReportS3 }, "S3Bucket"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "LogFormat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
