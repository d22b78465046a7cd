// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Report archive drivers; "none" disables archiving.
const (
	ReportNone   = "none"
	ReportFS     = "fs"
	ReportS3     = "s3"
	ReportMemory = "memory"
)

const (
	DefaultSQLitePath = "employees.db"
	DefaultBatchSize  = 1000
)

// Config captures everything main needs to wire the directory.
type Config struct {
	StorageDriver string `validate:"oneof=sqlite postgres memory"`
	SQLitePath    string `validate:"required_if=StorageDriver sqlite"`
	PostgresDSN   string `validate:"required_if=StorageDriver postgres"`
	BatchSize     int    `validate:"gt=0"`
	LogLevel      string `validate:"omitempty,oneof=debug info warn warning error"`
	LogFormat     string `validate:"oneof=json text"`
	MetricsAddr   string
	Report        Report
}

// Report configures where demonstration and load reports are archived.
type Report struct {
	Driver      string `validate:"oneof=none fs s3 memory"`
	FSRoot      string `validate:"required_if=Driver fs"`
	S3Bucket    string `validate:"required_if=Driver s3"`
	S3Region    string
	S3Endpoint  string `validate:"omitempty,url"`
	S3PathStyle bool
}

// FromEnv builds a Config from environment variables so main stays lean.
//
//	PERSONDIR_STORAGE_DRIVER: sqlite|postgres|memory (default sqlite)
//	PERSONDIR_SQLITE_PATH: sqlite file (default employees.db)
//	PERSONDIR_POSTGRES_DSN: DSN when driver=postgres
//	PERSONDIR_BATCH_SIZE: records per load transaction (default 1000)
//	PERSONDIR_LOG_LEVEL / PERSONDIR_LOG_FORMAT: slog level and json|text
//	PERSONDIR_METRICS_ADDR: listen address for /metrics (disabled when empty)
//	PERSONDIR_REPORT_DRIVER: none|fs|s3|memory (default none)
//	PERSONDIR_REPORT_FS_ROOT, PERSONDIR_REPORT_S3_BUCKET, PERSONDIR_REPORT_S3_REGION,
//	PERSONDIR_REPORT_S3_ENDPOINT, PERSONDIR_REPORT_S3_PATH_STYLE
func FromEnv() (Config, error) {
	cfg := Config{
		StorageDriver: envOr("PERSONDIR_STORAGE_DRIVER", DriverSQLite),
		SQLitePath:    envOr("PERSONDIR_SQLITE_PATH", DefaultSQLitePath),
		PostgresDSN:   os.Getenv("PERSONDIR_POSTGRES_DSN"),
		BatchSize:     DefaultBatchSize,
		LogLevel:      envOr("PERSONDIR_LOG_LEVEL", "info"),
		LogFormat:     envOr("PERSONDIR_LOG_FORMAT", "json"),
		MetricsAddr:   os.Getenv("PERSONDIR_METRICS_ADDR"),
		Report: Report{
			Driver:      envOr("PERSONDIR_REPORT_DRIVER", ReportNone),
			FSRoot:      envOr("PERSONDIR_REPORT_FS_ROOT", "./reports"),
			S3Bucket:    os.Getenv("PERSONDIR_REPORT_S3_BUCKET"),
			S3Region:    os.Getenv("PERSONDIR_REPORT_S3_REGION"),
			S3Endpoint:  os.Getenv("PERSONDIR_REPORT_S3_ENDPOINT"),
			S3PathStyle: strings.EqualFold(os.Getenv("PERSONDIR_REPORT_S3_PATH_STYLE"), "true"),
		},
	}
	if raw := os.Getenv("PERSONDIR_BATCH_SIZE"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("PERSONDIR_BATCH_SIZE: %w", err)
		}
		cfg.BatchSize = n
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports each violation.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
