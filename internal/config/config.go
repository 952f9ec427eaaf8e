package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	Database      DatabaseConfig
	Scan          ScanConfig
	Console       ConsoleConfig
	Archive       ArchiveConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type DatabaseConfig struct {
	Driver         string
	ConnectTimeout time.Duration
}

type ScanConfig struct {
	BatchSize    int
	PollInterval time.Duration
}

type ConsoleConfig struct {
	// PreviewRows caps the rows echoed after a scan; 0 prints everything.
	PreviewRows int
}

type ArchiveConfig struct {
	Enabled          bool
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ObservabilityConfig struct {
	LogLevel    slog.Level
	LogJSON     bool
	MetricsFile string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("TABLESCAN_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid TABLESCAN_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "TABLESCAN_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLESCAN_DRIVER", &cfg.Database.Driver); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLESCAN_CONNECT_TIMEOUT", &cfg.Database.ConnectTimeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLESCAN_BATCH_SIZE", &cfg.Scan.BatchSize); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLESCAN_POLL_INTERVAL", &cfg.Scan.PollInterval); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLESCAN_PREVIEW_ROWS", &cfg.Console.PreviewRows); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TABLESCAN_ARCHIVE_ENABLED", &cfg.Archive.Enabled); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLESCAN_ARCHIVE_ENDPOINT", &cfg.Archive.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLESCAN_ARCHIVE_REGION", &cfg.Archive.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLESCAN_ARCHIVE_BUCKET", &cfg.Archive.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLESCAN_ARCHIVE_ACCESS_KEY", &cfg.Archive.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLESCAN_ARCHIVE_SECRET_KEY", &cfg.Archive.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TABLESCAN_ARCHIVE_USE_SSL", &cfg.Archive.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLESCAN_ARCHIVE_PREFIX", &cfg.Archive.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TABLESCAN_ARCHIVE_AUTO_CREATE_BUCKET", &cfg.Archive.AutoCreateBucket); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TABLESCAN_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "TABLESCAN_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLESCAN_METRICS_FILE", &cfg.Observability.MetricsFile); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.Database.Driver == "" {
		return Config{}, fmt.Errorf("database driver is required")
	}
	if cfg.Scan.BatchSize < 1 {
		return Config{}, fmt.Errorf("batch size must be >= 1, got %d", cfg.Scan.BatchSize)
	}
	if cfg.Scan.PollInterval <= 0 {
		return Config{}, fmt.Errorf("poll interval must be > 0")
	}
	if cfg.Console.PreviewRows < 0 {
		return Config{}, fmt.Errorf("preview rows must be >= 0, got %d", cfg.Console.PreviewRows)
	}
	if cfg.Archive.Enabled && cfg.Archive.Bucket == "" {
		return Config{}, fmt.Errorf("archive bucket is required when archiving is enabled")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "tablescan"},
		Database: DatabaseConfig{
			Driver:         "sqlite3",
			ConnectTimeout: 5 * time.Second,
		},
		Scan: ScanConfig{
			BatchSize:    1000,
			PollInterval: time.Second,
		},
		Console: ConsoleConfig{
			PreviewRows: 0,
		},
		Archive: ArchiveConfig{
			Enabled:          false,
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "tablescan",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "exports",
			AutoCreateBucket: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelInfo,
			LogJSON:  false,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.Scan.PollInterval = 10 * time.Millisecond
		cfg.Observability.LogLevel = slog.LevelDebug
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Observability.LogJSON = true
		cfg.Archive.UseSSL = true
		cfg.Archive.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
