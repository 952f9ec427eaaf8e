package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("tablescan", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.Database.Driver != "sqlite3" {
		t.Fatalf("Database.Driver = %q", cfg.Database.Driver)
	}
	if cfg.Database.ConnectTimeout != 5*time.Second {
		t.Fatalf("Database.ConnectTimeout = %s", cfg.Database.ConnectTimeout)
	}
	if cfg.Scan.BatchSize != 1000 {
		t.Fatalf("Scan.BatchSize = %d", cfg.Scan.BatchSize)
	}
	if cfg.Scan.PollInterval != time.Second {
		t.Fatalf("Scan.PollInterval = %s", cfg.Scan.PollInterval)
	}
	if cfg.Console.PreviewRows != 0 {
		t.Fatalf("Console.PreviewRows = %d", cfg.Console.PreviewRows)
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Observability.LogJSON {
		t.Fatal("LogJSON should default to false in dev")
	}
	if cfg.Archive.Enabled {
		t.Fatal("Archive.Enabled should default to false")
	}
	if cfg.Archive.Endpoint != "localhost:9000" {
		t.Fatalf("Archive.Endpoint = %q", cfg.Archive.Endpoint)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"TABLESCAN_PROFILE": "prod"})
	cfg, err := Load("tablescan", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if cfg.Observability.LogLevel != slog.LevelWarn {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Observability.LogJSON {
		t.Fatal("LogJSON should default to true in prod")
	}
	if !cfg.Archive.UseSSL {
		t.Fatal("Archive.UseSSL should default to true in prod")
	}
	if cfg.Archive.AutoCreateBucket {
		t.Fatal("Archive.AutoCreateBucket should default to false in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"TABLESCAN_PROFILE":                   "test",
		"TABLESCAN_SERVICE_NAME":              "tablescan-custom",
		"TABLESCAN_DRIVER":                    "duckdb",
		"TABLESCAN_CONNECT_TIMEOUT":           "2s",
		"TABLESCAN_BATCH_SIZE":                "250",
		"TABLESCAN_POLL_INTERVAL":             "300ms",
		"TABLESCAN_PREVIEW_ROWS":              "25",
		"TABLESCAN_ARCHIVE_ENABLED":           "true",
		"TABLESCAN_ARCHIVE_ENDPOINT":          "s3.example.com",
		"TABLESCAN_ARCHIVE_REGION":            "us-west-2",
		"TABLESCAN_ARCHIVE_BUCKET":            "dumps",
		"TABLESCAN_ARCHIVE_ACCESS_KEY":        "abc",
		"TABLESCAN_ARCHIVE_SECRET_KEY":        "def",
		"TABLESCAN_ARCHIVE_USE_SSL":           "true",
		"TABLESCAN_ARCHIVE_PREFIX":            "team-a",
		"TABLESCAN_ARCHIVE_AUTO_CREATE_BUCKET": "false",
		"TABLESCAN_LOG_LEVEL":                 "error",
		"TABLESCAN_LOG_JSON":                  "true",
		"TABLESCAN_METRICS_FILE":              "/tmp/tablescan.prom",
	})
	cfg, err := Load("tablescan", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "tablescan-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.Database.Driver != "duckdb" {
		t.Fatalf("Database.Driver = %q", cfg.Database.Driver)
	}
	if cfg.Database.ConnectTimeout != 2*time.Second {
		t.Fatalf("Database.ConnectTimeout = %s", cfg.Database.ConnectTimeout)
	}
	if cfg.Scan.BatchSize != 250 {
		t.Fatalf("Scan.BatchSize = %d", cfg.Scan.BatchSize)
	}
	if cfg.Scan.PollInterval != 300*time.Millisecond {
		t.Fatalf("Scan.PollInterval = %s", cfg.Scan.PollInterval)
	}
	if cfg.Console.PreviewRows != 25 {
		t.Fatalf("Console.PreviewRows = %d", cfg.Console.PreviewRows)
	}
	if !cfg.Archive.Enabled {
		t.Fatal("Archive.Enabled = false, want true")
	}
	if cfg.Archive.Endpoint != "s3.example.com" {
		t.Fatalf("Archive.Endpoint = %q", cfg.Archive.Endpoint)
	}
	if cfg.Archive.Region != "us-west-2" {
		t.Fatalf("Archive.Region = %q", cfg.Archive.Region)
	}
	if cfg.Archive.Bucket != "dumps" {
		t.Fatalf("Archive.Bucket = %q", cfg.Archive.Bucket)
	}
	if cfg.Archive.AccessKeyID != "abc" || cfg.Archive.SecretAccessKey != "def" {
		t.Fatalf("Archive credentials = %q/%q", cfg.Archive.AccessKeyID, cfg.Archive.SecretAccessKey)
	}
	if !cfg.Archive.UseSSL {
		t.Fatal("Archive.UseSSL = false, want true")
	}
	if cfg.Archive.Prefix != "team-a" {
		t.Fatalf("Archive.Prefix = %q", cfg.Archive.Prefix)
	}
	if cfg.Archive.AutoCreateBucket {
		t.Fatal("Archive.AutoCreateBucket = true, want false")
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Observability.LogJSON {
		t.Fatal("LogJSON = false, want true")
	}
	if cfg.Observability.MetricsFile != "/tmp/tablescan.prom" {
		t.Fatalf("MetricsFile = %q", cfg.Observability.MetricsFile)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"TABLESCAN_PROFILE": "oops"},
		{"TABLESCAN_CONNECT_TIMEOUT": "NaN"},
		{"TABLESCAN_BATCH_SIZE": "oops"},
		{"TABLESCAN_BATCH_SIZE": "0"},
		{"TABLESCAN_POLL_INTERVAL": "0s"},
		{"TABLESCAN_PREVIEW_ROWS": "-1"},
		{"TABLESCAN_DRIVER": " "},
		{"TABLESCAN_ARCHIVE_ENABLED": "not-bool"},
		{"TABLESCAN_ARCHIVE_ENABLED": "true", "TABLESCAN_ARCHIVE_BUCKET": ""},
		{"TABLESCAN_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("tablescan", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
