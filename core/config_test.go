package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func clearStyleEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"STYLE_ASSETS_DIR", "STYLE_HTTP_ADDR", "STYLE_MAX_UPLOAD_BYTES", "STYLE_MAX_PIXELS",
		"STYLE_SHUTDOWN_TIMEOUT", "STYLE_HISTORY_RETENTION", "STYLE_LOG_FILE", "STYLE_LOG_LEVEL", "DEV_MODE",
		"STYLE_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearStyleEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.AssetsDir != DefaultAssetsDir {
		t.Errorf("AssetsDir = %q", cfg.AssetsDir)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.LogFile != "styletransfer.log" || cfg.LogLevel != "info" {
		t.Errorf("log settings = %q/%q", cfg.LogFile, cfg.LogLevel)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
	if cfg.DevMode {
		t.Error("DevMode should default to false")
	}
	if cfg.HistoryRetention != DefaultHistoryRetention {
		t.Errorf("HistoryRetention = %v", cfg.HistoryRetention)
	}
	if cfg.APIKey != "" {
		t.Errorf("APIKey = %q, want empty", cfg.APIKey)
	}
	if cfg.MaxPixels != DefaultMaxPixels {
		t.Errorf("MaxPixels = %d", cfg.MaxPixels)
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	clearStyleEnv(t)
	t.Setenv("STYLE_ASSETS_DIR", "/opt/styles")
	t.Setenv("STYLE_DB_PATH", "")
	t.Setenv("STYLE_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("STYLE_LOG_LEVEL", "DEBUG")
	t.Setenv("STYLE_SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("STYLE_HISTORY_RETENTION", "0s")
	t.Setenv("STYLE_MAX_UPLOAD_BYTES", "16MB")
	t.Setenv("STYLE_MAX_PIXELS", "1000000")
	t.Setenv("STYLE_API_KEY", "  s3cret ")
	t.Setenv("DEV_MODE", "yes")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.AssetsDir != "/opt/styles" || cfg.HTTPAddr != "127.0.0.1:9000" {
		t.Errorf("got %+v", cfg)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.HistoryEnabled() {
		t.Error("explicitly empty STYLE_DB_PATH should disable history")
	}
	if cfg.ShutdownTimeout != 5*time.Second || !cfg.DevMode {
		t.Errorf("got timeout %v dev %v", cfg.ShutdownTimeout, cfg.DevMode)
	}
	if cfg.MaxUploadBytes != 16*BytesPerMB {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if cfg.MaxPixels != 1_000_000 {
		t.Errorf("MaxPixels = %d", cfg.MaxPixels)
	}
	if cfg.HistoryRetention != 0 {
		t.Errorf("HistoryRetention = %v, want 0", cfg.HistoryRetention)
	}
	if cfg.APIKey != "s3cret" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			AssetsDir:       "a",
			HTTPAddr:        ":1",
			MaxUploadBytes:  1,
			MaxPixels:       1,
			ShutdownTimeout: time.Second,
			LogLevel:        "info",
		}
	}

	tests := []struct {
		name     string
		mutate   func(*Config)
		wantCode string
	}{
		{"valid", func(*Config) {}, ""},
		{"no assets dir", func(c *Config) { c.AssetsDir = "" }, ErrCodeMissingConfig},
		{"no http addr", func(c *Config) { c.HTTPAddr = "" }, ErrCodeMissingConfig},
		{"zero upload limit", func(c *Config) { c.MaxUploadBytes = 0 }, ErrCodeInvalidValue},
		{"zero pixel cap", func(c *Config) { c.MaxPixels = 0 }, ErrCodeInvalidValue},
		{"negative retention", func(c *Config) { c.HistoryRetention = -time.Hour }, ErrCodeInvalidValue},
		{"negative timeout", func(c *Config) { c.ShutdownTimeout = -time.Second }, ErrCodeInvalidValue},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, ErrCodeInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *ConfigError, got %v", err)
			}
			if ce.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", ce.Code, tt.wantCode)
			}
			if ce.Action == "" {
				t.Error("expected an actionable message")
			}
		})
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitCodeSuccess},
		{"config", ErrMissingConfig("X"), ExitCodeConfig},
		{"wrapped config", fmt.Errorf("startup: %w", ErrAssetsMissing("/x", "gone")), ExitCodeConfig},
		{"other", errors.New("boom"), ExitCodeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCodeFor(tt.err); got != tt.want {
				t.Errorf("ExitCodeFor() = %d (%s), want %d", got, ExitCodeName(got), tt.want)
			}
		})
	}
}

func TestTransferRecord_MarshalLogObject(t *testing.T) {
	obsCore, logs := observer.New(zap.InfoLevel)
	logger := zap.New(obsCore)

	rec := TransferRecord{
		ID:        "req-1",
		Style:     0,
		StyleName: "candy",
		Backend:   "reference",
		Width:     256,
		Height:    256,
		Duration:  1500 * time.Microsecond,
		Status:    TransferSucceeded,
	}
	logger.Info("transfer", zap.Object("transfer", rec))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	obj, ok := entries[0].ContextMap()["transfer"].(map[string]interface{})
	if !ok {
		t.Fatalf("transfer field missing or wrong type: %v", entries[0].ContextMap())
	}
	if obj["style_name"] != "candy" || obj["status"] != "success" {
		t.Errorf("got %v", obj)
	}
	if obj["duration_ms"] != 1.5 {
		t.Errorf("duration_ms = %v, want 1.5", obj["duration_ms"])
	}
	if _, present := obj["error"]; present {
		t.Error("error key should be omitted on success")
	}
}
