package core

import (
	"os"
	"strings"
	"time"
)

// Config holds the process-level configuration. Engine and pipeline settings
// live in styletransfer.Config; this covers where things are and how the
// process talks to the outside.
type Config struct {
	// Assets
	AssetsDir string // Directory with styletransfer.param.bin and the style weights

	// Storage
	DBPath           string        // SQLite transfer history; empty disables history
	HistoryRetention time.Duration // Rows older than this are purged; 0 keeps everything

	// HTTP API
	HTTPAddr        string
	MaxUploadBytes  int64
	MaxPixels       int64 // Declared width*height cap for decoded images
	ShutdownTimeout time.Duration
	APIKey          string // Plain key or bcrypt hash; empty leaves the API open

	// Logging
	LogFile  string
	LogLevel string
	DevMode  bool
}

// Default values for Config
const (
	DefaultAssetsDir        = "./assets"
	DefaultDBPath           = "./styletransfer.db"
	DefaultHistoryRetention = 30 * 24 * time.Hour
	DefaultHTTPAddr         = ":8080"
	DefaultMaxUploadBytes   = 32 << 20
	DefaultMaxPixels        = 40_000_000
	DefaultShutdownTimeout  = 30 * time.Second
	DefaultLogFile          = "styletransfer.log"
	DefaultLogLevel         = "info"
)

// LoadConfig reads Config from the environment. Call godotenv.Load first if a
// .env file should contribute. Values that fail to parse fall back to their
// defaults; Validate reports values that parse but are unusable.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AssetsDir:        GetEnvOrDefault("STYLE_ASSETS_DIR", DefaultAssetsDir),
		DBPath:           dbPathFromEnv(),
		HistoryRetention: ParseDurationEnv("STYLE_HISTORY_RETENTION", DefaultHistoryRetention),
		HTTPAddr:         GetEnvOrDefault("STYLE_HTTP_ADDR", DefaultHTTPAddr),
		MaxUploadBytes:   ParseBytesEnv("STYLE_MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),
		MaxPixels:        int64(ParseIntEnv("STYLE_MAX_PIXELS", DefaultMaxPixels)),
		ShutdownTimeout:  ParseDurationEnv("STYLE_SHUTDOWN_TIMEOUT", DefaultShutdownTimeout),
		APIKey:           strings.TrimSpace(os.Getenv("STYLE_API_KEY")),
		LogFile:          GetEnvOrDefault("STYLE_LOG_FILE", DefaultLogFile),
		LogLevel:         strings.ToLower(GetEnvOrDefault("STYLE_LOG_LEVEL", DefaultLogLevel)),
		DevMode:          ParseBoolEnv("DEV_MODE", false),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// dbPathFromEnv distinguishes unset (use default) from explicitly empty
// (history disabled).
func dbPathFromEnv() string {
	if v, ok := os.LookupEnv("STYLE_DB_PATH"); ok {
		return strings.TrimSpace(v)
	}
	return DefaultDBPath
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if c.AssetsDir == "" {
		return ErrMissingConfig("STYLE_ASSETS_DIR")
	}
	if c.HTTPAddr == "" {
		return ErrMissingConfig("STYLE_HTTP_ADDR")
	}
	if c.MaxUploadBytes <= 0 {
		return ErrInvalidValue("STYLE_MAX_UPLOAD_BYTES", c.MaxUploadBytes, "a positive size such as 32MB")
	}
	if c.MaxPixels <= 0 {
		return ErrInvalidValue("STYLE_MAX_PIXELS", c.MaxPixels, "a positive pixel count such as 40000000")
	}
	if c.HistoryRetention < 0 {
		return ErrInvalidValue("STYLE_HISTORY_RETENTION", c.HistoryRetention, "a duration >= 0 such as 720h")
	}
	if c.ShutdownTimeout <= 0 {
		return ErrInvalidValue("STYLE_SHUTDOWN_TIMEOUT", c.ShutdownTimeout, "a positive duration such as 30s")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return ErrInvalidLogLevel(c.LogLevel)
	}
	return nil
}

// HistoryEnabled reports whether transfers are recorded to the database.
func (c *Config) HistoryEnabled() bool {
	return c.DBPath != ""
}
