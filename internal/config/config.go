package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers
const (
	StoreDriverBolt   = "bolt"
	StoreDriverSQLite = "sqlite"
)

// Trace exporters
const (
	TraceExporterNone   = "none"
	TraceExporterStdout = "stdout"
)

// Config holds all application configuration
type Config struct {
	// Store
	StoreDriver  string // bolt (default) or sqlite
	DatabaseFile string // $CONFIG_DIR/trackarr.db or trackarr.sqlite

	// Trakt
	TraktClientID       string
	TraktClientSecret   string
	TraktAPIURL         string
	TraktTokenFile      string // $CONFIG_DIR/token.json
	TraktImportUserID   uint64 // Owner of scheduled Trakt imports; 0 disables the job
	TraktImportSchedule string

	// Listennotes
	ListennotesAPIToken    string
	ListennotesURL         string
	PodcastRefreshSchedule string

	// Catalog
	CatalogCacheTTL time.Duration

	// Server
	ServerPort string

	// Logging
	LogLevel  string
	LogFormat string // text or json

	// Tracing
	TraceExporter    string // none (default) or stdout
	TraceSampleRatio float64
}

// Load loads configuration from environment variables, an optional .env file
// and any flags bound to the global viper instance
func Load() (*Config, error) {
	v := viper.GetViper()

	// Setup viper FIRST to load .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = v.ReadInConfig()

	return load(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("STORE_DRIVER", StoreDriverBolt)
	v.SetDefault("TRAKT_API_URL", "https://api.trakt.tv")
	v.SetDefault("TRAKT_IMPORT_SCHEDULE", "0 */6 * * *")
	v.SetDefault("LISTENNOTES_URL", "https://listen-api.listennotes.com/api/v2")
	v.SetDefault("PODCAST_REFRESH_SCHEDULE", "30 3 * * *")
	v.SetDefault("CATALOG_CACHE_TTL", "10m")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("TRACE_EXPORTER", TraceExporterNone)
	v.SetDefault("TRACE_SAMPLE_RATIO", 0.0)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	configDir, err := resolveConfigDir(v.GetString("CONFIG_DIR"))
	if err != nil {
		return nil, err
	}

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	driver := strings.ToLower(v.GetString("STORE_DRIVER"))
	var dbFile string
	switch driver {
	case StoreDriverBolt:
		dbFile = filepath.Join(configDir, "trackarr.db")
	case StoreDriverSQLite:
		dbFile = filepath.Join(configDir, "trackarr.sqlite")
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverBolt, StoreDriverSQLite, driver)
	}

	config := &Config{
		StoreDriver:  driver,
		DatabaseFile: dbFile,

		TraktClientID:       v.GetString("TRAKT_CLIENT_ID"),
		TraktClientSecret:   v.GetString("TRAKT_CLIENT_SECRET"),
		TraktAPIURL:         strings.TrimRight(v.GetString("TRAKT_API_URL"), "/"),
		TraktTokenFile:      filepath.Join(configDir, "token.json"),
		TraktImportUserID:   v.GetUint64("TRAKT_IMPORT_USER_ID"),
		TraktImportSchedule: v.GetString("TRAKT_IMPORT_SCHEDULE"),

		ListennotesAPIToken:    v.GetString("LISTENNOTES_API_TOKEN"),
		ListennotesURL:         strings.TrimRight(v.GetString("LISTENNOTES_URL"), "/"),
		PodcastRefreshSchedule: v.GetString("PODCAST_REFRESH_SCHEDULE"),

		CatalogCacheTTL: v.GetDuration("CATALOG_CACHE_TTL"),

		ServerPort: v.GetString("SERVER_PORT"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),

		TraceExporter:    strings.ToLower(v.GetString("TRACE_EXPORTER")),
		TraceSampleRatio: v.GetFloat64("TRACE_SAMPLE_RATIO"),
	}

	// Validate
	if config.CatalogCacheTTL <= 0 {
		return nil, fmt.Errorf("CATALOG_CACHE_TTL must be positive")
	}
	if config.TraceExporter != TraceExporterNone && config.TraceExporter != TraceExporterStdout {
		return nil, fmt.Errorf("unknown TRACE_EXPORTER %q", config.TraceExporter)
	}
	if config.TraceSampleRatio < 0 || config.TraceSampleRatio > 1 {
		return nil, fmt.Errorf("TRACE_SAMPLE_RATIO must be between 0 and 1")
	}
	if (config.TraktClientID == "") != (config.TraktClientSecret == "") {
		return nil, fmt.Errorf("TRAKT_CLIENT_ID and TRAKT_CLIENT_SECRET must be set together")
	}

	return config, nil
}

// TraktEnabled reports whether Trakt credentials are configured
func (c *Config) TraktEnabled() bool {
	return c.TraktClientID != "" && c.TraktClientSecret != ""
}

// ListennotesEnabled reports whether a Listennotes token is configured
func (c *Config) ListennotesEnabled() bool {
	return c.ListennotesAPIToken != ""
}

func resolveConfigDir(configDir string) (string, error) {
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", "trackarr"), nil
	}

	// Convert relative path to absolute path
	absPath, err := filepath.Abs(configDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
	}
	return absPath, nil
}
