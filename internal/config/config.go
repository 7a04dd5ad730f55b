// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Storage StorageConfig
	Catalog CatalogConfig
	Sync    SyncConfig
	Server  ServerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig holds download directory and registry database locations.
type StorageConfig struct {
	// DownloadPath is the root of the mirrored download tree.
	DownloadPath string
	// DatabasePath is the registry SQLite file (default: {download}/pixvault.db).
	DatabasePath string
}

// CatalogConfig holds remote catalog API configuration.
type CatalogConfig struct {
	// RefreshToken is the long-lived credential exchanged for a session.
	// Treated as opaque; acquisition is out of scope.
	RefreshToken string
	// TokenFile is read as a fallback when RefreshToken is unset
	// (default: {download}/refresh_token.txt).
	TokenFile string
	// Restrict selects the bookmark visibility partition: public, private, or both.
	Restrict string
	// MaxPages caps enumeration per restrict mode; 0 means unlimited.
	MaxPages int
	// BaseURL and AuthURL override the catalog endpoints (used in tests).
	BaseURL string
	AuthURL string
}

// SyncConfig holds sync engine configuration.
type SyncConfig struct {
	// Interval between scheduled cycles; 0 disables the interval timer.
	Interval time.Duration
	// Concurrency is the download worker pool size (1..16).
	Concurrency int
	// AutoStart enqueues a cycle when the engine starts.
	AutoStart bool
}

// ServerConfig holds the JSON API server configuration.
type ServerConfig struct {
	Enabled      bool
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// RestrictModes expands the configured restrict setting into the list
// of partitions to enumerate.
func (c CatalogConfig) RestrictModes() []string {
	if c.Restrict == "both" {
		return []string{"public", "private"}
	}
	return []string{c.Restrict}
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	downloadPath := flag.String("download-path", "", "Root of the download tree")
	databasePath := flag.String("database-path", "", "Registry database file")
	refreshToken := flag.String("refresh-token", "", "Catalog refresh token")
	tokenFile := flag.String("token-file", "", "File holding the refresh token")
	restrict := flag.String("restrict", "", "Bookmark visibility: public, private, or both")
	maxPages := flag.String("max-pages", "", "Max bookmark pages per restrict mode (0 = unlimited)")
	syncInterval := flag.String("sync-interval", "", "Interval between scheduled sync cycles (0 = disabled)")
	concurrency := flag.String("concurrency", "", "Download worker count (default: 4)")
	autoStart := flag.String("auto-sync", "", "Run a sync cycle on startup (default: true)")

	serverEnabled := flag.String("server-enabled", "", "Serve the JSON API (default: true)")
	serverHost := flag.String("host", "", "API listen host (default: 0.0.0.0)")
	serverPort := flag.String("port", "", "API listen port (default: 8081)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			DownloadPath: getConfigValue(*downloadPath, "DOWNLOAD_PATH", ""),
			DatabasePath: getConfigValue(*databasePath, "DATABASE_PATH", ""),
		},
		Catalog: CatalogConfig{
			RefreshToken: getConfigValue(*refreshToken, "CATALOG_REFRESH_TOKEN", ""),
			TokenFile:    getConfigValue(*tokenFile, "CATALOG_TOKEN_FILE", ""),
			Restrict:     strings.ToLower(getConfigValue(*restrict, "CATALOG_RESTRICT", "public")),
			MaxPages:     getIntConfigValue(*maxPages, "CATALOG_MAX_PAGES", 0),
			BaseURL:      getConfigValue("", "CATALOG_BASE_URL", ""),
			AuthURL:      getConfigValue("", "CATALOG_AUTH_URL", ""),
		},
		Sync: SyncConfig{
			Concurrency: getIntConfigValue(*concurrency, "SYNC_CONCURRENCY", 4),
			AutoStart:   getBoolConfigValue(*autoStart, "SYNC_AUTO_START", true),
		},
		Server: ServerConfig{
			Enabled: getBoolConfigValue(*serverEnabled, "SERVER_ENABLED", true),
			Host:    getConfigValue(*serverHost, "SERVER_HOST", "0.0.0.0"),
			Port:    getConfigValue(*serverPort, "SERVER_PORT", "8081"),
		},
	}

	// Parse durations.
	intervalStr := getConfigValue(*syncInterval, "SYNC_INTERVAL", "0")
	interval, err := parseIntervalValue(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid sync interval %q: %w", intervalStr, err)
	}
	cfg.Sync.Interval = interval

	for _, d := range []struct {
		dst  *time.Duration
		flag string
		env  string
		def  string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
	} {
		raw := getConfigValue(d.flag, d.env, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", strings.ToLower(d.env), raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	// Fall back to the token file when no token came from flag/env.
	if cfg.Catalog.RefreshToken == "" {
		cfg.Catalog.RefreshToken = readTokenFile(cfg.Catalog.TokenFile)
	}
	cfg.Catalog.RefreshToken = strings.TrimSpace(cfg.Catalog.RefreshToken)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Catalog.Restrict {
	case "public", "private", "both":
	default:
		return fmt.Errorf("invalid restrict mode: %s (must be public, private, or both)", c.Catalog.Restrict)
	}

	if c.Catalog.MaxPages < 0 {
		return errors.New("max pages cannot be negative")
	}
	if c.Sync.Interval < 0 {
		return errors.New("sync interval cannot be negative")
	}
	if c.Sync.Concurrency < 1 || c.Sync.Concurrency > 16 {
		return fmt.Errorf("concurrency must be between 1 and 16, got %d", c.Sync.Concurrency)
	}

	if c.Storage.DownloadPath == "" {
		return errors.New("download path cannot be empty after expansion")
	}
	if c.Storage.DatabasePath == "" {
		return errors.New("database path cannot be empty after expansion")
	}

	return nil
}

// expandPaths expands ~ in all paths, makes them absolute, and fills
// the download-relative defaults.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	downloadDefault := filepath.Join(homeDir, "PixVault", "downloads")
	expanded, err := expandPath(c.Storage.DownloadPath, downloadDefault)
	if err != nil {
		return fmt.Errorf("invalid download path: %w", err)
	}
	c.Storage.DownloadPath = expanded

	expanded, err = expandPath(c.Storage.DatabasePath, filepath.Join(c.Storage.DownloadPath, "pixvault.db"))
	if err != nil {
		return fmt.Errorf("invalid database path: %w", err)
	}
	c.Storage.DatabasePath = expanded

	expanded, err = expandPath(c.Catalog.TokenFile, filepath.Join(c.Storage.DownloadPath, "refresh_token.txt"))
	if err != nil {
		return fmt.Errorf("invalid token file path: %w", err)
	}
	c.Catalog.TokenFile = expanded

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// parseIntervalValue accepts either a duration string ("30m") or a
// bare number of seconds ("1800"), the latter for compatibility with
// older deployments.
func parseIntervalValue(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	var seconds int
	if _, err := fmt.Sscanf(raw, "%d", &seconds); err != nil {
		return 0, fmt.Errorf("not a duration or whole seconds: %s", raw)
	}
	return time.Duration(seconds) * time.Second, nil
}

// readTokenFile returns the trimmed token file contents, or "" if the
// file is absent or unreadable.
func readTokenFile(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path) //#nosec G304 -- Token file path from user config is expected
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Env vars take precedence over .env file values.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
