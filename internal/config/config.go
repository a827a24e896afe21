package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	configDirName  = ".genealogy-enrich"
	configFileName = "config.json"

	// DatabaseTypeEmbedded selects the SQLite-backed store.
	DatabaseTypeEmbedded = "embedded"
	// DatabaseTypeNetworked selects the PostgreSQL-backed store.
	DatabaseTypeNetworked = "networked"

	defaultSQLitePath = "genealogy-enrich.db"
	defaultDBHost     = "localhost"
	defaultDBPort     = 5432
	defaultDebugHost  = "localhost"
	defaultDebugPort  = 9222
)

// Database holds the settings needed to reach either backend implementation.
type Database struct {
	Type       string `json:"type"`
	SQLitePath string `json:"sqlite_path,omitempty"`
	Host       string `json:"host,omitempty"`
	Port       int    `json:"port,omitempty"`
	Name       string `json:"database,omitempty"`
	User       string `json:"user,omitempty"`
	Password   string `json:"password,omitempty"`
}

// API holds the roster client's endpoint and credential.
type API struct {
	Endpoint string `json:"endpoint"`
	Key      string `json:"key"`
}

// Chrome holds the externally-running browser's debug protocol address.
type Chrome struct {
	DebugHost string `json:"debug_host"`
	DebugPort int    `json:"debug_port"`
}

// Config is the single JSON document loaded from the per-user config path.
type Config struct {
	Database Database `json:"database"`
	API      API      `json:"api"`
	Chrome   Chrome   `json:"chrome"`
}

// Default returns the built-in configuration used when no file is present
// or a key is missing from it.
func Default() Config {
	return Config{
		Database: Database{
			Type:       DatabaseTypeEmbedded,
			SQLitePath: defaultSQLitePath,
			Host:       defaultDBHost,
			Port:       defaultDBPort,
		},
		Chrome: Chrome{
			DebugHost: defaultDebugHost,
			DebugPort: defaultDebugPort,
		},
	}
}

// Path returns the well-known per-user config file path (~/.genealogy-enrich/config.json).
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(home, configDirName, configFileName), nil
}

// Load reads the config file at Path(), deep-merging it over Default().
// A missing file is not an error. A malformed file logs a warning and
// falls back to defaults untouched.
func Load(logger *slog.Logger) Config {
	cfg := Default()

	path, err := Path()
	if err != nil {
		logger.Warn("could not resolve config path, using defaults", slog.String("error", err.Error()))

		return cfg
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("could not read config file, using defaults",
				slog.String("path", path), slog.String("error", err.Error()))
		}

		return cfg
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		logger.Warn("config file is malformed, using defaults",
			slog.String("path", path), slog.String("error", err.Error()))

		return cfg
	}

	deepMerge(&cfg, loaded)

	return cfg
}

// deepMerge overlays non-zero fields of src onto dst, field by field.
// Mirrors the original Python implementation's dict-merge semantics: a
// present key always wins, an absent/zero key never clobbers the default.
func deepMerge(dst *Config, src Config) {
	if src.Database.Type != "" {
		dst.Database.Type = src.Database.Type
	}

	if src.Database.SQLitePath != "" {
		dst.Database.SQLitePath = src.Database.SQLitePath
	}

	if src.Database.Host != "" {
		dst.Database.Host = src.Database.Host
	}

	if src.Database.Port != 0 {
		dst.Database.Port = src.Database.Port
	}

	if src.Database.Name != "" {
		dst.Database.Name = src.Database.Name
	}

	if src.Database.User != "" {
		dst.Database.User = src.Database.User
	}

	if src.Database.Password != "" {
		dst.Database.Password = src.Database.Password
	}

	if src.API.Endpoint != "" {
		dst.API.Endpoint = src.API.Endpoint
	}

	if src.API.Key != "" {
		dst.API.Key = src.API.Key
	}

	if src.Chrome.DebugHost != "" {
		dst.Chrome.DebugHost = src.Chrome.DebugHost
	}

	if src.Chrome.DebugPort != 0 {
		dst.Chrome.DebugPort = src.Chrome.DebugPort
	}
}

// WriteExample writes a fully-populated example config document to path,
// creating parent directories as needed. Supplements the CLI's --init-config flag.
func WriteExample(path string) error {
	example := Default()
	example.API.Endpoint = "https://roster.example.com/graphql"
	example.API.Key = "replace-with-your-roster-api-key"

	data, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal example config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write example config: %w", err)
	}

	return nil
}
