package config

import (
	"log/slog"
	"path/filepath"
	"strings"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Store   StoreConfig
	Stats   StatsConfig
	Log     LogConfig
	API     APIConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

// StoreConfig locates the JSON fallback documents. Empty paths resolve
// inside Storage.DataDir.
type StoreConfig struct {
	HouseholdPath   string
	ContactsPath    string
	SerializeWrites bool
}

type StatsConfig struct {
	WindowDays int
}

type LogConfig struct {
	Level string
}

type APIConfig struct {
	Token string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Store: StoreConfig{
			SerializeWrites: true,
		},
		Stats: StatsConfig{
			WindowDays: 30,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// HouseholdPath returns the household document path.
func (c Config) HouseholdPath() string {
	if c.Store.HouseholdPath != "" {
		return c.Store.HouseholdPath
	}
	return filepath.Join(c.Storage.DataDir, "household-store.json")
}

// ContactsPath returns the contacts document path.
func (c Config) ContactsPath() string {
	if c.Store.ContactsPath != "" {
		return c.Store.ContactsPath
	}
	return filepath.Join(c.Storage.DataDir, "human-contact-store.json")
}

// SlogLevel maps Log.Level to a slog level. Unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.dais.app) and the API
// token falls back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/dais/config.json
// and the token falls back to $XDG_DATA_HOME/dais/secrets.json.
//
// Environment variables (DAIS_*) override backend values on all platforms.
// An empty API token disables authentication.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.API.Token == "" {
		if token, err := kc.Get("dais", "api_token"); err == nil && token != "" {
			cfg.API.Token = token
		}
	}

	return cfg, nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
