// Package config provides application settings loaded from the environment,
// .env files and an optional config file.
//
// Settings are created via New() which handles:
// - .env loading without overriding the real environment
// - Environment variable binding with fallbacks
// - Default value application and validation

package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	DefaultRelayURL       = "http://localhost:3000"
	DefaultLogLevel       = "info"
	DefaultMaxCommands    = 8
	DefaultCommandTimeout = 30 * time.Second

	maxCommandsLimit = 32
)

// ConfigFileEnv names the variable holding an optional config file path.
const ConfigFileEnv = "FASTCTX_CONFIG"

// Settings holds all application configuration.
type Settings struct {
	Relay   RelayConfig
	Search  SearchConfig
	Log     LogConfig
	Storage StorageConfig
}

// RelayConfig holds credential relay configuration.
type RelayConfig struct {
	URL         string
	AccessToken string
}

// SearchConfig holds search execution configuration.
type SearchConfig struct {
	MaxCommands    int
	MaxParallel    int
	CommandTimeout time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  zerolog.Level
	Pretty bool
}

// StorageConfig holds the local search log location. An empty path
// disables the log.
type StorageConfig struct {
	Path string
}

// envBindings maps setting keys to environment variables, first match wins.
var envBindings = map[string][]string{
	"relay.url":              {"RELAY_URL"},
	"relay.access_token":     {"ACCESS_TOKEN", "WINDSURF_API_KEY"},
	"log.level":              {"LOG_LEVEL"},
	"log.pretty":             {"FASTCTX_LOG_PRETTY"},
	"storage.path":           {"FASTCTX_DB"},
	"search.max_commands":    {"FASTCTX_MAX_COMMANDS"},
	"search.max_parallel":    {"FASTCTX_MAX_PARALLEL"},
	"search.command_timeout": {"FASTCTX_COMMAND_TIMEOUT"},
}

// dotEnvFiles are read in order; earlier files and the real environment win.
var dotEnvFiles = []string{".env", ".env.local"}

// New loads settings. configPath, or $FASTCTX_CONFIG when empty, names an
// optional YAML, TOML or JSON file whose keys match the setting keys
// (relay.url, search.max_commands, ...).
// Returns an error if a file cannot be read or a value is invalid.
func New(configPath string) (Settings, error) {
	if err := loadDotEnv(); err != nil {
		return Settings{}, err
	}

	v := viper.New()
	v.SetDefault("relay.url", DefaultRelayURL)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.pretty", false)
	v.SetDefault("storage.path", "")
	v.SetDefault("search.max_commands", DefaultMaxCommands)
	v.SetDefault("search.max_parallel", 0)
	v.SetDefault("search.command_timeout", DefaultCommandTimeout)

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return Settings{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if configPath == "" {
		configPath = os.Getenv(ConfigFileEnv)
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config file %s: %w", configPath, err)
		}
	}

	return fromViper(v)
}

// MustNew loads settings.
// Panics if a value is invalid. Use this only when configuration errors
// should be fatal.
func MustNew(configPath string) Settings {
	settings, err := New(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

func fromViper(v *viper.Viper) (Settings, error) {
	relayURL := strings.TrimSpace(v.GetString("relay.url"))
	if err := validateURL(relayURL); err != nil {
		return Settings{}, err
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(v.GetString("log.level"))))
	if err != nil {
		return Settings{}, fmt.Errorf("invalid value for log.level: %q", v.GetString("log.level"))
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	pretty, err := cast.ToBoolE(v.Get("log.pretty"))
	if err != nil {
		return Settings{}, invalid("log.pretty", v.Get("log.pretty"), err)
	}

	maxCommands, err := cast.ToIntE(v.Get("search.max_commands"))
	if err != nil {
		return Settings{}, invalid("search.max_commands", v.Get("search.max_commands"), err)
	}
	if maxCommands < 1 || maxCommands > maxCommandsLimit {
		return Settings{}, fmt.Errorf("search.max_commands must be between 1 and %d, got %d", maxCommandsLimit, maxCommands)
	}

	maxParallel, err := cast.ToIntE(v.Get("search.max_parallel"))
	if err != nil {
		return Settings{}, invalid("search.max_parallel", v.Get("search.max_parallel"), err)
	}
	if maxParallel < 0 {
		return Settings{}, fmt.Errorf("search.max_parallel must not be negative, got %d", maxParallel)
	}

	timeout, err := cast.ToDurationE(v.Get("search.command_timeout"))
	if err != nil {
		return Settings{}, invalid("search.command_timeout", v.Get("search.command_timeout"), err)
	}
	if timeout <= 0 {
		return Settings{}, fmt.Errorf("search.command_timeout must be positive, got %s", timeout)
	}

	return Settings{
		Relay: RelayConfig{
			URL:         relayURL,
			AccessToken: strings.TrimSpace(v.GetString("relay.access_token")),
		},
		Search: SearchConfig{
			MaxCommands:    maxCommands,
			MaxParallel:    maxParallel,
			CommandTimeout: timeout,
		},
		Log: LogConfig{
			Level:  level,
			Pretty: pretty,
		},
		Storage: StorageConfig{
			Path: strings.TrimSpace(v.GetString("storage.path")),
		},
	}, nil
}

func loadDotEnv() error {
	for _, name := range dotEnvFiles {
		values, err := godotenv.Read(name)
		if err != nil {
			continue
		}
		for k, val := range values {
			if _, exists := os.LookupEnv(k); !exists {
				if err := os.Setenv(k, val); err != nil {
					return fmt.Errorf("apply %s: %w", name, err)
				}
			}
		}
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid value for relay.url: %q", raw)
	}
	return nil
}

func invalid(key string, val any, err error) error {
	return fmt.Errorf("invalid value for %s: %q: %w", key, fmt.Sprint(val), err)
}
