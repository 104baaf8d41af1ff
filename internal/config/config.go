// Package config loads gateway configuration.
//
// Sources, highest priority first:
//  1. explicit path (--config);
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. environment only.
//
// A .env file in the working directory is loaded into the environment first and
// never overrides variables that are already set. Environment variables always
// overlay values read from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Games sources accepted by STEAM_GAMES_SOURCE.
const (
	GamesSourceScrape = "scrape"
	GamesSourceAPI    = "api"
)

type Config struct {
	Env       string `yaml:"env"        env:"ENV"                  env-default:"development"`
	Host      string `yaml:"host"       env:"HOST"`
	Port      string `yaml:"port"       env:"PORT"                 env-default:"8080"`
	LogLevel  string `yaml:"log_level"  env:"LOG_LEVEL"            env-default:"info"`
	ProjectID string `yaml:"project_id" env:"GOOGLE_CLOUD_PROJECT"`
	PublicDir string `yaml:"public_dir" env:"PUBLIC_DIR"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`

	Steam SteamConfig `yaml:"steam"`
	OTel  OTelConfig  `yaml:"otel"`
}

// SteamConfig configures upstream access to Steam.
type SteamConfig struct {
	APIKey      string        `yaml:"api_key"      env:"STEAM_API_KEY"      env-required:"true"`
	BaseURL     string        `yaml:"base_url"     env:"STEAM_API_BASE_URL" env-default:"https://api.steampowered.com"`
	Timeout     time.Duration `yaml:"timeout"      env:"STEAM_TIMEOUT"      env-default:"10s"`
	GamesSource string        `yaml:"games_source" env:"STEAM_GAMES_SOURCE" env-default:"scrape"`
	FanoutLimit int           `yaml:"fanout_limit" env:"FANOUT_LIMIT"       env-default:"8"`
}

// OTelConfig enables trace export when Endpoint is set.
type OTelConfig struct {
	Endpoint    string  `yaml:"endpoint"     env:"OTEL_ENDPOINT"`
	ServiceName string  `yaml:"service_name" env:"OTEL_SERVICE_NAME" env-default:"steam-gateway"`
	SampleRatio float64 `yaml:"sample_ratio" env:"OTEL_SAMPLE_RATIO" env-default:"1"`
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string { return net.JoinHostPort(c.Host, c.Port) }

// IsProduction reports whether the gateway runs in production mode.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// MustLoad panics when configuration cannot be loaded.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func read(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		return &cfg, nil
	}

	if path != "" {
		return tryRead(path)
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}
	return &cfg, nil
}

// Validate rejects configurations the gateway cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Steam.APIKey == "" {
		errs = append(errs, errors.New("STEAM_API_KEY is required"))
	}
	if c.Steam.BaseURL == "" {
		errs = append(errs, errors.New("STEAM_API_BASE_URL must not be empty"))
	}
	if c.Steam.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("STEAM_TIMEOUT must be positive, got %s", c.Steam.Timeout))
	}
	if c.Steam.FanoutLimit < 1 {
		errs = append(errs, fmt.Errorf("FANOUT_LIMIT must be at least 1, got %d", c.Steam.FanoutLimit))
	}
	switch c.Steam.GamesSource {
	case GamesSourceScrape, GamesSourceAPI:
	default:
		errs = append(errs, fmt.Errorf("STEAM_GAMES_SOURCE must be %q or %q, got %q",
			GamesSourceScrape, GamesSourceAPI, c.Steam.GamesSource))
	}
	if c.OTel.SampleRatio < 0 || c.OTel.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATIO must be within [0, 1], got %v", c.OTel.SampleRatio))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
