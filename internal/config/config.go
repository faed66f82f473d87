// Package config loads and validates the dacroq YAML configuration.
// It applies defaults so the daemon can rely on fully populated values,
// then layers environment overrides on top (a .env file is honored when
// present, matching how the bench machines are provisioned).
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

// StoreConfig selects and configures the allow-list store backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	Path   string `yaml:"path"`   // sqlite file path
	DSN    string `yaml:"dsn"`    // postgres connection string
}

// GoogleConfig holds the OAuth client credentials.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// SessionConfig holds session cookie settings.
type SessionConfig struct {
	TTLHours int `yaml:"ttl_hours"`
}

// SolverConfig points at the remote solver hardware API.
type SolverConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	PollSeconds    int    `yaml:"poll_seconds"`
}

// DemoConfig controls the sponsor-demo login.
type DemoConfig struct {
	Enable bool `yaml:"enable"`
}

// Config mirrors the dacroq.yaml schema.
type Config struct {
	Log         LogConfig     `yaml:"log"`
	HTTP        HTTPConfig    `yaml:"http"`
	BaseURL     string        `yaml:"base_url"`
	Environment string        `yaml:"environment"` // production or development
	Store       StoreConfig   `yaml:"store"`
	Google      GoogleConfig  `yaml:"google"`
	Session     SessionConfig `yaml:"session"`
	Solver      SolverConfig  `yaml:"solver"`
	Demo        DemoConfig    `yaml:"demo"`
}

// Production reports whether the daemon runs with production policies
// (Secure cookies, forwarded-proto enforcement).
func (c Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// SessionTTL returns the configured session lifetime.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLHours) * time.Hour
}

// SolverTimeout returns the per-request solver API timeout.
func (c Config) SolverTimeout() time.Duration {
	return time.Duration(c.Solver.TimeoutSeconds) * time.Second
}

// PollInterval returns the queue-status poll interval.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Solver.PollSeconds) * time.Second
}

// Load reads a YAML config file, applies defaults, applies environment
// overrides, and validates the result. An empty path loads defaults and
// environment only.
func Load(path string) (Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, err
		}
	}
	applyDefaults(&c)
	applyEnv(&c)
	if err := validate(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// applyDefaults populates zero-values with sane defaults.
func applyDefaults(c *Config) {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.HTTP.Bind == "" {
		c.HTTP.Bind = "127.0.0.1"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 5170
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://127.0.0.1:5170"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		c.Store.Path = "./data/dacroq.db"
	}
	if c.Session.TTLHours == 0 {
		c.Session.TTLHours = 168 // 7 days
	}
	if c.Solver.BaseURL == "" {
		c.Solver.BaseURL = "https://dacroq.eecs.umich.edu"
	}
	if c.Solver.TimeoutSeconds == 0 {
		c.Solver.TimeoutSeconds = 20
	}
	if c.Solver.PollSeconds == 0 {
		c.Solver.PollSeconds = 5
	}
}

// applyEnv layers process environment over the file. A .env in the working
// directory is merged first without clobbering already-set variables.
func applyEnv(c *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("DACROQ_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("DACROQ_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("DACROQ_GOOGLE_CLIENT_ID"); v != "" {
		c.Google.ClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		c.Google.ClientSecret = v
	}
	if v := os.Getenv("DACROQ_SOLVER_URL"); v != "" {
		c.Solver.BaseURL = v
	}
	if v := os.Getenv("DACROQ_STORE_DSN"); v != "" {
		c.Store.Driver = "postgres"
		c.Store.DSN = v
	}
}

// validate performs basic sanity checks for required fields and ranges.
func validate(c *Config) error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port is invalid")
	}
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	switch c.Store.Driver {
	case "sqlite":
		if strings.TrimSpace(c.Store.Path) == "" {
			return errors.New("store.path is required for sqlite")
		}
	case "postgres":
		if strings.TrimSpace(c.Store.DSN) == "" {
			return errors.New("store.dsn is required for postgres")
		}
	default:
		return errors.New("store.driver must be sqlite or postgres")
	}
	if c.Session.TTLHours < 1 || c.Session.TTLHours > 24*90 {
		return errors.New("session.ttl_hours is invalid")
	}
	c.Solver.BaseURL = strings.TrimRight(strings.TrimSpace(c.Solver.BaseURL), "/")
	if c.Solver.BaseURL == "" {
		return errors.New("solver.base_url is required")
	}
	if c.Solver.TimeoutSeconds < 1 || c.Solver.TimeoutSeconds > 300 {
		return errors.New("solver.timeout_seconds is invalid")
	}
	if c.Solver.PollSeconds < 1 || c.Solver.PollSeconds > 3600 {
		return errors.New("solver.poll_seconds is invalid")
	}
	return nil
}
