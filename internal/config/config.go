package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file used when --config is not given.
const DefaultPath = "tasknerd.yaml"

// Config holds all tasknerd configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Task store
	Store StoreConfig `yaml:"store"`

	// Conversation context lifecycle
	Session SessionConfig `yaml:"session"`

	// Resolver / planner / executor tuning
	Interpreter InterpreterConfig `yaml:"interpreter"`

	// Reply synthesis
	Articulation ArticulationConfig `yaml:"articulation"`

	// HTTP + websocket transport
	Server ServerConfig `yaml:"server"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig configures the SQLite task store.
type StoreConfig struct {
	Driver       string `yaml:"driver"` // sqlite (pure Go), sqlite3 (cgo)
	Path         string `yaml:"path"`
	DefaultUser  string `yaml:"default_user"`
	DefaultEmail string `yaml:"default_email"`
}

// SessionConfig configures the context tracker.
type SessionConfig struct {
	TTL           string `yaml:"ttl"`
	SweepInterval string `yaml:"sweep_interval"`
	RecordTurns   bool   `yaml:"record_turns"`
}

// InterpreterConfig holds the resolution thresholds and execution knobs.
type InterpreterConfig struct {
	Timezone           string  `yaml:"timezone"`
	FuzzyMinDistance   int     `yaml:"fuzzy_min_distance"`
	FuzzyDistanceRatio float64 `yaml:"fuzzy_distance_ratio"`
	SampleSize         int     `yaml:"sample_size"`
	ListLimit          int     `yaml:"list_limit"`
	FastPaths          bool    `yaml:"fast_paths"`
}

// ArticulationConfig configures the response synthesizer.
type ArticulationConfig struct {
	Rephrase bool `yaml:"rephrase"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	Mode            string `yaml:"mode"` // gin mode: release, debug, test
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "tasknerd",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			BaseURL:     "https://api.openai.com/v1",
			Timeout:     "30s",
			Temperature: 0.1,
		},

		Store: StoreConfig{
			Driver:       "sqlite",
			Path:         "data/tasknerd.db",
			DefaultUser:  "default",
			DefaultEmail: "default@localhost",
		},

		Session: SessionConfig{
			TTL:           "30m",
			SweepInterval: "1m",
			RecordTurns:   true,
		},

		Interpreter: InterpreterConfig{
			Timezone:           "UTC",
			FuzzyMinDistance:   1,
			FuzzyDistanceRatio: 0.25,
			SampleSize:         5,
			ListLimit:          50,
			FastPaths:          true,
		},

		Server: ServerConfig{
			Addr:            ":8000",
			Mode:            "release",
			ShutdownTimeout: "10s",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults; env overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// LLM API key from environment (later keys win)
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "openai"
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
	if p := os.Getenv("TASKNERD_LLM_PROVIDER"); p != "" {
		c.LLM.Provider = p
	}
	if m := os.Getenv("TASKNERD_LLM_MODEL"); m != "" {
		c.LLM.Model = m
	}

	if path := os.Getenv("TASKNERD_DB"); path != "" {
		c.Store.Path = path
	}
	if addr := os.Getenv("TASKNERD_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if tz := os.Getenv("TASKNERD_TZ"); tz != "" {
		c.Interpreter.Timezone = tz
	}
	if v := os.Getenv("TASKNERD_FAST_PATHS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Interpreter.FastPaths = b
		}
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 30*time.Second)
}

// GetSessionTTL returns the idle session TTL as a duration.
func (c *Config) GetSessionTTL() time.Duration {
	return parseDuration(c.Session.TTL, 30*time.Minute)
}

// GetSweepInterval returns how often idle sessions are swept.
func (c *Config) GetSweepInterval() time.Duration {
	return parseDuration(c.Session.SweepInterval, time.Minute)
}

// GetShutdownTimeout returns the HTTP drain timeout.
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

// Location returns the pinned timezone for date resolution.
func (c *Config) Location() (*time.Location, error) {
	if c.Interpreter.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Interpreter.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Interpreter.Timezone, err)
	}
	return loc, nil
}

// ValidDrivers lists the supported SQLite drivers.
var ValidDrivers = []string{"sqlite", "sqlite3"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	return c.ValidateOffline()
}

// ValidateOffline validates everything except the model credentials, for
// runs that only use the built-in command phrases.
func (c *Config) ValidateOffline() error {
	if !contains(ValidDrivers, c.Store.Driver) {
		return fmt.Errorf("invalid store driver: %s (valid: %v)", c.Store.Driver, ValidDrivers)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store path not configured")
	}

	if c.Interpreter.FuzzyMinDistance < 0 {
		return fmt.Errorf("interpreter.fuzzy_min_distance must be >= 0")
	}
	if c.Interpreter.FuzzyDistanceRatio < 0 || c.Interpreter.FuzzyDistanceRatio > 1 {
		return fmt.Errorf("interpreter.fuzzy_distance_ratio must be within [0, 1]")
	}
	if c.Interpreter.SampleSize < 1 {
		return fmt.Errorf("interpreter.sample_size must be >= 1")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	return c.Logging.Validate()
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
