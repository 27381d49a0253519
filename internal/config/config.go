// Package config loads Seen configuration from a YAML file with
// environment-variable overrides for secrets and deploy-time settings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Seen configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	Database     DatabaseConfig     `yaml:"database"`
	Gemini       GeminiConfig       `yaml:"gemini"`
	Context      ContextConfig      `yaml:"context"`
	Verification VerificationConfig `yaml:"verification"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// GeminiConfig configures the generative-AI provider client.
type GeminiConfig struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	Model           string `yaml:"model"`
	Timeout         string `yaml:"timeout"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	EnableWebSearch bool   `yaml:"enable_web_search"`
}

// ContextConfig configures the weather/astronomy/geocode providers.
type ContextConfig struct {
	SunBaseURL     string `yaml:"sun_base_url"`
	WeatherBaseURL string `yaml:"weather_base_url"`
	WeatherAPIKey  string `yaml:"weather_api_key"`
	GeocodeBaseURL string `yaml:"geocode_base_url"`
	Timeout        string `yaml:"timeout"`
}

// VerificationConfig tunes the verification pipeline.
type VerificationConfig struct {
	BatchLimit   int    `yaml:"batch_limit"`
	PollInterval string `yaml:"poll_interval"`
	PollTimeout  string `yaml:"poll_timeout"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		Database: DatabaseConfig{
			Path: "seen.db",
		},
		Gemini: GeminiConfig{
			BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
			Model:           "gemini-2.5-flash",
			Timeout:         "2m",
			MaxOutputTokens: 8192,
			EnableWebSearch: true,
		},
		Context: ContextConfig{
			SunBaseURL:     "https://api.sunrise-sunset.org",
			WeatherBaseURL: "https://api.openweathermap.org",
			GeocodeBaseURL: "https://nominatim.openstreetmap.org",
			Timeout:        "10s",
		},
		Verification: VerificationConfig{
			BatchLimit:   10,
			PollInterval: "1s",
			PollTimeout:  "30s",
		},
	}
}

// Load reads configuration from path, falling back to defaults when the file
// does not exist, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// ApplyEnvOverrides lets the environment win over file values. Secrets are
// expected to arrive this way in deployment.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SEEN_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("SEEN_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("SEEN_GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.Gemini.APIKey == "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("SEEN_GEMINI_MODEL"); v != "" {
		c.Gemini.Model = v
	}
	if v := os.Getenv("SEEN_OPENWEATHER_API_KEY"); v != "" {
		c.Context.WeatherAPIKey = v
	}
}

// ParseDuration parses a duration string, returning fallback on empty or
// invalid input.
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
