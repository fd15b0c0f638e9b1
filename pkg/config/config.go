package config

import (
	"fmt"
	"os"
	"time"

	"github.com/centelha-ai/centelha/pkg/models"
	"gopkg.in/yaml.v3"
)

// Backend names accepted by the credential and offline sections.
const (
	BackendSQLite = "sqlite"
	BackendValkey = "valkey"
	BackendMemory = "memory"
)

// Config holds all Centelha configuration.
type Config struct {
	Listen     string             `yaml:"listen"`
	DBPath     string             `yaml:"db_path"`
	Generation GenerationConfig   `yaml:"generation"`
	Credential CredentialConfig   `yaml:"credential"`
	Offline    OfflineConfig      `yaml:"offline"`
	Valkey     ValkeyConfig       `yaml:"valkey"`
	Logging    LoggingConfig      `yaml:"logging"`
	Metrics    MetricsConfig      `yaml:"metrics"`
	Audit      models.AuditConfig `yaml:"audit"`
}

// GenerationConfig is the fixed model configuration of the generation client.
type GenerationConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	// UserTemplate overrides the user instruction template. Empty keeps the default.
	UserTemplate string `yaml:"user_template"`
}

// CredentialConfig selects where the API credential is persisted.
type CredentialConfig struct {
	Backend string `yaml:"backend"`
	Slot    string `yaml:"slot"`
}

// OfflineConfig controls the versioned offline cache.
type OfflineConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Version     string   `yaml:"version"`
	Origin      string   `yaml:"origin"`
	Manifest    []string `yaml:"manifest"`
	VaryHeaders []string `yaml:"vary_headers"`
	Backend     string   `yaml:"backend"`
}

// ValkeyConfig addresses the Valkey (Redis-compatible) server used by the
// valkey backends.
type ValkeyConfig struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
	CAFile   string `yaml:"ca_file"`
	Prefix   string `yaml:"prefix"`
}

// LoggingConfig shapes the zap logger.
type LoggingConfig struct {
	Mode  string `yaml:"mode"` // "production" or "development"
	Level string `yaml:"level"`
}

// MetricsConfig controls the Prometheus endpoint of the app server.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		DBPath: "centelha.db",
		Generation: GenerationConfig{
			BaseURL:     "https://api.groq.com/openai/v1/chat/completions",
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.8,
			MaxTokens:   1000,
			Timeout:     30 * time.Second,
		},
		Credential: CredentialConfig{
			Backend: BackendSQLite,
			Slot:    "groq_api_key",
		},
		Offline: OfflineConfig{
			Enabled: true,
			Version: "centelha-v3",
			Origin:  "http://localhost:3000/",
			Manifest: []string{
				"./",
				"./index.html",
				"./app.js",
				"./manifest.json",
				"./icon-192x192.png",
				"./icon-512x512.png",
			},
			Backend: BackendSQLite,
		},
		Valkey: ValkeyConfig{
			Prefix: "centelha:",
		},
		Logging: LoggingConfig{
			Mode:  "production",
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Audit: models.AuditConfig{
			Enabled:       true,
			DBPath:        "centelha-history.db",
			RetentionDays: 90,
			Include:       []string{"prompts"},
			MaxBodySize:   8192,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path when it is set, otherwise returns Default().
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Validate rejects settings the runtime cannot honor.
func (c *Config) Validate() error {
	if c.Generation.BaseURL == "" {
		return fmt.Errorf("config: generation.base_url is required")
	}
	if c.Generation.Model == "" {
		return fmt.Errorf("config: generation.model is required")
	}
	if c.Generation.MaxTokens <= 0 {
		return fmt.Errorf("config: generation.max_tokens must be positive, got %d", c.Generation.MaxTokens)
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("config: generation.temperature must be within [0, 2], got %v", c.Generation.Temperature)
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("config: generation.timeout must be positive")
	}
	if c.Credential.Slot == "" {
		return fmt.Errorf("config: credential.slot is required")
	}
	if err := checkBackend("credential.backend", c.Credential.Backend); err != nil {
		return err
	}
	if c.Offline.Enabled {
		if c.Offline.Version == "" {
			return fmt.Errorf("config: offline.version is required")
		}
		if err := checkBackend("offline.backend", c.Offline.Backend); err != nil {
			return err
		}
	}
	if (c.Credential.Backend == BackendValkey || (c.Offline.Enabled && c.Offline.Backend == BackendValkey)) && c.Valkey.Address == "" {
		return fmt.Errorf("config: valkey.address is required by the valkey backend")
	}
	return nil
}

func checkBackend(field, name string) error {
	switch name {
	case BackendSQLite, BackendValkey, BackendMemory:
		return nil
	default:
		return fmt.Errorf("config: %s: unsupported backend %q", field, name)
	}
}
