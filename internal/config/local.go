package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/c1advanced/c1prep/internal/api"
	"gopkg.in/yaml.v3"
)

// Config is the client configuration read from ~/.c1prep/config.yaml.
type Config struct {
	API        APIConfig        `yaml:"api"`
	Practice   PracticeConfig   `yaml:"practice"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Events     EventsConfig     `yaml:"events"`
	LogLevel   string           `yaml:"log_level" validate:"omitempty,log_level"`
}

// APIConfig holds practice server settings.
type APIConfig struct {
	BaseURL        string `yaml:"base_url" validate:"required,url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gte=1,lte=600"`
}

// PracticeConfig holds session defaults.
type PracticeConfig struct {
	Level            string `yaml:"level" validate:"required,cefr_level"`
	OfflinePackSize  int    `yaml:"offline_pack_size" validate:"gte=1,lte=50"`
	OfflinePackType  string `yaml:"offline_pack_type" validate:"required"`
	ForceOffline     bool   `yaml:"force_offline"`
	MinEssayWords    int    `yaml:"min_essay_words" validate:"gte=0"`
	MinResponseChars int    `yaml:"min_response_chars" validate:"gte=0"`
}

// ResilienceConfig toggles the fortify patterns around API calls.
type ResilienceConfig struct {
	CircuitBreaker bool `yaml:"circuit_breaker"`
	Bulkhead       bool `yaml:"bulkhead"`
	RateLimit      bool `yaml:"rate_limit"`
	Retry          bool `yaml:"retry"`
	MaxConcurrent  int  `yaml:"max_concurrent" validate:"gte=0"`
	RatePerSecond  int  `yaml:"rate_per_second" validate:"gte=0"`
}

// EventsConfig configures result event publishing. An empty URL disables it.
type EventsConfig struct {
	AMQPURL string `yaml:"amqp_url" validate:"omitempty,url"`
}

// Secrets holds the identity tokens stored in secrets.yaml.
type Secrets struct {
	IDToken      string `yaml:"id_token"`
	RefreshToken string `yaml:"refresh_token,omitempty"`
	Email        string `yaml:"email,omitempty"`
}

// Dir returns the path to ~/.c1prep.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".c1prep"), nil
}

// EnsureDir creates ~/.c1prep and its subdirectories.
func EnsureDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}

	for _, subdir := range []string{"", "logs", "cache", "audio", "exports"} {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}
	return dir, nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        api.DefaultBaseURL,
			TimeoutSeconds: 60,
		},
		Practice: PracticeConfig{
			Level:            "C1",
			OfflinePackSize:  5,
			OfflinePackType:  "reading_and_use_of_language1",
			MinEssayWords:    220,
			MinResponseChars: 10,
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: true,
			Bulkhead:       true,
			RateLimit:      true,
			MaxConcurrent:  4,
			RatePerSecond:  5,
		},
		LogLevel: "info",
	}
}

// Load reads ~/.c1prep/config.yaml, then applies .env and environment
// overrides, then validates the result.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		return nil, err
	}
	LoadDotEnv()
	ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFile reads a config file over the defaults. A missing file yields
// the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to ~/.c1prep/config.yaml.
func Save(cfg *Config) error {
	dir, err := EnsureDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SecretsPath returns the path to ~/.c1prep/secrets.yaml.
func SecretsPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "secrets.yaml"), nil
}

// LoadSecrets reads secrets.yaml. A missing file yields empty secrets.
func LoadSecrets() (*Secrets, error) {
	path, err := SecretsPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Secrets{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read secrets: %w", err)
	}

	var s Secrets
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse secrets: %w", err)
	}
	return &s, nil
}

// SaveSecrets writes secrets.yaml readable by the owner only.
func SaveSecrets(s *Secrets) error {
	dir, err := EnsureDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), data, 0600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}
	return nil
}

// ClearSecrets removes secrets.yaml.
func ClearSecrets() error {
	path, err := SecretsPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove secrets: %w", err)
	}
	return nil
}
