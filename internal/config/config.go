package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultDir      = ".parley"
	defaultFileName = "parley.db"
)

// ProviderKeys holds backend credentials. Values from the config file are
// overridden by the corresponding environment variables.
type ProviderKeys struct {
	DeepSeek   string `yaml:"deepseek"`
	ByteDance  string `yaml:"bytedance"`
	OpenRouter string `yaml:"openrouter"`
}

type Config struct {
	StoragePath   string       `yaml:"storage_path"`
	DefaultModel  string       `yaml:"default_model"`
	StreamDelayMS int          `yaml:"stream_delay_ms"`
	RetrievalTopK int          `yaml:"retrieval_top_k"`
	Keys          ProviderKeys `yaml:"keys"`
}

// StreamDelay is the optional pacing delay between forwarded fragments. It
// exists for incremental rendering only and has no bearing on persistence.
func (c *Config) StreamDelay() time.Duration {
	if c.StreamDelayMS <= 0 {
		return 0
	}
	return time.Duration(c.StreamDelayMS) * time.Millisecond
}

func Default() *Config {
	cfg := &Config{
		RetrievalTopK: 4,
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads the config file at path. A missing file is not an error, the
// defaults are returned.
func Load(path string) (*Config, error) {
	cfg := &Config{RetrievalTopK: 4}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.StoragePath == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			c.StoragePath = filepath.Join(homeDir, defaultDir, defaultFileName)
		} else {
			c.StoragePath = filepath.Join(defaultDir, defaultFileName)
		}
	}
	if c.RetrievalTopK < 0 {
		c.RetrievalTopK = 0
	}

	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
		c.Keys.DeepSeek = key
	}
	if key := os.Getenv("BYTE_DANCE_API_KEY"); key != "" {
		c.Keys.ByteDance = key
	}
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		c.Keys.OpenRouter = key
	}
}
