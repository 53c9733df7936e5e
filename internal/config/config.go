package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all engram process configuration. Tunable pipeline settings
// (thresholds, chunk strategy) live in the store's settings table instead,
// so they can change without a restart.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	LLM      LLMConfig      `toml:"llm"`
	Workers  WorkersConfig  `toml:"workers"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LLMConfig struct {
	Provider       string  `toml:"provider"` // "anthropic", "ollama"
	Model          string  `toml:"model"`
	OllamaURL      string  `toml:"ollama_url"`
	OllamaModel    string  `toml:"ollama_model"`
	EmbeddingModel string  `toml:"embedding_model"` // e.g. "nomic-embed-text"
	AnthropicKey   string  `toml:"anthropic_key"`
	RatePerSecond  float64 `toml:"rate_per_second"` // shared per provider credential
}

type WorkersConfig struct {
	PollIntervalMS int `toml:"poll_interval_ms"`
	EmbedParallel  int `toml:"embed_parallel"` // concurrent embeds per batch
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 38800,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		LLM: LLMConfig{
			Provider:      "anthropic",
			RatePerSecond: 2,
		},
		Workers: WorkersConfig{
			PollIntervalMS: 1000,
			EmbedParallel:  4,
		},
	}
}

// DefaultPath returns the default config file path: ~/.engram/config.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".engram", "config.toml"), nil
}

// Load reads a TOML config file over the defaults. A missing file is not
// an error — defaults apply. Environment variables override secrets.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.LLM.AnthropicKey = key
		if cfg.LLM.Provider == "" {
			cfg.LLM.Provider = "anthropic"
		}
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
