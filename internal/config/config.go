package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type ModelsConfig struct {
	Chat    string `toml:"chat"`
	Summary string `toml:"summary"`
	// ContextWindow and MaxOutput pin exact limits for the chat model,
	// overriding the built-in registry. Zero means use the registry.
	ContextWindow int `toml:"context_window"`
	MaxOutput     int `toml:"max_output"`
}

type RetryConfig struct {
	MaxAttempts int `toml:"max_attempts"`
	BaseDelayMS int `toml:"base_delay_ms"`
	MaxDelayMS  int `toml:"max_delay_ms"`
}

type JournalConfig struct {
	PruneAfterDays int `toml:"prune_after_days"`
}

type DebugConfig struct {
	LogRequests  bool   `toml:"log_requests"`
	LogResponses bool   `toml:"log_responses"`
	LogDirectory string `toml:"log_directory"`
}

type Config struct {
	Endpoint  string        `toml:"endpoint"`
	APIKeyEnv string        `toml:"api_key_env"`
	DataDir   string        `toml:"data_dir"`
	Models    ModelsConfig  `toml:"models"`
	Retry     RetryConfig   `toml:"retry"`
	Journal   JournalConfig `toml:"journal"`
	Debug     DebugConfig   `toml:"debug"`
}

func Default() Config {
	dataDir := defaultDataDir()
	return Config{
		Endpoint:  "http://127.0.0.1:8080",
		APIKeyEnv: "SAMTALE_API_KEY",
		DataDir:   dataDir,
		Models: ModelsConfig{
			Chat:    "gpt-4o-mini",
			Summary: "gpt-4o-mini",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelayMS: 500,
			MaxDelayMS:  8000,
		},
		Journal: JournalConfig{
			PruneAfterDays: 7,
		},
		Debug: DebugConfig{
			LogRequests:  false,
			LogResponses: false,
			LogDirectory: filepath.Join(dataDir, "debug"),
		},
	}
}

func LoadOrCreate(path string) (Config, error) {
	config := Default()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return config, err
			}

			configData, err := toml.Marshal(config)
			if err != nil {
				return config, err
			}

			if err := os.WriteFile(path, configData, 0o644); err != nil {
				return config, err
			}

			return config, nil
		}

		return config, err
	}

	configData, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := toml.Unmarshal(configData, &config); err != nil {
		return config, err
	}

	config.DataDir = expandPath(config.DataDir)
	config.Debug.LogDirectory = expandPath(config.Debug.LogDirectory)
	config.Endpoint = strings.TrimSpace(config.Endpoint)

	if config.Endpoint == "" {
		return config, errors.New("endpoint is required")
	}

	if config.Models.Chat == "" {
		return config, errors.New("models.chat is required")
	}

	if config.Models.Summary == "" {
		config.Models.Summary = config.Models.Chat
	}

	if config.Retry.MaxAttempts < 1 {
		config.Retry.MaxAttempts = 1
	}

	return config, nil
}

func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.toml")
}

func defaultDataDir() string {
	homeDir, _ := os.UserHomeDir()

	if homeDir == "" {
		return ".samtale"
	}

	return filepath.Join(homeDir, ".samtale")
}

func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()

		if homeDir != "" {
			trimmed := strings.TrimPrefix(path, "~")
			trimmed = strings.TrimPrefix(trimmed, string(os.PathSeparator))

			return filepath.Join(homeDir, trimmed)
		}
	}

	return path
}
