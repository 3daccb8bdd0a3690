package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOrCreate_WritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}

	if cfg.Endpoint == "" || cfg.Models.Chat == "" {
		t.Errorf("defaults incomplete: %+v", cfg)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not written: %v", err)
	}
}

func TestLoadOrCreate_ReadsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	content := `
endpoint = "http://model-host:9000"

[models]
chat = "claude-3-5-sonnet-20241022"

[retry]
max_attempts = 0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}

	if cfg.Endpoint != "http://model-host:9000" {
		t.Errorf("endpoint got %s", cfg.Endpoint)
	}
	if cfg.Models.Summary != cfg.Models.Chat {
		t.Errorf("summary model should default to chat model, got %s", cfg.Models.Summary)
	}
	if cfg.Retry.MaxAttempts != 1 {
		t.Errorf("max attempts should clamp to 1, got %d", cfg.Retry.MaxAttempts)
	}
}

func TestLoadOrCreate_RejectsEmptyEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := os.WriteFile(path, []byte(`endpoint = ""`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadOrCreate(path); err == nil {
		t.Error("expected error for empty endpoint")
	}
}
