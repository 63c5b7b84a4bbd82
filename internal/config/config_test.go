package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Analysis.MaxRetries != 10 {
		t.Errorf("expected default max_retries 10, got %d", cfg.Analysis.MaxRetries)
	}
	if cfg.FFmpeg.Timeout != 15*time.Minute {
		t.Errorf("expected default ffmpeg timeout 15m, got %v", cfg.FFmpeg.Timeout)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
analysis:
  username: fragger
  game_type: cs2
  max_batch_duration: 5m
  concurrency: 2
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Analysis.Username != "fragger" {
		t.Errorf("username = %q", cfg.Analysis.Username)
	}
	if cfg.Analysis.MaxBatchDuration != 5*time.Minute {
		t.Errorf("max_batch_duration = %v", cfg.Analysis.MaxBatchDuration)
	}
	if cfg.Analysis.Concurrency != 2 {
		t.Errorf("concurrency = %d", cfg.Analysis.Concurrency)
	}
	// untouched defaults survive
	if cfg.Analysis.MaxZeroHighlightRetries != 3 {
		t.Errorf("max_zero_highlight_retries = %d", cfg.Analysis.MaxZeroHighlightRetries)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch duration", func(c *Config) { c.Analysis.MaxBatchDuration = 0 }},
		{"negative batch duration", func(c *Config) { c.Analysis.MaxBatchDuration = -time.Second }},
		{"zero concurrency", func(c *Config) { c.Analysis.Concurrency = 0 }},
		{"zero retries", func(c *Config) { c.Analysis.MaxRetries = 0 }},
		{"negative zero-highlight retries", func(c *Config) { c.Analysis.MaxZeroHighlightRetries = -1 }},
		{"zero min highlight duration", func(c *Config) { c.Analysis.MinHighlightDuration = 0 }},
		{"negative gap tolerance", func(c *Config) { c.Analysis.MergeGapTolerance = -time.Second }},
		{"empty model", func(c *Config) { c.Analysis.Model = "" }},
		{"unknown game", func(c *Config) { c.Analysis.GameType = "solitaire" }},
		{"negative ffmpeg timeout", func(c *Config) { c.FFmpeg.Timeout = -time.Second }},
		{"degenerate webcam rect", func(c *Config) { c.Shorts.Webcam = &CropRect{X: 0, Y: 0, Width: 0, Height: 10} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("analysis:\n  game_type: solitaire\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected Load to reject unknown game type")
	}
}

func TestAPIKey(t *testing.T) {
	cfg := Default()
	cfg.Analysis.APIKeyEnv = "FRAGCANNON_TEST_KEY"

	t.Setenv("FRAGCANNON_TEST_KEY", "")
	if _, err := cfg.APIKey(); err == nil {
		t.Error("expected error when key env is empty")
	}

	t.Setenv("FRAGCANNON_TEST_KEY", "abc123")
	key, err := cfg.APIKey()
	if err != nil {
		t.Fatalf("APIKey failed: %v", err)
	}
	if key != "abc123" {
		t.Errorf("key = %q", key)
	}
}
