package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/keagan/fragcannon/internal/prompts"
)

// Config holds all application configuration
type Config struct {
	// Output directories
	VideoDir    string `yaml:"video_dir"`
	MetadataDir string `yaml:"metadata_dir"`
	TempDir     string `yaml:"temp_dir"`

	Analysis AnalysisConfig `yaml:"analysis"`
	FFmpeg   FFmpegConfig   `yaml:"ffmpeg"`
	Shorts   ShortsConfig   `yaml:"shorts"`
	Watcher  WatcherConfig  `yaml:"watcher"`
}

// AnalysisConfig drives batching, the inference endpoint, and retry
// budgets.
type AnalysisConfig struct {
	Model       string  `yaml:"model"`
	Endpoint    string  `yaml:"endpoint"`    // empty selects the public endpoint
	APIKeyEnv   string  `yaml:"api_key_env"` // env var holding the key
	Username    string  `yaml:"username"`
	GameType    string  `yaml:"game_type"`
	Temperature float64 `yaml:"temperature"`

	MinHighlightDuration time.Duration `yaml:"min_highlight_duration"`
	MergeGapTolerance    time.Duration `yaml:"merge_gap_tolerance"`

	MaxBatchDuration time.Duration `yaml:"max_batch_duration"`
	MaxBatchCount    int           `yaml:"max_batch_count"`
	Concurrency      int           `yaml:"concurrency"`

	MaxRetries              int           `yaml:"max_retries"`
	RetryDelay              time.Duration `yaml:"retry_delay"`
	MaxRetryDelay           time.Duration `yaml:"max_retry_delay"`
	MaxZeroHighlightRetries int           `yaml:"max_zero_highlight_retries"`
	AttemptTimeout          time.Duration `yaml:"attempt_timeout"`
}

// FFmpegConfig controls the external encoder.
type FFmpegConfig struct {
	Threads    int           `yaml:"threads"`
	Preset     string        `yaml:"preset"`
	StreamCopy bool          `yaml:"stream_copy"` // stream-copy clip extraction instead of re-encoding
	Hwaccel    bool          `yaml:"hwaccel"`     // try NVENC, fall back to CPU
	Timeout    time.Duration `yaml:"timeout"`     // per-invocation bound, 0 disables
}

// CropRect is a static crop rectangle inside the source frame.
type CropRect struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// ShortsConfig controls vertical re-rendering of the compilation.
type ShortsConfig struct {
	Enabled      bool      `yaml:"enabled"`
	Webcam       *CropRect `yaml:"webcam"`    // nil disables the webcam overlay
	KillFeed     *CropRect `yaml:"kill_feed"` // nil disables the kill-feed overlay
	SubtitleFile string    `yaml:"subtitle_file"`
}

// WatcherConfig controls the directory watcher.
type WatcherConfig struct {
	Directory       string        `yaml:"directory"`
	StabilityWindow time.Duration `yaml:"stability_window"`
	ProcessExisting bool          `yaml:"process_existing"`
	Reprocess       bool          `yaml:"reprocess"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects configurations the pipeline cannot run with. These are
// the only failures that abort a run before it starts.
func (c *Config) Validate() error {
	a := c.Analysis
	if a.MaxBatchDuration <= 0 {
		return fmt.Errorf("analysis.max_batch_duration must be positive, got %v", a.MaxBatchDuration)
	}
	if a.Concurrency < 1 {
		return fmt.Errorf("analysis.concurrency must be at least 1, got %d", a.Concurrency)
	}
	if a.MaxRetries < 1 {
		return fmt.Errorf("analysis.max_retries must be at least 1, got %d", a.MaxRetries)
	}
	if a.MaxZeroHighlightRetries < 0 {
		return fmt.Errorf("analysis.max_zero_highlight_retries must not be negative, got %d", a.MaxZeroHighlightRetries)
	}
	if a.MinHighlightDuration <= 0 {
		return fmt.Errorf("analysis.min_highlight_duration must be positive, got %v", a.MinHighlightDuration)
	}
	if a.MergeGapTolerance < 0 {
		return fmt.Errorf("analysis.merge_gap_tolerance must not be negative, got %v", a.MergeGapTolerance)
	}
	if a.Model == "" {
		return fmt.Errorf("analysis.model must be set")
	}
	if !prompts.Known(prompts.GameType(a.GameType)) {
		return fmt.Errorf("unknown game_type %q, valid values: %v", a.GameType, prompts.Games())
	}
	if c.FFmpeg.Timeout < 0 {
		return fmt.Errorf("ffmpeg.timeout must not be negative, got %v", c.FFmpeg.Timeout)
	}
	if c.Shorts.Webcam != nil && (c.Shorts.Webcam.Width <= 0 || c.Shorts.Webcam.Height <= 0) {
		return fmt.Errorf("shorts.webcam rectangle must have positive dimensions")
	}
	if c.Shorts.KillFeed != nil && (c.Shorts.KillFeed.Width <= 0 || c.Shorts.KillFeed.Height <= 0) {
		return fmt.Errorf("shorts.kill_feed rectangle must have positive dimensions")
	}
	return nil
}

// APIKey resolves the inference API key from the environment.
func (c *Config) APIKey() (string, error) {
	env := c.Analysis.APIKeyEnv
	if env == "" {
		env = "GOOGLE_API_KEY"
	}
	key := os.Getenv(env)
	if key == "" {
		return "", fmt.Errorf("API key not found: set %s", env)
	}
	return key, nil
}

// Game returns the configured game type.
func (c *Config) Game() prompts.GameType {
	return prompts.GameType(c.Analysis.GameType)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		VideoDir:    "exported_videos",
		MetadataDir: "exported_metadata",
		TempDir:     "",
		Analysis: AnalysisConfig{
			Model:                   "gemini-2.5-flash",
			APIKeyEnv:               "GOOGLE_API_KEY",
			Username:                "",
			GameType:                string(prompts.GameCustom),
			Temperature:             1.0,
			MinHighlightDuration:    10 * time.Second,
			MergeGapTolerance:       2 * time.Second,
			MaxBatchDuration:        10 * time.Minute,
			MaxBatchCount:           0,
			Concurrency:             4,
			MaxRetries:              10,
			RetryDelay:              2 * time.Second,
			MaxRetryDelay:           30 * time.Second,
			MaxZeroHighlightRetries: 3,
			AttemptTimeout:          5 * time.Minute,
		},
		FFmpeg: FFmpegConfig{
			Threads:    0,
			Preset:     "medium",
			StreamCopy: false,
			Hwaccel:    true,
			Timeout:    15 * time.Minute,
		},
		Shorts: ShortsConfig{
			Enabled: false,
		},
		Watcher: WatcherConfig{
			Directory:       "./videos",
			StabilityWindow: 2 * time.Second,
			ProcessExisting: true,
			Reprocess:       false,
		},
	}
}

type ctxKey struct{}

// WithConfig attaches the config to a context.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext retrieves the config stored by WithConfig, falling back to
// defaults.
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}
	return Default()
}

func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		"./config.yml",
		filepath.Join(os.Getenv("HOME"), ".fragcannon", "config.yaml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
