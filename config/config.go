package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/squash/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	HistorySQLite = "sqlite"
	HistoryJSON   = "json"
	HistoryNone   = "none"
)

type Config struct {
	DataDir   string `yaml:"data_dir"`
	OutputDir string `yaml:"output_dir"`
	WorkDir   string `yaml:"work_dir"`
	// WatchDir enables the watch folder when set.
	WatchDir string `yaml:"watch_dir"`

	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`

	Defaults domain.Settings `yaml:"defaults"`

	AutoStart    bool          `yaml:"auto_start"`
	ClearSkipped bool          `yaml:"clear_skipped"`
	AbortOnSkip  bool          `yaml:"abort_on_skip"`
	JobTimeout   time.Duration `yaml:"job_timeout"`

	HistoryBackend string `yaml:"history_backend"`
	HistoryLimit   int    `yaml:"history_limit"`

	LogLevel string `yaml:"log_level"`
}

func defaults() Config {
	return Config{
		DataDir:        "./data",
		FFmpegPath:     "ffmpeg",
		FFprobePath:    "ffprobe",
		Defaults:       domain.DefaultSettings(),
		AutoStart:      true,
		HistoryBackend: HistorySQLite,
		HistoryLimit:   1000,
		LogLevel:       "info",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE if any, then environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(cfg.DataDir, "output")
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(cfg.DataDir, "work")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.OutputDir = getEnv("OUTPUT_DIR", cfg.OutputDir)
	cfg.WorkDir = getEnv("WORK_DIR", cfg.WorkDir)
	cfg.WatchDir = getEnv("WATCH_DIR", cfg.WatchDir)
	cfg.FFmpegPath = getEnv("FFMPEG_PATH", cfg.FFmpegPath)
	cfg.FFprobePath = getEnv("FFPROBE_PATH", cfg.FFprobePath)
	cfg.Defaults.Size = domain.SizePreset(strings.ToLower(getEnv("DEFAULT_SIZE", string(cfg.Defaults.Size))))
	cfg.Defaults.Speed = domain.SpeedPreset(strings.ToLower(getEnv("DEFAULT_SPEED", string(cfg.Defaults.Speed))))
	cfg.HistoryBackend = strings.ToLower(getEnv("HISTORY_BACKEND", cfg.HistoryBackend))
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", cfg.LogLevel))

	var err error
	if cfg.Defaults.Quality, err = strconv.Atoi(getEnv("DEFAULT_QUALITY", strconv.Itoa(cfg.Defaults.Quality))); err != nil {
		return fmt.Errorf("invalid DEFAULT_QUALITY: %w", err)
	}
	if cfg.HistoryLimit, err = strconv.Atoi(getEnv("HISTORY_LIMIT", strconv.Itoa(cfg.HistoryLimit))); err != nil {
		return fmt.Errorf("invalid HISTORY_LIMIT: %w", err)
	}
	if cfg.JobTimeout, err = time.ParseDuration(getEnv("JOB_TIMEOUT", cfg.JobTimeout.String())); err != nil {
		return fmt.Errorf("invalid JOB_TIMEOUT: %w", err)
	}
	if cfg.AutoStart, err = strconv.ParseBool(getEnv("AUTO_START", strconv.FormatBool(cfg.AutoStart))); err != nil {
		return fmt.Errorf("invalid AUTO_START: %w", err)
	}
	if cfg.ClearSkipped, err = strconv.ParseBool(getEnv("CLEAR_SKIPPED", strconv.FormatBool(cfg.ClearSkipped))); err != nil {
		return fmt.Errorf("invalid CLEAR_SKIPPED: %w", err)
	}
	if cfg.AbortOnSkip, err = strconv.ParseBool(getEnv("ABORT_ON_SKIP", strconv.FormatBool(cfg.AbortOnSkip))); err != nil {
		return fmt.Errorf("invalid ABORT_ON_SKIP: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if err := c.Defaults.Validate(); err != nil {
		return fmt.Errorf("default settings: %w", err)
	}
	switch c.HistoryBackend {
	case HistorySQLite, HistoryJSON, HistoryNone:
	default:
		return fmt.Errorf("invalid HISTORY_BACKEND %q (want sqlite, json or none)", c.HistoryBackend)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("HISTORY_LIMIT must not be negative")
	}
	if c.JobTimeout < 0 {
		return fmt.Errorf("JOB_TIMEOUT must not be negative")
	}
	if err := c.checkWatchDir(); err != nil {
		return err
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	return nil
}

// checkWatchDir rejects a watch folder that would see the compressed outputs.
func (c *Config) checkWatchDir() error {
	if c.WatchDir == "" {
		return nil
	}
	watch, err := filepath.Abs(c.WatchDir)
	if err != nil {
		return fmt.Errorf("invalid WATCH_DIR: %w", err)
	}
	output, err := filepath.Abs(c.OutputDir)
	if err != nil {
		return fmt.Errorf("invalid OUTPUT_DIR: %w", err)
	}
	rel, err := filepath.Rel(watch, output)
	if err != nil {
		return nil
	}
	if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
		return fmt.Errorf("WATCH_DIR %s must not contain OUTPUT_DIR %s", c.WatchDir, c.OutputDir)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
