package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Start from defaults so keys absent from the file keep them, including
	// an explicit zero temperature that applyDefaults cannot tell apart.
	cfg := DefaultConfig()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path, falling back to defaults (plus env overrides)
// when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	cfg = DefaultConfig()
	ApplyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = "codebase.db"
	}
	if cfg.DB.BusyTimeout <= 0 {
		cfg.DB.BusyTimeout = 5 * time.Second
	}

	if strings.TrimSpace(cfg.Translator.Command) == "" {
		cfg.Translator.Command = "docker compose run --rm -T fabric"
	}
	if strings.TrimSpace(cfg.Translator.Workdir) == "" {
		cfg.Translator.Workdir = "~/localai"
	}
	if strings.TrimSpace(cfg.Translator.Model) == "" {
		cfg.Translator.Model = "qwen2.5-coder:14b"
	}
	if strings.TrimSpace(cfg.Translator.Pattern) == "" {
		cfg.Translator.Pattern = "vba_translate"
	}
	if cfg.Translator.ContextLength == 0 {
		cfg.Translator.ContextLength = 6000
	}
	if strings.TrimSpace(cfg.Translator.RenderMode) == "" {
		cfg.Translator.RenderMode = "text"
	}

	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 10
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 28
	}

	if strings.TrimSpace(cfg.Metrics.Address) == "" {
		cfg.Metrics.Address = "127.0.0.1:9464"
	}
}

func Validate(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		return fmt.Errorf("db.path must not be empty")
	}

	tr := cfg.Translator
	if tr.Temperature < 0 || tr.Temperature > 1 {
		return fmt.Errorf("translator.temperature must be between 0 and 1, got %v", tr.Temperature)
	}
	if tr.ContextLength < 0 {
		return fmt.Errorf("translator.context_length must be >= 0, got %d", tr.ContextLength)
	}
	if tr.RatePerMinute < 0 {
		return fmt.Errorf("translator.rate_per_minute must be >= 0, got %d", tr.RatePerMinute)
	}
	switch tr.Mode() {
	case "text", "markdown":
	default:
		return fmt.Errorf("translator.render_mode must be one of: text, markdown")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Log.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	return nil
}
