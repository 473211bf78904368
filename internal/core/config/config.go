package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const DefaultConfigFile = "codebase.toml"

type Config struct {
	Version    int        `toml:"version"`
	DB         Database   `toml:"db"`
	Translator Translator `toml:"translator"`
	Log        Log        `toml:"log"`
	Metrics    Metrics    `toml:"metrics"`
	Tracing    Tracing    `toml:"tracing"`
}

type Database struct {
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

// Translator configures the external translation command and the
// (model, context, temperature) tuple results are memoized under.
type Translator struct {
	Command       string  `toml:"command"`
	Workdir       string  `toml:"workdir"`
	Model         string  `toml:"model"`
	Pattern       string  `toml:"pattern"`
	ContextLength int     `toml:"context_length"`
	Temperature   float64 `toml:"temperature"`
	Stream        bool    `toml:"stream"`
	RatePerMinute int     `toml:"rate_per_minute"`
	RenderMode    string  `toml:"render_mode"`
}

type Log struct {
	File       string `toml:"file"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
}

// Tracing exports OpenTelemetry spans over OTLP/gRPC when Endpoint is set.
type Tracing struct {
	Endpoint string `toml:"endpoint"`
	Insecure bool   `toml:"insecure"`
}

func DefaultConfig() *Config {
	cfg := &Config{Translator: Translator{Temperature: 0.6}}
	applyDefaults(cfg)
	return cfg
}

// WriteDefault writes the defaults as TOML. An existing file is left alone
// and reported as an error.
func WriteDefault(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory %q: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(DefaultConfig())
}

func (t Translator) Mode() string {
	return strings.ToLower(strings.TrimSpace(t.RenderMode))
}
