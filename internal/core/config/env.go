package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: CODEBASE_[SECTION]_[KEY] (e.g., CODEBASE_TRANSLATOR_MODEL).
func ApplyEnvOverrides(cfg *Config) {
	// Database
	setEnvString(&cfg.DB.Path, "CODEBASE_DB_PATH")
	setEnvDuration(&cfg.DB.BusyTimeout, "CODEBASE_DB_BUSY_TIMEOUT")

	// Translator
	setEnvString(&cfg.Translator.Command, "CODEBASE_TRANSLATOR_COMMAND")
	setEnvString(&cfg.Translator.Workdir, "CODEBASE_TRANSLATOR_WORKDIR")
	setEnvString(&cfg.Translator.Model, "CODEBASE_TRANSLATOR_MODEL")
	setEnvString(&cfg.Translator.Pattern, "CODEBASE_TRANSLATOR_PATTERN")
	setEnvInt(&cfg.Translator.ContextLength, "CODEBASE_TRANSLATOR_CONTEXT_LENGTH")
	setEnvFloat64(&cfg.Translator.Temperature, "CODEBASE_TRANSLATOR_TEMPERATURE")
	setEnvBool(&cfg.Translator.Stream, "CODEBASE_TRANSLATOR_STREAM")
	setEnvInt(&cfg.Translator.RatePerMinute, "CODEBASE_TRANSLATOR_RATE_PER_MINUTE")
	setEnvString(&cfg.Translator.RenderMode, "CODEBASE_TRANSLATOR_RENDER_MODE")

	// Log
	setEnvString(&cfg.Log.File, "CODEBASE_LOG_FILE")
	setEnvString(&cfg.Log.Level, "CODEBASE_LOG_LEVEL")

	// Metrics
	setEnvBool(&cfg.Metrics.Enabled, "CODEBASE_METRICS_ENABLED")
	setEnvString(&cfg.Metrics.Address, "CODEBASE_METRICS_ADDRESS")

	// Tracing
	setEnvString(&cfg.Tracing.Endpoint, "CODEBASE_TRACING_ENDPOINT")
	setEnvBool(&cfg.Tracing.Insecure, "CODEBASE_TRACING_INSECURE")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
