package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[db]
path = "data/legacy.db"
busy_timeout = "2s"

[translator]
command = "fabric"
workdir = "/opt/fabric"
model = "llama3:8b"
pattern = "vba_to_python"
context_length = 8192
temperature = 0.2
rate_per_minute = 12
render_mode = "markdown"

[log]
file = "logs/codebase.log"
level = "debug"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DB.Path != "data/legacy.db" {
		t.Errorf("expected db.path data/legacy.db, got %s", cfg.DB.Path)
	}
	if cfg.DB.BusyTimeout != 2*time.Second {
		t.Errorf("expected busy_timeout 2s, got %v", cfg.DB.BusyTimeout)
	}
	tr := cfg.Translator
	if tr.Command != "fabric" || tr.Model != "llama3:8b" || tr.Pattern != "vba_to_python" {
		t.Errorf("unexpected translator settings: %+v", tr)
	}
	if tr.ContextLength != 8192 || tr.Temperature != 0.2 || tr.RatePerMinute != 12 {
		t.Errorf("unexpected translator numbers: %+v", tr)
	}
	if tr.Mode() != "markdown" {
		t.Errorf("expected markdown render mode, got %s", tr.Mode())
	}
	if cfg.Log.Level != "debug" || cfg.Log.MaxBackups != 3 {
		t.Errorf("unexpected log settings: %+v", cfg.Log)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Version != 1 {
		t.Errorf("expected version 1, got %d", cfg.Version)
	}
	if cfg.DB.Path != "codebase.db" {
		t.Errorf("expected default db path, got %s", cfg.DB.Path)
	}
	if cfg.Translator.Model != "qwen2.5-coder:14b" {
		t.Errorf("expected default model, got %s", cfg.Translator.Model)
	}
	if cfg.Translator.Pattern != "vba_translate" || cfg.Translator.ContextLength != 6000 {
		t.Errorf("unexpected defaults: %+v", cfg.Translator)
	}
	if cfg.Translator.Temperature != 0.6 {
		t.Errorf("expected default temperature 0.6, got %v", cfg.Translator.Temperature)
	}
	if cfg.Translator.Command != "docker compose run --rm -T fabric" {
		t.Errorf("unexpected default command %q", cfg.Translator.Command)
	}
}

func TestLoad_ExplicitZeroTemperature(t *testing.T) {
	cfg, err := Load(writeConfig(t, "[translator]\ntemperature = 0.0\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Translator.Temperature != 0 {
		t.Errorf("expected explicit zero temperature to be kept, got %v", cfg.Translator.Temperature)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"temperature too high", "[translator]\ntemperature = 1.5\n", "translator.temperature"},
		{"negative temperature", "[translator]\ntemperature = -0.1\n", "translator.temperature"},
		{"negative rate", "[translator]\nrate_per_minute = -1\n", "translator.rate_per_minute"},
		{"bad render mode", "[translator]\nrender_mode = \"html\"\n", "translator.render_mode"},
		{"bad log level", "[log]\nlevel = \"loud\"\n", "log.level"},
		{"bad version", "version = 3\n", "unsupported config version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	if cfg.Translator.Model != "qwen2.5-coder:14b" {
		t.Errorf("expected defaults, got %+v", cfg.Translator)
	}

	if _, err := LoadOrDefault(writeConfig(t, "not = [valid")); err == nil {
		t.Fatal("expected parse error to be returned")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CODEBASE_DB_PATH", "/tmp/other.db")
	t.Setenv("CODEBASE_TRANSLATOR_MODEL", "codellama")
	t.Setenv("CODEBASE_TRANSLATOR_TEMPERATURE", "0.3")
	t.Setenv("CODEBASE_TRANSLATOR_CONTEXT_LENGTH", "not-a-number")
	t.Setenv("CODEBASE_TRANSLATOR_STREAM", "TRUE")
	t.Setenv("CODEBASE_TRANSLATOR_RENDER_MODE", "markdown")
	t.Setenv("CODEBASE_TRACING_ENDPOINT", "localhost:4317")

	cfg := DefaultConfig()
	ApplyEnvOverrides(cfg)

	if cfg.DB.Path != "/tmp/other.db" {
		t.Errorf("expected db path override, got %s", cfg.DB.Path)
	}
	if cfg.Translator.Model != "codellama" || cfg.Translator.Temperature != 0.3 {
		t.Errorf("unexpected translator overrides: %+v", cfg.Translator)
	}
	if cfg.Translator.ContextLength != 6000 {
		t.Errorf("expected invalid int override to be ignored, got %d", cfg.Translator.ContextLength)
	}
	if !cfg.Translator.Stream {
		t.Error("expected stream override to be applied")
	}
	if cfg.Translator.Mode() != "markdown" {
		t.Errorf("expected render mode override, got %q", cfg.Translator.RenderMode)
	}
	if cfg.Tracing.Endpoint != "localhost:4317" {
		t.Errorf("expected tracing endpoint override, got %q", cfg.Tracing.Endpoint)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", DefaultConfigFile)
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load of written defaults failed: %v", err)
	}
	if cfg.Translator.Temperature != 0.6 || cfg.DB.Path != "codebase.db" {
		t.Errorf("unexpected round-tripped defaults: %+v", cfg)
	}
	if err := WriteDefault(path); err == nil {
		t.Fatal("expected existing file to be refused")
	}
}

func TestResolvePaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DB.Path = "data"
	cfg.Translator.Workdir = "/srv/fabric"
	cfg.Log.File = "logs/codebase.log"

	got, err := ResolvePaths(cfg, "/work")
	if err != nil {
		t.Fatalf("ResolvePaths failed: %v", err)
	}
	if got.StorePath != filepath.Clean("/work/data") {
		t.Errorf("unexpected store path %s", got.StorePath)
	}
	if got.Workdir != "/srv/fabric" {
		t.Errorf("unexpected workdir %s", got.Workdir)
	}
	if got.LogFile != filepath.Clean("/work/logs/codebase.log") {
		t.Errorf("unexpected log file %s", got.LogFile)
	}

	if _, err := ResolvePaths(cfg, " "); err == nil {
		t.Fatal("expected empty cwd to fail")
	}
}
