package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"codebase/internal/shared/util"
)

type ResolvedPaths struct {
	StorePath string
	Workdir   string
	LogFile   string
}

// ResolvePaths makes every configured path absolute against cwd. The store
// path is left to the store itself to complete with a default filename.
func ResolvePaths(cfg *Config, cwd string) (ResolvedPaths, error) {
	if strings.TrimSpace(cwd) == "" {
		return ResolvedPaths{}, fmt.Errorf("cwd must not be empty")
	}

	out := ResolvedPaths{
		StorePath: ResolveRelative(cwd, util.ExpandHome(strings.TrimSpace(cfg.DB.Path))),
		Workdir:   ResolveRelative(cwd, util.ExpandHome(strings.TrimSpace(cfg.Translator.Workdir))),
	}
	if logFile := strings.TrimSpace(cfg.Log.File); logFile != "" {
		out.LogFile = ResolveRelative(cwd, util.ExpandHome(logFile))
	}
	return out, nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}
