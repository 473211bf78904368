package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codebase/internal/core/config"
	"codebase/internal/shared/observability"
)

var (
	configPath = flag.String("config", "./"+config.DefaultConfigFile, "Path to config file")
	dbPath     = flag.String("db", "", "Store path (file ending in .db or a directory), overrides db.path")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Usage = usage
	flag.Parse()

	if *version {
		fmt.Printf("codebase v%s\n", VERSION)
		os.Exit(0)
	}
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	if cmd == "init-config" {
		path := *configPath
		if len(args) > 0 {
			path = args[0]
		}
		if err := config.WriteDefault(path); err != nil {
			fmt.Fprintf(os.Stderr, "write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(path)
		os.Exit(0)
	}

	os.Exit(run(cmd, args))
}

func run(cmd string, args []string) int {
	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	if *dbPath != "" {
		cfg.DB.Path = *dbPath
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to detect working directory: %v\n", err)
		return 1
	}
	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve paths: %v\n", err)
		return 1
	}

	logCloser := setupLogging(cfg.Log, paths.LogFile, *verbose)
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
	if err != nil {
		slog.Error("failed to set up tracing", "error", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}()

	app, err := NewApp(cfg, paths, os.Stdout)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		return 1
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Warn("failed to close store", "error", err)
		}
	}()

	if err := app.Dispatch(ctx, cmd, args); err != nil {
		slog.Error("command failed", "command", cmd, "error", err)
		return 1
	}
	return 0
}
