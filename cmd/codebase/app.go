package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"codebase/internal/core/config"
	"codebase/internal/data/catalog"
	"codebase/internal/engine/translator"
	"codebase/internal/shared/observability"
)

type App struct {
	Config *config.Config
	Paths  config.ResolvedPaths
	Store  *catalog.Store
	Out    io.Writer

	// Runner overrides the subprocess runner used by translate.
	Runner translator.Runner
}

func NewApp(cfg *config.Config, paths config.ResolvedPaths, out io.Writer) (*App, error) {
	store, err := catalog.Open(paths.StorePath, catalog.WithBusyTimeout(cfg.DB.BusyTimeout))
	if err != nil {
		return nil, err
	}
	return &App{Config: cfg, Paths: paths, Store: store, Out: out}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

// Dispatch runs one subcommand with its arguments.
func (a *App) Dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "types":
		return a.Types()
	case "add-type":
		return a.AddType(args)
	case "modules":
		return a.ModulesCmd(args)
	case "structs":
		return a.Structs(args)
	case "count":
		return a.Count(args)
	case "show":
		return a.Show(args)
	case "translate":
		return a.Translate(ctx, args)
	case "translations":
		return a.TranslationsCmd(args)
	default:
		return fmt.Errorf("unknown command %q", name)
	}
}

func (a *App) Types() error {
	types, err := a.Store.Types().List()
	if err != nil {
		return err
	}
	for _, t := range types {
		fmt.Fprintf(a.Out, "%d\t%s\t%q\t%q\n", t.ID, t.Name, t.StartToken, t.EndToken)
	}
	return nil
}

func (a *App) AddType(args []string) error {
	if len(args) != 3 {
		return errors.New("usage: add-type <name> <start-token> <end-token>")
	}
	t, err := a.Store.Types().Register(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	slog.Info("registered struct type", "id", t.ID, "name", t.Name)
	fmt.Fprintf(a.Out, "%d\n", t.ID)
	return nil
}

func (a *App) ModulesCmd(args []string) error {
	fs := flag.NewFlagSet("modules", flag.ContinueOnError)
	fs.SetOutput(a.Out)
	match := fs.String("match", "", "Only list modules whose path matches this glob")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *match == "" {
		table, err := a.Store.Modules().Table()
		if err != nil {
			return err
		}
		table.Render(a.Out)
		return nil
	}

	modules, err := a.Store.Modules().Match(*match)
	if err != nil {
		return err
	}
	for _, m := range modules {
		fmt.Fprintf(a.Out, "%d\t%s\t%d\t%d\n", m.ID, m.Path, m.Length, m.NStructs)
	}
	return nil
}

// view scopes to typeName only when -type was given, so an empty type name
// is still a scope.
func (a *App) view(fs *flag.FlagSet, typeName string) (*catalog.View, error) {
	v := a.Store.Structs()
	if !flagsSet(fs)["type"] {
		return v, nil
	}
	return v.ForType(typeName)
}

func (a *App) Structs(args []string) error {
	fs := flag.NewFlagSet("structs", flag.ContinueOnError)
	fs.SetOutput(a.Out)
	typeName := fs.String("type", "", "Struct type to list")
	sig := fs.String("sig", "", "Signature substring to search for")
	if err := fs.Parse(args); err != nil {
		return err
	}

	v, err := a.view(fs, *typeName)
	if err != nil {
		return err
	}
	var table *catalog.Table
	if *sig != "" {
		table, err = v.BySignature(*sig)
	} else {
		table, err = v.Table()
	}
	if err != nil {
		return err
	}
	table.Render(a.Out)
	return nil
}

func (a *App) Count(args []string) error {
	fs := flag.NewFlagSet("count", flag.ContinueOnError)
	fs.SetOutput(a.Out)
	typeName := fs.String("type", "", "Struct type to count")
	if err := fs.Parse(args); err != nil {
		return err
	}
	v, err := a.view(fs, *typeName)
	if err != nil {
		return err
	}
	n, err := v.Size()
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Out, n)
	return nil
}

// Show renders a struct by id, or every struct whose signature contains
// the argument.
func (a *App) Show(args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(a.Out)
	typeName := fs.String("type", "", "Restrict signature search to this struct type")
	md := fs.Bool("md", false, "Render as markdown")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: show [-type T] [-md] <id|signature>")
	}

	mode := catalog.RenderMode(a.Config.Translator.Mode())
	if *md {
		mode = catalog.ModeMarkdown
	}
	v, err := a.view(fs, *typeName)
	if err != nil {
		return err
	}

	var rendered catalog.Rendered
	if id, convErr := strconv.ParseInt(fs.Arg(0), 10, 64); convErr == nil {
		rendered, err = v.RenderID(id, mode)
	} else {
		rendered, err = v.RenderSignature(fs.Arg(0), mode)
	}
	if err != nil {
		return err
	}

	if text, ok := rendered.Single(); ok {
		fmt.Fprintln(a.Out, text)
		return nil
	}
	items := rendered.Many()
	if len(items) == 0 {
		fmt.Fprintln(a.Out, "no matching structs")
		return nil
	}
	for i, text := range items {
		if i > 0 {
			fmt.Fprintln(a.Out)
		}
		fmt.Fprintln(a.Out, text)
	}
	return nil
}

func (a *App) Translate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("translate", flag.ContinueOnError)
	fs.SetOutput(a.Out)
	typeName := fs.String("type", "", "Translate every struct of this type")
	stream := fs.Bool("stream", a.Config.Translator.Stream, "Stream output instead of recording it")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ids, err := a.translateTargets(fs, *typeName, fs.Args())
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return errors.New("usage: translate [-type T] [-stream] <id>...")
	}

	settings := translator.SettingsFrom(a.Config.Translator, a.Paths.Workdir)
	settings.Stream = *stream
	settings.Output = a.Out
	tr, err := translator.New(a.Store, settings, a.Runner)
	if err != nil {
		return err
	}

	if a.Config.Metrics.Enabled {
		srv := observability.NewServer(a.Config.Metrics.Address, func(context.Context) error {
			_, err := a.Store.Types().Names()
			return err
		})
		if err := srv.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		}()
	}

	sum, runErr := tr.Run(ctx, ids)
	fmt.Fprintf(a.Out, "run %s: %d translated, %d skipped, %d failed\n",
		sum.RunID, len(sum.Translated), len(sum.Skipped), len(sum.Failed))
	return runErr
}

func (a *App) translateTargets(fs *flag.FlagSet, typeName string, args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid struct id %q", arg)
		}
		ids = append(ids, id)
	}
	if !flagsSet(fs)["type"] {
		return ids, nil
	}
	v, err := a.view(fs, typeName)
	if err != nil {
		return nil, err
	}
	table, err := v.Table()
	if err != nil {
		return nil, err
	}
	return append(ids, table.IDs()...), nil
}

func (a *App) TranslationsCmd(args []string) error {
	fs := flag.NewFlagSet("translations", flag.ContinueOnError)
	fs.SetOutput(a.Out)
	id := fs.Int64("id", 0, "Show a single translation by id")
	model := fs.String("model", "", "Filter by model")
	contextLen := fs.Int("context", 0, "Filter by context length")
	temperature := fs.Float64("temperature", 0, "Filter by temperature")
	current := fs.Bool("current", false, "Filter by the configured model, context and temperature")
	if err := fs.Parse(args); err != nil {
		return err
	}
	set := flagsSet(fs)

	store := a.Store.Translations()
	if set["id"] {
		t, err := store.Get(*id)
		if err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("translation %d not found", *id)
		}
		fmt.Fprintln(a.Out, t.Body)
		return nil
	}

	var filter catalog.TranslationFilter
	if *current {
		tr := a.Config.Translator
		filter = catalog.MemoKey(tr.Model, tr.ContextLength, tr.Temperature)
	}
	if set["model"] {
		filter = filter.WithModel(*model)
	}
	if set["context"] {
		filter = filter.WithContext(*contextLen)
	}
	if set["temperature"] {
		filter = filter.WithTemperature(*temperature)
	}

	rows, err := store.QueryWithUnits(filter)
	if err != nil {
		return err
	}
	for _, r := range rows {
		fmt.Fprintf(a.Out, "%d\t%d\t%s\t%d\t%s\t%s\n",
			r.ID, r.StructID, r.Model, r.Context,
			strconv.FormatFloat(r.Temperature, 'f', -1, 64),
			strings.TrimSpace(r.Unit.Signature))
	}
	return nil
}

// flagsSet returns the names of the flags given on the command line, so a
// zero value can be told apart from an absent flag.
func flagsSet(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: codebase [flags] <command> [args]

commands:
  init-config [path]                 write a default config file
  types                              list struct types
  add-type <name> <start> <end>      register a struct type
  modules [-match glob]              list modules
  structs [-type T] [-sig S]         list structs
  count [-type T]                    count structs
  show [-type T] [-md] <id|sig>      render structs
  translate [-type T] [-stream] <id>...
                                     translate structs not yet translated
  translations [-id N] [-model M] [-context N] [-temperature F] [-current]
                                     list stored translations

flags:
`)
	flag.PrintDefaults()
}
