// Package translator drives the external translation tool over catalogued
// units and memoizes its results in the catalog's translation store.
package translator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"codebase/internal/core/config"
	coreerrors "codebase/internal/core/errors"
	"codebase/internal/data/catalog"
	"codebase/internal/shared/observability"
	"codebase/internal/shared/util"
)

// Settings is the translation configuration. Model, ContextLength and
// Temperature form the memoization key.
type Settings struct {
	Command       string
	Workdir       string
	Model         string
	Pattern       string
	ContextLength int
	Temperature   float64
	Stream        bool
	RatePerMinute int
	Mode          catalog.RenderMode
	// Output receives streamed translations. Defaults to os.Stdout.
	Output io.Writer
}

// SettingsFrom builds Settings from the translator config section and an
// already resolved working directory.
func SettingsFrom(cfg config.Translator, workdir string) Settings {
	return Settings{
		Command:       cfg.Command,
		Workdir:       workdir,
		Model:         cfg.Model,
		Pattern:       cfg.Pattern,
		ContextLength: cfg.ContextLength,
		Temperature:   cfg.Temperature,
		Stream:        cfg.Stream,
		RatePerMinute: cfg.RatePerMinute,
		Mode:          catalog.RenderMode(cfg.Mode()),
	}
}

func (s Settings) key() catalog.TranslationFilter {
	return catalog.MemoKey(s.Model, s.ContextLength, s.Temperature)
}

type Translator struct {
	store    *catalog.Store
	settings Settings
	runner   Runner
	limiter  *util.Limiter
	argv     []string

	mu      sync.Mutex
	history []string
}

func New(store *catalog.Store, s Settings, r Runner) (*Translator, error) {
	if store == nil {
		return nil, coreerrors.New(coreerrors.CodeValidationError, "translator requires a store")
	}
	if s.Temperature < 0 || s.Temperature > 1 {
		return nil, coreerrors.New(coreerrors.CodeValidationError,
			fmt.Sprintf("temperature must be between 0 and 1, got %v", s.Temperature))
	}
	argv := util.SplitCommand(s.Command)
	if len(argv) == 0 {
		return nil, coreerrors.New(coreerrors.CodeValidationError, "translator command must not be empty")
	}
	if s.Workdir != "" {
		info, err := os.Stat(s.Workdir)
		if err != nil || !info.IsDir() {
			return nil, coreerrors.AddContext(
				coreerrors.New(coreerrors.CodeValidationError, "translator workdir does not exist"),
				coreerrors.CtxPath, s.Workdir)
		}
	}
	if s.Mode == "" {
		s.Mode = catalog.ModeText
	}
	if s.Output == nil {
		s.Output = os.Stdout
	}
	if r == nil {
		r = ExecRunner{Stderr: os.Stderr}
	}
	return &Translator{
		store:    store,
		settings: s,
		runner:   r,
		limiter:  util.NewPerMinuteLimiter(s.RatePerMinute),
		argv:     argv,
	}, nil
}

func (t *Translator) Settings() Settings { return t.settings }

// Options returns the flags passed to the translation tool.
func (t *Translator) Options() []string {
	s := t.settings
	return []string{
		"-p", s.Pattern,
		"-m", s.Model,
		"-t", strconv.FormatFloat(s.Temperature, 'f', -1, 64),
		"--modelContextLength=" + strconv.Itoa(s.ContextLength),
	}
}

func (t *Translator) command(stdin io.Reader, stream bool) Command {
	args := append(append([]string(nil), t.argv[1:]...), t.Options()...)
	c := Command{Name: t.argv[0], Args: args, Dir: t.settings.Workdir, Stdin: stdin}
	if stream {
		c.Args = append(c.Args, "--stream")
		c.Stdout = t.settings.Output
	}
	return c
}

// Translate renders the unit with id and runs it through the tool. In
// stream mode the output goes to Settings.Output and "" is returned.
func (t *Translator) Translate(ctx context.Context, id int64) (string, error) {
	ctx, span := observability.Tracer.Start(ctx, "translator.Translate",
		trace.WithAttributes(attribute.Int64("struct.id", id), attribute.String("model", t.settings.Model)))
	defer span.End()

	rendered, err := t.store.Structs().RenderID(id, t.settings.Mode)
	if err != nil {
		return "", err
	}
	text, ok := rendered.Single()
	if !ok {
		return "", coreerrors.AddContext(
			coreerrors.New(coreerrors.CodeNotFound, "struct not found"),
			coreerrors.CtxStructID, id)
	}

	if err := t.limiter.Wait(ctx, 1); err != nil {
		return "", err
	}

	cmd := t.command(strings.NewReader(text), t.settings.Stream)
	t.mu.Lock()
	t.history = append(t.history, cmd.String())
	t.mu.Unlock()

	slog.Debug("running translation command", "id", id, "command", cmd.String())
	start := time.Now()
	out, err := t.runner.Run(ctx, cmd)
	observability.TranslateDuration.WithLabelValues(t.settings.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.TranslateErrorsTotal.Inc()
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "translation command failed")
		wrapped := coreerrors.Wrap(err, coreerrors.CodeInternal, "translation command failed")
		wrapped = coreerrors.AddContext(wrapped, coreerrors.CtxStructID, id)
		return "", coreerrors.AddContext(wrapped, coreerrors.CtxModel, t.settings.Model)
	}
	return string(out), nil
}

// Has reports whether id was already translated under the current settings.
func (t *Translator) Has(id int64) (bool, error) {
	return t.store.Translations().Exists(catalog.ID(id), t.settings.key())
}

// Save records body as the translation of id under the current settings.
func (t *Translator) Save(id int64, body string) (catalog.Translation, error) {
	s := t.settings
	return t.store.Translations().Record(catalog.ID(id), s.Model, s.ContextLength, s.Temperature, body)
}

// History returns every command line issued so far, oldest first.
func (t *Translator) History() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.history...)
}

// Translations returns the stored translations for the current settings
// with their units.
func (t *Translator) Translations() ([]catalog.TranslationWithUnit, error) {
	return t.store.Translations().QueryWithUnits(t.settings.key())
}

type Summary struct {
	RunID      string
	Translated []int64
	Skipped    []int64
	Failed     []int64
}

// Run translates each id that has no translation under the current
// settings and records the result. Failures are collected and the loop
// continues; cancellation stops it.
func (t *Translator) Run(ctx context.Context, ids []int64) (Summary, error) {
	sum := Summary{RunID: uuid.NewString()}
	ctx, span := observability.Tracer.Start(ctx, "translator.Run",
		trace.WithAttributes(attribute.String("run.id", sum.RunID), attribute.Int("structs", len(ids))))
	defer span.End()
	log := slog.With("run", sum.RunID, "model", t.settings.Model)
	var errs []error

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		done, err := t.Has(id)
		if err != nil {
			return sum, err
		}
		if done {
			observability.TranslateSkippedTotal.Inc()
			log.Info("skipping translated struct", "id", id)
			sum.Skipped = append(sum.Skipped, id)
			continue
		}

		body, err := t.Translate(ctx, id)
		if err != nil {
			log.Warn("translation failed", "id", id, "error", err)
			sum.Failed = append(sum.Failed, id)
			errs = append(errs, err)
			continue
		}
		if t.settings.Stream {
			sum.Translated = append(sum.Translated, id)
			continue
		}
		rec, err := t.Save(id, body)
		if err != nil {
			return sum, err
		}
		log.Info("recorded translation", "id", id, "translation", rec.ID)
		sum.Translated = append(sum.Translated, id)
	}
	return sum, errors.Join(errs...)
}
