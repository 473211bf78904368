package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	coreerrors "codebase/internal/core/errors"
)

const (
	driverName = "sqlite"

	// Extension marks a path as a store file rather than a containing folder.
	Extension       = ".db"
	DefaultFilename = "codebase.db"
)

// Store owns the single connection to a codebase database. All accessors
// returned by its methods share that connection; the store assumes one
// writer and no concurrent external writers.
type Store struct {
	path string
	db   *sql.DB
	sb   sq.StatementBuilderType
}

// ResolvePath appends DefaultFilename when path does not already name a
// store file.
func ResolvePath(path string) (string, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return "", fmt.Errorf("store path must not be empty")
	}
	abs, err := filepath.Abs(cleanPath)
	if err != nil {
		return "", fmt.Errorf("resolve store path %q: %w", cleanPath, err)
	}
	if !strings.HasSuffix(filepath.Base(abs), Extension) {
		abs = filepath.Join(abs, DefaultFilename)
	}
	return abs, nil
}

type options struct {
	busyTimeout time.Duration
}

// Option tunes how Open configures the connection.
type Option func(*options)

// WithBusyTimeout sets how long sqlite waits on a locked file.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}

// Open resolves path, creates the schema if the file is new, and returns a
// store holding one open connection until Close.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{busyTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	resolved, err := ResolvePath(path)
	if err != nil {
		return nil, err
	}
	info, statErr := os.Stat(resolved)
	if statErr == nil && info.IsDir() {
		return nil, fmt.Errorf("store path %q is a directory, expected file", resolved)
	}
	fresh := errors.Is(statErr, os.ErrNotExist)

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory %q: %w", dir, err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(ON)", resolved, o.busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %q: %w", resolved, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store %q: %w", resolved, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", resolved, err)
	}
	if fresh {
		slog.Info("initialized database", "path", resolved)
	}

	return &Store{path: resolved, db: db, sb: sq.StatementBuilder}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *Store) Types() *TypeCatalog { return &TypeCatalog{store: s} }

func (s *Store) Modules() *ModuleRegistry { return &ModuleRegistry{store: s} }

func (s *Store) Units() *UnitStore { return &UnitStore{store: s} }

// Structs returns the unfiltered view over every unit.
func (s *Store) Structs() *View { return &View{store: s} }

func (s *Store) Translations() *TranslationStore { return &TranslationStore{store: s} }

// IsCorruptError reports whether err looks like a damaged or foreign file.
func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}

func insertID(res sql.Result, op string) (int64, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr(err, op+": read inserted id")
	}
	return id, nil
}

// storageErr wraps a failed database call as a storage error tagged with op.
func storageErr(err error, op string) error {
	return coreerrors.AddContext(coreerrors.Wrap(err, coreerrors.CodeStorage, op), coreerrors.CtxOperation, op)
}
