package catalog

import (
	"database/sql"
	"fmt"
)

const SchemaVersion = 1

type migration struct {
	version int
	sql     string
}

// Tables carry no uniqueness constraints beyond their ids: duplicate types
// and duplicate translation tuples are both permitted.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS struct_types (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  name        TEXT NOT NULL,
  start_token TEXT NOT NULL,
  end_token   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS modules (
  id        INTEGER PRIMARY KEY AUTOINCREMENT,
  path      TEXT    NOT NULL,
  length    INTEGER NOT NULL,
  n_structs INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS structs (
  id        INTEGER PRIMARY KEY AUTOINCREMENT,
  signature TEXT,
  body      TEXT,
  body_n    INTEGER,
  type_id   INTEGER NOT NULL REFERENCES struct_types(id),
  module_id INTEGER NOT NULL REFERENCES modules(id)
);
CREATE TABLE IF NOT EXISTS translations (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  struct_id   INTEGER NOT NULL REFERENCES structs(id),
  model       TEXT    NOT NULL,
  context     INTEGER NOT NULL,
  temperature REAL    NOT NULL,
  body        TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_structs_type ON structs(type_id);
CREATE INDEX IF NOT EXISTS idx_structs_module ON structs(module_id);
CREATE INDEX IF NOT EXISTS idx_translations_key
  ON translations(struct_id, model, context, temperature);
`,
	},
}

func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_migrations version: %w", err)
	}
	if current > SchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}

	return nil
}
