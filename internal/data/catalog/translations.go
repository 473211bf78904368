package catalog

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"codebase/internal/shared/observability"
)

// TranslationStore records translation results and answers whether a
// configuration has already been translated.
type TranslationStore struct {
	store *Store
}

// TranslationFilter selects translations by exact equality on each set
// field. Unset fields match anything.
type TranslationFilter struct {
	Model       *string
	Context     *int
	Temperature *float64
}

// MemoKey is the filter naming one complete translation configuration.
func MemoKey(model string, context int, temperature float64) TranslationFilter {
	return TranslationFilter{}.WithModel(model).WithContext(context).WithTemperature(temperature)
}

func (f TranslationFilter) WithModel(model string) TranslationFilter {
	f.Model = &model
	return f
}

func (f TranslationFilter) WithContext(context int) TranslationFilter {
	f.Context = &context
	return f
}

func (f TranslationFilter) WithTemperature(temperature float64) TranslationFilter {
	f.Temperature = &temperature
	return f
}

func (f TranslationFilter) apply(b sq.SelectBuilder, prefix string) sq.SelectBuilder {
	if eq := f.where(prefix); len(eq) > 0 {
		return b.Where(eq)
	}
	return b
}

func (f TranslationFilter) where(prefix string) sq.Eq {
	eq := sq.Eq{}
	if f.Model != nil {
		eq[prefix+"model"] = *f.Model
	}
	if f.Context != nil {
		eq[prefix+"context"] = *f.Context
	}
	if f.Temperature != nil {
		eq[prefix+"temperature"] = *f.Temperature
	}
	return eq
}

// Record stores a translation of ref. Identical configurations are not
// deduplicated; each call adds a row.
func (s *TranslationStore) Record(ref UnitRef, model string, context int, temperature float64, body string) (Translation, error) {
	structID := ref.RefID()
	sqlStr, args, err := s.store.sb.Insert("translations").
		Columns("struct_id", "model", "context", "temperature", "body").
		Values(structID, model, context, temperature, body).
		ToSql()
	if err != nil {
		return Translation{}, fmt.Errorf("build translation insert: %w", err)
	}
	res, err := s.store.db.Exec(sqlStr, args...)
	if err != nil {
		return Translation{}, storageErr(err, fmt.Sprintf("insert translation for struct %d", structID))
	}
	id, err := insertID(res, "insert translation")
	if err != nil {
		return Translation{}, err
	}
	observability.TranslationsRecordedTotal.WithLabelValues(model).Inc()
	return Translation{
		ID:          id,
		StructID:    structID,
		Model:       model,
		Context:     context,
		Temperature: temperature,
		Body:        body,
	}, nil
}

// Exists reports whether ref has at least one translation matching f.
func (s *TranslationStore) Exists(ref UnitRef, f TranslationFilter) (bool, error) {
	structID := ref.RefID()
	b := s.store.sb.Select("1").
		From("translations").
		Where(sq.Eq{"struct_id": structID})
	sqlStr, args, err := f.apply(b, "").Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("build translation lookup: %w", err)
	}

	var one int
	err = s.store.db.QueryRow(sqlStr, args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		observability.MemoLookupsTotal.WithLabelValues("miss").Inc()
		return false, nil
	case err != nil:
		return false, storageErr(err, fmt.Sprintf("lookup translation for struct %d", structID))
	}
	observability.MemoLookupsTotal.WithLabelValues("hit").Inc()
	return true, nil
}

const translationColumns = "id, struct_id, model, context, temperature, body"

func scanTranslation(row rowScanner) (Translation, error) {
	var t Translation
	err := row.Scan(&t.ID, &t.StructID, &t.Model, &t.Context, &t.Temperature, &t.Body)
	return t, err
}

// Get returns the translation with id, or nil when there is none.
func (s *TranslationStore) Get(id int64) (*Translation, error) {
	sqlStr, args, err := s.store.sb.Select(translationColumns).
		From("translations").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build translation get: %w", err)
	}
	t, err := scanTranslation(s.store.db.QueryRow(sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err, fmt.Sprintf("get translation %d", id))
	}
	return &t, nil
}

// Query returns every translation matching f, ordered by id.
func (s *TranslationStore) Query(f TranslationFilter) ([]Translation, error) {
	b := s.store.sb.Select(translationColumns).From("translations")
	sqlStr, args, err := f.apply(b, "").OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build translation query: %w", err)
	}
	rows, err := s.store.db.Query(sqlStr, args...)
	if err != nil {
		return nil, storageErr(err, "query translations")
	}
	defer rows.Close()

	out := make([]Translation, 0)
	for rows.Next() {
		t, err := scanTranslation(rows)
		if err != nil {
			return nil, storageErr(err, "scan translation row")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "iterate translation rows")
	}
	return out, nil
}

// QueryWithUnits is Query with each translation's unit joined in.
func (s *TranslationStore) QueryWithUnits(f TranslationFilter) ([]TranslationWithUnit, error) {
	cols := append([]string{
		"tr.id", "tr.struct_id", "tr.model", "tr.context", "tr.temperature", "tr.body",
	}, unitColumns...)
	b := s.store.sb.Select(cols...).
		From("translations tr").
		Join("structs s ON s.id = tr.struct_id").
		Join("struct_types t ON t.id = s.type_id").
		Join("modules m ON m.id = s.module_id")
	sqlStr, args, err := f.apply(b, "tr.").OrderBy("tr.id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build translation join: %w", err)
	}
	rows, err := s.store.db.Query(sqlStr, args...)
	if err != nil {
		return nil, storageErr(err, "query translations with structs")
	}
	defer rows.Close()

	out := make([]TranslationWithUnit, 0)
	for rows.Next() {
		var tw TranslationWithUnit
		u := &tw.Unit
		if err := rows.Scan(
			&tw.ID, &tw.StructID, &tw.Model, &tw.Context, &tw.Temperature, &tw.Body,
			&u.ID, &u.Signature, &u.Body, &u.BodyN, &u.TypeID, &u.ModuleID,
			&u.Type.ID, &u.Type.Name, &u.Type.StartToken, &u.Type.EndToken,
			&u.Module.ID, &u.Module.Path, &u.Module.Length, &u.Module.NStructs,
		); err != nil {
			return nil, storageErr(err, "scan translation join row")
		}
		out = append(out, tw)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "iterate translation join rows")
	}
	return out, nil
}
