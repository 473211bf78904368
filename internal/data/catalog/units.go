package catalog

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// UnitStore looks up structural units. Units are created by the ingestion
// side through a Batch and are never updated afterwards.
type UnitStore struct {
	store *Store
}

// UnitQuery filters Query. Type matches a type name exactly, ignoring case.
// It applies when non-empty or when Scoped is set, so a type registered
// under the empty name can still be selected. Signature matches anywhere in
// the signature, ignoring case.
type UnitQuery struct {
	Type      string
	Scoped    bool
	Signature string
}

var unitColumns = []string{
	"s.id",
	"COALESCE(s.signature, '')",
	"COALESCE(s.body, '')",
	"COALESCE(s.body_n, 0)",
	"s.type_id",
	"s.module_id",
	"t.id",
	"t.name",
	"t.start_token",
	"t.end_token",
	"m.id",
	"m.path",
	"m.length",
	"m.n_structs",
}

func (u *UnitStore) selectUnits() sq.SelectBuilder {
	return u.store.sb.Select(unitColumns...).
		From("structs s").
		Join("struct_types t ON t.id = s.type_id").
		Join("modules m ON m.id = s.module_id")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(row rowScanner) (Unit, error) {
	var unit Unit
	err := row.Scan(
		&unit.ID,
		&unit.Signature,
		&unit.Body,
		&unit.BodyN,
		&unit.TypeID,
		&unit.ModuleID,
		&unit.Type.ID,
		&unit.Type.Name,
		&unit.Type.StartToken,
		&unit.Type.EndToken,
		&unit.Module.ID,
		&unit.Module.Path,
		&unit.Module.Length,
		&unit.Module.NStructs,
	)
	return unit, err
}

// Get returns the unit with id, or nil when there is none.
func (u *UnitStore) Get(id int64) (*Unit, error) {
	sqlStr, args, err := u.selectUnits().Where(sq.Eq{"s.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build struct lookup: %w", err)
	}
	unit, err := scanUnit(u.store.db.QueryRow(sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err, fmt.Sprintf("get struct %d", id))
	}
	return &unit, nil
}

// Query returns the units matching every filter in q, ordered by id.
func (u *UnitStore) Query(q UnitQuery) ([]Unit, error) {
	b := u.selectUnits()
	if q.Type != "" || q.Scoped {
		// sqlite's LOWER only folds ASCII, so names are matched here.
		typeIDs, err := u.store.Types().Matching(q.Type)
		if err != nil {
			return nil, err
		}
		b = b.Where(sq.Eq{"s.type_id": typeIDs})
	}
	if q.Signature != "" {
		b = b.Where(sq.Like{"s.signature": "%" + q.Signature + "%"})
	}
	sqlStr, args, err := b.OrderBy("s.id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build struct query: %w", err)
	}

	rows, err := u.store.db.Query(sqlStr, args...)
	if err != nil {
		return nil, storageErr(err, "query structs")
	}
	defer rows.Close()

	units := make([]Unit, 0)
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, storageErr(err, "scan struct row")
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "iterate struct rows")
	}
	return units, nil
}

// Count returns the number of units. A non-empty typeFilter keeps units
// whose type name contains it, ignoring case. This is looser than the
// exact match Query applies to the same name.
func (u *UnitStore) Count(typeFilter string) (int, error) {
	b := u.store.sb.Select("COUNT(s.id)").From("structs s")
	if typeFilter != "" {
		b = b.Join("struct_types t ON t.id = s.type_id").
			Where(sq.Like{"t.name": "%" + typeFilter + "%"})
	}
	sqlStr, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build struct count: %w", err)
	}
	var n int
	if err := u.store.db.QueryRow(sqlStr, args...).Scan(&n); err != nil {
		return 0, storageErr(err, "count structs")
	}
	return n, nil
}

// Batch groups unit inserts into one transaction. It holds the store's only
// connection until Commit or Rollback, so no other store call may run while
// a batch is open.
type Batch struct {
	tx    *sql.Tx
	store *Store
}

func (s *Store) BeginBatch() (*Batch, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return nil, storageErr(err, "begin batch")
	}
	return &Batch{tx: tx, store: s}, nil
}

// InsertUnit adds one unit and returns its id. An empty body is stored as NULL.
func (b *Batch) InsertUnit(in UnitInput) (int64, error) {
	var body any
	if in.Body != "" {
		body = in.Body
	}
	sqlStr, args, err := b.store.sb.Insert("structs").
		Columns("signature", "body", "body_n", "type_id", "module_id").
		Values(in.Signature, body, in.BodyN, in.TypeID, in.ModuleID).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build struct insert: %w", err)
	}
	res, err := b.tx.Exec(sqlStr, args...)
	if err != nil {
		return 0, storageErr(err, fmt.Sprintf("insert struct %q", in.Signature))
	}
	return insertID(res, "insert struct")
}

func (b *Batch) Commit() error {
	if err := b.tx.Commit(); err != nil {
		return storageErr(err, "commit batch")
	}
	return nil
}

func (b *Batch) Rollback() error {
	if err := b.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return storageErr(err, "rollback batch")
	}
	return nil
}
