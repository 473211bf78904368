package catalog

import (
	"fmt"

	"github.com/gobwas/glob"
)

// ModuleRegistry registers source modules and projects them as a table.
type ModuleRegistry struct {
	store *Store
}

// Register inserts m and returns it with its assigned id. Any ID already
// set on m is ignored.
func (r *ModuleRegistry) Register(m Module) (Module, error) {
	sqlStr, args, err := r.store.sb.Insert("modules").
		Columns("path", "length", "n_structs").
		Values(m.Path, m.Length, m.NStructs).
		ToSql()
	if err != nil {
		return Module{}, fmt.Errorf("build module insert: %w", err)
	}
	res, err := r.store.db.Exec(sqlStr, args...)
	if err != nil {
		return Module{}, storageErr(err, fmt.Sprintf("insert module %q", m.Path))
	}
	id, err := insertID(res, "insert module")
	if err != nil {
		return Module{}, err
	}
	m.ID = id
	return m, nil
}

func (r *ModuleRegistry) List() ([]Module, error) {
	rows, err := r.store.db.Query(`SELECT id, path, length, n_structs FROM modules ORDER BY id`)
	if err != nil {
		return nil, storageErr(err, "list modules")
	}
	defer rows.Close()

	modules := make([]Module, 0)
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.Path, &m.Length, &m.NStructs); err != nil {
			return nil, storageErr(err, "scan module row")
		}
		modules = append(modules, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "iterate module rows")
	}
	return modules, nil
}

// Match returns the modules whose path matches a glob pattern.
func (r *ModuleRegistry) Match(pattern string) ([]Module, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("invalid module pattern %q: %w", pattern, err)
	}
	all, err := r.List()
	if err != nil {
		return nil, err
	}
	out := make([]Module, 0, len(all))
	for _, m := range all {
		if g.Match(m.Path) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Table projects modules indexed by id with columns path, length, n_structs.
func (r *ModuleRegistry) Table() (*Table, error) {
	modules, err := r.List()
	if err != nil {
		return nil, err
	}
	return moduleTable(modules), nil
}

func moduleTable(modules []Module) *Table {
	t := newTable(ModuleColumns)
	for _, m := range modules {
		t.append(m.ID, m.Path, m.Length, m.NStructs)
	}
	return t
}
