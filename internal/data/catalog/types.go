package catalog

import (
	"fmt"
	"strings"
)

// TypeCatalog registers and lists structural unit types.
type TypeCatalog struct {
	store *Store
}

// Register inserts a new type. No existence check is made, so registering
// the same name twice yields two rows.
func (c *TypeCatalog) Register(name, startToken, endToken string) (StructType, error) {
	sqlStr, args, err := c.store.sb.Insert("struct_types").
		Columns("name", "start_token", "end_token").
		Values(name, startToken, endToken).
		ToSql()
	if err != nil {
		return StructType{}, fmt.Errorf("build struct type insert: %w", err)
	}
	res, err := c.store.db.Exec(sqlStr, args...)
	if err != nil {
		return StructType{}, storageErr(err, fmt.Sprintf("insert struct type %q", name))
	}
	id, err := insertID(res, "insert struct type")
	if err != nil {
		return StructType{}, err
	}
	return StructType{ID: id, Name: name, StartToken: startToken, EndToken: endToken}, nil
}

// List returns every type in insertion order.
func (c *TypeCatalog) List() ([]StructType, error) {
	rows, err := c.store.db.Query(`SELECT id, name, start_token, end_token FROM struct_types ORDER BY id`)
	if err != nil {
		return nil, storageErr(err, "list struct types")
	}
	defer rows.Close()

	types := make([]StructType, 0)
	for rows.Next() {
		var t StructType
		if err := rows.Scan(&t.ID, &t.Name, &t.StartToken, &t.EndToken); err != nil {
			return nil, storageErr(err, "scan struct type row")
		}
		types = append(types, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "iterate struct type rows")
	}
	return types, nil
}

// Names returns the type names in insertion order.
func (c *TypeCatalog) Names() ([]string, error) {
	types, err := c.List()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, t.Name)
	}
	return names, nil
}

// Matching returns the ids of the types named name under Unicode case
// folding, in insertion order.
func (c *TypeCatalog) Matching(name string) ([]int64, error) {
	types, err := c.List()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, 1)
	for _, t := range types {
		if strings.EqualFold(t.Name, name) {
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}
