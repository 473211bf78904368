package catalog

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

var (
	ModuleColumns = []string{"path", "length", "n_structs"}
	UnitColumns   = []string{"signature", "body", "body_n", "type", "end_token", "module"}
)

// Row is one table row keyed by the entity id; Values line up with the
// table's Columns.
type Row struct {
	ID     int64
	Values []any
}

// Table is a tabular projection indexed by id. Columns are fixed per
// projection and present even when there are no rows.
type Table struct {
	Columns []string
	Rows    []Row
}

func newTable(columns []string) *Table {
	return &Table{Columns: append([]string(nil), columns...), Rows: make([]Row, 0)}
}

func (t *Table) append(id int64, values ...any) {
	t.Rows = append(t.Rows, Row{ID: id, Values: values})
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

func (t *Table) Empty() bool { return t.Len() == 0 }

// IDs returns the row index in order.
func (t *Table) IDs() []int64 {
	ids := make([]int64, 0, t.Len())
	for _, r := range t.Rows {
		ids = append(ids, r.ID)
	}
	return ids
}

func (t *Table) columnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the cell for row id and column name.
func (t *Table) Value(id int64, column string) (any, bool) {
	idx := t.columnIndex(column)
	if idx < 0 {
		return nil, false
	}
	for _, r := range t.Rows {
		if r.ID == id {
			return r.Values[idx], true
		}
	}
	return nil, false
}

// Column returns every value of one column in row order.
func (t *Table) Column(name string) ([]any, bool) {
	idx := t.columnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]any, 0, len(t.Rows))
	for _, r := range t.Rows {
		out = append(out, r.Values[idx])
	}
	return out, true
}

// Render writes the table with an id column in front.
func (t *Table) Render(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(append([]string{"id"}, t.Columns...))
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, r := range t.Rows {
		cells := make([]string, 0, len(r.Values)+1)
		cells = append(cells, fmt.Sprintf("%d", r.ID))
		for _, v := range r.Values {
			cells = append(cells, fmt.Sprint(v))
		}
		table.Append(cells)
	}
	table.Render()
}
