package catalog

import (
	"fmt"
	"strings"

	coreerrors "codebase/internal/core/errors"
)

// RenderMode selects how a unit is rendered to text.
type RenderMode string

const (
	ModeText     RenderMode = "text"
	ModeMarkdown RenderMode = "markdown"
)

// UnknownTypeError is returned by ForType when no registered type matches.
type UnknownTypeError struct {
	Name  string
	Valid []string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown struct type %q, valid types: [%s]", e.Name, strings.Join(e.Valid, ", "))
}

func (e *UnknownTypeError) Unwrap() error {
	return coreerrors.New(coreerrors.CodeUnknownType, "unknown struct type")
}

// View navigates units, optionally scoped to one type name. The zero scope
// covers every type.
type View struct {
	store      *Store
	typeFilter string
	scoped     bool
}

// Type returns the scope's type name as requested, or "" when unscoped.
func (v *View) Type() string { return v.typeFilter }

// Scoped reports whether the view is limited to one type.
func (v *View) Scoped() bool { return v.scoped }

func (v *View) query(signature string) UnitQuery {
	return UnitQuery{Type: v.typeFilter, Scoped: v.scoped, Signature: signature}
}

// ForType resolves name against the currently registered type names,
// ignoring case.
func (v *View) ForType(name string) (*View, error) {
	names, err := v.store.Types().Names()
	if err != nil {
		return nil, err
	}
	valid := make([]string, 0, len(names))
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return &View{store: v.store, typeFilter: name, scoped: true}, nil
		}
		valid = append(valid, strings.ToLower(n))
	}
	return nil, &UnknownTypeError{Name: name, Valid: valid}
}

func (v *View) units() *UnitStore { return v.store.Units() }

// Table projects every unit in scope.
func (v *View) Table() (*Table, error) {
	units, err := v.units().Query(v.query(""))
	if err != nil {
		return nil, err
	}
	return unitTable(units), nil
}

// ByID looks id up across all types; the view's scope does not apply.
// It returns nil when no unit has that id.
func (v *View) ByID(id int64) (*Table, error) {
	unit, err := v.units().Get(id)
	if err != nil || unit == nil {
		return nil, err
	}
	return unitTable([]Unit{*unit}), nil
}

// BySignature returns the in-scope units whose signature contains sub.
func (v *View) BySignature(sub string) (*Table, error) {
	units, err := v.units().Query(v.query(sub))
	if err != nil {
		return nil, err
	}
	return unitTable(units), nil
}

// Size counts the units in scope using Count's substring match on the
// type name.
func (v *View) Size() (int, error) {
	return v.units().Count(v.typeFilter)
}

// RenderID renders the unit with id, ignoring scope. A missing id renders
// as an empty sequence.
func (v *View) RenderID(id int64, mode RenderMode) (Rendered, error) {
	unit, err := v.units().Get(id)
	if err != nil {
		return Rendered{}, err
	}
	if unit == nil {
		return newRendered(nil), nil
	}
	return newRendered([]string{renderUnit(*unit, mode)}), nil
}

// RenderSignature renders every in-scope unit whose signature contains sub.
func (v *View) RenderSignature(sub string, mode RenderMode) (Rendered, error) {
	units, err := v.units().Query(v.query(sub))
	if err != nil {
		return Rendered{}, err
	}
	texts := make([]string, 0, len(units))
	for _, u := range units {
		texts = append(texts, renderUnit(u, mode))
	}
	return newRendered(texts), nil
}

func renderUnit(u Unit, mode RenderMode) string {
	text := u.Signature + "\n" + u.Body + "\n" + u.Type.EndToken
	if mode == ModeMarkdown {
		return "Original Module: " + u.Module.Path + "\n```\n" + text + "\n```"
	}
	return text
}

func unitTable(units []Unit) *Table {
	t := newTable(UnitColumns)
	for _, u := range units {
		t.append(u.ID, u.Signature, u.Body, u.BodyN, u.Type.Name, u.Type.EndToken, u.Module.Path)
	}
	return t
}

// Rendered is the result of a render call: either exactly one string or an
// ordered sequence of zero or several.
type Rendered struct {
	items []string
}

func newRendered(items []string) Rendered {
	if items == nil {
		items = []string{}
	}
	return Rendered{items: items}
}

// IsSingle reports whether exactly one unit matched.
func (r Rendered) IsSingle() bool { return len(r.items) == 1 }

// Single returns the rendered text when exactly one unit matched.
func (r Rendered) Single() (string, bool) {
	if !r.IsSingle() {
		return "", false
	}
	return r.items[0], true
}

// Many returns the sequence when zero or several units matched, or nil for
// a single match.
func (r Rendered) Many() []string {
	if r.IsSingle() {
		return nil
	}
	return r.Items()
}

func (r Rendered) Len() int { return len(r.items) }

// Items returns every rendered text regardless of variant.
func (r Rendered) Items() []string {
	out := make([]string, len(r.items))
	copy(out, r.items)
	return out
}

// String joins the texts with blank lines, for printing.
func (r Rendered) String() string { return strings.Join(r.items, "\n\n") }
