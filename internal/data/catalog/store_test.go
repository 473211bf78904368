package catalog

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "codebase.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type fixture struct {
	store  *Store
	sub    StructType
	fn     StructType
	macro  Module
	helper Module
	ids    map[string]int64
}

// seed registers Sub and Function types, two modules and four units.
func seed(t *testing.T) fixture {
	t.Helper()
	store := openTestStore(t)
	f := fixture{store: store, ids: make(map[string]int64)}

	var err error
	f.sub, err = store.Types().Register("Sub", "Sub", "End Sub")
	require.NoError(t, err)
	f.fn, err = store.Types().Register("Function", "Function", "End Function")
	require.NoError(t, err)
	f.macro, err = store.Modules().Register(Module{Path: "Macro1.bas", Length: 40, NStructs: 3})
	require.NoError(t, err)
	f.helper, err = store.Modules().Register(Module{Path: "lib/Helpers.bas", Length: 12, NStructs: 1})
	require.NoError(t, err)

	batch, err := store.BeginBatch()
	require.NoError(t, err)
	for _, u := range []struct {
		key string
		in  UnitInput
	}{
		{"dowork", UnitInput{Signature: "Sub DoWork()", Body: "  x = 1", BodyN: 1, TypeID: f.sub.ID, ModuleID: f.macro.ID}},
		{"doother", UnitInput{Signature: "Sub DoOther(a As Long)", Body: "  a = a + 1", BodyN: 1, TypeID: f.sub.ID, ModuleID: f.macro.ID}},
		{"calc", UnitInput{Signature: "Function Calc() As Long", Body: "  Calc = 2", BodyN: 1, TypeID: f.fn.ID, ModuleID: f.macro.ID}},
		{"helper", UnitInput{Signature: "Function Helper()", TypeID: f.fn.ID, ModuleID: f.helper.ID}},
	} {
		id, err := batch.InsertUnit(u.in)
		require.NoError(t, err)
		f.ids[u.key] = id
	}
	require.NoError(t, batch.Commit())
	return f
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()

	got, err := ResolvePath(filepath.Join(dir, "store.db"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "store.db"), got)

	got, err = ResolvePath(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultFilename), got)

	got, err = ResolvePath(filepath.Join(dir, "nested", "data"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nested", "data", DefaultFilename), got)

	_, err = ResolvePath("   ")
	require.Error(t, err)
}

func TestOpen_DirectoryGetsDefaultFilename(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(dir, DefaultFilename), store.Path())
	_, err = os.Stat(store.Path())
	require.NoError(t, err)
}

func TestOpen_CreatesSchemaOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "codebase.db")
	store, err := Open(path)
	require.NoError(t, err)

	_, err = store.Types().Register("Sub", "Sub", "End Sub")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	types, err := reopened.Types().List()
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "Sub", types[0].Name)

	for _, table := range []string{"struct_types", "modules", "structs", "translations"} {
		var name string
		err := reopened.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codebase.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not sqlite"), 0o644))

	_, err := Open(path)
	require.Error(t, err)
	lower := strings.ToLower(err.Error())
	assert.True(t, strings.Contains(lower, "not a database") || strings.Contains(lower, "schema"), "unexpected error: %v", err)
}

func TestEnsureSchema_DetectsNewerVersionDrift(t *testing.T) {
	store := openTestStore(t)
	_, err := store.db.Exec(`INSERT OR REPLACE INTO schema_migrations(version) VALUES (?)`, SchemaVersion+1)
	require.NoError(t, err)

	db, err := sql.Open(driverName, "file:"+store.Path())
	require.NoError(t, err)
	defer db.Close()

	err = EnsureSchema(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestIsCorruptError(t *testing.T) {
	assert.False(t, IsCorruptError(assert.AnError))
	assert.True(t, IsCorruptError(sqlErr("database disk image is malformed")))
	assert.False(t, IsCorruptError(nil))
}

type sqlErr string

func (e sqlErr) Error() string { return string(e) }

func TestTypeCatalog_RegisterAndList(t *testing.T) {
	store := openTestStore(t)
	types := store.Types()

	sub, err := types.Register("Sub", "Sub", "End Sub")
	require.NoError(t, err)
	assert.NotZero(t, sub.ID)

	fn, err := types.Register("Function", "Function", "End Function")
	require.NoError(t, err)

	// Duplicate registration is allowed and yields a new row.
	dup, err := types.Register("Sub", "Sub", "End Sub")
	require.NoError(t, err)
	assert.NotEqual(t, sub.ID, dup.ID)

	list, err := types.List()
	require.NoError(t, err)
	assert.Equal(t, []StructType{sub, fn, dup}, list)

	names, err := types.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"Sub", "Function", "Sub"}, names)
}

func TestModuleRegistry_RegisterListTable(t *testing.T) {
	store := openTestStore(t)
	modules := store.Modules()

	empty, err := modules.Table()
	require.NoError(t, err)
	assert.Equal(t, []string{"path", "length", "n_structs"}, empty.Columns)
	assert.Equal(t, 0, empty.Len())

	m, err := modules.Register(Module{ID: 99, Path: "Macro1.bas", Length: 40, NStructs: 1})
	require.NoError(t, err)
	assert.NotEqual(t, int64(99), m.ID)

	list, err := modules.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, m, list[0])

	table, err := modules.Table()
	require.NoError(t, err)
	assert.Equal(t, ModuleColumns, table.Columns)
	assert.Equal(t, []int64{m.ID}, table.IDs())
	path, ok := table.Value(m.ID, "path")
	require.True(t, ok)
	assert.Equal(t, "Macro1.bas", path)
	n, ok := table.Value(m.ID, "n_structs")
	require.True(t, ok)
	assert.Equal(t, 1, n)
}

func TestModuleRegistry_Match(t *testing.T) {
	f := seed(t)

	got, err := f.store.Modules().Match("lib/*.bas")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, f.helper.ID, got[0].ID)

	got, err = f.store.Modules().Match("*.bas")
	require.NoError(t, err)
	require.Len(t, got, 1, "separator-aware glob should not cross directories")
	assert.Equal(t, f.macro.ID, got[0].ID)

	got, err = f.store.Modules().Match("**.bas")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestUnitStore_Get(t *testing.T) {
	f := seed(t)

	u, err := f.store.Units().Get(f.ids["dowork"])
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "Sub DoWork()", u.Signature)
	assert.Equal(t, "  x = 1", u.Body)
	assert.Equal(t, "Sub", u.Type.Name)
	assert.Equal(t, "End Sub", u.Type.EndToken)
	assert.Equal(t, "Macro1.bas", u.Module.Path)
	assert.Equal(t, f.sub.ID, u.TypeID)
	assert.Equal(t, f.macro.ID, u.ModuleID)

	helper, err := f.store.Units().Get(f.ids["helper"])
	require.NoError(t, err)
	require.NotNil(t, helper)
	assert.Empty(t, helper.Body)

	missing, err := f.store.Units().Get(12345)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUnitStore_Query(t *testing.T) {
	f := seed(t)
	units := f.store.Units()

	all, err := units.Query(UnitQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	subs, err := units.Query(UnitQuery{Type: "SUB"})
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, f.ids["dowork"], subs[0].ID)
	assert.Equal(t, f.ids["doother"], subs[1].ID)

	partial, err := units.Query(UnitQuery{Type: "Su"})
	require.NoError(t, err)
	assert.Empty(t, partial, "type filter must match the whole name")

	bySig, err := units.Query(UnitQuery{Signature: "do"})
	require.NoError(t, err)
	assert.Len(t, bySig, 2)

	both, err := units.Query(UnitQuery{Type: "function", Signature: "CALC"})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, f.ids["calc"], both[0].ID)

	none, err := units.Query(UnitQuery{Type: "sub", Signature: "calc"})
	require.NoError(t, err)
	assert.Empty(t, none)

	unnamed, err := units.Query(UnitQuery{Scoped: true})
	require.NoError(t, err)
	assert.Empty(t, unnamed, "a scoped query for the empty name must not widen to every type")
}

func TestUnitStore_QueryAndCountDisagreeOnOverlappingNames(t *testing.T) {
	f := seed(t)
	subroutine, err := f.store.Types().Register("Subroutine", "Subroutine", "End Subroutine")
	require.NoError(t, err)

	batch, err := f.store.BeginBatch()
	require.NoError(t, err)
	_, err = batch.InsertUnit(UnitInput{Signature: "Subroutine Legacy()", TypeID: subroutine.ID, ModuleID: f.macro.ID})
	require.NoError(t, err)
	require.NoError(t, batch.Commit())

	exact, err := f.store.Units().Query(UnitQuery{Type: "sub"})
	require.NoError(t, err)
	assert.Len(t, exact, 2)

	n, err := f.store.Units().Count("sub")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	total, err := f.store.Units().Count("")
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	fns, err := f.store.Units().Count("UNC")
	require.NoError(t, err)
	assert.Equal(t, 2, fns)
}

func TestBatch_RollbackLeavesNoRows(t *testing.T) {
	f := seed(t)

	batch, err := f.store.BeginBatch()
	require.NoError(t, err)
	_, err = batch.InsertUnit(UnitInput{Signature: "Sub Temp()", TypeID: f.sub.ID, ModuleID: f.macro.ID})
	require.NoError(t, err)
	require.NoError(t, batch.Rollback())
	require.NoError(t, batch.Rollback())

	n, err := f.store.Units().Count("")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestBatch_ForeignKeysEnforced(t *testing.T) {
	f := seed(t)

	batch, err := f.store.BeginBatch()
	require.NoError(t, err)
	defer batch.Rollback()

	_, err = batch.InsertUnit(UnitInput{Signature: "Sub Orphan()", TypeID: 999, ModuleID: f.macro.ID})
	require.Error(t, err)
}
