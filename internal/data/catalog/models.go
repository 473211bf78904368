package catalog

// StructType is a recognized kind of structural unit together with the
// literal tokens that open and close it in source text.
type StructType struct {
	ID         int64
	Name       string
	StartToken string
	EndToken   string
}

// Module is a registered source file. NStructs is the count supplied at
// registration and is never recomputed here.
type Module struct {
	ID       int64
	Path     string
	Length   int
	NStructs int
}

// Unit is a structural unit with its owning type and module already joined.
type Unit struct {
	ID        int64
	Signature string
	Body      string
	BodyN     int
	TypeID    int64
	ModuleID  int64

	Type   StructType
	Module Module
}

// RefID implements UnitRef using the unit's stored identifier.
func (u Unit) RefID() int64 { return u.ID }

// UnitInput is what the ingestion side supplies for a new unit.
type UnitInput struct {
	Signature string
	Body      string
	BodyN     int
	TypeID    int64
	ModuleID  int64
}

// Translation is one stored result of an external translation run.
type Translation struct {
	ID          int64
	StructID    int64
	Model       string
	Context     int
	Temperature float64
	Body        string
}

// TranslationWithUnit pairs a translation with the unit it was produced from.
type TranslationWithUnit struct {
	Translation
	Unit Unit
}

// UnitRef is anything that identifies a unit: a Unit value or a bare ID.
type UnitRef interface {
	RefID() int64
}

// ID is a raw unit identifier.
type ID int64

func (id ID) RefID() int64 { return int64(id) }
