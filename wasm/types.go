package wasm

// Module represents a parsed WebAssembly module: the decoded contents of
// every standard section, in the order sections were encountered, plus
// any custom sections.
type Module struct {
	// Version is the little-endian u32 read from the module header. It is
	// stored as-is and never rejected here; only the magic number gates
	// decoding.
	Version uint32

	Types    []FuncType // Function types declared by the type section
	Imports  []Import
	Funcs    []uint32 // Type indices for declared (non-imported) functions
	Tables   []TableType
	Memories []MemoryType
	Globals  []Global
	Exports  []Export
	Start    *uint32
	Elements []Element
	Code     []FuncBody
	Data     []DataSegment

	// DataCount holds the count from the data count section (ID 12), used
	// by bulk-memory operations that reference data segments before the
	// data section itself has been seen.
	DataCount *uint32

	CustomSections []CustomSection
}

// FuncType represents a WebAssembly function signature. Params/Results hold
// the simplified per-parameter ValType tag; ExtParams/ExtResults carry the
// same count with full heap-type information for reference-typed
// parameters (Kind == ExtValKindRef) alongside it.
type FuncType struct {
	Params     []ValType
	Results    []ValType
	ExtParams  []ExtValType
	ExtResults []ExtValType
}

// ExtValType is a value type that may carry heap-type information: either a
// plain ValType tag, or a (ref null? ht) form with a resolved RefType.
type ExtValType struct {
	ValType ValType
	RefType RefType // only meaningful when Kind is ExtValKindRef
	Kind    byte    // ExtValKindSimple or ExtValKindRef
}

// Extended value type kinds.
const (
	ExtValKindSimple byte = 0
	ExtValKindRef    byte = 1
)

// RefType is a reference type: nullable flag plus heap type. HeapType is
// the decoded signed 33-bit value: negative for one of the abstract heap
// types (func, extern, any, eq, i31, struct, array, exn, and their "none"
// bottom types), non-negative for a concrete function type index.
type RefType struct {
	Nullable bool
	HeapType int64
}

// ValType represents a WebAssembly value type. See constants.go for the
// ValI32/ValI64/.../ValAnyRef byte encodings.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValV128:
		return "v128"
	case ValFuncRef:
		return "funcref"
	case ValExtern:
		return "externref"
	case ValAnyRef:
		return "anyref"
	case ValEqRef:
		return "eqref"
	case ValI31Ref:
		return "i31ref"
	case ValStructRef:
		return "structref"
	case ValArrayRef:
		return "arrayref"
	case ValNullRef:
		return "nullref"
	case ValNullExternRef:
		return "nullexternref"
	case ValNullFuncRef:
		return "nullfuncref"
	case ValRefNull:
		return "ref null"
	case ValRef:
		return "ref"
	default:
		return "unknown"
	}
}

// Import represents an imported function, table, memory, or global.
type Import struct {
	Desc   ImportDesc
	Module string
	Name   string
}

// ImportDesc describes an imported item. Kind uses KindFunc, KindTable,
// KindMemory, or KindGlobal.
type ImportDesc struct {
	Table   *TableType
	Memory  *MemoryType
	Global  *GlobalType
	TypeIdx uint32
	Kind    byte
}

// TableType describes a table with an element reference type and size
// limits.
type TableType struct {
	RefElemType *RefType // set by the decoder for every element reference type
	Limits      Limits
	ElemType    byte
}

// MemoryType describes a linear memory with size limits.
type MemoryType struct {
	Limits Limits
}

// Limits describes size constraints for tables and memories: a minimum
// and an optional maximum, both plain 32-bit counts.
type Limits struct {
	Max *uint32
	Min uint32
}

// GlobalType describes a global variable's type and mutability.
type GlobalType struct {
	ExtType *ExtValType // set when ValType is a reference type
	ValType ValType
	Mutable bool
}

// Global represents a global variable with its type and decoded
// initialization expression.
type Global struct {
	Type GlobalType
	Init []Instruction
}

// Export describes an exported item. Kind uses KindFunc, KindTable,
// KindMemory, or KindGlobal.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// Element represents an element segment. Flags (0-7) select the active/
// passive/declared mode, whether a table index and reference type are
// encoded explicitly, and whether entries are function indices or full
// constant expressions; see decode.go for the exact bit meanings.
type Element struct {
	RefType  *RefType
	Offset   []Instruction
	FuncIdxs []uint32
	Exprs    [][]Instruction
	Flags    uint32
	TableIdx uint32
	ElemKind byte
	Type     ValType
}

// FuncBody represents a function's local declarations and decoded body.
type FuncBody struct {
	Locals []LocalEntry
	Body   []Instruction
}

// LocalEntry represents a group of local variables sharing a type.
type LocalEntry struct {
	ExtType *ExtValType
	Count   uint32
	ValType ValType
}

// DataSegment represents a data segment. Flags (0, 1, 2) select active
// (implicit memory 0), passive, or active-with-explicit-memory-index.
type DataSegment struct {
	Offset []Instruction
	Init   []byte
	Flags  uint32
	MemIdx uint32
}

// CustomSection holds a named custom section's raw, undecoded payload.
type CustomSection struct {
	Name string
	Data []byte
}

