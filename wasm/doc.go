// Package wasm decodes WebAssembly binary modules.
//
// This package parses the WebAssembly binary format: the standard module
// sections, instruction bodies, and the post-MVP proposals that are now
// part of mainstream toolchains — reference types, bulk memory, SIMD,
// tail calls, exception handling, and the GC proposal's struct/array/i31
// instructions. It does not validate module semantics (type-checking,
// index bounds, stack discipline) or re-serialize a module back to bytes:
// it turns bytes into a typed tree, nothing more.
//
// # Parsing
//
//	data, _ := os.ReadFile("module.wasm")
//	module, err := wasm.FromBytes(data).Parse()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// For large modules, ParallelParse decodes section contents (and, within
// the code section, individual function bodies) concurrently, then
// assembles the Module in the same order Parse would produce:
//
//	module, err := wasm.FromBytes(data, wasm.WithMaxWorkers(8)).ParallelParse()
//
// # Module structure
//
//	module.Version    uint32        // Header version field, stored as-is
//	module.Types      []FuncType    // Function signatures
//	module.Funcs      []uint32      // Type indices for declared functions
//	module.Tables     []TableType   // Table definitions
//	module.Memories   []MemoryType  // Memory definitions
//	module.Globals    []Global      // Global definitions, with decoded Init
//	module.Imports    []Import      // Imported definitions
//	module.Exports    []Export      // Exported definitions
//	module.Code       []FuncBody    // Function bodies, with decoded Body
//	module.Data       []DataSegment // Data segments, with decoded Offset
//	module.Elements   []Element     // Element segments
//
// # Instructions
//
// Instructions decode into a tagged Instruction{Opcode, Imm}; Imm holds a
// payload struct specific to that opcode (BlockImm, MemoryImm, SIMDImm,
// and so on). FuncBody.Body and the various Init/Offset fields are
// already decoded; ReadExpr and ReadConstExpr are the two primitives
// everything else is built from. They take a cursor from this module's
// internal/binary package, so only code inside this module can call them.
//
// # Errors
//
// Every decode failure returns an *Error carrying a Phase (which section
// or stage), a Kind (what went wrong), and the byte offset at which it
// was detected.
package wasm
