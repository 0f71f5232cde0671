package wasm

import (
	"fmt"
	"strings"
)

// Phase indicates which stage of decoding produced an error.
type Phase string

const (
	PhaseHeader  Phase = "header"  // magic/version check
	PhaseSection Phase = "section" // section header / length accounting
	PhaseType    Phase = "type"    // type section
	PhaseImport  Phase = "import"
	PhaseTable   Phase = "table"
	PhaseMemory  Phase = "memory"
	PhaseGlobal  Phase = "global"
	PhaseExport  Phase = "export"
	PhaseStart   Phase = "start"
	PhaseElement Phase = "element"
	PhaseCode    Phase = "code"
	PhaseData    Phase = "data"
	PhaseCustom  Phase = "custom"
	PhaseExpr    Phase = "expr" // instruction / expression decoding
)

// Kind categorizes the error, mirroring the decode-error variants this
// format distinguishes.
type Kind string

const (
	KindDecode             Kind = "decode"              // underlying I/O-style read failure
	KindLeb128             Kind = "leb128"              // LEB128 overflow
	KindUTF8               Kind = "utf8"                // invalid UTF-8 in a name
	KindInvalidMagic       Kind = "invalid_magic"       // bad \0asm header
	KindInvalidBlockType   Kind = "invalid_block_type"
	KindInvalidSectionID   Kind = "invalid_section_id"
	KindInvalidType        Kind = "invalid_type"        // malformed type-section entry
	KindInvalidTypeTag     Kind = "invalid_type_tag"    // type section tag other than func
	KindInvalidImportKind  Kind = "invalid_import_kind"
	KindInvalidExportKind  Kind = "invalid_export_kind"
	KindInvalidInstruction Kind = "invalid_instruction" // unrecognized opcode/sub-opcode
	KindInvalidExprEnd     Kind = "invalid_expr_end"    // expression did not end in a single 0x0B
	KindInvalidFlags       Kind = "invalid_flags"       // element/data segment or limits flags out of range
	KindInvalidConstExpr   Kind = "invalid_const_expr"  // non-constant opcode in a const expression
	KindInvalidElemType    Kind = "invalid_elem_type"
	KindUnexpectedPrefix   Kind = "unexpected_prefix" // unknown 0xFC/0xFD/0xFE/0xFB sub-opcode
	KindSectionOutOfBounds Kind = "section_out_of_bounds"
	KindUnexpectedEOF      Kind = "unexpected_eof"
)

// Error is the structured error type returned by every decoding operation
// in this package.
type Error struct {
	Cause   error
	Phase   Phase
	Kind    Kind
	Detail  string
	Offset  int // byte offset, relative to the start of the input for header and section-header errors, otherwise to the section/body being decoded
	Section byte
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))
	if e.Offset != 0 || e.Kind == KindSectionOutOfBounds {
		fmt.Fprintf(&b, " at offset %d", e.Offset)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newErr(phase Phase, kind Kind, offset int, detail string, cause error) *Error {
	return &Error{Phase: phase, Kind: kind, Offset: offset, Detail: detail, Cause: cause}
}
