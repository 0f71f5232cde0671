package wasm

import (
	"fmt"

	"github.com/juzi5201314/wasmcat/internal/binary"
)

func decodeModule(cur *binary.Cursor) (*Module, error) {
	version, err := readHeader(cur)
	if err != nil {
		return nil, err
	}

	m := &Module{Version: version}

	for !cur.IsEmpty() {
		id, err := cur.ReadByte()
		if err != nil {
			return nil, newErr(PhaseSection, KindDecode, cur.Position(), "failed to read section id", err)
		}
		size, err := cur.ReadVarU32()
		if err != nil {
			return nil, newErr(PhaseSection, KindDecode, cur.Position(), "failed to read section size", err)
		}
		sec, err := cur.SliceWith(int(size))
		if err != nil {
			return nil, newErr(PhaseSection, KindSectionOutOfBounds, cur.Position(), "section size exceeds remaining input", err)
		}

		switch id {
		case SectionCustom:
			cs, cerr := parseCustomSection(sec)
			if cerr != nil {
				return nil, cerr
			}
			m.CustomSections = append(m.CustomSections, cs)

		case SectionType:
			m.Types, err = parseTypeSection(sec)
		case SectionImport:
			m.Imports, err = parseImportSection(sec)
		case SectionFunction:
			m.Funcs, err = parseFunctionSection(sec)
		case SectionTable:
			m.Tables, err = parseTableSection(sec)
		case SectionMemory:
			m.Memories, err = parseMemorySection(sec)
		case SectionGlobal:
			m.Globals, err = parseGlobalSection(sec)
		case SectionExport:
			m.Exports, err = parseExportSection(sec)
		case SectionStart:
			m.Start, err = parseStartSection(sec)
		case SectionElement:
			m.Elements, err = parseElementSection(sec)
		case SectionCode:
			m.Code, err = parseCodeSection(sec)
		case SectionData:
			m.Data, err = parseDataSection(sec)
		case SectionDataCount:
			m.DataCount, err = parseDataCountSection(sec)
		default:
			return nil, newErr(PhaseSection, KindInvalidSectionID, cur.Position(), fmt.Sprintf("unknown section id %d", id), nil)
		}
		if err != nil {
			return nil, err
		}
		if id != SectionCustom && sec.Remaining() != 0 {
			return nil, newErr(PhaseSection, KindSectionOutOfBounds, sec.Position(),
				fmt.Sprintf("section %d has %d trailing bytes", id, sec.Remaining()), nil)
		}
	}

	return m, nil
}

func parseCustomSection(cur *binary.Cursor) (CustomSection, error) {
	name, err := cur.ReadName()
	if err != nil {
		return CustomSection{}, newErr(PhaseCustom, KindUTF8, cur.Position(), "failed to read custom section name", err)
	}
	data, err := cur.ReadBytes(cur.Remaining())
	if err != nil {
		return CustomSection{}, newErr(PhaseCustom, KindDecode, cur.Position(), "failed to read custom section data", err)
	}
	return CustomSection{Name: name, Data: data}, nil
}

func parseTypeSection(cur *binary.Cursor) ([]FuncType, error) {
	count, err := cur.ReadVarU32()
	if err != nil {
		return nil, newErr(PhaseType, KindDecode, cur.Position(), "failed to read type count", err)
	}
	types := make([]FuncType, count)
	for i := uint32(0); i < count; i++ {
		tag, err := cur.ReadByte()
		if err != nil {
			return nil, newErr(PhaseType, KindDecode, cur.Position(), "failed to read type tag", err)
		}
		if tag != FuncTypeByte {
			return nil, newErr(PhaseType, KindInvalidTypeTag, cur.Position(),
				fmt.Sprintf("unsupported type section tag 0x%02x", tag), nil)
		}
		ft, err := readFuncType(cur)
		if err != nil {
			return nil, err
		}
		types[i] = ft
	}
	return types, nil
}

func readFuncType(cur *binary.Cursor) (FuncType, error) {
	paramCount, err := cur.ReadVarU32()
	if err != nil {
		return FuncType{}, newErr(PhaseType, KindDecode, cur.Position(), "failed to read param count", err)
	}
	params := make([]ValType, paramCount)
	extParams := make([]ExtValType, paramCount)
	for i := uint32(0); i < paramCount; i++ {
		ext, err := readExtValType(cur)
		if err != nil {
			return FuncType{}, err
		}
		params[i] = ext.ValType
		extParams[i] = ext
	}

	resultCount, err := cur.ReadVarU32()
	if err != nil {
		return FuncType{}, newErr(PhaseType, KindDecode, cur.Position(), "failed to read result count", err)
	}
	results := make([]ValType, resultCount)
	extResults := make([]ExtValType, resultCount)
	for i := uint32(0); i < resultCount; i++ {
		ext, err := readExtValType(cur)
		if err != nil {
			return FuncType{}, err
		}
		results[i] = ext.ValType
		extResults[i] = ext
	}

	return FuncType{Params: params, Results: results, ExtParams: extParams, ExtResults: extResults}, nil
}

// abstractHeapType maps an abstract reference type's single-byte encoding
// to its corresponding negative heap type value.
func abstractHeapType(v ValType) int64 {
	switch v {
	case ValFuncRef:
		return HeapTypeFunc
	case ValExtern:
		return HeapTypeExtern
	case ValAnyRef:
		return HeapTypeAny
	case ValEqRef:
		return HeapTypeEq
	case ValI31Ref:
		return HeapTypeI31
	case ValStructRef:
		return HeapTypeStruct
	case ValArrayRef:
		return HeapTypeArray
	case ValNullFuncRef:
		return HeapTypeNoFunc
	case ValNullExternRef:
		return HeapTypeNoExtern
	case ValNullRef:
		return HeapTypeNone
	}
	return 0
}

// readExtValType reads one value type byte, which may be a plain numeric
// or vector type, an abstract reference type, or a ref-null/ref prefixed
// type carrying an explicit s33 heap type.
func readExtValType(cur *binary.Cursor) (ExtValType, error) {
	b, err := cur.ReadByte()
	if err != nil {
		return ExtValType{}, newErr(PhaseType, KindDecode, cur.Position(), "failed to read value type", err)
	}
	switch ValType(b) {
	case ValI32, ValI64, ValF32, ValF64, ValV128:
		return ExtValType{Kind: ExtValKindSimple, ValType: ValType(b)}, nil
	case ValFuncRef, ValExtern, ValAnyRef, ValEqRef, ValI31Ref, ValStructRef, ValArrayRef,
		ValNullFuncRef, ValNullExternRef, ValNullRef:
		return ExtValType{
			Kind:    ExtValKindRef,
			ValType: ValType(b),
			RefType: RefType{Nullable: true, HeapType: abstractHeapType(ValType(b))},
		}, nil
	case ValRefNull, ValRef:
		ht, err := cur.ReadVarS33()
		if err != nil {
			return ExtValType{}, newErr(PhaseType, KindDecode, cur.Position(), "failed to read heap type", err)
		}
		return ExtValType{
			Kind:    ExtValKindRef,
			ValType: ValType(b),
			RefType: RefType{Nullable: b == byte(ValRefNull), HeapType: ht},
		}, nil
	}
	return ExtValType{}, newErr(PhaseType, KindInvalidType, cur.Position(), fmt.Sprintf("invalid value type byte 0x%02x", b), nil)
}

// readRefType reads a table element type or element-segment reftype tag:
// either an abstract reference byte or a ref-null/ref prefixed form. It
// rejects plain numeric/vector type bytes, which are not valid reftypes.
func readRefType(cur *binary.Cursor) (RefType, byte, error) {
	b, err := cur.ReadByte()
	if err != nil {
		return RefType{}, 0, newErr(PhaseTable, KindDecode, cur.Position(), "failed to read reference type", err)
	}
	switch ValType(b) {
	case ValFuncRef, ValExtern, ValAnyRef, ValEqRef, ValI31Ref, ValStructRef, ValArrayRef,
		ValNullFuncRef, ValNullExternRef, ValNullRef:
		return RefType{Nullable: true, HeapType: abstractHeapType(ValType(b))}, b, nil
	case ValRefNull, ValRef:
		ht, err := cur.ReadVarS33()
		if err != nil {
			return RefType{}, 0, newErr(PhaseTable, KindDecode, cur.Position(), "failed to read heap type", err)
		}
		return RefType{Nullable: b == byte(ValRefNull), HeapType: ht}, b, nil
	}
	return RefType{}, 0, newErr(PhaseTable, KindInvalidElemType, cur.Position(), fmt.Sprintf("invalid reference type byte 0x%02x", b), nil)
}

func readLimits(cur *binary.Cursor, phase Phase) (Limits, error) {
	flags, err := cur.ReadByte()
	if err != nil {
		return Limits{}, newErr(phase, KindDecode, cur.Position(), "failed to read limits flags", err)
	}
	min, err := cur.ReadVarU32()
	if err != nil {
		return Limits{}, newErr(phase, KindDecode, cur.Position(), "failed to read limits minimum", err)
	}
	limits := Limits{Min: min}
	switch flags {
	case LimitsNoMax:
	case LimitsHasMax:
		max, err := cur.ReadVarU32()
		if err != nil {
			return Limits{}, newErr(phase, KindDecode, cur.Position(), "failed to read limits maximum", err)
		}
		limits.Max = &max
	default:
		return Limits{}, newErr(phase, KindInvalidFlags, cur.Position(), fmt.Sprintf("unsupported limits flags 0x%02x", flags), nil)
	}
	return limits, nil
}

func readTableType(cur *binary.Cursor) (TableType, error) {
	rt, tag, err := readRefType(cur)
	if err != nil {
		return TableType{}, err
	}
	limits, err := readLimits(cur, PhaseTable)
	if err != nil {
		return TableType{}, err
	}
	return TableType{RefElemType: &rt, ElemType: tag, Limits: limits}, nil
}

func readMemoryType(cur *binary.Cursor) (MemoryType, error) {
	limits, err := readLimits(cur, PhaseMemory)
	if err != nil {
		return MemoryType{}, err
	}
	return MemoryType{Limits: limits}, nil
}

func readGlobalType(cur *binary.Cursor) (GlobalType, error) {
	ext, err := readExtValType(cur)
	if err != nil {
		return GlobalType{}, err
	}
	mutFlag, err := cur.ReadByte()
	if err != nil {
		return GlobalType{}, newErr(PhaseGlobal, KindDecode, cur.Position(), "failed to read global mutability", err)
	}
	gt := GlobalType{ValType: ext.ValType, Mutable: mutFlag != 0}
	if ext.Kind == ExtValKindRef {
		gt.ExtType = &ext
	}
	return gt, nil
}

func parseImportSection(cur *binary.Cursor) ([]Import, error) {
	count, err := cur.ReadVarU32()
	if err != nil {
		return nil, newErr(PhaseImport, KindDecode, cur.Position(), "failed to read import count", err)
	}
	imports := make([]Import, count)
	for i := uint32(0); i < count; i++ {
		mod, err := cur.ReadName()
		if err != nil {
			return nil, newErr(PhaseImport, KindUTF8, cur.Position(), "failed to read import module name", err)
		}
		name, err := cur.ReadName()
		if err != nil {
			return nil, newErr(PhaseImport, KindUTF8, cur.Position(), "failed to read import field name", err)
		}
		kind, err := cur.ReadByte()
		if err != nil {
			return nil, newErr(PhaseImport, KindDecode, cur.Position(), "failed to read import kind", err)
		}
		desc := ImportDesc{Kind: kind}
		switch kind {
		case KindFunc:
			desc.TypeIdx, err = cur.ReadVarU32()
		case KindTable:
			var tt TableType
			tt, err = readTableType(cur)
			desc.Table = &tt
		case KindMemory:
			var mt MemoryType
			mt, err = readMemoryType(cur)
			desc.Memory = &mt
		case KindGlobal:
			var gt GlobalType
			gt, err = readGlobalType(cur)
			desc.Global = &gt
		default:
			return nil, newErr(PhaseImport, KindInvalidImportKind, cur.Position(), fmt.Sprintf("unknown import kind %d", kind), nil)
		}
		if err != nil {
			return nil, err
		}
		imports[i] = Import{Module: mod, Name: name, Desc: desc}
	}
	return imports, nil
}

func parseFunctionSection(cur *binary.Cursor) ([]uint32, error) {
	count, err := cur.ReadVarU32()
	if err != nil {
		return nil, newErr(PhaseSection, KindDecode, cur.Position(), "failed to read function count", err)
	}
	funcs := make([]uint32, count)
	for i := uint32(0); i < count; i++ {
		funcs[i], err = cur.ReadVarU32()
		if err != nil {
			return nil, newErr(PhaseSection, KindDecode, cur.Position(), "failed to read function type index", err)
		}
	}
	return funcs, nil
}

func parseTableSection(cur *binary.Cursor) ([]TableType, error) {
	count, err := cur.ReadVarU32()
	if err != nil {
		return nil, newErr(PhaseTable, KindDecode, cur.Position(), "failed to read table count", err)
	}
	tables := make([]TableType, count)
	for i := uint32(0); i < count; i++ {
		tables[i], err = readTableType(cur)
		if err != nil {
			return nil, err
		}
	}
	return tables, nil
}

func parseMemorySection(cur *binary.Cursor) ([]MemoryType, error) {
	count, err := cur.ReadVarU32()
	if err != nil {
		return nil, newErr(PhaseMemory, KindDecode, cur.Position(), "failed to read memory count", err)
	}
	mems := make([]MemoryType, count)
	for i := uint32(0); i < count; i++ {
		mems[i], err = readMemoryType(cur)
		if err != nil {
			return nil, err
		}
	}
	return mems, nil
}

func parseGlobalSection(cur *binary.Cursor) ([]Global, error) {
	count, err := cur.ReadVarU32()
	if err != nil {
		return nil, newErr(PhaseGlobal, KindDecode, cur.Position(), "failed to read global count", err)
	}
	globals := make([]Global, count)
	for i := uint32(0); i < count; i++ {
		gt, err := readGlobalType(cur)
		if err != nil {
			return nil, err
		}
		init, err := ReadConstExpr(cur)
		if err != nil {
			return nil, err
		}
		globals[i] = Global{Type: gt, Init: init}
	}
	return globals, nil
}

func parseExportSection(cur *binary.Cursor) ([]Export, error) {
	count, err := cur.ReadVarU32()
	if err != nil {
		return nil, newErr(PhaseExport, KindDecode, cur.Position(), "failed to read export count", err)
	}
	exports := make([]Export, count)
	for i := uint32(0); i < count; i++ {
		name, err := cur.ReadName()
		if err != nil {
			return nil, newErr(PhaseExport, KindUTF8, cur.Position(), "failed to read export name", err)
		}
		kind, err := cur.ReadByte()
		if err != nil {
			return nil, newErr(PhaseExport, KindDecode, cur.Position(), "failed to read export kind", err)
		}
		switch kind {
		case KindFunc, KindTable, KindMemory, KindGlobal:
		default:
			return nil, newErr(PhaseExport, KindInvalidExportKind, cur.Position(), fmt.Sprintf("unknown export kind %d", kind), nil)
		}
		idx, err := cur.ReadVarU32()
		if err != nil {
			return nil, newErr(PhaseExport, KindDecode, cur.Position(), "failed to read export index", err)
		}
		exports[i] = Export{Name: name, Kind: kind, Idx: idx}
	}
	return exports, nil
}

func parseStartSection(cur *binary.Cursor) (*uint32, error) {
	idx, err := cur.ReadVarU32()
	if err != nil {
		return nil, newErr(PhaseStart, KindDecode, cur.Position(), "failed to read start function index", err)
	}
	return &idx, nil
}

func parseElementSection(cur *binary.Cursor) ([]Element, error) {
	count, err := cur.ReadVarU32()
	if err != nil {
		return nil, newErr(PhaseElement, KindDecode, cur.Position(), "failed to read element count", err)
	}
	elems := make([]Element, count)
	for i := uint32(0); i < count; i++ {
		el, err := readElementSegment(cur)
		if err != nil {
			return nil, err
		}
		elems[i] = el
	}
	return elems, nil
}

// readElementSegment decodes one element segment in three passes: the
// flags byte together with whatever table index and offset expression
// they imply, then the elemkind/reftype tag (only present for three of
// the four flag groups), and finally the init vector (function indices
// or init expressions, depending on the flags).
func readElementSegment(cur *binary.Cursor) (Element, error) {
	flags, err := cur.ReadVarU32()
	if err != nil {
		return Element{}, newErr(PhaseElement, KindDecode, cur.Position(), "failed to read element flags", err)
	}
	if flags > 7 {
		return Element{}, newErr(PhaseElement, KindInvalidFlags, cur.Position(), fmt.Sprintf("unsupported element flags %d", flags), nil)
	}

	el := Element{Flags: flags, Type: ValFuncRef}
	usesExprs := flags&0x4 != 0
	mod4 := flags % 4

	switch mod4 {
	case 0:
		el.TableIdx = 0
		el.Offset, err = ReadConstExpr(cur)
		if err != nil {
			return Element{}, err
		}
	case 1:
		// passive
	case 2:
		el.TableIdx, err = cur.ReadVarU32()
		if err != nil {
			return Element{}, newErr(PhaseElement, KindDecode, cur.Position(), "failed to read element table index", err)
		}
		el.Offset, err = ReadConstExpr(cur)
		if err != nil {
			return Element{}, err
		}
	case 3:
		// declarative
	}

	if mod4 != 0 {
		if !usesExprs {
			kind, err := cur.ReadByte()
			if err != nil {
				return Element{}, newErr(PhaseElement, KindDecode, cur.Position(), "failed to read element kind", err)
			}
			if kind != KindFunc {
				return Element{}, newErr(PhaseElement, KindInvalidElemType, cur.Position(), fmt.Sprintf("unsupported elemkind %d", kind), nil)
			}
			el.ElemKind = kind
		} else {
			rt, tag, err := readRefType(cur)
			if err != nil {
				return Element{}, err
			}
			el.RefType = &rt
			el.Type = ValType(tag)
		}
	}

	n, err := cur.ReadVarU32()
	if err != nil {
		return Element{}, newErr(PhaseElement, KindDecode, cur.Position(), "failed to read element init count", err)
	}
	if !usesExprs {
		el.FuncIdxs = make([]uint32, n)
		for j := uint32(0); j < n; j++ {
			el.FuncIdxs[j], err = cur.ReadVarU32()
			if err != nil {
				return Element{}, newErr(PhaseElement, KindDecode, cur.Position(), "failed to read element func index", err)
			}
		}
	} else {
		el.Exprs = make([][]Instruction, n)
		for j := uint32(0); j < n; j++ {
			el.Exprs[j], err = ReadConstExpr(cur)
			if err != nil {
				return Element{}, err
			}
		}
	}

	return el, nil
}

func parseCodeSection(cur *binary.Cursor) ([]FuncBody, error) {
	count, err := cur.ReadVarU32()
	if err != nil {
		return nil, newErr(PhaseCode, KindDecode, cur.Position(), "failed to read code entry count", err)
	}
	bodies := make([]FuncBody, count)
	for i := uint32(0); i < count; i++ {
		size, err := cur.ReadVarU32()
		if err != nil {
			return nil, newErr(PhaseCode, KindDecode, cur.Position(), "failed to read function body size", err)
		}
		bodyCur, err := cur.SliceWith(int(size))
		if err != nil {
			return nil, newErr(PhaseCode, KindSectionOutOfBounds, cur.Position(), "function body size exceeds remaining input", err)
		}
		fb, err := readFuncBody(bodyCur)
		if err != nil {
			return nil, err
		}
		if bodyCur.Remaining() != 0 {
			return nil, newErr(PhaseCode, KindSectionOutOfBounds, bodyCur.Position(),
				fmt.Sprintf("function body has %d trailing bytes", bodyCur.Remaining()), nil)
		}
		bodies[i] = fb
	}
	return bodies, nil
}

func readFuncBody(cur *binary.Cursor) (FuncBody, error) {
	localGroupCount, err := cur.ReadVarU32()
	if err != nil {
		return FuncBody{}, newErr(PhaseCode, KindDecode, cur.Position(), "failed to read local group count", err)
	}
	locals := make([]LocalEntry, localGroupCount)
	for i := uint32(0); i < localGroupCount; i++ {
		n, err := cur.ReadVarU32()
		if err != nil {
			return FuncBody{}, newErr(PhaseCode, KindDecode, cur.Position(), "failed to read local group size", err)
		}
		ext, err := readExtValType(cur)
		if err != nil {
			return FuncBody{}, err
		}
		entry := LocalEntry{Count: n, ValType: ext.ValType}
		if ext.Kind == ExtValKindRef {
			entry.ExtType = &ext
		}
		locals[i] = entry
	}

	body, err := ReadExpr(cur)
	if err != nil {
		return FuncBody{}, err
	}

	return FuncBody{Locals: locals, Body: body}, nil
}

func parseDataSection(cur *binary.Cursor) ([]DataSegment, error) {
	count, err := cur.ReadVarU32()
	if err != nil {
		return nil, newErr(PhaseData, KindDecode, cur.Position(), "failed to read data segment count", err)
	}
	segs := make([]DataSegment, count)
	for i := uint32(0); i < count; i++ {
		flags, err := cur.ReadVarU32()
		if err != nil {
			return nil, newErr(PhaseData, KindDecode, cur.Position(), "failed to read data segment flags", err)
		}
		seg := DataSegment{Flags: flags}
		switch flags {
		case 0:
			seg.MemIdx = 0
			seg.Offset, err = ReadConstExpr(cur)
		case 1:
			// passive
		case 2:
			seg.MemIdx, err = cur.ReadVarU32()
			if err != nil {
				return nil, newErr(PhaseData, KindDecode, cur.Position(), "failed to read data segment memory index", err)
			}
			seg.Offset, err = ReadConstExpr(cur)
		default:
			return nil, newErr(PhaseData, KindInvalidFlags, cur.Position(), fmt.Sprintf("unsupported data segment flags %d", flags), nil)
		}
		if err != nil {
			return nil, err
		}
		n, err := cur.ReadVarU32()
		if err != nil {
			return nil, newErr(PhaseData, KindDecode, cur.Position(), "failed to read data segment length", err)
		}
		seg.Init, err = cur.ReadBytes(int(n))
		if err != nil {
			return nil, newErr(PhaseData, KindDecode, cur.Position(), "failed to read data segment bytes", err)
		}
		segs[i] = seg
	}
	return segs, nil
}

func parseDataCountSection(cur *binary.Cursor) (*uint32, error) {
	n, err := cur.ReadVarU32()
	if err != nil {
		return nil, newErr(PhaseSection, KindDecode, cur.Position(), "failed to read data count", err)
	}
	return &n, nil
}
