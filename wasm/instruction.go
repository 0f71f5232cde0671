package wasm

import (
	stdbinary "encoding/binary"
	"fmt"

	"github.com/juzi5201314/wasmcat/internal/binary"
)

// Instruction represents a single decoded WebAssembly instruction: an
// opcode (the single byte, or the prefix byte for the 0xFC/0xFD/0xFE/0xFB
// families) plus a typed immediate payload specific to that opcode.
type Instruction struct {
	Imm    interface{}
	Opcode byte
}

// IsConst reports whether this instruction is one of the opcodes allowed
// to appear in a constant expression.
func (i Instruction) IsConst() bool {
	switch i.Opcode {
	case OpI32Const, OpI64Const, OpF32Const, OpF64Const, OpGlobalGet,
		OpRefFunc, OpRefNull, OpRefIsNull:
		return true
	case OpPrefixSIMD:
		simd, ok := i.Imm.(SIMDImm)
		return ok && simd.SubOpcode == SimdV128Const
	}
	return false
}

// BlockImm holds the block type for block, loop, if, try, and try_table
// instructions: -64 for void, one of the negative single-valtype
// encodings, or a non-negative function type index.
type BlockImm struct {
	Type int64
}

// BranchImm holds the label index for br, br_if, rethrow, delegate,
// br_on_null, and br_on_non_null.
type BranchImm struct {
	LabelIdx uint32
}

// BrTableImm holds the label table for br_table.
type BrTableImm struct {
	Labels  []uint32
	Default uint32
}

// CallImm holds the function index for call and return_call.
type CallImm struct {
	FuncIdx uint32
}

// CallIndirectImm holds type and table indices for call_indirect and
// return_call_indirect.
type CallIndirectImm struct {
	TypeIdx  uint32
	TableIdx uint32
}

// LocalImm holds the local index for local.get/set/tee.
type LocalImm struct {
	LocalIdx uint32
}

// GlobalImm holds the global index for global.get/set.
type GlobalImm struct {
	GlobalIdx uint32
}

// MemoryImm holds memory access parameters for load and store instructions.
type MemoryImm struct {
	Offset uint64
	Align  uint32
	MemIdx uint32
}

// MemoryIdxImm holds the memory index for memory.size and memory.grow.
type MemoryIdxImm struct {
	MemIdx uint32
}

// I32Imm holds the constant value for i32.const.
type I32Imm struct {
	Value int32
}

// I64Imm holds the constant value for i64.const.
type I64Imm struct {
	Value int64
}

// F32Imm holds the constant value for f32.const.
type F32Imm struct {
	Value float32
}

// F64Imm holds the constant value for f64.const.
type F64Imm struct {
	Value float64
}

// MiscImm holds the sub-opcode and operands for 0xFC-prefixed instructions
// (saturating truncation, bulk memory, table ops).
type MiscImm struct {
	Operands  []uint32
	SubOpcode uint32
}

// TableImm holds the table index for table.get/table.set.
type TableImm struct {
	TableIdx uint32
}

// RefNullImm holds the heap type operand for ref.null.
type RefNullImm struct {
	HeapType int64
}

// RefFuncImm holds the function index for ref.func.
type RefFuncImm struct {
	FuncIdx uint32
}

// SelectTypeImm holds the value type(s) for typed select.
type SelectTypeImm struct {
	Types    []ValType
	ExtTypes []ExtValType
}

// I128 is a 128-bit value stored as two 64-bit halves, used for the
// v128.const immediate. Kept as a struct rather than a [16]byte so it
// compares equal with ==/reflect.DeepEqual the same way the scalar const
// immediates (I32Imm, I64Imm, ...) do, rather than requiring a slice
// comparison.
type I128 struct {
	Lo uint64
	Hi uint64
}

// SIMDImm holds the immediates for 0xFD-prefixed (SIMD) instructions. Only
// one of MemArg/LaneIdx/V128/ShuffleLanes is populated, depending on
// SubOpcode's shape; most SIMD opcodes (plain arithmetic) populate none of
// them.
type SIMDImm struct {
	MemArg       *MemoryImm
	LaneIdx      *byte
	V128         *I128
	ShuffleLanes []byte
	SubOpcode    uint32
}

// AtomicImm holds the immediates for 0xFE-prefixed (atomics/threads)
// instructions.
type AtomicImm struct {
	MemArg    *MemoryImm
	SubOpcode uint32
}

// GCImm holds the immediates for 0xFB-prefixed (GC) instructions. Which
// fields are meaningful depends on SubOpcode.
type GCImm struct {
	SubOpcode uint32
	TypeIdx   uint32
	FieldIdx  uint32
	TypeIdx2  uint32
	DataIdx   uint32
	ElemIdx   uint32
	Size      uint32
	LabelIdx  uint32
	HeapType  int64
	HeapType2 int64
	CastFlags byte
}

// ThrowImm holds the tag index for catch and throw.
type ThrowImm struct {
	TagIdx uint32
}

// CallRefImm holds the type index for call_ref and return_call_ref.
type CallRefImm struct {
	TypeIdx uint32
}

// CatchClause represents a single catch clause of try_table.
type CatchClause struct {
	Kind     byte // CatchKindCatch, CatchKindCatchRef, CatchKindCatchAll, CatchKindCatchAllRef
	TagIdx   uint32
	LabelIdx uint32
}

// TryTableImm holds the immediates for try_table.
type TryTableImm struct {
	Catches   []CatchClause
	BlockType int64
}

// opensBlock reports whether op opens a structured block whose matching
// terminator (end, or delegate for try) closes it. ReadExpr tracks this to
// know when a top-level expression's matching end has been reached.
func opensBlock(op byte) bool {
	switch op {
	case OpBlock, OpLoop, OpIf, OpTry, OpTryTable:
		return true
	}
	return false
}

// readBlockType decodes a block type: peek the next byte, and if it is
// 0x40 consume it as Empty, else if it is one of the plain value-type
// bytes consume it as that Type. Otherwise fall back to a full s33 read;
// only a non-negative result is a valid FuncType index here, since block
// types do not carry the abstract heap-type forms a standalone heap type
// read would accept.
func readBlockType(cur *binary.Cursor) (int64, error) {
	peek, err := cur.Peek()
	if err != nil {
		return 0, err
	}

	switch ValType(peek) {
	case 0x40:
		if _, err := cur.ReadByte(); err != nil {
			return 0, err
		}
		return int64(BlockTypeVoid), nil
	case ValI32, ValI64, ValF32, ValF64, ValV128, ValFuncRef, ValExtern:
		if _, err := cur.ReadByte(); err != nil {
			return 0, err
		}
		return valtypeBlockType(ValType(peek)), nil
	}

	bt, err := cur.ReadVarS33()
	if err != nil {
		return 0, err
	}
	if bt < 0 {
		return 0, newErr(PhaseExpr, KindInvalidBlockType, cur.Position(),
			fmt.Sprintf("negative block type %d is not a valid type index", bt), nil)
	}
	return bt, nil
}

// valtypeBlockType maps a plain value-type byte to the signed s33 value
// its single-byte LEB128 encoding represents, matching what ReadVarS33
// would have returned for the same byte.
func valtypeBlockType(vt ValType) int64 {
	switch vt {
	case ValI32:
		return -1
	case ValI64:
		return -2
	case ValF32:
		return -3
	case ValF64:
		return -4
	case ValV128:
		return -5
	case ValFuncRef:
		return -16
	case ValExtern:
		return -17
	}
	return 0
}

// ReadExpr decodes instructions until the end of a balanced expression is
// reached: block/loop/if/try/try_table increase nesting, end (or delegate,
// which doubles as a try terminator) decreases it, and the expression
// closes when the depth returns to -1, i.e. the outermost end/delegate is
// consumed without having been preceded by a still-open nested block.
func ReadExpr(cur *binary.Cursor) ([]Instruction, error) {
	var out []Instruction
	depth := 0
	for {
		instr, err := decodeOneInstruction(cur)
		if err != nil {
			if _, ok := err.(*Error); !ok {
				err = newErr(PhaseExpr, KindDecode, cur.Position(), "failed to decode instruction", err)
			}
			return nil, err
		}
		out = append(out, instr)
		switch {
		case opensBlock(instr.Opcode):
			depth++
		case instr.Opcode == OpEnd:
			if depth == 0 {
				return out, nil
			}
			depth--
		case instr.Opcode == OpDelegate:
			if depth == 0 {
				return out, nil
			}
			depth--
		}
	}
}

// ReadConstExpr decodes a constant expression: a flat (non-nested)
// instruction sequence terminated by a single end, where every instruction
// but the terminator must satisfy Instruction.IsConst.
func ReadConstExpr(cur *binary.Cursor) ([]Instruction, error) {
	var out []Instruction
	for {
		instr, err := decodeOneInstruction(cur)
		if err != nil {
			if _, ok := err.(*Error); !ok {
				err = newErr(PhaseExpr, KindDecode, cur.Position(), "failed to decode instruction", err)
			}
			return nil, err
		}
		if instr.Opcode == OpEnd {
			out = append(out, instr)
			return out, nil
		}
		if !instr.IsConst() {
			return nil, newErr(PhaseExpr, KindInvalidConstExpr, cur.Position(),
				fmt.Sprintf("opcode 0x%02x is not valid in a constant expression", instr.Opcode), nil)
		}
		out = append(out, instr)
	}
}

// decodeOneInstruction reads a single instruction (opcode plus immediate)
// from cur.
func decodeOneInstruction(cur *binary.Cursor) (Instruction, error) {
	op, err := cur.ReadByte()
	if err != nil {
		return Instruction{}, err
	}

	instr := Instruction{Opcode: op}

	switch op {
	case OpBlock, OpLoop, OpIf, OpTry:
		bt, err := readBlockType(cur)
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = BlockImm{Type: bt}

	case OpCatch:
		tagIdx, err := cur.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = ThrowImm{TagIdx: tagIdx}

	case OpThrow:
		tagIdx, err := cur.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = ThrowImm{TagIdx: tagIdx}

	case OpRethrow, OpDelegate:
		labelIdx, err := cur.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = BranchImm{LabelIdx: labelIdx}

	case OpTryTable:
		bt, err := readBlockType(cur)
		if err != nil {
			return Instruction{}, err
		}
		catchCount, err := cur.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		catches := make([]CatchClause, catchCount)
		for i := uint32(0); i < catchCount; i++ {
			kind, err := cur.ReadByte()
			if err != nil {
				return Instruction{}, err
			}
			var tagIdx uint32
			if kind == CatchKindCatch || kind == CatchKindCatchRef {
				tagIdx, err = cur.ReadVarU32()
				if err != nil {
					return Instruction{}, err
				}
			}
			labelIdx, err := cur.ReadVarU32()
			if err != nil {
				return Instruction{}, err
			}
			catches[i] = CatchClause{Kind: kind, TagIdx: tagIdx, LabelIdx: labelIdx}
		}
		instr.Imm = TryTableImm{BlockType: bt, Catches: catches}

	case OpBr, OpBrIf:
		idx, err := cur.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = BranchImm{LabelIdx: idx}

	case OpBrTable:
		count, err := cur.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		labels := make([]uint32, count)
		for i := uint32(0); i < count; i++ {
			labels[i], err = cur.ReadVarU32()
			if err != nil {
				return Instruction{}, err
			}
		}
		def, err := cur.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = BrTableImm{Labels: labels, Default: def}

	case OpCall, OpReturnCall:
		idx, err := cur.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = CallImm{FuncIdx: idx}

	case OpCallIndirect, OpReturnCallIndirect:
		typeIdx, err := cur.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		tableIdx, err := cur.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = CallIndirectImm{TypeIdx: typeIdx, TableIdx: tableIdx}

	case OpCallRef, OpReturnCallRef:
		typeIdx, err := cur.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = CallRefImm{TypeIdx: typeIdx}

	case OpLocalGet, OpLocalSet, OpLocalTee:
		idx, err := cur.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = LocalImm{LocalIdx: idx}

	case OpGlobalGet, OpGlobalSet:
		idx, err := cur.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = GlobalImm{GlobalIdx: idx}

	case OpTableGet, OpTableSet:
		idx, err := cur.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = TableImm{TableIdx: idx}

	case OpI32Load, OpI64Load, OpF32Load, OpF64Load,
		OpI32Load8S, OpI32Load8U, OpI32Load16S, OpI32Load16U,
		OpI64Load8S, OpI64Load8U, OpI64Load16S, OpI64Load16U, OpI64Load32S, OpI64Load32U,
		OpI32Store, OpI64Store, OpF32Store, OpF64Store,
		OpI32Store8, OpI32Store16, OpI64Store8, OpI64Store16, OpI64Store32:
		memImm, err := readMemArg(cur)
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = memImm

	case OpMemorySize, OpMemoryGrow:
		memIdx, err := cur.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = MemoryIdxImm{MemIdx: memIdx}

	case OpI32Const:
		val, err := cur.ReadVarS32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = I32Imm{Value: val}

	case OpI64Const:
		val, err := cur.ReadVarS64()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = I64Imm{Value: val}

	case OpF32Const:
		val, err := cur.ReadF32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = F32Imm{Value: val}

	case OpF64Const:
		val, err := cur.ReadF64()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = F64Imm{Value: val}

	case OpRefNull:
		heapType, err := cur.ReadVarS33()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = RefNullImm{HeapType: heapType}

	case OpRefFunc:
		funcIdx, err := cur.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = RefFuncImm{FuncIdx: funcIdx}

	case OpBrOnNull, OpBrOnNonNull:
		labelIdx, err := cur.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = BranchImm{LabelIdx: labelIdx}

	case OpSelectType:
		count, err := cur.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		types := make([]ValType, count)
		extTypes := make([]ExtValType, count)
		hasExtTypes := false
		for i := uint32(0); i < count; i++ {
			t, err := cur.ReadByte()
			if err != nil {
				return Instruction{}, err
			}
			types[i] = ValType(t)
			if t == byte(ValRefNull) || t == byte(ValRef) {
				heapType, err := cur.ReadVarS33()
				if err != nil {
					return Instruction{}, err
				}
				extTypes[i] = ExtValType{
					Kind:    ExtValKindRef,
					ValType: ValType(t),
					RefType: RefType{Nullable: t == byte(ValRefNull), HeapType: heapType},
				}
				hasExtTypes = true
			} else {
				extTypes[i] = ExtValType{Kind: ExtValKindSimple, ValType: ValType(t)}
			}
		}
		imm := SelectTypeImm{Types: types}
		if hasExtTypes {
			imm.ExtTypes = extTypes
		}
		instr.Imm = imm

	// Instructions with no immediates.
	case OpUnreachable, OpNop, OpElse, OpEnd, OpReturn, OpDrop, OpSelect, OpRefIsNull,
		OpRefAsNonNull, OpRefEq, OpCatchAll, OpThrowRef,
		OpI32Eqz, OpI32Eq, OpI32Ne, OpI32LtS, OpI32LtU, OpI32GtS, OpI32GtU,
		OpI32LeS, OpI32LeU, OpI32GeS, OpI32GeU,
		OpI64Eqz, OpI64Eq, OpI64Ne, OpI64LtS, OpI64LtU, OpI64GtS, OpI64GtU,
		OpI64LeS, OpI64LeU, OpI64GeS, OpI64GeU,
		OpF32Eq, OpF32Ne, OpF32Lt, OpF32Gt, OpF32Le, OpF32Ge,
		OpF64Eq, OpF64Ne, OpF64Lt, OpF64Gt, OpF64Le, OpF64Ge,
		OpI32Clz, OpI32Ctz, OpI32Popcnt, OpI32Add, OpI32Sub, OpI32Mul,
		OpI32DivS, OpI32DivU, OpI32RemS, OpI32RemU, OpI32And, OpI32Or, OpI32Xor,
		OpI32Shl, OpI32ShrS, OpI32ShrU, OpI32Rotl, OpI32Rotr,
		OpI64Clz, OpI64Ctz, OpI64Popcnt, OpI64Add, OpI64Sub, OpI64Mul,
		OpI64DivS, OpI64DivU, OpI64RemS, OpI64RemU, OpI64And, OpI64Or, OpI64Xor,
		OpI64Shl, OpI64ShrS, OpI64ShrU, OpI64Rotl, OpI64Rotr,
		OpF32Abs, OpF32Neg, OpF32Ceil, OpF32Floor, OpF32Trunc, OpF32Nearest, OpF32Sqrt,
		OpF32Add, OpF32Sub, OpF32Mul, OpF32Div, OpF32Min, OpF32Max, OpF32Copysign,
		OpF64Abs, OpF64Neg, OpF64Ceil, OpF64Floor, OpF64Trunc, OpF64Nearest, OpF64Sqrt,
		OpF64Add, OpF64Sub, OpF64Mul, OpF64Div, OpF64Min, OpF64Max, OpF64Copysign,
		OpI32WrapI64, OpI32TruncF32S, OpI32TruncF32U, OpI32TruncF64S, OpI32TruncF64U,
		OpI64ExtendI32S, OpI64ExtendI32U, OpI64TruncF32S, OpI64TruncF32U,
		OpI64TruncF64S, OpI64TruncF64U,
		OpF32ConvertI32S, OpF32ConvertI32U, OpF32ConvertI64S, OpF32ConvertI64U, OpF32DemoteF64,
		OpF64ConvertI32S, OpF64ConvertI32U, OpF64ConvertI64S, OpF64ConvertI64U, OpF64PromoteF32,
		OpI32ReinterpretF32, OpI64ReinterpretF64, OpF32ReinterpretI32, OpF64ReinterpretI64,
		OpI32Extend8S, OpI32Extend16S, OpI64Extend8S, OpI64Extend16S, OpI64Extend32S:
		// No immediate.

	case OpPrefixMisc:
		subOp, err := cur.ReadVarU32()
		if err != nil {
			return Instruction{}, err
		}
		imm := MiscImm{SubOpcode: subOp}
		switch subOp {
		case MiscI32TruncSatF32S, MiscI32TruncSatF32U,
			MiscI32TruncSatF64S, MiscI32TruncSatF64U,
			MiscI64TruncSatF32S, MiscI64TruncSatF32U,
			MiscI64TruncSatF64S, MiscI64TruncSatF64U:
			// No operands.
		case MiscMemoryInit:
			dataidx, err := cur.ReadVarU32()
			if err != nil {
				return Instruction{}, err
			}
			memidx, err := cur.ReadVarU32()
			if err != nil {
				return Instruction{}, err
			}
			imm.Operands = []uint32{dataidx, memidx}
		case MiscDataDrop:
			dataidx, err := cur.ReadVarU32()
			if err != nil {
				return Instruction{}, err
			}
			imm.Operands = []uint32{dataidx}
		case MiscMemoryCopy:
			dstMem, err := cur.ReadVarU32()
			if err != nil {
				return Instruction{}, err
			}
			srcMem, err := cur.ReadVarU32()
			if err != nil {
				return Instruction{}, err
			}
			imm.Operands = []uint32{dstMem, srcMem}
		case MiscMemoryFill:
			memIdx, err := cur.ReadVarU32()
			if err != nil {
				return Instruction{}, err
			}
			imm.Operands = []uint32{memIdx}
		case MiscTableInit:
			elemidx, err := cur.ReadVarU32()
			if err != nil {
				return Instruction{}, err
			}
			tableidx, err := cur.ReadVarU32()
			if err != nil {
				return Instruction{}, err
			}
			imm.Operands = []uint32{elemidx, tableidx}
		case MiscElemDrop:
			elemidx, err := cur.ReadVarU32()
			if err != nil {
				return Instruction{}, err
			}
			imm.Operands = []uint32{elemidx}
		case MiscTableCopy:
			dst, err := cur.ReadVarU32()
			if err != nil {
				return Instruction{}, err
			}
			src, err := cur.ReadVarU32()
			if err != nil {
				return Instruction{}, err
			}
			imm.Operands = []uint32{dst, src}
		case MiscTableGrow, MiscTableSize, MiscTableFill:
			tableidx, err := cur.ReadVarU32()
			if err != nil {
				return Instruction{}, err
			}
			imm.Operands = []uint32{tableidx}
		case MiscMemoryDiscard:
			memidx, err := cur.ReadVarU32()
			if err != nil {
				return Instruction{}, err
			}
			imm.Operands = []uint32{memidx}
		default:
			return Instruction{}, newErr(PhaseExpr, KindUnexpectedPrefix, cur.Position(),
				fmt.Sprintf("unknown 0xFC sub-opcode: 0x%x", subOp), nil)
		}
		instr.Imm = imm

	case OpPrefixSIMD:
		imm, err := decodeSIMDImmediate(cur)
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = imm

	case OpPrefixAtomic:
		imm, err := decodeAtomicImmediate(cur)
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = imm

	case OpPrefixGC:
		imm, err := decodeGCImmediate(cur)
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = imm

	default:
		return Instruction{}, newErr(PhaseExpr, KindInvalidInstruction, cur.Position(),
			fmt.Sprintf("unknown opcode: 0x%02x", op), nil)
	}

	return instr, nil
}

func decodeSIMDImmediate(cur *binary.Cursor) (SIMDImm, error) {
	subOp, err := cur.ReadVarU32()
	if err != nil {
		return SIMDImm{}, err
	}

	imm := SIMDImm{SubOpcode: subOp}

	switch {
	case subOp <= SimdV128Load64Splat || subOp == SimdV128Store:
		memArg, err := readMemArg(cur)
		if err != nil {
			return SIMDImm{}, err
		}
		imm.MemArg = &memArg

	case subOp == SimdV128Const:
		raw, err := cur.ReadBytes(16)
		if err != nil {
			return SIMDImm{}, err
		}
		imm.V128 = &I128{
			Lo: stdbinary.LittleEndian.Uint64(raw[0:8]),
			Hi: stdbinary.LittleEndian.Uint64(raw[8:16]),
		}

	case subOp == SimdI8x16Shuffle:
		raw, err := cur.ReadBytes(16)
		if err != nil {
			return SIMDImm{}, err
		}
		imm.ShuffleLanes = raw

	case subOp >= SimdI8x16ExtractLaneS && subOp <= SimdF64x2ReplaceLane:
		b, err := cur.ReadByte()
		if err != nil {
			return SIMDImm{}, err
		}
		imm.LaneIdx = &b

	case subOp >= SimdV128Load8Lane && subOp <= SimdV128Store64Lane:
		memArg, err := readMemArg(cur)
		if err != nil {
			return SIMDImm{}, err
		}
		imm.MemArg = &memArg
		b, err := cur.ReadByte()
		if err != nil {
			return SIMDImm{}, err
		}
		imm.LaneIdx = &b

	case subOp == SimdV128Load32Zero || subOp == SimdV128Load64Zero:
		memArg, err := readMemArg(cur)
		if err != nil {
			return SIMDImm{}, err
		}
		imm.MemArg = &memArg

	default:
		// Plain arithmetic/comparison SIMD ops (including all relaxed-SIMD
		// opcodes) carry no immediate beyond the sub-opcode.
	}

	return imm, nil
}

func decodeAtomicImmediate(cur *binary.Cursor) (AtomicImm, error) {
	subOp, err := cur.ReadVarU32()
	if err != nil {
		return AtomicImm{}, err
	}

	imm := AtomicImm{SubOpcode: subOp}

	if subOp == AtomicFence {
		if _, err := cur.ReadByte(); err != nil { // reserved byte
			return AtomicImm{}, err
		}
	} else {
		memArg, err := readMemArg(cur)
		if err != nil {
			return AtomicImm{}, err
		}
		imm.MemArg = &memArg
	}

	return imm, nil
}

func decodeGCImmediate(cur *binary.Cursor) (GCImm, error) {
	subOp, err := cur.ReadVarU32()
	if err != nil {
		return GCImm{}, err
	}

	imm := GCImm{SubOpcode: subOp}

	switch subOp {
	case GCStructNew, GCStructNewDefault:
		imm.TypeIdx, err = cur.ReadVarU32()
		if err != nil {
			return GCImm{}, err
		}

	case GCStructGet, GCStructGetS, GCStructGetU, GCStructSet:
		imm.TypeIdx, err = cur.ReadVarU32()
		if err != nil {
			return GCImm{}, err
		}
		imm.FieldIdx, err = cur.ReadVarU32()
		if err != nil {
			return GCImm{}, err
		}

	case GCArrayNew, GCArrayNewDefault, GCArrayGet, GCArrayGetS, GCArrayGetU,
		GCArraySet, GCArrayFill:
		imm.TypeIdx, err = cur.ReadVarU32()
		if err != nil {
			return GCImm{}, err
		}

	case GCArrayNewFixed:
		imm.TypeIdx, err = cur.ReadVarU32()
		if err != nil {
			return GCImm{}, err
		}
		imm.Size, err = cur.ReadVarU32()
		if err != nil {
			return GCImm{}, err
		}

	case GCArrayNewData, GCArrayInitData:
		imm.TypeIdx, err = cur.ReadVarU32()
		if err != nil {
			return GCImm{}, err
		}
		imm.DataIdx, err = cur.ReadVarU32()
		if err != nil {
			return GCImm{}, err
		}

	case GCArrayNewElem, GCArrayInitElem:
		imm.TypeIdx, err = cur.ReadVarU32()
		if err != nil {
			return GCImm{}, err
		}
		imm.ElemIdx, err = cur.ReadVarU32()
		if err != nil {
			return GCImm{}, err
		}

	case GCArrayCopy:
		imm.TypeIdx, err = cur.ReadVarU32()
		if err != nil {
			return GCImm{}, err
		}
		imm.TypeIdx2, err = cur.ReadVarU32()
		if err != nil {
			return GCImm{}, err
		}

	case GCRefTest, GCRefTestNull, GCRefCast, GCRefCastNull:
		imm.HeapType, err = cur.ReadVarS33()
		if err != nil {
			return GCImm{}, err
		}

	case GCBrOnCast, GCBrOnCastFail:
		flags, err := cur.ReadByte()
		if err != nil {
			return GCImm{}, err
		}
		imm.CastFlags = flags
		imm.LabelIdx, err = cur.ReadVarU32()
		if err != nil {
			return GCImm{}, err
		}
		imm.HeapType, err = cur.ReadVarS33()
		if err != nil {
			return GCImm{}, err
		}
		imm.HeapType2, err = cur.ReadVarS33()
		if err != nil {
			return GCImm{}, err
		}

	case GCArrayLen, GCAnyConvertExtern, GCExternConvertAny,
		GCRefI31, GCI31GetS, GCI31GetU:
		// No immediates.

	default:
		return GCImm{}, newErr(PhaseExpr, KindUnexpectedPrefix, cur.Position(),
			fmt.Sprintf("unknown 0xFB sub-opcode: 0x%x", subOp), nil)
	}

	return imm, nil
}

// memArgMultiMemBit is bit 6 of a memarg's align byte, set when a separate
// memory index LEB128 follows (multi-memory proposal).
const memArgMultiMemBit = 0x40

func readMemArg(cur *binary.Cursor) (MemoryImm, error) {
	alignRaw, err := cur.ReadVarU32()
	if err != nil {
		return MemoryImm{}, err
	}

	var memIdx uint32
	if alignRaw&memArgMultiMemBit != 0 {
		memIdx, err = cur.ReadVarU32()
		if err != nil {
			return MemoryImm{}, err
		}
	}

	offset, err := cur.ReadVarU64()
	if err != nil {
		return MemoryImm{}, err
	}

	return MemoryImm{
		Align:  alignRaw &^ uint32(memArgMultiMemBit),
		Offset: offset,
		MemIdx: memIdx,
	}, nil
}
