package wasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juzi5201314/wasmcat/internal/binary"
)

func TestReadConstExprI32(t *testing.T) {
	// i32.const 42; end
	cur := binary.NewCursor([]byte{OpI32Const, 0x2A, OpEnd})
	instrs, err := ReadConstExpr(cur)
	require.NoError(t, err)
	require.Len(t, instrs, 2)
	assert.Equal(t, OpI32Const, instrs[0].Opcode)
	assert.Equal(t, I32Imm{Value: 42}, instrs[0].Imm)
	assert.Equal(t, OpEnd, instrs[1].Opcode)
	assert.True(t, instrs[0].IsConst())
}

func TestReadConstExprRejectsNonConst(t *testing.T) {
	// i32.add is not valid in a constant expression.
	cur := binary.NewCursor([]byte{OpI32Add, OpEnd})
	_, err := ReadConstExpr(cur)
	assert.Error(t, err)
}

func TestReadConstExprGlobalGet(t *testing.T) {
	cur := binary.NewCursor([]byte{OpGlobalGet, 0x03, OpEnd})
	instrs, err := ReadConstExpr(cur)
	require.NoError(t, err)
	require.Len(t, instrs, 2)
	assert.Equal(t, GlobalImm{GlobalIdx: 3}, instrs[0].Imm)
}

func TestReadExprBalancesNestedBlocks(t *testing.T) {
	// block (void)
	//   nop
	// end
	// end  <- closes the outer function body expression
	cur := binary.NewCursor([]byte{
		OpBlock, 0x40,
		OpNop,
		OpEnd,
		OpEnd,
	})
	instrs, err := ReadExpr(cur)
	require.NoError(t, err)
	require.Len(t, instrs, 4)
	assert.Equal(t, OpBlock, instrs[0].Opcode)
	assert.Equal(t, BlockImm{Type: -64}, instrs[0].Imm)
	assert.Equal(t, OpEnd, instrs[3].Opcode)
}

func TestReadExprDelegateClosesTry(t *testing.T) {
	// try (void)
	//   nop
	// delegate 0
	// end  <- closes the function body expression
	cur := binary.NewCursor([]byte{
		OpTry, 0x40,
		OpNop,
		OpDelegate, 0x00,
		OpEnd,
	})
	instrs, err := ReadExpr(cur)
	require.NoError(t, err)
	require.Len(t, instrs, 4)
	assert.Equal(t, OpDelegate, instrs[2].Opcode)
}

func TestDecodeMemArgWithAlignAndOffset(t *testing.T) {
	// i32.load align=2 offset=16
	cur := binary.NewCursor([]byte{OpI32Load, 0x02, 0x10, OpEnd})
	instrs, err := ReadExpr(cur)
	require.NoError(t, err)
	require.Len(t, instrs, 2)
	mem, ok := instrs[0].Imm.(MemoryImm)
	require.True(t, ok)
	assert.Equal(t, uint32(2), mem.Align)
	assert.Equal(t, uint64(16), mem.Offset)
}

func TestDecodeSIMDV128Const(t *testing.T) {
	payload := make([]byte, 16)
	for i := range payload {
		payload[i] = byte(i)
	}
	data := append([]byte{OpPrefixSIMD, byte(SimdV128Const)}, payload...)
	data = append(data, OpEnd)
	cur := binary.NewCursor(data)
	instrs, err := ReadExpr(cur)
	require.NoError(t, err)
	require.Len(t, instrs, 2)
	simd, ok := instrs[0].Imm.(SIMDImm)
	require.True(t, ok)
	require.NotNil(t, simd.V128)
	assert.Equal(t, uint64(0x0706050403020100), simd.V128.Lo)
	assert.Equal(t, uint64(0x0f0e0d0c0b0a0908), simd.V128.Hi)
	assert.True(t, instrs[0].IsConst())
}

func TestDecodeSIMDShuffleLanes(t *testing.T) {
	lanes := make([]byte, 16)
	for i := range lanes {
		lanes[i] = byte(15 - i)
	}
	data := append([]byte{OpPrefixSIMD, byte(SimdI8x16Shuffle)}, lanes...)
	data = append(data, OpEnd)
	cur := binary.NewCursor(data)
	instrs, err := ReadExpr(cur)
	require.NoError(t, err)
	require.Len(t, instrs, 2)
	simd, ok := instrs[0].Imm.(SIMDImm)
	require.True(t, ok)
	assert.Equal(t, lanes, simd.ShuffleLanes)
	assert.False(t, instrs[0].IsConst())
}

func TestDecodeBrTable(t *testing.T) {
	// br_table with two labels and a default
	cur := binary.NewCursor([]byte{OpBrTable, 0x02, 0x00, 0x01, 0x02, OpEnd})
	instrs, err := ReadExpr(cur)
	require.NoError(t, err)
	bt, ok := instrs[0].Imm.(BrTableImm)
	require.True(t, ok)
	assert.Equal(t, []uint32{0, 1}, bt.Labels)
	assert.Equal(t, uint32(2), bt.Default)
}

func TestDecodeUnknownOpcodeErrors(t *testing.T) {
	cur := binary.NewCursor([]byte{0xFF})
	_, err := ReadExpr(cur)
	assert.Error(t, err)
}

func TestReadBlockTypeRejectsAbstractHeapForm(t *testing.T) {
	// 0x73 is nullfuncref: a valid heap-type byte, but not one of the
	// plain value types or 0x40 a block type accepts, and it decodes to a
	// negative s33 rather than a non-negative type index.
	cur := binary.NewCursor([]byte{OpBlock, 0x73})
	_, err := ReadExpr(cur)
	require.Error(t, err)
	var werr *Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, KindInvalidBlockType, werr.Kind)
}

func TestReadBlockTypeAcceptsPlainValType(t *testing.T) {
	cur := binary.NewCursor([]byte{OpBlock, byte(ValI32), OpEnd, OpEnd})
	instrs, err := ReadExpr(cur)
	require.NoError(t, err)
	assert.Equal(t, BlockImm{Type: -1}, instrs[0].Imm)
}

func TestReadBlockTypeAcceptsTypeIndex(t *testing.T) {
	cur := binary.NewCursor([]byte{OpBlock, 0x05, OpEnd, OpEnd})
	instrs, err := ReadExpr(cur)
	require.NoError(t, err)
	assert.Equal(t, BlockImm{Type: 5}, instrs[0].Imm)
}
