package wasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juzi5201314/wasmcat/internal/binary"
)

func TestReadLimitsNoMax(t *testing.T) {
	cur := binary.NewCursor([]byte{LimitsNoMax, 0x01})
	limits, err := readLimits(cur, PhaseMemory)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), limits.Min)
	assert.Nil(t, limits.Max)
}

func TestReadLimitsHasMax(t *testing.T) {
	cur := binary.NewCursor([]byte{LimitsHasMax, 0x01, 0x0A})
	limits, err := readLimits(cur, PhaseMemory)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), limits.Min)
	require.NotNil(t, limits.Max)
	assert.Equal(t, uint32(10), *limits.Max)
}

func TestReadLimitsRejectsUnknownFlags(t *testing.T) {
	cur := binary.NewCursor([]byte{0x02, 0x01})
	_, err := readLimits(cur, PhaseMemory)
	assert.Error(t, err)
}

func TestParseTypeSectionRejectsNonFuncTag(t *testing.T) {
	cur := binary.NewCursor([]byte{0x01, 0x5E, 0x00, 0x00}) // array type tag, not func
	_, err := parseTypeSection(cur)
	require.Error(t, err)
	var werr *Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, KindInvalidTypeTag, werr.Kind)
}

func TestReadFuncTypeWithRefParams(t *testing.T) {
	// (param funcref (ref null 3)) (result i32)
	cur := binary.NewCursor([]byte{
		0x02,             // 2 params
		byte(ValFuncRef), // funcref
		byte(ValRefNull), 0x03, // (ref null 3)
		0x01,          // 1 result
		byte(ValI32), // i32
	})
	ft, err := readFuncType(cur)
	require.NoError(t, err)
	require.Len(t, ft.ExtParams, 2)
	assert.Equal(t, ExtValKindRef, ft.ExtParams[0].Kind)
	assert.Equal(t, HeapTypeFunc, ft.ExtParams[0].RefType.HeapType)
	assert.Equal(t, ExtValKindRef, ft.ExtParams[1].Kind)
	assert.Equal(t, int64(3), ft.ExtParams[1].RefType.HeapType)
	assert.True(t, ft.ExtParams[1].RefType.Nullable)
	assert.Equal(t, []ValType{ValI32}, ft.Results)
}

func TestReadElementSegmentActiveImplicitTable(t *testing.T) {
	// flags=0: active, table 0, offset=i32.const 0, funcidx vec [1, 2]
	cur := binary.NewCursor([]byte{
		0x00,
		OpI32Const, 0x00, OpEnd,
		0x02, 0x01, 0x02,
	})
	el, err := readElementSegment(cur)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), el.TableIdx)
	assert.Equal(t, []uint32{1, 2}, el.FuncIdxs)
	assert.Equal(t, ValFuncRef, el.Type)
	require.Len(t, el.Offset, 2)
}

func TestReadElementSegmentDeclarativeExprs(t *testing.T) {
	// flags=7: declarative, reftype=funcref, one expr: ref.func 0
	cur := binary.NewCursor([]byte{
		0x07,
		byte(ValFuncRef),
		0x01,
		OpRefFunc, 0x00, OpEnd,
	})
	el, err := readElementSegment(cur)
	require.NoError(t, err)
	require.Len(t, el.Exprs, 1)
	require.Len(t, el.Exprs[0], 2)
	assert.Equal(t, OpRefFunc, el.Exprs[0][0].Opcode)
}

func TestReadElementSegmentRejectsFlagsAboveSeven(t *testing.T) {
	cur := binary.NewCursor([]byte{0x08})
	_, err := readElementSegment(cur)
	assert.Error(t, err)
}

func TestParseDataSectionActiveExplicitMemory(t *testing.T) {
	cur := binary.NewCursor([]byte{
		0x01,                   // 1 segment
		0x02,                   // flags=2: active, explicit memory index
		0x00,                   // memidx 0
		OpI32Const, 0x00, OpEnd, // offset
		0x03, 0xAA, 0xBB, 0xCC, // 3-byte init
	})
	segs, err := parseDataSection(cur)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, uint32(0), segs[0].MemIdx)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, segs[0].Init)
}

// buildMinimalModule assembles a tiny module by hand: one function of type
// () -> (i32) that returns the constant 42, exported as "answer".
func buildMinimalModule() []byte {
	header := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
	typeSec := []byte{1, 5, 0x01, FuncTypeByte, 0x00, 0x01, byte(ValI32)}
	funcSec := []byte{3, 2, 0x01, 0x00}
	exportSec := []byte{7, 10, 0x01, 0x06, 'a', 'n', 's', 'w', 'e', 'r', KindFunc, 0x00}
	codeSec := []byte{10, 6, 0x01, 0x04, 0x00, OpI32Const, 0x2A, OpEnd}

	out := append([]byte{}, header...)
	out = append(out, typeSec...)
	out = append(out, funcSec...)
	out = append(out, exportSec...)
	out = append(out, codeSec...)
	return out
}

func TestParseMinimalModule(t *testing.T) {
	m, err := FromBytes(buildMinimalModule()).Parse()
	require.NoError(t, err)

	require.Len(t, m.Types, 1)
	assert.Equal(t, []ValType{ValI32}, m.Types[0].Results)

	require.Len(t, m.Funcs, 1)
	assert.Equal(t, uint32(0), m.Funcs[0])

	require.Len(t, m.Exports, 1)
	assert.Equal(t, "answer", m.Exports[0].Name)
	assert.Equal(t, KindFunc, m.Exports[0].Kind)

	require.Len(t, m.Code, 1)
	require.Len(t, m.Code[0].Body, 2)
	assert.Equal(t, I32Imm{Value: 42}, m.Code[0].Body[0].Imm)

	assert.Equal(t, uint32(1), m.Version)
}

func TestParseStoresNonOneVersionWithoutRejecting(t *testing.T) {
	// The magic number still gates decoding, but an unrecognized version
	// is stored as-is rather than rejected.
	data := []byte{0x00, 0x61, 0x73, 0x6D, 0x02, 0x00, 0x00, 0x00}

	m, err := FromBytes(data).Parse()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), m.Version)

	m, err = FromBytes(data, WithMaxWorkers(2)).ParallelParse()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), m.Version)
}

func TestParallelParseMatchesParse(t *testing.T) {
	data := buildMinimalModule()

	serial, err := FromBytes(data).Parse()
	require.NoError(t, err)

	parallel, err := FromBytes(data, WithMaxWorkers(4)).ParallelParse()
	require.NoError(t, err)

	assert.Equal(t, serial.Types, parallel.Types)
	assert.Equal(t, serial.Funcs, parallel.Funcs)
	assert.Equal(t, serial.Exports, parallel.Exports)
	assert.Equal(t, serial.Code, parallel.Code)
}

func TestParseRejectsBadMagic(t *testing.T) {
	_, err := FromBytes([]byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}).Parse()
	require.Error(t, err)
	var werr *Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, KindInvalidMagic, werr.Kind)
}

func TestParseRejectsTrailingSectionBytes(t *testing.T) {
	header := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
	// Function section declares 2 bytes but only needs 0: count=0 plus a
	// stray trailing byte.
	funcSec := []byte{3, 2, 0x00, 0xFF}
	data := append(append([]byte{}, header...), funcSec...)

	_, err := FromBytes(data).Parse()
	require.Error(t, err)
	var werr *Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, KindSectionOutOfBounds, werr.Kind)
}

func TestParallelParseReportsLowestIndexFailureAmongConcurrentFailures(t *testing.T) {
	header := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
	// Both the table and memory sections carry an unrecognized limits flag
	// byte; both workers fail concurrently, and ParallelParse must still
	// surface a single *Error - the earlier of the two in section order.
	tableSec := []byte{4, 4, 0x01, byte(ValFuncRef), 0x02, 0x01}
	memSec := []byte{5, 3, 0x01, 0x02, 0x01}
	data := append(append(append([]byte{}, header...), tableSec...), memSec...)

	_, err := FromBytes(data, WithMaxWorkers(4)).ParallelParse()
	require.Error(t, err)
	var werr *Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, KindInvalidFlags, werr.Kind)
	assert.Equal(t, PhaseTable, werr.Phase)
}
