package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRejectsBadMagic(t *testing.T) {
	_, err := Parse([]byte{0x00, 0x61, 0x73, 0x6D + 1, 0x01, 0x00, 0x00, 0x00})
	require.Error(t, err)
}

func TestParseRejectsBadVersion(t *testing.T) {
	_, err := Parse([]byte{0x00, 'a', 's', 'm', 0x02, 0x00, 0x00, 0x00})
	require.Error(t, err)
}

// TestParseMinimalModule exercises the type/function/export/code path:
// a single exported function `answer() -> i32` that returns a constant.
func TestParseMinimalModule(t *testing.T) {
	raw := assembleModule(
		typeSection(funcType(nil, []byte{valI32})),
		funcSection(0),
		exportSection(exportFuncEntry("answer", 0)),
		codeSection(codeEntry(nil, bytesCat(insI32Const(42), insEnd()))),
	)

	m, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, m.Functions, 1)
	require.Equal(t, 0, m.NumImportedFunctions)

	fn, ok := m.FunctionByName("answer")
	require.True(t, ok)
	require.False(t, fn.IsImport())
	sig := m.Signature(fn)
	require.Empty(t, sig.Params)
	require.Equal(t, []ValueKind{I32}, sig.Results)
}

// TestParseImportsOccupyLowIndices checks that imported functions land
// at [0, NumImportedFunctions) and defined functions follow, matching
// the combined index space the rest of the interpreter assumes.
func TestParseImportsOccupyLowIndices(t *testing.T) {
	raw := assembleModule(
		typeSection(funcType(nil, nil), funcType(nil, []byte{valI32})),
		importSection(importFuncEntry("env", "log", 0)),
		funcSection(1),
		exportSection(exportFuncEntry("main", 1)),
		codeSection(codeEntry(nil, bytesCat(insI32Const(7), insEnd()))),
	)

	m, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, 1, m.NumImportedFunctions)
	require.Len(t, m.Functions, 2)
	require.True(t, m.Functions[0].IsImport())
	require.Equal(t, "log", m.Functions[0].Name)
	require.False(t, m.Functions[1].IsImport())
}

// TestParseGlobalsLayout checks globals get contiguous byte offsets in
// declaration order and that a later global can reference an earlier
// one via global.get.
func TestParseGlobalsLayout(t *testing.T) {
	raw := assembleModule(
		typeSection(funcType(nil, nil)),
		funcSection(0),
		globalSection(
			globalEntry(valI32, false, constExprI32(10)),
			globalEntry(valI64, true, constExprI64(20)),
			globalEntry(valI32, false, bytesCat(insGlobalGet(0), insEnd())),
		),
		codeSection(codeEntry(nil, insEnd())),
	)

	m, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, m.Globals, 3)
	require.Equal(t, []uint32{0, 4, 12}, m.GlobalsByteOffsets)
	require.Equal(t, uint32(16), m.GlobalsBytesTotal)
}

// TestParseImportedGlobalGetsZeroValue exercises zeroConstExpr: an
// imported global has no host-value channel, so it reads as the zero
// value of its declared kind.
func TestParseImportedGlobalGetsZeroValue(t *testing.T) {
	raw := assembleModule(
		typeSection(funcType(nil, nil)),
		importSection(bytesCat(nameBytes("env"), nameBytes("cfg"), []byte{importKindGlobal, valI32, 0x00})),
		funcSection(0),
		codeSection(codeEntry(nil, insEnd())),
	)

	m, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, m.Globals, 1)
	v, err := evalConstExpr(m.Globals[0].InitExpr, nil)
	require.NoError(t, err)
	require.Equal(t, int32(0), getI32(v))
}

// TestParseDataSegment checks a data segment's offset expression and
// payload survive loading intact.
func TestParseDataSegment(t *testing.T) {
	raw := assembleModule(
		typeSection(funcType(nil, nil)),
		funcSection(0),
		memorySection(1),
		dataSection(dataEntryActive(constExprI32(8), []byte("hi"))),
		codeSection(codeEntry(nil, insEnd())),
	)

	m, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, m.DataSegments, 1)
	off, err := evalConstExprU32(m.DataSegments[0].OffsetExpr, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(8), off)
	require.Equal(t, []byte("hi"), m.DataSegments[0].Payload)
}

// TestParseLocalsDeclarations checks a function's declared locals are
// appended after its params with contiguous byte offsets.
func TestParseLocalsDeclarations(t *testing.T) {
	raw := assembleModule(
		typeSection(funcType([]byte{valI32}, []byte{valI32})),
		funcSection(0),
		codeSection(codeEntry(
			[]localsDecl{{count: 2, kind: valI64}},
			bytesCat(insLocalGet(0), insEnd()),
		)),
	)

	m, err := Parse(raw)
	require.NoError(t, err)
	body := m.Functions[0].Body
	require.Equal(t, []ValueKind{I32, I64, I64}, body.LocalsKinds)
	require.Equal(t, []uint32{0, 4, 12}, body.LocalsByteOffsets)
	require.Equal(t, uint32(4), body.ParamsBytes)
	require.Equal(t, uint32(16), body.NonParamLocalsBytes)
}
