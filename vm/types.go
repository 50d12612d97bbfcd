package vm

// ValueKind is the type of a runtime value. Only I32, I64, F32 and F64
// appear as runtime values on the operand stack or in locals/globals;
// Void, Func and FuncRef appear only in signatures and table shapes.
type ValueKind byte

const (
	I32 ValueKind = iota
	I64
	F32
	F64
	Void
	Func
	FuncRef
)

func (k ValueKind) String() string {
	switch k {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case Func:
		return "func"
	case FuncRef:
		return "funcref"
	default:
		return "void"
	}
}

// LenBytes is the byte width of one value of this kind on the operand
// stack, in the locals arena, or in the globals buffer.
func (k ValueKind) LenBytes() uint32 {
	switch k {
	case I32, F32:
		return 4
	case I64, F64:
		return 8
	default:
		return 0
	}
}

// FunctionType is a signature: an ordered sequence of parameter kinds
// and an ordered sequence of result kinds.
type FunctionType struct {
	Params  []ValueKind
	Results []ValueKind
}

// Mutability distinguishes constant globals from mutable ones.
type Mutability byte

const (
	Const Mutability = iota
	Var
)

// Global is one module-level global declaration. InitExpr is the raw
// constant-expression bytes; its value is computed once at load time
// by InitGlobals.
type Global struct {
	Kind       ValueKind
	Mutability Mutability
	InitExpr   []byte
}

// DataSegment is one active data segment targeting linear memory 0.
// OffsetExpr is a constant expression evaluated by InitMemory.
type DataSegment struct {
	Flags      uint32
	OffsetExpr []byte
	Payload    []byte
}

// TableType records a table's shape. Tables are recognized by the
// loader but never populated; call_indirect resolves exactly
// like a direct call against the popped function index.
type TableType struct {
	ElementKind ValueKind // always FuncRef in the WASM 1.0 MVP
	LimitsMin   uint32
	LimitsMax   uint32
	HasMax      bool
}

// FuncBody holds everything the interpreter needs to run a defined
// function, pre-computed once by the loader. Code spans from right
// after the local-declaration block up to but excluding the terminal
// end opcode. The interpreter reads the module bytes from
// CodeOffsetInModule rather than Code, so it still executes that end,
// and executing it with no open blocks is what pops the frame.
type FuncBody struct {
	Code                []byte
	CodeOffsetInModule  int
	LocalsKinds         []ValueKind
	LocalsByteOffsets   []uint32
	ParamsBytes         uint32
	NonParamLocalsBytes uint32

	// JumpTargets maps the absolute module-byte offset of every
	// block/loop/if/else opcode in Code to the absolute offset
	// immediately following its matching terminator.
	JumpTargets map[int]int

	// BranchTargets maps the absolute offset of every block/if opcode
	// to the absolute offset right after its construct's final end —
	// the destination a br/br_if/br_table targeting that depth jumps
	// to. Loop constructs have no entry; branching to a loop re-enters
	// at its start, computed live during execution instead.
	BranchTargets map[int]int
}

// Function is either an import (Body == nil, invoked through the host
// callback array) or a defined function (Body != nil).
type Function struct {
	SignatureIndex uint32
	Name           string
	Body           *FuncBody
}

// IsImport reports whether this function has no body of its own and
// must be invoked through the host's import callback table.
func (f *Function) IsImport() bool { return f.Body == nil }

// Module is the immutable product of Parse. It is safe to share by
// reference across concurrently running VMs so long as each VM's own
// memory, globals and operand stack are not themselves shared.
type Module struct {
	FunctionTypes []FunctionType
	Functions     []Function
	Globals       []Global
	DataSegments  []DataSegment
	Tables        []TableType

	// NameToFunctionIndex is derived from the export section (and, for
	// imports, the field name) during loading.
	NameToFunctionIndex map[string]int

	// GlobalsByteOffsets[i] is the byte offset of global i within the
	// caller-supplied globals buffer, laid out contiguously in
	// declaration order the same way FuncBody.LocalsByteOffsets lays
	// out a function's locals.
	GlobalsByteOffsets []uint32
	GlobalsBytesTotal  uint32

	// NumImportedFunctions is the count of Functions with no body,
	// which occupy indices [0, NumImportedFunctions) by construction.
	NumImportedFunctions int

	// rawBytes is the whole module's byte buffer. FuncBody.Code offsets
	// and every JumpTargets/BranchTargets entry are absolute offsets
	// into this slice, not into Code itself, so the interpreter builds
	// each frame's Reader over rawBytes rather than over Code.
	rawBytes []byte
}

// Signature returns the function type a Function was declared with.
func (m *Module) Signature(f *Function) *FunctionType {
	return &m.FunctionTypes[f.SignatureIndex]
}

// FunctionByName resolves an exported function by name, the lookup
// ExecuteFunction uses to find its entry point.
func (m *Module) FunctionByName(name string) (*Function, bool) {
	idx, ok := m.NameToFunctionIndex[name]
	if !ok {
		return nil, false
	}
	return &m.Functions[idx], true
}
