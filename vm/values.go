package vm

import (
	"encoding/binary"
	"math"
)

// Runtime values travel between the stack, locals arena, and globals
// buffer as an 8-byte little-endian register; only the low LenBytes()
// of it are ever meaningful for a given kind. Keeping one fixed-size
// representation lets evalConstExpr, the locals arena and the globals
// buffer all share the same plumbing regardless of width.

func putI32(b *[8]byte, v int32) { binary.LittleEndian.PutUint32(b[0:4], uint32(v)) }
func getI32(b [8]byte) int32     { return int32(binary.LittleEndian.Uint32(b[0:4])) }

func putI64(b *[8]byte, v int64) { binary.LittleEndian.PutUint64(b[0:8], uint64(v)) }
func getI64(b [8]byte) int64     { return int64(binary.LittleEndian.Uint64(b[0:8])) }

func putF32(b *[8]byte, v float32) { binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(v)) }
func getF32(b [8]byte) float32     { return math.Float32frombits(binary.LittleEndian.Uint32(b[0:4])) }

func putF64(b *[8]byte, v float64) { binary.LittleEndian.PutUint64(b[0:8], math.Float64bits(v)) }
func getF64(b [8]byte) float64     { return math.Float64frombits(binary.LittleEndian.Uint64(b[0:8])) }

// writeValueBytes copies the low kind.LenBytes() of v into dst,
// materializing a register into a variable-width arena slot.
func writeValueBytes(dst []byte, v [8]byte, kind ValueKind) {
	copy(dst, v[:kind.LenBytes()])
}

// readValueBytes is the inverse of writeValueBytes: it zero-extends a
// variable-width arena slot into a register.
func readValueBytes(src []byte, kind ValueKind) [8]byte {
	var out [8]byte
	copy(out[:kind.LenBytes()], src)
	return out
}

// Value is the tagged union ExecuteFunction's public API trades in —
// the external boundary equivalent of the internal [8]byte register.
type Value struct {
	Kind ValueKind
	I32  int32
	I64  int64
	F32  float32
	F64  float64
}

func NewI32(v int32) Value     { return Value{Kind: I32, I32: v} }
func NewI64(v int64) Value     { return Value{Kind: I64, I64: v} }
func NewF32(v float32) Value   { return Value{Kind: F32, F32: v} }
func NewF64(v float64) Value   { return Value{Kind: F64, F64: v} }

func (v Value) raw() [8]byte {
	var b [8]byte
	switch v.Kind {
	case I32:
		putI32(&b, v.I32)
	case I64:
		putI64(&b, v.I64)
	case F32:
		putF32(&b, v.F32)
	case F64:
		putF64(&b, v.F64)
	}
	return b
}

func valueFromRaw(kind ValueKind, b [8]byte) Value {
	switch kind {
	case I32:
		return NewI32(getI32(b))
	case I64:
		return NewI64(getI64(b))
	case F32:
		return NewF32(getF32(b))
	case F64:
		return NewF64(getF64(b))
	default:
		return Value{Kind: kind}
	}
}
