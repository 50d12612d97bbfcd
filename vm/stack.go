package vm

// Stack is the operand stack: a byte-addressed, growable buffer
// holding i32/f32 values in 4 bytes and i64/f64 values in 8, contiguous
// with no padding. Most opcodes know the kind of the value they're
// popping from their own signature (a local.set's declared kind, an
// i32.add's operands) and use the typed Pop/Push pairs directly.
//
// drop and select are the two opcodes that don't: the WASM 1.0 MVP
// gives neither a type immediate, so this core tracks a parallel kind
// sidecar purely for their benefit when debug is enabled. With debug
// disabled there is no sidecar, and both fall back to treating the top
// of stack as a single 4-byte (i32-width) slot.
type Stack struct {
	buf   []byte
	kinds []ValueKind
	debug bool
}

// NewStack constructs an empty operand stack. debug enables the kind
// sidecar that makes drop and select width-aware.
func NewStack(debug bool) *Stack {
	return &Stack{debug: debug}
}

// Len returns the number of bytes currently held (not value count).
func (s *Stack) Len() int { return len(s.buf) }

// Reset empties the stack for reuse across ExecuteFunction calls.
func (s *Stack) Reset() {
	s.buf = s.buf[:0]
	s.kinds = s.kinds[:0]
}

func (s *Stack) pushBytes(kind ValueKind, v [8]byte) {
	n := kind.LenBytes()
	s.buf = append(s.buf, v[:n]...)
	if s.debug {
		s.kinds = append(s.kinds, kind)
	}
}

func (s *Stack) popBytes(kind ValueKind) ([8]byte, error) {
	n := int(kind.LenBytes())
	if len(s.buf) < n {
		return [8]byte{}, ErrStackUnderflow
	}
	var out [8]byte
	copy(out[:n], s.buf[len(s.buf)-n:])
	s.buf = s.buf[:len(s.buf)-n]
	if s.debug {
		if len(s.kinds) == 0 {
			return out, ErrStackUnderflow
		}
		s.kinds = s.kinds[:len(s.kinds)-1]
	}
	return out, nil
}

func (s *Stack) PushI32(v int32) {
	var b [8]byte
	putI32(&b, v)
	s.pushBytes(I32, b)
}

func (s *Stack) PopI32() (int32, error) {
	b, err := s.popBytes(I32)
	if err != nil {
		return 0, err
	}
	return getI32(b), nil
}

func (s *Stack) PushI64(v int64) {
	var b [8]byte
	putI64(&b, v)
	s.pushBytes(I64, b)
}

func (s *Stack) PopI64() (int64, error) {
	b, err := s.popBytes(I64)
	if err != nil {
		return 0, err
	}
	return getI64(b), nil
}

func (s *Stack) PushF32(v float32) {
	var b [8]byte
	putF32(&b, v)
	s.pushBytes(F32, b)
}

func (s *Stack) PopF32() (float32, error) {
	b, err := s.popBytes(F32)
	if err != nil {
		return 0, err
	}
	return getF32(b), nil
}

func (s *Stack) PushF64(v float64) {
	var b [8]byte
	putF64(&b, v)
	s.pushBytes(F64, b)
}

func (s *Stack) PopF64() (float64, error) {
	b, err := s.popBytes(F64)
	if err != nil {
		return 0, err
	}
	return getF64(b), nil
}

// PushRaw and PopRaw move a value of an arbitrary, dynamically-known
// kind — used by local.get/set/tee and global.get/set, which read the
// kind out of the module's declarations rather than a fixed opcode.
func (s *Stack) PushRaw(kind ValueKind, v [8]byte) { s.pushBytes(kind, v) }
func (s *Stack) PopRaw(kind ValueKind) ([8]byte, error) { return s.popBytes(kind) }

// Drop implements the drop opcode: with the sidecar enabled it
// pops exactly one value of whatever kind is on top; without it, it
// pops a fixed 4 bytes.
func (s *Stack) Drop() error {
	if s.debug {
		if len(s.kinds) == 0 {
			return ErrStackUnderflow
		}
		_, err := s.popBytes(s.kinds[len(s.kinds)-1])
		return err
	}
	if len(s.buf) < 4 {
		return ErrStackUnderflow
	}
	s.buf = s.buf[:len(s.buf)-4]
	return nil
}

// Select implements the select opcode: pop condition, b, a (in that
// order) and push a if condition != 0, else b. The width of a and b is
// taken from the sidecar when available, and assumed to be 4 bytes
// (i32) otherwise, matching Drop's fallback.
func (s *Stack) Select() error {
	cond, err := s.PopI32()
	if err != nil {
		return err
	}
	kind := I32
	if s.debug {
		if len(s.kinds) == 0 {
			return ErrStackUnderflow
		}
		kind = s.kinds[len(s.kinds)-1]
	}
	b, err := s.popBytes(kind)
	if err != nil {
		return err
	}
	a, err := s.popBytes(kind)
	if err != nil {
		return err
	}
	if cond != 0 {
		s.pushBytes(kind, a)
	} else {
		s.pushBytes(kind, b)
	}
	return nil
}
