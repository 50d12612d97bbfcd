package vm

import (
	"math"
	"math/bits"
)

// run drives the call stack until the outermost frame returns. Calls
// never recurse through Go's own call stack — entering a function
// just pushes a Frame, and the top of the loop below simply starts
// reading from whichever frame is now on top — which keeps this core's
// own stack depth flat regardless of how deeply the guest recurses
// (resource-frugal hosts care about this more than desktop ones).
func (vm *VM) run() error {
	for vm.calls.Len() > 0 {
		if err := vm.step(vm.calls.Top()); err != nil {
			return err
		}
	}
	return nil
}

// step executes exactly one instruction against frame, which is always
// the current top of the call stack, and folds the dispatch into the
// per-opcode profile counters: a count and an
// elapsed-ticks total, both indexed by the opcode byte, sourced from
// the host Environment's monotonic tick capability.
func (vm *VM) step(frame *Frame) error {
	b, err := frame.Reader.ReadByte()
	if err != nil {
		return err
	}
	op := Opcode(b)

	start := vm.Env.Ticks()
	err = vm.dispatch(frame, op)
	vm.profilePerOpcodeCount[b]++
	vm.profilePerOpcodeTicks[b] += uint64(vm.Env.Ticks() - start)
	return err
}

// dispatch executes op's handler, frame's cursor already positioned
// just past the opcode byte itself.
func (vm *VM) dispatch(frame *Frame, op Opcode) error {
	opOffset := frame.Reader.Pos() - 1

	switch op {
	case Unreachable:
		return ErrUnreachable

	case OpNop:
		return nil

	case Block:
		if _, err := frame.Reader.ReadLEBSigned(); err != nil {
			return err
		}
		target := frame.Fn.Body.BranchTargets[opOffset]
		frame.PushBlock(blockKindBlock, target)
		return nil

	case Loop:
		if _, err := frame.Reader.ReadLEBSigned(); err != nil {
			return err
		}
		frame.PushBlock(blockKindLoop, frame.Reader.Pos())
		return nil

	case If:
		if _, err := frame.Reader.ReadLEBSigned(); err != nil {
			return err
		}
		cond, err := vm.stack.PopI32()
		if err != nil {
			return err
		}
		target := frame.Fn.Body.BranchTargets[opOffset]
		frame.PushBlock(blockKindIf, target)
		if cond == 0 {
			jump, ok := frame.Fn.Body.JumpTargets[opOffset]
			if !ok {
				return ErrInvalidBranchDepth
			}
			if jump == target {
				// No else: the structural skip already lands past the
				// final end, so the block this If just opened is done.
				frame.PopBlock()
			}
			frame.Reader.SkipTo(jump)
		}
		return nil

	case Else:
		desc, ok := frame.PopBlock()
		if !ok {
			return ErrInvalidBranchDepth
		}
		frame.Reader.SkipTo(desc.branchTarget)
		return nil

	case End:
		if _, ok := frame.PopBlock(); !ok {
			vm.popFrame()
		}
		return nil

	case Br:
		depth, err := frame.Reader.ReadLEBUnsigned()
		if err != nil {
			return err
		}
		return vm.branch(frame, uint32(depth))

	case BrIf:
		depth, err := frame.Reader.ReadLEBUnsigned()
		if err != nil {
			return err
		}
		cond, err := vm.stack.PopI32()
		if err != nil {
			return err
		}
		if cond != 0 {
			return vm.branch(frame, uint32(depth))
		}
		return nil

	case BrTable:
		n, err := frame.Reader.ReadLEBUnsigned()
		if err != nil {
			return err
		}
		depths := make([]uint32, n)
		for i := range depths {
			d, err := frame.Reader.ReadLEBUnsigned()
			if err != nil {
				return err
			}
			depths[i] = uint32(d)
		}
		def, err := frame.Reader.ReadLEBUnsigned()
		if err != nil {
			return err
		}
		idx, err := vm.stack.PopI32()
		if err != nil {
			return err
		}
		depth := uint32(def)
		if idx >= 0 && int(idx) < len(depths) {
			depth = depths[idx]
		}
		return vm.branch(frame, depth)

	case Return:
		vm.popFrame()
		return nil

	case Call:
		idx, err := frame.Reader.ReadLEBUnsigned()
		if err != nil {
			return err
		}
		return vm.call(uint32(idx))

	case CallIndirect:
		if _, err := frame.Reader.ReadLEBUnsigned(); err != nil { // declared type index, unchecked
			return err
		}
		if _, err := frame.Reader.ReadLEBUnsigned(); err != nil { // table index, reserved
			return err
		}
		idx, err := vm.stack.PopI32()
		if err != nil {
			return err
		}
		return vm.call(uint32(idx))

	case Drop:
		return vm.stack.Drop()

	case Select:
		return vm.stack.Select()

	case LocalGet, LocalSet, LocalTee:
		return vm.execLocal(frame, op)

	case GlobalGet, GlobalSet:
		return vm.execGlobal(op)

	case I32Const:
		v, err := frame.Reader.ReadLEBSigned()
		if err != nil {
			return err
		}
		vm.stack.PushI32(int32(v))
		return nil

	case I64Const:
		v, err := frame.Reader.ReadLEBSigned()
		if err != nil {
			return err
		}
		vm.stack.PushI64(v)
		return nil

	case F32Const:
		v, err := frame.Reader.ReadF32LE()
		if err != nil {
			return err
		}
		vm.stack.PushF32(v)
		return nil

	case F64Const:
		v, err := frame.Reader.ReadF64LE()
		if err != nil {
			return err
		}
		vm.stack.PushF64(v)
		return nil
	}

	if op >= I32Load && op <= I64Store32 {
		return vm.execMemory(frame, op)
	}
	if op >= I32Eqz && op <= F64Ge {
		return vm.execCompare(op)
	}
	if op >= I32Clz && op <= I64Rotr {
		return vm.execIntArith(op)
	}
	if op >= F32Abs && op <= F64Copysign {
		return vm.execFloatArith(op)
	}
	if op >= I32WrapI64 && op <= I64Extend32S {
		return vm.execConvert(op)
	}

	return &UnsupportedOpcodeError{Op: op}
}

// branch implements the shared mechanics of br/br_if/br_table: unwind
// the frame's open blocks down through the target depth and move the
// reader to that block's recorded branch target.
func (vm *VM) branch(frame *Frame, depth uint32) error {
	desc, ok := frame.BlockAtDepth(depth)
	if !ok {
		return ErrInvalidBranchDepth
	}
	if desc.kind == blockKindLoop {
		frame.UnwindAbove(depth)
	} else {
		frame.UnwindThrough(depth)
	}
	frame.Reader.SkipTo(desc.branchTarget)
	return nil
}

// call invokes function idx — through the host import table if it has
// no body, or by pushing a new Frame for run's loop to pick up next.
func (vm *VM) call(idx uint32) error {
	if int(idx) >= len(vm.Module.Functions) {
		return ErrInvalidFunctionIndex
	}
	fn := &vm.Module.Functions[idx]
	if fn.IsImport() {
		if int(idx) >= len(vm.Imports) || vm.Imports[idx] == nil {
			return ErrFunctionNotFound
		}
		return vm.Imports[idx](vm.Env, vm.stack, vm.Memory)
	}
	_, err := vm.pushFrame(fn)
	return err
}

func (vm *VM) execLocal(frame *Frame, op Opcode) error {
	idx, err := frame.Reader.ReadLEBUnsigned()
	if err != nil {
		return err
	}
	body := frame.Fn.Body
	if int(idx) >= len(body.LocalsKinds) {
		return ErrInvalidLocalIndex
	}
	kind := body.LocalsKinds[idx]
	off := body.LocalsByteOffsets[idx]

	switch op {
	case LocalGet:
		vm.stack.PushRaw(kind, vm.locals.Get(frame.LocalsBase, off, kind))
		return nil
	case LocalSet:
		v, err := vm.stack.PopRaw(kind)
		if err != nil {
			return err
		}
		vm.locals.Set(frame.LocalsBase, off, kind, v)
		return nil
	default: // LocalTee
		v, err := vm.stack.PopRaw(kind)
		if err != nil {
			return err
		}
		vm.locals.Set(frame.LocalsBase, off, kind, v)
		vm.stack.PushRaw(kind, v)
		return nil
	}
}

func (vm *VM) execGlobal(op Opcode) error {
	frame := vm.calls.Top()
	idx, err := frame.Reader.ReadLEBUnsigned()
	if err != nil {
		return err
	}
	if int(idx) >= len(vm.Module.Globals) {
		return ErrInvalidGlobalIndex
	}
	g := vm.Module.Globals[idx]
	off := vm.Module.GlobalsByteOffsets[idx]
	kind := g.Kind

	if op == GlobalGet {
		vm.stack.PushRaw(kind, readValueBytes(vm.Globals[off:off+kind.LenBytes()], kind))
		return nil
	}
	if g.Mutability != Var {
		return ErrImmutableGlobal
	}
	v, err := vm.stack.PopRaw(kind)
	if err != nil {
		return err
	}
	writeValueBytes(vm.Globals[off:], v, kind)
	return nil
}

func (vm *VM) effectiveAddr(frame *Frame) (uint32, error) {
	if _, err := frame.Reader.ReadLEBUnsigned(); err != nil { // alignment hint, ignored
		return 0, err
	}
	staticOffset, err := frame.Reader.ReadLEBUnsigned()
	if err != nil {
		return 0, err
	}
	base, err := vm.stack.PopI32()
	if err != nil {
		return 0, err
	}
	return uint32(base) + uint32(staticOffset), nil
}

func (vm *VM) boundsCheck(addr uint32, width uint32) ([]byte, error) {
	start := uint64(addr)
	end := start + uint64(width)
	if end > uint64(len(vm.Memory)) {
		return nil, &MemoryAccessError{Offset: addr, Len: width}
	}
	return vm.Memory[start:end], nil
}

// execMemory handles every load/store opcode. Stores pop their value
// operand before resolving the effective address, since a store's
// operands are pushed address-then-value (the value is on top); loads
// have only the address operand, so effectiveAddr alone suffices for
// them.
func (vm *VM) execMemory(frame *Frame, op Opcode) error {
	if op >= I32Store && op <= I64Store32 {
		return vm.execStore(frame, op)
	}

	addr, err := vm.effectiveAddr(frame)
	if err != nil {
		return err
	}

	switch op {
	case I32Load:
		b, err := vm.boundsCheck(addr, 4)
		if err != nil {
			return err
		}
		vm.stack.PushI32(int32(leU32(b)))
	case I64Load:
		b, err := vm.boundsCheck(addr, 8)
		if err != nil {
			return err
		}
		vm.stack.PushI64(int64(leU64(b)))
	case F32Load:
		b, err := vm.boundsCheck(addr, 4)
		if err != nil {
			return err
		}
		vm.stack.PushF32(math.Float32frombits(leU32(b)))
	case F64Load:
		b, err := vm.boundsCheck(addr, 8)
		if err != nil {
			return err
		}
		vm.stack.PushF64(math.Float64frombits(leU64(b)))
	case I32Load8S:
		b, err := vm.boundsCheck(addr, 1)
		if err != nil {
			return err
		}
		vm.stack.PushI32(int32(int8(b[0])))
	case I32Load8U:
		b, err := vm.boundsCheck(addr, 1)
		if err != nil {
			return err
		}
		vm.stack.PushI32(int32(b[0]))
	case I32Load16S:
		b, err := vm.boundsCheck(addr, 2)
		if err != nil {
			return err
		}
		vm.stack.PushI32(int32(int16(leU16(b))))
	case I32Load16U:
		b, err := vm.boundsCheck(addr, 2)
		if err != nil {
			return err
		}
		vm.stack.PushI32(int32(leU16(b)))
	case I64Load8S:
		b, err := vm.boundsCheck(addr, 1)
		if err != nil {
			return err
		}
		vm.stack.PushI64(int64(int8(b[0])))
	case I64Load8U:
		b, err := vm.boundsCheck(addr, 1)
		if err != nil {
			return err
		}
		vm.stack.PushI64(int64(b[0]))
	case I64Load16S:
		b, err := vm.boundsCheck(addr, 2)
		if err != nil {
			return err
		}
		vm.stack.PushI64(int64(int16(leU16(b))))
	case I64Load16U:
		b, err := vm.boundsCheck(addr, 2)
		if err != nil {
			return err
		}
		vm.stack.PushI64(int64(leU16(b)))
	case I64Load32S:
		b, err := vm.boundsCheck(addr, 4)
		if err != nil {
			return err
		}
		vm.stack.PushI64(int64(int32(leU32(b))))
	case I64Load32U:
		b, err := vm.boundsCheck(addr, 4)
		if err != nil {
			return err
		}
		vm.stack.PushI64(int64(leU32(b)))
	}
	return nil
}

// execStore pops the value operand first (it is on top of the operand
// stack — pushed after the address), then resolves the effective
// address from what's left, matching the standard store semantics:
// pop the value, then pop the address.
func (vm *VM) execStore(frame *Frame, op Opcode) error {
	switch op {
	case I32Store:
		v, err := vm.stack.PopI32()
		if err != nil {
			return err
		}
		addr, err := vm.effectiveAddr(frame)
		if err != nil {
			return err
		}
		b, err := vm.boundsCheck(addr, 4)
		if err != nil {
			return err
		}
		putLEU32(b, uint32(v))
	case I64Store:
		v, err := vm.stack.PopI64()
		if err != nil {
			return err
		}
		addr, err := vm.effectiveAddr(frame)
		if err != nil {
			return err
		}
		b, err := vm.boundsCheck(addr, 8)
		if err != nil {
			return err
		}
		putLEU64(b, uint64(v))
	case F32Store:
		v, err := vm.stack.PopF32()
		if err != nil {
			return err
		}
		addr, err := vm.effectiveAddr(frame)
		if err != nil {
			return err
		}
		b, err := vm.boundsCheck(addr, 4)
		if err != nil {
			return err
		}
		putLEU32(b, math.Float32bits(v))
	case F64Store:
		v, err := vm.stack.PopF64()
		if err != nil {
			return err
		}
		addr, err := vm.effectiveAddr(frame)
		if err != nil {
			return err
		}
		b, err := vm.boundsCheck(addr, 8)
		if err != nil {
			return err
		}
		putLEU64(b, math.Float64bits(v))
	case I32Store8:
		v, err := vm.stack.PopI32()
		if err != nil {
			return err
		}
		addr, err := vm.effectiveAddr(frame)
		if err != nil {
			return err
		}
		b, err := vm.boundsCheck(addr, 1)
		if err != nil {
			return err
		}
		b[0] = byte(v)
	case I32Store16:
		v, err := vm.stack.PopI32()
		if err != nil {
			return err
		}
		addr, err := vm.effectiveAddr(frame)
		if err != nil {
			return err
		}
		b, err := vm.boundsCheck(addr, 2)
		if err != nil {
			return err
		}
		putLEU16(b, uint16(v))
	case I64Store8:
		v, err := vm.stack.PopI64()
		if err != nil {
			return err
		}
		addr, err := vm.effectiveAddr(frame)
		if err != nil {
			return err
		}
		b, err := vm.boundsCheck(addr, 1)
		if err != nil {
			return err
		}
		b[0] = byte(v)
	case I64Store16:
		v, err := vm.stack.PopI64()
		if err != nil {
			return err
		}
		addr, err := vm.effectiveAddr(frame)
		if err != nil {
			return err
		}
		b, err := vm.boundsCheck(addr, 2)
		if err != nil {
			return err
		}
		putLEU16(b, uint16(v))
	case I64Store32:
		v, err := vm.stack.PopI64()
		if err != nil {
			return err
		}
		addr, err := vm.effectiveAddr(frame)
		if err != nil {
			return err
		}
		b, err := vm.boundsCheck(addr, 4)
		if err != nil {
			return err
		}
		putLEU32(b, uint32(v))
	}
	return nil
}

func leU16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func leU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
func putLEU16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func putLEU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
func putLEU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// execCompare handles every *.eq/.ne/.lt*/.gt*/.le*/.ge* opcode. Every
// comparison pushes an i32, including the float ones.
func (vm *VM) execCompare(op Opcode) error {
	b2i := func(c bool) int32 {
		if c {
			return 1
		}
		return 0
	}

	switch op {
	case I32Eqz:
		a, err := vm.stack.PopI32()
		if err != nil {
			return err
		}
		vm.stack.PushI32(b2i(a == 0))
		return nil
	case I64Eqz:
		a, err := vm.stack.PopI64()
		if err != nil {
			return err
		}
		vm.stack.PushI32(b2i(a == 0))
		return nil
	}

	if op >= I32Eq && op <= I32GeU {
		b, err := vm.stack.PopI32()
		if err != nil {
			return err
		}
		a, err := vm.stack.PopI32()
		if err != nil {
			return err
		}
		ua, ub := uint32(a), uint32(b)
		var r bool
		switch op {
		case I32Eq:
			r = a == b
		case I32Ne:
			r = a != b
		case I32LtS:
			r = a < b
		case I32LtU:
			r = ua < ub
		case I32GtS:
			r = a > b
		case I32GtU:
			r = ua > ub
		case I32LeS:
			r = a <= b
		case I32LeU:
			r = ua <= ub
		case I32GeS:
			r = a >= b
		case I32GeU:
			r = ua >= ub
		}
		vm.stack.PushI32(b2i(r))
		return nil
	}

	if op >= I64Eq && op <= I64GeU {
		b, err := vm.stack.PopI64()
		if err != nil {
			return err
		}
		a, err := vm.stack.PopI64()
		if err != nil {
			return err
		}
		ua, ub := uint64(a), uint64(b)
		var r bool
		switch op {
		case I64Eq:
			r = a == b
		case I64Ne:
			r = a != b
		case I64LtS:
			r = a < b
		case I64LtU:
			r = ua < ub
		case I64GtS:
			r = a > b
		case I64GtU:
			r = ua > ub
		case I64LeS:
			r = a <= b
		case I64LeU:
			r = ua <= ub
		case I64GeS:
			r = a >= b
		case I64GeU:
			r = ua >= ub
		}
		vm.stack.PushI32(b2i(r))
		return nil
	}

	if op >= F32Eq && op <= F32Ge {
		b, err := vm.stack.PopF32()
		if err != nil {
			return err
		}
		a, err := vm.stack.PopF32()
		if err != nil {
			return err
		}
		var r bool
		switch op {
		case F32Eq:
			r = a == b
		case F32Ne:
			r = a != b
		case F32Lt:
			r = a < b
		case F32Gt:
			r = a > b
		case F32Le:
			r = a <= b
		case F32Ge:
			r = a >= b
		}
		vm.stack.PushI32(b2i(r))
		return nil
	}

	// F64Eq..F64Ge
	b, err := vm.stack.PopF64()
	if err != nil {
		return err
	}
	a, err := vm.stack.PopF64()
	if err != nil {
		return err
	}
	var r bool
	switch op {
	case F64Eq:
		r = a == b
	case F64Ne:
		r = a != b
	case F64Lt:
		r = a < b
	case F64Gt:
		r = a > b
	case F64Le:
		r = a <= b
	case F64Ge:
		r = a >= b
	}
	vm.stack.PushI32(b2i(r))
	return nil
}

// execIntArith handles the i32/i64 unary and binary arithmetic,
// bitwise, shift and rotate opcodes.
func (vm *VM) execIntArith(op Opcode) error {
	if op >= I32Clz && op <= I32Rotr {
		if op == I32Clz || op == I32Ctz || op == I32Popcnt {
			a, err := vm.stack.PopI32()
			if err != nil {
				return err
			}
			var r int32
			switch op {
			case I32Clz:
				r = int32(bits.LeadingZeros32(uint32(a)))
			case I32Ctz:
				r = int32(bits.TrailingZeros32(uint32(a)))
			case I32Popcnt:
				r = int32(bits.OnesCount32(uint32(a)))
			}
			vm.stack.PushI32(r)
			return nil
		}
		b, err := vm.stack.PopI32()
		if err != nil {
			return err
		}
		a, err := vm.stack.PopI32()
		if err != nil {
			return err
		}
		ua, ub := uint32(a), uint32(b)
		var r int32
		switch op {
		case I32Add:
			r = a + b
		case I32Sub:
			r = a - b
		case I32Mul:
			r = a * b
		case I32DivS:
			if b == 0 {
				return ErrIntegerDivideByZero
			}
			if a == math.MinInt32 && b == -1 {
				return ErrIntegerOverflow
			}
			r = a / b
		case I32DivU:
			if ub == 0 {
				return ErrIntegerDivideByZero
			}
			r = int32(ua / ub)
		case I32RemS:
			if b == 0 {
				return ErrIntegerDivideByZero
			}
			if a == math.MinInt32 && b == -1 {
				r = 0
			} else {
				r = a % b
			}
		case I32RemU:
			if ub == 0 {
				return ErrIntegerDivideByZero
			}
			r = int32(ua % ub)
		case I32And:
			r = a & b
		case I32Or:
			r = a | b
		case I32Xor:
			r = a ^ b
		case I32Shl:
			r = int32(ua << (ub & 31))
		case I32ShrS:
			r = a >> (ub & 31)
		case I32ShrU:
			r = int32(ua >> (ub & 31))
		case I32Rotl:
			r = int32(bits.RotateLeft32(ua, int(ub&31)))
		case I32Rotr:
			r = int32(bits.RotateLeft32(ua, -int(ub&31)))
		}
		vm.stack.PushI32(r)
		return nil
	}

	// I64Clz..I64Rotr
	if op == I64Clz || op == I64Ctz || op == I64Popcnt {
		a, err := vm.stack.PopI64()
		if err != nil {
			return err
		}
		var r int64
		switch op {
		case I64Clz:
			r = int64(bits.LeadingZeros64(uint64(a)))
		case I64Ctz:
			r = int64(bits.TrailingZeros64(uint64(a)))
		case I64Popcnt:
			r = int64(bits.OnesCount64(uint64(a)))
		}
		vm.stack.PushI64(r)
		return nil
	}
	b, err := vm.stack.PopI64()
	if err != nil {
		return err
	}
	a, err := vm.stack.PopI64()
	if err != nil {
		return err
	}
	ua, ub := uint64(a), uint64(b)
	var r int64
	switch op {
	case I64Add:
		r = a + b
	case I64Sub:
		r = a - b
	case I64Mul:
		r = a * b
	case I64DivS:
		if b == 0 {
			return ErrIntegerDivideByZero
		}
		if a == math.MinInt64 && b == -1 {
			return ErrIntegerOverflow
		}
		r = a / b
	case I64DivU:
		if ub == 0 {
			return ErrIntegerDivideByZero
		}
		r = int64(ua / ub)
	case I64RemS:
		if b == 0 {
			return ErrIntegerDivideByZero
		}
		if a == math.MinInt64 && b == -1 {
			r = 0
		} else {
			r = a % b
		}
	case I64RemU:
		if ub == 0 {
			return ErrIntegerDivideByZero
		}
		r = int64(ua % ub)
	case I64And:
		r = a & b
	case I64Or:
		r = a | b
	case I64Xor:
		r = a ^ b
	case I64Shl:
		r = int64(ua << (ub & 63))
	case I64ShrS:
		r = a >> (ub & 63)
	case I64ShrU:
		r = int64(ua >> (ub & 63))
	case I64Rotl:
		r = int64(bits.RotateLeft64(ua, int(ub&63)))
	case I64Rotr:
		r = int64(bits.RotateLeft64(ua, -int(ub&63)))
	}
	vm.stack.PushI64(r)
	return nil
}

// execFloatArith handles the f32/f64 unary and binary float opcodes.
func (vm *VM) execFloatArith(op Opcode) error {
	if op >= F32Abs && op <= F32Copysign {
		if op == F32Add || op == F32Sub || op == F32Mul || op == F32Div || op == F32Min || op == F32Max || op == F32Copysign {
			b, err := vm.stack.PopF32()
			if err != nil {
				return err
			}
			a, err := vm.stack.PopF32()
			if err != nil {
				return err
			}
			var r float32
			switch op {
			case F32Add:
				r = a + b
			case F32Sub:
				r = a - b
			case F32Mul:
				r = a * b
			case F32Div:
				r = a / b
			case F32Min:
				r = float32(math.Min(float64(a), float64(b)))
			case F32Max:
				r = float32(math.Max(float64(a), float64(b)))
			case F32Copysign:
				r = float32(math.Copysign(float64(a), float64(b)))
			}
			vm.stack.PushF32(r)
			return nil
		}
		a, err := vm.stack.PopF32()
		if err != nil {
			return err
		}
		var r float32
		switch op {
		case F32Abs:
			r = float32(math.Abs(float64(a)))
		case F32Neg:
			r = -a
		case F32Ceil:
			r = float32(math.Ceil(float64(a)))
		case F32Floor:
			r = float32(math.Floor(float64(a)))
		case F32Trunc:
			r = float32(math.Trunc(float64(a)))
		case F32Nearest:
			r = float32(math.RoundToEven(float64(a)))
		case F32Sqrt:
			r = float32(math.Sqrt(float64(a)))
		}
		vm.stack.PushF32(r)
		return nil
	}

	// F64Abs..F64Copysign
	if op == F64Add || op == F64Sub || op == F64Mul || op == F64Div || op == F64Min || op == F64Max || op == F64Copysign {
		b, err := vm.stack.PopF64()
		if err != nil {
			return err
		}
		a, err := vm.stack.PopF64()
		if err != nil {
			return err
		}
		var r float64
		switch op {
		case F64Add:
			r = a + b
		case F64Sub:
			r = a - b
		case F64Mul:
			r = a * b
		case F64Div:
			r = a / b
		case F64Min:
			r = math.Min(a, b)
		case F64Max:
			r = math.Max(a, b)
		case F64Copysign:
			r = math.Copysign(a, b)
		}
		vm.stack.PushF64(r)
		return nil
	}
	a, err := vm.stack.PopF64()
	if err != nil {
		return err
	}
	var r float64
	switch op {
	case F64Abs:
		r = math.Abs(a)
	case F64Neg:
		r = -a
	case F64Ceil:
		r = math.Ceil(a)
	case F64Floor:
		r = math.Floor(a)
	case F64Trunc:
		r = math.Trunc(a)
	case F64Nearest:
		r = math.RoundToEven(a)
	case F64Sqrt:
		r = math.Sqrt(a)
	}
	vm.stack.PushF64(r)
	return nil
}

// execConvert handles the numeric conversion and reinterpretation
// opcodes, plus the sign-extension opcodes.
func (vm *VM) execConvert(op Opcode) error {
	switch op {
	case I32WrapI64:
		a, err := vm.stack.PopI64()
		if err != nil {
			return err
		}
		vm.stack.PushI32(int32(a))
	case I32TruncF32S:
		a, err := vm.stack.PopF32()
		if err != nil {
			return err
		}
		vm.stack.PushI32(int32(a))
	case I32TruncF32U:
		a, err := vm.stack.PopF32()
		if err != nil {
			return err
		}
		vm.stack.PushI32(int32(uint32(a)))
	case I32TruncF64S:
		a, err := vm.stack.PopF64()
		if err != nil {
			return err
		}
		vm.stack.PushI32(int32(a))
	case I32TruncF64U:
		a, err := vm.stack.PopF64()
		if err != nil {
			return err
		}
		vm.stack.PushI32(int32(uint32(a)))
	case I64ExtendI32S:
		a, err := vm.stack.PopI32()
		if err != nil {
			return err
		}
		vm.stack.PushI64(int64(a))
	case I64ExtendI32U:
		a, err := vm.stack.PopI32()
		if err != nil {
			return err
		}
		vm.stack.PushI64(int64(uint32(a)))
	case I64TruncF32S:
		a, err := vm.stack.PopF32()
		if err != nil {
			return err
		}
		vm.stack.PushI64(int64(a))
	case I64TruncF32U:
		a, err := vm.stack.PopF32()
		if err != nil {
			return err
		}
		vm.stack.PushI64(int64(uint64(a)))
	case I64TruncF64S:
		a, err := vm.stack.PopF64()
		if err != nil {
			return err
		}
		vm.stack.PushI64(int64(a))
	case I64TruncF64U:
		a, err := vm.stack.PopF64()
		if err != nil {
			return err
		}
		vm.stack.PushI64(int64(uint64(a)))
	case F32ConvertI32S:
		a, err := vm.stack.PopI32()
		if err != nil {
			return err
		}
		vm.stack.PushF32(float32(a))
	case F32ConvertI32U:
		a, err := vm.stack.PopI32()
		if err != nil {
			return err
		}
		vm.stack.PushF32(float32(uint32(a)))
	case F32ConvertI64S:
		a, err := vm.stack.PopI64()
		if err != nil {
			return err
		}
		vm.stack.PushF32(float32(a))
	case F32ConvertI64U:
		a, err := vm.stack.PopI64()
		if err != nil {
			return err
		}
		vm.stack.PushF32(float32(uint64(a)))
	case F32DemoteF64:
		a, err := vm.stack.PopF64()
		if err != nil {
			return err
		}
		vm.stack.PushF32(float32(a))
	case F64ConvertI32S:
		a, err := vm.stack.PopI32()
		if err != nil {
			return err
		}
		vm.stack.PushF64(float64(a))
	case F64ConvertI32U:
		a, err := vm.stack.PopI32()
		if err != nil {
			return err
		}
		vm.stack.PushF64(float64(uint32(a)))
	case F64ConvertI64S:
		a, err := vm.stack.PopI64()
		if err != nil {
			return err
		}
		vm.stack.PushF64(float64(a))
	case F64ConvertI64U:
		a, err := vm.stack.PopI64()
		if err != nil {
			return err
		}
		vm.stack.PushF64(float64(uint64(a)))
	case F64PromoteF32:
		a, err := vm.stack.PopF32()
		if err != nil {
			return err
		}
		vm.stack.PushF64(float64(a))
	case I32ReinterpretF32:
		a, err := vm.stack.PopF32()
		if err != nil {
			return err
		}
		vm.stack.PushI32(int32(math.Float32bits(a)))
	case I64ReinterpretF64:
		a, err := vm.stack.PopF64()
		if err != nil {
			return err
		}
		vm.stack.PushI64(int64(math.Float64bits(a)))
	case F32ReinterpretI32:
		a, err := vm.stack.PopI32()
		if err != nil {
			return err
		}
		vm.stack.PushF32(math.Float32frombits(uint32(a)))
	case F64ReinterpretI64:
		a, err := vm.stack.PopI64()
		if err != nil {
			return err
		}
		vm.stack.PushF64(math.Float64frombits(uint64(a)))
	case I32Extend8S:
		a, err := vm.stack.PopI32()
		if err != nil {
			return err
		}
		vm.stack.PushI32(int32(int8(a)))
	case I32Extend16S:
		a, err := vm.stack.PopI32()
		if err != nil {
			return err
		}
		vm.stack.PushI32(int32(int16(a)))
	case I64Extend8S:
		a, err := vm.stack.PopI64()
		if err != nil {
			return err
		}
		vm.stack.PushI64(int64(int8(a)))
	case I64Extend16S:
		a, err := vm.stack.PopI64()
		if err != nil {
			return err
		}
		vm.stack.PushI64(int64(int16(a)))
	case I64Extend32S:
		a, err := vm.stack.PopI64()
		if err != nil {
			return err
		}
		vm.stack.PushI64(int64(int32(a)))
	}
	return nil
}
