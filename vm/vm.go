package vm

import "go.uber.org/zap"

// VM is one running instance of a Module: its globals buffer, its
// linear memory, and the operand stack/locals arena/call stack that
// back ExecuteFunction. Nothing here is safe for concurrent use —
// run two goroutines against the same Module by constructing a VM per
// goroutine and sharing only the immutable Module between them.
type VM struct {
	Module  *Module
	Globals []byte
	Memory  []byte
	Env     *Environment
	Imports []HostFunc

	stack  *Stack
	locals *LocalsArena
	calls  *CallStack

	profilePerOpcodeCount [256]uint64
	profilePerOpcodeTicks [256]uint64
}

// NewVM constructs a VM bound to m. imports must have exactly
// m.NumImportedFunctions entries, positionally aligned with the
// module's own import order. debug enables the operand stack's
// kind sidecar; the package's Debug-level logging is switched
// separately, by SetDebug.
func NewVM(m *Module, env *Environment, imports []HostFunc, debug bool) *VM {
	if env == nil {
		env = NewEnvironment(nil)
	}
	return &VM{
		Module:  m,
		Env:     env,
		Imports: imports,
		stack:   NewStack(debug),
		locals:  NewLocalsArena(),
		calls:   NewCallStack(),
	}
}

// InitGlobals evaluates every global's constant expression in
// declaration order, so a later global's initializer may reference an
// earlier global.get, and materializes the result into a freshly
// allocated Globals buffer.
func (vm *VM) InitGlobals() error {
	resolved := make([][8]byte, len(vm.Module.Globals))
	vm.Globals = make([]byte, vm.Module.GlobalsBytesTotal)
	for i, g := range vm.Module.Globals {
		v, err := evalConstExpr(g.InitExpr, resolved[:i])
		if err != nil {
			return err
		}
		resolved[i] = v
		off := vm.Module.GlobalsByteOffsets[i]
		writeValueBytes(vm.Globals[off:], v, g.Kind)
	}
	return nil
}

func (vm *VM) globalsAsRegisters() [][8]byte {
	out := make([][8]byte, len(vm.Module.Globals))
	for i, g := range vm.Module.Globals {
		off := vm.Module.GlobalsByteOffsets[i]
		out[i] = readValueBytes(vm.Globals[off:off+g.Kind.LenBytes()], g.Kind)
	}
	return out
}

// InitMemory adopts mem as this VM's linear memory and copies every
// data segment's payload into it at its evaluated offset. Sizing and
// owning mem is the caller's responsibility; this core never
// allocates or grows memory itself, matching a resource-frugal host.
func (vm *VM) InitMemory(mem []byte) error {
	vm.Memory = mem
	resolved := vm.globalsAsRegisters()
	for _, seg := range vm.Module.DataSegments {
		offset, err := evalConstExprU32(seg.OffsetExpr, resolved)
		if err != nil {
			return err
		}
		end := uint64(offset) + uint64(len(seg.Payload))
		if end > uint64(len(mem)) {
			return &DataSegmentOutOfBoundsError{Offset: offset, Len: uint32(len(seg.Payload)), MemSize: uint32(len(mem))}
		}
		copy(mem[offset:], seg.Payload)
	}
	return nil
}

// ExecuteFunction runs the exported function named name to completion
// against args, and returns its declared results. Each call
// starts from a clean operand stack, locals arena and call stack, so
// a VM can be reused for many calls without carrying stale state
// between them.
func (vm *VM) ExecuteFunction(name string, args []Value) ([]Value, error) {
	fn, ok := vm.Module.FunctionByName(name)
	if !ok {
		return nil, ErrFunctionNotFound
	}
	if fn.IsImport() {
		return nil, ErrMissingBody
	}
	sig := vm.Module.Signature(fn)
	if len(args) != len(sig.Params) {
		return nil, ErrSignatureMismatch
	}
	for i, a := range args {
		if a.Kind != sig.Params[i] {
			return nil, ErrSignatureMismatch
		}
	}

	vm.stack.Reset()
	vm.locals.Reset()
	vm.calls.Reset()

	for _, a := range args {
		vm.stack.pushBytes(a.Kind, a.raw())
	}

	if _, err := vm.pushFrame(fn); err != nil {
		return nil, err
	}
	if err := vm.run(); err != nil {
		return nil, err
	}

	results := make([]Value, len(sig.Results))
	for i := len(sig.Results) - 1; i >= 0; i-- {
		kind := sig.Results[i]
		v, err := vm.stack.popBytes(kind)
		if err != nil {
			return nil, err
		}
		results[i] = valueFromRaw(kind, v)
	}
	return results, nil
}

// pushFrame claims a locals region for fn, copies its arguments off
// the operand stack into it, and pushes a new Frame for run's loop to
// pick up on its next iteration.
func (vm *VM) pushFrame(fn *Function) (*Frame, error) {
	body := fn.Body
	if body == nil {
		return nil, ErrMissingBody
	}
	sig := vm.Module.Signature(fn)
	base := vm.locals.Reserve(body.ParamsBytes + body.NonParamLocalsBytes)
	for i := len(sig.Params) - 1; i >= 0; i-- {
		kind := body.LocalsKinds[i]
		v, err := vm.stack.popBytes(kind)
		if err != nil {
			return nil, err
		}
		vm.locals.Set(base, body.LocalsByteOffsets[i], kind, v)
	}

	r := NewReader(vm.Module.rawBytes)
	r.SkipTo(body.CodeOffsetInModule)
	frame := &Frame{Fn: fn, Reader: r, LocalsBase: base}
	vm.calls.Push(frame)
	debugf("call", zap.String("fn", fn.Name), zap.Int("depth", vm.calls.Len()))
	return frame, nil
}

// popFrame tears down the innermost frame and releases its locals.
func (vm *VM) popFrame() {
	f := vm.calls.Pop()
	vm.locals.Release(f.LocalsBase)
}

// ProfileCounters is the snapshot ResetProfile/Profile expose to a
// caller instrumenting how much work a call did: a dispatch count and
// an elapsed-tick total, both broken down per opcode byte value.
type ProfileCounters struct {
	PerOpcodeCount [256]uint64
	PerOpcodeTicks [256]uint64
}

// Profile returns the running counters since the last ResetProfile.
func (vm *VM) Profile() ProfileCounters {
	return ProfileCounters{
		PerOpcodeCount: vm.profilePerOpcodeCount,
		PerOpcodeTicks: vm.profilePerOpcodeTicks,
	}
}

// ResetProfile zeroes the running counters.
func (vm *VM) ResetProfile() {
	vm.profilePerOpcodeCount = [256]uint64{}
	vm.profilePerOpcodeTicks = [256]uint64{}
}
