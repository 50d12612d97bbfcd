package vm

// The opcode walker drives a Reader across one function body in
// "pre-scan" mode: it never executes anything, it only tracks
// enough structure to build the jump-target map the interpreter later
// uses for O(1) branching, and to find where the function's code ends.
//
// It must fully parse every opcode's immediates to keep the cursor in
// sync — block/loop/if/else/end are given special handling; everything
// else is skipped by skipImmediates.

type blockKind byte

const (
	blockKindBlock blockKind = iota
	blockKindLoop
	blockKindIf
	blockKindElse
)

type openBlock struct {
	kind          blockKind
	openingOffset int // current chain link: the if/else opcode offset jumpTargets chains from
	rootOffset    int // the original block/loop/if opcode offset, stable across an else rewrite
}

// walkResult is everything the loader needs to resolve control flow
// for one function body.
type walkResult struct {
	// JumpTargets resolves the *structural* skip used while executing
	// an if: jumpTargets[ifOffset] is where to resume when the
	// condition is false — right after the matching else if one
	// exists, otherwise right after the matching end. It also resolves
	// falling off the end of a then-arm into its else-arm:
	// jumpTargets[elseOffset] is right after that else's matching end.
	JumpTargets map[int]int

	// BranchTargets resolves the *branch-exit* destination for a
	// block/if construct: branchTargets[openOffset] is right after its
	// final matching end, keyed by the construct's own opening offset
	// regardless of any else in between. A loop has no entry here — a
	// branch targeting a loop always re-enters at the loop's start,
	// which the interpreter computes live rather than from this map.
	BranchTargets map[int]int
}

// walkFunctionBody starts at a Reader positioned just after a
// function's local declarations and runs until the opcode stack it
// maintains empties out on an `end` — that `end` is the function's
// terminator, and the reader is left just past it.
func walkFunctionBody(r *Reader) (*walkResult, error) {
	res := &walkResult{
		JumpTargets:   make(map[int]int),
		BranchTargets: make(map[int]int),
	}
	var stack []openBlock

	for {
		opOffset := r.Pos()
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		op := Opcode(b)

		switch op {
		case Block, Loop, If:
			// block-type immediate: a signed LEB128 (s33 in the spec);
			// this core has no use for it since branching never
			// depends on block arity, only on these maps.
			if _, err := r.ReadLEBSigned(); err != nil {
				return nil, err
			}
			kind := blockKindBlock
			switch op {
			case Loop:
				kind = blockKindLoop
			case If:
				kind = blockKindIf
			}
			stack = append(stack, openBlock{kind: kind, openingOffset: opOffset, rootOffset: opOffset})

		case Else:
			if len(stack) == 0 || stack[len(stack)-1].kind != blockKindIf {
				return nil, &InvalidValueError{Offset: opOffset, Byte: b}
			}
			top := stack[len(stack)-1]
			res.JumpTargets[top.openingOffset] = r.Pos()
			stack[len(stack)-1] = openBlock{kind: blockKindElse, openingOffset: opOffset, rootOffset: top.rootOffset}

		case End:
			if len(stack) == 0 {
				// This end closes the function itself.
				return res, nil
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			res.JumpTargets[top.openingOffset] = r.Pos()
			if top.kind != blockKindLoop {
				res.BranchTargets[top.rootOffset] = r.Pos()
			}

		default:
			if err := skipImmediates(r, op); err != nil {
				return nil, err
			}
		}
	}
}

// skipImmediates advances r past the immediates of any opcode that
// isn't block/loop/if/else/end (those are handled by walkFunctionBody
// itself, since they also need their offsets recorded).
func skipImmediates(r *Reader, op Opcode) error {
	switch op {
	case Br, BrIf, Call, LocalGet, LocalSet, LocalTee, GlobalGet, GlobalSet:
		_, err := r.ReadLEBUnsigned()
		return err

	case CallIndirect:
		if _, err := r.ReadLEBUnsigned(); err != nil { // type index
			return err
		}
		_, err := r.ReadLEBUnsigned() // table index (reserved, always 0 in the MVP)
		return err

	case BrTable:
		n, err := r.ReadLEBUnsigned()
		if err != nil {
			return err
		}
		for i := uint64(0); i < n; i++ {
			if _, err := r.ReadLEBUnsigned(); err != nil {
				return err
			}
		}
		_, err = r.ReadLEBUnsigned() // default depth
		return err

	case I32Const, I64Const:
		_, err := r.ReadLEBSigned()
		return err

	case F32Const:
		_, err := r.ReadSlice(4)
		return err

	case F64Const:
		_, err := r.ReadSlice(8)
		return err
	}

	if op >= I32Load && op <= I64Store32 {
		if _, err := r.ReadLEBUnsigned(); err != nil { // alignment hint
			return err
		}
		_, err := r.ReadLEBUnsigned() // static offset
		return err
	}

	if opcodeIsValid(op) {
		// unreachable, nop, drop, select, return, and every
		// comparison/arithmetic/conversion opcode: no immediates.
		return nil
	}

	return &UnsupportedOpcodeError{Op: op}
}

// opcodeIsValid reports whether op is one this core knows the
// immediate shape of. Anything outside the WASM 1.0 MVP plus
// sign-extension opcodes (SIMD, threads, bulk-memory prefixes) can't
// be safely skipped without knowing a shape this core doesn't
// implement, so loading a module containing one fails fast here
// rather than mis-parsing the rest of the function body.
func opcodeIsValid(op Opcode) bool {
	switch op {
	case Unreachable, OpNop, Block, Loop, If, Else, End, Br, BrIf, BrTable,
		Return, Call, CallIndirect, Drop, Select:
		return true
	}
	if op >= LocalGet && op <= GlobalSet {
		return true
	}
	if op >= I32Load && op <= I64Store32 {
		return true
	}
	if op >= I32Const && op <= I64Extend32S {
		return true
	}
	return false
}
