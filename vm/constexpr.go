package vm

// evalConstExpr runs the restricted subset interpreter used for global
// initializers and data-segment offsets: a single *Const opcode,
// or a global.get of any global present in resolvedGlobals (imported
// or defined; its mutability is not checked), followed by end.
// Nothing else is legal here.
//
// resolvedGlobals holds the already-computed value of every global
// whose index is less than the one currently being initialized, laid
// out the same way the interpreter's value slots are: 8 bytes per
// entry, little-endian, reinterpreted per the global's own kind.
func evalConstExpr(expr []byte, resolvedGlobals [][8]byte) ([8]byte, error) {
	r := NewReader(expr)
	var out [8]byte

	op, err := r.ReadByte()
	if err != nil {
		return out, err
	}

	switch Opcode(op) {
	case I32Const:
		v, err := r.ReadLEBSigned()
		if err != nil {
			return out, err
		}
		putI32(&out, int32(v))

	case I64Const:
		v, err := r.ReadLEBSigned()
		if err != nil {
			return out, err
		}
		putI64(&out, v)

	case F32Const:
		v, err := r.ReadF32LE()
		if err != nil {
			return out, err
		}
		putF32(&out, v)

	case F64Const:
		v, err := r.ReadF64LE()
		if err != nil {
			return out, err
		}
		putF64(&out, v)

	case GlobalGet:
		idx, err := r.ReadLEBUnsigned()
		if err != nil {
			return out, err
		}
		if int(idx) >= len(resolvedGlobals) {
			return out, ErrInvalidGlobalIndex
		}
		out = resolvedGlobals[idx]

	default:
		return out, ErrUnsupportedConstOpcode
	}

	end, err := r.ReadByte()
	if err != nil {
		return out, err
	}
	if Opcode(end) != End {
		return out, &InvalidValueError{Offset: r.Pos() - 1, Byte: end}
	}
	return out, nil
}

// evalConstExprU32 evaluates expr and interprets the result as an i32,
// the shape every data-segment offset expression takes.
func evalConstExprU32(expr []byte, resolvedGlobals [][8]byte) (uint32, error) {
	v, err := evalConstExpr(expr, resolvedGlobals)
	if err != nil {
		return 0, err
	}
	return uint32(getI32(v)), nil
}
