package vm

import (
	"go.uber.org/zap"
)

var wasmMagic = [4]byte{0x00, 'a', 's', 'm'}
var wasmVersion = [4]byte{0x01, 0x00, 0x00, 0x00}

const (
	secCustom   = 0x00
	secType     = 0x01
	secImport   = 0x02
	secFunction = 0x03
	secTable    = 0x04
	secMemory   = 0x05
	secGlobal   = 0x06
	secExport   = 0x07
	secStart    = 0x08
	secElement  = 0x09
	secCode     = 0x0A
	secData     = 0x0B
)

const (
	importKindFunc   = 0x00
	importKindTable  = 0x01
	importKindMemory = 0x02
	importKindGlobal = 0x03
)

// Parse decodes a binary WebAssembly module into a Module ready
// for InitGlobals, InitMemory and ExecuteFunction. It drives a single
// Reader across the section table in file order; WASM permits sections
// in any order after import but in practice every producer emits them
// in ascending id order, and this loader requires the same.
func Parse(raw []byte) (*Module, error) {
	r := NewReader(raw)
	magic, err := r.ReadFixed4()
	if err != nil {
		return nil, err
	}
	if magic != wasmMagic {
		return nil, ErrUnexpectedBytes
	}
	version, err := r.ReadFixed4()
	if err != nil {
		return nil, err
	}
	if version != wasmVersion {
		return nil, &InvalidValueError{Offset: 4, Byte: version[0]}
	}

	m := &Module{
		NameToFunctionIndex: make(map[string]int),
		rawBytes:            raw,
	}

	var funcSigIndices []uint32
	importedFuncCount := 0

	for r.Len() > 0 {
		kind, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		size, err := r.ReadLEBUnsigned()
		if err != nil {
			return nil, err
		}
		sectionEnd := r.Pos() + int(size)

		switch kind {
		case secType:
			err = parseTypeSection(r, m)
		case secImport:
			var n int
			n, err = parseImportSection(r, m)
			importedFuncCount = n
		case secFunction:
			funcSigIndices, err = parseFunctionSection(r)
		case secTable:
			err = parseTableSection(r, m)
		case secMemory:
			// Memory limits are advisory only — InitMemory's caller owns
			// the actual buffer, so this section is parsed only
			// to keep the reader in sync with what follows it.
			err = skipLimitsVector(r)
		case secGlobal:
			err = parseGlobalSection(r, m)
		case secExport:
			err = parseExportSection(r, m)
		case secStart:
			// Recognized but inert: this core is always entered through
			// ExecuteFunction against a caller-named export, never an
			// implicit start function.
			_, err = r.ReadLEBUnsigned()
		case secElement:
			err = parseElementSection(r, m)
		case secCode:
			err = parseCodeSection(r, m, funcSigIndices)
		case secData:
			err = parseDataSection(r, m)
		case secCustom:
			// Name section and friends: skipped whole, by length.
		default:
			err = &UnsupportedSectionError{Kind: kind}
		}
		if err != nil {
			return nil, err
		}

		r.SkipTo(sectionEnd)
	}

	m.NumImportedFunctions = importedFuncCount

	m.GlobalsByteOffsets = make([]uint32, len(m.Globals))
	var goff uint32
	for i, g := range m.Globals {
		m.GlobalsByteOffsets[i] = goff
		goff += g.Kind.LenBytes()
	}
	m.GlobalsBytesTotal = goff

	debugf("parsed module",
		zap.Int("functions", len(m.Functions)),
		zap.Int("globals", len(m.Globals)),
		zap.Int("dataSegments", len(m.DataSegments)))
	return m, nil
}

func parseTypeSection(r *Reader, m *Module) error {
	n, err := r.ReadLEBUnsigned()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		form, err := r.ReadByte()
		if err != nil {
			return err
		}
		if form != 0x60 {
			return &InvalidValueError{Offset: r.Pos() - 1, Byte: form}
		}
		params, err := readValueKindVector(r)
		if err != nil {
			return err
		}
		results, err := readValueKindVector(r)
		if err != nil {
			return err
		}
		m.FunctionTypes = append(m.FunctionTypes, FunctionType{Params: params, Results: results})
	}
	return nil
}

func readValueKindVector(r *Reader) ([]ValueKind, error) {
	n, err := r.ReadLEBUnsigned()
	if err != nil {
		return nil, err
	}
	out := make([]ValueKind, n)
	for i := range out {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		out[i] = valueKindFromByte(b)
	}
	return out, nil
}

func valueKindFromByte(b byte) ValueKind {
	switch b {
	case 0x7F:
		return I32
	case 0x7E:
		return I64
	case 0x7D:
		return F32
	case 0x7C:
		return F64
	case 0x70:
		return FuncRef
	default:
		return Void
	}
}

func readLimits(r *Reader) (min, max uint32, hasMax bool, err error) {
	flags, err := r.ReadByte()
	if err != nil {
		return 0, 0, false, err
	}
	mn, err := r.ReadLEBUnsigned()
	if err != nil {
		return 0, 0, false, err
	}
	min = uint32(mn)
	if flags == 1 {
		mx, err := r.ReadLEBUnsigned()
		if err != nil {
			return 0, 0, false, err
		}
		max = uint32(mx)
		hasMax = true
	}
	return min, max, hasMax, nil
}

func skipLimitsVector(r *Reader) error {
	n, err := r.ReadLEBUnsigned()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		if _, _, _, err := readLimits(r); err != nil {
			return err
		}
	}
	return nil
}

func parseTableType(r *Reader) (TableType, error) {
	elemKindByte, err := r.ReadByte()
	if err != nil {
		return TableType{}, err
	}
	min, max, hasMax, err := readLimits(r)
	if err != nil {
		return TableType{}, err
	}
	return TableType{ElementKind: valueKindFromByte(elemKindByte), LimitsMin: min, LimitsMax: max, HasMax: hasMax}, nil
}

// zeroConstExpr synthesizes the constant expression used for an
// imported global: this core has no channel for a host to supply an
// imported global's actual value, so it reads as the kind's zero
// value instead.
func zeroConstExpr(kind ValueKind) []byte {
	switch kind {
	case I64:
		return []byte{byte(I64Const), 0x00, byte(End)}
	case F32:
		return []byte{byte(F32Const), 0, 0, 0, 0, byte(End)}
	case F64:
		return []byte{byte(F64Const), 0, 0, 0, 0, 0, 0, 0, 0, byte(End)}
	default:
		return []byte{byte(I32Const), 0x00, byte(End)}
	}
}

func parseImportSection(r *Reader, m *Module) (int, error) {
	n, err := r.ReadLEBUnsigned()
	if err != nil {
		return 0, err
	}
	importedFuncs := 0
	for i := uint64(0); i < n; i++ {
		if _, err := r.ReadName(); err != nil { // module name: imports resolve positionally, not by name
			return 0, err
		}
		field, err := r.ReadName()
		if err != nil {
			return 0, err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		switch kind {
		case importKindFunc:
			typeIdx, err := r.ReadLEBUnsigned()
			if err != nil {
				return 0, err
			}
			m.Functions = append(m.Functions, Function{SignatureIndex: uint32(typeIdx), Name: field})
			m.NameToFunctionIndex[field] = len(m.Functions) - 1
			importedFuncs++
		case importKindTable:
			tt, err := parseTableType(r)
			if err != nil {
				return 0, err
			}
			m.Tables = append(m.Tables, tt)
		case importKindMemory:
			if _, _, _, err := readLimits(r); err != nil {
				return 0, err
			}
		case importKindGlobal:
			kindByte, err := r.ReadByte()
			if err != nil {
				return 0, err
			}
			mutByte, err := r.ReadByte()
			if err != nil {
				return 0, err
			}
			vk := valueKindFromByte(kindByte)
			mut := Const
			if mutByte == 1 {
				mut = Var
			}
			m.Globals = append(m.Globals, Global{Kind: vk, Mutability: mut, InitExpr: zeroConstExpr(vk)})
		default:
			return 0, &InvalidValueError{Offset: r.Pos(), Byte: kind}
		}
	}
	return importedFuncs, nil
}

func parseFunctionSection(r *Reader) ([]uint32, error) {
	n, err := r.ReadLEBUnsigned()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		idx, err := r.ReadLEBUnsigned()
		if err != nil {
			return nil, err
		}
		out[i] = uint32(idx)
	}
	return out, nil
}

func parseTableSection(r *Reader, m *Module) error {
	n, err := r.ReadLEBUnsigned()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		tt, err := parseTableType(r)
		if err != nil {
			return err
		}
		m.Tables = append(m.Tables, tt)
	}
	return nil
}

// readConstExprBytes consumes one constant expression — a single
// *const opcode or a global.get, followed by end — and returns its raw
// bytes for later evaluation by evalConstExpr.
func readConstExprBytes(r *Reader) ([]byte, error) {
	start := r.Mark()
	op, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch Opcode(op) {
	case I32Const, I64Const:
		if _, err := r.ReadLEBSigned(); err != nil {
			return nil, err
		}
	case F32Const:
		if _, err := r.ReadSlice(4); err != nil {
			return nil, err
		}
	case F64Const:
		if _, err := r.ReadSlice(8); err != nil {
			return nil, err
		}
	case GlobalGet:
		if _, err := r.ReadLEBUnsigned(); err != nil {
			return nil, err
		}
	default:
		return nil, ErrUnsupportedConstOpcode
	}
	end, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if Opcode(end) != End {
		return nil, &InvalidValueError{Offset: r.Pos() - 1, Byte: end}
	}
	return r.SliceSince(start), nil
}

func parseGlobalSection(r *Reader, m *Module) error {
	n, err := r.ReadLEBUnsigned()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		kindByte, err := r.ReadByte()
		if err != nil {
			return err
		}
		mutByte, err := r.ReadByte()
		if err != nil {
			return err
		}
		expr, err := readConstExprBytes(r)
		if err != nil {
			return err
		}
		mut := Const
		if mutByte == 1 {
			mut = Var
		}
		m.Globals = append(m.Globals, Global{Kind: valueKindFromByte(kindByte), Mutability: mut, InitExpr: expr})
	}
	return nil
}

func parseExportSection(r *Reader, m *Module) error {
	n, err := r.ReadLEBUnsigned()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		idx, err := r.ReadLEBUnsigned()
		if err != nil {
			return err
		}
		if kind == importKindFunc {
			m.NameToFunctionIndex[name] = int(idx)
		}
		// Table/memory/global exports are recognized but not tracked:
		// only function exports are a caller-visible entry point here.
	}
	return nil
}

// parseElementSection is recognized but inert: call_indirect
// resolves exactly like a direct call against the popped function
// index, so no table is ever actually populated from this section.
func parseElementSection(r *Reader, m *Module) error {
	n, err := r.ReadLEBUnsigned()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		if _, err := r.ReadLEBUnsigned(); err != nil { // table index
			return err
		}
		if _, err := readConstExprBytes(r); err != nil {
			return err
		}
		count, err := r.ReadLEBUnsigned()
		if err != nil {
			return err
		}
		for j := uint64(0); j < count; j++ {
			if _, err := r.ReadLEBUnsigned(); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseDataSection(r *Reader, m *Module) error {
	n, err := r.ReadLEBUnsigned()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		flags, err := r.ReadLEBUnsigned()
		if err != nil {
			return err
		}
		offsetExpr, err := readConstExprBytes(r)
		if err != nil {
			return err
		}
		size, err := r.ReadLEBUnsigned()
		if err != nil {
			return err
		}
		payload, err := r.ReadSlice(int(size))
		if err != nil {
			return err
		}
		m.DataSegments = append(m.DataSegments, DataSegment{
			Flags:      uint32(flags),
			OffsetExpr: offsetExpr,
			Payload:    append([]byte(nil), payload...),
		})
	}
	return nil
}

func parseCodeSection(r *Reader, m *Module, funcSigIndices []uint32) error {
	n, err := r.ReadLEBUnsigned()
	if err != nil {
		return err
	}
	if int(n) != len(funcSigIndices) {
		return &InvalidValueError{Offset: r.Pos()}
	}
	for i := uint64(0); i < n; i++ {
		bodySize, err := r.ReadLEBUnsigned()
		if err != nil {
			return err
		}
		bodyEnd := r.Pos() + int(bodySize)

		sigIdx := funcSigIndices[i]
		sig := m.FunctionTypes[sigIdx]

		localsKinds := make([]ValueKind, 0, len(sig.Params))
		localsByteOffsets := make([]uint32, 0, len(sig.Params))
		var off uint32
		for _, p := range sig.Params {
			localsKinds = append(localsKinds, p)
			localsByteOffsets = append(localsByteOffsets, off)
			off += p.LenBytes()
		}
		paramsBytes := off

		declCount, err := r.ReadLEBUnsigned()
		if err != nil {
			return err
		}
		for g := uint64(0); g < declCount; g++ {
			cnt, err := r.ReadLEBUnsigned()
			if err != nil {
				return err
			}
			kindByte, err := r.ReadByte()
			if err != nil {
				return err
			}
			kind := valueKindFromByte(kindByte)
			for c := uint64(0); c < cnt; c++ {
				localsKinds = append(localsKinds, kind)
				localsByteOffsets = append(localsByteOffsets, off)
				off += kind.LenBytes()
			}
		}
		nonParamBytes := off - paramsBytes

		codeStart := r.Pos()
		wr, err := walkFunctionBody(r)
		if err != nil {
			return err
		}
		code := r.SliceSince(codeStart)
		code = code[:len(code)-1] // drop the terminal end

		m.Functions = append(m.Functions, Function{
			SignatureIndex: sigIdx,
			Body: &FuncBody{
				Code:                code,
				CodeOffsetInModule:  codeStart,
				LocalsKinds:         localsKinds,
				LocalsByteOffsets:   localsByteOffsets,
				ParamsBytes:         paramsBytes,
				NonParamLocalsBytes: nonParamBytes,
				JumpTargets:         wr.JumpTargets,
				BranchTargets:       wr.BranchTargets,
			},
		})

		r.SkipTo(bodyEnd)
	}
	return nil
}
