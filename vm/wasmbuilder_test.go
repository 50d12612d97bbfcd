package vm

// Hand-assembled binary WASM fixtures for the tests in this package,
// built the same way wazero's own decoder tests are: byte slices
// composed from known encodings, not produced by any external
// assembler. LEB128 and section framing are computed by these helpers
// rather than written out as magic numbers, since multi-byte LEB
// values are easy to get wrong by hand and there is no toolchain here
// to catch it.

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}

func bytesCat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func nameBytes(s string) []byte {
	return bytesCat(uleb(uint64(len(s))), []byte(s))
}

func vec(count int, items ...[]byte) []byte {
	out := uleb(uint64(count))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func section(id byte, payload []byte) []byte {
	return bytesCat([]byte{id}, uleb(uint64(len(payload))), payload)
}

func moduleHeader() []byte {
	return []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}
}

func assembleModule(sections ...[]byte) []byte {
	return bytesCat(moduleHeader(), bytesCat(sections...))
}

const (
	valI32 = byte(0x7F)
	valI64 = byte(0x7E)
	valF32 = byte(0x7D)
	valF64 = byte(0x7C)
)

func funcType(params, results []byte) []byte {
	return bytesCat([]byte{0x60}, uleb(uint64(len(params))), params, uleb(uint64(len(results))), results)
}

func typeSection(types ...[]byte) []byte {
	return section(secType, vec(len(types), types...))
}

func importFuncEntry(module, field string, typeIdx uint32) []byte {
	return bytesCat(nameBytes(module), nameBytes(field), []byte{importKindFunc}, uleb(uint64(typeIdx)))
}

func importSection(entries ...[]byte) []byte {
	return section(secImport, vec(len(entries), entries...))
}

func funcSection(sigIdxs ...uint32) []byte {
	items := make([][]byte, len(sigIdxs))
	for i, s := range sigIdxs {
		items[i] = uleb(uint64(s))
	}
	return section(secFunction, vec(len(items), items...))
}

func memorySection(minPages uint32) []byte {
	return section(secMemory, vec(1, bytesCat([]byte{0x00}, uleb(uint64(minPages)))))
}

func globalEntry(kind byte, mutable bool, initExpr []byte) []byte {
	mut := byte(0)
	if mutable {
		mut = 1
	}
	return bytesCat([]byte{kind, mut}, initExpr)
}

func globalSection(entries ...[]byte) []byte {
	return section(secGlobal, vec(len(entries), entries...))
}

func exportFuncEntry(name string, funcIdx uint32) []byte {
	return bytesCat(nameBytes(name), []byte{importKindFunc}, uleb(uint64(funcIdx)))
}

func exportSection(entries ...[]byte) []byte {
	return section(secExport, vec(len(entries), entries...))
}

type localsDecl struct {
	count uint64
	kind  byte
}

func codeEntry(localsDecls []localsDecl, body []byte) []byte {
	declBytes := uleb(uint64(len(localsDecls)))
	for _, d := range localsDecls {
		declBytes = append(declBytes, uleb(d.count)...)
		declBytes = append(declBytes, d.kind)
	}
	full := bytesCat(declBytes, body)
	return bytesCat(uleb(uint64(len(full))), full)
}

func codeSection(entries ...[]byte) []byte {
	return section(secCode, vec(len(entries), entries...))
}

func dataEntryActive(offsetExpr []byte, payload []byte) []byte {
	return bytesCat(uleb(0), offsetExpr, uleb(uint64(len(payload))), payload)
}

func dataSection(entries ...[]byte) []byte {
	return section(secData, vec(len(entries), entries...))
}

// Instruction encoders.

func ins(op Opcode) []byte { return []byte{byte(op)} }

func insI32Const(v int32) []byte { return bytesCat([]byte{byte(I32Const)}, sleb(int64(v))) }
func insI64Const(v int64) []byte { return bytesCat([]byte{byte(I64Const)}, sleb(v)) }

func insF32Const(v float32) []byte {
	var b [8]byte
	putF32(&b, v)
	return bytesCat([]byte{byte(F32Const)}, b[:4])
}
func insF64Const(v float64) []byte {
	var b [8]byte
	putF64(&b, v)
	return bytesCat([]byte{byte(F64Const)}, b[:8])
}

// f32LEBytes returns v's little-endian IEEE-754 encoding, the shape a
// data segment payload needs to preload linear memory with float data.
func f32LEBytes(v float32) []byte {
	var b [8]byte
	putF32(&b, v)
	return append([]byte(nil), b[:4]...)
}

func insLocalGet(idx uint32) []byte  { return bytesCat([]byte{byte(LocalGet)}, uleb(uint64(idx))) }
func insLocalSet(idx uint32) []byte  { return bytesCat([]byte{byte(LocalSet)}, uleb(uint64(idx))) }
func insLocalTee(idx uint32) []byte  { return bytesCat([]byte{byte(LocalTee)}, uleb(uint64(idx))) }
func insGlobalGet(idx uint32) []byte { return bytesCat([]byte{byte(GlobalGet)}, uleb(uint64(idx))) }
func insGlobalSet(idx uint32) []byte { return bytesCat([]byte{byte(GlobalSet)}, uleb(uint64(idx))) }
func insCall(idx uint32) []byte      { return bytesCat([]byte{byte(Call)}, uleb(uint64(idx))) }

func insCallIndirect(typeIdx uint32) []byte {
	return bytesCat([]byte{byte(CallIndirect)}, uleb(uint64(typeIdx)), uleb(0))
}

func insBr(depth uint32) []byte   { return bytesCat([]byte{byte(Br)}, uleb(uint64(depth))) }
func insBrIf(depth uint32) []byte { return bytesCat([]byte{byte(BrIf)}, uleb(uint64(depth))) }

func insBrTable(depths []uint32, def uint32) []byte {
	out := bytesCat([]byte{byte(BrTable)}, uleb(uint64(len(depths))))
	for _, d := range depths {
		out = append(out, uleb(uint64(d))...)
	}
	return append(out, uleb(uint64(def))...)
}

func insBlock() []byte { return []byte{byte(Block), blockTypeEmpty} }
func insLoop() []byte  { return []byte{byte(Loop), blockTypeEmpty} }
func insIf() []byte    { return []byte{byte(If), blockTypeEmpty} }
func insElse() []byte  { return []byte{byte(Else)} }
func insEnd() []byte   { return []byte{byte(End)} }

func insMemArg(op Opcode, align, offset uint32) []byte {
	return bytesCat([]byte{byte(op)}, uleb(uint64(align)), uleb(uint64(offset)))
}

func constExprI32(v int32) []byte { return bytesCat(insI32Const(v), insEnd()) }
func constExprI64(v int64) []byte { return bytesCat(insI64Const(v), insEnd()) }
