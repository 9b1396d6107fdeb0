package binary

import (
	"github.com/wavmgo/wavm/internal/bitpack"
	"github.com/wavmgo/wavm/internal/ir"
)

func decodeTypeSection(m *ir.Module, r *reader) error {
	n, err := r.readUint32()
	if err != nil {
		return err
	}
	m.Types = make([]*ir.FunctionType, n)
	for i := range m.Types {
		ft, err := r.decodeFunctionType()
		if err != nil {
			return err
		}
		m.Types[i] = ft
	}
	return nil
}

const (
	externKindFunction = iota
	externKindTable
	externKindMemory
	externKindGlobal
	externKindExceptionType
)

func decodeImportSection(m *ir.Module, r *reader) error {
	n, err := r.readUint32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		mod, err := r.readName()
		if err != nil {
			return err
		}
		name, err := r.readName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		switch kind {
		case externKindFunction:
			idx, err := r.readUint32()
			if err != nil {
				return err
			}
			if int(idx) >= len(m.Types) {
				return malformed("import %q.%q: type index %d out of range", mod, name, idx)
			}
			m.FunctionImports = append(m.FunctionImports, ir.FunctionImport{Module: mod, Name: name, Type: m.Types[idx]})
		case externKindTable:
			tt, err := r.decodeTableType()
			if err != nil {
				return err
			}
			m.TableImports = append(m.TableImports, ir.TableImport{Module: mod, Name: name, Type: tt})
		case externKindMemory:
			mt, err := r.decodeMemoryType()
			if err != nil {
				return err
			}
			m.MemoryImports = append(m.MemoryImports, ir.MemoryImport{Module: mod, Name: name, Type: mt})
		case externKindGlobal:
			gt, err := r.decodeGlobalType()
			if err != nil {
				return err
			}
			m.GlobalImports = append(m.GlobalImports, ir.GlobalImport{Module: mod, Name: name, Type: gt})
		case externKindExceptionType:
			tt, err := r.decodeTypeTuple()
			if err != nil {
				return err
			}
			m.ExceptionTypeImports = append(m.ExceptionTypeImports, ir.ExceptionTypeImport{
				Module: mod, Name: name, Type: ir.ExceptionType{Params: tt},
			})
		default:
			return malformed("import %q.%q: unknown external kind %d", mod, name, kind)
		}
	}
	return nil
}

func decodeFunctionSection(m *ir.Module, r *reader) error {
	n, err := r.readUint32()
	if err != nil {
		return err
	}
	m.FunctionDefs = make([]ir.FunctionDef, n)
	for i := range m.FunctionDefs {
		idx, err := r.readUint32()
		if err != nil {
			return err
		}
		if int(idx) >= len(m.Types) {
			return malformed("function %d: type index %d out of range", i, idx)
		}
		m.FunctionDefs[i].TypeIndex = idx
	}
	return nil
}

func decodeTableSection(m *ir.Module, r *reader) error {
	n, err := r.readUint32()
	if err != nil {
		return err
	}
	m.TableDefs = make([]ir.TableType, n)
	for i := range m.TableDefs {
		tt, err := r.decodeTableType()
		if err != nil {
			return err
		}
		m.TableDefs[i] = tt
	}
	return nil
}

func decodeMemorySection(m *ir.Module, r *reader) error {
	n, err := r.readUint32()
	if err != nil {
		return err
	}
	m.MemoryDefs = make([]ir.MemoryType, n)
	for i := range m.MemoryDefs {
		mt, err := r.decodeMemoryType()
		if err != nil {
			return err
		}
		m.MemoryDefs[i] = mt
	}
	return nil
}

func decodeGlobalSection(m *ir.Module, r *reader) error {
	n, err := r.readUint32()
	if err != nil {
		return err
	}
	m.GlobalDefs = make([]ir.GlobalDef, n)
	for i := range m.GlobalDefs {
		gt, err := r.decodeGlobalType()
		if err != nil {
			return err
		}
		init, err := r.decodeInitializer()
		if err != nil {
			return err
		}
		m.GlobalDefs[i] = ir.GlobalDef{Type: gt, Init: init}
	}
	return nil
}

func decodeExportSection(m *ir.Module, r *reader) error {
	n, err := r.readUint32()
	if err != nil {
		return err
	}
	m.Exports = make([]ir.Export, n)
	for i := range m.Exports {
		name, err := r.readName()
		if err != nil {
			return err
		}
		kindByte, err := r.ReadByte()
		if err != nil {
			return err
		}
		idx, err := r.readUint32()
		if err != nil {
			return err
		}
		var kind ir.ExportKind
		switch kindByte {
		case externKindFunction:
			kind = ir.ExportKindFunction
		case externKindTable:
			kind = ir.ExportKindTable
		case externKindMemory:
			kind = ir.ExportKindMemory
		case externKindGlobal:
			kind = ir.ExportKindGlobal
		case externKindExceptionType:
			kind = ir.ExportKindExceptionType
		default:
			return malformed("export %q: unknown external kind %d", name, kindByte)
		}
		m.Exports[i] = ir.Export{Name: name, Kind: kind, Index: idx}
	}
	return nil
}

// Element-segment flag-byte bits, per spec.md §4.D's bulk-memory-proposal
// encoding: bit0 selects active(0)/non-active(1), bit1 disambiguates
// explicit-table(active)/declared(non-active), bit2 selects expr-encoded
// elements over bare function indices.
const (
	elemFlagNonActive   = 1 << 0
	elemFlagExplicitTbl = 1 << 1
	elemFlagExprs       = 1 << 2
)

func decodeElementSection(m *ir.Module, r *reader) error {
	n, err := r.readUint32()
	if err != nil {
		return err
	}
	m.ElementSegments = make([]ir.ElementSegment, n)
	for i := range m.ElementSegments {
		flags, err := r.ReadByte()
		if err != nil {
			return err
		}
		seg := ir.ElementSegment{ElementType: ir.ValueTypeFuncref}
		active := flags&elemFlagNonActive == 0
		if active {
			if flags&elemFlagExplicitTbl != 0 {
				idx, err := r.readUint32()
				if err != nil {
					return err
				}
				seg.TableIndex = idx
			}
			offset, err := r.decodeInitializer()
			if err != nil {
				return err
			}
			seg.Offset = offset
			seg.Kind = ir.ElementSegmentActive
		} else if flags&elemFlagExplicitTbl != 0 {
			seg.Kind = ir.ElementSegmentDeclared
		} else {
			seg.Kind = ir.ElementSegmentPassive
		}

		if flags&elemFlagExprs != 0 {
			if active && flags&elemFlagExplicitTbl != 0 || !active {
				rt, err := r.decodeRefType()
				if err != nil {
					return err
				}
				seg.ElementType = rt
			}
			cnt, err := r.readUint32()
			if err != nil {
				return err
			}
			seg.Exprs = make([]ir.ElemExpr, cnt)
			for j := range seg.Exprs {
				op, err := r.ReadByte()
				if err != nil {
					return err
				}
				switch op {
				case 0xD0:
					if _, err := r.decodeRefType(); err != nil {
						return err
					}
					seg.Exprs[j] = ir.ElemExpr{IsNull: true}
				case 0xD2:
					idx, err := r.readUint32()
					if err != nil {
						return err
					}
					seg.Exprs[j] = ir.ElemExpr{FuncIdx: idx}
				default:
					return malformed("element segment %d: unsupported expr opcode %#x", i, op)
				}
				end, err := r.ReadByte()
				if err != nil {
					return err
				}
				if end != 0x0B {
					return malformed("element segment %d: expr missing end", i)
				}
			}
		} else {
			if flags != 0 {
				kindByte, err := r.ReadByte()
				if err != nil {
					return err
				}
				if kindByte != 0 {
					return malformed("element segment %d: unsupported elemkind %d", i, kindByte)
				}
			}
			cnt, err := r.readUint32()
			if err != nil {
				return err
			}
			seg.FuncIndices = make([]uint32, cnt)
			for j := range seg.FuncIndices {
				idx, err := r.readUint32()
				if err != nil {
					return err
				}
				seg.FuncIndices[j] = idx
			}
		}
		m.ElementSegments[i] = seg
	}
	return nil
}

func decodeCodeSection(m *ir.Module, r *reader) error {
	n, err := r.readUint32()
	if err != nil {
		return err
	}
	if int(n) != len(m.FunctionDefs) {
		return malformed("code section has %d bodies but function section declared %d", n, len(m.FunctionDefs))
	}
	offsets := make([]uint64, len(m.FunctionDefs))
	for i := range m.FunctionDefs {
		size, err := r.readUint32()
		if err != nil {
			return err
		}
		offsets[i] = uint64(r.pos) // section-relative; sufficient to disambiguate frames within one module
		body, err := r.take(int(size))
		if err != nil {
			return err
		}
		br := &reader{buf: body}
		localCount, err := br.readUint32()
		if err != nil {
			return err
		}
		var locals []ir.ValueType
		for g := uint32(0); g < localCount; g++ {
			cnt, err := br.readUint32()
			if err != nil {
				return err
			}
			vt, err := br.decodeValueType()
			if err != nil {
				return err
			}
			for c := uint32(0); c < cnt; c++ {
				locals = append(locals, vt)
			}
		}
		m.FunctionDefs[i].LocalTypes = locals
		m.FunctionDefs[i].Body = append([]byte(nil), br.remaining()...)
		m.FunctionDefs[i].BodyOffset = offsets[i]
	}
	m.FunctionBodyOffsets = bitpack.NewOffsetArray(offsets)
	return nil
}

func decodeDataSection(m *ir.Module, r *reader) error {
	n, err := r.readUint32()
	if err != nil {
		return err
	}
	m.DataSegments = make([]ir.DataSegment, n)
	for i := range m.DataSegments {
		kind, err := r.readUint32()
		if err != nil {
			return err
		}
		var seg ir.DataSegment
		switch kind {
		case 0:
			offset, err := r.decodeInitializer()
			if err != nil {
				return err
			}
			seg.Active = true
			seg.Offset = offset
		case 1:
			seg.Active = false
		case 2:
			idx, err := r.readUint32()
			if err != nil {
				return err
			}
			offset, err := r.decodeInitializer()
			if err != nil {
				return err
			}
			seg.Active = true
			seg.MemoryIndex = idx
			seg.Offset = offset
		default:
			return malformed("data segment %d: unsupported flag %d", i, kind)
		}
		n, err := r.readUint32()
		if err != nil {
			return err
		}
		b, err := r.take(int(n))
		if err != nil {
			return err
		}
		seg.Bytes = append([]byte(nil), b...)
		m.DataSegments[i] = seg
	}
	return nil
}

// decodeExceptionSection parses the WAVM-extension exception-type section
// (id 0x7F): each entry is a type tuple of the exception's parameter types,
// matching spec.md §3's ExceptionType.
func decodeExceptionSection(m *ir.Module, r *reader) error {
	n, err := r.readUint32()
	if err != nil {
		return err
	}
	m.ExceptionTypeDefs = make([]ir.ExceptionType, n)
	for i := range m.ExceptionTypeDefs {
		tt, err := r.decodeTypeTuple()
		if err != nil {
			return err
		}
		m.ExceptionTypeDefs[i] = ir.ExceptionType{Params: tt}
	}
	return nil
}
