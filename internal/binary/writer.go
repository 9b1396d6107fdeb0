package binary

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/leb128"
)

// writer accumulates encoded bytes. Every emitted integer uses leb128's
// shortest-form encoder, so EncodeModule(Decode(b)) reproduces b modulo the
// canonicalizations spec.md §4.D calls out (LEB128 shortest form, and a
// zero-length memory/table index omitted unless multiple-memories/tables
// is in play).
type writer struct{ buf bytes.Buffer }

func (w *writer) WriteByte(b byte)        { w.buf.WriteByte(b) }
func (w *writer) Write(b []byte)          { w.buf.Write(b) }
func (w *writer) writeUint32(v uint32)    { w.buf.Write(leb128.EncodeUint32(v)) }
func (w *writer) writeUint64(v uint64)    { w.buf.Write(leb128.EncodeUint64(v)) }
func (w *writer) writeInt32(v int32)      { w.buf.Write(leb128.EncodeInt32(v)) }
func (w *writer) writeInt64(v int64)      { w.buf.Write(leb128.EncodeInt64(v)) }
func (w *writer) writeName(s string) {
	w.writeUint32(uint32(len(s)))
	w.buf.WriteString(s)
}
func (w *writer) writeFloat32(v float32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	w.buf.Write(b[:])
}
func (w *writer) writeFloat64(v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	w.buf.Write(b[:])
}

func (w *writer) writeValueType(t ir.ValueType) { w.writeInt32(valueTypeByte(t)) }

func (w *writer) writeRefType(t ir.ValueType) {
	switch t {
	case ir.ValueTypeFuncref:
		w.WriteByte(0x70)
	case ir.ValueTypeExternref:
		w.WriteByte(0x6F)
	}
}

func (w *writer) writeTypeTuple(tt *ir.TypeTuple) {
	types := tt.Types()
	w.writeUint32(uint32(len(types)))
	for _, t := range types {
		w.writeValueType(t)
	}
}

func (w *writer) writeFunctionType(ft *ir.FunctionType) {
	if ft.CC == ir.CallingConventionWasm {
		w.WriteByte(0x60)
	} else {
		w.WriteByte(0x61)
		w.WriteByte(byte(ft.CC))
	}
	w.writeTypeTuple(ft.Params)
	w.writeTypeTuple(ft.Results)
}

func (w *writer) writeSizeConstraints(flags byte, sc ir.SizeConstraints) {
	is64 := flags&tableFlag64 != 0
	if is64 {
		w.writeUint64(sc.Min)
	} else {
		w.writeUint32(uint32(sc.Min))
	}
	if sc.HasMax() {
		if is64 {
			w.writeUint64(sc.Max)
		} else {
			w.writeUint32(uint32(sc.Max))
		}
	}
}

func sizeFlags(sc ir.SizeConstraints, shared bool, idxType ir.ValueType) byte {
	var flags byte
	if sc.HasMax() {
		flags |= tableFlagHasMax
	}
	if shared {
		flags |= tableFlagShared
	}
	if idxType == ir.ValueTypeI64 {
		flags |= tableFlag64
	}
	return flags
}

func (w *writer) writeTableType(tt ir.TableType) {
	w.writeRefType(tt.Element)
	flags := sizeFlags(tt.Size, tt.Shared, tt.IndexType)
	w.WriteByte(flags)
	w.writeSizeConstraints(flags, tt.Size)
}

func (w *writer) writeMemoryType(mt ir.MemoryType) {
	flags := sizeFlags(mt.Size, mt.Shared, mt.IndexType)
	w.WriteByte(flags)
	w.writeSizeConstraints(flags, mt.Size)
}

func (w *writer) writeGlobalType(gt ir.GlobalType) {
	w.writeValueType(gt.Value)
	if gt.Mutable {
		w.WriteByte(1)
	} else {
		w.WriteByte(0)
	}
}

func (w *writer) writeInitializer(init ir.Initializer) {
	switch init.Kind {
	case ir.InitExprI32Const:
		w.WriteByte(0x41)
		w.writeInt32(init.I32)
	case ir.InitExprI64Const:
		w.WriteByte(0x42)
		w.writeInt64(init.I64)
	case ir.InitExprF32Const:
		w.WriteByte(0x43)
		w.writeFloat32(init.F32)
	case ir.InitExprF64Const:
		w.WriteByte(0x44)
		w.writeFloat64(init.F64)
	case ir.InitExprV128Const:
		w.WriteByte(0xFD)
		w.writeUint32(12)
		w.Write(init.V128[:])
	case ir.InitExprGlobalGet:
		w.WriteByte(0x23)
		w.writeUint32(init.GlobalIdx)
	case ir.InitExprRefNull:
		w.WriteByte(0xD0)
		w.writeRefType(init.RefType)
	case ir.InitExprRefFunc:
		w.WriteByte(0xD2)
		w.writeUint32(init.FuncIdx)
	}
	w.WriteByte(0x0B)
}

// section writes id, the LEB128-encoded byte length of body, then body —
// spec.md §4.D's section framing.
func section(out *bytes.Buffer, id byte, body []byte) {
	out.WriteByte(id)
	out.Write(leb128.EncodeUint32(uint32(len(body))))
	out.Write(body)
}

// EncodeModule serializes m back into a binary Wasm module. Custom
// sections are re-emitted after the known section they were anchored to
// during decode (spec.md §4.D). When m.Names is set and no custom section
// is named "name", m.Names is encoded as a trailing "name" section.
func EncodeModule(m *ir.Module) []byte {
	var out bytes.Buffer
	out.Write(magic[:])
	var verBuf [4]byte
	binary.LittleEndian.PutUint32(verBuf[:], version)
	out.Write(verBuf[:])

	emitCustom := func(afterID byte) {
		for _, cs := range m.CustomSections {
			if cs.AfterSectionID == afterID {
				var body bytes.Buffer
				body.Write(leb128.EncodeUint32(uint32(len(cs.Name))))
				body.WriteString(cs.Name)
				body.Write(cs.Data)
				section(&out, SectionCustom, body.Bytes())
			}
		}
	}
	emitCustom(0xFF)

	if len(m.Types) > 0 {
		w := &writer{}
		w.writeUint32(uint32(len(m.Types)))
		for _, ft := range m.Types {
			w.writeFunctionType(ft)
		}
		section(&out, SectionType, w.buf.Bytes())
	}
	emitCustom(SectionType)

	if n := len(m.FunctionImports) + len(m.TableImports) + len(m.MemoryImports) + len(m.GlobalImports) + len(m.ExceptionTypeImports); n > 0 {
		w := &writer{}
		w.writeUint32(uint32(n))
		for _, fi := range m.FunctionImports {
			w.writeName(fi.Module)
			w.writeName(fi.Name)
			w.WriteByte(externKindFunction)
			w.writeUint32(typeIndexOf(m, fi.Type))
		}
		for _, ti := range m.TableImports {
			w.writeName(ti.Module)
			w.writeName(ti.Name)
			w.WriteByte(externKindTable)
			w.writeTableType(ti.Type)
		}
		for _, mi := range m.MemoryImports {
			w.writeName(mi.Module)
			w.writeName(mi.Name)
			w.WriteByte(externKindMemory)
			w.writeMemoryType(mi.Type)
		}
		for _, gi := range m.GlobalImports {
			w.writeName(gi.Module)
			w.writeName(gi.Name)
			w.WriteByte(externKindGlobal)
			w.writeGlobalType(gi.Type)
		}
		for _, ei := range m.ExceptionTypeImports {
			w.writeName(ei.Module)
			w.writeName(ei.Name)
			w.WriteByte(externKindExceptionType)
			w.writeTypeTuple(ei.Type.Params)
		}
		section(&out, SectionImport, w.buf.Bytes())
	}
	emitCustom(SectionImport)

	if len(m.FunctionDefs) > 0 {
		w := &writer{}
		w.writeUint32(uint32(len(m.FunctionDefs)))
		for _, fd := range m.FunctionDefs {
			w.writeUint32(fd.TypeIndex)
		}
		section(&out, SectionFunction, w.buf.Bytes())
	}
	emitCustom(SectionFunction)

	if len(m.TableDefs) > 0 {
		w := &writer{}
		w.writeUint32(uint32(len(m.TableDefs)))
		for _, tt := range m.TableDefs {
			w.writeTableType(tt)
		}
		section(&out, SectionTable, w.buf.Bytes())
	}
	emitCustom(SectionTable)

	if len(m.MemoryDefs) > 0 {
		w := &writer{}
		w.writeUint32(uint32(len(m.MemoryDefs)))
		for _, mt := range m.MemoryDefs {
			w.writeMemoryType(mt)
		}
		section(&out, SectionMemory, w.buf.Bytes())
	}
	emitCustom(SectionMemory)

	if len(m.GlobalDefs) > 0 {
		w := &writer{}
		w.writeUint32(uint32(len(m.GlobalDefs)))
		for _, gd := range m.GlobalDefs {
			w.writeGlobalType(gd.Type)
			w.writeInitializer(gd.Init)
		}
		section(&out, SectionGlobal, w.buf.Bytes())
	}
	emitCustom(SectionGlobal)

	if len(m.Exports) > 0 {
		w := &writer{}
		w.writeUint32(uint32(len(m.Exports)))
		for _, ex := range m.Exports {
			w.writeName(ex.Name)
			w.WriteByte(exportKindByte(ex.Kind))
			w.writeUint32(ex.Index)
		}
		section(&out, SectionExport, w.buf.Bytes())
	}
	emitCustom(SectionExport)

	if m.HasStartFunction {
		w := &writer{}
		w.writeUint32(m.StartFunctionIndex)
		section(&out, SectionStart, w.buf.Bytes())
	}
	emitCustom(SectionStart)

	if len(m.ElementSegments) > 0 {
		w := &writer{}
		w.writeUint32(uint32(len(m.ElementSegments)))
		for _, seg := range m.ElementSegments {
			writeElementSegment(w, seg)
		}
		section(&out, SectionElement, w.buf.Bytes())
	}
	emitCustom(SectionElement)

	if len(m.DataSegments) > 0 {
		w := &writer{}
		w.writeUint32(uint32(len(m.DataSegments)))
		section(&out, SectionDataCount, w.buf.Bytes())
	}
	emitCustom(SectionDataCount)

	if len(m.FunctionDefs) > 0 {
		w := &writer{}
		w.writeUint32(uint32(len(m.FunctionDefs)))
		for _, fd := range m.FunctionDefs {
			body := encodeFunctionBody(fd)
			w.writeUint32(uint32(len(body)))
			w.Write(body)
		}
		section(&out, SectionCode, w.buf.Bytes())
	}
	emitCustom(SectionCode)

	if len(m.DataSegments) > 0 {
		w := &writer{}
		w.writeUint32(uint32(len(m.DataSegments)))
		for _, seg := range m.DataSegments {
			writeDataSegment(w, seg)
		}
		section(&out, SectionData, w.buf.Bytes())
	}
	emitCustom(SectionData)

	if len(m.ExceptionTypeDefs) > 0 {
		w := &writer{}
		w.writeUint32(uint32(len(m.ExceptionTypeDefs)))
		for _, et := range m.ExceptionTypeDefs {
			w.writeTypeTuple(et.Params)
		}
		section(&out, SectionException, w.buf.Bytes())
	}
	emitCustom(SectionException)

	if m.Names != nil {
		hasNameSection := false
		for _, cs := range m.CustomSections {
			hasNameSection = hasNameSection || cs.Name == "name"
		}
		if !hasNameSection {
			var body bytes.Buffer
			body.Write(leb128.EncodeUint32(4))
			body.WriteString("name")
			body.Write(EncodeNameSection(m.Names))
			section(&out, SectionCustom, body.Bytes())
		}
	}

	return out.Bytes()
}

func typeIndexOf(m *ir.Module, ft *ir.FunctionType) uint32 {
	for i, t := range m.Types {
		if t == ft {
			return uint32(i)
		}
	}
	return 0
}

func exportKindByte(k ir.ExportKind) byte {
	switch k {
	case ir.ExportKindFunction:
		return externKindFunction
	case ir.ExportKindTable:
		return externKindTable
	case ir.ExportKindMemory:
		return externKindMemory
	case ir.ExportKindGlobal:
		return externKindGlobal
	default:
		return externKindExceptionType
	}
}

func writeElementSegment(w *writer, seg ir.ElementSegment) {
	exprs := seg.Exprs != nil
	var flags byte
	switch seg.Kind {
	case ir.ElementSegmentPassive:
		flags = elemFlagNonActive
	case ir.ElementSegmentDeclared:
		flags = elemFlagNonActive | elemFlagExplicitTbl
	case ir.ElementSegmentActive:
		if seg.TableIndex != 0 {
			flags = elemFlagExplicitTbl
		}
	}
	if exprs {
		flags |= elemFlagExprs
	}
	w.WriteByte(flags)

	if seg.Kind == ir.ElementSegmentActive {
		if flags&elemFlagExplicitTbl != 0 {
			w.writeUint32(seg.TableIndex)
		}
		w.writeInitializer(seg.Offset)
	}

	if exprs {
		needsType := (seg.Kind == ir.ElementSegmentActive && flags&elemFlagExplicitTbl != 0) || seg.Kind != ir.ElementSegmentActive
		if needsType {
			w.writeRefType(seg.ElementType)
		}
		w.writeUint32(uint32(len(seg.Exprs)))
		for _, e := range seg.Exprs {
			if e.IsNull {
				w.WriteByte(0xD0)
				w.writeRefType(seg.ElementType)
			} else {
				w.WriteByte(0xD2)
				w.writeUint32(e.FuncIdx)
			}
			w.WriteByte(0x0B)
		}
	} else {
		if flags != 0 {
			w.WriteByte(0) // elemkind: funcref
		}
		w.writeUint32(uint32(len(seg.FuncIndices)))
		for _, idx := range seg.FuncIndices {
			w.writeUint32(idx)
		}
	}
}

func writeDataSegment(w *writer, seg ir.DataSegment) {
	switch {
	case seg.Active && seg.MemoryIndex == 0:
		w.writeUint32(0)
		w.writeInitializer(seg.Offset)
	case !seg.Active:
		w.writeUint32(1)
	default:
		w.writeUint32(2)
		w.writeUint32(seg.MemoryIndex)
		w.writeInitializer(seg.Offset)
	}
	w.writeUint32(uint32(len(seg.Bytes)))
	w.Write(seg.Bytes)
}

func encodeFunctionBody(fd ir.FunctionDef) []byte {
	w := &writer{}
	// Group consecutive identical local types into runs, matching the
	// binary format's (count, type) compression.
	type run struct {
		t     ir.ValueType
		count uint32
	}
	var runs []run
	for _, t := range fd.LocalTypes {
		if len(runs) > 0 && runs[len(runs)-1].t == t {
			runs[len(runs)-1].count++
		} else {
			runs = append(runs, run{t: t, count: 1})
		}
	}
	w.writeUint32(uint32(len(runs)))
	for _, rn := range runs {
		w.writeUint32(rn.count)
		w.writeValueType(rn.t)
	}
	w.Write(fd.Body)
	return w.buf.Bytes()
}
