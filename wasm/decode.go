package wasm

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	wasmembed "github.com/wippyai/wasm-embed"
	"github.com/wippyai/wasm-embed/wasm/internal/binary"
)

// Section IDs from the binary format.
const (
	sectionCustom   = 0x00
	sectionType     = 0x01
	sectionImport   = 0x02
	sectionFunction = 0x03
	sectionTable    = 0x04
	sectionMemory   = 0x05
	sectionGlobal   = 0x06
	sectionExport   = 0x07
	sectionStart    = 0x08
	sectionElement  = 0x09
	sectionCode     = 0x0A
	sectionData     = 0x0B
)

var magicVersion = []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

// Decode extracts the static metadata from a guest binary. It skips code,
// data, and custom sections entirely; callers hand it bytes the engine has
// already compiled, so structural validation is not repeated here.
func Decode(bin []byte) (*Module, error) {
	if len(bin) < 8 || !bytes.Equal(bin[:8], magicVersion) {
		return nil, errors.New("wasm: not a module binary (bad magic or version)")
	}

	m := &Module{}
	r := binary.NewReader(bytes.NewReader(bin[8:]))

	for {
		id, err := r.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("section header", err)
		}
		payload, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, r.WrapError("section payload", io.ErrUnexpectedEOF)
		}

		sub := binary.NewReader(bytes.NewReader(payload))
		switch id {
		case sectionType:
			err = m.decodeTypes(sub)
		case sectionImport:
			err = m.decodeImports(sub)
		case sectionFunction:
			err = m.decodeFunctions(sub)
		case sectionTable:
			err = m.decodeTables(sub)
		case sectionMemory:
			err = m.decodeMemories(sub)
		case sectionGlobal:
			err = m.decodeGlobals(sub)
		case sectionExport:
			err = m.decodeExports(sub)
		case sectionStart:
			m.StartFunc, err = sub.ReadU32()
			m.HasStart = err == nil
		}
		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Module) decodeTypes(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return r.WrapError("type section", err)
	}
	m.Types = make([]wasmembed.FuncType, 0, count)
	for i := uint32(0); i < count; i++ {
		form, err := r.ReadByte()
		if err != nil {
			return r.WrapError("type section", err)
		}
		if form != 0x60 {
			return r.WrapError("type section", fmt.Errorf("unsupported type form 0x%02x", form))
		}
		params, err := readValTypes(r)
		if err != nil {
			return r.WrapError("type section", err)
		}
		results, err := readValTypes(r)
		if err != nil {
			return r.WrapError("type section", err)
		}
		m.Types = append(m.Types, wasmembed.FuncType{Params: params, Results: results})
	}
	return nil
}

func (m *Module) decodeImports(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return r.WrapError("import section", err)
	}
	m.Imports = make([]Import, 0, count)
	for i := uint32(0); i < count; i++ {
		mod, err := r.ReadName()
		if err != nil {
			return r.WrapError("import section", err)
		}
		name, err := r.ReadName()
		if err != nil {
			return r.WrapError("import section", err)
		}
		kind, err := r.ReadByte()
		if err != nil {
			return r.WrapError("import section", err)
		}

		var typ wasmembed.ExternType
		switch wasmembed.ExternKind(kind) {
		case wasmembed.KindFunc:
			typeIdx, err := r.ReadU32()
			if err != nil {
				return r.WrapError("import section", err)
			}
			if int(typeIdx) >= len(m.Types) {
				return r.WrapError("import section", fmt.Errorf("type index %d out of range", typeIdx))
			}
			typ = m.Types[typeIdx]
		case wasmembed.KindTable:
			tt, err := readTableType(r)
			if err != nil {
				return r.WrapError("import section", err)
			}
			typ = tt
		case wasmembed.KindMemory:
			limits, err := readLimits(r)
			if err != nil {
				return r.WrapError("import section", err)
			}
			typ = wasmembed.MemoryType{Limits: limits}
		case wasmembed.KindGlobal:
			gt, err := readGlobalType(r)
			if err != nil {
				return r.WrapError("import section", err)
			}
			typ = gt
		default:
			return r.WrapError("import section", fmt.Errorf("unknown import kind 0x%02x", kind))
		}
		m.Imports = append(m.Imports, Import{Module: mod, Name: name, Type: typ})
	}
	return nil
}

func (m *Module) decodeFunctions(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return r.WrapError("function section", err)
	}
	m.FuncTypeIndices = make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		typeIdx, err := r.ReadU32()
		if err != nil {
			return r.WrapError("function section", err)
		}
		m.FuncTypeIndices = append(m.FuncTypeIndices, typeIdx)
	}
	return nil
}

func (m *Module) decodeTables(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return r.WrapError("table section", err)
	}
	for i := uint32(0); i < count; i++ {
		tt, err := readTableType(r)
		if err != nil {
			return r.WrapError("table section", err)
		}
		m.Tables = append(m.Tables, tt)
	}
	return nil
}

func (m *Module) decodeMemories(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return r.WrapError("memory section", err)
	}
	for i := uint32(0); i < count; i++ {
		limits, err := readLimits(r)
		if err != nil {
			return r.WrapError("memory section", err)
		}
		m.Memories = append(m.Memories, wasmembed.MemoryType{Limits: limits})
	}
	return nil
}

func (m *Module) decodeGlobals(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return r.WrapError("global section", err)
	}
	for i := uint32(0); i < count; i++ {
		gt, err := readGlobalType(r)
		if err != nil {
			return r.WrapError("global section", err)
		}
		if err := skipConstExpr(r); err != nil {
			return r.WrapError("global section", err)
		}
		m.Globals = append(m.Globals, gt)
	}
	return nil
}

func (m *Module) decodeExports(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return r.WrapError("export section", err)
	}
	m.Exports = make([]Export, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadName()
		if err != nil {
			return r.WrapError("export section", err)
		}
		kind, err := r.ReadByte()
		if err != nil {
			return r.WrapError("export section", err)
		}
		if kind > byte(wasmembed.KindGlobal) {
			return r.WrapError("export section", fmt.Errorf("unknown export kind 0x%02x", kind))
		}
		idx, err := r.ReadU32()
		if err != nil {
			return r.WrapError("export section", err)
		}
		m.Exports = append(m.Exports, Export{Name: name, Kind: wasmembed.ExternKind(kind), Index: idx})
	}
	return nil
}

func readValTypes(r *binary.Reader) ([]wasmembed.ValType, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	types := make([]wasmembed.ValType, 0, count)
	for i := uint32(0); i < count; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		vt, err := valType(b)
		if err != nil {
			return nil, err
		}
		types = append(types, vt)
	}
	return types, nil
}

func valType(b byte) (wasmembed.ValType, error) {
	switch vt := wasmembed.ValType(b); vt {
	case wasmembed.TypeI32, wasmembed.TypeI64, wasmembed.TypeF32, wasmembed.TypeF64,
		wasmembed.TypeV128, wasmembed.TypeFuncref, wasmembed.TypeExternref:
		return vt, nil
	}
	return 0, fmt.Errorf("unsupported value type 0x%02x", b)
}

func readLimits(r *binary.Reader) (wasmembed.Limits, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return wasmembed.Limits{}, err
	}
	if flag > 0x01 {
		return wasmembed.Limits{}, fmt.Errorf("unsupported limits flag 0x%02x", flag)
	}
	min, err := r.ReadU32()
	if err != nil {
		return wasmembed.Limits{}, err
	}
	limits := wasmembed.Limits{Min: min}
	if flag == 0x01 {
		max, err := r.ReadU32()
		if err != nil {
			return wasmembed.Limits{}, err
		}
		limits.Max = max
		limits.HasMax = true
	}
	return limits, nil
}

func readTableType(r *binary.Reader) (wasmembed.TableType, error) {
	elem, err := r.ReadByte()
	if err != nil {
		return wasmembed.TableType{}, err
	}
	et, err := valType(elem)
	if err != nil || !et.IsRef() {
		return wasmembed.TableType{}, fmt.Errorf("invalid table element type 0x%02x", elem)
	}
	limits, err := readLimits(r)
	if err != nil {
		return wasmembed.TableType{}, err
	}
	return wasmembed.TableType{Elem: et, Limits: limits}, nil
}

func readGlobalType(r *binary.Reader) (wasmembed.GlobalType, error) {
	vt, err := r.ReadByte()
	if err != nil {
		return wasmembed.GlobalType{}, err
	}
	val, err := valType(vt)
	if err != nil {
		return wasmembed.GlobalType{}, err
	}
	mut, err := r.ReadByte()
	if err != nil {
		return wasmembed.GlobalType{}, err
	}
	if mut > 0x01 {
		return wasmembed.GlobalType{}, fmt.Errorf("invalid mutability flag 0x%02x", mut)
	}
	return wasmembed.GlobalType{Val: val, Mutable: mut == 0x01}, nil
}

// skipConstExpr consumes a constant initializer expression up to and
// including its end opcode. Operand widths depend on the opcode, so a
// byte scan for the end marker would misfire on values that contain it.
func skipConstExpr(r *binary.Reader) error {
	for {
		op, err := r.ReadByte()
		if err != nil {
			return err
		}
		switch op {
		case 0x0B: // end
			return nil
		case 0x41: // i32.const
			if _, err := r.ReadS32(); err != nil {
				return err
			}
		case 0x42: // i64.const
			if _, err := r.ReadS64(); err != nil {
				return err
			}
		case 0x43: // f32.const
			if _, err := r.ReadBytes(4); err != nil {
				return err
			}
		case 0x44: // f64.const
			if _, err := r.ReadBytes(8); err != nil {
				return err
			}
		case 0x23: // global.get
			if _, err := r.ReadU32(); err != nil {
				return err
			}
		case 0xD0: // ref.null
			if _, err := r.ReadByte(); err != nil {
				return err
			}
		case 0xD2: // ref.func
			if _, err := r.ReadU32(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported opcode 0x%02x in constant expression", op)
		}
	}
}
