package wat

import (
	"strconv"
	"strings"

	wasmembed "github.com/wippyai/wasm-embed"
	"github.com/wippyai/wasm-embed/wasm"
)

// funcDecl is a defined function waiting for body assembly. Bodies are
// assembled after every field is registered so calls can reference
// functions declared later in the source.
type funcDecl struct {
	ft         wasmembed.FuncType
	locals     []wasmembed.ValType
	localNames map[string]uint32
	body       []node
	line       int
	col        int
}

type pendingExport struct {
	name string
	kind wasmembed.ExternKind
	ref  node
}

type compiler struct {
	b *wasm.ModuleBuilder

	types     []wasmembed.FuncType
	typeNames map[string]uint32

	funcNames   map[string]uint32
	globalNames map[string]uint32
	memNames    map[string]uint32
	tableNames  map[string]uint32

	funcCount   uint32
	globalCount uint32
	memCount    uint32
	tableCount  uint32

	defined []*funcDecl
	exports []pendingExport
	start   *node
	elems   []node

	funcDefined   bool
	globalDefined bool
	memDefined    bool
	tableDefined  bool
}

func (c *compiler) compile(module node) error {
	c.typeNames = map[string]uint32{}
	c.funcNames = map[string]uint32{}
	c.globalNames = map[string]uint32{}
	c.memNames = map[string]uint32{}
	c.tableNames = map[string]uint32{}

	for _, field := range module.list[1:] {
		if !field.isList() {
			return errAt(field.line, field.col, "expected a module field, got %q", field.atom)
		}
		var err error
		switch field.head() {
		case "type":
			err = c.typeField(field)
		case "import":
			err = c.importField(field)
		case "func":
			err = c.funcField(field)
		case "memory":
			err = c.memoryField(field)
		case "global":
			err = c.globalField(field)
		case "table":
			err = c.tableField(field)
		case "export":
			err = c.exportField(field)
		case "start":
			c.start = &field
		case "elem":
			c.elems = append(c.elems, field)
		default:
			err = errAt(field.line, field.col, "unsupported module field %q", field.head())
		}
		if err != nil {
			return err
		}
	}

	for _, e := range c.exports {
		idx, err := c.exportIndex(e.kind, e.ref)
		if err != nil {
			return err
		}
		c.b.Export(e.name, e.kind, idx)
	}

	if c.start != nil {
		if len(c.start.list) != 2 {
			return errAt(c.start.line, c.start.col, "start takes one function index")
		}
		idx, err := c.funcIndex(c.start.list[1])
		if err != nil {
			return err
		}
		c.b.SetStart(idx)
	}

	for _, e := range c.elems {
		if err := c.elemField(e); err != nil {
			return err
		}
	}

	for _, fd := range c.defined {
		a := &asm{c: c, fd: fd}
		if err := a.flat(fd.body); err != nil {
			return err
		}
		if len(a.labels) > 0 {
			return errAt(fd.line, fd.col, "unclosed block in function body")
		}
		c.b.AddFunc(fd.ft, fd.locals, a.code)
	}
	return nil
}

// typeField handles (type $id? (func (param ...) (result ...))).
func (c *compiler) typeField(field node) error {
	items := field.list[1:]
	name, items := optionalName(items)
	if len(items) != 1 || !items[0].isList() || items[0].head() != "func" {
		return errAt(field.line, field.col, "type field requires a (func ...) form")
	}
	ft, _, rest, err := c.funcSig(items[0].list[1:])
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return errAt(rest[0].line, rest[0].col, "unexpected content in function type")
	}
	if name != "" {
		c.typeNames[name] = uint32(len(c.types))
	}
	c.types = append(c.types, ft)
	c.b.TypeIndex(ft)
	return nil
}

// importField handles (import "mod" "name" desc).
func (c *compiler) importField(field node) error {
	items := field.list[1:]
	if len(items) != 3 || !items[0].isStr || !items[1].isStr || !items[2].isList() {
		return errAt(field.line, field.col, `import requires "module" "name" and a descriptor`)
	}
	mod, name, desc := items[0].atom, items[1].atom, items[2]

	id, rest := optionalName(desc.list[1:])
	switch desc.head() {
	case "func":
		if c.funcDefined {
			return errAt(desc.line, desc.col, "function import after function definition")
		}
		ft, _, leftover, err := c.typeUse(rest)
		if err != nil {
			return err
		}
		if len(leftover) > 0 {
			return errAt(leftover[0].line, leftover[0].col, "unexpected content in func import")
		}
		idx := c.b.ImportFunc(mod, name, ft)
		c.registerName(c.funcNames, id, idx)
		c.funcCount++

	case "global":
		if c.globalDefined {
			return errAt(desc.line, desc.col, "global import after global definition")
		}
		if len(rest) != 1 {
			return errAt(desc.line, desc.col, "global import requires a value type")
		}
		gt, err := globalTypeOf(rest[0])
		if err != nil {
			return err
		}
		idx := c.b.ImportGlobal(mod, name, gt)
		c.registerName(c.globalNames, id, idx)
		c.globalCount++

	case "memory":
		if c.memDefined {
			return errAt(desc.line, desc.col, "memory import after memory definition")
		}
		limits, leftover, err := limitsOf(rest)
		if err != nil {
			return err
		}
		if len(leftover) > 0 {
			return errAt(leftover[0].line, leftover[0].col, "unexpected content in memory import")
		}
		idx := c.b.ImportMemory(mod, name, wasmembed.MemoryType{Limits: limits})
		c.registerName(c.memNames, id, idx)
		c.memCount++

	case "table":
		if c.tableDefined {
			return errAt(desc.line, desc.col, "table import after table definition")
		}
		tt, err := tableTypeOf(desc, rest)
		if err != nil {
			return err
		}
		idx := c.b.ImportTable(mod, name, tt)
		c.registerName(c.tableNames, id, idx)
		c.tableCount++

	default:
		return errAt(desc.line, desc.col, "unsupported import kind %q", desc.head())
	}
	return nil
}

// funcField handles (func $id? (export "n")* (import "m" "n")? typeuse
// (local ...)* body...).
func (c *compiler) funcField(field node) error {
	items := field.list[1:]
	id, items := optionalName(items)
	exports, items := inlineExports(items)

	// Inline import form: the function is an import, not a definition.
	if len(items) > 0 && items[0].isList() && items[0].head() == "import" {
		imp := items[0]
		if len(imp.list) != 3 || !imp.list[1].isStr || !imp.list[2].isStr {
			return errAt(imp.line, imp.col, `inline import requires "module" "name"`)
		}
		if c.funcDefined {
			return errAt(imp.line, imp.col, "function import after function definition")
		}
		ft, _, rest, err := c.typeUse(items[1:])
		if err != nil {
			return err
		}
		if len(rest) > 0 {
			return errAt(rest[0].line, rest[0].col, "imported function cannot have a body")
		}
		idx := c.b.ImportFunc(imp.list[1].atom, imp.list[2].atom, ft)
		c.registerName(c.funcNames, id, idx)
		c.addInlineExports(exports, wasmembed.KindFunc, idx)
		c.funcCount++
		return nil
	}

	ft, paramNames, body, err := c.typeUse(items)
	if err != nil {
		return err
	}

	fd := &funcDecl{
		ft:         ft,
		localNames: map[string]uint32{},
		line:       field.line,
		col:        field.col,
	}
	for i, n := range paramNames {
		if n != "" {
			fd.localNames[n] = uint32(i)
		}
	}

	for len(body) > 0 && body[0].isList() && body[0].head() == "local" {
		local := body[0]
		body = body[1:]
		lid, types := optionalName(local.list[1:])
		if lid != "" && len(types) != 1 {
			return errAt(local.line, local.col, "a named local declares exactly one type")
		}
		for _, t := range types {
			vt, err := valTypeOf(t)
			if err != nil {
				return err
			}
			if lid != "" {
				fd.localNames[lid] = uint32(len(ft.Params) + len(fd.locals))
			}
			fd.locals = append(fd.locals, vt)
		}
	}
	fd.body = body

	idx := c.funcCount
	c.registerName(c.funcNames, id, idx)
	c.addInlineExports(exports, wasmembed.KindFunc, idx)
	c.defined = append(c.defined, fd)
	c.funcCount++
	c.funcDefined = true
	return nil
}

// memoryField handles (memory $id? (export "n")* min max?).
func (c *compiler) memoryField(field node) error {
	items := field.list[1:]
	id, items := optionalName(items)
	exports, items := inlineExports(items)

	limits, rest, err := limitsOf(items)
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return errAt(rest[0].line, rest[0].col, "unexpected content in memory field")
	}

	idx := c.b.AddMemory(wasmembed.MemoryType{Limits: limits})
	c.registerName(c.memNames, id, idx)
	c.addInlineExports(exports, wasmembed.KindMemory, idx)
	c.memCount++
	c.memDefined = true
	return nil
}

// globalField handles (global $id? (export "n")* type initexpr).
func (c *compiler) globalField(field node) error {
	items := field.list[1:]
	id, items := optionalName(items)
	exports, items := inlineExports(items)

	if len(items) != 2 {
		return errAt(field.line, field.col, "global requires a type and a constant initializer")
	}
	gt, err := globalTypeOf(items[0])
	if err != nil {
		return err
	}
	init, err := constValue(items[1])
	if err != nil {
		return err
	}
	if init.Type() != gt.Val {
		return errAt(items[1].line, items[1].col, "initializer is %s, global is %s", init.Type(), gt.Val)
	}

	idx := c.b.AddGlobal(gt, init)
	c.registerName(c.globalNames, id, idx)
	c.addInlineExports(exports, wasmembed.KindGlobal, idx)
	c.globalCount++
	c.globalDefined = true
	return nil
}

// tableField handles (table $id? (export "n")* min max? elemtype).
func (c *compiler) tableField(field node) error {
	items := field.list[1:]
	id, items := optionalName(items)
	exports, items := inlineExports(items)

	tt, err := tableTypeOf(field, items)
	if err != nil {
		return err
	}

	idx := c.b.AddTable(tt)
	c.registerName(c.tableNames, id, idx)
	c.addInlineExports(exports, wasmembed.KindTable, idx)
	c.tableCount++
	c.tableDefined = true
	return nil
}

// exportField handles (export "name" (kind idx)).
func (c *compiler) exportField(field node) error {
	items := field.list[1:]
	if len(items) != 2 || !items[0].isStr || !items[1].isList() || len(items[1].list) != 2 {
		return errAt(field.line, field.col, `export requires "name" and a (kind index) descriptor`)
	}
	desc := items[1]
	var kind wasmembed.ExternKind
	switch desc.head() {
	case "func":
		kind = wasmembed.KindFunc
	case "memory":
		kind = wasmembed.KindMemory
	case "global":
		kind = wasmembed.KindGlobal
	case "table":
		kind = wasmembed.KindTable
	default:
		return errAt(desc.line, desc.col, "unsupported export kind %q", desc.head())
	}
	c.exports = append(c.exports, pendingExport{name: items[0].atom, kind: kind, ref: desc.list[1]})
	return nil
}

// elemField handles (elem (i32.const n) funcidx*).
func (c *compiler) elemField(field node) error {
	items := field.list[1:]
	if len(items) == 0 || !items[0].isList() || items[0].head() != "i32.const" || len(items[0].list) != 2 {
		return errAt(field.line, field.col, "elem requires an (i32.const n) offset")
	}
	offset, err := parseI32(items[0].list[1])
	if err != nil {
		return err
	}
	var idxs []uint32
	for _, it := range items[1:] {
		idx, err := c.funcIndex(it)
		if err != nil {
			return err
		}
		idxs = append(idxs, idx)
	}
	c.b.AddElem(offset, idxs)
	return nil
}

func (c *compiler) addInlineExports(names []string, kind wasmembed.ExternKind, idx uint32) {
	for _, n := range names {
		c.b.Export(n, kind, idx)
	}
}

func (c *compiler) registerName(names map[string]uint32, id string, idx uint32) {
	if id != "" {
		names[id] = idx
	}
}

// typeUse parses ('(' 'type' idx ')')? (param ...)* (result ...)* and
// returns the signature, per-parameter names, and the unconsumed items.
func (c *compiler) typeUse(items []node) (wasmembed.FuncType, []string, []node, error) {
	var ft wasmembed.FuncType
	var declared *wasmembed.FuncType

	if len(items) > 0 && items[0].isList() && items[0].head() == "type" {
		ref := items[0]
		if len(ref.list) != 2 {
			return ft, nil, nil, errAt(ref.line, ref.col, "type use takes one index")
		}
		idx, err := resolveIdx(ref.list[1], c.typeNames, uint32(len(c.types)), "type")
		if err != nil {
			return ft, nil, nil, err
		}
		t := c.types[idx]
		declared = &t
		items = items[1:]
	}

	sig, names, rest, err := c.funcSig(items)
	if err != nil {
		return ft, nil, nil, err
	}

	if declared != nil {
		if len(sig.Params) == 0 && len(sig.Results) == 0 {
			return *declared, nil, rest, nil
		}
		if !sig.Equal(*declared) {
			return ft, nil, nil, errAt(items[0].line, items[0].col, "inline signature does not match the referenced type")
		}
	}
	return sig, names, rest, nil
}

// funcSig parses (param ...)* (result ...)* and returns the remainder.
func (c *compiler) funcSig(items []node) (wasmembed.FuncType, []string, []node, error) {
	var ft wasmembed.FuncType
	var names []string

	for len(items) > 0 && items[0].isList() && items[0].head() == "param" {
		p := items[0]
		items = items[1:]
		id, types := optionalName(p.list[1:])
		if id != "" && len(types) != 1 {
			return ft, nil, nil, errAt(p.line, p.col, "a named param declares exactly one type")
		}
		for _, t := range types {
			vt, err := valTypeOf(t)
			if err != nil {
				return ft, nil, nil, err
			}
			ft.Params = append(ft.Params, vt)
			names = append(names, id)
		}
	}

	for len(items) > 0 && items[0].isList() && items[0].head() == "result" {
		r := items[0]
		items = items[1:]
		for _, t := range r.list[1:] {
			vt, err := valTypeOf(t)
			if err != nil {
				return ft, nil, nil, err
			}
			ft.Results = append(ft.Results, vt)
		}
	}
	return ft, names, items, nil
}

func (c *compiler) funcIndex(n node) (uint32, error) {
	return resolveIdx(n, c.funcNames, c.funcCount, "function")
}

func (c *compiler) exportIndex(kind wasmembed.ExternKind, ref node) (uint32, error) {
	switch kind {
	case wasmembed.KindFunc:
		return c.funcIndex(ref)
	case wasmembed.KindGlobal:
		return resolveIdx(ref, c.globalNames, c.globalCount, "global")
	case wasmembed.KindMemory:
		return resolveIdx(ref, c.memNames, c.memCount, "memory")
	default:
		return resolveIdx(ref, c.tableNames, c.tableCount, "table")
	}
}

// optionalName splits a leading $identifier off items.
func optionalName(items []node) (string, []node) {
	if len(items) > 0 && !items[0].isList() && !items[0].isStr && strings.HasPrefix(items[0].atom, "$") {
		return items[0].atom, items[1:]
	}
	return "", items
}

// inlineExports collects leading (export "name") abbreviations.
func inlineExports(items []node) ([]string, []node) {
	var names []string
	for len(items) > 0 && items[0].isList() && items[0].head() == "export" &&
		len(items[0].list) == 2 && items[0].list[1].isStr {
		names = append(names, items[0].list[1].atom)
		items = items[1:]
	}
	return names, items
}

// resolveIdx resolves a $name or numeric index against one index space.
func resolveIdx(n node, names map[string]uint32, count uint32, what string) (uint32, error) {
	if n.isList() {
		return 0, errAt(n.line, n.col, "expected a %s index", what)
	}
	if strings.HasPrefix(n.atom, "$") {
		idx, ok := names[n.atom]
		if !ok {
			return 0, errAt(n.line, n.col, "unknown %s %s", what, n.atom)
		}
		return idx, nil
	}
	v, err := strconv.ParseUint(n.atom, 10, 32)
	if err != nil {
		return 0, errAt(n.line, n.col, "invalid %s index %q", what, n.atom)
	}
	if uint32(v) >= count {
		return 0, errAt(n.line, n.col, "%s index %d out of range", what, v)
	}
	return uint32(v), nil
}

func valTypeOf(n node) (wasmembed.ValType, error) {
	if n.isList() {
		return 0, errAt(n.line, n.col, "expected a value type")
	}
	switch n.atom {
	case "i32":
		return wasmembed.TypeI32, nil
	case "i64":
		return wasmembed.TypeI64, nil
	case "f32":
		return wasmembed.TypeF32, nil
	case "f64":
		return wasmembed.TypeF64, nil
	case "funcref":
		return wasmembed.TypeFuncref, nil
	case "externref":
		return wasmembed.TypeExternref, nil
	}
	return 0, errAt(n.line, n.col, "unknown value type %q", n.atom)
}

// globalTypeOf parses t or (mut t).
func globalTypeOf(n node) (wasmembed.GlobalType, error) {
	if n.isList() {
		if n.head() != "mut" || len(n.list) != 2 {
			return wasmembed.GlobalType{}, errAt(n.line, n.col, "expected a value type or (mut type)")
		}
		vt, err := valTypeOf(n.list[1])
		if err != nil {
			return wasmembed.GlobalType{}, err
		}
		return wasmembed.GlobalType{Val: vt, Mutable: true}, nil
	}
	vt, err := valTypeOf(n)
	if err != nil {
		return wasmembed.GlobalType{}, err
	}
	return wasmembed.GlobalType{Val: vt}, nil
}

// limitsOf parses min max? and returns the remainder.
func limitsOf(items []node) (wasmembed.Limits, []node, error) {
	var l wasmembed.Limits
	if len(items) == 0 || items[0].isList() {
		if len(items) == 0 {
			return l, nil, errAt(0, 0, "missing memory limits")
		}
		return l, nil, errAt(items[0].line, items[0].col, "expected a minimum size")
	}
	min, err := strconv.ParseUint(items[0].atom, 10, 32)
	if err != nil {
		return l, nil, errAt(items[0].line, items[0].col, "invalid minimum %q", items[0].atom)
	}
	l.Min = uint32(min)
	items = items[1:]

	if len(items) > 0 && !items[0].isList() {
		if max, err := strconv.ParseUint(items[0].atom, 10, 32); err == nil {
			l.Max = uint32(max)
			l.HasMax = true
			items = items[1:]
		}
	}
	return l, items, nil
}

// tableTypeOf parses min max? elemtype.
func tableTypeOf(field node, items []node) (wasmembed.TableType, error) {
	limits, rest, err := limitsOf(items)
	if err != nil {
		return wasmembed.TableType{}, err
	}
	if len(rest) != 1 {
		return wasmembed.TableType{}, errAt(field.line, field.col, "table requires limits and an element type")
	}
	elem, err := valTypeOf(rest[0])
	if err != nil {
		return wasmembed.TableType{}, err
	}
	if !elem.IsRef() {
		return wasmembed.TableType{}, errAt(rest[0].line, rest[0].col, "table element type must be a reference type")
	}
	return wasmembed.TableType{Elem: elem, Limits: limits}, nil
}

// constValue parses a folded constant initializer like (i32.const 7).
func constValue(n node) (wasmembed.Value, error) {
	if !n.isList() || len(n.list) != 2 {
		return wasmembed.Value{}, errAt(n.line, n.col, "expected a constant initializer")
	}
	arg := n.list[1]
	switch n.head() {
	case "i32.const":
		v, err := parseI32(arg)
		if err != nil {
			return wasmembed.Value{}, err
		}
		return wasmembed.I32(v), nil
	case "i64.const":
		v, err := parseI64(arg)
		if err != nil {
			return wasmembed.Value{}, err
		}
		return wasmembed.I64(v), nil
	case "f32.const":
		v, err := parseFloat(arg, 32)
		if err != nil {
			return wasmembed.Value{}, err
		}
		return wasmembed.F32(float32(v)), nil
	case "f64.const":
		v, err := parseFloat(arg, 64)
		if err != nil {
			return wasmembed.Value{}, err
		}
		return wasmembed.F64(v), nil
	}
	return wasmembed.Value{}, errAt(n.line, n.col, "unsupported constant %q", n.head())
}

func parseI32(n node) (int32, error) {
	s := strings.ReplaceAll(n.atom, "_", "")
	if v, err := strconv.ParseInt(s, 0, 64); err == nil && v >= -(1<<31) && v < (1<<32) {
		return int32(uint32(v)), nil
	}
	return 0, errAt(n.line, n.col, "invalid i32 constant %q", n.atom)
}

func parseI64(n node) (int64, error) {
	s := strings.ReplaceAll(n.atom, "_", "")
	if v, err := strconv.ParseInt(s, 0, 64); err == nil {
		return v, nil
	}
	if v, err := strconv.ParseUint(s, 0, 64); err == nil {
		return int64(v), nil
	}
	return 0, errAt(n.line, n.col, "invalid i64 constant %q", n.atom)
}

func parseFloat(n node, bits int) (float64, error) {
	s := strings.ReplaceAll(n.atom, "_", "")
	v, err := strconv.ParseFloat(s, bits)
	if err != nil {
		return 0, errAt(n.line, n.col, "invalid float constant %q", n.atom)
	}
	return v, nil
}
