package wat

import (
	"math"
	"strconv"
	"strings"

	"github.com/wippyai/wasm-embed/wasm"
)

// immKind tells the assembler what follows an opcode mnemonic.
type immKind int

const (
	immNone immKind = iota
	immLocal
	immGlobal
	immFunc
	immLabel
	immI32
	immI64
	immF32
	immF64
	immMemarg
	immMemIdx // memory.size / memory.grow: a fixed zero byte
)

type opInfo struct {
	opcode byte
	imm    immKind
	align  byte // natural alignment (log2) for memory ops
}

// opTable covers the plain instructions. Control instructions (block,
// loop, if, else, end) are handled structurally by the assembler.
var opTable = map[string]opInfo{
	"unreachable": {opcode: 0x00},
	"nop":         {opcode: 0x01},
	"br":          {opcode: 0x0C, imm: immLabel},
	"br_if":       {opcode: 0x0D, imm: immLabel},
	"return":      {opcode: 0x0F},
	"call":        {opcode: 0x10, imm: immFunc},
	"drop":        {opcode: 0x1A},
	"select":      {opcode: 0x1B},

	"local.get":  {opcode: 0x20, imm: immLocal},
	"local.set":  {opcode: 0x21, imm: immLocal},
	"local.tee":  {opcode: 0x22, imm: immLocal},
	"global.get": {opcode: 0x23, imm: immGlobal},
	"global.set": {opcode: 0x24, imm: immGlobal},

	"i32.load":     {opcode: 0x28, imm: immMemarg, align: 2},
	"i64.load":     {opcode: 0x29, imm: immMemarg, align: 3},
	"f32.load":     {opcode: 0x2A, imm: immMemarg, align: 2},
	"f64.load":     {opcode: 0x2B, imm: immMemarg, align: 3},
	"i32.load8_s":  {opcode: 0x2C, imm: immMemarg, align: 0},
	"i32.load8_u":  {opcode: 0x2D, imm: immMemarg, align: 0},
	"i32.load16_s": {opcode: 0x2E, imm: immMemarg, align: 1},
	"i32.load16_u": {opcode: 0x2F, imm: immMemarg, align: 1},
	"i64.load8_s":  {opcode: 0x30, imm: immMemarg, align: 0},
	"i64.load8_u":  {opcode: 0x31, imm: immMemarg, align: 0},
	"i64.load16_s": {opcode: 0x32, imm: immMemarg, align: 1},
	"i64.load16_u": {opcode: 0x33, imm: immMemarg, align: 1},
	"i64.load32_s": {opcode: 0x34, imm: immMemarg, align: 2},
	"i64.load32_u": {opcode: 0x35, imm: immMemarg, align: 2},
	"i32.store":    {opcode: 0x36, imm: immMemarg, align: 2},
	"i64.store":    {opcode: 0x37, imm: immMemarg, align: 3},
	"f32.store":    {opcode: 0x38, imm: immMemarg, align: 2},
	"f64.store":    {opcode: 0x39, imm: immMemarg, align: 3},
	"i32.store8":   {opcode: 0x3A, imm: immMemarg, align: 0},
	"i32.store16":  {opcode: 0x3B, imm: immMemarg, align: 1},
	"i64.store8":   {opcode: 0x3C, imm: immMemarg, align: 0},
	"i64.store16":  {opcode: 0x3D, imm: immMemarg, align: 1},
	"i64.store32":  {opcode: 0x3E, imm: immMemarg, align: 2},
	"memory.size":  {opcode: 0x3F, imm: immMemIdx},
	"memory.grow":  {opcode: 0x40, imm: immMemIdx},

	"i32.const": {opcode: 0x41, imm: immI32},
	"i64.const": {opcode: 0x42, imm: immI64},
	"f32.const": {opcode: 0x43, imm: immF32},
	"f64.const": {opcode: 0x44, imm: immF64},

	"i32.eqz":  {opcode: 0x45},
	"i32.eq":   {opcode: 0x46},
	"i32.ne":   {opcode: 0x47},
	"i32.lt_s": {opcode: 0x48},
	"i32.lt_u": {opcode: 0x49},
	"i32.gt_s": {opcode: 0x4A},
	"i32.gt_u": {opcode: 0x4B},
	"i32.le_s": {opcode: 0x4C},
	"i32.le_u": {opcode: 0x4D},
	"i32.ge_s": {opcode: 0x4E},
	"i32.ge_u": {opcode: 0x4F},

	"i64.eqz":  {opcode: 0x50},
	"i64.eq":   {opcode: 0x51},
	"i64.ne":   {opcode: 0x52},
	"i64.lt_s": {opcode: 0x53},
	"i64.lt_u": {opcode: 0x54},
	"i64.gt_s": {opcode: 0x55},
	"i64.gt_u": {opcode: 0x56},
	"i64.le_s": {opcode: 0x57},
	"i64.le_u": {opcode: 0x58},
	"i64.ge_s": {opcode: 0x59},
	"i64.ge_u": {opcode: 0x5A},

	"f32.eq": {opcode: 0x5B},
	"f32.ne": {opcode: 0x5C},
	"f32.lt": {opcode: 0x5D},
	"f32.gt": {opcode: 0x5E},
	"f32.le": {opcode: 0x5F},
	"f32.ge": {opcode: 0x60},

	"f64.eq": {opcode: 0x61},
	"f64.ne": {opcode: 0x62},
	"f64.lt": {opcode: 0x63},
	"f64.gt": {opcode: 0x64},
	"f64.le": {opcode: 0x65},
	"f64.ge": {opcode: 0x66},

	"i32.clz":    {opcode: 0x67},
	"i32.ctz":    {opcode: 0x68},
	"i32.popcnt": {opcode: 0x69},
	"i32.add":    {opcode: 0x6A},
	"i32.sub":    {opcode: 0x6B},
	"i32.mul":    {opcode: 0x6C},
	"i32.div_s":  {opcode: 0x6D},
	"i32.div_u":  {opcode: 0x6E},
	"i32.rem_s":  {opcode: 0x6F},
	"i32.rem_u":  {opcode: 0x70},
	"i32.and":    {opcode: 0x71},
	"i32.or":     {opcode: 0x72},
	"i32.xor":    {opcode: 0x73},
	"i32.shl":    {opcode: 0x74},
	"i32.shr_s":  {opcode: 0x75},
	"i32.shr_u":  {opcode: 0x76},
	"i32.rotl":   {opcode: 0x77},
	"i32.rotr":   {opcode: 0x78},

	"i64.clz":    {opcode: 0x79},
	"i64.ctz":    {opcode: 0x7A},
	"i64.popcnt": {opcode: 0x7B},
	"i64.add":    {opcode: 0x7C},
	"i64.sub":    {opcode: 0x7D},
	"i64.mul":    {opcode: 0x7E},
	"i64.div_s":  {opcode: 0x7F},
	"i64.div_u":  {opcode: 0x80},
	"i64.rem_s":  {opcode: 0x81},
	"i64.rem_u":  {opcode: 0x82},
	"i64.and":    {opcode: 0x83},
	"i64.or":     {opcode: 0x84},
	"i64.xor":    {opcode: 0x85},
	"i64.shl":    {opcode: 0x86},
	"i64.shr_s":  {opcode: 0x87},
	"i64.shr_u":  {opcode: 0x88},
	"i64.rotl":   {opcode: 0x89},
	"i64.rotr":   {opcode: 0x8A},

	"f32.abs":      {opcode: 0x8B},
	"f32.neg":      {opcode: 0x8C},
	"f32.ceil":     {opcode: 0x8D},
	"f32.floor":    {opcode: 0x8E},
	"f32.trunc":    {opcode: 0x8F},
	"f32.nearest":  {opcode: 0x90},
	"f32.sqrt":     {opcode: 0x91},
	"f32.add":      {opcode: 0x92},
	"f32.sub":      {opcode: 0x93},
	"f32.mul":      {opcode: 0x94},
	"f32.div":      {opcode: 0x95},
	"f32.min":      {opcode: 0x96},
	"f32.max":      {opcode: 0x97},
	"f32.copysign": {opcode: 0x98},

	"f64.abs":      {opcode: 0x99},
	"f64.neg":      {opcode: 0x9A},
	"f64.ceil":     {opcode: 0x9B},
	"f64.floor":    {opcode: 0x9C},
	"f64.trunc":    {opcode: 0x9D},
	"f64.nearest":  {opcode: 0x9E},
	"f64.sqrt":     {opcode: 0x9F},
	"f64.add":      {opcode: 0xA0},
	"f64.sub":      {opcode: 0xA1},
	"f64.mul":      {opcode: 0xA2},
	"f64.div":      {opcode: 0xA3},
	"f64.min":      {opcode: 0xA4},
	"f64.max":      {opcode: 0xA5},
	"f64.copysign": {opcode: 0xA6},

	"i32.wrap_i64":        {opcode: 0xA7},
	"i32.trunc_f32_s":     {opcode: 0xA8},
	"i32.trunc_f32_u":     {opcode: 0xA9},
	"i32.trunc_f64_s":     {opcode: 0xAA},
	"i32.trunc_f64_u":     {opcode: 0xAB},
	"i64.extend_i32_s":    {opcode: 0xAC},
	"i64.extend_i32_u":    {opcode: 0xAD},
	"i64.trunc_f32_s":     {opcode: 0xAE},
	"i64.trunc_f32_u":     {opcode: 0xAF},
	"i64.trunc_f64_s":     {opcode: 0xB0},
	"i64.trunc_f64_u":     {opcode: 0xB1},
	"f32.convert_i32_s":   {opcode: 0xB2},
	"f32.convert_i32_u":   {opcode: 0xB3},
	"f32.convert_i64_s":   {opcode: 0xB4},
	"f32.convert_i64_u":   {opcode: 0xB5},
	"f32.demote_f64":      {opcode: 0xB6},
	"f64.convert_i32_s":   {opcode: 0xB7},
	"f64.convert_i32_u":   {opcode: 0xB8},
	"f64.convert_i64_s":   {opcode: 0xB9},
	"f64.convert_i64_u":   {opcode: 0xBA},
	"f64.promote_f32":     {opcode: 0xBB},
	"i32.reinterpret_f32": {opcode: 0xBC},
	"i64.reinterpret_f64": {opcode: 0xBD},
	"f32.reinterpret_i32": {opcode: 0xBE},
	"f64.reinterpret_i64": {opcode: 0xBF},
	"i32.extend8_s":       {opcode: 0xC0},
	"i32.extend16_s":      {opcode: 0xC1},
	"i64.extend8_s":       {opcode: 0xC2},
	"i64.extend16_s":      {opcode: 0xC3},
	"i64.extend32_s":      {opcode: 0xC4},
}

// asm assembles one function body. It handles both the flat form, where
// immediates and nested instructions follow in the token stream, and
// the folded form, where operands nest inside the instruction's list.
type asm struct {
	c      *compiler
	fd     *funcDecl
	code   []byte
	labels []string
}

// flat assembles a sequence of flat-form instructions and folded lists.
func (a *asm) flat(items []node) error {
	i := 0
	for i < len(items) {
		if items[i].isList() {
			if err := a.folded(items[i]); err != nil {
				return err
			}
			i++
			continue
		}
		if err := a.plain(items, &i); err != nil {
			return err
		}
	}
	return nil
}

// plain assembles one flat instruction starting at items[*i], consuming
// its immediates from the stream.
func (a *asm) plain(items []node, i *int) error {
	op := items[*i]
	*i++

	switch op.atom {
	case "block", "loop":
		label, bt := a.blockHeader(items, i)
		if op.atom == "block" {
			a.code = append(a.code, 0x02)
		} else {
			a.code = append(a.code, 0x03)
		}
		a.code = append(a.code, bt)
		a.labels = append(a.labels, label)
		return nil

	case "if":
		label, bt := a.blockHeader(items, i)
		a.code = append(a.code, 0x04, bt)
		a.labels = append(a.labels, label)
		return nil

	case "else":
		if len(a.labels) == 0 {
			return errAt(op.line, op.col, "'else' outside a block")
		}
		a.code = append(a.code, 0x05)
		return nil

	case "end":
		if len(a.labels) == 0 {
			return errAt(op.line, op.col, "'end' without a matching block")
		}
		a.labels = a.labels[:len(a.labels)-1]
		a.code = append(a.code, 0x0B)
		return nil
	}

	info, ok := opTable[op.atom]
	if !ok {
		return errAt(op.line, op.col, "unsupported instruction %q", op.atom)
	}
	imm, err := a.immediates(op, info, items, i)
	if err != nil {
		return err
	}
	a.code = append(a.code, info.opcode)
	a.code = append(a.code, imm...)
	return nil
}

// folded assembles one folded-form instruction, emitting nested operand
// lists before the operator itself.
func (a *asm) folded(n node) error {
	op := n.head()
	if op == "" {
		return errAt(n.line, n.col, "expected an instruction")
	}

	switch op {
	case "block", "loop":
		items := n.list[1:]
		i := 0
		label, bt := a.blockHeader(items, &i)
		if op == "block" {
			a.code = append(a.code, 0x02)
		} else {
			a.code = append(a.code, 0x03)
		}
		a.code = append(a.code, bt)
		a.labels = append(a.labels, label)
		if err := a.flat(items[i:]); err != nil {
			return err
		}
		a.labels = a.labels[:len(a.labels)-1]
		a.code = append(a.code, 0x0B)
		return nil

	case "if":
		return a.foldedIf(n)
	}

	info, ok := opTable[op]
	if !ok {
		return errAt(n.list[0].line, n.list[0].col, "unsupported instruction %q", op)
	}
	items := n.list
	i := 1
	imm, err := a.immediates(n.list[0], info, items, &i)
	if err != nil {
		return err
	}
	for ; i < len(items); i++ {
		if !items[i].isList() {
			return errAt(items[i].line, items[i].col, "expected a folded operand, got %q", items[i].atom)
		}
		if err := a.folded(items[i]); err != nil {
			return err
		}
	}
	a.code = append(a.code, info.opcode)
	a.code = append(a.code, imm...)
	return nil
}

// foldedIf assembles (if $label? (result t)? cond* (then ...) (else ...)?).
func (a *asm) foldedIf(n node) error {
	items := n.list[1:]
	i := 0
	label, bt := a.blockHeader(items, &i)

	thenIdx := -1
	for j := i; j < len(items); j++ {
		if items[j].isList() && items[j].head() == "then" {
			thenIdx = j
			break
		}
	}
	if thenIdx < 0 {
		return errAt(n.line, n.col, "folded 'if' requires a (then ...) arm")
	}

	for j := i; j < thenIdx; j++ {
		if !items[j].isList() {
			return errAt(items[j].line, items[j].col, "'if' condition must be folded")
		}
		if err := a.folded(items[j]); err != nil {
			return err
		}
	}

	a.code = append(a.code, 0x04, bt)
	a.labels = append(a.labels, label)

	if err := a.flat(items[thenIdx].list[1:]); err != nil {
		return err
	}

	rest := items[thenIdx+1:]
	if len(rest) > 1 || (len(rest) == 1 && (!rest[0].isList() || rest[0].head() != "else")) {
		return errAt(n.line, n.col, "unexpected content after (then ...)")
	}
	if len(rest) == 1 {
		a.code = append(a.code, 0x05)
		if err := a.flat(rest[0].list[1:]); err != nil {
			return err
		}
	}

	a.labels = a.labels[:len(a.labels)-1]
	a.code = append(a.code, 0x0B)
	return nil
}

// blockHeader consumes an optional $label and (result t) annotation and
// returns the label with the encoded block type.
func (a *asm) blockHeader(items []node, i *int) (string, byte) {
	label := ""
	if *i < len(items) && !items[*i].isList() && strings.HasPrefix(items[*i].atom, "$") {
		label = items[*i].atom
		*i++
	}
	bt := byte(0x40)
	if *i < len(items) && items[*i].isList() && items[*i].head() == "result" && len(items[*i].list) == 2 {
		if vt, err := valTypeOf(items[*i].list[1]); err == nil {
			bt = byte(vt)
			*i++
		}
	}
	return label, bt
}

// immediates consumes and encodes the immediates for one instruction.
func (a *asm) immediates(op node, info opInfo, items []node, i *int) ([]byte, error) {
	next := func(what string) (node, error) {
		if *i >= len(items) || items[*i].isList() {
			return node{}, errAt(op.line, op.col, "%q requires %s", op.atom, what)
		}
		n := items[*i]
		*i++
		return n, nil
	}

	switch info.imm {
	case immNone:
		return nil, nil

	case immLocal:
		n, err := next("a local index")
		if err != nil {
			return nil, err
		}
		idx, err := a.localIndex(n)
		if err != nil {
			return nil, err
		}
		return wasm.AppendULEB128(nil, idx), nil

	case immGlobal:
		n, err := next("a global index")
		if err != nil {
			return nil, err
		}
		idx, err := resolveIdx(n, a.c.globalNames, a.c.globalCount, "global")
		if err != nil {
			return nil, err
		}
		return wasm.AppendULEB128(nil, idx), nil

	case immFunc:
		n, err := next("a function index")
		if err != nil {
			return nil, err
		}
		idx, err := a.c.funcIndex(n)
		if err != nil {
			return nil, err
		}
		return wasm.AppendULEB128(nil, idx), nil

	case immLabel:
		n, err := next("a label")
		if err != nil {
			return nil, err
		}
		depth, err := a.labelDepth(n)
		if err != nil {
			return nil, err
		}
		return wasm.AppendULEB128(nil, depth), nil

	case immI32:
		n, err := next("an i32 constant")
		if err != nil {
			return nil, err
		}
		v, err := parseI32(n)
		if err != nil {
			return nil, err
		}
		return wasm.AppendSLEB128(nil, v), nil

	case immI64:
		n, err := next("an i64 constant")
		if err != nil {
			return nil, err
		}
		v, err := parseI64(n)
		if err != nil {
			return nil, err
		}
		return wasm.AppendSLEB128(nil, v), nil

	case immF32:
		n, err := next("an f32 constant")
		if err != nil {
			return nil, err
		}
		v, err := parseFloat(n, 32)
		if err != nil {
			return nil, err
		}
		bits := math.Float32bits(float32(v))
		return []byte{byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)}, nil

	case immF64:
		n, err := next("an f64 constant")
		if err != nil {
			return nil, err
		}
		v, err := parseFloat(n, 64)
		if err != nil {
			return nil, err
		}
		bits := math.Float64bits(v)
		out := make([]byte, 8)
		for k := 0; k < 8; k++ {
			out[k] = byte(bits >> (8 * k))
		}
		return out, nil

	case immMemarg:
		offset := uint32(0)
		align := uint32(info.align)
		for *i < len(items) && !items[*i].isList() {
			atom := items[*i]
			if v, ok := strings.CutPrefix(atom.atom, "offset="); ok {
				parsed, err := strconv.ParseUint(strings.ReplaceAll(v, "_", ""), 0, 32)
				if err != nil {
					return nil, errAt(atom.line, atom.col, "invalid offset %q", v)
				}
				offset = uint32(parsed)
				*i++
				continue
			}
			if v, ok := strings.CutPrefix(atom.atom, "align="); ok {
				parsed, err := strconv.ParseUint(v, 0, 32)
				if err != nil || parsed == 0 || parsed&(parsed-1) != 0 {
					return nil, errAt(atom.line, atom.col, "alignment must be a power of two")
				}
				align = uint32(0)
				for p := parsed; p > 1; p >>= 1 {
					align++
				}
				*i++
				continue
			}
			break
		}
		out := wasm.AppendULEB128(nil, align)
		return wasm.AppendULEB128(out, offset), nil

	case immMemIdx:
		return []byte{0x00}, nil
	}
	return nil, errAt(op.line, op.col, "unsupported instruction %q", op.atom)
}

func (a *asm) localIndex(n node) (uint32, error) {
	total := uint32(len(a.fd.ft.Params) + len(a.fd.locals))
	return resolveIdx(n, a.fd.localNames, total, "local")
}

// labelDepth resolves a branch target: a numeric relative depth or a
// $label searched innermost-first.
func (a *asm) labelDepth(n node) (uint32, error) {
	if !strings.HasPrefix(n.atom, "$") {
		v, err := strconv.ParseUint(n.atom, 10, 32)
		if err != nil || v >= uint64(len(a.labels)) {
			return 0, errAt(n.line, n.col, "branch depth %q out of range", n.atom)
		}
		return uint32(v), nil
	}
	for j := len(a.labels) - 1; j >= 0; j-- {
		if a.labels[j] == n.atom {
			return uint32(len(a.labels) - 1 - j), nil
		}
	}
	return 0, errAt(n.line, n.col, "unknown label %s", n.atom)
}
