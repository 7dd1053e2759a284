package wasmembed

import (
	"fmt"
	"math"
)

// Value is one guest value paired with its type. Values are comparable;
// two values are equal when their type and payload match.
type Value struct {
	typ    ValType
	bits   uint64
	isNull bool
}

// I32 returns an i32 value.
func I32(v int32) Value { return Value{typ: TypeI32, bits: uint64(uint32(v))} }

// I64 returns an i64 value.
func I64(v int64) Value { return Value{typ: TypeI64, bits: uint64(v)} }

// F32 returns an f32 value.
func F32(v float32) Value { return Value{typ: TypeF32, bits: uint64(math.Float32bits(v))} }

// F64 returns an f64 value.
func F64(v float64) Value { return Value{typ: TypeF64, bits: math.Float64bits(v)} }

// Funcref returns a non-null function reference.
func Funcref(a FuncAddr) Value { return Value{typ: TypeFuncref, bits: uint64(a)} }

// NullFuncref returns the null function reference.
func NullFuncref() Value { return Value{typ: TypeFuncref, isNull: true} }

// Type returns the value's type.
func (v Value) Type() ValType { return v.typ }

// The typed accessors panic on a type mismatch: conversion sites dispatch
// on Type first, so a mismatch is a bug in the caller, not bad input.

func (v Value) I32() int32 {
	v.mustBe(TypeI32)
	return int32(uint32(v.bits))
}

func (v Value) I64() int64 {
	v.mustBe(TypeI64)
	return int64(v.bits)
}

func (v Value) F32() float32 {
	v.mustBe(TypeF32)
	return math.Float32frombits(uint32(v.bits))
}

func (v Value) F64() float64 {
	v.mustBe(TypeF64)
	return math.Float64frombits(v.bits)
}

// IsNull reports whether a reference value is null.
func (v Value) IsNull() bool { return v.isNull }

// FuncAddr returns the address of a non-null function reference.
func (v Value) FuncAddr() FuncAddr {
	v.mustBe(TypeFuncref)
	if v.isNull {
		panic("null function reference has no address")
	}
	return FuncAddr(v.bits)
}

func (v Value) mustBe(t ValType) {
	if v.typ != t {
		panic(fmt.Sprintf("guest value is %s, not %s", v.typ, t))
	}
}

// Raw returns the value in the engine's stack representation: i32/i64
// bits zero-extended, f32/f64 bit patterns.
func (v Value) Raw() uint64 { return v.bits }

// FromRaw builds a numeric value from the engine's stack representation.
func FromRaw(t ValType, raw uint64) Value {
	switch t {
	case TypeI32:
		return I32(int32(uint32(raw)))
	case TypeI64:
		return I64(int64(raw))
	case TypeF32:
		return Value{typ: TypeF32, bits: uint64(uint32(raw))}
	case TypeF64:
		return Value{typ: TypeF64, bits: raw}
	}
	panic(fmt.Sprintf("no raw representation for %s", t))
}

func (v Value) String() string {
	switch v.typ {
	case TypeI32:
		return fmt.Sprintf("i32:%d", v.I32())
	case TypeI64:
		return fmt.Sprintf("i64:%d", v.I64())
	case TypeF32:
		return fmt.Sprintf("f32:%g", v.F32())
	case TypeF64:
		return fmt.Sprintf("f64:%g", v.F64())
	case TypeFuncref:
		if v.isNull {
			return "funcref:null"
		}
		return fmt.Sprintf("funcref:%d", v.bits)
	case TypeExternref:
		return "externref"
	}
	return "invalid"
}
