package hostval

import "math/big"

// two64 is the modulus for 64-bit wrap-around conversion.
var two64 = new(big.Int).Lsh(big.NewInt(1), 64)

// BigInt is an arbitrary precision host integer. Guest i64 values always
// surface as *BigInt, and only *BigInt arguments may flow into i64
// parameters; a Number in an i64 position is a marshalling error, not a
// coercion.
type BigInt struct {
	v *big.Int
}

// NewBigInt wraps v. The value is copied so later mutation of v does not
// leak into the host value.
func NewBigInt(v *big.Int) *BigInt {
	return &BigInt{v: new(big.Int).Set(v)}
}

// BigIntFromInt64 builds a *BigInt holding v.
func BigIntFromInt64(v int64) *BigInt {
	return &BigInt{v: big.NewInt(v)}
}

// BigIntFromUint64 builds a *BigInt holding v.
func BigIntFromUint64(v uint64) *BigInt {
	return &BigInt{v: new(big.Int).SetUint64(v)}
}

func (b *BigInt) Kind() Kind { return KindBigInt }
func (b *BigInt) isValue()   {}
func (b *BigInt) HostRef()   {}

// Int returns a copy of the underlying integer.
func (b *BigInt) Int() *big.Int {
	return new(big.Int).Set(b.v)
}

// Int64 reduces the integer modulo 2^64 and reinterprets the result as a
// signed two's complement value. This matches how the host engine converts
// arbitrary integers into guest i64: out-of-range values wrap, they do not
// error.
func (b *BigInt) Int64() int64 {
	r := new(big.Int).Mod(b.v, two64)
	return int64(r.Uint64())
}

// Eq reports whether b and o hold the same integer.
func (b *BigInt) Eq(o *BigInt) bool {
	return b.v.Cmp(o.v) == 0
}

func (b *BigInt) String() string {
	return b.v.String() + "n"
}
