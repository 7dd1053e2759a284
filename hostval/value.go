package hostval

// Kind identifies the dynamic type of a host value.
type Kind int

const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindNumber
	KindBigInt
	KindString
	KindObject
	KindArray
	KindFunction
)

// String returns the kind name the way host-facing error messages spell it.
func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindBigInt:
		return "bigint"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// Value is one dynamically typed host engine value. The set of kinds is
// closed: only types declared in this package (plus external types that
// embed one of them) satisfy it.
type Value interface {
	Kind() Kind
	isValue()
}

// Ref marks host values that are heap references from the engine's point
// of view. The runtime's reference trace hook reports every Ref it caches
// so the host garbage collector keeps them alive while the guest side can
// still reach them. Wrapper types outside this package (instance exports
// such as memories and globals) implement Ref by declaring HostRef.
type Ref interface {
	Value
	HostRef()
}

// Undefined is the absent value. The zero Undefined is ready to use.
type Undefined struct{}

func (Undefined) Kind() Kind { return KindUndefined }
func (Undefined) isValue()   {}

// Null is the explicit empty reference.
type Null struct{}

func (Null) Kind() Kind { return KindNull }
func (Null) isValue()   {}

// Bool is a host boolean.
type Bool bool

func (Bool) Kind() Kind { return KindBool }
func (Bool) isValue()   {}

// Number is a host double precision float. Integral guest values up to
// 32 bits travel as Number; 64-bit integers travel as *BigInt instead and
// are never silently folded into Number.
type Number float64

func (Number) Kind() Kind { return KindNumber }
func (Number) isValue()   {}

// String is a host string.
type String string

func (String) Kind() Kind { return KindString }
func (String) isValue()   {}
