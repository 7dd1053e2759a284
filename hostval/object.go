package hostval

// Object is a host property bag. Keys keep insertion order so export
// listings and diagnostics render deterministically.
type Object struct {
	props map[string]Value
	keys  []string
}

// NewObject builds an empty object.
func NewObject() *Object {
	return &Object{props: make(map[string]Value)}
}

func (o *Object) Kind() Kind { return KindObject }
func (o *Object) isValue()   {}
func (o *Object) HostRef()   {}

// Get looks up a property. Absent properties report ok == false; the
// import linker treats such reads as undefined rather than as failures,
// collecting the miss instead of aborting.
func (o *Object) Get(name string) (Value, bool) {
	v, ok := o.props[name]
	return v, ok
}

// Set stores a property, keeping the first-set position of the key.
func (o *Object) Set(name string, v Value) {
	if _, ok := o.props[name]; !ok {
		o.keys = append(o.keys, name)
	}
	o.props[name] = v
}

// Keys returns the property names in insertion order.
func (o *Object) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len reports the number of properties.
func (o *Object) Len() int {
	return len(o.keys)
}

// Array is a host array of values.
type Array struct {
	Elems []Value
}

// NewArray builds an array from the given elements.
func NewArray(elems ...Value) *Array {
	return &Array{Elems: elems}
}

func (a *Array) Kind() Kind { return KindArray }
func (a *Array) isValue()   {}
func (a *Array) HostRef()   {}

// Len reports the number of elements.
func (a *Array) Len() int {
	return len(a.Elems)
}
