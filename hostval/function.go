package hostval

import "fmt"

// Function is a host callable. Two flavors flow through the embedding:
// host-authored callables supplied in import objects, and wrappers the
// bridge synthesizes around exported guest functions. Both are plain
// *Function values; identity is pointer identity, which the wrapper cache
// preserves across repeated export lookups.
type Function struct {
	// Name is the function's host-visible name. Wrappers carry the guest
	// export name; host-authored functions carry whatever the host chose.
	Name string

	fn func(args []Value) (Value, error)
}

// NewFunction builds a callable from a Go closure. A nil closure yields a
// function whose calls fail.
func NewFunction(name string, fn func(args []Value) (Value, error)) *Function {
	return &Function{Name: name, fn: fn}
}

func (f *Function) Kind() Kind { return KindFunction }
func (f *Function) isValue()   {}
func (f *Function) HostRef()   {}

// Call invokes the function. Errors from guest wrappers are traps or
// marshalling failures; errors from host-authored functions are whatever
// the host closure returned.
func (f *Function) Call(args ...Value) (Value, error) {
	if f.fn == nil {
		return Undefined{}, fmt.Errorf("function %q has no implementation", f.Name)
	}
	return f.fn(args)
}

func (f *Function) String() string {
	if f.Name == "" {
		return "function"
	}
	return "function " + f.Name
}
