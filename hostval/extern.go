package hostval

// Extern is embedded by host-visible values defined outside this
// package, such as the wrappers the embedding hands to the host
// engine. Embedding it makes a type a Value of the object kind with
// reference identity.
type Extern struct{}

// Kind returns KindObject.
func (Extern) Kind() Kind { return KindObject }

func (Extern) isValue() {}

// HostRef marks the value as identity-carrying.
func (Extern) HostRef() {}
