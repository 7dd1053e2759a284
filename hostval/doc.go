// Package hostval models the host scripting engine's dynamically typed
// values as far as the embedding needs them: numbers, arbitrary precision
// integers, strings, booleans, null and undefined, property objects,
// arrays, and callables.
//
// The embedding consumes the host engine only through this surface.
// Import objects are read with tolerant two-level property lookup, guest
// exports are handed back as these values, and the marshalling rules in
// the bridge package are written against the closed set of kinds declared
// here.
//
// Callables carry pointer identity. The wrapper caches rely on it: looking
// up the same guest function twice returns the same *Function, so host
// equality checks on exported functions behave correctly.
package hostval
