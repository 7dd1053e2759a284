// Package store owns every guest entity the embedding can address.
//
// Functions, globals, memories and tables live in append-only tables
// indexed by the address types in the root package. An address, once
// issued, refers to the same entity for the life of the store, so
// host-side wrappers can cache addresses freely.
//
// Entities enter the store two ways. Instantiation adopts whatever a
// module exports, mapping export entries back to provided import
// addresses where they alias one. The Alloc methods synthesize
// single-entity modules for values the host conjures directly; import
// linking uses these to mint globals and to register host callables.
//
// Instantiation resolves imports by name rewriting: every import entry
// in the binary is redirected at the registered module that owns the
// chosen entity, then the module is recompiled and instantiated against
// the runtime namespace under a unique name.
package store
