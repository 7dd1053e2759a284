// Package wasm reads and writes the guest binary format at the level the
// embedding needs: import and export metadata, entity type tables, import
// section rewriting, and synthesis of small modules from scratch.
//
// It is not a validator. Full decoding and validation belong to the
// execution engine; Decode only extracts the static structure that linking,
// instantiation, and introspection consume, and it runs on bytes the engine
// has already accepted.
//
// The two writers cover the embedding's synthesis needs. ModuleBuilder
// assembles complete modules section by section, which backs both the text
// compiler and the store's single-entity allocation modules. RewriteImports
// redirects a compiled module's import entries at freshly chosen owner
// names without touching any other section.
package wasm
