// Package linker resolves a module's declared imports against a
// host-provided import object.
//
// The import object is a two-level map: first-level keys name import
// namespaces, second-level keys name entries within one. Resolution
// walks the module's import section in declaration order and produces
// one store address per import.
//
// Absent entries do not fail fast. The whole section is scanned first
// and every miss is reported together, so a guest with twenty
// unsatisfied imports produces one actionable error instead of twenty
// attempts. Entries that exist but cannot serve their import - a
// non-callable where a function is declared, a number where a memory
// wrapper is required - fail with the first such conflict.
package linker
