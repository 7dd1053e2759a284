// Package runtime is the embedding surface: a process-scoped context
// owning the guest store, the compiled-module and instance registries,
// and the wrapper caches whose contents the host garbage collector
// traces through ForEachHeldReference.
//
// Registries are append-only. A handle, once issued, resolves to the
// same module or instance for the life of the Runtime; failed compiles
// and failed instantiations register nothing. The deferred variants of
// compile, validate, and instantiate settle synchronously before they
// return; the promise-shaped surface exists for host engines that
// expect one.
package runtime
