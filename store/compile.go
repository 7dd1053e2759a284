package store

import (
	"context"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/wasm"
)

// CompiledModule is a validated module ready for instantiation. It
// keeps the original binary so instantiation can rewrite import names,
// and the decoded structure so linking can see declared types.
type CompiledModule struct {
	store    *Store
	raw      []byte
	compiled wazero.CompiledModule
	meta     *wasm.Module
}

// Compile validates bin against the engine and decodes its structure.
// Rejected binaries fail in the compile phase.
func (s *Store) Compile(ctx context.Context, bin []byte) (*CompiledModule, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, errors.NotInitialized(errors.PhaseCompile, "store")
	}

	compiled, err := s.rt.CompileModule(ctx, bin)
	if err != nil {
		return nil, errors.CompileFailed(err, "module rejected")
	}

	meta, err := wasm.Decode(bin)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, errors.CompileFailed(err, "decode module structure")
	}

	raw := make([]byte, len(bin))
	copy(raw, bin)

	debugf("compiled module: %d bytes, %d imports, %d exports", len(raw), len(meta.Imports), len(meta.Exports))

	return &CompiledModule{store: s, raw: raw, compiled: compiled, meta: meta}, nil
}

// Meta returns the decoded module structure.
func (m *CompiledModule) Meta() *wasm.Module {
	return m.meta
}

// Size returns the binary size in bytes.
func (m *CompiledModule) Size() int {
	return len(m.raw)
}

// Close releases the compiled code. Instances created from the module
// are unaffected.
func (m *CompiledModule) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}
