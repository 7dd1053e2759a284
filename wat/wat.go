package wat

import (
	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/wasm"
)

// Compile translates WAT source into a binary module. Failures carry
// the source position; the underlying *SyntaxError is reachable through
// the error chain.
func Compile(source string) ([]byte, error) {
	root, err := parse(source)
	if err != nil {
		return nil, errors.ParseFailed("text module", err)
	}
	c := &compiler{b: wasm.NewModuleBuilder()}
	if err := c.compile(root); err != nil {
		return nil, errors.ParseFailed("text module", err)
	}
	return c.b.Build(), nil
}
