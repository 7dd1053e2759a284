package bridge

import (
	"sync"

	wasmembed "github.com/wippyai/wasm-embed"
	"github.com/wippyai/wasm-embed/hostval"
)

// Cache maps function addresses to their host wrappers and back. Both
// directions stay consistent: a wrapper registered for an address is
// the only wrapper that address will ever resolve to.
type Cache struct {
	mu     sync.RWMutex
	byAddr map[wasmembed.FuncAddr]*hostval.Function
	addrs  map[*hostval.Function]wasmembed.FuncAddr
}

// NewCache creates an empty wrapper cache.
func NewCache() *Cache {
	return &Cache{
		byAddr: make(map[wasmembed.FuncAddr]*hostval.Function),
		addrs:  make(map[*hostval.Function]wasmembed.FuncAddr),
	}
}

// Function returns the wrapper registered for addr.
func (c *Cache) Function(addr wasmembed.FuncAddr) (*hostval.Function, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.byAddr[addr]
	return fn, ok
}

// AddrOf returns the address a callable is registered under. It works
// for guest wrappers and for host callables that linking has already
// given a guest address.
func (c *Cache) AddrOf(fn *hostval.Function) (wasmembed.FuncAddr, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	addr, ok := c.addrs[fn]
	return addr, ok
}

// Put registers fn for addr and returns the canonical wrapper: if a
// wrapper already exists for addr, the existing one wins and fn is
// discarded. A callable registered under several addresses keeps its
// first address for reverse lookup.
func (c *Cache) Put(addr wasmembed.FuncAddr, fn *hostval.Function) *hostval.Function {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.byAddr[addr]; ok {
		return existing
	}
	c.byAddr[addr] = fn
	if _, ok := c.addrs[fn]; !ok {
		c.addrs[fn] = addr
	}
	return fn
}

// Len returns the number of cached wrappers.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byAddr)
}

// Range calls f for every cached wrapper until f returns false. The
// host engine's collector uses this to keep wrappers alive while their
// addresses remain reachable.
func (c *Cache) Range(f func(addr wasmembed.FuncAddr, fn *hostval.Function) bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for addr, fn := range c.byAddr {
		if !f(addr, fn) {
			return
		}
	}
}
